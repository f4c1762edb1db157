package sanitizer

import (
	"fmt"
	"regexp"
	"strings"

	"lessonbook/pkg/model"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reModalitySeparators = regexp.MustCompile(`[\s\-]+`)
	reClockTime          = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

func trim(s string) string {
	return strings.TrimSpace(s)
}

func lower(s string) string {
	return strings.ToLower(s)
}

func SanitizeID(input string) string {
	return trim(input)
}

func SanitizeDate(input string) string {
	return trim(input)
}

func SanitizeClockTime(input string) string {
	s := trim(input)
	m := reClockTime.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	if len(m[1]) == 1 {
		return fmt.Sprintf("0%s:%s", m[1], m[2])
	}
	return s
}

func SanitizeModality(input string) string {
	p := Pipeline{
		trim,
		lower,
		func(s string) string { return reModalitySeparators.ReplaceAllString(s, "_") },
	}
	return p.Apply(input)
}

func SanitizeNotes(input string) string {
	p := Pipeline{
		StripControl,
		TrimAndNormalize,
		func(s string) string { return Truncate(s, MaxNotesLength) },
	}
	return p.Apply(input)
}

func SanitizeEmail(input string) string {
	return lower(trim(input))
}

// SanitizeBookingRequest returns a normalized copy of req.
func SanitizeBookingRequest(req model.BookingRequest) model.BookingRequest {
	return model.BookingRequest{
		OwnerID:        SanitizeID(req.OwnerID),
		RequesterID:    SanitizeID(req.RequesterID),
		OfferingID:     SanitizeID(req.OfferingID),
		Date:           SanitizeDate(req.Date),
		StartTime:      SanitizeClockTime(req.StartTime),
		EndTime:        SanitizeClockTime(req.EndTime),
		Modality:       SanitizeModality(req.Modality),
		Notes:          SanitizeNotes(req.Notes),
		IdempotencyKey: trim(req.IdempotencyKey),
	}
}

// SanitizeRequester normalizes catalog contact data.
func SanitizeRequester(r model.Requester) model.Requester {
	r.ID = SanitizeID(r.ID)
	r.Name = TrimAndNormalize(r.Name)
	r.Email = SanitizeEmail(r.Email)
	r.Phone = SanitizePhone(r.Phone)
	return r
}
