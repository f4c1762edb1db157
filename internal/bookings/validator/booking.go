package validator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	bookingserrors "lessonbook/internal/bookings/errors"
	"lessonbook/pkg/locale"
	"lessonbook/pkg/logger"
	"lessonbook/pkg/model"
	"lessonbook/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details renders the errors as a field -> message map for API responses.
func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

func fail(field, format string, args ...any) ValidationErrors {
	return ValidationErrors{{Field: field, Message: fmt.Sprintf(format, args...)}}
}

// Catalog is the read-only view of owners, offerings and requesters the
// validator needs. Lookups of unknown ids return an error wrapping the
// matching not-found sentinel.
type Catalog interface {
	FindOwner(ctx context.Context, id string) (*model.ResourceOwner, error)
	FindOffering(ctx context.Context, id string) (*model.Offering, error)
	FindRequester(ctx context.Context, id string) (*model.Requester, error)
}

type Option func(*BookingValidator)

// WithClock overrides the clock used for the "starts in the future" rule.
func WithClock(now func() time.Time) Option {
	return func(v *BookingValidator) { v.now = now }
}

type BookingValidator struct {
	validate  *validator.Validate
	catalog   Catalog
	roles     []string
	tolerance time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

func NewBookingValidator(catalog Catalog, authorizedRoles []string, tolerance time.Duration, log *logger.Logger, opts ...Option) *BookingValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	roles := make([]string, 0, len(authorizedRoles))
	for _, r := range authorizedRoles {
		roles = append(roles, strings.ToLower(strings.TrimSpace(r)))
	}

	bv := &BookingValidator{
		validate:  v,
		catalog:   catalog,
		roles:     roles,
		tolerance: tolerance,
		now:       time.Now,
		logger:    log,
	}
	for _, opt := range opts {
		opt(bv)
	}

	log.Info("Booking validator initialized successfully",
		"authorized_roles", roles,
		"duration_tolerance", tolerance.String(),
	)
	return bv
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

// Validate checks req and resolves it into a ValidatedRequest. Rule
// violations are returned as ValidationErrors; anything else is a
// collaborator failure.
func (v *BookingValidator) Validate(ctx context.Context, req model.BookingRequest) (model.ValidatedRequest, error) {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return model.ValidatedRequest{}, v.translateValidationErrors(validationErrs)
		}
		return model.ValidatedRequest{}, err
	}

	owner, err := v.catalog.FindOwner(ctx, req.OwnerID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrOwnerNotFound) {
			return model.ValidatedRequest{}, fail("owner_id", "resource owner %s does not exist", req.OwnerID)
		}
		return model.ValidatedRequest{}, fmt.Errorf("load resource owner: %w", err)
	}
	if !owner.Active {
		return model.ValidatedRequest{}, fail("owner_id", "resource owner %s is not active", req.OwnerID)
	}
	if !slices.Contains(v.roles, strings.ToLower(owner.Role)) {
		return model.ValidatedRequest{}, fail("owner_id", "resource owner role %q cannot accept bookings", owner.Role)
	}

	offering, err := v.catalog.FindOffering(ctx, req.OfferingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrOfferingNotFound) {
			return model.ValidatedRequest{}, fail("offering_id", "offering %s does not exist", req.OfferingID)
		}
		return model.ValidatedRequest{}, fmt.Errorf("load offering: %w", err)
	}
	if !offering.Active {
		return model.ValidatedRequest{}, fail("offering_id", "offering %s is not active", req.OfferingID)
	}
	if offering.OwnerID != owner.ID {
		return model.ValidatedRequest{}, fail("offering_id", "offering %s does not belong to owner %s", req.OfferingID, req.OwnerID)
	}

	requester, err := v.catalog.FindRequester(ctx, req.RequesterID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrRequesterNotFound) {
			return model.ValidatedRequest{}, fail("requester_id", "requester %s does not exist", req.RequesterID)
		}
		return model.ValidatedRequest{}, fmt.Errorf("load requester: %w", err)
	}
	if !requester.Active {
		return model.ValidatedRequest{}, fail("requester_id", "requester %s is not active", req.RequesterID)
	}

	loc, err := OwnerLocation(owner)
	if err != nil {
		return model.ValidatedRequest{}, fail("owner_id", "resource owner time zone %q is invalid", owner.TimeZone)
	}

	window, verr := parseWindow(req, loc)
	if verr != nil {
		return model.ValidatedRequest{}, verr
	}

	if !window.Start.After(v.now()) {
		return model.ValidatedRequest{}, fail("start_time", "booking must start in the future")
	}
	if !window.End.After(window.Start) {
		return model.ValidatedRequest{}, fail("end_time", "end_time must be after start_time")
	}

	expected := time.Duration(offering.DurationMin) * time.Minute
	if diff := window.Duration() - expected; diff > v.tolerance || -diff > v.tolerance {
		return model.ValidatedRequest{}, fail("end_time", "duration %s does not match offering duration of %d minutes", window.Duration(), offering.DurationMin)
	}

	return model.ValidatedRequest{
		Request:         req,
		OwnerID:         owner.ID,
		RequesterID:     requester.ID,
		OfferingID:      offering.ID,
		Window:          window,
		Location:        loc,
		Modality:        req.Modality,
		Notes:           req.Notes,
		OfferingMinutes: offering.DurationMin,
	}, nil
}

// OwnerLocation falls back to the zone implied by the owner's phone, then UTC.
func OwnerLocation(owner *model.ResourceOwner) (*time.Location, error) {
	tz := owner.TimeZone
	if tz == "" {
		tz = locale.InferTimezoneFromPhone(sanitizer.SanitizePhone(owner.Phone))
	}
	return time.LoadLocation(tz)
}

func parseWindow(req model.BookingRequest, loc *time.Location) (model.TimeWindow, ValidationErrors) {
	if _, err := time.ParseInLocation(dateLayout, req.Date, loc); err != nil {
		return model.TimeWindow{}, fail("date", "date must be YYYY-MM-DD")
	}
	start, err := time.ParseInLocation(dateTimeLayout, req.Date+" "+req.StartTime, loc)
	if err != nil {
		return model.TimeWindow{}, fail("start_time", "start_time must be HH:MM")
	}
	end, err := time.ParseInLocation(dateTimeLayout, req.Date+" "+req.EndTime, loc)
	if err != nil {
		return model.TimeWindow{}, fail("end_time", "end_time must be HH:MM")
	}
	return model.TimeWindow{Date: req.Date, Start: start, End: end}, nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "datetime":
			message = fmt.Sprintf("%s must match layout %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
