package model

import (
	"fmt"
	"time"
)

const (
	ModalityOnline   = "online"
	ModalityInPerson = "in_person"
)

const (
	CommitmentStatusPending    = "pending"
	CommitmentStatusConfirmed  = "confirmed"
	CommitmentStatusInProgress = "in_progress"
	CommitmentStatusCompleted  = "completed"
	CommitmentStatusCancelled  = "cancelled"
	CommitmentStatusNoShow     = "no_show"
)

// OccupyingStatuses are the commitment statuses that hold a window.
var OccupyingStatuses = []string{
	CommitmentStatusPending,
	CommitmentStatusConfirmed,
	CommitmentStatusInProgress,
}

// BookingRequest is what a client submits. Times are wall-clock values in the
// owner's time zone.
type BookingRequest struct {
	OwnerID        string `json:"owner_id" bson:"owner_id" validate:"required,min=1,max=64"`
	RequesterID    string `json:"requester_id" bson:"requester_id" validate:"required,min=1,max=64"`
	OfferingID     string `json:"offering_id" bson:"offering_id" validate:"required,min=1,max=64"`
	Date           string `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	StartTime      string `json:"start_time" bson:"start_time" validate:"required,datetime=15:04"`
	EndTime        string `json:"end_time" bson:"end_time" validate:"required,datetime=15:04"`
	Modality       string `json:"modality" bson:"modality" validate:"required,oneof=online in_person"`
	Notes          string `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=1000"`
	IdempotencyKey string `json:"idempotency_key,omitempty" bson:"idempotency_key,omitempty" validate:"omitempty,max=128"`
}

// TimeWindow is a half-open interval [Start, End) on a calendar date.
type TimeWindow struct {
	Date  string    `json:"date" bson:"date"`
	Start time.Time `json:"start" bson:"start"`
	End   time.Time `json:"end" bson:"end"`
}

// Overlaps reports whether two windows share any instant. Touching endpoints
// do not overlap.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%s [%s, %s)", w.Date, w.Start.Format("15:04"), w.End.Format("15:04"))
}

// ValidatedRequest is produced once by the validator and passed by value.
type ValidatedRequest struct {
	Request         BookingRequest
	OwnerID         string
	RequesterID     string
	OfferingID      string
	Window          TimeWindow
	Location        *time.Location
	Modality        string
	Notes           string
	OfferingMinutes int
}

type Commitment struct {
	ID            string    `json:"id" bson:"_id"`
	OwnerID       string    `json:"owner_id" bson:"owner_id"`
	RequesterID   string    `json:"requester_id" bson:"requester_id"`
	OfferingID    string    `json:"offering_id" bson:"offering_id"`
	Date          string    `json:"date" bson:"date"`
	StartTime     time.Time `json:"start_time" bson:"start_time"`
	EndTime       time.Time `json:"end_time" bson:"end_time"`
	Modality      string    `json:"modality" bson:"modality"`
	Notes         string    `json:"notes,omitempty" bson:"notes,omitempty"`
	Status        string    `json:"status" bson:"status"`
	TransactionID string    `json:"transaction_id" bson:"transaction_id"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

func (c *Commitment) Window() TimeWindow {
	return TimeWindow{Date: c.Date, Start: c.StartTime, End: c.EndTime}
}

// IsOccupying reports whether the commitment currently blocks its window.
func (c *Commitment) IsOccupying() bool {
	return IsOccupyingStatus(c.Status)
}

func IsOccupyingStatus(status string) bool {
	for _, s := range OccupyingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type ConflictingCommitment struct {
	ID            string    `json:"id" bson:"_id"`
	StartTime     time.Time `json:"start_time" bson:"start_time"`
	EndTime       time.Time `json:"end_time" bson:"end_time"`
	Status        string    `json:"status" bson:"status"`
	TransactionID string    `json:"-" bson:"transaction_id"`
}
