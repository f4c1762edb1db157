package service

import (
	"context"
	"time"

	"lessonbook/internal/bookings/repository"
	"lessonbook/pkg/kafka"
	"lessonbook/pkg/logger"
	"lessonbook/pkg/model"

	"github.com/google/uuid"
)

const (
	EventBookingAttempted = "booking.attempted"
	eventSchemaVersion    = "1"
	eventSource           = "lessonbook"
)

// BookingAttemptedEvent is the payload published for every audited attempt.
type BookingAttemptedEvent struct {
	AuditID       string `json:"audit_id"`
	OwnerID       string `json:"owner_id"`
	RequesterID   string `json:"requester_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Outcome       string `json:"outcome"`
	CommitmentID  string `json:"commitment_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Attempts      int    `json:"attempts"`
	RecordedAt    string `json:"recorded_at"`
}

// AuditRecorder appends one entry per booking call. It never fails the
// booking: store and broker errors are logged and dropped.
type AuditRecorder struct {
	repo      repository.AuditRepository
	publisher kafka.Publisher
	timeout   time.Duration
	log       *logger.Logger
}

// NewAuditRecorder builds a recorder. publisher may be nil.
func NewAuditRecorder(repo repository.AuditRepository, publisher kafka.Publisher, timeout time.Duration, log *logger.Logger) *AuditRecorder {
	return &AuditRecorder{
		repo:      repo,
		publisher: publisher,
		timeout:   timeout,
		log:       log,
	}
}

// Record returns the audit id, or "" when the entry could not be stored.
func (a *AuditRecorder) Record(ctx context.Context, req model.BookingRequest, res model.BookingResult, detail string) string {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	outcome := model.AuditOutcomeSuccess
	if !res.Success {
		outcome = res.ErrorCode
	}

	entry := &model.AuditEntry{
		ID:            uuid.NewString(),
		Request:       req,
		Outcome:       outcome,
		Message:       res.Error,
		TransactionID: res.TransactionID,
		CommitmentID:  res.CommitmentID,
		Conflicts:     res.Conflicts,
		Attempts:      res.Attempts,
		Detail:        detail,
		RecordedAt:    time.Now().UTC(),
	}

	id := entry.ID
	if err := a.repo.Insert(ctx, entry); err != nil {
		a.log.Error("Failed to record booking audit entry",
			"owner_id", req.OwnerID,
			"outcome", outcome,
			"transaction_id", res.TransactionID,
			"error", err,
		)
		id = ""
	}

	a.publish(ctx, entry)
	return id
}

func (a *AuditRecorder) publish(ctx context.Context, entry *model.AuditEntry) {
	if a.publisher == nil {
		return
	}

	event := BookingAttemptedEvent{
		AuditID:       entry.ID,
		OwnerID:       entry.Request.OwnerID,
		RequesterID:   entry.Request.RequesterID,
		Date:          entry.Request.Date,
		StartTime:     entry.Request.StartTime,
		EndTime:       entry.Request.EndTime,
		Outcome:       entry.Outcome,
		CommitmentID:  entry.CommitmentID,
		TransactionID: entry.TransactionID,
		Attempts:      entry.Attempts,
		RecordedAt:    entry.RecordedAt.Format(time.RFC3339Nano),
	}

	msg, err := kafka.NewMessage().
		WithKey(entry.Request.OwnerID).
		WithValue(event).
		WithEventType(EventBookingAttempted).
		WithSchemaVersion(eventSchemaVersion).
		WithSource(eventSource).
		WithCorrelationID(entry.TransactionID).
		WithTimestamp(entry.RecordedAt).
		Build()
	if err != nil {
		a.log.Error("Failed to build booking event", "audit_id", entry.ID, "error", err)
		return
	}

	if err := a.publisher.Publish(ctx, msg); err != nil {
		a.log.Warn("Failed to publish booking event", "audit_id", entry.ID, "error", err)
	}
}
