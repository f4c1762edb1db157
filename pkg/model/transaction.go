package model

import "time"

const (
	TransactionStatusActive     = "active"
	TransactionStatusCommitted  = "committed"
	TransactionStatusRolledBack = "rolled_back"
)

// BookingTransaction records one in-flight attempt. It leaves the active
// state exactly once.
type BookingTransaction struct {
	ID            string    `json:"id" bson:"_id"`
	LockKey       string    `json:"lock_key" bson:"lock_key"`
	SlotKeys      []string  `json:"slot_keys" bson:"slot_keys"`
	OwnerID       string    `json:"owner_id" bson:"owner_id"`
	Date          string    `json:"date" bson:"date"`
	StartTime     time.Time `json:"start_time" bson:"start_time"`
	EndTime       time.Time `json:"end_time" bson:"end_time"`
	Status        string    `json:"status" bson:"status"`
	CommitmentID  string    `json:"commitment_id,omitempty" bson:"commitment_id,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt     time.Time `json:"expires_at" bson:"expires_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

func (t *BookingTransaction) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type TransactionStatus struct {
	Found     bool       `json:"found"`
	Status    string     `json:"status,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type CleanupResult struct {
	CleanedCount int      `json:"cleaned_count"`
	PurgedLeases int64    `json:"purged_leases"`
	Errors       []string `json:"errors"`
}
