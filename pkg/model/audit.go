package model

import "time"

const AuditOutcomeSuccess = "success"

type AuditEntry struct {
	ID            string                  `json:"id" bson:"_id"`
	Request       BookingRequest          `json:"request" bson:"request"`
	Outcome       string                  `json:"outcome" bson:"outcome"`
	Message       string                  `json:"message,omitempty" bson:"message,omitempty"`
	TransactionID string                  `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	CommitmentID  string                  `json:"commitment_id,omitempty" bson:"commitment_id,omitempty"`
	Conflicts     []ConflictingCommitment `json:"conflicts,omitempty" bson:"conflicts,omitempty"`
	Attempts      int                     `json:"attempts" bson:"attempts"`
	Detail        string                  `json:"-" bson:"detail,omitempty"`
	RecordedAt    time.Time               `json:"recorded_at" bson:"recorded_at"`
}
