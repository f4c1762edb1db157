package model

// BookingResult is the outcome of one BookAtomic call.
type BookingResult struct {
	Success       bool                    `json:"success"`
	CommitmentID  string                  `json:"commitment_id,omitempty"`
	TransactionID string                  `json:"transaction_id,omitempty"`
	Error         string                  `json:"error,omitempty"`
	ErrorCode     string                  `json:"error_code,omitempty"`
	Conflicts     []ConflictingCommitment `json:"conflicts,omitempty"`
	Attempts      int                     `json:"attempts"`
	AuditID       string                  `json:"audit_id,omitempty"`

	// Cause keeps the internal error for logs and audit. Never serialized.
	Cause error `json:"-"`
}

func Succeeded(commitmentID, transactionID string) BookingResult {
	return BookingResult{
		Success:       true,
		CommitmentID:  commitmentID,
		TransactionID: transactionID,
	}
}

func Failed(code, message string, cause error) BookingResult {
	return BookingResult{
		ErrorCode: code,
		Error:     message,
		Cause:     cause,
	}
}
