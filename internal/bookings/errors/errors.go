package errors

import "errors"

var (
	ErrNotFound = errors.New("commitment not found")

	ErrTransactionNotFound = errors.New("booking transaction not found")

	// ErrTransactionNotActive means a compare-and-set on status=active lost:
	// the transaction was already committed or rolled back.
	ErrTransactionNotActive = errors.New("booking transaction is no longer active")

	ErrTransactionExpired = errors.New("booking transaction expired before commit")

	ErrDuplicateCommitment = errors.New("commitment already exists")

	ErrOwnerNotFound = errors.New("resource owner not found")

	ErrOfferingNotFound = errors.New("offering not found")

	ErrRequesterNotFound = errors.New("requester not found")

	ErrInvalidID = errors.New("invalid ID format")
)
