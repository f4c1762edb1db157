package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_FAILED"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeBadRequest   = "BAD_REQUEST"
	CodeTimeout      = "TIMEOUT"
	CodeInvalidInput = "INVALID_INPUT"
	CodeRateLimited  = "RATE_LIMITED"

	// Booking core outcomes.
	CodeLockContention     = "LOCK_CONTENTION"
	CodeSlotConflict       = "SLOT_CONFLICT"
	CodeCreationFailed     = "CREATION_FAILED"
	CodeCommitFailed       = "COMMIT_FAILED"
	CodeRollbackFailed     = "ROLLBACK_FAILED"
	CodeSystemError        = "SYSTEM_ERROR"
	CodeMaxRetriesExceeded = "MAX_RETRIES_EXCEEDED"
)

// GenericSystemMessage is what callers see for any system-class failure.
const GenericSystemMessage = "booking system error"

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func (e *AppError) ToJSON() []byte {
	response := ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
	data, _ := json.Marshal(response)
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func Timeout(message string) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Message:    message,
		HTTPStatus: http.StatusGatewayTimeout,
	}
}

func RateLimited(message string) *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    message,
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// SlotConflict reports a business conflict: the window is taken.
func SlotConflict(message string, conflicts any) *AppError {
	return &AppError{
		Code:       CodeSlotConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"conflicts": conflicts},
	}
}

// LockContention is retryable; clients should try again later.
func LockContention(message string) *AppError {
	return &AppError{
		Code:       CodeLockContention,
		Message:    message,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

func MaxRetriesExceeded(message string, attempts int) *AppError {
	return &AppError{
		Code:       CodeMaxRetriesExceeded,
		Message:    message,
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"attempts": attempts},
	}
}

// System builds a system-class error. The caller-facing message is always
// GenericSystemMessage; err keeps the detail for logs and audit.
func System(code string, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    GenericSystemMessage,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsSystemCode reports whether code belongs to the fatal/system class.
func IsSystemCode(code string) bool {
	switch code {
	case CodeCreationFailed, CodeCommitFailed, CodeRollbackFailed, CodeSystemError, CodeInternal:
		return true
	}
	return false
}

// IsRetryableCode reports whether an outcome may be retried by the caller.
func IsRetryableCode(code string) bool {
	return code == CodeLockContention || code == CodeMaxRetriesExceeded
}

// StatusForCode maps an outcome code to an HTTP status.
func StatusForCode(code string) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeConflict, CodeSlotConflict:
		return http.StatusConflict
	case CodeLockContention, CodeMaxRetriesExceeded:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}
