package services

import "fmt"

// Per-item sync error codes surfaced to the client.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeEncryptionError = "ENCRYPTION_ERROR"
	CodeSyncConflict    = "SYNC_CONFLICT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeServerError     = "SERVER_ERROR"
)

// ItemError is a per-trip failure inside a batch. The batch itself is never
// atomic; one bad item rejects only that item.
type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewItemError(code, format string, args ...interface{}) *ItemError {
	return &ItemError{Code: code, Message: fmt.Sprintf(format, args...)}
}
