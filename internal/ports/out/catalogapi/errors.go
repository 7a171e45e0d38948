package catalogapi

import (
	"errors"
	"fmt"
)

// Error codes returned by the catalog API.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNameConflict       = "NAME_CONFLICT"
	CodeDependencyConflict = "DEPENDENCY_CONFLICT"
	CodeNotFound           = "NOT_FOUND"
	CodeIdempotencyReuse   = "IDEMPOTENCY_KEY_REUSE"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL"
)

// APIError is a non-2xx response from the catalog API.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Details   map[string]any
	RequestID string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("catalog api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("catalog api: %d %s", e.Status, e.Code)
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
