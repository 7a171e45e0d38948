package catalog

import "fmt"

// Error codes carried in API error bodies.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNameConflict       = "NAME_CONFLICT"
	CodeDependencyConflict = "DEPENDENCY_CONFLICT"
	CodeNotFound           = "NOT_FOUND"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
)

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func validationError(message string, details map[string]any) *Error {
	return &Error{Status: 422, Code: CodeValidation, Message: message, Details: details}
}

func notFound(singular string) *Error {
	return &Error{Status: 404, Code: CodeNotFound, Message: fmt.Sprintf("%s not found", singular)}
}

func nameConflict(singular, name string) *Error {
	return &Error{
		Status:  409,
		Code:    CodeNameConflict,
		Message: fmt.Sprintf("A %s named %q already exists", singular, name),
		Details: map[string]any{"name": name},
	}
}
