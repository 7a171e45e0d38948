package optimistic

import (
	"errors"
	"fmt"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/catalogapi"
)

// Kind categorizes a failed mutation.
type Kind string

const (
	// KindValidationConflict: the name collides with an existing record.
	KindValidationConflict Kind = "VALIDATION_CONFLICT"
	// KindTransportFailure: network or server error.
	KindTransportFailure Kind = "TRANSPORT_FAILURE"
	// KindDependencyConflict: the server refused because related records exist.
	KindDependencyConflict Kind = "DEPENDENCY_CONFLICT"
	// KindInvalidInput: the payload could not be coerced or was rejected as invalid.
	KindInvalidInput Kind = "INVALID_INPUT"
	// KindNotFound: the entity no longer exists on the server.
	KindNotFound Kind = "NOT_FOUND"
)

// Op names a mutation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Error is the structured result of a failed mutation. Message is user-facing.
type Error struct {
	Kind     Kind
	Op       Op
	Resource domain.ResourceKind
	Message  string
	Details  map[string]any
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Resource.Singular(), e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify converts any mutation failure into an *Error. Server-supplied reasons
// are preferred for Message; otherwise a generic one is used.
func Classify(r domain.ResourceKind, op Op, err error) *Error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	out := &Error{
		Kind:     KindTransportFailure,
		Op:       op,
		Resource: r,
		Message:  fmt.Sprintf("Failed to %s %s", op, r.Singular()),
		Err:      err,
	}

	var ie *domain.InputError
	if errors.As(err, &ie) {
		out.Kind = KindInvalidInput
		out.Message = ie.Error()
		out.Details = make(map[string]any, len(ie.Details))
		for k, v := range ie.Details {
			out.Details[k] = v
		}
		return out
	}

	if ae, ok := catalogapi.AsAPIError(err); ok {
		switch ae.Code {
		case catalogapi.CodeNameConflict:
			out.Kind = KindValidationConflict
		case catalogapi.CodeDependencyConflict:
			out.Kind = KindDependencyConflict
		case catalogapi.CodeNotFound:
			out.Kind = KindNotFound
		case catalogapi.CodeValidation:
			out.Kind = KindInvalidInput
		}
		if ae.Message != "" {
			out.Message = ae.Message
		}
		out.Details = ae.Details
	}
	return out
}

func kindOf(err error) (Kind, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind, true
	}
	return "", false
}

// IsValidationConflict reports whether err is a name collision.
func IsValidationConflict(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindValidationConflict
}

// IsDependencyConflict reports whether the server refused because of dependents.
func IsDependencyConflict(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindDependencyConflict
}

// IsTransportFailure reports whether err is a network or server failure.
func IsTransportFailure(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransportFailure
}
