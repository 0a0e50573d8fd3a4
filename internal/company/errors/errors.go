package errors

import (
	"fmt"
	"strings"
)

var (
	ErrNotFound          = fmt.Errorf("not found")
	ErrDuplicate         = fmt.Errorf("already exists")
	ErrInvalidInput      = fmt.Errorf("invalid input")
	ErrTimeout           = fmt.Errorf("operation timed out")
	ErrInvalidTransition = fmt.Errorf("invalid status transition")

	// ErrPermissionDenied signals an authorization failure that is not the
	// user's fault, e.g. a delete that a row policy silently blocked.
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrUnauthenticated  = fmt.Errorf("session expired, please log in again")
	ErrTokenExpired     = fmt.Errorf("token expired")
	// ErrSessionRevoked means the session user no longer exists; clients
	// must drop their local session.
	ErrSessionRevoked = fmt.Errorf("session revoked")

	ErrUnsupportedProvider = fmt.Errorf("unsupported provider")
	ErrStateMismatch       = fmt.Errorf("oauth state mismatch")
	ErrStateExpired        = fmt.Errorf("oauth state expired")
	// ErrProviderAPI wraps non-success answers of Stripe or Google APIs.
	ErrProviderAPI = fmt.Errorf("provider API error")
)

// FieldError is a single violated rule, keyed by field name.
type FieldError struct {
	Field   string `json:"field"`
	Label   string `json:"label"`
	Message string `json:"message"`
}

// ValidationError collects every violated field of one input.
type ValidationError struct {
	Fields []FieldError
}

func (v *ValidationError) Error() string {
	msgs := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Label, f.Message))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

// Unwrap makes validation errors match ErrInvalidInput.
func (v *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Add records a violation.
func (v *ValidationError) Add(field, label, message string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Label: label, Message: message})
}

// Has reports whether field was recorded as violated.
func (v *ValidationError) Has(field string) bool {
	for _, f := range v.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// OrNil returns v when it holds violations and nil otherwise.
func (v *ValidationError) OrNil() error {
	if len(v.Fields) == 0 {
		return nil
	}
	return v
}
