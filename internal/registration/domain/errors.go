package registration

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("registration: not found")
	ErrAlreadyCancelled = errors.New("registration: already cancelled")
	ErrForbidden        = errors.New("registration: forbidden")
	ErrInvalidInput     = errors.New("registration: invalid input")
	ErrNoReceipt        = errors.New("registration: receipt unavailable")
)

// FieldError reports a missing or malformed submission field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("registration: %s %s", e.Field, e.Reason)
}

// Is matches ErrInvalidInput.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidInput
}

func missing(field string) error {
	return &FieldError{Field: field, Reason: "is required"}
}

func invalid(field string) error {
	return &FieldError{Field: field, Reason: "is invalid"}
}

// MissingField reports a required field that was not supplied.
func MissingField(field string) error { return missing(field) }

// InvalidField reports a field whose value was rejected.
func InvalidField(field string) error { return invalid(field) }

// NotPDF reports an upload that is not a PDF document.
func NotPDF(field string) error {
	return &FieldError{Field: field, Reason: "must be a PDF file"}
}
