package fees

import (
	"errors"
	"fmt"
)

var (
	// ErrFeeLookup is matched by every LookupError.
	ErrFeeLookup = errors.New("fees: no rate for classification")
	// ErrInvalidInput is matched by every ValidationError.
	ErrInvalidInput = errors.New("fees: invalid input")
	// ErrNilRateTable is returned when an engine is built without a table.
	ErrNilRateTable = errors.New("fees: nil rate table")
)

// LookupError reports a classification tuple with no rate table entry.
type LookupError struct {
	Author         bool
	Nationality    Nationality
	Category       Category
	ConferenceType ConferenceType
	Phase          Phase
}

func (e *LookupError) Error() string {
	if e.Author {
		return fmt.Sprintf("fees: no author rate for %s/%s", e.Nationality, e.Category)
	}
	return fmt.Sprintf("fees: no rate for %s/%s/%s/%s", e.Nationality, e.Category, e.ConferenceType, e.Phase)
}

// Is lets errors.Is(err, ErrFeeLookup) match.
func (e *LookupError) Is(target error) bool {
	return target == ErrFeeLookup
}

// ValidationError reports a missing or malformed classification field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("fees: %s %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidInput) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func missing(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}

func invalid(field string) error {
	return &ValidationError{Field: field, Reason: "is not a valid value"}
}
