package features

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingField is returned when one or more required inputs are absent.
	ErrMissingField = errors.New("missing field")

	// ErrUnknownCategory is returned when a categorical value is outside its table.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrInvalidNumericValue is returned when a numeric input is not a finite real number.
	ErrInvalidNumericValue = errors.New("invalid numeric value")
)

// MissingFieldError lists the required inputs absent from a payload.
type MissingFieldError struct {
	Missing  []string
	Required []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Missing features. Required: %s", formatFieldList(e.Required))
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// UnknownCategoryError names the categorical field and the rejected value.
type UnknownCategoryError struct {
	Field string
	Value any
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("Invalid categorical value: %s (%v)", e.Field, e.Value)
}

func (e *UnknownCategoryError) Unwrap() error { return ErrUnknownCategory }

// InvalidNumericError names the numeric field and the rejected value.
type InvalidNumericError struct {
	Field string
	Value any
}

func (e *InvalidNumericError) Error() string {
	return fmt.Sprintf("Invalid numeric value: %s (%v)", e.Field, e.Value)
}

func (e *InvalidNumericError) Unwrap() error { return ErrInvalidNumericValue }

// formatFieldList renders names as ['a', 'b'], the form API clients of the
// previous service already parse.
func formatFieldList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = "'" + name + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
