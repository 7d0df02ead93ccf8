package pipeline

import (
	"errors"

	"github.com/lacquerai/co2/internal/features"
	"github.com/lacquerai/co2/internal/inference"
)

// ErrorKind classifies a pipeline failure.
type ErrorKind int

const (
	UnexpectedFailure ErrorKind = iota
	MissingField
	UnknownCategory
	InvalidNumericValue
	InferenceFailure
)

func (k ErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing_field"
	case UnknownCategory:
		return "unknown_category"
	case InvalidNumericValue:
		return "invalid_numeric_value"
	case InferenceFailure:
		return "inference_failure"
	default:
		return "unexpected_failure"
	}
}

// IsClientError reports whether the failure was caused by the request.
func (k ErrorKind) IsClientError() bool {
	return k == MissingField || k == UnknownCategory || k == InvalidNumericValue
}

// Classify maps an error returned by Predict to its kind.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, features.ErrMissingField):
		return MissingField
	case errors.Is(err, features.ErrUnknownCategory):
		return UnknownCategory
	case errors.Is(err, features.ErrInvalidNumericValue):
		return InvalidNumericValue
	case errors.Is(err, inference.ErrInferenceFailure):
		return InferenceFailure
	default:
		return UnexpectedFailure
	}
}
