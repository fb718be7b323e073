package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrMissingField      = errors.New("missing field")
	ErrInvalidField      = errors.New("invalid field")
	ErrInvalidPercentage = errors.New("invalid percentage")
	ErrInvalidDecision   = errors.New("invalid decision type")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDisputeResolved   = errors.New("dispute already resolved")
	ErrGateClosed        = errors.New("decision cannot be finalized")
	ErrRoundingDrift     = errors.New("breakdown rounding drift exceeds tolerance")
	ErrNotFound          = errors.New("not found")
)

// FieldError is a validation failure tied to one field of an input record.
// Kind is one of the sentinel errors above and is what errors.Is matches.
type FieldError struct {
	Kind   error
	Field  string
	Detail string
}

func (e *FieldError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Field, e.Kind, e.Detail)
}

func (e *FieldError) Unwrap() error { return e.Kind }

func NewFieldError(kind error, field, detail string) *FieldError {
	return &FieldError{Kind: kind, Field: field, Detail: detail}
}
