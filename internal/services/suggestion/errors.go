// File: internal/services/suggestion/errors.go
package suggestion

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnknownPlan           Kind = "UNKNOWN_PLAN"
	KindInvalidResponseShape  Kind = "INVALID_RESPONSE_SHAPE"
	KindSuggestionUnavailable Kind = "SUGGESTION_UNAVAILABLE"
)

// ErrInvalidResponseShape is returned by backends when a successful response carries no text.
var ErrInvalidResponseShape = errors.New("response has no candidate text")

// Error is the only error type GetSuggestion returns.
type Error struct {
	Kind      Kind
	PlanID    string
	RequestID string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("suggestion %s error for plan %q: %s (caused by: %v)", e.Kind, e.PlanID, e.Message, e.Cause)
	}
	return fmt.Sprintf("suggestion %s error for plan %q: %s", e.Kind, e.PlanID, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the Kind of err, or "" when err did not come from this package.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
