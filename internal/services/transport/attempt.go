// File: internal/services/transport/attempt.go
package transport

import (
	"context"
	"net/http"
	"time"
)

// Outcome tags a single attempt.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRetryable Outcome = "retryable"
	OutcomeTerminal  Outcome = "terminal"
)

// Attempt is the record of one try against the endpoint.
type Attempt struct {
	RequestID  string
	Index      int           // 1-based
	Outcome    Outcome
	StatusCode int           // 0 when no response was received
	ErrorType  ErrorType     // empty on success
	Err        error
	Elapsed    time.Duration // Time spent on the call itself
	Backoff    time.Duration // Planned wait before the next attempt; zero when none follows
	StartedAt  time.Time
}

// Observer receives every attempt once it is settled.
type Observer interface {
	ObserveAttempt(a Attempt)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(a Attempt)

func (f ObserverFunc) ObserveAttempt(a Attempt) { f(a) }

// ClassifyStatus maps a response status to its error kind and outcome.
// A 2xx status yields an empty type and OutcomeSucceeded.
func ClassifyStatus(code int, retryClientErrors bool) (ErrorType, Outcome) {
	switch {
	case code >= 200 && code < 300:
		return "", OutcomeSucceeded
	case code == http.StatusTooManyRequests, code >= 500:
		return ErrTypeServerOverload, OutcomeRetryable
	case retryClientErrors:
		return ErrTypeHTTP, OutcomeRetryable
	default:
		return ErrTypeHTTP, OutcomeTerminal
	}
}

type requestIDKey struct{}

// WithRequestID tags ctx so attempts made under it carry the ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
