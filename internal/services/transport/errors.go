// File: internal/services/transport/errors.go
package transport

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrTypeNetwork          ErrorType = "NETWORK"
	ErrTypeServerOverload   ErrorType = "SERVER_OVERLOAD"
	ErrTypeHTTP             ErrorType = "HTTP"
	ErrTypeMalformedBody    ErrorType = "MALFORMED_BODY"
	ErrTypeRetriesExhausted ErrorType = "RETRIES_EXHAUSTED"
	ErrTypeEncoding         ErrorType = "ENCODING"
	ErrTypeCanceled         ErrorType = "CANCELED"
)

// TransportError is the only error type Send returns.
type TransportError struct {
	Type    ErrorType
	Code    int // HTTP status, when one was received
	Attempt int // Attempt that produced the error; for RetriesExhausted, the attempts made
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport %s error on attempt %d: %s (caused by: %v)",
			e.Type, e.Attempt, e.Message, e.Cause)
	}
	return fmt.Sprintf("transport %s error on attempt %d: %s", e.Type, e.Attempt, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Last returns the failure that ended the loop, looking through RetriesExhausted.
func (e *TransportError) Last() *TransportError {
	if e.Type != ErrTypeRetriesExhausted {
		return e
	}
	var inner *TransportError
	if errors.As(e.Cause, &inner) {
		return inner
	}
	return e
}

func NewExhaustedError(attempts int, last error) *TransportError {
	return &TransportError{
		Type:    ErrTypeRetriesExhausted,
		Attempt: attempts,
		Message: "attempt budget spent",
		Cause:   last,
	}
}

// IsExhausted reports whether err ended because every attempt failed.
func IsExhausted(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Type == ErrTypeRetriesExhausted
}

// TypeOf returns the ErrorType of the failure that ended the loop, or "" for foreign errors.
func TypeOf(err error) ErrorType {
	var te *TransportError
	if !errors.As(err, &te) {
		return ""
	}
	return te.Last().Type
}
