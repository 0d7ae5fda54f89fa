// File: internal/services/suggestion/service.go
package suggestion

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iyunix/go-rigadvisor/internal/domain"
	"github.com/iyunix/go-rigadvisor/internal/services/transport"
)

// Logger is the logging surface the service needs.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Observer is told how each call settled.
type Observer interface {
	ObserveSuggestion(planID string, kind Kind, elapsed time.Duration)
}

// Service turns a plan into a hardware analysis.
// It keeps no per-call state: concurrent calls, even for the same plan, are independent.
type Service struct {
	catalog  *domain.Catalog
	backend  Backend
	logger   Logger
	observer Observer
	newID    func() string
}

type Option func(*Service)

func WithObserver(o Observer) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// WithRequestIDs replaces the uuid generator.
func WithRequestIDs(next func() string) Option {
	return func(s *Service) {
		s.newID = next
	}
}

func NewService(catalog *domain.Catalog, backend Backend, logger Logger, opts ...Option) *Service {
	s := &Service{
		catalog: catalog,
		backend: backend,
		logger:  logger,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetSuggestion returns the generated analysis for planID.
// A request ID already on ctx is reused; otherwise a new one is attached.
// Every failure is a *Error; InvalidResponseShape is never retried.
func (s *Service) GetSuggestion(ctx context.Context, planID string) (string, error) {
	prompt, ok := s.catalog.PromptFor(planID)
	if !ok {
		s.logger.Error("suggestion requested for unknown plan", "plan", planID)
		return "", &Error{Kind: KindUnknownPlan, PlanID: planID, Message: "no hardware description for plan"}
	}

	requestID := transport.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = s.newID()
		ctx = transport.WithRequestID(ctx, requestID)
	}
	start := time.Now()
	s.logger.Debug("requesting suggestion", "plan", planID, "request_id", requestID, "backend", s.backend.Name())

	text, err := s.backend.Generate(ctx, prompt)
	if err == nil {
		s.observe(planID, "", start)
		s.logger.Info("suggestion ready", "plan", planID, "request_id", requestID, "length", len(text))
		return text, nil
	}

	if errors.Is(err, ErrInvalidResponseShape) {
		s.observe(planID, KindInvalidResponseShape, start)
		s.logger.Error("suggestion response had no text", "plan", planID, "request_id", requestID, "error", err)
		return "", &Error{
			Kind:      KindInvalidResponseShape,
			PlanID:    planID,
			RequestID: requestID,
			Message:   "invalid or empty API response",
			Cause:     err,
		}
	}

	s.observe(planID, KindSuggestionUnavailable, start)
	s.logger.Error("suggestion unavailable", "plan", planID, "request_id", requestID,
		"error_type", string(transport.TypeOf(err)), "error", err)
	return "", &Error{
		Kind:      KindSuggestionUnavailable,
		PlanID:    planID,
		RequestID: requestID,
		Message:   "generation API call failed",
		Cause:     err,
	}
}

func (s *Service) observe(planID string, kind Kind, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveSuggestion(planID, kind, time.Since(start))
	}
}
