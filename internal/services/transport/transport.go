// File: internal/services/transport/transport.go
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 10 * 1024 * 1024

// Logger is the subset of services.Logger the transport needs.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Response is a parsed 2xx answer.
type Response struct {
	StatusCode int
	Body       json.RawMessage
	Attempts   int
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// RetryingTransport POSTs JSON to one endpoint with bounded exponential backoff.
// It holds no per-call state, so concurrent Sends are independent loops.
type RetryingTransport struct {
	config    *Config
	client    *http.Client
	retrier   *Retrier
	logger    Logger
	observers []Observer
	now       func() time.Time
}

type Option func(*RetryingTransport)

func WithHTTPClient(c *http.Client) Option {
	return func(t *RetryingTransport) {
		t.client = c
	}
}

func WithRetrierOptions(opts ...RetrierOption) Option {
	return func(t *RetryingTransport) {
		t.retrier = NewRetrier(t.config.Retry, opts...)
	}
}

func WithObserver(o Observer) Option {
	return func(t *RetryingTransport) {
		if o != nil {
			t.observers = append(t.observers, o)
		}
	}
}

func NewRetryingTransport(config *Config, logger Logger, opts ...Option) (*RetryingTransport, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	t := &RetryingTransport{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		retrier: NewRetrier(config.Retry),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Send encodes body, POSTs it, and retries retryable failures on the backoff schedule.
// Every failure that ends the loop is returned as a *TransportError.
func (t *RetryingTransport) Send(ctx context.Context, body interface{}) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &TransportError{Type: ErrTypeEncoding, Message: "invalid payload", Cause: err}
	}
	target, err := t.config.requestURL()
	if err != nil {
		return nil, &TransportError{Type: ErrTypeEncoding, Message: "invalid endpoint", Cause: err}
	}

	requestID := RequestIDFromContext(ctx)
	var (
		resp     *Response
		last     Attempt
		reported bool
	)

	attempts, err := t.retrier.Do(ctx, func(ctx context.Context, n int) error {
		var result *Response
		last, result = t.try(ctx, n, target, payload)
		last.RequestID = requestID
		reported = false

		switch last.Outcome {
		case OutcomeSucceeded:
			resp = result
			t.report(last)
			reported = true
			return nil
		case OutcomeTerminal:
			return Stop(last.Err)
		default:
			return last.Err
		}
	}, func(n int, err error, delay time.Duration) {
		last.Backoff = delay
		t.logger.Warn("attempt failed, retrying",
			"request_id", requestID,
			"attempt", n,
			"max_attempts", t.retrier.Config().MaxAttempts,
			"delay_ms", delay.Milliseconds(),
			"error", err)
		t.report(last)
		reported = true
	})

	if err == nil {
		resp.Attempts = attempts
		if attempts > 1 {
			t.logger.Info("request succeeded after retry", "request_id", requestID, "attempts", attempts)
		}
		return resp, nil
	}

	if !reported {
		t.report(last)
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		t.logger.Warn("request abandoned", "request_id", requestID, "attempts", attempts, "error", err)
		return nil, &TransportError{Type: ErrTypeCanceled, Attempt: attempts, Message: "context ended", Cause: err}
	}

	if last.Outcome == OutcomeTerminal {
		t.logger.Error("request failed without retry", "request_id", requestID, "attempt", attempts, "error", err)
		return nil, err
	}

	t.logger.Error("request failed after all attempts", "request_id", requestID, "attempts", attempts, "error", err)
	return nil, NewExhaustedError(attempts, err)
}

// try performs a single network call and classifies it.
func (t *RetryingTransport) try(ctx context.Context, n int, target string, payload []byte) (Attempt, *Response) {
	a := Attempt{Index: n, StartedAt: t.now()}
	fail := func(typ ErrorType, outcome Outcome, code int, msg string, cause error) (Attempt, *Response) {
		a.Outcome = outcome
		a.StatusCode = code
		a.ErrorType = typ
		a.Err = &TransportError{Type: typ, Code: code, Attempt: n, Message: msg, Cause: cause}
		a.Elapsed = t.now().Sub(a.StartedAt)
		return a, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fail(ErrTypeEncoding, OutcomeTerminal, 0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := t.client.Do(req)
	if err != nil {
		return fail(ErrTypeNetwork, OutcomeRetryable, 0, "request failed", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return fail(ErrTypeNetwork, OutcomeRetryable, httpResp.StatusCode, "failed to read response", err)
	}

	typ, outcome := ClassifyStatus(httpResp.StatusCode, t.config.Retry.RetryClientErrors)
	if outcome != OutcomeSucceeded {
		return fail(typ, outcome, httpResp.StatusCode, statusMessage(httpResp.StatusCode, raw), nil)
	}

	var body json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return fail(ErrTypeMalformedBody, OutcomeTerminal, httpResp.StatusCode, "response body is not JSON", err)
	}

	a.Outcome = OutcomeSucceeded
	a.StatusCode = httpResp.StatusCode
	a.Elapsed = t.now().Sub(a.StartedAt)
	t.logger.Debug("attempt succeeded", "request_id", RequestIDFromContext(ctx), "attempt", n, "status", httpResp.StatusCode)
	return a, &Response{StatusCode: httpResp.StatusCode, Body: body}
}

func (t *RetryingTransport) report(a Attempt) {
	for _, o := range t.observers {
		o.ObserveAttempt(a)
	}
}

func statusMessage(code int, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if msg == "" {
		return http.StatusText(code)
	}
	return http.StatusText(code) + ": " + msg
}
