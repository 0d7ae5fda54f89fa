// File: internal/services/suggestion/openai_backend.go
package suggestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/iyunix/go-rigadvisor/internal/domain"
	"github.com/iyunix/go-rigadvisor/internal/services/transport"
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Retry   transport.RetryConfig
}

func (c *OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Model == "" {
		return fmt.Errorf("OPENAI_MODEL is required")
	}
	return c.Retry.Validate()
}

// OpenAIBackend sends the same prompt to an OpenAI-compatible chat endpoint.
// Retries follow the transport rules: same schedule, same status classification.
type OpenAIBackend struct {
	config    *OpenAIConfig
	client    *openai.Client
	retrier   *transport.Retrier
	logger    transport.Logger
	observers []transport.Observer
}

func NewOpenAIBackend(config *OpenAIConfig, logger transport.Logger, observers []transport.Observer, opts ...transport.RetrierOption) (*OpenAIBackend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	return &OpenAIBackend{
		config:    config,
		client:    openai.NewClientWithConfig(clientConfig),
		retrier:   transport.NewRetrier(config.Retry, opts...),
		logger:    logger,
		observers: observers,
	}, nil
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: b.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: prompt.UserContent},
		},
	}
	requestID := transport.RequestIDFromContext(ctx)

	var (
		reply    string
		last     transport.Attempt
		reported bool
	)
	attempts, err := b.retrier.Do(ctx, func(ctx context.Context, n int) error {
		last = transport.Attempt{RequestID: requestID, Index: n, StartedAt: time.Now()}
		reported = false
		resp, err := b.client.CreateChatCompletion(ctx, req)
		last.Elapsed = time.Since(last.StartedAt)
		if err != nil {
			typ, outcome, code := b.classify(err)
			last.Outcome, last.ErrorType, last.StatusCode = outcome, typ, code
			last.Err = &transport.TransportError{Type: typ, Code: code, Attempt: n, Message: "chat completion failed", Cause: err}
			if outcome == transport.OutcomeTerminal {
				return transport.Stop(last.Err)
			}
			return last.Err
		}

		last.Outcome, last.StatusCode = transport.OutcomeSucceeded, http.StatusOK
		b.report(last)
		reported = true
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return transport.Stop(fmt.Errorf("%w: empty completion", ErrInvalidResponseShape))
		}
		reply = resp.Choices[0].Message.Content
		return nil
	}, func(n int, err error, delay time.Duration) {
		last.Backoff = delay
		b.report(last)
		reported = true
		b.logger.Warn("attempt failed, retrying", "request_id", requestID, "attempt", n, "delay_ms", delay.Milliseconds(), "error", err)
	})

	if err != nil && !reported {
		b.report(last)
	}

	switch {
	case err == nil:
		return reply, nil
	case errors.Is(err, ErrInvalidResponseShape):
		return "", err
	case ctx.Err() != nil:
		return "", &transport.TransportError{Type: transport.ErrTypeCanceled, Attempt: attempts, Message: "context ended", Cause: err}
	case last.Outcome == transport.OutcomeTerminal:
		return "", err
	default:
		return "", transport.NewExhaustedError(attempts, err)
	}
}

// classify maps a client error onto the transport taxonomy. The client only
// decodes bodies of successful responses, so a decode error means a 2xx that is not JSON.
func (b *OpenAIBackend) classify(err error) (transport.ErrorType, transport.Outcome, int) {
	var (
		apiErr    *openai.APIError
		reqErr    *openai.RequestError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	code := 0
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		code = reqErr.HTTPStatusCode
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return transport.ErrTypeMalformedBody, transport.OutcomeTerminal, 0
	}
	if code == 0 {
		return transport.ErrTypeNetwork, transport.OutcomeRetryable, 0
	}
	typ, outcome := transport.ClassifyStatus(code, b.config.Retry.RetryClientErrors)
	return typ, outcome, code
}

func (b *OpenAIBackend) report(a transport.Attempt) {
	for _, o := range b.observers {
		o.ObserveAttempt(a)
	}
}
