package suggestion_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iyunix/go-rigadvisor/internal/domain"
	"github.com/iyunix/go-rigadvisor/internal/services"
	"github.com/iyunix/go-rigadvisor/internal/services/suggestion"
	"github.com/iyunix/go-rigadvisor/internal/services/transport"
	"github.com/iyunix/go-rigadvisor/internal/services/transport/transporttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type attemptLog struct {
	mu       sync.Mutex
	attempts []transport.Attempt
}

func (l *attemptLog) ObserveAttempt(a transport.Attempt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, a)
}

func completion(text string) map[string]any {
	choices := []any{}
	if text != "" {
		choices = append(choices, map[string]any{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": text},
			"finish_reason": "stop",
		})
	}
	return map[string]any{"id": "chatcmpl-1", "object": "chat.completion", "model": "gpt-4o-mini", "choices": choices}
}

func chatServer(t *testing.T, calls *atomic.Int32, replies ...reply) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		rep := replies[len(replies)-1]
		if n <= len(replies) {
			rep = replies[n-1]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rep.status)
		_ = json.NewEncoder(w).Encode(rep.body)
	}))
	t.Cleanup(server.Close)
	return server
}

func newOpenAIBackend(t *testing.T, baseURL string, observers ...transport.Observer) (*suggestion.OpenAIBackend, *transporttest.RecordingTimer) {
	t.Helper()
	timer := transporttest.NewRecordingTimer()
	backend, err := suggestion.NewOpenAIBackend(&suggestion.OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: baseURL + "/v1",
		Model:   "gpt-4o-mini",
		Retry:   transport.DefaultRetryConfig(),
	}, &services.NoOpLogger{}, observers, transport.WithTimer(timer.Factory()))
	require.NoError(t, err)
	return backend, timer
}

func TestOpenAIBackend_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := chatServer(t, &calls,
		reply{http.StatusTooManyRequests, map[string]any{"error": map[string]any{"message": "slow down", "type": "rate_limit"}}},
		reply{http.StatusOK, completion("Cyberpunk em 1440p.")},
	)
	log := &attemptLog{}
	backend, timer := newOpenAIBackend(t, server.URL, log)
	svc := suggestion.NewService(domain.DefaultCatalog(), backend, &services.NoOpLogger{},
		suggestion.WithRequestIDs(func() string { return "req-1" }))

	text, err := svc.GetSuggestion(context.Background(), "mid")

	require.NoError(t, err)
	assert.Equal(t, "Cyberpunk em 1440p.", text)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{time.Second}, timer.Delays())

	require.Len(t, log.attempts, 2)
	first := log.attempts[0]
	assert.Equal(t, transport.OutcomeRetryable, first.Outcome)
	assert.Equal(t, http.StatusTooManyRequests, first.StatusCode)
	assert.Equal(t, transport.ErrTypeServerOverload, first.ErrorType)
	assert.Equal(t, time.Second, first.Backoff)
	assert.Equal(t, "req-1", first.RequestID)
	assert.Equal(t, transport.OutcomeSucceeded, log.attempts[1].Outcome)
}

func TestOpenAIBackend_ExhaustsOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := chatServer(t, &calls, reply{http.StatusBadGateway, map[string]any{"error": map[string]any{"message": "upstream"}}})
	backend, timer := newOpenAIBackend(t, server.URL)

	_, err := backend.Generate(context.Background(), domain.Prompt{SystemInstruction: "s", UserContent: "u"})

	require.Error(t, err)
	assert.True(t, transport.IsExhausted(err))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.Delays())
}

func TestOpenAIBackend_EmptyChoicesIsInvalidShape(t *testing.T) {
	var calls atomic.Int32
	server := chatServer(t, &calls, reply{http.StatusOK, completion("")})
	backend, timer := newOpenAIBackend(t, server.URL)
	svc := suggestion.NewService(domain.DefaultCatalog(), backend, &services.NoOpLogger{})

	_, err := svc.GetSuggestion(context.Background(), "basic")

	assert.Equal(t, suggestion.KindInvalidResponseShape, suggestion.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, timer.Delays())
}

func TestOpenAIConfig_Validate(t *testing.T) {
	cfg := &suggestion.OpenAIConfig{Model: "gpt-4o-mini", Retry: transport.DefaultRetryConfig()}
	assert.Error(t, cfg.Validate())

	cfg.APIKey = "sk"
	assert.NoError(t, cfg.Validate())

	cfg.Model = ""
	assert.Error(t, cfg.Validate())
}

func TestOpenAIBackend_NonJSONSuccessIsTerminal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	t.Cleanup(server.Close)
	log := &attemptLog{}
	backend, timer := newOpenAIBackend(t, server.URL, log)
	svc := suggestion.NewService(domain.DefaultCatalog(), backend, &services.NoOpLogger{})

	_, err := svc.GetSuggestion(context.Background(), "basic")

	require.Error(t, err)
	assert.Equal(t, transport.ErrTypeMalformedBody, transport.TypeOf(err))
	assert.False(t, transport.IsExhausted(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, timer.Delays())
	require.Len(t, log.attempts, 1)
	assert.Equal(t, transport.OutcomeTerminal, log.attempts[0].Outcome)
}

func TestOpenAIBackend_CancelledMidCallIsObserved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		cancel()
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)
	log := &attemptLog{}
	backend, timer := newOpenAIBackend(t, server.URL, log)

	_, err := backend.Generate(ctx, domain.Prompt{SystemInstruction: "s", UserContent: "u"})

	require.Error(t, err)
	assert.Equal(t, transport.ErrTypeCanceled, transport.TypeOf(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, timer.Delays())
	require.Len(t, log.attempts, 1)
	assert.Equal(t, transport.ErrTypeNetwork, log.attempts[0].ErrorType)
}
