package handlers_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-rigadvisor/internal/domain"
	"github.com/iyunix/go-rigadvisor/internal/faq"
	"github.com/iyunix/go-rigadvisor/internal/handlers"
	"github.com/iyunix/go-rigadvisor/internal/middleware"
	"github.com/iyunix/go-rigadvisor/internal/presenter"
	"github.com/iyunix/go-rigadvisor/internal/repository"
	"github.com/iyunix/go-rigadvisor/internal/repository/attempt"
	"github.com/iyunix/go-rigadvisor/internal/services"
	"github.com/iyunix/go-rigadvisor/internal/services/suggestion"
	"github.com/iyunix/go-rigadvisor/internal/services/transport"
)

// suggesterFunc adapts a function to presenter.Suggester.
type suggesterFunc func(ctx context.Context, planID string) (string, error)

func (f suggesterFunc) GetSuggestion(ctx context.Context, planID string) (string, error) {
	return f(ctx, planID)
}

func suggestionRouter(s presenter.Suggester) *mux.Router {
	catalog := domain.DefaultCatalog()
	board := presenter.NewBoard(s, catalog.IDs(), &services.NoOpLogger{})
	h := handlers.NewSuggestionHandler(board, catalog, &services.NoOpLogger{})

	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.HandleFunc("/api/plans", h.ListPlans).Methods("GET")
	r.HandleFunc("/api/plans/{plan}/suggestion", h.TriggerSuggestion).Methods("POST")
	r.HandleFunc("/api/plans/{plan}/state", h.GetState).Methods("GET")
	r.HandleFunc("/api/plans/{plan}/events", h.StreamEvents).Methods("GET")
	return r
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) presenter.View {
	t.Helper()
	var v presenter.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestTriggerSuggestion_Success(t *testing.T) {
	var gotID string
	r := suggestionRouter(suggesterFunc(func(ctx context.Context, planID string) (string, error) {
		gotID = transport.RequestIDFromContext(ctx)
		return "Roda " + planID, nil
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/plans/basic/suggestion", nil)
	req.Header.Set(middleware.RequestIDHeader, "trace-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	assert.Equal(t, presenter.StateSucceeded, v.State)
	assert.Equal(t, "Roda basic", v.Text)
	assert.True(t, v.ShowResult)
	assert.False(t, v.ShowTrigger)
	assert.Equal(t, "trace-1", gotID)

	state := do(t, r, http.MethodGet, "/api/plans/basic/state")
	assert.Equal(t, presenter.StateSucceeded, decodeView(t, state).State)
}

func TestTriggerSuggestion_FailureShowsFallback(t *testing.T) {
	r := suggestionRouter(suggesterFunc(func(ctx context.Context, planID string) (string, error) {
		return "", &suggestion.Error{Kind: suggestion.KindSuggestionUnavailable, PlanID: planID, Message: "exhausted"}
	}))

	rec := do(t, r, http.MethodPost, "/api/plans/pro/suggestion")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	v := decodeView(t, rec)
	assert.Equal(t, presenter.StateFailed, v.State)
	assert.Equal(t, domain.FallbackMessage, v.Text)
	assert.True(t, v.ShowTrigger)
}

func TestTriggerSuggestion_UnknownPlan(t *testing.T) {
	r := suggestionRouter(suggesterFunc(func(ctx context.Context, planID string) (string, error) {
		t.Fatal("no call expected")
		return "", nil
	}))

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/api/plans/ultra/suggestion").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/plans/ultra/state").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/plans/ultra/events").Code)
}

func TestTriggerSuggestion_ConflictWhilePending(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	r := suggestionRouter(suggesterFunc(func(ctx context.Context, planID string) (string, error) {
		close(started)
		<-release
		return "ok", nil
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		do(t, r, http.MethodPost, "/api/plans/mid/suggestion")
	}()
	<-started

	rec := do(t, r, http.MethodPost, "/api/plans/mid/suggestion")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, presenter.StatePending, decodeView(t, rec).State)

	close(release)
	wg.Wait()
}

func TestListPlans(t *testing.T) {
	r := suggestionRouter(suggesterFunc(func(ctx context.Context, planID string) (string, error) { return "x", nil }))

	rec := do(t, r, http.MethodGet, "/api/plans")

	require.Equal(t, http.StatusOK, rec.Code)
	var plans []struct {
		ID       string         `json:"id"`
		Hardware string         `json:"hardware"`
		View     presenter.View `json:"view"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&plans))
	require.Len(t, plans, 3)
	for _, p := range plans {
		assert.NotEmpty(t, p.Hardware)
		assert.Equal(t, presenter.StateIdle, p.View.State)
	}
}

func readEvent(t *testing.T, br *bufio.Reader) presenter.View {
	t.Helper()
	var data string
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" && data != "" {
			break
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	var v presenter.View
	require.NoError(t, json.Unmarshal([]byte(data), &v))
	return v
}

func TestStreamEvents(t *testing.T) {
	r := suggestionRouter(suggesterFunc(func(ctx context.Context, planID string) (string, error) {
		return "streamed", nil
	}))
	server := httptest.NewServer(r)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/plans/basic/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	br := bufio.NewReader(resp.Body)
	assert.Equal(t, presenter.StateIdle, readEvent(t, br).State)

	trigger, err := http.Post(server.URL+"/api/plans/basic/suggestion", "application/json", nil)
	require.NoError(t, err)
	trigger.Body.Close()

	assert.Equal(t, presenter.StatePending, readEvent(t, br).State)
	final := readEvent(t, br)
	assert.Equal(t, presenter.StateSucceeded, final.State)
	assert.Equal(t, "streamed", final.Text)
}

func TestFAQHandler(t *testing.T) {
	h := handlers.NewFAQHandler(faq.NewAccordion([]faq.Item{{ID: "a", Question: "A?"}, {ID: "b", Question: "B?"}}))
	r := mux.NewRouter()
	r.HandleFunc("/api/faq", h.List).Methods("GET")
	r.HandleFunc("/api/faq/{id}/toggle", h.Toggle).Methods("POST")

	type listing struct {
		Open  string `json:"open"`
		Items []struct {
			ID   string `json:"id"`
			Open bool   `json:"open"`
		} `json:"items"`
	}
	read := func(rec *httptest.ResponseRecorder) listing {
		var l listing
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&l))
		return l
	}

	l := read(do(t, r, http.MethodPost, "/api/faq/b/toggle"))
	assert.Equal(t, "b", l.Open)
	assert.False(t, l.Items[0].Open)
	assert.True(t, l.Items[1].Open)

	l = read(do(t, r, http.MethodPost, "/api/faq/a/toggle"))
	assert.Equal(t, "a", l.Open)
	assert.False(t, l.Items[1].Open)

	l = read(do(t, r, http.MethodPost, "/api/faq/a/toggle"))
	assert.Equal(t, "", l.Open)

	assert.Equal(t, "", read(do(t, r, http.MethodGet, "/api/faq")).Open)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/api/faq/zzz/toggle").Code)
}

func TestDiagnosticsHandler(t *testing.T) {
	db, err := repository.Open("file:handlers_diag?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	defer sqlDB.Close()
	repo := attempt.NewGormAttemptRepository(db)
	journal := attempt.NewJournal(repo, &services.NoOpLogger{})
	journal.ObserveAttempt(transport.Attempt{RequestID: "req-9", Index: 1, Outcome: transport.OutcomeRetryable, StatusCode: 503, Err: errors.New("Service Unavailable")})
	journal.ObserveAttempt(transport.Attempt{RequestID: "req-9", Index: 2, Outcome: transport.OutcomeSucceeded, StatusCode: 200})

	h := handlers.NewDiagnosticsHandler(repo, &services.NoOpLogger{})

	rec := do(t, http.HandlerFunc(h.ListAttempts), http.MethodGet, "/api/diagnostics/attempts?request_id=req-9")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		RequestID string                 `json:"request_id"`
		Attempts  []domain.AttemptRecord `json:"attempts"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Attempts, 2)
	assert.Equal(t, 503, body.Attempts[0].StatusCode)
	assert.Equal(t, "succeeded", body.Attempts[1].Outcome)

	rec = do(t, http.HandlerFunc(h.ListAttempts), http.MethodGet, "/api/diagnostics/attempts?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	body.Attempts = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Attempts, 1)
}

type levelLogger struct {
	services.NoOpLogger
	levels []string
}

func (l *levelLogger) Error(msg string, kv ...interface{}) { l.levels = append(l.levels, "error") }
func (l *levelLogger) Warn(msg string, kv ...interface{})  { l.levels = append(l.levels, "warn") }
func (l *levelLogger) Info(msg string, kv ...interface{})  { l.levels = append(l.levels, "info") }

func TestLogFrontendEvent(t *testing.T) {
	logger := &levelLogger{}
	h := handlers.NewLogHandler(logger)

	for _, body := range []string{
		`{"level":"error","message":"fetch failed","context":{"plan":"pro"}}`,
		`{"level":"warn","message":"slow"}`,
		`{"message":"hello"}`,
	} {
		rec := httptest.NewRecorder()
		h.LogFrontendEvent(rec, httptest.NewRequest(http.MethodPost, "/api/log", strings.NewReader(body)))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Equal(t, []string{"error", "warn", "info"}, logger.levels)

	rec := httptest.NewRecorder()
	h.LogFrontendEvent(rec, httptest.NewRequest(http.MethodPost, "/api/log", strings.NewReader(`{"level":"info"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.LogFrontendEvent(rec, httptest.NewRequest(http.MethodPost, "/api/log", strings.NewReader(`nope`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
