// File: internal/handlers/suggestion_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-rigadvisor/internal/domain"
	"github.com/iyunix/go-rigadvisor/internal/middleware"
	"github.com/iyunix/go-rigadvisor/internal/presenter"
	"github.com/iyunix/go-rigadvisor/internal/services/suggestion"
	"github.com/iyunix/go-rigadvisor/internal/services/transport"
)

// heartbeatInterval keeps idle event streams open through proxies.
const heartbeatInterval = 30 * time.Second

type SuggestionHandler struct {
	board     *presenter.Board
	catalog   *domain.Catalog
	logger    Logger
	heartbeat time.Duration
}

func NewSuggestionHandler(board *presenter.Board, catalog *domain.Catalog, logger Logger) *SuggestionHandler {
	return &SuggestionHandler{board: board, catalog: catalog, logger: logger, heartbeat: heartbeatInterval}
}

type planResponse struct {
	domain.Plan
	View presenter.View `json:"view"`
}

// ListPlans returns every plan with its current view.
func (h *SuggestionHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans := h.catalog.Plans()
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		v, _ := h.board.View(p.ID)
		out = append(out, planResponse{Plan: p, View: v})
	}
	writeJSON(w, http.StatusOK, out)
}

// TriggerSuggestion runs one suggestion call for the plan and answers with the settled view.
func (h *SuggestionHandler) TriggerSuggestion(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["plan"]

	// The call settles the shared view, so it runs to completion even if this client leaves.
	ctx := context.WithoutCancel(r.Context())
	if id := middleware.RequestIDFrom(ctx); id != "" {
		ctx = transport.WithRequestID(ctx, id)
	}
	view, err := h.board.Trigger(ctx, planID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, view)
	case errors.Is(err, presenter.ErrUnknownPlan):
		writeError(w, "Unknown plan", http.StatusNotFound)
	case errors.Is(err, presenter.ErrAlreadyPending):
		writeJSON(w, http.StatusConflict, view)
	default:
		h.logger.Warn("suggestion failed", "plan", planID, "kind", string(suggestion.KindOf(err)), "error", err)
		writeJSON(w, http.StatusBadGateway, view)
	}
}

// GetState returns the current view for the plan.
func (h *SuggestionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	view, ok := h.board.View(mux.Vars(r)["plan"])
	if !ok {
		writeError(w, "Unknown plan", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// StreamEvents sends the current view and then every change as Server-Sent Events.
func (h *SuggestionHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["plan"]
	updates, cancel, err := h.board.Subscribe(planID)
	if err != nil {
		writeError(w, "Unknown plan", http.StatusNotFound)
		return
	}
	defer cancel()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var eventID uint64
	current, _ := h.board.View(planID)
	eventID++
	if err := sendEvent(w, flusher, eventID, "view", current); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case view, open := <-updates:
			if !open {
				return
			}
			eventID++
			if err := sendEvent(w, flusher, eventID, "view", view); err != nil {
				h.logger.Debug("event stream closed", "plan", planID, "error", err)
				return
			}
		}
	}
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, id uint64, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", event, id, payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}
