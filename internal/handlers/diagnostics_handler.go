// File: internal/handlers/diagnostics_handler.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/iyunix/go-rigadvisor/internal/repository/attempt"
)

type DiagnosticsHandler struct {
	attempts attempt.AttemptRepository
	logger   Logger
}

func NewDiagnosticsHandler(attempts attempt.AttemptRepository, logger Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{attempts: attempts, logger: logger}
}

// ListAttempts returns the journal for one request_id, or the most recent attempts.
func (h *DiagnosticsHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if requestID := query.Get("request_id"); requestID != "" {
		records, err := h.attempts.FindByRequestID(r.Context(), requestID)
		if err != nil {
			h.logger.Error("failed to read attempt journal", "request_id", requestID, "error", err)
			writeError(w, "Failed to retrieve attempts", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"request_id": requestID, "attempts": records})
		return
	}

	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit < 1 {
		limit = 50
	}
	records, err := h.attempts.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to read attempt journal", "error", err)
		writeError(w, "Failed to retrieve attempts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attempts": records})
}
