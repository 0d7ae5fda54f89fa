// File: internal/handlers/faq_handler.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-rigadvisor/internal/faq"
)

type FAQHandler struct {
	accordion *faq.Accordion
}

func NewFAQHandler(accordion *faq.Accordion) *FAQHandler {
	return &FAQHandler{accordion: accordion}
}

func (h *FAQHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"open":  h.accordion.OpenID(),
		"items": h.accordion.Panels(),
	})
}

// Toggle opens the item and closes the rest, or closes it when it was open.
func (h *FAQHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	open, err := h.accordion.Toggle(mux.Vars(r)["id"])
	if errors.Is(err, faq.ErrUnknownItem) {
		writeError(w, "Unknown FAQ item", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"open":  open,
		"items": h.accordion.Panels(),
	})
}
