package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/analystai/internal/domain"
	"github.com/ashureev/analystai/internal/history"
	"github.com/ashureev/analystai/internal/identity"
)

// ListConversations returns the caller's saved conversations, newest first.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	summaries, err := h.Archive.Summaries(r.Context(), userID)
	if err != nil {
		h.writeFailure(w, r, err, "Failed to load conversations.")
		return
	}
	JSON(w, http.StatusOK, summaries)
}

// GetConversation returns one saved conversation of the caller.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	conv, err := h.Archive.Load(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, r, err, "Failed to load conversation.")
		return
	}
	JSON(w, http.StatusOK, conv)
}

type saveRequest struct {
	Title     string                 `json:"title"`
	Messages  []domain.Message       `json:"messages"`
	Documents *domain.DocumentBundle `json:"documents"`
}

// SaveConversation stores a conversation driven by a client-side session.
func (h *Handler) SaveConversation(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	for _, m := range req.Messages {
		if !m.Role.Valid() {
			Error(w, http.StatusBadRequest, "Unknown message role: "+string(m.Role))
			return
		}
	}

	userID := identity.UserIDFromContext(r.Context())
	id, err := h.Archive.Save(r.Context(), userID, history.Record{
		Title:     req.Title,
		Messages:  req.Messages,
		Documents: req.Documents,
	})
	if err != nil {
		h.writeFailure(w, r, err, "Failed to save conversation.")
		return
	}
	JSON(w, http.StatusCreated, map[string]string{"id": id})
}
