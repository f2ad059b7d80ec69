// Package api provides HTTP handlers for the AnalystAI API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/analystai/internal/conversation"
	"github.com/ashureev/analystai/internal/domain"
	"github.com/ashureev/analystai/internal/history"
	"github.com/ashureev/analystai/internal/publish"
	"github.com/ashureev/analystai/internal/store"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

// Assistant runs the single-prompt actions.
type Assistant interface {
	SuggestImprovements(ctx context.Context, currentPerformanceData string) (string, error)
	SummarizeRequirements(ctx context.Context, requirements string) (string, error)
}

// Synthesizer generates a document bundle from a transcript.
type Synthesizer interface {
	Synthesize(ctx context.Context, transcript string) (*domain.DocumentBundle, error)
}

// Publisher exports a bundle to the wiki.
type Publisher interface {
	Publish(ctx context.Context, bundle *domain.DocumentBundle, title string) (*publish.Result, error)
}

// Archive stores per-user conversations.
type Archive interface {
	Save(ctx context.Context, userID string, rec history.Record) (string, error)
	Summaries(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	Load(ctx context.Context, userID, id string) (*domain.Conversation, error)
}

// Deps are the collaborators of Handler. A nil Publisher disables wiki export.
type Deps struct {
	Repo        store.Repository
	Assistant   Assistant
	Synthesizer Synthesizer
	Publisher   Publisher
	Archive     Archive
	Script      *conversation.Script
	Backend     string
	Logger      *slog.Logger
}

// Handler serves the JSON action surface.
type Handler struct {
	Deps
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Script == nil {
		deps.Script = conversation.DefaultScript()
	}
	return &Handler{Deps: deps}
}

// RegisterRoutes registers the API routes. limit wraps the generation actions.
func (h *Handler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)
		r.Get("/script", h.GetScript)

		r.Route("/actions", func(r chi.Router) {
			if limit != nil {
				r.Use(limit)
			}
			r.Post("/suggestions", h.Suggestions)
			r.Post("/documents", h.Documents)
			r.Post("/summary", h.Summary)
			r.Post("/export", h.Export)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.ListConversations)
			r.Post("/", h.SaveConversation)
			r.Get("/{id}", h.GetConversation)
		})
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// temporary is implemented by backend errors that may clear on a later attempt.
type temporary interface {
	Temporary() bool
}

// writeFailure maps a domain error to a status and a user-facing message. Generation
// failures use fallback instead of the internal error text.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		Error(w, http.StatusBadRequest, verr.Message)
	case domain.IsGeneration(err):
		status := http.StatusBadGateway
		var tmp temporary
		if errors.As(err, &tmp) && tmp.Temporary() {
			status = http.StatusServiceUnavailable
		}
		h.Logger.Warn("Generation action failed", "path", r.URL.Path, "error", err)
		Error(w, status, fallback)
	case errors.Is(err, domain.ErrNotFound):
		Error(w, http.StatusNotFound, "Conversation not found.")
	case domain.IsPersistence(err):
		h.Logger.Error("Persistence failed", "path", r.URL.Path, "error", err)
		Error(w, http.StatusInternalServerError, "Failed to access saved conversations.")
	case errors.Is(err, context.Canceled):
		Error(w, http.StatusRequestTimeout, "Request canceled.")
	default:
		h.Logger.Error("Unexpected action failure", "path", r.URL.Path, "error", err)
		Error(w, http.StatusInternalServerError, fallback)
	}
}
