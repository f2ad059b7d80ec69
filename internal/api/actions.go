package api

import (
	"net/http"

	"github.com/ashureev/analystai/internal/domain"
	"github.com/ashureev/analystai/internal/identity"
	"github.com/ashureev/analystai/internal/publish"
)

const (
	msgSuggestionsFailed = "Failed to generate suggestions. Please try again."
	msgDocumentsFailed   = "Failed to generate documents. Please try again."
	msgSummaryFailed     = "Failed to summarize requirements. Please try again."
	msgMissingDocuments  = "Missing generated documents to export."
	msgIncompleteDocs    = "Generated documents are incomplete; every section needs content."
	msgExportDisabled    = "Confluence export is not configured."
	msgExportFailed      = "Unable to export documents to Confluence."
	msgInvalidBody       = "Invalid request body."
)

type suggestionsRequest struct {
	PerformanceData string `json:"performanceData"`
}

// Suggestions returns process improvement suggestions for free-text performance data.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	var req suggestionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	suggestions, err := h.Assistant.SuggestImprovements(r.Context(), req.PerformanceData)
	if err != nil {
		h.writeFailure(w, r, err, msgSuggestionsFailed)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"suggestions": suggestions})
}

type documentsRequest struct {
	ConversationText string `json:"conversationText"`
}

// Documents generates the requirements document and analytical artifacts for a transcript.
func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	var req documentsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	bundle, err := h.Synthesizer.Synthesize(r.Context(), req.ConversationText)
	if err != nil {
		h.writeFailure(w, r, err, msgDocumentsFailed)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"documents": bundle})
}

type summaryRequest struct {
	Requirements string `json:"requirements"`
}

// Summary condenses raw requirements into a short summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	summary, err := h.Assistant.SummarizeRequirements(r.Context(), req.Requirements)
	if err != nil {
		h.writeFailure(w, r, err, msgSummaryFailed)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"summary": summary})
}

type exportRequest struct {
	Documents         *domain.DocumentBundle `json:"documents"`
	ConversationTitle string                 `json:"conversationTitle"`
}

type exportResponse struct {
	Success bool           `json:"success"`
	URL     string         `json:"url,omitempty"`
	Action  publish.Action `json:"action,omitempty"`
	Title   string         `json:"title,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Export publishes documents to Confluence, creating or updating the page named by the
// conversation title.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		JSON(w, http.StatusBadRequest, exportResponse{Error: msgInvalidBody})
		return
	}
	if req.Documents == nil {
		JSON(w, http.StatusBadRequest, exportResponse{Error: msgMissingDocuments})
		return
	}
	if err := req.Documents.Validate(); err != nil {
		h.Logger.Info("Export rejected", "user_id", identity.UserIDFromContext(r.Context()), "error", err)
		JSON(w, http.StatusBadRequest, exportResponse{Error: msgIncompleteDocs})
		return
	}
	if h.Publisher == nil {
		JSON(w, http.StatusServiceUnavailable, exportResponse{Error: msgExportDisabled})
		return
	}

	res, err := h.Publisher.Publish(r.Context(), req.Documents, req.ConversationTitle)
	if err != nil {
		h.Logger.Error("Confluence export failed",
			"user_id", identity.UserIDFromContext(r.Context()),
			"error", err)
		if domain.IsPublication(err) {
			JSON(w, http.StatusBadGateway, exportResponse{Error: err.Error()})
			return
		}
		JSON(w, http.StatusInternalServerError, exportResponse{Error: msgExportFailed})
		return
	}

	JSON(w, http.StatusOK, exportResponse{
		Success: true,
		URL:     res.URL,
		Action:  res.Action,
		Title:   res.Title,
	})
}
