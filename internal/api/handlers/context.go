package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/credobot/credo/internal/domain"
	"github.com/credobot/credo/internal/service"
	"github.com/credobot/credo/internal/store"
)

// ContextHandler previews exactly what the agent would feed the LLM for a
// given thread, which makes budget and retrieval behavior inspectable.
type ContextHandler struct {
	retrieval *service.RetrievalCoordinator
}

func NewContextHandler(retrieval *service.RetrievalCoordinator) *ContextHandler {
	return &ContextHandler{retrieval: retrieval}
}

type previewContextRequest struct {
	Subreddit   string   `json:"subreddit"`
	ThreadID    string   `json:"thread_id"`
	Text        string   `json:"text"`
	TopicHints  []string `json:"topic_hints,omitempty"`
	TokenBudget *int     `json:"token_budget,omitempty"`
}

func (h *ContextHandler) Preview(w http.ResponseWriter, r *http.Request) {
	personaID, err := personaIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}

	var req previewContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	budget := -1
	if req.TokenBudget != nil {
		budget = *req.TokenBudget
	}

	thread := domain.ThreadContext{
		Subreddit:  req.Subreddit,
		ThreadID:   req.ThreadID,
		Text:       req.Text,
		TopicHints: req.TopicHints,
	}

	assembled, err := h.retrieval.AssembleContext(r.Context(), personaID, thread, budget)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "persona not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to assemble context")
		return
	}

	writeJSON(w, http.StatusOK, assembled)
}
