package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/credobot/credo/internal/domain"
	"github.com/credobot/credo/internal/service"
	"github.com/credobot/credo/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DraftHandler serves the review queue: queued drafts waiting for a human
// decision, plus the rest of the draft log for the dashboard.
type DraftHandler struct {
	drafts domain.DraftStore
	agent  *service.AgentService
}

func NewDraftHandler(drafts domain.DraftStore, agent *service.AgentService) *DraftHandler {
	return &DraftHandler{drafts: drafts, agent: agent}
}

func (h *DraftHandler) List(w http.ResponseWriter, r *http.Request) {
	personaID, err := personaIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}

	status := domain.DraftQueued
	if s := r.URL.Query().Get("status"); s != "" {
		if !domain.ValidDraftStatus(s) {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		status = domain.DraftStatus(s)
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	drafts, err := h.drafts.ListByStatus(r.Context(), personaID, status, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list drafts")
		return
	}
	if drafts == nil {
		drafts = []domain.Draft{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts, "count": len(drafts)})
}

func (h *DraftHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	personaID, err := personaIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}
	draftID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid draft id")
		return
	}

	draft, err := h.drafts.GetByID(r.Context(), draftID, personaID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "draft not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get draft")
		return
	}

	writeJSON(w, http.StatusOK, draft)
}

// Publish posts a queued draft to Reddit after human approval.
func (h *DraftHandler) Publish(w http.ResponseWriter, r *http.Request) {
	personaID, err := personaIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}
	draftID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid draft id")
		return
	}

	draft, err := h.agent.PublishDraft(r.Context(), personaID, draftID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "draft not found")
		case errors.Is(err, service.ErrDraftNotQueued):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to publish draft")
		}
		return
	}

	writeJSON(w, http.StatusOK, draft)
}

type rejectDraftRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *DraftHandler) Reject(w http.ResponseWriter, r *http.Request) {
	personaID, err := personaIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}
	draftID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid draft id")
		return
	}

	var req rejectDraftRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "rejected by review"
	}

	if err := h.agent.RejectDraft(r.Context(), personaID, draftID, req.Reason); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "draft not found")
		case errors.Is(err, service.ErrDraftNotQueued):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to reject draft")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
