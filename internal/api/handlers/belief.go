package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/credobot/credo/internal/domain"
	"github.com/credobot/credo/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type BeliefHandler struct {
	svc        *service.BeliefService
	confidence *service.ConfidenceUpdater
}

func NewBeliefHandler(svc *service.BeliefService, confidence *service.ConfidenceUpdater) *BeliefHandler {
	return &BeliefHandler{svc: svc, confidence: confidence}
}

func personaIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "personaID"))
}

type createBeliefRequest struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary,omitempty"`
	Statement  string   `json:"statement"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags,omitempty"`
}

func (h *BeliefHandler) Create(w http.ResponseWriter, r *http.Request) {
	personaID, err := personaIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}

	var req createBeliefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Statement == "" {
		writeError(w, http.StatusBadRequest, "title and statement are required")
		return
	}

	node, err := h.svc.CreateBelief(r.Context(), personaID, req.Title, req.Summary, req.Statement, req.Confidence, req.Tags)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPersonaNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, domain.ErrConfidenceOutOfRange):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create belief")
		}
		return
	}

	writeJSON(w, http.StatusCreated, node)
}

type createEdgeRequest struct {
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

func (h *BeliefHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var req createEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	source, err := uuid.Parse(req.SourceID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source_id")
		return
	}
	target, err := uuid.Parse(req.TargetID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target_id")
		return
	}

	edge, err := h.svc.CreateEdge(r.Context(), source, target, domain.EdgeRelation(req.Relation), req.Weight)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRelation),
			errors.Is(err, domain.ErrEdgeSelfLoop),
			errors.Is(err, domain.ErrConfidenceOutOfRange):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEdgeEndpointMissing):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create edge")
		}
		return
	}

	writeJSON(w, http.StatusCreated, edge)
}

func (h *BeliefHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	personaID, err := personaIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}

	graph, err := h.svc.GetGraph(r.Context(), personaID)
	if err != nil {
		if errors.Is(err, service.ErrPersonaNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get graph")
		return
	}

	writeJSON(w, http.StatusOK, graph)
}

func (h *BeliefHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	personaID, err := personaIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}
	beliefID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	node, err := h.svc.GetBelief(r.Context(), beliefID, personaID)
	if err != nil {
		if errors.Is(err, service.ErrBeliefNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get belief")
		return
	}

	writeJSON(w, http.StatusOK, node)
}

func (h *BeliefHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	personaID, err := personaIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}
	beliefID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	hist, err := h.svc.GetHistory(r.Context(), beliefID, personaID)
	if err != nil {
		if errors.Is(err, service.ErrBeliefNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get history")
		return
	}

	writeJSON(w, http.StatusOK, hist)
}

type updateConfidenceRequest struct {
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
	UpdatedBy  string  `json:"updated_by,omitempty"`
}

type confidenceResponse struct {
	BeliefID   uuid.UUID `json:"belief_id"`
	Confidence float64   `json:"confidence"`
}

// UpdateConfidence is the manual override: the operator sets an absolute
// value and the change is versioned and audited like any other.
func (h *BeliefHandler) UpdateConfidence(w http.ResponseWriter, r *http.Request) {
	personaID, err := personaIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}
	beliefID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	var req updateConfidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updatedBy := req.UpdatedBy
	if updatedBy == "" {
		updatedBy = "dashboard"
	}

	newConf, err := h.confidence.ManualUpdate(r.Context(), personaID, beliefID, req.Confidence, req.Rationale, updatedBy)
	if err != nil {
		writeConfidenceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, confidenceResponse{BeliefID: beliefID, Confidence: newConf})
}

type nudgeRequest struct {
	Direction string  `json:"direction"`
	Amount    float64 `json:"amount,omitempty"`
}

func (h *BeliefHandler) Nudge(w http.ResponseWriter, r *http.Request) {
	personaID, err := personaIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}
	beliefID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	var req nudgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !service.ValidDirection(req.Direction) {
		writeError(w, http.StatusBadRequest, "direction must be increase or decrease")
		return
	}

	newConf, err := h.confidence.Nudge(r.Context(), personaID, beliefID, service.Direction(req.Direction), req.Amount)
	if err != nil {
		writeConfidenceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, confidenceResponse{BeliefID: beliefID, Confidence: newConf})
}

type lockRequest struct {
	Locked bool `json:"locked"`
}

func (h *BeliefHandler) SetLock(w http.ResponseWriter, r *http.Request) {
	personaID, err := personaIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}
	beliefID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.SetLock(r.Context(), beliefID, personaID, req.Locked); err != nil {
		if errors.Is(err, service.ErrBeliefNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to change lock")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"belief_id": beliefID, "locked": req.Locked})
}

type addEvidenceRequest struct {
	SourceType string `json:"source_type"`
	SourceRef  string `json:"source_ref"`
	Strength   string `json:"strength"`
	Direction  string `json:"direction,omitempty"`
}

// AddEvidence appends an evidence link and, when a direction is given,
// applies the corresponding confidence shift.
func (h *BeliefHandler) AddEvidence(w http.ResponseWriter, r *http.Request) {
	personaID, err := personaIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}
	beliefID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	var req addEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Direction != "" && !service.ValidDirection(req.Direction) {
		writeError(w, http.StatusBadRequest, "direction must be increase or decrease")
		return
	}

	ev := &domain.EvidenceLink{
		BeliefID:   beliefID,
		SourceType: domain.EvidenceSource(req.SourceType),
		SourceRef:  req.SourceRef,
		Strength:   domain.EvidenceStrength(req.Strength),
	}
	if err := h.svc.AddEvidence(r.Context(), ev); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidEvidenceSource),
			errors.Is(err, domain.ErrInvalidStrength):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrBeliefNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to add evidence")
		}
		return
	}

	resp := map[string]any{"evidence": ev}
	if req.Direction != "" {
		newConf, err := h.confidence.ApplyEvidence(r.Context(), personaID, beliefID, ev.Strength, service.Direction(req.Direction), "evidence: "+req.SourceRef)
		if err != nil {
			writeConfidenceError(w, err)
			return
		}
		resp["confidence"] = newConf
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *BeliefHandler) ListEvidence(w http.ResponseWriter, r *http.Request) {
	beliefID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	evidence, err := h.svc.TopEvidence(r.Context(), beliefID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list evidence")
		return
	}
	if evidence == nil {
		evidence = []domain.EvidenceLink{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"evidence": evidence, "count": len(evidence)})
}

func writeConfidenceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrBeliefNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrBeliefLocked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrConfidenceOutOfRange),
		errors.Is(err, domain.ErrInvalidStrength),
		errors.Is(err, service.ErrInvalidDirection):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to update confidence")
	}
}
