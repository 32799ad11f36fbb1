package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/credobot/credo/internal/domain"
	"github.com/credobot/credo/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type PersonaHandler struct {
	svc *service.PersonaService
}

func NewPersonaHandler(svc *service.PersonaService) *PersonaHandler {
	return &PersonaHandler{svc: svc}
}

type createPersonaRequest struct {
	Name   string               `json:"name"`
	Config domain.PersonaConfig `json:"config"`
}

func (h *PersonaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	persona, err := h.svc.Create(r.Context(), req.Name, req.Config)
	if err != nil {
		if errors.Is(err, domain.ErrPersonaToneMissing) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create persona")
		return
	}

	writeJSON(w, http.StatusCreated, persona)
}

func (h *PersonaHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}

	persona, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrPersonaNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get persona")
		return
	}

	writeJSON(w, http.StatusOK, persona)
}

type listPersonasResponse struct {
	Personas []domain.Persona `json:"personas"`
	Count    int              `json:"count"`
}

func (h *PersonaHandler) List(w http.ResponseWriter, r *http.Request) {
	personas, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list personas")
		return
	}
	if personas == nil {
		personas = []domain.Persona{}
	}

	writeJSON(w, http.StatusOK, listPersonasResponse{Personas: personas, Count: len(personas)})
}

func (h *PersonaHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}

	var cfg domain.PersonaConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	persona, err := h.svc.UpdateConfig(r.Context(), id, cfg)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPersonaNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, domain.ErrPersonaToneMissing):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update persona")
		}
		return
	}

	writeJSON(w, http.StatusOK, persona)
}

func (h *PersonaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid persona id")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrPersonaNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete persona")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
