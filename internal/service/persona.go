package service

import (
	"context"
	"errors"

	"github.com/credobot/credo/internal/domain"
	"github.com/credobot/credo/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrPersonaNotFound = errors.New("persona not found")

// PersonaService owns persona lifecycle for the dashboard.
type PersonaService struct {
	personas domain.PersonaStore
	logger   *zap.Logger
}

func NewPersonaService(personas domain.PersonaStore, logger *zap.Logger) *PersonaService {
	return &PersonaService{personas: personas, logger: logger}
}

func (s *PersonaService) Create(ctx context.Context, name string, cfg domain.PersonaConfig) (*domain.Persona, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &domain.Persona{
		ID:     uuid.New(),
		Name:   name,
		Config: cfg,
	}
	if err := s.personas.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("persona created",
		zap.String("persona_id", p.ID.String()),
		zap.String("name", p.Name))
	return p, nil
}

func (s *PersonaService) Get(ctx context.Context, id uuid.UUID) (*domain.Persona, error) {
	p, err := s.personas.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPersonaNotFound
	}
	return p, err
}

func (s *PersonaService) List(ctx context.Context) ([]domain.Persona, error) {
	return s.personas.List(ctx)
}

func (s *PersonaService) UpdateConfig(ctx context.Context, id uuid.UUID, cfg domain.PersonaConfig) (*domain.Persona, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := s.personas.UpdateConfig(ctx, id, cfg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPersonaNotFound
		}
		return nil, err
	}
	return s.personas.GetByID(ctx, id)
}

// Delete removes the persona and, through cascading foreign keys, its whole
// belief graph, stance history, interaction log and drafts.
func (s *PersonaService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.personas.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrPersonaNotFound
	}
	if err == nil {
		s.logger.Info("persona deleted", zap.String("persona_id", id.String()))
	}
	return err
}
