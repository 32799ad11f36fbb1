package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/credobot/credo/internal/domain"
	"github.com/credobot/credo/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrEdgeEndpointMissing = errors.New("edge endpoint does not exist for persona")

// BeliefService exposes graph-shaped operations for the dashboard: nodes,
// edges, history, evidence and locks. Confidence movement goes through
// ConfidenceUpdater, not here.
type BeliefService struct {
	beliefs  domain.BeliefStore
	personas domain.PersonaStore
	logger   *zap.Logger
}

func NewBeliefService(beliefs domain.BeliefStore, personas domain.PersonaStore, logger *zap.Logger) *BeliefService {
	return &BeliefService{beliefs: beliefs, personas: personas, logger: logger}
}

// CreateBelief inserts a node with its initial stance in one transaction.
func (s *BeliefService) CreateBelief(ctx context.Context, personaID uuid.UUID, title, summary, statement string, confidence float64, tags []string) (*domain.BeliefNode, error) {
	if _, err := s.personas.GetByID(ctx, personaID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPersonaNotFound
		}
		return nil, err
	}
	if !domain.ValidConfidence(confidence) {
		return nil, fmt.Errorf("%w: %f", domain.ErrConfidenceOutOfRange, confidence)
	}

	node := &domain.BeliefNode{
		ID:                uuid.New(),
		PersonaID:         personaID,
		Title:             title,
		Summary:           summary,
		Tags:              tags,
		CurrentConfidence: confidence,
	}
	initial := domain.NewStance{
		Text:       statement,
		Confidence: confidence,
		Status:     domain.StanceCurrent,
		Rationale:  "initial stance",
	}
	if _, err := s.beliefs.CreateNode(ctx, node, initial); err != nil {
		return nil, err
	}
	s.logger.Info("belief created",
		zap.String("persona_id", personaID.String()),
		zap.String("belief_id", node.ID.String()),
		zap.String("title", title))
	return node, nil
}

func (s *BeliefService) CreateEdge(ctx context.Context, source, target uuid.UUID, relation domain.EdgeRelation, weight float64) (*domain.BeliefEdge, error) {
	edge := &domain.BeliefEdge{
		SourceID: source,
		TargetID: target,
		Relation: relation,
		Weight:   weight,
	}
	if err := edge.Validate(); err != nil {
		return nil, err
	}
	if err := s.beliefs.CreateEdge(ctx, edge); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEdgeEndpointMissing
		}
		return nil, err
	}
	return edge, nil
}

func (s *BeliefService) GetBelief(ctx context.Context, beliefID, personaID uuid.UUID) (*domain.BeliefNode, error) {
	node, err := s.beliefs.GetNode(ctx, beliefID, personaID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBeliefNotFound
	}
	return node, err
}

func (s *BeliefService) GetGraph(ctx context.Context, personaID uuid.UUID) (*domain.BeliefGraph, error) {
	if _, err := s.personas.GetByID(ctx, personaID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPersonaNotFound
		}
		return nil, err
	}
	return s.beliefs.GetGraph(ctx, personaID)
}

// GetHistory returns every stance version for a belief, newest first, with
// the update audit rows interleaved by the caller's choosing.
func (s *BeliefService) GetHistory(ctx context.Context, beliefID, personaID uuid.UUID) (*domain.BeliefHistory, error) {
	hist, err := s.beliefs.GetHistory(ctx, beliefID, personaID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBeliefNotFound
	}
	return hist, err
}

// ReviseStance replaces the active stance text without going through the
// evidence math. The old stance is deprecated, never rewritten.
func (s *BeliefService) ReviseStance(ctx context.Context, beliefID, personaID uuid.UUID, text, rationale string, confidence float64) (*domain.StanceVersion, error) {
	if !domain.ValidConfidence(confidence) {
		return nil, fmt.Errorf("%w: %f", domain.ErrConfidenceOutOfRange, confidence)
	}
	sv, err := s.beliefs.MutateStance(ctx, beliefID, personaID, func(node *domain.BeliefNode, active *domain.StanceVersion) (domain.NewStance, error) {
		if active != nil && active.Status == domain.StanceLocked {
			return domain.NewStance{}, ErrBeliefLocked
		}
		return domain.NewStance{
			Text:       text,
			Confidence: confidence,
			Status:     domain.StanceCurrent,
			Rationale:  rationale,
		}, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBeliefNotFound
	}
	return sv, err
}

// SetLock freezes or unfreezes the active stance. Locked beliefs reject all
// confidence mutations until unlocked.
func (s *BeliefService) SetLock(ctx context.Context, beliefID, personaID uuid.UUID, locked bool) error {
	err := s.beliefs.SetLock(ctx, beliefID, personaID, locked)
	if errors.Is(err, store.ErrNotFound) {
		return ErrBeliefNotFound
	}
	if err == nil {
		s.logger.Info("belief lock changed",
			zap.String("belief_id", beliefID.String()),
			zap.Bool("locked", locked))
	}
	return err
}

func (s *BeliefService) AddEvidence(ctx context.Context, ev *domain.EvidenceLink) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	err := s.beliefs.AppendEvidence(ctx, ev)
	if errors.Is(err, store.ErrNotFound) {
		return ErrBeliefNotFound
	}
	return err
}

func (s *BeliefService) TopEvidence(ctx context.Context, beliefID uuid.UUID, limit int) ([]domain.EvidenceLink, error) {
	return s.beliefs.TopEvidence(ctx, beliefID, limit)
}
