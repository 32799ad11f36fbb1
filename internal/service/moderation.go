package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/credobot/credo/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GateDecision is the terminal outcome of running a draft through the gate.
type GateDecision struct {
	Status domain.DraftStatus
	Reason string
	// AdjustedBeliefs lists beliefs whose confidence moved because of this
	// draft; a non-empty list on a queued decision means the queue entry is
	// waiting for human sign-off of the belief change.
	AdjustedBeliefs []uuid.UUID
}

// ModerationGate decides post / queue / drop for a drafted reply. The gate
// itself never re-enters a terminal state; queued drafts are only moved by
// human review through the dashboard.
type ModerationGate struct {
	llm        domain.LLMClient
	beliefs    domain.BeliefStore
	confidence *ConfidenceUpdater
	logger     *zap.Logger
}

func NewModerationGate(llm domain.LLMClient, beliefs domain.BeliefStore, confidence *ConfidenceUpdater, logger *zap.Logger) *ModerationGate {
	return &ModerationGate{llm: llm, beliefs: beliefs, confidence: confidence, logger: logger}
}

// Decide applies the transition rules in order: content policy, auto-posting
// switch, consistency conflicts. A content-policy failure rejects regardless
// of the consistency result; a strong conflict against a high-confidence
// belief adjusts the belief and queues the draft for sign-off.
func (g *ModerationGate) Decide(ctx context.Context, persona *domain.Persona, draft string, verdict *domain.ConsistencyVerdict) (*GateDecision, error) {
	ok, reason, err := g.llm.CheckContent(ctx, draft)
	if err != nil {
		// Fail safe: an unreachable policy check queues for a human rather
		// than posting unreviewed content.
		g.logger.Warn("content policy check failed, queueing draft",
			zap.String("persona_id", persona.ID.String()),
			zap.Error(err))
		return &GateDecision{Status: domain.DraftQueued, Reason: "content policy check unavailable"}, nil
	}
	if !ok {
		return &GateDecision{Status: domain.DraftRejected, Reason: "content policy: " + reason}, nil
	}

	if !persona.Config.AutoPostingEnabled {
		return &GateDecision{Status: domain.DraftQueued, Reason: "auto-posting disabled"}, nil
	}

	if verdict == nil || verdict.IsConsistent || len(verdict.Conflicts) == 0 {
		return &GateDecision{Status: domain.DraftApproved}, nil
	}

	decision := &GateDecision{Status: domain.DraftApproved}
	var reasons []string
	for _, conflict := range verdict.Conflicts {
		outcome, err := g.confidence.ApplyConflict(ctx, persona.ID, conflict.BeliefID, conflict.Reason, verdict.EvidenceStrength)
		if err != nil {
			// A conflict we can't resolve is not grounds to post anyway.
			g.logger.Warn("conflict resolution failed",
				zap.String("belief_id", conflict.BeliefID.String()),
				zap.Error(err))
			decision.Status = domain.DraftQueued
			reasons = append(reasons, fmt.Sprintf("unresolved conflict with belief %s", conflict.BeliefID))
			continue
		}
		switch {
		case outcome.ReviseDraft:
			// The belief held; the draft is the thing that's wrong.
			return &GateDecision{
				Status: domain.DraftRejected,
				Reason: fmt.Sprintf("contradicts held belief %s: %s", conflict.BeliefID, conflict.Reason),
			}, nil
		case outcome.Adjusted:
			decision.AdjustedBeliefs = append(decision.AdjustedBeliefs, conflict.BeliefID)
			// Mid-range beliefs absorb adjustment silently; only a strong
			// hit on a high-confidence belief needs a human to sign off.
			if outcome.HighConfidence && verdict.EvidenceStrength == domain.StrengthStrong {
				decision.Status = domain.DraftQueued
				reasons = append(reasons, fmt.Sprintf("belief %s adjusted, awaiting sign-off", conflict.BeliefID))
			}
		}
	}
	decision.Reason = strings.Join(reasons, "; ")
	return decision, nil
}
