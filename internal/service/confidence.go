package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/credobot/credo/internal/domain"
	"github.com/credobot/credo/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// EvidenceGain scales the per-strength log-odds deltas, giving
	// effective shifts of 0.25 / 0.50 / 1.00 for weak / moderate / strong.
	EvidenceGain = 5.0

	DefaultNudgeAmount = 0.05

	// Epsilon keeps confidence strictly inside (0,1) ahead of the
	// log-odds division.
	Epsilon = 1e-6

	// HighConfidenceBar is the threshold above which a belief resists
	// automatic conflict adjustment unless the evidence is strong.
	HighConfidenceBar = 0.8
)

var (
	ErrBeliefNotFound   = errors.New("belief not found")
	ErrBeliefLocked     = errors.New("belief stance is locked")
	ErrInvalidDirection = errors.New("direction must be increase or decrease")
)

// Direction of an evidence application.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

func (d Direction) sign() float64 {
	if d == DirectionDecrease {
		return -1
	}
	return 1
}

func ValidDirection(d string) bool {
	switch Direction(d) {
	case DirectionIncrease, DirectionDecrease:
		return true
	}
	return false
}

// Logit maps probability to log-odds, treating exactly 0 and 1 as epsilon
// and 1-epsilon so the result stays finite.
func Logit(p float64) float64 {
	if p < Epsilon {
		p = Epsilon
	}
	if p > 1-Epsilon {
		p = 1 - Epsilon
	}
	return math.Log(p / (1 - p))
}

func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// ApplyLogOddsDelta shifts confidence by delta in logit space. Identical
// evidence moves mid-range beliefs far more than beliefs near 0 or 1, which
// is the smoothing that prevents runaway certainty from a single signal.
func ApplyLogOddsDelta(confidence, delta float64) float64 {
	return clamp01(Sigmoid(Logit(confidence) + delta))
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// ConfidenceUpdater is the only code path that changes a belief's
// confidence. Every outcome, including rejections, lands in the audit log.
type ConfidenceUpdater struct {
	beliefs domain.BeliefStore
	logger  *zap.Logger
}

func NewConfidenceUpdater(beliefs domain.BeliefStore, logger *zap.Logger) *ConfidenceUpdater {
	return &ConfidenceUpdater{beliefs: beliefs, logger: logger}
}

// ApplyEvidence shifts a belief's confidence by the strength's log-odds
// delta and commits a new current stance. Locked beliefs reject with
// ErrBeliefLocked, mutate nothing, and still append exactly one audit row.
func (u *ConfidenceUpdater) ApplyEvidence(ctx context.Context, personaID, beliefID uuid.UUID, strength domain.EvidenceStrength, direction Direction, reason string) (float64, error) {
	if !domain.ValidEvidenceStrength(string(strength)) {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidStrength, strength)
	}
	if !ValidDirection(string(direction)) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	delta := direction.sign() * strength.LogOddsDelta() * EvidenceGain
	return u.apply(ctx, personaID, beliefID, delta, domain.TriggerEvidence, reason, "agent")
}

// ConflictOutcome says what ApplyConflict did with the belief.
type ConflictOutcome struct {
	// Adjusted is true when the belief's confidence moved.
	Adjusted      bool
	NewConfidence float64
	// HighConfidence reports whether the belief sat above the bar before
	// any adjustment; the gate queues such changes for human sign-off.
	HighConfidence bool
	// ReviseDraft signals the caller to rework the draft instead: the
	// belief was held too strongly for the evidence and nothing changed
	// (no stance, no audit).
	ReviseDraft bool
}

// ApplyConflict resolves a consistency-check conflict against a belief.
// High-confidence beliefs (> 0.8) only yield to strong counter-evidence;
// weaker signals bounce back to the caller as a revise-draft request.
func (u *ConfidenceUpdater) ApplyConflict(ctx context.Context, personaID, beliefID uuid.UUID, reason string, strength domain.EvidenceStrength) (*ConflictOutcome, error) {
	node, err := u.beliefs.GetNode(ctx, beliefID, personaID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBeliefNotFound
		}
		return nil, err
	}

	high := node.CurrentConfidence > HighConfidenceBar
	if high && strength != domain.StrengthStrong {
		return &ConflictOutcome{ReviseDraft: true, HighConfidence: true}, nil
	}

	delta := -strength.LogOddsDelta() * EvidenceGain
	newConf, err := u.apply(ctx, personaID, beliefID, delta, domain.TriggerConflict, reason, "agent")
	if err != nil {
		return nil, err
	}
	return &ConflictOutcome{Adjusted: true, NewConfidence: newConf, HighConfidence: high}, nil
}

// ManualUpdate sets confidence directly, bypassing the log-odds formula.
// Still lock-checked, still audited.
func (u *ConfidenceUpdater) ManualUpdate(ctx context.Context, personaID, beliefID uuid.UUID, newConfidence float64, rationale, updatedBy string) (float64, error) {
	if !domain.ValidConfidence(newConfidence) {
		return 0, fmt.Errorf("%w: %f", domain.ErrConfidenceOutOfRange, newConfidence)
	}
	return u.commit(ctx, personaID, beliefID, domain.TriggerManual, rationale, updatedBy,
		func(old float64) float64 { return newConfidence })
}

// Nudge applies a small additive correction, clamped to [0,1].
func (u *ConfidenceUpdater) Nudge(ctx context.Context, personaID, beliefID uuid.UUID, direction Direction, amount float64) (float64, error) {
	if !ValidDirection(string(direction)) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	if amount <= 0 {
		amount = DefaultNudgeAmount
	}
	reason := fmt.Sprintf("nudge %s by %.3f", direction, amount)
	return u.commit(ctx, personaID, beliefID, domain.TriggerNudge, reason, "dashboard",
		func(old float64) float64 { return clamp01(old + direction.sign()*amount) })
}

func (u *ConfidenceUpdater) apply(ctx context.Context, personaID, beliefID uuid.UUID, logOddsDelta float64, trigger domain.UpdateTrigger, reason, updatedBy string) (float64, error) {
	return u.commit(ctx, personaID, beliefID, trigger, reason, updatedBy,
		func(old float64) float64 { return ApplyLogOddsDelta(old, logOddsDelta) })
}

// commit runs the read-modify-write under the store's per-belief lock and
// writes the audit row for both accepted and locked-rejected outcomes.
func (u *ConfidenceUpdater) commit(ctx context.Context, personaID, beliefID uuid.UUID, trigger domain.UpdateTrigger, reason, updatedBy string, next func(old float64) float64) (float64, error) {
	var oldConf, newConf float64

	_, err := u.beliefs.MutateStance(ctx, beliefID, personaID, func(node *domain.BeliefNode, active *domain.StanceVersion) (domain.NewStance, error) {
		if active == nil {
			return domain.NewStance{}, ErrBeliefNotFound
		}
		oldConf = active.Confidence
		if active.Status == domain.StanceLocked {
			return domain.NewStance{}, ErrBeliefLocked
		}
		newConf = next(oldConf)
		return domain.NewStance{
			Text:       active.Text,
			Confidence: newConf,
			Status:     domain.StanceCurrent,
			Rationale:  reason,
		}, nil
	})

	switch {
	case err == nil:
		u.audit(ctx, beliefID, oldConf, newConf, reason, trigger, updatedBy)
		u.logger.Debug("confidence updated",
			zap.String("belief_id", beliefID.String()),
			zap.String("trigger", string(trigger)),
			zap.Float64("old_confidence", oldConf),
			zap.Float64("new_confidence", newConf))
		return newConf, nil

	case errors.Is(err, ErrBeliefLocked):
		// Rejection is still one audit row, old == new.
		u.audit(ctx, beliefID, oldConf, oldConf, "locked: "+reason, trigger, updatedBy)
		return oldConf, ErrBeliefLocked

	case errors.Is(err, store.ErrNotFound), errors.Is(err, ErrBeliefNotFound):
		return 0, ErrBeliefNotFound

	default:
		return 0, err
	}
}

func (u *ConfidenceUpdater) audit(ctx context.Context, beliefID uuid.UUID, oldVal, newVal float64, reason string, trigger domain.UpdateTrigger, updatedBy string) {
	rec := &domain.BeliefUpdateRecord{
		BeliefID:    beliefID,
		OldValue:    oldVal,
		NewValue:    newVal,
		Reason:      reason,
		TriggerType: trigger,
		UpdatedBy:   updatedBy,
	}
	if err := u.beliefs.AppendAudit(ctx, rec); err != nil {
		u.logger.Error("failed to append audit record",
			zap.String("belief_id", beliefID.String()),
			zap.Error(err))
	}
}
