package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPersonaToneMissing    = errors.New("persona config tone is required")
	ErrConfidenceOutOfRange  = errors.New("confidence must be within [0,1]")
	ErrInvalidRelation       = errors.New("invalid edge relation")
	ErrEdgeSelfLoop          = errors.New("edge source and target must differ")
	ErrInvalidEvidenceSource = errors.New("invalid evidence source type")
	ErrInvalidStrength       = errors.New("invalid evidence strength")
)

// BeliefNode is one vertex of a persona's belief graph. CurrentConfidence is
// a cached copy of the active stance's confidence; the store keeps the two
// in sync transactionally and nothing else may write it.
type BeliefNode struct {
	ID                uuid.UUID `json:"id"`
	PersonaID         uuid.UUID `json:"persona_id"`
	Title             string    `json:"title"`
	Summary           string    `json:"summary,omitempty"`
	CurrentConfidence float64   `json:"current_confidence"`
	Tags              []string  `json:"tags,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// EdgeRelation is the directed relation type between two belief nodes.
type EdgeRelation string

const (
	RelationSupports    EdgeRelation = "supports"
	RelationContradicts EdgeRelation = "contradicts"
	RelationDependsOn   EdgeRelation = "depends_on"
	RelationEvidenceFor EdgeRelation = "evidence_for"
)

func ValidEdgeRelation(r string) bool {
	switch EdgeRelation(r) {
	case RelationSupports, RelationContradicts, RelationDependsOn, RelationEvidenceFor:
		return true
	}
	return false
}

// BeliefEdge is a directed, weighted relation between two nodes of the same
// persona. Self-loops are invalid; deleting either endpoint cascades the edge.
type BeliefEdge struct {
	ID       uuid.UUID    `json:"id"`
	SourceID uuid.UUID    `json:"source_id"`
	TargetID uuid.UUID    `json:"target_id"`
	Relation EdgeRelation `json:"relation"`
	Weight   float64      `json:"weight"`
}

func (e *BeliefEdge) Validate() error {
	if !ValidEdgeRelation(string(e.Relation)) {
		return fmt.Errorf("%w: %q", ErrInvalidRelation, e.Relation)
	}
	if e.SourceID == e.TargetID {
		return ErrEdgeSelfLoop
	}
	if e.Weight < 0 || e.Weight > 1 {
		return fmt.Errorf("%w: edge weight %f", ErrConfidenceOutOfRange, e.Weight)
	}
	return nil
}

// StanceStatus is the lifecycle state of a stance version. At most one
// version per belief is current or locked at any time.
type StanceStatus string

const (
	StanceCurrent    StanceStatus = "current"
	StanceDeprecated StanceStatus = "deprecated"
	StanceLocked     StanceStatus = "locked"
)

// Active reports whether this status counts against the one-active-stance
// invariant.
func (s StanceStatus) Active() bool {
	return s == StanceCurrent || s == StanceLocked
}

// StanceVersion is an immutable snapshot of a belief's text and confidence
// at a point in time. Versions are never updated in place; a new current
// version deprecates the prior one in the same transaction.
type StanceVersion struct {
	ID         uuid.UUID    `json:"id"`
	BeliefID   uuid.UUID    `json:"belief_id"`
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Status     StanceStatus `json:"status"`
	Rationale  string       `json:"rationale,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// EvidenceSource indicates where a piece of evidence came from.
type EvidenceSource string

const (
	EvidenceRedditComment EvidenceSource = "reddit_comment"
	EvidenceExternalLink  EvidenceSource = "external_link"
	EvidenceNote          EvidenceSource = "note"
)

func ValidEvidenceSource(s string) bool {
	switch EvidenceSource(s) {
	case EvidenceRedditComment, EvidenceExternalLink, EvidenceNote:
		return true
	}
	return false
}

// EvidenceStrength is the qualitative tier of a signal, mapped to a fixed
// log-odds delta by the confidence updater.
type EvidenceStrength string

const (
	StrengthWeak     EvidenceStrength = "weak"
	StrengthModerate EvidenceStrength = "moderate"
	StrengthStrong   EvidenceStrength = "strong"
)

func ValidEvidenceStrength(s string) bool {
	switch EvidenceStrength(s) {
	case StrengthWeak, StrengthModerate, StrengthStrong:
		return true
	}
	return false
}

// LogOddsDelta returns the base logit shift for this strength, before the
// updater's gain factor is applied.
func (s EvidenceStrength) LogOddsDelta() float64 {
	switch s {
	case StrengthWeak:
		return 0.05
	case StrengthModerate:
		return 0.10
	case StrengthStrong:
		return 0.20
	default:
		return 0
	}
}

// Rank orders strengths for evidence selection (strong first).
func (s EvidenceStrength) Rank() int {
	switch s {
	case StrengthStrong:
		return 3
	case StrengthModerate:
		return 2
	case StrengthWeak:
		return 1
	default:
		return 0
	}
}

// EvidenceLink ties a belief to an external source. Append-only.
type EvidenceLink struct {
	ID         uuid.UUID        `json:"id"`
	BeliefID   uuid.UUID        `json:"belief_id"`
	SourceType EvidenceSource   `json:"source_type"`
	SourceRef  string           `json:"source_ref"`
	Strength   EvidenceStrength `json:"strength"`
	CreatedAt  time.Time        `json:"created_at"`
}

func (e *EvidenceLink) Validate() error {
	if !ValidEvidenceSource(string(e.SourceType)) {
		return fmt.Errorf("%w: %q", ErrInvalidEvidenceSource, e.SourceType)
	}
	if !ValidEvidenceStrength(string(e.Strength)) {
		return fmt.Errorf("%w: %q", ErrInvalidStrength, e.Strength)
	}
	return nil
}

// UpdateTrigger classifies what caused a confidence-affecting mutation.
type UpdateTrigger string

const (
	TriggerAuto     UpdateTrigger = "auto"
	TriggerManual   UpdateTrigger = "manual"
	TriggerEvidence UpdateTrigger = "evidence"
	TriggerConflict UpdateTrigger = "conflict"
	TriggerNudge    UpdateTrigger = "nudge"
)

// BeliefUpdateRecord is one audit-log row. Append-only; rejected mutations
// are recorded too, with OldValue == NewValue and a reason.
type BeliefUpdateRecord struct {
	ID          uuid.UUID     `json:"id"`
	BeliefID    uuid.UUID     `json:"belief_id"`
	OldValue    float64       `json:"old_value"`
	NewValue    float64       `json:"new_value"`
	Reason      string        `json:"reason"`
	TriggerType UpdateTrigger `json:"trigger_type"`
	UpdatedBy   string        `json:"updated_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// BeliefGraph is a read-only snapshot of a persona's graph, consistent to a
// single point in time.
type BeliefGraph struct {
	Nodes []BeliefNode `json:"nodes"`
	Edges []BeliefEdge `json:"edges"`
}

// BeliefHistory is the full audit view of one belief, stances newest-first.
type BeliefHistory struct {
	Stances  []StanceVersion      `json:"stances"`
	Evidence []EvidenceLink       `json:"evidence"`
	Updates  []BeliefUpdateRecord `json:"updates"`
}

// ValidConfidence reports whether c is inside the storable range.
func ValidConfidence(c float64) bool {
	return c >= 0 && c <= 1
}
