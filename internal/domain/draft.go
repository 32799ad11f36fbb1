package domain

import (
	"time"

	"github.com/google/uuid"
)

// DraftStatus is the moderation state of a drafted reply. Approved, queued
// and rejected are terminal from the gate's point of view; a queued draft is
// only moved by human review.
type DraftStatus string

const (
	DraftDrafted  DraftStatus = "drafted"
	DraftApproved DraftStatus = "approved"
	DraftQueued   DraftStatus = "queued"
	DraftRejected DraftStatus = "rejected"
	DraftPosted   DraftStatus = "posted"
)

func ValidDraftStatus(s string) bool {
	switch DraftStatus(s) {
	case DraftDrafted, DraftApproved, DraftQueued, DraftRejected, DraftPosted:
		return true
	}
	return false
}

// Draft is a generated reply awaiting moderation, persisted so queued items
// survive restarts and show up on the dashboard.
type Draft struct {
	ID         uuid.UUID   `json:"id"`
	PersonaID  uuid.UUID   `json:"persona_id"`
	Subreddit  string      `json:"subreddit"`
	ThreadID   string      `json:"thread_id"`
	Body       string      `json:"body"`
	Status     DraftStatus `json:"status"`
	GateReason string      `json:"gate_reason,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// ConsistencyConflict is one belief the checker flagged against a draft.
type ConsistencyConflict struct {
	BeliefID uuid.UUID `json:"belief_id"`
	Reason   string    `json:"reason"`
}

// ConsistencyVerdict is the output of the LLM consistency check. Its
// networking lives outside the core; only this shape is consumed.
type ConsistencyVerdict struct {
	IsConsistent     bool                  `json:"is_consistent"`
	Conflicts        []ConsistencyConflict `json:"conflicts,omitempty"`
	EvidenceStrength EvidenceStrength      `json:"evidence_strength,omitempty"`
}
