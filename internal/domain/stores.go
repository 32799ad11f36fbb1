package domain

import (
	"context"

	"github.com/google/uuid"
)

type PersonaStore interface {
	Create(ctx context.Context, p *Persona) error
	GetByID(ctx context.Context, id uuid.UUID) (*Persona, error)
	List(ctx context.Context) ([]Persona, error)
	UpdateConfig(ctx context.Context, id uuid.UUID, cfg PersonaConfig) error
	// Delete cascades the persona's entire belief graph, interaction log
	// and draft queue.
	Delete(ctx context.Context, id uuid.UUID) error
}

// NewStance describes the replacement stance a mutation produces. Status
// defaults to current; new stances never inherit a lock, it must be
// re-applied explicitly after an update.
type NewStance struct {
	Text       string
	Confidence float64
	Status     StanceStatus
	Rationale  string
}

// StanceMutation computes a replacement stance from the belief's active one.
// It runs inside the store transaction while the belief row is locked, so
// concurrent mutations of the same belief cannot interleave their
// read-modify-write cycles. Returning an error aborts with no mutation.
type StanceMutation func(node *BeliefNode, active *StanceVersion) (NewStance, error)

type BeliefStore interface {
	// CreateNode inserts a node together with its initial current stance.
	CreateNode(ctx context.Context, node *BeliefNode, initial NewStance) (*StanceVersion, error)
	CreateEdge(ctx context.Context, edge *BeliefEdge) error

	GetNode(ctx context.Context, beliefID, personaID uuid.UUID) (*BeliefNode, error)
	GetNodesByTags(ctx context.Context, personaID uuid.UUID, tags []string) ([]BeliefNode, error)
	EdgesTouching(ctx context.Context, personaID uuid.UUID, nodeIDs []uuid.UUID) ([]BeliefEdge, error)

	// GetGraph returns a snapshot consistent to a single point in time:
	// a reader never sees a node's cached confidence without the matching
	// stance flip.
	GetGraph(ctx context.Context, personaID uuid.UUID) (*BeliefGraph, error)
	GetHistory(ctx context.Context, beliefID, personaID uuid.UUID) (*BeliefHistory, error)
	GetActiveStance(ctx context.Context, beliefID, personaID uuid.UUID) (*StanceVersion, error)

	// CreateStance atomically deprecates the prior active stance, inserts
	// the new one, and (for current stances) refreshes the node's cached
	// confidence. One transaction, never three statements.
	CreateStance(ctx context.Context, beliefID, personaID uuid.UUID, ns NewStance) (*StanceVersion, error)
	// MutateStance is CreateStance with the replacement computed under the
	// belief's row lock. ConfidenceUpdater's serialization rides on this.
	MutateStance(ctx context.Context, beliefID, personaID uuid.UUID, fn StanceMutation) (*StanceVersion, error)
	SetLock(ctx context.Context, beliefID, personaID uuid.UUID, locked bool) error

	AppendEvidence(ctx context.Context, ev *EvidenceLink) error
	TopEvidence(ctx context.Context, beliefID uuid.UUID, limit int) ([]EvidenceLink, error)
	AppendAudit(ctx context.Context, rec *BeliefUpdateRecord) error
}

type InteractionStore interface {
	Create(ctx context.Context, in *Interaction) error
	GetByID(ctx context.Context, id uuid.UUID, personaID uuid.UUID) (*Interaction, error)
	FindSimilar(ctx context.Context, personaID uuid.UUID, embedding []float32, limit int) ([]InteractionWithScore, error)
}

type DraftStore interface {
	Create(ctx context.Context, d *Draft) error
	GetByID(ctx context.Context, id uuid.UUID, personaID uuid.UUID) (*Draft, error)
	ListByStatus(ctx context.Context, personaID uuid.UUID, status DraftStatus, limit int) ([]Draft, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to DraftStatus, reason string) error
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LLMClient covers the three generation-side calls the core consumes. Only
// outputs are part of the contract; prompting and transport live behind it.
type LLMClient interface {
	GenerateReply(ctx context.Context, promptContext string, thread ThreadContext) (string, error)
	CheckConsistency(ctx context.Context, beliefs []BeliefNode, draft string) (*ConsistencyVerdict, error)
	// CheckContent returns ok=false with a reason when the draft violates
	// content policy.
	CheckContent(ctx context.Context, draft string) (bool, string, error)
}

// RedditClient is the perception/action boundary. Rate-limit backoff and
// auth are its own concern.
type RedditClient interface {
	FetchThreads(ctx context.Context, subreddits []string, limit int) ([]ThreadContext, error)
	PostReply(ctx context.Context, thread ThreadContext, body string) (string, error)
}
