package domain

import "github.com/google/uuid"

// ContextBlockKind orders blocks for greedy packing: persona config first,
// then beliefs, episodic history, evidence.
type ContextBlockKind string

const (
	BlockPersona  ContextBlockKind = "persona"
	BlockBelief   ContextBlockKind = "belief"
	BlockHistory  ContextBlockKind = "history"
	BlockEvidence ContextBlockKind = "evidence"
)

// ContextBlock is one indivisible unit of assembled context. Blocks are
// included or dropped whole, never truncated.
type ContextBlock struct {
	Kind      ContextBlockKind `json:"kind"`
	RefID     uuid.UUID        `json:"ref_id,omitempty"`
	Text      string           `json:"text"`
	Tokens    int              `json:"tokens"`
	SortScore float64          `json:"-"`
}

// AssembledContext is the token-bounded prompt context handed to the LLM,
// plus observability counters for whatever the budget forced out. Beliefs
// carries the selected nodes so the consistency check sees the same set the
// prompt was built from.
type AssembledContext struct {
	PersonaID     uuid.UUID      `json:"persona_id"`
	Blocks        []ContextBlock `json:"blocks"`
	TotalTokens   int            `json:"total_tokens"`
	DroppedBlocks int            `json:"dropped_blocks"`
	DroppedTokens int            `json:"dropped_tokens"`
	Beliefs       []BeliefNode   `json:"-"`
}

// Prompt renders the included blocks in order as a single prompt string.
func (c *AssembledContext) Prompt() string {
	var out []byte
	for i, b := range c.Blocks {
		if i > 0 {
			out = append(out, '\n', '\n')
		}
		out = append(out, b.Text...)
	}
	return string(out)
}

// EstimateTokens approximates language-model token cost of a text block.
// A four-characters-per-token heuristic is close enough for budgeting since
// blocks are dropped whole anyway.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
