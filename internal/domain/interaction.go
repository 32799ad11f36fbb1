package domain

import (
	"time"

	"github.com/google/uuid"
)

// Interaction is one logged exchange between a persona and a Reddit thread.
// The embedding indexes it for episodic recall.
type Interaction struct {
	ID        uuid.UUID `json:"id"`
	PersonaID uuid.UUID `json:"persona_id"`
	Subreddit string    `json:"subreddit"`
	ThreadID  string    `json:"thread_id"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// InteractionWithScore pairs an interaction with its similarity score for
// episodic recall results.
type InteractionWithScore struct {
	Interaction
	Score float64 `json:"score"`
}

// ThreadContext is the slice of a live Reddit thread the agent is about to
// respond to, plus topic hints used for belief selection.
type ThreadContext struct {
	Subreddit  string   `json:"subreddit"`
	ThreadID   string   `json:"thread_id"`
	Text       string   `json:"text"`
	TopicHints []string `json:"topic_hints,omitempty"`
}
