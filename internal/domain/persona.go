package domain

import (
	"time"

	"github.com/google/uuid"
)

// Persona is the isolation scope for all belief-graph and interaction data.
// Every query in the system is persona-scoped.
type Persona struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Config    PersonaConfig `json:"config"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PersonaConfig is the opaque configuration blob attached to a persona.
// The core only reads the named, typed fields below; anything else riding
// in Extra is passed through untouched.
type PersonaConfig struct {
	Tone               string         `json:"tone"`
	Values             []string       `json:"values,omitempty"`
	TargetSubreddits   []string       `json:"target_subreddits,omitempty"`
	AutoPostingEnabled bool           `json:"auto_posting_enabled"`
	Extra              map[string]any `json:"extra,omitempty"`
}

func (c PersonaConfig) Validate() error {
	if c.Tone == "" {
		return ErrPersonaToneMissing
	}
	return nil
}
