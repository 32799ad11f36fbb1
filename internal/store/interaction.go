package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/credobot/credo/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

type InteractionStore struct {
	db *pgxpool.Pool
}

func NewInteractionStore(db *pgxpool.Pool) *InteractionStore {
	return &InteractionStore{db: db}
}

func (s *InteractionStore) Create(ctx context.Context, in *domain.Interaction) error {
	var embedding *pgvector.Vector
	if len(in.Embedding) > 0 {
		v := pgvector.NewVector(in.Embedding)
		embedding = &v
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO interactions (persona_id, subreddit, thread_id, prompt, response, outcome, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		in.PersonaID, in.Subreddit, in.ThreadID, in.Prompt, in.Response, in.Outcome, embedding,
	).Scan(&in.ID, &in.CreatedAt)
}

func (s *InteractionStore) GetByID(ctx context.Context, id uuid.UUID, personaID uuid.UUID) (*domain.Interaction, error) {
	in := &domain.Interaction{}
	err := s.db.QueryRow(ctx,
		`SELECT id, persona_id, subreddit, thread_id, prompt, response, outcome, created_at
		 FROM interactions WHERE id = $1 AND persona_id = $2`,
		id, personaID,
	).Scan(&in.ID, &in.PersonaID, &in.Subreddit, &in.ThreadID, &in.Prompt, &in.Response, &in.Outcome, &in.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return in, nil
}

// FindSimilar returns past interactions nearest to embedding by cosine
// similarity. Score ties break on ID so ranking is stable.
func (s *InteractionStore) FindSimilar(ctx context.Context, personaID uuid.UUID, embedding []float32, limit int) ([]domain.InteractionWithScore, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT id, persona_id, subreddit, thread_id, prompt, response, outcome, created_at,
		        1 - (embedding <=> $1) AS score
		 FROM interactions
		 WHERE persona_id = $2 AND embedding IS NOT NULL
		 ORDER BY score DESC, id ASC
		 LIMIT $3`,
		vec, personaID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find similar query: %w", err)
	}
	defer rows.Close()

	var results []domain.InteractionWithScore
	for rows.Next() {
		var is domain.InteractionWithScore
		if err := rows.Scan(&is.ID, &is.PersonaID, &is.Subreddit, &is.ThreadID, &is.Prompt, &is.Response, &is.Outcome, &is.CreatedAt, &is.Score); err != nil {
			return nil, fmt.Errorf("scan find similar row: %w", err)
		}
		results = append(results, is)
	}
	return results, rows.Err()
}
