package store

import (
	"context"
	"errors"

	"github.com/credobot/credo/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DraftStore struct {
	db *pgxpool.Pool
}

func NewDraftStore(db *pgxpool.Pool) *DraftStore {
	return &DraftStore{db: db}
}

func (s *DraftStore) Create(ctx context.Context, d *domain.Draft) error {
	if d.Status == "" {
		d.Status = domain.DraftDrafted
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO drafts (persona_id, subreddit, thread_id, body, status, gate_reason)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		d.PersonaID, d.Subreddit, d.ThreadID, d.Body, d.Status, d.GateReason,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (s *DraftStore) GetByID(ctx context.Context, id uuid.UUID, personaID uuid.UUID) (*domain.Draft, error) {
	d := &domain.Draft{}
	err := s.db.QueryRow(ctx,
		`SELECT id, persona_id, subreddit, thread_id, body, status, gate_reason, created_at, updated_at
		 FROM drafts WHERE id = $1 AND persona_id = $2`,
		id, personaID,
	).Scan(&d.ID, &d.PersonaID, &d.Subreddit, &d.ThreadID, &d.Body, &d.Status, &d.GateReason, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *DraftStore) ListByStatus(ctx context.Context, personaID uuid.UUID, status domain.DraftStatus, limit int) ([]domain.Draft, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, persona_id, subreddit, thread_id, body, status, gate_reason, created_at, updated_at
		 FROM drafts WHERE persona_id = $1 AND status = $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		personaID, status, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []domain.Draft
	for rows.Next() {
		var d domain.Draft
		if err := rows.Scan(&d.ID, &d.PersonaID, &d.Subreddit, &d.ThreadID, &d.Body, &d.Status, &d.GateReason, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// UpdateStatus transitions a draft only when it is still in the expected
// state, so a double-approve races to exactly one winner.
func (s *DraftStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.DraftStatus, reason string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE drafts SET status = $1, gate_reason = $2, updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		to, reason, id, from,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}
