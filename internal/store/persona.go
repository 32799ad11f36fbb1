package store

import (
	"context"
	"errors"

	"github.com/credobot/credo/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PersonaStore struct {
	db *pgxpool.Pool
}

func NewPersonaStore(db *pgxpool.Pool) *PersonaStore {
	return &PersonaStore{db: db}
}

func (s *PersonaStore) Create(ctx context.Context, p *domain.Persona) error {
	if err := p.Config.Validate(); err != nil {
		return err
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO personas (name, config) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		p.Name, p.Config,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (s *PersonaStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Persona, error) {
	p := &domain.Persona{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, config, created_at, updated_at
		 FROM personas WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Config, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PersonaStore) List(ctx context.Context) ([]domain.Persona, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, config, created_at, updated_at
		 FROM personas ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var personas []domain.Persona
	for rows.Next() {
		var p domain.Persona
		if err := rows.Scan(&p.ID, &p.Name, &p.Config, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

func (s *PersonaStore) UpdateConfig(ctx context.Context, id uuid.UUID, cfg domain.PersonaConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE personas SET config = $1, updated_at = NOW() WHERE id = $2`,
		cfg, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the persona; belief nodes, edges, stances, evidence, audit
// rows, interactions and drafts all go with it via ON DELETE CASCADE.
func (s *PersonaStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM personas WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
