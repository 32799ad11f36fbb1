package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/credobot/credo/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BeliefStore owns all mutation primitives for the belief graph and is the
// only code that touches stance_versions. The one-active-stance invariant is
// enforced twice: transactional flips here, and a partial unique index on
// (belief_id) WHERE status IN ('current','locked') in the schema.
type BeliefStore struct {
	db *pgxpool.Pool
}

func NewBeliefStore(db *pgxpool.Pool) *BeliefStore {
	return &BeliefStore{db: db}
}

func (s *BeliefStore) CreateNode(ctx context.Context, node *domain.BeliefNode, initial domain.NewStance) (*domain.StanceVersion, error) {
	if !domain.ValidConfidence(initial.Confidence) {
		return nil, fmt.Errorf("%w: %f", domain.ErrConfidenceOutOfRange, initial.Confidence)
	}
	if initial.Status == "" {
		initial.Status = domain.StanceCurrent
	}

	stance := &domain.StanceVersion{}
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO belief_nodes (persona_id, title, summary, current_confidence, tags)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at, updated_at`,
			node.PersonaID, node.Title, node.Summary, initial.Confidence, node.Tags,
		).Scan(&node.ID, &node.CreatedAt, &node.UpdatedAt)
		if err != nil {
			return err
		}
		node.CurrentConfidence = initial.Confidence
		return insertStance(ctx, tx, node.ID, initial, stance)
	})
	if err != nil {
		return nil, err
	}
	return stance, nil
}

func (s *BeliefStore) CreateEdge(ctx context.Context, edge *domain.BeliefEdge) error {
	if err := edge.Validate(); err != nil {
		return err
	}
	// The WHERE clause refuses edges whose endpoints live in different
	// personas (or don't exist).
	err := s.db.QueryRow(ctx,
		`INSERT INTO belief_edges (source_id, target_id, relation, weight)
		 SELECT $1, $2, $3, $4
		 WHERE (SELECT persona_id FROM belief_nodes WHERE id = $1) =
		       (SELECT persona_id FROM belief_nodes WHERE id = $2)
		 RETURNING id`,
		edge.SourceID, edge.TargetID, edge.Relation, edge.Weight,
	).Scan(&edge.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("edge endpoints: %w", ErrNotFound)
	}
	return err
}

func (s *BeliefStore) GetNode(ctx context.Context, beliefID, personaID uuid.UUID) (*domain.BeliefNode, error) {
	n := &domain.BeliefNode{}
	err := s.db.QueryRow(ctx,
		`SELECT id, persona_id, title, summary, current_confidence, tags, created_at, updated_at
		 FROM belief_nodes WHERE id = $1 AND persona_id = $2`,
		beliefID, personaID,
	).Scan(&n.ID, &n.PersonaID, &n.Title, &n.Summary, &n.CurrentConfidence, &n.Tags, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

// GetNodesByTags returns nodes whose tag set intersects tags, or every node
// of the persona when tags is empty. Ordered by confidence descending with
// ID as a stable tie-break so retrieval output is deterministic.
func (s *BeliefStore) GetNodesByTags(ctx context.Context, personaID uuid.UUID, tags []string) ([]domain.BeliefNode, error) {
	query := `SELECT id, persona_id, title, summary, current_confidence, tags, created_at, updated_at
	          FROM belief_nodes WHERE persona_id = $1`
	args := []any{personaID}
	if len(tags) > 0 {
		query += ` AND tags && $2`
		args = append(args, tags)
	}
	query += ` ORDER BY current_confidence DESC, id ASC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

func (s *BeliefStore) EdgesTouching(ctx context.Context, personaID uuid.UUID, nodeIDs []uuid.UUID) ([]domain.BeliefEdge, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT e.id, e.source_id, e.target_id, e.relation, e.weight
		 FROM belief_edges e
		 JOIN belief_nodes n ON n.id = e.source_id
		 WHERE n.persona_id = $1 AND (e.source_id = ANY($2) OR e.target_id = ANY($2))
		 ORDER BY e.id ASC`,
		personaID, nodeIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdges(rows)
}

// GetGraph reads nodes and edges inside a repeatable-read transaction so the
// snapshot reflects a single point in time: a concurrently committed stance
// flip is either fully visible or not at all.
func (s *BeliefStore) GetGraph(ctx context.Context, personaID uuid.UUID) (*domain.BeliefGraph, error) {
	graph := &domain.BeliefGraph{}
	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id, persona_id, title, summary, current_confidence, tags, created_at, updated_at
			 FROM belief_nodes WHERE persona_id = $1
			 ORDER BY current_confidence DESC, id ASC`,
			personaID,
		)
		if err != nil {
			return err
		}
		graph.Nodes, err = scanNodes(rows)
		rows.Close()
		if err != nil {
			return err
		}

		rows, err = tx.Query(ctx,
			`SELECT e.id, e.source_id, e.target_id, e.relation, e.weight
			 FROM belief_edges e
			 JOIN belief_nodes n ON n.id = e.source_id
			 WHERE n.persona_id = $1
			 ORDER BY e.id ASC`,
			personaID,
		)
		if err != nil {
			return err
		}
		graph.Edges, err = scanEdges(rows)
		rows.Close()
		return err
	})
	if err != nil {
		return nil, err
	}
	return graph, nil
}

func (s *BeliefStore) GetHistory(ctx context.Context, beliefID, personaID uuid.UUID) (*domain.BeliefHistory, error) {
	// Ownership check first so a foreign belief ID reads as not-found
	// rather than as an empty history.
	if _, err := s.GetNode(ctx, beliefID, personaID); err != nil {
		return nil, err
	}

	h := &domain.BeliefHistory{}

	rows, err := s.db.Query(ctx,
		`SELECT id, belief_id, text, confidence, status, rationale, created_at
		 FROM stance_versions WHERE belief_id = $1
		 ORDER BY created_at DESC, id DESC`,
		beliefID,
	)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var v domain.StanceVersion
		if err := rows.Scan(&v.ID, &v.BeliefID, &v.Text, &v.Confidence, &v.Status, &v.Rationale, &v.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		h.Stances = append(h.Stances, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	h.Evidence, err = s.TopEvidence(ctx, beliefID, 0)
	if err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx,
		`SELECT id, belief_id, old_value, new_value, reason, trigger_type, updated_by, created_at
		 FROM belief_update_records WHERE belief_id = $1
		 ORDER BY created_at DESC, id DESC`,
		beliefID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var r domain.BeliefUpdateRecord
		if err := rows.Scan(&r.ID, &r.BeliefID, &r.OldValue, &r.NewValue, &r.Reason, &r.TriggerType, &r.UpdatedBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		h.Updates = append(h.Updates, r)
	}
	return h, rows.Err()
}

func (s *BeliefStore) GetActiveStance(ctx context.Context, beliefID, personaID uuid.UUID) (*domain.StanceVersion, error) {
	v := &domain.StanceVersion{}
	err := s.db.QueryRow(ctx,
		`SELECT v.id, v.belief_id, v.text, v.confidence, v.status, v.rationale, v.created_at
		 FROM stance_versions v
		 JOIN belief_nodes n ON n.id = v.belief_id
		 WHERE v.belief_id = $1 AND n.persona_id = $2 AND v.status IN ('current', 'locked')`,
		beliefID, personaID,
	).Scan(&v.ID, &v.BeliefID, &v.Text, &v.Confidence, &v.Status, &v.Rationale, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *BeliefStore) CreateStance(ctx context.Context, beliefID, personaID uuid.UUID, ns domain.NewStance) (*domain.StanceVersion, error) {
	return s.MutateStance(ctx, beliefID, personaID, func(*domain.BeliefNode, *domain.StanceVersion) (domain.NewStance, error) {
		return ns, nil
	})
}

// MutateStance runs fn under the belief's row lock and commits the
// deprecate-old + insert-new + cache-update flip as one transaction. A
// reader therefore never observes zero or two active stances, and two
// writers against the same belief apply strictly one after the other.
func (s *BeliefStore) MutateStance(ctx context.Context, beliefID, personaID uuid.UUID, fn domain.StanceMutation) (*domain.StanceVersion, error) {
	stance := &domain.StanceVersion{}
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		node := &domain.BeliefNode{}
		err := tx.QueryRow(ctx,
			`SELECT id, persona_id, title, summary, current_confidence, tags, created_at, updated_at
			 FROM belief_nodes WHERE id = $1 AND persona_id = $2
			 FOR UPDATE`,
			beliefID, personaID,
		).Scan(&node.ID, &node.PersonaID, &node.Title, &node.Summary, &node.CurrentConfidence, &node.Tags, &node.CreatedAt, &node.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		var active *domain.StanceVersion
		prev := &domain.StanceVersion{}
		err = tx.QueryRow(ctx,
			`SELECT id, belief_id, text, confidence, status, rationale, created_at
			 FROM stance_versions
			 WHERE belief_id = $1 AND status IN ('current', 'locked')`,
			beliefID,
		).Scan(&prev.ID, &prev.BeliefID, &prev.Text, &prev.Confidence, &prev.Status, &prev.Rationale, &prev.CreatedAt)
		switch {
		case err == nil:
			active = prev
		case errors.Is(err, pgx.ErrNoRows):
			// A node created through CreateNode always has one, but a
			// mutation races persona deletion; tolerate the gap.
		default:
			return err
		}

		ns, err := fn(node, active)
		if err != nil {
			return err
		}
		if !domain.ValidConfidence(ns.Confidence) {
			return fmt.Errorf("%w: %f", domain.ErrConfidenceOutOfRange, ns.Confidence)
		}
		if ns.Status == "" {
			ns.Status = domain.StanceCurrent
		}
		if !ns.Status.Active() {
			return fmt.Errorf("new stance status must be current or locked, got %q", ns.Status)
		}

		if active != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE stance_versions SET status = 'deprecated' WHERE id = $1`,
				active.ID,
			); err != nil {
				return err
			}
		}
		if err := insertStance(ctx, tx, beliefID, ns, stance); err != nil {
			return err
		}

		// Locked stances pin the cached value; only current ones refresh it.
		if ns.Status == domain.StanceCurrent {
			if _, err := tx.Exec(ctx,
				`UPDATE belief_nodes SET current_confidence = $1, updated_at = NOW() WHERE id = $2`,
				ns.Confidence, beliefID,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stance, nil
}

// SetLock flips the active stance between current and locked. Idempotent:
// locking an already-locked belief is a no-op.
func (s *BeliefStore) SetLock(ctx context.Context, beliefID, personaID uuid.UUID, locked bool) error {
	from, to := domain.StanceCurrent, domain.StanceLocked
	if !locked {
		from, to = domain.StanceLocked, domain.StanceCurrent
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE stance_versions v SET status = $1
			 FROM belief_nodes n
			 WHERE v.belief_id = $2 AND n.id = v.belief_id AND n.persona_id = $3 AND v.status = $4`,
			to, beliefID, personaID, from,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		// Nothing flipped: either already in the target state (fine) or no
		// active stance at all (not found).
		var exists bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (
			   SELECT 1 FROM stance_versions v
			   JOIN belief_nodes n ON n.id = v.belief_id
			   WHERE v.belief_id = $1 AND n.persona_id = $2 AND v.status = $3)`,
			beliefID, personaID, to,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return nil
	})
}

func (s *BeliefStore) AppendEvidence(ctx context.Context, ev *domain.EvidenceLink) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO evidence_links (belief_id, source_type, source_ref, strength)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		ev.BeliefID, ev.SourceType, ev.SourceRef, ev.Strength,
	).Scan(&ev.ID, &ev.CreatedAt)
}

// TopEvidence returns evidence strongest-first; limit <= 0 means all.
func (s *BeliefStore) TopEvidence(ctx context.Context, beliefID uuid.UUID, limit int) ([]domain.EvidenceLink, error) {
	query := `SELECT id, belief_id, source_type, source_ref, strength, created_at
	          FROM evidence_links WHERE belief_id = $1
	          ORDER BY CASE strength WHEN 'strong' THEN 3 WHEN 'moderate' THEN 2 ELSE 1 END DESC,
	                   created_at DESC, id ASC`
	args := []any{beliefID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.EvidenceLink
	for rows.Next() {
		var ev domain.EvidenceLink
		if err := rows.Scan(&ev.ID, &ev.BeliefID, &ev.SourceType, &ev.SourceRef, &ev.Strength, &ev.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, ev)
	}
	return links, rows.Err()
}

func (s *BeliefStore) AppendAudit(ctx context.Context, rec *domain.BeliefUpdateRecord) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO belief_update_records (belief_id, old_value, new_value, reason, trigger_type, updated_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		rec.BeliefID, rec.OldValue, rec.NewValue, rec.Reason, rec.TriggerType, rec.UpdatedBy,
	).Scan(&rec.ID, &rec.CreatedAt)
}

func insertStance(ctx context.Context, tx pgx.Tx, beliefID uuid.UUID, ns domain.NewStance, out *domain.StanceVersion) error {
	if ns.Status == "" {
		ns.Status = domain.StanceCurrent
	}
	err := tx.QueryRow(ctx,
		`INSERT INTO stance_versions (belief_id, text, confidence, status, rationale)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		beliefID, ns.Text, ns.Confidence, ns.Status, ns.Rationale,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return err
	}
	out.BeliefID = beliefID
	out.Text = ns.Text
	out.Confidence = ns.Confidence
	out.Status = ns.Status
	out.Rationale = ns.Rationale
	return nil
}

func scanNodes(rows pgx.Rows) ([]domain.BeliefNode, error) {
	var nodes []domain.BeliefNode
	for rows.Next() {
		var n domain.BeliefNode
		if err := rows.Scan(&n.ID, &n.PersonaID, &n.Title, &n.Summary, &n.CurrentConfidence, &n.Tags, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func scanEdges(rows pgx.Rows) ([]domain.BeliefEdge, error) {
	var edges []domain.BeliefEdge
	for rows.Next() {
		var e domain.BeliefEdge
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Relation, &e.Weight); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
