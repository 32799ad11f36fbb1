package service

import (
	"context"
	"errors"
	"testing"

	"github.com/credobot/credo/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func setupBeliefTest(t *testing.T) (*BeliefService, *mockBeliefStore, uuid.UUID) {
	t.Helper()
	beliefs := newMockBeliefStore()
	personas := newMockPersonaStore()

	persona := &domain.Persona{Name: "graph test", Config: domain.PersonaConfig{Tone: "dry"}}
	if err := personas.Create(context.Background(), persona); err != nil {
		t.Fatalf("create persona: %v", err)
	}
	return NewBeliefService(beliefs, personas, zap.NewNop()), beliefs, persona.ID
}

func TestCreateBelief(t *testing.T) {
	svc, beliefs, personaID := setupBeliefTest(t)
	ctx := context.Background()

	node, err := svc.CreateBelief(ctx, personaID, "static typing", "catches bugs early",
		"static typing catches whole classes of bugs before runtime", 0.85, []string{"types"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if node.ID == uuid.Nil {
		t.Error("node should have an ID")
	}
	if node.CurrentConfidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", node.CurrentConfidence)
	}

	stance, err := beliefs.GetActiveStance(ctx, node.ID, personaID)
	if err != nil {
		t.Fatalf("active stance: %v", err)
	}
	if stance.Status != domain.StanceCurrent {
		t.Errorf("initial stance status = %v, want current", stance.Status)
	}
	if stance.Rationale != "initial stance" {
		t.Errorf("rationale = %q", stance.Rationale)
	}
}

func TestCreateBelief_UnknownPersona(t *testing.T) {
	svc, _, _ := setupBeliefTest(t)

	_, err := svc.CreateBelief(context.Background(), uuid.New(), "t", "", "s", 0.5, nil)
	if !errors.Is(err, ErrPersonaNotFound) {
		t.Errorf("expected ErrPersonaNotFound, got %v", err)
	}
}

func TestCreateBelief_BadConfidence(t *testing.T) {
	svc, _, personaID := setupBeliefTest(t)

	_, err := svc.CreateBelief(context.Background(), personaID, "t", "", "s", 1.5, nil)
	if !errors.Is(err, domain.ErrConfidenceOutOfRange) {
		t.Errorf("expected ErrConfidenceOutOfRange, got %v", err)
	}
}

func TestCreateEdge_Validation(t *testing.T) {
	svc, _, personaID := setupBeliefTest(t)
	ctx := context.Background()

	a, err := svc.CreateBelief(ctx, personaID, "a", "", "a", 0.5, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := svc.CreateBelief(ctx, personaID, "b", "", "b", 0.5, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	edge, err := svc.CreateEdge(ctx, a.ID, b.ID, domain.RelationSupports, 0.4)
	if err != nil {
		t.Fatalf("edge: %v", err)
	}
	if edge.ID == uuid.Nil {
		t.Error("edge should have an ID")
	}

	if _, err := svc.CreateEdge(ctx, a.ID, a.ID, domain.RelationSupports, 0.4); !errors.Is(err, domain.ErrEdgeSelfLoop) {
		t.Errorf("expected ErrEdgeSelfLoop, got %v", err)
	}
	if _, err := svc.CreateEdge(ctx, a.ID, b.ID, "refutes", 0.4); !errors.Is(err, domain.ErrInvalidRelation) {
		t.Errorf("expected ErrInvalidRelation, got %v", err)
	}
}

func TestReviseStance_DeprecatesPrior(t *testing.T) {
	svc, beliefs, personaID := setupBeliefTest(t)
	ctx := context.Background()

	node, err := svc.CreateBelief(ctx, personaID, "generics", "", "generics mostly help library authors", 0.55, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sv, err := svc.ReviseStance(ctx, node.ID, personaID, "generics help application code too", "saw new usage patterns", 0.6)
	if err != nil {
		t.Fatalf("revise: %v", err)
	}
	if sv.Text != "generics help application code too" {
		t.Errorf("stance text = %q", sv.Text)
	}

	hist, err := svc.GetHistory(ctx, node.ID, personaID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist.Stances) != 2 {
		t.Fatalf("expected 2 stance versions, got %d", len(hist.Stances))
	}

	active := 0
	for _, s := range hist.Stances {
		if s.Status.Active() {
			active++
		}
	}
	if active != 1 {
		t.Errorf("expected exactly 1 active stance after revision, got %d", active)
	}

	got, err := beliefs.GetNode(ctx, node.ID, personaID)
	if err != nil {
		t.Fatalf("get node: %v", err)
	}
	if got.CurrentConfidence != 0.6 {
		t.Errorf("cached confidence = %v, want 0.6", got.CurrentConfidence)
	}
}

func TestReviseStance_LockedRejects(t *testing.T) {
	svc, _, personaID := setupBeliefTest(t)
	ctx := context.Background()

	node, err := svc.CreateBelief(ctx, personaID, "locked belief", "", "held firmly", 0.8, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.SetLock(ctx, node.ID, personaID, true); err != nil {
		t.Fatalf("lock: %v", err)
	}

	if _, err := svc.ReviseStance(ctx, node.ID, personaID, "changed my mind", "", 0.5); !errors.Is(err, ErrBeliefLocked) {
		t.Errorf("expected ErrBeliefLocked, got %v", err)
	}

	// Unlock and the same revision goes through.
	if err := svc.SetLock(ctx, node.ID, personaID, false); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := svc.ReviseStance(ctx, node.ID, personaID, "changed my mind", "", 0.5); err != nil {
		t.Errorf("expected revision after unlock, got %v", err)
	}
}

func TestAddEvidence_Validation(t *testing.T) {
	svc, _, personaID := setupBeliefTest(t)
	ctx := context.Background()

	node, err := svc.CreateBelief(ctx, personaID, "evidence target", "", "s", 0.5, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ev := &domain.EvidenceLink{
		BeliefID:   node.ID,
		SourceType: domain.EvidenceRedditComment,
		SourceRef:  "t1_xyz",
		Strength:   domain.StrengthModerate,
	}
	if err := svc.AddEvidence(ctx, ev); err != nil {
		t.Fatalf("add evidence: %v", err)
	}
	if ev.ID == uuid.Nil {
		t.Error("evidence should have an ID")
	}

	bad := &domain.EvidenceLink{BeliefID: node.ID, SourceType: "tweet", Strength: domain.StrengthWeak}
	if err := svc.AddEvidence(ctx, bad); !errors.Is(err, domain.ErrInvalidEvidenceSource) {
		t.Errorf("expected ErrInvalidEvidenceSource, got %v", err)
	}

	orphan := &domain.EvidenceLink{BeliefID: uuid.New(), SourceType: domain.EvidenceNote, Strength: domain.StrengthWeak}
	if err := svc.AddEvidence(ctx, orphan); !errors.Is(err, ErrBeliefNotFound) {
		t.Errorf("expected ErrBeliefNotFound, got %v", err)
	}
}

func TestGetGraph_UnknownPersona(t *testing.T) {
	svc, _, _ := setupBeliefTest(t)

	if _, err := svc.GetGraph(context.Background(), uuid.New()); !errors.Is(err, ErrPersonaNotFound) {
		t.Errorf("expected ErrPersonaNotFound, got %v", err)
	}
}
