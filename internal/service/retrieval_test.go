package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/credobot/credo/internal/domain"
	"github.com/credobot/credo/internal/embedding"
	"github.com/credobot/credo/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mockPersonaStore struct {
	mu       sync.Mutex
	personas map[uuid.UUID]*domain.Persona
}

func newMockPersonaStore() *mockPersonaStore {
	return &mockPersonaStore{personas: make(map[uuid.UUID]*domain.Persona)}
}

func (m *mockPersonaStore) Create(ctx context.Context, p *domain.Persona) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.personas[p.ID] = p
	return nil
}

func (m *mockPersonaStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.personas[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPersonaStore) List(ctx context.Context) ([]domain.Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Persona, 0, len(m.personas))
	for _, p := range m.personas {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockPersonaStore) UpdateConfig(ctx context.Context, id uuid.UUID, cfg domain.PersonaConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.personas[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Config = cfg
	return nil
}

func (m *mockPersonaStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.personas[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.personas, id)
	return nil
}

// mockInteractionStore ranks FindSimilar results by insertion recency, which
// is deterministic enough for assembly tests.
type mockInteractionStore struct {
	mu           sync.Mutex
	interactions []domain.Interaction
	findErr      error
}

func (m *mockInteractionStore) Create(ctx context.Context, in *domain.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	m.interactions = append(m.interactions, *in)
	return nil
}

func (m *mockInteractionStore) GetByID(ctx context.Context, id uuid.UUID, personaID uuid.UUID) (*domain.Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range m.interactions {
		if in.ID == id && in.PersonaID == personaID {
			cp := in
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockInteractionStore) FindSimilar(ctx context.Context, personaID uuid.UUID, emb []float32, limit int) ([]domain.InteractionWithScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []domain.InteractionWithScore
	score := 1.0
	for i := len(m.interactions) - 1; i >= 0 && len(out) < limit; i-- {
		if m.interactions[i].PersonaID != personaID {
			continue
		}
		out = append(out, domain.InteractionWithScore{Interaction: m.interactions[i], Score: score})
		score -= 0.1
	}
	return out, nil
}

type retrievalFixture struct {
	coordinator  *RetrievalCoordinator
	personas     *mockPersonaStore
	beliefs      *mockBeliefStore
	interactions *mockInteractionStore
	personaID    uuid.UUID
}

func setupRetrievalTest(t *testing.T) *retrievalFixture {
	t.Helper()
	personas := newMockPersonaStore()
	beliefs := newMockBeliefStore()
	interactions := &mockInteractionStore{}
	episodic := NewEpisodicIndex(interactions, embedding.NewMockClient(), zap.NewNop())

	persona := &domain.Persona{
		Name: "historian",
		Config: domain.PersonaConfig{
			Tone:   "curious and measured",
			Values: []string{"accuracy"},
		},
	}
	if err := personas.Create(context.Background(), persona); err != nil {
		t.Fatalf("create persona: %v", err)
	}

	return &retrievalFixture{
		coordinator:  NewRetrievalCoordinator(personas, beliefs, episodic, zap.NewNop()),
		personas:     personas,
		beliefs:      beliefs,
		interactions: interactions,
		personaID:    persona.ID,
	}
}

func (f *retrievalFixture) addBelief(t *testing.T, title string, confidence float64, tags ...string) uuid.UUID {
	t.Helper()
	node := &domain.BeliefNode{PersonaID: f.personaID, Title: title, Tags: tags}
	if _, err := f.beliefs.CreateNode(context.Background(), node, domain.NewStance{
		Text:       title,
		Confidence: confidence,
	}); err != nil {
		t.Fatalf("create belief: %v", err)
	}
	return node.ID
}

func TestAssembleContext_PersonaBlockAlwaysFirst(t *testing.T) {
	f := setupRetrievalTest(t)
	f.addBelief(t, "static typing catches bugs", 0.8)

	assembled, err := f.coordinator.AssembleContext(context.Background(), f.personaID,
		domain.ThreadContext{Subreddit: "golang", Text: "what about types?"}, -1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(assembled.Blocks) == 0 {
		t.Fatal("expected at least the persona block")
	}
	if assembled.Blocks[0].Kind != domain.BlockPersona {
		t.Errorf("first block kind = %v, want persona", assembled.Blocks[0].Kind)
	}
	if !strings.Contains(assembled.Blocks[0].Text, "historian") {
		t.Errorf("persona block missing name: %q", assembled.Blocks[0].Text)
	}
}

func TestAssembleContext_ZeroBudgetDropsEverythingButPersona(t *testing.T) {
	f := setupRetrievalTest(t)
	f.addBelief(t, "code review improves quality and catches design problems early", 0.9)
	f.addBelief(t, "microservices are usually premature for small teams", 0.6)

	assembled, err := f.coordinator.AssembleContext(context.Background(), f.personaID,
		domain.ThreadContext{Text: "microservices?"}, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(assembled.Blocks) != 1 {
		t.Fatalf("expected only the persona block, got %d blocks", len(assembled.Blocks))
	}
	if assembled.DroppedBlocks != 2 {
		t.Errorf("DroppedBlocks = %d, want 2", assembled.DroppedBlocks)
	}
	if assembled.DroppedTokens <= 0 {
		t.Errorf("DroppedTokens = %d, want > 0", assembled.DroppedTokens)
	}
	// The persona block is over the zero budget and included anyway.
	if assembled.TotalTokens != assembled.Blocks[0].Tokens {
		t.Errorf("TotalTokens = %d, want %d", assembled.TotalTokens, assembled.Blocks[0].Tokens)
	}
}

func TestAssembleContext_BeliefsOrderedByConfidence(t *testing.T) {
	f := setupRetrievalTest(t)
	f.addBelief(t, "low-held belief", 0.3)
	f.addBelief(t, "strongly-held belief", 0.9)
	f.addBelief(t, "mid belief", 0.6)

	assembled, err := f.coordinator.AssembleContext(context.Background(), f.personaID,
		domain.ThreadContext{}, -1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var beliefTexts []string
	for _, b := range assembled.Blocks {
		if b.Kind == domain.BlockBelief {
			beliefTexts = append(beliefTexts, b.Text)
		}
	}
	if len(beliefTexts) != 3 {
		t.Fatalf("expected 3 belief blocks, got %d", len(beliefTexts))
	}
	if !strings.Contains(beliefTexts[0], "strongly-held") {
		t.Errorf("highest-confidence belief should pack first, got %q", beliefTexts[0])
	}
	if !strings.Contains(beliefTexts[2], "low-held") {
		t.Errorf("lowest-confidence belief should pack last, got %q", beliefTexts[2])
	}
}

func TestAssembleContext_Deterministic(t *testing.T) {
	f := setupRetrievalTest(t)
	for i := 0; i < 5; i++ {
		f.addBelief(t, fmt.Sprintf("belief %d", i), 0.7)
	}
	thread := domain.ThreadContext{Subreddit: "golang", Text: "tied confidences"}

	first, err := f.coordinator.AssembleContext(context.Background(), f.personaID, thread, -1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := f.coordinator.AssembleContext(context.Background(), f.personaID, thread, -1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if again.Prompt() != first.Prompt() {
			t.Fatal("identical inputs produced different prompts")
		}
	}
}

func TestAssembleContext_IncludesEpisodicHistory(t *testing.T) {
	f := setupRetrievalTest(t)
	err := f.interactions.Create(context.Background(), &domain.Interaction{
		PersonaID: f.personaID,
		Subreddit: "golang",
		Prompt:    "a thread about generics",
		Response:  "generics help library authors most",
	})
	if err != nil {
		t.Fatalf("seed interaction: %v", err)
	}

	assembled, err := f.coordinator.AssembleContext(context.Background(), f.personaID,
		domain.ThreadContext{Text: "thoughts on generics?"}, -1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	found := false
	for _, b := range assembled.Blocks {
		if b.Kind == domain.BlockHistory && strings.Contains(b.Text, "generics help library authors") {
			found = true
		}
	}
	if !found {
		t.Error("expected a history block with the past response")
	}
}

func TestAssembleContext_DegradesWhenEpisodicFails(t *testing.T) {
	f := setupRetrievalTest(t)
	f.addBelief(t, "a belief that survives the outage", 0.8)
	f.interactions.findErr = errors.New("vector index offline")

	assembled, err := f.coordinator.AssembleContext(context.Background(), f.personaID,
		domain.ThreadContext{Text: "anything"}, -1)
	if err != nil {
		t.Fatalf("assembly must degrade, not fail: %v", err)
	}

	kinds := map[domain.ContextBlockKind]int{}
	for _, b := range assembled.Blocks {
		kinds[b.Kind]++
	}
	if kinds[domain.BlockHistory] != 0 {
		t.Errorf("expected no history blocks, got %d", kinds[domain.BlockHistory])
	}
	if kinds[domain.BlockBelief] != 1 {
		t.Errorf("expected the belief block to survive, got %d", kinds[domain.BlockBelief])
	}
}

func TestAssembleContext_UnknownPersonaFails(t *testing.T) {
	f := setupRetrievalTest(t)

	_, err := f.coordinator.AssembleContext(context.Background(), uuid.New(),
		domain.ThreadContext{Text: "hello"}, -1)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected wrapped store.ErrNotFound, got %v", err)
	}
}

func TestAssembleContext_TopicHintsFilterBeliefs(t *testing.T) {
	f := setupRetrievalTest(t)
	f.addBelief(t, "typed languages scale better", 0.8, "types")
	f.addBelief(t, "tabs beat spaces", 0.5, "formatting")

	assembled, err := f.coordinator.AssembleContext(context.Background(), f.personaID,
		domain.ThreadContext{Text: "types?", TopicHints: []string{"types"}}, -1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(assembled.Beliefs) != 1 {
		t.Fatalf("expected 1 hinted belief, got %d", len(assembled.Beliefs))
	}
	if assembled.Beliefs[0].Title != "typed languages scale better" {
		t.Errorf("wrong belief selected: %q", assembled.Beliefs[0].Title)
	}
}

func TestAssembleContext_BudgetDropsWholeBlocks(t *testing.T) {
	f := setupRetrievalTest(t)
	f.addBelief(t, strings.Repeat("a belief with a very long statement ", 10), 0.9)
	f.addBelief(t, "short", 0.8)

	// Budget fits the persona block and the first belief block but not both
	// beliefs; assemble once at full budget to size the pieces.
	full, err := f.coordinator.AssembleContext(context.Background(), f.personaID,
		domain.ThreadContext{}, -1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(full.Blocks) != 3 {
		t.Fatalf("expected persona + 2 belief blocks, got %d", len(full.Blocks))
	}
	budget := full.Blocks[0].Tokens + full.Blocks[1].Tokens

	trimmed, err := f.coordinator.AssembleContext(context.Background(), f.personaID,
		domain.ThreadContext{}, budget)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(trimmed.Blocks) != 2 {
		t.Fatalf("expected 2 blocks under the tight budget, got %d", len(trimmed.Blocks))
	}
	if trimmed.DroppedBlocks != 1 {
		t.Errorf("DroppedBlocks = %d, want 1", trimmed.DroppedBlocks)
	}
	if trimmed.TotalTokens > budget {
		t.Errorf("TotalTokens %d exceeds budget %d", trimmed.TotalTokens, budget)
	}
	// The surviving belief block must be intact, not truncated.
	if trimmed.Blocks[1].Text != full.Blocks[1].Text {
		t.Error("included block was altered by the budget")
	}
}
