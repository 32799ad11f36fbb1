package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/credobot/credo/internal/domain"
	"github.com/credobot/credo/internal/embedding"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newTestIndex(t *testing.T) (*EpisodicIndex, *mockInteractionStore) {
	t.Helper()
	interactions := &mockInteractionStore{}
	return NewEpisodicIndex(interactions, embedding.NewMockClient(), zap.NewNop()), interactions
}

func waitForInteractions(t *testing.T, store *mockInteractionStore, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		store.mu.Lock()
		n := len(store.interactions)
		store.mu.Unlock()
		if n >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d interactions", want)
}

func TestEpisodicIndex_AppendStoresWithEmbedding(t *testing.T) {
	index, interactions := newTestIndex(t)
	index.Start()
	defer index.Stop()

	personaID := uuid.New()
	err := index.Append(context.Background(), &domain.Interaction{
		PersonaID: personaID,
		Subreddit: "golang",
		Prompt:    "a thread about error handling",
		Response:  "wrap with context, check with errors.Is",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	waitForInteractions(t, interactions, 1)
	interactions.mu.Lock()
	stored := interactions.interactions[0]
	interactions.mu.Unlock()
	if len(stored.Embedding) == 0 {
		t.Error("stored interaction should have been embedded")
	}
	if stored.ID == uuid.Nil {
		t.Error("stored interaction should have an ID")
	}
}

func TestEpisodicIndex_StopDrainsQueue(t *testing.T) {
	index, interactions := newTestIndex(t)
	index.Start()

	personaID := uuid.New()
	for i := 0; i < 10; i++ {
		if err := index.Append(context.Background(), &domain.Interaction{
			PersonaID: personaID,
			Prompt:    "queued interaction",
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	index.Stop()

	interactions.mu.Lock()
	n := len(interactions.interactions)
	interactions.mu.Unlock()
	if n != 10 {
		t.Errorf("expected all 10 queued interactions stored before stop returned, got %d", n)
	}
}

func TestEpisodicIndex_AppendAfterStop(t *testing.T) {
	index, _ := newTestIndex(t)
	index.Start()
	index.Stop()

	err := index.Append(context.Background(), &domain.Interaction{Prompt: "too late"})
	if !errors.Is(err, ErrIndexStopped) {
		t.Errorf("expected ErrIndexStopped, got %v", err)
	}
}

func TestEpisodicIndex_SearchScopedToPersona(t *testing.T) {
	index, interactions := newTestIndex(t)

	mine := uuid.New()
	other := uuid.New()
	ctx := context.Background()
	for _, in := range []*domain.Interaction{
		{PersonaID: mine, Prompt: "my interaction"},
		{PersonaID: other, Prompt: "someone else's interaction"},
	} {
		if err := interactions.Create(ctx, in); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	results, err := index.Search(ctx, mine, "interaction", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].PersonaID != mine {
		t.Error("result leaked across personas")
	}
}

func TestEpisodicIndex_SearchDefaultK(t *testing.T) {
	index, interactions := newTestIndex(t)

	personaID := uuid.New()
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		if err := interactions.Create(ctx, &domain.Interaction{
			PersonaID: personaID,
			Prompt:    "filler",
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	results, err := index.Search(ctx, personaID, "filler", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != DefaultTopEpisodes {
		t.Errorf("k=0 should use the default of %d, got %d", DefaultTopEpisodes, len(results))
	}
}
