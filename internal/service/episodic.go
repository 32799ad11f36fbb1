package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/credobot/credo/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultTopEpisodes = 5
	appendQueueSize    = 256
	appendWriteTimeout = 10 * time.Second
)

var ErrIndexStopped = errors.New("episodic index is stopped")

// EpisodicIndex is the nearest-neighbor lookup over past interactions.
// Appends are serialized behind a single writer goroutine so an in-flight
// search never races an insert; searches are plain reads and run freely.
type EpisodicIndex struct {
	interactions domain.InteractionStore
	embedder     domain.EmbeddingClient
	logger       *zap.Logger

	appendCh chan *domain.Interaction
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewEpisodicIndex(interactions domain.InteractionStore, embedder domain.EmbeddingClient, logger *zap.Logger) *EpisodicIndex {
	return &EpisodicIndex{
		interactions: interactions,
		embedder:     embedder,
		logger:       logger,
		appendCh:     make(chan *domain.Interaction, appendQueueSize),
		stopCh:       make(chan struct{}),
	}
}

// Start launches the single append writer.
func (s *EpisodicIndex) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("episodic index writer started")
		for {
			select {
			case in := <-s.appendCh:
				s.write(in)
			case <-s.stopCh:
				// Drain whatever was queued before shutdown.
				for {
					select {
					case in := <-s.appendCh:
						s.write(in)
					default:
						s.logger.Info("episodic index writer stopped")
						return
					}
				}
			}
		}
	}()
}

// Stop drains the queue and stops the writer.
func (s *EpisodicIndex) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Append enqueues an interaction for indexing. It never blocks the agent
// cycle: a full queue or stopped writer returns an error instead.
func (s *EpisodicIndex) Append(ctx context.Context, in *domain.Interaction) error {
	select {
	case <-s.stopCh:
		return ErrIndexStopped
	default:
	}
	select {
	case s.appendCh <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *EpisodicIndex) write(in *domain.Interaction) {
	ctx, cancel := context.WithTimeout(context.Background(), appendWriteTimeout)
	defer cancel()

	if len(in.Embedding) == 0 {
		emb, err := s.embedder.Embed(ctx, in.Prompt)
		if err != nil {
			// Store it anyway; an unembedded interaction is still audit
			// history even if it never surfaces in recall.
			s.logger.Warn("failed to embed interaction",
				zap.String("persona_id", in.PersonaID.String()),
				zap.Error(err))
		} else {
			in.Embedding = emb
		}
	}
	if err := s.interactions.Create(ctx, in); err != nil {
		s.logger.Error("failed to store interaction",
			zap.String("persona_id", in.PersonaID.String()),
			zap.Error(err))
	}
}

// Search embeds text and returns the k nearest past interactions, best
// first. k <= 0 uses the default of 5.
func (s *EpisodicIndex) Search(ctx context.Context, personaID uuid.UUID, text string, k int) ([]domain.InteractionWithScore, error) {
	if k <= 0 {
		k = DefaultTopEpisodes
	}
	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.interactions.FindSimilar(ctx, personaID, emb, k)
}
