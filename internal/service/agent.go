package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/credobot/credo/internal/domain"
	"github.com/credobot/credo/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 5 * time.Minute
	cycleTimeout        = 2 * time.Minute
	threadsPerCycle     = 3
)

var ErrDraftNotQueued = errors.New("draft is not queued")

// AgentService runs the perceive -> retrieve -> generate -> moderate -> act
// loop for every persona. Core errors are non-fatal for a cycle: log, skip,
// continue.
type AgentService struct {
	personas  domain.PersonaStore
	drafts    domain.DraftStore
	reddit    domain.RedditClient
	llm       domain.LLMClient
	retrieval *RetrievalCoordinator
	gate      *ModerationGate
	episodic  *EpisodicIndex
	logger    *zap.Logger

	interval    time.Duration
	tokenBudget int
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

func NewAgentService(
	personas domain.PersonaStore,
	drafts domain.DraftStore,
	reddit domain.RedditClient,
	llm domain.LLMClient,
	retrieval *RetrievalCoordinator,
	gate *ModerationGate,
	episodic *EpisodicIndex,
	logger *zap.Logger,
) *AgentService {
	return &AgentService{
		personas:    personas,
		drafts:      drafts,
		reddit:      reddit,
		llm:         llm,
		retrieval:   retrieval,
		gate:        gate,
		episodic:    episodic,
		logger:      logger,
		interval:    defaultPollInterval,
		tokenBudget: DefaultTokenBudget,
		stopCh:      make(chan struct{}),
	}
}

func (s *AgentService) SetInterval(d time.Duration) {
	s.interval = d
}

func (s *AgentService) SetTokenBudget(budget int) {
	if budget > 0 {
		s.tokenBudget = budget
	}
}

// Start runs the agent loop on a periodic schedule in a background goroutine.
func (s *AgentService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("agent loop started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
				s.RunCycle(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("agent loop stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the agent loop.
func (s *AgentService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunCycle runs one full pass over all personas.
func (s *AgentService) RunCycle(ctx context.Context) {
	personas, err := s.personas.List(ctx)
	if err != nil {
		s.logger.Error("failed to list personas", zap.Error(err))
		return
	}
	for i := range personas {
		if ctx.Err() != nil {
			return
		}
		s.runPersona(ctx, &personas[i])
	}
}

func (s *AgentService) runPersona(ctx context.Context, persona *domain.Persona) {
	if len(persona.Config.TargetSubreddits) == 0 {
		return
	}

	threads, err := s.reddit.FetchThreads(ctx, persona.Config.TargetSubreddits, threadsPerCycle)
	if err != nil {
		s.logger.Warn("failed to fetch threads",
			zap.String("persona_id", persona.ID.String()),
			zap.Error(err))
		return
	}

	for _, thread := range threads {
		if ctx.Err() != nil {
			return
		}
		if err := s.handleThread(ctx, persona, thread); err != nil {
			s.logger.Warn("thread handling failed, skipping",
				zap.String("persona_id", persona.ID.String()),
				zap.String("thread_id", thread.ThreadID),
				zap.Error(err))
		}
	}
}

func (s *AgentService) handleThread(ctx context.Context, persona *domain.Persona, thread domain.ThreadContext) error {
	assembled, err := s.retrieval.AssembleContext(ctx, persona.ID, thread, s.tokenBudget)
	if err != nil {
		return err
	}

	body, err := s.llm.GenerateReply(ctx, assembled.Prompt(), thread)
	if err != nil {
		return err
	}

	verdict, err := s.llm.CheckConsistency(ctx, assembled.Beliefs, body)
	if err != nil {
		// Without a verdict the gate cannot clear the draft; queue it.
		s.logger.Warn("consistency check failed, queueing draft",
			zap.String("persona_id", persona.ID.String()),
			zap.Error(err))
		verdict = nil
	}

	var decision *GateDecision
	if verdict == nil {
		decision = &GateDecision{Status: domain.DraftQueued, Reason: "consistency check unavailable"}
	} else {
		decision, err = s.gate.Decide(ctx, persona, body, verdict)
		if err != nil {
			return err
		}
	}

	draft := &domain.Draft{
		PersonaID:  persona.ID,
		Subreddit:  thread.Subreddit,
		ThreadID:   thread.ThreadID,
		Body:       body,
		Status:     decision.Status,
		GateReason: decision.Reason,
	}
	if err := s.drafts.Create(ctx, draft); err != nil {
		return err
	}

	outcome := string(decision.Status)
	if decision.Status == domain.DraftApproved {
		if _, err := s.reddit.PostReply(ctx, thread, body); err != nil {
			s.logger.Warn("post failed, leaving draft approved for retry",
				zap.String("draft_id", draft.ID.String()),
				zap.Error(err))
		} else {
			outcome = string(domain.DraftPosted)
			if err := s.drafts.UpdateStatus(ctx, draft.ID, domain.DraftApproved, domain.DraftPosted, ""); err != nil {
				s.logger.Warn("failed to mark draft posted",
					zap.String("draft_id", draft.ID.String()),
					zap.Error(err))
			}
		}
	}

	interaction := &domain.Interaction{
		PersonaID: persona.ID,
		Subreddit: thread.Subreddit,
		ThreadID:  thread.ThreadID,
		Prompt:    thread.Text,
		Response:  body,
		Outcome:   outcome,
	}
	if err := s.episodic.Append(ctx, interaction); err != nil {
		s.logger.Warn("failed to enqueue interaction",
			zap.String("persona_id", persona.ID.String()),
			zap.Error(err))
	}
	return nil
}

// PublishDraft posts a human-approved queued draft.
func (s *AgentService) PublishDraft(ctx context.Context, personaID, draftID uuid.UUID) (*domain.Draft, error) {
	draft, err := s.drafts.GetByID(ctx, draftID, personaID)
	if err != nil {
		return nil, err
	}
	if draft.Status != domain.DraftQueued {
		return nil, ErrDraftNotQueued
	}

	thread := domain.ThreadContext{Subreddit: draft.Subreddit, ThreadID: draft.ThreadID}
	if _, err := s.reddit.PostReply(ctx, thread, draft.Body); err != nil {
		return nil, err
	}
	if err := s.drafts.UpdateStatus(ctx, draft.ID, domain.DraftQueued, domain.DraftPosted, "approved by review"); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrDraftNotQueued
		}
		return nil, err
	}
	draft.Status = domain.DraftPosted
	return draft, nil
}

// RejectDraft discards a queued draft.
func (s *AgentService) RejectDraft(ctx context.Context, personaID, draftID uuid.UUID, reason string) error {
	if _, err := s.drafts.GetByID(ctx, draftID, personaID); err != nil {
		return err
	}
	err := s.drafts.UpdateStatus(ctx, draftID, domain.DraftQueued, domain.DraftRejected, reason)
	if errors.Is(err, store.ErrConflict) {
		return ErrDraftNotQueued
	}
	return err
}
