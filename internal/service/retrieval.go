package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/credobot/credo/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultTokenBudget       = 3000
	DefaultDependencyTimeout = 300 * time.Millisecond
	maxCandidateBeliefs      = 20
	evidencePerBelief        = 2
)

// RetrievalCoordinator assembles the token-bounded prompt context the agent
// hands to the LLM. It sits in the synchronous decision path, so every
// dependency call carries its own timeout and a failure degrades to a
// partial context instead of aborting the cycle.
type RetrievalCoordinator struct {
	personas domain.PersonaStore
	beliefs  domain.BeliefStore
	episodic *EpisodicIndex
	logger   *zap.Logger

	// DependencyTimeout bounds each BeliefStore / EpisodicIndex call.
	DependencyTimeout time.Duration
}

func NewRetrievalCoordinator(personas domain.PersonaStore, beliefs domain.BeliefStore, episodic *EpisodicIndex, logger *zap.Logger) *RetrievalCoordinator {
	return &RetrievalCoordinator{
		personas:          personas,
		beliefs:           beliefs,
		episodic:          episodic,
		logger:            logger,
		DependencyTimeout: DefaultDependencyTimeout,
	}
}

// AssembleContext builds the context for one reply. A negative tokenBudget
// uses the default of 3000; zero is a real budget that admits only the
// persona block. The persona block is always included, even over
// budget; everything else is packed greedily in priority order and dropped
// whole once the budget is exhausted. Identical inputs produce identical
// output: all orderings tie-break on IDs.
func (s *RetrievalCoordinator) AssembleContext(ctx context.Context, personaID uuid.UUID, thread domain.ThreadContext, tokenBudget int) (*domain.AssembledContext, error) {
	// Zero is a real budget (persona block only); negative means default.
	if tokenBudget < 0 {
		tokenBudget = DefaultTokenBudget
	}

	// Persona config is the one dependency that must succeed; without it
	// there is no identity to speak in.
	persona, err := s.personas.GetByID(ctx, personaID)
	if err != nil {
		return nil, fmt.Errorf("load persona: %w", err)
	}

	nodes := s.fetchBeliefs(ctx, personaID, thread.TopicHints)
	edges := s.fetchEdges(ctx, personaID, nodes)
	episodes := s.fetchEpisodes(ctx, personaID, thread.Text)

	assembled := &domain.AssembledContext{PersonaID: personaID, Beliefs: nodes}

	personaBlock := domain.ContextBlock{
		Kind: domain.BlockPersona,
		Text: renderPersona(persona),
	}
	personaBlock.Tokens = domain.EstimateTokens(personaBlock.Text)
	assembled.Blocks = append(assembled.Blocks, personaBlock)
	assembled.TotalTokens = personaBlock.Tokens

	var candidates []domain.ContextBlock
	candidates = append(candidates, beliefBlocks(nodes, edges)...)
	candidates = append(candidates, historyBlocks(episodes)...)
	candidates = append(candidates, s.evidenceBlocks(ctx, nodes)...)

	// Greedy packing: the first block that would exceed the budget ends
	// inclusion; it and everything after it are dropped whole.
	budgetLeft := tokenBudget - personaBlock.Tokens
	overflowed := false
	for _, b := range candidates {
		if overflowed || b.Tokens > budgetLeft {
			overflowed = true
			assembled.DroppedBlocks++
			assembled.DroppedTokens += b.Tokens
			continue
		}
		assembled.Blocks = append(assembled.Blocks, b)
		assembled.TotalTokens += b.Tokens
		budgetLeft -= b.Tokens
	}

	return assembled, nil
}

func (s *RetrievalCoordinator) fetchBeliefs(ctx context.Context, personaID uuid.UUID, topicHints []string) []domain.BeliefNode {
	depCtx, cancel := context.WithTimeout(ctx, s.DependencyTimeout)
	defer cancel()

	nodes, err := s.beliefs.GetNodesByTags(depCtx, personaID, topicHints)
	if err != nil {
		s.logger.Warn("belief fetch failed, assembling without beliefs",
			zap.String("persona_id", personaID.String()),
			zap.Error(err))
		return nil
	}
	if len(nodes) > maxCandidateBeliefs {
		nodes = nodes[:maxCandidateBeliefs]
	}
	return nodes
}

func (s *RetrievalCoordinator) fetchEdges(ctx context.Context, personaID uuid.UUID, nodes []domain.BeliefNode) []domain.BeliefEdge {
	if len(nodes) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}

	depCtx, cancel := context.WithTimeout(ctx, s.DependencyTimeout)
	defer cancel()

	edges, err := s.beliefs.EdgesTouching(depCtx, personaID, ids)
	if err != nil {
		s.logger.Warn("edge fetch failed, assembling without relations",
			zap.String("persona_id", personaID.String()),
			zap.Error(err))
		return nil
	}
	return edges
}

func (s *RetrievalCoordinator) fetchEpisodes(ctx context.Context, personaID uuid.UUID, text string) []domain.InteractionWithScore {
	if text == "" {
		return nil
	}
	depCtx, cancel := context.WithTimeout(ctx, s.DependencyTimeout)
	defer cancel()

	episodes, err := s.episodic.Search(depCtx, personaID, text, DefaultTopEpisodes)
	if err != nil {
		s.logger.Warn("episodic search failed, assembling without history",
			zap.String("persona_id", personaID.String()),
			zap.Error(err))
		return nil
	}
	return episodes
}

func (s *RetrievalCoordinator) evidenceBlocks(ctx context.Context, nodes []domain.BeliefNode) []domain.ContextBlock {
	var blocks []domain.ContextBlock
	for _, n := range nodes {
		depCtx, cancel := context.WithTimeout(ctx, s.DependencyTimeout)
		links, err := s.beliefs.TopEvidence(depCtx, n.ID, evidencePerBelief)
		cancel()
		if err != nil {
			s.logger.Warn("evidence fetch failed, skipping belief's evidence",
				zap.String("belief_id", n.ID.String()),
				zap.Error(err))
			continue
		}
		for _, ev := range links {
			text := fmt.Sprintf("Evidence for %q (%s, %s): %s", n.Title, ev.Strength, ev.SourceType, ev.SourceRef)
			blocks = append(blocks, domain.ContextBlock{
				Kind:   domain.BlockEvidence,
				RefID:  ev.ID,
				Text:   text,
				Tokens: domain.EstimateTokens(text),
			})
		}
	}
	return blocks
}

func renderPersona(p *domain.Persona) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s.", p.Name)
	if p.Config.Tone != "" {
		fmt.Fprintf(&sb, " Tone: %s.", p.Config.Tone)
	}
	if len(p.Config.Values) > 0 {
		fmt.Fprintf(&sb, " Values: %s.", strings.Join(p.Config.Values, ", "))
	}
	if len(p.Config.TargetSubreddits) > 0 {
		fmt.Fprintf(&sb, " Home subreddits: %s.", strings.Join(p.Config.TargetSubreddits, ", "))
	}
	return sb.String()
}

// beliefBlocks renders one block per belief, ordered by confidence
// descending then ID, with the node's relations folded into the block.
func beliefBlocks(nodes []domain.BeliefNode, edges []domain.BeliefEdge) []domain.ContextBlock {
	titles := make(map[uuid.UUID]string, len(nodes))
	for _, n := range nodes {
		titles[n.ID] = n.Title
	}

	sorted := make([]domain.BeliefNode, len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CurrentConfidence != sorted[j].CurrentConfidence {
			return sorted[i].CurrentConfidence > sorted[j].CurrentConfidence
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	blocks := make([]domain.ContextBlock, 0, len(sorted))
	for _, n := range sorted {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Belief (confidence %.2f): %s", n.CurrentConfidence, n.Title)
		if n.Summary != "" {
			fmt.Fprintf(&sb, "\nStance: %s", n.Summary)
		}
		for _, e := range edges {
			if e.SourceID != n.ID {
				continue
			}
			target := titles[e.TargetID]
			if target == "" {
				target = e.TargetID.String()
			}
			fmt.Fprintf(&sb, "\n- %s %q (weight %.2f)", e.Relation, target, e.Weight)
		}
		text := sb.String()
		blocks = append(blocks, domain.ContextBlock{
			Kind:      domain.BlockBelief,
			RefID:     n.ID,
			Text:      text,
			Tokens:    domain.EstimateTokens(text),
			SortScore: n.CurrentConfidence,
		})
	}
	return blocks
}

// historyBlocks renders past interactions ordered by similarity descending
// then ID.
func historyBlocks(episodes []domain.InteractionWithScore) []domain.ContextBlock {
	sorted := make([]domain.InteractionWithScore, len(episodes))
	copy(sorted, episodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	blocks := make([]domain.ContextBlock, 0, len(sorted))
	for _, ep := range sorted {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Past interaction in r/%s (similarity %.2f):\n%s", ep.Subreddit, ep.Score, ep.Prompt)
		if ep.Response != "" {
			fmt.Fprintf(&sb, "\nYou replied: %s", ep.Response)
		}
		text := sb.String()
		blocks = append(blocks, domain.ContextBlock{
			Kind:      domain.BlockHistory,
			RefID:     ep.ID,
			Text:      text,
			Tokens:    domain.EstimateTokens(text),
			SortScore: ep.Score,
		})
	}
	return blocks
}
