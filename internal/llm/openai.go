package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/credobot/credo/internal/domain"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

const chatModel = openai.GPT4oMini

type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{client: openai.NewClient(apiKey)}
}

func (c *OpenAIClient) GenerateReply(ctx context.Context, promptContext string, thread domain.ThreadContext) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: replySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: promptContext},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Thread in r/%s:\n%s\n\nWrite your reply.", thread.Subreddit, thread.Text)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generate reply: empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type consistencyResponse struct {
	IsConsistent bool `json:"is_consistent"`
	Conflicts    []struct {
		BeliefID string `json:"belief_id"`
		Reason   string `json:"reason"`
	} `json:"conflicts"`
	EvidenceStrength string `json:"evidence_strength"`
}

func (c *OpenAIClient) CheckConsistency(ctx context.Context, beliefs []domain.BeliefNode, draft string) (*domain.ConsistencyVerdict, error) {
	var sb strings.Builder
	for _, b := range beliefs {
		fmt.Fprintf(&sb, "%s | %.2f | %s: %s\n", b.ID, b.CurrentConfidence, b.Title, b.Summary)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(consistencyPrompt, sb.String(), draft)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("consistency check: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("consistency check: empty completion")
	}

	return parseConsistency([]byte(resp.Choices[0].Message.Content))
}

func parseConsistency(raw []byte) (*domain.ConsistencyVerdict, error) {
	var parsed consistencyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse consistency response: %w", err)
	}

	verdict := &domain.ConsistencyVerdict{
		IsConsistent:     parsed.IsConsistent,
		EvidenceStrength: domain.EvidenceStrength(parsed.EvidenceStrength),
	}
	if !domain.ValidEvidenceStrength(parsed.EvidenceStrength) {
		verdict.EvidenceStrength = domain.StrengthWeak
	}
	for _, c := range parsed.Conflicts {
		id, err := uuid.Parse(c.BeliefID)
		if err != nil {
			// The model sometimes echoes titles instead of IDs; skip those.
			continue
		}
		verdict.Conflicts = append(verdict.Conflicts, domain.ConsistencyConflict{
			BeliefID: id,
			Reason:   c.Reason,
		})
	}
	return verdict, nil
}

func (c *OpenAIClient) CheckContent(ctx context.Context, draft string) (bool, string, error) {
	resp, err := c.client.Moderations(ctx, openai.ModerationRequest{
		Model: openai.ModerationTextStable,
		Input: draft,
	})
	if err != nil {
		return false, "", fmt.Errorf("content moderation: %w", err)
	}
	for _, r := range resp.Results {
		if r.Flagged {
			return false, flaggedCategories(r.Categories), nil
		}
	}
	return true, "", nil
}

func flaggedCategories(c openai.ResultCategories) string {
	var cats []string
	if c.Hate {
		cats = append(cats, "hate")
	}
	if c.Harassment {
		cats = append(cats, "harassment")
	}
	if c.SelfHarm {
		cats = append(cats, "self-harm")
	}
	if c.Sexual {
		cats = append(cats, "sexual")
	}
	if c.Violence {
		cats = append(cats, "violence")
	}
	if len(cats) == 0 {
		return "flagged"
	}
	return strings.Join(cats, ",")
}
