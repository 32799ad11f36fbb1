package llm

import (
	"context"

	"github.com/credobot/credo/internal/domain"
)

// MockClient is a configurable LLM client for testing.
// Set the response fields to control what each method returns.
type MockClient struct {
	GenerateReplyResponse    string
	GenerateReplyError       error
	CheckConsistencyResponse *domain.ConsistencyVerdict
	CheckConsistencyError    error
	CheckContentOK           bool
	CheckContentReason       string
	CheckContentError        error

	// Call tracking for assertions
	GenerateReplyCalls    []domain.ThreadContext
	CheckConsistencyCalls []string
	CheckContentCalls     []string
}

func NewMockClient() *MockClient {
	return &MockClient{
		GenerateReplyResponse:    "Mock reply",
		CheckConsistencyResponse: &domain.ConsistencyVerdict{IsConsistent: true, EvidenceStrength: domain.StrengthWeak},
		CheckContentOK:           true,
	}
}

func (m *MockClient) GenerateReply(_ context.Context, _ string, thread domain.ThreadContext) (string, error) {
	m.GenerateReplyCalls = append(m.GenerateReplyCalls, thread)
	if m.GenerateReplyError != nil {
		return "", m.GenerateReplyError
	}
	return m.GenerateReplyResponse, nil
}

func (m *MockClient) CheckConsistency(_ context.Context, _ []domain.BeliefNode, draft string) (*domain.ConsistencyVerdict, error) {
	m.CheckConsistencyCalls = append(m.CheckConsistencyCalls, draft)
	if m.CheckConsistencyError != nil {
		return nil, m.CheckConsistencyError
	}
	return m.CheckConsistencyResponse, nil
}

func (m *MockClient) CheckContent(_ context.Context, draft string) (bool, string, error) {
	m.CheckContentCalls = append(m.CheckContentCalls, draft)
	if m.CheckContentError != nil {
		return false, "", m.CheckContentError
	}
	return m.CheckContentOK, m.CheckContentReason, nil
}
