package reddit

import (
	"context"

	"github.com/credobot/credo/internal/domain"
)

// MockClient is a configurable Reddit client for testing.
type MockClient struct {
	FetchThreadsResponse []domain.ThreadContext
	FetchThreadsError    error
	PostReplyID          string
	PostReplyError       error

	// Call tracking for assertions
	FetchThreadsCalls [][]string
	PostReplyCalls    []struct {
		Thread domain.ThreadContext
		Body   string
	}
}

func NewMockClient() *MockClient {
	return &MockClient{PostReplyID: "t1_mock"}
}

func (m *MockClient) FetchThreads(_ context.Context, subreddits []string, _ int) ([]domain.ThreadContext, error) {
	m.FetchThreadsCalls = append(m.FetchThreadsCalls, subreddits)
	if m.FetchThreadsError != nil {
		return nil, m.FetchThreadsError
	}
	return m.FetchThreadsResponse, nil
}

func (m *MockClient) PostReply(_ context.Context, thread domain.ThreadContext, body string) (string, error) {
	m.PostReplyCalls = append(m.PostReplyCalls, struct {
		Thread domain.ThreadContext
		Body   string
	}{thread, body})
	if m.PostReplyError != nil {
		return "", m.PostReplyError
	}
	return m.PostReplyID, nil
}
