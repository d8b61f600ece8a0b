package llm

import (
	"context"
	"strings"
	"sync"
)

// MockClient is a scriptable Client and prompt/knowledge collaborator for tests.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	next      int
	err       error
	fn        func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Calls records every request in order.
	Calls []CompletionRequest
}

var _ Client = (*MockClient)(nil)

// NewMockClient returns a mock answering every request with response.
func NewMockClient(response string) *MockClient {
	return &MockClient{responses: []string{response}}
}

// WithResponses makes the mock cycle through responses.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	m.next = 0
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithCompleteFunc replaces the scripted responses with fn.
func (m *MockClient) WithCompleteFunc(fn func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	fn, err := m.fn, m.err
	var content string
	if len(m.responses) > 0 {
		content = m.responses[m.next%len(m.responses)]
		m.next++
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, req)
	}
	return &CompletionResponse{Content: content, Model: "mock", FinishReason: "stop"}, nil
}

// Stream implements Client by splitting the completion into words.
func (m *MockClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	resp, err := m.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	words := strings.SplitAfter(resp.Content, " ")
	out := make(chan StreamChunk, len(words)+1)
	for _, w := range words {
		if w != "" {
			out <- StreamChunk{Content: w}
		}
	}
	out <- StreamChunk{Done: true, Usage: &resp.Usage}
	close(out)
	return out, nil
}

// CompleteWithPrompt records the call as a system + user request.
func (m *MockClient) CompleteWithPrompt(ctx context.Context, question, systemPrompt string) (string, error) {
	resp, err := m.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []Message{{Role: RoleUser, Content: question}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// QueryDocument records the question with the file name as system prompt.
func (m *MockClient) QueryDocument(ctx context.Context, q DocumentQuery) (string, error) {
	return m.CompleteWithPrompt(ctx, q.Question, q.FileName)
}

// QueryURL records the question with the URL as system prompt.
func (m *MockClient) QueryURL(ctx context.Context, q URLQuery) (string, error) {
	return m.CompleteWithPrompt(ctx, q.Question, q.URL)
}

// CallCount returns the number of calls made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or nil.
func (m *MockClient) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	c := m.Calls[len(m.Calls)-1]
	return &c
}

// Reset clears recorded calls and rewinds the responses.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.next = 0
}
