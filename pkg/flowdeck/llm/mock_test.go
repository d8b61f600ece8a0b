package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_CyclesResponses(t *testing.T) {
	m := NewMockClient("unused").WithResponses("one", "two")
	ctx := context.Background()

	var got []string
	for range 3 {
		resp, err := m.Complete(ctx, CompletionRequest{})
		require.NoError(t, err)
		got = append(got, resp.Content)
	}

	assert.Equal(t, []string{"one", "two", "one"}, got)
	assert.Equal(t, 3, m.CallCount())
}

func TestMockClient_Error(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockClient("x").WithError(boom)

	_, err := m.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, boom)
	_, err = m.Stream(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, boom)
}

func TestMockClient_CompleteFunc(t *testing.T) {
	m := NewMockClient("").WithCompleteFunc(func(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
		return &CompletionResponse{Content: strings.ToUpper(req.LastUserMessage())}, nil
	})

	out, err := m.CompleteWithPrompt(context.Background(), "shout", "system")
	require.NoError(t, err)

	assert.Equal(t, "SHOUT", out)
	require.NotNil(t, m.LastCall())
	assert.Equal(t, "system", m.LastCall().SystemPrompt)
}

func TestMockClient_Stream(t *testing.T) {
	m := NewMockClient("a b c")

	ch, err := m.Stream(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	var sb strings.Builder
	var chunks int
	for c := range ch {
		sb.WriteString(c.Content)
		chunks++
	}
	assert.Equal(t, "a b c", sb.String())
	assert.Equal(t, 4, chunks)
}

func TestMockClient_KnowledgeQueries(t *testing.T) {
	m := NewMockClient("answer")
	ctx := context.Background()

	_, err := m.QueryURL(ctx, URLQuery{Question: "q1", URL: "https://example.com"})
	require.NoError(t, err)
	_, err = m.QueryDocument(ctx, DocumentQuery{Question: "q2", FileName: "a.pdf"})
	require.NoError(t, err)

	require.Len(t, m.Calls, 2)
	assert.Equal(t, "https://example.com", m.Calls[0].SystemPrompt)
	assert.Equal(t, "q2", m.Calls[1].LastUserMessage())

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	assert.Nil(t, m.LastCall())
}
