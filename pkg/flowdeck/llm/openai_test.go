package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fderrors "github.com/randalmurphal/flowdeck/pkg/flowdeck/errors"
)

func newOpenAITestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return NewOpenAIClient("test-key",
		WithBaseURL(srv.URL+"/v1"),
		WithClock(func() time.Time { return fixed }, time.UTC),
	)
}

func TestOpenAIClient_Complete_Defaults(t *testing.T) {
	var got map[string]any
	c := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-3.5-turbo",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hi there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	})

	resp, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, DefaultChatModel, got["model"])
	assert.EqualValues(t, DefaultChatMaxTokens, got["max_tokens"])
	assert.InDelta(t, 0.9, got["presence_penalty"], 1e-6)
	assert.InDelta(t, 0.9, got["frequency_penalty"], 1e-6)
	assert.InDelta(t, 1.0, got["top_p"], 1e-6)
	assert.InDelta(t, 0.0, got["temperature"], 1e-6)

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	system := msgs[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Contains(t, system["content"], "Current time: 02/01/2026 03.04.05")
	assert.Equal(t, "hello", msgs[1].(map[string]any)["content"])
}

func TestOpenAIClient_Complete_Overrides(t *testing.T) {
	var got map[string]any
	c := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	})

	temperature := 0.5
	_, err := c.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "Be brief.",
		Messages: []Message{
			{Role: RoleUser, Content: "a"},
			{Role: RoleAssistant, Content: "b"},
			{Role: RoleUser, Content: "c"},
		},
		Model:       "gpt-4o-mini",
		MaxTokens:   42,
		Temperature: &temperature,
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.EqualValues(t, 42, got["max_tokens"])
	assert.InDelta(t, 0.5, got["temperature"], 1e-6)
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "Be brief.", msgs[0].(map[string]any)["content"])
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])
}

func TestOpenAIClient_Complete_APIError(t *testing.T) {
	c := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_error"}}`))
	})

	_, err := c.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.Error(t, err)

	var svcErr *fderrors.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, ServiceOpenAI, svcErr.Service)
	assert.Equal(t, http.StatusTooManyRequests, svcErr.StatusCode)
	assert.Equal(t, "slow down", svcErr.Message)
}

func TestOpenAIClient_Complete_NoChoices(t *testing.T) {
	c := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := c.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	var svcErr *fderrors.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "no choices returned", svcErr.Message)
}

func TestOpenAIClient_Stream(t *testing.T) {
	var got map[string]any
	c := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, word := range []string{"Hel", "lo", " world"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", word)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	ch, err := c.Stream(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)

	var sb strings.Builder
	var done bool
	for chunk := range ch {
		require.NoError(t, chunk.Error)
		sb.WriteString(chunk.Content)
		if chunk.Done {
			done = true
		}
	}

	assert.True(t, done)
	assert.Equal(t, "Hello world", sb.String())
	assert.Equal(t, true, got["stream"])
}
