package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fderrors "github.com/randalmurphal/flowdeck/pkg/flowdeck/errors"
)

var testFlows = FlowiseFlows{Prompt: "prompt-flow", Document: "doc-flow", CSV: "csv-flow", URL: "url-flow"}

func TestFlowiseClient_CompleteWithPrompt(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"text":"Bonjour"}`))
	}))
	defer srv.Close()

	c := NewFlowiseClient(srv.URL+"/", testFlows, WithFlowiseAPIKey("secret"))
	out, err := c.CompleteWithPrompt(context.Background(), "Hello", "Translate to French")
	require.NoError(t, err)

	assert.Equal(t, "Bonjour", out)
	assert.Equal(t, "/api/v1/prediction/prompt-flow", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "Hello", gotBody["question"])
	override, ok := gotBody["overrideConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Translate to French", override["systemMessagePrompt"])
}

func TestFlowiseClient_QueryURL(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"text":"it is a repo"}`))
	}))
	defer srv.Close()

	c := NewFlowiseClient(srv.URL, testFlows)
	out, err := c.QueryURL(context.Background(), URLQuery{
		Question: "what is this?",
		URL:      "https://example.com/repo",
		Index:    IndexName("alice"),
	})
	require.NoError(t, err)

	assert.Equal(t, "it is a repo", out)
	assert.Equal(t, "/api/v1/prediction/url-flow", gotPath)
	override := gotBody["overrideConfig"].(map[string]any)
	assert.Equal(t, "https://example.com/repo", override["repoLink"])
	assert.Equal(t, "flowise-ai-alice", override["pineconeIndex"])
}

func TestFlowiseClient_QueryDocument(t *testing.T) {
	tests := []struct {
		name      string
		csv       bool
		wantPath  string
		wantTable string
	}{
		{name: "document", csv: false, wantPath: "/api/v1/prediction/doc-flow", wantTable: "documents"},
		{name: "csv", csv: true, wantPath: "/api/v1/prediction/csv-flow", wantTable: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotQuestion, gotTable, gotFile, gotContent string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				require.NoError(t, r.ParseMultipartForm(1<<20))
				gotQuestion = r.FormValue("question")
				gotTable = r.FormValue("tableName")
				f, hdr, err := r.FormFile("files")
				require.NoError(t, err)
				defer f.Close()
				gotFile = hdr.Filename
				b, _ := io.ReadAll(f)
				gotContent = string(b)
				_, _ = w.Write([]byte(`{"text":"answer"}`))
			}))
			defer srv.Close()

			c := NewFlowiseClient(srv.URL, testFlows)
			out, err := c.QueryDocument(context.Background(), DocumentQuery{
				Question: "summarize",
				FileName: "notes.txt",
				Data:     []byte("hello world"),
				Index:    IndexName("bob"),
				CSV:      tt.csv,
			})
			require.NoError(t, err)

			assert.Equal(t, "answer", out)
			assert.Equal(t, tt.wantPath, gotPath)
			assert.Equal(t, "summarize", gotQuestion)
			assert.Equal(t, tt.wantTable, gotTable)
			assert.Equal(t, "notes.txt", gotFile)
			assert.Equal(t, "hello world", gotContent)
		})
	}
}

func TestFlowiseClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"flow crashed"}`))
	}))
	defer srv.Close()

	c := NewFlowiseClient(srv.URL, testFlows)
	_, err := c.CompleteWithPrompt(context.Background(), "q", "p")
	require.Error(t, err)

	var svcErr *fderrors.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, ServiceFlowise, svcErr.Service)
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
	assert.Equal(t, "flow crashed", svcErr.Message)
	assert.Equal(t, fderrors.CategoryExternal, fderrors.Categorize(err))
}

func TestFlowiseClient_UnconfiguredFlow(t *testing.T) {
	c := NewFlowiseClient("http://127.0.0.1:0", FlowiseFlows{})
	_, err := c.QueryURL(context.Background(), URLQuery{Question: "q", URL: "u"})

	var svcErr *fderrors.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Contains(t, svcErr.Message, "not configured")
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "boom", errorMessage([]byte(`{"message":"boom"}`), "500"))
	assert.Equal(t, "bad", errorMessage([]byte(`{"error":"bad"}`), "500"))
	assert.Equal(t, "plain text", errorMessage([]byte("plain text\n"), "500"))
	assert.Equal(t, "502 Bad Gateway", errorMessage(nil, "502 Bad Gateway"))
}
