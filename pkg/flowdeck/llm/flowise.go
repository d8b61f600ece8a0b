package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	fderrors "github.com/randalmurphal/flowdeck/pkg/flowdeck/errors"
)

// ServiceFlowise names Flowise in ServiceError.
const ServiceFlowise = "flowise"

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// FlowiseFlows holds the prediction flow id for each kind of request.
type FlowiseFlows struct {
	Prompt   string
	Document string
	CSV      string
	URL      string
}

// DocumentQuery asks a question about an uploaded file.
type DocumentQuery struct {
	Question    string
	FileName    string
	ContentType string
	Data        []byte
	// Index is the vector index the document is ingested into.
	Index string
	// CSV selects the tabular flow.
	CSV bool
}

// URLQuery asks a question about a web page or repository.
type URLQuery struct {
	Question string
	URL      string
	Index    string
}

// IndexName returns the per-user vector index name.
func IndexName(username string) string {
	return "flowise-ai-" + username
}

// FlowiseClient calls Flowise prediction flows.
type FlowiseClient struct {
	baseURL string
	flows   FlowiseFlows
	apiKey  string
	http    *http.Client
}

// FlowiseOption configures a FlowiseClient.
type FlowiseOption func(*FlowiseClient)

// WithFlowiseAPIKey sends a bearer token with every request.
func WithFlowiseAPIKey(key string) FlowiseOption {
	return func(c *FlowiseClient) { c.apiKey = key }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) FlowiseOption {
	return func(c *FlowiseClient) {
		if h != nil {
			c.http = h
		}
	}
}

// WithFlowiseTimeout sets the per-request timeout. Default: 2 minutes.
func WithFlowiseTimeout(d time.Duration) FlowiseOption {
	return func(c *FlowiseClient) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

// NewFlowiseClient creates a client for the Flowise instance at baseURL.
func NewFlowiseClient(baseURL string, flows FlowiseFlows, opts ...FlowiseOption) *FlowiseClient {
	c := &FlowiseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		flows:   flows,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type predictionRequest struct {
	Question       string         `json:"question"`
	OverrideConfig map[string]any `json:"overrideConfig,omitempty"`
}

type predictionResponse struct {
	Text string `json:"text"`
}

// CompleteWithPrompt answers question with systemPrompt as the system message.
func (c *FlowiseClient) CompleteWithPrompt(ctx context.Context, question, systemPrompt string) (string, error) {
	return c.predictJSON(ctx, c.flows.Prompt, predictionRequest{
		Question:       question,
		OverrideConfig: map[string]any{"systemMessagePrompt": systemPrompt},
	})
}

// QueryURL answers question from the page at q.URL.
func (c *FlowiseClient) QueryURL(ctx context.Context, q URLQuery) (string, error) {
	return c.predictJSON(ctx, c.flows.URL, predictionRequest{
		Question: q.Question,
		OverrideConfig: map[string]any{
			"repoLink":      q.URL,
			"pineconeIndex": q.Index,
		},
	})
}

// QueryDocument uploads the document and answers question from it.
func (c *FlowiseClient) QueryDocument(ctx context.Context, q DocumentQuery) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, q.FileName))
	contentType := q.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(q.Data); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	fields := [][2]string{{"question", q.Question}}
	flow := c.flows.CSV
	if !q.CSV {
		flow = c.flows.Document
		fields = append(fields,
			[2]string{"tableName", "documents"},
			[2]string{"queryName", "match_documents"},
			[2]string{"pineconeIndex", q.Index},
		)
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("build upload: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	return c.predict(ctx, flow, w.FormDataContentType(), &body)
}

func (c *FlowiseClient) predictJSON(ctx context.Context, flow string, req predictionRequest) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode prediction: %w", err)
	}
	return c.predict(ctx, flow, "application/json", bytes.NewReader(b))
}

func (c *FlowiseClient) predict(ctx context.Context, flow, contentType string, body io.Reader) (string, error) {
	if flow == "" {
		return "", &fderrors.ServiceError{Service: ServiceFlowise, Message: "prediction flow not configured"}
	}

	url := fmt.Sprintf("%s/api/v1/prediction/%s", c.baseURL, flow)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &fderrors.ServiceError{Service: ServiceFlowise, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &fderrors.ServiceError{
			Service:    ServiceFlowise,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(msg, resp.Status),
		}
	}

	var out predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &fderrors.ServiceError{Service: ServiceFlowise, StatusCode: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return out.Text, nil
}

// errorMessage extracts {"message": ...} from an error body, falling back to
// the raw body and then the status line.
func errorMessage(body []byte, status string) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return status
}
