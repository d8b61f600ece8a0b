package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	fderrors "github.com/randalmurphal/flowdeck/pkg/flowdeck/errors"
)

// ServiceVoice names the voice provider in ServiceError.
const ServiceVoice = "voice"

// Call is a call accepted by the provider.
type Call struct {
	ID        string    `json:"id"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Caller starts and stops calls with a voice provider.
type Caller interface {
	Start(ctx context.Context, cfg SessionConfig) (Call, error)
	Stop(ctx context.Context, callID string) error
}

// HTTPCaller implements Caller against a REST voice-assistant API.
type HTTPCaller struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ Caller = (*HTTPCaller)(nil)

// HTTPCallerOption configures an HTTPCaller.
type HTTPCallerOption func(*HTTPCaller)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) HTTPCallerOption {
	return func(c *HTTPCaller) {
		if h != nil {
			c.http = h
		}
	}
}

// NewHTTPCaller creates a caller authenticated with apiKey.
func NewHTTPCaller(baseURL, apiKey string, opts ...HTTPCallerOption) *HTTPCaller {
	c := &HTTPCaller{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type startCallRequest struct {
	Assistant SessionConfig `json:"assistant"`
}

// Start implements Caller.
func (c *HTTPCaller) Start(ctx context.Context, cfg SessionConfig) (Call, error) {
	body, err := json.Marshal(startCallRequest{Assistant: cfg})
	if err != nil {
		return Call{}, fmt.Errorf("encode call: %w", err)
	}

	var call Call
	if err := c.do(ctx, http.MethodPost, "/call", bytes.NewReader(body), &call); err != nil {
		return Call{}, err
	}
	if call.ID == "" {
		return Call{}, &fderrors.ServiceError{Service: ServiceVoice, Message: "provider returned no call id"}
	}
	return call, nil
}

// Stop implements Caller.
func (c *HTTPCaller) Stop(ctx context.Context, callID string) error {
	return c.do(ctx, http.MethodDelete, "/call/"+url.PathEscape(callID), nil, nil)
}

func (c *HTTPCaller) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build voice request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &fderrors.ServiceError{Service: ServiceVoice, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = resp.Status
		}
		return &fderrors.ServiceError{Service: ServiceVoice, StatusCode: resp.StatusCode, Message: text}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &fderrors.ServiceError{Service: ServiceVoice, StatusCode: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return nil
}
