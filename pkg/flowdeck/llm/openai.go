package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	fderrors "github.com/randalmurphal/flowdeck/pkg/flowdeck/errors"
)

// ServiceOpenAI names OpenAI in ServiceError.
const ServiceOpenAI = "openai"

// Chat defaults applied when a request leaves a parameter unset.
const (
	DefaultChatModel        = "gpt-3.5-turbo"
	DefaultChatTemperature  = 0.0
	DefaultChatTopP         = 1.0
	DefaultChatPenalty      = 0.9
	DefaultChatMaxTokens    = 150
	defaultChatTimeLocation = "Asia/Jakarta"
)

// OpenAIClient implements Client with the OpenAI chat completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	now    func() time.Time
	loc    *time.Location
}

var _ Client = (*OpenAIClient)(nil)

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*openAIOptions)

type openAIOptions struct {
	baseURL string
	model   string
	now     func() time.Time
	loc     *time.Location
}

// WithBaseURL points the client at a compatible API, e.g. "http://host/v1".
func WithBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) { o.baseURL = url }
}

// WithModel sets the model used when a request names none.
func WithModel(model string) OpenAIOption {
	return func(o *openAIOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithClock sets the clock used in the default system prompt.
func WithClock(now func() time.Time, loc *time.Location) OpenAIOption {
	return func(o *openAIOptions) {
		if now != nil {
			o.now = now
		}
		if loc != nil {
			o.loc = loc
		}
	}
}

// NewOpenAIClient creates a client authenticated with apiKey.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	o := openAIOptions{model: DefaultChatModel, now: time.Now}
	if loc, err := time.LoadLocation(defaultChatTimeLocation); err == nil {
		o.loc = loc
	} else {
		o.loc = time.UTC
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  o.model,
		now:    o.now,
		loc:    o.loc,
	}
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req, false))
	if err != nil {
		return nil, openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &fderrors.ServiceError{Service: ServiceOpenAI, Message: "no choices returned"}
	}

	choice := resp.Choices[0]
	return &CompletionResponse{
		Content: choice.Message.Content,
		Usage: TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Duration:     time.Since(start),
	}, nil
}

// Stream implements Client.
func (c *OpenAIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, openAIError(err)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				send(ctx, out, StreamChunk{Done: true})
				return
			}
			if err != nil {
				send(ctx, out, StreamChunk{Error: openAIError(err)})
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(ctx, out, StreamChunk{Content: resp.Choices[0].Delta.Content}) {
				return
			}
		}
	}()
	return out, nil
}

// send delivers chunk unless ctx is done first.
func send(ctx context.Context, out chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *OpenAIClient) buildRequest(req CompletionRequest, stream bool) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	temperature := valueOr(req.Temperature, DefaultChatTemperature)
	topP := valueOr(req.TopP, DefaultChatTopP)
	presence := valueOr(req.PresencePenalty, DefaultChatPenalty)
	frequency := valueOr(req.FrequencyPenalty, DefaultChatPenalty)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultChatMaxTokens
	}

	system := req.SystemPrompt
	if system == "" {
		system = fmt.Sprintf("You are an AI assistant. Current time: %s. "+
			"You are operating with a temperature of %g, topP of %g, presence penalty of %g, "+
			"frequency penalty of %g, and max tokens of %d.",
			c.now().In(c.loc).Format("02/01/2006 15.04.05"), temperature, topP, presence, frequency, maxTokens)
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	return openai.ChatCompletionRequest{
		Model:            model,
		Messages:         msgs,
		MaxTokens:        maxTokens,
		Temperature:      nonZero(temperature),
		TopP:             nonZero(topP),
		PresencePenalty:  float32(presence),
		FrequencyPenalty: float32(frequency),
		User:             req.User,
		Stream:           stream,
	}
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// nonZero keeps an explicit zero from being dropped by omitempty.
func nonZero(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}

func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &fderrors.ServiceError{Service: ServiceOpenAI, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &fderrors.ServiceError{Service: ServiceOpenAI, StatusCode: reqErr.HTTPStatusCode, Message: "request failed", Err: err}
	}
	return &fderrors.ServiceError{Service: ServiceOpenAI, Message: "request failed", Err: err}
}
