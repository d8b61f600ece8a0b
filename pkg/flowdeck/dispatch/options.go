package dispatch

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck/llm"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/notify"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/observability"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/ratelimit"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/store"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/voice"
)

// PromptCompleter answers a question under a custom system prompt.
type PromptCompleter interface {
	CompleteWithPrompt(ctx context.Context, question, systemPrompt string) (string, error)
}

// KnowledgeQuerier answers questions from a document or a URL.
type KnowledgeQuerier interface {
	QueryDocument(ctx context.Context, q llm.DocumentQuery) (string, error)
	QueryURL(ctx context.Context, q llm.URLQuery) (string, error)
}

// DocumentSource looks up a user's ingested documents.
type DocumentSource interface {
	GetDocument(ctx context.Context, id string) (store.Document, error)
	ListDocuments(ctx context.Context, userID string, limit int) ([]store.Document, error)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPrompt sets the collaborator for custom-prompt nodes.
func WithPrompt(p PromptCompleter) Option {
	return func(d *Dispatcher) { d.prompt = p }
}

// WithKnowledge sets the retrieval-augmented collaborator.
func WithKnowledge(k KnowledgeQuerier) Option {
	return func(d *Dispatcher) { d.knowledge = k }
}

// WithChat sets the generic chat collaborator used by the fallback rule.
// Without one the fallback answers with a fixed message.
func WithChat(c llm.Client) Option {
	return func(d *Dispatcher) { d.chat = c }
}

// WithCaller sets the voice provider.
func WithCaller(c voice.Caller) Option {
	return func(d *Dispatcher) { d.caller = c }
}

// WithDocuments sets where ingested documents are looked up.
func WithDocuments(s DocumentSource) Option {
	return func(d *Dispatcher) { d.documents = s }
}

// WithRateLimit sets the checker consulted before every call. Without one
// runs are not rate limited.
func WithRateLimit(c *ratelimit.Checker) Option {
	return func(d *Dispatcher) { d.limits = c }
}

// WithNotifier sets where user-visible notifications go.
// Default: notify.Discard.
func WithNotifier(n notify.Notifier) Option {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithSessions shares a call registry between dispatchers.
func WithSessions(r *voice.Registry) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.sessions = r
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder. Default: observability.NoopMetrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithTracing enables dispatch and collaborator spans.
func WithTracing(s observability.SpanManager) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.spans = s
		}
	}
}

// WithStructureCheck requires Start and END nodes and every node to be
// connected before any rule runs.
func WithStructureCheck(enabled bool) Option {
	return func(d *Dispatcher) { d.structureCheck = enabled }
}
