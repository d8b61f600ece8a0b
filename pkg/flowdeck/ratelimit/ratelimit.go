// Package ratelimit enforces per-user daily quotas for running flows,
// chatting and placing AI phone calls.
//
// Two Limiter implementations are provided: RedisLimiter keeps a sliding
// window log in Redis and is shared between processes; MemoryLimiter keeps
// token buckets in process.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck/config"
	fderrors "github.com/randalmurphal/flowdeck/pkg/flowdeck/errors"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/observability"
)

// Kind names a quota.
type Kind string

// Quota kinds.
const (
	KindFlow    Kind = "flow"
	KindChat    Kind = "chat"
	KindAIPhone Kind = "aiphone"
	KindChatAPI Kind = "chat-api"
)

// ParseKind validates a kind received from a client.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindFlow, KindChat, KindAIPhone, KindChatAPI:
		return k, nil
	}
	return "", fderrors.Validation("", "type", fmt.Sprintf("unknown rate limit type %q", s))
}

// Key returns the quota key for a user, e.g. "flow-limit-<id>". The
// chat-api kind also keys on the user name.
func Key(kind Kind, userID string, more ...string) string {
	prefix := kind
	if kind == KindChatAPI {
		prefix = KindChat
	}
	key := fmt.Sprintf("%s-limit-%s", prefix, userID)
	for _, m := range more {
		key += "-" + m
	}
	return key
}

// Quota is the number of requests allowed per sliding window.
type Quota struct {
	Limit  int
	Window time.Duration
}

// Quotas maps each kind to its quota.
type Quotas map[Kind]Quota

// DefaultQuotas returns 50 runs, chats and calls, and 200 streamed chat
// requests, per user per 24 hours.
func DefaultQuotas() Quotas {
	day := 24 * time.Hour
	return Quotas{
		KindFlow:    {Limit: 50, Window: day},
		KindChat:    {Limit: 50, Window: day},
		KindAIPhone: {Limit: 50, Window: day},
		KindChatAPI: {Limit: 200, Window: day},
	}
}

// QuotasFromSettings builds quotas from the service settings.
func QuotasFromSettings(s config.RateLimitSettings) Quotas {
	return Quotas{
		KindFlow:    {Limit: s.Flow, Window: s.Window},
		KindChat:    {Limit: s.Chat, Window: s.Window},
		KindAIPhone: {Limit: s.AIPhone, Window: s.Window},
		KindChatAPI: {Limit: s.ChatAPI, Window: s.Window},
	}
}

func (q Quotas) lookup(kind Kind) (Quota, error) {
	quota, ok := q[kind]
	if !ok || quota.Limit <= 0 || quota.Window <= 0 {
		return Quota{}, fmt.Errorf("no quota configured for %q", kind)
	}
	return quota, nil
}

// Result describes the state of a quota after a check.
// Reset is when the next slot frees up.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter counts a request against the quota of kind for key.
type Limiter interface {
	Allow(ctx context.Context, kind Kind, key string) (Result, error)
}

// Checker wraps a Limiter, turning rejections into RateLimitError and
// recording them.
type Checker struct {
	limiter Limiter
	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithLogger sets the logger for rejections. Default: slog.Default().
func WithLogger(l *slog.Logger) CheckerOption {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder. Default: NoopMetrics.
func WithMetrics(m observability.MetricsRecorder) CheckerOption {
	return func(c *Checker) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewChecker wraps l.
func NewChecker(l Limiter, opts ...CheckerOption) *Checker {
	c := &Checker{
		limiter: l,
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check counts one request. A rejected request returns the result together
// with a *errors.RateLimitError.
func (c *Checker) Check(ctx context.Context, kind Kind, key string) (Result, error) {
	res, err := c.limiter.Allow(ctx, kind, key)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", kind, err)
	}
	if res.Allowed {
		return res, nil
	}

	observability.LogRateLimited(c.logger, string(kind), key, res.Reset)
	c.metrics.RecordRateLimitRejection(ctx, string(kind))
	return res, &fderrors.RateLimitError{
		Kind:      string(kind),
		Limit:     res.Limit,
		Remaining: res.Remaining,
		Reset:     res.Reset,
	}
}
