package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pruneThreshold is the bucket count above which full buckets are dropped.
const pruneThreshold = 10000

// MemoryLimiter keeps one token bucket per kind and key. A bucket holds
// Limit tokens and refills one token every Window/Limit.
type MemoryLimiter struct {
	quotas  Quotas
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

var _ Limiter = (*MemoryLimiter)(nil)

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithMemoryClock sets the clock. Default: time.Now.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryLimiter) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(quotas Quotas, opts ...MemoryOption) *MemoryLimiter {
	m := &MemoryLimiter{
		quotas:  quotas,
		now:     time.Now,
		buckets: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allow implements Limiter.
func (m *MemoryLimiter) Allow(_ context.Context, kind Kind, key string) (Result, error) {
	quota, err := m.quotas.lookup(kind)
	if err != nil {
		return Result{}, err
	}
	interval := quota.Window / time.Duration(quota.Limit)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	id := string(kind) + ":" + key
	lim, ok := m.buckets[id]
	if !ok {
		if len(m.buckets) >= pruneThreshold {
			m.prune(now)
		}
		lim = rate.NewLimiter(rate.Every(interval), quota.Limit)
		// Start full as of now, not as of the zero time.
		lim.SetLimitAt(now, rate.Every(interval))
		m.buckets[id] = lim
	}

	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)

	res := Result{
		Allowed:   allowed,
		Limit:     quota.Limit,
		Remaining: max(0, int(math.Floor(tokens))),
		Reset:     now,
	}
	if tokens < float64(quota.Limit) {
		need := math.Floor(tokens) + 1 - tokens
		res.Reset = now.Add(time.Duration(math.Ceil(need * float64(interval))))
	}
	return res, nil
}

// prune drops buckets that are full again. Must be called with mu held.
func (m *MemoryLimiter) prune(now time.Time) {
	for id, lim := range m.buckets {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(m.buckets, id)
		}
	}
}
