package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck/config"
	fderrors "github.com/randalmurphal/flowdeck/pkg/flowdeck/errors"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

// fakeClock is a settable clock safe for concurrent reads.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testQuotas() Quotas {
	return Quotas{
		KindFlow: {Limit: 2, Window: 2 * time.Hour},
		KindChat: {Limit: 3, Window: time.Hour},
	}
}

func newRedisLimiter(t *testing.T, clock *fakeClock) *RedisLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, testQuotas(), WithRedisClock(clock.Now))
}

type limiterFactory func(t *testing.T, clock *fakeClock) Limiter

// limiterContractTest runs the quota semantics shared by every Limiter.
func limiterContractTest(t *testing.T, factory limiterFactory) {
	ctx := context.Background()

	t.Run("allows up to limit then rejects", func(t *testing.T) {
		clock := &fakeClock{now: t0}
		l := factory(t, clock)

		r1, err := l.Allow(ctx, KindFlow, "u1")
		require.NoError(t, err)
		assert.True(t, r1.Allowed)
		assert.Equal(t, 2, r1.Limit)
		assert.Equal(t, 1, r1.Remaining)

		r2, err := l.Allow(ctx, KindFlow, "u1")
		require.NoError(t, err)
		assert.True(t, r2.Allowed)
		assert.Equal(t, 0, r2.Remaining)

		r3, err := l.Allow(ctx, KindFlow, "u1")
		require.NoError(t, err)
		assert.False(t, r3.Allowed)
		assert.Equal(t, 0, r3.Remaining)
		assert.True(t, r3.Reset.After(t0))
		assert.False(t, r3.Reset.After(t0.Add(2*time.Hour)))
	})

	t.Run("keys and kinds are independent", func(t *testing.T) {
		clock := &fakeClock{now: t0}
		l := factory(t, clock)

		for i := 0; i < 2; i++ {
			_, err := l.Allow(ctx, KindFlow, "u1")
			require.NoError(t, err)
		}
		r, err := l.Allow(ctx, KindFlow, "u2")
		require.NoError(t, err)
		assert.True(t, r.Allowed)

		r, err = l.Allow(ctx, KindChat, "u1")
		require.NoError(t, err)
		assert.True(t, r.Allowed)
		assert.Equal(t, 2, r.Remaining)
	})

	t.Run("recovers after the window", func(t *testing.T) {
		clock := &fakeClock{now: t0}
		l := factory(t, clock)

		for i := 0; i < 2; i++ {
			_, err := l.Allow(ctx, KindFlow, "u1")
			require.NoError(t, err)
		}
		clock.Advance(2*time.Hour + time.Minute)

		r, err := l.Allow(ctx, KindFlow, "u1")
		require.NoError(t, err)
		assert.True(t, r.Allowed)
	})

	t.Run("unknown kind", func(t *testing.T) {
		l := factory(t, &fakeClock{now: t0})
		_, err := l.Allow(ctx, KindAIPhone, "u1")
		assert.Error(t, err)
	})
}

func TestMemoryLimiter(t *testing.T) {
	limiterContractTest(t, func(t *testing.T, clock *fakeClock) Limiter {
		return NewMemoryLimiter(testQuotas(), WithMemoryClock(clock.Now))
	})
}

func TestRedisLimiter(t *testing.T) {
	limiterContractTest(t, func(t *testing.T, clock *fakeClock) Limiter {
		return newRedisLimiter(t, clock)
	})
}

// TestRedisLimiter_SlidingWindow checks that slots free up one by one as the
// oldest requests leave the window.
func TestRedisLimiter_SlidingWindow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: t0}
	l := newRedisLimiter(t, clock)

	_, err := l.Allow(ctx, KindFlow, "u1")
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = l.Allow(ctx, KindFlow, "u1")
	require.NoError(t, err)

	r, err := l.Allow(ctx, KindFlow, "u1")
	require.NoError(t, err)
	assert.False(t, r.Allowed)
	assert.Equal(t, t0.Add(2*time.Hour), r.Reset.UTC())

	clock.Advance(time.Hour + time.Millisecond)
	r, err = l.Allow(ctx, KindFlow, "u1")
	require.NoError(t, err)
	assert.True(t, r.Allowed, "first request left the window")

	r, err = l.Allow(ctx, KindFlow, "u1")
	require.NoError(t, err)
	assert.False(t, r.Allowed, "second request still inside the window")
}

func TestMemoryLimiter_Refill(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: t0}
	l := NewMemoryLimiter(testQuotas(), WithMemoryClock(clock.Now))

	for i := 0; i < 2; i++ {
		_, err := l.Allow(ctx, KindFlow, "u1")
		require.NoError(t, err)
	}
	r, err := l.Allow(ctx, KindFlow, "u1")
	require.NoError(t, err)
	require.False(t, r.Allowed)
	assert.WithinDuration(t, t0.Add(time.Hour), r.Reset, time.Second)

	clock.Advance(61 * time.Minute)
	r, err = l.Allow(ctx, KindFlow, "u1")
	require.NoError(t, err)
	assert.True(t, r.Allowed, "one token refilled after Window/Limit")
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"flow", "chat", "aiphone", "chat-api"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Kind(s), k)
	}

	_, err := ParseKind("sms")
	var verr *fderrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "type", verr.Field)
}

func TestQuotas(t *testing.T) {
	d := DefaultQuotas()
	assert.Equal(t, 50, d[KindFlow].Limit)
	assert.Equal(t, 200, d[KindChatAPI].Limit)
	assert.Equal(t, 24*time.Hour, d[KindAIPhone].Window)

	q := QuotasFromSettings(config.RateLimitSettings{Window: time.Minute, Flow: 1, Chat: 2, AIPhone: 3, ChatAPI: 4})
	assert.Equal(t, Quota{Limit: 3, Window: time.Minute}, q[KindAIPhone])
}

// stubLimiter returns a fixed result.
type stubLimiter struct {
	res Result
	err error
}

func (s stubLimiter) Allow(context.Context, Kind, string) (Result, error) {
	return s.res, s.err
}

func TestChecker(t *testing.T) {
	ctx := context.Background()
	reset := t0.Add(time.Hour)

	t.Run("allowed", func(t *testing.T) {
		c := NewChecker(stubLimiter{res: Result{Allowed: true, Limit: 5, Remaining: 4}})
		res, err := c.Check(ctx, KindChat, "u1")
		require.NoError(t, err)
		assert.Equal(t, 4, res.Remaining)
	})

	t.Run("rejected", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := slog.New(slog.NewJSONHandler(buf, nil))
		c := NewChecker(stubLimiter{res: Result{Limit: 5, Reset: reset}}, WithLogger(logger))

		res, err := c.Check(ctx, KindChat, "u1")
		var rl *fderrors.RateLimitError
		require.ErrorAs(t, err, &rl)
		assert.Equal(t, "chat", rl.Kind)
		assert.Equal(t, 5, rl.Limit)
		assert.Equal(t, reset, rl.Reset)
		assert.Equal(t, reset, res.Reset)
		assert.Equal(t, fderrors.CategoryRateLimited, fderrors.Categorize(err))
		assert.Contains(t, buf.String(), "rate limit exceeded")
	})

	t.Run("limiter failure", func(t *testing.T) {
		boom := errors.New("redis down")
		c := NewChecker(stubLimiter{err: boom})
		_, err := c.Check(ctx, KindFlow, "u1")
		assert.ErrorIs(t, err, boom)
		var rl *fderrors.RateLimitError
		assert.False(t, errors.As(err, &rl))
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, "flow-limit-u1", Key(KindFlow, "u1"))
	assert.Equal(t, "chat-limit-u1-alice", Key(KindChatAPI, "u1", "alice"))
}
