package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck/config"
)

// slidingWindow keeps one sorted-set member per accepted request, scored by
// its time in milliseconds. Members older than the window are dropped first.
//
// KEYS[1] set key; ARGV: now ms, window ms, limit, member.
// Returns {allowed, remaining, reset ms}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', key, window)

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
	reset = tonumber(oldest[2]) + window
end
return {allowed, limit - count, reset}
`)

// KeyPrefix namespaces the limiter keys in Redis.
const KeyPrefix = "flowdeck:ratelimit"

// RedisLimiter is a sliding-window log limiter shared through Redis.
type RedisLimiter struct {
	client redis.Scripter
	quotas Quotas
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

// RedisOption configures a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithRedisClock sets the clock. Default: time.Now.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *RedisLimiter) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRedisLimiter creates a limiter on an existing client.
func NewRedisLimiter(client redis.Scripter, quotas Quotas, opts ...RedisOption) *RedisLimiter {
	r := &RedisLimiter{client: client, quotas: quotas, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allow implements Limiter.
func (r *RedisLimiter) Allow(ctx context.Context, kind Kind, key string) (Result, error) {
	quota, err := r.quotas.lookup(kind)
	if err != nil {
		return Result{}, err
	}

	now := r.now().UnixMilli()
	vals, err := slidingWindow.Run(ctx, r.client,
		[]string{fmt.Sprintf("%s:%s:%s", KeyPrefix, kind, key)},
		now, quota.Window.Milliseconds(), quota.Limit, fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("sliding window: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("sliding window: unexpected reply %v", vals)
	}

	return Result{
		Allowed:   vals[0] == 1,
		Limit:     quota.Limit,
		Remaining: int(max(0, vals[1])),
		Reset:     time.UnixMilli(vals[2]),
	}, nil
}

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, s config.RedisSettings) (*redis.Client, error) {
	opts, err := redis.ParseURL(s.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if s.ReadTimeout > 0 {
		opts.ReadTimeout = s.ReadTimeout
	}
	if s.WriteTimeout > 0 {
		opts.WriteTimeout = s.WriteTimeout
	}
	if s.DialTimeout > 0 {
		opts.DialTimeout = s.DialTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
