package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scoutgw/internal/domain"
)

// windowScript counts atomically and stamps the window TTL on the first
// request so all gateway instances share one reset point per client.
var windowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// Redis is the fixed-window limiter for multi-instance deployments. Counting
// runs server-side so concurrent gateways cannot lose updates.
type Redis struct {
	client   *redis.Client
	window   time.Duration
	limit    int64
	prefix   string
	failOpen bool
}

var _ domain.RateLimiter = (*Redis)(nil)

// NewRedis creates a Redis-backed limiter. With failOpen set, backend errors
// admit the request instead of rejecting it.
func NewRedis(client *redis.Client, limit int, window time.Duration, failOpen bool) *Redis {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Redis{
		client:   client,
		window:   window,
		limit:    int64(limit),
		prefix:   "scout:rl:",
		failOpen: failOpen,
	}
}

// Admit counts one request for the client against the shared window.
func (l *Redis) Admit(ctx context.Context, clientID string) (domain.RateDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	res, err := windowScript.Run(ctx, l.client, []string{l.prefix + clientID}, l.window.Milliseconds()).Result()
	if err != nil {
		return l.fallback(fmt.Errorf("rate limit backend: %w", err))
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return l.fallback(fmt.Errorf("rate limit backend: unexpected script result %T", res))
	}
	count, _ := vals[0].(int64)
	ttlMs, _ := vals[1].(int64)
	if ttlMs < 0 {
		ttlMs = l.window.Milliseconds()
	}

	d := domain.RateDecision{
		Allowed:   count <= l.limit,
		Count:     count,
		Limit:     l.limit,
		Remaining: l.limit - count,
		ResetAt:   time.Now().UTC().Add(time.Duration(ttlMs) * time.Millisecond),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d, nil
}

func (l *Redis) fallback(err error) (domain.RateDecision, error) {
	if l.failOpen {
		return domain.RateDecision{
			Allowed:   true,
			Limit:     l.limit,
			Remaining: l.limit,
			ResetAt:   time.Now().UTC().Add(l.window),
		}, nil
	}
	return domain.RateDecision{}, err
}
