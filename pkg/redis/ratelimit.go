package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Quota is a request budget shared by every replica calling the same upstream
type Quota struct {
	Name     string        // key suffix, e.g. "supabase"
	Requests int           // requests allowed per window
	Per      time.Duration // window length
}

// SupabaseQuota is the PostgREST budget of rps requests per second
func SupabaseQuota(rps int) Quota {
	return Quota{Name: "supabase", Requests: rps, Per: time.Second}
}

// Decision is the outcome of one reservation
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

// RateLimiter is a sliding-window limiter kept in a Redis sorted set.
// A disabled client allows everything.
type RateLimiter struct {
	client *Client
	prefix string
	now    func() time.Time
}

// NewRateLimiter creates a limiter whose keys live under prefix
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix, now: time.Now}
}

// KEYS[1] window set; ARGV now_ms, window_ms, limit, member.
// Returns {allowed, remaining, retry_after_ms}.
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local used = redis.call('ZCARD', key)
if used < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  return {1, limit - used - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = window
if oldest[2] then
  wait = tonumber(oldest[2]) + window - now
end
return {0, 0, wait}
`)

// Reserve takes one request from q if the window has room
func (r *RateLimiter) Reserve(ctx context.Context, q Quota) (Decision, error) {
	if !r.client.Enabled() || q.Requests <= 0 {
		return Decision{Allowed: true, Remaining: q.Requests}, nil
	}

	key := fmt.Sprintf("%s:quota:%s", r.prefix, q.Name)
	now := r.now().UnixMilli()
	member := fmt.Sprintf("%d:%s", now, uuid.NewString())

	res, err := reserveScript.Run(ctx, r.client.Redis(), []string{key},
		now, q.Per.Milliseconds(), q.Requests, member).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("quota %s reserve failed: %w", q.Name, err)
	}
	return decode(res)
}

// Wait blocks until q admits a request or ctx ends
func (r *RateLimiter) Wait(ctx context.Context, q Quota) error {
	for {
		d, err := r.Reserve(ctx, q)
		if err != nil {
			return err
		}
		if d.Allowed {
			return nil
		}

		timer := time.NewTimer(d.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func decode(res []int64) (Decision, error) {
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("unexpected quota reply of %d values", len(res))
	}
	d := Decision{
		Allowed:   res[0] == 1,
		Remaining: int(res[1]),
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration(res[2]) * time.Millisecond
		if d.RetryAfter <= 0 {
			d.RetryAfter = time.Millisecond
		}
	}
	return d, nil
}
