package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Tokens are tracked in thousandths so the integer reply from Lua keeps
// fractional refills. The script answers {allowed, milli_tokens, retry_ms}.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = (clock[1] * 1000) + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "milli", "ts")
local milli = tonumber(state[1])
local ts = tonumber(state[2])

if milli == nil then
  milli = burst * 1000
else
  local elapsed = math.max(0, now - ts)
  milli = math.min(burst * 1000, milli + elapsed * rate)
end

local allowed = 0
local retry = 0
if milli >= 1000 then
  allowed = 1
  milli = milli - 1000
else
  retry = math.ceil((1000 - milli) / rate)
end

redis.call("HSET", KEYS[1], "milli", milli, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, math.floor(milli), retry}
`

// Limit is a sustained rate in requests per second with a burst allowance.
type Limit struct {
	Rate  float64
	Burst int
}

func (l Limit) validate() error {
	switch {
	case l.Rate <= 0:
		return errors.New("rate limit rate must be positive")
	case l.Burst <= 0:
		return errors.New("rate limit burst must be positive")
	}
	return nil
}

// bucketTTL keeps idle buckets around for twice the time a full refill takes.
func (l Limit) bucketTTL() time.Duration {
	if l.validate() != nil {
		return time.Second
	}
	seconds := math.Ceil(float64(l.Burst) / l.Rate * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

// Decision is the outcome of spending one token.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// TokenBucket is a Redis-backed token bucket shared by every replica.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Take spends one token from the bucket stored at key.
func (t *TokenBucket) Take(ctx context.Context, key string, limit Limit) (Decision, error) {
	if t == nil || t.client == nil {
		return Decision{}, errors.New("token bucket not configured")
	}
	if key == "" {
		return Decision{}, errors.New("token bucket key is empty")
	}
	if err := limit.validate(); err != nil {
		return Decision{}, err
	}

	// rate is sent per millisecond in milli-tokens, which is the same number.
	reply, err := t.script.Run(ctx, t.client, []string{key},
		limit.Rate,
		limit.Burst,
		limit.bucketTTL().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	return decodeDecision(reply, limit)
}

func decodeDecision(reply []int64, limit Limit) (Decision, error) {
	if len(reply) < 3 {
		return Decision{}, errors.New("unexpected token bucket reply")
	}
	return Decision{
		Allowed:    reply[0] == 1,
		Limit:      limit.Burst,
		Remaining:  int(reply[1] / 1000),
		RetryAfter: time.Duration(reply[2]) * time.Millisecond,
	}, nil
}
