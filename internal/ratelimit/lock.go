package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrLockHeld means another writer owns the key.
var ErrLockHeld = errors.New("lock held by another writer")

// compare-and-delete so a lease that expired and was re-acquired by someone
// else is never released by the old holder.
const leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker hands out short Redis leases keyed by string.
type Locker struct {
	client  *redis.Client
	release *redis.Script
}

// Lease is a held lock. The zero value and nil are valid and release nothing.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(leaseReleaseScript),
	}
}

// Acquire takes key for ttl. It returns ErrLockHeld when the key is taken.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	switch {
	case l == nil || l.client == nil:
		return nil, errors.New("locker not configured")
	case key == "":
		return nil, errors.New("lock key is empty")
	case ttl <= 0:
		return nil, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lease{locker: l, key: key, token: token}, nil
}

func (s *Lease) Key() string {
	if s == nil {
		return ""
	}
	return s.key
}

// Release gives the key back if this lease still owns it.
func (s *Lease) Release(ctx context.Context) error {
	if s == nil || s.locker == nil || s.token == "" {
		return nil
	}
	return s.locker.release.Run(ctx, s.locker.client, []string{s.key}, s.token).Err()
}
