// Package lock provides a short-TTL distributed mutex backed by Redis.
// It guards the registration check-then-write sequence against concurrent
// duplicate creates.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token, so an
// expired lock reacquired by another caller is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker acquires short-lived mutual exclusion on arbitrary keys.
type Locker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Lease represents a held lock.
type Lease struct {
	key   string
	token string
}

// New constructs a Locker with the given key prefix and TTL.
func New(client *redis.Client, prefix string, ttl time.Duration) *Locker {
	if prefix == "" {
		prefix = "lock"
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{client: client, prefix: prefix, ttl: ttl}
}

// Acquire attempts to take the lock once. It returns (nil, false, nil) when
// another holder owns the key.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lease, bool, error) {
	full := fmt.Sprintf("%s:%s", l.prefix, key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, full, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", full, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lease{key: full, token: token}, true, nil
}

// Release frees the lease. Safe to call on an already-expired lease.
func (l *Locker) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{lease.key}, lease.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", lease.key, err)
	}
	return nil
}
