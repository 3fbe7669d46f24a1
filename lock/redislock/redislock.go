// Package redislock implements lock.Locker on Redis so several engine
// processes sharing one store still apply writes one at a time.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/rental/id"
	"github.com/xraph/rental/lock"
)

// DefaultKey is the Redis key guarding the marketplace.
const DefaultKey = "rental:writer"

// ErrNotAcquired is returned when the lock could not be taken before the
// context ended.
var ErrNotAcquired = errors.New("redislock: lock not acquired")

// release deletes the key only while it still holds our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ lock.Locker = (*Locker)(nil)

// Locker is a SET NX PX lease on a single key.
type Locker struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	retry  time.Duration
}

// Option configures a Locker.
type Option func(*Locker)

// WithKey overrides DefaultKey.
func WithKey(key string) Option { return func(l *Locker) { l.key = key } }

// WithTTL sets the lease length. A holder that outlives it loses the lock.
func WithTTL(ttl time.Duration) Option { return func(l *Locker) { l.ttl = ttl } }

// WithRetry sets how long to wait between acquisition attempts.
func WithRetry(d time.Duration) Option { return func(l *Locker) { l.retry = d } }

// New returns a Locker using client.
func New(client redis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		client: client,
		key:    DefaultKey,
		ttl:    30 * time.Second,
		retry:  50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock implements lock.Locker.
func (l *Locker) Lock(ctx context.Context) (func(), error) {
	token := id.New("lock").String()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redislock: acquire %s: %w", l.key, err)
		}
		if ok {
			return func() { l.unlock(token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrNotAcquired, l.key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlock(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// An error here leaves the key to expire with its TTL.
	_ = release.Run(ctx, l.client, []string{l.key}, token).Err() //nolint:errcheck // lease expiry covers it
}
