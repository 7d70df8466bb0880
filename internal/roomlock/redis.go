package roomlock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisTTL  = 10 * time.Second
	defaultRedisPoll = 25 * time.Millisecond
)

// Redis is a Locker shared by every instance talking to the same Redis.
// A lock is a key set with NX and a TTL; release deletes the key only while
// it still carries the owner's token.
//
// The lease is not renewed while held. A critical section that outlives the
// TTL loses exclusion: another instance may acquire the room, and the late
// release returns ErrNotHeld. The TTL must therefore exceed the longest
// check-and-commit a service performs under the lock (HALL_LOCK_TTL).
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	poll   time.Duration
	prefix string
}

var redisReleaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOption customizes a Redis locker.
type RedisOption func(*Redis)

// WithPollInterval sets how often a blocked Acquire retries.
func WithPollInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.poll = d
		}
	}
}

// WithKeyPrefix namespaces the lock keys.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if p := strings.TrimSpace(prefix); p != "" {
			r.prefix = p
		}
	}
}

// NewRedis constructs a Redis locker whose locks expire after ttl if never
// released.
func NewRedis(rdb *redis.Client, ttl time.Duration, opts ...RedisOption) *Redis {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	r := &Redis{rdb: rdb, ttl: ttl, poll: defaultRedisPoll, prefix: "hall:roomlock"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, roomID string) (ReleaseFunc, error) {
	key := r.prefix + ":" + roomID
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("roomlock: acquire %s: %w", roomID, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("roomlock: acquire %s: %w", roomID, ctx.Err())
		case <-time.After(r.poll):
		}
	}

	return func(ctx context.Context) error {
		res, err := redisReleaseScript.Run(ctx, r.rdb, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("roomlock: release %s: %w", roomID, err)
		}
		if res == 0 {
			return ErrNotHeld
		}
		return nil
	}, nil
}
