package accountlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix       = "lock:billing:"
	defaultTTL          = 2 * time.Minute
	defaultPollInterval = 100 * time.Millisecond
)

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes work per key across processes with SET NX leases.
// A lease expires after TTL so a crashed holder cannot block an account
// forever; TTL must exceed the handler timeout.
type RedisLocker struct {
	client       *redis.Client
	ttl          time.Duration
	pollInterval time.Duration
}

// NewRedisLocker creates a locker on client. ttl <= 0 uses the default.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl, pollInterval: defaultPollInterval}
}

// Lock polls until the lease for key is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}

	return func() {
		// release must work even when the caller's context is already cancelled
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n, err := releaseScript.Run(rctx, l.client, []string{redisKey}, token).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Errorf("[AccountLock] Failed to release %s: %v", redisKey, err)
			return
		}
		if n == 0 {
			log.Warnf("[AccountLock] Lease on %s expired before release", redisKey)
		}
	}, nil
}
