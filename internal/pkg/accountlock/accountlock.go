// Package accountlock provides per-account mutual exclusion for the billing
// dispatcher.
package accountlock

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PayFox/internal/pkg/env"
)

// Locker acquires an exclusive hold on key. The returned function releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

var (
	_ Locker = (*LocalLocker)(nil)
	_ Locker = (*RedisLocker)(nil)
)

// FromEnv picks the backend from ACCOUNT_LOCK_BACKEND. Without a Redis client
// it falls back to the in-process locker.
func FromEnv(client *redis.Client) Locker {
	backend := strings.ToLower(strings.TrimSpace(env.GetEnv("ACCOUNT_LOCK_BACKEND", "redis")))
	if backend == "local" {
		log.Info("[AccountLock] Using in-process account locks")
		return NewLocalLocker()
	}
	if client == nil {
		log.Warn("[AccountLock] No Redis client available, using in-process account locks")
		return NewLocalLocker()
	}
	ttl := env.GetEnvDuration("ACCOUNT_LOCK_TTL", defaultTTL)
	log.Infof("[AccountLock] Using Redis account locks (ttl %s)", ttl)
	return NewRedisLocker(client, ttl)
}
