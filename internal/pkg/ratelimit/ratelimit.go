// Package ratelimit builds Fiber limiters whose counters live in Redis, so all
// PayFox instances behind a load balancer share one budget per client.
package ratelimit

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PayFox/internal/pkg/cache"
	"github.com/ManuelReschke/PayFox/internal/pkg/env"
)

// StorageDatabase is the Redis database used for limiter counters (cache uses DB 0).
const StorageDatabase = 1

// Config describes one limiter.
type Config struct {
	Name       string
	Max        int
	Expiration time.Duration
	Storage    fiber.Storage
}

// NewStorage creates limiter storage on the same Redis server as client.
func NewStorage(client *goredis.Client) fiber.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client != nil {
		if h, p, err := net.SplitHostPort(client.Options().Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: StorageDatabase,
		Reset:    false,
	})
}

// New returns a per-IP limiter answering 429 with a JSON body.
func New(cfg Config) fiber.Handler {
	if cfg.Max <= 0 {
		cfg.Max = 60
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = time.Minute
	}
	name := cfg.Name
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Expiration,
		Storage:    cfg.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return name + ":" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Warnf("[RateLimit] %s limit reached for %s", name, c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	})
}

// sharedStorage returns Redis storage when the cache is reachable and nil
// (in-memory limiter state) otherwise.
func sharedStorage() fiber.Storage {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		log.Warnf("[RateLimit] Redis unavailable, falling back to in-memory limiter state: %v", err)
		return nil
	}
	return NewStorage(cache.GetClient())
}

// WebhookLimiter guards the gateway webhook. Gateways burst on redelivery,
// so the default budget is generous.
func WebhookLimiter() fiber.Handler {
	return New(Config{
		Name:       "webhook",
		Max:        env.GetEnvInt("RATE_LIMIT_WEBHOOK_MAX", 600),
		Expiration: env.GetEnvDuration("RATE_LIMIT_WEBHOOK_WINDOW", time.Minute),
		Storage:    sharedStorage(),
	})
}

// APILimiter guards the status read API.
func APILimiter() fiber.Handler {
	return New(Config{
		Name:       "api",
		Max:        env.GetEnvInt("RATE_LIMIT_API_MAX", 120),
		Expiration: env.GetEnvDuration("RATE_LIMIT_API_WINDOW", time.Minute),
		Storage:    sharedStorage(),
	})
}
