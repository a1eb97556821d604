package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sanctuarylabs/sanctuary-backend/internal/config"
	"github.com/sanctuarylabs/sanctuary-backend/internal/logger"
)

// Cache is a best-effort TTL cache in front of the external API calls.
// Every method is safe on a nil receiver so the rest of the code never has
// to branch on whether caching is configured.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	SetEx(ctx context.Context, key, value string, ttl time.Duration)
	Close() error
}

type cache struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewCache returns nil (a disabled cache) when no redis address is
// configured; the observed deployment runs this way.
func NewCache(cfg config.Config, log *logger.Logger) (Cache, error) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		log.Info("Redis address not configured, cache disabled")
		// Typed nil: method calls still hit the nil-safe receivers.
		return (*cache)(nil), nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &cache{log: log.With("service", "RedisCache"), rdb: rdb}, nil
}

func (c *cache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.rdb == nil {
		return "", false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("Cache get error", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (c *cache) SetEx(ctx context.Context, key, value string, ttl time.Duration) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.SetEx(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn("Cache set error", "key", key, "error", err)
	}
}

func (c *cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// Key builds a cache key from a prefix and arguments, hashing free-form
// parts so user text never lands in redis keyspace verbatim.
func Key(prefix string, args ...string) string {
	parts := []string{prefix}
	for _, arg := range args {
		sum := sha256.Sum256([]byte(arg))
		parts = append(parts, hex.EncodeToString(sum[:8]))
	}
	return strings.Join(parts, ":")
}
