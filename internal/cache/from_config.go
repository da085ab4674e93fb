package cache

import (
	"context"
	"time"

	"media-resolver-go/internal/config"
	"media-resolver-go/internal/logger"
)

const redisDialTimeout = 3 * time.Second

// NewFromConfig builds the response cache named by CACHE_BACKEND. A redis
// backend that cannot be reached degrades to the in-memory cache so the
// resolver keeps working; "none" disables caching and returns nil.
func NewFromConfig(cfg config.Config) Cache {
	switch cfg.CacheBackend {
	case "none", "disabled", "off":
		return nil
	case "redis":
		rc, err := dialRedis(cfg)
		if err == nil {
			return rc
		}
		logger.Warn("redis cache unavailable, using memory", "addr", cfg.RedisAddr, "err", err)
	case "", "memory":
	default:
		logger.Warn("unknown cache backend, using memory", "backend", cfg.CacheBackend)
	}
	return NewMemoryCache(MemoryOptions{
		MaxEntries:      cfg.CacheMaxEntries,
		CleanupInterval: time.Duration(cfg.CacheCleanupSec) * time.Second,
	})
}

func dialRedis(cfg config.Config) (*RedisCache, error) {
	rc, err := NewRedisCache(RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   cfg.RedisKeyPrefix,
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, err
	}
	return rc, nil
}
