package cache

import (
	"testing"

	"media-resolver-go/internal/config"
)

func TestNewFromConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.Config
		wantMem bool
	}{
		{"default", config.Config{}, true},
		{"memory", config.Config{CacheBackend: "memory", CacheMaxEntries: 5}, true},
		{"none", config.Config{CacheBackend: "none"}, false},
		{"unknown", config.Config{CacheBackend: "memcached"}, true},
		{"redis without addr", config.Config{CacheBackend: "redis"}, true},
		{"redis unreachable", config.Config{CacheBackend: "redis", RedisAddr: "127.0.0.1:1"}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := NewFromConfig(c.cfg)
			if got != nil {
				defer got.Close()
			}
			_, isMem := got.(*MemoryCache)
			if c.wantMem != isMem {
				t.Fatalf("NewFromConfig = %T, want memory=%v", got, c.wantMem)
			}
			if !c.wantMem && got != nil {
				t.Fatalf("expected nil cache, got %T", got)
			}
		})
	}
}

func TestNewRedisCacheOptions(t *testing.T) {
	if _, err := NewRedisCache(RedisOptions{Addr: "  "}); err == nil {
		t.Fatalf("empty addr should fail")
	}
	if _, err := NewRedisCache(RedisOptions{Addr: "redis://:bad@host:notaport/x"}); err == nil {
		t.Fatalf("malformed url should fail")
	}
	rc, err := NewRedisCache(RedisOptions{Addr: "redis://localhost:6379/2"})
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer rc.Close()
	if rc.prefix != DefaultRedisPrefix {
		t.Fatalf("prefix = %q", rc.prefix)
	}
}
