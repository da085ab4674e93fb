package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_NormalizesBackendsAndSources(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	dir := t.TempDir()
	cfg := []byte("STORE_BACKEND: \"PostgreSQL\"\nCACHE_BACKEND: \"Redis\"\nDISABLED_SOURCES: [\"Web\", \"backup, mobile\"]\nLOG_LEVEL: \"DEBUG\"\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), cfg, 0644); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(dir); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if AppConfig.StoreBackend != "postgres" {
		t.Fatalf("StoreBackend = %q, want %q", AppConfig.StoreBackend, "postgres")
	}
	if AppConfig.CacheBackend != "redis" {
		t.Fatalf("CacheBackend = %q, want %q", AppConfig.CacheBackend, "redis")
	}
	if AppConfig.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want %q", AppConfig.LogLevel, "debug")
	}
	want := []string{"web", "backup", "mobile"}
	if len(AppConfig.DisabledSources) != len(want) {
		t.Fatalf("DisabledSources = %v, want %v", AppConfig.DisabledSources, want)
	}
	for i := range want {
		if AppConfig.DisabledSources[i] != want[i] {
			t.Fatalf("DisabledSources = %v, want %v", AppConfig.DisabledSources, want)
		}
	}
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	if err := LoadConfig(t.TempDir()); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if AppConfig.ResolveMaxAttempts != 5 {
		t.Fatalf("ResolveMaxAttempts = %d, want 5", AppConfig.ResolveMaxAttempts)
	}
	if AppConfig.BreakerFailureThreshold != 5 || AppConfig.BreakerCooldownSec != 300 {
		t.Fatalf("breaker defaults = %d/%d", AppConfig.BreakerFailureThreshold, AppConfig.BreakerCooldownSec)
	}
	if AppConfig.CacheTTLSec != 300 || AppConfig.CacheMaxEntries != 100 {
		t.Fatalf("cache defaults = %d/%d", AppConfig.CacheTTLSec, AppConfig.CacheMaxEntries)
	}
	if AppConfig.QueueDelayMs != 100 {
		t.Fatalf("QueueDelayMs = %d, want 100", AppConfig.QueueDelayMs)
	}
	if AppConfig.StoreBackend != "none" {
		t.Fatalf("StoreBackend = %q, want none", AppConfig.StoreBackend)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	t.Setenv("MEDIA_RESOLVER_CACHE_TTL_SEC", "42")
	if err := LoadConfig(t.TempDir()); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if AppConfig.CacheTTLSec != 42 {
		t.Fatalf("CacheTTLSec = %d, want 42", AppConfig.CacheTTLSec)
	}
}

func TestDefaultIgnoresGlobalState(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("CACHE_MAX_ENTRIES", 7)

	cfg := Default()
	if cfg.CacheMaxEntries != 100 {
		t.Fatalf("CacheMaxEntries = %d, want 100", cfg.CacheMaxEntries)
	}
	if cfg.Platform != "douyin" {
		t.Fatalf("Platform = %q, want douyin", cfg.Platform)
	}
}
