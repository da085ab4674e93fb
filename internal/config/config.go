package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Platform       string `mapstructure:"PLATFORM"`
	Cookies        string `mapstructure:"COOKIES"`
	DataDir        string `mapstructure:"DATA_DIR"`
	APIAddr        string `mapstructure:"API_ADDR"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	LogFormat      string `mapstructure:"LOG_FORMAT"`
	LogFile        string `mapstructure:"LOG_FILE"`
	DebugEnabled   bool   `mapstructure:"DEBUG_ENABLED"`
	DebugMaxEvents int    `mapstructure:"DEBUG_MAX_EVENTS"`

	HttpTimeoutSec        int `mapstructure:"HTTP_TIMEOUT_SEC"`
	HttpRetryCount        int `mapstructure:"HTTP_RETRY_COUNT"`
	HttpRetryBaseDelayMs  int `mapstructure:"HTTP_RETRY_BASE_DELAY_MS"`
	HttpRetryMaxDelayMs   int `mapstructure:"HTTP_RETRY_MAX_DELAY_MS"`
	ShortLinkMaxRedirects int `mapstructure:"SHORT_LINK_MAX_REDIRECTS"`
	ShortLinkTimeoutSec   int `mapstructure:"SHORT_LINK_TIMEOUT_SEC"`

	ResolveMaxAttempts      int      `mapstructure:"RESOLVE_MAX_ATTEMPTS"`
	ResolveRetryDelayMs     int      `mapstructure:"RESOLVE_RETRY_DELAY_MS"`
	BreakerFailureThreshold int      `mapstructure:"BREAKER_FAILURE_THRESHOLD"`
	BreakerCooldownSec      int      `mapstructure:"BREAKER_COOLDOWN_SEC"`
	RateLimitWindowSec      int      `mapstructure:"RATE_LIMIT_WINDOW_SEC"`
	DisabledSources         []string `mapstructure:"DISABLED_SOURCES"`
	PlayURLTemplate         string   `mapstructure:"PLAY_URL_TEMPLATE"`
	// ThirdPartyAPIURL is a URL template; its first %s becomes the escaped content id.
	ThirdPartyAPIURL   string `mapstructure:"THIRD_PARTY_API_URL"`
	ProbeSourceEnabled bool   `mapstructure:"PROBE_SOURCE_ENABLED"`

	QueueDelayMs    int    `mapstructure:"QUEUE_DELAY_MS"`
	QueueHealthMax  int    `mapstructure:"QUEUE_HEALTH_LIMIT"`
	CacheBackend    string `mapstructure:"CACHE_BACKEND"`
	CacheTTLSec     int    `mapstructure:"CACHE_TTL_SEC"`
	CacheMaxEntries int    `mapstructure:"CACHE_MAX_ENTRIES"`
	CacheCleanupSec int    `mapstructure:"CACHE_CLEANUP_INTERVAL_SEC"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int    `mapstructure:"REDIS_DB"`
	RedisKeyPrefix  string `mapstructure:"REDIS_KEY_PREFIX"`

	StoreBackend string `mapstructure:"STORE_BACKEND"`
	SQLitePath   string `mapstructure:"SQLITE_PATH"`
	MySQLDSN     string `mapstructure:"MYSQL_DSN"`
	PostgresDSN  string `mapstructure:"POSTGRES_DSN"`
	MongoURI     string `mapstructure:"MONGO_URI"`
	MongoDB      string `mapstructure:"MONGO_DB"`

	EnableIPProxy       bool   `mapstructure:"ENABLE_IP_PROXY"`
	IPProxyPoolCount    int    `mapstructure:"IP_PROXY_POOL_COUNT"`
	IPProxyProviderName string `mapstructure:"IP_PROXY_PROVIDER_NAME"`
	IPProxyList         string `mapstructure:"IP_PROXY_LIST"`
	IPProxyFile         string `mapstructure:"IP_PROXY_FILE"`
	IPProxyAPIURL       string `mapstructure:"IP_PROXY_API_URL"`
}

var AppConfig Config

func LoadConfig(path string) error {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("MEDIA_RESOLVER")
	viper.AutomaticEnv()

	// If no config file found, just use defaults/env
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return err
	}
	Normalize(&AppConfig)
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PLATFORM", "douyin")
	v.SetDefault("COOKIES", "")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("API_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("DEBUG_ENABLED", true)
	v.SetDefault("DEBUG_MAX_EVENTS", 1000)

	v.SetDefault("HTTP_TIMEOUT_SEC", 15)
	v.SetDefault("HTTP_RETRY_COUNT", 0)
	v.SetDefault("HTTP_RETRY_BASE_DELAY_MS", 500)
	v.SetDefault("HTTP_RETRY_MAX_DELAY_MS", 4000)
	v.SetDefault("SHORT_LINK_MAX_REDIRECTS", 10)
	v.SetDefault("SHORT_LINK_TIMEOUT_SEC", 10)

	v.SetDefault("RESOLVE_MAX_ATTEMPTS", 5)
	v.SetDefault("RESOLVE_RETRY_DELAY_MS", 1000)
	v.SetDefault("BREAKER_FAILURE_THRESHOLD", 5)
	v.SetDefault("BREAKER_COOLDOWN_SEC", 300)
	v.SetDefault("RATE_LIMIT_WINDOW_SEC", 60)
	v.SetDefault("DISABLED_SOURCES", []string{})
	v.SetDefault("PLAY_URL_TEMPLATE", "")
	v.SetDefault("THIRD_PARTY_API_URL", "")
	v.SetDefault("PROBE_SOURCE_ENABLED", false)

	v.SetDefault("QUEUE_DELAY_MS", 100)
	v.SetDefault("QUEUE_HEALTH_LIMIT", 100)
	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("CACHE_TTL_SEC", 300)
	v.SetDefault("CACHE_MAX_ENTRIES", 100)
	v.SetDefault("CACHE_CLEANUP_INTERVAL_SEC", 600)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "media_resolver:")

	v.SetDefault("STORE_BACKEND", "none")
	v.SetDefault("SQLITE_PATH", "data/media_resolver.db")
	v.SetDefault("MYSQL_DSN", "")
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DB", "media_resolver")

	v.SetDefault("ENABLE_IP_PROXY", false)
	v.SetDefault("IP_PROXY_POOL_COUNT", 2)
	v.SetDefault("IP_PROXY_PROVIDER_NAME", "static")
	v.SetDefault("IP_PROXY_LIST", "")
	v.SetDefault("IP_PROXY_FILE", "")
	v.SetDefault("IP_PROXY_API_URL", "")
}

// Default returns the configuration produced by defaults alone, ignoring
// files and environment.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	Normalize(&cfg)
	return cfg
}

func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Platform = strings.ToLower(strings.TrimSpace(cfg.Platform))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.CacheBackend))
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if cfg.StoreBackend == "postgresql" {
		cfg.StoreBackend = "postgres"
	}
	if cfg.StoreBackend == "mongo" {
		cfg.StoreBackend = "mongodb"
	}
	cfg.IPProxyProviderName = strings.ToLower(strings.TrimSpace(cfg.IPProxyProviderName))

	var disabled []string
	for _, s := range cfg.DisabledSources {
		for _, part := range strings.Split(s, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				disabled = append(disabled, part)
			}
		}
	}
	cfg.DisabledSources = disabled
}
