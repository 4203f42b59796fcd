package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends for saved carts.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (SACOLA_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SACOLA_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (SACOLA_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Storage      StorageConfig
	Sessions     SessionConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StorageConfig selects where carts are saved between requests and restarts.
type StorageConfig struct {
	Backend  string        `default:"postgres" usage:"Cart storage backend: memory, redis or postgres"`
	RedisURL string        `usage:"Redis connection URL (SACOLA_STORAGE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	TTL      time.Duration `default:"720h" usage:"Expiry of saved carts in redis"`
}

// SessionConfig controls eviction of idle carts from memory. Evicted carts
// are restored from storage on next use.
type SessionConfig struct {
	IdleTimeout   time.Duration `default:"30m" usage:"Evict carts idle for longer than this" flag:"session-idle"`
	SweepInterval time.Duration `default:"1m"  usage:"How often idle carts are evicted" flag:"session-sweep"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from command-line args, environment
// variables and YAML config files, and applies platform-specific defaults.
func LoadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SACOLA",
		Args:      args,
		Files:     []string{"config.yaml", "/etc/sacola/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
		// seed-db reads SACOLA_SEED_API_KEY from the same environment.
		AllowUnknownEnvs: true,
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the settings fit together.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set SACOLA_DATABASE_URL or DATABASE_URL")
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendPostgres:
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("redis URL is required for the redis backend: set SACOLA_STORAGE_REDIS_URL or REDIS_URL")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Sessions.SweepInterval <= 0 || c.Sessions.IdleTimeout <= 0 {
		return errors.New("session sweep interval and idle timeout must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL, REDIS_URL and PORT
// to the application's SACOLA_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.RedisURL == "" {
		c.Storage.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
