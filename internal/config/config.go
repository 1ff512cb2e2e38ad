package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config is the service configuration. Values are resolved as defaults, then the YAML file
// named by CONFIG_FILE, then environment variables.
type Config struct {
	HTTPAddr  string `yaml:"http_addr" env:"HTTP_ADDR"`
	AppEnv    string `yaml:"app_env" env:"APP_ENV"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	// StoreDriver is postgres, sqlite or memory. Empty selects postgres when a DSN is set,
	// memory otherwise.
	StoreDriver  string        `yaml:"store_driver" env:"STORE_DRIVER"`
	DatabaseURL  string        `yaml:"database_url" env:"DATABASE_URL"`
	PGDSN        string        `yaml:"-" env:"PG_DSN"`
	SQLitePath   string        `yaml:"sqlite_path" env:"SQLITE_PATH"`
	StoreTimeout time.Duration `yaml:"store_timeout" env:"STORE_TIMEOUT"`

	DedupTolerance time.Duration `yaml:"dedup_tolerance" env:"DEDUP_TOLERANCE"`
	RedisAddr      string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword  string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB        int           `yaml:"redis_db" env:"REDIS_DB"`
	FingerprintTTL time.Duration `yaml:"fingerprint_ttl" env:"FINGERPRINT_TTL"`

	ProductCountMode string `yaml:"product_count_mode" env:"PRODUCT_COUNT_MODE"`
	MaxParallelism   int    `yaml:"max_parallelism" env:"MAX_PARALLELISM"`

	EventsDefaultLimit int `yaml:"events_default_limit" env:"EVENTS_DEFAULT_LIMIT"`
	EventsMaxLimit     int `yaml:"events_max_limit" env:"EVENTS_MAX_LIMIT"`

	SeedEnabled bool `yaml:"seed_enabled" env:"SEED_ENABLED"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:           ":8080",
		AppEnv:             "development",
		LogLevel:           "info",
		LogFormat:          "json",
		SQLitePath:         "factory-monitor.db",
		StoreTimeout:       5 * time.Second,
		DedupTolerance:     time.Second,
		FingerprintTTL:     10 * time.Second,
		ProductCountMode:   "state",
		EventsDefaultLimit: 100,
		EventsMaxLimit:     1000,
	}
}

// Load resolves configuration from defaults, CONFIG_FILE and the environment.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parse env: %w", err)
	}
	cfg.resolve()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) resolve() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = c.PGDSN
	}
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	if c.StoreDriver == "" {
		if c.DatabaseURL != "" {
			c.StoreDriver = DriverPostgres
		} else {
			c.StoreDriver = DriverMemory
		}
	}
	c.ProductCountMode = strings.ToLower(strings.TrimSpace(c.ProductCountMode))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL or PG_DSN is required for postgres"))
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for sqlite"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.StoreTimeout < 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must not be negative"))
	}
	if c.DedupTolerance < 0 {
		errs = append(errs, errors.New("DEDUP_TOLERANCE must not be negative"))
	}
	switch c.ProductCountMode {
	case "", "state", "annotation":
	default:
		errs = append(errs, fmt.Errorf("unknown PRODUCT_COUNT_MODE %q", c.ProductCountMode))
	}
	switch c.LogFormat {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat))
	}
	if c.MaxParallelism < 0 {
		errs = append(errs, errors.New("MAX_PARALLELISM must not be negative"))
	}
	if c.EventsDefaultLimit <= 0 || c.EventsMaxLimit <= 0 {
		errs = append(errs, errors.New("event limits must be positive"))
	} else if c.EventsDefaultLimit > c.EventsMaxLimit {
		errs = append(errs, errors.New("EVENTS_DEFAULT_LIMIT must not exceed EVENTS_MAX_LIMIT"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}

// IsProduction reports whether error details must be hidden from clients.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
