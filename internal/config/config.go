package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/tendant/simple-idm-mongo/pkg/keys"
	"github.com/tendant/simple-idm-mongo/pkg/repository"
)

// OpsDisabled turns the ops listener off when used as OpsAddr.
const OpsDisabled = "off"

// Config holds application configuration.
type Config struct {
	// MongoDB
	MongoURI       string        `env:"IDSTORE_MONGO_URI"       envDefault:"mongodb://localhost:27017/identity"`
	MongoDatabase  string        `env:"IDSTORE_MONGO_DATABASE"`
	ConnectTimeout time.Duration `env:"IDSTORE_CONNECT_TIMEOUT" envDefault:"10s"`

	// Schema
	Locale             string `env:"IDSTORE_LOCALE"               envDefault:"en"`
	RequireUniqueEmail bool   `env:"IDSTORE_REQUIRE_UNIQUE_EMAIL" envDefault:"true"`
	KeyKind            string `env:"IDSTORE_KEY_KIND"             envDefault:"objectid"`

	// Ops
	OpsAddr      string `env:"IDSTORE_OPS_ADDR"       envDefault:":9090"`
	OpsRateLimit int    `env:"IDSTORE_OPS_RATE_LIMIT" envDefault:"120"`
	LogLevel     string `env:"IDSTORE_LOG_LEVEL"      envDefault:"info"`
	OTelEndpoint string `env:"IDSTORE_OTEL_ENDPOINT"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.KeyKind = strings.ToLower(cfg.KeyKind)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env parsing cannot.
func (c *Config) Validate() error {
	if !slices.Contains(keys.Names(), c.KeyKind) {
		return fmt.Errorf("IDSTORE_KEY_KIND must be one of %s, got %q", strings.Join(keys.Names(), ", "), c.KeyKind)
	}
	if err := repository.ValidateLocale(c.Locale); err != nil {
		return fmt.Errorf("IDSTORE_LOCALE: %w", err)
	}
	if _, err := c.Repository().DatabaseName(); err != nil {
		return fmt.Errorf("IDSTORE_MONGO_URI: %w", err)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("IDSTORE_CONNECT_TIMEOUT must be positive, got %v", c.ConnectTimeout)
	}
	if c.OpsRateLimit < 0 {
		return fmt.Errorf("IDSTORE_OPS_RATE_LIMIT must not be negative, got %d", c.OpsRateLimit)
	}
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("IDSTORE_LOG_LEVEL: %w", err)
	}
	return nil
}

// Repository returns the MongoDB connection settings.
func (c *Config) Repository() repository.Config {
	return repository.Config{
		URI:            c.MongoURI,
		Database:       c.MongoDatabase,
		ConnectTimeout: c.ConnectTimeout,
	}
}

// HasOps returns true if the ops listener is enabled.
func (c *Config) HasOps() bool {
	return c.OpsAddr != "" && c.OpsAddr != OpsDisabled
}

// HasTracing returns true if an OTLP endpoint is configured.
func (c *Config) HasTracing() bool {
	return c.OTelEndpoint != ""
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
