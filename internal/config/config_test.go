package config

import (
	"log/slog"
	"testing"
	"time"
)

var envVars = []string{
	"IDSTORE_MONGO_URI", "IDSTORE_MONGO_DATABASE", "IDSTORE_CONNECT_TIMEOUT",
	"IDSTORE_LOCALE", "IDSTORE_REQUIRE_UNIQUE_EMAIL", "IDSTORE_KEY_KIND",
	"IDSTORE_OPS_ADDR", "IDSTORE_OPS_RATE_LIMIT", "IDSTORE_LOG_LEVEL", "IDSTORE_OTEL_ENDPOINT",
}

// clearEnv blanks every variable Load reads. Empty values fall back to defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MongoURI != "mongodb://localhost:27017/identity" {
		t.Errorf("MongoURI = %q, want %q", cfg.MongoURI, "mongodb://localhost:27017/identity")
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want %v", cfg.ConnectTimeout, 10*time.Second)
	}
	if cfg.Locale != "en" {
		t.Errorf("Locale = %q, want %q", cfg.Locale, "en")
	}
	if !cfg.RequireUniqueEmail {
		t.Error("RequireUniqueEmail = false, want true")
	}
	if cfg.KeyKind != "objectid" {
		t.Errorf("KeyKind = %q, want %q", cfg.KeyKind, "objectid")
	}
	if cfg.OpsAddr != ":9090" {
		t.Errorf("OpsAddr = %q, want %q", cfg.OpsAddr, ":9090")
	}
	if cfg.OpsRateLimit != 120 {
		t.Errorf("OpsRateLimit = %d, want %d", cfg.OpsRateLimit, 120)
	}
	if cfg.HasTracing() {
		t.Error("HasTracing() = true, want false")
	}

	name, err := cfg.Repository().DatabaseName()
	if err != nil {
		t.Fatalf("DatabaseName failed: %v", err)
	}
	if name != "identity" {
		t.Errorf("DatabaseName() = %q, want %q", name, "identity")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("IDSTORE_MONGO_URI", "mongodb://db.example.com:27017")
	t.Setenv("IDSTORE_MONGO_DATABASE", "accounts")
	t.Setenv("IDSTORE_KEY_KIND", "UUID")
	t.Setenv("IDSTORE_REQUIRE_UNIQUE_EMAIL", "false")
	t.Setenv("IDSTORE_CONNECT_TIMEOUT", "3s")
	t.Setenv("IDSTORE_LOG_LEVEL", "debug")
	t.Setenv("IDSTORE_OTEL_ENDPOINT", "http://collector:4318")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.KeyKind != "uuid" {
		t.Errorf("KeyKind = %q, want %q", cfg.KeyKind, "uuid")
	}
	if cfg.RequireUniqueEmail {
		t.Error("RequireUniqueEmail = true, want false")
	}
	if cfg.ConnectTimeout != 3*time.Second {
		t.Errorf("ConnectTimeout = %v, want %v", cfg.ConnectTimeout, 3*time.Second)
	}
	if name, _ := cfg.Repository().DatabaseName(); name != "accounts" {
		t.Errorf("DatabaseName() = %q, want %q", name, "accounts")
	}
	if level, _ := cfg.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want %v", level, slog.LevelDebug)
	}
	if !cfg.HasTracing() {
		t.Error("HasTracing() = false, want true")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key kind", "IDSTORE_KEY_KIND", "int"},
		{"bad locale", "IDSTORE_LOCALE", "not a locale!"},
		{"bad uri", "IDSTORE_MONGO_URI", "postgres://localhost"},
		{"bad timeout", "IDSTORE_CONNECT_TIMEOUT", "soon"},
		{"negative rate limit", "IDSTORE_OPS_RATE_LIMIT", "-1"},
		{"bad log level", "IDSTORE_LOG_LEVEL", "chatty"},
		{"bad bool", "IDSTORE_REQUIRE_UNIQUE_EMAIL", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load should fail when %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestHasOps(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		expected bool
	}{
		{name: "default", addr: ":9090", expected: true},
		{name: "off", addr: OpsDisabled, expected: false},
		{name: "empty", addr: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{OpsAddr: tt.addr}
			if cfg.HasOps() != tt.expected {
				t.Errorf("HasOps() = %v, want %v", cfg.HasOps(), tt.expected)
			}
		})
	}
}
