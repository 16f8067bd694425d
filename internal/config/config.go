// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

// Package config loads server configuration from an optional YAML file
// overlaid with command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full server configuration.
type Config struct {
	Server   Server   `koanf:"server"`
	Metrics  Metrics  `koanf:"metrics"`
	Log      Log      `koanf:"log"`
	DB       DB       `koanf:"db"`
	Supabase Supabase `koanf:"supabase"`
	Auth     Auth     `koanf:"auth"`
}

// Server configures the HTTP API listener.
type Server struct {
	Addr string `koanf:"addr"`
}

// Metrics configures the metrics/health listener. An empty address
// disables it.
type Metrics struct {
	Addr string `koanf:"addr"`
}

// Log configures structured logging.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DB configures the profile database. An empty URL selects the
// in-memory profile store.
type DB struct {
	URL string `koanf:"url"`
}

// Supabase configures the hosted auth backend. An empty URL selects the
// in-memory backend.
type Supabase struct {
	URL string `koanf:"url"`
	Key string `koanf:"key"`
}

// Auth configures session handling.
type Auth struct {
	MaxIdle             time.Duration `koanf:"max-idle"`
	ReapInterval        time.Duration `koanf:"reap-interval"`
	RequireConfirmation bool          `koanf:"require-confirmation"`
}

// Default returns the configuration used when neither file nor flags
// say otherwise.
func Default() Config {
	return Config{
		Server:  Server{Addr: "127.0.0.1:8080"},
		Metrics: Metrics{Addr: "127.0.0.1:9100"},
		Log:     Log{Format: "json", Level: "info"},
		Auth: Auth{
			MaxIdle:      24 * time.Hour,
			ReapInterval: time.Hour,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (when non-empty), then any changed flags. Flag names map to config
// keys by replacing the first dash with a dot, so --db-url sets db.url.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, oops.Code("CONFIG_FILE_MISSING").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key := strings.Replace(f.Name, "-", ".", 1)
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.addr is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Supabase.URL != "" && c.Supabase.Key == "" {
		return oops.Code("CONFIG_INVALID").Errorf("supabase.key is required when supabase.url is set")
	}
	if c.Auth.MaxIdle <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth.max-idle must be positive, got %s", c.Auth.MaxIdle)
	}
	if c.Auth.ReapInterval <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth.reap-interval must be positive, got %s", c.Auth.ReapInterval)
	}
	return nil
}

// String renders the effective configuration with the API key redacted.
func (c *Config) String() string {
	key := c.Supabase.Key
	if key != "" {
		key = "[redacted]"
	}
	return fmt.Sprintf("server.addr=%s metrics.addr=%s log=%s/%s db.url.set=%t supabase.url=%s supabase.key=%s",
		c.Server.Addr, c.Metrics.Addr, c.Log.Format, c.Log.Level, c.DB.URL != "", c.Supabase.URL, key)
}
