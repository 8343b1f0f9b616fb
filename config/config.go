// Package config loads process configuration from the environment. Secrets
// are parsed straight into their redacting handle types so a stray Printf of
// the config never leaks key material.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-users"
	"github.com/goliatone/go-users/admin"
)

// Config is the full process configuration. Values are read once at startup
// and treated as read-only afterwards.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8000"`

	DatabaseURL    string   `env:"DATABASE_URL,required,notEmpty"`
	RedisURL       string   `env:"REDIS_URL,required,notEmpty"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,required,notEmpty" envSeparator:","`

	SessionSecret admin.SessionSecret `env:"SECRET_KEY,required,notEmpty"`
	TokenSecret   users.TokenSecret   `env:"AUTH_SECRET_KEY,required,notEmpty"`

	TokenLifetime   time.Duration `env:"TOKEN_LIFETIME" envDefault:"24h"`
	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"24h"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "parse env")
	}
	return cfg, nil
}

// IsDevelopment reports whether the process runs in a development
// environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Snippet returns an abbreviated, log-safe form of a config value: the first
// and last two characters with the middle elided. Short values are returned
// unchanged since there is nothing left to hide.
func Snippet(value string) string {
	if len(value) < 7 {
		return value
	}
	return value[:2] + "..." + value[len(value)-2:]
}
