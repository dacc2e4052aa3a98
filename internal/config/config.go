// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env         string `env:"ENV"          envDefault:"local" validate:"required,oneof=local staging production"`
	Port        string `env:"PORT"         envDefault:"8080"  validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"  validate:"oneof=debug info warn error"`

	DBPath string `env:"DB_PATH" envDefault:"data/notes.db" validate:"required"`
	// Empty in ENV=local selects the in-memory code store.
	RedisURL string `env:"REDIS_URL" validate:"required_unless=Env local"`

	JWTSecret    string        `env:"JWT_SECRET,required" validate:"required,min=32"`
	TokenTTL     time.Duration `env:"TOKEN_TTL"      envDefault:"24h" validate:"gt=0"`
	CodeTTL      time.Duration `env:"CODE_TTL"       envDefault:"5m"  validate:"gt=0"`
	CodeHashCost int           `env:"CODE_HASH_COST" envDefault:"10"  validate:"min=4,max=31"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`

	// Google sign-in is off unless both id and secret are set.
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET" validate:"required_with=GoogleClientID"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL"  envDefault:"http://localhost:8080/api/auth/google/callback" validate:"omitempty,url"`
	GoogleTimeout      time.Duration `env:"GOOGLE_TIMEOUT"       envDefault:"10s" validate:"gt=0"`

	// FrontendURL turns the Google callback into a browser redirect.
	FrontendURL        string   `env:"FRONTEND_URL" validate:"omitempty,url"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
