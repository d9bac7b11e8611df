// Package config loads the process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application configuration.
type Config struct {
	// Database connection string (DSN). Postgres URLs select the pgdriver;
	// anything else is treated as a SQLite path.
	DatabaseURL string `envconfig:"DATABASE_URL" default:"clawlink.db"`

	// Listen port for the HTTP + WebSocket server.
	Port int `envconfig:"PORT" default:"3000"`

	// Secret for owner-session JWT signing. Peripheral to the agent API.
	JWTSecret string `envconfig:"JWT_SECRET"`

	// Base URL of the API, used to compose claim URLs and skill.md.
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:3000"`

	// Frontend URL used for claim links shown to humans. Falls back to BaseURL.
	FrontendURL string `envconfig:"FRONTEND_URL"`

	// Bearer token for the Twitter verification provider. When empty the
	// server runs with the dev-mode verification short-circuit.
	TwitterBearerToken string `envconfig:"TWITTER_BEARER_TOKEN"`

	// Enable debug logging.
	Debug bool `envconfig:"DEBUG" default:"false"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT must be in 1..65535, got %d", cfg.Port)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = cfg.BaseURL
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	return &cfg, nil
}

// ListenAddr returns the host:port bind address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DevVerification reports whether the external verification short-circuit
// is active. Security relevant; log it once at startup.
func (c *Config) DevVerification() bool {
	return c.TwitterBearerToken == ""
}

// LogStartup records the security-relevant configuration facts.
func (c *Config) LogStartup(log *slog.Logger) {
	log.Info("configuration loaded",
		"port", c.Port,
		"base_url", c.BaseURL,
		"debug", c.Debug,
	)
	if c.DevVerification() {
		log.Warn("TWITTER_BEARER_TOKEN not set: claim verification runs in dev mode and accepts any handle")
	}
	if c.JWTSecret == "" {
		log.Warn("JWT_SECRET not set: owner sessions are disabled")
	}
}
