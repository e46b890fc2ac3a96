package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the assistant page service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// DatabaseURL selects the postgres persona store; empty falls back to the
	// in-memory store (dev and tests only).
	DatabaseURL string

	ElevenLabsAPIKey     string
	ElevenLabsAPIBaseURL string
	// DefaultAgentID backs the legacy fixed-agent routes kept from the first
	// deployment of this service.
	DefaultAgentID string

	SignedURLTimeout time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "falavox"),
		AllowAnyOrigin:       false,
		DatabaseURL:          envTrimmed("DATABASE_URL"),
		ElevenLabsAPIKey:     envTrimmed("ELEVENLABS_API_KEY"),
		ElevenLabsAPIBaseURL: envOrDefault("ELEVENLABS_API_BASE_URL", "https://api.elevenlabs.io"),
		DefaultAgentID:       envTrimmed("ELEVENLABS_DEFAULT_AGENT_ID"),
		ShutdownTimeout:      15 * time.Second,
		SignedURLTimeout:     10 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SignedURLTimeout, err = durationFromEnv("APP_SIGNED_URL_TIMEOUT", cfg.SignedURLTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SignedURLTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_SIGNED_URL_TIMEOUT must be positive")
	}
	if !strings.HasPrefix(cfg.ElevenLabsAPIBaseURL, "http://") && !strings.HasPrefix(cfg.ElevenLabsAPIBaseURL, "https://") {
		return Config{}, fmt.Errorf("ELEVENLABS_API_BASE_URL must be an http(s) URL")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
