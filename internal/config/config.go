package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/balloon-tracker/internal/log"
	"github.com/i474232898/balloon-tracker/internal/weather/providers"
	"github.com/i474232898/balloon-tracker/internal/windborne"
)

// IdentityMode selects how entries are assigned to tracks across hours.
type IdentityMode string

const (
	IdentityPositional IdentityMode = "positional"
	IdentityNearest    IdentityMode = "nearest"
)

type AppConfig struct {
	Port string

	WindborneBaseURL string
	ForecastBaseURL  string
	ForecastMode     providers.Mode

	// HTTPTimeout bounds each outbound request.
	HTTPTimeout time.Duration
	// RefreshTimeout bounds a whole refresh cycle.
	RefreshTimeout time.Duration

	// FetchConcurrency is how many hourly files are requested at once.
	FetchConcurrency int

	IdentityMode      IdentityMode
	IdentityMaxJumpKm float64

	Debug bool
}

// Load reads configuration from the environment (and .env, if present)
// with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.WindborneBaseURL = getenvDefault("WINDBORNE_BASE_URL", windborne.DefaultBaseURL)
	cfg.ForecastBaseURL = getenvDefault("FORECAST_BASE_URL", providers.DefaultOpenMeteoURL)

	switch mode := providers.Mode(strings.ToLower(getenvDefault("FORECAST_MODE", string(providers.ModePressure)))); mode {
	case providers.ModePressure, providers.ModeCurrent:
		cfg.ForecastMode = mode
	default:
		return nil, fmt.Errorf("invalid FORECAST_MODE %q: want pressure or current", mode)
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RefreshTimeout, err = getenvDuration("REFRESH_TIMEOUT", "2m"); err != nil {
		return nil, err
	}

	if cfg.FetchConcurrency, err = getenvInt("FETCH_CONCURRENCY", 1); err != nil {
		return nil, err
	}
	if cfg.FetchConcurrency < 1 {
		return nil, fmt.Errorf("invalid FETCH_CONCURRENCY %d: must be at least 1", cfg.FetchConcurrency)
	}

	switch mode := IdentityMode(strings.ToLower(getenvDefault("IDENTITY_MODE", string(IdentityPositional)))); mode {
	case IdentityPositional, IdentityNearest:
		cfg.IdentityMode = mode
	default:
		return nil, fmt.Errorf("invalid IDENTITY_MODE %q: want positional or nearest", mode)
	}

	jump, err := strconv.ParseFloat(getenvDefault("IDENTITY_MAX_JUMP_KM", "400"), 64)
	if err != nil || jump < 0 {
		return nil, fmt.Errorf("invalid IDENTITY_MAX_JUMP_KM: %q", os.Getenv("IDENTITY_MAX_JUMP_KM"))
	}
	cfg.IdentityMaxJumpKm = jump

	if v := os.Getenv("LOG_DEBUG"); v != "" {
		if cfg.Debug, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid LOG_DEBUG %q: %w", v, err)
		}
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
