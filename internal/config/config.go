// Package config loads the tracker's configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the activity collection of the test deployment.
const DefaultBaseURL = "https://emission-tracker-api-test.azurewebsites.net/api/transport-activity"

// Config holds the tracker configuration.
type Config struct {
	// BaseURL is the activity store collection URL.
	BaseURL string

	// TokenURL and ClientID are used to refresh access tokens.
	TokenURL string
	ClientID string
	Scopes   []string

	AccessToken  string
	RefreshToken string

	HTTPTimeout    time.Duration
	HTTPMaxRetries uint64

	// HTTPRateLimit caps requests per second to the store. Zero disables it.
	HTTPRateLimit float64

	// CacheSize is the number of activity records cached between calls.
	CacheSize int

	Environment string
	LogLevel    zerolog.Level

	TelemetryEnabled bool
	OTLPEndpoint     string
}

// LoadDotEnv loads variables from the given .env files into the
// environment. Variables that are already set win. Missing files are
// skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// FromEnv creates a Config from environment variables.
func FromEnv() (Config, error) {
	var errs []error

	timeout, err := time.ParseDuration(getEnvOrDefault("HTTP_TIMEOUT", "10s"))
	if err != nil {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT: %w", err))
	}

	retries, err := strconv.ParseUint(getEnvOrDefault("HTTP_MAX_RETRIES", "3"), 10, 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("HTTP_MAX_RETRIES: %w", err))
	}

	rps, err := strconv.ParseFloat(getEnvOrDefault("HTTP_RATE_LIMIT", "5"), 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("HTTP_RATE_LIMIT: %w", err))
	}

	cacheSize, err := strconv.Atoi(getEnvOrDefault("STORE_CACHE_SIZE", "128"))
	if err != nil {
		errs = append(errs, fmt.Errorf("STORE_CACHE_SIZE: %w", err))
	}

	level, err := zerolog.ParseLevel(strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")))
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	cfg := Config{
		BaseURL:          getEnvOrDefault("API_BASE_URL", DefaultBaseURL),
		TokenURL:         os.Getenv("AUTH_TOKEN_URL"),
		ClientID:         os.Getenv("AUTH_CLIENT_ID"),
		Scopes:           strings.Fields(getEnvOrDefault("AUTH_SCOPES", "openid offline_access")),
		AccessToken:      os.Getenv("ACCESS_TOKEN"),
		RefreshToken:     os.Getenv("REFRESH_TOKEN"),
		HTTPTimeout:      timeout,
		HTTPMaxRetries:   retries,
		HTTPRateLimit:    rps,
		CacheSize:        cacheSize,
		Environment:      getEnvOrDefault("APP_ENV", "development"),
		LogLevel:         level,
		TelemetryEnabled: os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:     getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("invalid environment: %w", err)
	}
	return cfg, nil
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	var errs []error

	if c.BaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL is required"))
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_BASE_URL %q is not an absolute URL", c.BaseURL))
	}

	if c.RefreshToken != "" && (c.TokenURL == "" || c.ClientID == "") {
		errs = append(errs, errors.New("REFRESH_TOKEN requires AUTH_TOKEN_URL and AUTH_CLIENT_ID"))
	}

	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}

	if c.HTTPRateLimit < 0 {
		errs = append(errs, errors.New("HTTP_RATE_LIMIT must not be negative"))
	}

	return errors.Join(errs...)
}

// CanRefresh reports whether expired access tokens can be renewed.
func (c Config) CanRefresh() bool {
	return c.RefreshToken != "" && c.TokenURL != "" && c.ClientID != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
