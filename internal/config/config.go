// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Fraud detector service
	DetectorURL string // endpoint the intake client submits requests to

	// Session behavior
	HistoryMode    bool     // keep the full exchange log instead of only the latest verdict
	DemoIdentities []string // selectable demo emails shown by the page chrome

	// Geolocation probe
	GeoEndpoint string        // IP geolocation endpoint; empty disables the probe
	GeoTimeout  time.Duration

	// Mock detector (cmd/detector only)
	DetectorShape string // "legacy", "tiered", or "minimal" response shape
}

// Defaults
const (
	DefaultPort        = "8080"
	DefaultEnv         = "development"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultDetectorURL = "http://localhost:8000/support-check"
	DefaultGeoTimeout  = 5 * time.Second
	DefaultShape       = "tiered"
)

// DefaultDemoIdentities are the demo accounts offered by the intake form.
var DefaultDemoIdentities = []string{
	"legit_user@email.com",
	"suspicious_actor@email.com",
}

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", DefaultPort),
		Env:            getEnv("ENV", DefaultEnv),
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:      getEnv("LOG_FORMAT", DefaultLogFormat),
		DetectorURL:    getEnv("DETECTOR_URL", DefaultDetectorURL),
		HistoryMode:    getEnvBool("HISTORY_MODE", false),
		DemoIdentities: getEnvList("DEMO_IDENTITIES", DefaultDemoIdentities),
		GeoEndpoint:    os.Getenv("GEO_ENDPOINT"), // Optional, probe disabled if not set
		GeoTimeout:     getEnvDuration("GEO_TIMEOUT", DefaultGeoTimeout),
		DetectorShape:  getEnv("DETECTOR_SHAPE", DefaultShape),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.DetectorURL == "" {
		return fmt.Errorf("DETECTOR_URL is required")
	}

	u, err := url.Parse(c.DetectorURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("DETECTOR_URL must be a valid http(s) URL")
	}

	switch c.DetectorShape {
	case "legacy", "tiered", "minimal":
	default:
		return fmt.Errorf("DETECTOR_SHAPE must be one of legacy, tiered, minimal")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
