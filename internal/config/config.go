// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Gateway access modes.
const (
	ModeHTTP  = "http"
	ModeLocal = "local"
)

// Config holds the application configuration.
type Config struct {
	GatewayMode       string
	GatewayURL        string
	GatewayTimeout    time.Duration
	DatabasePath      string
	AnalyticsHours    int
	PageSize          int
	FallbackEnabled   bool
	ActivityWatchPath string
	LogPath           string
	LogLevel          string
	NotifyEnabled     bool
	ServeAddr         string
}

// Default values
const (
	defaultGatewayTimeout = 10 * time.Second
	defaultAnalyticsHours = 24
	defaultPageSize       = 50
	defaultServeAddr      = "127.0.0.1:8787"
	maxPageSize           = 1000
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	defaultURL := "http://" + defaultServeAddr
	if settings := LoadGatewaySettings(); settings != nil {
		defaultURL = settings.URL()
	}

	dbPath := getEnvString("DATABASE_PATH", getDefaultDatabasePath())
	cfg := &Config{
		GatewayMode:       strings.ToLower(getEnvString("GATEWAY_MODE", ModeHTTP)),
		GatewayURL:        getEnvString("GATEWAY_URL", defaultURL),
		GatewayTimeout:    getEnvDuration("GATEWAY_TIMEOUT", defaultGatewayTimeout),
		DatabasePath:      dbPath,
		AnalyticsHours:    getEnvInt("ANALYTICS_HOURS", defaultAnalyticsHours),
		PageSize:          getEnvInt("PAGE_SIZE", defaultPageSize),
		FallbackEnabled:   getEnvBool("FALLBACK_ENABLED", false),
		ActivityWatchPath: getEnvString("ACTIVITY_WATCH_PATH", dbPath),
		LogPath:           getEnvString("LOG_PATH", getDefaultLogPath()),
		LogLevel:          getEnvString("LOG_LEVEL", "info"),
		NotifyEnabled:     getEnvBool("NOTIFY_ENABLED", true),
		ServeAddr:         getEnvString("SERVE_ADDR", defaultServeAddr),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	// Ensure log directory exists
	if cfg.LogPath != "" {
		if err := ensureDir(filepath.Dir(cfg.LogPath)); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.GatewayMode {
	case ModeHTTP, ModeLocal:
	default:
		return fmt.Errorf("GATEWAY_MODE must be %q or %q, got %q", ModeHTTP, ModeLocal, c.GatewayMode)
	}
	if c.GatewayMode == ModeHTTP && c.GatewayURL == "" {
		return fmt.Errorf("GATEWAY_URL is required in %s mode", ModeHTTP)
	}
	if c.AnalyticsHours <= 0 {
		return fmt.Errorf("ANALYTICS_HOURS must be positive, got %d", c.AnalyticsHours)
	}
	if c.PageSize <= 0 || c.PageSize > maxPageSize {
		return fmt.Errorf("PAGE_SIZE must be between 1 and %d, got %d", maxPageSize, c.PageSize)
	}
	return nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "gateway-usage-tui", ".env"),
			filepath.Join(home, ".gateway-usage", ".env"),
		)
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
		grandparent := filepath.Dir(parent)
		paths = append(paths, filepath.Join(grandparent, ".env"))
	}

	return paths
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "usage.db"
	}
	return filepath.Join(home, ".config", "gateway-usage-tui", "usage.db")
}

// getDefaultLogPath returns the default path for the log file.
func getDefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "gwusage.log"
	}
	return filepath.Join(home, ".config", "gateway-usage-tui", "gwusage.log")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
// Accepts the forms understood by strconv.ParseBool plus "yes"/"no".
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "":
		return defaultValue
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
