package config

import (
	"os"
	"path/filepath"
	"time"
)

// Environment variable names read by LoadFromEnv.
const (
	// APITokenEnv holds the bearer token issued by the identity provider.
	APITokenEnv = "TRACKER_API_TOKEN"
	// APIURLEnv overrides the tracker API base URL.
	APIURLEnv = "TRACKER_API_URL"
	// LogFileEnv overrides the log file location.
	LogFileEnv = "TRACKER_LOG_FILE"
	// LogLevelEnv sets the log level (debug, info, warning, error).
	LogLevelEnv = "TRACKER_LOG_LEVEL"
	// CacheTTLEnv sets the remote cache freshness window (Go duration).
	CacheTTLEnv = "TRACKER_CACHE_TTL"
	// TimeoutEnv sets the HTTP request timeout (Go duration).
	TimeoutEnv = "TRACKER_TIMEOUT"
	// ThemeEnv selects the color theme (dark, light).
	ThemeEnv = "TRACKER_THEME"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultAPIURL   = "http://localhost:8000"
	DefaultCacheTTL = 5 * time.Minute
	DefaultTimeout  = 30 * time.Second
	DefaultLogLevel = "warning"
	DefaultTheme    = "dark"
)

// Config contains the runtime configuration for the application.
type Config struct {
	// APIToken is the bearer token for the tracker API. An empty token is
	// allowed; the app starts in the signed-out state.
	APIToken string
	// APIBaseURL is the base URL of the tracker API (no trailing slash).
	APIBaseURL string
	// Timeout is the HTTP request timeout.
	Timeout time.Duration
	// CacheTTL is how long cached issues and users stay fresh.
	CacheTTL time.Duration
	// LogFile is the path of the log file.
	LogFile string
	// LogLevel is the minimum level written to the log file.
	LogLevel string
	// Theme is the UI color theme name.
	Theme string
}

// LoadFromEnv builds a Config from environment variables, applying defaults
// for anything unset. Invalid duration values fall back to their defaults.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		APIToken:   os.Getenv(APITokenEnv),
		APIBaseURL: DefaultAPIURL,
		Timeout:    DefaultTimeout,
		CacheTTL:   DefaultCacheTTL,
		LogLevel:   DefaultLogLevel,
		Theme:      DefaultTheme,
	}

	if url := os.Getenv(APIURLEnv); url != "" {
		cfg.APIBaseURL = url
	}
	if raw := os.Getenv(TimeoutEnv); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	if raw := os.Getenv(CacheTTLEnv); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.CacheTTL = d
		}
	}
	if level := os.Getenv(LogLevelEnv); level != "" {
		cfg.LogLevel = level
	}
	if theme := os.Getenv(ThemeEnv); theme != "" {
		cfg.Theme = theme
	}

	if path := os.Getenv(LogFileEnv); path != "" {
		cfg.LogFile = path
	} else {
		cfg.LogFile = defaultLogFile()
	}

	return cfg, nil
}

// defaultLogFile returns the per-user default log location, or empty when no
// config directory can be resolved (logging is then disabled).
func defaultLogFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tracker-tui", "tracker-tui.log")
}
