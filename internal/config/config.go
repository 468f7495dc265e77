package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Version is set at build time via -ldflags
// Default "dev" is used for development builds
var Version = "dev"

// DefaultRealDebridURL is the Real-Debrid REST API root.
const DefaultRealDebridURL = "https://api.real-debrid.com/rest/1.0"

// Config holds all application configuration loaded from environment variables.
// It is built once in main and handed to every component that needs it.
type Config struct {
	// JackettBaseURL is the Jackett root URL, e.g. http://jackett:9117
	JackettBaseURL string

	// JackettAPIKey authenticates the cache listing endpoint
	JackettAPIKey string

	// JackettAdminPassword is posted to the dashboard login form
	JackettAdminPassword string

	// RealDebridAPIKey is the bearer token for Real-Debrid
	RealDebridAPIKey string

	// RealDebridURL is the Real-Debrid REST root (default: DefaultRealDebridURL)
	RealDebridURL string

	// Categories is the Torznab category allow-list (default: 2000 movies, 5000 TV)
	Categories []int

	// TrackerDomain restricts entries to one tracker. Empty accepts every tracker.
	TrackerDomain string

	// MaxAddsPerMinute is read and reported but not enforced; pacing is WaitTime only.
	MaxAddsPerMinute int

	// WaitTime is the pause after each processed entry (default: 12s)
	WaitTime time.Duration

	// DownloadedStatus is the literal Real-Debrid uses for a finished torrent (default: "downloaded")
	DownloadedStatus string

	// RunInterval is the time between two pipeline runs (default: 24h)
	RunInterval time.Duration

	// CheckInterval is the scheduler tick the run times are aligned to (default: 60s)
	CheckInterval time.Duration

	// Schedule is an optional standard cron expression that replaces RunInterval
	Schedule string

	// RunOnce runs the pipeline a single time and exits
	RunOnce bool

	// HTTPTimeout bounds every outbound request (default: 60s)
	HTTPTimeout time.Duration

	// ReportPath is the CSV report rewritten by every run
	ReportPath string

	// Port is the status API listen port. Empty or "0" disables the API.
	Port string

	// APIKey protects the status API when set
	APIKey string

	// NotifyURLs are shoutrrr service URLs that receive run summaries
	NotifyURLs []string

	// LogLevel controls logging verbosity: "debug", "info", "warn", "error" (default: "info")
	LogLevel string

	// RetentionDays is how long run history is kept (default: 90, 0 disables pruning)
	RetentionDays int

	// DataDir is the directory for persistent data (database, logs)
	DataDir string

	// DatabasePath is the SQLite run history file (default: <DataDir>/cachearr.db)
	DatabasePath string

	// LogDir is the directory for log files (default: <DataDir>/logs)
	LogDir string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	dataDir := getEnvOrDefault("CACHEARR_DATA_DIR", "")
	if dataDir == "" {
		// Docker images mount /config
		if info, err := os.Stat("/config"); err == nil && info.IsDir() {
			dataDir = "/config"
		} else if execPath, err := os.Executable(); err == nil {
			dataDir = filepath.Join(filepath.Dir(execPath), "config")
		} else if cwd, err := os.Getwd(); err == nil {
			dataDir = filepath.Join(cwd, "config")
		} else {
			dataDir = "./config"
		}
	}
	if absDataDir, err := filepath.Abs(dataDir); err == nil {
		dataDir = absDataDir
	}

	reportPath := getEnvOrDefault("CACHEARR_REPORT_PATH", "")
	if reportPath == "" {
		if info, err := os.Stat("/data"); err == nil && info.IsDir() {
			reportPath = "/data/results.csv"
		} else {
			reportPath = filepath.Join(dataDir, "results.csv")
		}
	}

	dbPath := getEnvOrDefault("CACHEARR_DATABASE_PATH", "")
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "cachearr.db")
	}

	cfg := &Config{
		JackettBaseURL:       strings.TrimRight(getEnvOrDefault("JACKETT_BASE_URL", ""), "/"),
		JackettAPIKey:        getEnvOrDefault("JACKETT_API_KEY", ""),
		JackettAdminPassword: getEnvOrDefault("JACKETT_ADMIN_PASSWORD", ""),
		RealDebridAPIKey:     getEnvOrDefault("REAL_DEBRID_API_KEY", ""),
		RealDebridURL:        strings.TrimRight(getEnvOrDefault("REAL_DEBRID_API_URL", DefaultRealDebridURL), "/"),
		Categories:           getEnvIntListOrDefault("MOVIE_TV_CATEGORIES", []int{2000, 5000}),
		TrackerDomain:        getEnvAllowEmpty("TRACKER_DOMAIN", "ygg.re"),
		MaxAddsPerMinute:     getEnvIntOrDefault("MAX_ADDS_PER_MINUTE", 5),
		WaitTime:             getEnvSecondsOrDefault("WAIT_TIME_SECONDS", 12*time.Second),
		DownloadedStatus:     getEnvOrDefault("REAL_DEBRID_DOWNLOADED_STATUS", "downloaded"),
		RunInterval:          getEnvDurationOrDefault("CACHEARR_RUN_INTERVAL", 24*time.Hour),
		CheckInterval:        getEnvDurationOrDefault("CACHEARR_CHECK_INTERVAL", 60*time.Second),
		Schedule:             strings.TrimSpace(getEnvOrDefault("CACHEARR_SCHEDULE", "")),
		RunOnce:              getEnvBoolOrDefault("CACHEARR_RUN_ONCE", false),
		HTTPTimeout:          getEnvDurationOrDefault("CACHEARR_HTTP_TIMEOUT", 60*time.Second),
		ReportPath:           reportPath,
		Port:                 getEnvAllowEmpty("CACHEARR_PORT", "3095"),
		APIKey:               getEnvOrDefault("CACHEARR_API_KEY", ""),
		NotifyURLs:           splitList(getEnvOrDefault("CACHEARR_NOTIFY_URLS", "")),
		LogLevel:             strings.ToLower(getEnvOrDefault("CACHEARR_LOG_LEVEL", "info")),
		RetentionDays:        getEnvIntOrDefault("CACHEARR_RETENTION_DAYS", 90),
		DataDir:              dataDir,
		DatabasePath:         dbPath,
		LogDir:               filepath.Join(dataDir, "logs"),
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		cfg.LogLevel = "info"
	}

	return cfg
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.JackettBaseURL == "" {
		errs = append(errs, errors.New("JACKETT_BASE_URL is required"))
	}
	if c.JackettAPIKey == "" {
		errs = append(errs, errors.New("JACKETT_API_KEY is required"))
	}
	if c.RealDebridAPIKey == "" {
		errs = append(errs, errors.New("REAL_DEBRID_API_KEY is required"))
	}
	if len(c.Categories) == 0 {
		errs = append(errs, errors.New("MOVIE_TV_CATEGORIES must list at least one category"))
	}
	if c.WaitTime < 0 {
		errs = append(errs, fmt.Errorf("WAIT_TIME_SECONDS must not be negative, got %s", c.WaitTime))
	}
	if c.Schedule == "" && c.RunInterval <= 0 {
		errs = append(errs, fmt.Errorf("CACHEARR_RUN_INTERVAL must be positive, got %s", c.RunInterval))
	}
	if c.CheckInterval < 0 {
		errs = append(errs, fmt.Errorf("CACHEARR_CHECK_INTERVAL must not be negative, got %s", c.CheckInterval))
	}
	return errors.Join(errs...)
}

// APIEnabled reports whether the status API should be started.
func (c *Config) APIEnabled() bool {
	return c.Port != "" && c.Port != "0"
}

// NewTestConfig returns a minimal Config suitable for unit tests.
func NewTestConfig() *Config {
	return &Config{
		JackettBaseURL:   "http://jackett.test",
		JackettAPIKey:    "jackett-key",
		RealDebridAPIKey: "rd-key",
		RealDebridURL:    DefaultRealDebridURL,
		Categories:       []int{2000, 5000},
		TrackerDomain:    "ygg.re",
		MaxAddsPerMinute: 5,
		WaitTime:         0,
		DownloadedStatus: "downloaded",
		RunInterval:      24 * time.Hour,
		CheckInterval:    60 * time.Second,
		HTTPTimeout:      5 * time.Second,
		ReportPath:       "/tmp/cachearr-test/results.csv",
		Port:             "8080",
		LogLevel:         "debug",
		RetentionDays:    90,
		DataDir:          "/tmp/cachearr-test",
		DatabasePath:     "/tmp/cachearr-test/cachearr.db",
		LogDir:           "/tmp/cachearr-test/logs",
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty is like getEnvOrDefault but an explicitly empty variable wins over the default.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

// getEnvIntOrDefault returns the environment variable as an int or the default if not set/invalid.
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvIntListOrDefault parses a comma separated list of integers.
// Any unparsable element makes the whole value fall back to the default.
func getEnvIntListOrDefault(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []int
	for _, part := range splitList(value) {
		i, err := strconv.Atoi(part)
		if err != nil {
			return defaultValue
		}
		out = append(out, i)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvDurationOrDefault returns the environment variable as a duration or the default if not set/invalid.
// Accepts Go duration strings like "30s", "5m", "24h".
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvSecondsOrDefault reads a (possibly fractional) number of seconds.
func getEnvSecondsOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the environment variable as a bool or the default if not set.
// Accepts "true", "1", "yes" as true values (case-insensitive).
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FlagOverrides holds command-line flag values that can override environment variables
type FlagOverrides struct {
	LogLevel      *string
	DataDir       *string
	DatabasePath  *string
	ReportPath    *string
	Port          *string
	Schedule      *string
	RunInterval   *time.Duration
	CheckInterval *time.Duration
	WaitTime      *time.Duration
	RunOnce       *bool
}

// ApplyFlags applies command-line flag overrides to the configuration.
// Only non-nil values with non-default flag values will override.
func (c *Config) ApplyFlags(flags FlagOverrides) {
	if flags.LogLevel != nil && *flags.LogLevel != "" {
		c.LogLevel = strings.ToLower(*flags.LogLevel)
	}
	if flags.DataDir != nil && *flags.DataDir != "" {
		// Paths still derived from the old data dir follow it
		if c.DatabasePath == filepath.Join(c.DataDir, "cachearr.db") {
			c.DatabasePath = filepath.Join(*flags.DataDir, "cachearr.db")
		}
		if c.ReportPath == filepath.Join(c.DataDir, "results.csv") {
			c.ReportPath = filepath.Join(*flags.DataDir, "results.csv")
		}
		c.DataDir = *flags.DataDir
		c.LogDir = filepath.Join(c.DataDir, "logs")
	}
	if flags.DatabasePath != nil && *flags.DatabasePath != "" {
		c.DatabasePath = *flags.DatabasePath
	}
	if flags.ReportPath != nil && *flags.ReportPath != "" {
		c.ReportPath = *flags.ReportPath
	}
	if flags.Port != nil && *flags.Port != "" {
		c.Port = *flags.Port
	}
	if flags.Schedule != nil && *flags.Schedule != "" {
		c.Schedule = *flags.Schedule
	}
	if flags.RunInterval != nil && *flags.RunInterval != 0 {
		c.RunInterval = *flags.RunInterval
	}
	if flags.CheckInterval != nil && *flags.CheckInterval != 0 {
		c.CheckInterval = *flags.CheckInterval
	}
	if flags.WaitTime != nil && *flags.WaitTime >= 0 {
		c.WaitTime = *flags.WaitTime
	}
	if flags.RunOnce != nil && *flags.RunOnce {
		c.RunOnce = true
	}
}
