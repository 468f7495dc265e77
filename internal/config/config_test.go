package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// unsetEnv clears variables for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "") // registers restore
		os.Unsetenv(k)
	}
}

var allKeys = []string{
	"JACKETT_BASE_URL", "JACKETT_API_KEY", "JACKETT_ADMIN_PASSWORD",
	"REAL_DEBRID_API_KEY", "REAL_DEBRID_API_URL", "MOVIE_TV_CATEGORIES",
	"TRACKER_DOMAIN", "MAX_ADDS_PER_MINUTE", "WAIT_TIME_SECONDS",
	"REAL_DEBRID_DOWNLOADED_STATUS", "CACHEARR_RUN_INTERVAL", "CACHEARR_CHECK_INTERVAL",
	"CACHEARR_SCHEDULE", "CACHEARR_RUN_ONCE", "CACHEARR_HTTP_TIMEOUT",
	"CACHEARR_REPORT_PATH", "CACHEARR_PORT", "CACHEARR_API_KEY", "CACHEARR_NOTIFY_URLS",
	"CACHEARR_LOG_LEVEL", "CACHEARR_RETENTION_DAYS", "CACHEARR_DATA_DIR", "CACHEARR_DATABASE_PATH",
}

// =============================================================================
// Helper functions tests
// =============================================================================

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		envValue     string
		defaultValue string
		expected     string
	}{
		{"env set", "TEST_ENV_VAR", "custom-value", "default", "custom-value"},
		{"env not set", "TEST_ENV_VAR_UNSET", "", "default", "default"},
		{"empty default", "TEST_ENV_VAR_EMPTY", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvOrDefault(tt.key, tt.defaultValue)
			if got != tt.expected {
				t.Errorf("getEnvOrDefault() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGetEnvAllowEmpty(t *testing.T) {
	unsetEnv(t, "TEST_ALLOW_EMPTY")
	if got := getEnvAllowEmpty("TEST_ALLOW_EMPTY", "ygg.re"); got != "ygg.re" {
		t.Errorf("unset: got %q, want default", got)
	}

	t.Setenv("TEST_ALLOW_EMPTY", "")
	if got := getEnvAllowEmpty("TEST_ALLOW_EMPTY", "ygg.re"); got != "" {
		t.Errorf("set but empty: got %q, want empty", got)
	}

	t.Setenv("TEST_ALLOW_EMPTY", " example.org ")
	if got := getEnvAllowEmpty("TEST_ALLOW_EMPTY", "ygg.re"); got != "example.org" {
		t.Errorf("set: got %q, want example.org", got)
	}
}

func TestGetEnvIntOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		envValue     string
		defaultValue int
		expected     int
	}{
		{"valid int", "TEST_INT_VAR", "42", 10, 42},
		{"invalid int", "TEST_INT_INVALID", "not-a-number", 10, 10},
		{"env not set", "TEST_INT_UNSET", "", 10, 10},
		{"negative int", "TEST_INT_NEGATIVE", "-5", 10, -5},
		{"zero", "TEST_INT_ZERO", "0", 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvIntOrDefault(tt.key, tt.defaultValue)
			if got != tt.expected {
				t.Errorf("getEnvIntOrDefault() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestGetEnvIntListOrDefault(t *testing.T) {
	def := []int{2000, 5000}
	tests := []struct {
		name     string
		envValue string
		expected []int
	}{
		{"unset", "", def},
		{"single", "2000", []int{2000}},
		{"list with spaces", "2000, 5000 ,8000", []int{2000, 5000, 8000}},
		{"invalid element", "2000,tv", def},
		{"only commas", ",,", def},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT_LIST", tt.envValue)

			got := getEnvIntListOrDefault("TEST_INT_LIST", def)
			if len(got) != len(tt.expected) {
				t.Fatalf("getEnvIntListOrDefault() = %v, want %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("getEnvIntListOrDefault()[%d] = %d, want %d", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestGetEnvDurationOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"valid duration", "5m", 5 * time.Minute},
		{"hours", "24h", 24 * time.Hour},
		{"invalid duration", "soon", time.Minute},
		{"unset", "", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.envValue)

			got := getEnvDurationOrDefault("TEST_DURATION", time.Minute)
			if got != tt.expected {
				t.Errorf("getEnvDurationOrDefault() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetEnvSecondsOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"integer seconds", "12", 12 * time.Second},
		{"fractional seconds", "1.5", 1500 * time.Millisecond},
		{"zero", "0", 0},
		{"invalid", "twelve", 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_SECONDS", tt.envValue)

			got := getEnvSecondsOrDefault("TEST_SECONDS", 3*time.Second)
			if got != tt.expected {
				t.Errorf("getEnvSecondsOrDefault() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetEnvBoolOrDefault(t *testing.T) {
	tests := []struct {
		envValue string
		expected bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"false", false},
		{"0", false},
		{"nope", false},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)

			if got := getEnvBoolOrDefault("TEST_BOOL", false); got != tt.expected {
				t.Errorf("getEnvBoolOrDefault(%q) = %v, want %v", tt.envValue, got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Load tests
// =============================================================================

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, allKeys...)
	tmpDir := t.TempDir()
	t.Setenv("CACHEARR_DATA_DIR", tmpDir)

	c := Load()

	if c.RealDebridURL != DefaultRealDebridURL {
		t.Errorf("Default RealDebridURL = %s", c.RealDebridURL)
	}
	if len(c.Categories) != 2 || c.Categories[0] != 2000 || c.Categories[1] != 5000 {
		t.Errorf("Default Categories = %v, want [2000 5000]", c.Categories)
	}
	if c.TrackerDomain != "ygg.re" {
		t.Errorf("Default TrackerDomain = %q, want ygg.re", c.TrackerDomain)
	}
	if c.MaxAddsPerMinute != 5 {
		t.Errorf("Default MaxAddsPerMinute = %d, want 5", c.MaxAddsPerMinute)
	}
	if c.WaitTime != 12*time.Second {
		t.Errorf("Default WaitTime = %v, want 12s", c.WaitTime)
	}
	if c.DownloadedStatus != "downloaded" {
		t.Errorf("Default DownloadedStatus = %q", c.DownloadedStatus)
	}
	if c.RunInterval != 24*time.Hour {
		t.Errorf("Default RunInterval = %v, want 24h", c.RunInterval)
	}
	if c.CheckInterval != 60*time.Second {
		t.Errorf("Default CheckInterval = %v, want 60s", c.CheckInterval)
	}
	if c.Port != "3095" {
		t.Errorf("Default Port = %s, want 3095", c.Port)
	}
	if c.LogLevel != "info" {
		t.Errorf("Default LogLevel = %s, want info", c.LogLevel)
	}
	if c.RetentionDays != 90 {
		t.Errorf("Default RetentionDays = %d, want 90", c.RetentionDays)
	}
	if c.DatabasePath != filepath.Join(tmpDir, "cachearr.db") {
		t.Errorf("Default DatabasePath = %s", c.DatabasePath)
	}
	if c.LogDir != filepath.Join(tmpDir, "logs") {
		t.Errorf("Default LogDir = %s", c.LogDir)
	}
	if c.RunOnce {
		t.Error("Default RunOnce should be false")
	}
}

func TestLoad_CustomEnvVars(t *testing.T) {
	unsetEnv(t, allKeys...)
	tmpDir := t.TempDir()

	t.Setenv("JACKETT_BASE_URL", "http://jackett:9117/")
	t.Setenv("JACKETT_API_KEY", "abc")
	t.Setenv("JACKETT_ADMIN_PASSWORD", "secret")
	t.Setenv("REAL_DEBRID_API_KEY", "rd")
	t.Setenv("MOVIE_TV_CATEGORIES", "2000")
	t.Setenv("TRACKER_DOMAIN", "")
	t.Setenv("MAX_ADDS_PER_MINUTE", "2")
	t.Setenv("WAIT_TIME_SECONDS", "0.5")
	t.Setenv("CACHEARR_RUN_INTERVAL", "6h")
	t.Setenv("CACHEARR_SCHEDULE", " 0 3 * * * ")
	t.Setenv("CACHEARR_NOTIFY_URLS", "ntfy://ntfy.sh/cachearr, ,discord://token@id")
	t.Setenv("CACHEARR_LOG_LEVEL", "DEBUG")
	t.Setenv("CACHEARR_RUN_ONCE", "yes")
	t.Setenv("CACHEARR_DATA_DIR", tmpDir)
	t.Setenv("CACHEARR_REPORT_PATH", filepath.Join(tmpDir, "out.csv"))

	c := Load()

	if c.JackettBaseURL != "http://jackett:9117" {
		t.Errorf("JackettBaseURL = %s, trailing slash should be trimmed", c.JackettBaseURL)
	}
	if c.JackettAdminPassword != "secret" {
		t.Errorf("JackettAdminPassword = %s", c.JackettAdminPassword)
	}
	if len(c.Categories) != 1 || c.Categories[0] != 2000 {
		t.Errorf("Categories = %v, want [2000]", c.Categories)
	}
	if c.TrackerDomain != "" {
		t.Errorf("TrackerDomain = %q, explicitly empty should disable the filter", c.TrackerDomain)
	}
	if c.MaxAddsPerMinute != 2 {
		t.Errorf("MaxAddsPerMinute = %d, want 2", c.MaxAddsPerMinute)
	}
	if c.WaitTime != 500*time.Millisecond {
		t.Errorf("WaitTime = %v, want 500ms", c.WaitTime)
	}
	if c.RunInterval != 6*time.Hour {
		t.Errorf("RunInterval = %v, want 6h", c.RunInterval)
	}
	if c.Schedule != "0 3 * * *" {
		t.Errorf("Schedule = %q", c.Schedule)
	}
	if len(c.NotifyURLs) != 2 {
		t.Errorf("NotifyURLs = %v, want 2 entries", c.NotifyURLs)
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", c.LogLevel)
	}
	if !c.RunOnce {
		t.Error("RunOnce should be true")
	}
	if c.ReportPath != filepath.Join(tmpDir, "out.csv") {
		t.Errorf("ReportPath = %s", c.ReportPath)
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("CACHEARR_DATA_DIR", t.TempDir())
	t.Setenv("CACHEARR_LOG_LEVEL", "verbose")

	if c := Load(); c.LogLevel != "info" {
		t.Errorf("LogLevel = %s, invalid values should fall back to info", c.LogLevel)
	}
}

// =============================================================================
// Validate tests
// =============================================================================

func TestValidate(t *testing.T) {
	if err := NewTestConfig().Validate(); err != nil {
		t.Fatalf("NewTestConfig should be valid: %v", err)
	}

	c := NewTestConfig()
	c.JackettBaseURL = ""
	c.RealDebridAPIKey = ""
	c.Categories = nil
	c.WaitTime = -time.Second

	err := c.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"JACKETT_BASE_URL", "REAL_DEBRID_API_KEY", "MOVIE_TV_CATEGORIES", "WAIT_TIME_SECONDS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestValidate_ScheduleReplacesInterval(t *testing.T) {
	c := NewTestConfig()
	c.RunInterval = 0
	if err := c.Validate(); err == nil {
		t.Error("zero interval without schedule should be rejected")
	}

	c.Schedule = "@daily"
	if err := c.Validate(); err != nil {
		t.Errorf("zero interval with a schedule should be accepted: %v", err)
	}
}

func TestAPIEnabled(t *testing.T) {
	c := NewTestConfig()
	for port, want := range map[string]bool{"3095": true, "": false, "0": false} {
		c.Port = port
		if got := c.APIEnabled(); got != want {
			t.Errorf("APIEnabled() with port %q = %v, want %v", port, got, want)
		}
	}
}

// =============================================================================
// ApplyFlags tests
// =============================================================================

func TestApplyFlags_AllFlags(t *testing.T) {
	c := NewTestConfig()

	logLevel := "error"
	dataDir := "/srv/cachearr"
	report := "/srv/report.csv"
	port := "9999"
	schedule := "@hourly"
	interval := 2 * time.Hour
	check := 10 * time.Second
	wait := 3 * time.Second
	runOnce := true

	c.ApplyFlags(FlagOverrides{
		LogLevel:      &logLevel,
		DataDir:       &dataDir,
		ReportPath:    &report,
		Port:          &port,
		Schedule:      &schedule,
		RunInterval:   &interval,
		CheckInterval: &check,
		WaitTime:      &wait,
		RunOnce:       &runOnce,
	})

	if c.LogLevel != "error" || c.Port != "9999" || c.Schedule != "@hourly" {
		t.Errorf("string flags not applied: %+v", c)
	}
	if c.DataDir != dataDir || c.LogDir != filepath.Join(dataDir, "logs") {
		t.Errorf("DataDir/LogDir = %s/%s", c.DataDir, c.LogDir)
	}
	if c.DatabasePath != filepath.Join(dataDir, "cachearr.db") {
		t.Errorf("DatabasePath should follow DataDir, got %s", c.DatabasePath)
	}
	if c.ReportPath != report {
		t.Errorf("ReportPath = %s", c.ReportPath)
	}
	if c.RunInterval != interval || c.CheckInterval != check || c.WaitTime != wait {
		t.Errorf("duration flags not applied: %v %v %v", c.RunInterval, c.CheckInterval, c.WaitTime)
	}
	if !c.RunOnce {
		t.Error("RunOnce flag not applied")
	}
}

func TestApplyFlags_UnsetValuesNotApplied(t *testing.T) {
	c := NewTestConfig()
	empty := ""
	zero := time.Duration(0)
	negative := -time.Second
	no := false

	c.ApplyFlags(FlagOverrides{
		LogLevel:    &empty,
		Port:        &empty,
		RunInterval: &zero,
		WaitTime:    &negative,
		RunOnce:     &no,
	})

	want := NewTestConfig()
	if c.LogLevel != want.LogLevel || c.Port != want.Port || c.RunInterval != want.RunInterval {
		t.Errorf("unset flags should not override: %+v", c)
	}
	if c.WaitTime != want.WaitTime {
		t.Errorf("negative wait flag means unset, got %v", c.WaitTime)
	}
}
