package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Unreachable probe policies
const (
	UnreachableExhaust = "exhaust"
	UnreachableRetry   = "retry"
)

// Ledger backends
const (
	LedgerFile   = "file"
	LedgerSQLite = "sqlite"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Config holds all configuration options for clipvault
type Config struct {
	// Remote API and request identity
	API APIConfig `yaml:"api" json:"api"`

	// Code probing
	Probe ProbeConfig `yaml:"probe" json:"probe"`

	// Item collection and pagination
	Collect CollectConfig `yaml:"collect" json:"collect"`

	// Asset downloads
	Download DownloadConfig `yaml:"download" json:"download"`

	// Client-side request throttle
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry policy for item and page fetches
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds the item endpoint and the header identity shared by all requests
type APIConfig struct {
	BaseURL       string        `yaml:"base_url" json:"base_url"`
	FeedPath      string        `yaml:"feed_path" json:"feed_path"`
	AuthToken     string        `yaml:"auth_token" json:"auth_token"`
	DeviceID      string        `yaml:"device_id" json:"device_id"`
	DeviceHeader  string        `yaml:"device_header" json:"device_header"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
	Cookie        string        `yaml:"cookie" json:"cookie"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	SkipCertCheck bool          `yaml:"skip_cert_check" json:"skip_cert_check"`
}

// ProbeConfig holds batch probing configuration
type ProbeConfig struct {
	URL               string        `yaml:"url" json:"url"`
	StateDir          string        `yaml:"state_dir" json:"state_dir"`
	LedgerBackend     string        `yaml:"ledger_backend" json:"ledger_backend"`
	SQLitePath        string        `yaml:"sqlite_path" json:"sqlite_path"`
	BatchSize         int           `yaml:"batch_size" json:"batch_size"`
	Workers           int           `yaml:"workers" json:"workers"`
	Delay             time.Duration `yaml:"delay" json:"delay"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RejectStatuses    []int         `yaml:"reject_statuses" json:"reject_statuses"`
	UnreachablePolicy string        `yaml:"unreachable_policy" json:"unreachable_policy"`
	MaxBatches        int           `yaml:"max_batches" json:"max_batches"`
}

// CollectConfig holds pagination configuration
type CollectConfig struct {
	MaxPages    int    `yaml:"max_pages" json:"max_pages"`
	UseBrowser  bool   `yaml:"use_browser" json:"use_browser"`
	Headless    bool   `yaml:"headless" json:"headless"`
	BrowserPath string `yaml:"browser_path" json:"browser_path"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	OutputDir    string        `yaml:"output_dir" json:"output_dir"`
	Concurrency  int           `yaml:"concurrency" json:"concurrency"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	ShowProgress bool          `yaml:"show_progress" json:"show_progress"`
}

// RateLimitConfig holds the client-side throttle
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// RetryConfig holds retry configuration for item and page fetches
type RetryConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnAccepted       bool   `yaml:"on_accepted" json:"on_accepted"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			FeedPath:     "remix_feed",
			DeviceHeader: "oai-device-id",
			UserAgent:    DefaultUserAgent,
			Timeout:      30 * time.Second,
		},
		Probe: ProbeConfig{
			StateDir:          ".",
			LedgerBackend:     LedgerFile,
			SQLitePath:        "ledger.db",
			BatchSize:         100,
			Workers:           100,
			Delay:             100 * time.Millisecond,
			Timeout:           30 * time.Second,
			RejectStatuses:    []int{401, 403, 429},
			UnreachablePolicy: UnreachableExhaust,
		},
		Collect: CollectConfig{
			MaxPages: 20,
			Headless: true,
		},
		Download: DownloadConfig{
			OutputDir:    "downloads",
			Concurrency:  1,
			ShowProgress: true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 0, // 0 means no client-side limit
			BurstSize:         1,
		},
		Retry: RetryConfig{
			Enabled:      true,
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnAccepted:       true,
			OnComplete:       true,
			OnError:          true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// Authorization credential, oldest names last
	for _, key := range []string{"CLIPVAULT_AUTH_TOKEN", "HTTP_AUTHORIZATION_HEADER", "SORA_AUTH_TOKEN"} {
		if token := strings.TrimSpace(os.Getenv(key)); token != "" {
			c.API.AuthToken = token
			break
		}
	}
	if baseURL := os.Getenv("CLIPVAULT_API_BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if deviceID := os.Getenv("CLIPVAULT_DEVICE_ID"); deviceID != "" {
		c.API.DeviceID = deviceID
	}
	if userAgent := os.Getenv("CLIPVAULT_USER_AGENT"); userAgent != "" {
		c.API.UserAgent = userAgent
	}
	if probeURL := os.Getenv("CLIPVAULT_PROBE_URL"); probeURL != "" {
		c.Probe.URL = probeURL
	}
	if stateDir := os.Getenv("CLIPVAULT_STATE_DIR"); stateDir != "" {
		c.Probe.StateDir = stateDir
	}
	if backend := os.Getenv("CLIPVAULT_LEDGER_BACKEND"); backend != "" {
		c.Probe.LedgerBackend = strings.ToLower(backend)
	}
	if val, ok := envInt("CLIPVAULT_BATCH_SIZE"); ok && val > 0 {
		c.Probe.BatchSize = val
	}
	if val, ok := envInt("CLIPVAULT_WORKERS"); ok && val > 0 {
		c.Probe.Workers = val
	}
	if delay := os.Getenv("CLIPVAULT_PROBE_DELAY"); delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return fmt.Errorf("invalid CLIPVAULT_PROBE_DELAY: %w", err)
		}
		c.Probe.Delay = d
	}
	if policy := os.Getenv("CLIPVAULT_UNREACHABLE_POLICY"); policy != "" {
		c.Probe.UnreachablePolicy = strings.ToLower(policy)
	}
	if val, ok := envInt("CLIPVAULT_REQUESTS_PER_MINUTE"); ok && val >= 0 {
		c.RateLimit.RequestsPerMinute = val
	}
	if outputDir := os.Getenv("CLIPVAULT_OUTPUT_DIR"); outputDir != "" {
		c.Download.OutputDir = outputDir
	}
	if val, ok := envInt("CLIPVAULT_CONCURRENT_DOWNLOADS"); ok && val > 0 {
		c.Download.Concurrency = val
	}
	if notifEnabled := os.Getenv("CLIPVAULT_NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		c.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}
	if logLevel := os.Getenv("CLIPVAULT_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("CLIPVAULT_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return val, true
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".clipvault.yaml",
		".clipvault.yml",
		filepath.Join(home, ".config", "clipvault", "config.yaml"),
		filepath.Join(home, ".config", "clipvault", "config.yml"),
		filepath.Join(home, ".clipvault.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL != "" {
		if err := validateURL(c.API.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("api base url: %w", err))
		}
	}
	if c.Probe.URL != "" {
		if err := validateURL(c.Probe.URL); err != nil {
			errs = append(errs, fmt.Errorf("probe url: %w", err))
		}
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api timeout must be positive"))
	}

	// Probe settings
	if c.Probe.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if c.Probe.Workers <= 0 {
		errs = append(errs, errors.New("probe workers must be positive"))
	}
	if c.Probe.Delay < 0 {
		errs = append(errs, errors.New("probe delay cannot be negative"))
	}
	if c.Probe.Timeout <= 0 {
		errs = append(errs, errors.New("probe timeout must be positive"))
	}
	if len(c.Probe.RejectStatuses) == 0 {
		errs = append(errs, errors.New("at least one rejection status is required"))
	}
	for _, status := range c.Probe.RejectStatuses {
		if status < 100 || status > 599 {
			errs = append(errs, fmt.Errorf("invalid rejection status: %d", status))
		}
	}
	switch c.Probe.UnreachablePolicy {
	case UnreachableExhaust, UnreachableRetry:
	default:
		errs = append(errs, fmt.Errorf("invalid unreachable policy: %q", c.Probe.UnreachablePolicy))
	}
	switch c.Probe.LedgerBackend {
	case LedgerFile:
	case LedgerSQLite:
		if c.Probe.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite ledger requires sqlite_path"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid ledger backend: %q", c.Probe.LedgerBackend))
	}
	if c.Probe.MaxBatches < 0 {
		errs = append(errs, errors.New("max batches cannot be negative"))
	}

	if c.Collect.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}

	if c.Download.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Download.Concurrency <= 0 {
		errs = append(errs, errors.New("download concurrency must be positive"))
	}
	if c.Download.Concurrency > 10 {
		errs = append(errs, errors.New("download concurrency should not exceed 10"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("retry max attempts cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["auth-token"].(string); ok && v != "" {
		c.API.AuthToken = v
	}
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := flags["device-id"].(string); ok && v != "" {
		c.API.DeviceID = v
	}
	if v, ok := flags["user-agent"].(string); ok && v != "" {
		c.API.UserAgent = v
	}
	if v, ok := flags["cookie"].(string); ok && v != "" {
		c.API.Cookie = v
	}
	if v, ok := flags["skip-cert-check"].(bool); ok {
		c.API.SkipCertCheck = v
	}
	if v, ok := flags["probe-url"].(string); ok && v != "" {
		c.Probe.URL = v
	}
	if v, ok := flags["state-dir"].(string); ok && v != "" {
		c.Probe.StateDir = v
	}
	if v, ok := flags["ledger-backend"].(string); ok && v != "" {
		c.Probe.LedgerBackend = strings.ToLower(v)
	}
	if v, ok := flags["batch-size"].(int); ok && v > 0 {
		c.Probe.BatchSize = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Probe.Workers = v
	}
	if v, ok := flags["delay"].(time.Duration); ok && v >= 0 {
		c.Probe.Delay = v
	}
	if v, ok := flags["reject-statuses"].([]int); ok && len(v) > 0 {
		c.Probe.RejectStatuses = v
	}
	if v, ok := flags["unreachable-policy"].(string); ok && v != "" {
		c.Probe.UnreachablePolicy = strings.ToLower(v)
	}
	if v, ok := flags["max-batches"].(int); ok && v >= 0 {
		c.Probe.MaxBatches = v
	}
	if v, ok := flags["max-pages"].(int); ok && v > 0 {
		c.Collect.MaxPages = v
	}
	if v, ok := flags["browser"].(bool); ok {
		c.Collect.UseBrowser = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Collect.Headless = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Download.OutputDir = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.Concurrency = v
	}
	if v, ok := flags["requests-per-minute"].(int); ok && v >= 0 {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".clipvault.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// BearerToken returns the authorization header value, adding the Bearer
// scheme when the configured token lacks one.
func (a *APIConfig) BearerToken() string {
	token := strings.TrimSpace(a.AuthToken)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(token, "Bearer ") {
		return token
	}
	return "Bearer " + token
}

// Masked returns a copy of the configuration with credentials masked
func (c *Config) Masked() *Config {
	masked := *c
	masked.API.AuthToken = maskString(c.API.AuthToken)
	masked.API.Cookie = maskString(c.API.Cookie)
	return &masked
}

func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
