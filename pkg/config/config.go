package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the scraper
type Config struct {
	// Session cookies of the logged-in account driving the browser
	Account AccountConfig `yaml:"account" json:"account"`

	// Browser automation settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Incremental collection settings
	Collector CollectorConfig `yaml:"collector" json:"collector"`

	// Snapshot persistence
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Export settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Media download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Follow/unfollow action settings
	Actions ActionsConfig `yaml:"actions" json:"actions"`

	// Retry configuration
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// AccountConfig holds the session cookies of the account used for browsing
type AccountConfig struct {
	Username  string `yaml:"username" json:"username"`
	AuthToken string `yaml:"auth_token" json:"auth_token"`
	CSRFToken string `yaml:"csrf_token" json:"csrf_token"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// BrowserConfig holds browser automation configuration
type BrowserConfig struct {
	Headless     bool          `yaml:"headless" json:"headless"`
	ChromePath   string        `yaml:"chrome_path" json:"chrome_path"`
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	PageTimeout  time.Duration `yaml:"page_timeout" json:"page_timeout"`
	WaitTimeout  time.Duration `yaml:"wait_timeout" json:"wait_timeout"`
	WindowWidth  int           `yaml:"window_width" json:"window_width"`
	WindowHeight int           `yaml:"window_height" json:"window_height"`
}

// CollectorConfig holds the scroll-scrape-dedupe loop configuration
type CollectorConfig struct {
	// RetryCeiling is the number of consecutive iterations without new records before stopping
	RetryCeiling    int           `yaml:"retry_ceiling" json:"retry_ceiling"`
	MaxIterations   int           `yaml:"max_iterations" json:"max_iterations"`
	TargetCount     int           `yaml:"target_count" json:"target_count"`
	Delay           time.Duration `yaml:"delay" json:"delay"`
	DelayJitter     time.Duration `yaml:"delay_jitter" json:"delay_jitter"`
	CheckpointEvery int           `yaml:"checkpoint_every" json:"checkpoint_every"`
}

// StorageConfig selects and configures the snapshot store
type StorageConfig struct {
	Backend         string `yaml:"backend" json:"backend"`
	Directory       string `yaml:"directory" json:"directory"`
	SQLitePath      string `yaml:"sqlite_path" json:"sqlite_path"`
	RedisAddr       string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword   string `yaml:"redis_password" json:"redis_password"`
	RedisDB         int    `yaml:"redis_db" json:"redis_db"`
	KeepGenerations int    `yaml:"keep_generations" json:"keep_generations"`
}

// OutputConfig holds export configuration
type OutputConfig struct {
	BaseDirectory string   `yaml:"base_directory" json:"base_directory"`
	Format        string   `yaml:"format" json:"format"`
	Columns       []string `yaml:"columns" json:"columns"`
	ListSeparator string   `yaml:"list_separator" json:"list_separator"`
	PrettyJSON    bool     `yaml:"pretty_json" json:"pretty_json"`
	ExportDelta   bool     `yaml:"export_delta" json:"export_delta"`
}

// DownloadConfig holds media download configuration
type DownloadConfig struct {
	Enabled             bool          `yaml:"enabled" json:"enabled"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	MaxFileSize         int64         `yaml:"max_file_size" json:"max_file_size"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// ActionsConfig holds follow/unfollow pacing configuration
type ActionsConfig struct {
	MaxPerHour  int           `yaml:"max_per_hour" json:"max_per_hour"`
	Delay       time.Duration `yaml:"delay" json:"delay"`
	DelayJitter time.Duration `yaml:"delay_jitter" json:"delay_jitter"`
	DryRun      bool          `yaml:"dry_run" json:"dry_run"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	OnChange         bool   `yaml:"on_change" json:"on_change"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// Format of stderr output: console or json. The file is always JSON.
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// Storage backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Account: AccountConfig{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		},
		Browser: BrowserConfig{
			Headless:     true,
			BaseURL:      "https://x.com",
			PageTimeout:  10 * time.Minute,
			WaitTimeout:  30 * time.Second,
			WindowWidth:  1280,
			WindowHeight: 2000,
		},
		Collector: CollectorConfig{
			RetryCeiling:    3,
			MaxIterations:   500,
			TargetCount:     0,
			Delay:           1500 * time.Millisecond,
			DelayJitter:     1 * time.Second,
			CheckpointEvery: 10,
		},
		Storage: StorageConfig{
			Backend:         BackendFile,
			Directory:       "",
			SQLitePath:      "",
			RedisAddr:       "localhost:6379",
			KeepGenerations: 0,
		},
		Output: OutputConfig{
			BaseDirectory: "./exports",
			Format:        "json",
			ListSeparator: "|",
			PrettyJSON:    true,
			ExportDelta:   true,
		},
		Download: DownloadConfig{
			Enabled:             false,
			ConcurrentDownloads: 3,
			DownloadTimeout:     30 * time.Second,
			MaxFileSize:         0, // 0 means no limit
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Actions: ActionsConfig{
			MaxPerHour:  30,
			Delay:       5 * time.Second,
			DelayJitter: 5 * time.Second,
			DryRun:      false,
		},
		Retry: RetryConfig{
			Enabled:      true,
			MaxAttempts:  3,
			BaseDelay:    1 * time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnComplete:       true,
			OnError:          true,
			OnChange:         true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// Account cookies
	if authToken := os.Getenv("XSCRAPER_AUTH_TOKEN"); authToken != "" {
		c.Account.AuthToken = authToken
	}
	if csrfToken := os.Getenv("XSCRAPER_CSRF_TOKEN"); csrfToken != "" {
		c.Account.CSRFToken = csrfToken
	}
	if userAgent := os.Getenv("XSCRAPER_USER_AGENT"); userAgent != "" {
		c.Account.UserAgent = userAgent
	}

	// Browser
	if chromePath := os.Getenv("XSCRAPER_CHROME_PATH"); chromePath != "" {
		c.Browser.ChromePath = chromePath
	}
	if headless := os.Getenv("XSCRAPER_HEADLESS"); headless != "" {
		c.Browser.Headless = strings.ToLower(headless) == "true"
	}

	// Collector
	if ceiling := os.Getenv("XSCRAPER_RETRY_CEILING"); ceiling != "" {
		if val, err := strconv.Atoi(ceiling); err == nil && val > 0 {
			c.Collector.RetryCeiling = val
		}
	}

	// Storage
	if backend := os.Getenv("XSCRAPER_STORE"); backend != "" {
		c.Storage.Backend = strings.ToLower(backend)
	}
	if sqlitePath := os.Getenv("XSCRAPER_SQLITE_PATH"); sqlitePath != "" {
		c.Storage.SQLitePath = sqlitePath
	}
	if redisAddr := os.Getenv("XSCRAPER_REDIS_ADDR"); redisAddr != "" {
		c.Storage.RedisAddr = redisAddr
	}
	if redisPassword := os.Getenv("XSCRAPER_REDIS_PASSWORD"); redisPassword != "" {
		c.Storage.RedisPassword = redisPassword
	}

	// Output
	if outputDir := os.Getenv("XSCRAPER_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if format := os.Getenv("XSCRAPER_FORMAT"); format != "" {
		c.Output.Format = strings.ToLower(format)
	}

	// Rate limiting
	if rpm := os.Getenv("XSCRAPER_REQUESTS_PER_MINUTE"); rpm != "" {
		if val, err := strconv.Atoi(rpm); err == nil && val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	// Notifications
	if notifEnabled := os.Getenv("XSCRAPER_NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		c.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}

	// Logging level
	if logLevel := os.Getenv("XSCRAPER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("XSCRAPER_LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	return nil
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

// FindConfigFile returns the first config file found in the standard locations, or ""
func FindConfigFile() string {
	return (&Config{}).findConfigFile()
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".xscraper.yaml",
		".xscraper.yml",
		filepath.Join(home, ".config", "xscraper", "config.yaml"),
		filepath.Join(home, ".config", "xscraper", "config.yml"),
		filepath.Join(home, ".xscraper.yaml"),
		filepath.Join(home, ".xscraper.yml"),
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

	// Collector
	if c.Collector.RetryCeiling <= 0 {
		errs = append(errs, errors.New("retry ceiling must be positive"))
	}
	if c.Collector.MaxIterations < 0 {
		errs = append(errs, errors.New("max iterations cannot be negative"))
	}
	if c.Collector.TargetCount < 0 {
		errs = append(errs, errors.New("target count cannot be negative"))
	}
	if c.Collector.Delay < 0 || c.Collector.DelayJitter < 0 {
		errs = append(errs, errors.New("collector delays cannot be negative"))
	}

	// Storage
	switch strings.ToLower(c.Storage.Backend) {
	case BackendFile, BackendSQLite:
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("redis address is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage backend %q", c.Storage.Backend))
	}
	if c.Storage.KeepGenerations < 0 {
		errs = append(errs, errors.New("keep generations cannot be negative"))
	}

	// Output
	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	switch strings.ToLower(c.Output.Format) {
	case "json", "csv":
	default:
		errs = append(errs, fmt.Errorf("invalid output format %q", c.Output.Format))
	}

	// Rate limiting
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	// Downloads
	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	// Actions
	if c.Actions.MaxPerHour <= 0 {
		errs = append(errs, errors.New("actions per hour must be positive"))
	}

	// Retry
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}

	// Logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, errors.New("log format must be console or json"))
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

// HasCredentials reports whether browser session cookies are configured
func (c *Config) HasCredentials() bool {
	return c.Account.AuthToken != "" && c.Account.CSRFToken != "" &&
		c.Account.AuthToken != "YOUR_AUTH_TOKEN" && c.Account.CSRFToken != "YOUR_CSRF_TOKEN"
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

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if format, ok := flags["format"].(string); ok && format != "" {
		c.Output.Format = strings.ToLower(format)
	}
	if limit, ok := flags["limit"].(int); ok && limit > 0 {
		c.Collector.TargetCount = limit
	}
	if ceiling, ok := flags["retry-ceiling"].(int); ok && ceiling > 0 {
		c.Collector.RetryCeiling = ceiling
	}
	if maxIter, ok := flags["max-iterations"].(int); ok && maxIter > 0 {
		c.Collector.MaxIterations = maxIter
	}
	if store, ok := flags["store"].(string); ok && store != "" {
		c.Storage.Backend = strings.ToLower(store)
	}
	if concurrent, ok := flags["concurrent-downloads"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if download, ok := flags["download-media"].(bool); ok {
		c.Download.Enabled = download
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if dryRun, ok := flags["dry-run"].(bool); ok {
		c.Actions.DryRun = dryRun
	}
	if enabled, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = enabled
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".xscraper.env"))

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
