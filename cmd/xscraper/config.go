package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"xscraper/pkg/config"
	"xscraper/pkg/export"
	"xscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage xscraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (XSCRAPER_*)
  - .env files (./.env, ~/.xscraper.env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.xscraper.yaml'
unless a different path is specified with the --config flag.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration including values from all sources.

Session cookies and the Redis password are masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value types and ranges
  - Output, storage and log paths
  - Whether session cookies are configured`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# xscraper configuration
#
# Every option can also be set with an environment variable prefixed with
# XSCRAPER_, for example XSCRAPER_AUTH_TOKEN or XSCRAPER_STORE.

# Session cookies of the logged in X account.
# Prefer 'xscraper auth login', which keeps them out of this file.
account:
  username: ""
  auth_token: "YOUR_AUTH_TOKEN"
  csrf_token: "YOUR_CSRF_TOKEN"
  user_agent: ""

browser:
  headless: true
  # Leave empty to let chromedp find Chrome
  chrome_path: ""
  base_url: "https://x.com"
  page_timeout: 10m
  wait_timeout: 30s
  window_width: 1280
  window_height: 2000

collector:
  # Scrolls without a new record before the page counts as exhausted
  retry_ceiling: 3
  # Hard cap on scrolls; 0 disables it
  max_iterations: 500
  # Stop after this many records; 0 collects until exhausted
  target_count: 0
  delay: 1500ms
  delay_jitter: 1s
  # Save a checkpoint every N scrolls
  checkpoint_every: 10

storage:
  # file, sqlite or redis
  backend: "file"
  # Defaults to the per-user data directory
  directory: ""
  sqlite_path: ""
  redis_addr: "localhost:6379"
  redis_password: ""
  redis_db: 0
  # Generations kept per subject; 0 keeps all
  keep_generations: 0

output:
  base_directory: "./exports"
  # json or csv
  format: "json"
  # CSV columns; empty uses the defaults of the surface
  columns: []
  list_separator: "|"
  pretty_json: true
  # Write a <subject>_delta file next to each export
  export_delta: true

download:
  enabled: false
  concurrent_downloads: 3
  download_timeout: 30s
  # Bytes; 0 means no limit
  max_file_size: 0

rate_limit:
  requests_per_minute: 60
  burst_size: 10

actions:
  max_per_hour: 30
  delay: 5s
  delay_jitter: 5s
  dry_run: false

retry:
  enabled: true
  max_attempts: 3
  base_delay: 1s
  max_delay: 60s
  multiplier: 2.0
  jitter_factor: 0.1

notifications:
  enabled: true
  on_complete: true
  on_error: true
  on_change: true
  # terminal, desktop or none
  notification_type: "terminal"

logging:
  # debug, info, warn or error
  level: "info"
  # console or json (stderr only; the file is always JSON)
  format: "console"
  # Also log to this file
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".xscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s (remove it first to start over)", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	out := cmd.OutOrStderr()
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Run 'xscraper auth login' to store your X session")
	fmt.Fprintln(out, "2. Run 'xscraper config validate' to check the configuration")
	fmt.Fprintln(out, "3. Start collecting with 'xscraper scrape <handle>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	data, err := yaml.Marshal(maskedConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none found)"
	}
	ui.PrintInfo("Configuration file", source)
	return nil
}

// maskedConfig returns a copy of cfg with secrets masked for display
func maskedConfig(cfg *config.Config) *config.Config {
	masked := *cfg
	masked.Account.AuthToken = maskSecret(cfg.Account.AuthToken)
	masked.Account.CSRFToken = maskSecret(cfg.Account.CSRFToken)
	masked.Storage.RedisPassword = maskSecret(cfg.Storage.RedisPassword)
	return &masked
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) > 8:
		return s[:4] + "..." + s[len(s)-4:]
	default:
		return "***"
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return errors.New("no configuration file found, specify one with --config")
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}

	problems, warnings := checkConfig(cfg)

	out := cmd.OutOrStderr()
	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
		return errors.New("configuration is invalid")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
		fmt.Fprintln(out)
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(out, "\nConfiguration summary:")
	fmt.Fprintf(out, "  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Fprintf(out, "  Export format: %s\n", cfg.Output.Format)
	fmt.Fprintf(out, "  Snapshot store: %s\n", cfg.Storage.Backend)
	fmt.Fprintf(out, "  Retry ceiling: %d\n", cfg.Collector.RetryCeiling)
	fmt.Fprintf(out, "  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Fprintf(out, "  Actions per hour: %d\n", cfg.Actions.MaxPerHour)
	fmt.Fprintf(out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}

// checkConfig runs the checks Validate cannot: paths and credentials
func checkConfig(cfg *config.Config) (problems, warnings []string) {
	if !cfg.HasCredentials() {
		warnings = append(warnings, "X session cookies not configured here; 'xscraper auth login' or XSCRAPER_AUTH_TOKEN can supply them")
	}
	if cfg.Account.AuthToken != "" && !authTokenPattern.MatchString(cfg.Account.AuthToken) && cfg.Account.AuthToken != "YOUR_AUTH_TOKEN" {
		warnings = append(warnings, "account.auth_token does not look like an X auth_token")
	}

	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	switch strings.ToLower(cfg.Storage.Backend) {
	case config.BackendFile, "":
		if dir, err := cfg.SnapshotDir(); err != nil {
			problems = append(problems, fmt.Sprintf("cannot resolve snapshot directory: %v", err))
		} else if err := os.MkdirAll(dir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create snapshot directory: %v", err))
		}
	case config.BackendSQLite:
		if path, err := cfg.SQLitePath(); err != nil {
			problems = append(problems, fmt.Sprintf("cannot resolve sqlite path: %v", err))
		} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create sqlite directory: %v", err))
		}
	}

	for _, col := range cfg.Output.Columns {
		if col == export.ChangeColumn {
			problems = append(problems, fmt.Sprintf("output.columns cannot contain the reserved %q column", export.ChangeColumn))
		}
	}

	if cfg.Collector.MaxIterations == 0 && cfg.Collector.TargetCount == 0 {
		warnings = append(warnings, "neither collector.max_iterations nor collector.target_count is set; runs stop only when the page is exhausted")
	}
	return problems, warnings
}
