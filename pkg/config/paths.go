package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// EnvDataDir overrides the data directory on every platform
const EnvDataDir = "XSCRAPER_DATA_DIR"

const appDirName = "xscraper"

// dataBase returns the platform's per-user data root: ~/Library/Application
// Support on macOS, %APPDATA% on Windows, $XDG_DATA_HOME or ~/.local/share
// elsewhere.
func dataBase() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return appData, nil
		}
		return "", errors.New("APPDATA is not set")
	case "darwin":
		home, err := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support"), err
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	return filepath.Join(home, ".local", "share"), err
}

// DataDir is where snapshots, the sqlite database and checkpoints live by
// default. It is created on first use.
func DataDir() (string, error) {
	dir := os.Getenv(EnvDataDir)
	if dir == "" {
		base, err := dataBase()
		if err != nil {
			return "", fmt.Errorf("cannot locate data directory: %w", err)
		}
		dir = filepath.Join(base, appDirName)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// inDataDir returns configured when set, otherwise name under DataDir
func inDataDir(configured, name string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// SnapshotDir resolves the directory used by the file snapshot store
func (c *Config) SnapshotDir() (string, error) {
	return inDataDir(c.Storage.Directory, "snapshots")
}

// SQLitePath resolves the database file used by the sqlite snapshot store
func (c *Config) SQLitePath() (string, error) {
	return inDataDir(c.Storage.SQLitePath, "snapshots.db")
}

// CheckpointDir resolves the directory holding in-progress collection checkpoints
func (c *Config) CheckpointDir() (string, error) {
	return inDataDir("", "checkpoints")
}
