package snapshot

import (
	"context"
	"fmt"
	"strings"

	"xscraper/pkg/config"
	"xscraper/pkg/logger"
)

// Store persists snapshot generations per subject.
// Put adds a generation and never replaces earlier ones unless the store
// was opened with a retention limit.
type Store interface {
	// Get returns the newest snapshot for subject, or nil when none exists
	Get(ctx context.Context, subject string) (*Snapshot, error)
	Put(ctx context.Context, subject string, snap *Snapshot) error
	// History returns up to limit generations, newest first; limit 0 returns all
	History(ctx context.Context, subject string, limit int) ([]*Snapshot, error)
	Close() error
}

// Open creates the store selected by the storage section of the config
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (Store, error) {
	log = logger.OrNop(log)
	keep := cfg.Storage.KeepGenerations

	switch strings.ToLower(cfg.Storage.Backend) {
	case config.BackendFile, "":
		dir, err := cfg.SnapshotDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve snapshot directory: %w", err)
		}
		log.WithField("directory", dir).Debug("Using file snapshot store")
		return NewFileStore(dir, keep)
	case config.BackendSQLite:
		path, err := cfg.SQLitePath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sqlite path: %w", err)
		}
		log.WithField("path", path).Debug("Using sqlite snapshot store")
		return NewSQLiteStore(path, keep)
	case config.BackendRedis:
		log.WithField("addr", cfg.Storage.RedisAddr).Debug("Using redis snapshot store")
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
			Keep:     keep,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
