package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"xscraper/internal/fsutil"
	"xscraper/pkg/logger"
	"xscraper/pkg/record"
)

// Version is the file format written by this package
const Version = 1

const backupSuffix = ".backup"

// Checkpoint is the state of an interrupted collection
type Checkpoint struct {
	Version         int               `json:"version"`
	Subject         string            `json:"subject"`
	Surface         string            `json:"surface"`
	Iterations      int               `json:"iterations"`
	Records         []record.Record   `json:"records"`
	DownloadedMedia map[string]string `json:"downloaded_media"` // url -> file name
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// IsMediaDownloaded reports whether url was saved by an earlier attempt
func (c *Checkpoint) IsMediaDownloaded(url string) bool {
	_, ok := c.DownloadedMedia[url]
	return ok
}

// Summary describes a stored checkpoint without its records
type Summary struct {
	Subject    string
	Surface    string
	Records    int
	Iterations int
	MediaFiles int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Age is the time since the checkpoint was last written
func (s Summary) Age() time.Duration { return time.Since(s.UpdatedAt) }

// Manager owns the checkpoint file of one subject. Writes are serialized.
type Manager struct {
	path string
	log  logger.Logger
	mu   sync.Mutex
}

// NewManager keeps the checkpoint of subject at dir/<subject>.checkpoint.json
func NewManager(dir, subject string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		path: filepath.Join(dir, fsutil.SafeName(subject)+".checkpoint.json"),
		log:  log.WithField("subject", subject),
	}, nil
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) Exists() bool {
	info, err := os.Stat(m.path)
	return err == nil && info.Mode().IsRegular()
}

// Create starts an empty checkpoint and writes it
func (m *Manager) Create(subject, surface string) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		Version:         Version,
		Subject:         subject,
		Surface:         surface,
		Records:         []record.Record{},
		DownloadedMedia: map[string]string{},
		CreatedAt:       now,
	}
	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}
	m.log.InfoWithFields("Checkpoint created", map[string]interface{}{"path": m.path})
	return cp, nil
}

// Load returns nil, nil when there is no checkpoint
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version != Version {
		return nil, fmt.Errorf("unsupported checkpoint version %d (want %d)", cp.Version, Version)
	}
	if cp.DownloadedMedia == nil {
		cp.DownloadedMedia = map[string]string{}
	}

	m.log.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"records":    len(cp.Records),
		"iterations": cp.Iterations,
		"updated_at": cp.UpdatedAt,
	})
	return &cp, nil
}

// Info summarizes the stored checkpoint, or returns nil when there is none
func (m *Manager) Info() (*Summary, error) {
	cp, err := m.Load()
	if cp == nil || err != nil {
		return nil, err
	}
	return &Summary{
		Subject:    cp.Subject,
		Surface:    cp.Surface,
		Records:    len(cp.Records),
		Iterations: cp.Iterations,
		MediaFiles: len(cp.DownloadedMedia),
		CreatedAt:  cp.CreatedAt,
		UpdatedAt:  cp.UpdatedAt,
	}, nil
}

// Save stamps and atomically rewrites the checkpoint
func (m *Manager) Save(cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(cp)
}

func (m *Manager) save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()
	err := fsutil.WriteFileAtomic(m.path, 0644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cp); err != nil {
			return fmt.Errorf("failed to encode checkpoint: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.log.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"records":    len(cp.Records),
		"iterations": cp.Iterations,
	})
	return nil
}

// UpdateProgress replaces the collected records and saves
func (m *Manager) UpdateProgress(cp *Checkpoint, records []record.Record, iterations int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp.Records = records
	cp.Iterations = iterations
	return m.save(cp)
}

// RecordDownload remembers a saved media file and saves
func (m *Manager) RecordDownload(cp *Checkpoint, url, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp.DownloadedMedia[url] = filename
	return m.save(cp)
}

// Backup moves the checkpoint aside to <path>.backup, replacing an older
// backup. It is a no-op without a checkpoint.
func (m *Manager) Backup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := os.Rename(m.path, m.path+backupSuffix)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to back up checkpoint: %w", err)
	}
	if err == nil {
		m.log.Debug("Checkpoint moved to backup")
	}
	return nil
}

// Delete removes the checkpoint; a missing file is not an error
func (m *Manager) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.log.Debug("Checkpoint deleted")
	return nil
}
