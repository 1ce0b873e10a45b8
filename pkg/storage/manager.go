package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"xscraper/internal/fsutil"
)

// Manager is the media directory of one subject. A file counts as present
// only when it is non-empty, so truncated leftovers are fetched again.
type Manager struct {
	dir   string
	mu    sync.RWMutex
	sizes map[string]int64
}

// NewManager creates dir if needed and indexes the files already in it
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to index media directory: %w", err)
	}

	m := &Manager{dir: dir, sizes: make(map[string]int64, len(entries))}
	for _, entry := range entries {
		if entry.IsDir() || hidden(entry.Name()) {
			continue
		}
		if info, err := entry.Info(); err == nil && info.Size() > 0 {
			m.sizes[entry.Name()] = info.Size()
		}
	}
	return m, nil
}

func hidden(name string) bool { return strings.HasPrefix(name, ".") }

// IsDownloaded reports whether name is on disk, including files written by
// another process since the index was built
func (m *Manager) IsDownloaded(name string) bool {
	m.mu.RLock()
	_, ok := m.sizes[name]
	m.mu.RUnlock()
	if ok {
		return true
	}

	info, err := os.Stat(filepath.Join(m.dir, name))
	if err != nil || info.IsDir() || info.Size() == 0 {
		return false
	}
	m.remember(name, info.Size())
	return true
}

// SaveMedia streams r into dir/name through a temp file
func (m *Manager) SaveMedia(r io.Reader, name string) error {
	if name == "" || name != filepath.Base(name) || hidden(name) {
		return fmt.Errorf("invalid media file name %q", name)
	}

	var written int64
	err := fsutil.WriteFileAtomic(filepath.Join(m.dir, name), 0644, func(w io.Writer) error {
		n, err := io.Copy(w, r)
		written = n
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if written > 0 {
		m.remember(name, written)
	}
	return nil
}

func (m *Manager) remember(name string, size int64) {
	m.mu.Lock()
	m.sizes[name] = size
	m.mu.Unlock()
}

// Dir is the media directory
func (m *Manager) Dir() string { return m.dir }

// Stats returns the number and total size of the indexed files
func (m *Manager) Stats() (files int, bytes int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, size := range m.sizes {
		bytes += size
	}
	return len(m.sizes), bytes
}
