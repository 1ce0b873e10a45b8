package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"xscraper/internal/fsutil"
	errs "xscraper/pkg/errors"
)

// FileStore keeps one JSON file per generation under <dir>/<subject>/
type FileStore struct {
	dir  string
	keep int
	mu   sync.Mutex
}

// NewFileStore creates a file store rooted at dir. keep > 0 prunes older generations.
func NewFileStore(dir string, keep int) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Persistence("create snapshot directory", err)
	}
	return &FileStore{dir: dir, keep: keep}, nil
}

func (s *FileStore) subjectDir(subject string) string {
	return filepath.Join(s.dir, fsutil.SafeName(NormalizeSubject(subject)))
}

// generations lists snapshot files of a subject, newest first
func (s *FileStore) generations(subject string) ([]string, error) {
	entries, err := os.ReadDir(s.subjectDir(subject))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func (s *FileStore) read(subject, name string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.subjectDir(subject), name))
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return &snap, nil
}

// Get returns the newest snapshot for subject
func (s *FileStore) Get(ctx context.Context, subject string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.generations(subject)
	if err != nil {
		return nil, errs.Persistence("list snapshots", err)
	}
	if len(names) == 0 {
		return nil, nil
	}
	snap, err := s.read(subject, names[0])
	if err != nil {
		return nil, errs.Persistence("read snapshot", err)
	}
	return snap, nil
}

// Put writes a new generation
func (s *FileStore) Put(ctx context.Context, subject string, snap *Snapshot) error {
	if snap == nil {
		return errs.Persistence("write snapshot", fmt.Errorf("nil snapshot"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.subjectDir(subject)
	stamp := snap.CapturedAt.UnixNano()
	path := filepath.Join(dir, fmt.Sprintf("%020d.json", stamp))
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		stamp++
		path = filepath.Join(dir, fmt.Sprintf("%020d.json", stamp))
	}

	err := fsutil.WriteFileAtomic(path, 0644, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(snap)
	})
	if err != nil {
		return errs.Persistence("write snapshot", err)
	}

	if s.keep > 0 {
		names, err := s.generations(subject)
		if err != nil {
			return errs.Persistence("list snapshots", err)
		}
		for _, name := range names[min(s.keep, len(names)):] {
			if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
				return errs.Persistence("prune snapshot", err)
			}
		}
	}
	return nil
}

// History returns generations newest first
func (s *FileStore) History(ctx context.Context, subject string, limit int) ([]*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.generations(subject)
	if err != nil {
		return nil, errs.Persistence("list snapshots", err)
	}
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	out := make([]*Snapshot, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := s.read(subject, name)
		if err != nil {
			return nil, errs.Persistence("read snapshot", err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// Close is a no-op for the file store
func (s *FileStore) Close() error { return nil }
