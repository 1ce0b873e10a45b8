package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	errs "xscraper/pkg/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	subject     TEXT    NOT NULL,
	captured_at INTEGER NOT NULL,
	count       INTEGER NOT NULL,
	complete    INTEGER NOT NULL,
	payload     TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_subject ON snapshots(subject, captured_at DESC, id DESC);
`

// SQLiteStore keeps generations as rows of a single table
type SQLiteStore struct {
	db   *sql.DB
	keep int
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" is accepted for tests.
func NewSQLiteStore(path string, keep int) (*SQLiteStore, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, errs.Persistence("open snapshot database", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errs.Persistence("create snapshot schema", err)
	}
	return &SQLiteStore{db: db, keep: keep}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

func decodeRow(payload string) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Get returns the newest snapshot for subject
func (s *SQLiteStore) Get(ctx context.Context, subject string) (*Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE subject = ? ORDER BY captured_at DESC, id DESC LIMIT 1`,
		NormalizeSubject(subject),
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence("query snapshot", err)
	}

	snap, err := decodeRow(payload)
	if err != nil {
		return nil, errs.Persistence("read snapshot", err)
	}
	return snap, nil
}

// Put inserts a new generation and prunes old ones when a retention limit is set
func (s *SQLiteStore) Put(ctx context.Context, subject string, snap *Snapshot) error {
	if snap == nil {
		return errs.Persistence("write snapshot", fmt.Errorf("nil snapshot"))
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return errs.Persistence("encode snapshot", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Persistence("begin transaction", err)
	}
	defer tx.Rollback()

	key := NormalizeSubject(subject)
	complete := 0
	if snap.Complete {
		complete = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (subject, captured_at, count, complete, payload) VALUES (?, ?, ?, ?, ?)`,
		key, snap.CapturedAt.UnixNano(), snap.Count, complete, string(payload),
	); err != nil {
		return errs.Persistence("insert snapshot", err)
	}

	if s.keep > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM snapshots WHERE subject = ? AND id NOT IN (
				SELECT id FROM snapshots WHERE subject = ? ORDER BY captured_at DESC, id DESC LIMIT ?
			)`,
			key, key, s.keep,
		); err != nil {
			return errs.Persistence("prune snapshots", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Persistence("commit snapshot", err)
	}
	return nil
}

// History returns generations newest first
func (s *SQLiteStore) History(ctx context.Context, subject string, limit int) ([]*Snapshot, error) {
	query := `SELECT payload FROM snapshots WHERE subject = ? ORDER BY captured_at DESC, id DESC`
	args := []any{NormalizeSubject(subject)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Persistence("query history", err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errs.Persistence("scan history", err)
		}
		snap, err := decodeRow(payload)
		if err != nil {
			return nil, errs.Persistence("read snapshot", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence("iterate history", err)
	}
	return out, nil
}

// Subjects lists every stored subject with its newest capture time
func (s *SQLiteStore) Subjects(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT subject, MAX(captured_at) FROM snapshots GROUP BY subject`)
	if err != nil {
		return nil, errs.Persistence("query subjects", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var subject string
		var nanos int64
		if err := rows.Scan(&subject, &nanos); err != nil {
			return nil, errs.Persistence("scan subjects", err)
		}
		out[subject] = time.Unix(0, nanos).UTC()
	}
	return out, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
