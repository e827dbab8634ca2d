// Package sqlite persists the survey archive to a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"echocore/internal/archive"
	"echocore/internal/infra/archive/memory"
)

var _ archive.Store = (*Store)(nil)

// Store keeps the archive in memory and mirrors every ingested survey to
// a SQLite table, one row per survey keyed by its timestamp. Reads are
// served from memory; the table exists to survive restarts.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// New opens the archive database at path, creating it if needed, and
// loads any previously archived surveys.
func New(path string) (*Store, error) {
	if path == "" {
		path = "echocore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS surveys (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create surveys table: %w", err)
	}
	s := &Store{Store: memory.New(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Driver returns the sqlite driver identifier.
func (s *Store) Driver() archive.Driver { return archive.DriverSQLite }

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT payload FROM surveys`)
	if err != nil {
		return fmt.Errorf("select surveys: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var snap memory.Snapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		var rec archive.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("decode survey: %w", err)
		}
		snap.Surveys = append(snap.Surveys, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read surveys: %w", err)
	}
	s.ImportState(snap)
	return nil
}

// Ingest archives the record in memory, then mirrors the new row to
// SQLite. Ingest is the only mutation, so persisting just the ingested
// record keeps the table in step with memory.
func (s *Store) Ingest(ctx context.Context, rec archive.Record) error {
	if err := s.Store.Ingest(ctx, rec); err != nil {
		return err
	}
	return s.persist(ctx, rec)
}

func (s *Store) persist(ctx context.Context, rec archive.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode survey: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO surveys(key,payload) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET payload=excluded.payload`,
		rec.Key(), payload); err != nil {
		return fmt.Errorf("upsert survey %s: %w", rec.Key(), err)
	}
	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
