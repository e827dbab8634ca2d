// Package postgres provides a Postgres-backed survey archive that mirrors
// the in-memory semantics while keeping one JSONB row per survey.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"echocore/internal/archive"
	"echocore/internal/infra/archive/memory"
)

var _ archive.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenArchiveStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/echocore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists surveys to Postgres while serving reads from the
// embedded in-memory archive.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// New opens a Postgres-backed archive using the provided DSN (falls back
// to defaultDSN). It ensures the surveys table exists and hydrates the
// in-memory archive from any existing rows.
func New(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureSurveysTable(ctx, db); err != nil {
		return nil, err
	}
	snap, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.New()
	mem.ImportState(snap)
	return &Store{Store: mem, db: db}, nil
}

// Driver returns the postgres driver identifier.
func (s *Store) Driver() archive.Driver { return archive.DriverPostgres }

// Ingest archives the record in memory, then mirrors the new row to
// Postgres. Ingest is the only mutation, so upserting the single record
// keeps the table in step with memory.
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
		`INSERT INTO surveys(key,payload) VALUES($1,$2) ON CONFLICT(key) DO UPDATE SET payload=EXCLUDED.payload`,
		rec.Key(), payload); err != nil {
		return fmt.Errorf("upsert survey %s: %w", rec.Key(), err)
	}
	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func ensureSurveysTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS surveys (
		key TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure surveys table: %w", err)
	}
	return nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, payload FROM surveys`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select surveys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snap memory.Snapshot
	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan surveys: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		var rec archive.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return memory.Snapshot{}, fmt.Errorf("decode survey %s: %w", key, err)
		}
		snap.Surveys = append(snap.Surveys, rec)
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate surveys: %w", err)
	}
	return snap, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
