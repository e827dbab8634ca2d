// Package archive defines the survey archive contract: an ordered
// collection of parsed plate surveys keyed by survey timestamp, with
// filtering over the plate identity fields.
package archive

import (
	"context"
	"fmt"
	"time"

	"echocore/pkg/survey"
)

// Driver identifies a concrete archive backend.
type Driver string

const (
	// DriverMemory keeps the archive in process memory (tests, ephemeral).
	DriverMemory Driver = "memory"
	// DriverSQLite persists the archive to an embedded SQLite file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres persists the archive to a PostgreSQL server.
	DriverPostgres Driver = "postgres"
)

// Record is one archived survey with its ingest bookkeeping.
type Record struct {
	Survey     *survey.EchoPlateSurvey `json:"survey"`
	IngestedAt time.Time               `json:"ingested_at"`
	Source     string                  `json:"source,omitempty"`  // file path or blob key the XML came from
	RawKey     string                  `json:"raw_key,omitempty"` // blob key of the archived raw XML
}

// Key returns the canonical archive key for the record.
func (r Record) Key() string {
	if r.Survey == nil {
		return ""
	}
	return TimeKey(r.Survey.Timestamp)
}

// TimeKey formats a survey timestamp as the canonical archive key.
func TimeKey(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

// Filter selects surveys by exact match on the plate identity fields.
// Empty fields match everything.
type Filter struct {
	PlateName string `json:"plate_name,omitempty"`
	PlateType string `json:"plate_type,omitempty"`
	Barcode   string `json:"barcode,omitempty"`
}

// Matches reports whether the survey satisfies every set filter field.
func (f Filter) Matches(s *survey.EchoPlateSurvey) bool {
	if s == nil {
		return false
	}
	if f.PlateType != "" && s.PlateType != f.PlateType {
		return false
	}
	if f.PlateName != "" && (s.PlateName == nil || *s.PlateName != f.PlateName) {
		return false
	}
	if f.Barcode != "" && (s.PlateBarcode == nil || *s.PlateBarcode != f.Barcode) {
		return false
	}
	return true
}

// NotFoundError reports a lookup for a timestamp the archive does not hold.
type NotFoundError struct {
	Timestamp time.Time
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("survey %s not found", TimeKey(e.Timestamp))
}

// DuplicateError reports an ingest whose timestamp is already archived.
type DuplicateError struct {
	Timestamp time.Time
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("survey %s already archived", TimeKey(e.Timestamp))
}

// Store is the archive contract. Ingest re-runs the survey checks and
// rejects documents with blocking violations; implementations return
// copies so callers cannot mutate archived state. List and Find order
// records by survey timestamp ascending.
type Store interface {
	Ingest(ctx context.Context, rec Record) error
	Get(ctx context.Context, ts time.Time) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Find(ctx context.Context, f Filter) ([]Record, error)
	Len(ctx context.Context) (int, error)
	Driver() Driver
}
