// Package memory implements the survey archive in process memory.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"echocore/internal/archive"
	"echocore/pkg/survey"
	"echocore/pkg/validate"
)

var _ archive.Store = (*Store)(nil)

// Store holds archived surveys in a map keyed by timestamp. All returned
// records are deep copies, so archived state cannot be mutated through
// the results. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	recs map[string]archive.Record
}

// New returns an empty in-memory archive.
func New() *Store { return &Store{recs: make(map[string]archive.Record)} }

// Driver returns the memory driver identifier.
func (s *Store) Driver() archive.Driver { return archive.DriverMemory }

// Ingest re-runs the survey checks and archives the record. Blocking
// violations and duplicate timestamps are rejected.
func (s *Store) Ingest(_ context.Context, rec archive.Record) error {
	if rec.Survey == nil {
		return fmt.Errorf("archive record has no survey")
	}
	if result := survey.Check(rec.Survey); result.HasBlocking() {
		return validate.RuleViolationError{Result: result}
	}
	key := rec.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.recs[key]; exists {
		return archive.DuplicateError{Timestamp: rec.Survey.Timestamp}
	}
	s.recs[key] = cloneRecord(rec)
	return nil
}

// Get returns the record archived under the timestamp.
func (s *Store) Get(_ context.Context, ts time.Time) (archive.Record, error) {
	s.mu.RLock()
	rec, ok := s.recs[archive.TimeKey(ts)]
	s.mu.RUnlock()
	if !ok {
		return archive.Record{}, archive.NotFoundError{Timestamp: ts}
	}
	return cloneRecord(rec), nil
}

// List returns every record ordered by survey timestamp ascending.
func (s *Store) List(_ context.Context) ([]archive.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(archive.Filter{}), nil
}

// Find returns the records matching the filter, ordered by timestamp.
func (s *Store) Find(_ context.Context, f archive.Filter) ([]archive.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(f), nil
}

// Len reports the number of archived surveys.
func (s *Store) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs), nil
}

func (s *Store) sorted(f archive.Filter) []archive.Record {
	out := make([]archive.Record, 0, len(s.recs))
	for _, rec := range s.recs {
		if f.Matches(rec.Survey) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Survey.Timestamp.Before(out[j].Survey.Timestamp)
	})
	return out
}

// Snapshot is the serializable state used by the persistent backends.
type Snapshot struct {
	Surveys []archive.Record `json:"surveys"`
}

// ExportState returns a snapshot of the archive, ordered by timestamp.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Surveys: s.sorted(archive.Filter{})}
}

// ImportState replaces the archive with the snapshot contents. Records
// were validated when first ingested, so checks do not re-run here.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = make(map[string]archive.Record, len(snap.Surveys))
	for _, rec := range snap.Surveys {
		if rec.Survey == nil {
			continue
		}
		s.recs[rec.Key()] = cloneRecord(rec)
	}
}

func cloneRecord(rec archive.Record) archive.Record {
	if rec.Survey == nil {
		return rec
	}
	doc := *rec.Survey
	doc.PlateBarcode = clonePtr(rec.Survey.PlateBarcode)
	doc.PlateName = clonePtr(rec.Survey.PlateName)
	doc.Comment = clonePtr(rec.Survey.Comment)
	doc.Wells = make([]survey.WellSurvey, len(rec.Survey.Wells))
	for i, w := range rec.Survey.Wells {
		w.Volume = clonePtr(w.Volume)
		w.CurrentVolume = clonePtr(w.CurrentVolume)
		w.Signal.Features = slices.Clone(w.Signal.Features)
		doc.Wells[i] = w
	}
	rec.Survey = &doc
	return rec
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
