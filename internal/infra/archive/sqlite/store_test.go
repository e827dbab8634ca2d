package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"echocore/internal/archive"
	"echocore/pkg/survey"
	"echocore/pkg/validate"
)

func sampleSurvey(ts time.Time, plateType string) *survey.EchoPlateSurvey {
	barcode := "BC-" + plateType
	vol := 12.25
	return &survey.EchoPlateSurvey{
		PlateType:         plateType,
		PlateBarcode:      &barcode,
		Timestamp:         ts,
		SerialNumber:      "E5XX-1234",
		DataFormatVersion: 1,
		SurveyRows:        1,
		SurveyColumns:     1,
		SurveyTotalWells:  1,
		Wells: []survey.WellSurvey{{
			Row: 0, Column: 0, Well: "A1", Volume: &vol,
			Signal: survey.EchoSignal{
				SignalType: "ADE",
				Features:   []survey.SignalFeature{{FeatureType: "Primary", TOF: 81.5, VPP: 0.38}},
			},
		}},
	}
}

func TestPersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")
	store, err := New(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.DB().Close() })
	if store.Driver() != archive.DriverSQLite {
		t.Fatalf("driver = %q", store.Driver())
	}
	if store.Path() != path {
		t.Fatalf("path = %q", store.Path())
	}

	early := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	late := time.Date(2025, 3, 14, 10, 30, 0, 500_000_000, time.UTC)
	if err := store.Ingest(ctx, archive.Record{Survey: sampleSurvey(late, "384PP_AQ_BP"), Source: "late.xml"}); err != nil {
		t.Fatalf("ingest late: %v", err)
	}
	if err := store.Ingest(ctx, archive.Record{Survey: sampleSurvey(early, "384LDV_AQ_B"), Source: "early.xml"}); err != nil {
		t.Fatalf("ingest early: %v", err)
	}

	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.DB().Close() })
	recs, err := reloaded.List(ctx)
	if err != nil {
		t.Fatalf("list reloaded: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("reloaded %d records", len(recs))
	}
	if !recs[0].Survey.Timestamp.Equal(early) || !recs[1].Survey.Timestamp.Equal(late) {
		t.Fatalf("reloaded order: %v then %v", recs[0].Survey.Timestamp, recs[1].Survey.Timestamp)
	}

	rec, err := reloaded.Get(ctx, late)
	if err != nil {
		t.Fatalf("get reloaded: %v", err)
	}
	if rec.Source != "late.xml" || rec.Survey.PlateType != "384PP_AQ_BP" {
		t.Fatalf("reloaded record: %+v", rec)
	}
	if rec.Survey.Wells[0].Volume == nil || *rec.Survey.Wells[0].Volume != 12.25 {
		t.Fatalf("reloaded volume: %v", rec.Survey.Wells[0].Volume)
	}
	if len(rec.Survey.Wells[0].Signal.Features) != 1 || rec.Survey.Wells[0].Signal.Features[0].TOF != 81.5 {
		t.Fatalf("reloaded features: %+v", rec.Survey.Wells[0].Signal.Features)
	}
}

func TestRejectedSurveyNotPersisted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")
	store, err := New(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.DB().Close() })

	doc := sampleSurvey(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC), "384PP_AQ_BP")
	doc.SurveyTotalWells = 4
	ingestErr := store.Ingest(ctx, archive.Record{Survey: doc})
	var rve validate.RuleViolationError
	if !errors.As(ingestErr, &rve) {
		t.Fatalf("expected RuleViolationError, got %v", ingestErr)
	}

	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.DB().Close() })
	if n, _ := reloaded.Len(ctx); n != 0 {
		t.Fatalf("rejected survey persisted, len = %d", n)
	}
}

func TestDuplicateAcrossReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")
	store, err := New(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.DB().Close() })

	ts := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	if err := store.Ingest(ctx, archive.Record{Survey: sampleSurvey(ts, "384PP_AQ_BP")}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.DB().Close() })
	var dup archive.DuplicateError
	if err := reloaded.Ingest(ctx, archive.Record{Survey: sampleSurvey(ts, "384LDV_AQ_B")}); !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError after reload, got %v", err)
	}
}

func TestCreatesSurveysTable(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.DB().Close() })
	var name string
	if err := store.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='surveys'`).Scan(&name); err != nil {
		t.Fatalf("lookup surveys table: %v", err)
	}
	if name != "surveys" {
		t.Fatalf("table name = %q", name)
	}
}
