package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"echocore/internal/archive"
	"echocore/pkg/survey"
	"echocore/pkg/validate"
)

func sampleSurvey(ts time.Time, plateType string) *survey.EchoPlateSurvey {
	barcode := "BC-" + plateType
	vol := 9.5
	return &survey.EchoPlateSurvey{
		PlateType:         plateType,
		PlateBarcode:      &barcode,
		Timestamp:         ts,
		SerialNumber:      "E5XX-1234",
		DataFormatVersion: 1,
		SurveyRows:        1,
		SurveyColumns:     2,
		SurveyTotalWells:  2,
		Wells: []survey.WellSurvey{
			{
				Row: 0, Column: 0, Well: "A1", Volume: &vol,
				Signal: survey.EchoSignal{
					SignalType: "ADE",
					Features:   []survey.SignalFeature{{FeatureType: "Primary", TOF: 80.25, VPP: 0.41}},
				},
			},
			{Row: 0, Column: 1, Well: "A2"},
		},
	}
}

func TestIngestGetListLen(t *testing.T) {
	ctx := context.Background()
	store := New()
	if store.Driver() != archive.DriverMemory {
		t.Fatalf("driver = %q", store.Driver())
	}

	later := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	earlier := time.Date(2025, 3, 14, 9, 15, 0, 0, time.UTC)
	if err := store.Ingest(ctx, archive.Record{Survey: sampleSurvey(later, "384PP_AQ_BP"), Source: "later.xml"}); err != nil {
		t.Fatalf("ingest later: %v", err)
	}
	if err := store.Ingest(ctx, archive.Record{Survey: sampleSurvey(earlier, "384LDV_AQ_B"), Source: "earlier.xml"}); err != nil {
		t.Fatalf("ingest earlier: %v", err)
	}

	n, err := store.Len(ctx)
	if err != nil || n != 2 {
		t.Fatalf("len = %d, %v", n, err)
	}

	rec, err := store.Get(ctx, later)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Survey.PlateType != "384PP_AQ_BP" || rec.Source != "later.xml" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	recs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("list returned %d records", len(recs))
	}
	if !recs[0].Survey.Timestamp.Equal(earlier) || !recs[1].Survey.Timestamp.Equal(later) {
		t.Fatalf("list not ordered by timestamp: %v then %v", recs[0].Survey.Timestamp, recs[1].Survey.Timestamp)
	}
}

func TestListOrdersFractionalSeconds(t *testing.T) {
	ctx := context.Background()
	store := New()
	whole := time.Date(2025, 3, 14, 15, 4, 56, 0, time.UTC)
	frac := time.Date(2025, 3, 14, 15, 4, 56, 500_000_000, time.UTC)
	next := time.Date(2025, 3, 14, 15, 4, 57, 0, time.UTC)
	for _, ts := range []time.Time{next, frac, whole} {
		if err := store.Ingest(ctx, archive.Record{Survey: sampleSurvey(ts, "384PP_AQ_BP")}); err != nil {
			t.Fatalf("ingest %v: %v", ts, err)
		}
	}
	recs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []time.Time{whole, frac, next}
	for i, ts := range want {
		if !recs[i].Survey.Timestamp.Equal(ts) {
			t.Fatalf("position %d: got %v, want %v", i, recs[i].Survey.Timestamp, ts)
		}
	}
}

func TestDuplicateTimestampRejected(t *testing.T) {
	ctx := context.Background()
	store := New()
	ts := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	if err := store.Ingest(ctx, archive.Record{Survey: sampleSurvey(ts, "384PP_AQ_BP")}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	err := store.Ingest(ctx, archive.Record{Survey: sampleSurvey(ts, "384LDV_AQ_B")})
	var dup archive.DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if !dup.Timestamp.Equal(ts) {
		t.Fatalf("duplicate timestamp = %v", dup.Timestamp)
	}
}

func TestIngestRejectsBlockingViolations(t *testing.T) {
	ctx := context.Background()
	store := New()
	doc := sampleSurvey(time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC), "384PP_AQ_BP")
	doc.SurveyTotalWells = 5
	err := store.Ingest(ctx, archive.Record{Survey: doc})
	var rve validate.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if n, _ := store.Len(ctx); n != 0 {
		t.Fatalf("rejected survey was archived, len = %d", n)
	}
}

func TestIngestRejectsNilSurvey(t *testing.T) {
	if err := New().Ingest(context.Background(), archive.Record{}); err == nil {
		t.Fatal("expected error for record without survey")
	}
}

func TestGetMissing(t *testing.T) {
	ts := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	_, err := New().Get(context.Background(), ts)
	var nf archive.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	store := New()
	tsA := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	tsB := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	tsC := time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC)
	docA := sampleSurvey(tsA, "384PP_AQ_BP")
	docB := sampleSurvey(tsB, "384PP_AQ_BP")
	name := "assay-42"
	docB.PlateName = &name
	docC := sampleSurvey(tsC, "384LDV_AQ_B")
	for _, doc := range []*survey.EchoPlateSurvey{docA, docB, docC} {
		if err := store.Ingest(ctx, archive.Record{Survey: doc}); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	byType, err := store.Find(ctx, archive.Filter{PlateType: "384PP_AQ_BP"})
	if err != nil {
		t.Fatalf("find by type: %v", err)
	}
	if len(byType) != 2 {
		t.Fatalf("type filter matched %d records", len(byType))
	}
	if !byType[0].Survey.Timestamp.Equal(tsA) {
		t.Fatalf("filtered results not ordered, first = %v", byType[0].Survey.Timestamp)
	}

	byName, err := store.Find(ctx, archive.Filter{PlateName: "assay-42"})
	if err != nil || len(byName) != 1 || !byName[0].Survey.Timestamp.Equal(tsB) {
		t.Fatalf("name filter: %v records, err %v", len(byName), err)
	}

	byBoth, err := store.Find(ctx, archive.Filter{PlateType: "384LDV_AQ_B", Barcode: "BC-384LDV_AQ_B"})
	if err != nil || len(byBoth) != 1 {
		t.Fatalf("combined filter: %v records, err %v", len(byBoth), err)
	}

	none, err := store.Find(ctx, archive.Filter{Barcode: "no-such-barcode"})
	if err != nil || len(none) != 0 {
		t.Fatalf("unmatched filter: %v records, err %v", len(none), err)
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := New()
	ts := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	if err := store.Ingest(ctx, archive.Record{Survey: sampleSurvey(ts, "384PP_AQ_BP")}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	rec, err := store.Get(ctx, ts)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	*rec.Survey.Wells[0].Volume = 0
	rec.Survey.Wells[0].Signal.Features[0].TOF = -1
	*rec.Survey.PlateBarcode = "mutated"
	rec.Survey.PlateType = "mutated"

	got, err := store.Get(ctx, ts)
	if err != nil {
		t.Fatalf("re-get: %v", err)
	}
	if got.Survey.Wells[0].Volume == nil || *got.Survey.Wells[0].Volume != 9.5 {
		t.Fatalf("archived volume mutated: %v", got.Survey.Wells[0].Volume)
	}
	if got.Survey.Wells[0].Signal.Features[0].TOF != 80.25 {
		t.Fatalf("archived feature mutated: %v", got.Survey.Wells[0].Signal.Features[0])
	}
	if *got.Survey.PlateBarcode != "BC-384PP_AQ_BP" || got.Survey.PlateType != "384PP_AQ_BP" {
		t.Fatalf("archived identity mutated: %+v", got.Survey)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New()
	tsA := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	tsB := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	for _, ts := range []time.Time{tsB, tsA} {
		if err := store.Ingest(ctx, archive.Record{Survey: sampleSurvey(ts, "384PP_AQ_BP"), Source: "s.xml"}); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	snap := store.ExportState()
	if len(snap.Surveys) != 2 || !snap.Surveys[0].Survey.Timestamp.Equal(tsA) {
		t.Fatalf("snapshot: %+v", snap.Surveys)
	}

	restored := New()
	restored.ImportState(snap)
	recs, err := restored.List(ctx)
	if err != nil {
		t.Fatalf("list restored: %v", err)
	}
	if len(recs) != 2 || recs[0].Source != "s.xml" {
		t.Fatalf("restored archive: %+v", recs)
	}
}
