package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"echocore/internal/archive"
	archmem "echocore/internal/infra/archive/memory"
)

type metricsCall struct {
	operation string
	success   bool
	duration  time.Duration
}

type captureMetrics struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (m *captureMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	m.mu.Lock()
	m.calls = append(m.calls, metricsCall{operation: operation, success: success, duration: duration})
	m.mu.Unlock()
}

func (m *captureMetrics) find(operation string) (metricsCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, call := range m.calls {
		if call.operation == operation {
			return call, true
		}
	}
	return metricsCall{}, false
}

type spanRecord struct {
	operation string
	err       error
}

type captureTracer struct {
	mu    sync.Mutex
	spans []spanRecord
}

func (t *captureTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: t, operation: operation}
}

type captureSpan struct {
	tracer    *captureTracer
	operation string
}

func (s *captureSpan) End(err error) {
	s.tracer.mu.Lock()
	s.tracer.spans = append(s.tracer.spans, spanRecord{operation: s.operation, err: err})
	s.tracer.mu.Unlock()
}

func (t *captureTracer) find(operation string) (spanRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, span := range t.spans {
		if span.operation == operation {
			return span, true
		}
	}
	return spanRecord{}, false
}

type recordingLogger struct {
	mu     sync.Mutex
	debugs []string
	errors []string
}

func (l *recordingLogger) Debug(msg string, _ ...any) {
	l.mu.Lock()
	l.debugs = append(l.debugs, msg)
	l.mu.Unlock()
}
func (l *recordingLogger) Info(string, ...any) {}
func (l *recordingLogger) Warn(string, ...any) {}
func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

// stepClock advances a fixed step on every reading so operation
// durations come out positive and deterministic.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func newInstrumentedService(t *testing.T) (*Service, *captureMetrics, *captureTracer, *MemoryAuditLog, *recordingLogger) {
	t.Helper()
	metrics := &captureMetrics{}
	tracer := &captureTracer{}
	audit := NewMemoryAuditLog()
	logger := &recordingLogger{}
	clock := &stepClock{now: time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC), step: time.Millisecond}
	svc := NewService(archmem.New(),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithAuditRecorder(audit),
		WithLogger(logger),
		WithClock(clock),
	)
	return svc, metrics, tracer, audit, logger
}

func auditEntryFor(entries []AuditEntry, operation string) (AuditEntry, bool) {
	for _, entry := range entries {
		if entry.Operation == operation {
			return entry, true
		}
	}
	return AuditEntry{}, false
}

func TestServiceInstrumentsSuccess(t *testing.T) {
	svc, metrics, tracer, audit, logger := newInstrumentedService(t)
	ctx := context.Background()

	sum, err := svc.IngestBytes(ctx, surveyXML("384PP_AQ_BP", "2023-05-01 12:34:56"), "upload")
	if err != nil {
		t.Fatalf("IngestBytes: %v", err)
	}

	call, ok := metrics.find("ingest_bytes")
	if !ok {
		t.Fatalf("no metric observation for ingest_bytes: %+v", metrics.calls)
	}
	if !call.success || call.duration <= 0 {
		t.Fatalf("unexpected observation %+v", call)
	}

	span, ok := tracer.find("ingest_bytes")
	if !ok {
		t.Fatalf("no span for ingest_bytes")
	}
	if span.err != nil {
		t.Fatalf("span ended with error: %v", span.err)
	}

	entry, ok := auditEntryFor(audit.Entries(), "ingest_bytes")
	if !ok {
		t.Fatalf("no audit entry for ingest_bytes")
	}
	if entry.Status != AuditStatusSuccess || entry.Error != "" {
		t.Fatalf("unexpected audit entry %+v", entry)
	}
	if entry.EntityID != archive.TimeKey(sum.Timestamp) {
		t.Fatalf("audit entity %q, want %q", entry.EntityID, archive.TimeKey(sum.Timestamp))
	}
	if entry.Duration <= 0 || entry.Timestamp.IsZero() {
		t.Fatalf("audit entry missing timing: %+v", entry)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.debugs) == 0 || logger.debugs[len(logger.debugs)-1] != "operation completed" {
		t.Fatalf("expected completion debug log, got %v", logger.debugs)
	}
	if len(logger.errors) != 0 {
		t.Fatalf("unexpected error logs %v", logger.errors)
	}
}

func TestServiceInstrumentsFailure(t *testing.T) {
	svc, metrics, tracer, audit, logger := newInstrumentedService(t)
	missing := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

	if _, err := svc.GetSurvey(context.Background(), missing); err == nil {
		t.Fatalf("expected not-found error")
	}

	call, ok := metrics.find("get_survey")
	if !ok || call.success {
		t.Fatalf("expected failed observation, got %+v (found=%v)", call, ok)
	}

	span, ok := tracer.find("get_survey")
	if !ok || span.err == nil {
		t.Fatalf("expected span with error, got %+v (found=%v)", span, ok)
	}

	entry, ok := auditEntryFor(audit.Entries(), "get_survey")
	if !ok {
		t.Fatalf("no audit entry for get_survey")
	}
	if entry.Status != AuditStatusError || entry.Error == "" {
		t.Fatalf("unexpected audit entry %+v", entry)
	}
	if entry.EntityID != archive.TimeKey(missing) {
		t.Fatalf("audit entity %q", entry.EntityID)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errors) == 0 || logger.errors[0] != "operation failed" {
		t.Fatalf("expected failure error log, got %v", logger.errors)
	}
}

func TestServiceAuditsEveryOperation(t *testing.T) {
	svc, _, _, audit, _ := newInstrumentedService(t)
	ctx := context.Background()

	if _, err := svc.IngestBytes(ctx, surveyXML("384PP_AQ_BP", "2023-05-01 12:34:56"), "upload"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := svc.ListSurveys(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := svc.FindSurveys(ctx, archive.Filter{}); err != nil {
		t.Fatalf("find: %v", err)
	}
	if _, err := svc.CombinedTable(ctx, archive.Filter{}); err != nil {
		t.Fatalf("combined: %v", err)
	}

	want := []string{"ingest_bytes", "list_surveys", "find_surveys", "combined_table"}
	entries := audit.Entries()
	if len(entries) != len(want) {
		t.Fatalf("expected %d audit entries, got %d", len(want), len(entries))
	}
	for i, op := range want {
		if entries[i].Operation != op {
			t.Fatalf("entry %d is %q, want %q", i, entries[i].Operation, op)
		}
		if entries[i].Status != AuditStatusSuccess {
			t.Fatalf("entry %d not successful: %+v", i, entries[i])
		}
	}
}

func TestMemoryAuditLogCopiesEntries(t *testing.T) {
	log := NewMemoryAuditLog()
	log.Record(context.Background(), AuditEntry{Operation: "ingest_bytes", Status: AuditStatusSuccess})

	entries := log.Entries()
	entries[0].Operation = "mutated"

	if got := log.Entries()[0].Operation; got != "ingest_bytes" {
		t.Fatalf("Entries leaked internal slice: %q", got)
	}
}

func TestClockFuncNilFallsBackToNow(t *testing.T) {
	before := time.Now().UTC()
	got := ClockFunc(nil).Now()
	after := time.Now().UTC()
	if got.Before(before) || got.After(after) {
		t.Fatalf("nil clock returned %v outside [%v, %v]", got, before, after)
	}
}

func TestServiceOptionsIgnoreNil(t *testing.T) {
	svc := NewService(archmem.New(),
		WithLogger(nil),
		WithMetricsRecorder(nil),
		WithTracer(nil),
		WithAuditRecorder(nil),
		WithClock(nil),
	)
	// Defaults survive nil options; a panic here would mean they did not.
	if _, err := svc.ListSurveys(context.Background()); err != nil {
		t.Fatalf("ListSurveys with nil options: %v", err)
	}
}
