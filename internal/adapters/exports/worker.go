// Package exports runs asynchronous table exports: a survey (or the
// combined wells of several surveys) is projected to a table, rendered
// as JSON or CSV, and stored as a blob artifact.
package exports

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"echocore/internal/archive"
	"echocore/internal/blob"
	"echocore/internal/core"
	"echocore/pkg/dataset"
	"echocore/pkg/diag"
)

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// ExportKind selects the table an export renders.
type ExportKind string

const (
	// KindSurvey exports the well table of one archived survey.
	KindSurvey ExportKind = "survey"
	// KindCombined exports the concatenated well tables of every survey
	// matching the filter.
	KindCombined ExportKind = "combined"
)

// ExportArtifact captures one stored export file.
type ExportArtifact struct {
	Key         string         `json:"key"`
	Format      dataset.Format `json:"format"`
	ContentType string         `json:"content_type"`
	SizeBytes   int64          `json:"size_bytes"`
	Rows        int            `json:"rows"`
	URL         string         `json:"url,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ExportRecord tracks an export request and its resulting artifacts.
type ExportRecord struct {
	ID          string           `json:"id"`
	Kind        ExportKind       `json:"kind"`
	Timestamp   *time.Time       `json:"timestamp,omitempty"`
	Filter      archive.Filter   `json:"filter"`
	Formats     []dataset.Format `json:"formats"`
	Status      ExportStatus     `json:"status"`
	Error       string           `json:"error,omitempty"`
	Artifacts   []ExportArtifact `json:"artifacts,omitempty"`
	RequestedBy string           `json:"requested_by,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// ExportInput is an enqueue request. An empty Kind is inferred: survey
// when a timestamp is set, combined otherwise.
type ExportInput struct {
	Kind        ExportKind
	Timestamp   time.Time
	Filter      archive.Filter
	Formats     []dataset.Format
	RequestedBy string
	Reason      string
}

// ExportScheduler queues export requests and exposes their status.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error)
	GetExport(id string) (ExportRecord, bool)
	ListExports() []ExportRecord
}

// AuditLogger records export lifecycle entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for one export transition.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor,omitempty"`
	Kind       ExportKind     `json:"kind"`
	Subject    string         `json:"subject,omitempty"`
	Status     ExportStatus   `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

const auditAction = "table_export"

// Worker executes exports asynchronously off an in-memory queue.
type Worker struct {
	service *core.Service
	store   blob.Store
	audit   AuditLogger
	logger  diag.Logger

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type exportTask struct {
	id    string
	input ExportInput
}

type renderedArtifact struct {
	artifact ExportArtifact
	payload  []byte
}

// Option customizes a Worker.
type Option func(*Worker)

// WithLogger overrides the worker's diagnostic sink.
func WithLogger(logger diag.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWorker constructs an export worker over the survey service. The
// audit logger may be nil.
func NewWorker(service *core.Service, store blob.Store, audit AuditLogger, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		service: service,
		store:   store,
		audit:   audit,
		logger:  diag.Nop(),
		queue:   make(chan exportTask, 32),
		jobs:    make(map[string]*ExportRecord),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// EnqueueExport schedules an export job and returns the queued record.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if w.service == nil {
		return ExportRecord{}, fmt.Errorf("export service not configured")
	}

	kind := input.Kind
	if kind == "" {
		kind = KindCombined
		if !input.Timestamp.IsZero() {
			kind = KindSurvey
		}
	}
	switch kind {
	case KindSurvey:
		if input.Timestamp.IsZero() {
			return ExportRecord{}, fmt.Errorf("survey export requires a timestamp")
		}
	case KindCombined:
	default:
		return ExportRecord{}, fmt.Errorf("unknown export kind %s", kind)
	}
	input.Kind = kind

	formats := input.Formats
	if len(formats) == 0 {
		formats = []dataset.Format{dataset.FormatJSON, dataset.FormatCSV}
	}
	uniqFormats := make([]dataset.Format, 0, len(formats))
	seen := make(map[dataset.Format]struct{})
	for _, format := range formats {
		if _, duplicate := seen[format]; duplicate {
			continue
		}
		if format != dataset.FormatJSON && format != dataset.FormatCSV {
			return ExportRecord{}, fmt.Errorf("unsupported export format %s", format)
		}
		uniqFormats = append(uniqFormats, format)
		seen[format] = struct{}{}
	}

	id := newID()
	now := time.Now().UTC()
	record := ExportRecord{
		ID:          id,
		Kind:        kind,
		Filter:      input.Filter,
		Formats:     uniqFormats,
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if kind == KindSurvey {
		ts := input.Timestamp.UTC()
		record.Timestamp = &ts
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queuedSnapshot := record.copy()
	w.mu.Unlock()

	if w.audit != nil {
		w.audit.Record(ctx, AuditEntry{
			ID:         newID(),
			Action:     auditAction,
			Actor:      input.RequestedBy,
			Kind:       kind,
			Subject:    subjectOf(record),
			Status:     ExportStatusQueued,
			Reason:     input.Reason,
			OccurredAt: now,
		})
	}

	select {
	case w.queue <- exportTask{id: id, input: input}:
	default:
		w.mu.Lock()
		delete(w.jobs, id)
		w.mu.Unlock()
		return ExportRecord{}, fmt.Errorf("export queue full")
	}

	return queuedSnapshot, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	record, ok := w.jobs[id]
	if !ok {
		w.mu.RUnlock()
		return ExportRecord{}, false
	}
	snapshot := record.copy()
	w.mu.RUnlock()
	return snapshot, true
}

// ListExports returns snapshots of all known export records, newest
// first.
func (w *Worker) ListExports() []ExportRecord {
	w.mu.RLock()
	out := make([]ExportRecord, 0, len(w.jobs))
	for _, record := range w.jobs {
		out = append(out, record.copy())
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (w *Worker) process(task exportTask) {
	record := w.lookup(task.id)
	if record == nil {
		return
	}

	w.updateStatus(task.id, ExportStatusRunning, "")

	table, err := w.buildTable(task.input)
	if err != nil {
		w.fail(task.id, fmt.Sprintf("build table: %v", err))
		return
	}

	artifacts := make([]ExportArtifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		rendered, err := materialize(format, table, artifactKey(task.id, *record, format))
		if err != nil {
			w.fail(task.id, err.Error())
			return
		}
		if w.store != nil {
			stored, err := w.storeArtifact(rendered)
			if err != nil {
				w.fail(task.id, fmt.Sprintf("store artifact: %v", err))
				return
			}
			artifacts = append(artifacts, stored)
		} else {
			artifacts = append(artifacts, rendered.artifact)
		}
	}

	w.complete(task.id, artifacts)
}

func (w *Worker) buildTable(input ExportInput) (dataset.Table, error) {
	switch input.Kind {
	case KindSurvey:
		return w.service.SurveyTable(w.ctx, input.Timestamp)
	case KindCombined:
		return w.service.CombinedTable(w.ctx, input.Filter)
	default:
		return dataset.Table{}, fmt.Errorf("unknown export kind %s", input.Kind)
	}
}

func (w *Worker) storeArtifact(rendered renderedArtifact) (ExportArtifact, error) {
	info, err := w.store.Put(w.ctx, rendered.artifact.Key, bytes.NewReader(rendered.payload), blob.PutOptions{
		ContentType: rendered.artifact.ContentType,
		Metadata:    map[string]string{"rows": fmt.Sprintf("%d", rendered.artifact.Rows)},
	})
	if err != nil {
		return ExportArtifact{}, err
	}
	artifact := rendered.artifact
	artifact.SizeBytes = info.Size
	if !info.LastModified.IsZero() {
		artifact.CreatedAt = info.LastModified
	}
	url, err := w.store.PresignURL(w.ctx, artifact.Key, blob.SignedURLOptions{Method: "GET", Expiry: 15 * time.Minute})
	switch {
	case err == nil:
		artifact.URL = url
	case errors.Is(err, blob.ErrUnsupported):
	default:
		w.logger.Debug("presign export artifact failed", "key", artifact.Key, "error", err)
	}
	return artifact, nil
}

// lookup returns the live record pointer; only the worker goroutine may
// read it outside the lock.
func (w *Worker) lookup(id string) *ExportRecord {
	w.mu.RLock()
	record, ok := w.jobs[id]
	w.mu.RUnlock()
	if !ok {
		return nil
	}
	return record
}

// The audit entry for a transition is recorded before the record
// mutates, so an observer that sees a terminal status always finds the
// full trail.
func (w *Worker) updateStatus(id string, status ExportStatus, message string) {
	now := time.Now().UTC()
	w.auditTransition(id, status, nil, now)
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
}

func (w *Worker) complete(id string, artifacts []ExportArtifact) {
	now := time.Now().UTC()
	w.auditTransition(id, ExportStatusSucceeded, map[string]any{"artifacts": len(artifacts)}, now)
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Debug("export completed", "id", id, "artifacts", len(artifacts))
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.auditTransition(id, ExportStatusFailed, map[string]any{"error": reason}, now)
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Warn("export failed", "id", id, "error", reason)
}

func (w *Worker) auditTransition(id string, status ExportStatus, metadata map[string]any, now time.Time) {
	if w.audit == nil {
		return
	}
	record, ok := w.GetExport(id)
	if !ok {
		return
	}
	w.audit.Record(w.ctx, AuditEntry{
		ID:         newID(),
		Action:     auditAction,
		Actor:      record.RequestedBy,
		Kind:       record.Kind,
		Subject:    subjectOf(record),
		Status:     status,
		Metadata:   metadata,
		OccurredAt: now,
	})
}

// subjectOf names what an export renders: the survey timestamp key, or
// the filter fields for a combined export.
func subjectOf(record ExportRecord) string {
	if record.Kind == KindSurvey && record.Timestamp != nil {
		return archive.TimeKey(*record.Timestamp)
	}
	f := record.Filter
	parts := make([]string, 0, 3)
	if f.PlateName != "" {
		parts = append(parts, "name="+f.PlateName)
	}
	if f.PlateType != "" {
		parts = append(parts, "type="+f.PlateType)
	}
	if f.Barcode != "" {
		parts = append(parts, "barcode="+f.Barcode)
	}
	if len(parts) == 0 {
		return "all"
	}
	subject := parts[0]
	for _, part := range parts[1:] {
		subject += "," + part
	}
	return subject
}

// artifactKey names the stored artifact under the export id.
func artifactKey(id string, record ExportRecord, format dataset.Format) string {
	name := "combined"
	if record.Kind == KindSurvey && record.Timestamp != nil {
		name = record.Timestamp.UTC().Format("20060102T150405Z")
	}
	return fmt.Sprintf("exports/%s/%s.%s", id, name, string(format))
}

func materialize(format dataset.Format, table dataset.Table, key string) (renderedArtifact, error) {
	contentType := blob.ContentTypeJSON
	if format == dataset.FormatCSV {
		contentType = blob.ContentTypeCSV
	}
	buf := &bytes.Buffer{}
	if err := table.Encode(buf, format); err != nil {
		return renderedArtifact{}, fmt.Errorf("render %s: %w", format, err)
	}
	payload := buf.Bytes()
	return renderedArtifact{
		artifact: ExportArtifact{
			Key:         key,
			Format:      format,
			ContentType: contentType,
			SizeBytes:   int64(len(payload)),
			Rows:        table.NumRows(),
			CreatedAt:   time.Now().UTC(),
		},
		payload: payload,
	}, nil
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Formats = append([]dataset.Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	}
	if r.Timestamp != nil {
		ts := *r.Timestamp
		dup.Timestamp = &ts
	}
	if r.CompletedAt != nil {
		done := *r.CompletedAt
		dup.CompletedAt = &done
	}
	return dup
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}

// MemoryAuditLog captures audit entries in memory for assertions.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of the recorded audit entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
