package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"echocore/internal/archive"
	"echocore/internal/blob"
	"echocore/pkg/dataset"
	"echocore/pkg/diag"
	"echocore/pkg/labware"
	"echocore/pkg/survey"
)

// Operation labels used for metrics, traces, and audit entries.
const (
	opIngestSurvey     = "ingest_survey"
	opIngestBytes      = "ingest_bytes"
	opIngestFile       = "ingest_file"
	opIngestBlob       = "ingest_blob"
	opGetSurvey        = "get_survey"
	opListSurveys      = "list_surveys"
	opFindSurveys      = "find_surveys"
	opSurveyTable      = "survey_table"
	opCombinedTable    = "combined_table"
	opExportSurveyXML  = "export_survey_xml"
	opExportSurveysXML = "export_surveys_xml"
	opLabwareTable     = "labware_table"
)

// Service exposes the archive operations for parsed plate surveys. Every
// operation is instrumented through the configured logger, metrics
// recorder, tracer, and audit recorder.
type Service struct {
	archive archive.Store
	blobs   blob.Store
	plates  *labware.Labware
	logger  diag.Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	clock   Clock
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithLogger overrides the diagnostic sink (defaults to a no-op logger).
func WithLogger(logger diag.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer attaches a tracer.
func WithTracer(tr Tracer) ServiceOption {
	return func(s *Service) {
		if tr != nil {
			s.tracer = tr
		}
	}
}

// WithAuditRecorder attaches an audit recorder.
func WithAuditRecorder(rec AuditRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.audit = rec
		}
	}
}

// WithClock overrides the service clock.
func WithClock(clk Clock) ServiceOption {
	return func(s *Service) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// WithBlobStore attaches artifact storage for raw survey XML.
func WithBlobStore(store blob.Store) ServiceOption {
	return func(s *Service) { s.blobs = store }
}

// WithLabware attaches the plate definitions used by LabwareTable.
func WithLabware(plates *labware.Labware) ServiceOption {
	return func(s *Service) { s.plates = plates }
}

// NewService constructs a service over the supplied archive.
func NewService(store archive.Store, opts ...ServiceOption) *Service {
	s := &Service{
		archive: store,
		logger:  diag.Nop(),
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
		clock:   ClockFunc(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Archive returns the underlying archive store.
func (s *Service) Archive() archive.Store { return s.archive }

// Blobs returns the attached blob store, nil when none is configured.
func (s *Service) Blobs() blob.Store { return s.blobs }

// begin starts instrumentation for one operation. The returned func must
// be called exactly once with the subject id and the operation error.
func (s *Service) begin(ctx context.Context, op string) (context.Context, func(entityID string, err error)) {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	return ctx, func(entityID string, err error) {
		duration := s.clock.Now().Sub(start)
		span.End(err)
		s.metrics.Observe(ctx, op, err == nil, duration)
		entry := AuditEntry{
			Operation: op,
			EntityID:  entityID,
			Status:    AuditStatusSuccess,
			Duration:  duration,
			Timestamp: s.clock.Now().UTC(),
		}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
			s.logger.Error("operation failed", "operation", op, "entity_id", entityID, "error", err)
		} else {
			s.logger.Debug("operation completed", "operation", op, "entity_id", entityID)
		}
		s.audit.Record(ctx, entry)
	}
}

// IngestSurvey archives an already parsed survey.
func (s *Service) IngestSurvey(ctx context.Context, doc *survey.EchoPlateSurvey, source string) (sum SurveySummary, err error) {
	ctx, done := s.begin(ctx, opIngestSurvey)
	var entityID string
	defer func() { done(entityID, err) }()

	rec := archive.Record{Survey: doc, IngestedAt: s.clock.Now().UTC(), Source: source}
	entityID = rec.Key()
	if err = s.archive.Ingest(ctx, rec); err != nil {
		return SurveySummary{}, err
	}
	return summarize(rec), nil
}

// IngestBytes parses survey XML and archives it. When a blob store is
// attached the raw XML is stored alongside and the record keeps its key.
func (s *Service) IngestBytes(ctx context.Context, data []byte, source string) (sum SurveySummary, err error) {
	ctx, done := s.begin(ctx, opIngestBytes)
	var entityID string
	defer func() { done(entityID, err) }()

	rec, err := s.ingestBytes(ctx, data, source)
	entityID = rec.Key()
	if err != nil {
		return SurveySummary{}, err
	}
	return summarize(rec), nil
}

// IngestFile reads survey XML from disk and archives it.
func (s *Service) IngestFile(ctx context.Context, path string) (sum SurveySummary, err error) {
	ctx, done := s.begin(ctx, opIngestFile)
	var entityID string
	defer func() { done(entityID, err) }()

	data, err := os.ReadFile(path)
	if err != nil {
		return SurveySummary{}, fmt.Errorf("read survey file: %w", err)
	}
	rec, err := s.ingestBytes(ctx, data, path)
	entityID = rec.Key()
	if err != nil {
		return SurveySummary{}, err
	}
	return summarize(rec), nil
}

// IngestBlob parses survey XML already present in the blob store and
// archives it without re-uploading the raw bytes.
func (s *Service) IngestBlob(ctx context.Context, key string) (sum SurveySummary, err error) {
	ctx, done := s.begin(ctx, opIngestBlob)
	var entityID string
	defer func() { done(entityID, err) }()

	if s.blobs == nil {
		return SurveySummary{}, fmt.Errorf("no blob store configured")
	}
	_, rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		return SurveySummary{}, fmt.Errorf("fetch blob %s: %w", key, err)
	}
	data, err := readAllAndClose(rc)
	if err != nil {
		return SurveySummary{}, fmt.Errorf("read blob %s: %w", key, err)
	}
	doc, err := survey.FromBytes(data, survey.WithLogger(s.logger))
	if err != nil {
		return SurveySummary{}, err
	}
	rec := archive.Record{Survey: doc, IngestedAt: s.clock.Now().UTC(), Source: key, RawKey: key}
	entityID = rec.Key()
	if err = s.archive.Ingest(ctx, rec); err != nil {
		return SurveySummary{}, err
	}
	return summarize(rec), nil
}

// ingestBytes parses, optionally stores the raw XML, and archives. The
// blob is written first so a validated record always references an
// existing key; it is removed again if the archive rejects the survey.
func (s *Service) ingestBytes(ctx context.Context, data []byte, source string) (archive.Record, error) {
	doc, err := survey.FromBytes(data, survey.WithLogger(s.logger))
	if err != nil {
		return archive.Record{}, err
	}
	rec := archive.Record{Survey: doc, IngestedAt: s.clock.Now().UTC(), Source: source}
	if s.blobs != nil {
		key := rawSurveyKey(doc)
		opts := blob.PutOptions{
			ContentType: blob.ContentTypeXML,
			Metadata:    map[string]string{"plate_type": doc.PlateType},
		}
		if _, perr := s.blobs.Put(ctx, key, bytes.NewReader(data), opts); perr != nil {
			s.logger.Warn("raw survey not archived to blob store", "key", key, "error", perr)
		} else {
			rec.RawKey = key
		}
	}
	if err := s.archive.Ingest(ctx, rec); err != nil {
		if rec.RawKey != "" {
			if _, derr := s.blobs.Delete(ctx, rec.RawKey); derr != nil {
				s.logger.Warn("orphaned raw survey blob", "key", rec.RawKey, "error", derr)
			}
		}
		return rec, err
	}
	return rec, nil
}

// rawSurveyKey names the stored raw XML after the plate type and survey
// timestamp. The compact timestamp keeps keys filesystem-safe.
func rawSurveyKey(doc *survey.EchoPlateSurvey) string {
	return fmt.Sprintf("surveys/raw/%s-%s.xml", doc.PlateType, doc.Timestamp.UTC().Format("20060102T150405Z"))
}

func readAllAndClose(rc io.ReadCloser) ([]byte, error) {
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// GetSurvey returns the archived record for the timestamp.
func (s *Service) GetSurvey(ctx context.Context, ts time.Time) (rec archive.Record, err error) {
	ctx, done := s.begin(ctx, opGetSurvey)
	defer func() { done(archive.TimeKey(ts), err) }()
	return s.archive.Get(ctx, ts)
}

// ListSurveys summarizes every archived survey, ordered by timestamp.
func (s *Service) ListSurveys(ctx context.Context) (sums []SurveySummary, err error) {
	ctx, done := s.begin(ctx, opListSurveys)
	defer func() { done("", err) }()

	recs, err := s.archive.List(ctx)
	if err != nil {
		return nil, err
	}
	sums = make([]SurveySummary, 0, len(recs))
	for _, rec := range recs {
		sums = append(sums, summarize(rec))
	}
	return sums, nil
}

// FindSurveys summarizes the archived surveys matching the filter.
func (s *Service) FindSurveys(ctx context.Context, f archive.Filter) (sums []SurveySummary, err error) {
	ctx, done := s.begin(ctx, opFindSurveys)
	defer func() { done("", err) }()

	recs, err := s.archive.Find(ctx, f)
	if err != nil {
		return nil, err
	}
	sums = make([]SurveySummary, 0, len(recs))
	for _, rec := range recs {
		sums = append(sums, summarize(rec))
	}
	return sums, nil
}

// SurveyTable projects one archived survey into its tabular form.
func (s *Service) SurveyTable(ctx context.Context, ts time.Time) (table dataset.Table, err error) {
	ctx, done := s.begin(ctx, opSurveyTable)
	defer func() { done(archive.TimeKey(ts), err) }()

	rec, err := s.archive.Get(ctx, ts)
	if err != nil {
		return dataset.Table{}, err
	}
	return rec.Survey.ToTable(), nil
}

// CombinedTable concatenates the tables of every survey matching the
// filter into one table sharing the survey schema.
func (s *Service) CombinedTable(ctx context.Context, f archive.Filter) (table dataset.Table, err error) {
	ctx, done := s.begin(ctx, opCombinedTable)
	defer func() { done("", err) }()

	recs, err := s.archive.Find(ctx, f)
	if err != nil {
		return dataset.Table{}, err
	}
	combined := dataset.Table{Columns: survey.Columns()}
	for _, rec := range recs {
		if err := combined.Concat(rec.Survey.ToTable()); err != nil {
			return dataset.Table{}, fmt.Errorf("combine survey %s: %w", rec.Key(), err)
		}
	}
	return combined, nil
}

// ExportSurveyXML writes one archived survey back to vendor XML.
func (s *Service) ExportSurveyXML(ctx context.Context, ts time.Time, path string) (err error) {
	ctx, done := s.begin(ctx, opExportSurveyXML)
	defer func() { done(archive.TimeKey(ts), err) }()

	rec, err := s.archive.Get(ctx, ts)
	if err != nil {
		return err
	}
	return rec.Survey.WriteFile(path, survey.WithLogger(s.logger))
}

// DuplicatePathError reports an export path chosen for more than one
// survey.
type DuplicatePathError struct {
	Path string
}

func (e DuplicatePathError) Error() string {
	return fmt.Sprintf("export path %s used by more than one survey", e.Path)
}

// ExportSurveysXML writes every archived survey to the path chosen by
// pathFor. All paths are resolved before any file is written, so a path
// collision fails the export without touching disk.
func (s *Service) ExportSurveysXML(ctx context.Context, pathFor func(*survey.EchoPlateSurvey) string) (paths []string, err error) {
	ctx, done := s.begin(ctx, opExportSurveysXML)
	defer func() { done("", err) }()

	recs, err := s.archive.List(ctx)
	if err != nil {
		return nil, err
	}
	paths = make([]string, 0, len(recs))
	seen := make(map[string]bool, len(recs))
	for _, rec := range recs {
		path := pathFor(rec.Survey)
		if seen[path] {
			return nil, DuplicatePathError{Path: path}
		}
		seen[path] = true
		paths = append(paths, path)
	}
	for i, rec := range recs {
		if err := rec.Survey.WriteFile(paths[i], survey.WithLogger(s.logger)); err != nil {
			return nil, fmt.Errorf("write survey %s: %w", rec.Key(), err)
		}
	}
	return paths, nil
}

// LabwareTable projects the attached plate definitions into a table.
func (s *Service) LabwareTable(ctx context.Context) (table dataset.Table, err error) {
	_, done := s.begin(ctx, opLabwareTable)
	defer func() { done("", err) }()

	if s.plates == nil {
		return dataset.Table{}, fmt.Errorf("no labware definitions loaded")
	}
	return s.plates.ToTable(), nil
}
