package survey

import (
	"fmt"
	"os"
	"time"
)

// Dialect identifies which survey shape a document was parsed from.
type Dialect string

const (
	DialectPlateSurvey Dialect = "platesurvey"
	DialectReport      Dialect = "report"
)

// Document is the read-only view shared by the two survey dialects:
// the header identity and the well geometry downstream analysis needs
// regardless of which software wrote the file. Tables stay on the
// concrete types because their shapes differ.
type Document interface {
	Dialect() Dialect
	Barcode() *string
	SurveyedAt() time.Time
	WellExtents() (WellExtents, bool)
	VolumesGrid() [][]float64
}

var (
	_ Document = (*EchoPlateSurvey)(nil)
	_ Document = (*SurveyReport)(nil)
)

// Dialect reports the platesurvey shape.
func (s *EchoPlateSurvey) Dialect() Dialect { return DialectPlateSurvey }

// Barcode returns the plate barcode, nil when the instrument reported
// the unknown sentinel.
func (s *EchoPlateSurvey) Barcode() *string { return s.PlateBarcode }

// SurveyedAt returns the survey timestamp.
func (s *EchoPlateSurvey) SurveyedAt() time.Time { return s.Timestamp }

// Dialect reports the report shape.
func (r *SurveyReport) Dialect() Dialect { return DialectReport }

// DialectError reports that a document matched neither survey dialect.
// Both attempts' errors are kept; neither failure alone says what was
// wrong with the bytes.
type DialectError struct {
	PlateSurveyErr error
	ReportErr      error
}

func (e DialectError) Error() string {
	return fmt.Sprintf("document matches no survey dialect: platesurvey: %v; report: %v",
		e.PlateSurveyErr, e.ReportErr)
}

// Unwrap exposes both attempt errors to errors.Is and errors.As.
func (e DialectError) Unwrap() []error {
	return []error{e.PlateSurveyErr, e.ReportErr}
}

// ReadAny parses a survey document of either dialect, attempting the
// platesurvey shape first. The platesurvey failure is logged at debug
// level when the report attempt succeeds; when both fail the returned
// DialectError carries both.
func ReadAny(data []byte, opts ...Option) (Document, error) {
	cfg := newConfig(opts)
	s, surveyErr := FromBytes(data, opts...)
	if surveyErr == nil {
		return s, nil
	}
	r, reportErr := ReportFromBytes(data)
	if reportErr == nil {
		cfg.logger.Debug("survey document rejected by platesurvey dialect, report dialect matched",
			"platesurvey_error", surveyErr.Error())
		return r, nil
	}
	return nil, DialectError{PlateSurveyErr: surveyErr, ReportErr: reportErr}
}

// ReadAnyFile reads and parses a survey file of either dialect.
func ReadAnyFile(path string, opts ...Option) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read survey file: %w", err)
	}
	return ReadAny(data, opts...)
}
