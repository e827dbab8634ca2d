// Package core wires the parsing packages to archive, blob, and labware
// storage and instruments every operation with logging, metrics, traces,
// and an audit trail.
package core

import (
	"time"

	"echocore/internal/archive"
)

// Archive vocabulary re-exported so callers need only this package.
type (
	ArchiveStore  = archive.Store
	ArchiveRecord = archive.Record
	Filter        = archive.Filter
)

// StorageDriver identifies a concrete archive backend.
type StorageDriver = archive.Driver

const (
	StorageMemory   = archive.DriverMemory
	StorageSQLite   = archive.DriverSQLite
	StoragePostgres = archive.DriverPostgres
)

// SurveySummary is the listing row for an archived survey.
type SurveySummary struct {
	Timestamp     time.Time `json:"timestamp"`
	PlateType     string    `json:"plate_type"`
	PlateBarcode  string    `json:"plate_barcode,omitempty"`
	PlateName     string    `json:"plate_name,omitempty"`
	Wells         int       `json:"wells"`
	SurveyRows    int       `json:"survey_rows"`
	SurveyColumns int       `json:"survey_columns"`
	IngestedAt    time.Time `json:"ingested_at"`
	Source        string    `json:"source,omitempty"`
	RawKey        string    `json:"raw_key,omitempty"`
}

func summarize(rec archive.Record) SurveySummary {
	sum := SurveySummary{
		IngestedAt: rec.IngestedAt,
		Source:     rec.Source,
		RawKey:     rec.RawKey,
	}
	if rec.Survey == nil {
		return sum
	}
	sum.Timestamp = rec.Survey.Timestamp
	sum.PlateType = rec.Survey.PlateType
	if rec.Survey.PlateBarcode != nil {
		sum.PlateBarcode = *rec.Survey.PlateBarcode
	}
	if rec.Survey.PlateName != nil {
		sum.PlateName = *rec.Survey.PlateName
	}
	sum.Wells = len(rec.Survey.Wells)
	sum.SurveyRows = rec.Survey.SurveyRows
	sum.SurveyColumns = rec.Survey.SurveyColumns
	return sum
}
