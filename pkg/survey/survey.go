// Package survey models the instrument's plate survey files: acoustic
// measurements of fluid volume and composition for every well of a
// plate. The primary dialect is the attribute-dense platesurvey shape
// written by the instrument control software; cherry-pick runs emit a
// second, element-text report shape handled by this package as well.
// Parsed documents validate the declared well count (fatal on mismatch)
// and the data format version (advisory only).
package survey

import (
	"time"
)

// SignalFeature is one detected acoustic feature within a signal trace:
// a feature code with its time of flight and peak-to-peak voltage.
type SignalFeature struct {
	FeatureType string  `json:"feature_type"`
	TOF         float64 `json:"tof"`
	VPP         float64 `json:"vpp"`
}

// EchoSignal is one instrument signal record for a well: the signal
// code, the transducer position it was acquired at, and the ordered
// features detected in the trace.
type EchoSignal struct {
	SignalType  string          `json:"signal_type"`
	TransducerX float64         `json:"transducer_x"`
	TransducerY float64         `json:"transducer_y"`
	TransducerZ float64         `json:"transducer_z"`
	Features    []SignalFeature `json:"features"`
}

// WellSurvey is one well's measurement record. Volume and CurrentVolume
// use the zero-means-absent wire convention and are nil when the
// instrument reported 0. The remaining floats are raw instrument
// metrics kept under their logical names.
type WellSurvey struct {
	Row                         int        `json:"row"`
	Column                      int        `json:"column"`
	Well                        string     `json:"well"`
	Volume                      *float64   `json:"volume"`
	CurrentVolume               *float64   `json:"current_volume"`
	Status                      string     `json:"status"`
	Fluid                       string     `json:"fluid"`
	FluidUnits                  string     `json:"fluid_units"`
	MeniscusX                   float64    `json:"meniscus_x"`
	MeniscusY                   float64    `json:"meniscus_y"`
	FluidComposition            float64    `json:"fluid_composition"`
	DMSOHomogeneous             float64    `json:"dmso_homogeneous"`
	DMSOInhomogeneous           float64    `json:"dmso_inhomogeneous"`
	FluidThickness              float64    `json:"fluid_thickness"`
	CurrentFluidThickness       float64    `json:"current_fluid_thickness"`
	BottomThickness             float64    `json:"bottom_thickness"`
	FluidThicknessHomogeneous   float64    `json:"fluid_thickness_homogeneous"`
	FluidThicknessInhomogeneous float64    `json:"fluid_thickness_inhomogeneous"`
	Outlier                     float64    `json:"outlier"`
	CorrectiveAction            string     `json:"corrective_action"`
	Signal                      EchoSignal `json:"signal"`
}

// EchoPlateSurvey is one survey session. Wells are kept in scan order;
// their count must equal SurveyTotalWells. PlateName and Comment are
// not written by the instrument but survive round trips for tooling
// that adds them.
type EchoPlateSurvey struct {
	PlateType         string       `json:"plate_type"`
	PlateBarcode      *string      `json:"plate_barcode"`
	Timestamp         time.Time    `json:"timestamp"`
	SerialNumber      string       `json:"instrument_serial_number"`
	VTL               int          `json:"vtl"`
	Original          int          `json:"original"`
	DataFormatVersion int          `json:"data_format_version"`
	SurveyRows        int          `json:"survey_rows"`
	SurveyColumns     int          `json:"survey_columns"`
	SurveyTotalWells  int          `json:"survey_total_wells"`
	Wells             []WellSurvey `json:"wells"`
	PlateName         *string      `json:"plate_name,omitempty"`
	Comment           *string      `json:"comment,omitempty"`
}
