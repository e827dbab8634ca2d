package survey

import (
	"fmt"
	"os"

	"echocore/pkg/diag"
	"echocore/pkg/xmlcodec"
)

// The platesurvey dialect is attribute-dense: every well is one w
// element whose short attribute names map to the logical field names
// below, with one nested e signal element holding the f feature list.
var (
	featureSchema = &xmlcodec.Schema{
		Tag: "f",
		Attrs: []xmlcodec.Attr{
			{Field: "feature_type", Name: "t", Codec: xmlcodec.String},
			{Field: "tof", Name: "o", Codec: xmlcodec.Float},
			{Field: "vpp", Name: "v", Codec: xmlcodec.Float},
		},
	}

	signalSchema = &xmlcodec.Schema{
		Tag: "e",
		Attrs: []xmlcodec.Attr{
			{Field: "signal_type", Name: "t", Codec: xmlcodec.String},
			{Field: "transducer_x", Name: "x", Codec: xmlcodec.Float},
			{Field: "transducer_y", Name: "y", Codec: xmlcodec.Float},
			{Field: "transducer_z", Name: "z", Codec: xmlcodec.Float},
		},
		Children: []xmlcodec.Child{
			{Field: "features", Schema: featureSchema, List: true},
		},
	}

	wellSchema = &xmlcodec.Schema{
		Tag: "w",
		Attrs: []xmlcodec.Attr{
			{Field: "row", Name: "r", Codec: xmlcodec.NonNegativeInt},
			{Field: "column", Name: "c", Codec: xmlcodec.NonNegativeInt},
			{Field: "well", Name: "n", Codec: xmlcodec.String},
			{Field: "volume", Name: "vl", Codec: xmlcodec.ZeroAbsentFloat, Unit: "uL"},
			{Field: "current_volume", Name: "cvl", Codec: xmlcodec.ZeroAbsentFloat, Unit: "uL"},
			{Field: "status", Name: "status", Codec: xmlcodec.String},
			{Field: "fluid", Name: "fld", Codec: xmlcodec.String},
			{Field: "fluid_units", Name: "fldu", Codec: xmlcodec.String},
			{Field: "meniscus_x", Name: "x", Codec: xmlcodec.Float},
			{Field: "meniscus_y", Name: "y", Codec: xmlcodec.Float},
			{Field: "fluid_composition", Name: "s", Codec: xmlcodec.Float},
			{Field: "dmso_homogeneous", Name: "fsh", Codec: xmlcodec.Float},
			{Field: "dmso_inhomogeneous", Name: "fsinh", Codec: xmlcodec.Float},
			{Field: "fluid_thickness", Name: "t", Codec: xmlcodec.Float},
			{Field: "current_fluid_thickness", Name: "ct", Codec: xmlcodec.Float},
			{Field: "bottom_thickness", Name: "b", Codec: xmlcodec.Float},
			{Field: "fluid_thickness_homogeneous", Name: "fth", Codec: xmlcodec.Float},
			{Field: "fluid_thickness_inhomogeneous", Name: "ftinh", Codec: xmlcodec.Float},
			{Field: "outlier", Name: "o", Codec: xmlcodec.Float},
			{Field: "corrective_action", Name: "a", Codec: xmlcodec.String},
		},
		Children: []xmlcodec.Child{
			{Field: "signal", Schema: signalSchema},
		},
	}

	surveySchema = &xmlcodec.Schema{
		Tag: "platesurvey",
		Attrs: []xmlcodec.Attr{
			{Field: "plate_type", Name: "name", Codec: xmlcodec.String},
			{Field: "plate_barcode", Name: "barcode", Codec: xmlcodec.Barcode},
			{Field: "timestamp", Name: "date", Codec: xmlcodec.Timestamp},
			{Field: "instrument_serial_number", Name: "serial_number", Codec: xmlcodec.String},
			{Field: "vtl", Name: "vtl", Codec: xmlcodec.Int},
			{Field: "original", Name: "original", Codec: xmlcodec.Int},
			{Field: "data_format_version", Name: "frmt", Codec: xmlcodec.Int},
			{Field: "survey_rows", Name: "rows", Codec: xmlcodec.NonNegativeInt},
			{Field: "survey_columns", Name: "cols", Codec: xmlcodec.NonNegativeInt},
			{Field: "survey_total_wells", Name: "totalWells", Codec: xmlcodec.NonNegativeInt},
			{Field: "plate_name", Name: "plate_name", Codec: xmlcodec.String, Optional: true},
			{Field: "comment", Name: "note", Codec: xmlcodec.String, Optional: true},
		},
		Children: []xmlcodec.Child{
			{Field: "wells", Schema: wellSchema, List: true},
		},
	}
)

// Option configures a parse or write call.
type Option func(*config)

type config struct {
	logger diag.Logger
}

// WithLogger routes advisory findings, such as an untested data format
// version, to the given sink.
func WithLogger(logger diag.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func newConfig(opts []Option) config {
	c := config{logger: diag.Nop()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// FromBytes parses a platesurvey document and runs the cross-field
// checks. Blocking violations, such as a well count that does not match
// the declared total, return a validate.RuleViolationError and no
// document; warnings go to the diagnostic sink and parsing succeeds.
func FromBytes(data []byte, opts ...Option) (*EchoPlateSurvey, error) {
	cfg := newConfig(opts)
	root, err := xmlcodec.ParseDocument(data, "platesurvey")
	if err != nil {
		return nil, err
	}
	rec, err := surveySchema.Parse(root)
	if err != nil {
		return nil, err
	}
	s := surveyFromRecord(rec)
	if err := s.runChecks(cfg.logger); err != nil {
		return nil, err
	}
	return s, nil
}

// ReadFile reads and parses a platesurvey file.
func ReadFile(path string, opts ...Option) (*EchoPlateSurvey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read survey file: %w", err)
	}
	return FromBytes(data, opts...)
}

// ToBytes serializes the survey. The well-count invariant is re-checked
// at the boundary so a document mutated after parse can never serialize
// in an inconsistent state.
func (s *EchoPlateSurvey) ToBytes(opts ...Option) ([]byte, error) {
	cfg := newConfig(opts)
	if err := s.runChecks(cfg.logger); err != nil {
		return nil, err
	}
	elem, err := surveySchema.Build(surveyRecord(s))
	if err != nil {
		return nil, err
	}
	return xmlcodec.EncodeDocument(elem)
}

// WriteFile serializes the survey to path.
func (s *EchoPlateSurvey) WriteFile(path string, opts ...Option) error {
	data, err := s.ToBytes(opts...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write survey file: %w", err)
	}
	return nil
}

// WriteFileTo derives the destination path from the validated document,
// letting callers name files by plate type, barcode, or timestamp. The
// path function runs only after the checks pass. Returns the path
// written.
func (s *EchoPlateSurvey) WriteFileTo(pathFor func(*EchoPlateSurvey) string, opts ...Option) (string, error) {
	data, err := s.ToBytes(opts...)
	if err != nil {
		return "", err
	}
	path := pathFor(s)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write survey file: %w", err)
	}
	return path, nil
}

func surveyFromRecord(rec xmlcodec.Record) *EchoPlateSurvey {
	items := rec.List("wells")
	wells := make([]WellSurvey, 0, len(items))
	for _, item := range items {
		wells = append(wells, wellFromRecord(item))
	}
	return &EchoPlateSurvey{
		PlateType:         rec.String("plate_type"),
		PlateBarcode:      rec.StringPtr("plate_barcode"),
		Timestamp:         rec.Time("timestamp"),
		SerialNumber:      rec.String("instrument_serial_number"),
		VTL:               rec.Int("vtl"),
		Original:          rec.Int("original"),
		DataFormatVersion: rec.Int("data_format_version"),
		SurveyRows:        rec.Int("survey_rows"),
		SurveyColumns:     rec.Int("survey_columns"),
		SurveyTotalWells:  rec.Int("survey_total_wells"),
		Wells:             wells,
		PlateName:         rec.StringPtr("plate_name"),
		Comment:           rec.StringPtr("comment"),
	}
}

func wellFromRecord(rec xmlcodec.Record) WellSurvey {
	return WellSurvey{
		Row:                         rec.Int("row"),
		Column:                      rec.Int("column"),
		Well:                        rec.String("well"),
		Volume:                      rec.FloatPtr("volume"),
		CurrentVolume:               rec.FloatPtr("current_volume"),
		Status:                      rec.String("status"),
		Fluid:                       rec.String("fluid"),
		FluidUnits:                  rec.String("fluid_units"),
		MeniscusX:                   rec.Float("meniscus_x"),
		MeniscusY:                   rec.Float("meniscus_y"),
		FluidComposition:            rec.Float("fluid_composition"),
		DMSOHomogeneous:             rec.Float("dmso_homogeneous"),
		DMSOInhomogeneous:           rec.Float("dmso_inhomogeneous"),
		FluidThickness:              rec.Float("fluid_thickness"),
		CurrentFluidThickness:       rec.Float("current_fluid_thickness"),
		BottomThickness:             rec.Float("bottom_thickness"),
		FluidThicknessHomogeneous:   rec.Float("fluid_thickness_homogeneous"),
		FluidThicknessInhomogeneous: rec.Float("fluid_thickness_inhomogeneous"),
		Outlier:                     rec.Float("outlier"),
		CorrectiveAction:            rec.String("corrective_action"),
		Signal:                      signalFromRecord(rec.Child("signal")),
	}
}

func signalFromRecord(rec xmlcodec.Record) EchoSignal {
	items := rec.List("features")
	features := make([]SignalFeature, 0, len(items))
	for _, item := range items {
		features = append(features, SignalFeature{
			FeatureType: item.String("feature_type"),
			TOF:         item.Float("tof"),
			VPP:         item.Float("vpp"),
		})
	}
	return EchoSignal{
		SignalType:  rec.String("signal_type"),
		TransducerX: rec.Float("transducer_x"),
		TransducerY: rec.Float("transducer_y"),
		TransducerZ: rec.Float("transducer_z"),
		Features:    features,
	}
}

func surveyRecord(s *EchoPlateSurvey) xmlcodec.Record {
	wells := make([]xmlcodec.Record, 0, len(s.Wells))
	for i := range s.Wells {
		wells = append(wells, wellRecord(&s.Wells[i]))
	}
	return xmlcodec.Record{
		"plate_type":               s.PlateType,
		"plate_barcode":            xmlcodec.OptString(s.PlateBarcode),
		"timestamp":                s.Timestamp,
		"instrument_serial_number": s.SerialNumber,
		"vtl":                      s.VTL,
		"original":                 s.Original,
		"data_format_version":      s.DataFormatVersion,
		"survey_rows":              s.SurveyRows,
		"survey_columns":           s.SurveyColumns,
		"survey_total_wells":       s.SurveyTotalWells,
		"plate_name":               xmlcodec.OptString(s.PlateName),
		"comment":                  xmlcodec.OptString(s.Comment),
		"wells":                    wells,
	}
}

func wellRecord(w *WellSurvey) xmlcodec.Record {
	return xmlcodec.Record{
		"row":                           w.Row,
		"column":                        w.Column,
		"well":                          w.Well,
		"volume":                        xmlcodec.OptFloat(w.Volume),
		"current_volume":                xmlcodec.OptFloat(w.CurrentVolume),
		"status":                        w.Status,
		"fluid":                         w.Fluid,
		"fluid_units":                   w.FluidUnits,
		"meniscus_x":                    w.MeniscusX,
		"meniscus_y":                    w.MeniscusY,
		"fluid_composition":             w.FluidComposition,
		"dmso_homogeneous":              w.DMSOHomogeneous,
		"dmso_inhomogeneous":            w.DMSOInhomogeneous,
		"fluid_thickness":               w.FluidThickness,
		"current_fluid_thickness":       w.CurrentFluidThickness,
		"bottom_thickness":              w.BottomThickness,
		"fluid_thickness_homogeneous":   w.FluidThicknessHomogeneous,
		"fluid_thickness_inhomogeneous": w.FluidThicknessInhomogeneous,
		"outlier":                       w.Outlier,
		"corrective_action":             w.CorrectiveAction,
		"signal":                        signalRecord(w.Signal),
	}
}

func signalRecord(sig EchoSignal) xmlcodec.Record {
	features := make([]xmlcodec.Record, 0, len(sig.Features))
	for _, f := range sig.Features {
		features = append(features, xmlcodec.Record{
			"feature_type": f.FeatureType,
			"tof":          f.TOF,
			"vpp":          f.VPP,
		})
	}
	return xmlcodec.Record{
		"signal_type":  sig.SignalType,
		"transducer_x": sig.TransducerX,
		"transducer_y": sig.TransducerY,
		"transducer_z": sig.TransducerZ,
		"features":     features,
	}
}
