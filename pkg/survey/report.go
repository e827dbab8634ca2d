package survey

import (
	"fmt"
	"os"
	"time"

	"echocore/pkg/dataset"
	"echocore/pkg/xmlcodec"
)

// The report dialect is written by the cherry-pick software rather than
// the instrument control software. It wraps the same survey
// measurements in a run report, with every field as element text
// instead of attributes.

// ReportHeader describes the run that produced the report.
type ReportHeader struct {
	RunID        string    `json:"run_id"`
	RunDateTime  time.Time `json:"run_date_time"`
	AppName      string    `json:"app_name"`
	AppVersion   string    `json:"app_version"`
	ProtocolName string    `json:"protocol_name"`
	OrderID      string    `json:"order_id"`
	ReferenceID  string    `json:"reference_id"`
	UserName     string    `json:"user_name"`
}

// ReportRecord is one surveyed source well. The barcode is kept as the
// raw wire string, sentinel included; Barcode on the report applies the
// sentinel convention.
type ReportRecord struct {
	SrcPlateName      string  `json:"src_plate_name"`
	SrcPlateBarcode   string  `json:"src_plate_barcode"`
	SrcPlateType      string  `json:"src_plate_type"`
	SrcWell           string  `json:"src_well"`
	SurveyFluidHeight float64 `json:"survey_fluid_height"`
	SurveyFluidVolume float64 `json:"survey_fluid_volume"`
	FluidComposition  float64 `json:"fluid_composition"`
	FluidUnits        string  `json:"fluid_units"`
	FluidType         string  `json:"fluid_type"`
	SurveyStatus      string  `json:"survey_status"`
}

// ReportFooter identifies the instrument that ran the survey.
type ReportFooter struct {
	InstrName      string `json:"instr_name"`
	InstrModel     string `json:"instr_model"`
	InstrSN        string `json:"instr_sn"`
	InstrSWVersion string `json:"instr_sw_version"`
}

// SurveyReport is one parsed report document.
type SurveyReport struct {
	Header  ReportHeader   `json:"header"`
	Records []ReportRecord `json:"records"`
	Footer  ReportFooter   `json:"footer"`
}

var (
	reportHeaderSchema = &xmlcodec.Schema{
		Tag: "reportheader",
		Texts: []xmlcodec.TextElem{
			{Field: "run_id", Name: "RunID", Codec: xmlcodec.String},
			{Field: "run_date_time", Name: "RunDateTime", Codec: xmlcodec.Timestamp},
			{Field: "app_name", Name: "AppName", Codec: xmlcodec.String},
			{Field: "app_version", Name: "AppVersion", Codec: xmlcodec.String},
			{Field: "protocol_name", Name: "ProtocolName", Codec: xmlcodec.String},
			{Field: "order_id", Name: "OrderID", Codec: xmlcodec.String},
			{Field: "reference_id", Name: "ReferenceID", Codec: xmlcodec.String},
			{Field: "user_name", Name: "UserName", Codec: xmlcodec.String},
		},
	}

	reportRecordSchema = &xmlcodec.Schema{
		Tag: "record",
		Texts: []xmlcodec.TextElem{
			{Field: "src_plate_name", Name: "SrcPlateName", Codec: xmlcodec.String},
			{Field: "src_plate_barcode", Name: "SrcPlateBarcode", Codec: xmlcodec.String},
			{Field: "src_plate_type", Name: "SrcPlateType", Codec: xmlcodec.String},
			{Field: "src_well", Name: "SrcWell", Codec: xmlcodec.String},
			{Field: "survey_fluid_height", Name: "SurveyFluidHeight", Codec: xmlcodec.Float, Unit: "mm"},
			{Field: "survey_fluid_volume", Name: "SurveyFluidVolume", Codec: xmlcodec.Float, Unit: "uL"},
			{Field: "fluid_composition", Name: "FluidComposition", Codec: xmlcodec.Float},
			{Field: "fluid_units", Name: "FluidUnits", Codec: xmlcodec.String},
			{Field: "fluid_type", Name: "FluidType", Codec: xmlcodec.String},
			{Field: "survey_status", Name: "SurveyStatus", Codec: xmlcodec.String},
		},
	}

	reportFooterSchema = &xmlcodec.Schema{
		Tag: "reportfooter",
		Texts: []xmlcodec.TextElem{
			{Field: "instr_name", Name: "InstrName", Codec: xmlcodec.String},
			{Field: "instr_model", Name: "InstrModel", Codec: xmlcodec.String},
			{Field: "instr_sn", Name: "InstrSN", Codec: xmlcodec.String},
			{Field: "instr_sw_version", Name: "InstrSWVersion", Codec: xmlcodec.String},
		},
	}

	reportBodySchema = &xmlcodec.Schema{
		Tag: "reportbody",
		Children: []xmlcodec.Child{
			{Field: "records", Schema: reportRecordSchema, List: true},
		},
	}

	reportSchema = &xmlcodec.Schema{
		Tag: "report",
		Children: []xmlcodec.Child{
			{Field: "header", Schema: reportHeaderSchema},
			{Field: "body", Schema: reportBodySchema},
			{Field: "footer", Schema: reportFooterSchema},
		},
	}
)

// ReportFromBytes parses a report document.
func ReportFromBytes(data []byte) (*SurveyReport, error) {
	root, err := xmlcodec.ParseDocument(data, "report")
	if err != nil {
		return nil, err
	}
	rec, err := reportSchema.Parse(root)
	if err != nil {
		return nil, err
	}
	return reportFromRecord(rec), nil
}

// ReportReadFile reads and parses a report file.
func ReportReadFile(path string) (*SurveyReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report file: %w", err)
	}
	return ReportFromBytes(data)
}

// ToBytes serializes the report.
func (r *SurveyReport) ToBytes() ([]byte, error) {
	elem, err := reportSchema.Build(reportRecord(r))
	if err != nil {
		return nil, err
	}
	return xmlcodec.EncodeDocument(elem)
}

func reportFromRecord(rec xmlcodec.Record) *SurveyReport {
	header := rec.Child("header")
	footer := rec.Child("footer")
	items := rec.Child("body").List("records")
	records := make([]ReportRecord, 0, len(items))
	for _, item := range items {
		records = append(records, ReportRecord{
			SrcPlateName:      item.String("src_plate_name"),
			SrcPlateBarcode:   item.String("src_plate_barcode"),
			SrcPlateType:      item.String("src_plate_type"),
			SrcWell:           item.String("src_well"),
			SurveyFluidHeight: item.Float("survey_fluid_height"),
			SurveyFluidVolume: item.Float("survey_fluid_volume"),
			FluidComposition:  item.Float("fluid_composition"),
			FluidUnits:        item.String("fluid_units"),
			FluidType:         item.String("fluid_type"),
			SurveyStatus:      item.String("survey_status"),
		})
	}
	return &SurveyReport{
		Header: ReportHeader{
			RunID:        header.String("run_id"),
			RunDateTime:  header.Time("run_date_time"),
			AppName:      header.String("app_name"),
			AppVersion:   header.String("app_version"),
			ProtocolName: header.String("protocol_name"),
			OrderID:      header.String("order_id"),
			ReferenceID:  header.String("reference_id"),
			UserName:     header.String("user_name"),
		},
		Records: records,
		Footer: ReportFooter{
			InstrName:      footer.String("instr_name"),
			InstrModel:     footer.String("instr_model"),
			InstrSN:        footer.String("instr_sn"),
			InstrSWVersion: footer.String("instr_sw_version"),
		},
	}
}

func reportRecord(r *SurveyReport) xmlcodec.Record {
	records := make([]xmlcodec.Record, 0, len(r.Records))
	for _, rec := range r.Records {
		records = append(records, xmlcodec.Record{
			"src_plate_name":      rec.SrcPlateName,
			"src_plate_barcode":   rec.SrcPlateBarcode,
			"src_plate_type":      rec.SrcPlateType,
			"src_well":            rec.SrcWell,
			"survey_fluid_height": rec.SurveyFluidHeight,
			"survey_fluid_volume": rec.SurveyFluidVolume,
			"fluid_composition":   rec.FluidComposition,
			"fluid_units":         rec.FluidUnits,
			"fluid_type":          rec.FluidType,
			"survey_status":       rec.SurveyStatus,
		})
	}
	return xmlcodec.Record{
		"header": xmlcodec.Record{
			"run_id":        r.Header.RunID,
			"run_date_time": r.Header.RunDateTime,
			"app_name":      r.Header.AppName,
			"app_version":   r.Header.AppVersion,
			"protocol_name": r.Header.ProtocolName,
			"order_id":      r.Header.OrderID,
			"reference_id":  r.Header.ReferenceID,
			"user_name":     r.Header.UserName,
		},
		"body": xmlcodec.Record{
			"records": records,
		},
		"footer": xmlcodec.Record{
			"instr_name":       r.Footer.InstrName,
			"instr_model":      r.Footer.InstrModel,
			"instr_sn":         r.Footer.InstrSN,
			"instr_sw_version": r.Footer.InstrSWVersion,
		},
	}
}

// Barcode returns the surveyed plate's barcode from the first record,
// nil when the report is empty or the barcode is the unknown sentinel.
func (r *SurveyReport) Barcode() *string {
	if len(r.Records) == 0 {
		return nil
	}
	bc := r.Records[0].SrcPlateBarcode
	if bc == "" || bc == xmlcodec.UnknownBarcode {
		return nil
	}
	return &bc
}

// SurveyedAt returns the run timestamp.
func (r *SurveyReport) SurveyedAt() time.Time {
	return r.Header.RunDateTime
}

// WellExtents returns the bounding box of the reported wells; ok is
// false when the report has none. Records whose well name does not
// parse are left out.
func (r *SurveyReport) WellExtents() (WellExtents, bool) {
	e, ok := pointExtents(r.gridPoints())
	return e, ok
}

// VolumesGrid lays the reported volumes out over the well extents, NaN
// where no record landed. Records whose well name does not parse are
// left out.
func (r *SurveyReport) VolumesGrid() [][]float64 {
	points := r.gridPoints()
	e, ok := pointExtents(points)
	if !ok {
		return nil
	}
	return pointGrid(points, e)
}

func (r *SurveyReport) gridPoints() []gridPoint {
	points := make([]gridPoint, 0, len(r.Records))
	for _, rec := range r.Records {
		row, col, err := ParseWellName(rec.SrcWell)
		if err != nil {
			continue
		}
		points = append(points, gridPoint{row: row, col: col, volume: rec.SurveyFluidVolume})
	}
	return points
}

// ToTable projects the report as one row per record: the well name,
// the grid position derived from it, the record scalars, and the run
// header and instrument footer broadcast onto every row.
func (r *SurveyReport) ToTable() (dataset.Table, error) {
	table := dataset.Table{Columns: ReportColumns()}
	for _, rec := range r.Records {
		row, col, err := ParseWellName(rec.SrcWell)
		if err != nil {
			return dataset.Table{}, err
		}
		table.Append(dataset.Row{
			"well":                rec.SrcWell,
			"row":                 row,
			"column":              col,
			"src_plate_name":      rec.SrcPlateName,
			"src_plate_barcode":   rec.SrcPlateBarcode,
			"src_plate_type":      rec.SrcPlateType,
			"survey_fluid_height": rec.SurveyFluidHeight,
			"survey_fluid_volume": rec.SurveyFluidVolume,
			"fluid_composition":   rec.FluidComposition,
			"fluid_units":         rec.FluidUnits,
			"fluid_type":          rec.FluidType,
			"survey_status":       rec.SurveyStatus,
			"run_id":              r.Header.RunID,
			"run_date_time":       r.Header.RunDateTime,
			"app_name":            r.Header.AppName,
			"app_version":         r.Header.AppVersion,
			"protocol_name":       r.Header.ProtocolName,
			"order_id":            r.Header.OrderID,
			"reference_id":        r.Header.ReferenceID,
			"user_name":           r.Header.UserName,
			"instr_name":          r.Footer.InstrName,
			"instr_model":         r.Footer.InstrModel,
			"instr_sn":            r.Footer.InstrSN,
			"instr_sw_version":    r.Footer.InstrSWVersion,
		})
	}
	return table, nil
}

// ReportColumns returns the report projection schema: well identity,
// derived grid position, record scalars, then the broadcast header and
// footer fields.
func ReportColumns() []dataset.Column {
	columns := []dataset.Column{
		{Name: "well", Type: dataset.TypeString},
		{Name: "row", Type: dataset.TypeInt},
		{Name: "column", Type: dataset.TypeInt},
	}
	for _, te := range reportRecordSchema.Texts {
		if te.Field == "src_well" {
			continue
		}
		columns = append(columns, dataset.Column{
			Name:     te.Field,
			Type:     te.Codec.Type(),
			Nullable: te.Optional || te.Codec.Nullable(),
		})
	}
	for _, schema := range []*xmlcodec.Schema{reportHeaderSchema, reportFooterSchema} {
		columns = append(columns, schema.Columns()...)
	}
	return columns
}
