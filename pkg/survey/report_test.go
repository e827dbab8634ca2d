package survey

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"echocore/pkg/validate"
	"echocore/pkg/xmlcodec"
)

const reportDoc = `<?xml version="1.0" encoding="UTF-8"?>
<report>
<reportheader>
<RunID>0e5c4a12</RunID>
<RunDateTime>2023-05-01 12:40:03</RunDateTime>
<AppName>Cherry Pick</AppName>
<AppVersion>1.6.2</AppVersion>
<ProtocolName>survey only</ProtocolName>
<OrderID>100</OrderID>
<ReferenceID>0</ReferenceID>
<UserName>labops</UserName>
</reportheader>
<reportbody>
<record>
<SrcPlateName>Source[1]</SrcPlateName>
<SrcPlateBarcode>BC000017</SrcPlateBarcode>
<SrcPlateType>384PP_AQ_BP</SrcPlateType>
<SrcWell>C7</SrcWell>
<SurveyFluidHeight>2.63</SurveyFluidHeight>
<SurveyFluidVolume>42.5</SurveyFluidVolume>
<FluidComposition>8.4</FluidComposition>
<FluidUnits>Percent</FluidUnits>
<FluidType>AQ</FluidType>
<SurveyStatus></SurveyStatus>
</record>
<record>
<SrcPlateName>Source[1]</SrcPlateName>
<SrcPlateBarcode>BC000017</SrcPlateBarcode>
<SrcPlateType>384PP_AQ_BP</SrcPlateType>
<SrcWell>C8</SrcWell>
<SurveyFluidHeight>0</SurveyFluidHeight>
<SurveyFluidVolume>0</SurveyFluidVolume>
<FluidComposition>0</FluidComposition>
<FluidUnits>Percent</FluidUnits>
<FluidType>AQ</FluidType>
<SurveyStatus>fail</SurveyStatus>
</record>
</reportbody>
<reportfooter>
<InstrName>Echo550</InstrName>
<InstrModel>E550</InstrModel>
<InstrSN>E5XX-1234</InstrSN>
<InstrSWVersion>2.5.1.1</InstrSWVersion>
</reportfooter>
</report>`

func TestReportFromBytes(t *testing.T) {
	r, err := ReportFromBytes([]byte(reportDoc))
	if err != nil {
		t.Fatalf("ReportFromBytes: %v", err)
	}
	if r.Header.RunID != "0e5c4a12" || r.Header.UserName != "labops" {
		t.Fatalf("unexpected header %+v", r.Header)
	}
	want := time.Date(2023, 5, 1, 12, 40, 3, 0, time.UTC)
	if !r.Header.RunDateTime.Equal(want) {
		t.Fatalf("unexpected run time %v", r.Header.RunDateTime)
	}
	if len(r.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(r.Records))
	}
	first := r.Records[0]
	if first.SrcWell != "C7" || first.SurveyFluidVolume != 42.5 || first.SurveyStatus != "" {
		t.Fatalf("unexpected record %+v", first)
	}
	// The report dialect has no zero-as-absent convention; zero stays a
	// measured zero.
	if r.Records[1].SurveyFluidVolume != 0 {
		t.Fatalf("report volume should stay zero, got %v", r.Records[1].SurveyFluidVolume)
	}
	if r.Footer.InstrSN != "E5XX-1234" {
		t.Fatalf("unexpected footer %+v", r.Footer)
	}
}

func TestReportRoundTrip(t *testing.T) {
	r, err := ReportFromBytes([]byte(reportDoc))
	if err != nil {
		t.Fatalf("ReportFromBytes: %v", err)
	}
	out, err := r.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	again, err := ReportFromBytes(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !reflect.DeepEqual(r, again) {
		t.Fatalf("report round trip drifted:\n%+v\n%+v", r, again)
	}
}

func TestReportBarcode(t *testing.T) {
	r, err := ReportFromBytes([]byte(reportDoc))
	if err != nil {
		t.Fatalf("ReportFromBytes: %v", err)
	}
	if bc := r.Barcode(); bc == nil || *bc != "BC000017" {
		t.Fatalf("unexpected barcode %v", bc)
	}
	r.Records[0].SrcPlateBarcode = xmlcodec.UnknownBarcode
	if bc := r.Barcode(); bc != nil {
		t.Fatalf("sentinel barcode should read as absent, got %q", *bc)
	}
	r.Records = nil
	if bc := r.Barcode(); bc != nil {
		t.Fatalf("empty report should have no barcode")
	}
}

func TestReportToTable(t *testing.T) {
	r, err := ReportFromBytes([]byte(reportDoc))
	if err != nil {
		t.Fatalf("ReportFromBytes: %v", err)
	}
	table, err := r.ToTable()
	if err != nil {
		t.Fatalf("ToTable: %v", err)
	}
	if table.NumRows() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.NumRows())
	}
	row := table.Rows[0]
	if row["well"] != "C7" || row["row"] != 2 || row["column"] != 6 {
		t.Fatalf("unexpected grid projection %v", row)
	}
	if row["run_id"] != "0e5c4a12" || row["instr_name"] != "Echo550" {
		t.Fatalf("header and footer should broadcast: %v", row)
	}
	if _, ok := table.Column("survey_fluid_volume"); !ok {
		t.Fatalf("missing volume column")
	}
}

func TestReportToTableRejectsBadWellName(t *testing.T) {
	r, err := ReportFromBytes([]byte(reportDoc))
	if err != nil {
		t.Fatalf("ReportFromBytes: %v", err)
	}
	r.Records[1].SrcWell = "7C"
	if _, err := r.ToTable(); err == nil {
		t.Fatalf("expected well name error")
	}
}

func TestReadAnyDispatch(t *testing.T) {
	t.Run("platesurvey", func(t *testing.T) {
		doc, err := ReadAny([]byte(surveyDoc))
		if err != nil {
			t.Fatalf("ReadAny: %v", err)
		}
		if doc.Dialect() != DialectPlateSurvey {
			t.Fatalf("unexpected dialect %q", doc.Dialect())
		}
		if _, ok := doc.(*EchoPlateSurvey); !ok {
			t.Fatalf("expected *EchoPlateSurvey, got %T", doc)
		}
	})
	t.Run("report", func(t *testing.T) {
		sink := &captureLogger{}
		doc, err := ReadAny([]byte(reportDoc), WithLogger(sink))
		if err != nil {
			t.Fatalf("ReadAny: %v", err)
		}
		if doc.Dialect() != DialectReport {
			t.Fatalf("unexpected dialect %q", doc.Dialect())
		}
		if len(sink.debug) != 1 {
			t.Fatalf("expected one fallback debug entry, got %v", sink.debug)
		}
	})
}

func TestReadAnyReportsBothErrors(t *testing.T) {
	_, err := ReadAny([]byte(`<other/>`))
	var de DialectError
	if !errors.As(err, &de) {
		t.Fatalf("expected DialectError, got %v", err)
	}
	if de.PlateSurveyErr == nil || de.ReportErr == nil {
		t.Fatalf("both attempt errors should be kept: %+v", de)
	}
	var uee xmlcodec.UnexpectedElementError
	if !errors.As(err, &uee) {
		t.Fatalf("attempt errors should unwrap: %v", err)
	}
}

func TestReadAnyKeepsRuleViolation(t *testing.T) {
	doc := strings.Replace(surveyDoc, `totalWells="2"`, `totalWells="9"`, 1)
	_, err := ReadAny([]byte(doc))
	var de DialectError
	if !errors.As(err, &de) {
		t.Fatalf("expected DialectError, got %v", err)
	}
	var rve validate.RuleViolationError
	if !errors.As(de.PlateSurveyErr, &rve) {
		t.Fatalf("platesurvey attempt should carry the rule violation: %v", de.PlateSurveyErr)
	}
}

func TestReportGrid(t *testing.T) {
	r, err := ReportFromBytes([]byte(reportDoc))
	if err != nil {
		t.Fatalf("ReportFromBytes: %v", err)
	}
	extents, ok := r.WellExtents()
	if !ok {
		t.Fatalf("expected extents")
	}
	want := WellExtents{RowStart: 2, RowEnd: 3, ColStart: 6, ColEnd: 8}
	if extents != want {
		t.Fatalf("unexpected extents %+v", extents)
	}
	grid := r.VolumesGrid()
	if len(grid) != 1 || len(grid[0]) != 2 {
		t.Fatalf("unexpected grid shape %v", grid)
	}
	if grid[0][0] != 42.5 || grid[0][1] != 0 {
		t.Fatalf("unexpected grid values %v", grid)
	}
}
