package survey

import (
	"strings"
	"testing"

	"echocore/pkg/dataset"
)

func TestColumns(t *testing.T) {
	columns := Columns()
	if len(columns) != 32 {
		t.Fatalf("expected 32 columns, got %d", len(columns))
	}
	if columns[0].Name != "row" || columns[0].Type != dataset.TypeInt {
		t.Fatalf("unexpected first column %+v", columns[0])
	}
	if columns[20].Name != "plate_type" {
		t.Fatalf("header columns should follow well columns, got %q", columns[20].Name)
	}
	byName := map[string]dataset.Column{}
	for _, c := range columns {
		byName[c.Name] = c
	}
	if c := byName["volume"]; c.Type != dataset.TypeFloat || !c.Nullable || c.Unit != "uL" {
		t.Fatalf("unexpected volume column %+v", c)
	}
	if c := byName["plate_barcode"]; !c.Nullable {
		t.Fatalf("barcode column should be nullable: %+v", c)
	}
	if c := byName["timestamp"]; c.Type != dataset.TypeTimestamp {
		t.Fatalf("unexpected timestamp column %+v", c)
	}
	if _, ok := byName["signal"]; ok {
		t.Fatalf("nested signal must not project")
	}
}

func TestToTableBroadcastsHeader(t *testing.T) {
	s, err := FromBytes([]byte(surveyDoc))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	table := s.ToTable()
	if table.NumRows() != 2 {
		t.Fatalf("expected one row per well, got %d", table.NumRows())
	}
	for i, row := range table.Rows {
		if row["plate_type"] != "384PP_AQ_BP" {
			t.Fatalf("row %d missing broadcast plate type: %v", i, row)
		}
		if row["instrument_serial_number"] != "E5XX-1234" {
			t.Fatalf("row %d missing broadcast serial number: %v", i, row)
		}
		if _, ok := row["signal"]; ok {
			t.Fatalf("row %d projects the nested signal", i)
		}
	}
	if table.Rows[0]["well"] != "A1" || table.Rows[1]["well"] != "A2" {
		t.Fatalf("rows should keep scan order: %v", table.Rows)
	}
	if table.Rows[0]["volume"] != 42.5 {
		t.Fatalf("unexpected volume %v", table.Rows[0]["volume"])
	}
	if table.Rows[1]["volume"] != nil {
		t.Fatalf("absent volume should project as nil, got %v", table.Rows[1]["volume"])
	}
}

func TestToTableEncodesCSV(t *testing.T) {
	s, err := FromBytes([]byte(surveyDoc))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	var sb strings.Builder
	if err := s.ToTable().EncodeCSV(&sb); err != nil {
		t.Fatalf("EncodeCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "row,column,well,volume") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "A1") || !strings.Contains(lines[1], "42.5") {
		t.Fatalf("unexpected first row %q", lines[1])
	}
}
