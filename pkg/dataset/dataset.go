// Package dataset defines the tabular projection surface shared by the
// labware and survey models. A Table is a column schema plus rows of
// named scalar values; analytics engines consume it through the CSV and
// JSON encoders without this module depending on any dataframe library.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Type identifies the logical type of a column.
type Type string

const (
	TypeString    Type = "string"
	TypeInt       Type = "integer"
	TypeFloat     Type = "number"
	TypeTimestamp Type = "timestamp"
)

// Format selects an export encoding for a table.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Column describes one table column.
type Column struct {
	Name        string `json:"name"`
	Type        Type   `json:"type"`
	Unit        string `json:"unit,omitempty"`
	Description string `json:"description,omitempty"`
	Nullable    bool   `json:"nullable,omitempty"`
}

// Row holds one record as named scalar values. Absent optional values
// are stored as nil, never as a sentinel.
type Row = map[string]any

// Table couples an ordered column schema with its rows.
type Table struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NumRows reports the number of rows.
func (t Table) NumRows() int {
	return len(t.Rows)
}

// Column returns the column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, column := range t.Columns {
		if column.Name == name {
			return column, true
		}
	}
	return Column{}, false
}

// Append adds rows to the table.
func (t *Table) Append(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Concat appends the rows of every other table that shares t's column
// names in order. A schema mismatch aborts with an error and leaves t
// unchanged.
func (t *Table) Concat(others ...Table) error {
	for _, other := range others {
		if len(other.Columns) != len(t.Columns) {
			return fmt.Errorf("concat tables: column count mismatch (%d vs %d)", len(other.Columns), len(t.Columns))
		}
		for i, column := range other.Columns {
			if column.Name != t.Columns[i].Name {
				return fmt.Errorf("concat tables: column %d is %q, want %q", i, column.Name, t.Columns[i].Name)
			}
		}
	}
	for _, other := range others {
		t.Rows = append(t.Rows, other.Rows...)
	}
	return nil
}

// EncodeCSV writes the table as CSV with a header row. Values render
// through the same formatting rules for every encoder: nil becomes the
// empty field, timestamps RFC 3339 UTC, floats their shortest form.
func (t Table) EncodeCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	headers := make([]string, len(t.Columns))
	for i, column := range t.Columns {
		headers[i] = column.Name
	}
	if err := writer.Write(headers); err != nil {
		return err
	}
	for _, row := range t.Rows {
		record := make([]string, len(t.Columns))
		for i, column := range t.Columns {
			record[i] = formatValue(row[column.Name])
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// EncodeJSON writes the table as a single JSON document with schema and
// rows, matching the structure produced by json.Marshal on Table.
func (t Table) EncodeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(t)
}

// Encode dispatches on format.
func (t Table) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatCSV:
		return t.EncodeCSV(w)
	case FormatJSON:
		return t.EncodeJSON(w)
	default:
		return fmt.Errorf("unsupported table format %s", format)
	}
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case float32:
		return fmt.Sprintf("%g", v)
	case float64:
		return fmt.Sprintf("%g", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprint(v)
	}
}
