package labware

import "echocore/pkg/dataset"

// Columns returns the plate projection schema, derived once from the
// generic dialect table.
func Columns() []dataset.Column {
	return genericPlateSchema.Columns()
}

// ToTable projects the collection to one row per plate. Column names
// are the logical plate fields; absent optional fields stay nil.
func (l *Labware) ToTable() dataset.Table {
	columns := Columns()
	table := dataset.Table{Columns: columns, Rows: make([]dataset.Row, 0, len(l.plates))}
	for _, plate := range l.plates {
		rec := plateRecord(plate)
		row := make(dataset.Row, len(columns))
		for _, column := range columns {
			row[column.Name] = rec[column.Name]
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}
