package survey

import "echocore/pkg/dataset"

// Columns returns the survey projection schema: the well columns
// followed by the document header columns broadcast onto every row.
func Columns() []dataset.Column {
	columns := wellSchema.Columns()
	return append(columns, surveySchema.Columns()...)
}

// ToTable projects the survey as one row per well in scan order, with
// the document header fields repeated on every row. The nested signal
// and feature records stay on the typed document only; their variable
// length has no place in a fixed-width row.
func (s *EchoPlateSurvey) ToTable() dataset.Table {
	header := surveyRecord(s)
	delete(header, "wells")
	table := dataset.Table{Columns: Columns()}
	for i := range s.Wells {
		row := wellRecord(&s.Wells[i])
		delete(row, "signal")
		for field, value := range header {
			row[field] = value
		}
		table.Append(row)
	}
	return table
}
