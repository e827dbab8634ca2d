package picklist

import "echocore/pkg/dataset"

// Columns returns the pick list projection schema.
func Columns() []dataset.Column {
	return []dataset.Column{
		{Name: "sample_name", Type: dataset.TypeString, Nullable: true},
		{Name: "source_plate_name", Type: dataset.TypeString},
		{Name: "source_plate_type", Type: dataset.TypeString, Nullable: true},
		{Name: "source_well", Type: dataset.TypeString},
		{Name: "source_concentration", Type: dataset.TypeFloat, Nullable: true},
		{Name: "destination_plate_name", Type: dataset.TypeString},
		{Name: "destination_plate_type", Type: dataset.TypeString, Nullable: true},
		{Name: "destination_well", Type: dataset.TypeString},
		{Name: "destination_sample_name", Type: dataset.TypeString, Nullable: true},
		{Name: "transfer_volume", Type: dataset.TypeFloat, Unit: "nL"},
	}
}

// ToTable projects the pick list as one row per transfer in execution
// order. Absent optional fields project as nil, not empty strings.
func (p *PickList) ToTable() dataset.Table {
	table := dataset.Table{Columns: Columns()}
	for _, t := range p.Transfers {
		var concentration any
		if t.SourceConcentration != nil {
			concentration = *t.SourceConcentration
		}
		table.Append(dataset.Row{
			"sample_name":             orNil(t.SampleName),
			"source_plate_name":       t.SourcePlateName,
			"source_plate_type":       orNil(t.SourcePlateType),
			"source_well":             t.SourceWell,
			"source_concentration":    concentration,
			"destination_plate_name":  t.DestPlateName,
			"destination_plate_type":  orNil(t.DestPlateType),
			"destination_well":        t.DestWell,
			"destination_sample_name": orNil(t.DestSampleName),
			"transfer_volume":         t.TransferVolume,
		})
	}
	return table
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
