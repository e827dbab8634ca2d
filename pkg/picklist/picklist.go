// Package picklist reads and writes the CSV transfer lists the Echo
// software consumes. A pick list names, per row, a source well, a
// destination well, and a transfer volume; the checks in this package
// catch the mistakes the instrument itself reports only at run time,
// such as transfer volumes that are not droplet multiples or plates
// used against their declared usage.
package picklist

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Vendor CSV column headers.
const (
	ColSampleName          = "Sample Name"
	ColSourcePlateName     = "Source Plate Name"
	ColSourcePlateType     = "Source Plate Type"
	ColSourceWell          = "Source Well"
	ColSourceConcentration = "Source Concentration"
	ColDestPlateName       = "Destination Plate Name"
	ColDestPlateType       = "Destination Plate Type"
	ColDestWell            = "Destination Well"
	ColDestSampleName      = "Destination Sample Name"
	ColTransferVolume      = "Transfer Volume"
)

// Transfer is one pick list row. TransferVolume is in nanoliters, the
// unit the instrument moves droplets in.
type Transfer struct {
	SampleName          string
	SourcePlateName     string
	SourcePlateType     string
	SourceWell          string
	SourceConcentration *float64
	DestPlateName       string
	DestPlateType       string
	DestWell            string
	DestSampleName      string
	TransferVolume      float64
}

// PickList is an ordered list of transfers. Order is the execution
// order the instrument follows.
type PickList struct {
	Transfers []Transfer
}

// Concat joins pick lists in order.
func Concat(lists ...*PickList) *PickList {
	out := &PickList{}
	for _, l := range lists {
		out.Transfers = append(out.Transfers, l.Transfers...)
	}
	return out
}

// WellTotal is the summed transfer volume into one destination well.
type WellTotal struct {
	PlateName string
	Well      string
	Volume    float64
}

// TotalVolumes sums transfer volumes per destination well, in order of
// each well's first appearance.
func (p *PickList) TotalVolumes() []WellTotal {
	index := map[[2]string]int{}
	var totals []WellTotal
	for _, t := range p.Transfers {
		key := [2]string{t.DestPlateName, t.DestWell}
		i, ok := index[key]
		if !ok {
			i = len(totals)
			index[key] = i
			totals = append(totals, WellTotal{PlateName: t.DestPlateName, Well: t.DestWell})
		}
		totals[i].Volume += t.TransferVolume
	}
	return totals
}

// FromCSV parses a pick list. The header row selects columns by the
// vendor names; unknown columns are ignored for forward compatibility.
func FromCSV(r io.Reader) (*PickList, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read pick list header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range []string{ColSourcePlateName, ColSourceWell, ColDestPlateName, ColDestWell, ColTransferVolume} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("pick list is missing required column %q", name)
		}
	}
	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok {
			return ""
		}
		return row[i]
	}
	list := &PickList{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read pick list row: %w", err)
		}
		volume, err := strconv.ParseFloat(field(row, ColTransferVolume), 64)
		if err != nil {
			return nil, fmt.Errorf("pick list line %d: transfer volume: %w", line, err)
		}
		t := Transfer{
			SampleName:      field(row, ColSampleName),
			SourcePlateName: field(row, ColSourcePlateName),
			SourcePlateType: field(row, ColSourcePlateType),
			SourceWell:      field(row, ColSourceWell),
			DestPlateName:   field(row, ColDestPlateName),
			DestPlateType:   field(row, ColDestPlateType),
			DestWell:        field(row, ColDestWell),
			DestSampleName:  field(row, ColDestSampleName),
			TransferVolume:  volume,
		}
		if raw := field(row, ColSourceConcentration); raw != "" {
			conc, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("pick list line %d: source concentration: %w", line, err)
			}
			t.SourceConcentration = &conc
		}
		list.Transfers = append(list.Transfers, t)
	}
	return list, nil
}

// ReadFile reads and parses a pick list file.
func ReadFile(path string) (*PickList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read pick list file: %w", err)
	}
	defer f.Close()
	return FromCSV(f)
}

// WriteCSV serializes the pick list. The required columns always
// appear; an optional column appears when any transfer carries it.
func (p *PickList) WriteCSV(w io.Writer) error {
	header := []string{ColSourcePlateName, ColSourceWell, ColDestPlateName, ColDestWell, ColTransferVolume}
	optional := []struct {
		name    string
		present func(Transfer) bool
		value   func(Transfer) string
	}{
		{ColSampleName, func(t Transfer) bool { return t.SampleName != "" }, func(t Transfer) string { return t.SampleName }},
		{ColSourcePlateType, func(t Transfer) bool { return t.SourcePlateType != "" }, func(t Transfer) string { return t.SourcePlateType }},
		{ColSourceConcentration, func(t Transfer) bool { return t.SourceConcentration != nil }, func(t Transfer) string {
			if t.SourceConcentration == nil {
				return ""
			}
			return formatFloat(*t.SourceConcentration)
		}},
		{ColDestPlateType, func(t Transfer) bool { return t.DestPlateType != "" }, func(t Transfer) string { return t.DestPlateType }},
		{ColDestSampleName, func(t Transfer) bool { return t.DestSampleName != "" }, func(t Transfer) string { return t.DestSampleName }},
	}
	values := []func(Transfer) string{
		func(t Transfer) string { return t.SourcePlateName },
		func(t Transfer) string { return t.SourceWell },
		func(t Transfer) string { return t.DestPlateName },
		func(t Transfer) string { return t.DestWell },
		func(t Transfer) string { return formatFloat(t.TransferVolume) },
	}
	for _, opt := range optional {
		used := false
		for _, t := range p.Transfers {
			if opt.present(t) {
				used = true
				break
			}
		}
		if used {
			header = append(header, opt.name)
			values = append(values, opt.value)
		}
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write pick list header: %w", err)
	}
	for _, t := range p.Transfers {
		row := make([]string, len(values))
		for i, value := range values {
			row[i] = value(t)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write pick list row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile serializes the pick list to path.
func (p *PickList) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write pick list file: %w", err)
	}
	if err := p.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
