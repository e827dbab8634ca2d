// Package labware models the instrument's labware definition files.
// A definition document lists the plate models a deck may carry, split
// into source and destination lists. Two dialects exist on disk: the
// generic ELWX shape carrying every attribute explicitly, and the older
// fixed-geometry ELW shape that omits usage, well length, and plate
// format. Reading auto-detects the dialect; writing always produces
// ELWX.
package labware

import "fmt"

// Usage declares whether a plate definition serves as a transfer source
// or destination. The wire strings are the vendor's.
type Usage string

const (
	UsageSource Usage = "SRC"
	UsageDest   Usage = "DEST"
)

// PlateFormatUnknown is the placeholder plate format reported by plates
// read from the fixed-geometry dialect, which does not store one.
const PlateFormatUnknown = "UNKNOWN"

// PlateInfo describes one plate model: identity, geometry, and fluid
// handling limits. Geometry lengths are in the vendor's integer units;
// volumes are microliters. Optional fields are nil when the document
// does not carry them.
type PlateInfo struct {
	PlateType      string   `json:"platetype"`
	PlateFormat    string   `json:"plateformat"`
	Usage          Usage    `json:"usage"`
	Fluid          *string  `json:"fluid,omitempty"`
	Manufacturer   string   `json:"manufacturer"`
	LotNumber      string   `json:"lotnumber"`
	PartNumber     string   `json:"partnumber"`
	Rows           int      `json:"rows"`
	Cols           int      `json:"cols"`
	A1OffsetY      int      `json:"a1offsety"`
	CenterSpacingX int      `json:"centerspacingx"`
	CenterSpacingY int      `json:"centerspacingy"`
	PlateHeight    int      `json:"plateheight"`
	SkirtHeight    int      `json:"skirtheight"`
	WellWidth      int      `json:"wellwidth"`
	WellLength     int      `json:"welllength"`
	WellCapacity   int      `json:"wellcapacity"`
	BottomInset    float64  `json:"bottominset"`
	CenterWellPosX float64  `json:"centerwellposx"`
	CenterWellPosY float64  `json:"centerwellposy"`
	MinWellVol     *float64 `json:"minwellvol,omitempty"`
	MaxWellVol     *float64 `json:"maxwellvol,omitempty"`
	MaxVolTotal    *float64 `json:"maxvoltotal,omitempty"`
	MinVolume      *float64 `json:"minvolume,omitempty"`
	DropVolume     *float64 `json:"dropvolume,omitempty"`
}

// Shape returns the plate's (rows, cols) geometry.
func (p PlateInfo) Shape() (rows, cols int) {
	return p.Rows, p.Cols
}

// Labware owns an ordered collection of plate definitions. Plate types
// are unique within a collection; the parse path keeps document order.
type Labware struct {
	plates []PlateInfo
}

// New builds a Labware from plates, rejecting duplicate plate types.
func New(plates ...PlateInfo) (*Labware, error) {
	l := &Labware{}
	for _, plate := range plates {
		if err := l.Add(plate); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add appends a plate definition. It is the only mutation entrypoint
// and re-checks plate type uniqueness; on failure the collection is
// unchanged.
func (l *Labware) Add(plate PlateInfo) error {
	for _, existing := range l.plates {
		if existing.PlateType == plate.PlateType {
			return DuplicateError{PlateType: plate.PlateType}
		}
	}
	l.plates = append(l.plates, plate)
	return nil
}

// Get returns the definition for a plate type.
func (l *Labware) Get(platetype string) (PlateInfo, error) {
	for _, plate := range l.plates {
		if plate.PlateType == platetype {
			return plate, nil
		}
	}
	return PlateInfo{}, NotFoundError{PlateType: platetype}
}

// Keys lists plate types in document order.
func (l *Labware) Keys() []string {
	keys := make([]string, len(l.plates))
	for i, plate := range l.plates {
		keys[i] = plate.PlateType
	}
	return keys
}

// Plates returns a copy of the plate list in document order.
func (l *Labware) Plates() []PlateInfo {
	out := make([]PlateInfo, len(l.plates))
	copy(out, l.plates)
	return out
}

// Len reports the number of plate definitions.
func (l *Labware) Len() int {
	return len(l.plates)
}

// NotFoundError reports a plate type lookup miss.
type NotFoundError struct {
	PlateType string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("plate type %q not found", e.PlateType)
}

// DuplicateError reports an attempt to define a plate type twice.
type DuplicateError struct {
	PlateType string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("plate type %q already defined", e.PlateType)
}

// VariantError reports that a document matched neither labware dialect.
// Err is the fixed-geometry (second) attempt's error; the generic
// attempt's error is reported through the diagnostic sink only.
type VariantError struct {
	Err error
}

func (e VariantError) Error() string {
	return fmt.Sprintf("document matches no labware dialect: %v", e.Err)
}

func (e VariantError) Unwrap() error { return e.Err }
