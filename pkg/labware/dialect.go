package labware

import (
	"fmt"
	"os"

	"echocore/pkg/diag"
	"echocore/pkg/xmlcodec"
)

// The generic dialect stores every plate attribute explicitly. The
// fixed-geometry dialect drops plateformat, usage, and welllength;
// usage follows the containing list, welllength mirrors wellwidth, and
// plateformat reads as the unknown placeholder. Both dialects share the
// EchoLabware root with sourceplates and destinationplates wrappers.
var (
	genericPlateSchema = &xmlcodec.Schema{
		Tag: "plateinfo",
		Attrs: []xmlcodec.Attr{
			{Field: "platetype", Name: "platetype", Codec: xmlcodec.String},
			{Field: "plateformat", Name: "plateformat", Codec: xmlcodec.String},
			{Field: "usage", Name: "usage", Codec: xmlcodec.String},
			{Field: "fluid", Name: "fluid", Codec: xmlcodec.String, Optional: true},
			{Field: "manufacturer", Name: "manufacturer", Codec: xmlcodec.String},
			{Field: "lotnumber", Name: "lotnumber", Codec: xmlcodec.String},
			{Field: "partnumber", Name: "partnumber", Codec: xmlcodec.String},
			{Field: "rows", Name: "rows", Codec: xmlcodec.NonNegativeInt},
			{Field: "cols", Name: "cols", Codec: xmlcodec.NonNegativeInt},
			{Field: "a1offsety", Name: "a1offsety", Codec: xmlcodec.NonNegativeInt},
			{Field: "centerspacingx", Name: "centerspacingx", Codec: xmlcodec.NonNegativeInt},
			{Field: "centerspacingy", Name: "centerspacingy", Codec: xmlcodec.NonNegativeInt},
			{Field: "plateheight", Name: "plateheight", Codec: xmlcodec.NonNegativeInt},
			{Field: "skirtheight", Name: "skirtheight", Codec: xmlcodec.NonNegativeInt},
			{Field: "wellwidth", Name: "wellwidth", Codec: xmlcodec.NonNegativeInt},
			{Field: "welllength", Name: "welllength", Codec: xmlcodec.NonNegativeInt},
			{Field: "wellcapacity", Name: "wellcapacity", Codec: xmlcodec.NonNegativeInt},
			{Field: "bottominset", Name: "bottominset", Codec: xmlcodec.Float},
			{Field: "centerwellposx", Name: "centerwellposx", Codec: xmlcodec.Float},
			{Field: "centerwellposy", Name: "centerwellposy", Codec: xmlcodec.Float},
			{Field: "minwellvol", Name: "minwellvol", Codec: xmlcodec.Float, Optional: true, Unit: "uL"},
			{Field: "maxwellvol", Name: "maxwellvol", Codec: xmlcodec.Float, Optional: true, Unit: "uL"},
			{Field: "maxvoltotal", Name: "maxvoltotal", Codec: xmlcodec.Float, Optional: true, Unit: "uL"},
			{Field: "minvolume", Name: "minvolume", Codec: xmlcodec.Float, Optional: true, Unit: "uL"},
			{Field: "dropvolume", Name: "dropvolume", Codec: xmlcodec.Float, Optional: true, Unit: "nL"},
		},
	}

	fixedGeometryPlateSchema = &xmlcodec.Schema{
		Tag: "plateinfo",
		Attrs: []xmlcodec.Attr{
			{Field: "platetype", Name: "platetype", Codec: xmlcodec.String},
			{Field: "fluid", Name: "fluid", Codec: xmlcodec.String, Optional: true},
			{Field: "manufacturer", Name: "manufacturer", Codec: xmlcodec.String},
			{Field: "lotnumber", Name: "lotnumber", Codec: xmlcodec.String},
			{Field: "partnumber", Name: "partnumber", Codec: xmlcodec.String},
			{Field: "rows", Name: "rows", Codec: xmlcodec.NonNegativeInt},
			{Field: "cols", Name: "cols", Codec: xmlcodec.NonNegativeInt},
			{Field: "a1offsety", Name: "a1offsety", Codec: xmlcodec.NonNegativeInt},
			{Field: "centerspacingx", Name: "centerspacingx", Codec: xmlcodec.NonNegativeInt},
			{Field: "centerspacingy", Name: "centerspacingy", Codec: xmlcodec.NonNegativeInt},
			{Field: "plateheight", Name: "plateheight", Codec: xmlcodec.NonNegativeInt},
			{Field: "skirtheight", Name: "skirtheight", Codec: xmlcodec.NonNegativeInt},
			{Field: "wellwidth", Name: "wellwidth", Codec: xmlcodec.NonNegativeInt},
			{Field: "wellcapacity", Name: "wellcapacity", Codec: xmlcodec.NonNegativeInt},
			{Field: "bottominset", Name: "bottominset", Codec: xmlcodec.Float},
			{Field: "centerwellposx", Name: "centerwellposx", Codec: xmlcodec.Float},
			{Field: "centerwellposy", Name: "centerwellposy", Codec: xmlcodec.Float},
			{Field: "minwellvol", Name: "minwellvol", Codec: xmlcodec.Float, Optional: true, Unit: "uL"},
			{Field: "maxwellvol", Name: "maxwellvol", Codec: xmlcodec.Float, Optional: true, Unit: "uL"},
			{Field: "maxvoltotal", Name: "maxvoltotal", Codec: xmlcodec.Float, Optional: true, Unit: "uL"},
			{Field: "minvolume", Name: "minvolume", Codec: xmlcodec.Float, Optional: true, Unit: "uL"},
			{Field: "dropvolume", Name: "dropvolume", Codec: xmlcodec.Float, Optional: true, Unit: "nL"},
		},
	}

	genericDocumentSchema = &xmlcodec.Schema{
		Tag: "EchoLabware",
		Children: []xmlcodec.Child{
			{Field: "sourceplates", Schema: genericPlateSchema, List: true, Wrapper: "sourceplates"},
			{Field: "destinationplates", Schema: genericPlateSchema, List: true, Wrapper: "destinationplates"},
		},
	}

	fixedGeometryDocumentSchema = &xmlcodec.Schema{
		Tag: "EchoLabware",
		Children: []xmlcodec.Child{
			{Field: "sourceplates", Schema: fixedGeometryPlateSchema, List: true, Wrapper: "sourceplates"},
			{Field: "destinationplates", Schema: fixedGeometryPlateSchema, List: true, Wrapper: "destinationplates"},
		},
	}
)

// Option configures a parse call.
type Option func(*config)

type config struct {
	logger diag.Logger
}

// WithLogger routes parse diagnostics, such as the rejected generic
// dialect attempt, to the given sink.
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

// FromBytes parses a labware definition document. The generic dialect
// is attempted first because it preserves more information when the
// bytes are ambiguous; a generic failure only means "wrong dialect"
// and triggers the fixed-geometry attempt. When both fail, the
// returned VariantError carries the fixed-geometry error and the
// generic error goes to the diagnostic sink at debug level.
func FromBytes(data []byte, opts ...Option) (*Labware, error) {
	cfg := newConfig(opts)
	plates, genericErr := parseGeneric(data)
	if genericErr == nil {
		return &Labware{plates: plates}, nil
	}
	plates, fixedErr := parseFixedGeometry(data)
	if fixedErr == nil {
		cfg.logger.Debug("labware document rejected by generic dialect, fixed-geometry dialect matched",
			"generic_error", genericErr.Error())
		return &Labware{plates: plates}, nil
	}
	cfg.logger.Debug("labware document rejected by generic dialect",
		"generic_error", genericErr.Error())
	return nil, VariantError{Err: fixedErr}
}

// FromFile reads and parses a labware definition file.
func FromFile(path string, opts ...Option) (*Labware, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labware file: %w", err)
	}
	return FromBytes(data, opts...)
}

func parseGeneric(data []byte) ([]PlateInfo, error) {
	root, err := xmlcodec.ParseDocument(data, "EchoLabware")
	if err != nil {
		return nil, err
	}
	rec, err := genericDocumentSchema.Parse(root)
	if err != nil {
		return nil, err
	}
	var plates []PlateInfo
	for _, list := range []string{"sourceplates", "destinationplates"} {
		for _, item := range rec.List(list) {
			plate, err := plateFromGenericRecord(item)
			if err != nil {
				return nil, err
			}
			plates = append(plates, plate)
		}
	}
	return plates, nil
}

func parseFixedGeometry(data []byte) ([]PlateInfo, error) {
	root, err := xmlcodec.ParseDocument(data, "EchoLabware")
	if err != nil {
		return nil, err
	}
	rec, err := fixedGeometryDocumentSchema.Parse(root)
	if err != nil {
		return nil, err
	}
	var plates []PlateInfo
	for _, item := range rec.List("sourceplates") {
		plates = append(plates, plateFromFixedRecord(item, UsageSource))
	}
	for _, item := range rec.List("destinationplates") {
		plates = append(plates, plateFromFixedRecord(item, UsageDest))
	}
	return plates, nil
}

func plateFromGenericRecord(rec xmlcodec.Record) (PlateInfo, error) {
	plate := plateFromCommonFields(rec)
	plate.PlateFormat = rec.String("plateformat")
	plate.WellLength = rec.Int("welllength")
	switch usage := rec.String("usage"); Usage(usage) {
	case UsageSource, UsageDest:
		plate.Usage = Usage(usage)
	default:
		return PlateInfo{}, fmt.Errorf("plateinfo %q: unknown usage %q", plate.PlateType, usage)
	}
	return plate, nil
}

// plateFromFixedRecord derives the omitted attributes: usage from the
// containing list, welllength from wellwidth, plateformat unknown.
func plateFromFixedRecord(rec xmlcodec.Record, usage Usage) PlateInfo {
	plate := plateFromCommonFields(rec)
	plate.PlateFormat = PlateFormatUnknown
	plate.Usage = usage
	plate.WellLength = plate.WellWidth
	return plate
}

func plateFromCommonFields(rec xmlcodec.Record) PlateInfo {
	return PlateInfo{
		PlateType:      rec.String("platetype"),
		Fluid:          rec.StringPtr("fluid"),
		Manufacturer:   rec.String("manufacturer"),
		LotNumber:      rec.String("lotnumber"),
		PartNumber:     rec.String("partnumber"),
		Rows:           rec.Int("rows"),
		Cols:           rec.Int("cols"),
		A1OffsetY:      rec.Int("a1offsety"),
		CenterSpacingX: rec.Int("centerspacingx"),
		CenterSpacingY: rec.Int("centerspacingy"),
		PlateHeight:    rec.Int("plateheight"),
		SkirtHeight:    rec.Int("skirtheight"),
		WellWidth:      rec.Int("wellwidth"),
		WellCapacity:   rec.Int("wellcapacity"),
		BottomInset:    rec.Float("bottominset"),
		CenterWellPosX: rec.Float("centerwellposx"),
		CenterWellPosY: rec.Float("centerwellposy"),
		MinWellVol:     rec.FloatPtr("minwellvol"),
		MaxWellVol:     rec.FloatPtr("maxwellvol"),
		MaxVolTotal:    rec.FloatPtr("maxvoltotal"),
		MinVolume:      rec.FloatPtr("minvolume"),
		DropVolume:     rec.FloatPtr("dropvolume"),
	}
}

func plateRecord(plate PlateInfo) xmlcodec.Record {
	return xmlcodec.Record{
		"platetype":      plate.PlateType,
		"plateformat":    plate.PlateFormat,
		"usage":          string(plate.Usage),
		"fluid":          xmlcodec.OptString(plate.Fluid),
		"manufacturer":   plate.Manufacturer,
		"lotnumber":      plate.LotNumber,
		"partnumber":     plate.PartNumber,
		"rows":           plate.Rows,
		"cols":           plate.Cols,
		"a1offsety":      plate.A1OffsetY,
		"centerspacingx": plate.CenterSpacingX,
		"centerspacingy": plate.CenterSpacingY,
		"plateheight":    plate.PlateHeight,
		"skirtheight":    plate.SkirtHeight,
		"wellwidth":      plate.WellWidth,
		"welllength":     plate.WellLength,
		"wellcapacity":   plate.WellCapacity,
		"bottominset":    plate.BottomInset,
		"centerwellposx": plate.CenterWellPosX,
		"centerwellposy": plate.CenterWellPosY,
		"minwellvol":     xmlcodec.OptFloat(plate.MinWellVol),
		"maxwellvol":     xmlcodec.OptFloat(plate.MaxWellVol),
		"maxvoltotal":    xmlcodec.OptFloat(plate.MaxVolTotal),
		"minvolume":      xmlcodec.OptFloat(plate.MinVolume),
		"dropvolume":     xmlcodec.OptFloat(plate.DropVolume),
	}
}

// ToBytes serializes the collection in the generic dialect, splitting
// plates back into source and destination lists by usage.
func (l *Labware) ToBytes() ([]byte, error) {
	var sources, destinations []xmlcodec.Record
	for _, plate := range l.plates {
		switch plate.Usage {
		case UsageSource:
			sources = append(sources, plateRecord(plate))
		case UsageDest:
			destinations = append(destinations, plateRecord(plate))
		default:
			return nil, fmt.Errorf("plate %q has unknown usage %q", plate.PlateType, plate.Usage)
		}
	}
	elem, err := genericDocumentSchema.Build(xmlcodec.Record{
		"sourceplates":      sources,
		"destinationplates": destinations,
	})
	if err != nil {
		return nil, err
	}
	return xmlcodec.EncodeDocument(elem)
}

// WriteFile serializes the collection in the generic dialect to path.
func (l *Labware) WriteFile(path string) error {
	data, err := l.ToBytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write labware file: %w", err)
	}
	return nil
}
