package xmlcodec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"echocore/pkg/dataset"
)

// UnknownBarcode is the sentinel the instrument writes when a plate
// carries no readable barcode. The codec maps it to an absent value, so
// a plate whose barcode is literally this string is indistinguishable
// from one without a barcode.
const UnknownBarcode = "UnknownBarCode"

// TimestampLayout is the zone-less layout instrument firmware writes.
const TimestampLayout = "2006-01-02 15:04:05"

// Codec converts between an attribute's wire text and its canonical
// in-memory value. Decode and Encode are inverses for every value a
// codec reports as valid; the barcode and zero-absent codecs document
// the two wire values where the round trip normalizes instead.
type Codec interface {
	Decode(raw string) (any, error)
	Encode(value any) (string, error)
	// Type reports the logical column type for tabular projection.
	Type() dataset.Type
	// Nullable reports whether decoded values may be absent even when
	// the attribute itself is required.
	Nullable() bool
}

// The codec table used by the dialect schemas. Each entry is stateless
// and safe for concurrent use.
var (
	String          Codec = stringCodec{}
	Int             Codec = intCodec{}
	NonNegativeInt  Codec = nonNegativeIntCodec{}
	Float           Codec = floatCodec{}
	ZeroAbsentFloat Codec = zeroAbsentFloatCodec{}
	Barcode         Codec = barcodeCodec{}
	Timestamp       Codec = timestampCodec{}
)

type stringCodec struct{}

func (stringCodec) Decode(raw string) (any, error) { return raw, nil }

func (stringCodec) Encode(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", value)
	}
	return s, nil
}

func (stringCodec) Type() dataset.Type { return dataset.TypeString }
func (stringCodec) Nullable() bool     { return false }

type intCodec struct{}

func (intCodec) Decode(raw string) (any, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse integer %q: %w", raw, err)
	}
	return v, nil
}

func (intCodec) Encode(value any) (string, error) {
	v, ok := value.(int)
	if !ok {
		return "", fmt.Errorf("expected int, got %T", value)
	}
	return strconv.Itoa(v), nil
}

func (intCodec) Type() dataset.Type { return dataset.TypeInt }
func (intCodec) Nullable() bool     { return false }

type nonNegativeIntCodec struct{}

func (nonNegativeIntCodec) Decode(raw string) (any, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse integer %q: %w", raw, err)
	}
	if v < 0 {
		return nil, fmt.Errorf("negative value %d", v)
	}
	return v, nil
}

func (nonNegativeIntCodec) Encode(value any) (string, error) {
	v, ok := value.(int)
	if !ok {
		return "", fmt.Errorf("expected int, got %T", value)
	}
	if v < 0 {
		return "", fmt.Errorf("negative value %d", v)
	}
	return strconv.Itoa(v), nil
}

func (nonNegativeIntCodec) Type() dataset.Type { return dataset.TypeInt }
func (nonNegativeIntCodec) Nullable() bool     { return false }

type floatCodec struct{}

func (floatCodec) Decode(raw string) (any, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("parse float %q: %w", raw, err)
	}
	return v, nil
}

func (floatCodec) Encode(value any) (string, error) {
	v, ok := value.(float64)
	if !ok {
		return "", fmt.Errorf("expected float64, got %T", value)
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

func (floatCodec) Type() dataset.Type { return dataset.TypeFloat }
func (floatCodec) Nullable() bool     { return false }

// zeroAbsentFloatCodec maps the wire value 0 to an absent measurement.
// The instrument has no way to express "not measured" and writes 0 in
// that case, so a true zero reading is folded into absence as well.
type zeroAbsentFloatCodec struct{}

func (zeroAbsentFloatCodec) Decode(raw string) (any, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("parse float %q: %w", raw, err)
	}
	if v == 0 {
		return nil, nil
	}
	return v, nil
}

func (zeroAbsentFloatCodec) Encode(value any) (string, error) {
	if value == nil {
		return "0", nil
	}
	v, ok := value.(float64)
	if !ok {
		return "", fmt.Errorf("expected float64 or nil, got %T", value)
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

func (zeroAbsentFloatCodec) Type() dataset.Type { return dataset.TypeFloat }
func (zeroAbsentFloatCodec) Nullable() bool     { return true }

type barcodeCodec struct{}

func (barcodeCodec) Decode(raw string) (any, error) {
	if raw == UnknownBarcode {
		return nil, nil
	}
	return raw, nil
}

func (barcodeCodec) Encode(value any) (string, error) {
	if value == nil {
		return UnknownBarcode, nil
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("expected string or nil, got %T", value)
	}
	return s, nil
}

func (barcodeCodec) Type() dataset.Type { return dataset.TypeString }
func (barcodeCodec) Nullable() bool     { return true }

type timestampCodec struct{}

// Decode accepts the firmware layout first, then the ISO 8601 forms
// newer instrument software emits.
func (timestampCodec) Decode(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{TimestampLayout, "2006-01-02T15:04:05", time.RFC3339} {
		if v, err := time.Parse(layout, raw); err == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("parse timestamp %q", raw)
}

func (timestampCodec) Encode(value any) (string, error) {
	v, ok := value.(time.Time)
	if !ok {
		return "", fmt.Errorf("expected time.Time, got %T", value)
	}
	return v.Format(TimestampLayout), nil
}

func (timestampCodec) Type() dataset.Type { return dataset.TypeTimestamp }
func (timestampCodec) Nullable() bool     { return false }
