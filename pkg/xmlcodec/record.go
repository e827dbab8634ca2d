package xmlcodec

import "time"

// Record holds one parsed element as field name to canonical value.
// Scalar values are string, int, float64, or time.Time; absent optional
// values are nil; nested elements are Record or []Record. The typed
// accessors return zero values for absent or mistyped fields, so model
// constructors stay free of type assertions.
type Record map[string]any

// String returns the field as a string, or "" when absent.
func (r Record) String(field string) string {
	v, _ := r[field].(string)
	return v
}

// StringPtr returns the field as an optional string.
func (r Record) StringPtr(field string) *string {
	if v, ok := r[field].(string); ok {
		return &v
	}
	return nil
}

// Int returns the field as an int, or 0 when absent.
func (r Record) Int(field string) int {
	v, _ := r[field].(int)
	return v
}

// Float returns the field as a float64, or 0 when absent.
func (r Record) Float(field string) float64 {
	v, _ := r[field].(float64)
	return v
}

// FloatPtr returns the field as an optional float64.
func (r Record) FloatPtr(field string) *float64 {
	if v, ok := r[field].(float64); ok {
		return &v
	}
	return nil
}

// Time returns the field as a time.Time, or the zero time when absent.
func (r Record) Time(field string) time.Time {
	v, _ := r[field].(time.Time)
	return v
}

// Child returns a nested single-element field.
func (r Record) Child(field string) Record {
	v, _ := r[field].(Record)
	return v
}

// List returns a nested repeated-element field.
func (r Record) List(field string) []Record {
	v, _ := r[field].([]Record)
	return v
}

// OptString converts an optional string pointer to its record value.
func OptString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

// OptFloat converts an optional float pointer to its record value.
func OptFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
