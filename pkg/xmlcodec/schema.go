// Package xmlcodec maps the instrument's XML dialects to records and
// back through declarative schema tables. A Schema names an element's
// tag, its attribute table, its text-element table, and its nested
// children; parsing walks an etree element against the table, building
// walks the table against a record. Dialect variants are alternative
// tables producing the same record fields, so the models on top never
// branch on variant.
//
// Unknown attributes and elements are ignored on parse; the instrument
// adds fields across firmware revisions and readers must stay forward
// compatible.
package xmlcodec

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"echocore/pkg/dataset"
)

// Attr maps one XML attribute to a record field through a codec.
type Attr struct {
	// Field is the record key the decoded value is stored under.
	Field string
	// Name is the attribute name on the wire.
	Name string
	// Codec converts between wire text and the canonical value.
	Codec Codec
	// Optional attributes decode to nil when absent and are omitted on
	// build when nil. Required attributes always emit through the
	// codec, which is how sentinel encodings reappear on the wire.
	Optional bool
	// Unit annotates the derived dataset column.
	Unit string
}

// TextElem maps a child element's text content to a record field.
type TextElem struct {
	Field    string
	Name     string
	Codec    Codec
	Optional bool
	Unit     string
}

// Child maps nested child elements to a record field.
type Child struct {
	Field string
	// Schema describes each child element.
	Schema *Schema
	// List collects every matching child into a []Record; otherwise a
	// single child element is expected.
	List bool
	// Wrapper, when set, is an intermediate element holding the
	// children. It is always emitted on build, even when empty.
	Wrapper string
	// Optional suppresses the missing-element error on parse.
	Optional bool
}

// Schema describes one element of a dialect. Schemas are data: the
// tables are declared once per dialect and shared by parse, build, and
// the tabular projection.
type Schema struct {
	Tag      string
	Attrs    []Attr
	Texts    []TextElem
	Children []Child
}

// Parse decodes elem against the schema table.
func (s *Schema) Parse(elem *etree.Element) (Record, error) {
	if elem.Tag != s.Tag {
		return nil, UnexpectedElementError{Got: elem.Tag, Want: s.Tag}
	}
	rec := make(Record, len(s.Attrs)+len(s.Texts)+len(s.Children))
	for _, attr := range s.Attrs {
		a := elem.SelectAttr(attr.Name)
		if a == nil {
			if attr.Optional {
				rec[attr.Field] = nil
				continue
			}
			return nil, MissingAttributeError{Tag: s.Tag, Attr: attr.Name}
		}
		value, err := attr.Codec.Decode(a.Value)
		if err != nil {
			return nil, DecodeError{Tag: s.Tag, Name: attr.Name, Raw: a.Value, Err: err}
		}
		rec[attr.Field] = value
	}
	for _, te := range s.Texts {
		child := elem.SelectElement(te.Name)
		if child == nil {
			if te.Optional {
				rec[te.Field] = nil
				continue
			}
			return nil, MissingElementError{Tag: s.Tag, Child: te.Name}
		}
		raw := strings.TrimSpace(child.Text())
		value, err := te.Codec.Decode(raw)
		if err != nil {
			return nil, DecodeError{Tag: s.Tag, Name: te.Name, Raw: raw, Err: err}
		}
		rec[te.Field] = value
	}
	for _, ch := range s.Children {
		container := elem
		if ch.Wrapper != "" {
			wrapper := elem.SelectElement(ch.Wrapper)
			if wrapper == nil {
				if ch.Optional {
					rec[ch.Field] = nil
					continue
				}
				return nil, MissingElementError{Tag: s.Tag, Child: ch.Wrapper}
			}
			container = wrapper
		}
		if ch.List {
			items := container.SelectElements(ch.Schema.Tag)
			list := make([]Record, 0, len(items))
			for _, item := range items {
				parsed, err := ch.Schema.Parse(item)
				if err != nil {
					return nil, err
				}
				list = append(list, parsed)
			}
			rec[ch.Field] = list
			continue
		}
		item := container.SelectElement(ch.Schema.Tag)
		if item == nil {
			if ch.Optional {
				rec[ch.Field] = nil
				continue
			}
			return nil, MissingElementError{Tag: container.Tag, Child: ch.Schema.Tag}
		}
		parsed, err := ch.Schema.Parse(item)
		if err != nil {
			return nil, err
		}
		rec[ch.Field] = parsed
	}
	return rec, nil
}

// Build encodes rec against the schema table into a new element.
func (s *Schema) Build(rec Record) (*etree.Element, error) {
	elem := etree.NewElement(s.Tag)
	for _, attr := range s.Attrs {
		value := rec[attr.Field]
		if value == nil && attr.Optional {
			continue
		}
		raw, err := attr.Codec.Encode(value)
		if err != nil {
			return nil, fmt.Errorf("element <%s>: encode %s: %w", s.Tag, attr.Name, err)
		}
		elem.CreateAttr(attr.Name, raw)
	}
	for _, te := range s.Texts {
		value := rec[te.Field]
		if value == nil && te.Optional {
			continue
		}
		raw, err := te.Codec.Encode(value)
		if err != nil {
			return nil, fmt.Errorf("element <%s>: encode %s: %w", s.Tag, te.Name, err)
		}
		elem.CreateElement(te.Name).SetText(raw)
	}
	for _, ch := range s.Children {
		container := elem
		if ch.Wrapper != "" {
			container = elem.CreateElement(ch.Wrapper)
		}
		if ch.List {
			for _, item := range rec.List(ch.Field) {
				built, err := ch.Schema.Build(item)
				if err != nil {
					return nil, err
				}
				container.AddChild(built)
			}
			continue
		}
		item := rec.Child(ch.Field)
		if item == nil {
			if ch.Optional {
				continue
			}
			return nil, MissingElementError{Tag: container.Tag, Child: ch.Schema.Tag}
		}
		built, err := ch.Schema.Build(item)
		if err != nil {
			return nil, err
		}
		container.AddChild(built)
	}
	return elem, nil
}

// Columns derives the tabular projection schema from the attribute and
// text-element tables. Nested children do not project; surveys keep
// their signal traces out of the flat table.
func (s *Schema) Columns() []dataset.Column {
	columns := make([]dataset.Column, 0, len(s.Attrs)+len(s.Texts))
	for _, attr := range s.Attrs {
		columns = append(columns, dataset.Column{
			Name:     attr.Field,
			Type:     attr.Codec.Type(),
			Unit:     attr.Unit,
			Nullable: attr.Optional || attr.Codec.Nullable(),
		})
	}
	for _, te := range s.Texts {
		columns = append(columns, dataset.Column{
			Name:     te.Field,
			Type:     te.Codec.Type(),
			Unit:     te.Unit,
			Nullable: te.Optional || te.Codec.Nullable(),
		})
	}
	return columns
}
