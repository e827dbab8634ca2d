package xmlcodec

import "fmt"

// UnexpectedElementError reports an element whose tag differs from the
// schema expectation, typically a document with the wrong root.
type UnexpectedElementError struct {
	Got  string
	Want string
}

func (e UnexpectedElementError) Error() string {
	return fmt.Sprintf("unexpected element <%s>, want <%s>", e.Got, e.Want)
}

// MissingAttributeError reports a required attribute absent from an
// element. Tag and Attr name the element and attribute on the wire.
type MissingAttributeError struct {
	Tag  string
	Attr string
}

func (e MissingAttributeError) Error() string {
	return fmt.Sprintf("element <%s> is missing required attribute %q", e.Tag, e.Attr)
}

// MissingElementError reports a required child element absent from its
// parent.
type MissingElementError struct {
	Tag   string
	Child string
}

func (e MissingElementError) Error() string {
	return fmt.Sprintf("element <%s> is missing required child <%s>", e.Tag, e.Child)
}

// DecodeError wraps a codec failure with the element and the attribute
// or text element carrying the rejected value.
type DecodeError struct {
	Tag  string
	Name string
	Raw  string
	Err  error
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("element <%s>: decode %s=%q: %v", e.Tag, e.Name, e.Raw, e.Err)
}

func (e DecodeError) Unwrap() error { return e.Err }
