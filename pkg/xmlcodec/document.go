package xmlcodec

import (
	"fmt"

	"github.com/beevik/etree"
)

// ParseDocument reads b as an XML document and returns its root, which
// must carry the expected tag.
func ParseDocument(b []byte, root string) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(b); err != nil {
		return nil, fmt.Errorf("read xml: %w", err)
	}
	elem := doc.Root()
	if elem == nil {
		return nil, fmt.Errorf("xml document has no root element")
	}
	if elem.Tag != root {
		return nil, UnexpectedElementError{Got: elem.Tag, Want: root}
	}
	return elem, nil
}

// EncodeDocument wraps elem in a document with an XML declaration and
// serializes it without indentation, matching the instrument's flat
// output.
func EncodeDocument(elem *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.SetRoot(elem)
	return doc.WriteToBytes()
}
