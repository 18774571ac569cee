package schema

import (
	"strconv"
	"strings"
)

// Magic is the first line of every point-cloud file.
const Magic = "ply"

// EndHeader terminates the header block.
const EndHeader = "end_header"

// Header is a decoded header: encoding, free-form comments and the ordered
// element declarations. Label comments are not kept here; codecs rebuild
// them from the document's label set on every encode.
type Header struct {
	Encoding Encoding
	Version  string
	Comments []string
	ObjInfo  []string
	Elements []Element
}

// Element returns the named element, or nil.
func (h *Header) Element(name string) *Element {
	if h == nil {
		return nil
	}
	for i := range h.Elements {
		if h.Elements[i].Name == name {
			return &h.Elements[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() *Header {
	if h == nil {
		return nil
	}
	c := &Header{
		Encoding: h.Encoding,
		Version:  h.Version,
		Comments: append([]string(nil), h.Comments...),
		ObjInfo:  append([]string(nil), h.ObjInfo...),
		Elements: make([]Element, len(h.Elements)),
	}
	for i, e := range h.Elements {
		c.Elements[i] = e.Clone()
	}
	return c
}

// String renders the header text including the magic line and terminator.
func (h *Header) String() string {
	var b strings.Builder
	b.WriteString(Magic)
	b.WriteByte('\n')

	version := h.Version
	if version == "" {
		version = "1.0"
	}
	enc := h.Encoding
	if enc == "" {
		enc = BinaryLittleEndian
	}
	b.WriteString("format " + string(enc) + " " + version + "\n")

	for _, c := range h.Comments {
		b.WriteString("comment " + c + "\n")
	}
	for _, o := range h.ObjInfo {
		b.WriteString("obj_info " + o + "\n")
	}
	for _, e := range h.Elements {
		b.WriteString("element " + e.Name + " ")
		b.WriteString(strconv.Itoa(e.Count))
		b.WriteByte('\n')
		for _, p := range e.Properties {
			b.WriteString(p.String())
			b.WriteByte('\n')
		}
	}
	b.WriteString(EndHeader)
	b.WriteByte('\n')
	return b.String()
}
