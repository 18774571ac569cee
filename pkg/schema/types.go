// Package schema models the per-file attribute schema of the point-cloud
// format: the encoding, the declared elements and their ordered properties.
//
// Nothing in this package knows which properties a file "should" have. Codecs
// look properties up by name and fall back to zero for anything missing.
package schema

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Encoding is the body encoding declared by the "format" header line.
type Encoding string

// Supported encodings.
const (
	ASCII              Encoding = "ascii"
	BinaryLittleEndian Encoding = "binary_little_endian"
	BinaryBigEndian    Encoding = "binary_big_endian"
)

// IsBinary reports whether the body is binary.
func (e Encoding) IsBinary() bool {
	return e == BinaryLittleEndian || e == BinaryBigEndian
}

// ByteOrder returns the byte order of a binary encoding.
func (e Encoding) ByteOrder() binary.ByteOrder {
	if e == BinaryBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ParseEncoding validates an encoding keyword.
func ParseEncoding(s string) (Encoding, bool) {
	switch Encoding(s) {
	case ASCII, BinaryLittleEndian, BinaryBigEndian:
		return Encoding(s), true
	}
	return "", false
}

// ScalarType is a fixed-width numeric type.
type ScalarType uint8

// Scalar types.
const (
	Invalid ScalarType = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64
)

var scalarNames = map[string]ScalarType{
	"char": Int8, "int8": Int8,
	"uchar": Uint8, "uint8": Uint8,
	"short": Int16, "int16": Int16,
	"ushort": Uint16, "uint16": Uint16,
	"int": Int32, "int32": Int32,
	"uint": Uint32, "uint32": Uint32,
	"float": Float32, "float32": Float32,
	"double": Float64, "float64": Float64,
}

// ParseScalarType maps a header type keyword to a ScalarType.
func ParseScalarType(s string) (ScalarType, bool) {
	t, ok := scalarNames[strings.ToLower(s)]
	return t, ok
}

// Size returns the width of the type in bytes.
func (t ScalarType) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether the type is a floating point type.
func (t ScalarType) IsFloat() bool {
	return t == Float32 || t == Float64
}

// String returns the canonical header keyword.
func (t ScalarType) String() string {
	switch t {
	case Int8:
		return "char"
	case Uint8:
		return "uchar"
	case Int16:
		return "short"
	case Uint16:
		return "ushort"
	case Int32:
		return "int"
	case Uint32:
		return "uint"
	case Float32:
		return "float"
	case Float64:
		return "double"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(t))
	}
}

// Property is one declared property of an element. List properties carry a
// count type and an item type; scalar properties only a type.
type Property struct {
	Name      string
	Type      ScalarType
	IsList    bool
	CountType ScalarType
}

// String renders the property as a header line.
func (p Property) String() string {
	if p.IsList {
		return fmt.Sprintf("property list %s %s %s", p.CountType, p.Type, p.Name)
	}
	return fmt.Sprintf("property %s %s", p.Type, p.Name)
}

// Element is a declared element block with its row count.
type Element struct {
	Name       string
	Count      int
	Properties []Property
}

// Index returns a name -> position map for the element's properties.
func (e *Element) Index() map[string]int {
	idx := make(map[string]int, len(e.Properties))
	for i, p := range e.Properties {
		if _, dup := idx[p.Name]; !dup {
			idx[p.Name] = i
		}
	}
	return idx
}

// Has reports whether the element declares a property.
func (e *Element) Has(name string) bool {
	for _, p := range e.Properties {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the element.
func (e Element) Clone() Element {
	e.Properties = append([]Property(nil), e.Properties...)
	return e
}

// Value holds one decoded property value. Scalars use Scalar; list
// properties use List. float64 represents every supported scalar exactly
// except 64-bit integers, which the format does not have.
type Value struct {
	Scalar float64
	List   []float64
}

// Clone returns a copy that does not share the list backing array.
func (v Value) Clone() Value {
	if v.List != nil {
		v.List = append([]float64(nil), v.List...)
	}
	return v
}
