package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/Faultbox/cloudlabel/pkg/schema"
)

// valueSource yields successive scalars of a PLY body.
type valueSource interface {
	scalar(t schema.ScalarType) (float64, error)
	// remaining estimates how many more values could still be read, to
	// reject absurd counts before allocating for them.
	remaining() int
}

// binarySource reads fixed-width values from a binary body.
type binarySource struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

func (b *binarySource) remaining() int {
	return len(b.data) - b.pos
}

func (b *binarySource) scalar(t schema.ScalarType) (float64, error) {
	size := t.Size()
	if size == 0 {
		return 0, fmt.Errorf("%w: invalid scalar type", ErrInvalidPLYData)
	}
	if b.pos+size > len(b.data) {
		return 0, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrUnexpectedEOF, size, b.pos, len(b.data)-b.pos)
	}
	p := b.data[b.pos : b.pos+size]
	b.pos += size

	switch t {
	case schema.Int8:
		return float64(int8(p[0])), nil
	case schema.Uint8:
		return float64(p[0]), nil
	case schema.Int16:
		return float64(int16(b.order.Uint16(p))), nil
	case schema.Uint16:
		return float64(b.order.Uint16(p)), nil
	case schema.Int32:
		return float64(int32(b.order.Uint32(p))), nil
	case schema.Uint32:
		return float64(b.order.Uint32(p)), nil
	case schema.Float32:
		return float64(math.Float32frombits(b.order.Uint32(p))), nil
	default:
		return math.Float64frombits(b.order.Uint64(p)), nil
	}
}

// asciiSource reads whitespace-separated tokens. Line structure is
// ignored, so rows may wrap.
type asciiSource struct {
	data []byte
	pos  int
}

func (a *asciiSource) remaining() int {
	// Every token needs at least one byte plus a separator.
	return (len(a.data) - a.pos + 1) / 2
}

func (a *asciiSource) token() ([]byte, bool) {
	for a.pos < len(a.data) && isSpace(a.data[a.pos]) {
		a.pos++
	}
	if a.pos >= len(a.data) {
		return nil, false
	}
	start := a.pos
	for a.pos < len(a.data) && !isSpace(a.data[a.pos]) {
		a.pos++
	}
	return a.data[start:a.pos], true
}

func (a *asciiSource) scalar(t schema.ScalarType) (float64, error) {
	tok, ok := a.token()
	if !ok {
		return 0, fmt.Errorf("%w: ran out of ascii tokens", ErrUnexpectedEOF)
	}
	v, err := strconv.ParseFloat(string(tok), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", ErrInvalidPLYData, tok)
	}
	switch {
	case t == schema.Float32:
		v = float64(float32(v))
	case !t.IsFloat():
		v = math.Trunc(v)
	}
	return v, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// newValueSource picks the reader for the header's encoding.
func newValueSource(enc schema.Encoding, body []byte) valueSource {
	if enc == schema.ASCII {
		return &asciiSource{data: body}
	}
	return &binarySource{data: body, order: enc.ByteOrder()}
}

// readElementRows reads every row of one element in declaration order.
func readElementRows(src valueSource, el *schema.Element) ([][]schema.Value, error) {
	// A row needs at least one value per property.
	if n := len(el.Properties); n > 0 && el.Count > src.remaining()/n+1 {
		return nil, fmt.Errorf("%w: element %q declares %d rows", ErrUnexpectedEOF, el.Name, el.Count)
	}

	rows := make([][]schema.Value, el.Count)
	for r := range rows {
		row := make([]schema.Value, len(el.Properties))
		for i, p := range el.Properties {
			v, err := readPropertyValue(src, p)
			if err != nil {
				return nil, fmt.Errorf("element %q row %d property %q: %w", el.Name, r, p.Name, err)
			}
			row[i] = v
		}
		rows[r] = row
	}
	return rows, nil
}

func readPropertyValue(src valueSource, p schema.Property) (schema.Value, error) {
	if !p.IsList {
		v, err := src.scalar(p.Type)
		return schema.Value{Scalar: v}, err
	}

	n, err := src.scalar(p.CountType)
	if err != nil {
		return schema.Value{}, err
	}
	if n < 0 || int(n) > src.remaining() {
		return schema.Value{}, fmt.Errorf("%w: list length %v", ErrUnexpectedEOF, n)
	}
	list := make([]float64, int(n))
	for i := range list {
		if list[i], err = src.scalar(p.Type); err != nil {
			return schema.Value{}, err
		}
	}
	return schema.Value{List: list}, nil
}

// bodyWriter emits scalars in one encoding.
type bodyWriter struct {
	buf   *bytes.Buffer
	enc   schema.Encoding
	order binary.ByteOrder
	// ascii: whether the current line already has a value
	midLine bool
	scratch [8]byte
}

func newBodyWriter(buf *bytes.Buffer, enc schema.Encoding) *bodyWriter {
	return &bodyWriter{buf: buf, enc: enc, order: enc.ByteOrder()}
}

func (w *bodyWriter) scalar(t schema.ScalarType, v float64) {
	if w.enc == schema.ASCII {
		if w.midLine {
			w.buf.WriteByte(' ')
		}
		w.midLine = true
		w.buf.WriteString(formatASCII(t, v))
		return
	}

	p := w.scratch[:t.Size()]
	switch t {
	case schema.Int8:
		p[0] = byte(int8(clampInt(v, math.MinInt8, math.MaxInt8)))
	case schema.Uint8:
		p[0] = byte(clampInt(v, 0, math.MaxUint8))
	case schema.Int16:
		w.order.PutUint16(p, uint16(int16(clampInt(v, math.MinInt16, math.MaxInt16))))
	case schema.Uint16:
		w.order.PutUint16(p, uint16(clampInt(v, 0, math.MaxUint16)))
	case schema.Int32:
		w.order.PutUint32(p, uint32(int32(clampInt(v, math.MinInt32, math.MaxInt32))))
	case schema.Uint32:
		w.order.PutUint32(p, uint32(clampInt(v, 0, math.MaxUint32)))
	case schema.Float32:
		w.order.PutUint32(p, math.Float32bits(float32(v)))
	case schema.Float64:
		w.order.PutUint64(p, math.Float64bits(v))
	}
	w.buf.Write(p)
}

func (w *bodyWriter) value(p schema.Property, v schema.Value) {
	if !p.IsList {
		w.scalar(p.Type, v.Scalar)
		return
	}
	w.scalar(p.CountType, float64(len(v.List)))
	for _, x := range v.List {
		w.scalar(p.Type, x)
	}
}

func (w *bodyWriter) endRow() {
	if w.enc == schema.ASCII {
		w.buf.WriteByte('\n')
		w.midLine = false
	}
}

func formatASCII(t schema.ScalarType, v float64) string {
	switch t {
	case schema.Float32:
		return strconv.FormatFloat(float64(float32(v)), 'g', -1, 32)
	case schema.Float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return strconv.FormatInt(int64(math.Round(v)), 10)
	}
}

func clampInt(v, lo, hi float64) int64 {
	v = math.Round(v)
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return int64(v)
}
