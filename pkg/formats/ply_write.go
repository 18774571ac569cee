package formats

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/samber/lo"

	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/schema"
)

// PLYOptions controls point-cloud encoding.
type PLYOptions struct {
	// Encoding overrides the body encoding. Empty keeps the source
	// header's encoding, or binary little endian for generated headers.
	Encoding schema.Encoding
}

// EncodePLY serializes points and faces. When meta carries the source
// header, its element and property layout is kept: counts are updated, a
// label property is appended only when missing and needed, and face values
// captured at decode win over regenerated ones.
func EncodePLY(points []document.Point, faces []document.Face, labels []document.Label, meta document.Metadata, opts PLYOptions) ([]byte, error) {
	h := meta.Header.Clone()
	if h == nil {
		h = defaultPLYHeader(points, faces)
	}
	if opts.Encoding != "" {
		if _, ok := schema.ParseEncoding(string(opts.Encoding)); !ok {
			return nil, fmt.Errorf("%w: unsupported encoding %q", ErrInvalidPLYHeader, opts.Encoding)
		}
		h.Encoding = opts.Encoding
	}
	if h.Encoding == "" {
		h.Encoding = schema.BinaryLittleEndian
	}

	other := make(map[string]document.ElementData, len(meta.OtherElements))
	for _, e := range meta.OtherElements {
		other[e.Name] = e
	}

	if h.Element(VertexElement) == nil {
		h.Elements = append([]schema.Element{defaultVertexElement(points)}, h.Elements...)
	}
	if len(faces) > 0 && h.Element(FaceElement) == nil {
		h.Elements = append(h.Elements, defaultFaceElement())
	}
	for i := range h.Elements {
		el := &h.Elements[i]
		switch el.Name {
		case VertexElement:
			el.Count = len(points)
			if !el.Has(LabelProperty) && anyPointLabeled(points) {
				el.Properties = append(el.Properties, schema.Property{Name: LabelProperty, Type: schema.Int32})
			}
		case FaceElement:
			el.Count = len(faces)
			if !el.Has(LabelProperty) && anyFaceLabeled(faces) {
				el.Properties = append(el.Properties, schema.Property{Name: LabelProperty, Type: schema.Int32})
			}
		default:
			el.Count = len(other[el.Name].Rows)
		}
	}

	h.Comments = append(h.Comments, labelComments(labels)...)

	var buf bytes.Buffer
	buf.WriteString(h.String())
	w := newBodyWriter(&buf, h.Encoding)

	for i := range h.Elements {
		el := &h.Elements[i]
		switch el.Name {
		case VertexElement:
			for _, pt := range points {
				for _, p := range el.Properties {
					w.value(p, vertexValue(p, pt))
				}
				w.endRow()
			}
		case FaceElement:
			for _, f := range faces {
				for _, p := range el.Properties {
					w.value(p, faceValue(p, f))
				}
				w.endRow()
			}
		default:
			for _, row := range other[el.Name].Rows {
				for j, p := range el.Properties {
					var v schema.Value
					if j < len(row) {
						v = row[j]
					}
					w.value(p, v)
				}
				w.endRow()
			}
		}
	}
	return buf.Bytes(), nil
}

// EncodePLYFile encodes and writes a point-cloud file.
func EncodePLYFile(path string, points []document.Point, faces []document.Face, labels []document.Label, meta document.Metadata, opts PLYOptions) error {
	data, err := EncodePLY(points, faces, labels, meta, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing PLY file: %w", err)
	}
	return nil
}

func defaultPLYHeader(points []document.Point, faces []document.Face) *schema.Header {
	h := &schema.Header{Encoding: schema.BinaryLittleEndian, Version: "1.0"}
	h.Elements = append(h.Elements, defaultVertexElement(points))
	if len(faces) > 0 {
		h.Elements = append(h.Elements, defaultFaceElement())
	}
	return h
}

func defaultVertexElement(points []document.Point) schema.Element {
	el := schema.Element{Name: VertexElement}
	for _, n := range positionNames {
		el.Properties = append(el.Properties, schema.Property{Name: n, Type: schema.Float32})
	}
	hasNormal, hasUV := false, false
	for _, p := range points {
		hasNormal = hasNormal || p.Normal != nil
		hasUV = hasUV || p.UV != nil
	}
	if hasNormal {
		for _, n := range normalNames {
			el.Properties = append(el.Properties, schema.Property{Name: n, Type: schema.Float32})
		}
	}
	for _, n := range colorNames {
		el.Properties = append(el.Properties, schema.Property{Name: n[0], Type: schema.Uint8})
	}
	if hasUV {
		el.Properties = append(el.Properties,
			schema.Property{Name: uvNames[0][0], Type: schema.Float32},
			schema.Property{Name: uvNames[1][0], Type: schema.Float32})
	}
	return el
}

func defaultFaceElement() schema.Element {
	return schema.Element{
		Name: FaceElement,
		Properties: []schema.Property{
			{Name: faceIndexNames[0], Type: schema.Int32, IsList: true, CountType: schema.Uint8},
		},
	}
}

func anyPointLabeled(points []document.Point) bool {
	for _, p := range points {
		if document.IsLabeled(p.LabelID) {
			return true
		}
	}
	return false
}

func anyFaceLabeled(faces []document.Face) bool {
	for _, f := range faces {
		if document.IsLabeled(f.LabelID) {
			return true
		}
	}
	return false
}

// labelComments renders label definitions sorted by id, with the two
// sentinel entries added unless already defined.
func labelComments(labels []document.Label) []string {
	type entry struct {
		id   int
		name string
	}
	entries := make([]entry, 0, len(labels)+2)
	seen := make(map[int]bool)
	for _, l := range labels {
		if seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		entries = append(entries, entry{l.ID, l.Name})
	}
	if !seen[document.SentinelUnclassified] {
		entries = append(entries, entry{document.SentinelUnclassified, "unclassified"})
	}
	if !seen[document.SentinelUnlabeled] {
		entries = append(entries, entry{document.SentinelUnlabeled, "unlabeled"})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = "label " + strconv.Itoa(e.id) + " " + e.name
	}
	return out
}

func vertexValue(p schema.Property, pt document.Point) schema.Value {
	if p.Name == LabelProperty {
		return schema.Value{Scalar: float64(document.NormalizeLabel(pt.LabelID))}
	}
	for k := 0; k < 3; k++ {
		if p.Name == positionNames[k] {
			return schema.Value{Scalar: pt.Position[k]}
		}
	}
	if v, ok := pt.Extra[p.Name]; ok {
		return v
	}
	for k := 0; k < 3; k++ {
		if p.Name == normalNames[k] && pt.Normal != nil {
			return schema.Value{Scalar: float64(pt.Normal[k])}
		}
		if lo.Contains(colorNames[k], p.Name) {
			return schema.Value{Scalar: channelValue(p.Type, [3]float32{pt.Color.R, pt.Color.G, pt.Color.B}[k])}
		}
	}
	for k := 0; k < 2; k++ {
		if lo.Contains(uvNames[k], p.Name) && pt.UV != nil {
			return schema.Value{Scalar: float64(pt.UV[k])}
		}
	}
	return schema.Value{}
}

func faceValue(p schema.Property, f document.Face) schema.Value {
	if lo.Contains(faceIndexNames, p.Name) && p.IsList {
		list := make([]float64, len(f.Indices))
		for i, idx := range f.Indices {
			list[i] = float64(idx)
		}
		return schema.Value{List: list}
	}
	if p.Name == LabelProperty {
		return schema.Value{Scalar: float64(document.NormalizeLabel(f.LabelID))}
	}
	if v, ok := f.OriginalProperties[p.Name]; ok {
		return v
	}
	for k := 0; k < 3; k++ {
		if lo.Contains(colorNames[k], p.Name) && f.Color != nil {
			return schema.Value{Scalar: channelValue(p.Type, [3]float32{f.Color.R, f.Color.G, f.Color.B}[k])}
		}
	}
	switch p.Name {
	case "texcoord":
		if p.IsList {
			list := make([]float64, len(f.TexCoords))
			for i, t := range f.TexCoords {
				list[i] = float64(t)
			}
			return schema.Value{List: list}
		}
	case "texnumber":
		if f.MaterialIndex != nil {
			return schema.Value{Scalar: float64(*f.MaterialIndex)}
		}
	}
	return schema.Value{}
}

// channelValue denormalizes a [0,1] channel for the property's type.
func channelValue(t schema.ScalarType, c float32) float64 {
	if t.IsFloat() {
		return float64(c)
	}
	return math.Round(float64(c) * 255)
}
