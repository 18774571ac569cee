package formats

import (
	"fmt"
	"os"

	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/schema"
)

// Well-known element names.
const (
	VertexElement = "vertex"
	FaceElement   = "face"
)

// Vertex property aliases, in lookup order.
var (
	colorNames = [3][]string{
		{"red", "r", "diffuse_red"},
		{"green", "g", "diffuse_green"},
		{"blue", "b", "diffuse_blue"},
	}
	uvNames = [2][]string{
		{"u", "s", "texture_u"},
		{"v", "t", "texture_v"},
	}
	normalNames    = [3]string{"nx", "ny", "nz"}
	positionNames  = [3]string{"x", "y", "z"}
	faceIndexNames = []string{"vertex_indices", "vertex_index"}
)

// LabelProperty is the per-vertex and per-face label property.
const LabelProperty = "label"

// DecodePLY parses a point-cloud file into a document payload. On error no
// payload is returned.
func DecodePLY(data []byte) (*document.Payload, error) {
	hdr, err := parsePLYHeader(data)
	if err != nil {
		return nil, err
	}

	src := newValueSource(hdr.schema.Encoding, data[hdr.bodyOffset:])
	p := &document.Payload{
		Metadata: document.Metadata{
			SourceFormat: document.FormatPLY,
			Header:       hdr.schema,
			TextureFile:  hdr.textureFile,
		},
	}

	for i := range hdr.schema.Elements {
		el := &hdr.schema.Elements[i]
		rows, err := readElementRows(src, el)
		if err != nil {
			return nil, err
		}
		switch el.Name {
		case VertexElement:
			p.Points = decodeVertices(el, rows)
		case FaceElement:
			p.Faces = decodeFaces(el, rows)
		default:
			p.Metadata.OtherElements = append(p.Metadata.OtherElements, document.ElementData{Name: el.Name, Rows: rows})
		}
	}

	p.Labels = document.CompleteLabels(hdr.labels, p.Points, p.Faces)
	p.Statistics = document.ComputeStatistics(p.Points, p.Faces)
	return p, nil
}

// DecodePLYFile reads and decodes a point-cloud file from disk.
func DecodePLYFile(path string) (*document.Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PLY file: %w", err)
	}
	p, err := DecodePLY(data)
	if err != nil {
		return nil, err
	}
	p.Metadata.SourceName = path
	return p, nil
}

// propertyLookup resolves property names to row positions once per element.
type propertyLookup struct {
	el  *schema.Element
	idx map[string]int
}

func newPropertyLookup(el *schema.Element) propertyLookup {
	return propertyLookup{el: el, idx: el.Index()}
}

// find returns the position of the first alias present, or -1.
func (l propertyLookup) find(names ...string) int {
	for _, n := range names {
		if i, ok := l.idx[n]; ok {
			return i
		}
	}
	return -1
}

func decodeVertices(el *schema.Element, rows [][]schema.Value) []document.Point {
	lk := newPropertyLookup(el)

	var pos, nrm, col [3]int
	for k := 0; k < 3; k++ {
		pos[k] = lk.find(positionNames[k])
		nrm[k] = lk.find(normalNames[k])
		col[k] = lk.find(colorNames[k]...)
	}
	uv := [2]int{lk.find(uvNames[0]...), lk.find(uvNames[1]...)}
	label := lk.find(LabelProperty)

	hasNormal := nrm[0] >= 0 || nrm[1] >= 0 || nrm[2] >= 0
	hasColor := col[0] >= 0 || col[1] >= 0 || col[2] >= 0
	hasUV := uv[0] >= 0 || uv[1] >= 0

	modeled := make(map[int]bool)
	for _, group := range [][]int{pos[:], nrm[:], col[:], uv[:], {label}} {
		for _, i := range group {
			if i >= 0 {
				modeled[i] = true
			}
		}
	}

	points := make([]document.Point, len(rows))
	for r, row := range rows {
		pt := &points[r]
		for k := 0; k < 3; k++ {
			pt.Position[k] = scalarAt(row, pos[k])
		}

		pt.Color = document.Color{R: 1, G: 1, B: 1}
		if hasColor {
			pt.Color = document.Color{
				R: channelAt(row, col[0]),
				G: channelAt(row, col[1]),
				B: channelAt(row, col[2]),
			}
		}
		if hasNormal {
			n := [3]float32{float32(scalarAt(row, nrm[0])), float32(scalarAt(row, nrm[1])), float32(scalarAt(row, nrm[2]))}
			pt.Normal = &n
		}
		if hasUV {
			t := [2]float32{float32(scalarAt(row, uv[0])), float32(scalarAt(row, uv[1]))}
			pt.UV = &t
		}
		if label >= 0 {
			pt.LabelID = document.NormalizeLabel(int(scalarAt(row, label)))
		}

		for i, prop := range el.Properties {
			if modeled[i] {
				continue
			}
			if pt.Extra == nil {
				pt.Extra = make(map[string]schema.Value)
			}
			if _, dup := pt.Extra[prop.Name]; !dup {
				pt.Extra[prop.Name] = row[i]
			}
		}
	}
	return points
}

func decodeFaces(el *schema.Element, rows [][]schema.Value) []document.Face {
	lk := newPropertyLookup(el)
	indices := lk.find(faceIndexNames...)
	label := lk.find(LabelProperty)
	col := [3]int{lk.find(colorNames[0]...), lk.find(colorNames[1]...), lk.find(colorNames[2]...)}
	texcoord := lk.find("texcoord")
	texnumber := lk.find("texnumber")

	faces := make([]document.Face, len(rows))
	for r, row := range rows {
		f := &faces[r]
		if indices >= 0 {
			list := row[indices].List
			f.Indices = make([]int, len(list))
			for i, v := range list {
				f.Indices[i] = int(v)
			}
		}
		if label >= 0 {
			f.LabelID = document.NormalizeLabel(int(scalarAt(row, label)))
		}
		if col[0] >= 0 || col[1] >= 0 || col[2] >= 0 {
			c := document.Color{
				R: channelAt(row, col[0]),
				G: channelAt(row, col[1]),
				B: channelAt(row, col[2]),
			}
			f.Color = &c
		}
		if texcoord >= 0 && el.Properties[texcoord].IsList {
			list := row[texcoord].List
			f.TexCoords = make([]float32, len(list))
			for i, v := range list {
				f.TexCoords[i] = float32(v)
			}
		}
		if texnumber >= 0 {
			m := int(scalarAt(row, texnumber))
			f.MaterialIndex = &m
		}

		for i, prop := range el.Properties {
			if i == indices || i == label {
				continue
			}
			if f.OriginalProperties == nil {
				f.OriginalProperties = make(map[string]schema.Value)
			}
			if _, dup := f.OriginalProperties[prop.Name]; !dup {
				f.OriginalProperties[prop.Name] = row[i].Clone()
			}
		}
	}
	return faces
}

// scalarAt returns the scalar at position i, or zero when the property is
// absent.
func scalarAt(row []schema.Value, i int) float64 {
	if i < 0 || i >= len(row) {
		return 0
	}
	return row[i].Scalar
}

// channelAt normalizes a color channel to [0,1] whatever its declared type:
// values above 1 are byte-range, anything else is already a fraction.
func channelAt(row []schema.Value, i int) float32 {
	if i < 0 {
		return 0
	}
	return document.NormalizeChannel(scalarAt(row, i))
}
