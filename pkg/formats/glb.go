package formats

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing/fstest"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/samber/lo"

	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/scene"
)

// GLB container magic.
const glbMagic = "glTF"

// Vertex attribute names.
const (
	AttrPosition = "POSITION"
	AttrNormal   = "NORMAL"
	AttrTexCoord = "TEXCOORD_0"
	AttrColor    = "COLOR_0"
	// AttrLabel is the per-vertex label attribute written on export.
	AttrLabel = "_LABEL"
)

// Extensions whose buffers cannot be read without a decoder this package
// does not have.
var unsupportedExtensions = []string{
	"KHR_draco_mesh_compression",
	"EXT_meshopt_compression",
	"KHR_meshopt_compression",
}

// IsGLB reports whether data starts with the binary container magic.
func IsGLB(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == glbMagic
}

// DecodeGLB decodes a binary or JSON scene document into a payload. assets
// resolves external buffers and images by relative URI and may be nil.
// The returned payload owns the decoded scene; it is never shared.
func DecodeGLB(data []byte, assets map[string][]byte) (*document.Payload, error) {
	doc := new(gltf.Document)
	var dec *gltf.Decoder
	if len(assets) > 0 {
		fsys := make(fstest.MapFS, len(assets))
		for name, b := range assets {
			fsys[filepath.ToSlash(name)] = &fstest.MapFile{Data: b}
		}
		dec = gltf.NewDecoderFS(bytes.NewReader(data), fsys)
	} else {
		dec = gltf.NewDecoder(bytes.NewReader(data))
	}
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGLTF, err)
	}

	sc, err := scene.New(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGLTF, err)
	}
	p, err := extractScene(sc)
	if err != nil {
		return nil, err
	}
	p.Metadata.SourceFormat = document.FormatGLTF
	if IsGLB(data) {
		p.Metadata.SourceFormat = document.FormatGLB
	}
	p.Assets = assets
	return p, nil
}

// DecodeGLBFile reads a scene document from disk. External resources are
// resolved relative to the file's directory.
func DecodeGLBFile(path string) (*document.Payload, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGLTF, err)
	}
	sc, err := scene.New(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGLTF, err)
	}
	p, err := extractScene(sc)
	if err != nil {
		return nil, err
	}
	p.Metadata.SourceFormat = document.FormatGLTF
	if f, err := os.Open(path); err == nil {
		var magic [4]byte
		if n, _ := f.Read(magic[:]); n == 4 && IsGLB(magic[:]) {
			p.Metadata.SourceFormat = document.FormatGLB
		}
		f.Close()
	}
	p.Metadata.SourceName = path
	return p, nil
}

// extractScene flattens every mesh node into the global point and face
// sequences in traversal order and records each node's ranges.
func extractScene(sc *scene.Scene) (*document.Payload, error) {
	doc := sc.Document()
	for _, ext := range unsupportedExtensions {
		if lo.Contains(doc.ExtensionsRequired, ext) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedExtension, ext)
		}
	}

	bags := make(map[int]map[string]any, len(doc.Nodes))
	for i, n := range doc.Nodes {
		if n != nil {
			bags[i] = normalizeExtras(n)
		}
	}

	p := &document.Payload{
		Scene:       sc,
		Interaction: scene.NewInteractionMap(),
	}
	var (
		labels     []document.Label
		haveLabels bool
		headerText string
	)

	for _, mn := range sc.MeshNodes() {
		pointBase := len(p.Points)
		faceBase := len(p.Faces)

		for _, prim := range mn.Mesh.Primitives {
			if prim == nil {
				continue
			}
			if err := extractPrimitive(doc, prim, mn, p); err != nil {
				return nil, fmt.Errorf("node %d (%q): %w", mn.Index, mn.Node.Name, err)
			}
		}

		ann := readAnnotations(bags[mn.Index])
		localFaces := p.Faces[faceBase:]
		for i := range localFaces {
			if i >= len(ann.faceLabels) {
				break
			}
			localFaces[i].LabelID = ann.faceLabels[i]
		}
		if ann.hasLabels && !haveLabels {
			labels, haveLabels = ann.labels, true
		}
		if ann.header != "" && headerText == "" {
			headerText = ann.header
		}
		if ann.units != "" && p.Metadata.Units == "" {
			p.Metadata.Units = ann.units
		}

		p.Interaction.Add(mn.ID, len(p.Points)-pointBase, len(p.Faces)-faceBase)
	}

	if headerText != "" {
		if h, err := ParsePLYHeader(headerText); err == nil {
			p.Metadata.Header = h
		}
	}
	p.Labels = document.CompleteLabels(labels, p.Points, p.Faces)
	p.Statistics = document.ComputeStatistics(p.Points, p.Faces)
	return p, nil
}

// extractPrimitive appends one primitive's vertices and triangles.
func extractPrimitive(doc *gltf.Document, prim *gltf.Primitive, mn scene.MeshNode, p *document.Payload) error {
	for _, ext := range unsupportedExtensions {
		if _, ok := prim.Extensions[ext]; ok {
			return fmt.Errorf("%w: %s", ErrUnsupportedExtension, ext)
		}
	}

	posIdx, ok := prim.Attributes[AttrPosition]
	if !ok {
		return fmt.Errorf("%w: primitive without %s", ErrInvalidGLTF, AttrPosition)
	}
	acr, err := accessorAt(doc, posIdx)
	if err != nil {
		return err
	}
	positions, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		return fmt.Errorf("%w: reading positions: %v", ErrInvalidGLTF, err)
	}

	var (
		normals [][3]float32
		uvs     [][2]float32
		colors  [][4]uint8
		vlabels []float64
	)
	if idx, ok := prim.Attributes[AttrNormal]; ok {
		if acr, err := accessorAt(doc, idx); err == nil {
			normals, _ = modeler.ReadNormal(doc, acr, nil)
		}
	}
	if idx, ok := prim.Attributes[AttrTexCoord]; ok {
		if acr, err := accessorAt(doc, idx); err == nil {
			uvs, _ = modeler.ReadTextureCoord(doc, acr, nil)
		}
	}
	if idx, ok := prim.Attributes[AttrColor]; ok {
		if acr, err := accessorAt(doc, idx); err == nil {
			colors, _ = modeler.ReadColor(doc, acr, nil)
		}
	}
	if idx, ok := prim.Attributes[AttrLabel]; ok {
		if acr, err := accessorAt(doc, idx); err == nil {
			if raw, err := modeler.ReadAccessor(doc, acr, nil); err == nil {
				vlabels = scalarsOf(raw)
			}
		}
	}

	base := len(p.Points)
	for i, pos := range positions {
		pt := document.Point{
			Position: mn.World.TransformPoint([3]float64{float64(pos[0]), float64(pos[1]), float64(pos[2])}),
			Color:    document.Color{R: 1, G: 1, B: 1},
		}
		if i < len(colors) {
			c := colors[i]
			pt.Color = document.Color{
				R: document.NormalizeChannel(float64(c[0]) / 255),
				G: document.NormalizeChannel(float64(c[1]) / 255),
				B: document.NormalizeChannel(float64(c[2]) / 255),
			}
		}
		if i < len(normals) {
			n := mn.World.TransformNormal([3]float64{float64(normals[i][0]), float64(normals[i][1]), float64(normals[i][2])})
			pt.Normal = &[3]float32{float32(n[0]), float32(n[1]), float32(n[2])}
		}
		if i < len(uvs) {
			uv := uvs[i]
			pt.UV = &uv
		}
		if i < len(vlabels) && vlabels[i] > 0 {
			pt.LabelID = int(vlabels[i])
		}
		p.Points = append(p.Points, pt)
	}

	if prim.Mode != gltf.PrimitiveTriangles {
		return nil
	}

	var indices []uint32
	if prim.Indices != nil {
		acr, err := accessorAt(doc, *prim.Indices)
		if err != nil {
			return err
		}
		if indices, err = modeler.ReadIndices(doc, acr, nil); err != nil {
			return fmt.Errorf("%w: reading indices: %v", ErrInvalidGLTF, err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	var material *int
	if prim.Material != nil {
		m := *prim.Material
		material = &m
	}
	for i := 0; i+2 < len(indices); i += 3 {
		f := document.Face{
			Indices: []int{base + int(indices[i]), base + int(indices[i+1]), base + int(indices[i+2])},
		}
		if material != nil {
			m := *material
			f.MaterialIndex = &m
		}
		p.Faces = append(p.Faces, f)
	}
	return nil
}

func accessorAt(doc *gltf.Document, idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(doc.Accessors) || doc.Accessors[idx] == nil {
		return nil, fmt.Errorf("%w: accessor %d out of range", ErrInvalidGLTF, idx)
	}
	return doc.Accessors[idx], nil
}

// scalarsOf widens a scalar accessor payload.
func scalarsOf(raw any) []float64 {
	switch v := raw.(type) {
	case []float32:
		return widen(v)
	case []uint8:
		return widen(v)
	case []int8:
		return widen(v)
	case []uint16:
		return widen(v)
	case []int16:
		return widen(v)
	case []uint32:
		return widen(v)
	}
	return nil
}

func widen[T float32 | uint8 | int8 | uint16 | int16 | uint32](in []T) []float64 {
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = float64(x)
	}
	return out
}
