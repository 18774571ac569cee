package formats

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/samber/lo"

	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/scene"
)

// Generator is recorded in the asset block of exported documents.
const Generator = "cloudlabel"

// SceneEncoder serializes a finished scene document.
type SceneEncoder interface {
	EncodeScene(w io.Writer, doc *gltf.Document) error
}

// GLTFEncoder is the default SceneEncoder.
type GLTFEncoder struct {
	// JSON selects the text container instead of the binary one.
	JSON bool
}

// EncodeScene implements SceneEncoder.
func (e GLTFEncoder) EncodeScene(w io.Writer, doc *gltf.Document) error {
	enc := gltf.NewEncoder(w)
	enc.AsBinary = !e.JSON
	return enc.Encode(doc)
}

// GLBOptions controls mesh export.
type GLBOptions struct {
	// JSON writes the text container with buffers embedded as data URIs.
	JSON bool
	// Compact drops buffer views nothing references and merges all
	// buffers into one. Binary output always merges when it is safe to.
	Compact bool
	// Encoder overrides the final serialization step.
	Encoder SceneEncoder
}

// EncodeGLB writes the document's labels into a clone of the source scene
// and serializes the clone. The source scene is never modified.
//
// Mesh nodes of the source and of the clone are paired by traversal
// position; the source node's identity selects its interaction range and
// the clone node at the same position receives that range's labels.
func EncodeGLB(sc *scene.Scene, im *scene.InteractionMap, points []document.Point, faces []document.Face, labels []document.Label, meta document.Metadata, opts GLBOptions) ([]byte, error) {
	if sc == nil {
		return nil, fmt.Errorf("%w: no scene handle", ErrMissingContext)
	}
	if im == nil {
		return nil, fmt.Errorf("%w: no interaction map", ErrMissingContext)
	}

	originals := sc.MeshNodes()
	clone, err := sc.Clone()
	if err != nil {
		return nil, err
	}
	clones := clone.MeshNodes()
	if len(originals) != len(clones) {
		return nil, fmt.Errorf("%w: source has %d mesh nodes, clone has %d", ErrStructuralMismatch, len(originals), len(clones))
	}

	ranges := make([]scene.NodeRange, len(originals))
	for i, o := range originals {
		r, ok := im.Lookup(o.ID)
		if !ok {
			return nil, fmt.Errorf("%w: node %d (%q) has no interaction range", ErrStructuralMismatch, o.Index, o.Node.Name)
		}
		ranges[i] = r
	}

	doc := clone.Document()
	unshareMeshes(doc, clones)
	stats := document.ComputeStatistics(points, faces)

	for i, cn := range clones {
		r := ranges[i]
		writePointLabels(doc, cn, r.Points, points)

		faceLabels := make([]int, r.Faces.Len())
		for j := range faceLabels {
			if g := r.Faces.Start + j; g < len(faces) {
				faceLabels[j] = document.NormalizeLabel(faces[g].LabelID)
			}
		}

		bag := map[string]any{KeyFaceLabels: faceLabels}
		if i == 0 {
			bag[KeyLabelDefinitions] = labelDefinitionsValue(labels, stats)
			bag[KeyAnnotationVersion] = AnnotationVersion
			if meta.Header != nil {
				bag[KeyOriginalHeader] = meta.Header.String()
			}
			if meta.Units != "" {
				bag[KeyUnits] = meta.Units
			}
			if meta.SourceFormat != document.FormatUnknown {
				bag[KeySourceFormat] = sourceFormatValue(meta.SourceFormat)
			}
		}
		cn.Node.Extras = annotatedExtras(cn.Node.Extras, bag)
	}

	if opts.Compact || !opts.JSON {
		compactBuffers(doc)
	}
	if opts.JSON {
		embedBuffers(doc)
	}
	doc.Asset.Generator = Generator
	if doc.Asset.Version == "" {
		doc.Asset.Version = "2.0"
	}

	enc := opts.Encoder
	if enc == nil {
		enc = GLTFEncoder{JSON: opts.JSON}
	}
	var buf bytes.Buffer
	if err := enc.EncodeScene(&buf, doc); err != nil {
		return nil, fmt.Errorf("encoding scene: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeGLBFile encodes and writes a mesh file.
func EncodeGLBFile(path string, sc *scene.Scene, im *scene.InteractionMap, points []document.Point, faces []document.Face, labels []document.Label, meta document.Metadata, opts GLBOptions) error {
	data, err := EncodeGLB(sc, im, points, faces, labels, meta, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing mesh file: %w", err)
	}
	return nil
}

// unshareMeshes gives every mesh node its own mesh, so per-node label
// attributes never leak into another instance of the same mesh.
func unshareMeshes(doc *gltf.Document, nodes []scene.MeshNode) {
	seen := make(map[int]bool)
	for i := range nodes {
		n := nodes[i].Node
		idx := *n.Mesh
		if !seen[idx] {
			seen[idx] = true
			continue
		}
		src := doc.Meshes[idx]
		cp := *src
		cp.Primitives = make([]*gltf.Primitive, len(src.Primitives))
		for j, p := range src.Primitives {
			if p == nil {
				continue
			}
			pc := *p
			pc.Attributes = make(map[string]int, len(p.Attributes))
			for k, v := range p.Attributes {
				pc.Attributes[k] = v
			}
			cp.Primitives[j] = &pc
		}
		doc.Meshes = append(doc.Meshes, &cp)
		n.Mesh = gltf.Index(len(doc.Meshes) - 1)
		nodes[i].Mesh = &cp
	}
}

// writePointLabels attaches a label attribute to each primitive of a clone
// node, sized to the primitive's current vertex count. Vertices past the
// node's recorded range stay zero.
func writePointLabels(doc *gltf.Document, mn scene.MeshNode, rng scene.Range, points []document.Point) {
	offset := 0
	for _, prim := range mn.Mesh.Primitives {
		if prim == nil {
			continue
		}
		posIdx, ok := prim.Attributes[AttrPosition]
		if !ok || posIdx < 0 || posIdx >= len(doc.Accessors) {
			continue
		}
		count := doc.Accessors[posIdx].Count

		data := make([]float32, count)
		for j := range data {
			g := rng.Start + offset + j
			if g < rng.End && g < len(points) {
				data[j] = float32(document.NormalizeLabel(points[g].LabelID))
			}
		}
		idx := modeler.WriteAccessor(doc, gltf.TargetArrayBuffer, data)
		if prev, ok := prim.Attributes[AttrLabel]; ok && prev >= 0 && prev < idx && accessorRefs(doc)[prev] == 1 {
			// Take over the previous label accessor's slot; its buffer
			// view is left unreferenced for compaction to drop.
			doc.Accessors[prev] = doc.Accessors[idx]
			doc.Accessors = doc.Accessors[:idx]
			idx = prev
		}
		prim.Attributes[AttrLabel] = idx
		offset += count
	}
}

// accessorRefs counts the references to each accessor from meshes, skins
// and animations.
func accessorRefs(doc *gltf.Document) map[int]int {
	refs := make(map[int]int)
	for _, m := range doc.Meshes {
		if m == nil {
			continue
		}
		for _, p := range m.Primitives {
			if p == nil {
				continue
			}
			for _, a := range p.Attributes {
				refs[a]++
			}
			if p.Indices != nil {
				refs[*p.Indices]++
			}
			for _, t := range p.Targets {
				for _, a := range t {
					refs[a]++
				}
			}
		}
	}
	for _, sk := range doc.Skins {
		if sk != nil && sk.InverseBindMatrices != nil {
			refs[*sk.InverseBindMatrices]++
		}
	}
	for _, an := range doc.Animations {
		if an == nil {
			continue
		}
		for _, s := range an.Samplers {
			if s != nil {
				refs[s.Input]++
				refs[s.Output]++
			}
		}
	}
	return refs
}

// compactBuffers rewrites every referenced buffer view into a single
// buffer, 4-byte aligned, and drops the rest. Documents whose views are
// referenced from places this function cannot remap are left alone.
func compactBuffers(doc *gltf.Document) {
	for _, ext := range unsupportedExtensions {
		if lo.Contains(doc.ExtensionsUsed, ext) {
			return
		}
	}
	for _, a := range doc.Accessors {
		if a != nil && a.Sparse != nil {
			return
		}
	}
	for _, b := range doc.Buffers {
		if b != nil && len(b.Data) < b.ByteLength {
			return
		}
	}

	used := make(map[int]bool)
	for _, a := range doc.Accessors {
		if a != nil && a.BufferView != nil {
			used[*a.BufferView] = true
		}
	}
	for _, img := range doc.Images {
		if img != nil && img.BufferView != nil {
			used[*img.BufferView] = true
		}
	}

	var data []byte
	remap := make(map[int]int)
	views := make([]*gltf.BufferView, 0, len(used))
	for i, bv := range doc.BufferViews {
		if bv == nil || !used[i] || bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) {
			continue
		}
		src := doc.Buffers[bv.Buffer].Data
		end := bv.ByteOffset + bv.ByteLength
		if bv.ByteOffset < 0 || end > len(src) {
			return
		}
		for len(data)%4 != 0 {
			data = append(data, 0)
		}
		nv := *bv
		nv.Buffer = 0
		nv.ByteOffset = len(data)
		data = append(data, src[bv.ByteOffset:end]...)
		remap[i] = len(views)
		views = append(views, &nv)
	}
	for len(data)%4 != 0 {
		data = append(data, 0)
	}

	for _, a := range doc.Accessors {
		if a != nil && a.BufferView != nil {
			a.BufferView = gltf.Index(remap[*a.BufferView])
		}
	}
	for i, img := range doc.Images {
		if img != nil && img.BufferView != nil {
			cp := *img
			cp.BufferView = gltf.Index(remap[*img.BufferView])
			doc.Images[i] = &cp
		}
	}
	doc.BufferViews = views
	doc.Buffers = nil
	if len(data) > 0 {
		doc.Buffers = []*gltf.Buffer{{ByteLength: len(data), Data: data}}
	}
}

// embedBuffers turns in-memory buffers into data URIs for the text
// container.
func embedBuffers(doc *gltf.Document) {
	for _, b := range doc.Buffers {
		if b == nil || len(b.Data) == 0 {
			continue
		}
		if b.URI != "" && !b.IsEmbeddedResource() {
			continue
		}
		b.URI = "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(b.Data)
		b.ByteLength = len(b.Data)
	}
}
