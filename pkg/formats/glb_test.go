package formats

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/scene"
)

// captureEncoder keeps the finished document instead of serializing it.
type captureEncoder struct {
	doc *gltf.Document
}

func (c *captureEncoder) EncodeScene(w io.Writer, doc *gltf.Document) error {
	c.doc = doc
	return nil
}

type failingEncoder struct{}

func (failingEncoder) EncodeScene(io.Writer, *gltf.Document) error {
	return errors.New("disk full")
}

// makeTestMesh writes a mesh of count vertices laid out along x and the
// given triangle indices.
func makeTestMesh(doc *gltf.Document, name string, count int, indices []uint32) int {
	positions := make([][3]float32, count)
	for i := range positions {
		positions[i] = [3]float32{float32(i), 0, 0}
	}
	prim := &gltf.Primitive{
		Mode:       gltf.PrimitiveTriangles,
		Attributes: map[string]int{AttrPosition: modeler.WritePosition(doc, positions)},
		Indices:    gltf.Index(modeler.WriteIndices(doc, indices)),
	}
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: name, Primitives: []*gltf.Primitive{prim}})
	return len(doc.Meshes) - 1
}

// createTestScene builds root(mesh 3 verts, 1 tri) -> child(mesh 4 verts,
// 2 tris, translated +10 on x). The child's annotations are flattened onto
// its top-level extras, the root's are nested.
func createTestScene() *gltf.Document {
	doc := gltf.NewDocument()
	m0 := makeTestMesh(doc, "tri", 3, []uint32{0, 1, 2})
	m1 := makeTestMesh(doc, "quad", 4, []uint32{0, 1, 2, 0, 2, 3})

	doc.Nodes = []*gltf.Node{
		{
			Name:     "root",
			Mesh:     gltf.Index(m0),
			Children: []int{1},
			Extras: map[string]any{
				ExtrasKey: map[string]any{
					KeyLabelDefinitions: []any{
						map[string]any{"id": float64(3), "name": "wall", "color": "#ff0000", "visible": false},
					},
				},
			},
		},
		{
			Name:        "child",
			Mesh:        gltf.Index(m1),
			Translation: [3]float64{10, 0, 0},
			Extras: map[string]any{
				"custom":      "keep",
				KeyFaceLabels: []any{float64(3), float64(0)},
			},
		},
	}
	doc.Scenes[0].Nodes = []int{0}
	return doc
}

func encodeTestGLB(t *testing.T, doc *gltf.Document) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := (GLTFEncoder{}).EncodeScene(&buf, doc); err != nil {
		t.Fatalf("encoding test scene: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeGLB_Traversal(t *testing.T) {
	p, err := DecodeGLB(encodeTestGLB(t, createTestScene()), nil)
	if err != nil {
		t.Fatalf("DecodeGLB failed: %v", err)
	}

	if p.Metadata.SourceFormat != document.FormatGLB {
		t.Errorf("expected glb source, got %q", p.Metadata.SourceFormat)
	}
	if len(p.Points) != 7 {
		t.Fatalf("expected 7 points, got %d", len(p.Points))
	}
	if len(p.Faces) != 3 {
		t.Fatalf("expected 3 faces, got %d", len(p.Faces))
	}

	if x := p.Points[4].Position[0]; x != 11 {
		t.Errorf("expected child vertex at x=11 in world space, got %v", x)
	}
	if got := p.Faces[2].Indices; got[0] != 3 || got[1] != 5 || got[2] != 6 {
		t.Errorf("expected child face indices offset by 3, got %v", got)
	}
	if p.Faces[0].LabelID != 0 || p.Faces[1].LabelID != 3 || p.Faces[2].LabelID != 0 {
		t.Errorf("unexpected face labels %d %d %d", p.Faces[0].LabelID, p.Faces[1].LabelID, p.Faces[2].LabelID)
	}

	entries := p.Interaction.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 interaction entries, got %d", len(entries))
	}
	if entries[1].Points != (scene.Range{Start: 3, End: 7}) || entries[1].Faces != (scene.Range{Start: 1, End: 3}) {
		t.Errorf("unexpected child ranges %+v", entries[1])
	}
	if err := p.Interaction.Validate(len(p.Points), len(p.Faces)); err != nil {
		t.Errorf("interaction map does not partition the document: %v", err)
	}
}

func TestDecodeGLB_LabelDefinitions(t *testing.T) {
	p, err := DecodeGLB(encodeTestGLB(t, createTestScene()), nil)
	if err != nil {
		t.Fatalf("DecodeGLB failed: %v", err)
	}

	if len(p.Labels) != 1 {
		t.Fatalf("expected 1 label, got %+v", p.Labels)
	}
	l := p.Labels[0]
	if l.ID != 3 || l.Name != "wall" || l.Visible {
		t.Errorf("unexpected label %+v", l)
	}
	if l.Color != (document.Color{R: 1}) {
		t.Errorf("expected red, got %+v", l.Color)
	}
}

func TestDecodeGLB_DuplicateLabelDefinitions(t *testing.T) {
	doc := createTestScene()
	bag := doc.Nodes[0].Extras.(map[string]any)[ExtrasKey].(map[string]any)
	bag[KeyLabelDefinitions] = append(bag[KeyLabelDefinitions].([]any),
		map[string]any{"id": float64(3), "name": "floor", "color": "#00ff00"})

	p, err := DecodeGLB(encodeTestGLB(t, doc), nil)
	if err != nil {
		t.Fatalf("DecodeGLB failed: %v", err)
	}
	if len(p.Labels) != 1 || p.Labels[0].Name != "wall" {
		t.Errorf("labels = %+v, want only the first definition of 3", p.Labels)
	}
}

func TestDecodeGLB_ShortFaceLabels(t *testing.T) {
	doc := createTestScene()
	doc.Nodes[1].Extras.(map[string]any)[KeyFaceLabels] = []any{float64(3)}

	p, err := DecodeGLB(encodeTestGLB(t, doc), nil)
	if err != nil {
		t.Fatalf("DecodeGLB failed: %v", err)
	}
	if len(p.Faces) != 3 {
		t.Fatalf("expected 3 faces, got %d", len(p.Faces))
	}
	if p.Faces[1].LabelID != 3 {
		t.Errorf("face 1 label = %d, want 3", p.Faces[1].LabelID)
	}
	if p.Faces[2].LabelID != document.NoLabel {
		t.Errorf("face past the labels array = %d, want unlabeled", p.Faces[2].LabelID)
	}
	if !p.Statistics.Consistent(len(p.Points), len(p.Faces)) {
		t.Errorf("inconsistent statistics %+v", p.Statistics)
	}
	if p.Statistics.FaceLabeledCount != 1 || p.Statistics.FaceUnlabeledCount != 2 {
		t.Errorf("face counts %d/%d, want 1/2", p.Statistics.FaceLabeledCount, p.Statistics.FaceUnlabeledCount)
	}

	capture := &captureEncoder{}
	if _, err := EncodeGLB(p.Scene, p.Interaction, p.Points, p.Faces, p.Labels, p.Metadata, GLBOptions{Encoder: capture}); err != nil {
		t.Fatalf("EncodeGLB failed: %v", err)
	}
	if got := faceLabelsOf(t, capture.doc); len(got) != 2 || len(got[1]) != 2 {
		t.Errorf("exported faceLabels %v, want the child's array padded to 2", got)
	}
}

func TestDecodeGLB_NormalizesExtras(t *testing.T) {
	p, err := DecodeGLB(encodeTestGLB(t, createTestScene()), nil)
	if err != nil {
		t.Fatalf("DecodeGLB failed: %v", err)
	}

	child := p.Scene.Document().Nodes[1]
	top, ok := child.Extras.(map[string]any)
	if !ok {
		t.Fatalf("expected map extras, got %T", child.Extras)
	}
	if _, flat := top[KeyFaceLabels]; flat {
		t.Error("faceLabels should be moved off the top level")
	}
	if top["custom"] != "keep" {
		t.Errorf("unrelated keys should stay, got %v", top)
	}
	bag, ok := top[ExtrasKey].(map[string]any)
	if !ok || bag[KeyFaceLabels] == nil {
		t.Errorf("expected nested faceLabels, got %v", top)
	}
}

func TestDecodeGLB_Errors(t *testing.T) {
	_, err := DecodeGLB([]byte("definitely not a scene"), nil)
	if !errors.Is(err, ErrInvalidGLTF) || !errors.Is(err, ErrFormat) {
		t.Errorf("expected invalid glTF format error, got %v", err)
	}

	doc := createTestScene()
	doc.ExtensionsUsed = []string{"KHR_draco_mesh_compression"}
	doc.ExtensionsRequired = []string{"KHR_draco_mesh_compression"}
	sc, err := scene.New(doc)
	if err != nil {
		t.Fatalf("scene.New failed: %v", err)
	}
	if _, err := extractScene(sc); !errors.Is(err, ErrUnsupportedExtension) {
		t.Errorf("expected unsupported extension, got %v", err)
	}

	doc = createTestScene()
	delete(doc.Meshes[0].Primitives[0].Attributes, AttrPosition)
	sc, _ = scene.New(doc)
	if _, err := extractScene(sc); !errors.Is(err, ErrInvalidGLTF) {
		t.Errorf("expected invalid glTF for missing positions, got %v", err)
	}
}

// faceLabelsOf collects each mesh node's exported faceLabels in traversal
// order.
func faceLabelsOf(t *testing.T, doc *gltf.Document) [][]int {
	t.Helper()
	sc, err := scene.New(doc)
	if err != nil {
		t.Fatalf("scene.New failed: %v", err)
	}
	var out [][]int
	for _, mn := range sc.MeshNodes() {
		top, _ := mn.Node.Extras.(map[string]any)
		bag, _ := top[ExtrasKey].(map[string]any)
		labels, ok := bag[KeyFaceLabels].([]int)
		if !ok {
			t.Fatalf("node %q has no faceLabels: %v", mn.Node.Name, mn.Node.Extras)
		}
		out = append(out, labels)
	}
	return out
}

func TestEncodeGLB_FaceLabelsConcatenate(t *testing.T) {
	p, err := DecodeGLB(encodeTestGLB(t, createTestScene()), nil)
	if err != nil {
		t.Fatalf("DecodeGLB failed: %v", err)
	}
	p.Faces[0].LabelID = 7
	p.Faces[1].LabelID = 0
	p.Faces[2].LabelID = 3

	capture := &captureEncoder{}
	_, err = EncodeGLB(p.Scene, p.Interaction, p.Points, p.Faces, p.Labels, p.Metadata, GLBOptions{Encoder: capture})
	if err != nil {
		t.Fatalf("EncodeGLB failed: %v", err)
	}

	var got []int
	for _, labels := range faceLabelsOf(t, capture.doc) {
		got = append(got, labels...)
	}
	want := []int{7, 0, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("face %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	if capture.doc.Asset.Generator != Generator {
		t.Errorf("expected generator %q, got %q", Generator, capture.doc.Asset.Generator)
	}
}

func TestEncodeGLB_DoesNotMutateSource(t *testing.T) {
	p, err := DecodeGLB(encodeTestGLB(t, createTestScene()), nil)
	if err != nil {
		t.Fatalf("DecodeGLB failed: %v", err)
	}
	src := p.Scene.Document()
	before := len(src.Accessors)

	p.Points[0].LabelID = 2
	if _, err := EncodeGLB(p.Scene, p.Interaction, p.Points, p.Faces, p.Labels, p.Metadata, GLBOptions{}); err != nil {
		t.Fatalf("EncodeGLB failed: %v", err)
	}

	if len(src.Accessors) != before {
		t.Errorf("source accessors changed: %d -> %d", before, len(src.Accessors))
	}
	for _, m := range src.Meshes {
		for _, prim := range m.Primitives {
			if _, ok := prim.Attributes[AttrLabel]; ok {
				t.Error("label attribute leaked into the source scene")
			}
		}
	}
	if _, ok := src.Nodes[0].Extras.(map[string]any)[ExtrasKey].(map[string]any)[KeyFaceLabels]; ok {
		t.Error("face labels leaked into the source root node")
	}
}

func TestGLB_RoundTrip(t *testing.T) {
	first, err := DecodeGLB(encodeTestGLB(t, createTestScene()), nil)
	if err != nil {
		t.Fatalf("DecodeGLB failed: %v", err)
	}
	first.Points[1].LabelID = 3
	first.Points[5].LabelID = 4
	first.Faces[2].LabelID = 4
	first.Labels = document.CompleteLabels(first.Labels, first.Points, first.Faces)

	out, err := EncodeGLB(first.Scene, first.Interaction, first.Points, first.Faces, first.Labels, first.Metadata, GLBOptions{})
	if err != nil {
		t.Fatalf("EncodeGLB failed: %v", err)
	}
	second, err := DecodeGLB(out, nil)
	if err != nil {
		t.Fatalf("second DecodeGLB failed: %v", err)
	}

	if len(second.Points) != len(first.Points) || len(second.Faces) != len(first.Faces) {
		t.Fatalf("geometry changed: %d points, %d faces", len(second.Points), len(second.Faces))
	}
	for i := range first.Points {
		if first.Points[i].LabelID != second.Points[i].LabelID {
			t.Errorf("point %d: label %d != %d", i, first.Points[i].LabelID, second.Points[i].LabelID)
		}
		if first.Points[i].Position != second.Points[i].Position {
			t.Errorf("point %d moved: %v -> %v", i, first.Points[i].Position, second.Points[i].Position)
		}
	}
	for i := range first.Faces {
		if first.Faces[i].LabelID != second.Faces[i].LabelID {
			t.Errorf("face %d: label %d != %d", i, first.Faces[i].LabelID, second.Faces[i].LabelID)
		}
	}

	if len(second.Labels) != 2 {
		t.Fatalf("expected 2 labels, got %+v", second.Labels)
	}
	wall := second.Labels[0]
	if wall.ID != 3 || wall.Visible || wall.Counts == nil || wall.Counts.Points != 1 || wall.Counts.Faces != 1 {
		t.Errorf("unexpected wall label %+v (counts %+v)", wall, wall.Counts)
	}
}

func TestGLB_RepeatedRoundTripsDoNotGrow(t *testing.T) {
	data := encodeTestGLB(t, createTestScene())
	var sizes, accessors []int
	for i := 0; i < 3; i++ {
		p, err := DecodeGLB(data, nil)
		if err != nil {
			t.Fatalf("pass %d: DecodeGLB failed: %v", i, err)
		}
		p.Points[i].LabelID = 3
		data, err = EncodeGLB(p.Scene, p.Interaction, p.Points, p.Faces, p.Labels, p.Metadata, GLBOptions{})
		if err != nil {
			t.Fatalf("pass %d: EncodeGLB failed: %v", i, err)
		}
		out, err := DecodeGLB(data, nil)
		if err != nil {
			t.Fatalf("pass %d: decoding output failed: %v", i, err)
		}
		if out.Points[i].LabelID != 3 {
			t.Errorf("pass %d: label not written", i)
		}
		sizes = append(sizes, len(data))
		accessors = append(accessors, len(out.Scene.Document().Accessors))
	}

	// Two meshes: position, indices and label accessors each.
	for i, n := range accessors {
		if n != 6 {
			t.Errorf("pass %d: %d accessors, want 6", i, n)
		}
	}
	if sizes[1] != sizes[2] {
		t.Errorf("output grew between passes: %v", sizes)
	}
}

func TestGLB_RoundTripJSON(t *testing.T) {
	first, err := DecodeGLB(encodeTestGLB(t, createTestScene()), nil)
	if err != nil {
		t.Fatalf("DecodeGLB failed: %v", err)
	}

	out, err := EncodeGLB(first.Scene, first.Interaction, first.Points, first.Faces, first.Labels, first.Metadata, GLBOptions{JSON: true, Compact: true})
	if err != nil {
		t.Fatalf("EncodeGLB failed: %v", err)
	}
	if IsGLB(out) {
		t.Error("expected the text container")
	}
	second, err := DecodeGLB(out, nil)
	if err != nil {
		t.Fatalf("DecodeGLB of text output failed: %v", err)
	}
	if second.Metadata.SourceFormat != document.FormatGLTF {
		t.Errorf("expected gltf source, got %q", second.Metadata.SourceFormat)
	}
	if len(second.Points) != 7 || second.Faces[1].LabelID != 3 {
		t.Errorf("unexpected decode of text output: %d points, face 1 label %d", len(second.Points), second.Faces[1].LabelID)
	}
}

func TestEncodeGLB_Errors(t *testing.T) {
	p, err := DecodeGLB(encodeTestGLB(t, createTestScene()), nil)
	if err != nil {
		t.Fatalf("DecodeGLB failed: %v", err)
	}

	if _, err := EncodeGLB(nil, p.Interaction, p.Points, p.Faces, p.Labels, p.Metadata, GLBOptions{}); !errors.Is(err, ErrMissingContext) {
		t.Errorf("expected missing context without scene, got %v", err)
	}
	if _, err := EncodeGLB(p.Scene, nil, p.Points, p.Faces, p.Labels, p.Metadata, GLBOptions{}); !errors.Is(err, ErrMissingContext) {
		t.Errorf("expected missing context without interaction map, got %v", err)
	}
	if _, err := EncodeGLB(p.Scene, scene.NewInteractionMap(), p.Points, p.Faces, p.Labels, p.Metadata, GLBOptions{}); !errors.Is(err, ErrStructuralMismatch) {
		t.Errorf("expected structural mismatch for unknown nodes, got %v", err)
	}
	if _, err := EncodeGLB(p.Scene, p.Interaction, p.Points, p.Faces, p.Labels, p.Metadata, GLBOptions{Encoder: failingEncoder{}}); err == nil {
		t.Error("expected encoder failure to surface")
	}
}

func TestEncodeGLB_SharedMesh(t *testing.T) {
	doc := gltf.NewDocument()
	m := makeTestMesh(doc, "tri", 3, []uint32{0, 1, 2})
	doc.Nodes = []*gltf.Node{
		{Name: "a", Mesh: gltf.Index(m)},
		{Name: "b", Mesh: gltf.Index(m), Translation: [3]float64{0, 5, 0}},
	}
	doc.Scenes[0].Nodes = []int{0, 1}

	p, err := DecodeGLB(encodeTestGLB(t, doc), nil)
	if err != nil {
		t.Fatalf("DecodeGLB failed: %v", err)
	}
	if len(p.Points) != 6 {
		t.Fatalf("expected each instance to contribute points, got %d", len(p.Points))
	}
	p.Points[4].LabelID = 9

	out, err := EncodeGLB(p.Scene, p.Interaction, p.Points, p.Faces, p.Labels, p.Metadata, GLBOptions{})
	if err != nil {
		t.Fatalf("EncodeGLB failed: %v", err)
	}
	second, err := DecodeGLB(out, nil)
	if err != nil {
		t.Fatalf("second DecodeGLB failed: %v", err)
	}
	if second.Points[1].LabelID != 0 || second.Points[4].LabelID != 9 {
		t.Errorf("instance labels bled together: %d %d", second.Points[1].LabelID, second.Points[4].LabelID)
	}
}

func TestBuildScene(t *testing.T) {
	red := document.Color{R: 1}
	points := []document.Point{
		{Position: [3]float64{0, 0, 0}, LabelID: 1},
		{Position: [3]float64{1, 0, 0}},
		{Position: [3]float64{1, 1, 0}},
		{Position: [3]float64{0, 1, 0}, LabelID: 2},
	}
	faces := []document.Face{
		{Indices: []int{0, 1, 2, 3}, LabelID: 5, Color: &red},
		{Indices: []int{0, 1, 99}, LabelID: 6},
	}

	sc, im, tris, err := BuildScene(points, faces)
	if err != nil {
		t.Fatalf("BuildScene failed: %v", err)
	}
	if len(tris) != 2 {
		t.Fatalf("expected the quad as 2 triangles and the broken face dropped, got %d", len(tris))
	}
	for _, tri := range tris {
		if tri.LabelID != 5 {
			t.Errorf("triangle should inherit label 5, got %d", tri.LabelID)
		}
	}
	if im.TotalPoints() != 4 || im.TotalFaces() != 2 {
		t.Errorf("unexpected interaction totals %d/%d", im.TotalPoints(), im.TotalFaces())
	}

	out, err := EncodeGLB(sc, im, points, tris, nil, document.Metadata{SourceFormat: document.FormatPLY}, GLBOptions{})
	if err != nil {
		t.Fatalf("EncodeGLB failed: %v", err)
	}
	p, err := DecodeGLB(out, nil)
	if err != nil {
		t.Fatalf("DecodeGLB failed: %v", err)
	}
	if len(p.Points) != 4 || len(p.Faces) != 2 {
		t.Fatalf("expected 4 points and 2 faces, got %d and %d", len(p.Points), len(p.Faces))
	}
	if p.Points[0].LabelID != 1 || p.Points[3].LabelID != 2 || p.Faces[1].LabelID != 5 {
		t.Errorf("labels lost: %d %d %d", p.Points[0].LabelID, p.Points[3].LabelID, p.Faces[1].LabelID)
	}
	if p.Points[2].Position != [3]float64{1, 1, 0} {
		t.Errorf("unexpected position %v", p.Points[2].Position)
	}
}

func TestBuildScene_PointsOnly(t *testing.T) {
	points := []document.Point{{Position: [3]float64{1, 2, 3}, LabelID: 4}}
	sc, im, tris, err := BuildScene(points, nil)
	if err != nil {
		t.Fatalf("BuildScene failed: %v", err)
	}
	if len(tris) != 0 {
		t.Errorf("expected no faces, got %d", len(tris))
	}

	out, err := EncodeGLB(sc, im, points, tris, nil, document.Metadata{}, GLBOptions{})
	if err != nil {
		t.Fatalf("EncodeGLB failed: %v", err)
	}
	p, err := DecodeGLB(out, nil)
	if err != nil {
		t.Fatalf("DecodeGLB failed: %v", err)
	}
	if len(p.Points) != 1 || p.Points[0].LabelID != 4 || len(p.Faces) != 0 {
		t.Errorf("unexpected payload: %d points, %d faces", len(p.Points), len(p.Faces))
	}
}
