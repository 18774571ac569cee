// Package document holds the annotated-document model shared by the codecs,
// the selection engine and the store: points, faces, labels, statistics and
// the payload a decoder hands to the store.
//
// Points and faces are identified by their index in the flat sequences that
// hold them. Every relation (labels, selection, interaction ranges) is a plain
// integer index into those sequences.
package document

import (
	"github.com/Faultbox/cloudlabel/pkg/scene"
	"github.com/Faultbox/cloudlabel/pkg/schema"
)

// NoLabel is the single in-memory "no label" value for points and faces.
// Decoders map both serialized sentinels (0 "unlabeled" and -1
// "unclassified") onto it.
const NoLabel = 0

// Serialized sentinel ids. They never appear in a document's label set.
const (
	SentinelUnlabeled    = 0
	SentinelUnclassified = -1
)

// IsLabeled reports whether id denotes a real label.
func IsLabeled(id int) bool {
	return id > 0
}

// NormalizeLabel folds every sentinel onto NoLabel.
func NormalizeLabel(id int) int {
	if id <= 0 {
		return NoLabel
	}
	return id
}

// Point is a single vertex of the document.
type Point struct {
	Position [3]float64
	Color    Color // channels in [0,1]
	LabelID  int
	UV       *[2]float32
	Normal   *[3]float32

	// Extra holds values of vertex properties the codec does not model,
	// keyed by property name, so they survive a round trip.
	Extra map[string]schema.Value
}

// Face is a polygon over point indices.
type Face struct {
	Indices       []int
	LabelID       int
	TexCoords     []float32
	Color         *Color
	MaterialIndex *int

	// OriginalProperties holds the decoded value of every face property,
	// keyed by name. Encoders prefer these over regenerated values for
	// properties that are not annotation fields.
	OriginalProperties map[string]schema.Value
}

// Triangles fan-triangulates the polygon. Faces with fewer than three
// indices yield nothing.
func (f Face) Triangles() [][3]int {
	if len(f.Indices) < 3 {
		return nil
	}
	tris := make([][3]int, 0, len(f.Indices)-2)
	for i := 1; i+1 < len(f.Indices); i++ {
		tris = append(tris, [3]int{f.Indices[0], f.Indices[i], f.Indices[i+1]})
	}
	return tris
}

// Format identifies a file format.
type Format string

// Known formats.
const (
	FormatUnknown Format = ""
	FormatPLY     Format = "ply"
	FormatGLB     Format = "glb"
	FormatGLTF    Format = "gltf"
)

// IsMesh reports whether the format is the mesh-exchange format.
func (f Format) IsMesh() bool {
	return f == FormatGLB || f == FormatGLTF
}

// ElementData is a decoded element block the document does not model
// (anything but vertex and face), kept verbatim for re-export.
type ElementData struct {
	Name string
	Rows [][]schema.Value
}

// Metadata is per-file information needed to round-trip a document.
type Metadata struct {
	SourceFormat  Format
	SourceName    string
	Header        *schema.Header
	OtherElements []ElementData
	TextureFile   string
	Units         string
}

// Payload is the normalized result of a decode, consumed wholesale by the
// store's load command.
type Payload struct {
	Points     []Point
	Faces      []Face
	Labels     []Label
	Statistics Statistics
	Metadata   Metadata

	// Scene and Interaction are set for mesh-exchange sources, or when a
	// scene was built for a point-cloud source so it can be exported as a mesh.
	Scene       *scene.Scene
	Interaction *scene.InteractionMap

	// Assets holds auxiliary files (textures, materials) keyed by file name.
	Assets map[string][]byte
}
