// Package scene wraps a decoded glTF document as an opaque scene handle.
//
// A Scene gives every node an identity that is independent of its slice
// position. Clone produces a structurally identical scene whose nodes carry
// fresh identities, so anything keyed by the original's identities has to be
// matched against the clone by traversal position.
package scene

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/qmuntal/gltf"

	"github.com/Faultbox/cloudlabel/pkg/math"
)

// ErrNilDocument is returned when a scene is built without a document.
var ErrNilDocument = errors.New("scene: nil document")

// NodeID identifies a node within one Scene value.
type NodeID string

// Scene is a glTF document plus per-node identities.
type Scene struct {
	doc *gltf.Document
	ids []NodeID
}

// New wraps doc, assigning a fresh identity to each node.
func New(doc *gltf.Document) (*Scene, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	s := &Scene{doc: doc}
	s.assignIDs()
	return s, nil
}

func (s *Scene) assignIDs() {
	s.ids = make([]NodeID, len(s.doc.Nodes))
	for i := range s.ids {
		s.ids[i] = NodeID(uuid.NewString())
	}
}

// Document returns the underlying glTF document. Callers holding a scene
// they do not own must treat it as read-only.
func (s *Scene) Document() *gltf.Document {
	return s.doc
}

// NodeCount returns the number of nodes.
func (s *Scene) NodeCount() int {
	return len(s.doc.Nodes)
}

// ID returns the identity of the node at index.
func (s *Scene) ID(index int) NodeID {
	if index < 0 || index >= len(s.ids) {
		return ""
	}
	return s.ids[index]
}

// Clone deep-copies the document. The clone shares no mutable state with s
// and its nodes get new identities.
func (s *Scene) Clone() (*Scene, error) {
	dst := new(gltf.Document)
	if err := copier.CopyWithOption(dst, s.doc, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("scene: cloning document: %w", err)
	}
	if len(dst.Nodes) != len(s.doc.Nodes) || len(dst.Meshes) != len(s.doc.Meshes) ||
		len(dst.Accessors) != len(s.doc.Accessors) || len(dst.BufferViews) != len(s.doc.BufferViews) ||
		len(dst.Buffers) != len(s.doc.Buffers) {
		return nil, fmt.Errorf("scene: clone has %d nodes / %d meshes, source has %d / %d",
			len(dst.Nodes), len(dst.Meshes), len(s.doc.Nodes), len(s.doc.Meshes))
	}
	detach(dst, s.doc)

	c := &Scene{doc: dst}
	c.assignIDs()
	return c, nil
}

// detach guarantees that the parts of a clone which export mutates (node
// extras, mesh primitives and buffer bytes) never alias the source, whatever
// the copier did with interface-typed and pointer fields.
func detach(dst, src *gltf.Document) {
	for i, n := range dst.Nodes {
		if n == nil {
			continue
		}
		if n == src.Nodes[i] {
			cp := *n
			n = &cp
			dst.Nodes[i] = n
		}
		n.Children = append([]int(nil), src.Nodes[i].Children...)
		n.Extras = CloneValue(src.Nodes[i].Extras)
	}
	for i, m := range dst.Meshes {
		if m == nil {
			continue
		}
		if m == src.Meshes[i] {
			cp := *m
			m = &cp
			dst.Meshes[i] = m
		}
		m.Primitives = clonePrimitives(src.Meshes[i].Primitives)
	}
	for i, b := range dst.Buffers {
		if b == nil {
			continue
		}
		if b == src.Buffers[i] {
			cp := *b
			b = &cp
			dst.Buffers[i] = b
		}
		b.Data = append([]byte(nil), src.Buffers[i].Data...)
	}
	for i, a := range dst.Accessors {
		if a != nil && a == src.Accessors[i] {
			cp := *a
			dst.Accessors[i] = &cp
		}
	}
	for i, bv := range dst.BufferViews {
		if bv != nil && bv == src.BufferViews[i] {
			cp := *bv
			dst.BufferViews[i] = &cp
		}
	}
}

func clonePrimitives(src []*gltf.Primitive) []*gltf.Primitive {
	out := make([]*gltf.Primitive, len(src))
	for i, p := range src {
		if p == nil {
			continue
		}
		cp := *p
		cp.Attributes = make(map[string]int, len(p.Attributes))
		for k, v := range p.Attributes {
			cp.Attributes[k] = v
		}
		cp.Extras = CloneValue(p.Extras)
		out[i] = &cp
	}
	return out
}

// CloneValue deep-copies a decoded JSON value (maps, slices and scalars).
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []int:
		return append([]int(nil), t...)
	default:
		return v
	}
}

// LocalMatrix returns the node's local transform. An explicit matrix wins
// over TRS unless it is unset or the identity.
func LocalMatrix(n *gltf.Node) math.Mat4 {
	m := math.Mat4(n.Matrix)
	if !m.IsZero() && m != math.Identity() {
		return m
	}
	return math.FromTRS(n.Translation, n.Rotation, n.Scale)
}
