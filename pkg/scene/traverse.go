package scene

import (
	"github.com/qmuntal/gltf"

	"github.com/Faultbox/cloudlabel/pkg/math"
)

// MeshNode is a mesh-bearing node reached by traversal.
type MeshNode struct {
	ID    NodeID
	Index int
	Node  *gltf.Node
	Mesh  *gltf.Mesh
	World math.Mat4
}

// Roots returns the root node indices of the default scene. Documents
// without scenes fall back to every node that is nobody's child, in index
// order.
func (s *Scene) Roots() []int {
	doc := s.doc
	if len(doc.Scenes) > 0 {
		idx := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			idx = *doc.Scene
		}
		if sc := doc.Scenes[idx]; sc != nil {
			return append([]int(nil), sc.Nodes...)
		}
	}

	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if n == nil {
			continue
		}
		for _, c := range n.Children {
			if c >= 0 && c < len(isChild) {
				isChild[c] = true
			}
		}
	}
	var roots []int
	for i, child := range isChild {
		if !child {
			roots = append(roots, i)
		}
	}
	return roots
}

// MeshNodes walks the default scene depth-first, parents before children,
// children in declaration order, and returns every node with a mesh.
// This order is the canonical flattening order for points and faces; two
// structurally identical scenes always yield the same sequence.
func (s *Scene) MeshNodes() []MeshNode {
	var out []MeshNode
	visited := make([]bool, len(s.doc.Nodes))

	var walk func(idx int, parent math.Mat4)
	walk = func(idx int, parent math.Mat4) {
		if idx < 0 || idx >= len(s.doc.Nodes) || visited[idx] {
			return
		}
		visited[idx] = true
		n := s.doc.Nodes[idx]
		if n == nil {
			return
		}
		world := parent.Mul(LocalMatrix(n))
		if n.Mesh != nil && *n.Mesh >= 0 && *n.Mesh < len(s.doc.Meshes) {
			out = append(out, MeshNode{
				ID:    s.ids[idx],
				Index: idx,
				Node:  n,
				Mesh:  s.doc.Meshes[*n.Mesh],
				World: world,
			})
		}
		for _, c := range n.Children {
			walk(c, world)
		}
	}

	for _, r := range s.Roots() {
		walk(r, math.Identity())
	}
	return out
}
