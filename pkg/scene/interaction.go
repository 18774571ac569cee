package scene

import (
	"fmt"
	"sort"
)

// Range is a half-open [Start, End) index range.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether i lies in the range.
func (r Range) Contains(i int) bool {
	return i >= r.Start && i < r.End
}

// NodeRange is one node's slice of the flattened point and face sequences.
type NodeRange struct {
	Node   NodeID
	Points Range
	Faces  Range
}

// FaceRef locates a global face inside its node.
type FaceRef struct {
	Node  NodeID
	Local int
}

// InteractionMap maps mesh nodes to contiguous ranges of the flattened
// point and face index spaces. Entries are appended in traversal order and
// always partition [0, TotalPoints) and [0, TotalFaces).
type InteractionMap struct {
	entries []NodeRange
	byNode  map[NodeID]int
}

// NewInteractionMap returns an empty map.
func NewInteractionMap() *InteractionMap {
	return &InteractionMap{byNode: make(map[NodeID]int)}
}

// Add appends a node whose ranges start where the previous node ended.
func (m *InteractionMap) Add(id NodeID, pointCount, faceCount int) NodeRange {
	p, f := m.TotalPoints(), m.TotalFaces()
	r := NodeRange{
		Node:   id,
		Points: Range{Start: p, End: p + pointCount},
		Faces:  Range{Start: f, End: f + faceCount},
	}
	m.byNode[id] = len(m.entries)
	m.entries = append(m.entries, r)
	return r
}

// Entries returns the ranges in traversal order.
func (m *InteractionMap) Entries() []NodeRange {
	return append([]NodeRange(nil), m.entries...)
}

// Len returns the number of nodes.
func (m *InteractionMap) Len() int {
	return len(m.entries)
}

// Lookup returns the ranges recorded for a node.
func (m *InteractionMap) Lookup(id NodeID) (NodeRange, bool) {
	i, ok := m.byNode[id]
	if !ok {
		return NodeRange{}, false
	}
	return m.entries[i], true
}

// TotalPoints returns the size of the flattened point space.
func (m *InteractionMap) TotalPoints() int {
	if len(m.entries) == 0 {
		return 0
	}
	return m.entries[len(m.entries)-1].Points.End
}

// TotalFaces returns the size of the flattened face space.
func (m *InteractionMap) TotalFaces() int {
	if len(m.entries) == 0 {
		return 0
	}
	return m.entries[len(m.entries)-1].Faces.End
}

// FaceOwner resolves a global face index to its node and local index.
func (m *InteractionMap) FaceOwner(face int) (FaceRef, bool) {
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].Faces.End > face
	})
	if i == len(m.entries) || !m.entries[i].Faces.Contains(face) {
		return FaceRef{}, false
	}
	e := m.entries[i]
	return FaceRef{Node: e.Node, Local: face - e.Faces.Start}, true
}

// Validate checks that the ranges partition [0,totalPoints) and
// [0,totalFaces) in order.
func (m *InteractionMap) Validate(totalPoints, totalFaces int) error {
	p, f := 0, 0
	for _, e := range m.entries {
		if e.Points.Start != p || e.Points.End < e.Points.Start {
			return fmt.Errorf("node %s: point range %v does not continue at %d", e.Node, e.Points, p)
		}
		if e.Faces.Start != f || e.Faces.End < e.Faces.Start {
			return fmt.Errorf("node %s: face range %v does not continue at %d", e.Node, e.Faces, f)
		}
		p, f = e.Points.End, e.Faces.End
	}
	if p != totalPoints || f != totalFaces {
		return fmt.Errorf("ranges cover %d points / %d faces, document has %d / %d", p, f, totalPoints, totalFaces)
	}
	return nil
}
