// Package selection derives face selections from point selections and back.
// Every function here is pure.
package selection

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/Faultbox/cloudlabel/pkg/document"
)

// Mode is the adjacency policy used to turn selected points into faces.
type Mode int

const (
	// Touching selects a face when any of its points is selected.
	Touching Mode = iota
	// Enclosed selects a face only when all of its points are selected.
	Enclosed
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Touching:
		return "touching"
	case Enclosed:
		return "enclosed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "touching" or "enclosed".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "touching", "TOUCHING", "":
		return Touching, nil
	case "enclosed", "ENCLOSED":
		return Enclosed, nil
	}
	return Touching, fmt.Errorf("unknown selection mode %q", s)
}

// hiddenLabels returns the ids of labels that are not visible.
func hiddenLabels(labels []document.Label) map[int]bool {
	hidden := make(map[int]bool)
	for _, l := range labels {
		if !l.Visible {
			hidden[l.ID] = true
		}
	}
	return hidden
}

// DeriveFaceSelection returns the ascending indices of faces selected by
// selectedPoints under mode. Faces whose label is hidden are never
// selected. Faces without indices are never selected.
func DeriveFaceSelection(faces []document.Face, labels []document.Label, selectedPoints []int, mode Mode) []int {
	if len(faces) == 0 || len(selectedPoints) == 0 {
		return []int{}
	}
	selected := pointMask(selectedPoints, faces)
	hidden := hiddenLabels(labels)

	out := make([]int, 0)
	for fi, f := range faces {
		if len(f.Indices) == 0 {
			continue
		}
		if document.IsLabeled(f.LabelID) && hidden[f.LabelID] {
			continue
		}
		if qualifies(f.Indices, selected, mode) {
			out = append(out, fi)
		}
	}
	return out
}

func qualifies(indices []int, selected []bool, mode Mode) bool {
	in := func(i int) bool { return i >= 0 && i < len(selected) && selected[i] }
	if mode == Enclosed {
		return lo.EveryBy(indices, in)
	}
	return lo.SomeBy(indices, in)
}

// pointMask marks the selected points up to the largest vertex any face
// uses. Larger indices are dropped.
func pointMask(points []int, faces []document.Face) []bool {
	maxIdx := -1
	for _, f := range faces {
		for _, i := range f.Indices {
			maxIdx = max(maxIdx, i)
		}
	}
	mask := make([]bool, maxIdx+1)
	for _, p := range points {
		if p >= 0 && p < len(mask) {
			mask[p] = true
		}
	}
	return mask
}

// DerivePointSelection returns the ascending indices of every point used by
// the selected faces.
func DerivePointSelection(faces []document.Face, selectedFaces []int) []int {
	seen := make(map[int]struct{})
	for _, fi := range selectedFaces {
		if fi < 0 || fi >= len(faces) {
			continue
		}
		for _, p := range faces[fi].Indices {
			seen[p] = struct{}{}
		}
	}
	out := lo.Keys(seen)
	sort.Ints(out)
	return out
}

// Complement returns the ascending indices in [0,n) not present in sel.
func Complement(n int, sel []int) []int {
	if n <= 0 {
		return []int{}
	}
	taken := make([]bool, n)
	for _, i := range sel {
		if i >= 0 && i < n {
			taken[i] = true
		}
	}
	out := make([]int, 0, max(0, n-len(sel)))
	for i, t := range taken {
		if !t {
			out = append(out, i)
		}
	}
	return out
}

// Normalize drops out-of-range and duplicate indices, keeping first
// occurrences in order.
func Normalize(n int, sel []int) []int {
	return lo.Uniq(lo.Filter(sel, func(i int, _ int) bool { return i >= 0 && i < n }))
}
