// Package store is the annotation document store: one owned State value
// changed only by dispatching Commands through a pure reducer.
package store

import (
	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/scene"
	"github.com/Faultbox/cloudlabel/pkg/selection"
)

// Default history bounds.
const (
	DefaultUndoLimit      = 20
	DefaultSelectionLimit = 10
)

// ViewMode is how the presentation layer draws the document.
type ViewMode string

// View modes.
const (
	ViewPoints    ViewMode = "points"
	ViewMesh      ViewMode = "mesh"
	ViewWireframe ViewMode = "wireframe"
)

// ColorAdjustment holds display-only shading parameters. The store keeps
// them; it never applies them.
type ColorAdjustment struct {
	Brightness float64
	Contrast   float64
	Saturation float64
	PointSize  float64
	Opacity    float64
}

// DefaultColorAdjustment is the neutral adjustment.
func DefaultColorAdjustment() ColorAdjustment {
	return ColorAdjustment{Contrast: 1, Saturation: 1, PointSize: 1, Opacity: 1}
}

// Limits bounds the histories.
type Limits struct {
	Undo      int
	Selection int
}

// Snapshot is one undo entry: the points before an assignment and the
// point statistics that went with them.
type Snapshot struct {
	Points         []document.Point
	LabelStats     map[int]int
	LabeledCount   int
	UnlabeledCount int
}

// State is the whole document as seen by the presentation layer.
//
// Slices in a State are never written in place: every command that changes
// one builds a new slice, so a State handed out earlier stays valid.
type State struct {
	Loaded bool

	Points     []document.Point
	Faces      []document.Face
	Labels     []document.Label
	Statistics document.Statistics
	Metadata   document.Metadata

	// Scene and Interaction are only set for mesh sources. The scene is
	// read-only; export clones it.
	Scene       *scene.Scene
	Interaction *scene.InteractionMap
	Assets      map[string][]byte

	SelectedPoints      []int
	SelectedFaces       []int
	ManualFaceSelection bool
	SelectionMode       selection.Mode
	SelectionHistory    [][]int

	History []Snapshot

	ColorAdjustment ColorAdjustment
	ViewMode        ViewMode

	Limits Limits
}

// New returns an empty state with the given limits. Zero limits fall back
// to the defaults.
func New(limits Limits) State {
	if limits.Undo <= 0 {
		limits.Undo = DefaultUndoLimit
	}
	if limits.Selection <= 0 {
		limits.Selection = DefaultSelectionLimit
	}
	return State{
		Statistics:      document.NewStatistics(0, 0),
		ColorAdjustment: DefaultColorAdjustment(),
		ViewMode:        ViewPoints,
		Limits:          limits,
	}
}

// HasMesh reports whether the document has faces.
func (s State) HasMesh() bool {
	return len(s.Faces) > 0
}

// CanUndo reports whether an assignment can be undone.
func (s State) CanUndo() bool {
	return len(s.History) > 0
}
