package store

import (
	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/selection"
)

// Command is a closed set of state transitions. Only types in this package
// implement it.
type Command interface {
	command()
	// Name identifies the command in logs.
	Name() string
}

// LoadDocument replaces the whole document. It is not undoable.
type LoadDocument struct {
	Payload *document.Payload
}

// AssignPointLabels sets the label of the given points. A label id <= 0
// clears them.
type AssignPointLabels struct {
	Indices []int
	LabelID int
}

// AssignFaceLabels sets the label of the given faces. A label id <= 0
// clears them.
type AssignFaceLabels struct {
	Indices []int
	LabelID int
}

// AssignSelection labels the current point and face selection.
type AssignSelection struct {
	LabelID int
}

// Undo restores the points before the most recent point assignment.
type Undo struct{}

// SetSelectedPoints replaces the point selection.
type SetSelectedPoints struct {
	Indices []int
}

// SetSelectedFaces replaces the face selection directly, suspending
// derivation from points.
type SetSelectedFaces struct {
	Indices []int
}

// InvertSelection selects everything that was not selected.
type InvertSelection struct{}

// ClearSelection deselects everything.
type ClearSelection struct{}

// UndoSelection restores the previous point selection.
type UndoSelection struct{}

// SetSelectionMode changes how faces are derived from points.
type SetSelectionMode struct {
	Mode selection.Mode
}

// AddLabel defines a label. A zero id picks the next free one.
type AddLabel struct {
	Label document.Label
}

// UpdateLabel edits a label definition. Nil fields are left unchanged.
type UpdateLabel struct {
	ID      int
	NewName *string
	Color   *document.Color
	Visible *bool
}

// RemoveLabel deletes a label definition. Points and faces keep the id.
type RemoveLabel struct {
	ID int
}

// SetLabelVisibility shows or hides a label.
type SetLabelVisibility struct {
	ID      int
	Visible bool
}

// SetColorAdjustment replaces the display adjustment.
type SetColorAdjustment struct {
	Adjustment ColorAdjustment
}

// SetViewMode changes the display mode.
type SetViewMode struct {
	Mode ViewMode
}

// Reset drops the document and returns to the empty state.
type Reset struct{}

func (LoadDocument) command()       {}
func (AssignPointLabels) command()  {}
func (AssignFaceLabels) command()   {}
func (AssignSelection) command()    {}
func (Undo) command()               {}
func (SetSelectedPoints) command()  {}
func (SetSelectedFaces) command()   {}
func (InvertSelection) command()    {}
func (ClearSelection) command()     {}
func (UndoSelection) command()      {}
func (SetSelectionMode) command()   {}
func (AddLabel) command()           {}
func (UpdateLabel) command()        {}
func (RemoveLabel) command()        {}
func (SetLabelVisibility) command() {}
func (SetColorAdjustment) command() {}
func (SetViewMode) command()        {}
func (Reset) command()              {}

func (LoadDocument) Name() string       { return "load_document" }
func (AssignPointLabels) Name() string  { return "assign_point_labels" }
func (AssignFaceLabels) Name() string   { return "assign_face_labels" }
func (AssignSelection) Name() string    { return "assign_selection" }
func (Undo) Name() string               { return "undo" }
func (SetSelectedPoints) Name() string  { return "set_selected_points" }
func (SetSelectedFaces) Name() string   { return "set_selected_faces" }
func (InvertSelection) Name() string    { return "invert_selection" }
func (ClearSelection) Name() string     { return "clear_selection" }
func (UndoSelection) Name() string      { return "undo_selection" }
func (SetSelectionMode) Name() string   { return "set_selection_mode" }
func (AddLabel) Name() string           { return "add_label" }
func (UpdateLabel) Name() string        { return "update_label" }
func (RemoveLabel) Name() string        { return "remove_label" }
func (SetLabelVisibility) Name() string { return "set_label_visibility" }
func (SetColorAdjustment) Name() string { return "set_color_adjustment" }
func (SetViewMode) Name() string        { return "set_view_mode" }
func (Reset) Name() string              { return "reset" }
