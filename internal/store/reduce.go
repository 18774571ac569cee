package store

import (
	"slices"

	"github.com/samber/lo"

	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/selection"
)

// Reduce applies one command and returns the next state. It never modifies
// s; unknown or inapplicable commands return s unchanged.
func Reduce(s State, cmd Command) State {
	switch c := cmd.(type) {
	case LoadDocument:
		return load(s, c.Payload)
	case AssignPointLabels:
		return assignPoints(s, c.Indices, c.LabelID)
	case AssignFaceLabels:
		return derive(assignFaces(s, c.Indices, c.LabelID))
	case AssignSelection:
		next := s
		if len(s.SelectedPoints) > 0 {
			next = assignPoints(next, s.SelectedPoints, c.LabelID)
		}
		if len(s.SelectedFaces) > 0 {
			next = derive(assignFaces(next, s.SelectedFaces, c.LabelID))
		}
		return next
	case Undo:
		return undo(s)
	case SetSelectedPoints:
		return selectPoints(s, selection.Normalize(len(s.Points), c.Indices))
	case SetSelectedFaces:
		s.SelectedFaces = sortedUnique(selection.Normalize(len(s.Faces), c.Indices))
		s.ManualFaceSelection = true
		return s
	case InvertSelection:
		return invert(s)
	case ClearSelection:
		if len(s.SelectedPoints) == 0 && len(s.SelectedFaces) == 0 {
			return s
		}
		s.SelectionHistory = pushBounded(s.SelectionHistory, s.SelectedPoints, s.Limits.Selection)
		s.SelectedPoints = nil
		s.SelectedFaces = nil
		s.ManualFaceSelection = false
		return s
	case UndoSelection:
		n := len(s.SelectionHistory)
		if n == 0 {
			return s
		}
		s.SelectedPoints = s.SelectionHistory[n-1]
		s.SelectionHistory = s.SelectionHistory[:n-1 : n-1]
		s.ManualFaceSelection = false
		return derive(s)
	case SetSelectionMode:
		if c.Mode == s.SelectionMode {
			return s
		}
		s.SelectionMode = c.Mode
		return derive(s)
	case AddLabel:
		return addLabel(s, c.Label)
	case UpdateLabel:
		return updateLabel(s, c.ID, func(l *document.Label) {
			if c.NewName != nil {
				l.Name = *c.NewName
			}
			if c.Color != nil {
				l.Color = *c.Color
			}
			if c.Visible != nil {
				l.Visible = *c.Visible
			}
		})
	case RemoveLabel:
		if _, ok := document.FindLabel(s.Labels, c.ID); !ok {
			return s
		}
		s.Labels = lo.Reject(s.Labels, func(l document.Label, _ int) bool { return l.ID == c.ID })
		return derive(s)
	case SetLabelVisibility:
		return updateLabel(s, c.ID, func(l *document.Label) { l.Visible = c.Visible })
	case SetColorAdjustment:
		s.ColorAdjustment = c.Adjustment
		return s
	case SetViewMode:
		s.ViewMode = c.Mode
		return s
	case Reset:
		next := New(s.Limits)
		next.SelectionMode = s.SelectionMode
		return next
	}
	return s
}

// load replaces the document and rescans its statistics.
func load(s State, p *document.Payload) State {
	if p == nil {
		return s
	}
	next := New(s.Limits)
	next.Loaded = true
	next.SelectionMode = s.SelectionMode
	next.ColorAdjustment = s.ColorAdjustment

	next.Points = p.Points
	next.Faces = p.Faces
	next.Labels = document.CompleteLabels(p.Labels, p.Points, p.Faces)
	next.Metadata = p.Metadata
	next.Scene = p.Scene
	next.Interaction = p.Interaction
	next.Assets = p.Assets

	// Counts recorded by a previous export may be stale; the data is
	// authoritative.
	next.Statistics = document.ComputeStatistics(p.Points, p.Faces)

	if len(p.Faces) > 0 {
		next.ViewMode = ViewMesh
	}
	return next
}

func assignPoints(s State, indices []int, labelID int) State {
	labelID = document.NormalizeLabel(labelID)
	indices = selection.Normalize(len(s.Points), indices)
	changed := lo.Filter(indices, func(i int, _ int) bool { return s.Points[i].LabelID != labelID })
	if len(changed) == 0 {
		return s
	}

	s.History = pushSnapshot(s.History, Snapshot{
		Points:         s.Points,
		LabelStats:     s.Statistics.LabelStats,
		LabeledCount:   s.Statistics.LabeledCount,
		UnlabeledCount: s.Statistics.UnlabeledCount,
	}, s.Limits.Undo)

	points := slices.Clone(s.Points)
	stats := s.Statistics.Clone()
	for _, i := range changed {
		stats.MovePoint(points[i].LabelID, labelID)
		points[i].LabelID = labelID
	}
	s.Points = points
	s.Statistics = stats
	return s
}

func assignFaces(s State, indices []int, labelID int) State {
	labelID = document.NormalizeLabel(labelID)
	indices = selection.Normalize(len(s.Faces), indices)
	changed := lo.Filter(indices, func(i int, _ int) bool {
		return document.NormalizeLabel(s.Faces[i].LabelID) != labelID
	})
	if len(changed) == 0 {
		return s
	}

	faces := slices.Clone(s.Faces)
	stats := s.Statistics.Clone()
	for _, i := range changed {
		stats.MoveFace(faces[i].LabelID, labelID)
		faces[i].LabelID = labelID
	}
	s.Faces = faces
	s.Statistics = stats
	return s
}

func undo(s State) State {
	n := len(s.History)
	if n == 0 {
		return s
	}
	snap := s.History[n-1]
	s.History = s.History[:n-1 : n-1]

	s.Points = snap.Points
	stats := s.Statistics.Clone()
	stats.LabelStats = snap.LabelStats
	stats.LabeledCount = snap.LabeledCount
	stats.UnlabeledCount = snap.UnlabeledCount
	s.Statistics = stats
	return s
}

func selectPoints(s State, indices []int) State {
	if slices.Equal(indices, s.SelectedPoints) {
		return s
	}
	s.SelectionHistory = pushBounded(s.SelectionHistory, s.SelectedPoints, s.Limits.Selection)
	s.SelectedPoints = indices
	s.ManualFaceSelection = false
	return derive(s)
}

func invert(s State) State {
	if !s.Loaded {
		return s
	}
	s.SelectionHistory = pushBounded(s.SelectionHistory, s.SelectedPoints, s.Limits.Selection)
	s.SelectedPoints = selection.Complement(len(s.Points), s.SelectedPoints)
	if s.HasMesh() {
		s.SelectedFaces = selection.Complement(len(s.Faces), s.SelectedFaces)
		s.ManualFaceSelection = true
	}
	return s
}

func addLabel(s State, l document.Label) State {
	if l.ID <= 0 {
		l.ID = 1
		for _, existing := range s.Labels {
			l.ID = max(l.ID, existing.ID+1)
		}
		l.Visible = true
	}
	if _, exists := document.FindLabel(s.Labels, l.ID); exists {
		return s
	}
	if l.Name == "" {
		l.Name = document.NewLabel(l.ID, "").Name
	}
	labels := append(slices.Clone(s.Labels), l)
	document.SortLabels(labels)
	s.Labels = labels
	return s
}

func updateLabel(s State, id int, edit func(*document.Label)) State {
	i := slices.IndexFunc(s.Labels, func(l document.Label) bool { return l.ID == id })
	if i < 0 {
		return s
	}
	labels := slices.Clone(s.Labels)
	edit(&labels[i])
	s.Labels = labels
	return derive(s)
}

// derive recomputes the face selection from the point selection unless the
// face selection was set directly.
func derive(s State) State {
	if s.ManualFaceSelection {
		return s
	}
	if !s.HasMesh() {
		s.SelectedFaces = nil
		return s
	}
	s.SelectedFaces = selection.DeriveFaceSelection(s.Faces, s.Labels, s.SelectedPoints, s.SelectionMode)
	return s
}

func pushSnapshot(h []Snapshot, snap Snapshot, limit int) []Snapshot {
	out := append(slices.Clone(h), snap)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func pushBounded(h [][]int, sel []int, limit int) [][]int {
	out := append(slices.Clone(h), sel)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func sortedUnique(sel []int) []int {
	out := slices.Clone(sel)
	slices.Sort(out)
	return out
}
