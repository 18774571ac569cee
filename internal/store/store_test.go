package store

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/selection"
)

// gridPayload returns n points and a strip of triangles over them.
func gridPayload(n int) *document.Payload {
	p := &document.Payload{Points: make([]document.Point, n)}
	for i := range p.Points {
		p.Points[i].Position = [3]float64{float64(i), 0, 0}
	}
	for i := 0; i+2 < n; i++ {
		p.Faces = append(p.Faces, document.Face{Indices: []int{i, i + 1, i + 2}})
	}
	p.Statistics = document.ComputeStatistics(p.Points, p.Faces)
	return p
}

func loaded(t *testing.T, n int) State {
	t.Helper()
	s := Reduce(New(Limits{}), LoadDocument{Payload: gridPayload(n)})
	require.True(t, s.Loaded)
	return s
}

func assertConsistent(t *testing.T, s State) {
	t.Helper()
	assert.True(t, s.Statistics.Consistent(len(s.Points), len(s.Faces)), "statistics %+v", s.Statistics)
	assert.Equal(t, document.ComputeStatistics(s.Points, s.Faces), s.Statistics.Clone())
}

func TestLoadDocument(t *testing.T) {
	s := New(Limits{})
	s.SelectedPoints = []int{1}
	s.History = []Snapshot{{}}

	p := gridPayload(5)
	p.Points[0].LabelID = 4
	s = Reduce(s, LoadDocument{Payload: p})

	assert.True(t, s.Loaded)
	assert.Empty(t, s.SelectedPoints)
	assert.Empty(t, s.SelectedFaces)
	assert.Empty(t, s.History, "loading is not undoable")
	assert.False(t, s.ManualFaceSelection)
	assert.Equal(t, ViewMesh, s.ViewMode)
	require.Len(t, s.Labels, 1, "undefined label ids get a definition")
	assert.Equal(t, "Label 4", s.Labels[0].Name)
	assertConsistent(t, s)
}

func TestLoadDocument_IgnoresStaleRecordedCounts(t *testing.T) {
	p := gridPayload(4)
	p.Points[0].LabelID = 2
	p.Statistics = document.ComputeStatistics(p.Points, p.Faces)
	l := document.NewLabel(1, "wall")
	l.Counts = &document.LabelCounts{Points: 1}
	p.Labels = []document.Label{l}

	s := Reduce(New(Limits{}), LoadDocument{Payload: p})
	assert.Equal(t, map[int]int{2: 1}, s.Statistics.LabelStats)
	assertConsistent(t, s)

	s = Reduce(s, AssignPointLabels{Indices: []int{0}, LabelID: 0})
	assert.Equal(t, 0, s.Statistics.LabeledCount)
	assert.Empty(t, s.Statistics.LabelStats)
	assertConsistent(t, s)
}

func TestLoadDocument_RescansPayloadStatistics(t *testing.T) {
	p := gridPayload(3)
	p.Points[1].LabelID = 5
	p.Statistics = document.Statistics{LabeledCount: 7}

	s := Reduce(New(Limits{}), LoadDocument{Payload: p})
	assert.Equal(t, 1, s.Statistics.LabeledCount)
	assertConsistent(t, s)
}

func TestLoadDocument_DuplicateLabelDefinitions(t *testing.T) {
	p := gridPayload(3)
	p.Labels = []document.Label{document.NewLabel(1, "wall"), document.NewLabel(1, "floor")}

	s := Reduce(New(Limits{}), LoadDocument{Payload: p})
	require.Len(t, s.Labels, 1)
	assert.Equal(t, "wall", s.Labels[0].Name)

	s = Reduce(s, RemoveLabel{ID: 1})
	_, ok := document.FindLabel(s.Labels, 1)
	assert.False(t, ok, "no shadowed definition resurfaces after removal")
}

func TestAssignPointLabels_Incremental(t *testing.T) {
	s := loaded(t, 6)

	s = Reduce(s, AssignPointLabels{Indices: []int{0, 1, 2}, LabelID: 1})
	assert.Equal(t, 3, s.Statistics.LabeledCount)
	assert.Equal(t, 3, s.Statistics.UnlabeledCount)

	s = Reduce(s, AssignPointLabels{Indices: []int{2, 3}, LabelID: 2})
	assert.Equal(t, map[int]int{1: 2, 2: 2}, s.Statistics.LabelStats)
	assert.Equal(t, 4, s.Statistics.LabeledCount)

	s = Reduce(s, AssignPointLabels{Indices: []int{0, 99, -1}, LabelID: 0})
	assert.Equal(t, map[int]int{1: 1, 2: 2}, s.Statistics.LabelStats)
	assert.Equal(t, 3, s.Statistics.LabeledCount)
	assertConsistent(t, s)
}

func TestAssignPointLabels_DoesNotMutatePrevious(t *testing.T) {
	before := loaded(t, 3)
	after := Reduce(before, AssignPointLabels{Indices: []int{1}, LabelID: 5})

	assert.Equal(t, document.NoLabel, before.Points[1].LabelID)
	assert.Equal(t, 5, after.Points[1].LabelID)
	assert.Equal(t, 0, before.Statistics.LabeledCount)
}

func TestAssignFaceLabels_Sentinels(t *testing.T) {
	s := loaded(t, 5)

	s = Reduce(s, AssignFaceLabels{Indices: []int{0, 1}, LabelID: 3})
	assert.Equal(t, 2, s.Statistics.FaceLabeledCount)

	s = Reduce(s, AssignFaceLabels{Indices: []int{0}, LabelID: -1})
	assert.Equal(t, 1, s.Statistics.FaceLabeledCount)
	assert.Equal(t, document.NoLabel, s.Faces[0].LabelID)

	s = Reduce(s, AssignFaceLabels{Indices: []int{0}, LabelID: 0})
	assert.Equal(t, 1, s.Statistics.FaceLabeledCount, "clearing an unlabeled face is a no-op")
	assert.Empty(t, s.History, "face assignment is not undoable")
	assertConsistent(t, s)
}

func TestStatisticsInvariant_RandomCommands(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := loaded(t, 40)

	for step := 0; step < 500; step++ {
		idx := make([]int, rng.Intn(8))
		for i := range idx {
			idx[i] = rng.Intn(45) - 2
		}
		label := rng.Intn(6) - 1

		switch rng.Intn(4) {
		case 0:
			s = Reduce(s, AssignPointLabels{Indices: idx, LabelID: label})
		case 1:
			s = Reduce(s, AssignFaceLabels{Indices: idx, LabelID: label})
		case 2:
			s = Reduce(s, SetSelectedPoints{Indices: idx})
			s = Reduce(s, AssignSelection{LabelID: label})
		case 3:
			s = Reduce(s, Undo{})
		}

		sum := 0
		for _, c := range s.Statistics.LabelStats {
			sum += c
		}
		require.Equal(t, sum, s.Statistics.LabeledCount, "step %d", step)
		require.Equal(t, len(s.Points), s.Statistics.LabeledCount+s.Statistics.UnlabeledCount, "step %d", step)
		require.True(t, s.Statistics.Consistent(len(s.Points), len(s.Faces)), "step %d", step)
	}
	assertConsistent(t, s)
}

func TestUndo(t *testing.T) {
	s := loaded(t, 4)
	s = Reduce(s, AssignPointLabels{Indices: []int{0}, LabelID: 1})
	s = Reduce(s, AssignPointLabels{Indices: []int{0, 1}, LabelID: 2})
	s = Reduce(s, AssignFaceLabels{Indices: []int{0}, LabelID: 2})
	require.Len(t, s.History, 2)

	s = Reduce(s, Undo{})
	assert.Equal(t, 1, s.Points[0].LabelID)
	assert.Equal(t, document.NoLabel, s.Points[1].LabelID)
	assert.Equal(t, 2, s.Faces[0].LabelID, "faces are not part of undo")
	assertConsistent(t, s)

	s = Reduce(s, Undo{})
	s = Reduce(s, Undo{})
	assert.Equal(t, document.NoLabel, s.Points[0].LabelID)
	assert.False(t, s.CanUndo())
	assertConsistent(t, s)
}

func TestUndo_Bounded(t *testing.T) {
	s := Reduce(New(Limits{Undo: 3}), LoadDocument{Payload: gridPayload(10)})
	for i := 0; i < 10; i++ {
		s = Reduce(s, AssignPointLabels{Indices: []int{i}, LabelID: 1})
	}
	assert.Len(t, s.History, 3)
	for i := 0; i < 3; i++ {
		s = Reduce(s, Undo{})
	}
	assert.Equal(t, 7, s.Statistics.LabeledCount)
}

func TestSetSelectedPoints_NoOpWhenEqual(t *testing.T) {
	s := loaded(t, 5)
	s = Reduce(s, SetSelectedPoints{Indices: []int{3, 1}})
	historyLen := len(s.SelectionHistory)

	next := Reduce(s, SetSelectedPoints{Indices: []int{3, 1}})
	assert.Len(t, next.SelectionHistory, historyLen)
	assert.Equal(t, []int{3, 1}, next.SelectedPoints)

	next = Reduce(s, SetSelectedPoints{Indices: []int{1, 3}})
	assert.Len(t, next.SelectionHistory, historyLen+1, "order matters for the short-circuit")
}

func TestSetSelectedPoints_DerivesFaces(t *testing.T) {
	s := loaded(t, 5) // faces: {0,1,2} {1,2,3} {2,3,4}

	s = Reduce(s, SetSelectedPoints{Indices: []int{2}})
	assert.Equal(t, []int{0, 1, 2}, s.SelectedFaces)

	s = Reduce(s, SetSelectionMode{Mode: selection.Enclosed})
	assert.Empty(t, s.SelectedFaces)

	s = Reduce(s, SetSelectedPoints{Indices: []int{1, 2, 3}})
	assert.Equal(t, []int{1}, s.SelectedFaces)
}

func TestSelectionHistory_Bounded(t *testing.T) {
	s := loaded(t, 30)
	for i := 0; i < 25; i++ {
		s = Reduce(s, SetSelectedPoints{Indices: []int{i}})
	}
	assert.Len(t, s.SelectionHistory, DefaultSelectionLimit)

	s = Reduce(s, UndoSelection{})
	assert.Equal(t, []int{23}, s.SelectedPoints)
}

func TestInvertSelection(t *testing.T) {
	s := loaded(t, 6)
	s = Reduce(s, SetSelectedPoints{Indices: []int{0, 4}})
	original := s.SelectedPoints
	faces := s.SelectedFaces

	s = Reduce(s, InvertSelection{})
	assert.Equal(t, []int{1, 2, 3, 5}, s.SelectedPoints)
	assert.True(t, s.ManualFaceSelection)
	assert.Equal(t, selection.Complement(len(s.Faces), faces), s.SelectedFaces)

	s = Reduce(s, InvertSelection{})
	assert.ElementsMatch(t, original, s.SelectedPoints)
	assert.Equal(t, faces, s.SelectedFaces)
}

func TestInvertSelection_Involution(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 50; trial++ {
		s := loaded(t, 20)
		var sel []int
		for i := 0; i < 20; i++ {
			if rng.Intn(2) == 0 {
				sel = append(sel, i)
			}
		}
		s = Reduce(s, SetSelectedPoints{Indices: sel})
		before := append([]int(nil), s.SelectedPoints...)

		s = Reduce(Reduce(s, InvertSelection{}), InvertSelection{})
		assert.ElementsMatch(t, before, s.SelectedPoints)
	}
}

func TestManualFaceSelection(t *testing.T) {
	s := loaded(t, 5)
	s = Reduce(s, SetSelectedFaces{Indices: []int{2, 0, 9}})
	assert.Equal(t, []int{0, 2}, s.SelectedFaces)
	assert.True(t, s.ManualFaceSelection)

	// Label edits do not re-derive while the flag is set.
	s = Reduce(s, AddLabel{Label: document.NewLabel(1, "a")})
	s = Reduce(s, SetLabelVisibility{ID: 1, Visible: false})
	assert.Equal(t, []int{0, 2}, s.SelectedFaces)

	// A point selection change clears it.
	s = Reduce(s, SetSelectedPoints{Indices: []int{0}})
	assert.False(t, s.ManualFaceSelection)
	assert.Equal(t, []int{0}, s.SelectedFaces)
}

func TestHiddenLabelsExcludedFromDerivation(t *testing.T) {
	s := loaded(t, 5)
	s = Reduce(s, AddLabel{Label: document.NewLabel(7, "hidden")})
	s = Reduce(s, AssignFaceLabels{Indices: []int{0}, LabelID: 7})
	s = Reduce(s, SetSelectedPoints{Indices: []int{2}})
	assert.Equal(t, []int{0, 1, 2}, s.SelectedFaces)

	s = Reduce(s, SetLabelVisibility{ID: 7, Visible: false})
	assert.Equal(t, []int{1, 2}, s.SelectedFaces)
}

func TestAssignSelection(t *testing.T) {
	s := loaded(t, 5)
	s = Reduce(s, SetSelectedPoints{Indices: []int{0, 1, 2}})
	s = Reduce(s, SetSelectionMode{Mode: selection.Enclosed})
	s = Reduce(s, AssignSelection{LabelID: 4})

	assert.Equal(t, 3, s.Statistics.LabelStats[4])
	assert.Equal(t, 1, s.Statistics.FaceLabelStats[4])
	assert.Equal(t, 4, s.Faces[0].LabelID)
	assertConsistent(t, s)
}

func TestClearAndUndoSelection(t *testing.T) {
	s := loaded(t, 5)
	s = Reduce(s, SetSelectedPoints{Indices: []int{1}})
	s = Reduce(s, ClearSelection{})
	assert.Empty(t, s.SelectedPoints)
	assert.Empty(t, s.SelectedFaces)

	s = Reduce(s, UndoSelection{})
	assert.Equal(t, []int{1}, s.SelectedPoints)
	assert.NotEmpty(t, s.SelectedFaces)
}

func TestLabelCRUD(t *testing.T) {
	s := loaded(t, 3)

	s = Reduce(s, AddLabel{Label: document.Label{Name: "ground"}})
	s = Reduce(s, AddLabel{Label: document.Label{}})
	require.Len(t, s.Labels, 2)
	assert.Equal(t, 1, s.Labels[0].ID)
	assert.Equal(t, 2, s.Labels[1].ID)
	assert.Equal(t, "Label 2", s.Labels[1].Name)
	assert.True(t, s.Labels[1].Visible)

	dup := Reduce(s, AddLabel{Label: document.NewLabel(1, "again")})
	assert.Equal(t, "ground", dup.Labels[0].Name)

	name := "soil"
	red := document.Color{R: 1}
	s = Reduce(s, UpdateLabel{ID: 1, NewName: &name, Color: &red})
	assert.Equal(t, "soil", s.Labels[0].Name)
	assert.Equal(t, red, s.Labels[0].Color)

	s = Reduce(s, AssignPointLabels{Indices: []int{0}, LabelID: 1})
	s = Reduce(s, RemoveLabel{ID: 1})
	require.Len(t, s.Labels, 1)
	assert.Equal(t, 1, s.Points[0].LabelID, "removing a definition keeps assignments")
	assert.Equal(t, 1, s.Statistics.LabelStats[1])
}

func TestUnknownLabelAccepted(t *testing.T) {
	s := loaded(t, 3)
	s = Reduce(s, AssignPointLabels{Indices: []int{0}, LabelID: 42})
	assert.Equal(t, 1, s.Statistics.LabelStats[42])
	assertConsistent(t, s)
}

func TestDisplayCommands(t *testing.T) {
	s := New(Limits{})
	assert.Equal(t, DefaultColorAdjustment(), s.ColorAdjustment)

	adj := ColorAdjustment{Brightness: 0.2, Contrast: 1.5, Saturation: 1, PointSize: 3, Opacity: 0.5}
	s = Reduce(s, SetColorAdjustment{Adjustment: adj})
	s = Reduce(s, SetViewMode{Mode: ViewWireframe})
	assert.Equal(t, adj, s.ColorAdjustment)
	assert.Equal(t, ViewWireframe, s.ViewMode)
}

func TestReset(t *testing.T) {
	s := loaded(t, 3)
	s = Reduce(s, SetSelectionMode{Mode: selection.Enclosed})
	s = Reduce(s, Reset{})
	assert.False(t, s.Loaded)
	assert.Empty(t, s.Points)
	assert.Equal(t, selection.Enclosed, s.SelectionMode)
}

func TestCommandsOnEmptyState(t *testing.T) {
	s := New(Limits{})
	for _, cmd := range []Command{
		AssignPointLabels{Indices: []int{0}, LabelID: 1},
		AssignFaceLabels{Indices: []int{0}, LabelID: 1},
		AssignSelection{LabelID: 1},
		Undo{},
		InvertSelection{},
		UndoSelection{},
		ClearSelection{},
		LoadDocument{},
	} {
		next := Reduce(s, cmd)
		assert.Equal(t, s, next, cmd.Name())
	}
}

func TestStore_Dispatch(t *testing.T) {
	st := NewStore(Limits{})
	var seen int
	st.Subscribe(func(s State) { seen++ })

	require.NoError(t, st.Dispatch(LoadDocument{Payload: gridPayload(4)}))
	require.NoError(t, st.Dispatch(SetSelectedPoints{Indices: []int{0, 1}}))
	require.NoError(t, st.Dispatch(AssignSelection{LabelID: 2}))

	assert.Equal(t, 3, seen)
	assert.Len(t, st.Points(), 4)
	assert.Equal(t, []int{0, 1}, st.SelectedPoints())
	assert.Equal(t, 2, st.Statistics().LabeledCount)
	assert.True(t, st.CanUndo())
	assert.Equal(t, ViewMesh, st.ViewMode())
}

func TestStore_RejectsReentrantDispatch(t *testing.T) {
	st := NewStore(Limits{})
	var inner error
	st.Subscribe(func(State) {
		inner = st.Dispatch(Reset{})
	})

	require.NoError(t, st.Dispatch(SetViewMode{Mode: ViewMesh}))
	assert.ErrorIs(t, inner, ErrReentrantDispatch)
}
