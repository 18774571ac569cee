package store

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/cloudlabel/internal/logger"
	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/scene"
	"github.com/Faultbox/cloudlabel/pkg/selection"
)

// ErrReentrantDispatch is returned when a command is dispatched while
// another one is still being applied, e.g. from a listener.
var ErrReentrantDispatch = errors.New("store: dispatch while another command is in progress")

// Listener is called after every dispatched command.
type Listener func(State)

// Store owns the current State. Commands are applied one at a time in the
// order they are dispatched. A Store is not safe for concurrent use.
type Store struct {
	state     State
	log       *zap.Logger
	busy      atomic.Bool
	listeners []Listener
}

// NewStore returns a store holding an empty document.
func NewStore(limits Limits) *Store {
	return &Store{
		state: New(limits),
		log:   logger.Named("store"),
	}
}

// WithLogger replaces the store's logger.
func (s *Store) WithLogger(l *zap.Logger) *Store {
	s.log = l
	return s
}

// Subscribe registers a listener.
func (s *Store) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Dispatch applies cmd and notifies listeners.
func (s *Store) Dispatch(cmd Command) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrReentrantDispatch
	}
	defer s.busy.Store(false)

	prev := s.state
	s.state = Reduce(prev, cmd)

	s.log.Debug("command applied",
		zap.String("command", cmd.Name()),
		zap.Int("points", len(s.state.Points)),
		zap.Int("selected_points", len(s.state.SelectedPoints)),
		zap.Int("selected_faces", len(s.state.SelectedFaces)),
		zap.Int("undo_depth", len(s.state.History)),
	)

	for _, l := range s.listeners {
		l(s.state)
	}
	return nil
}

// State returns the current state. Its slices must be treated as
// read-only.
func (s *Store) State() State { return s.state }

// Points returns the current points.
func (s *Store) Points() []document.Point { return s.state.Points }

// Faces returns the current faces.
func (s *Store) Faces() []document.Face { return s.state.Faces }

// Labels returns the label definitions sorted by id.
func (s *Store) Labels() []document.Label { return s.state.Labels }

// Statistics returns the label statistics.
func (s *Store) Statistics() document.Statistics { return s.state.Statistics }

// Metadata returns the source file metadata.
func (s *Store) Metadata() document.Metadata { return s.state.Metadata }

// Scene returns the source scene handle, or nil for point-cloud sources.
func (s *Store) Scene() *scene.Scene { return s.state.Scene }

// Interaction returns the interaction map, or nil for point-cloud sources.
func (s *Store) Interaction() *scene.InteractionMap { return s.state.Interaction }

// SelectedPoints returns the selected point indices.
func (s *Store) SelectedPoints() []int { return s.state.SelectedPoints }

// SelectedFaces returns the selected face indices in ascending order.
func (s *Store) SelectedFaces() []int { return s.state.SelectedFaces }

// SelectionMode returns the face derivation mode.
func (s *Store) SelectionMode() selection.Mode { return s.state.SelectionMode }

// ColorAdjustment returns the display adjustment.
func (s *Store) ColorAdjustment() ColorAdjustment { return s.state.ColorAdjustment }

// ViewMode returns the display mode.
func (s *Store) ViewMode() ViewMode { return s.state.ViewMode }

// CanUndo reports whether Undo would change anything.
func (s *Store) CanUndo() bool { return s.state.CanUndo() }
