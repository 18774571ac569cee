// Package ingest is the boundary between raw files and the document store.
// It detects formats, runs each decode or encode as one cancellable unit of
// work, and reports non-fatal validation warnings on export.
package ingest

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownFormat is returned when neither content nor name identify
	// a supported format.
	ErrUnknownFormat = errors.New("unknown file format")
	// ErrCanceled is returned when the context ends before the codec does.
	ErrCanceled = errors.New("operation canceled")
	// ErrNoDocument is returned when exporting an empty store.
	ErrNoDocument = errors.New("no document loaded")
)

// Warning codes.
const (
	WarnNoLabeledData      = "no_labeled_data"
	WarnNoLabelDefinitions = "no_label_definitions"
)

// Warning is a non-fatal validation finding. The operation that produced
// it still succeeded.
type Warning struct {
	Code    string
	Message string
}

func (w Warning) String() string {
	return w.Code + ": " + w.Message
}

type result[T any] struct {
	val T
	err error
}

// run executes fn on its own goroutine and waits for it or for ctx. The
// result of an abandoned fn is dropped; fn must not touch shared state.
func run[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	done := make(chan result[T], 1)
	go func() {
		v, err := fn()
		done <- result[T]{v, err}
	}()

	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	case r := <-done:
		return r.val, r.err
	}
}
