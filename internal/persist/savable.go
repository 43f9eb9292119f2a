package persist

import (
	"context"
	"errors"
	"sync"

	"github.com/dshills/bined/internal/registry"
)

//go:generate mockgen -source=savable.go -destination=mock/registry.go -package=mock_persist

// SaveRegistry is the host registry a Savable registers with while its
// editor has unsaved changes.
type SaveRegistry interface {
	Register(u registry.Unit)
	Unregister(u registry.Unit)
}

// unknownName is shown for an editor with nothing bound.
const unknownName = "<unknown file>"

var _ registry.CheckedUnit = (*Savable)(nil)

// Savable is an editor's entry in the host save registry. It holds only a
// back reference to the editor and looks the destination up when asked to
// save.
type Savable struct {
	editor   *Editor
	registry SaveRegistry

	mu     sync.Mutex
	active bool
}

func newSavable(e *Editor, reg SaveRegistry) *Savable {
	return &Savable{editor: e, registry: reg}
}

// Key returns the owning editor's id.
func (s *Savable) Key() string { return s.editor.ID() }

// DisplayName returns the destination name, or "<unknown file>".
func (s *Savable) DisplayName() string {
	if name := s.editor.destinationName(); name != "" {
		return name
	}
	return unknownName
}

// Activate registers with the host registry. It is a no-op when already
// active.
func (s *Savable) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active || s.registry == nil {
		return
	}
	s.registry.Register(s)
	s.active = true
}

// Deactivate unregisters from the host registry. It is a no-op when not
// active.
func (s *Savable) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.registry == nil {
		return
	}
	s.registry.Unregister(s)
	s.active = false
}

// IsActive reports whether the savable is registered.
func (s *Savable) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// HandleSave saves the editor's content. With no destination bound there
// is nothing to save and it returns nil.
func (s *Savable) HandleSave(ctx context.Context) error {
	_, err := s.TrySave(ctx)
	return err
}

// TrySave is HandleSave that also reports whether anything was written.
// It returns false with a nil error when the editor is closed or has no
// destination.
func (s *Savable) TrySave(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := s.editor.SaveCurrent()
	if errors.Is(err, ErrNoDestination) || errors.Is(err, ErrClosed) {
		return false, nil
	}
	return err == nil, err
}
