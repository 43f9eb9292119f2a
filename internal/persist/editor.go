package persist

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/bined/internal/content"
	"github.com/dshills/bined/internal/segment"
	"github.com/dshills/bined/internal/source"
)

// Settings are the runtime persistence settings an editor consults on
// every open.
type Settings struct {
	DeltaMode          bool
	LargeFileThreshold int64
}

// Options configures an Editor.
type Options struct {
	// Store is the shared segment store. Required.
	Store *segment.Store

	// Registry receives the editor's Savable while it has unsaved changes.
	Registry SaveRegistry

	// Resolver resolves URIs for OpenURI.
	Resolver *source.Resolver

	// Settings returns the current settings. Nil means delta mode on.
	Settings func() Settings

	Logger Logger
}

// Editor binds one content handle at a time to a destination and tracks
// whether it has unsaved changes. All operations are serialized.
type Editor struct {
	mu sync.Mutex

	id       uuid.UUID
	loader   *Loader
	saver    *Saver
	resolver *source.Resolver
	settings func() Settings
	savable  *Savable
	logger   Logger

	handle   content.Handle
	dest     source.Source
	decision Decision
	modified bool
	closed   bool

	// destName is read by the Savable without taking mu.
	destName atomic.Value
}

// NewEditor creates an editor with nothing bound.
func NewEditor(opts Options) (*Editor, error) {
	if opts.Store == nil {
		return nil, errors.New("persist: editor requires a segment store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	settings := opts.Settings
	if settings == nil {
		settings = func() Settings { return Settings{DeltaMode: true} }
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = source.NewResolver(nil)
	}

	e := &Editor{
		id:       uuid.New(),
		loader:   NewLoader(opts.Store, logger),
		saver:    NewSaver(opts.Store, logger),
		resolver: resolver,
		settings: settings,
		logger:   logger,
	}
	e.destName.Store("")
	e.savable = newSavable(e, opts.Registry)
	return e, nil
}

// ID returns the editor identity.
func (e *Editor) ID() string { return e.id.String() }

// Savable returns the editor's save registry entry.
func (e *Editor) Savable() *Savable { return e.savable }

// OpenURI resolves uri and opens it.
func (e *Editor) OpenURI(uri string) error {
	src, err := e.resolver.Resolve(uri)
	if err != nil {
		if errors.Is(err, source.ErrUnresolvableSource) {
			return NewOperationError("open", uri, errors.Join(ErrUnresolvableSource, err))
		}
		return NewOperationError("open", uri, err)
	}
	return e.Open(src)
}

// Open loads src and binds it, replacing whatever was bound before. If
// loading fails the editor is left exactly as it was.
func (e *Editor) Open(src source.Source) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if src == nil {
		return ErrUnresolvableSource
	}

	settings := e.settings()
	_, hasLocal := src.LocalPath()
	d := Select(SelectInput{
		HasLocalFile:       hasLocal,
		DeltaMode:          settings.DeltaMode,
		Writable:           src.Writable(),
		Size:               src.Size(),
		LargeFileThreshold: settings.LargeFileThreshold,
	})

	h, err := e.loader.Load(src, d, e.ID())
	if err != nil {
		e.logger.Warn("open %s failed: %v", src.Name(), err)
		return err
	}

	old := e.handle
	e.handle = h
	e.dest = src
	e.decision = d
	e.destName.Store(src.Name())
	e.modified = false
	e.savable.Deactivate()

	if old != nil {
		if err := old.Dispose(); err != nil {
			e.logger.Warn("disposing previous content: %v", err)
		}
	}

	e.logger.Info("opened %s (%s, editable=%t)", src.Name(), d.Strategy, d.Editable)
	return nil
}

// SaveCurrent saves the bound content to its destination. On success the
// modified flag is cleared and the editor leaves the save registry; on
// failure both stay as they were.
func (e *Editor) SaveCurrent() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.dest == nil || e.handle == nil {
		return ErrNoDestination
	}
	if !e.decision.Editable {
		return NewOperationError("save", e.dest.Name(), ErrReadOnly)
	}

	if err := e.saver.Save(e.handle, e.dest); err != nil {
		e.logger.Error("save %s failed: %v", e.dest.Name(), err)
		return err
	}

	e.modified = false
	e.savable.Deactivate()
	return nil
}

// WriteAt overwrites bytes at off; writing at Len appends.
func (e *Editor) WriteAt(p []byte, off int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkEditable(); err != nil {
		return 0, err
	}
	n, err := e.handle.WriteAt(p, off)
	if n > 0 {
		e.markModified()
	}
	return n, err
}

// Insert inserts p at off. Only delta documents support insertion.
func (e *Editor) Insert(off int64, p []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkEditable(); err != nil {
		return err
	}
	fb, ok := e.handle.(*content.FileBacked)
	if !ok {
		return errors.New("insert requires a delta document")
	}
	if err := fb.Insert(off, p); err != nil {
		return err
	}
	if len(p) > 0 {
		e.markModified()
	}
	return nil
}

// Remove deletes n bytes at off. Only delta documents support removal.
func (e *Editor) Remove(off, n int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkEditable(); err != nil {
		return err
	}
	fb, ok := e.handle.(*content.FileBacked)
	if !ok {
		return errors.New("remove requires a delta document")
	}
	if err := fb.Remove(off, n); err != nil {
		return err
	}
	if n > 0 {
		e.markModified()
	}
	return nil
}

// ReadAt reads bound content.
func (e *Editor) ReadAt(p []byte, off int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, ErrClosed
	}
	if e.handle == nil {
		return 0, ErrNoContent
	}
	return e.handle.ReadAt(p, off)
}

// Len returns the bound content length, or 0 when nothing is bound.
func (e *Editor) Len() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handle == nil {
		return 0
	}
	return e.handle.Len()
}

// IsModified reports whether there are unsaved changes.
func (e *Editor) IsModified() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modified
}

// IsEditable reports whether the bound content accepts edits.
func (e *Editor) IsEditable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handle != nil && e.decision.Editable
}

// Strategy returns the storage strategy of the bound content.
func (e *Editor) Strategy() Strategy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.decision.Strategy
}

// Destination returns the bound destination, or nil.
func (e *Editor) Destination() source.Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dest
}

// Handle returns the bound content handle, or nil.
func (e *Editor) Handle() content.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handle
}

// Close disposes the bound content and leaves the save registry. Unsaved
// changes are discarded.
func (e *Editor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.savable.Deactivate()

	h := e.handle
	e.handle = nil
	e.dest = nil
	e.destName.Store("")
	e.modified = false
	if h == nil {
		return nil
	}
	if err := h.Dispose(); err != nil {
		return NewOperationError("close", e.ID(), err)
	}
	return nil
}

func (e *Editor) checkEditable() error {
	switch {
	case e.closed:
		return ErrClosed
	case e.handle == nil:
		return ErrNoContent
	case !e.decision.Editable:
		return ErrReadOnly
	}
	return nil
}

func (e *Editor) markModified() {
	e.modified = true
	e.savable.Activate()
}

func (e *Editor) destinationName() string {
	return e.destName.Load().(string)
}
