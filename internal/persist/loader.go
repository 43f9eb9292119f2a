package persist

import (
	"github.com/dshills/bined/internal/content"
	"github.com/dshills/bined/internal/segment"
	"github.com/dshills/bined/internal/source"
)

// Logger is the logging surface persist components need.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Loader builds fresh content handles. It never touches the handle an
// editor currently has bound.
type Loader struct {
	store  *segment.Store
	logger Logger
}

// NewLoader creates a loader over store.
func NewLoader(store *segment.Store, logger Logger) *Loader {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Loader{store: store, logger: logger}
}

// Load reads src into a new handle according to d. owner tags delta
// sources so the same editor can re-open a path it already holds.
func (l *Loader) Load(src source.Source, d Decision, owner string) (content.Handle, error) {
	if src == nil {
		return nil, ErrUnresolvableSource
	}

	switch d.Strategy {
	case StrategyDelta:
		return l.loadDelta(src, d, owner)
	default:
		return l.loadMemory(src)
	}
}

func (l *Loader) loadDelta(src source.Source, d Decision, owner string) (content.Handle, error) {
	path, ok := src.LocalPath()
	if !ok {
		return nil, NewOperationError("load", src.Name(), ErrUnresolvableSource)
	}

	fds, err := l.store.OpenFileSource(path, d.Mode, segment.WithOwner(owner))
	if err != nil {
		return nil, NewOperationError("load", src.Name(), err)
	}
	doc, err := l.store.CreateDocument(fds)
	if err != nil {
		if closeErr := fds.Close(); closeErr != nil {
			l.logger.Warn("closing %s after failed load: %v", path, closeErr)
		}
		return nil, NewOperationError("load", src.Name(), err)
	}

	l.logger.Debug("loaded %s as delta document %s (%s)", path, doc.ID(), d.Mode)
	return content.NewFileBacked(doc), nil
}

func (l *Loader) loadMemory(src source.Source) (h content.Handle, err error) {
	r, err := src.OpenReader()
	if err != nil {
		return nil, NewOperationError("load", src.Name(), err)
	}
	if r == nil {
		return nil, NewOperationError("load", src.Name(), ErrUnresolvableSource)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil && err == nil {
			_ = h.Dispose()
			h, err = nil, NewOperationError("load", src.Name(), closeErr)
		}
	}()

	buf, err := content.ReadBuffer(r)
	if err != nil {
		return nil, NewOperationError("load", src.Name(), err)
	}

	l.logger.Debug("loaded %s into memory (%d bytes)", src.Name(), buf.Len())
	return buf, nil
}
