package persist

import (
	"bufio"
	"fmt"

	"github.com/dshills/bined/internal/content"
	"github.com/dshills/bined/internal/segment"
	"github.com/dshills/bined/internal/source"
)

// Saver writes content handles back to their destination.
type Saver struct {
	store  *segment.Store
	logger Logger
}

// NewSaver creates a saver over store.
func NewSaver(store *segment.Store, logger Logger) *Saver {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Saver{store: store, logger: logger}
}

// Save persists h to dest. Delta documents are saved through the segment
// store, which writes only what changed; buffers are streamed whole to
// dest. Read-only enforcement is the caller's job.
func (s *Saver) Save(h content.Handle, dest source.Source) error {
	if dest == nil {
		return ErrNoDestination
	}

	var err error
	switch h := h.(type) {
	case *content.FileBacked:
		err = s.store.SaveDocument(h.Document())
	case *content.Buffer:
		err = s.writeStream(h, dest)
	case nil:
		err = ErrNoContent
	default:
		err = fmt.Errorf("unsupported content handle %T", h)
	}
	if err != nil {
		return NewOperationError("save", dest.Name(), err)
	}

	s.logger.Debug("saved %s", dest.Name())
	return nil
}

func (s *Saver) writeStream(b *content.Buffer, dest source.Source) (err error) {
	w, err := dest.OpenWriter()
	if err != nil {
		return err
	}
	if w == nil {
		return ErrUnresolvableSource
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	bw := bufio.NewWriter(w)
	if _, err = b.WriteTo(bw); err != nil {
		return err
	}
	return bw.Flush()
}
