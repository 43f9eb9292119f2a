package content

import (
	"errors"
	"io"

	"github.com/dshills/bined/internal/segment"
)

// FileBacked is a delta document over a file source. Unchanged bytes stay
// on disk; only edits are held in memory.
type FileBacked struct {
	doc *segment.Document
}

// NewFileBacked wraps a segment document.
func NewFileBacked(doc *segment.Document) *FileBacked {
	return &FileBacked{doc: doc}
}

// Document returns the underlying segment document.
func (f *FileBacked) Document() *segment.Document { return f.doc }

// Len returns the document length.
func (f *FileBacked) Len() int64 { return f.doc.Len() }

// Kind returns KindFileBacked.
func (f *FileBacked) Kind() Kind { return KindFileBacked }

// ReadAt implements io.ReaderAt.
func (f *FileBacked) ReadAt(p []byte, off int64) (int, error) {
	n, err := f.doc.ReadAt(p, off)
	return n, mapErr(err)
}

// WriteAt overwrites bytes at off, extending the document past its end.
func (f *FileBacked) WriteAt(p []byte, off int64) (int, error) {
	n, err := f.doc.WriteAt(p, off)
	return n, mapErr(err)
}

// Insert inserts p at off.
func (f *FileBacked) Insert(off int64, p []byte) error {
	return mapErr(f.doc.Insert(off, p))
}

// Remove deletes n bytes at off.
func (f *FileBacked) Remove(off, n int64) error {
	return mapErr(f.doc.Remove(off, n))
}

// WriteTo streams the document to w.
func (f *FileBacked) WriteTo(w io.Writer) (int64, error) {
	n, err := f.doc.WriteTo(w)
	return n, mapErr(err)
}

// Dispose disposes the document and closes its file source.
func (f *FileBacked) Dispose() error {
	return mapErr(f.doc.Dispose())
}

// Disposed reports whether Dispose has run.
func (f *FileBacked) Disposed() bool { return f.doc.IsDisposed() }

func (*FileBacked) sealed() {}

// mapErr translates segment errors into content errors, keeping io.EOF
// and everything else intact.
func mapErr(err error) error {
	switch {
	case err == nil, err == io.EOF:
		return err
	case errors.Is(err, segment.ErrDisposed):
		return ErrDisposed
	case errors.Is(err, segment.ErrOutOfRange):
		return ErrOutOfRange
	default:
		return err
	}
}
