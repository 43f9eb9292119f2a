// Package content defines the content handle an editor binds to: either a
// fully resident byte buffer or a delta document backed by a file.
package content

import (
	"errors"
	"io"
)

// Content errors
var (
	// ErrDisposed indicates the handle has already been disposed.
	ErrDisposed = errors.New("content handle disposed")

	// ErrOutOfRange indicates an offset outside the content.
	ErrOutOfRange = errors.New("offset out of range")
)

// Kind identifies the storage strategy behind a handle.
type Kind int

const (
	// KindMemory is a fully resident buffer.
	KindMemory Kind = iota

	// KindFileBacked is a delta document over a file source.
	KindFileBacked
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindMemory:
		return "memory"
	case KindFileBacked:
		return "file-backed"
	default:
		return "unknown"
	}
}

// Handle is the content an editor holds. It has exactly two
// implementations, *Buffer and *FileBacked; callers that need to tell them
// apart use a type switch.
type Handle interface {
	io.ReaderAt
	io.WriterAt
	io.WriterTo

	// Len returns the content length in bytes.
	Len() int64

	// Kind returns the storage strategy.
	Kind() Kind

	// Dispose releases the resources behind the handle. It succeeds once;
	// later calls return ErrDisposed and do nothing.
	Dispose() error

	// Disposed reports whether Dispose has run.
	Disposed() bool

	sealed()
}
