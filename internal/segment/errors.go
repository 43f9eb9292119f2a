package segment

import "errors"

// Source errors
var (
	// ErrSourceInUse indicates the path is already held by another owner.
	ErrSourceInUse = errors.New("file source in use by another owner")

	// ErrReadOnly indicates a write was attempted through a read-only source.
	ErrReadOnly = errors.New("file source is read-only")

	// ErrSourceClosed indicates the file source has already been closed.
	ErrSourceClosed = errors.New("file source closed")

	// ErrForeignSource indicates the source was opened by a different store.
	ErrForeignSource = errors.New("file source belongs to another store")

	// ErrIsDirectory indicates the path names a directory.
	ErrIsDirectory = errors.New("path is a directory")
)

// Document errors
var (
	// ErrDocumentExists indicates the source already backs a document.
	ErrDocumentExists = errors.New("file source already has a document")

	// ErrDisposed indicates the document has been disposed.
	ErrDisposed = errors.New("document disposed")

	// ErrOutOfRange indicates an offset or length outside the document.
	ErrOutOfRange = errors.New("offset out of range")
)

// ErrClosed indicates the store has been closed.
var ErrClosed = errors.New("segment store closed")
