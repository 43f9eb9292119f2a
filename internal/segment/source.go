package segment

import (
	"os"
	"sync"
)

// Mode is the access mode a file source is opened with.
type Mode int

const (
	// ReadOnly opens the file for reading only.
	ReadOnly Mode = iota

	// ReadWrite opens the file for reading and in-place writing.
	ReadWrite
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	default:
		return "unknown"
	}
}

// SourceOption configures OpenFileSource.
type SourceOption func(*sourceOptions)

type sourceOptions struct {
	owner string
}

// WithOwner tags the source with an owner identity. A path held by one
// owner can be re-opened by the same owner. Another owner may only share
// it when both opens are ReadOnly.
func WithOwner(owner string) SourceOption {
	return func(o *sourceOptions) {
		o.owner = owner
	}
}

// FileDataSource is an open file on durable storage that a delta document
// layers its segments over. It is owned by the Store that opened it.
type FileDataSource struct {
	mu sync.Mutex

	store *Store
	path  string
	owner string
	mode  Mode
	file  *os.File

	// size is the length of the on-disk bytes that source segments refer to.
	size int64

	doc    *Document
	closed bool
}

// Path returns the absolute path of the file.
func (s *FileDataSource) Path() string { return s.path }

// Owner returns the owner identity, or "" when none was given.
func (s *FileDataSource) Owner() string { return s.owner }

// Mode returns the access mode.
func (s *FileDataSource) Mode() Mode { return s.mode }

// Size returns the size of the underlying file as last opened or saved.
func (s *FileDataSource) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// IsClosed reports whether the source has been closed.
func (s *FileDataSource) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the file handle and the store's hold on the path.
// Closing twice returns ErrSourceClosed.
func (s *FileDataSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSourceClosed
	}
	s.closed = true
	f := s.file
	s.file = nil
	s.mu.Unlock()

	s.store.release(s)
	if f == nil {
		return nil
	}
	return f.Close()
}

func (s *FileDataSource) readAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	f := s.file
	s.mu.Unlock()
	if f == nil {
		return 0, ErrSourceClosed
	}
	n, err := f.ReadAt(p, off)
	s.store.bytesRead.Add(int64(n))
	return n, err
}

func (s *FileDataSource) writeAt(p []byte, off int64) (int, error) {
	if s.mode != ReadWrite {
		return 0, ErrReadOnly
	}
	s.mu.Lock()
	f := s.file
	s.mu.Unlock()
	if f == nil {
		return 0, ErrSourceClosed
	}
	n, err := f.WriteAt(p, off)
	s.store.bytesWritten.Add(int64(n))
	return n, err
}

// handle returns the current file handle.
func (s *FileDataSource) handle() *os.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file
}

// replace swaps in a freshly opened handle after a rewrite and returns the
// previous one for the caller to close.
func (s *FileDataSource) replace(f *os.File, size int64) *os.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.file
	s.file = f
	s.size = size
	return old
}

func (s *FileDataSource) setSize(size int64) {
	s.mu.Lock()
	s.size = size
	s.mu.Unlock()
}

func openFlag(mode Mode) int {
	if mode == ReadWrite {
		return os.O_RDWR
	}
	return os.O_RDONLY
}
