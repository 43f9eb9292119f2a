// Package segment implements the segment store: the process-wide service
// that opens file sources, layers delta documents over them and persists
// those documents by writing only the segments that changed.
package segment

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Logger is the logging surface the store needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

// Store owns open file sources and the delta documents layered over them.
// A single Store is shared by every open editor; it is safe for concurrent
// use as long as each document is driven by one caller at a time.
type Store struct {
	mu      sync.Mutex
	sources map[string][]*FileDataSource // abs path -> open sources
	closed  bool

	// tempDir overrides where rewrite saves stage their output.
	// Empty means the directory of the file being saved.
	tempDir string
	logger  Logger

	bytesRead    atomic.Int64
	bytesWritten atomic.Int64
	saves        atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithTempDir sets the staging directory for rewrite saves. It must be on
// the same file system as the documents being saved.
func WithTempDir(dir string) Option {
	return func(s *Store) {
		s.tempDir = dir
	}
}

// WithLogger sets the store logger.
func WithLogger(l Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates a new segment store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sources: make(map[string][]*FileDataSource),
		logger:  nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenFileSource opens path in the given mode.
// It fails with ErrSourceInUse when another owner already holds the path
// and either side wants ReadWrite. Read-only holders may share a path.
func (s *Store) OpenFileSource(path string, mode Mode, opts ...SourceOption) (*FileDataSource, error) {
	var o sourceOptions
	for _, opt := range opts {
		opt(&o)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	for _, held := range s.sources[absPath] {
		sameOwner := held.owner != "" && held.owner == o.owner
		if !sameOwner && (mode == ReadWrite || held.mode == ReadWrite) {
			return nil, &os.PathError{Op: "open", Path: absPath, Err: ErrSourceInUse}
		}
	}

	f, err := os.OpenFile(absPath, openFlag(mode), 0)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, &os.PathError{Op: "open", Path: absPath, Err: ErrIsDirectory}
	}

	src := &FileDataSource{
		store: s,
		path:  absPath,
		owner: o.owner,
		mode:  mode,
		file:  f,
		size:  info.Size(),
	}
	s.sources[absPath] = append(s.sources[absPath], src)
	s.logger.Debug("opened file source %s (%s, %d bytes)", absPath, mode, info.Size())
	return src, nil
}

// CreateDocument layers a new delta document over src.
func (s *Store) CreateDocument(src *FileDataSource) (*Document, error) {
	if src == nil || src.store != s {
		return nil, ErrForeignSource
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	if src.closed {
		return nil, ErrSourceClosed
	}
	if src.doc != nil {
		return nil, ErrDocumentExists
	}

	doc := newDocument(src, src.size)
	src.doc = doc
	s.logger.Debug("created document %s over %s", doc.ID(), src.path)
	return doc, nil
}

// SaveDocument persists doc's edits to its file source.
//
// When every unchanged segment still sits at its original offset only the
// changed segments are written, so the cost tracks the size of the edits
// rather than the size of the file. Otherwise the document is streamed to
// a temporary file that then replaces the original.
func (s *Store) SaveDocument(doc *Document) error {
	if doc == nil || doc.src == nil || doc.src.store != s {
		return ErrForeignSource
	}

	doc.mu.Lock()
	defer doc.mu.Unlock()

	if doc.disposed {
		return ErrDisposed
	}
	src := doc.src
	if src.mode != ReadWrite {
		return &os.PathError{Op: "save", Path: src.path, Err: ErrReadOnly}
	}
	if !doc.modified {
		return nil
	}

	var err error
	if doc.inPlaceLayout() {
		err = s.saveInPlace(doc)
	} else {
		err = s.saveRewrite(doc)
	}
	if err != nil {
		return err
	}

	doc.reset(doc.length)
	s.saves.Add(1)
	return nil
}

func (s *Store) saveInPlace(doc *Document) error {
	src := doc.src
	var pos, written int64
	for _, pc := range doc.pieces {
		if pc.inMemory() {
			if _, err := src.writeAt(pc.data, pos); err != nil {
				return &os.PathError{Op: "save", Path: src.path, Err: err}
			}
			written += pc.n
		}
		pos += pc.n
	}

	f := src.handle()
	if f == nil {
		return &os.PathError{Op: "save", Path: src.path, Err: ErrSourceClosed}
	}
	if doc.length < src.Size() {
		if err := f.Truncate(doc.length); err != nil {
			return &os.PathError{Op: "save", Path: src.path, Err: err}
		}
	}
	if err := f.Sync(); err != nil {
		return &os.PathError{Op: "save", Path: src.path, Err: err}
	}
	src.setSize(doc.length)

	s.logger.Debug("saved document %s in place (%d bytes written)", doc.ID(), written)
	return nil
}

func (s *Store) saveRewrite(doc *Document) (err error) {
	src := doc.src
	dir := s.tempDir
	if dir == "" {
		dir = filepath.Dir(src.path)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(src.path)+".*.tmp")
	if err != nil {
		return &os.PathError{Op: "save", Path: src.path, Err: err}
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if info, statErr := src.handle().Stat(); statErr == nil {
		if chmodErr := tmp.Chmod(info.Mode().Perm()); chmodErr != nil {
			s.logger.Warn("preserving mode of %s: %v", src.path, chmodErr)
		}
	}

	cw := &countingWriter{w: tmp, n: &s.bytesWritten}
	if _, err = doc.writeToLocked(cw); err != nil {
		return &os.PathError{Op: "save", Path: src.path, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &os.PathError{Op: "save", Path: src.path, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &os.PathError{Op: "save", Path: src.path, Err: err}
	}
	if err = os.Rename(tmpPath, src.path); err != nil {
		return &os.PathError{Op: "save", Path: src.path, Err: err}
	}

	// The old handle now points at the unlinked original; swap in the new file.
	f, openErr := os.OpenFile(src.path, openFlag(src.mode), 0)
	if openErr != nil {
		return &os.PathError{Op: "save", Path: src.path, Err: openErr}
	}
	if old := src.replace(f, doc.length); old != nil {
		if closeErr := old.Close(); closeErr != nil {
			s.logger.Warn("closing replaced handle for %s: %v", src.path, closeErr)
		}
	}

	s.logger.Debug("saved document %s by rewrite (%d bytes)", doc.ID(), doc.length)
	return nil
}

// release drops the store's hold on a closed source.
func (s *Store) release(src *FileDataSource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.sources[src.path]
	for i, h := range held {
		if h == src {
			held = append(held[:i], held[i+1:]...)
			break
		}
	}
	if len(held) == 0 {
		delete(s.sources, src.path)
	} else {
		s.sources[src.path] = held
	}
	s.logger.Debug("closed file source %s", src.path)
}

// IsOpen reports whether any source currently holds path.
func (s *Store) IsOpen(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources[absPath]) > 0
}

// Close closes every source still open. Their documents become unusable.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var open []*FileDataSource
	for _, held := range s.sources {
		open = append(open, held...)
	}
	s.mu.Unlock()

	var errs []error
	for _, src := range open {
		src.mu.Lock()
		doc := src.doc
		src.mu.Unlock()

		var err error
		if doc != nil {
			err = doc.Dispose()
		} else {
			err = src.Close()
		}
		if err != nil && !errors.Is(err, ErrDisposed) && !errors.Is(err, ErrSourceClosed) {
			errs = append(errs, fmt.Errorf("closing %s: %w", src.path, err))
		}
	}
	return errors.Join(errs...)
}

// Stats is a snapshot of store activity.
type Stats struct {
	OpenSources   int
	OpenDocuments int
	BytesRead     int64
	BytesWritten  int64
	Saves         int64
}

// Stats returns current store statistics.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		BytesRead:    s.bytesRead.Load(),
		BytesWritten: s.bytesWritten.Load(),
		Saves:        s.saves.Load(),
	}
	for _, held := range s.sources {
		stats.OpenSources += len(held)
		for _, src := range held {
			src.mu.Lock()
			if src.doc != nil {
				stats.OpenDocuments++
			}
			src.mu.Unlock()
		}
	}
	return stats
}

type countingWriter struct {
	w io.Writer
	n *atomic.Int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}
