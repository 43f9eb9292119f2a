// Package source resolves what an editor opens into a Source: either a
// local file with a path on disk or a stream that can only be read and
// written as a whole.
package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Source errors
var (
	// ErrUnresolvableSource indicates a URI that names no file or stream.
	ErrUnresolvableSource = errors.New("unresolvable source")

	// ErrIsDirectory indicates the URI names a directory.
	ErrIsDirectory = errors.New("source is a directory")
)

// MemScheme prefixes URIs that resolve into the resolver's MemFS.
const MemScheme = "mem:"

// Source is something an editor can open and save.
type Source interface {
	// Name returns a display name.
	Name() string

	// LocalPath returns the path on the local file system, if there is one.
	LocalPath() (string, bool)

	// Writable reports whether the source accepts writes.
	Writable() bool

	// Size returns the current size in bytes, or -1 if unknown.
	Size() int64

	// OpenReader opens the whole content for reading.
	OpenReader() (io.ReadCloser, error)

	// OpenWriter opens the source for replacing its whole content.
	OpenWriter() (io.WriteCloser, error)
}

// LocalFile is a regular file on the local file system.
type LocalFile struct {
	path string
}

// NewLocalFile resolves path to an existing regular file.
func NewLocalFile(path string) (*LocalFile, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &fs.PathError{Op: "resolve", Path: path, Err: err}
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "resolve", Path: absPath, Err: ErrIsDirectory}
	}
	return &LocalFile{path: absPath}, nil
}

// Name returns the file path.
func (f *LocalFile) Name() string { return f.path }

// LocalPath returns the absolute path.
func (f *LocalFile) LocalPath() (string, bool) { return f.path, true }

// Writable reports whether the current process may write the file.
func (f *LocalFile) Writable() bool { return canWrite(f.path) }

// Size returns the file size, or -1 if it cannot be determined.
func (f *LocalFile) Size() int64 {
	info, err := os.Stat(f.path)
	if err != nil {
		return -1
	}
	return info.Size()
}

// OpenReader opens the file for reading.
func (f *LocalFile) OpenReader() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// OpenWriter truncates the file and opens it for writing. The file keeps
// its mode and identity.
func (f *LocalFile) OpenWriter() (io.WriteCloser, error) {
	return os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

// Stream is a source reachable only through a VFS, with no local path.
type Stream struct {
	vfs  VFS
	path string
	name string
}

// NewStream creates a stream source for path on vfs.
func NewStream(vfs VFS, path, name string) *Stream {
	if name == "" {
		name = path
	}
	return &Stream{vfs: vfs, path: path, name: name}
}

// Name returns the display name.
func (s *Stream) Name() string { return s.name }

// LocalPath always reports false.
func (s *Stream) LocalPath() (string, bool) { return "", false }

// Writable reports whether the entry accepts writes. Entries that do not
// exist yet are writable.
func (s *Stream) Writable() bool {
	info, err := s.vfs.Stat(s.path)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	return info.Writable()
}

// Size returns the entry size, or -1 if unknown.
func (s *Stream) Size() int64 {
	info, err := s.vfs.Stat(s.path)
	if err != nil {
		return -1
	}
	return info.Size()
}

// OpenReader opens the entry for reading.
func (s *Stream) OpenReader() (io.ReadCloser, error) {
	return s.vfs.Open(s.path)
}

// OpenWriter opens the entry for replacement.
func (s *Stream) OpenWriter() (io.WriteCloser, error) {
	return s.vfs.Create(s.path)
}

// Resolver turns URIs into sources.
type Resolver struct {
	mem *MemFS
}

// NewResolver creates a resolver. mem backs mem: URIs; nil creates an
// empty MemFS.
func NewResolver(mem *MemFS) *Resolver {
	if mem == nil {
		mem = NewMemFS()
	}
	return &Resolver{mem: mem}
}

// MemFS returns the file system behind mem: URIs.
func (r *Resolver) MemFS() *MemFS { return r.mem }

// Resolve resolves uri into a source.
//
//	mem:NAME        stream over the resolver's MemFS
//	file:///a/b     local file
//	/a/b, ./b       local file
func (r *Resolver) Resolve(uri string) (Source, error) {
	uri = strings.TrimSpace(uri)
	switch {
	case uri == "":
		return nil, ErrUnresolvableSource

	case strings.HasPrefix(uri, MemScheme):
		name := strings.TrimPrefix(uri, MemScheme)
		if strings.Trim(name, "/") == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnresolvableSource, uri)
		}
		p, _ := r.mem.Abs(name)
		if !r.mem.Exists(p) {
			return nil, &fs.PathError{Op: "resolve", Path: uri, Err: fs.ErrNotExist}
		}
		return NewStream(r.mem, p, uri), nil

	case strings.HasPrefix(uri, "file://"):
		u, err := url.Parse(uri)
		if err != nil || u.Path == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnresolvableSource, uri)
		}
		return NewLocalFile(u.Path)

	case strings.Contains(uri, "://"):
		return nil, fmt.Errorf("%w: unsupported scheme in %q", ErrUnresolvableSource, uri)

	default:
		return NewLocalFile(uri)
	}
}
