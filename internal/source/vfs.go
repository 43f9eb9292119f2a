package source

import (
	"io"
	"io/fs"
)

// VFS is the file system a Stream source reads from and writes to.
type VFS interface {
	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Create returns a writer that replaces the file's content.
	Create(path string) (io.WriteCloser, error)

	// Stat returns file information.
	Stat(path string) (FileInfo, error)
}

// FileInfo describes a VFS entry.
type FileInfo struct {
	name  string
	size  int64
	mode  fs.FileMode
	isDir bool
}

// Name returns the base name.
func (fi FileInfo) Name() string { return fi.name }

// Size returns the size in bytes.
func (fi FileInfo) Size() int64 { return fi.size }

// IsDir reports whether the entry is a directory.
func (fi FileInfo) IsDir() bool { return fi.isDir }

// Writable reports whether the owner write bit is set.
func (fi FileInfo) Writable() bool { return fi.mode.Perm()&0o200 != 0 }
