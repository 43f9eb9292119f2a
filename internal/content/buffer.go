package content

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Buffer is a fully resident, growable byte buffer.
type Buffer struct {
	mu       sync.RWMutex
	data     []byte
	disposed bool
}

// NewBuffer creates a buffer holding a copy of data.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: append([]byte(nil), data...)}
}

// ReadBuffer reads r to EOF into a new buffer. On error the partially
// filled buffer is discarded.
func ReadBuffer(r io.Reader) (*Buffer, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	return &Buffer{data: buf.Bytes()}, nil
}

// Len returns the buffer length.
func (b *Buffer) Len() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return int64(len(b.data))
}

// Kind returns KindMemory.
func (b *Buffer) Kind() Kind { return KindMemory }

// ReadAt implements io.ReaderAt.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.disposed {
		return 0, ErrDisposed
	}
	if off < 0 || off > int64(len(b.data)) {
		return 0, ErrOutOfRange
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt overwrites bytes at off, growing the buffer when the write runs
// past the end. off must not exceed Len.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.disposed {
		return 0, ErrDisposed
	}
	if off < 0 || off > int64(len(b.data)) {
		return 0, ErrOutOfRange
	}
	if end := off + int64(len(p)); end > int64(len(b.data)) {
		b.data = append(b.data, make([]byte, end-int64(len(b.data)))...)
	}
	return copy(b.data[off:], p), nil
}

// WriteTo writes the whole buffer to w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.disposed {
		return 0, ErrDisposed
	}
	n, err := w.Write(b.data)
	return int64(n), err
}

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]byte(nil), b.data...)
}

// Dispose drops the buffer contents.
func (b *Buffer) Dispose() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.disposed {
		return ErrDisposed
	}
	b.disposed = true
	b.data = nil
	return nil
}

// Disposed reports whether Dispose has run.
func (b *Buffer) Disposed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.disposed
}

func (*Buffer) sealed() {}
