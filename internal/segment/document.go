package segment

import (
	"io"
	"sync"

	"github.com/google/uuid"
)

// copyChunkSize bounds the buffer used when streaming source bytes.
const copyChunkSize = 64 * 1024

// piece is a run of document bytes. It either refers to n bytes of the
// source file starting at srcOff, or carries its own bytes in data.
type piece struct {
	srcOff int64
	data   []byte
	n      int64
}

func (p piece) inMemory() bool { return p.data != nil }

// Document is a delta document: an editable view over a FileDataSource
// that records edits as a sequence of segments instead of rewriting the
// file. Unchanged regions stay on disk and are read on demand.
type Document struct {
	mu sync.Mutex

	id     uuid.UUID
	src    *FileDataSource
	pieces []piece
	length int64

	modified bool
	disposed bool
}

func newDocument(src *FileDataSource, size int64) *Document {
	d := &Document{
		id:  uuid.New(),
		src: src,
	}
	d.reset(size)
	return d
}

// reset collapses the document back to a single segment covering size
// bytes of the source.
func (d *Document) reset(size int64) {
	d.pieces = nil
	if size > 0 {
		d.pieces = []piece{{srcOff: 0, n: size}}
	}
	d.length = size
	d.modified = false
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id.String() }

// Source returns the file source the document is layered over.
func (d *Document) Source() *FileDataSource { return d.src }

// Len returns the current document length in bytes.
func (d *Document) Len() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.length
}

// Modified reports whether the document has edits not yet saved.
func (d *Document) Modified() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.modified
}

// IsDisposed reports whether Dispose has been called.
func (d *Document) IsDisposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

// SegmentCount returns the number of segments in the document.
func (d *Document) SegmentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pieces)
}

// ChangedBytes returns the number of bytes held in memory segments, which
// is what an in-place save has to write.
func (d *Document) ChangedBytes() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for _, p := range d.pieces {
		if p.inMemory() {
			n += p.n
		}
	}
	return n
}

// ReadAt implements io.ReaderAt.
func (d *Document) ReadAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disposed {
		return 0, ErrDisposed
	}
	if off < 0 || off > d.length {
		return 0, ErrOutOfRange
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off == d.length {
		return 0, io.EOF
	}

	n := 0
	var pos int64
	for _, pc := range d.pieces {
		if n == len(p) {
			break
		}
		end := pos + pc.n
		cur := off + int64(n)
		if cur >= end {
			pos = end
			continue
		}
		at := cur - pos
		want := min(int64(len(p)-n), pc.n-at)
		if pc.inMemory() {
			copy(p[n:], pc.data[at:at+want])
		} else if _, err := d.src.readAt(p[n:n+int(want)], pc.srcOff+at); err != nil {
			return n, err
		}
		n += int(want)
		pos = end
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt overwrites len(p) bytes at off. Writing past the current end
// extends the document; off itself must not exceed Len.
func (d *Document) WriteAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disposed {
		return 0, ErrDisposed
	}
	if off < 0 || off > d.length {
		return 0, ErrOutOfRange
	}
	if len(p) == 0 {
		return 0, nil
	}

	end := min(off+int64(len(p)), d.length)
	i := d.split(off)
	j := d.split(end)
	data := append([]byte(nil), p...)
	d.splice(i, j, piece{data: data, n: int64(len(data))})

	if off+int64(len(p)) > d.length {
		d.length = off + int64(len(p))
	}
	d.modified = true
	d.coalesce()
	return len(p), nil
}

// Insert inserts p at off, shifting the following bytes.
func (d *Document) Insert(off int64, p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disposed {
		return ErrDisposed
	}
	if off < 0 || off > d.length {
		return ErrOutOfRange
	}
	if len(p) == 0 {
		return nil
	}

	i := d.split(off)
	data := append([]byte(nil), p...)
	d.splice(i, i, piece{data: data, n: int64(len(data))})
	d.length += int64(len(data))
	d.modified = true
	d.coalesce()
	return nil
}

// Remove deletes n bytes starting at off.
func (d *Document) Remove(off, n int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disposed {
		return ErrDisposed
	}
	if off < 0 || n < 0 || off+n > d.length {
		return ErrOutOfRange
	}
	if n == 0 {
		return nil
	}

	i := d.split(off)
	j := d.split(off + n)
	d.splice(i, j)
	d.length -= n
	d.modified = true
	d.coalesce()
	return nil
}

// WriteTo streams the full document content to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disposed {
		return 0, ErrDisposed
	}
	return d.writeToLocked(w)
}

func (d *Document) writeToLocked(w io.Writer) (int64, error) {
	var total int64
	var buf []byte
	for _, pc := range d.pieces {
		if pc.inMemory() {
			n, err := w.Write(pc.data)
			total += int64(n)
			if err != nil {
				return total, err
			}
			continue
		}

		if buf == nil {
			buf = make([]byte, copyChunkSize)
		}
		for done := int64(0); done < pc.n; {
			chunk := buf[:min(int64(len(buf)), pc.n-done)]
			if _, err := d.src.readAt(chunk, pc.srcOff+done); err != nil {
				return total, err
			}
			n, err := w.Write(chunk)
			total += int64(n)
			if err != nil {
				return total, err
			}
			done += int64(n)
		}
	}
	return total, nil
}

// Dispose releases the document and closes its file source.
// Disposing twice returns ErrDisposed.
func (d *Document) Dispose() error {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return ErrDisposed
	}
	d.disposed = true
	d.pieces = nil
	d.mu.Unlock()

	return d.src.Close()
}

// inPlaceLayout reports whether every source segment still sits at its
// original offset, so memory segments can be written straight into the
// file without clobbering bytes other segments refer to.
func (d *Document) inPlaceLayout() bool {
	var pos int64
	for _, pc := range d.pieces {
		if !pc.inMemory() && pc.srcOff != pos {
			return false
		}
		pos += pc.n
	}
	return true
}

// split makes sure a segment boundary exists at off and returns the index
// of the segment starting there (len(pieces) when off == length).
func (d *Document) split(off int64) int {
	var pos int64
	for i, pc := range d.pieces {
		if off == pos {
			return i
		}
		if off < pos+pc.n {
			k := off - pos
			left, right := pc, pc
			left.n = k
			right.n = pc.n - k
			if pc.inMemory() {
				left.data = pc.data[:k:k]
				right.data = pc.data[k:]
			} else {
				right.srcOff = pc.srcOff + k
			}
			d.pieces = append(d.pieces, piece{})
			copy(d.pieces[i+2:], d.pieces[i+1:])
			d.pieces[i] = left
			d.pieces[i+1] = right
			return i + 1
		}
		pos += pc.n
	}
	return len(d.pieces)
}

// splice replaces pieces[i:j] with the given pieces.
func (d *Document) splice(i, j int, with ...piece) {
	tail := append([]piece(nil), d.pieces[j:]...)
	d.pieces = append(append(d.pieces[:i], with...), tail...)
}

// coalesce merges neighbouring memory segments and contiguous source
// segments, and drops empty ones.
func (d *Document) coalesce() {
	out := d.pieces[:0]
	for _, pc := range d.pieces {
		if pc.n == 0 {
			continue
		}
		if len(out) > 0 {
			last := &out[len(out)-1]
			switch {
			case last.inMemory() && pc.inMemory():
				merged := make([]byte, 0, last.n+pc.n)
				merged = append(merged, last.data...)
				merged = append(merged, pc.data...)
				last.data = merged
				last.n += pc.n
				continue
			case !last.inMemory() && !pc.inMemory() && last.srcOff+last.n == pc.srcOff:
				last.n += pc.n
				continue
			}
		}
		out = append(out, pc)
	}
	d.pieces = out
}
