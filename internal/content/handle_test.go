package content

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/bined/internal/segment"
)

func setupTestFileBacked(t *testing.T, data string) *FileBacked {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	store := segment.NewStore()
	t.Cleanup(func() { store.Close() })

	src, err := store.OpenFileSource(path, segment.ReadWrite)
	if err != nil {
		t.Fatalf("OpenFileSource failed: %v", err)
	}
	doc, err := store.CreateDocument(src)
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	return NewFileBacked(doc)
}

func TestHandle_Implementations(t *testing.T) {
	handles := map[string]Handle{
		"buffer":      NewBuffer([]byte("0123456789")),
		"file-backed": setupTestFileBacked(t, "0123456789"),
	}

	for name, h := range handles {
		t.Run(name, func(t *testing.T) {
			if h.Len() != 10 {
				t.Errorf("Len = %d, want 10", h.Len())
			}

			if _, err := h.WriteAt([]byte("AB"), 4); err != nil {
				t.Fatalf("WriteAt failed: %v", err)
			}
			if _, err := h.WriteAt([]byte("!"), h.Len()); err != nil {
				t.Fatalf("append failed: %v", err)
			}

			var out bytes.Buffer
			if _, err := h.WriteTo(&out); err != nil {
				t.Fatalf("WriteTo failed: %v", err)
			}
			if out.String() != "0123AB6789!" {
				t.Errorf("content = %q, want %q", out.String(), "0123AB6789!")
			}

			p := make([]byte, 4)
			n, err := h.ReadAt(p, 9)
			if err != io.EOF || n != 2 || string(p[:n]) != "9!" {
				t.Errorf("ReadAt = %d, %q, %v", n, p[:n], err)
			}
			if _, err := h.ReadAt(p, 12); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("ReadAt past end error = %v, want ErrOutOfRange", err)
			}
			if _, err := h.WriteAt(p, 20); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("WriteAt past end error = %v, want ErrOutOfRange", err)
			}

			if err := h.Dispose(); err != nil {
				t.Fatalf("Dispose failed: %v", err)
			}
			if !h.Disposed() {
				t.Error("Disposed should be true")
			}
			if err := h.Dispose(); !errors.Is(err, ErrDisposed) {
				t.Errorf("second Dispose error = %v, want ErrDisposed", err)
			}
			if _, err := h.ReadAt(p, 0); !errors.Is(err, ErrDisposed) {
				t.Errorf("ReadAt after Dispose error = %v, want ErrDisposed", err)
			}
		})
	}
}

func TestHandle_Kind(t *testing.T) {
	tests := []struct {
		h    Handle
		want Kind
	}{
		{NewBuffer(nil), KindMemory},
		{setupTestFileBacked(t, "x"), KindFileBacked},
	}

	for _, tt := range tests {
		if got := tt.h.Kind(); got != tt.want {
			t.Errorf("Kind = %v, want %v", got, tt.want)
		}
		switch tt.h.(type) {
		case *Buffer:
			if tt.want != KindMemory {
				t.Errorf("*Buffer reported %v", tt.want)
			}
		case *FileBacked:
			if tt.want != KindFileBacked {
				t.Errorf("*FileBacked reported %v", tt.want)
			}
		}
	}
}

func TestReadBuffer(t *testing.T) {
	b, err := ReadBuffer(strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("ReadBuffer failed: %v", err)
	}
	if string(b.Bytes()) != "payload" {
		t.Errorf("Bytes = %q", b.Bytes())
	}

	boom := errors.New("boom")
	if _, err := ReadBuffer(io.MultiReader(strings.NewReader("part"), &failingReader{err: boom})); !errors.Is(err, boom) {
		t.Errorf("ReadBuffer error = %v, want %v", err, boom)
	}
}

func TestNewBuffer_Copies(t *testing.T) {
	data := []byte("abc")
	b := NewBuffer(data)
	data[0] = 'z'
	if string(b.Bytes()) != "abc" {
		t.Errorf("Bytes = %q, want %q", b.Bytes(), "abc")
	}
}

func TestFileBacked_InsertRemove(t *testing.T) {
	f := setupTestFileBacked(t, "hello")

	if err := f.Insert(0, []byte(">>")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := f.Remove(2, 1); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := f.Remove(10, 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Remove error = %v, want ErrOutOfRange", err)
	}

	var out bytes.Buffer
	f.WriteTo(&out)
	if out.String() != ">>ello" {
		t.Errorf("content = %q, want %q", out.String(), ">>ello")
	}
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}
