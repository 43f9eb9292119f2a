package persist

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/bined/internal/registry"
	"github.com/dshills/bined/internal/segment"
	"github.com/dshills/bined/internal/source"
)

type testEnv struct {
	store    *segment.Store
	registry *registry.SaveRegistry
	resolver *source.Resolver
	settings Settings
	dir      string
}

func setupTestEnv(t *testing.T, opts ...segment.Option) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    segment.NewStore(opts...),
		registry: registry.New(nil),
		resolver: source.NewResolver(nil),
		settings: Settings{DeltaMode: true},
		dir:      t.TempDir(),
	}
	t.Cleanup(func() { env.store.Close() })
	return env
}

func (env *testEnv) newEditor(t *testing.T) *Editor {
	t.Helper()
	e, err := NewEditor(Options{
		Store:    env.store,
		Registry: env.registry,
		Resolver: env.resolver,
		Settings: func() Settings { return env.settings },
	})
	if err != nil {
		t.Fatalf("NewEditor failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func (env *testEnv) writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(env.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func readAllEditor(t *testing.T, e *Editor) []byte {
	t.Helper()
	buf := make([]byte, e.Len())
	if len(buf) == 0 {
		return buf
	}
	if _, err := e.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	return buf
}

var errInjected = errors.New("injected failure")

// faultySource is a stream source whose reader or writer can be made to
// fail partway through, or to be missing altogether.
type faultySource struct {
	name      string
	data      []byte
	writable  bool
	failRead  bool
	failWrite bool
	failClose bool
	noReader  bool
	noWriter  bool
	written   []byte
	closes    int
}

func (s *faultySource) Name() string              { return s.name }
func (s *faultySource) LocalPath() (string, bool) { return "", false }
func (s *faultySource) Writable() bool            { return s.writable }
func (s *faultySource) Size() int64               { return int64(len(s.data)) }

func (s *faultySource) OpenReader() (io.ReadCloser, error) {
	if s.noReader {
		return nil, nil
	}
	var r io.Reader = &sliceReader{data: s.data}
	if s.failRead {
		r = io.MultiReader(&sliceReader{data: s.data[:len(s.data)/2]}, errReader{})
	}
	return &trackedCloser{Reader: r, src: s}, nil
}

func (s *faultySource) OpenWriter() (io.WriteCloser, error) {
	if s.noWriter {
		return nil, nil
	}
	return &faultyWriter{src: s}, nil
}

type sliceReader struct {
	data []byte
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errInjected }

type trackedCloser struct {
	io.Reader
	src *faultySource
}

func (c *trackedCloser) Close() error {
	c.src.closes++
	return nil
}

type faultyWriter struct {
	src *faultySource
	buf []byte
}

func (w *faultyWriter) Write(p []byte) (int, error) {
	if w.src.failWrite {
		return 0, errInjected
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *faultyWriter) Close() error {
	w.src.closes++
	if w.src.failClose {
		return errInjected
	}
	if !w.src.failWrite {
		w.src.written = w.buf
	}
	return nil
}
