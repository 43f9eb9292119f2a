package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

type mapFS map[string]string

func (m mapFS) ReadFile(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(data), nil
}

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

func setupTestConfig(t *testing.T, files mapFS, env []string, opts ...Option) *Config {
	t.Helper()
	all := append([]Option{WithFileSystem(files), WithEnviron(environ(env...))}, opts...)
	c := New(all...)
	t.Cleanup(c.Close)
	return c
}

func TestDefaults(t *testing.T) {
	c := setupTestConfig(t, mapFS{}, nil)
	if err := c.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got := c.Current()
	if !got.Persistence.DeltaMode {
		t.Error("DeltaMode default should be true")
	}
	if got.Persistence.LargeFileThreshold != 0 {
		t.Errorf("LargeFileThreshold = %d, want 0", got.Persistence.LargeFileThreshold)
	}
	if got.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", got.Logging.Level)
	}
	if layer := c.WhichLayer("persistence.delta_mode"); layer != "defaults" {
		t.Errorf("WhichLayer = %q, want defaults", layer)
	}
}

func TestLoad_LayerPriority(t *testing.T) {
	files := mapFS{
		"/etc/bined.toml": `
[persistence]
delta_mode = false
large_file_threshold = 1048576
temp_dir = "/var/tmp"

[logging]
level = "debug"
`,
		"/etc/.env": "BINED_LOGGING_LEVEL=warn\nBINED_TEMP_DIR=/scratch\n",
	}
	env := []string{"BINED_DELTA_MODE=true", "HOME=/root"}

	c := setupTestConfig(t, files, env, WithFile("/etc/bined.toml"), WithDotEnv("/etc/.env"))
	if err := c.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got := c.Current()
	if !got.Persistence.DeltaMode {
		t.Error("env should override file delta_mode")
	}
	if got.Persistence.LargeFileThreshold != 1048576 {
		t.Errorf("LargeFileThreshold = %d, want 1048576", got.Persistence.LargeFileThreshold)
	}
	if got.Persistence.TempDir != "/scratch" {
		t.Errorf("TempDir = %q, want /scratch", got.Persistence.TempDir)
	}
	if got.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", got.Logging.Level)
	}

	tests := []struct {
		path string
		want string
	}{
		{"persistence.delta_mode", "env"},
		{"persistence.large_file_threshold", "file"},
		{"persistence.temp_dir", "dotenv"},
		{"logging.level", "dotenv"},
		{"persistence.missing", ""},
	}
	for _, tt := range tests {
		if got := c.WhichLayer(tt.path); got != tt.want {
			t.Errorf("WhichLayer(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	files := mapFS{
		"/cfg/bined.yaml": "persistence:\n  delta_mode: false\n  large_file_threshold: 4096\n",
	}
	c := setupTestConfig(t, files, nil, WithFile("/cfg/bined.yaml"))
	if err := c.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got := c.Current()
	if got.Persistence.DeltaMode {
		t.Error("DeltaMode should be false from YAML")
	}
	if got.Persistence.LargeFileThreshold != 4096 {
		t.Errorf("LargeFileThreshold = %d, want 4096", got.Persistence.LargeFileThreshold)
	}
}

func TestLoad_MissingFilesAreIgnored(t *testing.T) {
	c := setupTestConfig(t, mapFS{}, nil, WithFile("/nope.toml"), WithDotEnv("/nope.env"))
	if err := c.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Current() != Defaults() {
		t.Errorf("Current() = %+v, want defaults", c.Current())
	}
}

func TestLoad_Override(t *testing.T) {
	env := []string{"BINED_DELTA_MODE=true"}
	c := setupTestConfig(t, mapFS{}, env, WithOverride("persistence.delta_mode", false))
	if err := c.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Current().Persistence.DeltaMode {
		t.Error("override should win over env")
	}
	if got := c.WhichLayer("persistence.delta_mode"); got != "override" {
		t.Errorf("WhichLayer = %q, want override", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   mapFS
		env     []string
		wantErr error
	}{
		{
			name:    "type mismatch",
			env:     []string{"BINED_DELTA_MODE=sometimes"},
			wantErr: ErrTypeMismatch,
		},
		{
			name:    "negative threshold",
			env:     []string{"BINED_PERSISTENCE_LARGE_FILE_THRESHOLD=-5"},
			wantErr: ErrValidationFailed,
		},
		{
			name:    "unknown log level",
			env:     []string{"BINED_LOG_LEVEL=loud"},
			wantErr: ErrValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := tt.files
			if files == nil {
				files = mapFS{}
			}
			c := setupTestConfig(t, files, tt.env)
			err := c.Load()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
			}
			if c.Current() != Defaults() {
				t.Error("failed load should keep previous settings")
			}
		})
	}
}

func TestLoad_ParseError(t *testing.T) {
	files := mapFS{"/bad.toml": "[persistence\ndelta_mode = "}
	c := setupTestConfig(t, files, nil, WithFile("/bad.toml"))
	if err := c.Load(); err == nil {
		t.Fatal("Load() should fail on malformed TOML")
	}
}

func TestSubscribe(t *testing.T) {
	files := mapFS{"/b.toml": "[persistence]\ndelta_mode = true\n"}
	c := setupTestConfig(t, files, nil, WithFile("/b.toml"))

	var calls []Settings
	unsubscribe := c.Subscribe(func(s Settings) { calls = append(calls, s) })

	if err := c.Load(); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 0 {
		t.Fatalf("unchanged load notified %d times", len(calls))
	}

	files["/b.toml"] = "[persistence]\ndelta_mode = false\n"
	if err := c.Reload(); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || calls[0].Persistence.DeltaMode {
		t.Fatalf("calls = %+v, want one call with delta_mode off", calls)
	}

	unsubscribe()
	files["/b.toml"] = "[persistence]\ndelta_mode = true\n"
	if err := c.Reload(); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 {
		t.Errorf("unsubscribed handler still called")
	}
}

func TestClose(t *testing.T) {
	c := New(WithEnviron(environ()))
	c.Close()
	if err := c.Load(); !errors.Is(err, ErrClosed) {
		t.Errorf("Load after Close error = %v, want ErrClosed", err)
	}
}

func TestLoad_RealFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bined.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"ERROR\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(WithFile(path), WithEnviron(environ()))
	defer c.Close()
	if err := c.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := c.Current().Logging.Level; got != "error" {
		t.Errorf("Logging.Level = %q, want error", got)
	}
	if c.FilePath() != path {
		t.Errorf("FilePath() = %q, want %q", c.FilePath(), path)
	}
}
