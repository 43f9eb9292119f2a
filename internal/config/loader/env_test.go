package loader

import (
	"errors"
	"testing"
)

func newTestEnvLoader(vars ...string) *EnvLoader {
	l := NewEnvLoader("BINED_")
	l.environ = func() []string { return vars }
	return l
}

func TestEnvLoader_Load(t *testing.T) {
	l := newTestEnvLoader(
		"BINED_PERSISTENCE_DELTA_MODE=off",
		"BINED_PERSISTENCE_LARGE_FILE_THRESHOLD=2048",
		"BINED_LOG_LEVEL=warn",
		"HOME=/root",
		"BINED_=ignored",
	)

	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		path string
		want any
	}{
		{"persistence.delta_mode", false},
		{"persistence.large_file_threshold", int64(2048)},
		{"logging.level", "warn"},
	}
	for _, tt := range tests {
		if got, ok := GetByPath(config, tt.path); !ok || got != tt.want {
			t.Errorf("%s = %v (%T), want %v", tt.path, got, got, tt.want)
		}
	}
	if _, ok := config["home"]; ok {
		t.Error("unprefixed variables must be ignored")
	}
	if len(config) != 2 {
		t.Errorf("config has %d sections, want 2: %v", len(config), config)
	}
}

func TestEnvLoader_ProcessEnvironment(t *testing.T) {
	t.Setenv("BINED_PERSISTENCE_TEMP_DIR", "/scratch")

	config, err := NewEnvLoader("BINED_").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got, _ := GetByPath(config, "persistence.temp_dir"); got != "/scratch" {
		t.Errorf("temp_dir = %v, want /scratch", got)
	}
}

func TestEnvLoader_envToPath(t *testing.T) {
	l := NewEnvLoader("BINED_")

	tests := []struct {
		env  string
		want string
	}{
		{"BINED_PERSISTENCE_DELTA_MODE", "persistence.delta_mode"},
		{"BINED_LOGGING_LEVEL", "logging.level"},
		{"BINED_SIMPLE", "simple"},
	}
	for _, tt := range tests {
		if got := l.envToPath(tt.env); got != tt.want {
			t.Errorf("envToPath(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", ""},
		{"true", true},
		{"YES", true},
		{"off", false},
		{"0", int64(0)},
		{"1", int64(1)},
		{"-5", int64(-5)},
		{"1.5", 1.5},
		{"/tmp/x", "/tmp/x"},
		{"v1.2.3", "v1.2.3"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
		}
	}
}

func TestDotEnvLoader_Load(t *testing.T) {
	fsys := mapFS{"/work/.env": `
# persistence
BINED_DELTA_MODE=false
BINED_PERSISTENCE_LARGE_FILE_THRESHOLD=100
export BINED_LOGGING_LEVEL="debug"
OTHER=1
`}

	config, err := NewDotEnvLoaderWithFS(fsys, "/work/.env", "BINED_").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got, _ := GetByPath(config, "persistence.delta_mode"); got != false {
		t.Errorf("delta_mode = %v, want false", got)
	}
	if got, _ := GetByPath(config, "persistence.large_file_threshold"); got != int64(100) {
		t.Errorf("large_file_threshold = %v", got)
	}
	if got, _ := GetByPath(config, "logging.level"); got != "debug" {
		t.Errorf("level = %v, want debug", got)
	}
	if _, ok := config["other"]; ok {
		t.Error("unprefixed variables must be ignored")
	}
}

func TestDotEnvLoader_Missing(t *testing.T) {
	config, err := NewDotEnvLoaderWithFS(mapFS{}, "/none/.env", "BINED_").Load()
	if err != nil || config != nil {
		t.Errorf("Load = %v, %v; want nil, nil", config, err)
	}
}

func TestDotEnvLoader_Invalid(t *testing.T) {
	fsys := mapFS{"/.env": "BINED_LOG_LEVEL='unterminated\n"}

	_, err := NewDotEnvLoaderWithFS(fsys, "/.env", "BINED_").Load()
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Errorf("error = %v, want *ParseError", err)
	}
}
