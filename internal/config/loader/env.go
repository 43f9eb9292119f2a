package loader

import (
	"bytes"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "BINED_")
	mapping map[string]string // Env var -> config path
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "BINED_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		environ: os.Environ,
	}
}

// defaultEnvMapping returns short aliases for common settings.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "LOG_LEVEL":  "logging.level",
		prefix + "DELTA_MODE": "persistence.delta_mode",
		prefix + "TEMP_DIR":   "persistence.temp_dir",
	}
}

// WithEnviron replaces the environment source, os.Environ by default.
func (l *EnvLoader) WithEnviron(fn func() []string) *EnvLoader {
	l.environ = fn
	return l
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// Load reads prefixed environment variables into a configuration map.
// Empty values are kept as empty strings.
func (l *EnvLoader) Load() (map[string]any, error) {
	vars := make(map[string]string)
	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if ok {
			vars[name] = value
		}
	}
	return l.fromVars(vars), nil
}

func (l *EnvLoader) fromVars(vars map[string]string) map[string]any {
	config := make(map[string]any)
	for name, value := range vars {
		if path, ok := l.mapping[name]; ok {
			SetByPath(config, path, parseValue(value))
			continue
		}
		if !strings.HasPrefix(name, l.prefix) || name == l.prefix {
			continue
		}
		SetByPath(config, l.envToPath(name), parseValue(value))
	}
	return config
}

// envToPath converts BINED_PERSISTENCE_DELTA_MODE to persistence.delta_mode.
// The first segment names the section; the rest is the snake_case key.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok {
		return name
	}
	return section + "." + key
}

// parseValue attempts to parse the string value into an appropriate type.
func parseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// DotEnvLoader loads prefixed variables from a .env file. Variables use
// the same names and conversion as EnvLoader.
type DotEnvLoader struct {
	fs   FileSystem
	path string
	env  *EnvLoader
}

// NewDotEnvLoader creates a .env loader for path.
func NewDotEnvLoader(path, prefix string) *DotEnvLoader {
	return NewDotEnvLoaderWithFS(DefaultFS(), path, prefix)
}

// NewDotEnvLoaderWithFS creates a .env loader with a custom file system.
func NewDotEnvLoaderWithFS(fs FileSystem, path, prefix string) *DotEnvLoader {
	return &DotEnvLoader{fs: fs, path: path, env: NewEnvLoader(prefix)}
}

// Load parses the .env file. A missing file yields nil, nil.
func (l *DotEnvLoader) Load() (map[string]any, error) {
	data, err := readOptional(l.fs, l.path)
	if err != nil || data == nil {
		return nil, err
	}

	vars, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Path: l.path, Message: err.Error(), Err: err}
	}
	return l.env.fromVars(vars), nil
}
