// Package config provides layered configuration for bined.
//
// Settings come from, in increasing priority: built-in defaults, a TOML or
// YAML config file, a .env file and BINED_-prefixed environment variables.
// The merged result is decoded into a typed Settings value; subscribers are
// notified whenever a reload changes it.
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/bined/internal/config/loader"
)

// DefaultEnvPrefix is the prefix for configuration environment variables.
const DefaultEnvPrefix = "BINED_"

// Settings is the typed configuration.
type Settings struct {
	Persistence Persistence `toml:"persistence"`
	Logging     Logging     `toml:"logging"`
}

// Persistence controls how documents are loaded and saved.
type Persistence struct {
	// DeltaMode selects segment-backed editing for local files.
	DeltaMode bool `toml:"delta_mode"`

	// LargeFileThreshold forces segment-backed editing for local files of
	// at least this many bytes even when DeltaMode is off. Zero disables it.
	LargeFileThreshold int64 `toml:"large_file_threshold"`

	// TempDir holds rewrite temp files. Empty uses the target's directory.
	TempDir string `toml:"temp_dir"`
}

// Logging controls log output.
type Logging struct {
	Level string `toml:"level"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Persistence: Persistence{DeltaMode: true},
		Logging:     Logging{Level: "info"},
	}
}

func defaultsMap() map[string]any {
	d := Defaults()
	return map[string]any{
		"persistence": map[string]any{
			"delta_mode":           d.Persistence.DeltaMode,
			"large_file_threshold": d.Persistence.LargeFileThreshold,
			"temp_dir":             d.Persistence.TempDir,
		},
		"logging": map[string]any{
			"level": d.Logging.Level,
		},
	}
}

// Config holds the layered configuration.
type Config struct {
	mu sync.RWMutex

	fs        loader.FileSystem
	file      string
	dotEnv    string
	envPrefix string
	environ   func() []string
	overrides map[string]any
	layers    layerStack
	current   Settings
	subs      map[int]func(Settings)
	nextSubID int
	closed    bool
}

// Option configures a Config.
type Option func(*Config)

// WithFile sets the config file. The format is chosen by extension.
func WithFile(path string) Option {
	return func(c *Config) {
		c.file = path
	}
}

// WithDotEnv sets the .env file.
func WithDotEnv(path string) Option {
	return func(c *Config) {
		c.dotEnv = path
	}
}

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.envPrefix = prefix
	}
}

// WithFileSystem sets the file system used to read config files.
func WithFileSystem(fs loader.FileSystem) Option {
	return func(c *Config) {
		c.fs = fs
	}
}

// WithEnviron replaces the process environment source.
func WithEnviron(fn func() []string) Option {
	return func(c *Config) {
		c.environ = fn
	}
}

// WithOverride sets a value above every other layer, e.g. from a CLI flag.
func WithOverride(path string, value any) Option {
	return func(c *Config) {
		if c.overrides == nil {
			c.overrides = make(map[string]any)
		}
		c.overrides[path] = value
	}
}

// New creates a Config holding the defaults. Call Load to read the
// remaining layers.
func New(opts ...Option) *Config {
	c := &Config{
		fs:        loader.DefaultFS(),
		envPrefix: DefaultEnvPrefix,
		current:   Defaults(),
		subs:      make(map[int]func(Settings)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.layers = layerStack{{Name: "defaults", Priority: PriorityDefaults, Data: defaultsMap()}}
	return c
}

// Load reads all layers and replaces the current settings. On error the
// previous settings stay in effect.
func (c *Config) Load() error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	layers, err := c.readLayers()
	if err != nil {
		return err
	}
	settings, err := decode(layers.merge())
	if err != nil {
		return err
	}

	c.mu.Lock()
	changed := settings != c.current
	c.layers = layers
	c.current = settings
	subs := make([]func(Settings), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	if changed {
		for _, fn := range subs {
			fn(settings)
		}
	}
	return nil
}

// Reload re-reads every layer. It is Load under the name the watcher uses.
func (c *Config) Reload() error {
	return c.Load()
}

func (c *Config) readLayers() (layerStack, error) {
	layers := layerStack{{Name: "defaults", Priority: PriorityDefaults, Data: defaultsMap()}}

	if c.file != "" {
		data, err := loader.ForFile(c.fs, c.file).Load()
		if err != nil {
			return nil, err
		}
		if data != nil {
			layers = append(layers, &Layer{Name: "file", Priority: PriorityFile, Path: c.file, Data: data})
		}
	}

	if c.dotEnv != "" {
		data, err := loader.NewDotEnvLoaderWithFS(c.fs, c.dotEnv, c.envPrefix).Load()
		if err != nil {
			return nil, err
		}
		if data != nil {
			layers = append(layers, &Layer{Name: "dotenv", Priority: PriorityDotEnv, Path: c.dotEnv, Data: data})
		}
	}

	env := loader.NewEnvLoader(c.envPrefix)
	if c.environ != nil {
		env.WithEnviron(c.environ)
	}
	data, err := env.Load()
	if err != nil {
		return nil, err
	}
	layers = append(layers, &Layer{Name: "env", Priority: PriorityEnv, Data: data})

	if len(c.overrides) > 0 {
		data := make(map[string]any)
		for path, value := range c.overrides {
			loader.SetByPath(data, path, value)
		}
		layers = append(layers, &Layer{Name: "override", Priority: PriorityOverride, Data: data})
	}
	return layers, nil
}

// decode converts the merged map into Settings by round-tripping it
// through TOML, then validates it.
func decode(merged map[string]any) (Settings, error) {
	raw, err := toml.Marshal(merged)
	if err != nil {
		return Settings{}, fmt.Errorf("encoding merged config: %w", err)
	}

	var s Settings
	if err := toml.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("decoding config: %w: %v", ErrTypeMismatch, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	s.Logging.Level = strings.ToLower(s.Logging.Level)
	return s, nil
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	if s.Persistence.LargeFileThreshold < 0 {
		return &SettingError{
			Path:  "persistence.large_file_threshold",
			Value: s.Persistence.LargeFileThreshold,
			Err:   ErrValidationFailed,
		}
	}
	switch strings.ToLower(s.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &SettingError{Path: "logging.level", Value: s.Logging.Level, Err: ErrValidationFailed}
	}
	return nil
}

// Current returns the active settings.
func (c *Config) Current() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// FilePath returns the config file path, if any.
func (c *Config) FilePath() string {
	return c.file
}

// WhichLayer reports which layer supplied the value at path
// (e.g. "persistence.delta_mode"). Empty if no layer sets it.
func (c *Config) WhichLayer(path string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.layers.which(path)
}

// Subscribe registers fn to be called with the new settings after each
// load that changes them. The returned func unsubscribes.
func (c *Config) Subscribe(fn func(Settings)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Close drops all subscribers. Further loads fail with ErrClosed.
func (c *Config) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.subs = make(map[int]func(Settings))
}
