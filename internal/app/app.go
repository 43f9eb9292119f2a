// Package app wires the persistence controller together: configuration,
// logging, the shared segment store, the save registry, the source
// resolver and the editors built on them.
package app

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dshills/bined/internal/config"
	"github.com/dshills/bined/internal/config/watcher"
	"github.com/dshills/bined/internal/persist"
	"github.com/dshills/bined/internal/registry"
	"github.com/dshills/bined/internal/segment"
	"github.com/dshills/bined/internal/source"
)

// Options configures an Application.
type Options struct {
	// ConfigFile is a TOML or YAML config file. Empty skips the file layer.
	ConfigFile string

	// DotEnvFile is a .env file. Empty skips the layer.
	DotEnvFile string

	// Overrides are config values that win over every layer, keyed by
	// dotted path (e.g. "persistence.delta_mode").
	Overrides map[string]any

	// Environ replaces os.Environ for the environment layer.
	Environ func() []string

	// LogOutput receives log lines. Nil means stderr.
	LogOutput io.Writer

	// WatchConfig reloads the config file when it changes.
	WatchConfig bool

	// MemFS backs mem: URIs. Nil creates an empty one.
	MemFS *source.MemFS
}

// Application owns the process-wide services and the editors using them.
type Application struct {
	mu sync.Mutex

	config   *config.Config
	logger   *Logger
	store    *segment.Store
	registry *registry.SaveRegistry
	resolver *source.Resolver
	watcher  *watcher.Watcher

	editors     map[string]*persist.Editor
	unsubscribe func()
	closed      bool
}

// New loads configuration and builds the application services.
func New(opts Options) (*Application, error) {
	cfgOpts := []config.Option{
		config.WithFile(opts.ConfigFile),
		config.WithDotEnv(opts.DotEnvFile),
	}
	if opts.Environ != nil {
		cfgOpts = append(cfgOpts, config.WithEnviron(opts.Environ))
	}
	for path, value := range opts.Overrides {
		cfgOpts = append(cfgOpts, config.WithOverride(path, value))
	}

	cfg := config.New(cfgOpts...)
	if err := cfg.Load(); err != nil {
		return nil, errors.Join(ErrInitialization, NewComponentError("config", "load", err))
	}
	settings := cfg.Current()

	logCfg := DefaultLoggerConfig()
	logCfg.Level = ParseLogLevel(settings.Logging.Level)
	if opts.LogOutput != nil {
		logCfg.Output = opts.LogOutput
	}
	logger := NewLogger(logCfg)

	app := &Application{
		config: cfg,
		logger: logger,
		store: segment.NewStore(
			segment.WithTempDir(settings.Persistence.TempDir),
			segment.WithLogger(logger.WithComponent("segment")),
		),
		registry: registry.New(logger.WithComponent("registry")),
		resolver: source.NewResolver(opts.MemFS),
		editors:  make(map[string]*persist.Editor),
	}
	app.unsubscribe = cfg.Subscribe(app.applySettings)

	if opts.WatchConfig && opts.ConfigFile != "" {
		if err := app.startWatcher(opts.ConfigFile); err != nil {
			_ = app.Shutdown()
			return nil, errors.Join(ErrInitialization, err)
		}
	}

	logger.Debug("application ready (delta_mode=%t)", settings.Persistence.DeltaMode)
	return app, nil
}

func (a *Application) startWatcher(path string) error {
	w, err := watcher.New(watcher.WithErrorHandler(func(err error) {
		a.logger.WithComponent("watcher").Warn("%v", err)
	}))
	if err != nil {
		return NewComponentError("watcher", "start", err)
	}
	if err := w.Watch(path); err != nil {
		_ = w.Close()
		return NewComponentError("watcher", "watch "+path, err)
	}

	w.OnChange(func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			a.logger.Warn("config file %s %s; keeping current settings", ev.Path, ev.Op)
			return
		}
		if err := a.config.Reload(); err != nil {
			a.logger.Warn("config reload failed: %v", err)
			return
		}
		a.logger.Info("configuration reloaded from %s", ev.Path)
	})

	a.watcher = w
	return nil
}

// applySettings reacts to reloaded configuration. Editors read persistence
// settings on each open, so only the log level needs pushing.
func (a *Application) applySettings(s config.Settings) {
	a.logger.SetLevel(ParseLogLevel(s.Logging.Level))
}

// persistSettings is the settings source handed to editors.
func (a *Application) persistSettings() persist.Settings {
	s := a.config.Current()
	return persist.Settings{
		DeltaMode:          s.Persistence.DeltaMode,
		LargeFileThreshold: s.Persistence.LargeFileThreshold,
	}
}

// Config returns the layered configuration.
func (a *Application) Config() *config.Config { return a.config }

// Logger returns the application logger.
func (a *Application) Logger() *Logger { return a.logger }

// Store returns the shared segment store.
func (a *Application) Store() *segment.Store { return a.store }

// Registry returns the save registry.
func (a *Application) Registry() *registry.SaveRegistry { return a.registry }

// Resolver returns the source resolver.
func (a *Application) Resolver() *source.Resolver { return a.resolver }

// NewEditor creates an empty editor owned by the application.
func (a *Application) NewEditor() (*persist.Editor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrShutdown
	}

	ed, err := persist.NewEditor(persist.Options{
		Store:    a.store,
		Registry: a.registry,
		Resolver: a.resolver,
		Settings: a.persistSettings,
		Logger:   a.logger.WithComponent("persist"),
	})
	if err != nil {
		return nil, NewComponentError("persist", "new editor", err)
	}
	a.editors[ed.ID()] = ed
	return ed, nil
}

// OpenEditor creates an editor and opens uri in it. If the open fails the
// editor is discarded.
func (a *Application) OpenEditor(uri string) (*persist.Editor, error) {
	ed, err := a.NewEditor()
	if err != nil {
		return nil, err
	}
	if err := ed.OpenURI(uri); err != nil {
		_ = a.CloseEditor(ed.ID())
		return nil, err
	}
	return ed, nil
}

// Editor returns the editor with id.
func (a *Application) Editor(id string) (*persist.Editor, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ed, ok := a.editors[id]
	return ed, ok
}

// EditorCount returns the number of open editors.
func (a *Application) EditorCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.editors)
}

// CloseEditor closes the editor with id, discarding unsaved changes.
func (a *Application) CloseEditor(id string) error {
	a.mu.Lock()
	ed, ok := a.editors[id]
	delete(a.editors, id)
	a.mu.Unlock()

	if !ok {
		return ErrEditorNotFound
	}
	return ed.Close()
}

// SaveAll saves every editor with unsaved changes. It returns how many
// saved and the collected failures.
func (a *Application) SaveAll(ctx context.Context) (int, error) {
	saved, errs := a.registry.SaveAll(ctx)
	list := NewErrorList()
	for _, err := range errs {
		list.Add(err)
	}
	if list.HasErrors() {
		a.logger.Error("save all: %d saved, %d failed", saved, list.Len())
	} else if saved > 0 {
		a.logger.Info("save all: %d saved", saved)
	}
	return saved, list.AsError()
}

// Shutdown closes every editor, the store, the watcher and the
// configuration. Nothing is saved implicitly.
func (a *Application) Shutdown() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	editors := make([]*persist.Editor, 0, len(a.editors))
	for _, ed := range a.editors {
		editors = append(editors, ed)
	}
	a.editors = make(map[string]*persist.Editor)
	a.mu.Unlock()

	if n := a.registry.Count(); n > 0 {
		a.logger.Warn("shutting down with %d unsaved editor(s); changes discarded", n)
	}

	list := NewErrorList()
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			list.Add(NewComponentError("watcher", "close", err))
		}
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	for _, ed := range editors {
		if err := ed.Close(); err != nil {
			list.Add(NewComponentError("editor", "close "+ed.ID(), err))
		}
	}
	if err := a.store.Close(); err != nil {
		list.Add(NewComponentError("store", "close", err))
	}
	a.config.Close()

	return list.AsError()
}
