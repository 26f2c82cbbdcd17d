// Package app wires configuration, the conversion engine, output writing
// and run history into the use cases the CLI drives.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"j2k/internal/core/config"
	"j2k/internal/core/ports"
	"j2k/internal/data/history"
	"j2k/internal/engine/parser"
	"j2k/internal/engine/pipeline"
	"j2k/internal/engine/printer"
)

// Dependencies are the adapters an App runs on. History is optional.
type Dependencies struct {
	Parser  ports.SourceParser
	Printer ports.Printer
	History ports.HistoryStore
}

type App struct {
	Paths config.ResolvedPaths
	// ConfigPath, when set, is reloaded by watch mode on change.
	ConfigPath string

	mu      sync.RWMutex
	cfg     *config.Config
	parser  ports.SourceParser
	printer ports.Printer
	history ports.HistoryStore
	closer  io.Closer
	logger  *slog.Logger
}

// New builds an App on the tree-sitter Java front-end and the Kotlin
// printer, opening the run history when it is enabled.
func New(cfg *config.Config, paths config.ResolvedPaths) (*App, error) {
	deps := Dependencies{
		Parser:  parser.NewJavaParser(cfg.Conversion.Jobs),
		Printer: printer.New(),
	}
	var closer io.Closer
	if cfg.History.IsEnabled() {
		store, err := history.Open(paths.HistoryPath)
		switch {
		case err == nil:
			deps.History = store
			closer = store
		case history.IsCorruptError(err):
			// A damaged history file must not block conversion.
			slog.Warn("run history unreadable, continuing without it", "path", paths.HistoryPath, "error", err)
		default:
			return nil, fmt.Errorf("open run history: %w", err)
		}
	}
	a, err := NewWithDependencies(cfg, paths, deps)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}
	a.closer = closer
	return a, nil
}

func NewWithDependencies(cfg *config.Config, paths config.ResolvedPaths, deps Dependencies) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Parser == nil {
		return nil, fmt.Errorf("source parser dependency is required")
	}
	if deps.Printer == nil {
		return nil, fmt.Errorf("printer dependency is required")
	}
	return &App{
		Paths:   paths,
		cfg:     cfg,
		parser:  deps.Parser,
		printer: deps.Printer,
		history: deps.History,
		logger:  slog.Default(),
	}, nil
}

// Config returns the configuration currently in effect.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// SetConfig swaps the configuration used by later runs. Paths and the
// watcher's excludes stay as they were at startup.
func (a *App) SetConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
}

// History returns the run store, or nil when history is disabled.
func (a *App) History() ports.HistoryStore {
	return a.history
}

func (a *App) Close() error {
	if a == nil || a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func (a *App) engine() *pipeline.Engine {
	c := a.Config().Conversion
	return pipeline.New(a.parser, a.printer, pipeline.Options{
		Jobs:         c.Jobs,
		GroupJobs:    c.GroupJobs,
		ScanDepth:    c.NullabilityScanDepth,
		Strict:       c.Strict,
		TypeMappings: c.TypeMappings,
	}).WithLogger(a.logger)
}
