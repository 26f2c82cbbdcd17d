package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	coreapp "j2k/internal/core/app"
	"j2k/internal/core/config"
	"j2k/internal/shared/observability"
)

func configureLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// runtime is the loaded configuration and the app built on it.
type runtime struct {
	cfg        *config.Config
	configPath string
	paths      config.ResolvedPaths
	app        *coreapp.App
	tracer     *observability.TracerProvider
}

// loadConfig reads path, falling back to defaults only when the default
// file is absent. An explicitly named file must exist.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	resolved := config.ResolveRelative(cwd, path)
	if path != config.DefaultFile {
		cfg, err := config.Load(resolved)
		if err != nil {
			return nil, "", err
		}
		return cfg, resolved, nil
	}
	cfg, err := config.LoadOrDefault(resolved)
	if err != nil {
		return nil, "", err
	}
	if _, statErr := os.Stat(resolved); statErr != nil {
		return cfg, "", nil
	}
	return cfg, resolved, nil
}

func openRuntime(ctx context.Context, opts *globalOptions, adjust func(*config.Config)) (*runtime, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("detect working directory: %w", err)
	}
	cfg, cfgPath, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if adjust != nil {
		adjust(cfg)
	}

	// Relative settings in an explicit config file resolve against its
	// directory.
	base := cwd
	if cfgPath != "" {
		base = filepath.Dir(cfgPath)
	}
	paths, err := config.ResolvePaths(cfg, base)
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		SampleRate:     cfg.Observability.SampleRate,
	})
	if err != nil {
		return nil, err
	}

	a, err := coreapp.New(cfg, paths)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	a.ConfigPath = cfgPath

	slog.Debug("runtime ready",
		"config", cfgPath,
		"input_root", paths.InputRoot,
		"output_dir", paths.OutputDir,
		"history", cfg.History.IsEnabled())
	return &runtime{cfg: cfg, configPath: cfgPath, paths: paths, app: a, tracer: tp}, nil
}

func (r *runtime) Close() {
	if err := r.app.Close(); err != nil {
		slog.Warn("failed to close run history", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.tracer.Shutdown(ctx); err != nil {
		slog.Warn("failed to flush traces", "error", err)
	}
}
