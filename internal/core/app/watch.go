package app

import (
	"context"
	"log/slog"

	"j2k/internal/core/config"
	"j2k/internal/core/ports"
	"j2k/internal/core/watcher"
	"j2k/internal/shared/util"
)

// Watch converts once, then again after every debounced batch of source
// changes until ctx is done. Runs are serialized and throttled to
// watch.max_runs_per_second; changes arriving during a run are folded into
// a single follow-up run. A failed run is logged and watching continues.
// A config reload applies to the next run; watched roots stay as started.
func (s *conversionService) Watch(ctx context.Context, req ports.ConvertRequest, onRun func(ports.ConvertResult)) error {
	a := s.app
	cfg := a.Config()
	limiter := util.NewLimiter(cfg.Watch.MaxRunsPerSecond, 1)

	pending := make(chan struct{}, 1)
	trigger := func() {
		select {
		case pending <- struct{}{}:
		default:
		}
	}

	w, err := watcher.NewWatcher(cfg.Watch.Debounce, cfg.Exclude.Dirs, cfg.Exclude.Files, func(paths []string) {
		slog.Debug("sources changed", "count", len(paths))
		trigger()
	})
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Watch(a.roots(req.Paths)); err != nil {
		return err
	}

	if a.ConfigPath != "" {
		cw := config.NewWatcher(a.ConfigPath, func(next *config.Config) {
			a.SetConfig(next)
			w.SetDebounce(next.Watch.Debounce)
			trigger()
		})
		if err := cw.Start(ctx); err != nil {
			slog.Warn("config reload disabled", "path", a.ConfigPath, "error", err)
		} else {
			defer cw.Stop()
		}
	}

	trigger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pending:
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		res, err := s.Convert(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("conversion run failed", "error", err)
			continue
		}
		if onRun != nil {
			onRun(res)
		}
	}
}
