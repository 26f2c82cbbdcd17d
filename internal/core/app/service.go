package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"j2k/internal/core/ports"
	"j2k/internal/data/history"
	"j2k/internal/engine/pipeline"
	"j2k/internal/shared/observability"
	"j2k/internal/shared/util"
)

type conversionService struct {
	app *App
}

var _ ports.ConversionService = (*conversionService)(nil)

func NewConversionService(app *App) ports.ConversionService {
	return &conversionService{app: app}
}

func (a *App) ConversionService() ports.ConversionService {
	return NewConversionService(a)
}

// Convert discovers the requested groups, converts them in parallel and
// writes every successful group's Kotlin files under the output directory.
// Failed groups write nothing. The run is recorded in history unless it is
// a dry run.
func (s *conversionService) Convert(ctx context.Context, req ports.ConvertRequest) (ports.ConvertResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "conversionService.Convert",
		trace.WithAttributes(attribute.Bool("j2k.dry_run", req.DryRun)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return ports.ConvertResult{}, err
	}
	if s.app == nil {
		return ports.ConvertResult{}, fmt.Errorf("app is required")
	}

	started := time.Now()
	roots := s.app.roots(req.Paths)
	groups, err := s.app.DiscoverGroups(roots)
	if err != nil {
		observability.RecordError(span, err)
		return ports.ConvertResult{}, err
	}

	results := s.app.engine().ConvertAll(ctx, groups)
	out := ports.ConvertResult{RunID: history.NewRunID()}
	for i, res := range results {
		summary := summarize(groups[i], res)
		if res.Err == nil && !req.DryRun {
			written, err := s.app.writeOutputs(res)
			summary.Written = written
			if err != nil {
				summary.Err = err
			}
		}
		s.app.logGroup(summary)
		out.Groups = append(out.Groups, summary)
	}
	out.Duration = time.Since(started)

	if err := ctx.Err(); err != nil {
		return out, err
	}
	if !req.DryRun {
		s.app.recordRun(ctx, out, started, roots, results)
	}
	return out, nil
}

func (a *App) roots(paths []string) []string {
	if len(paths) == 0 {
		return []string{a.Paths.InputRoot}
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		out = append(out, filepath.Clean(abs))
	}
	if len(out) == 0 {
		return []string{a.Paths.InputRoot}
	}
	return out
}

func (a *App) writeOutputs(res *pipeline.GroupResult) ([]string, error) {
	written := make([]string, 0, len(res.Files))
	for _, f := range res.Files {
		dst := filepath.Join(a.Paths.OutputDir, filepath.FromSlash(f.Path))
		if err := util.WriteFileWithDirs(dst, f.Text, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", dst, err)
		}
		written = append(written, dst)
	}
	return written, nil
}

func summarize(g pipeline.Group, res *pipeline.GroupResult) ports.GroupSummary {
	s := ports.GroupSummary{
		Name:      g.Name,
		Root:      g.Root,
		Files:     len(g.Sources),
		Conflicts: len(res.Conflicts),
		Warnings:  res.Count(pipeline.SeverityWarning),
		Errors:    res.Count(pipeline.SeverityError),
		Err:       res.Err,
	}
	for _, d := range res.Diagnostics {
		s.Diagnostics = append(s.Diagnostics, ports.Diagnostic{
			Severity: string(d.Severity),
			Code:     string(d.Code),
			Message:  d.Message,
			File:     d.File,
			Line:     d.Line,
			Symbol:   d.Symbol,
			Text:     d.String(),
		})
	}
	return s
}

func (a *App) logGroup(s ports.GroupSummary) {
	if s.Err != nil {
		a.logger.Warn("group failed", "group", s.Name, "files", s.Files, "error", s.Err)
		return
	}
	a.logger.Info("group converted",
		"group", s.Name,
		"files", s.Files,
		"written", len(s.Written),
		"conflicts", s.Conflicts,
		"warnings", s.Warnings)
}

// recordRun persists the run summary. A history failure is logged and
// counted, never returned: the conversion itself already succeeded.
func (a *App) recordRun(ctx context.Context, out ports.ConvertResult, started time.Time, roots []string, results []*pipeline.GroupResult) {
	if a.history == nil {
		return
	}
	run := history.Run{
		ID:       out.RunID,
		Started:  started.UTC(),
		Duration: out.Duration,
		Root:     strings.Join(roots, string(filepath.ListSeparator)),
		Groups:   len(out.Groups),
		Failed:   out.Failed(),
	}
	for i, res := range results {
		run.Files += out.Groups[i].Files
		run.Diagnostics += len(res.Diagnostics)
		run.Conflicts += len(res.Conflicts)
		for _, c := range res.Conflicts {
			run.ConflictRecords = append(run.ConflictRecords, history.ConflictRecord{
				Group:  res.Group,
				Symbol: string(c.Symbol),
				Before: c.Before.Shape.String(),
				After:  c.After.Shape.String(),
				Reason: c.Reason,
			})
		}
		if res.Err != nil || res.Decisions == nil {
			continue
		}
		for _, dec := range res.Decisions.All() {
			run.Decisions = append(run.Decisions, history.DecisionRecord{
				Symbol:      string(dec.Symbol),
				Shape:       dec.Shape.String(),
				Nullability: dec.Nullability.String(),
				Placement:   dec.Placement.String(),
				Visibility:  dec.Visibility.String(),
			})
		}
	}
	if err := a.history.SaveRun(ctx, run); err != nil {
		observability.HistoryWriteErrorsTotal.Inc()
		slog.Warn("failed to record run", "run", run.ID, "error", err)
	}
}
