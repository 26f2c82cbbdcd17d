// Package pipeline runs the conversion engine over file groups.
//
// A group run is index, classify, conflict check, seal, rewrite and print in
// strict order. Groups share nothing and run in parallel; a parse failure in
// one group never touches another.
package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	coreerrors "j2k/internal/core/errors"
	"j2k/internal/core/ports"
	"j2k/internal/engine/ast"
	"j2k/internal/engine/classify"
	"j2k/internal/engine/conflict"
	"j2k/internal/engine/rewrite"
	"j2k/internal/engine/symbols"
	"j2k/internal/engine/target"
	"j2k/internal/shared/observability"
)

type Options struct {
	// Jobs bounds the workers of the parallel phases inside one group.
	Jobs int
	// GroupJobs bounds the groups converted at once by ConvertAll.
	GroupJobs int
	// ScanDepth bounds the null-flow scan; zero keeps the classifier default.
	ScanDepth int
	// Strict fails a group with an error diagnostic or a warning other than
	// a classification ambiguity.
	Strict       bool
	TypeMappings map[string]string
}

func (o Options) groupJobs() int {
	if o.GroupJobs > 0 {
		return o.GroupJobs
	}
	return runtime.GOMAXPROCS(0)
}

// Group is one independent conversion unit.
type Group struct {
	Name string
	// Root is the directory source paths are relative to; informational.
	Root    string
	Sources []ports.SourceFile
}

type OutputFile struct {
	// Source is the input path the file was converted from.
	Source string
	Path   string
	Tree   *target.File
	// Text is the printed file; nil when the engine has no printer.
	Text []byte
}

type GroupResult struct {
	Group       string
	Files       []OutputFile
	Decisions   *classify.Decisions
	Conflicts   []conflict.Record
	Diagnostics []Diagnostic
	Duration    time.Duration
	Err         error
}

// Count returns the number of diagnostics of severity sev.
func (r *GroupResult) Count(sev Severity) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

type Engine struct {
	parser  ports.SourceParser
	printer ports.Printer
	opts    Options
	logger  *slog.Logger
}

// New returns an engine. parser is only needed by Convert and ConvertAll,
// printer only to fill OutputFile.Text.
func New(parser ports.SourceParser, printer ports.Printer, opts Options) *Engine {
	return &Engine{parser: parser, printer: printer, opts: opts, logger: slog.Default()}
}

func (e *Engine) WithLogger(l *slog.Logger) *Engine {
	if l != nil {
		e.logger = l
	}
	return e
}

// Convert parses and converts one group. The result is never nil; its Err
// equals the returned error.
func (e *Engine) Convert(ctx context.Context, g Group) (*GroupResult, error) {
	res := &GroupResult{Group: g.Name}
	if len(g.Sources) == 0 {
		return fail(res, emptyGroup(g.Name))
	}
	if e.parser == nil {
		return fail(res, coreerrors.New(coreerrors.CodeInternal, "engine has no source parser"))
	}

	start := time.Now()
	parsed := e.parser.ParseGroup(ctx, g.Sources)
	observability.PhaseDuration.WithLabelValues("parse").Observe(time.Since(start).Seconds())

	files := make([]*ast.File, 0, len(parsed))
	var parseErr error
	for _, p := range parsed {
		if p.Err != nil {
			res.Diagnostics = append(res.Diagnostics, fromError(p.Err, SeverityError))
			if parseErr == nil {
				parseErr = p.Err
			}
			continue
		}
		files = append(files, p.File)
	}
	if err := ctx.Err(); err != nil {
		return fail(res, err)
	}
	if parseErr != nil {
		sortDiagnostics(res.Diagnostics)
		return fail(res, coreerrors.AddContext(parseErr, coreerrors.CtxGroup, g.Name))
	}
	return e.ConvertFiles(ctx, g.Name, files)
}

// ConvertFiles converts an already annotated group.
func (e *Engine) ConvertFiles(ctx context.Context, name string, files []*ast.File) (*GroupResult, error) {
	res := &GroupResult{Group: name}
	if len(files) == 0 {
		return fail(res, emptyGroup(name))
	}
	start := time.Now()
	ctx, span := observability.StartGroupSpan(ctx, name, len(files))
	defer span.End()

	err := e.run(ctx, res, files)
	res.Duration = time.Since(start)
	sortDiagnostics(res.Diagnostics)
	record(res, err)
	if err != nil {
		observability.RecordError(span, err)
		e.logger.Debug("group failed", "group", name, "error", err)
		return fail(res, err)
	}
	if e.opts.Strict {
		if blocking(res.Diagnostics) {
			err := coreerrors.AddContext(
				coreerrors.New(coreerrors.CodeValidationError, "strict mode rejects diagnostics"),
				coreerrors.CtxGroup, name)
			return fail(res, err)
		}
	}
	e.logger.Debug("group converted",
		"group", name,
		"files", len(res.Files),
		"conflicts", len(res.Conflicts),
		"diagnostics", len(res.Diagnostics),
		"duration", res.Duration)
	return res, nil
}

func (e *Engine) run(ctx context.Context, res *GroupResult, files []*ast.File) error {
	var table *symbols.Table
	phase(ctx, "index", func(context.Context) error {
		var errs []error
		table, errs = symbols.Build(files)
		res.Diagnostics = append(res.Diagnostics, indexDiagnostics(errs)...)
		return nil
	})

	var d *classify.Decisions
	if err := phase(ctx, "classify", func(ctx context.Context) (err error) {
		d, err = classify.Run(ctx, table, classify.Options{Jobs: e.opts.Jobs, ScanDepth: e.opts.ScanDepth})
		return err
	}); err != nil {
		return err
	}

	phase(ctx, "conflict", func(context.Context) error {
		res.Conflicts = conflict.Check(table, d)
		res.Diagnostics = append(res.Diagnostics, conflictDiagnostics(res.Conflicts)...)
		return nil
	})
	d.Seal()
	res.Decisions = d
	res.Diagnostics = append(res.Diagnostics, ambiguityDiagnostics(d)...)
	res.Diagnostics = append(res.Diagnostics, verbatimDiagnostics(files)...)

	var out []*target.File
	if err := phase(ctx, "rewrite", func(ctx context.Context) (err error) {
		out, err = rewrite.Rewrite(ctx, table, d, files, rewrite.Options{Jobs: e.opts.Jobs, TypeMappings: e.opts.TypeMappings})
		return err
	}); err != nil {
		return err
	}

	return phase(ctx, "print", func(context.Context) error {
		res.Files = make([]OutputFile, len(out))
		for i, tf := range out {
			of := OutputFile{Source: files[i].Path, Path: tf.Path, Tree: tf}
			if e.printer != nil {
				text, err := e.printer.Print(tf)
				if err != nil {
					return coreerrors.AddContext(coreerrors.Wrap(err, coreerrors.CodeInternal, "print failed"), coreerrors.CtxFile, tf.Path)
				}
				of.Text = text
			}
			res.Files[i] = of
		}
		return nil
	})
}

// ConvertAll converts groups in parallel and returns one result per group,
// in input order. A failure is recorded on its own result only.
func (e *Engine) ConvertAll(ctx context.Context, groups []Group) []*GroupResult {
	results := make([]*GroupResult, len(groups))
	var g errgroup.Group
	g.SetLimit(e.opts.groupJobs())
	for i, grp := range groups {
		g.Go(func() error {
			results[i], _ = e.Convert(ctx, grp)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func phase(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := observability.StartPhaseSpan(ctx, name)
	defer span.End()
	err := fn(ctx)
	observability.PhaseDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	observability.RecordError(span, err)
	return err
}

func record(res *GroupResult, err error) {
	if err != nil {
		observability.GroupsTotal.WithLabelValues("failed").Inc()
		return
	}
	observability.GroupsTotal.WithLabelValues("converted").Inc()
	observability.FilesConvertedTotal.Add(float64(len(res.Files)))
	observability.ConflictsTotal.Add(float64(len(res.Conflicts)))
	for _, d := range res.Diagnostics {
		observability.DiagnosticsTotal.WithLabelValues(string(d.Severity)).Inc()
	}
	for _, dec := range res.Decisions.All() {
		observability.DecisionsTotal.WithLabelValues(dec.Shape.String()).Inc()
	}
}

func blocking(ds []Diagnostic) bool {
	for _, d := range ds {
		switch {
		case d.Severity == SeverityError:
			return true
		case d.Severity == SeverityWarning && d.Code != coreerrors.CodeClassificationAmbiguity:
			return true
		}
	}
	return false
}

func emptyGroup(name string) error {
	return coreerrors.AddContext(coreerrors.New(coreerrors.CodeEmptyGroup, "group has no input files"), coreerrors.CtxGroup, name)
}

func fail(res *GroupResult, err error) (*GroupResult, error) {
	res.Err = err
	return res, err
}
