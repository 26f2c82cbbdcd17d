package ports

import (
	"context"
	"time"

	"j2k/internal/data/history"
	"j2k/internal/engine/ast"
	"j2k/internal/engine/target"
)

// SourceFile is one input file of a file group.
type SourceFile struct {
	Path    string
	Content []byte
}

// ParsedFile is the front-end result for one SourceFile. Exactly one of File
// and Err is set.
type ParsedFile struct {
	Path string
	File *ast.File
	Err  error
}

// SourceParser turns a whole file group into annotated trees. Name binding
// is group-wide, so files cannot be parsed in isolation.
type SourceParser interface {
	ParseGroup(ctx context.Context, files []SourceFile) []ParsedFile
	IsSourcePath(path string) bool
}

// Printer renders a converted tree as target-language text.
type Printer interface {
	Print(f *target.File) ([]byte, error)
}

// HistoryStore abstracts run persistence for the history commands.
type HistoryStore interface {
	SaveRun(ctx context.Context, run history.Run) error
	Runs(ctx context.Context, limit int) ([]history.Run, error)
	Run(ctx context.Context, id string) (history.Run, error)
}

// ConvertRequest selects the groups of one conversion run.
type ConvertRequest struct {
	// Paths are group roots; empty means the configured input root.
	Paths []string
	// DryRun converts without writing output files.
	DryRun bool
}

// Diagnostic is the driving-adapter view of one engine finding. File is
// relative to the group root.
type Diagnostic struct {
	Severity string
	Code     string
	Message  string
	File     string
	Line     int
	Symbol   string
	// Text is the rendered one-line form.
	Text string
}

func (d Diagnostic) String() string { return d.Text }

// GroupSummary is the driving-adapter view of one converted group.
type GroupSummary struct {
	Name string
	// Root is the directory the group's source paths are relative to.
	Root        string
	Files       int
	Written     []string
	Conflicts   int
	Warnings    int
	Errors      int
	Diagnostics []Diagnostic
	Err         error
}

type ConvertResult struct {
	RunID    string
	Groups   []GroupSummary
	Duration time.Duration
}

// Failed reports whether any group of the run failed.
func (r ConvertResult) Failed() bool {
	for _, g := range r.Groups {
		if g.Err != nil {
			return true
		}
	}
	return false
}

// VerifyRequest compares conversions against golden fixture directories.
type VerifyRequest struct {
	Root string
	// Update rewrites the expected files instead of comparing.
	Update bool
}

// FixtureResult is the comparison of one fixture group.
type FixtureResult struct {
	Name string
	// Diffs maps an expected file to its unified diff; empty when it matches.
	Diffs   map[string]string
	Updated []string
	Err     error
}

// Passed reports whether the fixture converted without error and matched.
func (r FixtureResult) Passed() bool { return r.Err == nil && len(r.Diffs) == 0 }

type VerifyResult struct {
	Fixtures []FixtureResult
}

// ConversionService is the driving port over the conversion use cases.
type ConversionService interface {
	Convert(ctx context.Context, req ConvertRequest) (ConvertResult, error)
	Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error)
	Watch(ctx context.Context, req ConvertRequest, onRun func(ConvertResult)) error
}
