package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "j2k/internal/core/errors"
	"j2k/internal/core/ports"
	"j2k/internal/engine/ast"
	"j2k/internal/engine/classify"
	"j2k/internal/engine/enginetest"
	"j2k/internal/engine/pipeline"
	"j2k/internal/engine/printer"
)

// fakeParser hands out prebuilt trees by path.
type fakeParser struct {
	files map[string]*ast.File
	errs  map[string]error
}

func (p *fakeParser) ParseGroup(_ context.Context, files []ports.SourceFile) []ports.ParsedFile {
	out := make([]ports.ParsedFile, len(files))
	for i, f := range files {
		out[i] = ports.ParsedFile{Path: f.Path, File: p.files[f.Path], Err: p.errs[f.Path]}
	}
	return out
}

func (p *fakeParser) IsSourcePath(string) bool { return true }

func parserFor(groups ...[]*ast.File) *fakeParser {
	p := &fakeParser{files: map[string]*ast.File{}, errs: map[string]error{}}
	for _, files := range groups {
		for _, f := range files {
			p.files[f.Path] = f
		}
	}
	return p
}

func group(name string, files []*ast.File) pipeline.Group {
	g := pipeline.Group{Name: name}
	for _, f := range files {
		g.Sources = append(g.Sources, ports.SourceFile{Path: f.Path})
	}
	return g
}

func TestConvertFilesRunsEveryPhase(t *testing.T) {
	e := pipeline.New(nil, printer.New(), pipeline.Options{})
	res, err := e.ConvertFiles(context.Background(), "getset", enginetest.GetSetAcrossFiles().Files)
	require.NoError(t, err)

	require.Len(t, res.Files, 2)
	assert.Equal(t, "Counter.java", res.Files[0].Source)
	assert.Equal(t, "Counter.kt", res.Files[0].Path)
	assert.Contains(t, string(res.Files[0].Text), "var count: Int = 0")
	assert.Contains(t, string(res.Files[1].Text), "c!!.count = c!!.count + 1")
	assert.True(t, res.Decisions.Sealed())
	assert.Zero(t, res.Count(pipeline.SeverityError))
	assert.Nil(t, res.Err)
}

func TestConvertFilesWithoutPrinterKeepsTrees(t *testing.T) {
	e := pipeline.New(nil, nil, pipeline.Options{})
	res, err := e.ConvertFiles(context.Background(), "g", enginetest.StaticNestedAcrossFiles().Files)
	require.NoError(t, err)
	require.Len(t, res.Files, 4)
	for _, f := range res.Files {
		assert.NotNil(t, f.Tree)
		assert.Nil(t, f.Text)
	}
}

func TestConflictsBecomeDiagnostics(t *testing.T) {
	g := enginetest.AddressOfField()
	e := pipeline.New(nil, printer.New(), pipeline.Options{})
	res, err := e.ConvertFiles(context.Background(), "address", g.Files)
	require.NoError(t, err)

	require.NotEmpty(t, res.Conflicts)
	var found bool
	for _, d := range res.Diagnostics {
		if d.Code == coreerrors.CodeConflict {
			found = true
			assert.Equal(t, pipeline.SeverityInfo, d.Severity)
		}
	}
	assert.True(t, found)

	dec, ok := res.Decisions.Get(g.Counter.Field.Symbol)
	require.True(t, ok)
	assert.Equal(t, classify.ShapePlainField, dec.Shape)
}

func TestEmptyGroupIsTotalFailure(t *testing.T) {
	e := pipeline.New(parserFor(), nil, pipeline.Options{})

	res, err := e.Convert(context.Background(), pipeline.Group{Name: "empty"})
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeEmptyGroup))
	assert.Equal(t, err, res.Err)

	_, err = e.ConvertFiles(context.Background(), "empty", nil)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeEmptyGroup))
}

func TestParseFailureFailsOnlyItsGroup(t *testing.T) {
	good := enginetest.GetSetAcrossFiles().Files
	bad := enginetest.StaticNestedAcrossFiles().Files
	p := parserFor(good, bad)
	p.errs["B.java"] = coreerrors.ParseInput("B.java", errors.New("syntax error at 3:7"))

	e := pipeline.New(p, printer.New(), pipeline.Options{GroupJobs: 2})
	results := e.ConvertAll(context.Background(), []pipeline.Group{group("bad", bad), group("good", good)})
	require.Len(t, results, 2)

	assert.Equal(t, "bad", results[0].Group)
	require.Error(t, results[0].Err)
	assert.True(t, coreerrors.IsCode(results[0].Err, coreerrors.CodeParseInput))
	assert.Empty(t, results[0].Files)
	require.Len(t, results[0].Diagnostics, 1)
	assert.Equal(t, "B.java", results[0].Diagnostics[0].File)

	assert.Equal(t, "good", results[1].Group)
	assert.NoError(t, results[1].Err)
	assert.Len(t, results[1].Files, 2)
}

func TestConvertAllIsIndependentOfGroupJobs(t *testing.T) {
	var groups []pipeline.Group
	var all [][]*ast.File
	for _, files := range [][]*ast.File{enginetest.GetSetAcrossFiles().Files, enginetest.FiveReadsTwoUnguarded().Files, enginetest.StaticNestedAcrossFiles().Files} {
		all = append(all, files)
		groups = append(groups, group(files[0].Path, files))
	}
	p := parserFor(all...)

	text := func(jobs int) [][]string {
		e := pipeline.New(p, printer.New(), pipeline.Options{GroupJobs: jobs, Jobs: jobs})
		var out [][]string
		for _, r := range e.ConvertAll(context.Background(), groups) {
			require.NoError(t, r.Err)
			var files []string
			for _, f := range r.Files {
				files = append(files, f.Path+"\n"+string(f.Text))
			}
			out = append(out, files)
		}
		return out
	}
	assert.Equal(t, text(1), text(4))
}

func TestUnresolvedAndVerbatimAreWarnings(t *testing.T) {
	b := ast.NewBuilder("Loop.java", "demo")
	cls := b.Class("Loop", enginetest.Public)
	m := b.Method(cls, "run", enginetest.Void, enginetest.Public)
	b.Body(m,
		b.Verbatim("for (int i = 0; i < 3; i++) {\n    tick();\n}"),
		b.Do(&ast.Call{Meta: ast.Meta{Node: 500, At: ast.Pos{Line: 7}}, Name: "missing", Binding: ast.Binding{Unresolved: true, Reason: "no declaration named missing"}}),
	)

	e := pipeline.New(nil, printer.New(), pipeline.Options{})
	res, err := e.ConvertFiles(context.Background(), "loop", []*ast.File{b.File()})
	require.NoError(t, err)

	codes := map[coreerrors.ErrorCode]pipeline.Severity{}
	for _, d := range res.Diagnostics {
		codes[d.Code] = d.Severity
	}
	assert.Equal(t, pipeline.SeverityWarning, codes[coreerrors.CodeNotSupported])
	assert.Equal(t, pipeline.SeverityWarning, codes[coreerrors.CodeUnresolvedReference])
	assert.Contains(t, string(res.Files[0].Text), "        for (int i = 0; i < 3; i++) {\n            tick();\n        }\n")

	strict := pipeline.New(nil, printer.New(), pipeline.Options{Strict: true})
	res, err = strict.ConvertFiles(context.Background(), "loop", []*ast.File{b.File()})
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeValidationError))
	assert.NotEmpty(t, res.Files, "strict runs still report what they converted")
}

func TestConvertHonorsCancellation(t *testing.T) {
	files := enginetest.GetSetAcrossFiles().Files
	e := pipeline.New(parserFor(files), nil, pipeline.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Convert(ctx, group("getset", files))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiagnosticString(t *testing.T) {
	d := pipeline.Diagnostic{
		Severity: pipeline.SeverityWarning,
		Code:     coreerrors.CodeUnresolvedReference,
		Message:  `unresolved reference "missing"`,
		File:     "Loop.java",
		Line:     7,
	}
	assert.Equal(t, `warning Loop.java:7 [UNRESOLVED_REFERENCE] unresolved reference "missing"`, d.String())
}
