package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"j2k/internal/core/ports"
	"j2k/internal/engine/pipeline"
	"j2k/internal/shared/observability"
	"j2k/internal/shared/util"
)

const expectedExt = ".kt"

// Verify converts every fixture directory under req.Root and compares the
// output with the .kt files stored next to the inputs. Each fixture is one
// file group. With req.Update the stored files are rewritten instead.
func (s *conversionService) Verify(ctx context.Context, req ports.VerifyRequest) (ports.VerifyResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "conversionService.Verify")
	defer span.End()

	entries, err := os.ReadDir(req.Root)
	if err != nil {
		return ports.VerifyResult{}, fmt.Errorf("read fixture root: %w", err)
	}

	var out ports.VerifyResult
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		dir := filepath.Join(req.Root, e.Name())
		res := s.app.verifyFixture(ctx, dir, req.Update)
		res.Name = e.Name()
		out.Fixtures = append(out.Fixtures, res)
	}
	return out, nil
}

func (a *App) verifyFixture(ctx context.Context, dir string, update bool) ports.FixtureResult {
	res := ports.FixtureResult{Diffs: map[string]string{}}

	sources, err := a.scanRoot(dir, nil, nil)
	if err != nil {
		res.Err = err
		return res
	}
	gr, err := a.engine().Convert(ctx, pipeline.Group{Name: filepath.Base(dir), Root: dir, Sources: sources})
	if err != nil {
		res.Err = err
		return res
	}

	produced := make(map[string][]byte, len(gr.Files))
	for _, f := range gr.Files {
		produced[f.Path] = f.Text
	}

	if update {
		for _, name := range util.SortedKeys(produced) {
			if err := util.WriteFileWithDirs(filepath.Join(dir, filepath.FromSlash(name)), produced[name], 0o644); err != nil {
				res.Err = err
				return res
			}
			res.Updated = append(res.Updated, name)
		}
		return res
	}

	expected, err := expectedFiles(dir)
	if err != nil {
		res.Err = err
		return res
	}
	for name := range expected {
		if _, ok := produced[name]; !ok {
			produced[name] = nil
		}
	}
	for _, name := range util.SortedKeys(produced) {
		want := expected[name]
		if diff := unifiedDiff(name, string(want), string(produced[name])); diff != "" {
			res.Diffs[name] = diff
		}
	}
	return res
}

// expectedFiles loads the stored outputs of a fixture, keyed by slash
// path relative to dir.
func expectedFiles(dir string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), expectedExt) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[util.NormalizePatternPath(rel)] = b
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	return out, err
}

// unifiedDiff is empty when the texts are equal.
func unifiedDiff(name, want, got string) string {
	if want == got {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "expected/" + name,
		ToFile:   "actual/" + name,
		Context:  3,
	})
	if err != nil {
		return fmt.Sprintf("--- expected/%s\n+++ actual/%s\n(diff failed: %v)\n", name, name, err)
	}
	return diff
}
