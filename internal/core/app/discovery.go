package app

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"j2k/internal/core/config"
	"j2k/internal/core/ports"
	"j2k/internal/engine/pipeline"
	"j2k/internal/shared/util"
)

// DiscoverGroups walks each root and splits its Java sources into file
// groups. Source paths are relative to their root, so output files keep the
// package layout. A root without sources still yields one empty group.
func (a *App) DiscoverGroups(roots []string) ([]pipeline.Group, error) {
	cfg := a.Config()
	dirGlobs, err := compileGlobs(cfg.Exclude.Dirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	fileGlobs, err := compileGlobs(cfg.Exclude.Files, "exclude file")
	if err != nil {
		return nil, err
	}

	var groups []pipeline.Group
	for _, root := range roots {
		sources, err := a.scanRoot(root, dirGlobs, fileGlobs)
		if err != nil {
			return nil, err
		}
		groups = append(groups, splitGroups(root, sources, cfg.Conversion.GroupBy)...)
	}
	return groups, nil
}

func (a *App) scanRoot(root string, dirGlobs, fileGlobs []glob.Glob) ([]ports.SourceFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("input root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input root %q is not a directory", root)
	}

	var sources []ports.SourceFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if matchAny(dirGlobs, d.Name()) || a.generated(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !a.parser.IsSourcePath(path) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = util.NormalizePatternPath(rel)
		if matchAny(fileGlobs, d.Name()) || matchAny(fileGlobs, rel) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sources = append(sources, ports.SourceFile{Path: rel, Content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}

// generated reports whether dir is j2k's own output or state directory,
// which may sit inside an input root.
func (a *App) generated(dir string) bool {
	for _, p := range []string{a.Paths.OutputDir, a.Paths.StateDir} {
		if p != "" && util.HasPathPrefix(dir, p) {
			return true
		}
	}
	return false
}

// splitGroups partitions sources by mode. In directory mode every top-level
// directory of root is its own group; files directly under root form a group
// named after root.
func splitGroups(root string, sources []ports.SourceFile, mode string) []pipeline.Group {
	rootName := filepath.Base(filepath.Clean(root))
	if mode != config.GroupByDirectory || len(sources) == 0 {
		return []pipeline.Group{{Name: rootName, Root: root, Sources: sources}}
	}

	byName := make(map[string][]ports.SourceFile)
	for _, src := range sources {
		name := rootName
		if i := strings.IndexByte(src.Path, '/'); i > 0 {
			name = rootName + "/" + src.Path[:i]
		}
		byName[name] = append(byName[name], src)
	}
	groups := make([]pipeline.Group, 0, len(byName))
	for _, name := range util.SortedKeys(byName) {
		groups = append(groups, pipeline.Group{Name: name, Root: root, Sources: byName[name]})
	}
	return groups
}

func compileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", label, p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func matchAny(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}
