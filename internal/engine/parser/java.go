// Package parser is the Java front-end: it lowers tree-sitter syntax trees
// into annotated ast files and hands the group to the resolver for name
// binding.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"fortio.org/safecast"
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	"golang.org/x/sync/errgroup"

	coreerrors "j2k/internal/core/errors"
	"j2k/internal/core/ports"
	"j2k/internal/engine/ast"
	"j2k/internal/engine/resolver"
	"j2k/internal/shared/observability"
)

const Language = "java"

// JavaParser implements ports.SourceParser.
type JavaParser struct {
	pool *ParserPool
	jobs int
}

// NewJavaParser returns a parser running at most jobs files at once; zero
// means GOMAXPROCS.
func NewJavaParser(jobs int) *JavaParser {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return &JavaParser{pool: NewParserPool(sitter.NewLanguage(tree_sitter_java.Language())), jobs: jobs}
}

func (p *JavaParser) IsSourcePath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".java")
}

// ParseGroup lowers every file, then binds names across the group. Binding
// only runs when every file lowered cleanly.
func (p *JavaParser) ParseGroup(ctx context.Context, files []ports.SourceFile) []ports.ParsedFile {
	out := make([]ports.ParsedFile, len(files))
	var g errgroup.Group
	g.SetLimit(p.jobs)
	for i, f := range files {
		g.Go(func() error {
			out[i].Path = f.Path
			if err := ctx.Err(); err != nil {
				out[i].Err = coreerrors.ParseInput(f.Path, err)
				return nil
			}
			out[i].File, out[i].Err = p.ParseFile(f.Path, f.Content)
			return nil
		})
	}
	_ = g.Wait()

	trees := make([]*ast.File, 0, len(out))
	for _, pf := range out {
		if pf.Err != nil {
			return out
		}
		trees = append(trees, pf.File)
	}
	resolver.Resolve(trees)
	return out
}

// ParseFile lowers one file without binding its names.
func (p *JavaParser) ParseFile(path string, content []byte) (*ast.File, error) {
	start := time.Now()
	defer func() {
		observability.ParsingDuration.WithLabelValues(Language).Observe(time.Since(start).Seconds())
	}()

	sp := p.pool.Get()
	defer p.pool.Put(sp)
	tree := sp.Parse(content, nil)
	if tree == nil {
		return nil, coreerrors.ParseInput(path, fmt.Errorf("parser returned no tree"))
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		bad := firstError(root)
		pos := position(bad)
		return nil, coreerrors.AddContext(
			coreerrors.ParseInput(path, fmt.Errorf("syntax error at %d:%d", pos.Line, pos.Column)),
			coreerrors.CtxLine, pos.Line)
	}

	l := &lowerer{src: content, file: &ast.File{ID: ast.FileID(path), Path: path}}
	l.program(root)
	if l.err != nil {
		return nil, coreerrors.ParseInput(path, l.err)
	}
	return l.file, nil
}

// firstError returns the first ERROR or MISSING node in source order.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c != nil && (c.HasError() || c.IsMissing()) {
			return firstError(c)
		}
	}
	return n
}

func position(n *sitter.Node) ast.Pos {
	p := n.StartPosition()
	line, err := safecast.Conv[int](p.Row)
	if err != nil {
		return ast.Pos{}
	}
	col, err := safecast.Conv[int](p.Column)
	if err != nil {
		return ast.Pos{Line: line + 1}
	}
	return ast.Pos{Line: line + 1, Column: col + 1}
}
