// Package rewrite builds the Kotlin target tree of every input file from the
// annotated source trees and a sealed decision map.
//
// Each declaration is emitted in the shape its decision names and each use
// site is rewritten to match the shape of the declaration it references.
// Sites the symbol table marked opaque keep their original form.
package rewrite

import (
	"context"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	coreerrors "j2k/internal/core/errors"
	"j2k/internal/engine/ast"
	"j2k/internal/engine/classify"
	"j2k/internal/engine/symbols"
	"j2k/internal/engine/target"
)

type Options struct {
	// Jobs bounds the files rewritten concurrently. Zero means GOMAXPROCS.
	Jobs int
	// TypeMappings extends the builtin type table, keyed by qualified or
	// simple source name.
	TypeMappings map[string]string
}

func (o Options) jobs() int {
	if o.Jobs > 0 {
		return o.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

// Rewrite returns one target file per input file, in input order.
func Rewrite(ctx context.Context, t *symbols.Table, d *classify.Decisions, files []*ast.File, opts Options) ([]*target.File, error) {
	if d == nil || !d.Sealed() {
		return nil, coreerrors.New(coreerrors.CodeInternal, "decision map must be sealed before rewriting")
	}
	types := typeMapper{custom: opts.TypeMappings}

	out := make([]*target.File, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs())
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := &rewriter{t: t, d: d, facts: d.Facts(), types: types, file: f}
			out[i] = r.rewriteFile()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// KotlinPath maps a source path onto the path of its converted file.
func KotlinPath(path string) string {
	return strings.TrimSuffix(path, ".java") + ".kt"
}

type rewriter struct {
	t     *symbols.Table
	d     *classify.Decisions
	facts *classify.Facts
	types typeMapper
	file  *ast.File
}

func (r *rewriter) decision(id ast.SymbolID) classify.Decision {
	dec, _ := r.d.Get(id)
	return dec
}

func (r *rewriter) rewriteFile() *target.File {
	path := r.file.Path
	if path == "" {
		path = string(r.file.ID)
	}
	out := &target.File{
		Path:    KotlinPath(path),
		Package: r.file.Package,
		Imports: r.types.imports(r.file.Imports),
	}
	for _, td := range r.file.Types {
		out.Decls = append(out.Decls, r.typeDecl(td))
	}
	return out
}

func (r *rewriter) typeDecl(td *ast.TypeDecl) *target.Class {
	dec := r.decision(td.Symbol)
	decl, _ := r.t.Lookup(td.Symbol)

	cls := &target.Class{
		Name:        td.Name,
		Visibility:  dec.Visibility,
		Annotations: annotations(td.Modifiers.Annotations),
	}
	switch {
	case td.Kind == ast.KindInterface:
		cls.Kind = target.KindInterface
	case dec.Shape == classify.ShapeObject:
		cls.Kind = target.KindObject
	}
	if cls.Kind == target.KindClass {
		cls.Abstract = td.Modifiers.Abstract
		cls.Open = !cls.Abstract && !td.Modifiers.Final && len(r.t.Subtypes(td.Symbol)) > 0
		cls.Inner = decl != nil && decl.Owner != "" && !decl.Static()
	}

	var companion []target.Member
	place := func(id ast.SymbolID, m target.Member) {
		if cls.Kind != target.KindObject && r.decision(id).Placement == classify.PlaceCompanion {
			companion = append(companion, m)
			return
		}
		cls.Members = append(cls.Members, m)
	}

	for _, f := range td.Fields {
		place(f.Symbol, r.field(td, f))
	}
	if cls.Kind == target.KindClass {
		for _, c := range td.Constructors {
			if len(td.Constructors) == 1 && r.implicitConstructor(c) {
				continue
			}
			cls.Members = append(cls.Members, r.constructor(td, c))
		}
	}
	for _, m := range td.Methods {
		if r.decision(m.Symbol).Shape.IsFolded() {
			continue
		}
		place(m.Symbol, r.method(td, cls.Kind, m))
	}
	for _, nested := range td.Types {
		cls.Members = append(cls.Members, r.typeDecl(nested))
	}
	if len(companion) > 0 {
		cls.Companion = &target.Class{Kind: target.KindCompanion, Members: companion}
	}

	if td.Extends != nil {
		sup := target.Supertype{Type: r.types.mapType(*td.Extends, false)}
		sup.Call = cls.Kind != target.KindInterface && !hasConstructor(cls)
		cls.Supertypes = append(cls.Supertypes, sup)
	}
	for _, impl := range td.Implements {
		cls.Supertypes = append(cls.Supertypes, target.Supertype{Type: r.types.mapType(impl, false)})
	}
	return cls
}

func hasConstructor(cls *target.Class) bool {
	for _, m := range cls.Members {
		if _, ok := m.(*target.Constructor); ok {
			return true
		}
	}
	return false
}

// implicitConstructor reports whether c is the public no-argument
// constructor the target language provides by default.
func (r *rewriter) implicitConstructor(c *ast.MethodDecl) bool {
	if len(c.Params) > 0 || len(c.Modifiers.Annotations) > 0 {
		return false
	}
	if c.Body != nil && len(c.Body.Stmts) > 0 {
		return false
	}
	return r.decision(c.Symbol).Visibility == target.Public
}

func (r *rewriter) field(owner *ast.TypeDecl, f *ast.FieldDecl) *target.Property {
	dec := r.decision(f.Symbol)
	p := &target.Property{
		Name:        f.Name,
		Type:        r.types.mapType(f.Type, dec.Nullability.Marked()),
		Visibility:  dec.Visibility,
		Annotations: annotations(f.Modifiers.Annotations),
	}
	switch dec.Shape {
	case classify.ShapeMutableProperty:
		p.Mutable = true
		if dec.HasSetterVisibility && dec.SetterVisibility != p.Visibility {
			v := dec.SetterVisibility
			p.Setter = &v
		}
	case classify.ShapeReadOnlyProperty:
	default:
		p.Mutable = !f.Modifiers.Final
	}
	if dec.Const {
		p.Const, p.Mutable = true, false
	}

	s := r.scope(owner, nil)
	switch {
	case f.Init != nil:
		p.Init = s.value(f.Init, f.Symbol)
	case !f.Modifiers.Static && r.facts != nil && r.facts.AssignedInEveryConstructor(r.t, owner.Symbol, f.Symbol):
	default:
		if p.Init = zeroValue(p.Type); p.Init == nil {
			p.Lateinit, p.Mutable = true, true
		}
	}

	if dec.Shape == classify.ShapePlainField && !p.Const && !p.Lateinit && p.Visibility != target.Private {
		p.Annotations = append(p.Annotations, target.Annotation{Name: "JvmField"})
	}
	return p
}

func (r *rewriter) params(ps []*ast.Param) []target.Param {
	out := make([]target.Param, 0, len(ps))
	for _, p := range ps {
		out = append(out, target.Param{
			Name:        p.Name,
			Type:        r.types.mapType(p.Type, r.decision(p.Symbol).Nullability.Marked()),
			Annotations: annotations(p.Modifiers.Annotations),
		})
	}
	return out
}

func (r *rewriter) method(owner *ast.TypeDecl, kind target.ClassKind, m *ast.MethodDecl) *target.Function {
	dec := r.decision(m.Symbol)
	fn := &target.Function{
		Name:        m.Name,
		Visibility:  dec.Visibility,
		Annotations: annotations(m.Modifiers.Annotations),
		Params:      r.params(m.Params),
	}
	fn.Override = m.Modifiers.Has("Override") || r.overridesSuper(m.Symbol, owner.Symbol)
	if kind == target.KindClass {
		fn.Abstract = m.Modifiers.Abstract
		fn.Open = !fn.Override && !fn.Abstract && !m.Modifiers.Final && !m.Modifiers.Static &&
			m.Modifiers.Visibility != ast.VisPrivate && r.overriddenBelow(m.Symbol, owner.Symbol)
	}
	if !m.Result.IsVoid() {
		res := r.types.mapType(m.Result, dec.Nullability.Marked())
		fn.Result = &res
	}
	if dec.Placement == classify.PlaceCompanion && isMain(m) {
		fn.Annotations = append(fn.Annotations, target.Annotation{Name: "JvmStatic"})
	}
	if m.Body != nil {
		fn.Body = r.scope(owner, m).body(m.Params, m.Body.Stmts)
	}
	return fn
}

func isMain(m *ast.MethodDecl) bool {
	return m.Name == "main" && m.Result.IsVoid() && len(m.Params) == 1 &&
		m.Params[0].Type.Name == "String" && m.Params[0].Type.Dims == 1
}

func (r *rewriter) overridesSuper(method, owner ast.SymbolID) bool {
	for _, o := range r.t.Overrides(method) {
		if d, ok := r.t.Lookup(o); ok && d.Owner != owner && r.t.IsSubtype(owner, d.Owner) {
			return true
		}
	}
	return false
}

func (r *rewriter) overriddenBelow(method, owner ast.SymbolID) bool {
	for _, o := range r.t.Overrides(method) {
		if d, ok := r.t.Lookup(o); ok && d.Owner != owner && r.t.IsSubtype(d.Owner, owner) {
			return true
		}
	}
	return false
}

func (r *rewriter) constructor(owner *ast.TypeDecl, c *ast.MethodDecl) *target.Constructor {
	out := &target.Constructor{
		Visibility:  r.decision(c.Symbol).Visibility,
		Annotations: annotations(c.Modifiers.Annotations),
		Params:      r.params(c.Params),
	}
	s := r.scope(owner, c)
	var stmts []ast.Stmt
	if c.Body != nil {
		stmts = c.Body.Stmts
	}
	if len(stmts) > 0 {
		if cc, ok := stmts[0].(*ast.ConstructorCall); ok {
			out.Delegate = "this"
			if cc.Super {
				out.Delegate = "super"
			}
			out.DelegateArgs = s.args(s.resolved(cc.Binding), cc.Args)
			stmts = stmts[1:]
		}
	}
	out.Body = s.body(c.Params, stmts)
	return out
}

func (r *rewriter) scope(owner *ast.TypeDecl, m *ast.MethodDecl) *scope {
	return &scope{r: r, owner: owner.Symbol, method: m}
}

// typePath is the source-level qualified name of a group type relative to
// its package, e.g. Outer.Registry.
func (r *rewriter) typePath(id ast.SymbolID) target.Expr {
	chain := r.t.Enclosing(id)
	names := make([]string, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		if d, ok := r.t.Lookup(chain[i]); ok {
			names = append(names, d.Name)
		}
	}
	return &target.Ident{Name: strings.Join(names, ".")}
}
