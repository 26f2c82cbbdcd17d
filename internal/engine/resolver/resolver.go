// Package resolver binds the use sites of a lowered Java file group.
//
// Declarations already carry their identities. Resolve matches every name,
// member access, call, instantiation and type reference against the group
// and records the result as a Binding. Sites that cannot be matched are
// marked unresolved, and marked external as well when they most likely
// belong to a library outside the group. Binding never fails.
package resolver

import (
	"strings"

	"golang.org/x/sync/errgroup"

	"j2k/internal/engine/ast"
)

// Resolve binds files in place. Declarations are bound before any body so
// the body pass can run one file per goroutine.
func Resolve(files []*ast.File) {
	g := newGroup(files)
	g.link()
	for _, f := range files {
		g.bindDeclarations(f)
	}

	var eg errgroup.Group
	for _, f := range files {
		eg.Go(func() error {
			(&fileResolver{g: g, file: f}).run()
			return nil
		})
	}
	_ = eg.Wait()
}

// staticType is what the resolver knows about the value of an expression.
type staticType struct {
	t    *typeInfo
	name string
	dims int
	// qualifier is set when the expression names a type rather than a value.
	qualifier bool
	// pkg holds the dotted text of an expression that can only be a package
	// prefix so far, and pkgSites the bindings of the nodes that spell it.
	pkg      string
	pkgSites []*ast.Binding
}

func (s staticType) erasure() string {
	name := s.name
	if s.t != nil {
		name = s.t.decl.Name
	}
	return name + strings.Repeat("[]", s.dims)
}

func fromRef(g *group, ref ast.TypeRef) staticType {
	st := staticType{name: ref.Erasure(), dims: ref.Dims}
	st.name = strings.TrimSuffix(st.name, strings.Repeat("[]", ref.Dims))
	if ref.Binding.Resolved() {
		st.t = g.types[ref.Binding.Target]
	}
	return st
}

func primitive(name string) staticType { return staticType{name: name} }

type local struct {
	sym ast.SymbolID
	typ ast.TypeRef
}

type scope struct {
	vars   map[string]local
	parent *scope
}

func (s *scope) lookup(name string) (local, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return local{}, false
}

type fileResolver struct {
	g     *group
	file  *ast.File
	this  *typeInfo
	scope *scope
}

func (r *fileResolver) run() {
	var walk func(*ast.TypeDecl)
	walk = func(td *ast.TypeDecl) {
		r.this = r.g.types[td.Symbol]
		for _, fd := range td.Fields {
			if fd.Init != nil {
				r.scope = nil
				fd.Init, _ = r.expr(fd.Init)
			}
		}
		for _, m := range td.Constructors {
			r.method(m)
		}
		for _, m := range td.Methods {
			r.method(m)
		}
		for _, n := range td.Types {
			walk(n)
			r.this = r.g.types[td.Symbol]
		}
	}
	for _, td := range r.file.Types {
		walk(td)
	}
}

func (r *fileResolver) method(m *ast.MethodDecl) {
	if m.Body == nil {
		return
	}
	r.scope = &scope{vars: map[string]local{}}
	for _, p := range m.Params {
		r.scope.vars[p.Name] = local{sym: p.Symbol, typ: p.Type}
	}
	r.block(m.Body)
	r.scope = nil
}

func (r *fileResolver) push() { r.scope = &scope{vars: map[string]local{}, parent: r.scope} }
func (r *fileResolver) pop()  { r.scope = r.scope.parent }

func (r *fileResolver) block(b *ast.Block) {
	r.push()
	for _, s := range b.Stmts {
		r.stmt(s)
	}
	r.pop()
}

func (r *fileResolver) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case nil:
	case *ast.Block:
		r.block(s)
	case *ast.LocalVar:
		r.g.bindTypeRef(&s.Type, r.file, r.this)
		if s.Init != nil {
			s.Init, _ = r.expr(s.Init)
		}
		r.scope.vars[s.Name] = local{sym: s.Symbol, typ: s.Type}
	case *ast.ExprStmt:
		s.X, _ = r.expr(s.X)
	case *ast.Return:
		if s.X != nil {
			s.X, _ = r.expr(s.X)
		}
	case *ast.If:
		s.Cond, _ = r.expr(s.Cond)
		r.branch(s.Then)
		r.branch(s.Else)
	case *ast.While:
		s.Cond, _ = r.expr(s.Cond)
		r.branch(s.Body)
	case *ast.Throw:
		s.X, _ = r.expr(s.X)
	case *ast.ConstructorCall:
		r.constructorCall(s)
	}
}

// branch gives a lone statement in if or while position its own scope.
func (r *fileResolver) branch(s ast.Stmt) {
	if s == nil {
		return
	}
	r.push()
	r.stmt(s)
	r.pop()
}

func (r *fileResolver) exprs(es []ast.Expr) []staticType {
	out := make([]staticType, len(es))
	for i := range es {
		es[i], out[i] = r.expr(es[i])
	}
	return out
}

var literalTypes = map[ast.LitKind]string{
	ast.LitInt:    "int",
	ast.LitLong:   "long",
	ast.LitFloat:  "float",
	ast.LitDouble: "double",
	ast.LitChar:   "char",
	ast.LitString: "String",
	ast.LitBool:   "boolean",
	ast.LitNull:   "null",
}

var booleanOps = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true, "&&": true, "||": true,
}

// expr binds e and returns the expression to keep in its place: names that
// denote types come back as TypeName qualifiers.
func (r *fileResolver) expr(e ast.Expr) (ast.Expr, staticType) {
	switch e := e.(type) {
	case nil:
		return nil, staticType{}
	case *ast.Literal:
		return e, primitive(literalTypes[e.Kind])
	case *ast.Name:
		return r.name(e)
	case *ast.TypeName:
		t := r.g.lookupType(e.Name, r.file, r.this)
		if t != nil {
			e.Binding = ast.Binding{Target: t.decl.Symbol}
		}
		return e, staticType{t: t, name: e.Name, qualifier: true}
	case *ast.Select:
		return r.selectExpr(e)
	case *ast.Call:
		return e, r.call(e)
	case *ast.New:
		return e, r.newExpr(e)
	case *ast.This:
		return e, staticType{t: r.this}
	case *ast.Assign:
		var st staticType
		e.LHS, st = r.expr(e.LHS)
		e.RHS, _ = r.expr(e.RHS)
		return e, st
	case *ast.Binary:
		var x, y staticType
		e.X, x = r.expr(e.X)
		e.Y, y = r.expr(e.Y)
		switch {
		case booleanOps[e.Op]:
			return e, primitive("boolean")
		case e.Op == "+" && (x.erasure() == "String" || y.erasure() == "String"):
			return e, primitive("String")
		}
		return e, x
	case *ast.Unary:
		var st staticType
		e.X, st = r.expr(e.X)
		if e.Op == "!" {
			return e, primitive("boolean")
		}
		return e, st
	case *ast.Cast:
		r.g.bindTypeRef(&e.Type, r.file, r.this)
		e.X, _ = r.expr(e.X)
		return e, fromRef(r.g, e.Type)
	case *ast.InstanceOf:
		e.X, _ = r.expr(e.X)
		r.g.bindTypeRef(&e.Type, r.file, r.this)
		return e, primitive("boolean")
	case *ast.Conditional:
		var st staticType
		e.Cond, _ = r.expr(e.Cond)
		e.Then, st = r.expr(e.Then)
		e.Else, _ = r.expr(e.Else)
		return e, st
	case *ast.Paren:
		var st staticType
		e.X, st = r.expr(e.X)
		return e, st
	case *ast.MethodRef:
		r.methodRef(e)
		return e, staticType{}
	case *ast.ClassLit:
		r.g.bindTypeRef(&e.Type, r.file, r.this)
		return e, primitive("Class")
	case *ast.Index:
		var st staticType
		e.X, st = r.expr(e.X)
		e.Index, _ = r.expr(e.Index)
		if st.dims > 0 {
			st.dims--
		}
		return e, st
	case *ast.AddressOf:
		var st staticType
		e.X, st = r.expr(e.X)
		return e, st
	}
	return e, staticType{}
}

// name binds a bare identifier: local or parameter, field of an enclosing
// type, statically imported field, then type.
func (r *fileResolver) name(e *ast.Name) (ast.Expr, staticType) {
	if v, ok := r.scope.lookup(e.Ident); ok {
		e.Binding = ast.Binding{Target: v.sym}
		return e, fromRef(r.g, v.typ)
	}
	for cur := r.this; cur != nil; cur = cur.outer {
		if fd := cur.field(e.Ident); fd != nil {
			e.Binding = ast.Binding{Target: fd.Symbol}
			return e, fromRef(r.g, fd.Type)
		}
	}
	owner, external := r.g.staticImports(r.file, e.Ident)
	if owner != nil {
		if fd := owner.field(e.Ident); fd != nil {
			e.Binding = ast.Binding{Target: fd.Symbol}
			return e, fromRef(r.g, fd.Type)
		}
	}
	if t := r.g.lookupType(e.Ident, r.file, r.this); t != nil {
		return &ast.TypeName{Meta: e.Meta, Name: e.Ident, Binding: ast.Binding{Target: t.decl.Symbol}}, staticType{t: t, qualifier: true}
	}

	switch {
	case external:
		e.Binding = unresolved(true, "statically imported from outside the group")
	case r.inherited():
		e.Binding = unresolved(true, "may be inherited from a library supertype")
	case isTypeLike(e.Ident) && r.importsOrLang(e.Ident):
		e.Binding = unresolved(true, "library type")
		return e, staticType{name: e.Ident, qualifier: true}
	default:
		e.Binding = unresolved(false, "no declaration named "+e.Ident)
	}
	return e, staticType{pkg: e.Ident, pkgSites: []*ast.Binding{&e.Binding}}
}

// selectExpr binds X.Name. A selection on a type qualifier may itself be a
// member type; a selection on a package prefix may complete a qualified
// type name.
func (r *fileResolver) selectExpr(e *ast.Select) (ast.Expr, staticType) {
	var x staticType
	e.X, x = r.expr(e.X)

	if x.pkg != "" {
		path := x.pkg + "." + e.Name
		if t, ok := r.g.types[ast.SymbolID(path)]; ok {
			return &ast.TypeName{Meta: e.Meta, Name: path, Binding: ast.Binding{Target: t.decl.Symbol}}, staticType{t: t, qualifier: true}
		}
		if isTypeLike(e.Name) {
			for _, site := range x.pkgSites {
				*site = unresolved(true, "package qualifier")
			}
			e.Binding = unresolved(true, "library type")
			return e, staticType{name: e.Name, qualifier: true}
		}
		e.Binding = unresolved(false, "no declaration named "+path)
		return e, staticType{pkg: path, pkgSites: append(x.pkgSites, &e.Binding)}
	}

	if x.t != nil {
		if fd := x.t.field(e.Name); fd != nil {
			e.Binding = ast.Binding{Target: fd.Symbol}
			return e, fromRef(r.g, fd.Type)
		}
		if x.qualifier {
			if n := x.t.nestedType(e.Name); n != nil {
				return &ast.TypeName{Meta: e.Meta, Name: qualifiedText(e.X) + "." + e.Name, Binding: ast.Binding{Target: n.decl.Symbol}}, staticType{t: n, qualifier: true}
			}
		}
		e.Binding = unresolved(x.t.hasForeignAncestor(), "no field "+e.Name+" on "+x.t.decl.Name)
		return e, staticType{}
	}

	if x.dims > 0 && e.Name == "length" {
		e.Binding = unresolved(true, "array length")
		return e, primitive("int")
	}
	e.Binding = unresolved(true, "receiver type is outside the group")
	return e, staticType{}
}

// qualifiedText spells out a type qualifier expression.
func qualifiedText(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.TypeName:
		return e.Name
	case *ast.Name:
		return e.Ident
	}
	return ""
}

func (r *fileResolver) call(e *ast.Call) staticType {
	var x staticType
	if e.X != nil {
		e.X, x = r.expr(e.X)
	}
	args := r.exprs(e.Args)

	var candidates []*ast.MethodDecl
	external := false
	switch {
	case e.X == nil:
		for cur := r.this; cur != nil && len(candidates) == 0; cur = cur.outer {
			candidates = cur.methodsNamed(e.Name)
		}
		if len(candidates) == 0 {
			var owner *typeInfo
			owner, external = r.g.staticImports(r.file, e.Name)
			if owner != nil {
				candidates = owner.methodsNamed(e.Name)
			}
		}
		external = external || r.inherited()
	case x.t != nil:
		candidates = x.t.methodsNamed(e.Name)
		external = x.t.hasForeignAncestor() || objectMethods[e.Name]
	default:
		external = true
	}

	m := pick(candidates, args)
	if m == nil {
		reason := "no method " + e.Name + " matches the call"
		if e.X != nil && x.t == nil {
			reason = "receiver type is outside the group"
		}
		e.Binding = unresolved(external, reason)
		return staticType{}
	}
	e.Binding = ast.Binding{Target: m.Symbol}
	return fromRef(r.g, m.Result)
}

// pick chooses the overload of ms that fits args: same arity first, then
// the most parameters whose erasure matches the argument. A trailing array
// parameter also accepts a variable argument count.
func pick(ms []*ast.MethodDecl, args []staticType) *ast.MethodDecl {
	var best *ast.MethodDecl
	bestScore := -1
	for _, m := range ms {
		if score, ok := match(m.Params, args); ok && score > bestScore {
			best, bestScore = m, score
		}
	}
	return best
}

func match(params []*ast.Param, args []staticType) (int, bool) {
	n := len(params)
	if n != len(args) {
		if n == 0 || params[n-1].Type.Dims == 0 || len(args) < n-1 {
			return 0, false
		}
		return 0, true
	}
	score := 1
	for i, p := range params {
		switch a := args[i]; {
		case a.erasure() == p.Type.Erasure():
			score += 2
		case a.name == "null" && p.Type.IsReference():
			score++
		}
	}
	return score, true
}

// objectMethods are inherited by every class from java.lang.Object.
var objectMethods = map[string]bool{
	"equals": true, "hashCode": true, "toString": true, "getClass": true,
	"notify": true, "notifyAll": true, "wait": true, "clone": true, "finalize": true,
}

func (r *fileResolver) newExpr(e *ast.New) staticType {
	t := r.g.bindTypeRef(&e.Type, r.file, r.this)
	args := r.exprs(e.Args)
	st := fromRef(r.g, e.Type)
	switch {
	case e.Type.Dims > 0:
		// Array creation; the single argument is the length.
	case t == nil:
		e.Binding = unresolved(true, "type is outside the group")
	case len(t.decl.Constructors) == 0 && len(e.Args) == 0:
		e.Binding = ast.Binding{Target: t.decl.Symbol}
	default:
		if c := pick(t.decl.Constructors, args); c != nil {
			e.Binding = ast.Binding{Target: c.Symbol}
		} else {
			e.Binding = unresolved(false, "no constructor of "+t.decl.Name+" matches")
		}
	}
	return st
}

func (r *fileResolver) constructorCall(s *ast.ConstructorCall) {
	args := r.exprs(s.Args)
	target := r.this
	if s.Super {
		target = r.this.super
		if target == nil {
			if r.this.foreignSuper {
				s.Binding = unresolved(true, "superclass is outside the group")
			}
			return
		}
	}
	if len(target.decl.Constructors) == 0 && len(s.Args) == 0 {
		return
	}
	if c := pick(target.decl.Constructors, args); c != nil {
		s.Binding = ast.Binding{Target: c.Symbol}
		return
	}
	s.Binding = unresolved(false, "no constructor of "+target.decl.Name+" matches")
}

func (r *fileResolver) methodRef(e *ast.MethodRef) {
	var x staticType
	e.X, x = r.expr(e.X)
	if x.t == nil {
		e.Binding = unresolved(true, "receiver type is outside the group")
		return
	}
	var candidates []*ast.MethodDecl
	if e.Name == "new" {
		candidates = x.t.decl.Constructors
		if len(candidates) == 0 {
			e.Binding = ast.Binding{Target: x.t.decl.Symbol}
			return
		}
	} else {
		candidates = x.t.methodsNamed(e.Name)
	}
	if len(candidates) == 0 {
		e.Binding = unresolved(x.t.hasForeignAncestor(), "no method "+e.Name+" on "+x.t.decl.Name)
		return
	}
	e.Binding = ast.Binding{Target: candidates[0].Symbol}
}

// inherited reports whether an unmatched unqualified member could come from
// a library supertype of an enclosing class.
func (r *fileResolver) inherited() bool {
	for cur := r.this; cur != nil; cur = cur.outer {
		if cur.hasForeignAncestor() {
			return true
		}
	}
	return false
}

// importsOrLang reports whether a simple type name is visible through
// java.lang or an import that points outside the group.
func (r *fileResolver) importsOrLang(name string) bool {
	if javaLang[name] {
		return true
	}
	for _, imp := range r.file.Imports {
		if imp.Static {
			continue
		}
		if imp.Wildcard || strings.HasSuffix(imp.Path, "."+name) {
			return true
		}
	}
	return false
}

func isTypeLike(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

func unresolved(external bool, reason string) ast.Binding {
	return ast.Binding{Unresolved: true, External: external, Reason: reason}
}
