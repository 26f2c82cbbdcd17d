package rewrite

import (
	"strings"

	"j2k/internal/engine/ast"
	"j2k/internal/engine/classify"
	"j2k/internal/engine/symbols"
	"j2k/internal/engine/target"
)

// scope rewrites the statements and expressions of one member body.
type scope struct {
	r      *rewriter
	owner  ast.SymbolID
	method *ast.MethodDecl
}

var infixOps = map[string]string{
	"&":   "and",
	"|":   "or",
	"^":   "xor",
	"<<":  "shl",
	">>":  "shr",
	">>>": "ushr",
}

func (s *scope) site(n ast.Node) symbols.SiteKey {
	return symbols.SiteKey{File: s.r.file.ID, Node: n.ID()}
}

// resolved returns the group declaration a binding names, or nil for a site
// the table recorded as opaque.
func (s *scope) resolved(b ast.Binding) *symbols.Declaration {
	if !b.Resolved() {
		return nil
	}
	d, ok := s.r.t.Lookup(b.Target)
	if !ok {
		return nil
	}
	return d
}

func (s *scope) body(params []*ast.Param, stmts []ast.Stmt) *target.Block {
	b := &target.Block{}
	for _, p := range params {
		if s.r.decision(p.Symbol).Shape == classify.ShapeVariable {
			b.Stmts = append(b.Stmts, &target.ValDecl{Name: p.Name, Mutable: true, Init: &target.Ident{Name: p.Name}})
		}
	}
	b.Stmts = append(b.Stmts, s.stmts(stmts)...)
	return b
}

func (s *scope) stmts(in []ast.Stmt) []target.Stmt {
	out := make([]target.Stmt, 0, len(in))
	for _, st := range in {
		if t := s.stmt(st); t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (s *scope) stmt(st ast.Stmt) target.Stmt {
	switch st := st.(type) {
	case *ast.Block:
		return &target.Block{Stmts: s.stmts(st.Stmts)}
	case *ast.LocalVar:
		return s.local(st)
	case *ast.ExprStmt:
		return s.exprStmt(st.X)
	case *ast.Return:
		if st.X == nil {
			return &target.Return{}
		}
		if s.method != nil && !s.method.Constructor {
			return &target.Return{X: s.value(st.X, s.method.Symbol)}
		}
		return &target.Return{X: s.expr(st.X)}
	case *ast.If:
		out := &target.If{Cond: s.expr(st.Cond), Then: s.stmt(st.Then)}
		if st.Else != nil {
			out.Else = s.stmt(st.Else)
		}
		return out
	case *ast.While:
		return &target.While{Cond: s.expr(st.Cond), Body: s.stmt(st.Body)}
	case *ast.Throw:
		return &target.Throw{X: s.expr(st.X)}
	case *ast.ConstructorCall:
		name := "this"
		if st.Super {
			name = "super"
		}
		return &target.ExprStmt{X: &target.CallExpr{Fun: &target.Ident{Name: name}, Args: s.args(s.resolved(st.Binding), st.Args)}}
	case *ast.Verbatim:
		return &target.Verbatim{Text: st.Text}
	}
	return nil
}

func (s *scope) local(l *ast.LocalVar) target.Stmt {
	dec := s.r.decision(l.Symbol)
	v := &target.ValDecl{Name: l.Name, Mutable: dec.Shape == classify.ShapeVariable}
	if !s.inferred(l) {
		t := s.r.types.mapType(l.Type, dec.Nullability.Marked())
		v.Type = &t
	}
	if l.Init != nil {
		v.Init = s.value(l.Init, l.Symbol)
	}
	return v
}

// inferred reports whether a local is declared without a type and takes the
// type of its initializer.
func (s *scope) inferred(l *ast.LocalVar) bool {
	if l.Init == nil || ast.IsNullLiteral(l.Init) || s.r.decision(l.Symbol).Nullability.Marked() {
		return false
	}
	if n, ok := ast.Unparen(l.Init).(*ast.New); ok && len(n.Type.Args) == 0 && len(l.Type.Args) > 0 {
		return false
	}
	return true
}

func (s *scope) exprStmt(x ast.Expr) target.Stmt {
	switch x := x.(type) {
	case *ast.Assign:
		return s.assign(x)
	case *ast.Call:
		if d := s.resolved(x.Binding); d != nil && len(x.Args) == 1 {
			dec := s.r.decision(d.ID)
			if f, ok := s.r.t.Lookup(dec.Property); ok && dec.Shape == classify.ShapeSetter {
				return &target.Assign{Op: "=", LHS: s.member(x, x.X, f.Name, d), RHS: s.value(x.Args[0], f.ID)}
			}
		}
	}
	return &target.ExprStmt{X: s.expr(x)}
}

func (s *scope) assign(a *ast.Assign) *target.Assign {
	lhs := s.expr(a.LHS)
	op := a.Op
	var rhs target.Expr
	if id := assignedSymbol(a.LHS); op == "=" && id != "" {
		rhs = s.value(a.RHS, id)
	} else {
		rhs = s.expr(a.RHS)
	}
	if word, ok := infixOps[strings.TrimSuffix(op, "=")]; ok && op != "=" {
		rhs = &target.Binary{Op: word, X: lhs, Y: rhs, Infix: true}
		op = "="
	}
	return &target.Assign{Op: op, LHS: lhs, RHS: rhs}
}

func assignedSymbol(lhs ast.Expr) ast.SymbolID {
	switch x := ast.Unparen(lhs).(type) {
	case *ast.Name:
		if x.Binding.Resolved() {
			return x.Binding.Target
		}
	case *ast.Select:
		if x.Binding.Resolved() {
			return x.Binding.Target
		}
	}
	return ""
}

func (s *scope) expr(e ast.Expr) target.Expr {
	switch e := e.(type) {
	case *ast.Literal:
		return &target.Lit{Text: literal(e)}
	case *ast.Name:
		return &target.Ident{Name: e.Ident}
	case *ast.TypeName:
		return &target.Ident{Name: e.Name}
	case *ast.This:
		return &target.This{}
	case *ast.Select:
		return s.selectExpr(e)
	case *ast.Call:
		return s.call(e)
	case *ast.New:
		return s.newExpr(e)
	case *ast.Assign:
		return s.assignExpr(e)
	case *ast.Binary:
		if word, ok := infixOps[e.Op]; ok {
			return &target.Binary{Op: word, X: s.expr(e.X), Y: s.expr(e.Y), Infix: true}
		}
		return &target.Binary{Op: e.Op, X: s.expr(e.X), Y: s.expr(e.Y)}
	case *ast.Unary:
		if e.Op == "~" {
			return &target.CallExpr{Fun: &target.Dot{X: operand(s.expr(e.X)), Name: "inv"}}
		}
		return &target.Unary{Op: e.Op, X: s.expr(e.X), Postfix: e.Postfix}
	case *ast.Cast:
		if e.Type.IsPrimitive() {
			t := s.r.types.mapType(e.Type, false)
			return &target.CallExpr{Fun: &target.Dot{X: operand(s.receiver(e.X)), Name: "to" + t.Name}}
		}
		return &target.As{X: s.expr(e.X), Type: s.r.types.mapType(e.Type, false)}
	case *ast.InstanceOf:
		return &target.Is{X: s.expr(e.X), Type: s.r.types.mapType(e.Type, false)}
	case *ast.Conditional:
		return &target.IfExpr{Cond: s.expr(e.Cond), Then: s.expr(e.Then), Else: s.expr(e.Else)}
	case *ast.Paren:
		return &target.Paren{X: s.expr(e.X)}
	case *ast.MethodRef:
		return s.methodRef(e)
	case *ast.ClassLit:
		name := "java"
		if e.Type.IsPrimitive() {
			name = "javaPrimitiveType"
		}
		return &target.Dot{X: &target.ClassRef{Type: s.r.types.mapType(e.Type, false)}, Name: name}
	case *ast.Index:
		return &target.Index{X: s.receiver(e.X), Index: s.expr(e.Index)}
	case *ast.AddressOf:
		return s.expr(e.X)
	case *ast.Verbatim:
		return &target.Verbatim{Text: e.Text}
	}
	return nil
}

// operand parenthesizes x when it would bind looser than a member access.
func operand(x target.Expr) target.Expr {
	switch x.(type) {
	case *target.Binary, *target.Unary, *target.As, *target.Is, *target.IfExpr:
		return &target.Paren{X: x}
	}
	return x
}

func (s *scope) selectExpr(e *ast.Select) target.Expr {
	d := s.resolved(e.Binding)
	if d == nil && e.Name == "length" && s.isArray(e.X) {
		return &target.Dot{X: s.receiver(e.X), Name: "size"}
	}
	return s.member(e, e.X, e.Name, d)
}

// member is a use of name on receiver x. Static members reached through an
// instance are qualified by their type instead.
func (s *scope) member(site ast.Node, x ast.Expr, name string, d *symbols.Declaration) target.Expr {
	if d != nil && d.Static() {
		if ref, ok := s.r.t.Site(s.r.file.ID, site.ID()); ok && ref.StaticViaInstance {
			return &target.Dot{X: s.r.typePath(d.Owner), Name: name}
		}
	}
	if x == nil {
		return &target.Ident{Name: name}
	}
	return &target.Dot{X: s.receiver(x), Name: name}
}

func (s *scope) call(e *ast.Call) target.Expr {
	d := s.resolved(e.Binding)
	if d != nil {
		dec := s.r.decision(d.ID)
		if f, ok := s.r.t.Lookup(dec.Property); ok && dec.Shape == classify.ShapeGetter {
			return s.member(e, e.X, f.Name, d)
		}
	} else if out, ok := s.libraryCall(e); ok {
		return out
	}
	return &target.CallExpr{Fun: s.member(e, e.X, e.Name, d), Args: s.args(d, e.Args)}
}

// libraryCall rewrites a call outside the group whose receiver has a mapped
// library type.
func (s *scope) libraryCall(e *ast.Call) (target.Expr, bool) {
	if e.X == nil {
		return nil, false
	}
	t, ok := s.staticType(e.X)
	if !ok || t.Dims > 0 {
		return nil, false
	}
	m, ok := lookupMember(s.r.types.mapType(t, false).Name, e.Name, len(e.Args))
	if !ok {
		return nil, false
	}
	switch m.kind {
	case memberProperty:
		return &target.Dot{X: s.receiver(e.X), Name: m.name}, true
	case memberIndex:
		return &target.Index{X: s.receiver(e.X), Index: s.expr(e.Args[0])}, true
	}
	return &target.CallExpr{Fun: &target.Dot{X: s.receiver(e.X), Name: m.name}, Args: s.args(nil, e.Args)}, true
}

// staticType is the declared Java type of x, when the group knows it.
func (s *scope) staticType(x ast.Expr) (ast.TypeRef, bool) {
	switch x := ast.Unparen(x).(type) {
	case *ast.Literal:
		if x.Kind == ast.LitString {
			return ast.Named("String"), true
		}
	case *ast.New:
		return x.Type, true
	case *ast.Cast:
		return x.Type, true
	case *ast.Name:
		return s.declaredType(x.Binding)
	case *ast.Select:
		return s.declaredType(x.Binding)
	case *ast.Call:
		return s.declaredType(x.Binding)
	}
	return ast.TypeRef{}, false
}

func (s *scope) declaredType(b ast.Binding) (ast.TypeRef, bool) {
	d := s.resolved(b)
	if d == nil {
		return ast.TypeRef{}, false
	}
	switch d.Kind {
	case symbols.KindField, symbols.KindParam, symbols.KindLocal, symbols.KindMethod:
		return d.Type, d.Type.Name != ""
	}
	return ast.TypeRef{}, false
}

func (s *scope) newExpr(e *ast.New) target.Expr {
	t := s.r.types.mapType(e.Type, false)
	if t.Name == "Array" && len(t.Args) == 1 {
		return &target.CallExpr{Fun: &target.Ident{Name: "arrayOfNulls<" + t.Args[0].String() + ">"}, Args: s.args(nil, e.Args)}
	}
	return &target.CallExpr{Fun: &target.Ident{Name: t.String()}, Args: s.args(s.resolved(e.Binding), e.Args)}
}

// assignExpr rewrites an assignment used as a value; the target language
// only has assignment statements.
func (s *scope) assignExpr(e *ast.Assign) target.Expr {
	as := s.assign(e)
	if e.Op == "=" {
		set := &target.Assign{Op: "=", LHS: as.LHS, RHS: &target.Ident{Name: "it"}}
		return &target.CallExpr{
			Fun:  &target.Dot{X: operand(as.RHS), Name: "also"},
			Args: []target.Expr{&target.Lambda{Body: []target.Stmt{set}}},
		}
	}
	return &target.CallExpr{
		Fun:  &target.Ident{Name: "run"},
		Args: []target.Expr{&target.Lambda{Body: []target.Stmt{as, &target.ExprStmt{X: as.LHS}}}},
	}
}

func (s *scope) methodRef(e *ast.MethodRef) target.Expr {
	if e.Name == "new" {
		if tn, ok := e.X.(*ast.TypeName); ok {
			return &target.CallableRef{Name: tn.Name}
		}
	}
	return &target.CallableRef{X: s.expr(e.X), Name: e.Name}
}

func (s *scope) args(d *symbols.Declaration, args []ast.Expr) []target.Expr {
	var params []*ast.Param
	if d != nil && d.Func != nil {
		params = d.Func.Params
	}
	out := make([]target.Expr, 0, len(args))
	for i, a := range args {
		if i < len(params) {
			out = append(out, s.value(a, params[i].Symbol))
			continue
		}
		out = append(out, s.expr(a))
	}
	return out
}

// receiver rewrites x in dereference position.
func (s *scope) receiver(x ast.Expr) target.Expr {
	out := s.expr(x)
	if s.nullable(x) {
		return &target.NotNull{X: out}
	}
	return out
}

// value rewrites e stored into the declaration to, asserting non-null when
// e may be null and the destination cannot hold null.
func (s *scope) value(e ast.Expr, to ast.SymbolID) target.Expr {
	out := s.expr(e)
	d, ok := s.r.t.Lookup(to)
	if !ok || ast.IsNullLiteral(e) {
		return out
	}
	if !s.acceptsNull(d) && s.nullable(e) {
		return &target.NotNull{X: out}
	}
	return out
}

func (s *scope) acceptsNull(d *symbols.Declaration) bool {
	if !d.Type.IsReference() {
		return false
	}
	if d.Kind == symbols.KindLocal && s.inferred(d.Local) {
		return s.nullable(d.Local.Init)
	}
	return s.r.decision(d.ID).Nullability.Marked()
}

// nullable reports whether the value of e carries a nullability mark at
// this site. Fields are nullable at every site; parameters and locals only
// outside a guard.
func (s *scope) nullable(e ast.Expr) bool {
	switch x := ast.Unparen(e).(type) {
	case *ast.Literal:
		return x.Kind == ast.LitNull
	case *ast.Name:
		return s.nullableRef(x, x.Binding)
	case *ast.Select:
		return s.nullableRef(x, x.Binding)
	case *ast.Call:
		d := s.resolved(x.Binding)
		if d == nil {
			return false
		}
		dec := s.r.decision(d.ID)
		if f, ok := s.r.t.Lookup(dec.Property); ok && dec.Shape == classify.ShapeGetter {
			return f.Type.IsReference() && s.r.decision(f.ID).Nullability.Marked()
		}
		return d.Kind == symbols.KindMethod && d.Type.IsReference() && dec.Nullability.Marked()
	}
	return false
}

func (s *scope) nullableRef(site ast.Node, b ast.Binding) bool {
	d := s.resolved(b)
	if d == nil || !d.Type.IsReference() {
		return false
	}
	switch d.Kind {
	case symbols.KindField:
		return s.r.decision(d.ID).Nullability.Marked()
	case symbols.KindParam, symbols.KindLocal:
		return s.acceptsNull(d) && !s.r.facts.Guarded(s.site(site))
	}
	return false
}

func (s *scope) isArray(x ast.Expr) bool {
	var b ast.Binding
	switch x := ast.Unparen(x).(type) {
	case *ast.Name:
		b = x.Binding
	case *ast.Select:
		b = x.Binding
	default:
		return false
	}
	d := s.resolved(b)
	return d != nil && d.Type.Dims > 0
}
