package symbols

import (
	"strings"

	coreerrors "j2k/internal/core/errors"
	"j2k/internal/engine/ast"
)

// walker is the second pass: it records every use site of one file together
// with its enclosing type and method.
type walker struct {
	t    *Table
	file *ast.File
	errs []error

	inType   ast.SymbolID
	inMethod ast.SymbolID
	inInit   bool
}

func (w *walker) typeDecl(td *ast.TypeDecl) {
	outerType, outerMethod, outerInit := w.inType, w.inMethod, w.inInit
	w.inType, w.inMethod, w.inInit = td.Symbol, "", false
	defer func() { w.inType, w.inMethod, w.inInit = outerType, outerMethod, outerInit }()

	if td.Extends != nil {
		w.typeRef(td.Extends, CtxSubclass)
	}
	for i := range td.Implements {
		w.typeRef(&td.Implements[i], CtxSubclass)
	}
	for _, fd := range td.Fields {
		w.typeRef(&fd.Type, CtxTypeUse)
		if fd.Init != nil {
			w.inInit = true
			w.expr(fd.Init, CtxRead)
			w.inInit = false
		}
	}
	for _, m := range td.Constructors {
		w.method(m, true)
	}
	for _, m := range td.Methods {
		w.method(m, false)
	}
	for _, nested := range td.Types {
		w.typeDecl(nested)
	}
}

func (w *walker) method(m *ast.MethodDecl, ctor bool) {
	w.inMethod, w.inInit = m.Symbol, ctor
	defer func() { w.inMethod, w.inInit = "", false }()

	if !ctor {
		w.typeRef(&m.Result, CtxTypeUse)
	}
	for _, p := range m.Params {
		w.typeRef(&p.Type, CtxTypeUse)
	}
	if m.Body != nil {
		w.stmt(m.Body)
	}
}

func (w *walker) typeRef(ref *ast.TypeRef, ctx Context) {
	w.record(ref, ref.Binding, ctx, ref.Name, false, false)
	for i := range ref.Args {
		w.typeRef(&ref.Args[i], CtxTypeUse)
	}
}

func (w *walker) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case nil:
	case *ast.Block:
		for _, st := range s.Stmts {
			w.stmt(st)
		}
	case *ast.LocalVar:
		w.typeRef(&s.Type, CtxTypeUse)
		if s.Init != nil {
			w.expr(s.Init, CtxRead)
		}
	case *ast.ExprStmt:
		if call, ok := s.X.(*ast.Call); ok && isSetterShape(call) {
			w.call(call, CtxSetterCall)
			return
		}
		w.expr(s.X, CtxRead)
	case *ast.Return:
		w.expr(s.X, CtxRead)
	case *ast.If:
		w.expr(s.Cond, CtxRead)
		w.stmt(s.Then)
		w.stmt(s.Else)
	case *ast.While:
		w.expr(s.Cond, CtxRead)
		w.stmt(s.Body)
	case *ast.Throw:
		w.expr(s.X, CtxRead)
	case *ast.ConstructorCall:
		w.record(s, s.Binding, CtxInvoke, "this", true, false)
		w.exprs(s.Args)
	}
}

func (w *walker) exprs(es []ast.Expr) {
	for _, e := range es {
		w.expr(e, CtxRead)
	}
}

// expr records e in the given value context and descends.
func (w *walker) expr(e ast.Expr, ctx Context) {
	switch e := e.(type) {
	case nil:
	case *ast.Name:
		w.record(e, e.Binding, ctx, e.Ident, true, false)
	case *ast.TypeName:
		w.record(e, e.Binding, CtxQualifier, e.Name, false, false)
	case *ast.Select:
		w.record(e, e.Binding, ctx, e.Name, isThis(e.X), viaInstance(e.X))
		w.expr(e.X, CtxRead)
	case *ast.Call:
		if w.reflective(e) {
			return
		}
		c := CtxInvoke
		if isGetterShape(e) {
			c = CtxGetterCall
		}
		w.call(e, c)
	case *ast.New:
		w.typeRef(&e.Type, CtxTypeUse)
		target := e.Binding
		if target.Resolved() {
			if d, ok := w.t.byID[target.Target]; ok && d.Kind == KindConstructor {
				target.Target = d.Owner
			}
		}
		w.record(e, target, CtxInstantiate, e.Type.Name, false, false)
		w.exprs(e.Args)
	case *ast.Assign:
		lc := CtxWrite
		if e.Op != "=" {
			lc = CtxReadWrite
		}
		w.expr(e.LHS, lc)
		w.expr(e.RHS, CtxRead)
	case *ast.Unary:
		if e.Op == "++" || e.Op == "--" {
			w.expr(e.X, CtxReadWrite)
			return
		}
		w.expr(e.X, CtxRead)
	case *ast.Binary:
		w.expr(e.X, CtxRead)
		w.expr(e.Y, CtxRead)
	case *ast.Cast:
		w.typeRef(&e.Type, CtxTypeUse)
		w.expr(e.X, CtxRead)
	case *ast.InstanceOf:
		w.expr(e.X, CtxRead)
		w.typeRef(&e.Type, CtxTypeUse)
	case *ast.Conditional:
		w.expr(e.Cond, CtxRead)
		w.expr(e.Then, CtxRead)
		w.expr(e.Else, CtxRead)
	case *ast.Paren:
		w.expr(e.X, ctx)
	case *ast.MethodRef:
		w.record(e, e.Binding, CtxMethodRef, e.Name, false, false)
		w.expr(e.X, CtxRead)
	case *ast.ClassLit:
		w.typeRef(&e.Type, CtxTypeUse)
	case *ast.Index:
		w.expr(e.X, CtxRead)
		w.expr(e.Index, CtxRead)
	case *ast.AddressOf:
		w.expr(e.X, CtxAddressOf)
	}
}

func (w *walker) call(e *ast.Call, ctx Context) {
	w.record(e, e.Binding, ctx, e.Name, e.X == nil || isThis(e.X), viaInstance(e.X))
	w.expr(e.X, CtxRead)
	w.exprs(e.Args)
}

// reflective turns T.class.getDeclaredField("name") and its siblings into a
// Reflective reference to the named member of T.
func (w *walker) reflective(e *ast.Call) bool {
	kind, ok := reflectiveLookups[e.Name]
	if !ok || len(e.Args) == 0 {
		return false
	}
	lit, ok := ast.Unparen(e.X).(*ast.ClassLit)
	if !ok || !lit.Type.Binding.Resolved() {
		return false
	}
	name, ok := ast.Unparen(e.Args[0]).(*ast.Literal)
	if !ok || name.Kind != ast.LitString {
		return false
	}
	member := strings.Trim(name.Text, `"`)
	owner := lit.Type.Binding.Target

	w.typeRef(&lit.Type, CtxTypeUse)
	for _, d := range w.t.members[owner] {
		if d.Kind != kind || d.Name != member {
			continue
		}
		w.add(&Reference{
			Site:    SiteKey{File: w.file.ID, Node: name.ID()},
			Target:  d.ID,
			Context: CtxReflective,
			Node:    name,
			Pos:     name.Position(),
			Name:    member,
		})
	}
	w.exprs(e.Args[1:])
	return true
}

func (w *walker) record(n ast.Node, b ast.Binding, ctx Context, name string, thisRecv, viaInst bool) {
	if !b.Unresolved && b.Target == "" {
		return
	}
	ref := &Reference{
		Site:         SiteKey{File: w.file.ID, Node: n.ID()},
		Target:       b.Target,
		Context:      ctx,
		Node:         n,
		Pos:          n.Position(),
		ThisReceiver: thisRecv,
		Name:         name,
	}
	d, ok := w.t.byID[b.Target]
	if b.Unresolved || !ok {
		ref.Opaque = true
		ref.External = b.External
		ref.Reason = b.Reason
		if ref.Reason == "" {
			ref.Reason = "no declaration with identity " + string(b.Target)
		}
		w.fill(ref)
		w.t.opaque = append(w.t.opaque, ref)
		w.t.sites[ref.Site] = ref
		err := coreerrors.UnresolvedReference(string(w.file.ID), name, ref.Pos.Line, ref.Reason)
		if ref.External {
			err = coreerrors.AddContext(err, "external", true)
		}
		w.errs = append(w.errs, err)
		return
	}
	ref.StaticViaInstance = viaInst && d.Static() && d.Kind != KindType
	w.add(ref)
}

func (w *walker) fill(ref *Reference) {
	ref.Package = w.file.Package
	ref.InType = w.inType
	ref.InMethod = w.inMethod
	ref.InInit = w.inInit
}

func (w *walker) add(ref *Reference) {
	w.fill(ref)
	w.t.refs = append(w.t.refs, ref)
	w.t.byTarget[ref.Target] = append(w.t.byTarget[ref.Target], ref)
	if _, taken := w.t.sites[ref.Site]; !taken {
		w.t.sites[ref.Site] = ref
	}
}

func isThis(e ast.Expr) bool {
	_, ok := ast.Unparen(e).(*ast.This)
	return ok
}

// viaInstance reports whether a member is selected through a value rather
// than a type name or an implicit receiver.
func viaInstance(x ast.Expr) bool {
	switch ast.Unparen(x).(type) {
	case nil, *ast.TypeName:
		return false
	}
	return true
}

// AccessorName reports the property name an accessor-shaped method name
// implies: getFoo and isFoo give foo, setFoo gives foo.
func AccessorName(method string) (prop string, getter, ok bool) {
	for _, p := range []struct {
		prefix string
		getter bool
	}{{"get", true}, {"is", true}, {"set", false}} {
		rest, found := strings.CutPrefix(method, p.prefix)
		if !found || rest == "" || !isUpper(rest[0]) {
			continue
		}
		return decapitalize(rest), p.getter, true
	}
	return "", false, false
}

func isGetterShape(c *ast.Call) bool {
	_, getter, ok := AccessorName(c.Name)
	return ok && getter && len(c.Args) == 0
}

func isSetterShape(c *ast.Call) bool {
	_, getter, ok := AccessorName(c.Name)
	return ok && !getter && len(c.Args) == 1
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }

func decapitalize(s string) string {
	if s == "" {
		return s
	}
	// URL stays URL, Count becomes count
	if len(s) > 1 && isUpper(s[1]) {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
