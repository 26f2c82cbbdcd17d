// Package printer renders target trees as Kotlin source.
package printer

import (
	"fmt"
	"strings"

	"j2k/internal/engine/target"
)

const defaultIndent = "    "

// keywords are the hard keywords a source identifier may collide with.
var keywords = map[string]bool{
	"as": true, "fun": true, "in": true, "is": true, "object": true,
	"typealias": true, "typeof": true, "val": true, "var": true, "when": true,
}

type Printer struct {
	indent string
}

func New() *Printer {
	return &Printer{indent: defaultIndent}
}

// WithIndent returns a printer using indent for one nesting level.
func (p *Printer) WithIndent(indent string) *Printer {
	if indent == "" {
		indent = defaultIndent
	}
	return &Printer{indent: indent}
}

func (p *Printer) Print(f *target.File) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("print: nil file")
	}
	w := &writer{indent: p.indent}
	if f.Package != "" {
		w.line("package " + f.Package)
		w.blank()
	}
	for _, imp := range f.Imports {
		w.line("import " + imp)
	}
	if len(f.Imports) > 0 {
		w.blank()
	}
	for i, c := range f.Decls {
		if i > 0 {
			w.blank()
		}
		w.class(c)
	}
	return []byte(w.b.String()), nil
}

type writer struct {
	b      strings.Builder
	indent string
	depth  int
}

func (w *writer) line(s string) {
	w.b.WriteString(strings.Repeat(w.indent, w.depth))
	w.b.WriteString(s)
	w.b.WriteByte('\n')
}

func (w *writer) blank() { w.b.WriteByte('\n') }

func (w *writer) annotations(as []target.Annotation) {
	for _, a := range as {
		w.line(annotation(a))
	}
}

func annotation(a target.Annotation) string {
	if a.Args == "" {
		return "@" + a.Name
	}
	return "@" + a.Name + "(" + a.Args + ")"
}

func visibility(v target.Visibility) string {
	if v == target.Public {
		return ""
	}
	return v.String() + " "
}

func ident(name string) string {
	if keywords[name] {
		return "`" + name + "`"
	}
	return name
}

func (w *writer) class(c *target.Class) {
	w.annotations(c.Annotations)
	var head strings.Builder
	head.WriteString(visibility(c.Visibility))
	switch {
	case c.Abstract:
		head.WriteString("abstract ")
	case c.Open:
		head.WriteString("open ")
	}
	if c.Inner {
		head.WriteString("inner ")
	}
	switch c.Kind {
	case target.KindInterface:
		head.WriteString("interface ")
	case target.KindObject:
		head.WriteString("object ")
	case target.KindCompanion:
		head.WriteString("companion object")
	default:
		head.WriteString("class ")
	}
	head.WriteString(c.Name)
	if len(c.Supertypes) > 0 {
		supers := make([]string, 0, len(c.Supertypes))
		for _, s := range c.Supertypes {
			text := s.Type.String()
			if s.Call {
				text += "(" + exprList(s.Args) + ")"
			}
			supers = append(supers, text)
		}
		head.WriteString(" : " + strings.Join(supers, ", "))
	}
	if len(c.Members) == 0 && c.Companion == nil {
		w.line(head.String())
		return
	}
	w.line(head.String() + " {")
	w.depth++
	w.members(c.Members)
	if c.Companion != nil {
		if len(c.Members) > 0 {
			w.blank()
		}
		w.class(c.Companion)
	}
	w.depth--
	w.line("}")
}

func (w *writer) members(ms []target.Member) {
	var prev target.Member
	for _, m := range ms {
		if prev != nil {
			_, p1 := prev.(*target.Property)
			_, p2 := m.(*target.Property)
			if !p1 || !p2 {
				w.blank()
			}
		}
		switch m := m.(type) {
		case *target.Property:
			w.property(m)
		case *target.Function:
			w.function(m)
		case *target.Constructor:
			w.constructor(m)
		case *target.Class:
			w.class(m)
		}
		prev = m
	}
}

func (w *writer) property(p *target.Property) {
	w.annotations(p.Annotations)
	var b strings.Builder
	b.WriteString(visibility(p.Visibility))
	if p.Override {
		b.WriteString("override ")
	}
	switch {
	case p.Const:
		b.WriteString("const ")
	case p.Lateinit:
		b.WriteString("lateinit ")
	}
	if p.Mutable {
		b.WriteString("var ")
	} else {
		b.WriteString("val ")
	}
	b.WriteString(ident(p.Name) + ": " + p.Type.String())
	if p.Init != nil {
		b.WriteString(" = " + expr(p.Init))
	}
	w.line(b.String())
	if p.Setter != nil {
		w.depth++
		w.line(visibility(*p.Setter) + "set")
		w.depth--
	}
}

func params(ps []target.Param) string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		var b strings.Builder
		for _, a := range p.Annotations {
			b.WriteString(annotation(a) + " ")
		}
		b.WriteString(ident(p.Name) + ": " + p.Type.String())
		out = append(out, b.String())
	}
	return strings.Join(out, ", ")
}

func (w *writer) function(f *target.Function) {
	w.annotations(f.Annotations)
	var b strings.Builder
	b.WriteString(visibility(f.Visibility))
	switch {
	case f.Override:
		b.WriteString("override ")
	case f.Abstract:
		b.WriteString("abstract ")
	case f.Open:
		b.WriteString("open ")
	}
	b.WriteString("fun " + ident(f.Name) + "(" + params(f.Params) + ")")
	if f.Result != nil {
		b.WriteString(": " + f.Result.String())
	}
	if f.Body == nil {
		w.line(b.String())
		return
	}
	w.block(b.String(), f.Body.Stmts)
}

func (w *writer) constructor(c *target.Constructor) {
	w.annotations(c.Annotations)
	head := visibility(c.Visibility) + "constructor(" + params(c.Params) + ")"
	if c.Delegate != "" {
		head += " : " + c.Delegate + "(" + exprList(c.DelegateArgs) + ")"
	}
	if c.Body == nil || len(c.Body.Stmts) == 0 {
		w.line(head)
		return
	}
	w.block(head, c.Body.Stmts)
}

// block writes head followed by a braced statement list.
func (w *writer) block(head string, stmts []target.Stmt) {
	if len(stmts) == 0 {
		w.line(head + " {}")
		return
	}
	w.line(head + " {")
	w.depth++
	for _, s := range stmts {
		w.stmt(s)
	}
	w.depth--
	w.line("}")
}

// branch returns the statements of an if or while body.
func branch(s target.Stmt) []target.Stmt {
	if b, ok := s.(*target.Block); ok {
		return b.Stmts
	}
	if s == nil {
		return nil
	}
	return []target.Stmt{s}
}

func (w *writer) stmt(s target.Stmt) {
	switch s := s.(type) {
	case *target.Block:
		w.block("run", s.Stmts)
	case *target.ValDecl:
		w.line(valDecl(s))
	case *target.ExprStmt:
		w.line(expr(s.X))
	case *target.Return:
		if s.X == nil {
			w.line("return")
			return
		}
		w.line("return " + expr(s.X))
	case *target.If:
		w.ifStmt("if ("+expr(s.Cond)+")", s)
	case *target.While:
		w.block("while ("+expr(s.Cond)+")", branch(s.Body))
	case *target.Throw:
		w.line("throw " + expr(s.X))
	case *target.Assign:
		w.line(assign(s))
	case *target.Verbatim:
		for _, l := range strings.Split(strings.TrimRight(s.Text, "\n"), "\n") {
			w.line(l)
		}
	}
}

func (w *writer) ifStmt(head string, s *target.If) {
	w.line(head + " {")
	w.depth++
	for _, st := range branch(s.Then) {
		w.stmt(st)
	}
	w.depth--
	for s.Else != nil {
		if next, ok := s.Else.(*target.If); ok {
			w.line("} else if (" + expr(next.Cond) + ") {")
			w.depth++
			for _, st := range branch(next.Then) {
				w.stmt(st)
			}
			w.depth--
			s = next
			continue
		}
		w.line("} else {")
		w.depth++
		for _, st := range branch(s.Else) {
			w.stmt(st)
		}
		w.depth--
		break
	}
	w.line("}")
}

func valDecl(v *target.ValDecl) string {
	kw := "val "
	if v.Mutable {
		kw = "var "
	}
	s := kw + ident(v.Name)
	if v.Type != nil {
		s += ": " + v.Type.String()
	}
	if v.Init != nil {
		s += " = " + expr(v.Init)
	}
	return s
}

func assign(a *target.Assign) string {
	op := a.Op
	if op == "" {
		op = "="
	}
	return expr(a.LHS) + " " + op + " " + expr(a.RHS)
}

func exprList(xs []target.Expr) string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		out = append(out, expr(x))
	}
	return strings.Join(out, ", ")
}

// inline renders a statement on a single line for lambda bodies.
func inline(s target.Stmt) string {
	switch s := s.(type) {
	case *target.ExprStmt:
		return expr(s.X)
	case *target.Assign:
		return assign(s)
	case *target.ValDecl:
		return valDecl(s)
	case *target.Return:
		if s.X == nil {
			return "return"
		}
		return "return " + expr(s.X)
	case *target.Throw:
		return "throw " + expr(s.X)
	case *target.Verbatim:
		return s.Text
	}
	return ""
}

func expr(e target.Expr) string {
	switch e := e.(type) {
	case nil:
		return ""
	case *target.Lit:
		return e.Text
	case *target.Ident:
		return ident(e.Name)
	case *target.This:
		return "this"
	case *target.Dot:
		op := "."
		if e.Safe {
			op = "?."
		}
		return postfixOperand(e.X) + op + ident(e.Name)
	case *target.CallExpr:
		return call(e)
	case *target.NotNull:
		return postfixOperand(e.X) + "!!"
	case *target.Binary:
		op := " " + e.Op + " "
		return binaryOperand(e, e.X) + op + binaryOperand(e, e.Y)
	case *target.Unary:
		if e.Postfix {
			return postfixOperand(e.X) + e.Op
		}
		return e.Op + postfixOperand(e.X)
	case *target.As:
		return expr(e.X) + " as " + e.Type.String()
	case *target.Is:
		return expr(e.X) + " is " + e.Type.String()
	case *target.IfExpr:
		return "if (" + expr(e.Cond) + ") " + expr(e.Then) + " else " + expr(e.Else)
	case *target.Paren:
		return "(" + expr(e.X) + ")"
	case *target.CallableRef:
		if e.X == nil {
			return "::" + ident(e.Name)
		}
		return expr(e.X) + "::" + ident(e.Name)
	case *target.ClassRef:
		return e.Type.String() + "::class"
	case *target.Index:
		return postfixOperand(e.X) + "[" + expr(e.Index) + "]"
	case *target.Lambda:
		parts := make([]string, 0, len(e.Body))
		for _, s := range e.Body {
			parts = append(parts, inline(s))
		}
		return "{ " + strings.Join(parts, "; ") + " }"
	case *target.Verbatim:
		return e.Text
	}
	return ""
}

func call(c *target.CallExpr) string {
	fun := expr(c.Fun)
	args := c.Args
	var trailing string
	if n := len(args); n > 0 {
		if l, ok := args[n-1].(*target.Lambda); ok {
			trailing = " " + expr(l)
			args = args[:n-1]
		}
	}
	if trailing != "" && len(args) == 0 {
		return fun + trailing
	}
	return fun + "(" + exprList(args) + ")" + trailing
}

// postfixOperand parenthesizes operands that bind looser than a postfix or
// member access.
func postfixOperand(x target.Expr) string {
	switch v := x.(type) {
	case *target.Binary, *target.As, *target.Is, *target.IfExpr:
		return "(" + expr(x) + ")"
	case *target.Unary:
		if !v.Postfix {
			return "(" + expr(x) + ")"
		}
	}
	return expr(x)
}

// binaryOperand parenthesizes nested binaries whenever either side is an
// infix call, whose precedence differs from the source operators.
func binaryOperand(parent *target.Binary, x target.Expr) string {
	switch x := x.(type) {
	case *target.Binary:
		if parent.Infix || x.Infix {
			return "(" + expr(x) + ")"
		}
	case *target.As, *target.Is, *target.IfExpr:
		return "(" + expr(x) + ")"
	}
	return expr(x)
}
