package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"j2k/internal/engine/ast"
)

func (l *lowerer) block(n *sitter.Node) *ast.Block {
	b := &ast.Block{Meta: l.meta(n)}
	for _, c := range named(n) {
		b.Stmts = append(b.Stmts, l.stmt(c)...)
	}
	return b
}

// stmt lowers one statement. A local declaration with several declarators
// becomes one statement per variable.
func (l *lowerer) stmt(n *sitter.Node) []ast.Stmt {
	switch n.Kind() {
	case "block":
		return []ast.Stmt{l.block(n)}
	case "local_variable_declaration":
		return l.locals(n)
	case "expression_statement":
		cs := named(n)
		if len(cs) == 0 {
			return nil
		}
		return []ast.Stmt{&ast.ExprStmt{Meta: l.meta(n), X: l.expr(cs[0])}}
	case "return_statement":
		r := &ast.Return{Meta: l.meta(n)}
		if cs := named(n); len(cs) > 0 {
			r.X = l.expr(cs[0])
		}
		return []ast.Stmt{r}
	case "if_statement":
		s := &ast.If{Meta: l.meta(n), Cond: l.condition(n.ChildByFieldName("condition"))}
		s.Then = l.single(n.ChildByFieldName("consequence"))
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			s.Else = l.single(alt)
		}
		return []ast.Stmt{s}
	case "while_statement":
		return []ast.Stmt{&ast.While{
			Meta: l.meta(n),
			Cond: l.condition(n.ChildByFieldName("condition")),
			Body: l.single(n.ChildByFieldName("body")),
		}}
	case "throw_statement":
		cs := named(n)
		return []ast.Stmt{&ast.Throw{Meta: l.meta(n), X: l.expr(cs[0])}}
	case "explicit_constructor_invocation":
		if n.ChildByFieldName("object") != nil {
			break
		}
		cc := &ast.ConstructorCall{Meta: l.meta(n), Super: n.ChildByFieldName("constructor").Kind() == "super"}
		cc.Args = l.args(n.ChildByFieldName("arguments"))
		return []ast.Stmt{cc}
	case ";":
		return nil
	}
	return []ast.Stmt{l.verbatim(n)}
}

// single lowers a statement position that holds exactly one statement.
func (l *lowerer) single(n *sitter.Node) ast.Stmt {
	stmts := l.stmt(n)
	if len(stmts) == 1 {
		return stmts[0]
	}
	return &ast.Block{Meta: l.meta(n), Stmts: stmts}
}

// condition unwraps the parentheses of an if or while condition.
func (l *lowerer) condition(n *sitter.Node) ast.Expr {
	if n != nil && n.Kind() == "parenthesized_expression" {
		if cs := named(n); len(cs) == 1 {
			return l.expr(cs[0])
		}
	}
	return l.expr(n)
}

func (l *lowerer) locals(n *sitter.Node) []ast.Stmt {
	base := l.typeRef(n.ChildByFieldName("type"))
	var out []ast.Stmt
	for _, d := range fields(n, "declarator") {
		meta := l.meta(d)
		name := l.text(d.ChildByFieldName("name"))
		lv := &ast.LocalVar{
			Meta:   meta,
			Symbol: ast.LocalID(l.method, name, meta.Node),
			Name:   name,
			Type:   withDims(base, l.dims(d.ChildByFieldName("dimensions"))),
		}
		if v := d.ChildByFieldName("value"); v != nil {
			lv.Init = l.expr(v)
		}
		out = append(out, lv)
	}
	return out
}

func (l *lowerer) verbatim(n *sitter.Node) *ast.Verbatim {
	return &ast.Verbatim{Meta: l.meta(n), Text: dedent(l.text(n), position(n).Column-1)}
}

// dedent strips the source indentation of continuation lines so verbatim
// text can be re-indented by the printer.
func dedent(text string, col int) string {
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		trimmed := strings.TrimLeft(lines[i], " \t")
		strip := len(lines[i]) - len(trimmed)
		if strip > col {
			strip = col
		}
		lines[i] = lines[i][strip:]
	}
	return strings.Join(lines, "\n")
}

func (l *lowerer) args(n *sitter.Node) []ast.Expr {
	var out []ast.Expr
	for _, c := range named(n) {
		out = append(out, l.expr(c))
	}
	return out
}

var literalKinds = map[string]ast.LitKind{
	"hex_integer_literal":            ast.LitInt,
	"octal_integer_literal":          ast.LitInt,
	"binary_integer_literal":         ast.LitInt,
	"decimal_integer_literal":        ast.LitInt,
	"decimal_floating_point_literal": ast.LitDouble,
	"hex_floating_point_literal":     ast.LitDouble,
	"character_literal":              ast.LitChar,
	"string_literal":                 ast.LitString,
	"true":                           ast.LitBool,
	"false":                          ast.LitBool,
	"null_literal":                   ast.LitNull,
}

func (l *lowerer) literal(n *sitter.Node, kind ast.LitKind) *ast.Literal {
	text := l.text(n)
	switch kind {
	case ast.LitInt:
		if strings.HasSuffix(text, "l") || strings.HasSuffix(text, "L") {
			kind = ast.LitLong
		}
	case ast.LitDouble:
		if strings.HasSuffix(text, "f") || strings.HasSuffix(text, "F") {
			kind = ast.LitFloat
		}
	}
	return &ast.Literal{Meta: l.meta(n), Kind: kind, Text: text}
}

func (l *lowerer) expr(n *sitter.Node) ast.Expr {
	if n == nil {
		return nil
	}
	if kind, ok := literalKinds[n.Kind()]; ok {
		if n.Kind() == "string_literal" && strings.HasPrefix(l.text(n), `"""`) {
			return l.verbatim(n)
		}
		return l.literal(n, kind)
	}

	switch n.Kind() {
	case "identifier":
		return &ast.Name{Meta: l.meta(n), Ident: l.text(n)}
	case "this":
		return &ast.This{Meta: l.meta(n)}
	case "parenthesized_expression":
		cs := named(n)
		return &ast.Paren{Meta: l.meta(n), X: l.expr(cs[0])}
	case "field_access":
		obj := n.ChildByFieldName("object")
		if obj.Kind() == "super" {
			break
		}
		return &ast.Select{Meta: l.meta(n), X: l.expr(obj), Name: l.text(n.ChildByFieldName("field"))}
	case "method_invocation":
		c := &ast.Call{Meta: l.meta(n), Name: l.text(n.ChildByFieldName("name"))}
		if obj := n.ChildByFieldName("object"); obj != nil {
			if obj.Kind() == "super" {
				break
			}
			c.X = l.expr(obj)
		}
		c.Args = l.args(n.ChildByFieldName("arguments"))
		return c
	case "object_creation_expression":
		if n.ChildByFieldName("body") != nil || n.ChildByFieldName("object") != nil {
			break
		}
		return &ast.New{Meta: l.meta(n), Type: l.typeRef(n.ChildByFieldName("type")), Args: l.args(n.ChildByFieldName("arguments"))}
	case "array_creation_expression":
		if n.ChildByFieldName("value") != nil {
			break
		}
		t := l.typeRef(n.ChildByFieldName("type"))
		var sizes []ast.Expr
		for _, d := range fields(n, "dimensions") {
			switch d.Kind() {
			case "dimensions_expr":
				t.Dims++
				cs := named(d)
				sizes = append(sizes, l.expr(cs[0]))
			case "dimensions":
				t.Dims += l.dims(d)
			}
		}
		if len(sizes) != 1 {
			break
		}
		return &ast.New{Meta: l.meta(n), Type: t, Args: sizes}
	case "assignment_expression":
		return &ast.Assign{
			Meta: l.meta(n),
			Op:   n.ChildByFieldName("operator").Kind(),
			LHS:  l.expr(n.ChildByFieldName("left")),
			RHS:  l.expr(n.ChildByFieldName("right")),
		}
	case "binary_expression":
		return &ast.Binary{
			Meta: l.meta(n),
			Op:   n.ChildByFieldName("operator").Kind(),
			X:    l.expr(n.ChildByFieldName("left")),
			Y:    l.expr(n.ChildByFieldName("right")),
		}
	case "unary_expression":
		return &ast.Unary{Meta: l.meta(n), Op: n.ChildByFieldName("operator").Kind(), X: l.expr(n.ChildByFieldName("operand"))}
	case "update_expression":
		first := n.Child(0)
		u := &ast.Unary{Meta: l.meta(n)}
		if first.Kind() == "++" || first.Kind() == "--" {
			u.Op, u.X = first.Kind(), l.expr(named(n)[0])
		} else {
			u.Op, u.X, u.Postfix = n.Child(n.ChildCount()-1).Kind(), l.expr(first), true
		}
		return u
	case "cast_expression":
		if len(fields(n, "type")) != 1 {
			break
		}
		return &ast.Cast{Meta: l.meta(n), Type: l.typeRef(n.ChildByFieldName("type")), X: l.expr(n.ChildByFieldName("value"))}
	case "instanceof_expression":
		if n.ChildByFieldName("name") != nil || n.ChildByFieldName("pattern") != nil {
			break
		}
		return &ast.InstanceOf{Meta: l.meta(n), X: l.expr(n.ChildByFieldName("left")), Type: l.typeRef(n.ChildByFieldName("right"))}
	case "ternary_expression":
		return &ast.Conditional{
			Meta: l.meta(n),
			Cond: l.expr(n.ChildByFieldName("condition")),
			Then: l.expr(n.ChildByFieldName("consequence")),
			Else: l.expr(n.ChildByFieldName("alternative")),
		}
	case "array_access":
		return &ast.Index{Meta: l.meta(n), X: l.expr(n.ChildByFieldName("array")), Index: l.expr(n.ChildByFieldName("index"))}
	case "class_literal":
		cs := named(n)
		return &ast.ClassLit{Meta: l.meta(n), Type: l.typeRef(cs[0])}
	case "method_reference":
		return l.methodRef(n)
	}
	return l.verbatim(n)
}

// methodRef lowers X::name and T::new. Type receivers become TypeName
// qualifiers for the resolver to bind.
func (l *lowerer) methodRef(n *sitter.Node) ast.Expr {
	cs := named(n)
	if len(cs) == 0 {
		return l.verbatim(n)
	}
	ref := &ast.MethodRef{Meta: l.meta(n), Name: "new"}
	last := n.Child(n.ChildCount() - 1)
	if last.Kind() == "identifier" {
		ref.Name = l.text(last)
	}
	recv := cs[0]
	switch recv.Kind() {
	case "super":
		return l.verbatim(n)
	case "type_identifier", "scoped_type_identifier", "generic_type", "array_type":
		t := l.typeRef(recv)
		ref.X = &ast.TypeName{Meta: l.meta(recv), Name: t.Name}
	default:
		ref.X = l.expr(recv)
	}
	return ref
}
