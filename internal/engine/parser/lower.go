package parser

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"j2k/internal/engine/ast"
)

// lowerer converts one syntax tree into an ast.File. Declarations get their
// identities here; use sites are left for the resolver.
type lowerer struct {
	src  []byte
	file *ast.File
	next ast.NodeID
	err  error
	// method is the identity locals are scoped to.
	method ast.SymbolID
}

func (l *lowerer) meta(n *sitter.Node) ast.Meta {
	l.next++
	return ast.Meta{Node: l.next, At: position(n)}
}

func (l *lowerer) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(l.src)
}

// unsupported records the first construct the engine cannot carry.
func (l *lowerer) unsupported(n *sitter.Node, what string) {
	if l.err == nil {
		pos := position(n)
		l.err = fmt.Errorf("%s at %d:%d is not supported", what, pos.Line, pos.Column)
	}
}

// named returns the named children of n, skipping comments.
func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c == nil || c.Kind() == "line_comment" || c.Kind() == "block_comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func fields(n *sitter.Node, name string) []*sitter.Node {
	cursor := n.Walk()
	defer cursor.Close()
	nodes := n.ChildrenByFieldName(name, cursor)
	out := make([]*sitter.Node, len(nodes))
	for i := range nodes {
		out[i] = &nodes[i]
	}
	return out
}

func (l *lowerer) program(root *sitter.Node) {
	for _, c := range named(root) {
		switch c.Kind() {
		case "package_declaration":
			if parts := named(c); len(parts) > 0 {
				l.file.Package = l.text(parts[len(parts)-1])
			}
		case "import_declaration":
			l.file.Imports = append(l.file.Imports, l.importDecl(c))
		case "class_declaration", "interface_declaration":
			l.file.Types = append(l.file.Types, l.typeDecl(c, ""))
		default:
			l.unsupported(c, strings.ReplaceAll(c.Kind(), "_", " "))
		}
	}
}

func (l *lowerer) importDecl(n *sitter.Node) ast.Import {
	imp := ast.Import{Meta: l.meta(n)}
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		switch c.Kind() {
		case "static":
			imp.Static = true
		case "asterisk":
			imp.Wildcard = true
		case "identifier", "scoped_identifier":
			imp.Path = l.text(c)
		}
	}
	return imp
}

func (l *lowerer) typeDecl(n *sitter.Node, outer ast.SymbolID) *ast.TypeDecl {
	name := l.text(n.ChildByFieldName("name"))
	td := &ast.TypeDecl{Meta: l.meta(n), Name: name, Modifiers: l.modifiers(n)}
	if outer == "" {
		td.Symbol = ast.TypeID(l.file.Package, name)
	} else {
		td.Symbol = ast.NestedTypeID(outer, name)
	}

	var body *sitter.Node
	switch n.Kind() {
	case "class_declaration":
		td.Kind = ast.KindClass
		if sup := n.ChildByFieldName("superclass"); sup != nil {
			if ts := named(sup); len(ts) > 0 {
				t := l.typeRef(ts[0])
				td.Extends = &t
			}
		}
		if ifaces := n.ChildByFieldName("interfaces"); ifaces != nil {
			td.Implements = l.typeList(ifaces)
		}
		body = n.ChildByFieldName("body")
	case "interface_declaration":
		td.Kind = ast.KindInterface
		for _, c := range named(n) {
			if c.Kind() == "extends_interfaces" {
				td.Implements = l.typeList(c)
			}
		}
		body = n.ChildByFieldName("body")
	}

	for _, c := range named(body) {
		switch c.Kind() {
		case "field_declaration", "constant_declaration":
			td.Fields = append(td.Fields, l.fieldDecls(c, td)...)
		case "method_declaration":
			td.Methods = append(td.Methods, l.methodDecl(c, td))
		case "constructor_declaration":
			td.Constructors = append(td.Constructors, l.constructorDecl(c, td))
		case "class_declaration", "interface_declaration":
			nested := l.typeDecl(c, td.Symbol)
			if td.Kind == ast.KindInterface {
				nested.Modifiers.Static = true
			}
			td.Types = append(td.Types, nested)
		default:
			l.unsupported(c, strings.ReplaceAll(c.Kind(), "_", " "))
		}
	}
	return td
}

// typeList lowers the types of a super_interfaces or extends_interfaces
// clause.
func (l *lowerer) typeList(n *sitter.Node) []ast.TypeRef {
	var out []ast.TypeRef
	for _, c := range named(n) {
		if c.Kind() == "type_list" {
			for _, t := range named(c) {
				out = append(out, l.typeRef(t))
			}
			continue
		}
		out = append(out, l.typeRef(c))
	}
	return out
}

func (l *lowerer) modifiers(n *sitter.Node) ast.Modifiers {
	var mods ast.Modifiers
	var node *sitter.Node
	for _, c := range named(n) {
		if c.Kind() == "modifiers" {
			node = c
			break
		}
	}
	if node == nil {
		return mods
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		c := node.Child(i)
		switch c.Kind() {
		case "public":
			mods.Visibility = ast.VisPublic
		case "protected":
			mods.Visibility = ast.VisProtected
		case "private":
			mods.Visibility = ast.VisPrivate
		case "static":
			mods.Static = true
		case "final":
			mods.Final = true
		case "abstract":
			mods.Abstract = true
		case "marker_annotation":
			mods.Annotations = append(mods.Annotations, ast.Annotation{Name: l.text(c.ChildByFieldName("name"))})
		case "annotation":
			args := l.text(c.ChildByFieldName("arguments"))
			args = strings.TrimSuffix(strings.TrimPrefix(args, "("), ")")
			mods.Annotations = append(mods.Annotations, ast.Annotation{Name: l.text(c.ChildByFieldName("name")), Args: args})
		}
	}
	return mods
}

func (l *lowerer) fieldDecls(n *sitter.Node, owner *ast.TypeDecl) []*ast.FieldDecl {
	mods := l.modifiers(n)
	if owner.Kind == ast.KindInterface {
		mods.Visibility, mods.Static, mods.Final = ast.VisPublic, true, true
	}
	base := l.typeRef(n.ChildByFieldName("type"))

	var out []*ast.FieldDecl
	for _, d := range fields(n, "declarator") {
		name := l.text(d.ChildByFieldName("name"))
		f := &ast.FieldDecl{
			Meta:      l.meta(d),
			Symbol:    ast.FieldID(owner.Symbol, name),
			Name:      name,
			Type:      withDims(base, l.dims(d.ChildByFieldName("dimensions"))),
			Modifiers: mods,
		}
		if v := d.ChildByFieldName("value"); v != nil {
			f.Init = l.expr(v)
		}
		out = append(out, f)
	}
	return out
}

func (l *lowerer) methodDecl(n *sitter.Node, owner *ast.TypeDecl) *ast.MethodDecl {
	name := l.text(n.ChildByFieldName("name"))
	m := &ast.MethodDecl{Meta: l.meta(n), Name: name, Modifiers: l.modifiers(n)}
	m.Result = withDims(l.typeRef(n.ChildByFieldName("type")), l.dims(n.ChildByFieldName("dimensions")))
	m.Params = l.params(n.ChildByFieldName("parameters"))
	m.Symbol = ast.MethodID(owner.Symbol, name, ast.ParamTypes(m.Params)...)
	l.bindParams(m)

	body := n.ChildByFieldName("body")
	if owner.Kind == ast.KindInterface {
		m.Modifiers.Visibility = ast.VisPublic
		m.Modifiers.Abstract = body == nil && !m.Modifiers.Static
	}
	if body != nil {
		l.method = m.Symbol
		m.Body = l.block(body)
		l.method = ""
	}
	return m
}

func (l *lowerer) constructorDecl(n *sitter.Node, owner *ast.TypeDecl) *ast.MethodDecl {
	m := &ast.MethodDecl{Meta: l.meta(n), Name: owner.Name, Constructor: true, Modifiers: l.modifiers(n)}
	m.Params = l.params(n.ChildByFieldName("parameters"))
	m.Symbol = ast.CtorID(owner.Symbol, ast.ParamTypes(m.Params)...)
	l.bindParams(m)

	l.method = m.Symbol
	m.Body = l.block(n.ChildByFieldName("body"))
	l.method = ""
	return m
}

func (l *lowerer) bindParams(m *ast.MethodDecl) {
	for _, p := range m.Params {
		p.Symbol = ast.ParamID(m.Symbol, p.Name)
	}
}

func (l *lowerer) params(n *sitter.Node) []*ast.Param {
	var out []*ast.Param
	for _, c := range named(n) {
		switch c.Kind() {
		case "formal_parameter":
			t := withDims(l.typeRef(c.ChildByFieldName("type")), l.dims(c.ChildByFieldName("dimensions")))
			out = append(out, &ast.Param{Meta: l.meta(c), Name: l.text(c.ChildByFieldName("name")), Type: t, Modifiers: l.modifiers(c)})
		case "spread_parameter":
			p := &ast.Param{Meta: l.meta(c), Modifiers: l.modifiers(c)}
			for _, s := range named(c) {
				switch s.Kind() {
				case "variable_declarator":
					p.Name = l.text(s.ChildByFieldName("name"))
				case "modifiers":
				default:
					if p.Type.Name == "" {
						p.Type = l.typeRef(s)
					}
				}
			}
			p.Type.Dims++
			out = append(out, p)
		case "receiver_parameter":
		default:
			l.unsupported(c, "parameter "+c.Kind())
		}
	}
	return out
}

func (l *lowerer) typeRef(n *sitter.Node) ast.TypeRef {
	if n == nil {
		return ast.TypeRef{}
	}
	switch n.Kind() {
	case "generic_type":
		var t ast.TypeRef
		for _, c := range named(n) {
			if c.Kind() == "type_arguments" {
				for _, a := range named(c) {
					t.Args = append(t.Args, l.typeRef(a))
				}
				continue
			}
			t = withArgs(l.typeRef(c), t.Args)
		}
		t.Meta = l.meta(n)
		return t
	case "array_type":
		t := l.typeRef(n.ChildByFieldName("element"))
		t.Dims += l.dims(n.ChildByFieldName("dimensions"))
		return t
	case "wildcard":
		for _, c := range named(n) {
			if c.Kind() != "annotation" && c.Kind() != "marker_annotation" {
				return l.typeRef(c)
			}
		}
		return ast.TypeRef{Meta: l.meta(n), Name: "*"}
	case "annotated_type":
		cs := named(n)
		return l.typeRef(cs[len(cs)-1])
	case "scoped_type_identifier":
		var parts []string
		for _, c := range named(n) {
			if c.Kind() == "annotation" || c.Kind() == "marker_annotation" {
				continue
			}
			parts = append(parts, l.typeRef(c).Name)
		}
		return ast.TypeRef{Meta: l.meta(n), Name: strings.Join(parts, ".")}
	}
	return ast.TypeRef{Meta: l.meta(n), Name: l.text(n)}
}

func withArgs(t ast.TypeRef, args []ast.TypeRef) ast.TypeRef {
	t.Args = args
	return t
}

func withDims(t ast.TypeRef, dims int) ast.TypeRef {
	t.Dims += dims
	return t
}

// dims counts the bracket pairs of a dimensions node.
func (l *lowerer) dims(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	return strings.Count(l.text(n), "[")
}
