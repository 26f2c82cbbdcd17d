package resolver

import (
	_ "embed"
	"strings"

	"j2k/internal/engine/ast"
)

//go:embed stdlib/java_lang.txt
var javaLangData string

// javaLang holds the java.lang simple names, which need no import.
var javaLang = map[string]bool{}

func init() {
	for _, line := range strings.Split(javaLangData, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			javaLang[line] = true
		}
	}
}

// typeInfo is the group's view of one declared type.
type typeInfo struct {
	decl    *ast.TypeDecl
	file    *ast.File
	outer   *typeInfo
	fields  map[string]*ast.FieldDecl
	methods map[string][]*ast.MethodDecl
	nested  map[string]*typeInfo

	// super and ifaces are linked once every type is indexed. foreignSuper is
	// set when the class extends a type outside the group.
	super        *typeInfo
	ifaces       []*typeInfo
	foreignSuper bool
}

// group indexes every type declared in a file group.
type group struct {
	types map[ast.SymbolID]*typeInfo
	// packages maps a package name to its top-level types by simple name.
	packages map[string]map[string]*typeInfo
}

func newGroup(files []*ast.File) *group {
	g := &group{types: map[ast.SymbolID]*typeInfo{}, packages: map[string]map[string]*typeInfo{}}
	for _, f := range files {
		top := g.packages[f.Package]
		if top == nil {
			top = map[string]*typeInfo{}
			g.packages[f.Package] = top
		}
		for _, td := range f.Types {
			top[td.Name] = g.add(f, td, nil)
		}
	}
	return g
}

func (g *group) add(f *ast.File, td *ast.TypeDecl, outer *typeInfo) *typeInfo {
	t := &typeInfo{
		decl:    td,
		file:    f,
		outer:   outer,
		fields:  map[string]*ast.FieldDecl{},
		methods: map[string][]*ast.MethodDecl{},
		nested:  map[string]*typeInfo{},
	}
	for _, fd := range td.Fields {
		t.fields[fd.Name] = fd
	}
	for _, m := range td.Methods {
		t.methods[m.Name] = append(t.methods[m.Name], m)
	}
	g.types[td.Symbol] = t
	for _, n := range td.Types {
		t.nested[n.Name] = g.add(f, n, t)
	}
	return t
}

// link binds the supertype clauses of every type and records the
// hierarchy.
func (g *group) link() {
	for _, t := range g.types {
		ctx := t.outer
		if td := t.decl; td.Extends != nil {
			t.super = g.bindTypeRef(td.Extends, t.file, ctx)
			t.foreignSuper = t.super == nil
		}
		for i := range t.decl.Implements {
			if it := g.bindTypeRef(&t.decl.Implements[i], t.file, ctx); it != nil {
				t.ifaces = append(t.ifaces, it)
			}
		}
	}
}

// supers returns the group supertypes of t, superclass first.
func (t *typeInfo) supers() []*typeInfo {
	out := make([]*typeInfo, 0, len(t.ifaces)+1)
	if t.super != nil {
		out = append(out, t.super)
	}
	return append(out, t.ifaces...)
}

// hasForeignAncestor reports whether some superclass of t lies outside the
// group, so members may be inherited from a library.
func (t *typeInfo) hasForeignAncestor() bool {
	seen := map[*typeInfo]bool{}
	for cur := t; cur != nil && !seen[cur]; cur = cur.super {
		seen[cur] = true
		if cur.foreignSuper {
			return true
		}
	}
	return false
}

// field finds name on t or its group supertypes.
func (t *typeInfo) field(name string) *ast.FieldDecl {
	return t.findField(name, map[*typeInfo]bool{})
}

func (t *typeInfo) findField(name string, seen map[*typeInfo]bool) *ast.FieldDecl {
	if seen[t] {
		return nil
	}
	seen[t] = true
	if fd, ok := t.fields[name]; ok {
		return fd
	}
	for _, s := range t.supers() {
		if fd := s.findField(name, seen); fd != nil {
			return fd
		}
	}
	return nil
}

// methodsNamed collects the methods called name visible on t, most derived
// first.
func (t *typeInfo) methodsNamed(name string) []*ast.MethodDecl {
	var out []*ast.MethodDecl
	seen := map[*typeInfo]bool{}
	var walk func(*typeInfo)
	walk = func(cur *typeInfo) {
		if seen[cur] {
			return
		}
		seen[cur] = true
		out = append(out, cur.methods[name]...)
		for _, s := range cur.supers() {
			walk(s)
		}
	}
	walk(t)
	return out
}

// nestedType finds a member type of t or its group supertypes.
func (t *typeInfo) nestedType(name string) *typeInfo {
	seen := map[*typeInfo]bool{}
	var walk func(*typeInfo) *typeInfo
	walk = func(cur *typeInfo) *typeInfo {
		if seen[cur] {
			return nil
		}
		seen[cur] = true
		if n, ok := cur.nested[name]; ok {
			return n
		}
		for _, s := range cur.supers() {
			if n := walk(s); n != nil {
				return n
			}
		}
		return nil
	}
	return walk(t)
}

// lookupType resolves a written type name as seen from inside from (nil at
// file level). Dotted names resolve their first segment in scope and the
// rest as member types.
func (g *group) lookupType(name string, f *ast.File, from *typeInfo) *typeInfo {
	if name == "" {
		return nil
	}
	parts := strings.Split(name, ".")
	t := g.simpleType(parts[0], f, from)
	rest := parts[1:]
	if t == nil {
		t, rest = g.qualifiedType(parts)
	}
	for _, p := range rest {
		if t == nil {
			return nil
		}
		t = t.nestedType(p)
	}
	return t
}

func (g *group) simpleType(name string, f *ast.File, from *typeInfo) *typeInfo {
	for cur := from; cur != nil; cur = cur.outer {
		if cur.decl.Name == name {
			return cur
		}
		if n := cur.nestedType(name); n != nil {
			return n
		}
	}
	for _, imp := range f.Imports {
		if imp.Static || imp.Wildcard {
			continue
		}
		if imp.Path == name || strings.HasSuffix(imp.Path, "."+name) {
			return g.types[ast.SymbolID(imp.Path)]
		}
	}
	if t, ok := g.packages[f.Package][name]; ok {
		return t
	}
	for _, imp := range f.Imports {
		if imp.Static || !imp.Wildcard {
			continue
		}
		if t, ok := g.types[ast.SymbolID(imp.Path+"."+name)]; ok {
			return t
		}
	}
	return nil
}

// qualifiedType matches the longest package-qualified prefix of parts
// against the group.
func (g *group) qualifiedType(parts []string) (*typeInfo, []string) {
	for i := len(parts); i > 1; i-- {
		if t, ok := g.types[ast.SymbolID(strings.Join(parts[:i], "."))]; ok {
			return t, parts[i:]
		}
	}
	return nil, nil
}

// bindTypeRef sets the binding of ref and its type arguments. References to
// types outside the group keep an empty binding.
func (g *group) bindTypeRef(ref *ast.TypeRef, f *ast.File, from *typeInfo) *typeInfo {
	for i := range ref.Args {
		g.bindTypeRef(&ref.Args[i], f, from)
	}
	t := g.lookupType(ref.Name, f, from)
	if t != nil {
		ref.Binding = ast.Binding{Target: t.decl.Symbol}
	}
	return t
}

// bindDeclarations binds every declared type of f: fields, parameters and
// results. Bodies are left to the body pass.
func (g *group) bindDeclarations(f *ast.File) {
	var walk func(*ast.TypeDecl)
	walk = func(td *ast.TypeDecl) {
		t := g.types[td.Symbol]
		for _, fd := range td.Fields {
			g.bindTypeRef(&fd.Type, f, t)
		}
		for _, m := range append(append([]*ast.MethodDecl(nil), td.Methods...), td.Constructors...) {
			if !m.Constructor {
				g.bindTypeRef(&m.Result, f, t)
			}
			for _, p := range m.Params {
				g.bindTypeRef(&p.Type, f, t)
			}
		}
		for _, n := range td.Types {
			walk(n)
		}
	}
	for _, td := range f.Types {
		walk(td)
	}
}

// staticImports finds the group type that a static import of name refers
// to. external is set when a single-name import points outside the group.
func (g *group) staticImports(f *ast.File, name string) (owner *typeInfo, external bool) {
	for _, imp := range f.Imports {
		if !imp.Static {
			continue
		}
		path := imp.Path
		if !imp.Wildcard {
			i := strings.LastIndex(path, ".")
			if i < 0 || path[i+1:] != name {
				continue
			}
			path = path[:i]
		}
		t, ok := g.types[ast.SymbolID(path)]
		if !ok {
			if !imp.Wildcard {
				return nil, true
			}
			continue
		}
		if t.field(name) != nil || len(t.methodsNamed(name)) > 0 {
			return t, false
		}
	}
	return nil, false
}
