// Package symbols builds the group-wide symbol table: every declaration of a
// file group keyed by its qualified identity, and every use site keyed by
// (file, node) with the syntactic context of the use.
package symbols

import (
	"j2k/internal/engine/ast"
)

type Kind uint8

const (
	KindType Kind = iota
	KindField
	KindMethod
	KindConstructor
	KindParam
	KindLocal
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindField:
		return "field"
	case KindMethod:
		return "method"
	case KindConstructor:
		return "constructor"
	case KindParam:
		return "param"
	case KindLocal:
		return "local"
	}
	return "unknown"
}

type Declaration struct {
	ID      ast.SymbolID
	Kind    Kind
	Name    string
	File    ast.FileID
	Package string
	// Owner is the enclosing type. Empty for top-level types.
	Owner ast.SymbolID
	// Method is the enclosing method of a parameter or local.
	Method    ast.SymbolID
	Modifiers ast.Modifiers
	// Type is the declared type of a field, parameter or local and the result
	// type of a method.
	Type  ast.TypeRef
	Arity int

	TypeDecl *ast.TypeDecl
	Field    *ast.FieldDecl
	Func     *ast.MethodDecl
	Param    *ast.Param
	Local    *ast.LocalVar
}

// Node returns the declaring node.
func (d *Declaration) Node() ast.NodeID {
	switch {
	case d.TypeDecl != nil:
		return d.TypeDecl.ID()
	case d.Field != nil:
		return d.Field.ID()
	case d.Func != nil:
		return d.Func.ID()
	case d.Param != nil:
		return d.Param.ID()
	case d.Local != nil:
		return d.Local.ID()
	}
	return 0
}

func (d *Declaration) Static() bool { return d.Modifiers.Static }

func (d *Declaration) IsInterface() bool {
	return d.TypeDecl != nil && d.TypeDecl.Kind == ast.KindInterface
}

// Context is the syntactic role of a use site.
type Context uint8

const (
	CtxRead Context = iota
	CtxWrite
	CtxReadWrite
	CtxInvoke
	CtxGetterCall
	CtxSetterCall
	CtxMethodRef
	CtxReflective
	CtxAddressOf
	CtxInstantiate
	CtxSubclass
	CtxTypeUse
	CtxQualifier
)

var contextNames = [...]string{
	CtxRead:        "read",
	CtxWrite:       "write",
	CtxReadWrite:   "read-write",
	CtxInvoke:      "invoke",
	CtxGetterCall:  "getter-call",
	CtxSetterCall:  "setter-call",
	CtxMethodRef:   "method-ref",
	CtxReflective:  "reflective",
	CtxAddressOf:   "address-of",
	CtxInstantiate: "instantiate",
	CtxSubclass:    "subclass",
	CtxTypeUse:     "type-use",
	CtxQualifier:   "qualifier",
}

func (c Context) String() string {
	if int(c) < len(contextNames) {
		return contextNames[c]
	}
	return "unknown"
}

// Writes reports whether the context stores into the target.
func (c Context) Writes() bool { return c == CtxWrite || c == CtxReadWrite }

// Reads reports whether the context loads the target's value.
func (c Context) Reads() bool { return c == CtxRead || c == CtxReadWrite }

type SiteKey struct {
	File ast.FileID
	Node ast.NodeID
}

type Reference struct {
	Site    SiteKey
	Target  ast.SymbolID
	Context Context
	Node    ast.Node
	Pos     ast.Pos
	// Package and InType locate the site; InMethod is empty inside field
	// initializers.
	Package  string
	InType   ast.SymbolID
	InMethod ast.SymbolID
	// InInit is set inside constructors and field initializers of InType.
	InInit bool
	// ThisReceiver is set for unqualified and this-qualified member uses.
	ThisReceiver bool
	// StaticViaInstance marks a static member reached through an instance
	// expression rather than its type.
	StaticViaInstance bool

	Opaque   bool
	External bool
	Reason   string
	Name     string
}

type Table struct {
	files     []*ast.File
	decls     []*Declaration
	byID      map[ast.SymbolID]*Declaration
	members   map[ast.SymbolID][]*Declaration
	refs      []*Reference
	byTarget  map[ast.SymbolID][]*Reference
	sites     map[SiteKey]*Reference
	opaque    []*Reference
	supers    map[ast.SymbolID][]ast.SymbolID
	subs      map[ast.SymbolID][]ast.SymbolID
	overrides map[ast.SymbolID][]ast.SymbolID
}

func (t *Table) Lookup(id ast.SymbolID) (*Declaration, bool) {
	if t == nil {
		return nil, false
	}
	d, ok := t.byID[id]
	return d, ok
}

// References returns every resolved use of id in deterministic order.
func (t *Table) References(id ast.SymbolID) []*Reference {
	if t == nil {
		return nil
	}
	return t.byTarget[id]
}

func (t *Table) Site(file ast.FileID, node ast.NodeID) (*Reference, bool) {
	if t == nil {
		return nil, false
	}
	r, ok := t.sites[SiteKey{File: file, Node: node}]
	return r, ok
}

func (t *Table) Opaque() []*Reference {
	if t == nil {
		return nil
	}
	return t.opaque
}

// Members returns the fields, methods, constructors and nested types of a type.
func (t *Table) Members(typeID ast.SymbolID) []*Declaration {
	if t == nil {
		return nil
	}
	return t.members[typeID]
}

func (t *Table) Supertypes(typeID ast.SymbolID) []ast.SymbolID {
	if t == nil {
		return nil
	}
	return t.supers[typeID]
}

func (t *Table) Subtypes(typeID ast.SymbolID) []ast.SymbolID {
	if t == nil {
		return nil
	}
	return t.subs[typeID]
}

// IsSubtype reports whether sub equals super or transitively extends it.
func (t *Table) IsSubtype(sub, super ast.SymbolID) bool {
	if sub == super {
		return true
	}
	seen := map[ast.SymbolID]bool{}
	stack := []ast.SymbolID{sub}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		for _, s := range t.Supertypes(cur) {
			if s == super {
				return true
			}
			stack = append(stack, s)
		}
	}
	return false
}

// Overrides returns the group methods with the same name and parameter types
// in a super- or subtype of the method's owner.
func (t *Table) Overrides(methodID ast.SymbolID) []ast.SymbolID {
	if t == nil {
		return nil
	}
	return t.overrides[methodID]
}

// Declarations returns every declaration in file then source order.
func (t *Table) Declarations() []*Declaration {
	if t == nil {
		return nil
	}
	return t.decls
}

func (t *Table) Files() []*ast.File {
	if t == nil {
		return nil
	}
	return t.files
}

// Enclosing returns the chain of types from id outwards, id included.
func (t *Table) Enclosing(id ast.SymbolID) []ast.SymbolID {
	var out []ast.SymbolID
	for id != "" {
		out = append(out, id)
		d, ok := t.Lookup(id)
		if !ok {
			break
		}
		id = d.Owner
	}
	return out
}
