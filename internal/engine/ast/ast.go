// Package ast is the annotated source tree consumed by the conversion engine.
//
// Trees are produced by a front-end (see internal/engine/parser and
// internal/engine/resolver). Every declaration carries its fully qualified
// SymbolID and every use site carries a Binding naming the declaration it
// resolves to, or an explicit unresolved mark. The engine never re-derives
// these annotations.
package ast

import "strings"

type (
	// FileID identifies an input file inside one file group.
	FileID string

	// NodeID is unique per file; (FileID, NodeID) keys a use site.
	NodeID int

	// SymbolID is the fully qualified identity of a declaration.
	SymbolID string
)

// Pos is a 1-based source position.
type Pos struct {
	Line   int
	Column int
}

// Node is implemented by every tree element that can be a use site.
type Node interface {
	ID() NodeID
	Position() Pos
}

// Meta carries node identity and position.
type Meta struct {
	Node NodeID
	At   Pos
}

func (m Meta) ID() NodeID    { return m.Node }
func (m Meta) Position() Pos { return m.At }

// Binding is the front-end's resolution of a use site.
type Binding struct {
	Target SymbolID
	// Unresolved is set when the front-end could not match the site. External
	// additionally says the site belongs to a library outside the group.
	Unresolved bool
	External   bool
	Reason     string
}

func (b Binding) Resolved() bool { return !b.Unresolved && b.Target != "" }

// Visibility is the declared source visibility.
type Visibility uint8

const (
	VisPackage Visibility = iota
	VisPrivate
	VisProtected
	VisPublic
)

func (v Visibility) String() string {
	switch v {
	case VisPrivate:
		return "private"
	case VisProtected:
		return "protected"
	case VisPublic:
		return "public"
	}
	return "package"
}

type Annotation struct {
	Name string
	// Args is the raw argument text without the surrounding parentheses.
	Args string
}

type Modifiers struct {
	Visibility  Visibility
	Static      bool
	Final       bool
	Abstract    bool
	Annotations []Annotation
}

func (m Modifiers) Has(annotation string) bool {
	for _, a := range m.Annotations {
		if a.Name == annotation || strings.HasSuffix(a.Name, "."+annotation) {
			return true
		}
	}
	return false
}

// TypeRef is a type as written, with its binding when it names a group type.
type TypeRef struct {
	Meta
	Name    string
	Args    []TypeRef
	Dims    int
	Binding Binding
}

var primitives = map[string]bool{
	"int": true, "long": true, "short": true, "byte": true,
	"char": true, "boolean": true, "float": true, "double": true,
}

func (t TypeRef) IsVoid() bool      { return t.Name == "void" && t.Dims == 0 }
func (t TypeRef) IsPrimitive() bool { return primitives[t.Name] && t.Dims == 0 }

// IsReference reports whether values of the type may hold null.
func (t TypeRef) IsReference() bool {
	return t.Name != "" && !t.IsVoid() && !t.IsPrimitive()
}

func (t TypeRef) String() string {
	var b strings.Builder
	b.WriteString(t.Name)
	if len(t.Args) > 0 {
		b.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte('>')
	}
	for i := 0; i < t.Dims; i++ {
		b.WriteString("[]")
	}
	return b.String()
}

// Erasure is the name used inside method identities.
func (t TypeRef) Erasure() string {
	name := t.Name
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name + strings.Repeat("[]", t.Dims)
}

type File struct {
	ID      FileID
	Path    string
	Package string
	Imports []Import
	Types   []*TypeDecl
}

type Import struct {
	Meta
	Path     string
	Static   bool
	Wildcard bool
}

type TypeKind uint8

const (
	KindClass TypeKind = iota
	KindInterface
)

type TypeDecl struct {
	Meta
	Symbol       SymbolID
	Kind         TypeKind
	Name         string
	Modifiers    Modifiers
	Extends      *TypeRef
	Implements   []TypeRef
	Fields       []*FieldDecl
	Methods      []*MethodDecl
	Constructors []*MethodDecl
	Types        []*TypeDecl
}

type FieldDecl struct {
	Meta
	Symbol    SymbolID
	Name      string
	Type      TypeRef
	Modifiers Modifiers
	Init      Expr
}

type MethodDecl struct {
	Meta
	Symbol      SymbolID
	Name        string
	Constructor bool
	Params      []*Param
	Result      TypeRef
	Modifiers   Modifiers
	// Body is nil for abstract and interface methods.
	Body *Block
}

type Param struct {
	Meta
	Symbol    SymbolID
	Name      string
	Type      TypeRef
	Modifiers Modifiers
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

type (
	Block struct {
		Meta
		Stmts []Stmt
	}

	LocalVar struct {
		Meta
		Symbol SymbolID
		Name   string
		Type   TypeRef
		Init   Expr
	}

	ExprStmt struct {
		Meta
		X Expr
	}

	Return struct {
		Meta
		X Expr
	}

	If struct {
		Meta
		Cond Expr
		Then Stmt
		Else Stmt
	}

	While struct {
		Meta
		Cond Expr
		Body Stmt
	}

	Throw struct {
		Meta
		X Expr
	}

	// ConstructorCall is an explicit this(...) or super(...) invocation.
	ConstructorCall struct {
		Meta
		Super   bool
		Args    []Expr
		Binding Binding
	}
)

type LitKind uint8

const (
	LitInt LitKind = iota
	LitLong
	LitFloat
	LitDouble
	LitChar
	LitString
	LitBool
	LitNull
)

type (
	Literal struct {
		Meta
		Kind LitKind
		// Text is the literal as written in the source.
		Text string
	}

	// Name is a bare identifier.
	Name struct {
		Meta
		Ident   string
		Binding Binding
	}

	// TypeName is a qualifier naming a type, as in Outer.Inner.member.
	TypeName struct {
		Meta
		Name    string
		Binding Binding
	}

	// Select is a field access X.Name.
	Select struct {
		Meta
		X       Expr
		Name    string
		Binding Binding
	}

	// Call is a method invocation; X is nil for an unqualified call.
	Call struct {
		Meta
		X       Expr
		Name    string
		Args    []Expr
		Binding Binding
	}

	New struct {
		Meta
		Type    TypeRef
		Args    []Expr
		Binding Binding
	}

	Assign struct {
		Meta
		Op  string
		LHS Expr
		RHS Expr
	}

	Binary struct {
		Meta
		Op string
		X  Expr
		Y  Expr
	}

	Unary struct {
		Meta
		Op      string
		X       Expr
		Postfix bool
	}

	This struct {
		Meta
	}

	Cast struct {
		Meta
		Type TypeRef
		X    Expr
	}

	InstanceOf struct {
		Meta
		X    Expr
		Type TypeRef
	}

	Conditional struct {
		Meta
		Cond Expr
		Then Expr
		Else Expr
	}

	Paren struct {
		Meta
		X Expr
	}

	MethodRef struct {
		Meta
		X       Expr
		Name    string
		Binding Binding
	}

	ClassLit struct {
		Meta
		Type TypeRef
	}

	Index struct {
		Meta
		X     Expr
		Index Expr
	}

	// AddressOf captures the raw storage of X. Java never produces it; it is
	// part of the model for source languages that can.
	AddressOf struct {
		Meta
		X Expr
	}

	// Verbatim is a construct outside the supported subset, carried through
	// untouched. It is both a statement and an expression.
	Verbatim struct {
		Meta
		Text string
	}
)

func (*Block) stmt()           {}
func (*LocalVar) stmt()        {}
func (*ExprStmt) stmt()        {}
func (*Return) stmt()          {}
func (*If) stmt()              {}
func (*While) stmt()           {}
func (*Throw) stmt()           {}
func (*ConstructorCall) stmt() {}
func (*Verbatim) stmt()        {}

func (*Literal) expr()     {}
func (*Name) expr()        {}
func (*TypeName) expr()    {}
func (*Select) expr()      {}
func (*Call) expr()        {}
func (*New) expr()         {}
func (*Assign) expr()      {}
func (*Binary) expr()      {}
func (*Unary) expr()       {}
func (*This) expr()        {}
func (*Cast) expr()        {}
func (*InstanceOf) expr()  {}
func (*Conditional) expr() {}
func (*Paren) expr()       {}
func (*MethodRef) expr()   {}
func (*ClassLit) expr()    {}
func (*Index) expr()       {}
func (*AddressOf) expr()   {}
func (*Verbatim) expr()    {}

// Unparen strips redundant parentheses.
func Unparen(e Expr) Expr {
	for {
		p, ok := e.(*Paren)
		if !ok {
			return e
		}
		e = p.X
	}
}

// IsNullLiteral reports whether e is the null literal.
func IsNullLiteral(e Expr) bool {
	lit, ok := Unparen(e).(*Literal)
	return ok && lit.Kind == LitNull
}
