// Package target is the converted tree handed to the printer.
package target

type Visibility uint8

const (
	Public Visibility = iota
	Internal
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Internal:
		return "internal"
	case Protected:
		return "protected"
	case Private:
		return "private"
	}
	return "public"
}

// Rank orders visibilities from narrowest (0) to widest.
func (v Visibility) Rank() int {
	switch v {
	case Private:
		return 0
	case Internal, Protected:
		return 1
	}
	return 2
}

// Widen returns the narrowest visibility that grants both a and b.
func Widen(a, b Visibility) Visibility {
	if a == b {
		return a
	}
	if (a == Internal && b == Protected) || (a == Protected && b == Internal) {
		return Public
	}
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}

type File struct {
	Path    string
	Package string
	Imports []string
	Decls   []*Class
}

type ClassKind uint8

const (
	KindClass ClassKind = iota
	KindInterface
	KindObject
	KindCompanion
)

type Annotation struct {
	Name string
	Args string
}

// Class is a class, interface, object or companion object body.
type Class struct {
	Kind       ClassKind
	Name       string
	Visibility Visibility
	Open       bool
	Abstract   bool
	// Inner marks a nested class that captures its outer instance.
	Inner       bool
	Annotations []Annotation
	Supertypes  []Supertype
	Members     []Member
	// Companion holds static members of a class or interface.
	Companion *Class
}

type Supertype struct {
	Type Type
	// Call is set when the supertype is a class constructed with arguments.
	Call bool
	Args []Expr
}

// Member is a declaration inside a class body.
type Member interface {
	member()
}

type Property struct {
	Name        string
	Type        Type
	Mutable     bool
	Const       bool
	Lateinit    bool
	Visibility  Visibility
	Setter      *Visibility
	Override    bool
	Annotations []Annotation
	Init        Expr
}

type Param struct {
	Name        string
	Type        Type
	Annotations []Annotation
}

type Function struct {
	Name        string
	Visibility  Visibility
	Override    bool
	Open        bool
	Abstract    bool
	Annotations []Annotation
	Params      []Param
	// Result is nil for Unit.
	Result *Type
	Body   *Block
}

type Constructor struct {
	Visibility  Visibility
	Annotations []Annotation
	Params      []Param
	// Delegate is "this" or "super" when the body starts with a delegation.
	Delegate     string
	DelegateArgs []Expr
	Body         *Block
}

func (*Property) member()    {}
func (*Function) member()    {}
func (*Constructor) member() {}
func (*Class) member()       {}

type Type struct {
	Name     string
	Args     []Type
	Nullable bool
}

func (t Type) String() string {
	s := t.Name
	if len(t.Args) > 0 {
		s += "<"
		for i, a := range t.Args {
			if i > 0 {
				s += ", "
			}
			s += a.String()
		}
		s += ">"
	}
	if t.Nullable {
		s += "?"
	}
	return s
}

type Stmt interface {
	stmt()
}

type Expr interface {
	expr()
}

type (
	Block struct {
		Stmts []Stmt
	}

	ValDecl struct {
		Name    string
		Mutable bool
		Type    *Type
		Init    Expr
	}

	ExprStmt struct {
		X Expr
	}

	Return struct {
		X Expr
	}

	If struct {
		Cond Expr
		Then Stmt
		Else Stmt
	}

	While struct {
		Cond Expr
		Body Stmt
	}

	Throw struct {
		X Expr
	}

	Assign struct {
		Op  string
		LHS Expr
		RHS Expr
	}

	// Verbatim carries text through untouched.
	Verbatim struct {
		Text string
	}
)

type (
	Lit struct {
		Text string
	}

	Ident struct {
		Name string
	}

	// Dot is X.Name; Safe selects ?.
	Dot struct {
		X    Expr
		Name string
		Safe bool
	}

	CallExpr struct {
		Fun  Expr
		Args []Expr
	}

	// NotNull is X!!.
	NotNull struct {
		X Expr
	}

	Binary struct {
		Op string
		X  Expr
		Y  Expr
		// Infix prints Op as a word: a and b.
		Infix bool
	}

	Unary struct {
		Op      string
		X       Expr
		Postfix bool
	}

	This struct{}

	As struct {
		X    Expr
		Type Type
	}

	Is struct {
		X    Expr
		Type Type
	}

	IfExpr struct {
		Cond Expr
		Then Expr
		Else Expr
	}

	Paren struct {
		X Expr
	}

	CallableRef struct {
		X    Expr
		Name string
	}

	ClassRef struct {
		Type Type
	}

	Index struct {
		X     Expr
		Index Expr
	}

	// Lambda is a trailing block argument; it reads its single argument as it.
	Lambda struct {
		Body []Stmt
	}
)

func (*Block) stmt()    {}
func (*ValDecl) stmt()  {}
func (*ExprStmt) stmt() {}
func (*Return) stmt()   {}
func (*If) stmt()       {}
func (*While) stmt()    {}
func (*Throw) stmt()    {}
func (*Assign) stmt()   {}
func (*Verbatim) stmt() {}

func (*Lit) expr()         {}
func (*Ident) expr()       {}
func (*Dot) expr()         {}
func (*CallExpr) expr()    {}
func (*NotNull) expr()     {}
func (*Binary) expr()      {}
func (*Unary) expr()       {}
func (*This) expr()        {}
func (*As) expr()          {}
func (*Is) expr()          {}
func (*IfExpr) expr()      {}
func (*Paren) expr()       {}
func (*CallableRef) expr() {}
func (*ClassRef) expr()    {}
func (*Index) expr()       {}
func (*Lambda) expr()      {}
func (*Verbatim) expr()    {}
