package ast

// Inspect traverses n depth-first. f is called for n and, if it returns true,
// for each child in source order.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	case *TypeDecl:
		if n.Extends != nil {
			Inspect(n.Extends, f)
		}
		for i := range n.Implements {
			Inspect(&n.Implements[i], f)
		}
		for _, fd := range n.Fields {
			Inspect(fd, f)
		}
		for _, c := range n.Constructors {
			Inspect(c, f)
		}
		for _, m := range n.Methods {
			Inspect(m, f)
		}
		for _, t := range n.Types {
			Inspect(t, f)
		}
	case *FieldDecl:
		Inspect(&n.Type, f)
		inspectExpr(n.Init, f)
	case *MethodDecl:
		if !n.Constructor {
			Inspect(&n.Result, f)
		}
		for _, p := range n.Params {
			Inspect(p, f)
		}
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *Param:
		Inspect(&n.Type, f)
	case *TypeRef:
		for i := range n.Args {
			Inspect(&n.Args[i], f)
		}
	case *Block:
		for _, s := range n.Stmts {
			Inspect(s, f)
		}
	case *LocalVar:
		Inspect(&n.Type, f)
		inspectExpr(n.Init, f)
	case *ExprStmt:
		inspectExpr(n.X, f)
	case *Return:
		inspectExpr(n.X, f)
	case *If:
		inspectExpr(n.Cond, f)
		inspectStmt(n.Then, f)
		inspectStmt(n.Else, f)
	case *While:
		inspectExpr(n.Cond, f)
		inspectStmt(n.Body, f)
	case *Throw:
		inspectExpr(n.X, f)
	case *ConstructorCall:
		inspectExprs(n.Args, f)
	case *Select:
		inspectExpr(n.X, f)
	case *Call:
		inspectExpr(n.X, f)
		inspectExprs(n.Args, f)
	case *New:
		Inspect(&n.Type, f)
		inspectExprs(n.Args, f)
	case *Assign:
		inspectExpr(n.LHS, f)
		inspectExpr(n.RHS, f)
	case *Binary:
		inspectExpr(n.X, f)
		inspectExpr(n.Y, f)
	case *Unary:
		inspectExpr(n.X, f)
	case *Cast:
		Inspect(&n.Type, f)
		inspectExpr(n.X, f)
	case *InstanceOf:
		inspectExpr(n.X, f)
		Inspect(&n.Type, f)
	case *Conditional:
		inspectExpr(n.Cond, f)
		inspectExpr(n.Then, f)
		inspectExpr(n.Else, f)
	case *Paren:
		inspectExpr(n.X, f)
	case *MethodRef:
		inspectExpr(n.X, f)
	case *ClassLit:
		Inspect(&n.Type, f)
	case *Index:
		inspectExpr(n.X, f)
		inspectExpr(n.Index, f)
	case *AddressOf:
		inspectExpr(n.X, f)
	}
}

func inspectExpr(e Expr, f func(Node) bool) {
	if e != nil {
		Inspect(e, f)
	}
}

func inspectExprs(es []Expr, f func(Node) bool) {
	for _, e := range es {
		inspectExpr(e, f)
	}
}

func inspectStmt(s Stmt, f func(Node) bool) {
	if s != nil {
		Inspect(s, f)
	}
}

// InspectFile visits every top-level type of file.
func InspectFile(file *File, f func(Node) bool) {
	for _, t := range file.Types {
		Inspect(t, f)
	}
}
