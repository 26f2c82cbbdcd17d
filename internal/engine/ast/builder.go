package ast

// Builder assembles resolved trees without a front-end. Node identities are
// assigned in creation order and double as line numbers.
type Builder struct {
	file *File
	next NodeID
}

func NewBuilder(id FileID, pkg string) *Builder {
	return &Builder{file: &File{ID: id, Path: string(id), Package: pkg}}
}

func (b *Builder) File() *File { return b.file }

func (b *Builder) meta() Meta {
	b.next++
	return Meta{Node: b.next, At: Pos{Line: int(b.next), Column: 1}}
}

func (b *Builder) Import(path string) {
	b.file.Imports = append(b.file.Imports, Import{Meta: b.meta(), Path: path})
}

func (b *Builder) Class(name string, mods Modifiers) *TypeDecl {
	t := &TypeDecl{Meta: b.meta(), Kind: KindClass, Name: name, Modifiers: mods, Symbol: TypeID(b.file.Package, name)}
	b.file.Types = append(b.file.Types, t)
	return t
}

func (b *Builder) Interface(name string, mods Modifiers) *TypeDecl {
	t := b.Class(name, mods)
	t.Kind = KindInterface
	return t
}

func (b *Builder) Nested(outer *TypeDecl, name string, mods Modifiers) *TypeDecl {
	t := &TypeDecl{Meta: b.meta(), Kind: KindClass, Name: name, Modifiers: mods, Symbol: NestedTypeID(outer.Symbol, name)}
	outer.Types = append(outer.Types, t)
	return t
}

func (b *Builder) Extends(t, super *TypeDecl) {
	ref := b.Type(super)
	t.Extends = &ref
}

func (b *Builder) Implements(t, iface *TypeDecl) {
	t.Implements = append(t.Implements, b.Type(iface))
}

// Type names a group type.
func (b *Builder) Type(t *TypeDecl) TypeRef {
	return TypeRef{Meta: b.meta(), Name: t.Name, Binding: Binding{Target: t.Symbol}}
}

// Named is a library or primitive type.
func Named(name string, args ...TypeRef) TypeRef {
	return TypeRef{Name: name, Args: args}
}

func ArrayOf(elem TypeRef) TypeRef {
	elem.Dims++
	return elem
}

func (b *Builder) Field(owner *TypeDecl, name string, typ TypeRef, mods Modifiers, init Expr) *FieldDecl {
	f := &FieldDecl{Meta: b.meta(), Name: name, Type: typ, Modifiers: mods, Init: init, Symbol: FieldID(owner.Symbol, name)}
	owner.Fields = append(owner.Fields, f)
	return f
}

func (b *Builder) Param(name string, typ TypeRef) *Param {
	return &Param{Meta: b.meta(), Name: name, Type: typ}
}

// Method declares a method without a body; Body attaches one.
func (b *Builder) Method(owner *TypeDecl, name string, result TypeRef, mods Modifiers, params ...*Param) *MethodDecl {
	m := &MethodDecl{Meta: b.meta(), Name: name, Result: result, Modifiers: mods, Params: params}
	m.Symbol = MethodID(owner.Symbol, name, ParamTypes(params)...)
	for _, p := range params {
		p.Symbol = ParamID(m.Symbol, p.Name)
	}
	owner.Methods = append(owner.Methods, m)
	return m
}

func (b *Builder) Ctor(owner *TypeDecl, mods Modifiers, params ...*Param) *MethodDecl {
	m := &MethodDecl{Meta: b.meta(), Name: owner.Name, Constructor: true, Modifiers: mods, Params: params}
	m.Symbol = CtorID(owner.Symbol, ParamTypes(params)...)
	for _, p := range params {
		p.Symbol = ParamID(m.Symbol, p.Name)
	}
	m.Body = &Block{Meta: b.meta()}
	owner.Constructors = append(owner.Constructors, m)
	return m
}

func (b *Builder) Body(m *MethodDecl, stmts ...Stmt) *MethodDecl {
	if m.Body == nil {
		m.Body = &Block{Meta: b.meta()}
	}
	m.Body.Stmts = append(m.Body.Stmts, stmts...)
	return m
}

func (b *Builder) Block(stmts ...Stmt) *Block { return &Block{Meta: b.meta(), Stmts: stmts} }

func (b *Builder) Do(x Expr) *ExprStmt { return &ExprStmt{Meta: b.meta(), X: x} }

func (b *Builder) Return(x Expr) *Return { return &Return{Meta: b.meta(), X: x} }

func (b *Builder) Throw(x Expr) *Throw { return &Throw{Meta: b.meta(), X: x} }

func (b *Builder) If(cond Expr, then, els Stmt) *If {
	return &If{Meta: b.meta(), Cond: cond, Then: then, Else: els}
}

func (b *Builder) While(cond Expr, body Stmt) *While {
	return &While{Meta: b.meta(), Cond: cond, Body: body}
}

// Local declares a local variable inside m.
func (b *Builder) Local(m *MethodDecl, name string, typ TypeRef, init Expr) *LocalVar {
	meta := b.meta()
	return &LocalVar{Meta: meta, Name: name, Type: typ, Init: init, Symbol: LocalID(m.Symbol, name, meta.Node)}
}

func (b *Builder) Lit(kind LitKind, text string) *Literal {
	return &Literal{Meta: b.meta(), Kind: kind, Text: text}
}

func (b *Builder) Int(text string) *Literal { return b.Lit(LitInt, text) }
func (b *Builder) Str(text string) *Literal { return b.Lit(LitString, `"`+text+`"`) }
func (b *Builder) Null() *Literal           { return b.Lit(LitNull, "null") }

func (b *Builder) This() *This { return &This{Meta: b.meta()} }

// Name is a bare identifier bound to target.
func (b *Builder) Name(ident string, target SymbolID) *Name {
	return &Name{Meta: b.meta(), Ident: ident, Binding: Binding{Target: target}}
}

func (b *Builder) FieldRef(f *FieldDecl) *Name { return b.Name(f.Name, f.Symbol) }
func (b *Builder) ParamRef(p *Param) *Name     { return b.Name(p.Name, p.Symbol) }
func (b *Builder) LocalRef(l *LocalVar) *Name  { return b.Name(l.Name, l.Symbol) }

func (b *Builder) TypeName(t *TypeDecl) *TypeName {
	return &TypeName{Meta: b.meta(), Name: t.Name, Binding: Binding{Target: t.Symbol}}
}

func (b *Builder) Select(x Expr, f *FieldDecl) *Select {
	return &Select{Meta: b.meta(), X: x, Name: f.Name, Binding: Binding{Target: f.Symbol}}
}

// ThisField is this.f.
func (b *Builder) ThisField(f *FieldDecl) *Select { return b.Select(b.This(), f) }

func (b *Builder) Call(x Expr, m *MethodDecl, args ...Expr) *Call {
	return &Call{Meta: b.meta(), X: x, Name: m.Name, Args: args, Binding: Binding{Target: m.Symbol}}
}

// Unresolved is a call the front-end could not bind.
func (b *Builder) Unresolved(x Expr, name string, external bool, args ...Expr) *Call {
	return &Call{Meta: b.meta(), X: x, Name: name, Args: args, Binding: Binding{Unresolved: true, External: external, Reason: "no matching declaration"}}
}

func (b *Builder) New(t *TypeDecl, ctor *MethodDecl, args ...Expr) *New {
	n := &New{Meta: b.meta(), Type: b.Type(t), Args: args, Binding: Binding{Target: t.Symbol}}
	if ctor != nil {
		n.Binding.Target = ctor.Symbol
	}
	return n
}

func (b *Builder) Assign(lhs, rhs Expr) *Assign {
	return &Assign{Meta: b.meta(), Op: "=", LHS: lhs, RHS: rhs}
}

func (b *Builder) Binary(op string, x, y Expr) *Binary {
	return &Binary{Meta: b.meta(), Op: op, X: x, Y: y}
}

func (b *Builder) NotNull(x Expr) *Binary { return b.Binary("!=", x, b.Null()) }
func (b *Builder) IsNull(x Expr) *Binary  { return b.Binary("==", x, b.Null()) }

func (b *Builder) Unary(op string, x Expr, postfix bool) *Unary {
	return &Unary{Meta: b.meta(), Op: op, X: x, Postfix: postfix}
}

func (b *Builder) Conditional(cond, then, els Expr) *Conditional {
	return &Conditional{Meta: b.meta(), Cond: cond, Then: then, Else: els}
}

func (b *Builder) MethodRef(x Expr, m *MethodDecl) *MethodRef {
	return &MethodRef{Meta: b.meta(), X: x, Name: m.Name, Binding: Binding{Target: m.Symbol}}
}

func (b *Builder) ClassLit(t *TypeDecl) *ClassLit {
	return &ClassLit{Meta: b.meta(), Type: b.Type(t)}
}

// Reflect is T.class.<lookup>("member"), e.g. getDeclaredField.
func (b *Builder) Reflect(t *TypeDecl, lookup, member string) *Call {
	return b.Unresolved(b.ClassLit(t), lookup, true, b.Str(member))
}

func (b *Builder) AddressOf(x Expr) *AddressOf { return &AddressOf{Meta: b.meta(), X: x} }

func (b *Builder) Verbatim(text string) *Verbatim { return &Verbatim{Meta: b.meta(), Text: text} }

func (b *Builder) Cast(t TypeRef, x Expr) *Cast { return &Cast{Meta: b.meta(), Type: t, X: x} }

func (b *Builder) InstanceOf(x Expr, t TypeRef) *InstanceOf {
	return &InstanceOf{Meta: b.meta(), X: x, Type: t}
}

func (b *Builder) Index(x, index Expr) *Index { return &Index{Meta: b.meta(), X: x, Index: index} }

func (b *Builder) Paren(x Expr) *Paren { return &Paren{Meta: b.meta(), X: x} }

// Delegate is a this(...) or super(...) call to ctor.
func (b *Builder) Delegate(super bool, ctor *MethodDecl, args ...Expr) *ConstructorCall {
	return &ConstructorCall{Meta: b.meta(), Super: super, Args: args, Binding: Binding{Target: ctor.Symbol}}
}
