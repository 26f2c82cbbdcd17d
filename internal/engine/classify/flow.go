package classify

import (
	"strings"

	"j2k/internal/engine/ast"
	"j2k/internal/engine/symbols"
)

// Facts is the evidence gathered by the bounded null-flow scan.
type Facts struct {
	guarded      map[symbols.SiteKey]bool
	// nullAssigned holds symbols that receive a null literal.
	nullAssigned map[ast.SymbolID]bool
	// nullArgs holds parameters a caller passes null to.
	nullArgs     map[ast.SymbolID]bool
	// unsafeWrite holds fields with a write not provably non-null.
	unsafeWrite  map[ast.SymbolID]bool
	assignedFrom map[ast.SymbolID][]ast.SymbolID
	returns      map[ast.SymbolID]*returnFacts
	ctorAssigns  map[ast.SymbolID]map[ast.SymbolID]bool
	delegates    map[ast.SymbolID]ast.SymbolID
	reassigned   map[ast.SymbolID]bool
	// ctorTop holds assignment targets at the top level of a constructor.
	ctorTop      map[symbols.SiteKey]bool
}

type returnFacts struct {
	count   int
	null    bool
	nonNull int
	mixed   bool
	// field is the single field every return yields, if any.
	field   ast.SymbolID
}

func newFacts() *Facts {
	return &Facts{
		guarded:      make(map[symbols.SiteKey]bool),
		nullAssigned: make(map[ast.SymbolID]bool),
		nullArgs:     make(map[ast.SymbolID]bool),
		unsafeWrite:  make(map[ast.SymbolID]bool),
		assignedFrom: make(map[ast.SymbolID][]ast.SymbolID),
		returns:      make(map[ast.SymbolID]*returnFacts),
		ctorAssigns:  make(map[ast.SymbolID]map[ast.SymbolID]bool),
		delegates:    make(map[ast.SymbolID]ast.SymbolID),
		reassigned:   make(map[ast.SymbolID]bool),
		ctorTop:      make(map[symbols.SiteKey]bool),
	}
}

// Guarded reports whether the read at site is preceded by a non-null guard.
func (f *Facts) Guarded(site symbols.SiteKey) bool {
	if f == nil {
		return false
	}
	return f.guarded[site]
}

// Reassigned reports whether a local or parameter is written after its
// declaration.
func (f *Facts) Reassigned(id ast.SymbolID) bool {
	if f == nil {
		return false
	}
	return f.reassigned[id]
}

// NullAssigned reports whether id ever receives a null literal.
func (f *Facts) NullAssigned(id ast.SymbolID) bool {
	return f != nil && f.nullAssigned[id]
}

// ReturnsNull reports whether the method returns a null literal.
func (f *Facts) ReturnsNull(id ast.SymbolID) bool {
	if f == nil {
		return false
	}
	rf := f.returns[id]
	return rf != nil && rf.null
}

// AssignedInEveryConstructor reports whether every constructor of owner
// assigns field before returning, following this(...) delegation.
func (f *Facts) AssignedInEveryConstructor(t *symbols.Table, owner, field ast.SymbolID) bool {
	ctors := 0
	for _, m := range t.Members(owner) {
		if m.Kind != symbols.KindConstructor {
			continue
		}
		ctors++
		if !f.ctorAssigns[m.ID][field] && !f.delegatedAssign(m.ID, field, 0) {
			return false
		}
	}
	return ctors > 0
}

func (f *Facts) delegatedAssign(ctor, field ast.SymbolID, hops int) bool {
	next, ok := f.delegates[ctor]
	if !ok || hops > 8 {
		return false
	}
	return f.ctorAssigns[next][field] || f.delegatedAssign(next, field, hops+1)
}

// keys is a set of access paths known to be non-null.
type keys map[string]bool

func (k keys) clone() keys {
	out := make(keys, len(k))
	for key := range k {
		out[key] = true
	}
	return out
}

func (k keys) add(list []string) keys {
	for _, key := range list {
		k[key] = true
	}
	return k
}

func (k keys) kill(key string) {
	delete(k, key)
	prefix := key + "."
	for other := range k {
		if strings.HasPrefix(other, prefix) {
			delete(k, other)
		}
	}
}

func (k keys) killPrefix(prefix string) {
	for other := range k {
		if strings.HasPrefix(other, prefix) {
			delete(k, other)
		}
	}
}

func meet(a, b keys) keys {
	out := keys{}
	for key := range a {
		if b[key] {
			out[key] = true
		}
	}
	return out
}

type flow struct {
	t     *symbols.Table
	acc   *accessorIndex
	facts *Facts
	limit int

	file   ast.FileID
	method *symbols.Declaration
	ctor   bool
}

func scanFlow(t *symbols.Table, acc *accessorIndex, limit int) *Facts {
	fl := &flow{t: t, acc: acc, facts: newFacts(), limit: limit}
	for _, d := range t.Declarations() {
		switch d.Kind {
		case symbols.KindField:
			fl.file, fl.method, fl.ctor = d.File, nil, false
			if d.Field.Init == nil {
				continue
			}
			st := keys{}
			fl.expr(d.Field.Init, st, 0)
			fl.write(d.ID, d.Field.Init, st, false)
		case symbols.KindMethod, symbols.KindConstructor:
			if d.Func.Body == nil {
				continue
			}
			fl.file, fl.method, fl.ctor = d.File, d, d.Kind == symbols.KindConstructor
			if fl.ctor {
				fl.facts.ctorAssigns[d.ID] = make(map[ast.SymbolID]bool)
			}
			fl.block(d.Func.Body, keys{}, 0)
		}
	}
	return fl.facts
}

func (fl *flow) site(n ast.Node) symbols.SiteKey {
	return symbols.SiteKey{File: fl.file, Node: n.ID()}
}

// key names the access path of e, or "" when e is not trackable.
func (fl *flow) key(e ast.Expr) string {
	switch e := ast.Unparen(e).(type) {
	case *ast.This:
		return "this"
	case *ast.Name:
		return fl.symbolKey("this", e.Binding)
	case *ast.Select:
		var recv string
		switch x := ast.Unparen(e.X).(type) {
		case *ast.TypeName:
			recv = "static"
		default:
			recv = fl.key(x)
		}
		if recv == "" {
			return ""
		}
		return fl.symbolKey(recv, e.Binding)
	case *ast.Call:
		acc, ok := fl.acc.byMethod[e.Binding.Target]
		if !ok || !acc.getter || len(e.Args) != 0 {
			return ""
		}
		recv := "this"
		if e.X != nil {
			recv = fl.key(e.X)
		}
		if recv == "" {
			return ""
		}
		return recv + "." + string(acc.field)
	}
	return ""
}

func (fl *flow) symbolKey(recv string, b ast.Binding) string {
	if !b.Resolved() {
		return ""
	}
	d, ok := fl.t.Lookup(b.Target)
	if !ok {
		return ""
	}
	switch d.Kind {
	case symbols.KindParam, symbols.KindLocal:
		return string(d.ID)
	case symbols.KindField:
		if d.Static() {
			return "static." + string(d.ID)
		}
		return recv + "." + string(d.ID)
	}
	return ""
}

// nonNull reports whether e is provably non-null given st.
func (fl *flow) nonNull(e ast.Expr, st keys) bool {
	switch e := ast.Unparen(e).(type) {
	case *ast.New, *ast.This, *ast.ClassLit:
		return true
	case *ast.Literal:
		return e.Kind != ast.LitNull
	case *ast.Binary:
		if e.Op == "+" {
			return isStringy(e.X) || isStringy(e.Y)
		}
	case *ast.Cast:
		return fl.nonNull(e.X, st)
	case *ast.Conditional:
		return fl.nonNull(e.Then, st) && fl.nonNull(e.Else, st)
	}
	if k := fl.key(e); k != "" {
		return st[k]
	}
	return false
}

func isStringy(e ast.Expr) bool {
	switch e := ast.Unparen(e).(type) {
	case *ast.Literal:
		return e.Kind == ast.LitString
	case *ast.Binary:
		return e.Op == "+" && (isStringy(e.X) || isStringy(e.Y))
	}
	return false
}

// whenTrue lists the paths known non-null when cond evaluates to true.
func (fl *flow) whenTrue(cond ast.Expr) []string {
	switch c := ast.Unparen(cond).(type) {
	case *ast.Binary:
		switch c.Op {
		case "!=":
			if k := fl.nullCompared(c); k != "" {
				return []string{k}
			}
		case "&&":
			return append(fl.whenTrue(c.X), fl.whenTrue(c.Y)...)
		case "||":
			return intersect(fl.whenTrue(c.X), fl.whenTrue(c.Y))
		}
	case *ast.Unary:
		if c.Op == "!" {
			return fl.whenFalse(c.X)
		}
	case *ast.InstanceOf:
		if k := fl.key(c.X); k != "" {
			return []string{k}
		}
	}
	return nil
}

func (fl *flow) whenFalse(cond ast.Expr) []string {
	switch c := ast.Unparen(cond).(type) {
	case *ast.Binary:
		switch c.Op {
		case "==":
			if k := fl.nullCompared(c); k != "" {
				return []string{k}
			}
		case "||":
			return append(fl.whenFalse(c.X), fl.whenFalse(c.Y)...)
		case "&&":
			return intersect(fl.whenFalse(c.X), fl.whenFalse(c.Y))
		}
	case *ast.Unary:
		if c.Op == "!" {
			return fl.whenTrue(c.X)
		}
	}
	return nil
}

// nullCompared returns the path compared against null by b.
func (fl *flow) nullCompared(b *ast.Binary) string {
	if b.Op != "==" && b.Op != "!=" {
		return ""
	}
	switch {
	case ast.IsNullLiteral(b.Y):
		return fl.key(b.X)
	case ast.IsNullLiteral(b.X):
		return fl.key(b.Y)
	}
	return ""
}

func intersect(a, b []string) []string {
	var out []string
	for _, x := range a {
		for _, y := range b {
			if x == y {
				out = append(out, x)
			}
		}
	}
	return out
}

// block walks statements in order and reports whether control always exits.
func (fl *flow) block(b *ast.Block, st keys, depth int) (keys, bool) {
	for _, s := range b.Stmts {
		var exits bool
		st, exits = fl.stmt(s, st, depth)
		if exits {
			return st, true
		}
	}
	return st, false
}

func (fl *flow) stmt(s ast.Stmt, st keys, depth int) (keys, bool) {
	switch s := s.(type) {
	case nil:
		return st, false
	case *ast.Block:
		return fl.block(s, st, depth)
	case *ast.LocalVar:
		if s.Init == nil {
			return st, false
		}
		fl.expr(s.Init, st, depth)
		if ast.IsNullLiteral(s.Init) {
			fl.facts.nullAssigned[s.Symbol] = true
		}
		if fl.nonNull(s.Init, st) {
			st[string(s.Symbol)] = true
		}
		return st, false
	case *ast.ExprStmt:
		fl.topLevelAssign(s.X, st, depth)
		fl.expr(s.X, st, depth)
		return st, false
	case *ast.Return:
		if s.X != nil {
			fl.expr(s.X, st, depth)
			fl.recordReturn(s.X, st)
		}
		return st, true
	case *ast.Throw:
		fl.expr(s.X, st, depth)
		return st, true
	case *ast.If:
		fl.expr(s.Cond, st, depth)
		thenIn := st.clone().add(fl.whenTrue(s.Cond))
		elseIn := st.clone().add(fl.whenFalse(s.Cond))
		thenOut, thenExit := fl.stmt(s.Then, thenIn, depth+1)
		elseOut, elseExit := elseIn, false
		if s.Else != nil {
			elseOut, elseExit = fl.stmt(s.Else, elseIn, depth+1)
		}
		switch {
		case thenExit && elseExit:
			return keys{}, true
		case thenExit:
			return elseOut, false
		case elseExit:
			return thenOut, false
		}
		return meet(thenOut, elseOut), false
	case *ast.While:
		fl.killLoop(s, st)
		fl.expr(s.Cond, st, depth)
		fl.stmt(s.Body, st.clone().add(fl.whenTrue(s.Cond)), depth+1)
		return st.add(fl.whenFalse(s.Cond)), false
	case *ast.ConstructorCall:
		fl.args(s.Binding, s.Args, st, depth)
		if fl.ctor && !s.Super && s.Binding.Resolved() {
			fl.facts.delegates[fl.method.ID] = s.Binding.Target
		}
		st.killPrefix("this.")
		st.killPrefix("static.")
		return st, false
	case *ast.Verbatim:
		return keys{}, false
	}
	return st, false
}

// killLoop drops every path a loop body may overwrite.
func (fl *flow) killLoop(w *ast.While, st keys) {
	ast.Inspect(w, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Assign:
			if k := fl.key(n.LHS); k != "" {
				st.kill(k)
			}
		case *ast.Call:
			fl.invalidate(n, st)
		case *ast.New, *ast.ConstructorCall:
			st.killPrefix("static.")
		case *ast.Verbatim:
			for k := range st {
				delete(st, k)
			}
		}
		return true
	})
}

// invalidate drops the paths a call may overwrite: static fields for any
// call that is not a getter, and fields of this when the call targets this.
func (fl *flow) invalidate(c *ast.Call, st keys) {
	if acc, ok := fl.acc.byMethod[c.Binding.Target]; ok && acc.getter {
		return
	}
	st.killPrefix("static.")
	if c.X == nil || isThisExpr(c.X) {
		st.killPrefix("this.")
	}
}

func isThisExpr(e ast.Expr) bool {
	_, ok := ast.Unparen(e).(*ast.This)
	return ok
}

// topLevelAssign records constructor assignments to own fields.
func (fl *flow) topLevelAssign(e ast.Expr, st keys, depth int) {
	if !fl.ctor || depth != 0 {
		return
	}
	as, ok := e.(*ast.Assign)
	if !ok || as.Op != "=" {
		return
	}
	target := fieldTarget(fl.t, as.LHS)
	if target == nil || target.Owner != fl.method.Owner || target.Static() {
		return
	}
	fl.facts.ctorTop[fl.site(ast.Unparen(as.LHS))] = true
	if !ast.IsNullLiteral(as.RHS) {
		fl.facts.ctorAssigns[fl.method.ID][target.ID] = true
	}
}

// fieldTarget resolves an assignment target to a field written through this
// or implicitly.
func fieldTarget(t *symbols.Table, lhs ast.Expr) *symbols.Declaration {
	var b ast.Binding
	switch l := ast.Unparen(lhs).(type) {
	case *ast.Name:
		b = l.Binding
	case *ast.Select:
		if !isThisExpr(l.X) {
			if _, static := ast.Unparen(l.X).(*ast.TypeName); !static {
				return nil
			}
		}
		b = l.Binding
	default:
		return nil
	}
	d, ok := t.Lookup(b.Target)
	if !ok || d.Kind != symbols.KindField {
		return nil
	}
	return d
}

func (fl *flow) recordReturn(x ast.Expr, st keys) {
	rf := fl.facts.returns[fl.method.ID]
	if rf == nil {
		rf = &returnFacts{}
		fl.facts.returns[fl.method.ID] = rf
	}
	rf.count++
	switch {
	case ast.IsNullLiteral(x):
		rf.null = true
	case fl.nonNull(x, st):
		rf.nonNull++
	}
	f := fieldTarget(fl.t, x)
	switch {
	case f == nil:
		rf.mixed = true
	case rf.field == "" && !rf.mixed:
		rf.field = f.ID
	case rf.field != f.ID:
		rf.mixed = true
	}
}

// write records facts for an assignment of rhs to target.
func (fl *flow) write(target ast.SymbolID, rhs ast.Expr, st keys, reassign bool) {
	if ast.IsNullLiteral(rhs) {
		fl.facts.nullAssigned[target] = true
	}
	d, ok := fl.t.Lookup(target)
	if !ok {
		return
	}
	switch d.Kind {
	case symbols.KindField:
		if !fl.nonNull(rhs, st) {
			fl.facts.unsafeWrite[target] = true
		}
		if n, ok := ast.Unparen(rhs).(*ast.Name); ok {
			if p, ok := fl.t.Lookup(n.Binding.Target); ok && p.Kind == symbols.KindParam {
				fl.facts.assignedFrom[target] = append(fl.facts.assignedFrom[target], p.ID)
			}
		}
	case symbols.KindLocal, symbols.KindParam:
		if reassign {
			fl.facts.reassigned[target] = true
		}
	}
}

func (fl *flow) args(b ast.Binding, args []ast.Expr, st keys, depth int) {
	var params []*ast.Param
	if d, ok := fl.t.Lookup(b.Target); ok && d.Func != nil {
		params = d.Func.Params
	}
	for i, a := range args {
		fl.expr(a, st, depth)
		if i < len(params) && ast.IsNullLiteral(a) {
			fl.facts.nullArgs[params[i].Symbol] = true
		}
	}
}

// read marks a trackable read as guarded when its path is known non-null.
func (fl *flow) read(e ast.Expr, st keys, depth int) {
	if depth > fl.limit {
		return
	}
	if k := fl.key(e); k != "" && st[k] {
		fl.facts.guarded[fl.site(e)] = true
	}
}

// expr walks e for reads and the facts its assignments establish.
func (fl *flow) expr(e ast.Expr, st keys, depth int) {
	switch e := e.(type) {
	case nil:
	case *ast.Name:
		fl.read(e, st, depth)
	case *ast.Select:
		fl.expr(e.X, st, depth)
		fl.read(e, st, depth)
	case *ast.Call:
		fl.expr(e.X, st, depth)
		fl.args(e.Binding, e.Args, st, depth)
		if fl.key(e) != "" {
			fl.read(e, st, depth)
			return
		}
		fl.invalidate(e, st)
	case *ast.New:
		fl.args(e.Binding, e.Args, st, depth)
		st.killPrefix("static.")
	case *ast.Assign:
		switch l := ast.Unparen(e.LHS).(type) {
		case *ast.Select:
			fl.expr(l.X, st, depth)
		case *ast.Index:
			fl.expr(l.X, st, depth)
			fl.expr(l.Index, st, depth)
		}
		if e.Op != "=" {
			fl.read(e.LHS, st, depth)
		}
		fl.expr(e.RHS, st, depth)
		if target := assignedSymbol(e.LHS); target != "" {
			fl.write(target, e.RHS, st, true)
		}
		if k := fl.key(e.LHS); k != "" {
			known := e.Op == "=" && fl.nonNull(e.RHS, st)
			st.kill(k)
			if known {
				st[k] = true
			}
		}
	case *ast.Binary:
		switch e.Op {
		case "&&":
			fl.expr(e.X, st, depth)
			right := st.clone().add(fl.whenTrue(e.X))
			fl.expr(e.Y, right, depth)
			fl.keepKills(st, right)
			return
		case "||":
			fl.expr(e.X, st, depth)
			right := st.clone().add(fl.whenFalse(e.X))
			fl.expr(e.Y, right, depth)
			fl.keepKills(st, right)
			return
		case "==", "!=":
			if k := fl.nullCompared(e); k != "" {
				operand := e.X
				if ast.IsNullLiteral(e.X) {
					operand = e.Y
				}
				fl.compared(operand, st, depth)
				return
			}
		}
		fl.expr(e.X, st, depth)
		fl.expr(e.Y, st, depth)
	case *ast.Unary:
		fl.expr(e.X, st, depth)
		if (e.Op == "++" || e.Op == "--") && assignedSymbol(e.X) != "" {
			fl.write(assignedSymbol(e.X), e, st, true)
		}
	case *ast.Cast:
		fl.expr(e.X, st, depth)
	case *ast.InstanceOf:
		fl.expr(e.X, st, depth)
	case *ast.Conditional:
		fl.expr(e.Cond, st, depth)
		then := st.clone().add(fl.whenTrue(e.Cond))
		fl.expr(e.Then, then, depth)
		els := st.clone().add(fl.whenFalse(e.Cond))
		fl.expr(e.Else, els, depth)
		fl.keepKills(st, then)
		fl.keepKills(st, els)
	case *ast.Paren:
		fl.expr(e.X, st, depth)
	case *ast.MethodRef:
		fl.expr(e.X, st, depth)
	case *ast.Index:
		fl.expr(e.X, st, depth)
		fl.expr(e.Index, st, depth)
	case *ast.AddressOf:
		fl.expr(e.X, st, depth)
	case *ast.Verbatim:
		for k := range st {
			delete(st, k)
		}
	}
}

// compared handles the operand of a null comparison: the comparison itself
// is a guarded read.
func (fl *flow) compared(operand ast.Expr, st keys, depth int) {
	switch o := ast.Unparen(operand).(type) {
	case *ast.Select:
		fl.expr(o.X, st, depth)
	case *ast.Call:
		fl.expr(o.X, st, depth)
	}
	if depth <= fl.limit {
		fl.facts.guarded[fl.site(ast.Unparen(operand))] = true
	}
}

// keepKills removes from st the paths a nested branch dropped.
func (fl *flow) keepKills(st, branch keys) {
	for k := range st {
		if !branch[k] {
			delete(st, k)
		}
	}
}

func assignedSymbol(lhs ast.Expr) ast.SymbolID {
	switch l := ast.Unparen(lhs).(type) {
	case *ast.Name:
		if l.Binding.Resolved() {
			return l.Binding.Target
		}
	case *ast.Select:
		if l.Binding.Resolved() {
			return l.Binding.Target
		}
	}
	return ""
}
