package classify

import (
	"j2k/internal/engine/ast"
	"j2k/internal/engine/symbols"
)

type accessor struct {
	field  ast.SymbolID
	getter bool
}

// accessorIndex links trivial getX/isX/setX methods to the field they expose.
type accessorIndex struct {
	byMethod map[ast.SymbolID]accessor
	getter   map[ast.SymbolID]ast.SymbolID
	setter   map[ast.SymbolID]ast.SymbolID
}

func indexAccessors(t *symbols.Table) *accessorIndex {
	idx := &accessorIndex{
		byMethod: make(map[ast.SymbolID]accessor),
		getter:   make(map[ast.SymbolID]ast.SymbolID),
		setter:   make(map[ast.SymbolID]ast.SymbolID),
	}
	for _, d := range t.Declarations() {
		if d.Kind != symbols.KindMethod || d.Func.Body == nil || d.Modifiers.Abstract {
			continue
		}
		prop, getter, ok := symbols.AccessorName(d.Name)
		if !ok {
			continue
		}
		var field *symbols.Declaration
		if getter {
			field = getterField(t, d, prop)
		} else {
			field = setterField(t, d, prop)
		}
		if field == nil {
			continue
		}
		if getter {
			if _, taken := idx.getter[field.ID]; taken {
				continue
			}
			idx.getter[field.ID] = d.ID
		} else {
			if _, taken := idx.setter[field.ID]; taken {
				continue
			}
			idx.setter[field.ID] = d.ID
		}
		idx.byMethod[d.ID] = accessor{field: field.ID, getter: getter}
	}
	return idx
}

func getterField(t *symbols.Table, m *symbols.Declaration, prop string) *symbols.Declaration {
	if m.Arity != 0 || m.Type.IsVoid() || len(m.Func.Body.Stmts) != 1 {
		return nil
	}
	if isPrefixed(m.Name, "is") && m.Type.Name != "boolean" && m.Type.Name != "Boolean" {
		return nil
	}
	ret, ok := m.Func.Body.Stmts[0].(*ast.Return)
	if !ok || ret.X == nil {
		return nil
	}
	f := ownField(t, m, ret.X, prop)
	if f == nil || f.Type.String() != m.Type.String() {
		return nil
	}
	return f
}

func setterField(t *symbols.Table, m *symbols.Declaration, prop string) *symbols.Declaration {
	if m.Arity != 1 || !m.Type.IsVoid() || len(m.Func.Body.Stmts) != 1 {
		return nil
	}
	st, ok := m.Func.Body.Stmts[0].(*ast.ExprStmt)
	if !ok {
		return nil
	}
	as, ok := st.X.(*ast.Assign)
	if !ok || as.Op != "=" {
		return nil
	}
	param := m.Func.Params[0]
	rhs, ok := ast.Unparen(as.RHS).(*ast.Name)
	if !ok || rhs.Binding.Target != param.Symbol {
		return nil
	}
	f := ownField(t, m, as.LHS, prop)
	if f == nil || f.Type.String() != param.Type.String() {
		return nil
	}
	return f
}

// ownField resolves e to a field of m's owner with matching static-ness and
// the expected property name, reached through this or implicitly.
func ownField(t *symbols.Table, m *symbols.Declaration, e ast.Expr, prop string) *symbols.Declaration {
	var b ast.Binding
	switch e := ast.Unparen(e).(type) {
	case *ast.Name:
		b = e.Binding
	case *ast.Select:
		if _, this := ast.Unparen(e.X).(*ast.This); !this {
			return nil
		}
		b = e.Binding
	default:
		return nil
	}
	if !b.Resolved() {
		return nil
	}
	f, ok := t.Lookup(b.Target)
	if !ok || f.Kind != symbols.KindField || f.Owner != m.Owner || f.Static() != m.Static() || f.Name != prop {
		return nil
	}
	return f
}

func isPrefixed(name, prefix string) bool {
	return len(name) > len(prefix) && name[:len(prefix)] == prefix
}
