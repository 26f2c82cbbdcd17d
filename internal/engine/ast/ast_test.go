package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityScheme(t *testing.T) {
	owner := TypeID("demo", "Outer", "Inner")
	assert.Equal(t, SymbolID("demo.Outer.Inner"), owner)
	assert.Equal(t, SymbolID("Top"), TypeID("", "Top"))

	m := MethodID(owner, "setCount", "int")
	assert.Equal(t, SymbolID("demo.Outer.Inner#setCount(int)"), m)
	assert.Equal(t, owner, m.Owner())
	assert.Equal(t, "setCount", m.Simple())

	p := ParamID(m, "value")
	assert.Equal(t, "value", p.Simple())
	assert.Equal(t, owner, p.Owner())

	l := LocalID(m, "tmp", 12)
	assert.Equal(t, SymbolID("demo.Outer.Inner#setCount(int)$tmp@12"), l)
	assert.Equal(t, "tmp", l.Simple())

	assert.Equal(t, "count", FieldID(owner, "count").Simple())
	assert.Equal(t, "Inner", owner.Simple())
	assert.Equal(t, SymbolID("demo.Outer.Inner#<init>()"), CtorID(owner))
}

func TestTypeRef(t *testing.T) {
	list := Named("List", Named("String"))
	assert.Equal(t, "List<String>", list.String())
	assert.Equal(t, "List", list.Erasure())
	assert.True(t, list.IsReference())

	arr := ArrayOf(Named("int"))
	assert.Equal(t, "int[]", arr.String())
	assert.True(t, arr.IsReference())
	assert.False(t, Named("int").IsReference())
	assert.False(t, Named("void").IsReference())
	assert.Equal(t, "Map", Named("java.util.Map").Erasure())
}

func TestBuilderAndInspect(t *testing.T) {
	b := NewBuilder("A.java", "demo")
	cls := b.Class("A", Modifiers{Visibility: VisPublic})
	f := b.Field(cls, "count", Named("int"), Modifiers{Visibility: VisPrivate}, nil)
	p := b.Param("v", Named("int"))
	set := b.Method(cls, "setCount", Named("void"), Modifiers{Visibility: VisPublic}, p)
	b.Body(set, b.Do(b.Assign(b.ThisField(f), b.ParamRef(p))))

	require.Equal(t, SymbolID("demo.A#setCount(int)$v"), p.Symbol)

	seen := map[NodeID]bool{}
	var names []string
	InspectFile(b.File(), func(n Node) bool {
		assert.False(t, seen[n.ID()] && n.ID() != 0, "node %d visited twice", n.ID())
		seen[n.ID()] = true
		switch n := n.(type) {
		case *Select:
			names = append(names, "select:"+n.Name)
		case *Name:
			names = append(names, "name:"+n.Ident)
		}
		return true
	})
	assert.Equal(t, []string{"select:count", "name:v"}, names)
}

func TestModifiersHas(t *testing.T) {
	mods := Modifiers{Annotations: []Annotation{{Name: "org.jetbrains.annotations.Nullable"}, {Name: "Override"}}}
	assert.True(t, mods.Has("Nullable"))
	assert.True(t, mods.Has("Override"))
	assert.False(t, mods.Has("NotNull"))
	assert.True(t, IsNullLiteral(&Paren{X: &Literal{Kind: LitNull}}))
}
