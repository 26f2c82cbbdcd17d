package printer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"j2k/internal/engine/printer"
	"j2k/internal/engine/target"
)

func render(t *testing.T, f *target.File) string {
	t.Helper()
	out, err := printer.New().Print(f)
	require.NoError(t, err)
	return string(out)
}

func ident(name string) *target.Ident { return &target.Ident{Name: name} }

func TestPrintClassWithCompanion(t *testing.T) {
	private := target.Private
	f := &target.File{
		Package: "demo",
		Imports: []string{"java.io.File"},
		Decls: []*target.Class{{
			Name: "Counter",
			Members: []target.Member{
				&target.Property{Name: "count", Type: target.Type{Name: "Int"}, Mutable: true, Setter: &private, Init: &target.Lit{Text: "0"}},
				&target.Property{Name: "label", Type: target.Type{Name: "String", Nullable: true}, Mutable: true, Visibility: target.Private, Init: &target.Lit{Text: "null"}},
				&target.Function{Name: "reset", Body: &target.Block{Stmts: []target.Stmt{
					&target.Assign{Op: "=", LHS: ident("count"), RHS: &target.Lit{Text: "0"}},
				}}},
			},
			Companion: &target.Class{Kind: target.KindCompanion, Members: []target.Member{
				&target.Property{Name: "LIMIT", Type: target.Type{Name: "Int"}, Const: true, Init: &target.Lit{Text: "10"}},
			}},
		}},
	}

	want := `package demo

import java.io.File

class Counter {
    var count: Int = 0
        private set
    private var label: String? = null

    fun reset() {
        count = 0
    }

    companion object {
        const val LIMIT: Int = 10
    }
}
`
	assert.Equal(t, want, render(t, f))
}

func TestPrintHeaders(t *testing.T) {
	f := &target.File{Decls: []*target.Class{
		{
			Kind: target.KindInterface, Name: "Shape", Visibility: target.Internal,
			Members: []target.Member{&target.Function{Name: "area", Result: &target.Type{Name: "Double"}}},
		},
		{
			Name: "Square", Open: true,
			Annotations: []target.Annotation{{Name: "Tag", Args: `names = ["a", "b"]`}},
			Supertypes:  []target.Supertype{{Type: target.Type{Name: "Base"}, Call: true}, {Type: target.Type{Name: "Shape"}}},
		},
		{Kind: target.KindObject, Name: "Registry"},
	}}

	want := `internal interface Shape {
    fun area(): Double
}

@Tag(names = ["a", "b"])
open class Square : Base(), Shape

object Registry
`
	assert.Equal(t, want, render(t, f))
}

func TestPrintConstructorsAndFunctions(t *testing.T) {
	f := &target.File{Decls: []*target.Class{{
		Name: "Point",
		Members: []target.Member{
			&target.Constructor{
				Params:       []target.Param{{Name: "x", Type: target.Type{Name: "Int"}}},
				Delegate:     "this",
				DelegateArgs: []target.Expr{ident("x"), &target.Lit{Text: "0"}},
				Body:         &target.Block{},
			},
			&target.Function{
				Name: "describe", Override: true, Open: true,
				Result: &target.Type{Name: "String"},
				Body:   &target.Block{Stmts: []target.Stmt{&target.Return{X: &target.Lit{Text: `"p"`}}}},
			},
			&target.Function{Name: "step", Visibility: target.Protected, Open: true, Body: &target.Block{}},
		},
	}}}

	want := `class Point {
    constructor(x: Int) : this(x, 0)

    override fun describe(): String {
        return "p"
    }

    protected open fun step() {}
}
`
	assert.Equal(t, want, render(t, f))
}

func TestPrintStatements(t *testing.T) {
	body := []target.Stmt{
		&target.ValDecl{Name: "n", Init: &target.NotNull{X: ident("name")}},
		&target.ValDecl{Name: "total", Mutable: true, Type: &target.Type{Name: "Int"}},
		&target.If{
			Cond: &target.Binary{Op: "!=", X: ident("label"), Y: &target.Lit{Text: "null"}},
			Then: &target.Block{Stmts: []target.Stmt{&target.ExprStmt{X: &target.Unary{Op: "++", X: ident("total"), Postfix: true}}}},
			Else: &target.If{
				Cond: &target.Is{X: ident("o"), Type: target.Type{Name: "String"}},
				Then: &target.Throw{X: &target.CallExpr{Fun: ident("IllegalStateException")}},
				Else: &target.Return{},
			},
		},
		&target.While{Cond: &target.Binary{Op: ">", X: ident("total"), Y: &target.Lit{Text: "0"}}, Body: &target.Assign{Op: "-=", LHS: ident("total"), RHS: &target.Lit{Text: "1"}}},
		&target.Verbatim{Text: "for (x in xs) {\n    println(x)\n}"},
	}
	f := &target.File{Decls: []*target.Class{{Name: "S", Members: []target.Member{
		&target.Function{Name: "run", Body: &target.Block{Stmts: body}},
	}}}}

	want := `class S {
    fun run() {
        val n = name!!
        var total: Int
        if (label != null) {
            total++
        } else if (o is String) {
            throw IllegalStateException()
        } else {
            return
        }
        while (total > 0) {
            total -= 1
        }
        for (x in xs) {
            println(x)
        }
    }
}
`
	assert.Equal(t, want, render(t, f))
}

func TestPrintExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr target.Expr
		want string
	}{
		{"property read", &target.Dot{X: ident("c"), Name: "count"}, "c.count"},
		{"safe call", &target.Dot{X: ident("c"), Name: "count", Safe: true}, "c?.count"},
		{"not-null receiver", &target.CallExpr{Fun: &target.Dot{X: &target.NotNull{X: ident("name")}, Name: "length"}}, "name!!.length()"},
		{"infix", &target.Binary{Op: "and", Infix: true, X: ident("a"), Y: &target.Binary{Op: "==", X: ident("b"), Y: ident("c")}}, "a and (b == c)"},
		{"arithmetic", &target.Binary{Op: "+", X: ident("a"), Y: &target.Binary{Op: "*", X: ident("b"), Y: ident("c")}}, "a + b * c"},
		{"cast", &target.As{X: ident("o"), Type: target.Type{Name: "String"}}, "o as String"},
		{"if expression", &target.IfExpr{Cond: ident("ok"), Then: &target.Lit{Text: "1"}, Else: &target.Lit{Text: "2"}}, "if (ok) 1 else 2"},
		{"callable", &target.CallableRef{X: &target.This{}, Name: "run"}, "this::run"},
		{"constructor ref", &target.CallableRef{Name: "Box"}, "::Box"},
		{"class literal", &target.Dot{X: &target.ClassRef{Type: target.Type{Name: "Box"}}, Name: "java"}, "Box::class.java"},
		{"index", &target.Index{X: ident("xs"), Index: &target.Lit{Text: "0"}}, "xs[0]"},
		{"inv", &target.CallExpr{Fun: &target.Dot{X: &target.Paren{X: &target.Binary{Op: "+", X: ident("a"), Y: ident("b")}}, Name: "inv"}}, "(a + b).inv()"},
		{"prefix not", &target.Unary{Op: "!", X: &target.Paren{X: ident("ok")}}, "!(ok)"},
		{"keyword", ident("object"), "`object`"},
		{"generic type", &target.CallExpr{Fun: ident("ArrayList<String>")}, "ArrayList<String>()"},
		{
			"assignment value",
			&target.CallExpr{Fun: &target.Dot{X: ident("v"), Name: "also"}, Args: []target.Expr{&target.Lambda{Body: []target.Stmt{&target.Assign{Op: "=", LHS: ident("x"), RHS: ident("it")}}}}},
			"v.also { x = it }",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &target.File{Decls: []*target.Class{{Name: "E", Members: []target.Member{
				&target.Function{Name: "f", Body: &target.Block{Stmts: []target.Stmt{&target.ExprStmt{X: tt.expr}}}},
			}}}}
			assert.Contains(t, render(t, f), "        "+tt.want+"\n")
		})
	}
}

func TestPrintNilFile(t *testing.T) {
	_, err := printer.New().Print(nil)
	assert.Error(t, err)
}

func TestWithIndent(t *testing.T) {
	f := &target.File{Decls: []*target.Class{{Name: "A", Members: []target.Member{
		&target.Property{Name: "x", Type: target.Type{Name: "Int"}, Init: &target.Lit{Text: "1"}},
	}}}}
	out, err := printer.New().WithIndent("\t").Print(f)
	require.NoError(t, err)
	assert.Equal(t, "class A {\n\tval x: Int = 1\n}\n", string(out))
}
