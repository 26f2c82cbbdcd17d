package resolver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"j2k/internal/core/ports"
	"j2k/internal/engine/ast"
	"j2k/internal/engine/parser"
)

// parse runs the Java front-end, which resolves the group, over name and
// content pairs.
func parse(t *testing.T, pairs ...string) map[string]*ast.File {
	t.Helper()
	var srcs []ports.SourceFile
	for i := 0; i+1 < len(pairs); i += 2 {
		srcs = append(srcs, ports.SourceFile{Path: pairs[i], Content: []byte(pairs[i+1])})
	}
	out := map[string]*ast.File{}
	for _, pf := range parser.NewJavaParser(2).ParseGroup(context.Background(), srcs) {
		require.NoError(t, pf.Err, pf.Path)
		out[pf.Path] = pf.File
	}
	return out
}

func calls(f *ast.File, name string) []*ast.Call {
	var out []*ast.Call
	ast.InspectFile(f, func(n ast.Node) bool {
		if c, ok := n.(*ast.Call); ok && c.Name == name {
			out = append(out, c)
		}
		return true
	})
	return out
}

func names(f *ast.File, ident string) []*ast.Name {
	var out []*ast.Name
	ast.InspectFile(f, func(n ast.Node) bool {
		if nm, ok := n.(*ast.Name); ok && nm.Ident == ident {
			out = append(out, nm)
		}
		return true
	})
	return out
}

const counter = `package demo;

public class Counter {
    private int count;

    public int getCount() { return count; }
    public void setCount(int v) { count = v; }
}
`

func TestCallsBindAcrossFiles(t *testing.T) {
	files := parse(t,
		"Counter.java", counter,
		"Main.java", `package demo;

public class Main {
    static void bump(Counter c) {
        c.setCount(c.getCount() + 1);
    }
}
`)
	main := files["Main.java"]

	set := calls(main, "setCount")
	require.Len(t, set, 1)
	assert.Equal(t, ast.SymbolID("demo.Counter#setCount(int)"), set[0].Binding.Target)
	get := calls(main, "getCount")
	require.Len(t, get, 1)
	assert.Equal(t, ast.SymbolID("demo.Counter#getCount()"), get[0].Binding.Target)

	cs := names(main, "c")
	require.Len(t, cs, 2)
	for _, c := range cs {
		assert.Equal(t, ast.SymbolID("demo.Main#bump(Counter)$c"), c.Binding.Target)
	}

	param := main.Types[0].Methods[0].Params[0]
	assert.Equal(t, ast.SymbolID("demo.Counter"), param.Type.Binding.Target)

	field := names(files["Counter.java"], "count")
	require.Len(t, field, 2)
	assert.Equal(t, ast.SymbolID("demo.Counter#count"), field[0].Binding.Target)
}

func TestNestedTypeQualifierBecomesTypeName(t *testing.T) {
	files := parse(t,
		"Outer.java", `package demo;

public class Outer {
    static class Registry {
        static void register(String name) {}
    }
}
`,
		"A.java", `package demo;

class A {
    void init() { Outer.Registry.register("A"); }
}
`)
	reg := calls(files["A.java"], "register")
	require.Len(t, reg, 1)
	assert.Equal(t, ast.SymbolID("demo.Outer.Registry#register(String)"), reg[0].Binding.Target)

	q, ok := reg[0].X.(*ast.TypeName)
	require.True(t, ok, "qualifier is %T", reg[0].X)
	assert.Equal(t, "Outer.Registry", q.Name)
	assert.Equal(t, ast.SymbolID("demo.Outer.Registry"), q.Binding.Target)
}

func TestLocalsShadowFields(t *testing.T) {
	files := parse(t, "Box.java", `package demo;

class Box {
    int size;

    int grow() {
        int size = 2;
        return size + this.size;
    }
}
`)
	f := files["Box.java"]
	used := names(f, "size")
	require.Len(t, used, 1)
	assert.Contains(t, string(used[0].Binding.Target), "demo.Box#grow()$size@")

	var sel *ast.Select
	ast.InspectFile(f, func(n ast.Node) bool {
		if s, ok := n.(*ast.Select); ok {
			sel = s
		}
		return true
	})
	require.NotNil(t, sel)
	assert.Equal(t, ast.SymbolID("demo.Box#size"), sel.Binding.Target)
}

func TestOverloadsMatchArgumentTypes(t *testing.T) {
	files := parse(t, "Fmt.java", `package demo;

class Fmt {
    static String show(int n) { return "i"; }
    static String show(String s) { return s; }

    static void run() {
        show("x");
        show(3);
        show(null);
    }
}
`)
	got := calls(files["Fmt.java"], "show")
	require.Len(t, got, 3)
	assert.Equal(t, ast.SymbolID("demo.Fmt#show(String)"), got[0].Binding.Target)
	assert.Equal(t, ast.SymbolID("demo.Fmt#show(int)"), got[1].Binding.Target)
	assert.Equal(t, ast.SymbolID("demo.Fmt#show(String)"), got[2].Binding.Target)
}

func TestConstructorsBind(t *testing.T) {
	files := parse(t,
		"Point.java", `package demo;

class Point {
    private final int x;
    private final int y;

    Point(int x, int y) {
        this.x = x;
        this.y = y;
    }

    Point(int x) {
        this(x, 0);
    }
}
`,
		"Use.java", `package demo;

class Use {
    Point p = new Point(1);
    Use u = new Use();
}
`)
	ctor := files["Point.java"].Types[0].Constructors[1]
	cc, ok := ctor.Body.Stmts[0].(*ast.ConstructorCall)
	require.True(t, ok)
	assert.Equal(t, ast.SymbolID("demo.Point#<init>(int,int)"), cc.Binding.Target)

	use := files["Use.java"].Types[0]
	p, ok := use.Fields[0].Init.(*ast.New)
	require.True(t, ok)
	assert.Equal(t, ast.SymbolID("demo.Point#<init>(int)"), p.Binding.Target)
	u, ok := use.Fields[1].Init.(*ast.New)
	require.True(t, ok)
	assert.Equal(t, ast.SymbolID("demo.Use"), u.Binding.Target)
}

func TestLibraryReferencesAreExternal(t *testing.T) {
	files := parse(t, "Log.java", `package demo;

import java.util.List;

class Log {
    List<String> lines;

    void print(String s) {
        System.out.println(s.trim());
        java.util.Objects.requireNonNull(s);
    }
}
`)
	f := files["Log.java"]
	assert.False(t, f.Types[0].Fields[0].Type.Binding.Resolved())
	assert.False(t, f.Types[0].Fields[0].Type.Binding.Unresolved)

	for _, name := range []string{"println", "trim", "requireNonNull"} {
		c := calls(f, name)
		require.Len(t, c, 1, name)
		assert.True(t, c[0].Binding.Unresolved, name)
		assert.True(t, c[0].Binding.External, name)
	}
	sys := names(f, "System")
	require.Len(t, sys, 1)
	assert.True(t, sys[0].Binding.External)
	java := names(f, "java")
	require.Len(t, java, 1)
	assert.True(t, java[0].Binding.External, "package prefix of a library type")
}

func TestUnknownNamesAreUnresolved(t *testing.T) {
	files := parse(t, "Typo.java", `package demo;

class Typo {
    int total;

    int sum() { return totl + missing(); }
}
`)
	f := files["Typo.java"]
	n := names(f, "totl")
	require.Len(t, n, 1)
	assert.True(t, n[0].Binding.Unresolved)
	assert.False(t, n[0].Binding.External)

	c := calls(f, "missing")
	require.Len(t, c, 1)
	assert.True(t, c[0].Binding.Unresolved)
	assert.False(t, c[0].Binding.External)
}

func TestInheritedMembersResolveThroughSupertypes(t *testing.T) {
	files := parse(t,
		"Base.java", `package demo;

abstract class Base {
    protected String name;
    abstract void run();
}
`,
		"Impl.java", `package demo;

class Impl extends Base implements Runnable {
    void run() { use(name); }
    void use(String s) {}
}
`,
		"Ext.java", `package demo;

class Ext extends Thread {
    void go() { start(); }
}
`)
	impl := files["Impl.java"]
	n := names(impl, "name")
	require.Len(t, n, 1)
	assert.Equal(t, ast.SymbolID("demo.Base#name"), n[0].Binding.Target)
	assert.Equal(t, ast.SymbolID("demo.Base"), impl.Types[0].Extends.Binding.Target)

	start := calls(files["Ext.java"], "start")
	require.Len(t, start, 1)
	assert.True(t, start[0].Binding.External, "inherited from a library superclass")
}

func TestStaticImportsBind(t *testing.T) {
	files := parse(t,
		"Limits.java", `package demo;

public class Limits {
    public static final int MAX = 4;
    public static int clamp(int v) { return v > MAX ? MAX : v; }
}
`,
		"Use.java", `package demo.app;

import static demo.Limits.MAX;
import static demo.Limits.*;

class Use {
    int top() { return clamp(MAX); }
}
`)
	use := files["Use.java"]
	c := calls(use, "clamp")
	require.Len(t, c, 1)
	assert.Equal(t, ast.SymbolID("demo.Limits#clamp(int)"), c[0].Binding.Target)
	m := names(use, "MAX")
	require.Len(t, m, 1)
	assert.Equal(t, ast.SymbolID("demo.Limits#MAX"), m[0].Binding.Target)
}
