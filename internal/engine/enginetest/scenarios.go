// Package enginetest builds small resolved file groups shared by the engine
// package tests. Every scenario is a complete group: declarations, use sites
// and the identities a test needs to inspect.
package enginetest

import (
	"j2k/internal/engine/ast"
)

var (
	Public  = ast.Modifiers{Visibility: ast.VisPublic}
	Private = ast.Modifiers{Visibility: ast.VisPrivate}
	Package = ast.Modifiers{}
	Static  = ast.Modifiers{Static: true}

	PublicStatic  = ast.Modifiers{Visibility: ast.VisPublic, Static: true}
	PrivateStatic = ast.Modifiers{Visibility: ast.VisPrivate, Static: true}
	PrivateFinal  = ast.Modifiers{Visibility: ast.VisPrivate, Final: true}
	Constant      = ast.Modifiers{Visibility: ast.VisPublic, Static: true, Final: true}
)

var (
	Int    = ast.Named("int")
	Void   = ast.Named("void")
	String = ast.Named("String")
	Bool   = ast.Named("boolean")
	Logger = ast.Named("Logger")
)

// Accessors is a class with a private field and a trivial getter/setter
// pair.
type Accessors struct {
	B      *ast.Builder
	Class  *ast.TypeDecl
	Field  *ast.FieldDecl
	Getter *ast.MethodDecl
	Setter *ast.MethodDecl
}

// Counter declares demo.Counter { private int count; getCount; setCount }.
func Counter(file ast.FileID) *Accessors {
	b := ast.NewBuilder(file, "demo")
	cls := b.Class("Counter", Public)
	f := b.Field(cls, "count", Int, Private, nil)
	get := b.Method(cls, "getCount", Int, Public)
	b.Body(get, b.Return(b.FieldRef(f)))
	v := b.Param("value", Int)
	set := b.Method(cls, "setCount", Void, Public, v)
	b.Body(set, b.Do(b.Assign(b.ThisField(f), b.ParamRef(v))))
	return &Accessors{B: b, Class: cls, Field: f, Getter: get, Setter: set}
}

// GetSet is the cross-file accessor group: Counter.java declares the pair,
// Main.java increments through both accessors.
type GetSet struct {
	Counter *Accessors
	User    *ast.TypeDecl
	Bump    *ast.MethodDecl
	// GetCall and SetCall are the use sites in Main.java.
	GetCall *ast.Call
	SetCall *ast.Call
	Files   []*ast.File
}

func GetSetAcrossFiles() *GetSet {
	c := Counter("Counter.java")

	b := ast.NewBuilder("Main.java", "demo")
	user := b.Class("Main", Public)
	p := b.Param("c", b.Type(c.Class))
	bump := b.Method(user, "bump", Void, Public, p)
	get := b.Call(b.ParamRef(p), c.Getter)
	set := b.Call(b.ParamRef(p), c.Setter, b.Binary("+", get, b.Int("1")))
	b.Body(bump, b.Do(set))

	return &GetSet{
		Counter: c, User: user, Bump: bump, GetCall: get, SetCall: set,
		Files: []*ast.File{c.B.File(), b.File()},
	}
}

// AddressTaken is GetSetAcrossFiles plus a third file passing the field's
// address to native code.
type AddressTaken struct {
	*GetSet
	Pin     *ast.AddressOf
	PinFile *ast.File
}

func AddressOfField() *AddressTaken {
	g := GetSetAcrossFiles()
	c := g.Counter

	b := ast.NewBuilder("Native.java", "demo")
	cls := b.Class("Native", Public)
	p := b.Param("c", b.Type(c.Class))
	m := b.Method(cls, "pin", Void, Public, p)
	addr := b.AddressOf(b.Select(b.ParamRef(p), c.Field))
	b.Body(m, b.Do(b.Unresolved(nil, "lock", true, addr)))

	g.Files = append(g.Files, b.File())
	return &AddressTaken{GetSet: g, Pin: addr, PinFile: b.File()}
}

// Registry is a static-only nested class used from three other files.
type Registry struct {
	Outer    *ast.TypeDecl
	Registry *ast.TypeDecl
	Size     *ast.FieldDecl
	Register *ast.MethodDecl
	Calls    []*ast.Call
	Files    []*ast.File
}

func StaticNestedAcrossFiles() *Registry {
	b := ast.NewBuilder("Outer.java", "demo")
	outer := b.Class("Outer", Public)
	reg := b.Nested(outer, "Registry", Static)
	size := b.Field(reg, "size", Int, PrivateStatic, b.Int("0"))
	name := b.Param("name", String)
	register := b.Method(reg, "register", Void, Static, name)
	b.Body(register, b.Do(b.Unary("++", b.FieldRef(size), true)))
	total := b.Method(reg, "total", Int, Static)
	b.Body(total, b.Return(b.FieldRef(size)))

	r := &Registry{Outer: outer, Registry: reg, Size: size, Register: register, Files: []*ast.File{b.File()}}
	for _, f := range []struct{ file, class string }{{"A.java", "A"}, {"B.java", "B"}, {"C.java", "C"}} {
		ub := ast.NewBuilder(ast.FileID(f.file), "demo")
		cls := ub.Class(f.class, Package)
		m := ub.Method(cls, "init", Void, Package)
		call := ub.Call(ub.TypeName(reg), register, ub.Str(f.class))
		ub.Body(m, ub.Do(call))
		r.Calls = append(r.Calls, call)
		r.Files = append(r.Files, ub.File())
	}
	return r
}

// Guarded is a reference field read five times, three of them behind a
// null check.
type Guarded struct {
	Class *ast.TypeDecl
	Field *ast.FieldDecl
	// Reads lists the five read sites; Unguarded the two outside any guard.
	Reads     []*ast.Name
	Unguarded []*ast.Name
	Files     []*ast.File
}

func FiveReadsTwoUnguarded() *Guarded {
	b := ast.NewBuilder("Holder.java", "demo")
	cls := b.Class("Holder", Public)
	f := b.Field(cls, "name", String, Private, b.Str("anonymous"))

	log1 := b.Param("log", Logger)
	show := b.Method(cls, "show", Void, Public, log1)
	r1, r2, r3 := b.FieldRef(f), b.FieldRef(f), b.FieldRef(f)
	b.Body(show, b.If(b.NotNull(r1), b.Block(
		b.Do(b.Unresolved(b.ParamRef(log1), "info", true, r2)),
		b.Do(b.Unresolved(b.ParamRef(log1), "debug", true, r3)),
	), nil))

	length := b.Method(cls, "length", Int, Public)
	r4 := b.FieldRef(f)
	b.Body(length, b.Return(b.Unresolved(r4, "length", true)))

	log2 := b.Param("log", Logger)
	warn := b.Method(cls, "warn", Void, Public, log2)
	r5 := b.FieldRef(f)
	b.Body(warn, b.Do(b.Unresolved(b.ParamRef(log2), "warn", true, r5)))

	return &Guarded{
		Class: cls, Field: f,
		Reads:     []*ast.Name{r1, r2, r3, r4, r5},
		Unguarded: []*ast.Name{r4, r5},
		Files:     []*ast.File{b.File()},
	}
}
