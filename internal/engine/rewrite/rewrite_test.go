package rewrite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "j2k/internal/core/errors"
	"j2k/internal/engine/ast"
	"j2k/internal/engine/classify"
	"j2k/internal/engine/conflict"
	"j2k/internal/engine/enginetest"
	"j2k/internal/engine/printer"
	"j2k/internal/engine/rewrite"
	"j2k/internal/engine/symbols"
)

// convert runs the engine phases over files and prints every result, keyed
// by output path.
func convert(t *testing.T, opts rewrite.Options, files ...*ast.File) map[string]string {
	t.Helper()
	table, _ := symbols.Build(files)
	d, err := classify.Run(context.Background(), table, classify.Options{})
	require.NoError(t, err)
	conflict.Check(table, d)
	d.Seal()

	out, err := rewrite.Rewrite(context.Background(), table, d, files, opts)
	require.NoError(t, err)
	require.Len(t, out, len(files))

	printed := make(map[string]string, len(out))
	for _, f := range out {
		text, err := printer.New().Print(f)
		require.NoError(t, err)
		printed[f.Path] = string(text)
	}
	return printed
}

func TestGetterSetterUsesBecomePropertyAccess(t *testing.T) {
	out := convert(t, rewrite.Options{}, enginetest.GetSetAcrossFiles().Files...)

	assert.Equal(t, `package demo

class Counter {
    var count: Int = 0
}
`, out["Counter.kt"])

	assert.Equal(t, `package demo

class Main {
    fun bump(c: Counter?) {
        c!!.count = c!!.count + 1
    }
}
`, out["Main.kt"])
}

func TestAddressTakenFieldKeepsAccessors(t *testing.T) {
	out := convert(t, rewrite.Options{}, enginetest.AddressOfField().Files...)

	counter := out["Counter.kt"]
	assert.Contains(t, counter, "    private var count: Int = 0\n")
	assert.Contains(t, counter, "    fun getCount(): Int {\n        return count\n    }\n")
	assert.Contains(t, counter, "    fun setCount(value: Int) {\n        this.count = value\n    }\n")
	assert.NotContains(t, counter, "JvmField", "private fields are never exposed")

	assert.Contains(t, out["Main.kt"], "c!!.setCount(c!!.getCount() + 1)")
	assert.Contains(t, out["Native.kt"], "lock(c!!.count)")
}

func TestStaticOnlyNestedClassBecomesObject(t *testing.T) {
	out := convert(t, rewrite.Options{}, enginetest.StaticNestedAcrossFiles().Files...)

	assert.Equal(t, `package demo

class Outer {
    internal object Registry {
        private var size: Int = 0

        internal fun register(name: String?) {
            size++
        }

        internal fun total(): Int {
            return size
        }
    }
}
`, out["Outer.kt"])

	for _, name := range []string{"A", "B", "C"} {
		assert.Equal(t, `package demo

internal class `+name+` {
    internal fun init() {
        Registry.register("`+name+`")
    }
}
`, out[name+".kt"])
	}
}

func TestNullableFieldDereferences(t *testing.T) {
	out := convert(t, rewrite.Options{}, enginetest.FiveReadsTwoUnguarded().Files...)

	holder := out["Holder.kt"]
	assert.Contains(t, holder, `    private val name: String? = "anonymous"`)
	assert.Contains(t, holder, "        if (name != null) {\n            log!!.info(name)\n            log!!.debug(name)\n        }\n")
	assert.Contains(t, holder, "        return name!!.length\n")
	assert.Contains(t, holder, "        log!!.warn(name)\n")
}

func TestRequiresSealedDecisions(t *testing.T) {
	g := enginetest.GetSetAcrossFiles()
	table, _ := symbols.Build(g.Files)
	d, err := classify.Run(context.Background(), table, classify.Options{})
	require.NoError(t, err)

	_, err = rewrite.Rewrite(context.Background(), table, d, g.Files, rewrite.Options{})
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeInternal))

	_, err = rewrite.Rewrite(context.Background(), table, nil, g.Files, rewrite.Options{})
	assert.Error(t, err)
}

func TestRewriteHonorsCancellation(t *testing.T) {
	g := enginetest.GetSetAcrossFiles()
	table, _ := symbols.Build(g.Files)
	d, err := classify.Run(context.Background(), table, classify.Options{})
	require.NoError(t, err)
	d.Seal()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rewrite.Rewrite(ctx, table, d, g.Files, rewrite.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutputIsIndependentOfJobs(t *testing.T) {
	files := enginetest.StaticNestedAcrossFiles().Files
	assert.Equal(t, convert(t, rewrite.Options{Jobs: 1}, files...), convert(t, rewrite.Options{Jobs: 8}, files...))
}

func TestConstantsMoveToCompanion(t *testing.T) {
	b := ast.NewBuilder("Limits.java", "demo")
	cls := b.Class("Limits", enginetest.Public)
	max := b.Field(cls, "MAX", enginetest.Int, enginetest.Constant, b.Int("4"))
	used := b.Field(cls, "used", enginetest.Int, enginetest.Private, nil)
	left := b.Method(cls, "left", enginetest.Int, enginetest.Public)
	b.Body(left, b.Return(b.Binary("-", b.FieldRef(max), b.FieldRef(used))))

	out := convert(t, rewrite.Options{}, b.File())
	assert.Equal(t, `package demo

class Limits {
    private val used: Int = 0

    fun left(): Int {
        return MAX - used
    }

    companion object {
        const val MAX: Int = 4
    }
}
`, out["Limits.kt"])
}

func TestStaticThroughInstanceIsTypeQualified(t *testing.T) {
	b := ast.NewBuilder("S.java", "demo")
	cls := b.Class("S", enginetest.Public)
	total := b.Field(cls, "total", enginetest.Int, enginetest.PublicStatic, b.Int("0"))
	p := b.Param("other", b.Type(cls))
	m := b.Method(cls, "read", enginetest.Int, enginetest.Public, p)
	b.Body(m, b.Return(b.Binary("+", b.Select(b.ParamRef(p), total), b.Select(b.TypeName(cls), total))))

	s := convert(t, rewrite.Options{}, b.File())["S.kt"]
	assert.Contains(t, s, "        return S.total + S.total\n")
	assert.Contains(t, s, "    companion object {\n        val total: Int = 0\n    }\n")
}

func TestConstructorsAndDelegation(t *testing.T) {
	b := ast.NewBuilder("Point.java", "demo")
	cls := b.Class("Point", enginetest.Public)
	x := b.Field(cls, "x", enginetest.Int, enginetest.PrivateFinal, nil)
	y := b.Field(cls, "y", enginetest.Int, enginetest.PrivateFinal, nil)
	px, py := b.Param("x", enginetest.Int), b.Param("y", enginetest.Int)
	full := b.Ctor(cls, enginetest.Public, px, py)
	b.Body(full,
		b.Do(b.Assign(b.ThisField(x), b.ParamRef(px))),
		b.Do(b.Assign(b.ThisField(y), b.ParamRef(py))),
	)
	qx := b.Param("x", enginetest.Int)
	short := b.Ctor(cls, enginetest.Public, qx)
	b.Body(short, b.Delegate(false, full, b.ParamRef(qx), b.Int("0")))
	sum := b.Method(cls, "sum", enginetest.Int, enginetest.Public)
	b.Body(sum, b.Return(b.Binary("+", b.FieldRef(x), b.FieldRef(y))))

	out := convert(t, rewrite.Options{}, b.File())
	assert.Equal(t, `package demo

class Point {
    private val x: Int
    private val y: Int

    constructor(x: Int, y: Int) {
        this.x = x
        this.y = y
    }

    constructor(x: Int) : this(x, 0)

    fun sum(): Int {
        return x + y
    }
}
`, out["Point.kt"])
}

func TestImplicitConstructorIsDropped(t *testing.T) {
	b := ast.NewBuilder("Plain.java", "demo")
	cls := b.Class("Plain", enginetest.Public)
	b.Ctor(cls, enginetest.Public)
	guarded := b.Class("Guarded", enginetest.Public)
	b.Ctor(guarded, enginetest.Private)

	out := convert(t, rewrite.Options{}, b.File())["Plain.kt"]
	assert.Contains(t, out, "class Plain\n")
	assert.Contains(t, out, "class Guarded {\n    private constructor()\n}\n")
}

func TestClassHierarchyModifiers(t *testing.T) {
	b := ast.NewBuilder("Animals.java", "demo")
	animal := b.Class("Animal", ast.Modifiers{Visibility: ast.VisPublic, Abstract: true})
	b.Method(animal, "sound", enginetest.String, ast.Modifiers{Visibility: ast.VisPublic, Abstract: true})

	override := ast.Modifiers{Visibility: ast.VisPublic, Annotations: []ast.Annotation{{Name: "Override"}}}
	dog := b.Class("Dog", enginetest.Public)
	b.Extends(dog, animal)
	bark := b.Method(dog, "sound", enginetest.String, override)
	b.Body(bark, b.Return(b.Str("woof")))
	bone := b.Nested(dog, "Bone", enginetest.Package)
	b.Field(bone, "size", enginetest.Int, enginetest.Private, b.Int("1"))

	puppy := b.Class("Puppy", enginetest.Public)
	b.Extends(puppy, dog)
	yip := b.Method(puppy, "sound", enginetest.String, enginetest.Public)
	b.Body(yip, b.Return(b.Str("yip")))

	out := convert(t, rewrite.Options{}, b.File())["Animals.kt"]
	assert.Contains(t, out, "abstract class Animal {\n    abstract fun sound(): String?\n}\n", "a bodiless method proves nothing")
	assert.Contains(t, out, "open class Dog : Animal() {\n    override fun sound(): String")
	assert.Contains(t, out, "    internal inner class Bone {\n")
	assert.Contains(t, out, "class Puppy : Dog() {\n    override fun sound(): String")
	assert.NotContains(t, out, "@Override")
}

func TestMechanicalTranslation(t *testing.T) {
	b := ast.NewBuilder("Box.java", "demo")
	cls := b.Class("Box", enginetest.Public)
	o := b.Param("o", ast.Named("Object"))
	m := b.Method(cls, "describe", enginetest.String, enginetest.Public, o)
	s := b.Local(m, "s", enginetest.String, b.Cast(enginetest.String, b.ParamRef(o)))
	isText := b.Local(m, "isText", enginetest.Bool, b.InstanceOf(b.ParamRef(o), enginetest.String))
	n := b.Local(m, "n", enginetest.Int, b.Conditional(b.LocalRef(isText), b.Int("1"), b.Int("2")))
	copied := b.Local(m, "copy", b.Type(cls), b.New(cls, nil))
	mask := b.Local(m, "mask", enginetest.Int, b.Binary("&", b.LocalRef(n), b.Int("0x0F")))
	b.Body(m, s, isText, n, copied, mask, b.Return(b.LocalRef(s)))

	box := convert(t, rewrite.Options{}, b.File())["Box.kt"]
	assert.Contains(t, box, "    fun describe(o: Any?): String")
	for _, line := range []string{
		"val s = o as String",
		"val isText = o is String",
		"val n = if (isText) 1 else 2",
		"val copy = Box()",
		"val mask = n and 0x0F",
		"return s",
	} {
		assert.Contains(t, box, "        "+line+"\n")
	}
}

func TestReassignedParameterIsShadowed(t *testing.T) {
	b := ast.NewBuilder("Steps.java", "demo")
	cls := b.Class("Steps", enginetest.Public)
	p := b.Param("n", enginetest.Int)
	m := b.Method(cls, "next", enginetest.Int, enginetest.Public, p)
	total := b.Local(m, "total", enginetest.Int, b.Int("0"))
	b.Body(m,
		total,
		b.Do(b.Assign(b.ParamRef(p), b.Binary("+", b.ParamRef(p), b.Int("1")))),
		b.Do(&ast.Assign{Meta: ast.Meta{Node: 900}, Op: "&=", LHS: b.LocalRef(total), RHS: b.ParamRef(p)}),
		b.Return(b.LocalRef(total)),
	)

	out := convert(t, rewrite.Options{}, b.File())["Steps.kt"]
	assert.Contains(t, out, `    fun next(n: Int): Int {
        var n = n
        var total = 0
        n = n + 1
        total = total and n
        return total
    }
`)
}

func TestPlainPublicFieldIsJvmField(t *testing.T) {
	b := ast.NewBuilder("Tag.java", "demo")
	cls := b.Class("Tag", enginetest.Public)
	b.Field(cls, "label", enginetest.String, enginetest.Public, nil)
	inspector := b.Class("Inspector", enginetest.Public)
	m := b.Method(inspector, "inspect", enginetest.Void, enginetest.Public)
	b.Body(m, b.Do(b.Reflect(cls, "getDeclaredField", "label")))

	out := convert(t, rewrite.Options{}, b.File())["Tag.kt"]
	assert.Contains(t, out, "class Tag {\n    @JvmField\n    var label: String? = null\n}\n")
	assert.Contains(t, out, `Tag::class.java.getDeclaredField("label")`)
}

func TestGetterOfNullableFieldIsAsserted(t *testing.T) {
	b := ast.NewBuilder("Person.java", "demo")
	person := b.Class("Person", enginetest.Public)
	name := b.Field(person, "name", enginetest.String, enginetest.Private, nil)
	get := b.Method(person, "getName", enginetest.String, enginetest.Public)
	b.Body(get, b.Return(b.FieldRef(name)))

	user := b.Class("Greeter", enginetest.Public)
	p := b.Param("p", b.Type(person))
	m := b.Method(user, "size", enginetest.Int, enginetest.Public, p)
	b.Body(m, b.If(b.NotNull(b.ParamRef(p)), b.Return(b.Unresolved(b.Call(b.ParamRef(p), get), "length", true)), nil), b.Return(b.Int("0")))

	out := convert(t, rewrite.Options{}, b.File())["Person.kt"]
	assert.Contains(t, out, "    val name: String? = null\n")
	assert.NotContains(t, out, "getName")
	assert.Contains(t, out, "            return p.name!!.length\n")
}

func TestArrayLengthAndTypeMappings(t *testing.T) {
	b := ast.NewBuilder("Stats.java", "demo")
	b.Import("java.util.List")
	b.Import("org.slf4j.Logger")
	cls := b.Class("Stats", enginetest.Public)
	xs := b.Param("xs", ast.ArrayOf(enginetest.Int))
	log := b.Param("log", enginetest.Logger)
	m := b.Method(cls, "count", enginetest.Int, enginetest.Public, xs, log)
	length := &ast.Select{Meta: ast.Meta{Node: 901}, X: b.ParamRef(xs), Name: "length", Binding: ast.Binding{Unresolved: true, External: true}}
	b.Body(m, b.Return(length))
	b.Field(cls, "names", ast.Named("List", enginetest.String), enginetest.Private, nil)

	out := convert(t, rewrite.Options{TypeMappings: map[string]string{"Logger": "KLogger"}}, b.File())["Stats.kt"]
	assert.Contains(t, out, "import org.slf4j.Logger\n")
	assert.NotContains(t, out, "import java.util.List")
	assert.Contains(t, out, "fun count(xs: IntArray?, log: KLogger?): Int {\n        return xs!!.size\n")
	assert.Contains(t, out, "private val names: MutableList<String>? = null")
}

func TestLibraryCallsUseKotlinMembers(t *testing.T) {
	b := ast.NewBuilder("Text.java", "demo")
	cls := b.Class("Text", enginetest.Public)
	returns := func(name string, result, param ast.TypeRef, body func(p *ast.Param) ast.Expr) {
		p := b.Param("v", param)
		m := b.Method(cls, name, result, enginetest.Public, p)
		b.Body(m, b.Return(body(p)))
	}
	returns("len", enginetest.Int, enginetest.String, func(p *ast.Param) ast.Expr {
		return b.Unresolved(b.ParamRef(p), "length", true)
	})
	returns("count", enginetest.Int, ast.Named("List", enginetest.String), func(p *ast.Param) ast.Expr {
		return b.Unresolved(b.ParamRef(p), "size", true)
	})
	returns("keys", ast.Named("Set", enginetest.String), ast.Named("Map", enginetest.String, ast.Named("Integer")), func(p *ast.Param) ast.Expr {
		return b.Unresolved(b.ParamRef(p), "keySet", true)
	})
	returns("first", ast.Named("char"), enginetest.String, func(p *ast.Param) ast.Expr {
		return b.Unresolved(b.ParamRef(p), "charAt", true, b.Int("0"))
	})
	returns("whole", enginetest.Int, ast.Named("Integer"), func(p *ast.Param) ast.Expr {
		return b.Unresolved(b.ParamRef(p), "intValue", true)
	})
	returns("trimmed", enginetest.String, enginetest.String, func(p *ast.Param) ast.Expr {
		return b.Unresolved(b.ParamRef(p), "trim", true)
	})
	size := b.Method(cls, "size", enginetest.Int, enginetest.Public)
	b.Body(size, b.Return(b.Unresolved(b.Str("abc"), "length", true)))
	own := b.Method(cls, "total", enginetest.Int, enginetest.Public)
	b.Body(own, b.Return(b.Call(b.This(), size)))

	out := convert(t, rewrite.Options{}, b.File())["Text.kt"]
	assert.Contains(t, out, "        return v!!.length\n")
	assert.Contains(t, out, "        return v!!.size\n")
	assert.Contains(t, out, "        return v!!.keys\n")
	assert.Contains(t, out, "        return v!![0]\n")
	assert.Contains(t, out, "        return v!!.toInt()\n")
	assert.Contains(t, out, "        return v!!.trim()\n", "unlisted members keep their spelling")
	assert.Contains(t, out, "        return \"abc\".length\n")
	assert.Contains(t, out, "        return this.size()\n", "group methods are never remapped")
}
