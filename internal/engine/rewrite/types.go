package rewrite

import (
	"strconv"
	"strings"

	"j2k/internal/engine/ast"
	"j2k/internal/engine/target"
)

var primitiveTypes = map[string]string{
	"int":     "Int",
	"long":    "Long",
	"short":   "Short",
	"byte":    "Byte",
	"char":    "Char",
	"boolean": "Boolean",
	"float":   "Float",
	"double":  "Double",
	"void":    "Unit",
}

var primitiveArrays = map[string]string{
	"int":     "IntArray",
	"long":    "LongArray",
	"short":   "ShortArray",
	"byte":    "ByteArray",
	"char":    "CharArray",
	"boolean": "BooleanArray",
	"float":   "FloatArray",
	"double":  "DoubleArray",
}

// builtinTypes maps JDK types onto their Kotlin counterparts. Keys are
// matched by qualified name first, then by simple name.
var builtinTypes = map[string]string{
	"Integer":      "Int",
	"Character":    "Char",
	"Long":         "Long",
	"Short":        "Short",
	"Byte":         "Byte",
	"Boolean":      "Boolean",
	"Float":        "Float",
	"Double":       "Double",
	"String":       "String",
	"Object":       "Any",
	"CharSequence": "CharSequence",
	"Number":       "Number",
	"Comparable":   "Comparable",
	"Iterable":     "MutableIterable",
	"Iterator":     "MutableIterator",
	"Collection":   "MutableCollection",
	"List":         "MutableList",
	"Set":          "MutableSet",
	"Map":          "MutableMap",
	"Throwable":    "Throwable",
}

// implicitImports are JDK imports made redundant by the Kotlin builtins.
var implicitImports = map[string]bool{
	"java.util.List":       true,
	"java.util.Set":        true,
	"java.util.Map":        true,
	"java.util.Collection": true,
	"java.util.Iterator":   true,
	"java.util.ArrayList":  true,
	"java.util.HashMap":    true,
	"java.util.HashSet":    true,
}

// memberKind says how a library call is spelled in Kotlin.
type memberKind int

const (
	memberRename memberKind = iota
	memberProperty
	memberIndex
)

type memberMapping struct {
	kind memberKind
	name string
}

type memberKey struct {
	name  string
	arity int
}

var (
	sizeMembers   = map[memberKey]memberMapping{{"size", 0}: {memberProperty, "size"}}
	numberMembers = map[memberKey]memberMapping{
		{"intValue", 0}:    {memberRename, "toInt"},
		{"longValue", 0}:   {memberRename, "toLong"},
		{"shortValue", 0}:  {memberRename, "toShort"},
		{"byteValue", 0}:   {memberRename, "toByte"},
		{"floatValue", 0}:  {memberRename, "toFloat"},
		{"doubleValue", 0}: {memberRename, "toDouble"},
	}
	charSequenceMembers = map[memberKey]memberMapping{
		{"length", 0}: {memberProperty, "length"},
		{"charAt", 1}: {memberIndex, ""},
	}
	mapMembers = map[memberKey]memberMapping{
		{"size", 0}:     {memberProperty, "size"},
		{"keySet", 0}:   {memberProperty, "keys"},
		{"values", 0}:   {memberProperty, "values"},
		{"entrySet", 0}: {memberProperty, "entries"},
	}
)

// builtinMembers maps calls on library receivers, keyed by the receiver's
// Kotlin type, onto Kotlin members. Calls not listed keep their Java spelling.
var builtinMembers = map[string]map[memberKey]memberMapping{
	"String":            charSequenceMembers,
	"CharSequence":      charSequenceMembers,
	"MutableCollection": sizeMembers,
	"MutableList":       sizeMembers,
	"MutableSet":        sizeMembers,
	"MutableMap":        mapMembers,
	"Number":            numberMembers,
	"Int":               numberMembers,
	"Long":              numberMembers,
	"Short":             numberMembers,
	"Byte":              numberMembers,
	"Float":             numberMembers,
	"Double":            numberMembers,
	"Throwable": {
		{"getMessage", 0}: {memberProperty, "message"},
		{"getCause", 0}:   {memberProperty, "cause"},
	},
	"Any": {
		{"getClass", 0}: {memberProperty, "javaClass"},
	},
}

func lookupMember(receiver, name string, arity int) (memberMapping, bool) {
	m, ok := builtinMembers[receiver][memberKey{name, arity}]
	return m, ok
}

type typeMapper struct {
	custom map[string]string
}

func (m typeMapper) lookup(name string) (string, bool) {
	if k, ok := m.custom[name]; ok {
		return k, true
	}
	simple := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		simple = name[i+1:]
	}
	if k, ok := m.custom[simple]; ok {
		return k, true
	}
	if strings.HasPrefix(name, "java.lang.") || !strings.Contains(name, ".") {
		if k, ok := builtinTypes[simple]; ok {
			return k, true
		}
	}
	if strings.HasPrefix(name, "java.util.") {
		if k, ok := builtinTypes[simple]; ok {
			return k, true
		}
	}
	return "", false
}

// mapType translates t; nullable marks the outermost type only.
func (m typeMapper) mapType(t ast.TypeRef, nullable bool) target.Type {
	out := m.element(t, t.Dims)
	out.Nullable = nullable && t.IsReference()
	return out
}

func (m typeMapper) element(t ast.TypeRef, dims int) target.Type {
	if dims > 0 {
		if dims == 1 {
			if arr, ok := primitiveArrays[t.Name]; ok {
				return target.Type{Name: arr}
			}
		}
		return target.Type{Name: "Array", Args: []target.Type{m.element(t, dims-1)}}
	}
	if k, ok := primitiveTypes[t.Name]; ok {
		return target.Type{Name: k}
	}
	name := t.Name
	if k, ok := m.lookup(name); ok {
		name = k
	}
	out := target.Type{Name: name}
	for _, a := range t.Args {
		out.Args = append(out.Args, m.element(a, a.Dims))
	}
	return out
}

func (m typeMapper) imports(in []ast.Import) []string {
	var out []string
	for _, imp := range in {
		if implicitImports[imp.Path] || strings.HasPrefix(imp.Path, "java.lang.") && !imp.Static {
			continue
		}
		path := imp.Path
		if imp.Wildcard {
			path += ".*"
		}
		out = append(out, path)
	}
	return out
}

// literal rewrites a Java literal into Kotlin syntax.
func literal(l *ast.Literal) string {
	text := l.Text
	switch l.Kind {
	case ast.LitString:
		return strings.ReplaceAll(text, "$", `\$`)
	case ast.LitLong:
		if strings.HasSuffix(text, "l") {
			return text[:len(text)-1] + "L"
		}
	case ast.LitDouble:
		text = strings.TrimRight(text, "dD")
		if !strings.ContainsAny(text, ".eEx") {
			text += ".0"
		}
	case ast.LitInt:
		if len(text) > 1 && text[0] == '0' && isOctal(text[1:]) {
			if v, err := strconv.ParseInt(text[1:], 8, 64); err == nil {
				return strconv.FormatInt(v, 10)
			}
		}
	}
	return text
}

func isOctal(s string) bool {
	for _, r := range s {
		if r < '0' || r > '7' {
			return false
		}
	}
	return s != ""
}

// zeroValue is the Kotlin literal of the default a Java field starts with.
func zeroValue(t target.Type) target.Expr {
	if t.Nullable {
		return &target.Lit{Text: "null"}
	}
	switch t.Name {
	case "Int", "Short", "Byte":
		return &target.Lit{Text: "0"}
	case "Long":
		return &target.Lit{Text: "0L"}
	case "Float":
		return &target.Lit{Text: "0.0f"}
	case "Double":
		return &target.Lit{Text: "0.0"}
	case "Boolean":
		return &target.Lit{Text: "false"}
	case "Char":
		return &target.Lit{Text: `'\u0000'`}
	}
	return nil
}

// annotations drops the markers the target encodes in syntax and rewrites
// array arguments into bracket form.
func annotations(in []ast.Annotation) []target.Annotation {
	var out []target.Annotation
	for _, a := range in {
		name := a.Name
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		if droppedAnnotations[name] {
			continue
		}
		out = append(out, target.Annotation{Name: a.Name, Args: annotationArgs(a.Args)})
	}
	return out
}

var droppedAnnotations = map[string]bool{
	"Override":            true,
	"Nullable":            true,
	"CheckForNull":        true,
	"NotNull":             true,
	"NonNull":             true,
	"Nonnull":             true,
	"FunctionalInterface": true,
}

func annotationArgs(args string) string {
	var b strings.Builder
	var quote byte
	for i := 0; i < len(args); i++ {
		c := args[i]
		switch {
		case quote != 0:
			if c == '\\' && i+1 < len(args) {
				b.WriteByte(c)
				i++
				c = args[i]
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '{':
			c = '['
		case c == '}':
			c = ']'
		}
		b.WriteByte(c)
	}
	return b.String()
}
