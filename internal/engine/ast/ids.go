package ast

import (
	"strconv"
	"strings"
)

// Identity scheme, shared by every front-end and by test builders:
//
//	type         pkg.Outer.Inner
//	field        pkg.Outer#name
//	method       pkg.Outer#name(int,String)
//	constructor  pkg.Outer#<init>(int)
//	parameter    pkg.Outer#name(int)$p
//	local        pkg.Outer#name(int)$v@12
const (
	memberSep = "#"
	paramSep  = "$"
	ctorName  = "<init>"
)

func TypeID(pkg string, names ...string) SymbolID {
	parts := make([]string, 0, len(names)+1)
	if pkg != "" {
		parts = append(parts, pkg)
	}
	parts = append(parts, names...)
	return SymbolID(strings.Join(parts, "."))
}

// NestedTypeID appends name to an enclosing type identity.
func NestedTypeID(outer SymbolID, name string) SymbolID {
	return SymbolID(string(outer) + "." + name)
}

func FieldID(owner SymbolID, name string) SymbolID {
	return SymbolID(string(owner) + memberSep + name)
}

func MethodID(owner SymbolID, name string, params ...string) SymbolID {
	return SymbolID(string(owner) + memberSep + name + "(" + strings.Join(params, ",") + ")")
}

func CtorID(owner SymbolID, params ...string) SymbolID {
	return MethodID(owner, ctorName, params...)
}

func ParamID(method SymbolID, name string) SymbolID {
	return SymbolID(string(method) + paramSep + name)
}

func LocalID(method SymbolID, name string, node NodeID) SymbolID {
	return SymbolID(string(method) + paramSep + name + "@" + strconv.Itoa(int(node)))
}

// ParamTypes returns the erased parameter type names used in a method identity.
func ParamTypes(params []*Param) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Type.Erasure()
	}
	return out
}

// Owner returns the type part of a member, parameter or local identity.
func (id SymbolID) Owner() SymbolID {
	s := string(id)
	if i := strings.Index(s, memberSep); i >= 0 {
		return SymbolID(s[:i])
	}
	return ""
}

// Simple returns the unqualified name of the declaration.
func (id SymbolID) Simple() string {
	s := string(id)
	if i := strings.LastIndex(s, paramSep); i >= 0 {
		s = s[i+1:]
		if j := strings.Index(s, "@"); j >= 0 {
			s = s[:j]
		}
		return s
	}
	if i := strings.Index(s, memberSep); i >= 0 {
		s = s[i+1:]
		if j := strings.Index(s, "("); j >= 0 {
			s = s[:j]
		}
		return s
	}
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}
