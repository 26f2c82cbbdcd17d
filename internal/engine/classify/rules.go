package classify

import (
	"j2k/internal/engine/ast"
	"j2k/internal/engine/symbols"
	"j2k/internal/engine/target"
)

const (
	RuleAccessorUnfoldable RuleTag = "accessor-unfoldable"
	RuleSetterOnly         RuleTag = "setter-only"
	RuleAccessorPair       RuleTag = "accessor-pair"
	RuleGetterOnly         RuleTag = "getter-only"
	RuleDirectAccess       RuleTag = "direct-access"

	RuleConstructor          RuleTag = "constructor"
	RuleAccessorOverrides    RuleTag = "accessor-overrides"
	RuleAccessorOfField      RuleTag = "accessor-of-plain-field"
	RuleGetter               RuleTag = "getter"
	RuleSetter               RuleTag = "setter"
	RuleMethod               RuleTag = "method"

	RuleInterface            RuleTag = "interface"
	RuleNoStaticMembers      RuleTag = "no-static-members"
	RuleStaticButConstructed RuleTag = "all-static-constructed"
	RuleAllStatic            RuleTag = "all-static"
	RuleMixedMembers         RuleTag = "mixed-members"

	RuleParam RuleTag = "parameter"
	RuleLocal RuleTag = "local"

	// Downgrades applied by the consistency checker.
	RuleConflict RuleTag = "conflict"
)

const (
	NullPrimitive          RuleTag = "primitive"
	NullAnnotated          RuleTag = "annotated"
	NullAssigned           RuleTag = "assigned-null"
	NullFromParam          RuleTag = "assigned-nullable-param"
	NullDefinitelyAssigned RuleTag = "definitely-assigned"
	NullImplicitDefault    RuleTag = "implicit-default"
	NullUnguardedRead      RuleTag = "unguarded-read"
	NullGuardedReads       RuleTag = "guarded-reads"
	NullNoReads            RuleTag = "no-reads"
	NullArgument           RuleTag = "null-argument"
	NullReturnsNull        RuleTag = "returns-null"
	NullReturnsField       RuleTag = "returns-field"
	NullReturnsNonNull     RuleTag = "returns-non-null"
	NullNoBody             RuleTag = "no-body"
	NullUnproven           RuleTag = "unproven-return"
	NullLocalWrites        RuleTag = "non-null-writes"
	NullOverride           RuleTag = "override-unified"
)

var (
	nullableAnnotations = []string{"Nullable", "CheckForNull"}
	nonNullAnnotations  = []string{"NotNull", "NonNull", "Nonnull"}
)

// env is the read-only evidence shared by all rule workers.
type env struct {
	t     *symbols.Table
	acc   *accessorIndex
	facts *Facts
}

// rule is one ordered, tagged classification step; the first that matches
// decides the shape.
type rule struct {
	tag   RuleTag
	match func(e *env, d *symbols.Declaration) (Shape, bool)
}

// fieldRules read accessor and write evidence only. Reflective,
// address-of and method-value uses are left to the consistency checker,
// which downgrades the property and records the conflict.
var fieldRules = []rule{
	{RuleAccessorUnfoldable, func(e *env, d *symbols.Declaration) (Shape, bool) {
		for _, m := range e.accessorsOf(d.ID) {
			if !e.foldable(m) {
				return ShapePlainField, true
			}
		}
		return 0, false
	}},
	{RuleSetterOnly, func(e *env, d *symbols.Declaration) (Shape, bool) {
		_, g := e.acc.getter[d.ID]
		_, s := e.acc.setter[d.ID]
		return ShapePlainField, s && !g
	}},
	{RuleAccessorPair, func(e *env, d *symbols.Declaration) (Shape, bool) {
		_, g := e.acc.getter[d.ID]
		_, s := e.acc.setter[d.ID]
		return ShapeMutableProperty, g && s
	}},
	{RuleGetterOnly, func(e *env, d *symbols.Declaration) (Shape, bool) {
		if _, g := e.acc.getter[d.ID]; !g {
			return 0, false
		}
		return e.writableShape(d), true
	}},
	{RuleDirectAccess, func(e *env, d *symbols.Declaration) (Shape, bool) {
		return e.writableShape(d), true
	}},
}

var methodRules = []rule{
	{RuleConstructor, func(e *env, d *symbols.Declaration) (Shape, bool) {
		return ShapeConstructor, d.Kind == symbols.KindConstructor
	}},
	{RuleAccessorOverrides, func(e *env, d *symbols.Declaration) (Shape, bool) {
		_, ok := e.acc.byMethod[d.ID]
		return ShapeMethod, ok && e.overrides(d)
	}},
	{RuleAccessorOfField, func(e *env, d *symbols.Declaration) (Shape, bool) {
		acc, ok := e.acc.byMethod[d.ID]
		if !ok {
			return 0, false
		}
		field, _ := e.t.Lookup(acc.field)
		shape, _ := e.fieldShape(field)
		return ShapeMethod, !shape.IsProperty()
	}},
	{RuleGetter, func(e *env, d *symbols.Declaration) (Shape, bool) {
		acc, ok := e.acc.byMethod[d.ID]
		return ShapeGetter, ok && acc.getter
	}},
	{RuleSetter, func(e *env, d *symbols.Declaration) (Shape, bool) {
		acc, ok := e.acc.byMethod[d.ID]
		return ShapeSetter, ok && !acc.getter
	}},
	{RuleMethod, func(e *env, d *symbols.Declaration) (Shape, bool) {
		return ShapeMethod, true
	}},
}

var typeRules = []rule{
	{RuleInterface, func(e *env, d *symbols.Declaration) (Shape, bool) {
		return ShapeInterface, d.IsInterface()
	}},
	{RuleNoStaticMembers, func(e *env, d *symbols.Declaration) (Shape, bool) {
		statics, _ := e.memberProfile(d)
		return ShapeClass, statics == 0
	}},
	{RuleStaticButConstructed, func(e *env, d *symbols.Declaration) (Shape, bool) {
		_, instances := e.memberProfile(d)
		if instances > 0 {
			return 0, false
		}
		constructed := d.Modifiers.Abstract || len(e.t.Subtypes(d.ID)) > 0 ||
			hasContext(e.t.References(d.ID), symbols.CtxInstantiate, symbols.CtxSubclass)
		return ShapeCompanionHolder, constructed
	}},
	{RuleAllStatic, func(e *env, d *symbols.Declaration) (Shape, bool) {
		_, instances := e.memberProfile(d)
		return ShapeObject, instances == 0
	}},
	{RuleMixedMembers, func(e *env, d *symbols.Declaration) (Shape, bool) {
		return ShapeCompanionHolder, true
	}},
}

func apply(rules []rule, e *env, d *symbols.Declaration) (Shape, RuleTag) {
	for _, r := range rules {
		if shape, ok := r.match(e, d); ok {
			return shape, r.tag
		}
	}
	return ShapeUnknown, ""
}

func (e *env) fieldShape(d *symbols.Declaration) (Shape, RuleTag) {
	return apply(fieldRules, e, d)
}

// decide produces the decision of one declaration from the shared evidence.
func (e *env) decide(d *symbols.Declaration) Decision {
	dec := Decision{Symbol: d.ID, Kind: d.Kind, Confident: true, Nullability: NotApplicable}
	switch d.Kind {
	case symbols.KindField:
		dec.Shape, dec.Rule = e.fieldShape(d)
		if dec.Shape.IsProperty() {
			dec.Getter = e.acc.getter[d.ID]
			dec.Setter = e.acc.setter[d.ID]
		}
		dec.Const = isConstant(d)
		dec.Nullability, dec.NullRule, dec.Confident = e.fieldNull(d)
		dec.Visibility = RequiredVisibility(e.t, d)
	case symbols.KindMethod, symbols.KindConstructor:
		dec.Shape, dec.Rule = apply(methodRules, e, d)
		if dec.Shape.IsFolded() {
			dec.Property = e.acc.byMethod[d.ID].field
		}
		if d.Kind == symbols.KindMethod {
			dec.Nullability, dec.NullRule, dec.Confident = e.returnNull(d)
		}
		dec.Visibility = RequiredVisibility(e.t, d)
	case symbols.KindType:
		dec.Shape, dec.Rule = apply(typeRules, e, d)
		dec.Visibility = RequiredVisibility(e.t, d)
	case symbols.KindParam:
		dec.Shape, dec.Rule = ShapeValue, RuleParam
		if e.facts.Reassigned(d.ID) {
			dec.Shape = ShapeVariable
		}
		dec.Nullability, dec.NullRule, dec.Confident = e.paramNull(d)
	case symbols.KindLocal:
		dec.Shape, dec.Rule = ShapeValue, RuleLocal
		if e.facts.Reassigned(d.ID) {
			dec.Shape = ShapeVariable
		}
		dec.Nullability, dec.NullRule = e.localNull(d)
	}
	dec.base = dec.Visibility
	return dec
}

func hasContext(refs []*symbols.Reference, ctxs ...symbols.Context) bool {
	for _, r := range refs {
		for _, c := range ctxs {
			if r.Context == c {
				return true
			}
		}
	}
	return false
}

func (e *env) accessorsOf(field ast.SymbolID) []*symbols.Declaration {
	var out []*symbols.Declaration
	for _, id := range []ast.SymbolID{e.acc.getter[field], e.acc.setter[field]} {
		if d, ok := e.t.Lookup(id); ok {
			out = append(out, d)
		}
	}
	return out
}

func (e *env) overrides(d *symbols.Declaration) bool {
	return len(e.t.Overrides(d.ID)) > 0 || d.Modifiers.Has("Override")
}

// foldable reports whether an accessor can become part of a property.
// Method-value and reflective uses of it are reconciled by the consistency
// checker.
func (e *env) foldable(m *symbols.Declaration) bool {
	return !e.overrides(m)
}

// writableShape picks var or val for a property from the writes it sees.
func (e *env) writableShape(d *symbols.Declaration) Shape {
	var ctorWrites int
	for _, r := range e.t.References(d.ID) {
		if !r.Context.Writes() {
			continue
		}
		if !InitWrite(d, r) {
			return ShapeMutableProperty
		}
		if r.InMethod != "" {
			ctorWrites++
			if r.Context != symbols.CtxWrite || !e.facts.ctorTop[r.Site] {
				return ShapeMutableProperty
			}
		}
	}
	if ctorWrites > 0 && (d.Field.Init != nil || !e.facts.AssignedInEveryConstructor(e.t, d.Owner, d.ID)) {
		return ShapeMutableProperty
	}
	return ShapeReadOnlyProperty
}

// InitWrite reports whether r writes d from an initializer or constructor
// of its own instance.
func InitWrite(d *symbols.Declaration, r *symbols.Reference) bool {
	if !r.InInit || r.InType != d.Owner {
		return false
	}
	if d.Static() {
		return r.InMethod == ""
	}
	return r.ThisReceiver
}

// memberProfile counts static and instance members of a type. A private
// no-argument constructor with an empty body is the usual utility-class
// guard and counts as neither.
func (e *env) memberProfile(d *symbols.Declaration) (statics, instances int) {
	for _, m := range e.t.Members(d.ID) {
		switch m.Kind {
		case symbols.KindConstructor:
			if m.Modifiers.Visibility == ast.VisPrivate && m.Arity == 0 && len(m.Func.Body.Stmts) == 0 {
				continue
			}
			instances++
		case symbols.KindType:
			if !m.Static() {
				instances++
			}
		default:
			if m.Static() {
				statics++
			} else {
				instances++
			}
		}
	}
	return statics, instances
}

func isConstant(d *symbols.Declaration) bool {
	if !d.Static() || !d.Modifiers.Final || d.Field.Init == nil {
		return false
	}
	if !d.Type.IsPrimitive() && d.Type.String() != "String" {
		return false
	}
	switch init := ast.Unparen(d.Field.Init).(type) {
	case *ast.Literal:
		return init.Kind != ast.LitNull
	case *ast.Unary:
		lit, ok := ast.Unparen(init.X).(*ast.Literal)
		return ok && init.Op == "-" && lit.Kind != ast.LitNull
	}
	return false
}

// RequiredVisibility maps the declared visibility through the fixed table
// and widens it to what the group's use sites need.
func RequiredVisibility(t *symbols.Table, d *symbols.Declaration) target.Visibility {
	vis := mapVisibility(d.Modifiers.Visibility)
	if owner, ok := t.Lookup(d.Owner); ok && owner.IsInterface() && d.Kind != symbols.KindType {
		return target.Public
	}
	refs := t.References(d.ID)
	if d.Kind == symbols.KindConstructor {
		refs = nil
		for _, r := range t.References(d.Owner) {
			if r.Context == symbols.CtxInstantiate {
				refs = append(refs, r)
			}
		}
		refs = append(refs, t.References(d.ID)...)
	}
	if d.Owner == "" {
		return vis
	}
	nested := len(t.Enclosing(d.Owner)) > 1
	for _, r := range refs {
		switch d.Modifiers.Visibility {
		case ast.VisProtected:
			if r.Package == d.Package && !subtypeSite(t, r, d.Owner) {
				vis = target.Widen(vis, target.Public)
			}
		case ast.VisPrivate:
			if nested && !within(t, r.InType, d.Owner) {
				vis = target.Widen(vis, target.Internal)
			}
		}
	}
	return vis
}

func mapVisibility(v ast.Visibility) target.Visibility {
	switch v {
	case ast.VisPrivate:
		return target.Private
	case ast.VisProtected:
		return target.Protected
	case ast.VisPackage:
		return target.Internal
	}
	return target.Public
}

// subtypeSite reports whether the site is inside a subtype of owner or a type
// nested in one.
func subtypeSite(t *symbols.Table, r *symbols.Reference, owner ast.SymbolID) bool {
	for _, enc := range t.Enclosing(r.InType) {
		if t.IsSubtype(enc, owner) {
			return true
		}
	}
	return false
}

// within reports whether site is scope or nested inside it.
func within(t *symbols.Table, site, scope ast.SymbolID) bool {
	for _, enc := range t.Enclosing(site) {
		if enc == scope {
			return true
		}
	}
	return false
}
