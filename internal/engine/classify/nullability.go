package classify

import (
	"j2k/internal/engine/ast"
	"j2k/internal/engine/symbols"
)

func annotated(mods ast.Modifiers) (Nullability, bool) {
	for _, a := range nullableAnnotations {
		if mods.Has(a) {
			return Nullable, true
		}
	}
	for _, a := range nonNullAnnotations {
		if mods.Has(a) {
			return NonNull, true
		}
	}
	return NullUnknown, false
}

// readVerdict classifies a declaration by its read sites.
func (e *env) readVerdict(reads []*symbols.Reference) (Nullability, RuleTag, bool) {
	if len(reads) == 0 {
		return NullUnknown, NullNoReads, false
	}
	for _, r := range reads {
		if !e.facts.Guarded(r.Site) {
			return Nullable, NullUnguardedRead, true
		}
	}
	return NonNull, NullGuardedReads, true
}

// fieldReads returns the read sites of a field: direct loads outside its
// own accessors and calls of its foldable getter.
func (e *env) fieldReads(d *symbols.Declaration) []*symbols.Reference {
	getter, setter := e.acc.getter[d.ID], e.acc.setter[d.ID]
	var reads []*symbols.Reference
	for _, r := range e.t.References(d.ID) {
		if !r.Context.Reads() || (r.InMethod != "" && (r.InMethod == getter || r.InMethod == setter)) {
			continue
		}
		reads = append(reads, r)
	}
	if g, ok := e.t.Lookup(getter); ok && e.foldable(g) {
		for _, r := range e.t.References(getter) {
			if r.Context == symbols.CtxGetterCall {
				reads = append(reads, r)
			}
		}
	}
	return reads
}

func (e *env) fieldNull(d *symbols.Declaration) (Nullability, RuleTag, bool) {
	if !d.Type.IsReference() {
		return NotApplicable, NullPrimitive, true
	}
	if n, ok := annotated(d.Modifiers); ok {
		return n, NullAnnotated, true
	}
	if e.facts.nullAssigned[d.ID] {
		return Nullable, NullAssigned, true
	}
	for _, p := range e.facts.assignedFrom[d.ID] {
		if pd, ok := e.t.Lookup(p); ok {
			if n, _, _ := e.paramNull(pd); n.Marked() {
				return Nullable, NullFromParam, true
			}
		}
	}
	initialized := d.Field.Init != nil
	if !initialized && !d.Static() {
		initialized = e.facts.AssignedInEveryConstructor(e.t, d.Owner, d.ID)
	}
	if d.Modifiers.Final && initialized && !e.facts.unsafeWrite[d.ID] {
		return NonNull, NullDefinitelyAssigned, true
	}
	if !initialized {
		return Nullable, NullImplicitDefault, true
	}
	return e.readVerdict(e.fieldReads(d))
}

func (e *env) paramNull(d *symbols.Declaration) (Nullability, RuleTag, bool) {
	if !d.Type.IsReference() {
		return NotApplicable, NullPrimitive, true
	}
	if n, ok := annotated(d.Modifiers); ok {
		return n, NullAnnotated, true
	}
	if e.facts.nullArgs[d.ID] {
		return Nullable, NullArgument, true
	}
	if e.facts.nullAssigned[d.ID] {
		return Nullable, NullAssigned, true
	}
	var reads []*symbols.Reference
	for _, r := range e.t.References(d.ID) {
		if r.Context.Reads() {
			reads = append(reads, r)
		}
	}
	return e.readVerdict(reads)
}

func (e *env) returnNull(d *symbols.Declaration) (Nullability, RuleTag, bool) {
	if !d.Type.IsReference() {
		return NotApplicable, NullPrimitive, true
	}
	if n, ok := annotated(d.Modifiers); ok {
		return n, NullAnnotated, true
	}
	if d.Func.Body == nil {
		return NullUnknown, NullNoBody, false
	}
	rf := e.facts.returns[d.ID]
	if rf == nil || rf.count == 0 {
		return NullUnknown, NullUnproven, false
	}
	if rf.null {
		return Nullable, NullReturnsNull, true
	}
	if rf.field != "" && !rf.mixed {
		if f, ok := e.t.Lookup(rf.field); ok {
			n, _, confident := e.fieldNull(f)
			return n, NullReturnsField, confident
		}
	}
	if rf.nonNull == rf.count {
		return NonNull, NullReturnsNonNull, true
	}
	return NullUnknown, NullUnproven, false
}

func (e *env) localNull(d *symbols.Declaration) (Nullability, RuleTag) {
	if !d.Type.IsReference() {
		return NotApplicable, NullPrimitive
	}
	if e.facts.nullAssigned[d.ID] {
		return Nullable, NullAssigned
	}
	return NonNull, NullLocalWrites
}
