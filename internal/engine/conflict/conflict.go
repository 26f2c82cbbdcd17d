// Package conflict reconciles classification decisions with the evidence at
// every use site before anything is rewritten. A violated decision is
// downgraded one step toward its most conservative form and recorded; the
// checker iterates until no check fires.
package conflict

import (
	"fmt"

	coreerrors "j2k/internal/core/errors"
	"j2k/internal/engine/ast"
	"j2k/internal/engine/classify"
	"j2k/internal/engine/symbols"
)

type Record struct {
	Symbol ast.SymbolID
	Before classify.Decision
	After  classify.Decision
	Sites  []symbols.SiteKey
	Reason string
}

// Err converts the record into a CONFLICT domain error.
func (r Record) Err() error {
	msg := fmt.Sprintf("%s: %s downgraded to %s", r.Reason, r.Before.Shape, r.After.Shape)
	if r.Before.Shape == r.After.Shape {
		msg = fmt.Sprintf("%s: %s", r.Reason, describe(r.Before, r.After))
	}
	return coreerrors.AddContext(coreerrors.New(coreerrors.CodeConflict, msg), coreerrors.CtxSymbol, string(r.Symbol))
}

func describe(before, after classify.Decision) string {
	if before.Nullability != after.Nullability {
		return fmt.Sprintf("%s downgraded to %s", before.Nullability, after.Nullability)
	}
	return fmt.Sprintf("visibility %s widened to %s", before.Visibility, after.Visibility)
}

// check inspects one decision; when it fires it returns the downgraded
// decision, the offending sites and a reason.
type check func(c *checker, decl *symbols.Declaration, dec classify.Decision) (classify.Decision, []symbols.SiteKey, string, bool)

var checks = []check{
	propertyVsIncompatibleUse,
	readOnlyVsExternalWrite,
	propertyVsUnfoldedAccessor,
	foldedAccessorVsProperty,
	foldedAccessorVsIncompatibleUse,
	foldedAccessorVsOverride,
	objectVsConstruction,
	nonNullVsEvidence,
	visibilityFloor,
}

const maxRounds = 32

type checker struct {
	t     *symbols.Table
	d     *classify.Decisions
	facts *classify.Facts
}

// Check runs every consistency check to a fixed point. Downgrades only move
// down the conservativeness order, so the loop terminates.
func Check(t *symbols.Table, d *classify.Decisions) []Record {
	c := &checker{t: t, d: d, facts: d.Facts()}
	var records []Record
	for round := 0; round < maxRounds; round++ {
		changed := false
		for _, decl := range t.Declarations() {
			dec, ok := d.Get(decl.ID)
			if !ok {
				continue
			}
			for _, chk := range checks {
				after, sites, reason, fired := chk(c, decl, dec)
				if !fired {
					continue
				}
				d.Set(after)
				records = append(records, Record{Symbol: decl.ID, Before: dec, After: after, Sites: sites, Reason: reason})
				dec = after
				changed = true
			}
		}
		classify.Finalize(t, d)
		if !changed {
			break
		}
	}
	return records
}

func sitesOf(refs []*symbols.Reference, ctxs ...symbols.Context) []symbols.SiteKey {
	var out []symbols.SiteKey
	for _, r := range refs {
		for _, c := range ctxs {
			if r.Context == c {
				out = append(out, r.Site)
				break
			}
		}
	}
	return out
}

func downgrade(dec classify.Decision, shape classify.Shape) classify.Decision {
	dec.Shape = shape
	dec.Rule = classify.RuleConflict
	if !shape.IsFolded() {
		dec.Property = ""
	}
	if !shape.IsProperty() {
		dec.HasSetterVisibility = false
	}
	return dec
}

func propertyVsIncompatibleUse(c *checker, decl *symbols.Declaration, dec classify.Decision) (classify.Decision, []symbols.SiteKey, string, bool) {
	if decl.Kind != symbols.KindField || !dec.Shape.IsProperty() {
		return dec, nil, "", false
	}
	sites := sitesOf(c.t.References(decl.ID), symbols.CtxReflective, symbols.CtxAddressOf)
	if len(sites) == 0 {
		return dec, nil, "", false
	}
	after := downgrade(dec, classify.ShapePlainField)
	after.Getter, after.Setter = "", ""
	return after, sites, "property accessed reflectively or by address", true
}

func readOnlyVsExternalWrite(c *checker, decl *symbols.Declaration, dec classify.Decision) (classify.Decision, []symbols.SiteKey, string, bool) {
	if decl.Kind != symbols.KindField || dec.Shape != classify.ShapeReadOnlyProperty {
		return dec, nil, "", false
	}
	var sites []symbols.SiteKey
	for _, r := range c.t.References(decl.ID) {
		if r.Context.Writes() && !classify.InitWrite(decl, r) {
			sites = append(sites, r.Site)
		}
	}
	if dec.Setter != "" {
		sites = append(sites, sitesOf(c.t.References(dec.Setter), symbols.CtxSetterCall)...)
	}
	if len(sites) == 0 {
		return dec, nil, "", false
	}
	return downgrade(dec, classify.ShapeMutableProperty), sites, "read-only property written outside initialization", true
}

func propertyVsUnfoldedAccessor(c *checker, decl *symbols.Declaration, dec classify.Decision) (classify.Decision, []symbols.SiteKey, string, bool) {
	if decl.Kind != symbols.KindField || !dec.Shape.IsProperty() {
		return dec, nil, "", false
	}
	for _, acc := range []ast.SymbolID{dec.Getter, dec.Setter} {
		if acc == "" {
			continue
		}
		if ad, ok := c.d.Get(acc); ok && !ad.Shape.IsFolded() {
			after := downgrade(dec, classify.ShapePlainField)
			after.Getter, after.Setter = "", ""
			return after, nil, "accessor " + acc.Simple() + " kept as a method", true
		}
	}
	return dec, nil, "", false
}

func foldedAccessorVsProperty(c *checker, decl *symbols.Declaration, dec classify.Decision) (classify.Decision, []symbols.SiteKey, string, bool) {
	if !dec.Shape.IsFolded() {
		return dec, nil, "", false
	}
	if field, ok := c.d.Get(dec.Property); ok && field.Shape.IsProperty() {
		return dec, nil, "", false
	}
	return downgrade(dec, classify.ShapeMethod), nil, "property " + dec.Property.Simple() + " downgraded", true
}

func foldedAccessorVsIncompatibleUse(c *checker, decl *symbols.Declaration, dec classify.Decision) (classify.Decision, []symbols.SiteKey, string, bool) {
	if !dec.Shape.IsFolded() {
		return dec, nil, "", false
	}
	sites := sitesOf(c.t.References(decl.ID), symbols.CtxMethodRef, symbols.CtxReflective, symbols.CtxInvoke)
	if len(sites) == 0 {
		return dec, nil, "", false
	}
	return downgrade(dec, classify.ShapeMethod), sites, "accessor used as a method value", true
}

func foldedAccessorVsOverride(c *checker, decl *symbols.Declaration, dec classify.Decision) (classify.Decision, []symbols.SiteKey, string, bool) {
	if !dec.Shape.IsFolded() || len(c.t.Overrides(decl.ID)) == 0 {
		return dec, nil, "", false
	}
	return downgrade(dec, classify.ShapeMethod), nil, "accessor overrides or is overridden", true
}

func objectVsConstruction(c *checker, decl *symbols.Declaration, dec classify.Decision) (classify.Decision, []symbols.SiteKey, string, bool) {
	if dec.Shape != classify.ShapeObject {
		return dec, nil, "", false
	}
	sites := sitesOf(c.t.References(decl.ID), symbols.CtxInstantiate, symbols.CtxSubclass)
	if len(sites) == 0 && len(c.t.Subtypes(decl.ID)) == 0 {
		return dec, nil, "", false
	}
	return downgrade(dec, classify.ShapeCompanionHolder), sites, "object instantiated or subclassed", true
}

func nonNullVsEvidence(c *checker, decl *symbols.Declaration, dec classify.Decision) (classify.Decision, []symbols.SiteKey, string, bool) {
	if dec.Nullability != classify.NonNull || dec.NullRule == classify.NullAnnotated || dec.NullRule == classify.NullDefinitelyAssigned {
		return dec, nil, "", false
	}
	var sites []symbols.SiteKey
	reason := "non-null declaration read without a guard"
	switch decl.Kind {
	case symbols.KindField, symbols.KindParam:
		if c.facts.NullAssigned(decl.ID) {
			reason = "non-null declaration assigned null"
			sites = append(sites, symbols.SiteKey{File: decl.File, Node: decl.Node()})
			break
		}
		for _, r := range c.reads(decl, dec) {
			if !c.facts.Guarded(r.Site) {
				sites = append(sites, r.Site)
			}
		}
	case symbols.KindMethod:
		if c.facts.ReturnsNull(decl.ID) {
			reason = "non-null method returns null"
			sites = append(sites, symbols.SiteKey{File: decl.File, Node: decl.Node()})
		}
	}
	if len(sites) == 0 {
		return dec, nil, "", false
	}
	dec.Nullability, dec.NullRule = classify.Nullable, classify.RuleConflict
	return dec, sites, reason, true
}

// reads lists the read sites of a field or parameter, including calls of a
// folded getter.
func (c *checker) reads(decl *symbols.Declaration, dec classify.Decision) []*symbols.Reference {
	var out []*symbols.Reference
	for _, r := range c.t.References(decl.ID) {
		if !r.Context.Reads() {
			continue
		}
		if r.InMethod != "" && (r.InMethod == dec.Getter || r.InMethod == dec.Setter) {
			continue
		}
		out = append(out, r)
	}
	if g, ok := c.d.Get(dec.Getter); ok && g.Shape == classify.ShapeGetter {
		for _, r := range c.t.References(dec.Getter) {
			if r.Context == symbols.CtxGetterCall {
				out = append(out, r)
			}
		}
	}
	return out
}

func visibilityFloor(c *checker, decl *symbols.Declaration, dec classify.Decision) (classify.Decision, []symbols.SiteKey, string, bool) {
	switch decl.Kind {
	case symbols.KindParam, symbols.KindLocal:
		return dec, nil, "", false
	}
	required := classify.RequiredVisibility(c.t, decl)
	after := classify.WidenVisibility(dec, required)
	if after.Visibility == dec.Visibility && after.Base() == dec.Base() {
		return dec, nil, "", false
	}
	return after, sitesOf(c.t.References(decl.ID), symbols.CtxRead, symbols.CtxWrite, symbols.CtxReadWrite,
		symbols.CtxInvoke, symbols.CtxGetterCall, symbols.CtxSetterCall, symbols.CtxTypeUse, symbols.CtxQualifier, symbols.CtxInstantiate),
		"visibility below what use sites require", true
}
