// Package classify decides, for every declaration of a file group, the shape
// it takes in the target language: property or plain field, folded accessor
// or method, object, class with companion, nullability and visibility.
//
// Decisions are produced by ordered, tagged rules over the symbol table and a
// bounded null-flow scan. Declarations are classified in parallel; the shared
// map keeps the more conservative of two decisions for the same symbol.
package classify

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"j2k/internal/engine/ast"
	"j2k/internal/engine/symbols"
	"j2k/internal/engine/target"
)

const DefaultScanDepth = 8

type Options struct {
	// Jobs bounds the classification workers; zero means GOMAXPROCS.
	Jobs int
	// ScanDepth bounds statement nesting for the null-flow scan. Reads nested
	// deeper count as unguarded.
	ScanDepth int
}

func (o Options) jobs() int {
	if o.Jobs > 0 {
		return o.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) depth() int {
	if o.ScanDepth > 0 {
		return o.ScanDepth
	}
	return DefaultScanDepth
}

// Run classifies every declaration of t.
func Run(ctx context.Context, t *symbols.Table, opts Options) (*Decisions, error) {
	acc := indexAccessors(t)
	e := &env{t: t, acc: acc, facts: scanFlow(t, acc, opts.depth())}

	out := NewDecisions()
	out.facts = e.facts

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs())
	for _, d := range t.Declarations() {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out.Merge(e.decide(d))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	Finalize(t, out)
	return out, nil
}

// Finalize derives the fields that depend on other decisions: placement,
// property visibility and nullability shared across overrides. It is
// idempotent and runs again after every downgrade.
func Finalize(t *symbols.Table, d *Decisions) {
	for _, dec := range d.All() {
		decl, ok := t.Lookup(dec.Symbol)
		if !ok {
			continue
		}
		dec.Placement = placement(t, d, decl)
		if decl.Kind == symbols.KindField {
			dec = propertyVisibility(d, dec)
		}
		d.Set(dec)
	}
	unifyOverrides(t, d)
}

func placement(t *symbols.Table, d *Decisions, decl *symbols.Declaration) Placement {
	switch decl.Kind {
	case symbols.KindType:
		if decl.Owner == "" {
			return PlaceTopLevel
		}
		return PlaceInstance
	case symbols.KindField, symbols.KindMethod, symbols.KindConstructor:
		if d.Shape(decl.Owner) == ShapeObject {
			return PlaceObject
		}
		if decl.Static() {
			return PlaceCompanion
		}
	}
	return PlaceInstance
}

// propertyVisibility gives a property its getter's visibility and, when
// narrower, its setter's visibility as setter visibility.
func propertyVisibility(d *Decisions, dec Decision) Decision {
	dec.Visibility = dec.base
	dec.HasSetterVisibility = false
	if !dec.Shape.IsProperty() {
		return dec
	}
	getter, hasGetter := folded(d, dec.Getter)
	setter, hasSetter := folded(d, dec.Setter)
	if !hasGetter && hasSetter {
		dec.Visibility = target.Widen(dec.base, setter.Visibility)
		return dec
	}
	if !hasGetter {
		return dec
	}
	dec.Visibility = target.Widen(getter.Visibility, dec.base)
	if dec.Shape != ShapeMutableProperty {
		return dec
	}
	writer := dec.base
	if hasSetter {
		writer = setter.Visibility
	}
	switch {
	case writer.Rank() < dec.Visibility.Rank():
		dec.SetterVisibility, dec.HasSetterVisibility = writer, true
	case writer != dec.Visibility:
		dec.Visibility = target.Widen(dec.Visibility, writer)
	}
	return dec
}

func folded(d *Decisions, id ast.SymbolID) (Decision, bool) {
	if id == "" {
		return Decision{}, false
	}
	dec, ok := d.Get(id)
	return dec, ok && dec.Shape.IsFolded()
}

// unifyOverrides makes a method and everything it overrides or is overridden
// by agree on return and parameter nullability, taking the most conservative.
func unifyOverrides(t *symbols.Table, d *Decisions) {
	for changed, rounds := true, 0; changed && rounds < 16; rounds++ {
		changed = false
		for _, decl := range t.Declarations() {
			if decl.Kind != symbols.KindMethod {
				continue
			}
			for _, other := range t.Overrides(decl.ID) {
				o, ok := t.Lookup(other)
				if !ok {
					continue
				}
				if unify(d, decl.ID, o.ID) {
					changed = true
				}
				for i := range decl.Func.Params {
					if i < len(o.Func.Params) && unify(d, decl.Func.Params[i].Symbol, o.Func.Params[i].Symbol) {
						changed = true
					}
				}
			}
		}
	}
}

func unify(d *Decisions, a, b ast.SymbolID) bool {
	da, okA := d.Get(a)
	db, okB := d.Get(b)
	if !okA || !okB || da.Nullability == db.Nullability {
		return false
	}
	if da.Nullability == NotApplicable || db.Nullability == NotApplicable {
		return false
	}
	if db.Nullability.rank() < da.Nullability.rank() {
		da, db = db, da
	}
	db.Nullability, db.NullRule = da.Nullability, NullOverride
	db.Confident = db.Confident && da.Confident
	d.Set(db)
	return true
}
