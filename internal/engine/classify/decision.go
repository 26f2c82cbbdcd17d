package classify

import (
	"sort"
	"sync"

	"j2k/internal/engine/ast"
	"j2k/internal/engine/symbols"
	"j2k/internal/engine/target"
)

// Shape is the target form of a declaration.
type Shape uint8

const (
	ShapeUnknown Shape = iota
	ShapePlainField
	ShapeMutableProperty
	ShapeReadOnlyProperty
	ShapeMethod
	ShapeGetter
	ShapeSetter
	ShapeConstructor
	ShapeClass
	ShapeCompanionHolder
	ShapeObject
	ShapeInterface
	ShapeVariable
	ShapeValue
)

var shapeNames = [...]string{
	ShapeUnknown:          "unknown",
	ShapePlainField:       "plain-field",
	ShapeMutableProperty:  "mutable-property",
	ShapeReadOnlyProperty: "read-only-property",
	ShapeMethod:           "method",
	ShapeGetter:           "getter",
	ShapeSetter:           "setter",
	ShapeConstructor:      "constructor",
	ShapeClass:            "class",
	ShapeCompanionHolder:  "class-with-companion",
	ShapeObject:           "object",
	ShapeInterface:        "interface",
	ShapeVariable:         "variable",
	ShapeValue:            "value",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "invalid"
}

// Rank is the position of s in the conservativeness order of its family.
// Lower is more conservative; shapes of different families never compare.
func (s Shape) Rank() int {
	switch s {
	case ShapePlainField, ShapeMethod, ShapeClass, ShapeCompanionHolder, ShapeVariable, ShapeConstructor, ShapeInterface:
		return 0
	case ShapeMutableProperty, ShapeGetter, ShapeSetter, ShapeObject, ShapeValue:
		return 1
	case ShapeReadOnlyProperty:
		return 2
	}
	return -1
}

// Conservative returns the most conservative shape of the family of s.
func (s Shape) Conservative() Shape {
	switch s {
	case ShapeMutableProperty, ShapeReadOnlyProperty:
		return ShapePlainField
	case ShapeGetter, ShapeSetter:
		return ShapeMethod
	case ShapeObject:
		return ShapeCompanionHolder
	case ShapeValue:
		return ShapeVariable
	}
	return s
}

// IsProperty reports whether the field is rewritten with property syntax.
func (s Shape) IsProperty() bool {
	return s == ShapeMutableProperty || s == ShapeReadOnlyProperty
}

// IsFolded reports whether the accessor disappears into a property.
func (s Shape) IsFolded() bool { return s == ShapeGetter || s == ShapeSetter }

type Nullability uint8

const (
	// NullUnknown is consumed as nullable.
	NullUnknown Nullability = iota
	Nullable
	NonNull
	NotApplicable
)

func (n Nullability) String() string {
	switch n {
	case Nullable:
		return "nullable"
	case NonNull:
		return "non-null"
	case NotApplicable:
		return "n/a"
	}
	return "unknown"
}

// Marked reports whether the target type carries a nullability mark.
func (n Nullability) Marked() bool { return n == Nullable || n == NullUnknown }

func (n Nullability) rank() int {
	switch n {
	case Nullable:
		return 0
	case NullUnknown:
		return 1
	case NonNull:
		return 2
	}
	return 3
}

type Placement uint8

const (
	PlaceInstance Placement = iota
	PlaceCompanion
	PlaceObject
	PlaceTopLevel
)

func (p Placement) String() string {
	switch p {
	case PlaceCompanion:
		return "companion"
	case PlaceObject:
		return "object"
	case PlaceTopLevel:
		return "top-level"
	}
	return "instance"
}

type RuleTag string

type Decision struct {
	Symbol      ast.SymbolID
	Kind        symbols.Kind
	Shape       Shape
	Placement   Placement
	Nullability Nullability
	Visibility  target.Visibility
	// SetterVisibility narrows the setter of a mutable property.
	SetterVisibility    target.Visibility
	HasSetterVisibility bool
	// Property links a folded accessor to its field; Getter and Setter link a
	// property field to its folded accessors.
	Property ast.SymbolID
	Getter   ast.SymbolID
	Setter   ast.SymbolID
	Const    bool

	Rule      RuleTag
	NullRule  RuleTag
	Confident bool

	// base is the visibility the declaration needs on its own, before the
	// property takes over its accessors' visibility.
	base target.Visibility
}

// Base is the visibility the declaration requires on its own.
func (d Decision) Base() target.Visibility { return d.base }

// WidenVisibility raises the decision's own visibility to at least v.
func WidenVisibility(dec Decision, v target.Visibility) Decision {
	dec.base = target.Widen(dec.base, v)
	dec.Visibility = target.Widen(dec.Visibility, v)
	return dec
}

// Combine keeps the more conservative value of every field of two decisions
// for the same declaration.
func Combine(a, b Decision) Decision {
	out := a
	if b.Shape.Rank() < a.Shape.Rank() {
		out.Shape, out.Rule, out.Property, out.Const = b.Shape, b.Rule, b.Property, b.Const
	}
	if b.Nullability.rank() < a.Nullability.rank() {
		out.Nullability, out.NullRule = b.Nullability, b.NullRule
	}
	out.Visibility = target.Widen(a.Visibility, b.Visibility)
	out.base = target.Widen(a.base, b.base)
	if a.HasSetterVisibility && b.HasSetterVisibility {
		out.SetterVisibility = target.Widen(a.SetterVisibility, b.SetterVisibility)
	} else {
		out.HasSetterVisibility = false
	}
	out.Const = out.Const && a.Const && b.Const
	out.Confident = a.Confident && b.Confident
	return out
}

// Decisions is the shared decision map. Workers insert through Merge; the
// map is sealed before any use site is rewritten.
type Decisions struct {
	mu     sync.RWMutex
	m      map[ast.SymbolID]Decision
	sealed bool
	facts  *Facts
}

func NewDecisions() *Decisions {
	return &Decisions{m: make(map[ast.SymbolID]Decision)}
}

// Merge inserts d, combining with an existing decision for the same symbol,
// and returns the stored value. Merging into a sealed map is a no-op.
func (d *Decisions) Merge(dec Decision) Decision {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sealed {
		return d.m[dec.Symbol]
	}
	if prev, ok := d.m[dec.Symbol]; ok {
		dec = Combine(prev, dec)
	}
	d.m[dec.Symbol] = dec
	return dec
}

// Set replaces a decision outright. It reports false once the map is sealed.
func (d *Decisions) Set(dec Decision) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sealed {
		return false
	}
	d.m[dec.Symbol] = dec
	return true
}

func (d *Decisions) Get(id ast.SymbolID) (Decision, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dec, ok := d.m[id]
	return dec, ok
}

// Shape is Get without the presence bit.
func (d *Decisions) Shape(id ast.SymbolID) Shape {
	dec, _ := d.Get(id)
	return dec.Shape
}

func (d *Decisions) Seal() {
	d.mu.Lock()
	d.sealed = true
	d.mu.Unlock()
}

func (d *Decisions) Sealed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sealed
}

func (d *Decisions) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.m)
}

// All returns every decision ordered by symbol.
func (d *Decisions) All() []Decision {
	d.mu.RLock()
	out := make([]Decision, 0, len(d.m))
	for _, dec := range d.m {
		out = append(out, dec)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Facts returns the flow evidence the decisions were derived from.
func (d *Decisions) Facts() *Facts { return d.facts }
