package symbols

import (
	"sort"
	"strings"

	coreerrors "j2k/internal/core/errors"
	"j2k/internal/engine/ast"
)

// reflective lookups normalized into Reflective references.
var reflectiveLookups = map[string]Kind{
	"getDeclaredField":  KindField,
	"getField":          KindField,
	"getDeclaredMethod": KindMethod,
	"getMethod":         KindMethod,
}

// Build indexes every declaration of files, then every use site. The
// returned errors are unresolved references and duplicate declarations; none
// of them prevents the table from being used.
func Build(files []*ast.File) (*Table, []error) {
	sorted := make([]*ast.File, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	t := &Table{
		files:     sorted,
		byID:      make(map[ast.SymbolID]*Declaration),
		members:   make(map[ast.SymbolID][]*Declaration),
		byTarget:  make(map[ast.SymbolID][]*Reference),
		sites:     make(map[SiteKey]*Reference),
		supers:    make(map[ast.SymbolID][]ast.SymbolID),
		subs:      make(map[ast.SymbolID][]ast.SymbolID),
		overrides: make(map[ast.SymbolID][]ast.SymbolID),
	}

	var errs []error
	for _, f := range sorted {
		for _, td := range f.Types {
			errs = append(errs, t.declareType(f, td, "")...)
		}
	}
	t.linkHierarchy()

	for _, f := range sorted {
		w := &walker{t: t, file: f}
		for _, td := range f.Types {
			w.typeDecl(td)
		}
		errs = append(errs, w.errs...)
	}
	return t, errs
}

func (t *Table) add(d *Declaration) error {
	if _, dup := t.byID[d.ID]; dup {
		return coreerrors.AddContext(
			coreerrors.New(coreerrors.CodeValidationError, "duplicate declaration"),
			coreerrors.CtxSymbol, string(d.ID))
	}
	t.byID[d.ID] = d
	t.decls = append(t.decls, d)
	if d.Owner != "" && d.Kind != KindParam && d.Kind != KindLocal {
		t.members[d.Owner] = append(t.members[d.Owner], d)
	}
	return nil
}

func (t *Table) declareType(f *ast.File, td *ast.TypeDecl, owner ast.SymbolID) []error {
	var errs []error
	keep := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	mods := td.Modifiers
	if outer, ok := t.byID[owner]; ok && (outer.IsInterface() || td.Kind == ast.KindInterface) {
		// member types of interfaces and nested interfaces are implicitly static
		mods.Static = true
	}
	keep(t.add(&Declaration{
		ID: td.Symbol, Kind: KindType, Name: td.Name, File: f.ID, Package: f.Package,
		Owner: owner, Modifiers: mods, TypeDecl: td,
	}))
	for _, fd := range td.Fields {
		fmods := fd.Modifiers
		if td.Kind == ast.KindInterface {
			// interface fields are implicitly public static final
			fmods.Visibility, fmods.Static, fmods.Final = ast.VisPublic, true, true
		}
		keep(t.add(&Declaration{
			ID: fd.Symbol, Kind: KindField, Name: fd.Name, File: f.ID, Package: f.Package,
			Owner: td.Symbol, Modifiers: fmods, Type: fd.Type, Field: fd,
		}))
	}
	for _, m := range td.Constructors {
		keep(t.declareMethod(f, td, m, KindConstructor))
	}
	for _, m := range td.Methods {
		keep(t.declareMethod(f, td, m, KindMethod))
	}
	for _, nested := range td.Types {
		errs = append(errs, t.declareType(f, nested, td.Symbol)...)
	}
	return errs
}

func (t *Table) declareMethod(f *ast.File, td *ast.TypeDecl, m *ast.MethodDecl, kind Kind) error {
	mods := m.Modifiers
	if td.Kind == ast.KindInterface && !mods.Static && mods.Visibility == ast.VisPackage {
		mods.Visibility = ast.VisPublic
	}
	err := t.add(&Declaration{
		ID: m.Symbol, Kind: kind, Name: m.Name, File: f.ID, Package: f.Package,
		Owner: td.Symbol, Modifiers: mods, Type: m.Result, Arity: len(m.Params), Func: m,
	})
	for _, p := range m.Params {
		pd := &Declaration{
			ID: p.Symbol, Kind: KindParam, Name: p.Name, File: f.ID, Package: f.Package,
			Owner: td.Symbol, Method: m.Symbol, Modifiers: p.Modifiers, Type: p.Type, Param: p,
		}
		if perr := t.add(pd); err == nil {
			err = perr
		}
	}
	if m.Body != nil {
		ast.Inspect(m.Body, func(n ast.Node) bool {
			if lv, ok := n.(*ast.LocalVar); ok {
				// locals never collide; their identity embeds the node
				_ = t.add(&Declaration{
					ID: lv.Symbol, Kind: KindLocal, Name: lv.Name, File: f.ID, Package: f.Package,
					Owner: td.Symbol, Method: m.Symbol, Type: lv.Type, Local: lv,
				})
			}
			return true
		})
	}
	return err
}

func (t *Table) linkHierarchy() {
	for _, d := range t.decls {
		if d.Kind != KindType {
			continue
		}
		td := d.TypeDecl
		var direct []ast.TypeRef
		if td.Extends != nil {
			direct = append(direct, *td.Extends)
		}
		direct = append(direct, td.Implements...)
		for _, ref := range direct {
			if !ref.Binding.Resolved() {
				continue
			}
			if _, ok := t.byID[ref.Binding.Target]; !ok {
				continue
			}
			t.supers[d.ID] = append(t.supers[d.ID], ref.Binding.Target)
			t.subs[ref.Binding.Target] = append(t.subs[ref.Binding.Target], d.ID)
		}
	}

	for _, d := range t.decls {
		if d.Kind != KindMethod || d.Static() {
			continue
		}
		sig := signature(d)
		for _, other := range t.decls {
			if other == d || other.Kind != KindMethod || other.Static() || signature(other) != sig {
				continue
			}
			if other.Owner != d.Owner && (t.IsSubtype(d.Owner, other.Owner) || t.IsSubtype(other.Owner, d.Owner)) {
				t.overrides[d.ID] = append(t.overrides[d.ID], other.ID)
			}
		}
	}
}

// signature is the method identity without its owner.
func signature(d *Declaration) string {
	s := string(d.ID)
	if i := strings.Index(s, "#"); i >= 0 {
		return s[i+1:]
	}
	return s
}
