package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	coreerrors "j2k/internal/core/errors"
	"j2k/internal/engine/ast"
	"j2k/internal/engine/classify"
	"j2k/internal/engine/conflict"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is one non-fatal finding of a group run.
type Diagnostic struct {
	Severity Severity
	Code     coreerrors.ErrorCode
	Message  string
	File     string
	Symbol   string
	Line     int
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(string(d.Severity))
	if d.File != "" {
		b.WriteString(" " + d.File)
		if d.Line > 0 {
			fmt.Fprintf(&b, ":%d", d.Line)
		}
	}
	fmt.Fprintf(&b, " [%s] %s", d.Code, d.Message)
	if d.Symbol != "" {
		b.WriteString(" (" + d.Symbol + ")")
	}
	return b.String()
}

// fromError turns an engine error into a diagnostic, lifting the file, line
// and symbol out of its context.
func fromError(err error, sev Severity) Diagnostic {
	d := Diagnostic{Severity: sev, Code: coreerrors.CodeOf(err), Message: err.Error()}
	var de *coreerrors.DomainError
	if errors.As(err, &de) {
		d.Message = de.Message
		if de.Err != nil {
			d.Message += ": " + de.Err.Error()
		}
		if v, ok := de.Context[coreerrors.CtxFile].(string); ok {
			d.File = v
		}
		if v, ok := de.Context[coreerrors.CtxLine].(int); ok {
			d.Line = v
		}
		if v, ok := de.Context[coreerrors.CtxSymbol].(string); ok {
			d.Symbol = v
		}
		if v, ok := de.Context["reason"].(string); ok && v != "" {
			d.Message += " (" + v + ")"
		}
	}
	return d
}

func indexDiagnostics(errs []error) []Diagnostic {
	out := make([]Diagnostic, 0, len(errs))
	for _, err := range errs {
		sev := SeverityError
		if coreerrors.IsCode(err, coreerrors.CodeUnresolvedReference) {
			sev = SeverityWarning
			if external(err) {
				sev = SeverityInfo
			}
		}
		out = append(out, fromError(err, sev))
	}
	return out
}

// external reports whether an unresolved site belongs to a library outside
// the group. Those sites are expected and only informational.
func external(err error) bool {
	var de *coreerrors.DomainError
	if !errors.As(err, &de) {
		return false
	}
	v, _ := de.Context["external"].(bool)
	return v
}

func conflictDiagnostics(records []conflict.Record) []Diagnostic {
	out := make([]Diagnostic, 0, len(records))
	for _, r := range records {
		d := fromError(r.Err(), SeverityInfo)
		if len(r.Sites) > 0 {
			d.File = string(r.Sites[0].File)
		}
		out = append(out, d)
	}
	return out
}

// ambiguityDiagnostics reports every sealed decision taken without
// confident evidence. Such declarations convert with the conservative choice.
func ambiguityDiagnostics(d *classify.Decisions) []Diagnostic {
	var out []Diagnostic
	for _, dec := range d.All() {
		if dec.Confident {
			continue
		}
		rule := dec.Rule
		if dec.NullRule != "" {
			rule = dec.NullRule
		}
		out = append(out, Diagnostic{
			Severity: SeverityWarning,
			Code:     coreerrors.CodeClassificationAmbiguity,
			Message:  fmt.Sprintf("%s chosen without proof (%s)", dec.Nullability, rule),
			Symbol:   string(dec.Symbol),
		})
	}
	return out
}

// verbatimDiagnostics reports every construct carried through untouched.
func verbatimDiagnostics(files []*ast.File) []Diagnostic {
	var out []Diagnostic
	for _, f := range files {
		ast.InspectFile(f, func(n ast.Node) bool {
			v, ok := n.(*ast.Verbatim)
			if !ok {
				return true
			}
			out = append(out, Diagnostic{
				Severity: SeverityWarning,
				Code:     coreerrors.CodeNotSupported,
				Message:  "construct copied verbatim: " + firstLine(v.Text),
				File:     f.Path,
				Line:     v.At.Line,
			})
			return false
		})
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func sortDiagnostics(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Message < b.Message
	})
}
