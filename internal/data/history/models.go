package history

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const SchemaVersion = 1

// Run is the persisted summary of one conversion run.
type Run struct {
	ID          string
	Started     time.Time
	Duration    time.Duration
	Root        string
	Groups      int
	Files       int
	Conflicts   int
	Diagnostics int
	Failed      bool

	// ConflictRecords and Decisions are only loaded by Store.Run.
	ConflictRecords []ConflictRecord
	Decisions       []DecisionRecord
}

// ConflictRecord is one downgrade made by the conflict checker.
type ConflictRecord struct {
	Group  string
	Symbol string
	Before string
	After  string
	Reason string
}

// DecisionRecord is the final shape of one declaration.
type DecisionRecord struct {
	Symbol      string `msgpack:"s"`
	Shape       string `msgpack:"k"`
	Nullability string `msgpack:"n,omitempty"`
	Placement   string `msgpack:"p,omitempty"`
	Visibility  string `msgpack:"v,omitempty"`
}

// NewRunID returns a fresh run identity.
func NewRunID() string { return uuid.NewString() }

// encodeDecisions packs decisions, sorted by symbol, into the snapshot blob.
func encodeDecisions(ds []DecisionRecord) ([]byte, error) {
	sorted := append([]DecisionRecord(nil), ds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Symbol < sorted[j].Symbol })
	b, err := msgpack.Marshal(sorted)
	if err != nil {
		return nil, fmt.Errorf("encode decision snapshot: %w", err)
	}
	return b, nil
}

func decodeDecisions(b []byte) ([]DecisionRecord, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var out []DecisionRecord
	if err := msgpack.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode decision snapshot: %w", err)
	}
	return out, nil
}

// Change is a declaration whose decision differs between two runs. A
// missing side has a zero record.
type Change struct {
	Symbol string
	Before DecisionRecord
	After  DecisionRecord
}

func (c Change) String() string {
	switch {
	case c.Before.Symbol == "":
		return fmt.Sprintf("+ %s %s", c.Symbol, describe(c.After))
	case c.After.Symbol == "":
		return fmt.Sprintf("- %s %s", c.Symbol, describe(c.Before))
	}
	return fmt.Sprintf("~ %s %s -> %s", c.Symbol, describe(c.Before), describe(c.After))
}

func describe(d DecisionRecord) string {
	s := d.Shape
	for _, extra := range []string{d.Nullability, d.Placement, d.Visibility} {
		if extra != "" {
			s += "/" + extra
		}
	}
	return s
}

// Diff compares the decision snapshots of two runs, ordered by symbol.
func Diff(before, after Run) []Change {
	old := make(map[string]DecisionRecord, len(before.Decisions))
	for _, d := range before.Decisions {
		old[d.Symbol] = d
	}
	var out []Change
	seen := make(map[string]bool, len(after.Decisions))
	for _, d := range after.Decisions {
		seen[d.Symbol] = true
		prev, ok := old[d.Symbol]
		if !ok || prev != d {
			out = append(out, Change{Symbol: d.Symbol, Before: prev, After: d})
		}
	}
	for _, d := range before.Decisions {
		if !seen[d.Symbol] {
			out = append(out, Change{Symbol: d.Symbol, Before: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
