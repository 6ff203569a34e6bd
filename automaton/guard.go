package automaton

import "github.com/quentel/availsim/reactive"

// GuardKind discriminates the guard union.
type GuardKind int

const (
	// GuardAlways is a constant guard (Value field).
	GuardAlways GuardKind = iota
	// GuardCell reads one boolean cell.
	GuardCell
	// GuardRef aggregates a reference with AND or OR logic.
	GuardRef
	// GuardAll is a conjunction of cell=value terms.
	GuardAll
)

// RefLogic selects the aggregation of a GuardRef guard.
type RefLogic int

const (
	// RefAnd evaluates the reference with AndValue.
	RefAnd RefLogic = iota
	// RefOr evaluates the reference with OrValue.
	RefOr
)

// Term is one cell=value conjunct of a GuardAll guard.
type Term struct {
	Cell *reactive.Cell[bool]
	Want bool
}

// Guard is the enabling condition of a transition. The zero value is the
// always-false guard; use Always(true) for an unconditional transition.
type Guard struct {
	Kind       GuardKind
	Value      bool
	Cell       *reactive.Cell[bool]
	Ref        *reactive.Reference
	RefLogic   RefLogic
	RefDefault bool
	Terms      []Term
	Negate     bool
}

// Always returns a constant guard.
func Always(v bool) Guard {
	return Guard{Kind: GuardAlways, Value: v}
}

// CellIs returns a guard that is true when the cell holds want.
func CellIs(c *reactive.Cell[bool], want bool) Guard {
	return Guard{Kind: GuardCell, Cell: c, Negate: !want}
}

// RefIs returns a guard over a reference, aggregated with the given logic
// and falling back to def when the reference is unconnected.
func RefIs(r *reactive.Reference, logic RefLogic, def bool) Guard {
	return Guard{Kind: GuardRef, Ref: r, RefLogic: logic, RefDefault: def}
}

// AllOf returns a guard that is true when every term's cell holds its
// wanted value. An empty term list is true.
func AllOf(terms []Term) Guard {
	return Guard{Kind: GuardAll, Terms: terms}
}

// Negated returns the logical complement of g.
func (g Guard) Negated() Guard {
	g.Negate = !g.Negate
	return g
}

// Eval evaluates the guard against current cell values. Pure.
func (g Guard) Eval() bool {
	var v bool
	switch g.Kind {
	case GuardAlways:
		v = g.Value
	case GuardCell:
		v = g.Cell.Value()
	case GuardRef:
		if g.RefLogic == RefAnd {
			v = g.Ref.AndValue(g.RefDefault)
		} else {
			v = g.Ref.OrValue(g.RefDefault)
		}
	case GuardAll:
		v = true
		for _, t := range g.Terms {
			if t.Cell.Value() != t.Want {
				v = false
				break
			}
		}
	}
	if g.Negate {
		return !v
	}
	return v
}
