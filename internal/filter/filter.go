// Package filter selects the subset of a dataset that satisfies a set of
// composable predicates.
//
// Predicates combine with AND. A predicate that is not Active (nothing
// selected, empty query, "all time") always passes, which is how "no filter"
// means "show everything".
package filter

import (
	"sort"

	"enam/internal/record"
)

// Predicate is one filter criterion.
type Predicate interface {
	// Match reports whether r satisfies the predicate. It is only called
	// when Active is true.
	Match(r record.Record) bool
	// Active reports whether the predicate constrains anything.
	Active() bool
	// Cost is a relative evaluation cost; cheaper predicates run first.
	Cost() int
}

// Relative costs used by the built-in predicates.
const (
	costSet      = 1
	costEqual    = 1
	costContains = 2
	costMember   = 3
	costDate     = 4
)

// Apply returns the records matching every active predicate, in input order.
// The input slice and its records are never modified, and the result is
// always a fresh slice (empty, not nil, when nothing matches).
func Apply(records []record.Record, preds ...Predicate) []record.Record {
	active := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil && p.Active() {
			active = append(active, p)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Cost() < active[j].Cost() })

	out := make([]record.Record, 0, len(records))
	for _, r := range records {
		if matchAll(r, active) {
			out = append(out, r)
		}
	}
	return out
}

func matchAll(r record.Record, preds []Predicate) bool {
	for _, p := range preds {
		if !p.Match(r) {
			return false
		}
	}
	return true
}
