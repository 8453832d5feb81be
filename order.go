package bvsolve

import (
	"golang.org/x/exp/slices"
)

// CompareTerm returns an integer comparing two terms in expression order:
// constants first, then symbols, then everything else, ties broken by node number.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareTerm(a, b *Term) int {
	if a == b {
		return 0
	}
	if ar, br := termRank(a), termRank(b); ar < br {
		return -1
	} else if ar > br {
		return 1
	}

	if a.id < b.id {
		return -1
	} else if a.id > b.id {
		return 1
	}
	return 0
}

// termRank returns a numeric value for the class of term.
// Only used internally for sorting.
func termRank(t *Term) int {
	switch t.kind {
	case TRUE, FALSE, BVCONST:
		return 1
	case SYMBOL:
		return 2
	default:
		return 3
	}
}

// SortTerms sorts a in place by expression order.
func SortTerms(a []*Term) {
	slices.SortFunc(a, func(x, y *Term) bool { return CompareTerm(x, y) < 0 })
}

// sortedCopy returns a sorted copy of a.
func sortedCopy(a []*Term) []*Term {
	other := slices.Clone(a)
	SortTerms(other)
	return other
}
