package bvsolve

import (
	"github.com/benbjohnson/immutable"
)

// Substitution maps solved terms to their replacements. Keys are symbols or
// reads of an array symbol at a constant index. The map is persistent so a
// context can snapshot it on Push and restore it on Pop.
type Substitution struct {
	m   *immutable.SortedMap // term id -> substitutionEntry
	gen int                  // bumped on every change
}

type substitutionEntry struct {
	from *Term
	to   *Term
}

// NewSubstitution returns an empty substitution map.
func NewSubstitution() *Substitution {
	return &Substitution{m: immutable.NewSortedMap(&uint64Comparer{})}
}

// Len returns the number of substituted terms.
func (s *Substitution) Len() int { return s.m.Len() }

// Lookup returns the replacement for t, if any.
func (s *Substitution) Lookup(t *Term) (*Term, bool) {
	v, ok := s.m.Get(t.id)
	if !ok {
		return nil, false
	}
	return v.(substitutionEntry).to, true
}

// Set records from := to. Returns false without changing the map if from is
// already substituted or if from and to are the same term.
func (s *Substitution) Set(from, to *Term) bool {
	assert(from.indexWidth == to.indexWidth && from.valueWidth == to.valueWidth,
		"substitution: type mismatch: %s := %s", from, to)
	if from == to {
		return false
	} else if _, ok := s.m.Get(from.id); ok {
		return false
	}
	s.m = s.m.Set(from.id, substitutionEntry{from: from, to: to})
	s.gen++
	return true
}

// Each calls fn for every entry in node-number order.
func (s *Substitution) Each(fn func(from, to *Term)) {
	itr := s.m.Iterator()
	for !itr.Done() {
		_, v := itr.Next()
		e := v.(substitutionEntry)
		fn(e.from, e.to)
	}
}

// Clone returns a copy that shares structure with s.
func (s *Substitution) Clone() *Substitution {
	return &Substitution{m: s.m, gen: s.gen}
}

// restore replaces the contents of s with those of other.
func (s *Substitution) restore(other *Substitution) {
	s.m = other.m
	s.gen++
}

// uint64Comparer compares two 64-bit unsigned integers. Implements immutable.Comparer.
type uint64Comparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b, and
// returns 0 if a is equal to b. Panic if a or b is not an uint64.
func (c *uint64Comparer) Compare(a, b interface{}) int {
	if i, j := a.(uint64), b.(uint64); i < j {
		return -1
	} else if i > j {
		return 1
	}
	return 0
}

// BuildSubstitution records the top-level facts of f in the substitution map
// and returns f with every recorded conjunct replaced by true. Facts are
// `sym = t` (sym not occurring in t after substitution), bare boolean
// symbols, and negated boolean symbols.
func (s *Simplifier) BuildSubstitution(f *Term) *Term {
	assert(f.IsBool(), "substitution: non-formula %s", f)

	switch f.kind {
	case SYMBOL:
		if s.subst.Set(f, s.store.True()) {
			return s.store.True()
		}
		return f

	case NOT:
		if c := f.children[0]; c.kind == SYMBOL {
			if s.subst.Set(c, s.store.False()) {
				return s.store.True()
			}
		}
		return f

	case IFF:
		lhs, rhs := f.children[0], f.children[1]
		if lhs.kind != SYMBOL {
			lhs, rhs = rhs, lhs
		}
		if lhs.kind == SYMBOL && s.trySubstitute(lhs, rhs) {
			return s.store.True()
		}
		return f

	case EQ:
		lhs, rhs := substitutionOrder(f.children[0], f.children[1])
		if isSubstitutable(lhs) && s.trySubstitute(lhs, rhs) {
			return s.store.True()
		}
		return f

	case AND:
		var kept []*Term
		for _, c := range f.children {
			s.alwaysTrue[c] = struct{}{}
			r := s.BuildSubstitution(c)
			if r == s.store.False() {
				return r
			} else if r != s.store.True() {
				kept = append(kept, r)
			}
		}
		return s.store.And(kept...)

	default:
		return f
	}
}

// trySubstitute records lhs := rhs unless lhs occurs in the simplified rhs.
func (s *Simplifier) trySubstitute(lhs, rhs *Term) bool {
	if Contains(s.Term(rhs), lhs) {
		return false
	}
	return s.subst.Set(lhs, rhs)
}

// substitutionOrder returns the operands of an equation with the better
// substitution target first: a symbol, then a read of a symbol at a constant.
func substitutionOrder(a, b *Term) (*Term, *Term) {
	if substitutionRank(b) < substitutionRank(a) {
		return b, a
	}
	return a, b
}

func substitutionRank(t *Term) int {
	switch {
	case t.kind == SYMBOL:
		return 0
	case isSubstitutable(t):
		return 1
	default:
		return 2
	}
}

// isSubstitutable returns true if t may be a key of the substitution map.
func isSubstitutable(t *Term) bool {
	if t.kind == SYMBOL {
		return true
	}
	return t.kind == READ && t.children[0].kind == SYMBOL && t.children[1].kind == BVCONST
}
