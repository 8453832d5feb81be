package bvsolve

import (
	"fmt"
)

// LinearSolver eliminates variables from linear bitvector equations by
// recording their solutions in the simplifier's substitution map.
type LinearSolver struct {
	store *Store
	simp  *Simplifier

	excluded map[*Term]struct{} // variables that failed the occurs check
	solved   map[*Term]*Term    // equation -> residual formula
	freshN   int

	// Number of variables eliminated since the last reset.
	EliminatedN int
}

// NewLinearSolver returns a solver that records solutions through simp.
func NewLinearSolver(simp *Simplifier) *LinearSolver {
	ls := &LinearSolver{store: simp.store, simp: simp}
	ls.Reset()
	return ls
}

// Reset clears the per-query memo tables.
func (ls *LinearSolver) Reset() {
	ls.excluded = make(map[*Term]struct{})
	ls.solved = make(map[*Term]*Term)
	ls.EliminatedN = 0
}

// summand is one monomial of a sum: coef * v, with v nil for the constant.
type summand struct {
	coef *BVConst
	v    *Term
}

// Solve eliminates what it can from the equations of the conjunction f and
// returns the residual formula. Equations that cannot be solved directly
// because every coefficient is even are reduced to a narrower width instead.
func (ls *LinearSolver) Solve(f *Term) *Term {
	var conjuncts []*Term
	switch f.kind {
	case AND:
		conjuncts = f.children
	case EQ:
		conjuncts = []*Term{f}
	default:
		return f
	}

	var out, evens []*Term
	for _, c := range conjuncts {
		if c.kind != EQ || !c.children[0].IsBV() {
			out = append(out, c)
			continue
		}
		if r, ok := ls.solved[c]; ok {
			out = append(out, r)
			continue
		}

		// Earlier solutions in this pass may apply.
		eq := ls.simp.Formula(c)
		if eq.kind != EQ {
			ls.solved[c] = eq
			out = append(out, eq)
			continue
		}

		if ls.solveEq(eq) {
			ls.solved[c] = ls.store.True()
			continue
		}
		if isEvenCandidate(ls.summands(eq)) {
			evens = append(evens, eq)
			continue
		}
		out = append(out, eq)
	}

	if len(evens) > 0 {
		out = append(out, ls.reduceEvens(evens)...)
	}
	return ls.simp.Formula(ls.store.And(out...))
}

// summands returns the monomials of lhs - rhs for the equation eq.
func (ls *LinearSolver) summands(eq *Term) []summand {
	diff := ls.simp.plus([]*Term{eq.children[0], ls.simp.uminus(eq.children[1])})

	var a []*Term
	if diff.kind == BVPLUS {
		a = diff.children
	} else {
		a = []*Term{diff}
	}

	out := make([]summand, len(a))
	for i, t := range a {
		coef, v := splitMonomial(ls.store, t)
		out[i] = summand{coef: coef, v: v}
	}
	return out
}

// solveEq attempts to isolate one variable of eq and record its solution.
func (ls *LinearSolver) solveEq(eq *Term) bool {
	a := ls.summands(eq)

	// Prefer a bare variable, then any odd coefficient.
	for _, pass := range []func(*BVConst) bool{(*BVConst).IsOne, (*BVConst).IsOdd} {
		for i, m := range a {
			if m.v == nil || !pass(m.coef) || !ls.isTarget(m.v) {
				continue
			}
			if ls.isolate(a, i) {
				return true
			}
		}
	}
	return false
}

// isTarget returns true if v is a symbol or a low slice of a symbol that has
// not been excluded by an earlier occurs check failure.
func (ls *LinearSolver) isTarget(v *Term) bool {
	x := targetSymbol(v)
	if x == nil {
		return false
	}
	_, excluded := ls.excluded[x]
	return !excluded
}

// targetSymbol returns the symbol solved for by isolating v, or nil.
func targetSymbol(v *Term) *Term {
	switch v.kind {
	case SYMBOL:
		if v.IsBV() {
			return v
		}
	case BVEXTRACT:
		if _, lo := ExtractBounds(v); lo == 0 && v.children[0].kind == SYMBOL {
			return v.children[0]
		}
	}
	return nil
}

// isolate solves a[i] for its variable: coef*v + rest = 0 gives
// v = -(coef^-1) * rest.
func (ls *LinearSolver) isolate(a []summand, i int) bool {
	m := a[i]
	w := m.coef.Width()
	x := targetSymbol(m.v)

	var rest []*Term
	for j, o := range a {
		if j == i {
			continue
		} else if o.v == nil {
			rest = append(rest, ls.store.Const(o.coef))
		} else {
			rest = append(rest, monomial(ls.store, o.coef, o.v))
		}
	}
	rhs := ls.store.Zero(w)
	if len(rest) > 0 {
		rhs = ls.simp.plus(rest)
	}
	rhs = ls.simp.mult([]*Term{ls.store.Const(m.coef.Inverse().Neg()), rhs})

	if Contains(rhs, x) {
		ls.excluded[x] = struct{}{}
		return false
	}

	if m.v.kind == SYMBOL {
		if !ls.simp.subst.Set(x, rhs) {
			return false
		}
		ls.EliminatedN++
		return true
	}

	// x[hi:0] = rhs  =>  x := concat(fresh, rhs)
	hi, _ := ExtractBounds(m.v)
	solution := rhs
	if hi+1 < x.valueWidth {
		solution = ls.store.Concat(ls.fresh(x.valueWidth-hi-1), rhs)
	}
	if !ls.simp.subst.Set(x, solution) {
		return false
	}
	ls.EliminatedN++
	return true
}

// fresh returns a new bitvector symbol of the given width.
func (ls *LinearSolver) fresh(width uint) *Term {
	for {
		ls.freshN++
		name := fmt.Sprintf("v_solver_%d", ls.freshN)
		if _, ok := ls.store.LookupSymbol(name); !ok {
			return ls.store.Symbol(name, 0, width)
		}
	}
}

// isEvenCandidate returns true if a has at least one variable and every
// variable coefficient is even.
func isEvenCandidate(a []summand) bool {
	var hasVar bool
	for _, m := range a {
		if m.v == nil {
			continue
		} else if m.coef.IsOdd() {
			return false
		}
		hasVar = true
	}
	return hasVar
}

// reduceEvens divides each equation by the largest power of two dividing
// every coefficient of every equation. An equation whose constant is not
// divisible by its own power of two is unsatisfiable.
func (ls *LinearSolver) reduceEvens(eqs []*Term) []*Term {
	type system struct {
		eq *Term
		a  []summand
	}

	var systems []system
	var k uint
	for _, eq := range eqs {
		a := ls.summands(eq)
		w := a[0].coef.Width()

		ke := w
		for _, m := range a {
			if m.v != nil {
				if tz := m.coef.TrailingZeros(); tz < ke {
					ke = tz
				}
			}
		}
		for _, m := range a {
			if m.v == nil && m.coef.TrailingZeros() < ke {
				return []*Term{ls.store.False()}
			}
		}

		if len(systems) == 0 || ke < k {
			k = ke
		}
		systems = append(systems, system{eq: eq, a: a})
	}

	out := make([]*Term, 0, len(systems))
	for _, sys := range systems {
		w := sys.a[0].coef.Width()
		if k == 0 || k >= w {
			out = append(out, sys.eq)
			continue
		}

		nw := w - k
		var sum []*Term
		for _, m := range sys.a {
			coef := m.coef.Shr(k).Extract(nw-1, 0)
			if m.v == nil {
				sum = append(sum, ls.store.Const(coef))
				continue
			}
			v := ls.simp.extract(m.v, nw-1, 0)
			sum = append(sum, ls.simp.mult([]*Term{ls.store.Const(coef), v}))
		}
		lhs := ls.simp.plus(sum)
		out = append(out, ls.simp.simplifiedEq(lhs, ls.store.Zero(nw)))
	}
	return out
}
