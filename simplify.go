package bvsolve

// Simplifier rewrites terms and formulas into smaller, canonical equivalents.
// Results are memoized by term identity and, for formulas, by whether a
// negation is being pushed in. The memo tables are dropped whenever the
// substitution map changes.
type Simplifier struct {
	store *Store
	subst *Substitution

	memo     map[*Term]*Term // formulas and terms, positive polarity
	negMemo  map[*Term]*Term // formulas under a pushed negation
	memoGen  int             // substitution generation the memo tables were built against
	disabled bool

	alwaysTrue map[*Term]struct{}
}

// NewSimplifier returns a simplifier over store that consults subst.
func NewSimplifier(store *Store, subst *Substitution) *Simplifier {
	s := &Simplifier{store: store, subst: subst}
	s.Reset()
	return s
}

// Reset clears all memo tables and recorded facts.
func (s *Simplifier) Reset() {
	s.memo = make(map[*Term]*Term)
	s.negMemo = make(map[*Term]*Term)
	s.alwaysTrue = make(map[*Term]struct{})
	s.memoGen = s.subst.gen
}

// SetEnabled turns rewriting on or off. A disabled simplifier still applies
// the substitution map and folds constants so that solved variables vanish.
func (s *Simplifier) SetEnabled(v bool) {
	if s.disabled == !v {
		return
	}
	s.disabled = !v
	s.memo = make(map[*Term]*Term)
	s.negMemo = make(map[*Term]*Term)
}

// Substitution returns the substitution map consulted by s.
func (s *Simplifier) Substitution() *Substitution { return s.subst }

// sync drops memoized results computed against an older substitution map.
func (s *Simplifier) sync() {
	if s.memoGen != s.subst.gen {
		s.memo = make(map[*Term]*Term)
		s.negMemo = make(map[*Term]*Term)
		s.memoGen = s.subst.gen
	}
}

// Formula returns the simplified form of the formula f.
func (s *Simplifier) Formula(f *Term) *Term {
	assert(f.IsBool(), "simplify: non-formula %s", f)
	s.sync()
	return s.formula(f, false)
}

func (s *Simplifier) lookup(f *Term, pushNeg bool) (*Term, bool) {
	if pushNeg {
		if r, ok := s.negMemo[f]; ok {
			return r, true
		}
		if r, ok := s.memo[f]; ok && r.kind != AND && r.kind != OR && r.kind != ITE {
			return s.not(r), true
		}
		return nil, false
	}
	r, ok := s.memo[f]
	return r, ok
}

func (s *Simplifier) update(f *Term, pushNeg bool, r *Term) {
	if pushNeg {
		s.negMemo[f] = r
		return
	}
	s.memo[f] = r
	if _, ok := s.memo[r]; !ok {
		s.memo[r] = r
	}
}

// formula simplifies f, negated if pushNeg is set.
func (s *Simplifier) formula(f *Term, pushNeg bool) *Term {
	if r, ok := s.lookup(f, pushNeg); ok {
		return r
	}

	var r *Term
	switch f.kind {
	case TRUE, FALSE:
		r = s.store.Bool((f.kind == TRUE) != pushNeg)

	case SYMBOL:
		if to, ok := s.subst.Lookup(f); ok {
			r = s.formula(to, pushNeg)
		} else if pushNeg {
			r = s.store.Not(f)
		} else {
			r = f
		}

	case NOT:
		r = s.simplifyNot(f, pushNeg)

	case AND, OR:
		r = s.simplifyAndOr(f.kind, f.children, pushNeg)

	case NAND:
		r = s.simplifyAndOr(AND, f.children, !pushNeg)

	case NOR:
		r = s.simplifyAndOr(OR, f.children, !pushNeg)

	case IMPLIES:
		r = s.simplifyImplies(f, pushNeg)

	case XOR:
		r = s.simplifyXor(f.children[0], f.children[1], pushNeg)

	case IFF:
		r = s.simplifyXor(f.children[0], f.children[1], !pushNeg)

	case ITE:
		r = s.simplifyIteFormula(f, pushNeg)

	case EQ, NEQ, BVLT, BVLE, BVGT, BVGE, BVSLT, BVSLE, BVSGT, BVSGE:
		r = s.simplifyAtom(f)
		if pushNeg {
			r = s.not(r)
		}

	default:
		panic("unreachable")
	}

	s.update(f, pushNeg, r)
	return r
}

// not returns the negation of an already simplified formula. Negations of
// conjunctions, disjunctions and if-then-else are pushed into the operands.
func (s *Simplifier) not(f *Term) *Term {
	switch f.kind {
	case TRUE:
		return s.store.False()
	case FALSE:
		return s.store.True()
	case NOT:
		return f.children[0]
	case AND, OR, ITE:
		return s.formula(f, true)
	default:
		return s.store.Not(f)
	}
}

// isAlwaysTrue returns true if f is a recorded top-level fact.
func (s *Simplifier) isAlwaysTrue(f *Term) bool {
	_, ok := s.alwaysTrue[f]
	return ok
}

// isAlwaysFalse returns true if the negation of f is a recorded top-level fact.
func (s *Simplifier) isAlwaysFalse(f *Term) bool {
	if f.kind == NOT {
		return s.isAlwaysTrue(f.children[0])
	}
	if n, ok := s.store.interiors[interiorKey(NOT, []*Term{f})]; ok {
		return s.isAlwaysTrue(n)
	}
	return false
}

func (s *Simplifier) simplifyNot(f *Term, pushNeg bool) *Term {
	// Count nested negations.
	o, n := f, 0
	for o.kind == NOT {
		o = o.children[0]
		n++
	}
	pn := (n%2 == 1) != pushNeg

	if s.isAlwaysTrue(o) {
		return s.store.Bool(!pn)
	}
	return s.formula(o, pn)
}

// simplifyAndOr simplifies a conjunction or disjunction. Under a pushed
// negation the connective flips and every child is negated.
func (s *Simplifier) simplifyAndOr(kind Kind, children []*Term, pushNeg bool) *Term {
	if pushNeg {
		if kind == AND {
			kind = OR
		} else {
			kind = AND
		}
	}

	annihilator, identity := s.store.False(), s.store.True()
	if kind == OR {
		annihilator, identity = identity, annihilator
	}

	// Simplify and flatten one level.
	var a []*Term
	for _, c := range children {
		sc := s.formula(c, pushNeg)
		if sc.kind == kind {
			a = append(a, sc.children...)
		} else {
			a = append(a, sc)
		}
	}

	// Drop identities, duplicates, and short-circuit on annihilators.
	seen := make(map[*Term]struct{}, len(a))
	out := make([]*Term, 0, len(a))
	for _, c := range a {
		if c == annihilator {
			return annihilator
		} else if c == identity {
			continue
		} else if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	// Complementary pairs.
	for _, c := range out {
		if c.kind != NOT {
			continue
		}
		if _, ok := seen[c.children[0]]; ok {
			return annihilator
		}
	}

	switch len(out) {
	case 0:
		return identity
	case 1:
		return out[0]
	}
	SortTerms(out)
	return s.store.Interior(kind, out...)
}

func (s *Simplifier) simplifyImplies(f *Term, pushNeg bool) *Term {
	a := s.formula(f.children[0], false)
	b := s.formula(f.children[1], false)

	var r *Term
	switch {
	case a == s.store.False() || b == s.store.True() || a == b:
		r = s.store.True()
	case a == s.store.True():
		r = b
	case b == s.store.False():
		r = s.not(a)
	case s.isAlwaysTrue(a):
		r = b
	case s.isAlwaysTrue(b) || s.isAlwaysFalse(a):
		r = s.store.True()
	default:
		r = s.simplifyAndOr(OR, []*Term{s.not(a), b}, false)
	}
	if pushNeg {
		r = s.formula(r, true)
	}
	return r
}

// simplifyXor builds the canonical form of a xor b, negated if neg is set.
// Equivalences are expressed as negated exclusive-ors.
func (s *Simplifier) simplifyXor(a, b *Term, neg bool) *Term {
	a = s.formula(a, false)
	b = s.formula(b, false)

	// Pull negations out of the operands.
	if a.kind == NOT {
		a, neg = a.children[0], !neg
	}
	if b.kind == NOT {
		b, neg = b.children[0], !neg
	}

	var r *Term
	switch {
	case a == b:
		r = s.store.False()
	case a.kind == TRUE:
		r = s.not(b)
	case a.kind == FALSE:
		r = b
	case b.kind == TRUE:
		r = s.not(a)
	case b.kind == FALSE:
		r = a
	default:
		if CompareTerm(b, a) < 0 {
			a, b = b, a
		}
		r = s.store.Interior(XOR, a, b)
	}
	if neg {
		r = s.not(r)
	}
	return r
}

func (s *Simplifier) simplifyIteFormula(f *Term, pushNeg bool) *Term {
	c := s.formula(f.children[0], false)
	switch {
	case c.kind == TRUE || s.isAlwaysTrue(c):
		return s.formula(f.children[1], pushNeg)
	case c.kind == FALSE || s.isAlwaysFalse(c):
		return s.formula(f.children[2], pushNeg)
	}

	t := s.formula(f.children[1], pushNeg)
	e := s.formula(f.children[2], pushNeg)
	switch {
	case t == e:
		return t
	case t.kind == TRUE && e.kind == FALSE:
		return c
	case t.kind == FALSE && e.kind == TRUE:
		return s.not(c)
	case t.kind == TRUE:
		return s.simplifyAndOr(OR, []*Term{c, e}, false)
	case t.kind == FALSE:
		return s.simplifyAndOr(AND, []*Term{s.not(c), e}, false)
	case e.kind == TRUE:
		return s.simplifyAndOr(OR, []*Term{s.not(c), t}, false)
	case e.kind == FALSE:
		return s.simplifyAndOr(AND, []*Term{c, t}, false)
	case c.kind == NOT:
		return s.store.Ite(c.children[0], e, t)
	}
	return s.store.Ite(c, t, e)
}

// simplifyAtom simplifies an equation or comparison.
func (s *Simplifier) simplifyAtom(f *Term) *Term {
	a := s.term(f.children[0])
	b := s.term(f.children[1])

	switch f.kind {
	case EQ:
		return s.simplifiedEq(a, b)
	case NEQ:
		return s.not(s.simplifiedEq(a, b))
	case BVGT:
		return s.simplifiedIneq(BVLT, b, a)
	case BVGE:
		return s.simplifiedIneq(BVLE, b, a)
	case BVSGT:
		return s.simplifiedIneq(BVSLT, b, a)
	case BVSGE:
		return s.simplifiedIneq(BVSLE, b, a)
	default:
		return s.simplifiedIneq(f.kind, a, b)
	}
}

// simplifiedEq returns the canonical form of a = b for simplified a and b.
func (s *Simplifier) simplifiedEq(a, b *Term) *Term {
	if a == b {
		return s.store.True()
	} else if a.kind == BVCONST && b.kind == BVCONST {
		return s.store.False()
	}

	// An if-then-else over constants compared against a constant.
	if r, ok := s.iteConstEq(a, b); ok {
		return r
	} else if r, ok := s.iteConstEq(b, a); ok {
		return r
	}

	if s.disabled {
		return s.sortedEq(a, b)
	}

	// Move everything to one side when either side is a sum.
	if a.kind == BVPLUS || b.kind == BVPLUS {
		// Keep a constant side on the right so the result is a fixpoint.
		if a.kind == BVCONST {
			a, b = b, a
		}
		diff := s.plus([]*Term{a, s.uminus(b)})
		if diff.kind == BVCONST {
			return s.store.Bool(diff.value.IsZero())
		}
		k, rest := splitConstant(s.store, diff)
		rhs := s.store.Zero(diff.valueWidth)
		if k != nil {
			rhs = s.store.Const(k.Neg())
		}
		return s.sortedEq(rest, rhs)
	}
	return s.sortedEq(a, b)
}

func (s *Simplifier) sortedEq(a, b *Term) *Term {
	if CompareTerm(b, a) < 0 {
		a, b = b, a
	}
	return s.store.Eq(a, b)
}

// iteConstEq simplifies ite(c, k1, k2) = k for constants k1, k2 and k.
func (s *Simplifier) iteConstEq(ite, k *Term) (*Term, bool) {
	if ite.kind != ITE || k.kind != BVCONST {
		return nil, false
	}
	t, e := ite.children[1], ite.children[2]
	if t.kind != BVCONST || e.kind != BVCONST {
		return nil, false
	}
	switch {
	case k == t && k != e:
		return ite.children[0], true
	case k == e && k != t:
		return s.not(ite.children[0]), true
	case k != t && k != e:
		return s.store.False(), true
	}
	return nil, false
}

// simplifiedIneq simplifies BVLT, BVLE, BVSLT and BVSLE over simplified operands.
func (s *Simplifier) simplifiedIneq(kind Kind, a, b *Term) *Term {
	if a.kind == BVCONST && b.kind == BVCONST {
		switch kind {
		case BVLT:
			return s.store.Bool(a.value.Ult(b.value))
		case BVLE:
			return s.store.Bool(a.value.Ule(b.value))
		case BVSLT:
			return s.store.Bool(a.value.Slt(b.value))
		case BVSLE:
			return s.store.Bool(a.value.Sle(b.value))
		default:
			panic("unreachable")
		}
	}

	isConst := func(t *Term, pred func(*BVConst) bool) bool {
		return t.kind == BVCONST && pred(t.value)
	}

	switch kind {
	case BVLT:
		switch {
		case a == b, isConst(b, (*BVConst).IsZero), isConst(a, (*BVConst).IsAllOnes):
			return s.store.False()
		case isConst(b, (*BVConst).IsOne):
			return s.simplifiedEq(a, s.store.Zero(a.valueWidth))
		case isConst(a, (*BVConst).IsZero):
			return s.not(s.simplifiedEq(b, s.store.Zero(b.valueWidth)))
		}
	case BVLE:
		switch {
		case a == b, isConst(a, (*BVConst).IsZero), isConst(b, (*BVConst).IsAllOnes):
			return s.store.True()
		case isConst(b, (*BVConst).IsZero):
			return s.simplifiedEq(a, b)
		}
	case BVSLT:
		switch {
		case a == b, isConst(b, (*BVConst).IsMinSigned), isConst(a, (*BVConst).IsMaxSigned):
			return s.store.False()
		}
	case BVSLE:
		switch {
		case a == b, isConst(a, (*BVConst).IsMinSigned), isConst(b, (*BVConst).IsMaxSigned):
			return s.store.True()
		}
	}
	return s.store.Interior(kind, a, b)
}
