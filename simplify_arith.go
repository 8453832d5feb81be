package bvsolve

// plus returns the canonical sum of simplified children: a leading constant
// (omitted when zero) followed by one monomial per distinct variable part,
// each with its combined coefficient.
func (s *Simplifier) plus(children []*Term) *Term {
	w := children[0].valueWidth

	var a []*Term
	for _, c := range children {
		if c.kind == BVPLUS {
			a = append(a, c.children...)
		} else {
			a = append(a, c)
		}
	}

	k := NewBVConstUint64(0, w)
	coeffs := make(map[*Term]*BVConst)
	var vars []*Term
	for _, c := range a {
		coef, v := splitMonomial(s.store, c)
		if v == nil {
			k = k.Add(coef)
			continue
		}
		if prev, ok := coeffs[v]; ok {
			coeffs[v] = prev.Add(coef)
			continue
		}
		coeffs[v] = coef
		vars = append(vars, v)
	}
	SortTerms(vars)

	var out []*Term
	if !k.IsZero() {
		out = append(out, s.store.Const(k))
	}
	for _, v := range vars {
		if coef := coeffs[v]; !coef.IsZero() {
			out = append(out, monomial(s.store, coef, v))
		}
	}

	switch len(out) {
	case 0:
		return s.store.Zero(w)
	case 1:
		return out[0]
	}
	return s.store.Interior(BVPLUS, out...)
}

// uminus returns the simplified two's complement negation of x.
// The result never contains a unary minus.
func (s *Simplifier) uminus(x *Term) *Term {
	switch x.kind {
	case BVCONST:
		return s.store.Const(x.value.Neg())
	case BVUMINUS:
		return x.children[0]
	case BVMULT:
		if k := x.children[0]; k.kind == BVCONST {
			return monomial(s.store, k.value.Neg(), s.store.Mult(x.children[1:]...))
		}
	case BVPLUS:
		a := make([]*Term, len(x.children))
		for i, c := range x.children {
			a[i] = s.uminus(c)
		}
		return s.plus(a)
	case BVNEG:
		// -(~y) = y + 1
		return s.plus([]*Term{x.children[0], s.store.One(x.valueWidth)})
	case ITE:
		return s.ite(x.children[0], s.uminus(x.children[1]), s.uminus(x.children[2]))
	}
	return s.store.Mult(s.store.AllOnes(x.valueWidth), x)
}

// mult returns the canonical product of simplified children: a leading
// constant (omitted when one) followed by the sorted non-constant factors.
// Products containing a sum are distributed into a sum of products.
func (s *Simplifier) mult(children []*Term) *Term {
	w := children[0].valueWidth

	k := NewBVConstUint64(1, w)
	var factors []*Term
	for _, c := range children {
		var a []*Term
		if c.kind == BVMULT {
			a = c.children
		} else {
			a = []*Term{c}
		}
		for _, f := range a {
			if f.kind == BVCONST {
				k = k.Mul(f.value)
			} else {
				factors = append(factors, f)
			}
		}
	}

	if k.IsZero() {
		return s.store.Zero(w)
	} else if len(factors) == 0 {
		return s.store.Const(k)
	}
	SortTerms(factors)

	// Distribute over the first sum. The remaining sums are distributed by
	// the recursive products.
	for i, f := range factors {
		if f.kind != BVPLUS {
			continue
		}
		var rest []*Term
		if !k.IsOne() {
			rest = append(rest, s.store.Const(k))
		}
		rest = append(rest, factors[:i]...)
		rest = append(rest, factors[i+1:]...)

		a := make([]*Term, len(f.children))
		for j, c := range f.children {
			a[j] = s.mult(append(rest[:len(rest):len(rest)], c))
		}
		return s.plus(a)
	}

	if k.IsOne() {
		return s.store.Mult(factors...)
	}
	return s.store.Mult(append([]*Term{s.store.Const(k)}, factors...)...)
}

// splitMonomial splits a summand into its coefficient and variable part.
// The variable part is nil for a constant.
func splitMonomial(store *Store, t *Term) (*BVConst, *Term) {
	switch t.kind {
	case BVCONST:
		return t.value, nil
	case BVMULT:
		if k := t.children[0]; k.kind == BVCONST {
			return k.value, store.Mult(t.children[1:]...)
		}
	case BVUMINUS:
		return NewBVConstInt64(-1, t.valueWidth), t.children[0]
	}
	return NewBVConstUint64(1, t.valueWidth), t
}

// monomial returns coef times v. A product v has coef prepended.
func monomial(store *Store, coef *BVConst, v *Term) *Term {
	switch {
	case coef.IsZero():
		return store.Const(coef)
	case coef.IsOne():
		return v
	case v.kind == BVMULT:
		return store.Mult(append([]*Term{store.Const(coef)}, v.children...)...)
	}
	return store.Mult(store.Const(coef), v)
}

// splitConstant splits a canonical sum into its constant and the rest.
// The constant is nil if the sum has none.
func splitConstant(store *Store, t *Term) (*BVConst, *Term) {
	if t.kind == BVPLUS && t.children[0].kind == BVCONST {
		return t.children[0].value, store.Plus(t.children[1:]...)
	}
	return nil, t
}
