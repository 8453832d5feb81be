package bvsolve

// Term returns the simplified form of the bitvector or array term t.
func (s *Simplifier) Term(t *Term) *Term {
	s.sync()
	if t.IsBool() {
		return s.formula(t, false)
	}
	return s.term(t)
}

func (s *Simplifier) term(t *Term) *Term {
	if t.IsBool() {
		return s.formula(t, false)
	}
	if r, ok := s.memo[t]; ok {
		return r
	}

	var r *Term
	switch t.kind {
	case BVCONST:
		r = t
	case SYMBOL:
		if to, ok := s.subst.Lookup(t); ok {
			r = s.term(to)
		} else {
			r = t
		}
	default:
		children := make([]*Term, len(t.children))
		for i, c := range t.children {
			children[i] = s.term(c)
		}
		r = s.rewrite(t.kind, children)
	}

	s.memo[t] = r
	if _, ok := s.memo[r]; !ok {
		s.memo[r] = r
	}
	return r
}

// fold evaluates kind when every operand is a constant. Division by zero is
// never folded.
func (s *Simplifier) fold(kind Kind, children []*Term) (*Term, bool) {
	args := make([]*BVConst, len(children))
	for i, c := range children {
		if c.kind != BVCONST {
			return nil, false
		}
		args[i] = c.value
	}
	v, err := applyOp(kind, args)
	if err != nil {
		return nil, false
	}
	return s.store.Const(v), true
}

// rewrite returns the canonical form of kind applied to simplified children.
func (s *Simplifier) rewrite(kind Kind, children []*Term) *Term {
	switch kind {
	case ITE:
		return s.ite(children[0], children[1], children[2])
	case READ:
		return s.read(children[0], children[1])
	case WRITE:
		return s.store.Write(children[0], children[1], children[2])
	}

	if r, ok := s.fold(kind, children); ok {
		return r
	}
	if s.disabled {
		return s.store.Interior(kind, children...)
	}

	switch kind {
	case BVNEG:
		return s.bvneg(children[0])
	case BVAND, BVOR, BVXOR:
		return s.bitwise(kind, children)
	case BVNAND:
		return s.bvneg(s.bitwise(BVAND, children))
	case BVNOR:
		return s.bvneg(s.bitwise(BVOR, children))
	case BVXNOR:
		return s.bvneg(s.bitwise(BVXOR, children))
	case BVCONCAT:
		return s.concat(children[0], children[1])
	case BVEXTRACT:
		return s.extract(children[0], uint(children[1].value.Uint64()), uint(children[2].value.Uint64()))
	case BVSX:
		return s.signExtend(children[0], uint(children[1].value.Uint64()))
	case BVLEFTSHIFT, BVRIGHTSHIFT, BVSRSHIFT:
		return s.shift(kind, children[0], children[1])
	case BVPLUS:
		return s.plus(children)
	case BVSUB:
		return s.plus([]*Term{children[0], s.uminus(children[1])})
	case BVUMINUS:
		return s.uminus(children[0])
	case BVMULT:
		return s.mult(children)
	case BVDIV, SBVDIV:
		if d := children[1]; d.kind == BVCONST && d.value.IsOne() {
			return children[0]
		}
	case BVMOD, SBVMOD:
		if d := children[1]; d.kind == BVCONST && d.value.IsOne() {
			return s.store.Zero(d.valueWidth)
		}
	}
	return s.store.Interior(kind, children...)
}

// ite returns the simplified if-then-else of simplified operands.
func (s *Simplifier) ite(c, t, e *Term) *Term {
	switch {
	case c.kind == TRUE || s.isAlwaysTrue(c):
		return t
	case c.kind == FALSE || s.isAlwaysFalse(c):
		return e
	case t == e:
		return t
	case c.kind == NOT:
		return s.store.Ite(c.children[0], e, t)
	}
	return s.store.Ite(c, t, e)
}

// read resolves a read through writes whose index equality is decidable.
func (s *Simplifier) read(a, i *Term) *Term {
	for {
		switch a.kind {
		case WRITE:
			switch eq := s.simplifiedEq(a.children[1], i); eq.kind {
			case TRUE:
				return a.children[2]
			case FALSE:
				a = a.children[0]
				continue
			}
		case ITE:
			return s.ite(a.children[0], s.read(a.children[1], i), s.read(a.children[2], i))
		}

		r := s.store.Read(a, i)
		if to, ok := s.subst.Lookup(r); ok {
			return s.term(to)
		}
		return r
	}
}

func (s *Simplifier) bvneg(x *Term) *Term {
	switch x.kind {
	case BVCONST:
		return s.store.Const(x.value.Not())
	case BVNEG:
		return x.children[0]
	}
	return s.store.Neg(x)
}

// bitwise simplifies an n-ary AND, OR or XOR.
func (s *Simplifier) bitwise(kind Kind, children []*Term) *Term {
	w := children[0].valueWidth

	var a []*Term
	for _, c := range children {
		if c.kind == kind {
			a = append(a, c.children...)
		} else {
			a = append(a, c)
		}
	}

	var k *BVConst
	counts := make(map[*Term]int)
	var order []*Term
	for _, c := range a {
		if c.kind == BVCONST {
			if k == nil {
				k = c.value
			} else if v, err := applyOp(kind, []*BVConst{k, c.value}); err == nil {
				k = v
			}
			continue
		}
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}

	var out []*Term
	for _, c := range order {
		switch kind {
		case BVXOR:
			if counts[c]%2 == 0 {
				continue
			}
		default:
			if c.kind == BVNEG && counts[c.children[0]] > 0 {
				if kind == BVAND {
					return s.store.Zero(w)
				}
				return s.store.AllOnes(w)
			}
		}
		out = append(out, c)
	}

	if k != nil {
		switch {
		case kind == BVAND && k.IsZero(), kind == BVOR && k.IsAllOnes():
			return s.store.Const(k)
		case kind == BVAND && k.IsAllOnes(), kind != BVAND && k.IsZero():
			k = nil
		}
	}
	if k != nil {
		if kind == BVXOR && k.IsAllOnes() && len(out) == 1 {
			return s.bvneg(out[0])
		}
		out = append(out, s.store.Const(k))
	}

	switch len(out) {
	case 0:
		if kind == BVAND {
			return s.store.AllOnes(w)
		}
		return s.store.Zero(w)
	case 1:
		return out[0]
	}
	SortTerms(out)
	return s.store.Interior(kind, out...)
}

func (s *Simplifier) concat(hi, lo *Term) *Term {
	if hi.kind == BVCONST && lo.kind == BVCONST {
		return s.store.Const(hi.value.Concat(lo.value))
	}

	// Adjacent extracts of the same term.
	if hi.kind == BVEXTRACT && lo.kind == BVEXTRACT && hi.children[0] == lo.children[0] {
		hh, hl := ExtractBounds(hi)
		lh, ll := ExtractBounds(lo)
		if hl == lh+1 {
			return s.extract(hi.children[0], hh, ll)
		}
	}
	return s.store.Concat(hi, lo)
}

func (s *Simplifier) extract(t *Term, hi, lo uint) *Term {
	if lo == 0 && hi+1 == t.valueWidth {
		return t
	}

	switch t.kind {
	case BVCONST:
		return s.store.Const(t.value.Extract(hi, lo))

	case BVEXTRACT:
		_, l := ExtractBounds(t)
		return s.extract(t.children[0], hi+l, lo+l)

	case BVCONCAT:
		h, l := t.children[0], t.children[1]
		lw := l.valueWidth
		switch {
		case lo >= lw:
			return s.extract(h, hi-lw, lo-lw)
		case hi < lw:
			return s.extract(l, hi, lo)
		default:
			return s.concat(s.extract(h, hi-lw, 0), s.extract(l, lw-1, lo))
		}

	case BVPLUS, BVMULT:
		// The low bits of a sum or product only depend on the low bits of its operands.
		if lo == 0 {
			a := make([]*Term, len(t.children))
			for i, c := range t.children {
				a[i] = s.extract(c, hi, 0)
			}
			if t.kind == BVPLUS {
				return s.plus(a)
			}
			return s.mult(a)
		}

	case BVUMINUS:
		if lo == 0 {
			return s.uminus(s.extract(t.children[0], hi, 0))
		}

	case BVAND, BVOR, BVXOR:
		a := make([]*Term, len(t.children))
		for i, c := range t.children {
			a[i] = s.extract(c, hi, lo)
		}
		return s.bitwise(t.kind, a)

	case BVNEG:
		return s.bvneg(s.extract(t.children[0], hi, lo))

	case ITE:
		return s.ite(t.children[0], s.extract(t.children[1], hi, lo), s.extract(t.children[2], hi, lo))

	case BVSX:
		if x := t.children[0]; hi < x.valueWidth {
			return s.extract(x, hi, lo)
		}
	}
	return s.store.Extract(t, hi, lo)
}

func (s *Simplifier) signExtend(t *Term, width uint) *Term {
	if width == t.valueWidth {
		return t
	}

	switch t.kind {
	case BVCONST:
		return s.store.Const(t.value.SignExtend(width))
	case BVSX:
		return s.signExtend(t.children[0], width)
	case BVNEG:
		return s.bvneg(s.signExtend(t.children[0], width))
	case BVAND, BVOR, BVXOR:
		a := make([]*Term, len(t.children))
		for i, c := range t.children {
			a[i] = s.signExtend(c, width)
		}
		return s.bitwise(t.kind, a)
	case ITE:
		return s.ite(t.children[0], s.signExtend(t.children[1], width), s.signExtend(t.children[2], width))
	}
	return s.store.SignExtend(t, width)
}

// shift rewrites a shift by a constant distance into extraction and concatenation.
func (s *Simplifier) shift(kind Kind, x, n *Term) *Term {
	if n.kind != BVCONST {
		return s.store.Interior(kind, x, n)
	}

	w := x.valueWidth
	k := w
	if n.value.Ult(NewBVConstUint64(uint64(w), w)) {
		k = uint(n.value.Uint64())
	}
	if k == 0 {
		return x
	}

	switch kind {
	case BVLEFTSHIFT:
		if k >= w {
			return s.store.Zero(w)
		}
		return s.concat(s.extract(x, w-1-k, 0), s.store.Zero(k))
	case BVRIGHTSHIFT:
		if k >= w {
			return s.store.Zero(w)
		}
		return s.concat(s.store.Zero(k), s.extract(x, w-1, k))
	default:
		if k >= w {
			return s.signExtend(s.extract(x, w-1, w-1), w)
		}
		return s.signExtend(s.extract(x, w-1, k), w)
	}
}
