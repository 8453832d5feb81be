package bitblast

import (
	"github.com/benbjohnson/bvsolve"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"
)

// Blaster translates array-free formulas into an and-inverter circuit.
// Bitvectors are represented as slices of literals, least significant bit
// first. Translations are cached so shared subterms are blasted once.
type Blaster struct {
	c *logic.C

	terms map[*bvsolve.Term][]z.Lit
	forms map[*bvsolve.Term]z.Lit

	symbols map[*bvsolve.Term][]z.Lit
	order   []*bvsolve.Term // symbols in first-seen order
}

// New returns a blaster over an empty circuit.
func New() *Blaster {
	return &Blaster{
		c:       logic.NewCCap(1024),
		terms:   make(map[*bvsolve.Term][]z.Lit),
		forms:   make(map[*bvsolve.Term]z.Lit),
		symbols: make(map[*bvsolve.Term][]z.Lit),
	}
}

// Circuit returns the underlying circuit.
func (b *Blaster) Circuit() *logic.C { return b.c }

// Symbols returns every symbol blasted so far, in first-seen order.
func (b *Blaster) Symbols() []*bvsolve.Term { return b.order }

// Inputs returns the input literals of a blasted symbol.
func (b *Blaster) Inputs(sym *bvsolve.Term) ([]z.Lit, bool) {
	ms, ok := b.symbols[sym]
	return ms, ok
}

// Formula returns the literal equivalent to the formula f.
func (b *Blaster) Formula(f *bvsolve.Term) (z.Lit, error) {
	if !f.IsBool() {
		return z.LitNull, errors.Errorf("blast: non-formula %s", f)
	}
	return b.formula(f)
}

// Term returns the bits of the bitvector term t, least significant first.
func (b *Blaster) Term(t *bvsolve.Term) ([]z.Lit, error) {
	if !t.IsBV() {
		return nil, errors.Errorf("blast: non-bitvector %s", t)
	}
	return b.term(t)
}

func (b *Blaster) input(sym *bvsolve.Term, n uint) []z.Lit {
	if ms, ok := b.symbols[sym]; ok {
		return ms
	}
	ms := make([]z.Lit, n)
	for i := range ms {
		ms[i] = b.c.Lit()
	}
	b.symbols[sym] = ms
	b.order = append(b.order, sym)
	return ms
}

func (b *Blaster) formula(f *bvsolve.Term) (z.Lit, error) {
	if m, ok := b.forms[f]; ok {
		return m, nil
	}

	m, err := b.blastFormula(f)
	if err != nil {
		return z.LitNull, err
	}
	b.forms[f] = m
	return m, nil
}

func (b *Blaster) blastFormula(f *bvsolve.Term) (z.Lit, error) {
	c := b.c
	switch f.Kind() {
	case bvsolve.TRUE:
		return c.T, nil
	case bvsolve.FALSE:
		return c.F, nil
	case bvsolve.SYMBOL:
		return b.input(f, 1)[0], nil

	case bvsolve.NOT:
		m, err := b.formula(f.Child(0))
		return m.Not(), err

	case bvsolve.AND, bvsolve.OR, bvsolve.NAND, bvsolve.NOR, bvsolve.XOR:
		ms, err := b.formulas(f.Children())
		if err != nil {
			return z.LitNull, err
		}
		switch f.Kind() {
		case bvsolve.AND:
			return c.Ands(ms...), nil
		case bvsolve.OR:
			return c.Ors(ms...), nil
		case bvsolve.NAND:
			return c.Ands(ms...).Not(), nil
		case bvsolve.NOR:
			return c.Ors(ms...).Not(), nil
		default:
			m := c.F
			for _, x := range ms {
				m = c.Xor(m, x)
			}
			return m, nil
		}

	case bvsolve.IFF, bvsolve.IMPLIES:
		ms, err := b.formulas(f.Children())
		if err != nil {
			return z.LitNull, err
		} else if f.Kind() == bvsolve.IFF {
			return c.Xor(ms[0], ms[1]).Not(), nil
		}
		return c.Implies(ms[0], ms[1]), nil

	case bvsolve.ITE:
		ms, err := b.formulas(f.Children())
		if err != nil {
			return z.LitNull, err
		}
		return c.Choice(ms[0], ms[1], ms[2]), nil

	case bvsolve.EQ, bvsolve.NEQ,
		bvsolve.BVLT, bvsolve.BVLE, bvsolve.BVGT, bvsolve.BVGE,
		bvsolve.BVSLT, bvsolve.BVSLE, bvsolve.BVSGT, bvsolve.BVSGE:
		x, err := b.term(f.Child(0))
		if err != nil {
			return z.LitNull, err
		}
		y, err := b.term(f.Child(1))
		if err != nil {
			return z.LitNull, err
		}
		return b.compare(f.Kind(), x, y), nil

	default:
		return z.LitNull, errors.Errorf("blast: unsupported formula %s", f)
	}
}

func (b *Blaster) formulas(a []*bvsolve.Term) ([]z.Lit, error) {
	ms := make([]z.Lit, len(a))
	for i, f := range a {
		m, err := b.formula(f)
		if err != nil {
			return nil, err
		}
		ms[i] = m
	}
	return ms, nil
}

func (b *Blaster) compare(kind bvsolve.Kind, x, y []z.Lit) z.Lit {
	switch kind {
	case bvsolve.EQ:
		return b.eq(x, y)
	case bvsolve.NEQ:
		return b.eq(x, y).Not()
	case bvsolve.BVLT:
		return b.lt(x, y, false)
	case bvsolve.BVLE:
		return b.lt(y, x, false).Not()
	case bvsolve.BVGT:
		return b.lt(y, x, false)
	case bvsolve.BVGE:
		return b.lt(x, y, false).Not()
	case bvsolve.BVSLT:
		return b.lt(x, y, true)
	case bvsolve.BVSLE:
		return b.lt(y, x, true).Not()
	case bvsolve.BVSGT:
		return b.lt(y, x, true)
	default:
		return b.lt(x, y, true).Not()
	}
}

func (b *Blaster) term(t *bvsolve.Term) ([]z.Lit, error) {
	if ms, ok := b.terms[t]; ok {
		return ms, nil
	}

	ms, err := b.blastTerm(t)
	if err != nil {
		return nil, err
	}
	if uint(len(ms)) != t.ValueWidth() {
		return nil, errors.Errorf("blast: %s produced %d bits, expected %d", t, len(ms), t.ValueWidth())
	}
	b.terms[t] = ms
	return ms, nil
}

func (b *Blaster) blastTerm(t *bvsolve.Term) ([]z.Lit, error) {
	switch t.Kind() {
	case bvsolve.BVCONST:
		return b.constant(t.Value()), nil
	case bvsolve.SYMBOL:
		return b.input(t, t.ValueWidth()), nil

	case bvsolve.ITE:
		cond, err := b.formula(t.Child(0))
		if err != nil {
			return nil, err
		}
		x, err := b.term(t.Child(1))
		if err != nil {
			return nil, err
		}
		y, err := b.term(t.Child(2))
		if err != nil {
			return nil, err
		}
		return b.ite(cond, x, y), nil

	case bvsolve.BVEXTRACT:
		x, err := b.term(t.Child(0))
		if err != nil {
			return nil, err
		}
		hi, lo := bvsolve.ExtractBounds(t)
		return append([]z.Lit(nil), x[lo:hi+1]...), nil

	case bvsolve.BVSX:
		x, err := b.term(t.Child(0))
		if err != nil {
			return nil, err
		}
		return b.signExtend(x, t.ValueWidth()), nil

	case bvsolve.READ, bvsolve.WRITE:
		return nil, errors.Errorf("blast: array term %s", t)
	}

	args := make([][]z.Lit, t.Len())
	for i, c := range t.Children() {
		x, err := b.term(c)
		if err != nil {
			return nil, err
		}
		args[i] = x
	}

	switch t.Kind() {
	case bvsolve.BVNEG:
		return not(args[0]), nil
	case bvsolve.BVAND:
		return b.bitwise(b.c.And, args), nil
	case bvsolve.BVOR:
		return b.bitwise(b.c.Or, args), nil
	case bvsolve.BVXOR:
		return b.bitwise(b.c.Xor, args), nil
	case bvsolve.BVNAND:
		return not(b.bitwise(b.c.And, args)), nil
	case bvsolve.BVNOR:
		return not(b.bitwise(b.c.Or, args)), nil
	case bvsolve.BVXNOR:
		return not(b.bitwise(b.c.Xor, args)), nil
	case bvsolve.BVCONCAT:
		// The first child holds the most significant bits.
		var out []z.Lit
		for i := len(args) - 1; i >= 0; i-- {
			out = append(out, args[i]...)
		}
		return out, nil
	case bvsolve.BVLEFTSHIFT:
		return b.shift(args[0], args[1], shiftLeft), nil
	case bvsolve.BVRIGHTSHIFT:
		return b.shift(args[0], args[1], shiftRight), nil
	case bvsolve.BVSRSHIFT:
		return b.shift(args[0], args[1], shiftArith), nil
	case bvsolve.BVPLUS:
		out := args[0]
		for _, x := range args[1:] {
			out = b.add(out, x)
		}
		return out, nil
	case bvsolve.BVSUB:
		return b.sub(args[0], args[1]), nil
	case bvsolve.BVMULT:
		out := args[0]
		for _, x := range args[1:] {
			out = b.mult(out, x)
		}
		return out, nil
	case bvsolve.BVUMINUS:
		return b.neg(args[0]), nil
	case bvsolve.BVDIV:
		q, _ := b.divMod(args[0], args[1])
		return q, nil
	case bvsolve.BVMOD:
		_, r := b.divMod(args[0], args[1])
		return r, nil
	case bvsolve.SBVDIV:
		q, _ := b.signedDivMod(args[0], args[1])
		return q, nil
	case bvsolve.SBVMOD:
		_, r := b.signedDivMod(args[0], args[1])
		return r, nil
	default:
		return nil, errors.Errorf("blast: unsupported term %s", t)
	}
}

// constant returns the bits of v as constant literals.
func (b *Blaster) constant(v *bvsolve.BVConst) []z.Lit {
	ms := make([]z.Lit, v.Width())
	for i := range ms {
		if v.Bit(uint(i)) {
			ms[i] = b.c.T
		} else {
			ms[i] = b.c.F
		}
	}
	return ms
}

func (b *Blaster) bitwise(op func(x, y z.Lit) z.Lit, args [][]z.Lit) []z.Lit {
	out := append([]z.Lit(nil), args[0]...)
	for _, x := range args[1:] {
		for i := range out {
			out[i] = op(out[i], x[i])
		}
	}
	return out
}

func not(x []z.Lit) []z.Lit {
	out := make([]z.Lit, len(x))
	for i, m := range x {
		out[i] = m.Not()
	}
	return out
}
