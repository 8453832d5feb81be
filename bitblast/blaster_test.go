package bitblast_test

import (
	"fmt"
	"testing"

	"github.com/benbjohnson/bvsolve"
	"github.com/benbjohnson/bvsolve/bitblast"
	"github.com/go-air/gini/z"
)

// Circuit is a test wrapper that evaluates blasted terms over concrete inputs.
type Circuit struct {
	*bitblast.Blaster
	Store *bvsolve.Store
}

// NewCircuit returns a blaster over a fresh store.
func NewCircuit() *Circuit {
	return &Circuit{Blaster: bitblast.New(), Store: bvsolve.NewStore()}
}

// MustTerm blasts t. Fatal on error.
func (c *Circuit) MustTerm(tb testing.TB, t *bvsolve.Term) []z.Lit {
	tb.Helper()
	ms, err := c.Term(t)
	if err != nil {
		tb.Fatal(err)
	}
	return ms
}

// MustFormula blasts f. Fatal on error.
func (c *Circuit) MustFormula(tb testing.TB, f *bvsolve.Term) z.Lit {
	tb.Helper()
	m, err := c.Formula(f)
	if err != nil {
		tb.Fatal(err)
	}
	return m
}

// Eval assigns values to symbols and propagates them through the circuit.
// Returns a function that reads literal values.
func (c *Circuit) Eval(values map[*bvsolve.Term]uint64) func(z.Lit) bool {
	vs := make([]bool, c.Circuit().Len())
	vs[1] = true
	for sym, v := range values {
		ms, _ := c.Inputs(sym)
		for i, m := range ms {
			vs[m.Var()] = (v>>uint(i))&1 == 1
		}
	}
	c.Circuit().Eval(vs)
	return func(m z.Lit) bool {
		if m.IsPos() {
			return vs[m.Var()]
		}
		return !vs[m.Var()]
	}
}

// Value assembles the bits ms into an unsigned value.
func Value(value func(z.Lit) bool, ms []z.Lit) uint64 {
	var v uint64
	for i, m := range ms {
		if value(m) {
			v |= 1 << uint(i)
		}
	}
	return v
}

func TestBlaster_Arithmetic(t *testing.T) {
	for _, w := range []uint{1, 4, 8} {
		w := w
		t.Run(fmt.Sprintf("Width%d", w), func(t *testing.T) {
			c := NewCircuit()
			s := c.Store
			x, y := s.Symbol("x", 0, w), s.Symbol("y", 0, w)

			ops := []struct {
				name string
				term *bvsolve.Term
				fn   func(a, b *bvsolve.BVConst) *bvsolve.BVConst
			}{
				{"Add", s.Plus(x, y), (*bvsolve.BVConst).Add},
				{"Mul", s.Mult(x, y), (*bvsolve.BVConst).Mul},
				{"Sub", s.Interior(bvsolve.BVSUB, x, y), (*bvsolve.BVConst).Sub},
			}
			bits := make([][]z.Lit, len(ops))
			for i, op := range ops {
				bits[i] = c.MustTerm(t, op.term)
			}

			n := uint64(1) << w
			step := uint64(1)
			if testing.Short() && w == 8 {
				step = 7
			}
			for a := uint64(0); a < n; a += step {
				for b := uint64(0); b < n; b++ {
					value := c.Eval(map[*bvsolve.Term]uint64{x: a, y: b})
					for i, op := range ops {
						exp := op.fn(bvsolve.NewBVConstUint64(a, w), bvsolve.NewBVConstUint64(b, w)).Uint64()
						if got := Value(value, bits[i]); got != exp {
							t.Fatalf("%s(%d, %d): got %d, expected %d", op.name, a, b, got, exp)
						}
					}
				}
			}
		})
	}
}

// Constant operands fold while blasting so no gates are created.
func TestBlaster_Constants(t *testing.T) {
	c := NewCircuit()
	s := c.Store
	const w = 4
	for a := uint64(0); a < 1<<w; a++ {
		for b := uint64(0); b < 1<<w; b++ {
			ka, kb := bvsolve.NewBVConstUint64(a, w), bvsolve.NewBVConstUint64(b, w)
			x, y := s.Const(ka), s.Const(kb)
			for _, tt := range []struct {
				term *bvsolve.Term
				exp  *bvsolve.BVConst
			}{
				{s.Plus(x, y), ka.Add(kb)},
				{s.Mult(x, y), ka.Mul(kb)},
				{s.Interior(bvsolve.BVSUB, x, y), ka.Sub(kb)},
			} {
				ms := c.MustTerm(t, tt.term)
				for i, m := range ms {
					if exp := c.Circuit().T; tt.exp.Bit(uint(i)) && m != exp {
						t.Fatalf("%s: bit %d: expected true", tt.term, i)
					} else if exp := c.Circuit().F; !tt.exp.Bit(uint(i)) && m != exp {
						t.Fatalf("%s: bit %d: expected false", tt.term, i)
					}
				}
			}
		}
	}
	if n := c.Circuit().Len(); n != 2 {
		t.Fatalf("unexpected circuit size: %d", n)
	}
}

func TestBlaster_Compare(t *testing.T) {
	const w = 4
	c := NewCircuit()
	s := c.Store
	x, y := s.Symbol("x", 0, w), s.Symbol("y", 0, w)

	cmps := []struct {
		kind bvsolve.Kind
		fn   func(a, b *bvsolve.BVConst) bool
	}{
		{bvsolve.EQ, (*bvsolve.BVConst).Equal},
		{bvsolve.NEQ, func(a, b *bvsolve.BVConst) bool { return !a.Equal(b) }},
		{bvsolve.BVLT, (*bvsolve.BVConst).Ult},
		{bvsolve.BVLE, (*bvsolve.BVConst).Ule},
		{bvsolve.BVGT, func(a, b *bvsolve.BVConst) bool { return b.Ult(a) }},
		{bvsolve.BVGE, func(a, b *bvsolve.BVConst) bool { return b.Ule(a) }},
		{bvsolve.BVSLT, (*bvsolve.BVConst).Slt},
		{bvsolve.BVSLE, (*bvsolve.BVConst).Sle},
		{bvsolve.BVSGT, func(a, b *bvsolve.BVConst) bool { return b.Slt(a) }},
		{bvsolve.BVSGE, func(a, b *bvsolve.BVConst) bool { return b.Sle(a) }},
	}
	lits := make([]z.Lit, len(cmps))
	for i, cmp := range cmps {
		lits[i] = c.MustFormula(t, s.Interior(cmp.kind, x, y))
	}

	for a := uint64(0); a < 1<<w; a++ {
		for b := uint64(0); b < 1<<w; b++ {
			value := c.Eval(map[*bvsolve.Term]uint64{x: a, y: b})
			for i, cmp := range cmps {
				exp := cmp.fn(bvsolve.NewBVConstUint64(a, w), bvsolve.NewBVConstUint64(b, w))
				if got := value(lits[i]); got != exp {
					t.Fatalf("%s(%d, %d): got %v, expected %v", cmp.kind, a, b, got, exp)
				}
			}
		}
	}
}

func TestBlaster_Division(t *testing.T) {
	const w = 4
	c := NewCircuit()
	s := c.Store
	x, y := s.Symbol("x", 0, w), s.Symbol("y", 0, w)

	udiv := c.MustTerm(t, s.Interior(bvsolve.BVDIV, x, y))
	urem := c.MustTerm(t, s.Interior(bvsolve.BVMOD, x, y))
	sdiv := c.MustTerm(t, s.Interior(bvsolve.SBVDIV, x, y))
	srem := c.MustTerm(t, s.Interior(bvsolve.SBVMOD, x, y))

	for a := uint64(0); a < 1<<w; a++ {
		for b := uint64(0); b < 1<<w; b++ {
			ka, kb := bvsolve.NewBVConstUint64(a, w), bvsolve.NewBVConstUint64(b, w)
			value := c.Eval(map[*bvsolve.Term]uint64{x: a, y: b})

			// Division by zero yields all ones and the dividend.
			if b == 0 {
				if got := Value(value, udiv); got != 1<<w-1 {
					t.Fatalf("udiv(%d, 0): got %d", a, got)
				} else if got := Value(value, urem); got != a {
					t.Fatalf("urem(%d, 0): got %d", a, got)
				} else if got := Value(value, srem); got != a {
					t.Fatalf("srem(%d, 0): got %d", a, got)
				}
				continue
			}

			q, _ := ka.UDiv(kb)
			r, _ := ka.URem(kb)
			sq, _ := ka.SDiv(kb)
			sr, _ := ka.SRem(kb)
			if got := Value(value, udiv); got != q.Uint64() {
				t.Fatalf("udiv(%d, %d): got %d, expected %s", a, b, got, q)
			} else if got := Value(value, urem); got != r.Uint64() {
				t.Fatalf("urem(%d, %d): got %d, expected %s", a, b, got, r)
			} else if got := Value(value, sdiv); got != sq.Uint64() {
				t.Fatalf("sdiv(%d, %d): got %d, expected %s", a, b, got, sq)
			} else if got := Value(value, srem); got != sr.Uint64() {
				t.Fatalf("srem(%d, %d): got %d, expected %s", a, b, got, sr)
			}
		}
	}
}

func TestBlaster_Shift(t *testing.T) {
	const w = 4
	c := NewCircuit()
	s := c.Store
	x, y := s.Symbol("x", 0, w), s.Symbol("y", 0, w)

	shl := c.MustTerm(t, s.Interior(bvsolve.BVLEFTSHIFT, x, y))
	lshr := c.MustTerm(t, s.Interior(bvsolve.BVRIGHTSHIFT, x, y))
	ashr := c.MustTerm(t, s.Interior(bvsolve.BVSRSHIFT, x, y))

	for a := uint64(0); a < 1<<w; a++ {
		for b := uint64(0); b < 1<<w; b++ {
			ka, kb := bvsolve.NewBVConstUint64(a, w), bvsolve.NewBVConstUint64(b, w)
			value := c.Eval(map[*bvsolve.Term]uint64{x: a, y: b})
			if got, exp := Value(value, shl), ka.Shl(kb).Uint64(); got != exp {
				t.Fatalf("shl(%d, %d): got %d, expected %d", a, b, got, exp)
			} else if got, exp := Value(value, lshr), ka.LShr(kb).Uint64(); got != exp {
				t.Fatalf("lshr(%d, %d): got %d, expected %d", a, b, got, exp)
			} else if got, exp := Value(value, ashr), ka.AShr(kb).Uint64(); got != exp {
				t.Fatalf("ashr(%d, %d): got %d, expected %d", a, b, got, exp)
			}
		}
	}
}

func TestBlaster_Structural(t *testing.T) {
	c := NewCircuit()
	s := c.Store
	x := s.Symbol("x", 0, 4)
	y := s.Symbol("y", 0, 4)
	p := s.Symbol("p", 0, 0)

	concat := c.MustTerm(t, s.Concat(x, y))
	extract := c.MustTerm(t, s.Extract(x, 2, 1))
	sx := c.MustTerm(t, s.SignExtend(x, 8))
	ite := c.MustTerm(t, s.Ite(p, x, y))
	neg := c.MustTerm(t, s.UMinus(x))
	not := c.MustTerm(t, s.Neg(x))

	for a := uint64(0); a < 16; a++ {
		for _, pv := range []uint64{0, 1} {
			value := c.Eval(map[*bvsolve.Term]uint64{x: a, y: 5, p: pv})
			ka := bvsolve.NewBVConstUint64(a, 4)

			if got, exp := Value(value, concat), a<<4|5; got != exp {
				t.Fatalf("concat(%d): got %d, expected %d", a, got, exp)
			} else if got, exp := Value(value, extract), (a>>1)&3; got != exp {
				t.Fatalf("extract(%d): got %d, expected %d", a, got, exp)
			} else if got, exp := Value(value, sx), ka.SignExtend(8).Uint64(); got != exp {
				t.Fatalf("sign_extend(%d): got %d, expected %d", a, got, exp)
			} else if got, exp := Value(value, neg), ka.Neg().Uint64(); got != exp {
				t.Fatalf("neg(%d): got %d, expected %d", a, got, exp)
			} else if got, exp := Value(value, not), ka.Not().Uint64(); got != exp {
				t.Fatalf("not(%d): got %d, expected %d", a, got, exp)
			}

			exp := uint64(5)
			if pv == 1 {
				exp = a
			}
			if got := Value(value, ite); got != exp {
				t.Fatalf("ite(%d, %d): got %d, expected %d", pv, a, got, exp)
			}
		}
	}
}

func TestBlaster_Errors(t *testing.T) {
	t.Run("Array", func(t *testing.T) {
		c := NewCircuit()
		s := c.Store
		a := s.Symbol("a", 4, 8)
		if _, err := c.Formula(s.Eq(s.Read(a, s.Zero(4)), s.Zero(8))); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("NonFormula", func(t *testing.T) {
		c := NewCircuit()
		if _, err := c.Formula(c.Store.Symbol("x", 0, 4)); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("NonBitvector", func(t *testing.T) {
		c := NewCircuit()
		if _, err := c.Term(c.Store.True()); err == nil {
			t.Fatal("expected error")
		}
	})
}
