package bvsolve_test

import (
	"math/rand"
	"testing"

	"github.com/benbjohnson/bvsolve"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

// NewSimplifier returns a simplifier with an empty substitution map.
func NewSimplifier(s *bvsolve.Store) *bvsolve.Simplifier {
	return bvsolve.NewSimplifier(s, bvsolve.NewSubstitution())
}

// Bits returns the assignment bits of v at width w, least significant first.
func Bits(v uint64, w uint) []bool {
	a := make([]bool, w)
	for i := range a {
		a[i] = (v>>uint(i))&1 == 1
	}
	return a
}

// sampleFormulas returns formulas over 4-bit x and y and boolean p and q.
func sampleFormulas(s *bvsolve.Store) []*bvsolve.Term {
	x, y := s.Symbol("x", 0, 4), s.Symbol("y", 0, 4)
	p, q := s.Symbol("p", 0, 0), s.Symbol("q", 0, 0)
	k := func(v uint64) *bvsolve.Term { return s.ConstUint64(v, 4) }

	return []*bvsolve.Term{
		s.Eq(s.Plus(x, y), k(5)),
		s.Eq(s.Plus(x, k(1)), s.Plus(y, k(2))),
		s.Eq(s.Plus(x, y), y),
		s.Eq(s.Mult(k(2), s.Plus(x, k(3))), y),
		s.Eq(s.Mult(s.Plus(x, k(1)), y), k(0)),
		s.Eq(s.Interior(bvsolve.BVSUB, x, y), s.UMinus(s.Interior(bvsolve.BVSUB, y, x))),
		s.And(p, s.Or(q, s.Not(p)), s.Not(s.Not(q))),
		s.Interior(bvsolve.NAND, p, s.Interior(bvsolve.NOR, q, p)),
		s.Implies(p, s.Interior(bvsolve.XOR, p, q)),
		s.Iff(s.Not(p), q),
		s.Ite(p, s.Eq(x, y), s.False()),
		s.Ite(s.Not(p), s.True(), q),
		s.Interior(bvsolve.BVLT, x, k(1)),
		s.Interior(bvsolve.BVLE, k(0), x),
		s.Interior(bvsolve.BVGT, x, k(15)),
		s.Interior(bvsolve.BVSGE, x, y),
		s.Interior(bvsolve.NEQ, s.Neg(s.Neg(x)), x),
		s.Eq(s.Extract(s.Concat(x, y), 5, 2), s.Concat(s.Extract(x, 1, 0), s.Extract(y, 3, 2))),
		s.Eq(s.Extract(s.Plus(x, y), 1, 0), s.Extract(y, 1, 0)),
		s.Eq(s.Interior(bvsolve.BVLEFTSHIFT, x, k(1)), s.Mult(x, k(2))),
		s.Eq(s.Interior(bvsolve.BVSRSHIFT, x, k(2)), s.Interior(bvsolve.BVRIGHTSHIFT, y, k(5))),
		s.Eq(s.Interior(bvsolve.BVAND, x, s.Neg(x), y), s.Interior(bvsolve.BVXOR, x, x)),
		s.Eq(s.Interior(bvsolve.BVOR, x, k(0), s.Interior(bvsolve.BVXOR, y, k(15))), x),
		s.Eq(s.SignExtend(s.SignExtend(s.Extract(x, 1, 0), 3), 4), s.Ite(p, x, y)),
		s.Eq(s.UMinus(s.Neg(x)), s.Plus(x, k(1))),
		s.Eq(s.Interior(bvsolve.BVDIV, x, k(1)), s.Interior(bvsolve.BVMOD, y, k(1))),
	}
}

func TestSimplifier_Idempotent(t *testing.T) {
	s := bvsolve.NewStore()
	for _, f := range sampleFormulas(s) {
		r := NewSimplifier(s).Formula(f)
		if rr := NewSimplifier(s).Formula(r); rr != r {
			t.Fatalf("not idempotent:\n%s\n=> %s\n=> %s", f, r, rr)
		}
	}
}

// Simplified formulas agree with the original under every assignment.
func TestSimplifier_Equivalent(t *testing.T) {
	s := bvsolve.NewStore()
	for _, f := range sampleFormulas(s) {
		assertEquivalent(t, s, f, NewSimplifier(s).Formula(f))
	}
}

// Random boolean structure over a few atoms stays fixed under a second pass
// and keeps its meaning.
func TestSimplifier_Random(t *testing.T) {
	s := bvsolve.NewStore()
	x, y := s.Symbol("x", 0, 4), s.Symbol("y", 0, 4)
	p, q := s.Symbol("p", 0, 0), s.Symbol("q", 0, 0)
	atoms := []*bvsolve.Term{
		p, q, s.True(), s.False(),
		s.Eq(x, y),
		s.Eq(x, s.ConstUint64(3, 4)),
		s.Interior(bvsolve.BVLT, x, y),
		s.Interior(bvsolve.BVSLE, x, y),
	}

	rng := rand.New(rand.NewSource(0))
	for n := 0; n < 3000; n++ {
		f := randomFormula(rng, s, atoms, 2+n%2)
		r := NewSimplifier(s).Formula(f)
		if rr := NewSimplifier(s).Formula(r); rr != r {
			t.Fatalf("not idempotent:\n%s\n=> %s\n=> %s", f, r, rr)
		}
		if n < 200 {
			assertEquivalent(t, s, f, r)
		}
	}
}

// randomFormula returns a formula of at most the given depth over atoms.
func randomFormula(rng *rand.Rand, s *bvsolve.Store, atoms []*bvsolve.Term, depth int) *bvsolve.Term {
	if depth == 0 || rng.Intn(5) == 0 {
		return atoms[rng.Intn(len(atoms))]
	}
	a := randomFormula(rng, s, atoms, depth-1)
	b := randomFormula(rng, s, atoms, depth-1)
	switch rng.Intn(9) {
	case 0:
		return s.Not(a)
	case 1:
		return s.And(a, b)
	case 2:
		return s.Or(a, b)
	case 3:
		return s.Interior(bvsolve.NAND, a, b)
	case 4:
		return s.Interior(bvsolve.NOR, a, b)
	case 5:
		return s.Interior(bvsolve.XOR, a, b)
	case 6:
		return s.Iff(a, b)
	case 7:
		return s.Implies(a, b)
	default:
		return s.Ite(a, b, randomFormula(rng, s, atoms, depth-1))
	}
}

// assertEquivalent checks f and r over every assignment of 4-bit x and y and
// boolean p and q.
func assertEquivalent(tb testing.TB, s *bvsolve.Store, f, r *bvsolve.Term) {
	tb.Helper()
	x, y := s.Symbol("x", 0, 4), s.Symbol("y", 0, 4)
	p, q := s.Symbol("p", 0, 0), s.Symbol("q", 0, 0)

	for v := uint64(0); v < 1<<10; v++ {
		m := bvsolve.NewModel(s, bvsolve.Assignment{
			x: Bits(v, 4),
			y: Bits(v>>4, 4),
			p: Bits(v>>8, 1),
			q: Bits(v>>9, 1),
		}, nil)
		exp, err := m.Holds(f)
		if err != nil {
			tb.Fatal(err)
		}
		got, err := m.Holds(r)
		if err != nil {
			tb.Fatal(err)
		} else if got != exp {
			tb.Fatalf("%s => %s: mismatch at %s", f, r, spew.Sdump(v))
		}
	}
}

func TestSimplifier_Formula(t *testing.T) {
	s := bvsolve.NewStore()
	x, y := s.Symbol("x", 0, 4), s.Symbol("y", 0, 4)
	p, q := s.Symbol("p", 0, 0), s.Symbol("q", 0, 0)
	k := func(v uint64) *bvsolve.Term { return s.ConstUint64(v, 4) }

	for _, tt := range []struct {
		name string
		in   *bvsolve.Term
		exp  *bvsolve.Term
	}{
		{"DoubleNegation", s.Not(s.Not(p)), p},
		{"Complement", s.And(p, s.Not(p)), s.False()},
		{"Duplicate", s.Or(q, p, q), s.Or(p, q)},
		{"NAND", s.Interior(bvsolve.NAND, p, q), s.Or(s.Not(p), s.Not(q))},
		{"ImpliesSelf", s.Implies(p, p), s.True()},
		{"XorTrue", s.Interior(bvsolve.XOR, p, s.True()), s.Not(p)},
		{"IffFalse", s.Iff(s.False(), q), s.Not(q)},
		{"IteSameBranches", s.Ite(p, q, q), q},
		{"IteBool", s.Ite(p, s.True(), s.False()), p},
		{"EqSelf", s.Eq(x, x), s.True()},
		{"EqConst", s.Eq(k(1), k(2)), s.False()},
		{"EqSorted", s.Eq(y, x), s.Eq(x, y)},
		{"EqSum", s.Eq(s.Plus(x, k(1)), k(0)), s.Eq(k(15), x)},
		{"LtZero", s.Interior(bvsolve.BVLT, x, k(0)), s.False()},
		{"LtOne", s.Interior(bvsolve.BVLT, x, k(1)), s.Eq(k(0), x)},
		{"LeMax", s.Interior(bvsolve.BVLE, x, k(15)), s.True()},
		{"GtSwap", s.Interior(bvsolve.BVGT, x, y), s.Interior(bvsolve.BVLT, y, x)},
		{"SltFold", s.Interior(bvsolve.BVSLT, k(8), k(7)), s.True()},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSimplifier(s).Formula(tt.in); got != tt.exp {
				t.Fatalf("got %s, expected %s", got, tt.exp)
			}
		})
	}
}

func TestSimplifier_Term(t *testing.T) {
	s := bvsolve.NewStore()
	x, y := s.Symbol("x", 0, 4), s.Symbol("y", 0, 4)
	k := func(v uint64) *bvsolve.Term { return s.ConstUint64(v, 4) }

	t.Run("CombineLikeTerms", func(t *testing.T) {
		if got := NewSimplifier(s).Term(s.Plus(x, x, s.UMinus(x))); got != NewSimplifier(s).Term(x) {
			t.Fatalf("got %s", got)
		}
	})

	t.Run("Sum", func(t *testing.T) {
		got := NewSimplifier(s).Term(s.Plus(y, k(3), x, k(14)))
		if diff := cmp.Diff(s.Plus(k(1), x, y).String(), got.String()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Sub", func(t *testing.T) {
		if got := NewSimplifier(s).Term(s.Interior(bvsolve.BVSUB, x, x)); got != k(0) {
			t.Fatalf("got %s", got)
		}
	})

	t.Run("NoUnaryMinus", func(t *testing.T) {
		got := NewSimplifier(s).Term(s.UMinus(x))
		assert.Equal(t, s.Mult(k(15), x), got)
		for _, n := range bvsolve.PostOrder(got) {
			assert.NotEqual(t, bvsolve.BVUMINUS, n.Kind())
		}
	})

	t.Run("MultZero", func(t *testing.T) {
		if got := NewSimplifier(s).Term(s.Mult(x, k(0), y)); got != k(0) {
			t.Fatalf("got %s", got)
		}
	})

	t.Run("Distribute", func(t *testing.T) {
		got := NewSimplifier(s).Term(s.Mult(k(2), s.Plus(x, k(3))))
		assert.Equal(t, s.Plus(k(6), s.Mult(k(2), x)), got)
	})

	t.Run("DistributeSums", func(t *testing.T) {
		got := NewSimplifier(s).Term(s.Mult(s.Plus(x, k(1)), s.Plus(y, k(1))))
		assert.Equal(t, NewSimplifier(s).Term(s.Plus(k(1), x, y, s.Mult(x, y))), got)
		for _, n := range bvsolve.PostOrder(got) {
			if n.Kind() != bvsolve.BVMULT {
				continue
			}
			for _, c := range n.Children() {
				assert.NotEqual(t, bvsolve.BVPLUS, c.Kind(), n.String())
			}
		}
	})

	// Like terms hidden inside a product combine once it is distributed.
	t.Run("DistributeCombine", func(t *testing.T) {
		got := NewSimplifier(s).Term(s.Plus(
			s.Mult(k(2), s.Plus(x, k(1)), y),
			s.Mult(k(14), x, y),
		))
		assert.Equal(t, s.Mult(k(2), y), got)
	})

	t.Run("ConstantFold", func(t *testing.T) {
		got := NewSimplifier(s).Term(s.Mult(s.Plus(k(3), k(4)), k(3)))
		assert.Equal(t, k(5), got)
	})

	t.Run("DivideByZero", func(t *testing.T) {
		div := s.Interior(bvsolve.BVDIV, k(3), k(0))
		assert.Equal(t, div, NewSimplifier(s).Term(div))
	})

	t.Run("ExtractConcat", func(t *testing.T) {
		assert.Equal(t, y, NewSimplifier(s).Term(s.Extract(s.Concat(x, y), 3, 0)))
		assert.Equal(t, x, NewSimplifier(s).Term(s.Concat(s.Extract(x, 3, 2), s.Extract(x, 1, 0))))
	})

	t.Run("Shift", func(t *testing.T) {
		got := NewSimplifier(s).Term(s.Interior(bvsolve.BVLEFTSHIFT, x, k(1)))
		assert.Equal(t, s.Concat(s.Extract(x, 2, 0), s.ConstUint64(0, 1)), got)
		assert.Equal(t, k(0), NewSimplifier(s).Term(s.Interior(bvsolve.BVRIGHTSHIFT, x, k(9))))
	})

	t.Run("ReadOverWrite", func(t *testing.T) {
		a := s.Symbol("a", 4, 4)
		w := s.Write(s.Write(a, k(0), x), k(1), y)
		assert.Equal(t, x, NewSimplifier(s).Term(s.Read(w, k(0))))
		assert.Equal(t, y, NewSimplifier(s).Term(s.Read(w, k(1))))
		assert.Equal(t, s.Read(a, k(2)), NewSimplifier(s).Term(s.Read(w, k(2))))

		// Unknown index equality stops the walk.
		r := s.Read(w, x)
		assert.Equal(t, r, NewSimplifier(s).Term(r))
	})
}

func TestSimplifier_Disabled(t *testing.T) {
	s := bvsolve.NewStore()
	x, y := s.Symbol("x", 0, 4), s.Symbol("y", 0, 4)

	subst := bvsolve.NewSubstitution()
	subst.Set(y, s.ConstUint64(2, 4))
	simp := bvsolve.NewSimplifier(s, subst)
	simp.SetEnabled(false)

	// Substitution and folding still apply, canonicalization does not.
	got := simp.Term(s.Plus(x, s.Plus(y, s.ConstUint64(1, 4))))
	assert.Equal(t, s.Plus(x, s.ConstUint64(3, 4)), got)
}

func TestSimplifier_BuildSubstitution(t *testing.T) {
	s := bvsolve.NewStore()
	x, y := s.Symbol("x", 0, 4), s.Symbol("y", 0, 4)
	p, q := s.Symbol("p", 0, 0), s.Symbol("q", 0, 0)
	a := s.Symbol("a", 4, 4)

	t.Run("Conjunction", func(t *testing.T) {
		simp := NewSimplifier(s)
		lt := s.Interior(bvsolve.BVLT, x, y)
		f := simp.BuildSubstitution(s.And(p, s.Not(q), s.Eq(x, s.Plus(y, y)), lt))
		assert.Equal(t, lt, f)

		subst := simp.Substitution()
		assert.Equal(t, 3, subst.Len())
		if to, ok := subst.Lookup(p); !ok || to != s.True() {
			t.Fatalf("p := %v", to)
		} else if to, ok := subst.Lookup(q); !ok || to != s.False() {
			t.Fatalf("q := %v", to)
		} else if to, ok := subst.Lookup(x); !ok || to != s.Plus(y, y) {
			t.Fatalf("x := %v", to)
		}

		// Later simplification sees through the map.
		assert.Equal(t, s.Interior(bvsolve.BVLT, y, s.Mult(s.ConstUint64(2, 4), y)),
			simp.Formula(s.Interior(bvsolve.BVGT, x, y)))
	})

	t.Run("OccursCheck", func(t *testing.T) {
		simp := NewSimplifier(s)
		f := s.Eq(x, s.Plus(x, y))
		assert.Equal(t, f, simp.BuildSubstitution(f))
		assert.Equal(t, 0, simp.Substitution().Len())
	})

	t.Run("ArrayRead", func(t *testing.T) {
		simp := NewSimplifier(s)
		r := s.Read(a, s.ConstUint64(3, 4))
		assert.Equal(t, s.True(), simp.BuildSubstitution(s.Eq(s.Plus(x, x), r)))
		assert.Equal(t, s.Mult(s.ConstUint64(2, 4), x),
			simp.Term(s.Read(s.Write(a, s.ConstUint64(1, 4), y), s.ConstUint64(3, 4))))
	})

	t.Run("Contradiction", func(t *testing.T) {
		simp := NewSimplifier(s)
		f := simp.BuildSubstitution(s.And(p, s.Not(p)))
		assert.Equal(t, s.False(), simp.Formula(f))
	})
}
