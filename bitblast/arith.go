package bitblast

import (
	"github.com/go-air/gini/z"
)

// add returns x+y modulo 2^w.
func (b *Blaster) add(x, y []z.Lit) []z.Lit {
	out, _ := b.addCarry(x, y, b.c.F)
	return out
}

// sub returns x-y as x + ^y + 1.
func (b *Blaster) sub(x, y []z.Lit) []z.Lit {
	out, _ := b.addCarry(x, not(y), b.c.T)
	return out
}

// addCarry is a ripple-carry adder. It returns the sum and the carry out.
func (b *Blaster) addCarry(x, y []z.Lit, carry z.Lit) ([]z.Lit, z.Lit) {
	c := b.c
	out := make([]z.Lit, len(x))
	for i := range x {
		t := c.Xor(x[i], y[i])
		out[i] = c.Xor(t, carry)
		carry = c.Or(c.And(x[i], y[i]), c.And(carry, t))
	}
	return out, carry
}

// neg returns the two's complement negation of x.
func (b *Blaster) neg(x []z.Lit) []z.Lit {
	c := b.c
	out := make([]z.Lit, len(x))
	carry := c.T
	for i, m := range x {
		out[i] = c.Xor(m.Not(), carry)
		carry = c.And(m.Not(), carry)
	}
	return out
}

// mult is a shift-and-add multiplier truncated to the width of x.
func (b *Blaster) mult(x, y []z.Lit) []z.Lit {
	c := b.c
	w := len(x)
	acc := make([]z.Lit, w)
	for i := range acc {
		acc[i] = c.F
	}

	for i, m := range y {
		if m == c.F {
			continue
		}
		partial := make([]z.Lit, w)
		for j := range partial {
			if j < i {
				partial[j] = c.F
			} else {
				partial[j] = c.And(x[j-i], m)
			}
		}
		acc = b.add(acc, partial)
	}
	return acc
}

// divMod is a restoring divider. Division by zero yields a quotient of all
// ones and the dividend as the remainder.
func (b *Blaster) divMod(x, y []z.Lit) (q, r []z.Lit) {
	c := b.c
	w := len(x)

	// The partial remainder carries one extra bit so the shift cannot overflow.
	divisor := append(append([]z.Lit(nil), y...), c.F)
	rem := make([]z.Lit, w+1)
	for i := range rem {
		rem[i] = c.F
	}

	q = make([]z.Lit, w)
	for i := w - 1; i >= 0; i-- {
		rem = append([]z.Lit{x[i]}, rem[:w]...)
		ge := b.lt(rem, divisor, false).Not()
		q[i] = ge
		rem = b.ite(ge, b.sub(rem, divisor), rem)
	}
	return q, rem[:w]
}

// signedDivMod divides the magnitudes of x and y. The quotient is negated
// when the signs differ and the remainder takes the sign of the dividend.
func (b *Blaster) signedDivMod(x, y []z.Lit) (q, r []z.Lit) {
	c := b.c
	w := len(x)
	sx, sy := x[w-1], y[w-1]

	q, r = b.divMod(b.ite(sx, b.neg(x), x), b.ite(sy, b.neg(y), y))
	return b.ite(c.Xor(sx, sy), b.neg(q), q), b.ite(sx, b.neg(r), r)
}

// lt returns a literal for x < y. The recurrence runs from the least
// significant bit; for signed comparison the sign bits swap roles.
func (b *Blaster) lt(x, y []z.Lit, signed bool) z.Lit {
	c := b.c
	w := len(x)
	lt := c.F
	for i := 0; i < w; i++ {
		xi, yi := x[i], y[i]
		if signed && i == w-1 {
			xi, yi = yi, xi
		}
		lt = c.Or(c.And(xi.Not(), yi), c.And(c.Xor(xi, yi).Not(), lt))
	}
	return lt
}

// eq returns a literal for x == y.
func (b *Blaster) eq(x, y []z.Lit) z.Lit {
	c := b.c
	ms := make([]z.Lit, len(x))
	for i := range x {
		if x[i] == y[i].Not() {
			return c.F
		}
		ms[i] = c.Xor(x[i], y[i]).Not()
	}
	return c.Ands(ms...)
}

func (b *Blaster) ite(cond z.Lit, x, y []z.Lit) []z.Lit {
	switch cond {
	case b.c.T:
		return x
	case b.c.F:
		return y
	}
	out := make([]z.Lit, len(x))
	for i := range x {
		out[i] = b.c.Choice(cond, x[i], y[i])
	}
	return out
}

func (b *Blaster) signExtend(x []z.Lit, n uint) []z.Lit {
	out := append(make([]z.Lit, 0, n), x...)
	for uint(len(out)) < n {
		out = append(out, x[len(x)-1])
	}
	return out
}

type shiftKind int

const (
	shiftLeft shiftKind = iota
	shiftRight
	shiftArith
)

// shift is a barrel shifter. Distances of at least the width shift every
// bit out: the result is zero, or the sign bit for arithmetic shifts.
func (b *Blaster) shift(x, s []z.Lit, kind shiftKind) []z.Lit {
	c := b.c
	w := len(x)
	fill := c.F
	if kind == shiftArith {
		fill = x[w-1]
	}

	out := x
	overflow := c.F
	for k, m := range s {
		if k >= 62 || 1<<k >= w {
			overflow = c.Or(overflow, m)
			continue
		}

		n := 1 << k
		shifted := make([]z.Lit, w)
		for i := range shifted {
			var j int
			if kind == shiftLeft {
				j = i - n
			} else {
				j = i + n
			}
			if j >= 0 && j < w {
				shifted[i] = out[j]
			} else {
				shifted[i] = fill
			}
		}
		out = b.ite(m, shifted, out)
	}

	fills := make([]z.Lit, w)
	for i := range fills {
		fills[i] = fill
	}
	return b.ite(overflow, fills, out)
}
