package bvsolve

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

var bigOne = big.NewInt(1)

// BVConst represents an immutable bit pattern of a fixed width.
// The value is always kept in the range [0, 2^width).
type BVConst struct {
	width uint
	value *big.Int
}

// NewBVConst returns a constant of the given width. Negative values are
// stored in two's complement and larger values are truncated.
func NewBVConst(value *big.Int, width uint) *BVConst {
	assert(width > 0, "bvconst: zero width")
	v := new(big.Int).And(value, mask(width))
	return &BVConst{width: width, value: v}
}

// NewBVConstUint64 returns a constant of the given width from an unsigned integer.
func NewBVConstUint64(value uint64, width uint) *BVConst {
	return NewBVConst(new(big.Int).SetUint64(value), width)
}

// NewBVConstInt64 returns a constant of the given width from a signed integer.
func NewBVConstInt64(value int64, width uint) *BVConst {
	return NewBVConst(big.NewInt(value), width)
}

// ParseBVConst parses a constant from a string of digits in base 2, 10 or 16.
// A width of zero derives the width from the number of digits, which is only
// allowed for base 2 and 16.
func ParseBVConst(s string, base int, width uint) (*BVConst, error) {
	v, ok := new(big.Int).SetString(s, base)
	if !ok || v.Sign() < 0 {
		return nil, errors.Errorf("invalid constant %q in base %d", s, base)
	}
	if width == 0 {
		switch base {
		case 2:
			width = uint(len(s))
		case 16:
			width = uint(len(s)) * 4
		default:
			return nil, errors.Errorf("constant %q requires an explicit width", s)
		}
	}
	if width == 0 {
		return nil, errors.Errorf("empty constant")
	}
	return NewBVConst(v, width), nil
}

// mask returns 2^width-1.
func mask(width uint) *big.Int {
	m := new(big.Int).Lsh(bigOne, width)
	return m.Sub(m, bigOne)
}

// Width returns the width of the constant in bits.
func (c *BVConst) Width() uint { return c.width }

// Big returns a copy of the unsigned value.
func (c *BVConst) Big() *big.Int { return new(big.Int).Set(c.value) }

// Signed returns the two's complement interpretation of the value.
func (c *BVConst) Signed() *big.Int {
	v := new(big.Int).Set(c.value)
	if c.IsNegative() {
		v.Sub(v, new(big.Int).Lsh(bigOne, c.width))
	}
	return v
}

// Uint64 returns the low 64 bits of the value.
func (c *BVConst) Uint64() uint64 { return c.value.Uint64() }

// Bit returns bit i of the value, where bit 0 is the least significant.
func (c *BVConst) Bit(i uint) bool {
	assert(i < c.width, "bvconst: bit %d out of range for width %d", i, c.width)
	return c.value.Bit(int(i)) == 1
}

// key returns the interning key for the constant.
func (c *BVConst) key() string {
	return fmt.Sprintf("%d:%s", c.width, c.value.Text(16))
}

// String returns the constant in SMT-LIB literal syntax.
func (c *BVConst) String() string {
	if c.width%4 == 0 && c.width > 8 {
		s := c.value.Text(16)
		return "#x" + strings.Repeat("0", int(c.width/4)-len(s)) + s
	}
	return "#b" + c.BinaryString()
}

// BinaryString returns the value as width binary digits, most significant first.
func (c *BVConst) BinaryString() string {
	s := c.value.Text(2)
	return strings.Repeat("0", int(c.width)-len(s)) + s
}

// IsZero returns true if all bits are zero.
func (c *BVConst) IsZero() bool { return c.value.Sign() == 0 }

// IsOne returns true if the value is one.
func (c *BVConst) IsOne() bool { return c.value.Cmp(bigOne) == 0 }

// IsAllOnes returns true if all bits in the value are one.
func (c *BVConst) IsAllOnes() bool { return c.value.Cmp(mask(c.width)) == 0 }

// IsOdd returns true if the least significant bit is set.
func (c *BVConst) IsOdd() bool { return c.value.Bit(0) == 1 }

// IsNegative returns true if the most significant bit is set.
func (c *BVConst) IsNegative() bool { return c.value.Bit(int(c.width)-1) == 1 }

// IsMaxSigned returns true if the value is the largest signed value.
func (c *BVConst) IsMaxSigned() bool {
	return c.value.Cmp(mask(c.width-1)) == 0
}

// IsMinSigned returns true if the value is the smallest signed value.
func (c *BVConst) IsMinSigned() bool {
	return c.value.Cmp(new(big.Int).Lsh(bigOne, c.width-1)) == 0
}

// Equal returns true if c and other have the same width and bits.
func (c *BVConst) Equal(other *BVConst) bool {
	return c.width == other.width && c.value.Cmp(other.value) == 0
}

// TrailingZeros returns the number of zero bits below the lowest set bit.
// Returns the width for a zero value.
func (c *BVConst) TrailingZeros() uint {
	if c.IsZero() {
		return c.width
	}
	return c.value.TrailingZeroBits()
}

func (c *BVConst) checkWidth(op string, other *BVConst) {
	assert(c.width == other.width, "bvconst: %s width mismatch: %d != %d", op, c.width, other.width)
}

// Add returns the sum of c and other.
func (c *BVConst) Add(other *BVConst) *BVConst {
	c.checkWidth("add", other)
	return NewBVConst(new(big.Int).Add(c.value, other.value), c.width)
}

// Sub returns the difference of c and other.
func (c *BVConst) Sub(other *BVConst) *BVConst {
	c.checkWidth("sub", other)
	return NewBVConst(new(big.Int).Sub(c.value, other.value), c.width)
}

// Mul returns the product of c and other.
func (c *BVConst) Mul(other *BVConst) *BVConst {
	c.checkWidth("mul", other)
	return NewBVConst(new(big.Int).Mul(c.value, other.value), c.width)
}

// Neg returns the two's complement negation of c.
func (c *BVConst) Neg() *BVConst {
	return NewBVConst(new(big.Int).Neg(c.value), c.width)
}

// Not returns the bitwise NOT of c.
func (c *BVConst) Not() *BVConst {
	return NewBVConst(new(big.Int).Xor(c.value, mask(c.width)), c.width)
}

// UDiv returns the quotient of unsigned division of c by other.
// Returns a zero value and ErrDivideByZero if other is zero.
func (c *BVConst) UDiv(other *BVConst) (*BVConst, error) {
	c.checkWidth("udiv", other)
	if other.IsZero() {
		return NewBVConstUint64(0, c.width), ErrDivideByZero
	}
	return NewBVConst(new(big.Int).Quo(c.value, other.value), c.width), nil
}

// URem returns the remainder of unsigned division of c by other.
// Returns a zero value and ErrDivideByZero if other is zero.
func (c *BVConst) URem(other *BVConst) (*BVConst, error) {
	c.checkWidth("urem", other)
	if other.IsZero() {
		return NewBVConstUint64(0, c.width), ErrDivideByZero
	}
	return NewBVConst(new(big.Int).Rem(c.value, other.value), c.width), nil
}

// SDiv returns the quotient of signed division of c by other, rounded toward zero.
func (c *BVConst) SDiv(other *BVConst) (*BVConst, error) {
	c.checkWidth("sdiv", other)
	if other.IsZero() {
		return NewBVConstUint64(0, c.width), ErrDivideByZero
	}
	return NewBVConst(new(big.Int).Quo(c.Signed(), other.Signed()), c.width), nil
}

// SRem returns the remainder of signed division of c by other. The sign of
// the result follows the dividend.
func (c *BVConst) SRem(other *BVConst) (*BVConst, error) {
	c.checkWidth("srem", other)
	if other.IsZero() {
		return NewBVConstUint64(0, c.width), ErrDivideByZero
	}
	return NewBVConst(new(big.Int).Rem(c.Signed(), other.Signed()), c.width), nil
}

// And returns the bitwise AND of c and other.
func (c *BVConst) And(other *BVConst) *BVConst {
	c.checkWidth("and", other)
	return NewBVConst(new(big.Int).And(c.value, other.value), c.width)
}

// Or returns the bitwise OR of c and other.
func (c *BVConst) Or(other *BVConst) *BVConst {
	c.checkWidth("or", other)
	return NewBVConst(new(big.Int).Or(c.value, other.value), c.width)
}

// Xor returns the bitwise XOR of c and other.
func (c *BVConst) Xor(other *BVConst) *BVConst {
	c.checkWidth("xor", other)
	return NewBVConst(new(big.Int).Xor(c.value, other.value), c.width)
}

// shiftAmount returns other as a shift distance, capped at the width of c.
func (c *BVConst) shiftAmount(other *BVConst) uint {
	if !other.value.IsUint64() || other.value.Uint64() >= uint64(c.width) {
		return c.width
	}
	return uint(other.value.Uint64())
}

// Shl returns the value of c shifted left by other number of bits.
func (c *BVConst) Shl(other *BVConst) *BVConst {
	c.checkWidth("shl", other)
	return NewBVConst(new(big.Int).Lsh(c.value, c.shiftAmount(other)), c.width)
}

// LShr returns the value of c logically shifted right by other number of bits.
func (c *BVConst) LShr(other *BVConst) *BVConst {
	c.checkWidth("lshr", other)
	return NewBVConst(new(big.Int).Rsh(c.value, c.shiftAmount(other)), c.width)
}

// AShr returns the value of c arithmetically shifted right by other number of bits.
func (c *BVConst) AShr(other *BVConst) *BVConst {
	c.checkWidth("ashr", other)
	return NewBVConst(new(big.Int).Rsh(c.Signed(), c.shiftAmount(other)), c.width)
}

// Ult returns true if c is less than other, unsigned.
func (c *BVConst) Ult(other *BVConst) bool {
	c.checkWidth("ult", other)
	return c.value.Cmp(other.value) < 0
}

// Ule returns true if c is less than or equal to other, unsigned.
func (c *BVConst) Ule(other *BVConst) bool {
	c.checkWidth("ule", other)
	return c.value.Cmp(other.value) <= 0
}

// Slt returns true if c is less than other, signed.
func (c *BVConst) Slt(other *BVConst) bool {
	c.checkWidth("slt", other)
	return c.Signed().Cmp(other.Signed()) < 0
}

// Sle returns true if c is less than or equal to other, signed.
func (c *BVConst) Sle(other *BVConst) bool {
	c.checkWidth("sle", other)
	return c.Signed().Cmp(other.Signed()) <= 0
}

// Concat returns the concatenation of c and lsb, with c in the high bits.
func (c *BVConst) Concat(lsb *BVConst) *BVConst {
	v := new(big.Int).Lsh(c.value, lsb.width)
	return NewBVConst(v.Or(v, lsb.value), c.width+lsb.width)
}

// Extract returns bits hi down to lo, inclusive.
func (c *BVConst) Extract(hi, lo uint) *BVConst {
	assert(lo <= hi && hi < c.width, "bvconst: invalid extract [%d:%d] of width %d", hi, lo, c.width)
	return NewBVConst(new(big.Int).Rsh(c.value, lo), hi-lo+1)
}

// ZeroExtend returns c padded with zeros to width.
func (c *BVConst) ZeroExtend(width uint) *BVConst {
	assert(width >= c.width, "bvconst: cannot zero-extend %d to %d", c.width, width)
	return NewBVConst(c.value, width)
}

// SignExtend returns c padded with copies of its most significant bit to width.
func (c *BVConst) SignExtend(width uint) *BVConst {
	assert(width >= c.width, "bvconst: cannot sign-extend %d to %d", c.width, width)
	return NewBVConst(c.Signed(), width)
}

// Inverse returns the multiplicative inverse of c modulo 2^width.
// The value must be odd.
func (c *BVConst) Inverse() *BVConst {
	assert(c.IsOdd(), "bvconst: inverse of even value %s", c)
	modulus := new(big.Int).Lsh(bigOne, c.width)
	inv := new(big.Int).ModInverse(c.value, modulus)
	assert(inv != nil, "bvconst: no inverse for %s", c)
	return NewBVConst(inv, c.width)
}

// Shr returns c logically shifted right by n bits.
func (c *BVConst) Shr(n uint) *BVConst {
	return NewBVConst(new(big.Int).Rsh(c.value, n), c.width)
}

// applyOp computes kind over constant operands. Extract bounds and extension
// widths are passed as operands in the same position as the term's children.
// Division by zero returns ErrDivideByZero alongside the zero value.
func applyOp(kind Kind, args []*BVConst) (*BVConst, error) {
	switch kind {
	case BVNEG:
		return args[0].Not(), nil
	case BVUMINUS:
		return args[0].Neg(), nil
	case BVAND, BVOR, BVXOR, BVPLUS, BVMULT:
		v := args[0]
		for _, arg := range args[1:] {
			switch kind {
			case BVAND:
				v = v.And(arg)
			case BVOR:
				v = v.Or(arg)
			case BVXOR:
				v = v.Xor(arg)
			case BVPLUS:
				v = v.Add(arg)
			case BVMULT:
				v = v.Mul(arg)
			}
		}
		return v, nil
	case BVNAND:
		return args[0].And(args[1]).Not(), nil
	case BVNOR:
		return args[0].Or(args[1]).Not(), nil
	case BVXNOR:
		return args[0].Xor(args[1]).Not(), nil
	case BVSUB:
		return args[0].Sub(args[1]), nil
	case BVCONCAT:
		return args[0].Concat(args[1]), nil
	case BVEXTRACT:
		return args[0].Extract(uint(args[1].Uint64()), uint(args[2].Uint64())), nil
	case BVSX:
		return args[0].SignExtend(uint(args[1].Uint64())), nil
	case BVLEFTSHIFT:
		return args[0].Shl(args[1]), nil
	case BVRIGHTSHIFT:
		return args[0].LShr(args[1]), nil
	case BVSRSHIFT:
		return args[0].AShr(args[1]), nil
	case BVDIV:
		return args[0].UDiv(args[1])
	case BVMOD:
		return args[0].URem(args[1])
	case SBVDIV:
		return args[0].SDiv(args[1])
	case SBVMOD:
		return args[0].SRem(args[1])
	default:
		return nil, errors.Errorf("cannot apply %s to constants", kind)
	}
}

// compareOp evaluates an ordering comparison or equation over constants.
func compareOp(kind Kind, a, b *BVConst) bool {
	switch kind {
	case EQ:
		return a.Equal(b)
	case NEQ:
		return !a.Equal(b)
	case BVLT:
		return a.Ult(b)
	case BVLE:
		return a.Ule(b)
	case BVGT:
		return b.Ult(a)
	case BVGE:
		return b.Ule(a)
	case BVSLT:
		return a.Slt(b)
	case BVSLE:
		return a.Sle(b)
	case BVSGT:
		return b.Slt(a)
	case BVSGE:
		return b.Sle(a)
	default:
		panic("unreachable")
	}
}
