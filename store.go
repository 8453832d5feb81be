package bvsolve

import (
	"encoding/binary"
)

// Store owns every interned term. Symbols are unique per name, constants per
// (bits, width) and interior terms per (kind, children by identity).
//
// A store is not safe for concurrent use.
type Store struct {
	nodeN     uint64
	symbols   map[string]*Term
	consts    map[string]*Term
	interiors map[string]*Term

	trueTerm  *Term
	falseTerm *Term
}

// NewStore returns a new, empty store.
func NewStore() *Store {
	s := &Store{
		symbols:   make(map[string]*Term),
		consts:    make(map[string]*Term),
		interiors: make(map[string]*Term),
	}
	s.trueTerm = &Term{kind: TRUE, id: s.nextID()}
	s.falseTerm = &Term{kind: FALSE, id: s.nextID()}
	return s
}

// nextID returns the next node number. Numbers advance by two so that a
// negation can take its operand's number plus one.
func (s *Store) nextID() uint64 {
	s.nodeN += 2
	return s.nodeN
}

// Len returns the number of interned terms.
func (s *Store) Len() int {
	return len(s.symbols) + len(s.consts) + len(s.interiors) + 2
}

// True returns the boolean constant true.
func (s *Store) True() *Term { return s.trueTerm }

// False returns the boolean constant false.
func (s *Store) False() *Term { return s.falseTerm }

// Bool returns the boolean constant for b.
func (s *Store) Bool(b bool) *Term {
	if b {
		return s.trueTerm
	}
	return s.falseTerm
}

// Symbol returns the symbol with the given name, creating it on first use.
// A zero value width declares a boolean and a non-zero index width declares
// an array. Redeclaring a name with different widths panics.
func (s *Store) Symbol(name string, indexWidth, valueWidth uint) *Term {
	assert(name != "", "symbol: empty name")
	assert(indexWidth == 0 || valueWidth > 0, "symbol %s: array with zero value width", name)
	if t, ok := s.symbols[name]; ok {
		assert(t.indexWidth == indexWidth && t.valueWidth == valueWidth,
			"symbol %s: redeclared as [%d]%d, previously [%d]%d", name, indexWidth, valueWidth, t.indexWidth, t.valueWidth)
		return t
	}
	t := &Term{kind: SYMBOL, name: name, indexWidth: indexWidth, valueWidth: valueWidth, id: s.nextID()}
	s.symbols[name] = t
	return t
}

// LookupSymbol returns a previously declared symbol.
func (s *Store) LookupSymbol(name string) (*Term, bool) {
	t, ok := s.symbols[name]
	return t, ok
}

// Const returns the constant term for v.
func (s *Store) Const(v *BVConst) *Term {
	key := v.key()
	if t, ok := s.consts[key]; ok {
		return t
	}
	t := &Term{kind: BVCONST, value: v, valueWidth: v.width, id: s.nextID()}
	s.consts[key] = t
	return t
}

// ConstUint64 returns the constant term for value at width.
func (s *Store) ConstUint64(value uint64, width uint) *Term {
	return s.Const(NewBVConstUint64(value, width))
}

// Zero returns the all-zero constant of width.
func (s *Store) Zero(width uint) *Term { return s.ConstUint64(0, width) }

// One returns the constant one of width.
func (s *Store) One(width uint) *Term { return s.ConstUint64(1, width) }

// AllOnes returns the all-ones constant of width.
func (s *Store) AllOnes(width uint) *Term {
	return s.Const(NewBVConstInt64(-1, width))
}

// Interior returns the interned term for kind applied to children.
// Widths are derived from the kind and the children; ill-typed
// construction panics.
func (s *Store) Interior(kind Kind, children ...*Term) *Term {
	assert(!kind.IsLeaf() && kind != UNDEFINED, "interior: invalid kind %s", kind)
	for i, c := range children {
		assert(c != nil, "interior: %s child %d is null", kind, i)
	}

	key := interiorKey(kind, children)
	if t, ok := s.interiors[key]; ok {
		return t
	}

	indexWidth, valueWidth := typeCheck(kind, children)
	t := &Term{
		kind:       kind,
		children:   append([]*Term(nil), children...),
		indexWidth: indexWidth,
		valueWidth: valueWidth,
	}
	if kind == NOT && children[0].kind != NOT {
		t.id = children[0].id + 1
	} else {
		t.id = s.nextID()
	}
	s.interiors[key] = t
	return t
}

// interiorKey encodes the kind and child node numbers.
func interiorKey(kind Kind, children []*Term) string {
	buf := make([]byte, 0, binary.MaxVarintLen64*(len(children)+1))
	buf = binary.AppendUvarint(buf, uint64(kind))
	for _, c := range children {
		buf = binary.AppendUvarint(buf, c.id)
	}
	return string(buf)
}

// typeCheck returns the widths of kind applied to children.
func typeCheck(kind Kind, children []*Term) (indexWidth, valueWidth uint) {
	n := len(children)
	switch kind {
	case NOT:
		assert(n == 1 && children[0].IsBool(), "not: expected one formula")
		return 0, 0
	case AND, OR, NAND, NOR:
		assert(n >= 1, "%s: no children", kind)
		for _, c := range children {
			assert(c.IsBool(), "%s: non-formula child %s", kind, c)
		}
		return 0, 0
	case XOR, IFF, IMPLIES:
		assert(n == 2 && children[0].IsBool() && children[1].IsBool(), "%s: expected two formulas", kind)
		return 0, 0
	case EQ, NEQ, BVLT, BVLE, BVGT, BVGE, BVSLT, BVSLE, BVSGT, BVSGE:
		assert(n == 2, "%s: expected two children", kind)
		assert(children[0].IsBV() && children[1].IsBV(), "%s: non-bitvector operand", kind)
		assert(children[0].valueWidth == children[1].valueWidth,
			"%s: width mismatch: %d != %d", kind, children[0].valueWidth, children[1].valueWidth)
		return 0, 0

	case ITE:
		assert(n == 3, "ite: expected three children")
		assert(children[0].IsBool(), "ite: non-formula condition")
		assert(children[1].indexWidth == children[2].indexWidth && children[1].valueWidth == children[2].valueWidth,
			"ite: branch type mismatch: [%d]%d != [%d]%d",
			children[1].indexWidth, children[1].valueWidth, children[2].indexWidth, children[2].valueWidth)
		return children[1].indexWidth, children[1].valueWidth

	case BVNEG, BVUMINUS:
		assert(n == 1 && children[0].IsBV(), "%s: expected one bitvector", kind)
		return 0, children[0].valueWidth
	case BVAND, BVOR, BVXOR, BVPLUS, BVMULT:
		assert(n >= 1, "%s: no children", kind)
		return 0, sameWidth(kind, children)
	case BVNAND, BVNOR, BVXNOR, BVSUB, BVDIV, BVMOD, SBVDIV, SBVMOD, BVLEFTSHIFT, BVRIGHTSHIFT, BVSRSHIFT:
		assert(n == 2, "%s: expected two children", kind)
		return 0, sameWidth(kind, children)
	case BVCONCAT:
		assert(n == 2 && children[0].IsBV() && children[1].IsBV(), "concat: expected two bitvectors")
		return 0, children[0].valueWidth + children[1].valueWidth
	case BVEXTRACT:
		assert(n == 3 && children[0].IsBV(), "extract: expected a bitvector and two bounds")
		assert(isBound(children[1]) && isBound(children[2]), "extract: bounds must be %d-bit constants", boundWidth)
		hi, lo := children[1].value.Uint64(), children[2].value.Uint64()
		assert(lo <= hi && hi < uint64(children[0].valueWidth), "extract: invalid bounds [%d:%d] of width %d", hi, lo, children[0].valueWidth)
		return 0, uint(hi-lo) + 1
	case BVSX:
		assert(n == 2 && children[0].IsBV() && isBound(children[1]), "sign_extend: expected a bitvector and a width")
		w := children[1].value.Uint64()
		assert(w >= uint64(children[0].valueWidth), "sign_extend: cannot shrink %d to %d", children[0].valueWidth, w)
		return 0, uint(w)

	case READ:
		assert(n == 2 && children[0].IsArray() && children[1].IsBV(), "read: expected an array and an index")
		assert(children[1].valueWidth == children[0].indexWidth,
			"read: index width %d != %d", children[1].valueWidth, children[0].indexWidth)
		return 0, children[0].valueWidth
	case WRITE:
		assert(n == 3 && children[0].IsArray() && children[1].IsBV() && children[2].IsBV(), "write: expected an array, an index and a value")
		assert(children[1].valueWidth == children[0].indexWidth,
			"write: index width %d != %d", children[1].valueWidth, children[0].indexWidth)
		assert(children[2].valueWidth == children[0].valueWidth,
			"write: value width %d != %d", children[2].valueWidth, children[0].valueWidth)
		return children[0].indexWidth, children[0].valueWidth
	default:
		panic("unreachable")
	}
}

func sameWidth(kind Kind, children []*Term) uint {
	w := children[0].valueWidth
	for _, c := range children {
		assert(c.IsBV(), "%s: non-bitvector child %s", kind, c)
		assert(c.valueWidth == w, "%s: width mismatch: %d != %d", kind, c.valueWidth, w)
	}
	return w
}

func isBound(t *Term) bool {
	return t.kind == BVCONST && t.valueWidth == boundWidth
}

// Not returns the negation of f.
func (s *Store) Not(f *Term) *Term { return s.Interior(NOT, f) }

// And returns the conjunction of fs. Zero formulas yield true.
func (s *Store) And(fs ...*Term) *Term {
	switch len(fs) {
	case 0:
		return s.trueTerm
	case 1:
		return fs[0]
	}
	return s.Interior(AND, fs...)
}

// Or returns the disjunction of fs. Zero formulas yield false.
func (s *Store) Or(fs ...*Term) *Term {
	switch len(fs) {
	case 0:
		return s.falseTerm
	case 1:
		return fs[0]
	}
	return s.Interior(OR, fs...)
}

// Implies returns a => b.
func (s *Store) Implies(a, b *Term) *Term { return s.Interior(IMPLIES, a, b) }

// Iff returns a <=> b.
func (s *Store) Iff(a, b *Term) *Term { return s.Interior(IFF, a, b) }

// Ite returns the if-then-else of a formula, bitvector or array.
func (s *Store) Ite(cond, thn, els *Term) *Term { return s.Interior(ITE, cond, thn, els) }

// Eq returns a = b.
func (s *Store) Eq(a, b *Term) *Term { return s.Interior(EQ, a, b) }

// Plus returns the sum of ts. A single term is returned unchanged.
func (s *Store) Plus(ts ...*Term) *Term {
	if len(ts) == 1 {
		return ts[0]
	}
	return s.Interior(BVPLUS, ts...)
}

// Mult returns the product of ts. A single term is returned unchanged.
func (s *Store) Mult(ts ...*Term) *Term {
	if len(ts) == 1 {
		return ts[0]
	}
	return s.Interior(BVMULT, ts...)
}

// UMinus returns the two's complement negation of t.
func (s *Store) UMinus(t *Term) *Term { return s.Interior(BVUMINUS, t) }

// Neg returns the bitwise complement of t.
func (s *Store) Neg(t *Term) *Term { return s.Interior(BVNEG, t) }

// Concat returns hi concatenated with lo, hi in the most significant bits.
func (s *Store) Concat(hi, lo *Term) *Term { return s.Interior(BVCONCAT, hi, lo) }

// Extract returns bits hi down to lo of t.
func (s *Store) Extract(t *Term, hi, lo uint) *Term {
	return s.Interior(BVEXTRACT, t, s.ConstUint64(uint64(hi), boundWidth), s.ConstUint64(uint64(lo), boundWidth))
}

// SignExtend returns t sign-extended to width.
func (s *Store) SignExtend(t *Term, width uint) *Term {
	return s.Interior(BVSX, t, s.ConstUint64(uint64(width), boundWidth))
}

// ZeroExtend returns t padded with zeros to width.
func (s *Store) ZeroExtend(t *Term, width uint) *Term {
	if width == t.valueWidth {
		return t
	}
	return s.Concat(s.Zero(width-t.valueWidth), t)
}

// Read returns the element of array at index.
func (s *Store) Read(array, index *Term) *Term { return s.Interior(READ, array, index) }

// Write returns array with value stored at index.
func (s *Store) Write(array, index, value *Term) *Term {
	return s.Interior(WRITE, array, index, value)
}
