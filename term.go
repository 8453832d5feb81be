package bvsolve

import (
	"bytes"
	"fmt"
)

// Term represents an interned term or formula. Terms are only created by a
// Store and compare by identity: two terms are equal iff their pointers are.
//
// The type of a term is derived from its widths: a value width of zero is a
// boolean, an index width of zero is a bitvector, and anything else is an array.
type Term struct {
	kind       Kind
	children   []*Term
	name       string   // SYMBOL only
	value      *BVConst // BVCONST only
	valueWidth uint
	indexWidth uint
	id         uint64
}

// Kind returns the operator tag of the term.
func (t *Term) Kind() Kind { return t.kind }

// Children returns the ordered child terms. The slice must not be modified.
func (t *Term) Children() []*Term { return t.children }

// Child returns the i'th child.
func (t *Term) Child(i int) *Term { return t.children[i] }

// Len returns the number of children.
func (t *Term) Len() int { return len(t.children) }

// ValueWidth returns the bit width of a bitvector or of an array's elements.
func (t *Term) ValueWidth() uint { return t.valueWidth }

// IndexWidth returns the bit width of an array's indices. Zero for non-arrays.
func (t *Term) IndexWidth() uint { return t.indexWidth }

// ID returns the node number assigned at creation.
func (t *Term) ID() uint64 { return t.id }

// Name returns the name of a symbol.
func (t *Term) Name() string { return t.name }

// Value returns the bit pattern of a constant.
func (t *Term) Value() *BVConst { return t.value }

// IsBool returns true if the term is a formula.
func (t *Term) IsBool() bool { return t.valueWidth == 0 && t.indexWidth == 0 }

// IsBV returns true if the term is a bitvector.
func (t *Term) IsBV() bool { return t.valueWidth > 0 && t.indexWidth == 0 }

// IsArray returns true if the term is an array.
func (t *Term) IsArray() bool { return t.indexWidth > 0 }

// IsConst returns true for bitvector constants and the boolean constants.
func (t *Term) IsConst() bool {
	return t.kind == BVCONST || t.kind == TRUE || t.kind == FALSE
}

// String returns the term as an s-expression.
func (t *Term) String() string {
	var buf bytes.Buffer
	t.write(&buf)
	return buf.String()
}

func (t *Term) write(buf *bytes.Buffer) {
	switch t.kind {
	case SYMBOL:
		buf.WriteString(t.name)
	case BVCONST:
		buf.WriteString(t.value.String())
	case TRUE, FALSE:
		buf.WriteString(t.kind.String())
	case BVEXTRACT:
		hi, lo := ExtractBounds(t)
		fmt.Fprintf(buf, "((_ extract %d %d) ", hi, lo)
		t.children[0].write(buf)
		buf.WriteByte(')')
	case BVSX:
		fmt.Fprintf(buf, "((_ sign_extend %d) ", t.valueWidth-t.children[0].valueWidth)
		t.children[0].write(buf)
		buf.WriteByte(')')
	default:
		buf.WriteByte('(')
		buf.WriteString(t.kind.String())
		for _, c := range t.children {
			buf.WriteByte(' ')
			c.write(buf)
		}
		buf.WriteByte(')')
	}
}

// ExtractBounds returns the high and low bit positions of an extract term.
func ExtractBounds(t *Term) (hi, lo uint) {
	assert(t.kind == BVEXTRACT, "extract bounds of %s", t.kind)
	return uint(t.children[1].value.Uint64()), uint(t.children[2].value.Uint64())
}

// IsConstTrue returns true if t is the boolean constant true.
func IsConstTrue(t *Term) bool { return t.kind == TRUE }

// IsConstFalse returns true if t is the boolean constant false.
func IsConstFalse(t *Term) bool { return t.kind == FALSE }

// IsBVConst returns true if t is a bitvector constant.
func IsBVConst(t *Term) bool { return t.kind == BVCONST }
