package bvsolve

import (
	"fmt"
)

// Kind is the operator tag of a term.
type Kind int

// Term kinds.
const (
	UNDEFINED = Kind(iota)

	leaf_kind_begin
	SYMBOL
	BVCONST
	TRUE
	FALSE
	leaf_kind_end

	form_kind_begin
	NOT
	AND
	OR
	NAND
	NOR
	XOR
	IFF
	IMPLIES
	EQ
	NEQ
	BVLT
	BVLE
	BVGT
	BVGE
	BVSLT
	BVSLE
	BVSGT
	BVSGE
	form_kind_end

	term_kind_begin
	ITE
	BVNEG
	BVAND
	BVOR
	BVXOR
	BVNAND
	BVNOR
	BVXNOR
	BVCONCAT
	BVEXTRACT
	BVSX
	BVLEFTSHIFT
	BVRIGHTSHIFT
	BVSRSHIFT
	BVPLUS
	BVSUB
	BVMULT
	BVUMINUS
	BVDIV
	BVMOD
	SBVDIV
	SBVMOD
	READ
	WRITE
	term_kind_end
)

var kinds = [...]string{
	UNDEFINED:    "undefined",
	SYMBOL:       "symbol",
	BVCONST:      "bvconst",
	TRUE:         "true",
	FALSE:        "false",
	NOT:          "not",
	AND:          "and",
	OR:           "or",
	NAND:         "nand",
	NOR:          "nor",
	XOR:          "xor",
	IFF:          "iff",
	IMPLIES:      "=>",
	EQ:           "=",
	NEQ:          "distinct",
	BVLT:         "bvult",
	BVLE:         "bvule",
	BVGT:         "bvugt",
	BVGE:         "bvuge",
	BVSLT:        "bvslt",
	BVSLE:        "bvsle",
	BVSGT:        "bvsgt",
	BVSGE:        "bvsge",
	ITE:          "ite",
	BVNEG:        "bvnot",
	BVAND:        "bvand",
	BVOR:         "bvor",
	BVXOR:        "bvxor",
	BVNAND:       "bvnand",
	BVNOR:        "bvnor",
	BVXNOR:       "bvxnor",
	BVCONCAT:     "concat",
	BVEXTRACT:    "extract",
	BVSX:         "sign_extend",
	BVLEFTSHIFT:  "bvshl",
	BVRIGHTSHIFT: "bvlshr",
	BVSRSHIFT:    "bvashr",
	BVPLUS:       "bvadd",
	BVSUB:        "bvsub",
	BVMULT:       "bvmul",
	BVUMINUS:     "bvneg",
	BVDIV:        "bvudiv",
	BVMOD:        "bvurem",
	SBVDIV:       "bvsdiv",
	SBVMOD:       "bvsrem",
	READ:         "select",
	WRITE:        "store",
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	if k >= 0 && k < Kind(len(kinds)) && kinds[k] != "" {
		return kinds[k]
	}
	return fmt.Sprintf("Kind<%d>", k)
}

// IsLeaf returns true if k has no children.
func (k Kind) IsLeaf() bool {
	return k > leaf_kind_begin && k < leaf_kind_end
}

// IsForm returns true if k always produces a boolean. ITE is excluded
// because its type follows its branches.
func (k Kind) IsForm() bool {
	return k > form_kind_begin && k < form_kind_end
}

// IsTerm returns true if k is a bitvector or array operator.
func (k Kind) IsTerm() bool {
	return k > term_kind_begin && k < term_kind_end
}

// IsAtomic returns true if k is an atomic formula over terms.
func (k Kind) IsAtomic() bool {
	switch k {
	case EQ, NEQ, BVLT, BVLE, BVGT, BVGE, BVSLT, BVSLE, BVSGT, BVSGE:
		return true
	}
	return false
}

// IsCompare returns true if k is an ordering comparison.
func (k Kind) IsCompare() bool {
	switch k {
	case BVLT, BVLE, BVGT, BVGE, BVSLT, BVSLE, BVSGT, BVSGE:
		return true
	}
	return false
}

// IsSigned returns true if k is a signed comparison or signed division.
func (k Kind) IsSigned() bool {
	switch k {
	case BVSLT, BVSLE, BVSGT, BVSGE, SBVDIV, SBVMOD:
		return true
	}
	return false
}

// IsNary returns true if k accepts any number of children.
func (k Kind) IsNary() bool {
	switch k {
	case AND, OR, NAND, NOR, BVAND, BVOR, BVXOR, BVPLUS, BVMULT:
		return true
	}
	return false
}

// IsCommutative returns true if the order of k's children is irrelevant.
func (k Kind) IsCommutative() bool {
	switch k {
	case AND, OR, XOR, IFF, EQ, NEQ, BVAND, BVOR, BVXOR, BVPLUS, BVMULT:
		return true
	}
	return false
}
