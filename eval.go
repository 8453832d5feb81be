package bvsolve

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Assignment maps symbols to the bits assigned to them by a SAT solver,
// least significant bit first. Boolean symbols have a single bit.
type Assignment map[*Term][]bool

// ArrayEntry is one concretized read of an array in a model.
type ArrayEntry struct {
	Index *BVConst
	Value *BVConst
}

// Model evaluates terms and formulas under an assignment. Symbols without
// an assignment are evaluated through the substitution map and otherwise
// default to zero (or false).
type Model struct {
	store      *Store
	assignment Assignment
	subst      *Substitution
	arrays     map[*Term][]ArrayEntry
	symbols    []*Term

	terms map[*Term]*BVConst
	forms map[*Term]bool
	undef map[*Term]struct{} // terms whose value depends on a division by zero

	validating bool
	undefined  bool
}

// NewModel returns a model over assignment. subst may be nil.
func NewModel(store *Store, assignment Assignment, subst *Substitution) *Model {
	if subst == nil {
		subst = NewSubstitution()
	}
	return &Model{
		store:      store,
		assignment: assignment,
		subst:      subst,
		arrays:     make(map[*Term][]ArrayEntry),
		terms:      make(map[*Term]*BVConst),
		forms:      make(map[*Term]bool),
		undef:      make(map[*Term]struct{}),
	}
}

// SetValidating toggles validation mode. In validation mode a division by
// zero makes the enclosing atomic formula false instead of failing.
// Cached values are dropped on every change.
func (m *Model) SetValidating(v bool) {
	m.validating = v
	m.terms = make(map[*Term]*BVConst)
	m.forms = make(map[*Term]bool)
	m.undef = make(map[*Term]struct{})
	m.undefined = false
}

// setArray records the concretized entries of an array symbol.
func (m *Model) setArray(array *Term, entries []ArrayEntry) {
	m.arrays[array] = entries
	m.terms = make(map[*Term]*BVConst)
	m.forms = make(map[*Term]bool)
	m.undef = make(map[*Term]struct{})
}

// UndefinedDivisions returns the divisions and remainders evaluated with a
// zero divisor since validation mode was last changed.
func (m *Model) UndefinedDivisions() []*Term {
	var a []*Term
	for t := range m.undef {
		switch t.kind {
		case BVDIV, BVMOD, SBVDIV, SBVMOD:
			if divisor, err := m.term(t.children[1]); err == nil && divisor.IsZero() {
				a = append(a, t)
			}
		}
	}
	SortTerms(a)
	return a
}

// Symbols returns the symbols reported by the model, sorted by name.
func (m *Model) Symbols() []*Term { return m.symbols }

func (m *Model) setSymbols(a []*Term) {
	m.symbols = slices.Clone(a)
	slices.SortFunc(m.symbols, func(x, y *Term) bool { return x.name < y.name })
}

// Lookup returns the symbol with the given name if the model reports it.
func (m *Model) Lookup(name string) (*Term, bool) {
	for _, sym := range m.symbols {
		if sym.name == name {
			return sym, true
		}
	}
	return nil, false
}

// ArrayEntries returns the concretized entries recorded for an array symbol.
func (m *Model) ArrayEntries(array *Term) []ArrayEntry {
	return m.arrays[array]
}

// Holds evaluates the formula f.
func (m *Model) Holds(f *Term) (bool, error) {
	assert(f.IsBool(), "holds: non-formula %s", f)
	return m.formula(f)
}

// Eval evaluates the bitvector term t.
func (m *Model) Eval(t *Term) (*BVConst, error) {
	assert(t.IsBV(), "eval: non-bitvector %s", t)
	return m.term(t)
}

func (m *Model) formula(f *Term) (bool, error) {
	if v, ok := m.forms[f]; ok {
		return v, nil
	}

	v, err := m.evalFormula(f)
	if err != nil {
		return false, err
	}
	m.forms[f] = v
	return v, nil
}

func (m *Model) evalFormula(f *Term) (bool, error) {
	switch f.kind {
	case TRUE:
		return true, nil
	case FALSE:
		return false, nil

	case SYMBOL:
		if bits, ok := m.assignment[f]; ok {
			return bits[0], nil
		} else if to, ok := m.subst.Lookup(f); ok {
			return m.formula(to)
		}
		return false, nil

	case NOT:
		v, err := m.formula(f.children[0])
		return !v, err

	case AND, NAND:
		v := true
		for _, c := range f.children {
			cv, err := m.formula(c)
			if err != nil {
				return false, err
			} else if !cv {
				v = false
				break
			}
		}
		return v == (f.kind == AND), nil

	case OR, NOR:
		v := false
		for _, c := range f.children {
			cv, err := m.formula(c)
			if err != nil {
				return false, err
			} else if cv {
				v = true
				break
			}
		}
		return v == (f.kind == OR), nil

	case XOR, IFF, IMPLIES:
		a, err := m.formula(f.children[0])
		if err != nil {
			return false, err
		}
		b, err := m.formula(f.children[1])
		if err != nil {
			return false, err
		}
		switch f.kind {
		case XOR:
			return a != b, nil
		case IFF:
			return a == b, nil
		default:
			return !a || b, nil
		}

	case ITE:
		c, err := m.formula(f.children[0])
		if err != nil {
			return false, err
		} else if c {
			return m.formula(f.children[1])
		}
		return m.formula(f.children[2])

	case EQ, NEQ, BVLT, BVLE, BVGT, BVGE, BVSLT, BVSLE, BVSGT, BVSGE:
		m.undefined = false
		a, err := m.term(f.children[0])
		if err != nil {
			return false, err
		}
		b, err := m.term(f.children[1])
		if err != nil {
			return false, err
		}
		if m.undefined {
			m.undefined = false
			return false, nil
		}
		return compareOp(f.kind, a, b), nil

	default:
		panic("unreachable")
	}
}

func (m *Model) term(t *Term) (*BVConst, error) {
	if v, ok := m.terms[t]; ok {
		if _, ok := m.undef[t]; ok {
			m.undefined = true
		}
		return v, nil
	}

	// Track undefinedness of this subterm separately from its siblings.
	outer := m.undefined
	m.undefined = false
	v, err := m.evalTerm(t)
	if err != nil {
		return nil, err
	}
	if m.undefined {
		m.undef[t] = struct{}{}
	}
	m.undefined = m.undefined || outer
	m.terms[t] = v
	return v, nil
}

func (m *Model) evalTerm(t *Term) (*BVConst, error) {
	switch t.kind {
	case BVCONST:
		return t.value, nil

	case SYMBOL:
		if bits, ok := m.assignment[t]; ok {
			return assemble(bits), nil
		} else if to, ok := m.subst.Lookup(t); ok {
			return m.term(to)
		}
		return NewBVConstUint64(0, t.valueWidth), nil

	case ITE:
		c, err := m.formula(t.children[0])
		if err != nil {
			return nil, err
		} else if c {
			return m.term(t.children[1])
		}
		return m.term(t.children[2])

	case READ:
		index, err := m.term(t.children[1])
		if err != nil {
			return nil, err
		}
		return m.read(t.children[0], index)
	}

	args := make([]*BVConst, len(t.children))
	for i, c := range t.children {
		v, err := m.term(c)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	v, err := applyOp(t.kind, args)
	if errors.Cause(err) == ErrDivideByZero && m.validating {
		m.undefined = true
		return v, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "eval %s", t)
	}
	return v, nil
}

// read evaluates the element of array at index.
func (m *Model) read(array *Term, index *BVConst) (*BVConst, error) {
	for {
		switch array.kind {
		case SYMBOL:
			for _, e := range m.arrays[array] {
				if e.Index.Equal(index) {
					return e.Value, nil
				}
			}
			if to, ok := m.subst.Lookup(m.store.Read(array, m.store.Const(index))); ok {
				return m.term(to)
			}
			return NewBVConstUint64(0, array.valueWidth), nil

		case WRITE:
			wi, err := m.term(array.children[1])
			if err != nil {
				return nil, err
			} else if wi.Equal(index) {
				return m.term(array.children[2])
			}
			array = array.children[0]

		case ITE:
			c, err := m.formula(array.children[0])
			if err != nil {
				return nil, err
			} else if c {
				array = array.children[1]
			} else {
				array = array.children[2]
			}

		default:
			panic("unreachable")
		}
	}
}

// assemble builds a constant from bits, least significant bit first.
func assemble(bits []bool) *BVConst {
	v := new(big.Int)
	for i := len(bits) - 1; i >= 0; i-- {
		v.Lsh(v, 1)
		if bits[i] {
			v.SetBit(v, 0, 1)
		}
	}
	return NewBVConst(v, uint(len(bits)))
}

// String returns the reported symbols as SMT-LIB definitions.
func (m *Model) String() string {
	var buf bytes.Buffer
	buf.WriteString("(model")
	for _, sym := range m.symbols {
		buf.WriteString("\n  ")
		switch {
		case sym.IsBool():
			v, err := m.formula(sym)
			if err != nil {
				fmt.Fprintf(&buf, "; %s: %s", sym.name, err)
				continue
			}
			fmt.Fprintf(&buf, "(define-fun %s () Bool %t)", sym.name, v)
		case sym.IsBV():
			v, err := m.term(sym)
			if err != nil {
				fmt.Fprintf(&buf, "; %s: %s", sym.name, err)
				continue
			}
			fmt.Fprintf(&buf, "(define-fun %s () (_ BitVec %d) %s)", sym.name, sym.valueWidth, v)
		default:
			// Earlier entries take precedence so they are stored last.
			typ := fmt.Sprintf("(Array (_ BitVec %d) (_ BitVec %d))", sym.indexWidth, sym.valueWidth)
			value := fmt.Sprintf("((as const %s) %s)", typ, NewBVConstUint64(0, sym.valueWidth))
			entries := m.arrays[sym]
			for i := len(entries) - 1; i >= 0; i-- {
				value = fmt.Sprintf("(store %s %s %s)", value, entries[i].Index, entries[i].Value)
			}
			fmt.Fprintf(&buf, "(define-fun %s () %s %s)", sym.name, typ, value)
		}
	}
	buf.WriteString(")")
	return buf.String()
}
