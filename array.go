package bvsolve

import (
	"fmt"

	"github.com/pkg/errors"
)

// ArrayMode selects how array reads and writes are lowered before bit-blasting.
type ArrayMode int

const (
	// ArrayModeAbstract replaces reads of array symbols with placeholders and
	// reads over writes with fresh variables whose definitions are added as
	// axioms only when a model violates them.
	ArrayModeAbstract ArrayMode = iota

	// ArrayModeLazy replaces reads of array symbols with placeholders and
	// lowers reads over writes eagerly. Congruence is added on demand.
	ArrayModeLazy

	// ArrayModeEager lowers every read into an if-then-else chain over the
	// previously seen indices of the same array. No refinement is needed.
	ArrayModeEager
)

var arrayModes = [...]string{
	ArrayModeAbstract: "abstract",
	ArrayModeLazy:     "lazy",
	ArrayModeEager:    "eager",
}

// String returns the configuration name of the mode.
func (m ArrayMode) String() string {
	if m >= 0 && int(m) < len(arrayModes) {
		return arrayModes[m]
	}
	return fmt.Sprintf("ArrayMode<%d>", int(m))
}

// ParseArrayMode returns the mode with the given name.
func ParseArrayMode(s string) (ArrayMode, error) {
	for i, name := range arrayModes {
		if name == s {
			return ArrayMode(i), nil
		}
	}
	return 0, errors.Errorf("invalid array mode: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m ArrayMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ArrayMode) UnmarshalText(text []byte) (err error) {
	*m, err = ParseArrayMode(string(text))
	return err
}

// arrayRead is a read of an array symbol at an array-free index.
type arrayRead struct {
	array *Term
	index *Term
	value *Term // placeholder symbol, or the substituted value
}

// writeDefinition defines a fresh variable standing for a read over a write.
type writeDefinition struct {
	v   *Term
	def *Term
}

// ArrayAbstractor removes array terms from formulas. Reads of array symbols
// become scalar placeholders and reads over writes are lowered according to
// the configured mode. The abstractor keeps the bookkeeping needed to
// generate congruence and write axioms during refinement.
type ArrayAbstractor struct {
	store *Store
	simp  *Simplifier
	mode  ArrayMode

	memo   map[*Term]*Term
	arrays []*Term // array symbols in first-seen order
	reads  map[*Term][]*arrayRead
	byRead map[*Term]*arrayRead // READ(array, index) -> record
	writes []*writeDefinition
	added  map[*Term]struct{} // axioms already handed out

	nameN int
}

// NewArrayAbstractor returns an abstractor that simplifies indices with simp.
func NewArrayAbstractor(simp *Simplifier, mode ArrayMode) *ArrayAbstractor {
	a := &ArrayAbstractor{store: simp.store, simp: simp, mode: mode}
	a.Reset()
	return a
}

// Reset clears all per-query bookkeeping.
func (a *ArrayAbstractor) Reset() {
	a.memo = make(map[*Term]*Term)
	a.arrays = nil
	a.reads = make(map[*Term][]*arrayRead)
	a.byRead = make(map[*Term]*arrayRead)
	a.writes = nil
	a.added = make(map[*Term]struct{})
}

// Mode returns the lowering mode.
func (a *ArrayAbstractor) Mode() ArrayMode { return a.mode }

// ReadN returns the number of distinct reads recorded for array.
func (a *ArrayAbstractor) ReadN(array *Term) int { return len(a.reads[array]) }

// Formula returns f with every array term removed and signed division
// lowered to unsigned division.
func (a *ArrayAbstractor) Formula(f *Term) *Term {
	assert(f.IsBool(), "abstract: non-formula %s", f)
	a.registerSubstitution()
	return a.transform(f)
}

// registerSubstitution records substituted reads of array symbols so that
// placeholders of other reads of the same array stay consistent with them.
func (a *ArrayAbstractor) registerSubstitution() {
	a.simp.subst.Each(func(from, to *Term) {
		if from.kind != READ {
			return
		} else if _, ok := a.byRead[from]; ok {
			return
		}
		value := a.transform(a.simp.Term(to))
		a.addRead(&arrayRead{array: from.children[0], index: from.children[1], value: value}, from)
	})
}

func (a *ArrayAbstractor) addRead(r *arrayRead, key *Term) {
	if _, ok := a.reads[r.array]; !ok {
		a.arrays = append(a.arrays, r.array)
	}
	a.reads[r.array] = append(a.reads[r.array], r)
	a.byRead[key] = r
}

func (a *ArrayAbstractor) transform(t *Term) *Term {
	if t.kind.IsLeaf() {
		return t
	} else if r, ok := a.memo[t]; ok {
		return r
	}

	var r *Term
	switch t.kind {
	case READ:
		r = a.read(t.children[0], a.transform(t.children[1]))
	case SBVDIV, SBVMOD:
		r = a.signedDivMod(t.kind, a.transform(t.children[0]), a.transform(t.children[1]))
	default:
		assert(!t.IsArray(), "abstract: array term outside of a read: %s", t)
		children := make([]*Term, len(t.children))
		for i, c := range t.children {
			children[i] = a.transform(c)
		}
		r = a.store.Interior(t.kind, children...)
	}

	a.memo[t] = r
	return r
}

// read lowers a read of array at the array-free index.
func (a *ArrayAbstractor) read(array, index *Term) *Term {
	key := a.store.Read(array, index)
	if r, ok := a.memo[key]; ok {
		return r
	}

	var r *Term
	switch array.kind {
	case SYMBOL:
		r = a.readSymbol(array, index, key)

	case WRITE:
		wi := a.transform(array.children[1])
		wv := a.transform(array.children[2])
		lowered := a.store.Ite(a.store.Eq(wi, index), wv, a.read(array.children[0], index))
		if a.mode != ArrayModeAbstract {
			r = lowered
			break
		}
		r = a.fresh(fmt.Sprintf("array_write_%d", a.nameN), array.valueWidth)
		a.writes = append(a.writes, &writeDefinition{v: r, def: lowered})

	case ITE:
		cond := a.transform(array.children[0])
		r = a.store.Ite(cond, a.read(array.children[1], index), a.read(array.children[2], index))

	default:
		panic("unreachable")
	}

	a.memo[key] = r
	return r
}

func (a *ArrayAbstractor) readSymbol(array, index, key *Term) *Term {
	if rec, ok := a.byRead[key]; ok {
		return rec.value
	}

	prev := a.reads[array]
	rec := &arrayRead{
		array: array,
		index: index,
		value: a.fresh(fmt.Sprintf("%s_array_%d", array.name, len(prev)), array.valueWidth),
	}
	a.addRead(rec, key)

	if a.mode != ArrayModeEager {
		return rec.value
	}

	// Chain through earlier reads, oldest outermost.
	r := rec.value
	for i := len(prev) - 1; i >= 0; i-- {
		p := prev[i]
		eq := a.simp.Formula(a.store.Eq(index, p.index))
		if eq.kind == FALSE {
			continue
		} else if eq.kind == TRUE {
			r = p.value
			continue
		}
		r = a.store.Ite(eq, p.value, r)
	}
	return r
}

// fresh returns a new bitvector symbol whose name starts with prefix.
func (a *ArrayAbstractor) fresh(prefix string, width uint) *Term {
	for {
		a.nameN++
		name := prefix
		if _, ok := a.store.LookupSymbol(name); ok {
			name = fmt.Sprintf("%s_%d", prefix, a.nameN)
		}
		if _, ok := a.store.LookupSymbol(name); !ok {
			return a.store.Symbol(name, 0, width)
		}
	}
}

// signedDivMod lowers signed division and remainder onto unsigned division of
// the magnitudes. The remainder takes the sign of the dividend.
func (a *ArrayAbstractor) signedDivMod(kind Kind, x, y *Term) *Term {
	w := x.valueWidth
	one := a.store.One(1)
	sx := a.store.Eq(a.store.Extract(x, w-1, w-1), one)
	sy := a.store.Eq(a.store.Extract(y, w-1, w-1), one)
	absX := a.store.Ite(sx, a.store.UMinus(x), x)
	absY := a.store.Ite(sy, a.store.UMinus(y), y)

	if kind == SBVDIV {
		q := a.store.Interior(BVDIV, absX, absY)
		return a.store.Ite(a.store.Interior(XOR, sx, sy), a.store.UMinus(q), q)
	}
	r := a.store.Interior(BVMOD, absX, absY)
	return a.store.Ite(sx, a.store.UMinus(r), r)
}

// ReadAxioms returns the congruence axioms between reads of the same array
// that are false in m and have not been returned before.
func (a *ArrayAbstractor) ReadAxioms(m *Model) ([]*Term, error) {
	var out []*Term
	for _, array := range a.arrays {
		reads := a.reads[array]
		for i := range reads {
			for j := i + 1; j < len(reads); j++ {
				axiom := a.store.Implies(
					a.store.Eq(reads[i].index, reads[j].index),
					a.store.Eq(reads[i].value, reads[j].value),
				)
				if _, ok := a.added[axiom]; ok {
					continue
				}
				if ok, err := m.Holds(axiom); err != nil {
					return nil, err
				} else if ok {
					continue
				}
				a.added[axiom] = struct{}{}
				out = append(out, axiom)
			}
		}
	}
	return out, nil
}

// WriteAxioms returns the definitions of write variables that have not been
// returned before. Definitions that are false in m are returned first; if
// there are none, every remaining definition is returned.
func (a *ArrayAbstractor) WriteAxioms(m *Model) ([]*Term, error) {
	var violated, rest []*Term
	for _, w := range a.writes {
		axiom := a.store.Eq(w.v, w.def)
		if _, ok := a.added[axiom]; ok {
			continue
		}
		if ok, err := m.Holds(axiom); err != nil {
			return nil, err
		} else if ok {
			rest = append(rest, axiom)
		} else {
			violated = append(violated, axiom)
		}
	}

	out := violated
	if len(out) == 0 {
		out = rest
	}
	for _, axiom := range out {
		a.added[axiom] = struct{}{}
	}
	return out, nil
}

// arrayEntries returns the evaluated index/value pairs of every recorded
// read of array, in the order the reads were first seen.
func (a *ArrayAbstractor) arrayEntries(m *Model, array *Term) ([]ArrayEntry, error) {
	var out []ArrayEntry
	for _, r := range a.reads[array] {
		index, err := m.Eval(r.index)
		if err != nil {
			return nil, err
		}
		value, err := m.Eval(r.value)
		if err != nil {
			return nil, err
		}
		out = append(out, ArrayEntry{Index: index, Value: value})
	}
	return out, nil
}
