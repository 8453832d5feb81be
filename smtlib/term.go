package smtlib

import (
	"fmt"
	"math"
	"strings"

	"github.com/benbjohnson/bvsolve"
	"github.com/pkg/errors"
)

// binaryKinds maps operators that translate directly to an interior kind.
var binaryKinds = map[string]bvsolve.Kind{
	"bvnand": bvsolve.BVNAND,
	"bvnor":  bvsolve.BVNOR,
	"bvxnor": bvsolve.BVXNOR,
	"bvshl":  bvsolve.BVLEFTSHIFT,
	"bvlshr": bvsolve.BVRIGHTSHIFT,
	"bvashr": bvsolve.BVSRSHIFT,
	"bvsub":  bvsolve.BVSUB,
	"bvudiv": bvsolve.BVDIV,
	"bvurem": bvsolve.BVMOD,
	"bvsdiv": bvsolve.SBVDIV,
	"bvsrem": bvsolve.SBVMOD,
	"bvult":  bvsolve.BVLT,
	"bvule":  bvsolve.BVLE,
	"bvugt":  bvsolve.BVGT,
	"bvuge":  bvsolve.BVGE,
	"bvslt":  bvsolve.BVSLT,
	"bvsle":  bvsolve.BVSLE,
	"bvsgt":  bvsolve.BVSGT,
	"bvsge":  bvsolve.BVSGE,
}

// naryKinds maps associative bitvector operators.
var naryKinds = map[string]bvsolve.Kind{
	"bvand": bvsolve.BVAND,
	"bvor":  bvsolve.BVOR,
	"bvxor": bvsolve.BVXOR,
	"bvadd": bvsolve.BVPLUS,
	"bvmul": bvsolve.BVMULT,
}

// formula translates n and checks that it is boolean.
func (in *Interpreter) formula(n *Node) (*bvsolve.Term, error) {
	t, err := in.term(n)
	if err != nil {
		return nil, err
	} else if !t.IsBool() {
		return nil, errors.Errorf("line %d: expected formula: %s", n.Line, n)
	}
	return t, nil
}

func (in *Interpreter) term(n *Node) (*bvsolve.Term, error) {
	if !n.IsList {
		return in.atom(n)
	} else if len(n.List) == 0 {
		return nil, errors.Errorf("line %d: empty term", n.Line)
	}

	// Indexed constants and operators.
	if n.head() == "_" {
		return in.indexedConst(n)
	} else if op := n.List[0]; op.head() == "_" {
		return in.indexed(op, n.List[1:])
	}

	name := n.head()
	if name == "" {
		return nil, errors.Errorf("line %d: expected operator: %s", n.Line, n)
	}
	args := make([]*bvsolve.Term, len(n.List)-1)
	for i, c := range n.List[1:] {
		t, err := in.term(c)
		if err != nil {
			return nil, err
		}
		args[i] = t
	}
	return in.apply(n, name, args)
}

func (in *Interpreter) atom(n *Node) (*bvsolve.Term, error) {
	switch s := n.Atom; {
	case s == "true":
		return in.store.True(), nil
	case s == "false":
		return in.store.False(), nil
	case strings.HasPrefix(s, "#b"):
		v, err := bvsolve.ParseBVConst(s[2:], 2, 0)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", n.Line)
		}
		return in.store.Const(v), nil
	case strings.HasPrefix(s, "#x"):
		v, err := bvsolve.ParseBVConst(s[2:], 16, 0)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", n.Line)
		}
		return in.store.Const(v), nil
	}

	if t, ok := in.decls[n.Atom]; ok {
		return t, nil
	}
	return nil, errors.Errorf("line %d: undeclared symbol %q", n.Line, n.Atom)
}

// indexedConst parses (_ bvN w).
func (in *Interpreter) indexedConst(n *Node) (*bvsolve.Term, error) {
	if len(n.List) != 3 || n.List[1].IsList || !strings.HasPrefix(n.List[1].Atom, "bv") {
		return nil, errors.Errorf("line %d: unsupported indexed term %s", n.Line, n)
	}
	w, err := numeral(n.List[2])
	if err != nil {
		return nil, err
	}
	v, err := bvsolve.ParseBVConst(n.List[1].Atom[2:], 10, w)
	if err != nil {
		return nil, errors.Wrapf(err, "line %d", n.Line)
	}
	return in.store.Const(v), nil
}

// indexed applies an indexed operator such as ((_ extract i j) x).
func (in *Interpreter) indexed(op *Node, operands []*Node) (*bvsolve.Term, error) {
	if len(op.List) < 3 || op.List[1].IsList || len(operands) != 1 {
		return nil, errors.Errorf("line %d: malformed indexed operator %s", op.Line, op)
	}
	x, err := in.term(operands[0])
	if err != nil {
		return nil, err
	} else if !x.IsBV() {
		return nil, errors.Errorf("line %d: %s expects a bitvector", op.Line, op)
	}

	i, err := numeral(op.List[2])
	if err != nil {
		return nil, err
	}

	switch name := op.List[1].Atom; name {
	case "extract":
		if len(op.List) != 4 {
			return nil, errors.Errorf("line %d: extract takes two indices", op.Line)
		}
		j, err := numeral(op.List[3])
		if err != nil {
			return nil, err
		} else if j > i || i >= x.ValueWidth() {
			return nil, errors.Errorf("line %d: extract [%d:%d] out of range for width %d", op.Line, i, j, x.ValueWidth())
		}
		return in.store.Extract(x, i, j), nil
	case "sign_extend", "zero_extend":
		if uint64(x.ValueWidth())+uint64(i) > math.MaxUint32 {
			return nil, errors.Errorf("line %d: %s by %d overflows the maximum width", op.Line, name, i)
		} else if i == 0 {
			return x, nil
		} else if name == "sign_extend" {
			return in.store.SignExtend(x, x.ValueWidth()+i), nil
		}
		return in.store.ZeroExtend(x, x.ValueWidth()+i), nil
	default:
		return nil, errors.Errorf("line %d: unsupported indexed operator %q", op.Line, name)
	}
}

func (in *Interpreter) apply(n *Node, name string, args []*bvsolve.Term) (*bvsolve.Term, error) {
	s := in.store
	arity := func(k int) error {
		if len(args) != k {
			return errors.Errorf("line %d: %s takes %d arguments, got %d", n.Line, name, k, len(args))
		}
		return nil
	}
	atLeast := func(k int) error {
		if len(args) < k {
			return errors.Errorf("line %d: %s takes at least %d arguments, got %d", n.Line, name, k, len(args))
		}
		return nil
	}

	if kind, ok := binaryKinds[name]; ok {
		if err := arity(2); err != nil {
			return nil, err
		} else if err := sameBitVec(n, name, args); err != nil {
			return nil, err
		}
		return s.Interior(kind, args...), nil
	} else if kind, ok := naryKinds[name]; ok {
		if err := atLeast(2); err != nil {
			return nil, err
		} else if err := sameBitVec(n, name, args); err != nil {
			return nil, err
		}
		return s.Interior(kind, args...), nil
	}

	switch name {
	case "not", "and", "or", "xor", "=>":
		if err := allBool(n, name, args); err != nil {
			return nil, err
		}
	}

	switch name {
	case "not":
		if err := arity(1); err != nil {
			return nil, err
		}
		return s.Not(args[0]), nil
	case "and":
		return s.And(args...), nil
	case "or":
		return s.Or(args...), nil
	case "xor":
		if err := atLeast(2); err != nil {
			return nil, err
		}
		f := args[0]
		for _, a := range args[1:] {
			f = s.Interior(bvsolve.XOR, f, a)
		}
		return f, nil
	case "=>":
		if err := atLeast(2); err != nil {
			return nil, err
		}
		f := args[len(args)-1]
		for i := len(args) - 2; i >= 0; i-- {
			f = s.Implies(args[i], f)
		}
		return f, nil
	case "=", "distinct":
		if err := atLeast(2); err != nil {
			return nil, err
		} else if err := sameSort(n, name, args); err != nil {
			return nil, err
		} else if args[0].IsArray() {
			return nil, errors.Errorf("line %d: %s over arrays is not supported", n.Line, name)
		}
		var fs []*bvsolve.Term
		for i := range args {
			for j := i + 1; j < len(args); j++ {
				if name == "=" && j > i+1 {
					break
				}
				var eq *bvsolve.Term
				if args[i].IsBool() {
					eq = s.Iff(args[i], args[j])
				} else {
					eq = s.Eq(args[i], args[j])
				}
				if name == "distinct" {
					eq = s.Not(eq)
				}
				fs = append(fs, eq)
			}
		}
		if len(fs) == 1 {
			return fs[0], nil
		}
		return s.And(fs...), nil
	case "ite":
		if err := arity(3); err != nil {
			return nil, err
		} else if !args[0].IsBool() {
			return nil, errors.Errorf("line %d: ite condition must be Bool, got %s", n.Line, sortString(args[0]))
		} else if err := sameSort(n, name, args[1:]); err != nil {
			return nil, err
		}
		return s.Ite(args[0], args[1], args[2]), nil
	case "bvnot":
		if err := arity(1); err != nil {
			return nil, err
		} else if err := sameBitVec(n, name, args); err != nil {
			return nil, err
		}
		return s.Neg(args[0]), nil
	case "bvneg":
		if err := arity(1); err != nil {
			return nil, err
		} else if err := sameBitVec(n, name, args); err != nil {
			return nil, err
		}
		return s.UMinus(args[0]), nil
	case "concat":
		if err := atLeast(2); err != nil {
			return nil, err
		}
		for _, a := range args {
			if !a.IsBV() {
				return nil, errors.Errorf("line %d: concat expects bitvectors, got %s", n.Line, sortString(a))
			}
		}
		t := args[0]
		for _, a := range args[1:] {
			t = s.Concat(t, a)
		}
		return t, nil
	case "select":
		if err := arity(2); err != nil {
			return nil, err
		} else if err := arrayAccess(n, name, args[0], args[1], nil); err != nil {
			return nil, err
		}
		return s.Read(args[0], args[1]), nil
	case "store":
		if err := arity(3); err != nil {
			return nil, err
		} else if err := arrayAccess(n, name, args[0], args[1], args[2]); err != nil {
			return nil, err
		}
		return s.Write(args[0], args[1], args[2]), nil
	default:
		return nil, errors.Errorf("line %d: unsupported operator %q", n.Line, name)
	}
}

// sortString returns the SMT-LIB sort of t.
func sortString(t *bvsolve.Term) string {
	switch {
	case t.IsBool():
		return "Bool"
	case t.IsArray():
		return fmt.Sprintf("(Array (_ BitVec %d) (_ BitVec %d))", t.IndexWidth(), t.ValueWidth())
	default:
		return fmt.Sprintf("(_ BitVec %d)", t.ValueWidth())
	}
}

// sameSort returns an error unless every argument has the sort of the first.
func sameSort(n *Node, name string, args []*bvsolve.Term) error {
	for _, a := range args[1:] {
		if a.IsBool() != args[0].IsBool() || a.IndexWidth() != args[0].IndexWidth() || a.ValueWidth() != args[0].ValueWidth() {
			return errors.Errorf("line %d: %s expects operands of the same sort, got %s and %s",
				n.Line, name, sortString(args[0]), sortString(a))
		}
	}
	return nil
}

// sameBitVec returns an error unless every argument is a bitvector of one width.
func sameBitVec(n *Node, name string, args []*bvsolve.Term) error {
	for _, a := range args {
		if !a.IsBV() {
			return errors.Errorf("line %d: %s expects bitvectors, got %s", n.Line, name, sortString(a))
		}
	}
	return sameSort(n, name, args)
}

func allBool(n *Node, name string, args []*bvsolve.Term) error {
	for _, a := range args {
		if !a.IsBool() {
			return errors.Errorf("line %d: %s expects formulas, got %s", n.Line, name, sortString(a))
		}
	}
	return nil
}

// arrayAccess checks the operands of select and store. value is nil for select.
func arrayAccess(n *Node, name string, array, index, value *bvsolve.Term) error {
	if !array.IsArray() {
		return errors.Errorf("line %d: %s expects an array, got %s", n.Line, name, sortString(array))
	} else if !index.IsBV() || index.ValueWidth() != array.IndexWidth() {
		return errors.Errorf("line %d: %s index must be (_ BitVec %d), got %s", n.Line, name, array.IndexWidth(), sortString(index))
	} else if value != nil && (!value.IsBV() || value.ValueWidth() != array.ValueWidth()) {
		return errors.Errorf("line %d: %s value must be (_ BitVec %d), got %s", n.Line, name, array.ValueWidth(), sortString(value))
	}
	return nil
}
