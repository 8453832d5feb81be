package smtlib

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/benbjohnson/bvsolve"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Interpreter executes SMT-LIB commands against a Context and writes
// responses to an output writer.
type Interpreter struct {
	ctx   *bvsolve.Context
	store *bvsolve.Store
	w     io.Writer

	decls map[string]*bvsolve.Term
	last  *bvsolve.Result
	exit  bool

	// If true, queries print the simplified formula instead of being solved.
	NoSolver bool

	// Invoked after each solved query.
	OnResult func(q *bvsolve.Term, result *bvsolve.Result)
}

// NewInterpreter returns an interpreter over ctx writing responses to w.
func NewInterpreter(ctx *bvsolve.Context, w io.Writer) *Interpreter {
	return &Interpreter{
		ctx:   ctx,
		store: ctx.Store(),
		w:     w,
		decls: make(map[string]*bvsolve.Term),
	}
}

// Declarations returns the names of every declared symbol, sorted.
func (in *Interpreter) Declarations() []string {
	names := maps.Keys(in.decls)
	slices.Sort(names)
	return names
}

// Run parses r and executes every command in order. Execution stops at the
// first error or at an exit command.
func (in *Interpreter) Run(ctx context.Context, r io.Reader) error {
	nodes, err := Parse(r)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if err := in.Exec(ctx, n); err != nil {
			return err
		} else if in.exit {
			return nil
		}
	}
	return nil
}

// Exec executes a single command.
func (in *Interpreter) Exec(ctx context.Context, n *Node) error {
	if n.head() == "" {
		return errors.Errorf("line %d: expected command: %s", n.Line, n)
	}
	args := n.List[1:]

	switch cmd := n.head(); cmd {
	case "set-logic", "set-option", "set-info":
		return nil

	case "exit":
		in.exit = true
		return nil

	case "declare-fun":
		if len(args) != 3 || args[0].IsList || !args[1].IsList || len(args[1].List) != 0 {
			return errors.Errorf("line %d: only nullary declare-fun is supported", n.Line)
		}
		return in.declare(args[0].Atom, args[2])

	case "declare-const":
		if len(args) != 2 || args[0].IsList {
			return errors.Errorf("line %d: malformed declare-const", n.Line)
		}
		return in.declare(args[0].Atom, args[1])

	case "assert":
		if len(args) != 1 {
			return errors.Errorf("line %d: assert takes one formula", n.Line)
		}
		f, err := in.formula(args[0])
		if err != nil {
			return err
		}
		in.ctx.Assert(f)
		return nil

	case "push", "pop":
		k, err := in.count(n)
		if err != nil {
			return err
		}
		for i := 0; i < k; i++ {
			if cmd == "push" {
				in.ctx.Push()
			} else if err := in.ctx.Pop(); err != nil {
				return errors.Wrapf(err, "line %d", n.Line)
			}
		}
		return nil

	case "check-sat":
		result, err := in.query(ctx, in.store.False())
		if err != nil || result == nil {
			return err
		}
		if result.Status == bvsolve.Valid {
			_, err = fmt.Fprintln(in.w, "unsat")
		} else {
			_, err = fmt.Fprintln(in.w, "sat")
		}
		return err

	case "query":
		if len(args) != 1 {
			return errors.Errorf("line %d: query takes one formula", n.Line)
		}
		q, err := in.formula(args[0])
		if err != nil {
			return err
		}
		result, err := in.query(ctx, q)
		if err != nil || result == nil {
			return err
		}
		_, err = fmt.Fprintln(in.w, result.Status)
		return err

	case "get-model":
		if in.last == nil || in.last.Model == nil {
			return errors.Errorf("line %d: no model available", n.Line)
		}
		_, err := fmt.Fprintln(in.w, in.last.Model)
		return err

	default:
		return errors.Errorf("line %d: unsupported command %q", n.Line, cmd)
	}
}

func (in *Interpreter) query(ctx context.Context, q *bvsolve.Term) (*bvsolve.Result, error) {
	in.last = nil
	if in.NoSolver {
		simp := bvsolve.NewSimplifier(in.store, bvsolve.NewSubstitution())
		f := simp.Formula(in.store.And(append(in.ctx.Assertions(), in.store.Not(q))...))
		_, err := fmt.Fprintln(in.w, f)
		return nil, err
	}

	result, err := in.ctx.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	in.last = result
	if in.OnResult != nil {
		in.OnResult(q, result)
	}
	return result, nil
}

// count returns the optional numeral argument of push and pop.
func (in *Interpreter) count(n *Node) (int, error) {
	if len(n.List) == 1 {
		return 1, nil
	} else if len(n.List) != 2 || n.List[1].IsList {
		return 0, errors.Errorf("line %d: malformed %s", n.Line, n.head())
	}
	k, err := strconv.Atoi(n.List[1].Atom)
	if err != nil || k < 0 {
		return 0, errors.Errorf("line %d: invalid count %q", n.Line, n.List[1].Atom)
	}
	return k, nil
}

func (in *Interpreter) declare(name string, sort *Node) error {
	if _, ok := in.decls[name]; ok {
		return errors.Errorf("line %d: %s already declared", sort.Line, name)
	}

	var indexWidth, valueWidth uint
	switch {
	case !sort.IsList && sort.Atom == "Bool":
	case sort.head() == "_":
		w, err := bitVecWidth(sort)
		if err != nil {
			return err
		}
		valueWidth = w
	case sort.head() == "Array" && len(sort.List) == 3:
		iw, err := bitVecWidth(sort.List[1])
		if err != nil {
			return err
		}
		vw, err := bitVecWidth(sort.List[2])
		if err != nil {
			return err
		}
		indexWidth, valueWidth = iw, vw
	default:
		return errors.Errorf("line %d: unsupported sort %s", sort.Line, sort)
	}

	if sym, ok := in.store.LookupSymbol(name); ok && (sym.IndexWidth() != indexWidth || sym.ValueWidth() != valueWidth) {
		return errors.Errorf("line %d: %s conflicts with an existing symbol of a different sort", sort.Line, name)
	}
	in.decls[name] = in.store.Symbol(name, indexWidth, valueWidth)
	return nil
}

// bitVecWidth parses the sort (_ BitVec n).
func bitVecWidth(n *Node) (uint, error) {
	if n.head() != "_" || len(n.List) != 3 || n.List[1].Atom != "BitVec" {
		return 0, errors.Errorf("line %d: expected (_ BitVec n): %s", n.Line, n)
	}
	w, err := numeral(n.List[2])
	if err != nil {
		return 0, err
	} else if w == 0 {
		return 0, errors.Errorf("line %d: bitvector width must be positive: %s", n.Line, n)
	}
	return w, nil
}

func numeral(n *Node) (uint, error) {
	if n.IsList {
		return 0, errors.Errorf("line %d: expected numeral: %s", n.Line, n)
	}
	v, err := strconv.ParseUint(n.Atom, 10, 32)
	if err != nil {
		return 0, errors.Errorf("line %d: invalid numeral %q", n.Line, n.Atom)
	}
	return uint(v), nil
}
