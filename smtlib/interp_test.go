package smtlib_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/benbjohnson/bvsolve"
	"github.com/benbjohnson/bvsolve/bitblast"
	"github.com/benbjohnson/bvsolve/smtlib"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interpreter is a test wrapper capturing output.
type Interpreter struct {
	*smtlib.Interpreter
	Context *bvsolve.Context
	Output  bytes.Buffer
}

// NewInterpreter returns an interpreter over a fresh context.
func NewInterpreter() *Interpreter {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ctx := bvsolve.NewContext(bvsolve.NewStore(), bvsolve.DefaultConfig())
	ctx.NewSolver = func() bvsolve.Solver { return bitblast.NewSolver() }
	ctx.Logger = logger

	in := &Interpreter{Context: ctx}
	in.Interpreter = smtlib.NewInterpreter(ctx, &in.Output)
	return in
}

// Run executes script and returns the output.
func (in *Interpreter) Run(script string) (string, error) {
	err := in.Interpreter.Run(context.Background(), strings.NewReader(script))
	return in.Output.String(), err
}

func TestInterpreter_Run(t *testing.T) {
	t.Run("CheckSat", func(t *testing.T) {
		in := NewInterpreter()
		out, err := in.Run(`
(set-logic QF_ABV)
(declare-const x (_ BitVec 4))
(assert (= (bvadd x #b0001) #b0000))
(check-sat)
(get-model)
(assert (distinct x #xf))
(check-sat)
`)
		require.NoError(t, err)
		assert.Equal(t, "sat\n(model\n  (define-fun x () (_ BitVec 4) #b1111))\nunsat\n", out)
	})

	t.Run("Query", func(t *testing.T) {
		in := NewInterpreter()
		out, err := in.Run(`
(declare-fun x () (_ BitVec 8))
(declare-fun y () (_ BitVec 8))
(assert (bvult x y))
(query (bvule (bvadd x (_ bv1 8)) y))
(query (bvult (bvadd x (_ bv1 8)) y))
`)
		require.NoError(t, err)
		assert.Equal(t, "valid\ninvalid\n", out)
		assert.Equal(t, []string{"x", "y"}, in.Declarations())
	})

	t.Run("Arrays", func(t *testing.T) {
		in := NewInterpreter()
		out, err := in.Run(`
(declare-const A (Array (_ BitVec 4) (_ BitVec 4)))
(declare-const i (_ BitVec 4))
(declare-const j (_ BitVec 4))
(declare-const v (_ BitVec 4))
(query (= (select (store A i v) i) v))
(query (=> (= i j) (= (select A i) (select A j))))
(query (= (select A i) (select A j)))
`)
		require.NoError(t, err)
		assert.Equal(t, "valid\nvalid\ninvalid\n", out)
	})

	t.Run("Operators", func(t *testing.T) {
		in := NewInterpreter()
		out, err := in.Run(`
(declare-const x (_ BitVec 8))
(declare-const p Bool)
(query (= ((_ extract 3 0) (concat x #x5)) #x5))
(query (= ((_ zero_extend 15) ((_ extract 7 7) x)) (bvlshr ((_ sign_extend 8) x) #x000f)))
(query (= (bvnot (bvneg x)) (bvsub x #x01)))
(query (= (bvxor x x (bvand x #x00)) #x00))
(query (xor p (not p)))
(query (= (ite p x x) x))
(query (= p p (not (not p))))
(query (bvsge (bvsrem x #x03) #x00))
`)
		require.NoError(t, err)
		assert.Equal(t, "valid\nvalid\nvalid\nvalid\nvalid\nvalid\nvalid\ninvalid\n", out)
	})

	t.Run("PushPop", func(t *testing.T) {
		in := NewInterpreter()
		out, err := in.Run(`
(declare-const x (_ BitVec 4))
(push)
(assert (= x #x3))
(push 2)
(assert (= x #x4))
(check-sat)
(pop 2)
(check-sat)
(pop)
(query (= x #x3))
`)
		require.NoError(t, err)
		assert.Equal(t, "unsat\nsat\ninvalid\n", out)
		assert.Equal(t, 0, in.Context.Depth())
	})

	t.Run("Exit", func(t *testing.T) {
		in := NewInterpreter()
		out, err := in.Run("(exit)\n(check-sat)")
		require.NoError(t, err)
		assert.Equal(t, "", out)
	})

	t.Run("NoSolver", func(t *testing.T) {
		in := NewInterpreter()
		in.NoSolver = true
		out, err := in.Run(`
(declare-const x (_ BitVec 4))
(query (= (bvadd x #b0001) #b0000))
`)
		require.NoError(t, err)
		assert.Equal(t, "(not (= #b1111 x))\n", out)
	})

	t.Run("OnResult", func(t *testing.T) {
		in := NewInterpreter()
		var statuses []bvsolve.Status
		in.OnResult = func(q *bvsolve.Term, result *bvsolve.Result) {
			statuses = append(statuses, result.Status)
		}
		_, err := in.Run("(declare-const p Bool)\n(query p)\n(query (or p (not p)))")
		require.NoError(t, err)
		assert.Equal(t, []bvsolve.Status{bvsolve.Invalid, bvsolve.Valid}, statuses)
	})
}

func TestInterpreter_Errors(t *testing.T) {
	const x4 = "(declare-const x (_ BitVec 4))\n"
	for _, tt := range []struct {
		name   string
		script string
		err    string
	}{
		{"Undeclared", "(assert (= x #x0))", `line 1: undeclared symbol "x"`},
		{"Redeclared", "(declare-const x Bool)\n(declare-const x Bool)", "line 2: x already declared"},
		{"UnsupportedCommand", "(get-proof)", `line 1: unsupported command "get-proof"`},
		{"UnsupportedOperator", x4 + "(assert (= (bvrol x) x))", `line 2: unsupported operator "bvrol"`},
		{"UnsupportedSort", "(declare-const x Int)", "line 1: unsupported sort Int"},
		{"ZeroWidth", "(declare-const x (_ BitVec 0))", "line 1: bitvector width must be positive: (_ BitVec 0)"},
		{"Arity", x4 + "(assert (= (bvsub x) x))", "line 2: bvsub takes 2 arguments, got 1"},
		{"NotFormula", x4 + "(assert x)", "line 2: expected formula: x"},
		{"WidthMismatch", x4 + "(assert (= x #x00))", "line 2: = expects operands of the same sort, got (_ BitVec 4) and (_ BitVec 8)"},
		{"BitVecOperand", x4 + "(assert (= (bvadd x true) x))", "line 2: bvadd expects bitvectors, got Bool"},
		{"BoolOperand", x4 + "(assert (not x))", "line 2: not expects formulas, got (_ BitVec 4)"},
		{"IteCondition", x4 + "(assert (= (ite x x x) x))", "line 2: ite condition must be Bool, got (_ BitVec 4)"},
		{"SelectIndex", x4 + "(declare-const A (Array (_ BitVec 8) (_ BitVec 4)))\n(assert (= (select A x) x))", "line 3: select index must be (_ BitVec 8), got (_ BitVec 4)"},
		{"ExtractRange", x4 + "(assert (= ((_ extract 4 0) x) #b00000))", "line 2: extract [4:0] out of range for width 4"},
		{"NoModel", "(get-model)", "line 1: no model available"},
		{"PopEmpty", "(pop)", "line 1: pop: context stack is empty"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInterpreter().Run(tt.script)
			assert.EqualError(t, err, tt.err)
		})
	}
}
