package bvsolve

import (
	"fmt"

	"github.com/pkg/errors"
)

// Standard widths.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64
)

// boundWidth is the width of constants holding extract bounds and extension widths.
const boundWidth = Width32

var (
	ErrDivideByZero        = errors.New("Division by zero")
	ErrRefinementExhausted = errors.New("Refinement exhausted: model disagrees with theory but no axioms remain")
	ErrRefinementLimit     = errors.New("Refinement limit reached")
	ErrSolverTimeout       = errors.New("Solver timeout")
	ErrSolverUnknown       = errors.New("Solver unknown error")
)

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
