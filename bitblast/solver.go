package bitblast

import (
	"context"
	"time"

	"github.com/benbjohnson/bvsolve"
	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"
)

// Ensure solver implements interface.
var _ bvsolve.Solver = (*Solver)(nil)

// pollInterval is how often a running search checks for cancellation.
const pollInterval = 5 * time.Millisecond

// Solver is an incremental SAT backend. Asserted formulas are blasted into a
// shared circuit whose new gates are added to the solver as clauses.
type Solver struct {
	blaster *Blaster
	g       *gini.Gini
	emitted int // circuit nodes already added as clauses
	stats   Stats
}

// Stats holds counters for a solver.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
	ClauseN   int
}

// NewSolver returns a new instance of Solver.
func NewSolver() *Solver {
	s := &Solver{
		blaster: New(),
		g:       gini.New(),
		emitted: 1,
	}

	// Pin the constant variable.
	s.g.Add(s.blaster.c.T)
	s.g.Add(0)
	return s
}

// Stats returns statistics for the solver.
func (s *Solver) Stats() Stats {
	return s.stats
}

// Blaster returns the blaster feeding the solver.
func (s *Solver) Blaster() *Blaster { return s.blaster }

// Assert blasts f and adds it as a unit clause.
func (s *Solver) Assert(f *bvsolve.Term) error {
	m, err := s.blaster.Formula(f)
	if err != nil {
		return err
	}
	s.emit()
	s.g.Add(m)
	s.g.Add(0)
	s.stats.ClauseN++
	return nil
}

// emit adds the Tseitin clauses of every gate created since the last call.
func (s *Solver) emit() {
	c := s.blaster.c
	for ; s.emitted < c.Len(); s.emitted++ {
		g := c.At(s.emitted)
		a, b := c.Ins(g)
		if a == z.LitNull || a == c.F || a == c.T {
			continue
		}

		s.g.Add(g.Not())
		s.g.Add(a)
		s.g.Add(0)
		s.g.Add(g.Not())
		s.g.Add(b)
		s.g.Add(0)
		s.g.Add(g)
		s.g.Add(a.Not())
		s.g.Add(b.Not())
		s.g.Add(0)
		s.stats.ClauseN += 3
	}
}

// Solve searches for a satisfying assignment. The search is abandoned with
// bvsolve.ErrSolverTimeout when ctx is done first.
func (s *Solver) Solve(ctx context.Context) (satisfiable bool, assignment bvsolve.Assignment, err error) {
	t := time.Now()
	defer func() {
		s.stats.SolveN++
		s.stats.SolveTime += time.Since(t)
	}()

	switch s.search(ctx) {
	case 1:
		return true, s.assignment(), nil
	case -1:
		return false, nil, nil
	default:
		if err := ctx.Err(); err != nil {
			return false, nil, errors.Wrap(bvsolve.ErrSolverTimeout, err.Error())
		}
		return false, nil, bvsolve.ErrSolverUnknown
	}
}

// search runs the solver, polling ctx while it is in progress.
func (s *Solver) search(ctx context.Context) int {
	if ctx.Done() == nil {
		return s.g.Solve()
	} else if ctx.Err() != nil {
		return 0
	}

	gs := s.g.GoSolve()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if res, done := gs.Test(); done {
			return res
		}
		select {
		case <-ctx.Done():
			return gs.Stop()
		case <-ticker.C:
		}
	}
}

// assignment reads the values of every blasted symbol.
func (s *Solver) assignment() bvsolve.Assignment {
	maxVar := s.g.MaxVar()
	a := make(bvsolve.Assignment, len(s.blaster.order))
	for _, sym := range s.blaster.order {
		ms := s.blaster.symbols[sym]
		bits := make([]bool, len(ms))
		for i, m := range ms {
			// Inputs that never reached a clause are unconstrained.
			if m.Var() <= maxVar {
				bits[i] = s.g.Value(m)
			}
		}
		a[sym] = bits
	}
	return a
}
