package bvsolve

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// refinement holds the state of a single query.
type refinement struct {
	*Context

	logger logrus.FieldLogger
	stats  Stats

	simp   *Simplifier
	linear *LinearSolver
	arrays *ArrayAbstractor
	solver Solver

	original  *Term   // assertions and negated query, before any rewriting
	symbols   []*Term // declared symbols reported in models
	undefined []*Term // divisions by zero in the last rejected model
}

func (r *refinement) run(ctx context.Context, q *Term) (*Result, error) {
	r.original = r.store.And(append(r.Assertions(), r.store.Not(q))...)
	r.symbols = Symbols(r.original)

	r.simp = NewSimplifier(r.store, r.subst.Clone())
	r.simp.SetEnabled(r.config.Simplify)
	r.linear = NewLinearSolver(r.simp)
	r.arrays = NewArrayAbstractor(r.simp, r.config.ArrayMode)

	f := r.preprocess(r.original)
	switch f.kind {
	case FALSE:
		r.logger.Debug("[preprocess] unsatisfiable without search")
		return &Result{Status: Valid}, nil
	case TRUE:
		// Every constraint was solved. Try the model implied by the substitution.
		m, ok, err := r.validate(Assignment{})
		if err != nil {
			return nil, err
		} else if ok {
			r.logger.Debug("[preprocess] satisfied by substitution")
			return &Result{Status: Invalid, Model: m}, nil
		}
	}

	f = r.arrays.Formula(f)
	r.logger.WithField("size", Size(f)).Debug("[abstract] arrays removed")
	if f = r.preprocess(f); f.kind == FALSE {
		return &Result{Status: Valid}, nil
	}

	r.solver = r.NewSolver()
	if err := r.solver.Assert(f); err != nil {
		return nil, errors.Wrap(err, "assert")
	}

	for round := 0; ; round++ {
		if limit := r.config.MaxRefinements; limit > 0 && round > limit {
			return nil, errors.Wrapf(ErrRefinementLimit, "after %d rounds", limit)
		}

		sat, assignment, err := r.solve(ctx)
		if err != nil {
			return nil, err
		} else if !sat {
			r.logger.WithField("round", round).Debug("[solve] unsatisfiable")
			return &Result{Status: Valid}, nil
		}

		m, ok, err := r.validate(assignment)
		if err != nil {
			return nil, err
		} else if ok {
			r.logger.WithField("round", round).Debug("[solve] model validated")
			return &Result{Status: Invalid, Model: m}, nil
		}

		axioms, err := r.strengthen(m)
		if err != nil {
			return nil, err
		} else if len(axioms) == 0 {
			if len(r.undefined) > 0 {
				r.logger.WithField("divisions", r.undefined).Warn("[refine] model rejected for division by zero")
			}
			return nil, ErrRefinementExhausted
		}
		r.stats.RefinementN++
		r.stats.AxiomN += len(axioms)
		r.logger.WithFields(logrus.Fields{"round": round, "axioms": len(axioms)}).Debug("[refine] strengthening abstraction")

		for _, axiom := range axioms {
			switch a := r.simp.Formula(axiom); a.kind {
			case TRUE:
				continue
			case FALSE:
				return &Result{Status: Valid}, nil
			default:
				if err := r.solver.Assert(a); err != nil {
					return nil, errors.Wrap(err, "assert axiom")
				}
			}
		}
	}
}

// preprocess applies the substitution map, the simplifier and the linear
// solver until the formula stops changing.
func (r *refinement) preprocess(f *Term) *Term {
	for i := 0; ; i++ {
		prev := f
		f = r.simp.Formula(r.simp.BuildSubstitution(r.simp.Formula(f)))
		if r.config.WordLevelSolving && f.kind != FALSE && f.kind != TRUE {
			f = r.linear.Solve(f)
		}
		if f == prev {
			r.stats.EliminatedN = r.linear.EliminatedN
			r.logger.WithFields(logrus.Fields{
				"iterations":  i + 1,
				"substituted": r.simp.subst.Len(),
			}).Debug("[preprocess] fixpoint")
			return f
		}
	}
}

// solve runs the SAT backend, bounded by the configured timeout.
func (r *refinement) solve(ctx context.Context) (bool, Assignment, error) {
	if d := r.config.SATTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	t := time.Now()
	defer func() {
		r.stats.SolveN++
		r.stats.SolveTime += time.Since(t)
	}()
	return r.solver.Solve(ctx)
}

// validate builds a model from assignment and checks it against the
// original formula.
func (r *refinement) validate(assignment Assignment) (*Model, bool, error) {
	m := NewModel(r.store, assignment, r.simp.subst)
	m.setSymbols(r.symbols)
	m.SetValidating(true)
	defer m.SetValidating(false)
	for _, array := range r.arrays.arrays {
		entries, err := r.arrays.arrayEntries(m, array)
		if err != nil {
			return nil, false, err
		}
		m.setArray(array, entries)
	}

	ok, err := m.Holds(r.original)
	if err != nil {
		return nil, false, err
	} else if !ok {
		r.undefined = m.UndefinedDivisions()
	}
	return m, ok, nil
}

// strengthen returns axioms violated by m. Congruence axioms between reads
// come first, then write definitions.
func (r *refinement) strengthen(m *Model) ([]*Term, error) {
	if !r.config.ArrayRefinement() {
		return nil, nil
	}

	m.SetValidating(true)
	defer m.SetValidating(false)

	axioms, err := r.arrays.ReadAxioms(m)
	if err != nil {
		return nil, err
	} else if len(axioms) > 0 || r.config.ArrayMode != ArrayModeAbstract {
		return axioms, nil
	}
	return r.arrays.WriteAxioms(m)
}
