package bvsolve

import (
	"context"
	"time"

	"github.com/benbjohnson/immutable"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Solver represents a SAT backend over blasted formulas. Formulas may be
// added between calls to Solve.
type Solver interface {
	// Assert adds an array-free formula.
	Assert(f *Term) error

	// Solve returns true and a bit assignment for every symbol asserted so
	// far if the asserted formulas are satisfiable.
	Solve(ctx context.Context) (satisfiable bool, assignment Assignment, err error)
}

// Status is the outcome of a query.
type Status int

const (
	// Valid means the query holds in every model of the assertions.
	Valid Status = iota + 1

	// Invalid means some model of the assertions falsifies the query.
	Invalid
)

// String returns the lower case name of the status.
func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Result is the outcome of a query. Model is only set for Invalid results.
type Result struct {
	Status Status
	Model  *Model
	Stats  Stats
}

// Stats holds counters for one or more queries.
type Stats struct {
	QueryN      int
	SolveN      int
	SolveTime   time.Duration
	RefinementN int
	AxiomN      int
	EliminatedN int
}

// Add returns the sum of s and other.
func (s Stats) Add(other Stats) Stats {
	return Stats{
		QueryN:      s.QueryN + other.QueryN,
		SolveN:      s.SolveN + other.SolveN,
		SolveTime:   s.SolveTime + other.SolveTime,
		RefinementN: s.RefinementN + other.RefinementN,
		AxiomN:      s.AxiomN + other.AxiomN,
		EliminatedN: s.EliminatedN + other.EliminatedN,
	}
}

// Context is a stack of assertion sets against which queries are checked.
//
// A context is not safe for concurrent use.
type Context struct {
	store  *Store
	config Config

	assertions *immutable.List // *Term
	subst      *Substitution   // facts recorded from assertions
	frames     []frame

	stats Stats

	// Returns a fresh SAT backend for each query. Must be set before Query.
	NewSolver func() Solver

	Logger logrus.FieldLogger
}

// frame is the state saved by Push.
type frame struct {
	assertions *immutable.List
	subst      *Substitution
}

// NewContext returns a new context over store.
func NewContext(store *Store, config Config) *Context {
	return &Context{
		store:      store,
		config:     config,
		assertions: immutable.NewList(),
		subst:      NewSubstitution(),
		Logger:     logrus.StandardLogger(),
	}
}

// Store returns the term store of the context.
func (c *Context) Store() *Store { return c.store }

// Config returns the configuration of the context.
func (c *Context) Config() Config { return c.config }

// Stats returns counters accumulated over every query.
func (c *Context) Stats() Stats { return c.stats }

// Depth returns the number of pushed assertion sets.
func (c *Context) Depth() int { return len(c.frames) }

// Assertions returns the current assertions, oldest first.
func (c *Context) Assertions() []*Term {
	a := make([]*Term, 0, c.assertions.Len())
	for i := 0; i < c.assertions.Len(); i++ {
		a = append(a, c.assertions.Get(i).(*Term))
	}
	return a
}

// Push starts a new assertion set.
func (c *Context) Push() {
	c.frames = append(c.frames, frame{assertions: c.assertions, subst: c.subst.Clone()})
}

// Pop discards the most recent assertion set along with the facts recorded from it.
func (c *Context) Pop() error {
	if len(c.frames) == 0 {
		return errors.New("pop: context stack is empty")
	}
	fr := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	c.assertions = fr.assertions
	c.subst.restore(fr.subst)
	return nil
}

// Assert adds the formula f to the current assertion set.
func (c *Context) Assert(f *Term) {
	assert(f.IsBool(), "assert: non-formula %s", f)
	c.assertions = c.assertions.Append(f)

	if c.config.Simplify {
		simp := NewSimplifier(c.store, c.subst)
		simp.BuildSubstitution(simp.Formula(f))
	}
}

// Query checks whether q holds in every model of the current assertions.
func (c *Context) Query(ctx context.Context, q *Term) (*Result, error) {
	assert(q.IsBool(), "query: non-formula %s", q)
	assert(c.NewSolver != nil, "query: no solver")

	r := &refinement{
		Context: c,
		logger:  c.Logger.WithField("query", c.stats.QueryN+1),
	}
	result, err := r.run(ctx, q)
	r.stats.QueryN++
	c.stats = c.stats.Add(r.stats)
	if err != nil {
		return nil, err
	}
	result.Stats = r.stats
	return result, nil
}
