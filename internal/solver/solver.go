// Package solver synthesizes repairs: it finds the assignments of label
// decisions that make a RIL program reproduce an observed system state
// while changing as few literals as possible.
//
// Every label either keeps its literal or takes a hole value drawn from a
// finite string domain. The program is executed symbolically into one
// term per written attribute; observed values constrain those terms. A
// branch-and-bound search with a binary search on the number of changed
// labels finds the optimum, then every tied optimal model is enumerated.
package solver

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"

	"github.com/sr-lab/GLITCH-sub000/internal/log"
	"github.com/sr-lab/GLITCH-sub000/internal/ril"
	"github.com/sr-lab/GLITCH-sub000/internal/state"
)

var (
	// ErrTimeout is returned when the search was interrupted before any
	// model was found.
	ErrTimeout = errors.New("solver: timed out before finding a repair")
	// ErrUnsat is returned when no assignment reproduces the observed state.
	ErrUnsat = errors.New("solver: no repair reproduces the observed state")
)

// DefaultMaxModels caps the number of tied optimal models returned.
const DefaultMaxModels = 10

// Config tunes a Solver.
type Config struct {
	// Timeout bounds one Solve call; zero leaves it to the context.
	Timeout time.Duration
	// MaxModels caps the models returned; zero means DefaultMaxModels.
	MaxModels int
}

// Solver computes minimal repairs.
type Solver struct {
	cfg Config
	log zerolog.Logger
}

// New returns a solver.
func New(cfg Config) *Solver {
	if cfg.MaxModels <= 0 {
		cfg.MaxModels = DefaultMaxModels
	}
	return &Solver{cfg: cfg, log: log.WithComponent("solver")}
}

// Model is one repair.
type Model struct {
	// Unchanged reports, for every label of the program, whether its
	// literal is kept.
	Unchanged map[ril.Label]bool
	// Holes holds the new value of every changed label.
	Holes map[ril.Label]string
	// Values is the value each label's literal evaluates to in the
	// repaired program; Originals in the original one.
	Values    map[ril.Label]string
	Originals map[ril.Label]string
	// Vars is the repaired value of every let-bound identifier.
	Vars map[string]string
	// Branches records the branch taken at each conditional the repair
	// depends on.
	Branches map[string]bool
}

// Changed returns the number of changed labels.
func (m *Model) Changed() int {
	n := 0
	for _, kept := range m.Unchanged {
		if !kept {
			n++
		}
	}
	return n
}

// Solve returns the optimal repairs of prog against sys, ranked in search
// order. When the context ends before the optimum is proven, the best
// models found so far are returned with no error; if there are none the
// error is ErrTimeout.
func (s *Solver) Solve(ctx context.Context, prog ril.Stmt, sys state.System) ([]*Model, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	if ctx.Err() != nil {
		return nil, ErrTimeout
	}
	start := time.Now()

	p := newProblem()
	p.symexec(prog)
	p.constrain(sys)
	dom := buildDomain(prog, sys)
	srch := s.prepare(ctx, p, dom)

	s.log.Debug().
		Int("constraints", len(p.cons)).
		Int("labels", len(srch.order)).
		Int("branches", len(srch.border)).
		Int(log.FieldDomain, len(dom.values)).
		Msg("search prepared")

	var best *Model
	first := func(budget int) (*Model, error) {
		var found *Model
		err := srch.run(budget, func(x *search) bool {
			found = s.model(prog, p, x)
			return false
		})
		if found != nil {
			best = found
		}
		return found, err
	}

	// feasibility with every label free; then shrink the budget
	m, err := first(len(srch.order))
	if err != nil {
		return s.partial(best, err)
	}
	if m == nil {
		return nil, ErrUnsat
	}
	lo, hi := 0, m.Changed()
	for lo < hi {
		mid := (lo + hi) / 2
		m, err := first(mid)
		if err != nil {
			return s.partial(best, err)
		}
		if m != nil {
			hi = m.Changed()
		} else {
			lo = mid + 1
		}
	}

	var models []*Model
	seen := map[string]bool{}
	err = srch.run(hi, func(x *search) bool {
		key := x.key()
		if seen[key] {
			return true
		}
		seen[key] = true
		models = append(models, s.model(prog, p, x))
		return len(models) < s.cfg.MaxModels
	})
	if err != nil && len(models) == 0 {
		return s.partial(best, err)
	}

	s.log.Debug().
		Int(log.FieldModels, len(models)).
		Int(log.FieldChanges, hi).
		Dur(log.FieldDuration, time.Since(start)).
		Msg("solved")
	return models, nil
}

func (s *Solver) partial(best *Model, err error) ([]*Model, error) {
	if best != nil {
		s.log.Warn().Err(err).Msg("search interrupted, returning best repair found")
		return []*Model{best}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
}

// prepare fixes irrelevant labels, computes candidate sets and orders the
// decision variables.
func (s *Solver) prepare(ctx context.Context, p *problem, dom *domain) *search {
	relevant, direct, observed := p.usage()

	cand := make([]*roaring.Bitmap, len(p.labels))
	var order []int
	seen := map[int]bool{}
	for _, c := range p.cons {
		visit(c.t, func(n node) {
			l, ok := n.(*labelNode)
			if !ok || seen[l.idx] {
				return
			}
			seen[l.idx] = true
			if p.fixed[l.idx] || !relevant[l.idx] {
				return
			}
			order = append(order, l.idx)
		})
	}
	for _, i := range order {
		if direct[i] {
			cand[i] = dom.set(observed[i])
		} else {
			cand[i] = dom.all()
		}
		if v, ok := ground(p.inner[i]); ok {
			if id, ok := dom.id(v.String()); ok {
				cand[i].Remove(id)
			}
		}
	}

	branchSeen := map[int]bool{}
	var border []int
	addBranch := func(b int) {
		if !branchSeen[b] {
			branchSeen[b] = true
			border = append(border, b)
		}
	}
	for _, c := range p.cons {
		visit(c.t, func(n node) {
			if ite, ok := n.(*iteNode); ok {
				addBranch(ite.b)
			}
		})
	}
	for _, i := range order {
		for _, guard := range p.contexts[i] {
			for _, l := range guard {
				addBranch(l.b)
			}
		}
	}
	slices.Sort(border)
	return newSearch(ctx, p, dom, cand, border, order)
}

// model reads the current assignment of x.
func (s *Solver) model(prog ril.Stmt, p *problem, x *search) *Model {
	m := &Model{
		Unchanged: map[ril.Label]bool{},
		Holes:     map[ril.Label]string{},
		Values:    map[ril.Label]string{},
		Originals: map[ril.Label]string{},
		Vars:      map[string]string{},
		Branches:  map[string]bool{},
	}
	for _, l := range ril.Labels(prog) {
		m.Unchanged[l] = true
	}
	for i, l := range p.labels {
		if x.st[i] == change {
			m.Unchanged[l] = false
			m.Holes[l] = x.dom.value(x.hole[i])
		}
		if v, ok := x.eval(&labelNode{idx: i, inner: p.inner[i]}); ok {
			m.Values[l] = v.String()
		}
	}

	// originals: the same branches, every label kept
	saved := slices.Clone(x.st)
	for i := range x.st {
		x.st[i] = keep
	}
	for i, l := range p.labels {
		if v, ok := x.eval(p.inner[i]); ok {
			m.Originals[l] = v.String()
		}
	}
	copy(x.st, saved)

	for _, id := range slices.Sorted(maps.Keys(p.vars)) {
		if v, ok := x.eval(p.vars[id]); ok {
			m.Vars[id] = v.String()
		}
	}
	for _, b := range x.border {
		if x.br[b] != undecided {
			m.Branches[p.branches[b]] = x.br[b] == 1
		}
	}
	return m
}
