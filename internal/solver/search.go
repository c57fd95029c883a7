package solver

import (
	"context"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/sr-lab/GLITCH-sub000/internal/ril"
)

const (
	undecided int8 = iota
	keep
	change
)

// checkEvery is how many search nodes pass between cancellation checks.
const checkEvery = 256

// search is one branch-and-bound DFS over branch and label decisions.
// Branch variables are decided first, then labels in the order they are
// first met in the constraints.
type search struct {
	p      *problem
	dom    *domain
	cand   []*roaring.Bitmap
	border []int // branches to decide
	order  []int // labels to decide

	ctx    context.Context
	nodes  int
	budget int
	cost   int

	br   []int8 // branch decisions: undecided, 1 true, -1 false
	st   []int8
	hole []uint32

	// yield receives every complete assignment within budget and reports
	// whether the search should continue.
	yield func(*search) bool
	err   error
}

func newSearch(ctx context.Context, p *problem, dom *domain, cand []*roaring.Bitmap, border, order []int) *search {
	return &search{
		p:      p,
		dom:    dom,
		cand:   cand,
		border: border,
		order:  order,
		ctx:    ctx,
		br:     make([]int8, len(p.branches)),
		st:     make([]int8, len(p.labels)),
		hole:   make([]uint32, len(p.labels)),
	}
}

// reset clears decisions. Branches and labels outside the search order
// take the consequent and stay unchanged.
func (s *search) reset(budget int) {
	for i := range s.br {
		s.br[i] = 1
	}
	for _, b := range s.border {
		s.br[b] = undecided
	}
	for i := range s.st {
		s.st[i] = keep
	}
	for _, i := range s.order {
		s.st[i] = undecided
	}
	s.budget = budget
	s.cost = 0
	s.err = nil
}

func (s *search) run(budget int, yield func(*search) bool) error {
	s.reset(budget)
	s.yield = yield
	s.branchLevel(0)
	return s.err
}

func (s *search) interrupted() bool {
	if s.err != nil {
		return true
	}
	s.nodes++
	if s.nodes%checkEvery == 1 {
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return true
		}
	}
	return false
}

// branchLevel returns false when the search must stop.
func (s *search) branchLevel(i int) bool {
	if s.interrupted() {
		return false
	}
	if i == len(s.border) {
		return s.labelLevel(0)
	}
	b := s.border[i]
	defer func() { s.br[b] = undecided }()
	for _, v := range []int8{1, -1} {
		s.br[b] = v
		if s.consistent() && !s.branchLevel(i+1) {
			return false
		}
	}
	return true
}

func (s *search) labelLevel(k int) bool {
	if s.interrupted() {
		return false
	}
	if k == len(s.order) {
		if !s.complete() {
			return true
		}
		return s.yield(s)
	}
	i := s.order[k]
	defer func() { s.st[i] = undecided }()

	s.st[i] = keep
	if s.consistent() && !s.labelLevel(k+1) {
		return false
	}
	if s.cost >= s.budget || !s.active(i) {
		return true
	}

	s.st[i] = change
	s.cost++
	defer func() { s.cost-- }()
	orig, known := s.eval(s.p.inner[i])
	it := s.cand[i].Iterator()
	for it.HasNext() {
		id := it.Next()
		if known && s.dom.value(id) == orig.String() {
			continue
		}
		s.hole[i] = id
		if s.consistent() && !s.labelLevel(k+1) {
			return false
		}
	}
	return true
}

// active reports whether some occurrence of the label lies on a taken
// branch. Labels only found on untaken branches stay unchanged.
func (s *search) active(i int) bool {
	for _, ctx := range s.p.contexts[i] {
		taken := true
		for _, l := range ctx {
			want := int8(-1)
			if l.v {
				want = 1
			}
			if s.br[l.b] != want {
				taken = false
				break
			}
		}
		if taken {
			return true
		}
	}
	return false
}

// consistent checks every constraint whose value is already determined.
func (s *search) consistent() bool {
	for _, c := range s.p.cons {
		if v, ok := s.eval(c.t); ok && v.String() != c.want {
			return false
		}
	}
	return true
}

// complete requires every constraint to be determined and satisfied and
// every hole to differ from the value it replaces.
func (s *search) complete() bool {
	for _, c := range s.p.cons {
		v, ok := s.eval(c.t)
		if !ok || v.String() != c.want {
			return false
		}
	}
	for _, i := range s.order {
		if s.st[i] != change {
			continue
		}
		if orig, ok := s.eval(s.p.inner[i]); ok && orig.String() == s.dom.value(s.hole[i]) {
			return false
		}
	}
	return true
}

// eval computes a node under the current partial assignment.
func (s *search) eval(n node) (ril.Value, bool) {
	switch n := n.(type) {
	case *constNode:
		return n.v, true
	case *labelNode:
		switch s.st[n.idx] {
		case keep:
			return s.eval(n.inner)
		case change:
			return ril.ValueOf(s.dom.value(s.hole[n.idx])), true
		}
		return ril.Value{}, false
	case *notNode:
		v, ok := s.eval(n.x)
		return ril.Negate(v), ok
	case *opNode:
		l, ok1 := s.eval(n.l)
		r, ok2 := s.eval(n.r)
		if !ok1 || !ok2 {
			return ril.Value{}, false
		}
		return ril.Apply(n.op, l, r), true
	case *iteNode:
		switch s.br[n.b] {
		case 1:
			return s.eval(n.then)
		case -1:
			return s.eval(n.els)
		}
		t, ok1 := s.eval(n.then)
		e, ok2 := s.eval(n.els)
		if ok1 && ok2 && t == e {
			return t, true
		}
	}
	return ril.Value{}, false
}

// key is the projection of the current assignment on label decisions.
func (s *search) key() string {
	var b strings.Builder
	for _, i := range s.order {
		if s.st[i] == change {
			b.WriteString(strconv.Itoa(int(s.p.labels[i])))
			b.WriteByte('=')
			b.WriteString(strconv.FormatUint(uint64(s.hole[i]), 10))
			b.WriteByte(';')
		}
	}
	return b.String()
}
