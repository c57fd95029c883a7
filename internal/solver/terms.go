package solver

import (
	"fmt"
	"maps"
	"slices"

	"github.com/sr-lab/GLITCH-sub000/internal/ril"
	"github.com/sr-lab/GLITCH-sub000/internal/state"
)

// node is a symbolic value. Nodes are pointers so that an attribute left
// untouched by both sides of a conditional keeps its identity at the join.
type node interface{ isNode() }

type constNode struct{ v ril.Value }

// labelNode is a repairable literal: inner when the label is unchanged,
// its hole otherwise.
type labelNode struct {
	idx   int
	inner node
}

type opNode struct {
	op   ril.BinOp
	l, r node
}

type notNode struct{ x node }

// iteNode selects between two values on an opaque branch variable.
type iteNode struct {
	b         int
	then, els node
}

func (*constNode) isNode() {}
func (*labelNode) isNode() {}
func (*opNode) isNode()    {}
func (*notNode) isNode()   {}
func (*iteNode) isNode()   {}

var undefNode = &constNode{v: ril.UndefValue}

// lit is one branch decision of a path condition.
type lit struct {
	b int
	v bool
}

type store map[string]map[string]node

func (s store) clone() store {
	out := make(store, len(s))
	for p, rec := range s {
		out[p] = maps.Clone(rec)
	}
	return out
}

func (s store) set(path, attr string, n node) {
	rec, ok := s[path]
	if !ok {
		rec = map[string]node{}
		s[path] = rec
	}
	rec[attr] = n
}

// constraint requires the value of attr at path to render as want.
type constraint struct {
	path, attr string
	t          node
	want       string
}

// problem is the symbolic form of one program against one observed state.
type problem struct {
	labels   []ril.Label
	labelIdx map[ril.Label]int
	inner    []node    // first occurrence of each label
	contexts [][][]lit // path conditions each label occurs under
	fixed    []bool    // labels that must stay unchanged

	branches  []string
	branchIdx map[string]int

	vars  map[string]node
	store store
	cons  []constraint
}

func newProblem() *problem {
	return &problem{
		labelIdx:  map[ril.Label]int{},
		branchIdx: map[string]int{},
		vars:      map[string]node{},
		store:     store{},
	}
}

func (p *problem) label(l ril.Label) int {
	if i, ok := p.labelIdx[l]; ok {
		return i
	}
	i := len(p.labels)
	p.labelIdx[l] = i
	p.labels = append(p.labels, l)
	p.inner = append(p.inner, nil)
	p.contexts = append(p.contexts, nil)
	p.fixed = append(p.fixed, false)
	return i
}

func (p *problem) branch(id string) int {
	if i, ok := p.branchIdx[id]; ok {
		return i
	}
	i := len(p.branches)
	p.branchIdx[id] = i
	p.branches = append(p.branches, id)
	return i
}

// symexec runs the program symbolically, merging the two sides of every
// conditional whose predicate is not a concrete boolean.
func (p *problem) symexec(prog ril.Stmt) {
	p.store = p.stmt(prog, nil, nil, p.store)
}

func (p *problem) stmt(s ril.Stmt, env *ril.Env[node], guard []lit, st store) store {
	switch s := s.(type) {
	case ril.Attr:
		path, ok := p.path(s.Path, env, guard)
		if !ok {
			return st
		}
		st.set(path, s.Name, p.expr(s.Value, env, guard))
	case ril.Cp:
		src, ok1 := p.path(s.Src, env, guard)
		dst, ok2 := p.path(s.Dst, env, guard)
		if !ok1 || !ok2 {
			return st
		}
		for _, attr := range slices.Sorted(maps.Keys(st[src])) {
			st.set(dst, attr, st[src][attr])
		}
	case ril.Seq:
		return p.stmt(s.R, env, guard, p.stmt(s.L, env, guard, st))
	case ril.Let:
		v := p.expr(s.Value, env, guard)
		if _, seen := p.vars[s.ID]; !seen {
			p.vars[s.ID] = v
		}
		return p.stmt(s.Body, env.Bind(s.ID, v), guard, st)
	case ril.If:
		pred := p.expr(s.Pred, env, guard)
		if v, ok := ground(pred); ok {
			if b, ok := v.Truth(); ok {
				if b {
					return p.stmt(s.Cons, env, guard, st)
				}
				return p.stmt(s.Alt, env, guard, st)
			}
		}
		b := p.branch(branchID(s.Pred, len(p.branches)))
		cons := p.stmt(s.Cons, env, extend(guard, lit{b, true}), st.clone())
		alt := p.stmt(s.Alt, env, extend(guard, lit{b, false}), st)
		return merge(b, cons, alt)
	}
	return st
}

func branchID(pred ril.Expr, n int) string {
	if r, ok := pred.(ril.Ref); ok {
		return r.ID
	}
	return fmt.Sprintf("?%s#%d", pred, n)
}

func extend(guard []lit, l lit) []lit {
	out := make([]lit, len(guard), len(guard)+1)
	copy(out, guard)
	return append(out, l)
}

func merge(b int, cons, alt store) store {
	out := store{}
	for _, path := range slices.Sorted(maps.Keys(cons)) {
		for attr, t := range cons[path] {
			e, ok := alt[path][attr]
			if !ok {
				e = undefNode
			}
			if e == t {
				out.set(path, attr, t)
				continue
			}
			out.set(path, attr, &iteNode{b: b, then: t, els: e})
		}
	}
	for _, path := range slices.Sorted(maps.Keys(alt)) {
		for attr, e := range alt[path] {
			if _, ok := cons[path][attr]; ok {
				continue
			}
			out.set(path, attr, &iteNode{b: b, then: undefNode, els: e})
		}
	}
	return out
}

// path evaluates a target with every label at its original value. Labels
// occurring in targets are never repaired.
func (p *problem) path(e ril.Expr, env *ril.Env[node], guard []lit) (string, bool) {
	n := p.expr(e, env, guard)
	v, ok := ground(n)
	if !ok || !v.Concrete() {
		return "", false
	}
	visit(n, func(x node) {
		if l, ok := x.(*labelNode); ok {
			p.fixed[l.idx] = true
		}
	})
	return v.String(), true
}

func (p *problem) expr(e ril.Expr, env *ril.Env[node], guard []lit) node {
	switch e := e.(type) {
	case ril.Undef:
		return undefNode
	case ril.Unsupported:
		return &constNode{v: ril.UnsupportedValue}
	case ril.Const:
		return &constNode{v: e.V}
	case ril.Ref:
		if v, ok := env.Lookup(e.ID); ok {
			return v
		}
		return undefNode
	case ril.Labeled:
		i := p.label(e.Label)
		inner := p.expr(e.X, env, guard)
		if p.inner[i] == nil {
			p.inner[i] = inner
		}
		p.contexts[i] = append(p.contexts[i], slices.Clone(guard))
		return &labelNode{idx: i, inner: inner}
	case ril.Unary:
		return &notNode{x: p.expr(e.X, env, guard)}
	case ril.Binary:
		return &opNode{op: e.Op, l: p.expr(e.L, env, guard), r: p.expr(e.R, env, guard)}
	}
	return &constNode{v: ril.UnsupportedValue}
}

// ground evaluates a node with every label unchanged. It fails on
// conditional values.
func ground(n node) (ril.Value, bool) {
	switch n := n.(type) {
	case *constNode:
		return n.v, true
	case *labelNode:
		return ground(n.inner)
	case *notNode:
		v, ok := ground(n.x)
		return ril.Negate(v), ok
	case *opNode:
		l, ok1 := ground(n.l)
		r, ok2 := ground(n.r)
		return ril.Apply(n.op, l, r), ok1 && ok2
	}
	return ril.UndefValue, false
}

func visit(n node, fn func(node)) {
	fn(n)
	switch n := n.(type) {
	case *labelNode:
		visit(n.inner, fn)
	case *notNode:
		visit(n.x, fn)
	case *opNode:
		visit(n.l, fn)
		visit(n.r, fn)
	case *iteNode:
		visit(n.then, fn)
		visit(n.els, fn)
	}
}

// constrain binds every attribute the program writes at a path the
// observed state describes to the observed value.
func (p *problem) constrain(sys state.System) {
	for _, path := range slices.Sorted(maps.Keys(p.store)) {
		rec, ok := sys[path]
		if !ok {
			continue
		}
		for _, attr := range slices.Sorted(maps.Keys(p.store[path])) {
			want, ok := rec[attr]
			if !ok {
				continue
			}
			p.cons = append(p.cons, constraint{path: path, attr: attr, t: p.store[path][attr], want: want})
		}
	}
}

// usage classifies the labels reachable from the constraints. direct
// labels only ever stand for a whole attribute value; their holes can be
// restricted to the observed values they are compared with.
func (p *problem) usage() (relevant []bool, direct []bool, observed []map[string]bool) {
	relevant = make([]bool, len(p.labels))
	direct = make([]bool, len(p.labels))
	observed = make([]map[string]bool, len(p.labels))
	for i := range direct {
		direct[i] = true
	}
	var walk func(n node, top bool, want string)
	walk = func(n node, top bool, want string) {
		switch n := n.(type) {
		case *labelNode:
			relevant[n.idx] = true
			if !top {
				direct[n.idx] = false
			} else {
				if observed[n.idx] == nil {
					observed[n.idx] = map[string]bool{}
				}
				observed[n.idx][want] = true
			}
			walk(n.inner, top, want)
		case *iteNode:
			walk(n.then, top, want)
			walk(n.els, top, want)
		case *notNode:
			walk(n.x, false, want)
		case *opNode:
			walk(n.l, false, want)
			walk(n.r, false, want)
		}
	}
	for _, c := range p.cons {
		walk(c.t, true, c.want)
	}
	return relevant, direct, observed
}
