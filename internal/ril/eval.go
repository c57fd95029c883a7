package ril

import (
	"slices"

	"github.com/sr-lab/GLITCH-sub000/internal/state"
)

// Eval reduces an expression under env to its normal form. References that
// do not resolve are undefined.
func Eval(e Expr, env *Env[Value]) Value {
	switch e := e.(type) {
	case Undef:
		return UndefValue
	case Unsupported:
		return UnsupportedValue
	case Const:
		return e.V
	case Ref:
		if v, ok := env.Lookup(e.ID); ok {
			return v
		}
		return UndefValue
	case Labeled:
		return Eval(e.X, env)
	case Unary:
		return Negate(Eval(e.X, env))
	case Binary:
		return Apply(e.Op, Eval(e.L, env), Eval(e.R, env))
	}
	return UnsupportedValue
}

// ToFilesystem runs the program on an empty state.
func ToFilesystem(s Stmt) []state.System {
	return Run(s, state.System{})
}

// Run applies the program to a copy of init. Conditionals whose predicate
// is not a concrete boolean fork: every possible resulting state is
// returned, duplicates removed, in branch order (consequent first).
func Run(s Stmt, init state.System) []state.System {
	worlds := run(s, nil, []state.System{init.Clone()})
	out := make([]state.System, 0, len(worlds))
	for _, w := range worlds {
		if !slices.ContainsFunc(out, w.Equal) {
			out = append(out, w)
		}
	}
	return out
}

func run(s Stmt, env *Env[Value], worlds []state.System) []state.System {
	switch s := s.(type) {
	case Skip:
		return worlds
	case Attr:
		path := Eval(s.Path, env)
		if !path.Concrete() {
			return worlds
		}
		value := Eval(s.Value, env).String()
		for _, w := range worlds {
			w.Set(path.String(), s.Name, value)
		}
		return worlds
	case Cp:
		src, dst := Eval(s.Src, env), Eval(s.Dst, env)
		if !src.Concrete() || !dst.Concrete() {
			return worlds
		}
		for _, w := range worlds {
			for attr, v := range w[src.String()] {
				w.Set(dst.String(), attr, v)
			}
		}
		return worlds
	case Seq:
		return run(s.R, env, run(s.L, env, worlds))
	case Let:
		return run(s.Body, env.Bind(s.ID, Eval(s.Value, env)), worlds)
	case If:
		if b, ok := Eval(s.Pred, env).Truth(); ok {
			if b {
				return run(s.Cons, env, worlds)
			}
			return run(s.Alt, env, worlds)
		}
		forked := make([]state.System, len(worlds))
		for i, w := range worlds {
			forked[i] = w.Clone()
		}
		cons := run(s.Cons, env, forked)
		alt := run(s.Alt, env, worlds)
		return append(cons, alt...)
	}
	return worlds
}

// Labels returns every label reachable in the program, sorted.
func Labels(s Stmt) []Label {
	seen := map[Label]bool{}
	Walk(s, func(e Expr) {
		if l, ok := e.(Labeled); ok {
			seen[l.Label] = true
		}
	})
	out := make([]Label, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// Walk calls fn on every expression of the program, outermost first.
func Walk(s Stmt, fn func(Expr)) {
	switch s := s.(type) {
	case Attr:
		walkExpr(s.Path, fn)
		walkExpr(s.Value, fn)
	case Cp:
		walkExpr(s.Src, fn)
		walkExpr(s.Dst, fn)
	case Seq:
		Walk(s.L, fn)
		Walk(s.R, fn)
	case Let:
		walkExpr(s.Value, fn)
		Walk(s.Body, fn)
	case If:
		walkExpr(s.Pred, fn)
		Walk(s.Cons, fn)
		Walk(s.Alt, fn)
	}
}

func walkExpr(e Expr, fn func(Expr)) {
	fn(e)
	switch e := e.(type) {
	case Labeled:
		walkExpr(e.X, fn)
	case Unary:
		walkExpr(e.X, fn)
	case Binary:
		walkExpr(e.L, fn)
		walkExpr(e.R, fn)
	}
}

// Paths returns the concrete paths the program may touch, sorted.
func Paths(s Stmt) []string {
	seen := map[string]bool{}
	collectPaths(s, nil, seen)
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func collectPaths(s Stmt, env *Env[Value], seen map[string]bool) {
	add := func(e Expr) {
		if v := Eval(e, env); v.Concrete() {
			seen[v.String()] = true
		}
	}
	switch s := s.(type) {
	case Attr:
		add(s.Path)
	case Cp:
		add(s.Src)
		add(s.Dst)
	case Seq:
		collectPaths(s.L, env, seen)
		collectPaths(s.R, env, seen)
	case Let:
		collectPaths(s.Body, env.Bind(s.ID, Eval(s.Value, env)), seen)
	case If:
		collectPaths(s.Cons, env, seen)
		collectPaths(s.Alt, env, seen)
	}
}

// Minimize keeps only the statements touching one of paths: attribute
// writes to a kept path and copies from or to one. Empty sequences and
// conditionals collapse, and bindings no surviving statement references
// are dropped.
func Minimize(s Stmt, paths []string) Stmt {
	keep := make(map[string]bool, len(paths))
	for _, p := range paths {
		keep[p] = true
	}
	return minimize(s, nil, keep)
}

func minimize(s Stmt, env *Env[Value], keep map[string]bool) Stmt {
	kept := func(e Expr) bool {
		v := Eval(e, env)
		return v.Concrete() && keep[v.String()]
	}
	switch s := s.(type) {
	case Attr:
		if kept(s.Path) {
			return s
		}
		return Skip{}
	case Cp:
		if kept(s.Src) || kept(s.Dst) {
			return s
		}
		return Skip{}
	case Seq:
		return Sequence(minimize(s.L, env, keep), minimize(s.R, env, keep))
	case Let:
		body := minimize(s.Body, env.Bind(s.ID, Eval(s.Value, env)), keep)
		if !References(body, s.ID) {
			return body
		}
		s.Body = body
		return s
	case If:
		cons, alt := minimize(s.Cons, env, keep), minimize(s.Alt, env, keep)
		_, noCons := cons.(Skip)
		_, noAlt := alt.(Skip)
		if noCons && noAlt {
			return Skip{}
		}
		return If{Pred: s.Pred, Cons: cons, Alt: alt}
	}
	return Skip{}
}

// References reports whether any reference in the program may resolve to
// the binding id.
func References(s Stmt, id string) bool {
	found := false
	Walk(s, func(e Expr) {
		if r, ok := e.(Ref); ok && !found {
			found = slices.Contains(Candidates(r.ID), id)
		}
	})
	return found
}
