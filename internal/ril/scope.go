package ril

import "strings"

// ScopeSep separates the segments of a qualified identifier.
const ScopeSep = "::"

// Scope is the stack of namespaces a compiled statement lives in.
type Scope []string

// Push returns a new scope with seg appended; s is not modified.
func (s Scope) Push(seg string) Scope {
	out := make(Scope, len(s), len(s)+1)
	copy(out, s)
	return append(out, seg)
}

// Pop drops the innermost segment.
func (s Scope) Pop() Scope {
	if len(s) == 0 {
		return s
	}
	return s[:len(s)-1]
}

// Qualify returns the identifier of name declared in this scope.
func (s Scope) Qualify(name string) string {
	if len(s) == 0 {
		return name
	}
	return strings.Join(s, ScopeSep) + ScopeSep + name
}

func (s Scope) String() string { return strings.Join(s, ScopeSep) }

// Candidates lists the identifiers a qualified reference may resolve to,
// most specific first: the reference itself, then repeatedly with the
// segment just before the name removed, down to the bare name.
//
//	a::b::x -> a::b::x, a::x, x
func Candidates(id string) []string {
	segs := strings.Split(id, ScopeSep)
	out := []string{id}
	for len(segs) > 1 {
		segs = append(segs[:len(segs)-2], segs[len(segs)-1])
		out = append(out, strings.Join(segs, ScopeSep))
	}
	return out
}

// Env is an immutable chain of bindings. The nil *Env is empty.
type Env[T any] struct {
	id   string
	val  T
	next *Env[T]
}

// Bind returns a new environment where id is bound to v.
func (e *Env[T]) Bind(id string, v T) *Env[T] {
	return &Env[T]{id: id, val: v, next: e}
}

func (e *Env[T]) get(id string) (T, bool) {
	for n := e; n != nil; n = n.next {
		if n.id == id {
			return n.val, true
		}
	}
	var zero T
	return zero, false
}

// Lookup resolves a qualified reference following Candidates.
func (e *Env[T]) Lookup(id string) (T, bool) {
	for _, key := range Candidates(id) {
		if v, ok := e.get(key); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
