package compiler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sr-lab/GLITCH-sub000/internal/label"
	"github.com/sr-lab/GLITCH-sub000/internal/ril"
	"github.com/sr-lab/GLITCH-sub000/internal/tech"
)

// compileCtx holds everything one Compile call mutates. Counters start
// from zero on every call so that compiling the same labeled script twice
// produces the same program.
type compileCtx struct {
	ls      *label.Script
	profile *tech.Profile
	log     zerolog.Logger

	scope     ril.Scope
	instances map[string]int
	blocks    map[string]int
	branches  int
	expanding map[string]bool
}

func newCompileCtx(ls *label.Script, p *tech.Profile, log zerolog.Logger) *compileCtx {
	return &compileCtx{
		ls:        ls,
		profile:   p,
		log:       log,
		instances: map[string]int{},
		blocks:    map[string]int{},
		expanding: map[string]bool{},
	}
}

// instanceScope returns the next scope segment for an instance of a
// defined type: type#1, type#2, ...
func (c *compileCtx) instanceScope(typ string) string {
	c.instances[typ]++
	return fmt.Sprintf("%s#%d", typ, c.instances[typ])
}

func (c *compileCtx) blockScope(kind string) string {
	c.blocks[kind]++
	return fmt.Sprintf("%s#%d", kind, c.blocks[kind])
}

// branch returns a fresh opaque predicate and the scope suffix of the
// branch it guards.
func (c *compileCtx) branch() (ril.Ref, int) {
	c.branches++
	return ril.Ref{ID: fmt.Sprintf("?if#%d", c.branches)}, c.branches
}

// enter pushes seg and returns a function restoring the previous scope.
func (c *compileCtx) enter(seg string) func() {
	prev := c.scope
	c.scope = c.scope.Push(seg)
	return func() { c.scope = prev }
}
