// Package label numbers every repairable literal of a script and keeps the
// structural links needed to route a repaired value back to its source.
package label

import (
	"maps"
	"slices"

	"github.com/sr-lab/GLITCH-sub000/api"
	"github.com/sr-lab/GLITCH-sub000/internal/ril"
)

// Sketch is a placeholder for an attribute a resource does not declare.
// Patches may materialize it as a new source line.
type Sketch struct {
	Unit *api.AtomicUnit
	Name string // RIL attribute name
}

type sketchKey struct {
	unit *api.AtomicUnit
	name string
}

// Script is a labeled script. Code elements are the AST pointers
// (*api.Attribute, *api.Variable, *api.AtomicUnit, ...) and *Sketch.
type Script struct {
	*api.Script

	labels      map[ril.Label]any
	elements    map[any]ril.Label
	locations   map[any]any
	definitions map[string]*api.UnitBlock
	sketches    map[sketchKey]ril.Label
	next        ril.Label
	nextSketch  ril.Label
}

// Label walks the script and assigns labels in source order: block
// parameters, variables, resource attributes, conditionals (body then
// else) and nested blocks. Labeling the same AST twice gives the same result.
func Label(s *api.Script) *Script {
	ls := &Script{
		Script:      s,
		labels:      map[ril.Label]any{},
		elements:    map[any]ril.Label{},
		locations:   map[any]any{},
		definitions: map[string]*api.UnitBlock{},
		sketches:    map[sketchKey]ril.Label{},
	}
	if s.Block != nil {
		ls.block(s.Block)
	}
	return ls
}

func (ls *Script) add(el any, value api.Expr, parent any) {
	ls.next++
	ls.labels[ls.next] = el
	ls.elements[el] = ls.next
	ls.locations[el] = parent
	if value != nil {
		ls.locations[value] = el
	}
}

func (ls *Script) block(b *api.UnitBlock) {
	for _, a := range b.Attributes {
		ls.add(a, a.Value, b)
	}
	ls.body(&b.Body, b)
	for _, child := range b.UnitBlocks {
		ls.locations[child] = b
		if child.Kind == api.BlockDefinition {
			ls.definitions[child.Name] = child
		}
		ls.block(child)
	}
}

func (ls *Script) body(body *api.Body, owner any) {
	for _, v := range body.Variables {
		ls.add(v, v.Value, owner)
	}
	for _, u := range body.AtomicUnits {
		ls.locations[u] = owner
		for _, a := range u.Attributes {
			ls.add(a, a.Value, u)
		}
	}
	for _, c := range body.Conditionals {
		ls.conditional(c, owner)
	}
}

func (ls *Script) conditional(c *api.Conditional, owner any) {
	ls.locations[c] = owner
	ls.body(&c.Body, c)
	if c.Else != nil {
		ls.conditional(c.Else, c)
	}
}

// LabelOf returns the label of a code element.
func (ls *Script) LabelOf(el any) (ril.Label, bool) {
	l, ok := ls.elements[el]
	return l, ok
}

// Element returns the code element a label stands for.
func (ls *Script) Element(l ril.Label) (any, bool) {
	el, ok := ls.labels[l]
	return el, ok
}

// Location returns the syntactic parent of a code element.
func (ls *Script) Location(el any) (any, bool) {
	p, ok := ls.locations[el]
	return p, ok
}

// Unit walks up the location map to the resource owning el, if any.
func (ls *Script) Unit(el any) (*api.AtomicUnit, bool) {
	for el != nil {
		if u, ok := el.(*api.AtomicUnit); ok {
			return u, true
		}
		if sk, ok := el.(*Sketch); ok {
			return sk.Unit, true
		}
		el = ls.locations[el]
	}
	return nil, false
}

// Definition returns the script-local defined type named typ.
func (ls *Script) Definition(typ string) (*api.UnitBlock, bool) {
	d, ok := ls.definitions[typ]
	return d, ok
}

// Sketch returns the label of the placeholder for attribute name of unit,
// creating it on first use. Sketch labels are negative.
func (ls *Script) Sketch(unit *api.AtomicUnit, name string) ril.Label {
	key := sketchKey{unit: unit, name: name}
	if l, ok := ls.sketches[key]; ok {
		return l
	}
	ls.nextSketch--
	sk := &Sketch{Unit: unit, Name: name}
	ls.sketches[key] = ls.nextSketch
	ls.labels[ls.nextSketch] = sk
	ls.elements[sk] = ls.nextSketch
	ls.locations[sk] = unit
	return ls.nextSketch
}

// Labels returns every label, sketches included, sorted.
func (ls *Script) Labels() []ril.Label {
	return slices.Sorted(maps.Keys(ls.labels))
}

// IsSketch reports whether l was synthesized for an absent attribute.
func IsSketch(l ril.Label) bool { return l < 0 }
