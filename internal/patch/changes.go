// Package patch turns solver models into source edits.
//
// A model is first reduced to a list of changes, one per affected label:
// a deleted attribute, a rewritten literal, or a sketched attribute that
// must be added. Apply renders the changes as byte edits of the original
// text in the dialect's own spelling, and Update brings the AST in line
// with the patched text.
package patch

import (
	"fmt"
	"maps"
	"slices"

	"github.com/sr-lab/GLITCH-sub000/api"
	"github.com/sr-lab/GLITCH-sub000/internal/label"
	"github.com/sr-lab/GLITCH-sub000/internal/ril"
	"github.com/sr-lab/GLITCH-sub000/internal/solver"
	"github.com/sr-lab/GLITCH-sub000/internal/state"
	"github.com/sr-lab/GLITCH-sub000/internal/tech"
)

// Kind classifies a change.
type Kind int

const (
	Delete Kind = iota
	Modify
	AddSketch
)

func (k Kind) String() string {
	switch k {
	case Delete:
		return "delete"
	case Modify:
		return "modify"
	case AddSketch:
		return "add"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Change is one source-level modification.
type Change struct {
	Kind    Kind
	Label   ril.Label
	Element any             // *api.Attribute, *api.Variable or *label.Sketch
	Unit    *api.AtomicUnit // resource owning the element, if any
	Key     string          // source spelling of the attribute or variable
	Value   string          // new value in source vocabulary
	Spec    *tech.AttrSpec  // nil outside resource checklists
}

func (c Change) String() string {
	switch c.Kind {
	case Delete:
		return fmt.Sprintf("delete %s", c.Key)
	case AddSketch:
		return fmt.Sprintf("add %s = %q", c.Key, c.Value)
	}
	return fmt.Sprintf("set %s = %q", c.Key, c.Value)
}

// Changes derives the changes a model asks for, in label order.
//
// A changed label becomes a Modify, or an AddSketch for sketches. A real
// element whose hole is undefined is deleted, and so is one that was kept
// but now evaluates to undefined where it did not before.
func Changes(m *solver.Model, ls *label.Script) ([]Change, error) {
	p, err := tech.For(ls.Tech)
	if err != nil {
		return nil, fmt.Errorf("derive changes: %w", err)
	}
	var out []Change
	for _, l := range slices.Sorted(maps.Keys(m.Unchanged)) {
		el, ok := ls.Element(l)
		if !ok {
			continue
		}
		sketch := label.IsSketch(l)
		var c Change
		switch {
		case !m.Unchanged[l]:
			hole := m.Holes[l]
			switch {
			case sketch && hole == state.Undefined:
				continue
			case sketch:
				c.Kind = AddSketch
			case hole == state.Undefined:
				c.Kind = Delete
			default:
				c.Kind = Modify
			}
			c.Value = hole
		case !sketch && becameUndefined(m, l):
			c.Kind = Delete
		default:
			continue
		}
		c.Label = l
		c.Element = el
		c.Unit, _ = ls.Unit(el)
		describe(&c, p)
		out = append(out, c)
	}
	return out, nil
}

func becameUndefined(m *solver.Model, l ril.Label) bool {
	v, ok := m.Values[l]
	orig, ok2 := m.Originals[l]
	return ok && ok2 && v == state.Undefined && orig != state.Undefined
}

// describe fills in the source key and reverses the value into the
// dialect's vocabulary.
func describe(c *Change, p *tech.Profile) {
	var res *tech.ResourceSpec
	if c.Unit != nil {
		res, _ = p.Resource(c.Unit.Type)
	}
	switch el := c.Element.(type) {
	case *api.Attribute:
		c.Key = el.Name
		if res != nil {
			c.Spec, _ = res.AttrByKey(el.Name)
		}
	case *api.Variable:
		c.Key = el.Name
	case *label.Sketch:
		c.Key = el.Name
		if res != nil {
			if spec, ok := res.AttrByName(el.Name); ok {
				c.Spec = spec
				c.Key = spec.Key()
			}
		}
	}
	if c.Spec != nil && c.Kind != Delete {
		c.Value = c.Spec.Denormalize(c.Value)
	}
}
