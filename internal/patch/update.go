package patch

import (
	"slices"

	"github.com/sr-lab/GLITCH-sub000/api"
	"github.com/sr-lab/GLITCH-sub000/internal/label"
	"github.com/sr-lab/GLITCH-sub000/internal/writeback"
)

// Update brings the AST of ls in line with res.Source: every span is moved
// to its place in the patched text, deleted elements are removed, modified
// values are replaced and sketches become real attributes. ls must be
// labeled again afterwards.
func Update(ls *label.Script, changes []Change, res *Result) {
	before, after := newLines(res.original), newLines(res.Source)
	remap := func(p *api.Position) {
		if !p.Valid() {
			return
		}
		s, e := before.span(*p)
		*p = after.pos(shift(res.Edits, s, false), shift(res.Edits, e, true))
	}
	if ls.Block != nil {
		walkBlock(ls.Block, remap)
	}

	for _, pl := range res.placements {
		c := changes[pl.change]
		start := res.starts[pl.edit]
		val := literal(c, after.pos(start+pl.from, start+pl.to))
		switch c.Kind {
		case Modify:
			switch el := c.Element.(type) {
			case *api.Attribute:
				el.Value = val
			case *api.Variable:
				el.Value = val
			}
		case AddSketch:
			c.Unit.Attributes = append(c.Unit.Attributes, &api.Attribute{
				Name:     c.Key,
				Value:    val,
				Position: after.pos(start+pl.key, start+pl.to),
			})
		}
	}

	for _, c := range changes {
		if c.Kind != Delete {
			continue
		}
		parent, _ := ls.Location(c.Element)
		remove(parent, c.Element)
	}
}

// shift moves an offset of the original text past the edits before it.
// A start offset follows insertions made at the same place; an end offset
// stays in front of them.
func shift(edits []writeback.Edit, off int, end bool) int {
	d := 0
	for _, e := range edits {
		switch {
		case e.End < off || (e.End == off && e.Start < off):
			d += len(e.Text) - (e.End - e.Start)
		case e.Start == off && e.End == off && !end:
			d += len(e.Text)
		}
	}
	return off + d
}

func literal(c Change, pos api.Position) api.Expr {
	if c.Spec != nil && c.Spec.Bool && (c.Value == "true" || c.Value == "false") {
		return &api.Boolean{Value: c.Value == "true", Position: pos}
	}
	return &api.String{Value: c.Value, Position: pos}
}

func remove(parent, el any) {
	switch p := parent.(type) {
	case *api.AtomicUnit:
		p.Attributes = slices.DeleteFunc(p.Attributes, func(a *api.Attribute) bool { return a == el })
	case *api.UnitBlock:
		p.Attributes = slices.DeleteFunc(p.Attributes, func(a *api.Attribute) bool { return a == el })
		p.Variables = slices.DeleteFunc(p.Variables, func(v *api.Variable) bool { return v == el })
	case *api.Conditional:
		p.Variables = slices.DeleteFunc(p.Variables, func(v *api.Variable) bool { return v == el })
	}
}

func walkBlock(b *api.UnitBlock, fn func(*api.Position)) {
	fn(&b.Position)
	for _, a := range b.Attributes {
		fn(&a.Position)
		walkExpr(a.Value, fn)
	}
	walkBody(&b.Body, fn)
	for _, child := range b.UnitBlocks {
		walkBlock(child, fn)
	}
}

func walkBody(body *api.Body, fn func(*api.Position)) {
	for _, v := range body.Variables {
		fn(&v.Position)
		walkExpr(v.Value, fn)
	}
	for _, u := range body.AtomicUnits {
		fn(&u.Position)
		walkExpr(u.Name, fn)
		for _, a := range u.Attributes {
			fn(&a.Position)
			walkExpr(a.Value, fn)
		}
	}
	for _, c := range body.Conditionals {
		walkConditional(c, fn)
	}
}

func walkConditional(c *api.Conditional, fn func(*api.Position)) {
	fn(&c.Position)
	walkExpr(c.Condition, fn)
	walkBody(&c.Body, fn)
	if c.Else != nil {
		walkConditional(c.Else, fn)
	}
}

func walkExpr(e api.Expr, fn func(*api.Position)) {
	switch e := e.(type) {
	case *api.String:
		fn(&e.Position)
	case *api.Number:
		fn(&e.Position)
	case *api.Boolean:
		fn(&e.Position)
	case *api.Null:
		fn(&e.Position)
	case *api.VariableReference:
		fn(&e.Position)
	case *api.Unsupported:
		fn(&e.Position)
	case *api.Not:
		fn(&e.Position)
		walkExpr(e.X, fn)
	case *api.BinaryExpr:
		fn(&e.Position)
		walkExpr(e.Left, fn)
		walkExpr(e.Right, fn)
	}
}
