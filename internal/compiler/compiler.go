// Package compiler lowers a labeled script into RIL.
//
// Primitive resources become chains of attribute writes following the
// technology checklist, absent checklist attributes become sketches,
// defined-type instances are inlined under a fresh scope and conditionals
// become forks over opaque predicates.
package compiler

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/sr-lab/GLITCH-sub000/api"
	"github.com/sr-lab/GLITCH-sub000/internal/label"
	"github.com/sr-lab/GLITCH-sub000/internal/log"
	"github.com/sr-lab/GLITCH-sub000/internal/ril"
	"github.com/sr-lab/GLITCH-sub000/internal/tech"
)

// Compile lowers ls into a RIL program. Constructs it cannot model are
// logged and degrade to Unsupported values or skipped statements; Compile
// never fails.
func Compile(ls *label.Script) ril.Stmt {
	logger := log.WithComponent("compiler")
	p, err := tech.For(ls.Tech)
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldFile, ls.Path).Msg("no profile, nothing compiled")
		return ril.Skip{}
	}
	if ls.Block == nil {
		return ril.Skip{}
	}
	c := newCompileCtx(ls, p, logger)
	return c.block(ls.Block)
}

// block compiles a unit block's body wrapped in the Lets of its
// parameters, which take their default values.
func (c *compileCtx) block(b *api.UnitBlock) ril.Stmt {
	body := c.body(&b.Body, b.UnitBlocks)
	for i := len(b.Attributes) - 1; i >= 0; i-- {
		param := b.Attributes[i]
		l, _ := c.ls.LabelOf(param)
		value := ril.Labeled{Label: l, X: c.expr(param.Value)}
		body = ril.Let{ID: c.scope.Qualify(param.Name), Value: value, Label: l, Body: body}
	}
	return body
}

type item struct {
	pos  api.Position
	stmt func() ril.Stmt
}

// body compiles units, conditionals and nested non-definition blocks in
// source order, wrapped in the Lets of the body's variables.
func (c *compileCtx) body(body *api.Body, children []*api.UnitBlock) ril.Stmt {
	shadowed := c.shadowed(body.AtomicUnits)

	var items []item
	for _, u := range body.AtomicUnits {
		if shadowed[u] {
			c.log.Debug().Str(log.FieldType, u.Type).Str(log.FieldScope, c.scope.String()).
				Msg("resource shadowed by a later declaration")
			continue
		}
		items = append(items, item{pos: u.Position, stmt: func() ril.Stmt { return c.unit(u) }})
	}
	for _, cond := range body.Conditionals {
		items = append(items, item{pos: cond.Position, stmt: func() ril.Stmt { return c.conditional(cond) }})
	}
	for _, child := range children {
		if child.Kind == api.BlockDefinition {
			continue
		}
		items = append(items, item{pos: child.Position, stmt: func() ril.Stmt {
			defer c.enter(c.blockScope(string(child.Kind)))()
			return c.block(child)
		}})
	}
	slices.SortStableFunc(items, func(a, b item) int {
		return cmp.Or(cmp.Compare(a.pos.Line, b.pos.Line), cmp.Compare(a.pos.Column, b.pos.Column))
	})

	stmts := make([]ril.Stmt, 0, len(items))
	for _, it := range items {
		stmts = append(stmts, it.stmt())
	}
	out := ril.Sequence(stmts...)

	for i := len(body.Variables) - 1; i >= 0; i-- {
		v := body.Variables[i]
		l, _ := c.ls.LabelOf(v)
		out = ril.Let{
			ID:    c.scope.Qualify(v.Name),
			Value: ril.Labeled{Label: l, X: c.expr(v.Value)},
			Label: l,
			Body:  out,
		}
	}
	return out
}

// shadowed marks every primitive resource of a body that a later one with
// the same target replaces. All units of one body share a scope.
func (c *compileCtx) shadowed(units []*api.AtomicUnit) map[*api.AtomicUnit]bool {
	last := map[string]*api.AtomicUnit{}
	var order []*api.AtomicUnit
	for _, u := range units {
		spec, ok := c.profile.Resource(u.Type)
		if !ok {
			continue
		}
		key := spec.Kind + "|" + c.path(u, spec).String()
		last[key] = u
		order = append(order, u)
	}
	out := map[*api.AtomicUnit]bool{}
	for _, u := range order {
		spec, _ := c.profile.Resource(u.Type)
		if last[spec.Kind+"|"+c.path(u, spec).String()] != u {
			out[u] = true
		}
	}
	return out
}

// path returns the target of a primitive resource: the first path
// attribute present, else the title, prefixed with the state key of the
// resource kind.
func (c *compileCtx) path(u *api.AtomicUnit, spec *tech.ResourceSpec) ril.Expr {
	var target ril.Expr = c.expr(u.Name)
	if a := u.Attribute(spec.PathKeys...); a != nil {
		target = c.expr(a.Value)
	}
	if spec.Prefix == "" {
		return target
	}
	if k, ok := target.(ril.Const); ok && k.V.Concrete() {
		return ril.Const{V: ril.Str(spec.Prefix + k.V.Text)}
	}
	return ril.Binary{Op: ril.OpConcat, L: ril.Const{V: ril.Str(spec.Prefix)}, R: target}
}

func (c *compileCtx) unit(u *api.AtomicUnit) ril.Stmt {
	spec, ok := c.profile.Resource(u.Type)
	if !ok {
		if def, ok := c.ls.Definition(u.Type); ok {
			return c.instance(u, def)
		}
		c.log.Warn().Str(log.FieldType, u.Type).Msg("unknown resource type, skipped")
		return ril.Skip{}
	}

	path := c.path(u, spec)
	var stmts []ril.Stmt
	for _, f := range spec.Implicit {
		stmts = append(stmts, ril.Attr{Path: path, Name: f.Name, Value: ril.Const{V: ril.Str(f.Value)}})
	}
	copied := false
	if src := u.Attribute(spec.CopyKeys...); src != nil {
		stmts = append(stmts, ril.Cp{Src: c.expr(src.Value), Dst: path})
		copied = true
	}
	for i := range spec.Attrs {
		a := &spec.Attrs[i]
		attr := u.Attribute(a.Keys...)
		if attr == nil {
			if copied {
				continue
			}
			sk := c.ls.Sketch(u, a.Name)
			stmts = append(stmts, ril.Attr{Path: path, Name: a.Name, Value: ril.Labeled{Label: sk, X: ril.Undef{}}})
			continue
		}
		l, _ := c.ls.LabelOf(attr)
		value := normalize(c.expr(attr.Value), a)
		stmts = append(stmts, ril.Attr{Path: path, Name: a.Name, Value: ril.Labeled{Label: l, X: value}})
	}
	return ril.Sequence(stmts...)
}

// instance inlines a defined type. The body is compiled under a fresh
// scope; arguments are compiled after leaving it, in the caller's scope.
func (c *compileCtx) instance(u *api.AtomicUnit, def *api.UnitBlock) ril.Stmt {
	if c.expanding[def.Name] {
		c.log.Warn().Str(log.FieldType, def.Name).Msg("recursive defined type, skipped")
		return ril.Skip{}
	}
	c.expanding[def.Name] = true
	defer delete(c.expanding, def.Name)

	leave := c.enter(c.instanceScope(def.Name))
	inner := c.scope
	body := c.body(&def.Body, def.UnitBlocks)
	leave()

	params := map[string]bool{}
	for _, param := range def.Attributes {
		params[param.Name] = true
	}
	for _, a := range u.Attributes {
		if !params[a.Name] {
			c.log.Debug().Str(log.FieldType, def.Name).Str(log.FieldAttr, a.Name).Msg("argument without parameter, ignored")
		}
	}
	for i := len(def.Attributes) - 1; i >= 0; i-- {
		param := def.Attributes[i]
		source := param
		if arg := u.Attribute(param.Name); arg != nil {
			source = arg
		}
		l, _ := c.ls.LabelOf(source)
		value := ril.Labeled{Label: l, X: c.expr(source.Value)}
		body = ril.Let{ID: inner.Qualify(param.Name), Value: value, Label: l, Body: body}
	}
	title := c.expr(u.Name)
	body = ril.Let{ID: inner.Qualify("name"), Value: title, Body: body}
	return ril.Let{ID: inner.Qualify("title"), Value: title, Body: body}
}

func (c *compileCtx) conditional(cond *api.Conditional) ril.Stmt {
	pred, n := c.branch()
	c.log.Debug().Str(log.FieldScope, c.scope.String()).Str("predicate", pred.ID).Msg("conditional compiled as fork")

	leave := c.enter(branchScope("if", n))
	cons := c.body(&cond.Body, nil)
	leave()

	var alt ril.Stmt = ril.Skip{}
	if cond.Else != nil {
		leave := c.enter(branchScope("else", n))
		if cond.Else.Condition == nil {
			alt = c.body(&cond.Else.Body, nil)
		} else {
			alt = c.conditional(cond.Else)
		}
		leave()
	}
	return ril.If{Pred: pred, Cons: cons, Alt: alt}
}

func branchScope(kind string, n int) string {
	return fmt.Sprintf("%s#%d", kind, n)
}

func (c *compileCtx) expr(e api.Expr) ril.Expr {
	switch e := e.(type) {
	case nil, *api.Null:
		return ril.Undef{}
	case *api.String:
		return ril.Const{V: ril.Str(e.Value)}
	case *api.Number:
		return ril.Const{V: ril.Num(e.Text)}
	case *api.Boolean:
		return ril.Const{V: ril.BoolVal(e.Value)}
	case *api.VariableReference:
		return ril.Ref{ID: c.scope.Qualify(e.Name)}
	case *api.Not:
		return ril.Unary{Op: ril.OpNot, X: c.expr(e.X)}
	case *api.BinaryExpr:
		op, ok := binOps[e.Op]
		if !ok {
			break
		}
		return ril.Binary{Op: op, L: c.expr(e.Left), R: c.expr(e.Right)}
	case *api.Unsupported:
		c.log.Debug().Str("kind", e.Kind).Int("line", e.Line).Msg("unsupported expression")
		return ril.Unsupported{}
	}
	c.log.Debug().Msgf("unsupported expression %T", e)
	return ril.Unsupported{}
}

var binOps = map[api.BinOp]ril.BinOp{
	api.OpSum:   ril.OpConcat,
	api.OpEqual: ril.OpEq,
	api.OpAnd:   ril.OpAnd,
	api.OpOr:    ril.OpOr,
}

// normalize maps a literal value into RIL vocabulary.
func normalize(e ril.Expr, spec *tech.AttrSpec) ril.Expr {
	k, ok := e.(ril.Const)
	if !ok {
		return e
	}
	n := spec.Normalize(k.V.String())
	if n == k.V.String() {
		return e
	}
	if n == "true" || n == "false" {
		return ril.Const{V: ril.BoolVal(n == "true")}
	}
	return ril.Const{V: ril.Str(n)}
}
