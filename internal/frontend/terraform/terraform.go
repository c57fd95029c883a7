// Package terraform reads Terraform configuration files into the script
// AST through the HCL native syntax parser.
//
// Resource blocks become atomic units, variable defaults and locals become
// script variables named as they are referenced (var.x, local.y), and a
// `count = cond ? 1 : 0` guard becomes a conditional around its resource.
package terraform

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"

	"github.com/sr-lab/GLITCH-sub000/api"
	"github.com/sr-lab/GLITCH-sub000/internal/frontend/span"
	"github.com/sr-lab/GLITCH-sub000/internal/log"
)

// metaArguments are resource arguments that configure Terraform itself.
var metaArguments = map[string]bool{
	"count": true, "for_each": true, "depends_on": true, "provider": true,
}

type parser struct {
	idx *span.Index
	log zerolog.Logger
}

// Parse reads one .tf file.
func Parse(path string, src []byte) (*api.Script, error) {
	file, diags := hclsyntax.ParseConfig(src, path, hcl.Pos{Line: 1, Column: 1, Byte: 0})
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", path, diags)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("parse %s: unexpected body type %T", path, file.Body)
	}
	p := &parser{
		idx: span.New(src),
		log: log.WithComponent("terraform").With().Str(log.FieldFile, path).Logger(),
	}
	root := &api.UnitBlock{Name: path, Kind: api.BlockScript, Position: p.idx.Pos(0, len(src))}

	var variables, locals []*api.Variable
	for _, blk := range body.Blocks {
		switch blk.Type {
		case "resource":
			p.resource(blk, &root.Body)
		case "variable":
			if v := p.variable(blk); v != nil {
				variables = append(variables, v)
			}
		case "locals":
			for _, attr := range sortedAttributes(blk.Body) {
				locals = append(locals, &api.Variable{
					Name:     "local." + attr.Name,
					Value:    p.expr(attr.Expr),
					Position: p.pos(attr.SrcRange),
				})
			}
		default:
			p.log.Debug().Str(log.FieldType, blk.Type).Msg("block not modeled")
		}
	}
	// locals may read variables, never the other way round
	root.Variables = append(variables, locals...)
	return &api.Script{Tech: api.Terraform, Path: path, Block: root}, nil
}

func (p *parser) pos(r hcl.Range) api.Position {
	return p.idx.Pos(r.Start.Byte, r.End.Byte)
}

func sortedAttributes(b *hclsyntax.Body) []*hclsyntax.Attribute {
	return slices.SortedFunc(maps.Values(b.Attributes), func(x, y *hclsyntax.Attribute) int {
		return cmp.Compare(x.SrcRange.Start.Byte, y.SrcRange.Start.Byte)
	})
}

func (p *parser) variable(blk *hclsyntax.Block) *api.Variable {
	if len(blk.Labels) != 1 {
		return nil
	}
	def, ok := blk.Body.Attributes["default"]
	if !ok {
		p.log.Debug().Str("variable", blk.Labels[0]).Msg("variable without default")
		return nil
	}
	return &api.Variable{Name: "var." + blk.Labels[0], Value: p.expr(def.Expr), Position: p.pos(def.SrcRange)}
}

func (p *parser) resource(blk *hclsyntax.Block, body *api.Body) {
	if len(blk.Labels) != 2 {
		p.log.Warn().Int("line", blk.TypeRange.Start.Line).Msg("resource block without type and name, skipped")
		return
	}
	unit := &api.AtomicUnit{
		Type:     blk.Labels[0],
		Name:     &api.String{Value: blk.Labels[1], Position: p.pos(blk.LabelRanges[1])},
		Position: p.pos(blk.Range()),
	}
	for _, attr := range sortedAttributes(blk.Body) {
		if metaArguments[attr.Name] {
			continue
		}
		unit.Attributes = append(unit.Attributes, &api.Attribute{
			Name:     attr.Name,
			Value:    p.expr(attr.Expr),
			Position: p.pos(attr.SrcRange),
		})
	}
	if _, ok := blk.Body.Attributes["for_each"]; ok {
		p.log.Warn().Str(log.FieldType, unit.Type).Msg("for_each is not modeled, resource treated as a single instance")
	}

	count, ok := blk.Body.Attributes["count"]
	if !ok {
		body.AtomicUnits = append(body.AtomicUnits, unit)
		return
	}
	switch e := unwrap(count.Expr).(type) {
	case *hclsyntax.ConditionalExpr:
		t, ok1 := intLiteral(e.TrueResult)
		f, ok2 := intLiteral(e.FalseResult)
		var cond api.Expr
		switch {
		case ok1 && ok2 && t == 1 && f == 0:
			cond = p.expr(e.Condition)
		case ok1 && ok2 && t == 0 && f == 1:
			cond = &api.Not{X: p.expr(e.Condition), Position: p.pos(e.Condition.Range())}
		default:
			p.log.Warn().Str(log.FieldType, unit.Type).Msg("count conditional not modeled, resource treated as a single instance")
			body.AtomicUnits = append(body.AtomicUnits, unit)
			return
		}
		body.Conditionals = append(body.Conditionals, &api.Conditional{
			Condition: cond,
			Body:      api.Body{AtomicUnits: []*api.AtomicUnit{unit}},
			Position:  unit.Position,
		})
	default:
		n, ok := intLiteral(e)
		switch {
		case ok && n == 0:
			p.log.Debug().Str(log.FieldType, unit.Type).Msg("resource disabled by count = 0")
		case ok && n == 1:
			body.AtomicUnits = append(body.AtomicUnits, unit)
		default:
			p.log.Warn().Str(log.FieldType, unit.Type).Msg("count not modeled, resource treated as a single instance")
			body.AtomicUnits = append(body.AtomicUnits, unit)
		}
	}
}

func unwrap(e hclsyntax.Expression) hclsyntax.Expression {
	for {
		switch x := e.(type) {
		case *hclsyntax.ParenthesesExpr:
			e = x.Expression
		case *hclsyntax.TemplateWrapExpr:
			e = x.Wrapped
		default:
			return e
		}
	}
}

func intLiteral(e hclsyntax.Expression) (int64, bool) {
	lit, ok := unwrap(e).(*hclsyntax.LiteralValueExpr)
	if !ok || lit.Val.Type() != cty.Number || lit.Val.IsNull() {
		return 0, false
	}
	n, acc := lit.Val.AsBigFloat().Int64()
	return n, acc == 0
}

func (p *parser) expr(e hclsyntax.Expression) api.Expr {
	pos := p.pos(e.Range())
	switch e := e.(type) {
	case *hclsyntax.LiteralValueExpr:
		if e.Val.Type() == cty.Number && !e.Val.IsNull() {
			// keep the spelling, 0644 is not 644
			r := e.SrcRange
			return &api.Number{Text: string(p.idx.Src()[r.Start.Byte:r.End.Byte]), Position: pos}
		}
		return literal(e.Val, pos)
	case *hclsyntax.TemplateExpr:
		if len(e.Parts) == 0 {
			return &api.String{Position: pos}
		}
		if lit, ok := e.Parts[0].(*hclsyntax.LiteralValueExpr); ok && len(e.Parts) == 1 {
			return literal(lit.Val, pos)
		}
		var out api.Expr
		for _, part := range e.Parts {
			x := p.expr(part)
			if out == nil {
				out = x
				continue
			}
			out = &api.BinaryExpr{Op: api.OpSum, Left: out, Right: x, Position: pos}
		}
		return out
	case *hclsyntax.TemplateWrapExpr:
		return p.expr(e.Wrapped)
	case *hclsyntax.ParenthesesExpr:
		return p.expr(e.Expression)
	case *hclsyntax.ScopeTraversalExpr:
		tr := e.Traversal
		root := tr.RootName()
		if len(tr) == 2 && (root == "var" || root == "local") {
			if step, ok := tr[1].(hcl.TraverseAttr); ok {
				return &api.VariableReference{Name: root + "." + step.Name, Position: pos}
			}
		}
		return &api.Unsupported{Kind: "reference", Position: pos}
	case *hclsyntax.UnaryOpExpr:
		if e.Op == hclsyntax.OpLogicalNot {
			return &api.Not{X: p.expr(e.Val), Position: pos}
		}
	case *hclsyntax.BinaryOpExpr:
		l, r := p.expr(e.LHS), p.expr(e.RHS)
		switch e.Op {
		case hclsyntax.OpEqual:
			return &api.BinaryExpr{Op: api.OpEqual, Left: l, Right: r, Position: pos}
		case hclsyntax.OpNotEqual:
			return &api.Not{X: &api.BinaryExpr{Op: api.OpEqual, Left: l, Right: r}, Position: pos}
		case hclsyntax.OpLogicalAnd:
			return &api.BinaryExpr{Op: api.OpAnd, Left: l, Right: r, Position: pos}
		case hclsyntax.OpLogicalOr:
			return &api.BinaryExpr{Op: api.OpOr, Left: l, Right: r, Position: pos}
		}
	case *hclsyntax.FunctionCallExpr:
		return &api.Unsupported{Kind: "call", Position: pos}
	case *hclsyntax.TupleConsExpr:
		return &api.Unsupported{Kind: "tuple", Position: pos}
	case *hclsyntax.ObjectConsExpr:
		return &api.Unsupported{Kind: "object", Position: pos}
	}
	return &api.Unsupported{Kind: fmt.Sprintf("%T", e), Position: pos}
}

func literal(v cty.Value, pos api.Position) api.Expr {
	if v.IsNull() {
		return &api.Null{Position: pos}
	}
	switch v.Type() {
	case cty.String:
		return &api.String{Value: v.AsString(), Position: pos}
	case cty.Number:
		return &api.Number{Text: v.AsBigFloat().Text('f', -1), Position: pos}
	case cty.Bool:
		return &api.Boolean{Value: v.True(), Position: pos}
	}
	return &api.Unsupported{Kind: v.Type().FriendlyName(), Position: pos}
}
