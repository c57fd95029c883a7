// Package scripttest builds script ASTs over fixture sources for tests.
// Elements are located by searching the source text from a moving cursor,
// so every span points at the exact bytes a front-end would report.
package scripttest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sr-lab/GLITCH-sub000/api"
)

type frame struct {
	body  *api.Body
	block *api.UnitBlock
	cond  *api.Conditional
	start int
}

// Builder assembles a script. Methods panic when the text they look for
// is missing: fixtures are static.
type Builder struct {
	Script *api.Script
	src    string
	cursor int
	stack  []frame
}

// New starts a script whose root block spans the whole source.
func New(t api.Tech, path, src string) *Builder {
	root := &api.UnitBlock{Name: path, Kind: api.BlockScript}
	b := &Builder{
		Script: &api.Script{Tech: t, Path: path, Block: root},
		src:    src,
	}
	root.Position = b.span(0, len(src))
	b.stack = []frame{{body: &root.Body, block: root}}
	return b
}

// Source returns the fixture text.
func (b *Builder) Source() []byte { return []byte(b.src) }

// Build returns the script.
func (b *Builder) Build() *api.Script { return b.Script }

func (b *Builder) find(text string) (int, int) {
	i := strings.Index(b.src[b.cursor:], text)
	if i < 0 {
		panic(fmt.Sprintf("scripttest: %q not found after offset %d", text, b.cursor))
	}
	start := b.cursor + i
	b.cursor = start + len(text)
	return start, b.cursor
}

func (b *Builder) pos(off int) (int, int) {
	line := 1 + strings.Count(b.src[:off], "\n")
	col := off - (strings.LastIndex(b.src[:off], "\n") + 1) + 1
	return line, col
}

func (b *Builder) span(start, end int) api.Position {
	l1, c1 := b.pos(start)
	l2, c2 := b.pos(end)
	return api.Position{Line: l1, Column: c1, EndLine: l2, EndColumn: c2}
}

func (b *Builder) top() *frame { return &b.stack[len(b.stack)-1] }

// Unit finds `typ` followed by the title literal and opens a resource.
// Close it with End.
func (b *Builder) Unit(typ, title string) *api.AtomicUnit {
	start, _ := b.find(typ)
	ts, te := b.find(title)
	u := &api.AtomicUnit{Type: typ, Name: Parse(title, b.span(ts, te))}
	u.Position = b.span(start, start)
	b.top().body.AtomicUnits = append(b.top().body.AtomicUnits, u)
	return u
}

// Attr finds `key` and then the value literal after it.
func (b *Builder) Attr(u *api.AtomicUnit, key, value string) *api.Attribute {
	a := b.element(key, value)
	u.Attributes = append(u.Attributes, a)
	return a
}

// End finds the closing token of a resource, by default "}".
func (b *Builder) End(u *api.AtomicUnit, closing ...string) {
	c := "}"
	if len(closing) > 0 {
		c = closing[0]
	}
	_, end := b.find(c)
	start := u.Position
	u.Position = b.span(b.offset(start.Line, start.Column), end)
}

// Var finds a variable assignment such as `$owner = 'web'`.
func (b *Builder) Var(name, value string) *api.Variable {
	a := b.element(name, value)
	v := &api.Variable{Name: strings.TrimPrefix(name, "$"), Value: a.Value, Position: a.Position}
	b.top().body.Variables = append(b.top().body.Variables, v)
	return v
}

// Define opens a defined type `define name`. Close it with EndBlock.
func (b *Builder) Define(name string) *api.UnitBlock {
	start, _ := b.find("define " + name)
	blk := &api.UnitBlock{Name: name, Kind: api.BlockDefinition}
	parent := b.top().block
	parent.UnitBlocks = append(parent.UnitBlocks, blk)
	b.stack = append(b.stack, frame{body: &blk.Body, block: blk, start: start})
	return blk
}

// Param adds a parameter with a default value to the open definition.
// An empty value declares a parameter without default.
func (b *Builder) Param(name, value string) *api.Attribute {
	var a *api.Attribute
	if value == "" {
		s, e := b.find(name)
		a = &api.Attribute{Name: strings.TrimPrefix(name, "$"), Value: &api.Null{}, Position: b.span(s, e)}
	} else {
		a = b.element(name, value)
		a.Name = strings.TrimPrefix(name, "$")
	}
	blk := b.top().block
	blk.Attributes = append(blk.Attributes, a)
	return a
}

// EndBlock closes the innermost definition at the next "}".
func (b *Builder) EndBlock() {
	f := b.top()
	_, end := b.find("}")
	f.block.Position = b.span(f.start, end)
	b.stack = b.stack[:len(b.stack)-1]
}

// If opens a conditional whose condition is the given text.
func (b *Builder) If(cond string) *api.Conditional {
	start, _ := b.find("if")
	cs, ce := b.find(cond)
	c := &api.Conditional{Condition: Parse(cond, b.span(cs, ce))}
	c.Position = b.span(start, start)
	b.top().body.Conditionals = append(b.top().body.Conditionals, c)
	b.stack = append(b.stack, frame{body: &c.Body, block: b.top().block, cond: c, start: start})
	return c
}

// Else switches the open conditional to its else branch.
func (b *Builder) Else() *api.Conditional {
	f := b.top()
	start, _ := b.find("else")
	alt := &api.Conditional{Position: b.span(start, start)}
	f.cond.Else = alt
	f.body = &alt.Body
	return alt
}

// EndIf closes the open conditional at the next "}".
func (b *Builder) EndIf() {
	f := b.top()
	_, end := b.find("}")
	f.cond.Position = b.span(f.start, end)
	b.stack = b.stack[:len(b.stack)-1]
}

func (b *Builder) element(key, value string) *api.Attribute {
	ks, _ := b.find(key)
	vs, ve := b.find(value)
	return &api.Attribute{
		Name:     key,
		Value:    Parse(value, b.span(vs, ve)),
		Position: b.span(ks, ve),
	}
}

func (b *Builder) offset(line, col int) int {
	off := 0
	for l := 1; l < line; l++ {
		off += strings.Index(b.src[off:], "\n") + 1
	}
	return off + col - 1
}

var (
	numberRe = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
	interpRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// Parse turns a Puppet-style literal into an expression: quoted strings
// (double quotes interpolate ${var}), numbers, booleans, undef, $variables
// and barewords.
func Parse(text string, pos api.Position) api.Expr {
	switch {
	case strings.HasPrefix(text, "'") && strings.HasSuffix(text, "'") && len(text) >= 2:
		inner := strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(text[1 : len(text)-1])
		return &api.String{Value: inner, Position: pos}
	case strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) && len(text) >= 2:
		return interpolate(text[1:len(text)-1], pos)
	case text == "true" || text == "false":
		return &api.Boolean{Value: text == "true", Position: pos}
	case text == "undef":
		return &api.Null{Position: pos}
	case numberRe.MatchString(text):
		return &api.Number{Text: text, Position: pos}
	case strings.HasPrefix(text, "$"):
		return &api.VariableReference{Name: strings.TrimPrefix(text, "$"), Position: pos}
	case strings.HasPrefix(text, "[") || strings.HasPrefix(text, "{"):
		return &api.Unsupported{Kind: "collection", Position: pos}
	}
	return &api.String{Value: text, Position: pos}
}

func interpolate(s string, pos api.Position) api.Expr {
	locs := interpRe.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return &api.String{Value: s, Position: pos}
	}
	var parts []api.Expr
	last := 0
	for _, m := range locs {
		if m[0] > last {
			parts = append(parts, &api.String{Value: s[last:m[0]]})
		}
		parts = append(parts, &api.VariableReference{Name: s[m[2]:m[3]]})
		last = m[1]
	}
	if last < len(s) {
		parts = append(parts, &api.String{Value: s[last:]})
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out = &api.BinaryExpr{Op: api.OpSum, Left: out, Right: p}
	}
	if bin, ok := out.(*api.BinaryExpr); ok {
		bin.Position = pos
	}
	return out
}
