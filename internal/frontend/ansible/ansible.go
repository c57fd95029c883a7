// Package ansible reads Ansible playbooks and task files into the script
// AST. Spans are exact: yaml.v3 gives start marks, and ends are found by
// scanning the source from there.
package ansible

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sr-lab/GLITCH-sub000/api"
	"github.com/sr-lab/GLITCH-sub000/internal/frontend/span"
	"github.com/sr-lab/GLITCH-sub000/internal/log"
)

// ErrLayout is returned for documents that are neither a list of plays nor
// a list of tasks.
var ErrLayout = errors.New("ansible: expected a list of plays or tasks")

var playKeys = map[string]bool{
	"hosts": true, "tasks": true, "pre_tasks": true, "post_tasks": true,
	"handlers": true, "roles": true,
}

// taskKeywords are the task keys that are not modules.
var taskKeywords = map[string]bool{
	"name": true, "when": true, "vars": true, "args": true,
	"block": true, "rescue": true, "always": true,
	"register": true, "notify": true, "listen": true, "tags": true,
	"become": true, "become_user": true, "become_method": true,
	"loop": true, "loop_control": true, "with_items": true, "with_dict": true,
	"ignore_errors": true, "changed_when": true, "failed_when": true,
	"delegate_to": true, "run_once": true, "environment": true,
	"no_log": true, "until": true, "retries": true, "delay": true,
	"check_mode": true, "diff": true, "async": true, "poll": true,
}

type parser struct {
	idx *span.Index
	log zerolog.Logger
}

// Parse reads a playbook or a task list.
func Parse(path string, src []byte) (*api.Script, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	p := &parser{
		idx: span.New(src),
		log: log.WithComponent("ansible").With().Str(log.FieldFile, path).Logger(),
	}
	root := &api.UnitBlock{Name: path, Kind: api.BlockScript, Position: p.idx.Pos(0, len(src))}
	script := &api.Script{Tech: api.Ansible, Path: path, Block: root}
	if len(doc.Content) == 0 {
		return script, nil
	}
	top := doc.Content[0]
	if top.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("parse %s: %w", path, ErrLayout)
	}
	for _, item := range top.Content {
		if item.Kind != yaml.MappingNode {
			p.log.Warn().Int("line", item.Line).Msg("list entry is not a mapping, skipped")
			continue
		}
		if isPlay(item) {
			root.UnitBlocks = append(root.UnitBlocks, p.play(item))
			continue
		}
		p.task(item, &root.Body)
	}
	return script, nil
}

func isPlay(m *yaml.Node) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if playKeys[m.Content[i].Value] {
			return true
		}
	}
	return false
}

func (p *parser) play(m *yaml.Node) *api.UnitBlock {
	blk := &api.UnitBlock{Name: "play", Kind: api.BlockPlay, Position: p.pos(m, m.Column-1, false)}
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		switch k.Value {
		case "name":
			blk.Name = v.Value
		case "vars":
			p.vars(v, &blk.Body)
		case "pre_tasks", "tasks", "post_tasks", "handlers":
			p.tasks(v, &blk.Body)
		case "roles":
			p.log.Debug().Int("line", k.Line).Msg("roles are not followed")
		}
	}
	return blk
}

func (p *parser) tasks(seq *yaml.Node, body *api.Body) {
	if seq.Kind != yaml.SequenceNode {
		p.log.Warn().Int("line", seq.Line).Msg("task list is not a sequence, skipped")
		return
	}
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			p.log.Warn().Int("line", item.Line).Msg("task is not a mapping, skipped")
			continue
		}
		p.task(item, body)
	}
}

// task adds one task to body. A `when` wraps the task in a conditional;
// task vars go to the body the task lands in.
func (p *parser) task(m *yaml.Node, body *api.Body) {
	var name, when, vars, args, modKey, module *yaml.Node
	var blocks []*yaml.Node
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		switch k.Value {
		case "name":
			name = v
		case "when":
			when = v
		case "vars":
			vars = v
		case "args":
			args = v
		case "block", "rescue", "always":
			blocks = append(blocks, v)
		default:
			if !taskKeywords[k.Value] && modKey == nil {
				modKey, module = k, v
			}
		}
	}

	target := body
	if when != nil {
		cond := &api.Conditional{Condition: p.condition(when), Position: p.pos(m, m.Column-1, false)}
		body.Conditionals = append(body.Conditionals, cond)
		target = &cond.Body
	}
	if vars != nil {
		p.vars(vars, target)
	}
	for _, b := range blocks {
		p.tasks(b, target)
	}
	if modKey == nil {
		if len(blocks) == 0 {
			p.log.Warn().Int("line", m.Line).Msg("task without module, skipped")
		}
		return
	}

	start := p.start(modKey)
	end := start + len(modKey.Value) + 1
	if !empty(module) {
		end = p.end(module, modKey.Column-1, false)
	}
	unit := &api.AtomicUnit{Type: modKey.Value, Position: p.idx.Pos(start, end)}
	if name != nil {
		unit.Name = p.value(name, m.Column-1, false)
	} else {
		unit.Name = &api.String{Value: modKey.Value}
	}
	switch module.Kind {
	case yaml.MappingNode:
		p.attributes(module, unit)
	case yaml.ScalarNode:
		if module.Value != "" {
			p.log.Warn().Str(log.FieldType, modKey.Value).Int("line", module.Line).
				Msg("free-form module arguments are not modeled")
		}
	}
	if args != nil && args.Kind == yaml.MappingNode {
		p.attributes(args, unit)
	}
	target.AtomicUnits = append(target.AtomicUnits, unit)
}

func (p *parser) attributes(m *yaml.Node, unit *api.AtomicUnit) {
	flow := m.Style&yaml.FlowStyle != 0
	for i := 0; i+1 < len(m.Content); i += 2 {
		unit.Attributes = append(unit.Attributes, p.attribute(m.Content[i], m.Content[i+1], flow))
	}
}

func (p *parser) vars(m *yaml.Node, body *api.Body) {
	if m.Kind != yaml.MappingNode {
		p.log.Warn().Int("line", m.Line).Msg("vars is not a mapping, skipped")
		return
	}
	flow := m.Style&yaml.FlowStyle != 0
	for i := 0; i+1 < len(m.Content); i += 2 {
		a := p.attribute(m.Content[i], m.Content[i+1], flow)
		body.Variables = append(body.Variables, &api.Variable{Name: a.Name, Value: a.Value, Position: a.Position})
	}
}

func (p *parser) attribute(k, v *yaml.Node, flow bool) *api.Attribute {
	ks := p.start(k)
	if empty(v) {
		return &api.Attribute{Name: k.Value, Value: &api.Null{}, Position: p.idx.Pos(ks, ks+len(k.Value))}
	}
	ve := p.end(v, k.Column-1, flow)
	return &api.Attribute{Name: k.Value, Value: p.value(v, k.Column-1, flow), Position: p.idx.Pos(ks, ve)}
}

// empty reports a value left out entirely, as in `key:`.
func empty(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Value == "" && n.Style == 0 && n.ShortTag() == "!!null"
}

func (p *parser) value(n *yaml.Node, indent int, flow bool) api.Expr {
	if empty(n) {
		return &api.Null{}
	}
	pos := p.pos(n, indent, flow)
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!bool":
			return &api.Boolean{Value: strings.EqualFold(n.Value, "true"), Position: pos}
		case "!!int", "!!float":
			return &api.Number{Text: n.Value, Position: pos}
		case "!!null":
			return &api.Null{Position: pos}
		}
		return template(n.Value, pos)
	case yaml.MappingNode:
		return &api.Unsupported{Kind: "mapping", Position: pos}
	case yaml.SequenceNode:
		return &api.Unsupported{Kind: "sequence", Position: pos}
	}
	return &api.Unsupported{Kind: "alias", Position: pos}
}

var (
	exprRe  = regexp.MustCompile(`\{\{-?\s*(.*?)\s*-?\}\}`)
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	numRe   = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
)

// template splits a Jinja template into a concatenation of literal parts
// and variable references.
func template(s string, pos api.Position) api.Expr {
	locs := exprRe.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return &api.String{Value: s, Position: pos}
	}
	var parts []api.Expr
	last := 0
	for _, m := range locs {
		if m[0] > last {
			parts = append(parts, &api.String{Value: s[last:m[0]]})
		}
		inner := s[m[2]:m[3]]
		if identRe.MatchString(inner) {
			parts = append(parts, &api.VariableReference{Name: inner})
		} else {
			parts = append(parts, &api.Unsupported{Kind: "jinja"})
		}
		last = m[1]
	}
	if last < len(s) {
		parts = append(parts, &api.String{Value: s[last:]})
	}
	out := parts[0]
	for _, part := range parts[1:] {
		out = &api.BinaryExpr{Op: api.OpSum, Left: out, Right: part}
	}
	setPos(out, pos)
	return out
}

func setPos(e api.Expr, pos api.Position) {
	switch e := e.(type) {
	case *api.String:
		e.Position = pos
	case *api.VariableReference:
		e.Position = pos
	case *api.Unsupported:
		e.Position = pos
	case *api.BinaryExpr:
		e.Position = pos
	case *api.Not:
		e.Position = pos
	case *api.Boolean:
		e.Position = pos
	case *api.Number:
		e.Position = pos
	}
}

// condition reads a `when` value. A list of conditions is their
// conjunction.
func (p *parser) condition(n *yaml.Node) api.Expr {
	pos := p.pos(n, n.Column-1, false)
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() == "!!bool" {
			return &api.Boolean{Value: strings.EqualFold(n.Value, "true"), Position: pos}
		}
		e := jinja(n.Value)
		setPos(e, pos)
		return e
	case yaml.SequenceNode:
		var out api.Expr
		for _, item := range n.Content {
			c := p.condition(item)
			if out == nil {
				out = c
				continue
			}
			out = &api.BinaryExpr{Op: api.OpAnd, Left: out, Right: c}
		}
		if out == nil {
			return &api.Boolean{Value: true, Position: pos}
		}
		setPos(out, pos)
		return out
	}
	return &api.Unsupported{Kind: "condition", Position: pos}
}

// jinja parses the boolean subset of Jinja tests: and, or, not, ==, !=,
// literals and variable names.
func jinja(s string) api.Expr {
	s = strings.TrimSpace(s)
	if m := exprRe.FindStringSubmatch(s); m != nil && m[0] == s {
		s = m[1]
	}
	if strings.ContainsAny(s, "()[]|") {
		return &api.Unsupported{Kind: "jinja"}
	}
	for _, op := range []struct {
		sep string
		op  api.BinOp
	}{{" or ", api.OpOr}, {" and ", api.OpAnd}} {
		parts := strings.Split(s, op.sep)
		if len(parts) < 2 {
			continue
		}
		out := jinja(parts[0])
		for _, part := range parts[1:] {
			out = &api.BinaryExpr{Op: op.op, Left: out, Right: jinja(part)}
		}
		return out
	}
	if rest, ok := strings.CutPrefix(s, "not "); ok {
		return &api.Not{X: jinja(rest)}
	}
	if l, r, ok := strings.Cut(s, "!="); ok {
		return &api.Not{X: &api.BinaryExpr{Op: api.OpEqual, Left: operand(l), Right: operand(r)}}
	}
	if l, r, ok := strings.Cut(s, "=="); ok {
		return &api.BinaryExpr{Op: api.OpEqual, Left: operand(l), Right: operand(r)}
	}
	return operand(s)
}

func operand(s string) api.Expr {
	s = strings.TrimSpace(s)
	switch {
	case len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0]:
		return &api.String{Value: s[1 : len(s)-1]}
	case s == "true" || s == "True":
		return &api.Boolean{Value: true}
	case s == "false" || s == "False":
		return &api.Boolean{Value: false}
	case numRe.MatchString(s):
		return &api.Number{Text: s}
	case identRe.MatchString(s):
		return &api.VariableReference{Name: s}
	}
	return &api.Unsupported{Kind: "jinja"}
}

func (p *parser) start(n *yaml.Node) int { return p.idx.Offset(n.Line, n.Column) }

func (p *parser) pos(n *yaml.Node, indent int, flow bool) api.Position {
	return p.idx.Pos(p.start(n), p.end(n, indent, flow))
}

// end finds the offset just past node n. indent is the indentation of the
// key or entry owning n; flow tells whether n sits in a flow collection.
func (p *parser) end(n *yaml.Node, indent int, flow bool) int {
	start := p.start(n)
	switch n.Kind {
	case yaml.ScalarNode:
		return p.scalarEnd(n, start, indent, flow)
	case yaml.AliasNode:
		return start + 1 + len(n.Value)
	case yaml.MappingNode, yaml.SequenceNode:
		if n.Style&yaml.FlowStyle != 0 {
			return p.flowEnd(start)
		}
		if len(n.Content) == 0 {
			return start
		}
		last := n.Content[len(n.Content)-1]
		if empty(last) && n.Kind == yaml.MappingNode {
			k := n.Content[len(n.Content)-2]
			return p.start(k) + len(k.Value) + 1
		}
		return p.end(last, n.Column-1, false)
	}
	return start
}

func (p *parser) scalarEnd(n *yaml.Node, start, indent int, flow bool) int {
	src := p.idx.Src()
	switch n.Style {
	case yaml.DoubleQuotedStyle:
		for i := start + 1; i < len(src); i++ {
			switch src[i] {
			case '\\':
				i++
			case '"':
				return i + 1
			}
		}
		return len(src)
	case yaml.SingleQuotedStyle:
		for i := start + 1; i < len(src); i++ {
			if src[i] != '\'' {
				continue
			}
			if i+1 < len(src) && src[i+1] == '\'' {
				i++
				continue
			}
			return i + 1
		}
		return len(src)
	case yaml.LiteralStyle, yaml.FoldedStyle:
		// the content runs while lines are blank or indented deeper
		// than the owner
		end := p.idx.LineEnd(start)
		for i := end; i < len(src); {
			ls := i + 1
			le := p.idx.LineEnd(ls)
			line := src[ls:le]
			body := strings.TrimLeft(string(line), " ")
			i = le
			if strings.TrimSpace(body) == "" {
				continue
			}
			if len(line)-len(body) <= indent {
				break
			}
			end = le
		}
		return end
	}
	le := p.idx.LineEnd(start)
	e := le
	for i := start; i < le; i++ {
		c := src[i]
		if c == '#' && i > start && (src[i-1] == ' ' || src[i-1] == '\t') {
			e = i
			break
		}
		if flow && (c == ',' || c == ']' || c == '}') {
			e = i
			break
		}
	}
	for e > start && (src[e-1] == ' ' || src[e-1] == '\t' || src[e-1] == '\r') {
		e--
	}
	return e
}

// flowEnd finds the bracket closing the flow collection opened at start.
func (p *parser) flowEnd(start int) int {
	src := p.idx.Src()
	depth := 0
	var quote byte
	for i := start; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			switch {
			case c == '\\' && quote == '"':
				i++
			case c == quote && quote == '\'' && i+1 < len(src) && src[i+1] == '\'':
				i++
			case c == quote:
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(src)
}
