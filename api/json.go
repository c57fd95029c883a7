package api

import (
	"encoding/json"
	"fmt"
)

// The JSON contract used by out-of-process front-ends (the Puppet parser in
// particular). Spans are flattened into each object.

type scriptJSON struct {
	Tech  Tech       `json:"tech"`
	Path  string     `json:"path"`
	Block *blockJSON `json:"block"`
}

type bodyJSON struct {
	Variables    []elementJSON     `json:"variables,omitempty"`
	AtomicUnits  []unitJSON        `json:"atomic_units,omitempty"`
	Conditionals []conditionalJSON `json:"conditionals,omitempty"`
}

type blockJSON struct {
	Name       string        `json:"name"`
	Kind       BlockKind     `json:"kind"`
	Attributes []elementJSON `json:"attributes,omitempty"`
	UnitBlocks []blockJSON   `json:"unit_blocks,omitempty"`
	bodyJSON
	Position
}

type elementJSON struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
	Position
}

type unitJSON struct {
	Name       json.RawMessage `json:"name"`
	Type       string          `json:"type"`
	Attributes []elementJSON   `json:"attributes,omitempty"`
	Position
}

type conditionalJSON struct {
	Condition json.RawMessage  `json:"condition,omitempty"`
	Else      *conditionalJSON `json:"else,omitempty"`
	bodyJSON
	Position
}

type exprJSON struct {
	Kind    string          `json:"kind"`
	Value   json.RawMessage `json:"value,omitempty"`
	Name    string          `json:"name,omitempty"`
	Left    json.RawMessage `json:"left,omitempty"`
	Right   json.RawMessage `json:"right,omitempty"`
	Operand json.RawMessage `json:"operand,omitempty"`
	Position
}

// DecodeScript parses the JSON form of a script AST.
func DecodeScript(data []byte) (*Script, error) {
	var raw scriptJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if raw.Block == nil {
		return nil, fmt.Errorf("decode script: missing block")
	}
	block, err := raw.Block.decode()
	if err != nil {
		return nil, err
	}
	return &Script{Tech: raw.Tech, Path: raw.Path, Block: block}, nil
}

func (b *blockJSON) decode() (*UnitBlock, error) {
	out := &UnitBlock{Name: b.Name, Kind: b.Kind, Position: b.Position}
	if out.Kind == "" {
		out.Kind = BlockScript
	}
	for _, a := range b.Attributes {
		attr, err := a.attribute()
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", b.Name, err)
		}
		out.Attributes = append(out.Attributes, attr)
	}
	body, err := b.bodyJSON.decode()
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", b.Name, err)
	}
	out.Body = body
	for i := range b.UnitBlocks {
		child, err := b.UnitBlocks[i].decode()
		if err != nil {
			return nil, err
		}
		out.UnitBlocks = append(out.UnitBlocks, child)
	}
	return out, nil
}

func (b *bodyJSON) decode() (Body, error) {
	var body Body
	for _, v := range b.Variables {
		value, err := decodeExpr(v.Value)
		if err != nil {
			return body, fmt.Errorf("variable %s: %w", v.Name, err)
		}
		body.Variables = append(body.Variables, &Variable{Name: v.Name, Value: value, Position: v.Position})
	}
	for _, u := range b.AtomicUnits {
		unit, err := u.decode()
		if err != nil {
			return body, err
		}
		body.AtomicUnits = append(body.AtomicUnits, unit)
	}
	for i := range b.Conditionals {
		c, err := b.Conditionals[i].decode()
		if err != nil {
			return body, err
		}
		body.Conditionals = append(body.Conditionals, c)
	}
	return body, nil
}

func (u *unitJSON) decode() (*AtomicUnit, error) {
	name, err := decodeExpr(u.Name)
	if err != nil {
		return nil, fmt.Errorf("unit %s: name: %w", u.Type, err)
	}
	out := &AtomicUnit{Name: name, Type: u.Type, Position: u.Position}
	for _, a := range u.Attributes {
		attr, err := a.attribute()
		if err != nil {
			return nil, fmt.Errorf("unit %s: %w", u.Type, err)
		}
		out.Attributes = append(out.Attributes, attr)
	}
	return out, nil
}

func (e *elementJSON) attribute() (*Attribute, error) {
	value, err := decodeExpr(e.Value)
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", e.Name, err)
	}
	return &Attribute{Name: e.Name, Value: value, Position: e.Position}, nil
}

func (c *conditionalJSON) decode() (*Conditional, error) {
	out := &Conditional{Position: c.Position}
	if len(c.Condition) > 0 && string(c.Condition) != "null" {
		cond, err := decodeExpr(c.Condition)
		if err != nil {
			return nil, fmt.Errorf("condition: %w", err)
		}
		out.Condition = cond
	}
	body, err := c.bodyJSON.decode()
	if err != nil {
		return nil, err
	}
	out.Body = body
	if c.Else != nil {
		alt, err := c.Else.decode()
		if err != nil {
			return nil, err
		}
		out.Else = alt
	}
	return out, nil
}

func decodeExpr(data json.RawMessage) (Expr, error) {
	if len(data) == 0 || string(data) == "null" {
		return &Null{}, nil
	}
	var e exprJSON
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Kind {
	case "string":
		var s string
		if err := json.Unmarshal(e.Value, &s); err != nil {
			return nil, fmt.Errorf("string literal: %w", err)
		}
		return &String{Value: s, Position: e.Position}, nil
	case "number":
		// Accept both "0755" and 755; the source spelling wins when quoted.
		var text string
		if err := json.Unmarshal(e.Value, &text); err != nil {
			text = string(e.Value)
		}
		return &Number{Text: text, Position: e.Position}, nil
	case "bool":
		var b bool
		if err := json.Unmarshal(e.Value, &b); err != nil {
			return nil, fmt.Errorf("bool literal: %w", err)
		}
		return &Boolean{Value: b, Position: e.Position}, nil
	case "null":
		return &Null{Position: e.Position}, nil
	case "var":
		return &VariableReference{Name: e.Name, Position: e.Position}, nil
	case "not":
		x, err := decodeExpr(e.Operand)
		if err != nil {
			return nil, err
		}
		return &Not{X: x, Position: e.Position}, nil
	case string(OpSum), string(OpEqual), string(OpAnd), string(OpOr):
		left, err := decodeExpr(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeExpr(e.Right)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: BinOp(e.Kind), Left: left, Right: right, Position: e.Position}, nil
	default:
		return &Unsupported{Kind: e.Kind, Position: e.Position}, nil
	}
}
