package ril

import "github.com/sr-lab/GLITCH-sub000/internal/state"

// Kind classifies a Value.
type Kind uint8

const (
	KindUndef Kind = iota
	KindUnsupported
	KindString
	KindNumber
	KindBool
)

// Value is the normal form expressions evaluate to.
type Value struct {
	Kind Kind
	Text string
}

var (
	UndefValue       = Value{Kind: KindUndef}
	UnsupportedValue = Value{Kind: KindUnsupported}
)

// Str returns a string value.
func Str(s string) Value { return Value{Kind: KindString, Text: s} }

// Num returns a number value kept in its source spelling.
func Num(text string) Value { return Value{Kind: KindNumber, Text: text} }

// BoolVal returns a boolean value.
func BoolVal(b bool) Value {
	if b {
		return Value{Kind: KindBool, Text: "true"}
	}
	return Value{Kind: KindBool, Text: "false"}
}

// ValueOf maps a rendered string back to a value, recognizing the
// undefined and unsupported markers.
func ValueOf(s string) Value {
	switch s {
	case state.Undefined:
		return UndefValue
	case state.Unsupported:
		return UnsupportedValue
	}
	return Str(s)
}

// String renders the value the way it is written into a system state.
func (v Value) String() string {
	switch v.Kind {
	case KindUndef:
		return state.Undefined
	case KindUnsupported:
		return state.Unsupported
	}
	return v.Text
}

// Concrete reports whether the value is a plain string, number or boolean.
func (v Value) Concrete() bool {
	return v.Kind == KindString || v.Kind == KindNumber || v.Kind == KindBool
}

// Truth returns the boolean the value stands for, if any.
func (v Value) Truth() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.Text == "true", true
}

// Apply evaluates a binary operator over normal-form operands.
// Unsupported operands poison the result; undefined ones make it undefined.
func Apply(op BinOp, a, b Value) Value {
	if a.Kind == KindUnsupported || b.Kind == KindUnsupported {
		return UnsupportedValue
	}
	switch op {
	case OpConcat:
		if a.Kind == KindUndef || b.Kind == KindUndef {
			return UndefValue
		}
		return Str(a.Text + b.Text)
	case OpEq:
		if a.Kind == KindUndef || b.Kind == KindUndef {
			return UndefValue
		}
		return BoolVal(a.Text == b.Text)
	case OpAnd, OpOr:
		x, okA := a.Truth()
		y, okB := b.Truth()
		if !okA || !okB {
			return UndefValue
		}
		if op == OpAnd {
			return BoolVal(x && y)
		}
		return BoolVal(x || y)
	}
	return UnsupportedValue
}

// Negate evaluates boolean negation.
func Negate(v Value) Value {
	if v.Kind == KindUnsupported {
		return v
	}
	b, ok := v.Truth()
	if !ok {
		return UndefValue
	}
	return BoolVal(!b)
}
