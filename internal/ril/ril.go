// Package ril defines the repair intermediate language: a small language of
// expressions and statements whose meaning is a transformation over a
// system state.
package ril

import (
	"fmt"
	"strconv"
	"strings"
)

// Label identifies one repairable literal. Positive labels belong to source
// elements, negative ones to sketched (absent) attributes.
type Label int

// Expr is the closed set of RIL expressions.
type Expr interface {
	fmt.Stringer
	isExpr()
}

// Undef is the undefined value.
type Undef struct{}

// Unsupported marks an expression the compiler could not model.
type Unsupported struct{}

// Const is a string, number or boolean constant.
type Const struct {
	V Value
}

// Ref references a scope-qualified variable.
type Ref struct {
	ID string
}

// UnOp is a unary operator.
type UnOp string

const OpNot UnOp = "!"

// Unary applies a unary operator.
type Unary struct {
	Op UnOp
	X  Expr
}

// BinOp is a binary operator.
type BinOp string

const (
	OpConcat BinOp = "++"
	OpEq     BinOp = "=="
	OpAnd    BinOp = "&&"
	OpOr     BinOp = "||"
)

// Binary applies a binary operator.
type Binary struct {
	Op   BinOp
	L, R Expr
}

// Labeled pairs a label with the literal's default expression. The solver
// may keep the default or replace it with a hole.
type Labeled struct {
	Label Label
	X     Expr
}

func (Undef) isExpr()       {}
func (Unsupported) isExpr() {}
func (Const) isExpr()       {}
func (Ref) isExpr()         {}
func (Unary) isExpr()       {}
func (Binary) isExpr()      {}
func (Labeled) isExpr()     {}

func (Undef) String() string       { return "undef" }
func (Unsupported) String() string { return "unsupported" }

func (c Const) String() string {
	if c.V.Kind == KindString {
		return strconv.Quote(c.V.Text)
	}
	return c.V.String()
}

func (r Ref) String() string   { return "$" + r.ID }
func (u Unary) String() string { return string(u.Op) + u.X.String() }
func (b Binary) String() string {
	return "(" + b.L.String() + " " + string(b.Op) + " " + b.R.String() + ")"
}
func (l Labeled) String() string { return fmt.Sprintf("#%d(%s)", l.Label, l.X) }

// Stmt is the closed set of RIL statements.
type Stmt interface {
	isStmt()
}

// Skip does nothing.
type Skip struct{}

// Attr sets attribute Name of the record at Path.
type Attr struct {
	Path  Expr
	Name  string
	Value Expr
}

// Cp copies every attribute of Src onto Dst.
type Cp struct {
	Src, Dst Expr
}

// Seq runs L then R.
type Seq struct {
	L, R Stmt
}

// Let binds ID to Value within Body. Label is the label of the bound
// literal, zero when the value is not repairable.
type Let struct {
	ID    string
	Value Expr
	Label Label
	Body  Stmt
}

// If runs Cons or Alt depending on Pred; when Pred is not a concrete
// boolean both are possible.
type If struct {
	Pred      Expr
	Cons, Alt Stmt
}

func (Skip) isStmt() {}
func (Attr) isStmt() {}
func (Cp) isStmt()   {}
func (Seq) isStmt()  {}
func (Let) isStmt()  {}
func (If) isStmt()   {}

// Sequence folds statements into a right-nested Seq, dropping Skips.
func Sequence(stmts ...Stmt) Stmt {
	var out Stmt = Skip{}
	for i := len(stmts) - 1; i >= 0; i-- {
		s := stmts[i]
		if _, ok := s.(Skip); ok {
			continue
		}
		if _, ok := out.(Skip); ok {
			out = s
			continue
		}
		out = Seq{L: s, R: out}
	}
	return out
}

// Format pretty-prints a program, one statement per line.
func Format(s Stmt) string {
	var b strings.Builder
	format(&b, s, 0)
	return b.String()
}

func format(b *strings.Builder, s Stmt, depth int) {
	indent := strings.Repeat("  ", depth)
	switch s := s.(type) {
	case Skip:
		fmt.Fprintf(b, "%sskip\n", indent)
	case Attr:
		fmt.Fprintf(b, "%sattr(%s, %s, %s)\n", indent, s.Path, s.Name, s.Value)
	case Cp:
		fmt.Fprintf(b, "%scp(%s, %s)\n", indent, s.Src, s.Dst)
	case Seq:
		format(b, s.L, depth)
		format(b, s.R, depth)
	case Let:
		fmt.Fprintf(b, "%slet %s = %s in\n", indent, s.ID, s.Value)
		format(b, s.Body, depth+1)
	case If:
		fmt.Fprintf(b, "%sif %s then\n", indent, s.Pred)
		format(b, s.Cons, depth+1)
		fmt.Fprintf(b, "%selse\n", indent)
		format(b, s.Alt, depth+1)
	}
}
