package api

// Tech names the IaC dialect a script was written in.
type Tech string

const (
	Puppet    Tech = "puppet"
	Ansible   Tech = "ansible"
	Terraform Tech = "terraform"
)

// Position is a source span. Lines and columns are 1-based byte positions;
// the end is exclusive.
type Position struct {
	Line      int `json:"line"`
	Column    int `json:"column"`
	EndLine   int `json:"end_line"`
	EndColumn int `json:"end_column"`
}

// Pos returns the span itself so that every element embedding a Position
// exposes it the same way.
func (p Position) Pos() Position { return p }

// Valid reports whether the span points into a source file.
func (p Position) Valid() bool { return p.Line > 0 && p.Column > 0 }

// Expr is the closed set of expression shapes a front-end may produce.
// Shapes the repair engine does not model arrive as *Unsupported.
type Expr interface {
	Pos() Position
	expr()
}

// String is a string literal. Value holds the unescaped text.
type String struct {
	Value string
	Position
}

// Number is a numeric literal kept in its source spelling (e.g. "0755").
type Number struct {
	Text string
	Position
}

// Boolean is a boolean literal.
type Boolean struct {
	Value bool
	Position
}

// Null is an explicit null/undef literal, also used for parameters without
// a default value.
type Null struct {
	Position
}

// VariableReference names a script variable, without dialect sigils.
type VariableReference struct {
	Name string
	Position
}

// BinOp is the operator of a BinaryExpr.
type BinOp string

const (
	OpSum   BinOp = "sum" // string concatenation / interpolation
	OpEqual BinOp = "equal"
	OpAnd   BinOp = "and"
	OpOr    BinOp = "or"
)

// BinaryExpr is a binary operation.
type BinaryExpr struct {
	Op          BinOp
	Left, Right Expr
	Position
}

// Not is boolean negation.
type Not struct {
	X Expr
	Position
}

// Unsupported is any expression shape outside the model (hashes, arrays,
// function calls...). Kind carries the front-end's name for it.
type Unsupported struct {
	Kind string
	Position
}

func (*String) expr()            {}
func (*Number) expr()            {}
func (*Boolean) expr()           {}
func (*Null) expr()              {}
func (*VariableReference) expr() {}
func (*BinaryExpr) expr()        {}
func (*Not) expr()               {}
func (*Unsupported) expr()       {}

// Attribute is a `key => value` pair of a resource, or a parameter of a
// defined type when it belongs to a UnitBlock. The span covers the whole
// pair; Value carries its own span.
type Attribute struct {
	Name  string
	Value Expr
	Position
}

// Variable is a script-level assignment.
type Variable struct {
	Name  string
	Value Expr
	Position
}

// AtomicUnit is a single resource declaration.
type AtomicUnit struct {
	Name       Expr
	Type       string
	Attributes []*Attribute
	Position
}

// Attribute returns the first attribute spelled as one of names.
func (u *AtomicUnit) Attribute(names ...string) *Attribute {
	for _, a := range u.Attributes {
		for _, n := range names {
			if a.Name == n {
				return a
			}
		}
	}
	return nil
}

// Body is an ordered statement list.
type Body struct {
	Variables    []*Variable
	AtomicUnits  []*AtomicUnit
	Conditionals []*Conditional
}

// Conditional is an if/elsif/else chain. A nil Condition marks a plain else.
type Conditional struct {
	Condition Expr
	Body
	Else *Conditional
	Position
}

// BlockKind distinguishes scopes that expand in place from templates.
type BlockKind string

const (
	BlockScript     BlockKind = "script"
	BlockDefinition BlockKind = "definition"
	BlockClass      BlockKind = "class"
	BlockPlay       BlockKind = "play"
)

// UnitBlock is a nested scope. Definitions are templates instantiated by
// atomic units whose Type equals the block Name.
type UnitBlock struct {
	Name       string
	Kind       BlockKind
	Attributes []*Attribute
	Body
	UnitBlocks []*UnitBlock
	Position
}

// Script is the root handed over by a front-end.
type Script struct {
	Tech  Tech
	Path  string
	Block *UnitBlock
}
