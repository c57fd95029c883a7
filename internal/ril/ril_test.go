package ril

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sr-lab/GLITCH-sub000/internal/state"
)

func str(s string) Expr { return Const{V: Str(s)} }

func fileProgram() Stmt {
	return Sequence(
		Attr{Path: str("/var/www"), Name: "state", Value: Labeled{Label: 1, X: str("present")}},
		Attr{Path: str("/var/www"), Name: "mode", Value: Labeled{Label: 2, X: str("0755")}},
		Attr{Path: str("/var/www"), Name: "owner", Value: Labeled{Label: 3, X: str("web_admin")}},
		Attr{Path: str("/var/www"), Name: "content", Value: Labeled{Label: -1, X: Undef{}}},
	)
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []string{"x"}, Candidates("x"))
	assert.Equal(t, []string{"a::x", "x"}, Candidates("a::x"))
	assert.Equal(t, []string{"a::b::c::x", "a::b::x", "a::x", "x"}, Candidates("a::b::c::x"))
}

func TestScope(t *testing.T) {
	var s Scope
	assert.Equal(t, "x", s.Qualify("x"))

	inner := s.Push("site#1").Push("if#2")
	assert.Equal(t, "site#1::if#2::x", inner.Qualify("x"))
	assert.Equal(t, "site#1::y", inner.Pop().Qualify("y"))
	assert.Empty(t, s)
}

func TestEnv_Lookup(t *testing.T) {
	var env *Env[Value]
	_, ok := env.Lookup("x")
	assert.False(t, ok)

	env = env.Bind("x", Str("outer")).Bind("site#1::mode", Str("0600"))

	v, ok := env.Lookup("site#1::x")
	require.True(t, ok)
	assert.Equal(t, Str("outer"), v)

	v, ok = env.Lookup("site#1::if#2::mode")
	require.True(t, ok)
	assert.Equal(t, Str("0600"), v)

	_, ok = env.Lookup("other#3::mode")
	assert.False(t, ok)

	shadow := env.Bind("x", Str("inner"))
	v, _ = shadow.Lookup("x")
	assert.Equal(t, Str("inner"), v)
}

func TestEval(t *testing.T) {
	env := (*Env[Value])(nil).Bind("name", Str("www"))

	assert.Equal(t, Str("/var/www"), Eval(Binary{Op: OpConcat, L: str("/var/"), R: Ref{ID: "name"}}, env))
	assert.Equal(t, UndefValue, Eval(Binary{Op: OpConcat, L: str("/var/"), R: Ref{ID: "missing"}}, env))
	assert.Equal(t, UnsupportedValue, Eval(Binary{Op: OpConcat, L: Unsupported{}, R: Undef{}}, env))
	assert.Equal(t, BoolVal(true), Eval(Binary{Op: OpEq, L: Ref{ID: "name"}, R: str("www")}, env))
	assert.Equal(t, BoolVal(false), Eval(Unary{Op: OpNot, X: Const{V: BoolVal(true)}}, env))
	assert.Equal(t, UndefValue, Eval(Unary{Op: OpNot, X: Ref{ID: "cond"}}, env))
	assert.Equal(t, Num("0755"), Eval(Labeled{Label: 4, X: Const{V: Num("0755")}}, env))

	assert.Equal(t, "undefined", UndefValue.String())
	assert.Equal(t, UndefValue, ValueOf("undefined"))
	assert.Equal(t, Str("x"), ValueOf("x"))
}

func TestToFilesystem_SingleWorldAndIdempotent(t *testing.T) {
	prog := fileProgram()
	worlds := ToFilesystem(prog)
	require.Len(t, worlds, 1)
	assert.Equal(t, state.System{"/var/www": {
		"state": "present", "mode": "0755", "owner": "web_admin", "content": "undefined",
	}}, worlds[0])

	again := Run(prog, worlds[0])
	require.Len(t, again, 1)
	assert.True(t, again[0].Equal(worlds[0]))
}

func TestToFilesystem_Conditional(t *testing.T) {
	prog := Sequence(
		Attr{Path: str("/etc/app"), Name: "state", Value: str("present")},
		If{
			Pred: Ref{ID: "cond#1"},
			Cons: Attr{Path: str("/etc/app"), Name: "mode", Value: str("0600")},
			Alt:  Attr{Path: str("/etc/app"), Name: "mode", Value: str("0644")},
		},
	)
	worlds := ToFilesystem(prog)
	require.Len(t, worlds, 2)
	assert.Equal(t, "0600", worlds[0]["/etc/app"]["mode"])
	assert.Equal(t, "0644", worlds[1]["/etc/app"]["mode"])
	assert.Equal(t, "present", worlds[1]["/etc/app"]["state"])

	concrete := If{
		Pred: Binary{Op: OpEq, L: str("a"), R: str("a")},
		Cons: Attr{Path: str("/x"), Name: "state", Value: str("present")},
		Alt:  Attr{Path: str("/x"), Name: "state", Value: str("absent")},
	}
	worlds = ToFilesystem(concrete)
	require.Len(t, worlds, 1)
	assert.Equal(t, "present", worlds[0]["/x"]["state"])

	same := If{Pred: Ref{ID: "c"}, Cons: Attr{Path: str("/x"), Name: "state", Value: str("present")}, Alt: Attr{Path: str("/x"), Name: "state", Value: str("present")}}
	assert.Len(t, ToFilesystem(same), 1)
}

func TestToFilesystem_LetAndCopy(t *testing.T) {
	prog := Let{
		ID:    "src",
		Value: Labeled{Label: 1, X: str("/tmp/a")},
		Label: 1,
		Body: Sequence(
			Attr{Path: Ref{ID: "src"}, Name: "content", Value: str("hello")},
			Attr{Path: Ref{ID: "src"}, Name: "mode", Value: str("0600")},
			Cp{Src: Ref{ID: "src"}, Dst: str("/tmp/b")},
			Attr{Path: str("/tmp/b"), Name: "mode", Value: str("0644")},
		),
	}
	worlds := ToFilesystem(prog)
	require.Len(t, worlds, 1)
	assert.Equal(t, state.Record{"content": "hello", "mode": "0600"}, worlds[0]["/tmp/a"])
	assert.Equal(t, state.Record{"content": "hello", "mode": "0644"}, worlds[0]["/tmp/b"])
	assert.Equal(t, []string{"/tmp/a", "/tmp/b"}, Paths(prog))
}

func TestMinimize(t *testing.T) {
	prog := Let{
		ID: "a", Value: Labeled{Label: 10, X: str("0600")}, Label: 10,
		Body: Let{
			ID: "b", Value: Ref{ID: "a"},
			Body: Sequence(
				Attr{Path: str("/keep"), Name: "state", Value: Labeled{Label: 1, X: str("present")}},
				Attr{Path: str("/drop"), Name: "mode", Value: Ref{ID: "b"}},
				If{
					Pred: Ref{ID: "cond#1"},
					Cons: Attr{Path: str("/drop"), Name: "owner", Value: str("root")},
					Alt:  Skip{},
				},
				Cp{Src: str("/drop"), Dst: str("/keep")},
			),
		},
	}

	got := Minimize(prog, []string{"/keep"})
	want := Sequence(
		Attr{Path: str("/keep"), Name: "state", Value: Labeled{Label: 1, X: str("present")}},
		Cp{Src: str("/drop"), Dst: str("/keep")},
	)
	assert.Equal(t, want, got)
	assert.Equal(t, []Label{1}, Labels(got))

	kept := Minimize(prog, []string{"/drop"})
	assert.Equal(t, []Label{10}, Labels(kept))
	assert.True(t, References(kept, "a"))
	assert.Equal(t, []string{"/drop", "/keep"}, Paths(kept))

	assert.Equal(t, Skip{}, Minimize(prog, []string{"/elsewhere"}))
}

func TestLabelsAndFormat(t *testing.T) {
	prog := fileProgram()
	assert.Equal(t, []Label{-1, 1, 2, 3}, Labels(prog))

	out := Format(Let{ID: "x", Value: str("v"), Body: If{Pred: Ref{ID: "c"}, Cons: fileProgram(), Alt: Skip{}}})
	assert.Contains(t, out, "let x = \"v\" in\n")
	assert.Contains(t, out, "    attr(\"/var/www\", mode, #2(\"0755\"))\n")
	assert.Contains(t, out, "  else\n    skip\n")
}
