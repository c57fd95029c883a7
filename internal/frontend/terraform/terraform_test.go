package terraform

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sr-lab/GLITCH-sub000/api"
	"github.com/sr-lab/GLITCH-sub000/internal/compiler"
	"github.com/sr-lab/GLITCH-sub000/internal/frontend/span"
	"github.com/sr-lab/GLITCH-sub000/internal/label"
	"github.com/sr-lab/GLITCH-sub000/internal/patch"
	"github.com/sr-lab/GLITCH-sub000/internal/ril"
	"github.com/sr-lab/GLITCH-sub000/internal/solver"
	"github.com/sr-lab/GLITCH-sub000/internal/state"
)

const mainTF = `variable "mode" {
  default = "0644"
}

variable "enabled" {
  default = true
}

variable "region" {}

locals {
  dir = "/srv/app"
}

resource "local_file" "config" {
  count           = var.enabled ? 1 : 0
  filename        = "${local.dir}/config.ini"
  content         = "debug = false"
  file_permission = var.mode
}

resource "local_file" "readme" {
  filename = "/srv/app/README"
}

provider "local" {}
`

func text(t *testing.T, src string, p api.Position) string {
	t.Helper()
	require.True(t, p.Valid(), "position %+v", p)
	x := span.New([]byte(src))
	return src[x.Offset(p.Line, p.Column):x.Offset(p.EndLine, p.EndColumn)]
}

func TestParse_Config(t *testing.T) {
	s, err := Parse("main.tf", []byte(mainTF))
	require.NoError(t, err)
	assert.Equal(t, api.Terraform, s.Tech)

	vars := s.Block.Variables
	require.Len(t, vars, 3)
	assert.Equal(t, "var.mode", vars[0].Name)
	assert.Equal(t, `default = "0644"`, text(t, mainTF, vars[0].Position))
	assert.Equal(t, `"0644"`, text(t, mainTF, vars[0].Value.Pos()))
	assert.Equal(t, "var.enabled", vars[1].Name)
	assert.Equal(t, &api.Boolean{Value: true, Position: vars[1].Value.Pos()}, vars[1].Value)
	assert.Equal(t, "local.dir", vars[2].Name)

	require.Len(t, s.Block.AtomicUnits, 1)
	readme := s.Block.AtomicUnits[0]
	assert.Equal(t, "local_file", readme.Type)
	assert.Equal(t, "readme", readme.Name.(*api.String).Value)
	assert.True(t, strings.HasPrefix(text(t, mainTF, readme.Position), `resource "local_file" "readme" {`))
	assert.True(t, strings.HasSuffix(text(t, mainTF, readme.Position), "}"))

	require.Len(t, s.Block.Conditionals, 1)
	cond := s.Block.Conditionals[0]
	assert.Equal(t, &api.VariableReference{Name: "var.enabled", Position: cond.Condition.Pos()}, cond.Condition)
	require.Len(t, cond.AtomicUnits, 1)
	config := cond.AtomicUnits[0]
	require.Len(t, config.Attributes, 3, "count is a meta-argument")

	filename := config.Attribute("filename")
	bin, ok := filename.Value.(*api.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, api.OpSum, bin.Op)
	assert.Equal(t, "local.dir", bin.Left.(*api.VariableReference).Name)
	assert.Equal(t, "/config.ini", bin.Right.(*api.String).Value)

	mode := config.Attribute("file_permission")
	assert.Equal(t, "var.mode", mode.Value.(*api.VariableReference).Name)
	assert.Equal(t, "file_permission = var.mode", text(t, mainTF, mode.Position))
}

func TestParse_Count(t *testing.T) {
	src := `resource "local_file" "a" {
  count    = var.off ? 0 : 1
  filename = "/a"
}
resource "local_file" "b" {
  count    = 0
  filename = "/b"
}
resource "local_file" "c" {
  count    = 1
  filename = "/c"
}
`
	s, err := Parse("count.tf", []byte(src))
	require.NoError(t, err)
	require.Len(t, s.Block.Conditionals, 1)
	not, ok := s.Block.Conditionals[0].Condition.(*api.Not)
	require.True(t, ok)
	assert.Equal(t, "var.off", not.X.(*api.VariableReference).Name)
	require.Len(t, s.Block.AtomicUnits, 1)
	assert.Equal(t, "c", s.Block.AtomicUnits[0].Name.(*api.String).Value)
}

func TestParse_Expressions(t *testing.T) {
	src := `locals {
  a = var.x == "y" && !var.z
  b = upper("x")
  c = 3
  d = null
  e = path.module
}
`
	s, err := Parse("expr.tf", []byte(src))
	require.NoError(t, err)
	vars := s.Block.Variables
	require.Len(t, vars, 5)

	and, ok := vars[0].Value.(*api.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, api.OpAnd, and.Op)
	assert.Equal(t, api.OpEqual, and.Left.(*api.BinaryExpr).Op)
	assert.IsType(t, &api.Not{}, and.Right)

	assert.Equal(t, "call", vars[1].Value.(*api.Unsupported).Kind)
	assert.Equal(t, "3", vars[2].Value.(*api.Number).Text)
	assert.IsType(t, &api.Null{}, vars[3].Value)
	assert.Equal(t, "reference", vars[4].Value.(*api.Unsupported).Kind)
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse("bad.tf", []byte(`resource "local_file" "x" {`))
	require.Error(t, err)
}

func TestCompile_CountForks(t *testing.T) {
	s, err := Parse("main.tf", []byte(mainTF))
	require.NoError(t, err)
	worlds := ril.ToFilesystem(compiler.Compile(label.Label(s)))
	require.Len(t, worlds, 2)

	var enabled state.Record
	for _, w := range worlds {
		if rec, ok := w["/srv/app/config.ini"]; ok {
			enabled = rec
		}
		assert.Equal(t, state.Present, w["/srv/app/README"][state.AttrState])
	}
	require.NotNil(t, enabled)
	assert.Equal(t, "0644", enabled[state.AttrMode])
	assert.Equal(t, "debug = false", enabled[state.AttrContent])
}

func TestRepair_SketchLine(t *testing.T) {
	s, err := Parse("main.tf", []byte(mainTF))
	require.NoError(t, err)
	ls := label.Label(s)
	prog := compiler.Compile(ls)

	sys := state.System{"/srv/app/README": {state.AttrState: state.Present, state.AttrMode: "0600"}}
	models, err := solver.New(solver.Config{}).Solve(context.Background(), prog, sys)
	require.NoError(t, err)
	require.Len(t, models, 1)

	changes, err := patch.Changes(models[0], ls)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, patch.AddSketch, changes[0].Kind)

	res, err := patch.Apply(ls, []byte(mainTF), changes)
	require.NoError(t, err)
	assert.Contains(t, string(res.Source),
		"resource \"local_file\" \"readme\" {\n  filename = \"/srv/app/README\"\n  file_permission = \"0600\"\n}\n")

	_, err = Parse("main.tf", res.Source)
	require.NoError(t, err)
}

func TestParse_NumberSpelling(t *testing.T) {
	src := `locals {
  mode  = 0644
  ratio = 1.50
}
`
	s, err := Parse("num.tf", []byte(src))
	require.NoError(t, err)
	require.Len(t, s.Block.Variables, 2)
	assert.Equal(t, "0644", s.Block.Variables[0].Value.(*api.Number).Text)
	assert.Equal(t, "1.50", s.Block.Variables[1].Value.(*api.Number).Text)
}

func TestRepair_NumericModeAlreadyMatches(t *testing.T) {
	src := `resource "local_file" "key" {
  filename        = "/srv/key"
  file_permission = 0644
}
`
	s, err := Parse("key.tf", []byte(src))
	require.NoError(t, err)
	ls := label.Label(s)
	sys := state.System{"/srv/key": {state.AttrState: state.Present, state.AttrMode: "0644"}}
	models, err := solver.New(solver.Config{}).Solve(context.Background(), compiler.Compile(ls), sys)
	require.NoError(t, err)
	require.Len(t, models, 1)

	changes, err := patch.Changes(models[0], ls)
	require.NoError(t, err)
	assert.Empty(t, changes)
}
