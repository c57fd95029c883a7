package ansible

import (
	"context"
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

const sitePlaybook = `- name: web
  hosts: all
  vars:
    owner: web_admin
  tasks:
    - name: index page
      file:
        path: /var/www/index.html
        state: absent
        owner: "{{ owner }}"
        mode: '0755'  # world readable
    - name: motd
      copy:
        dest: /etc/motd
        content: |
          hello
          world
      when: greet and not quiet
    - name: nginx
      service: {name: nginx, state: started}
`

func text(t *testing.T, src string, p api.Position) string {
	t.Helper()
	require.True(t, p.Valid(), "position %+v", p)
	x := span.New([]byte(src))
	return src[x.Offset(p.Line, p.Column):x.Offset(p.EndLine, p.EndColumn)]
}

func TestParse_Playbook(t *testing.T) {
	s, err := Parse("site.yml", []byte(sitePlaybook))
	require.NoError(t, err)
	assert.Equal(t, api.Ansible, s.Tech)
	require.Len(t, s.Block.UnitBlocks, 1)

	play := s.Block.UnitBlocks[0]
	assert.Equal(t, "web", play.Name)
	assert.Equal(t, api.BlockPlay, play.Kind)
	require.Len(t, play.Variables, 1)
	assert.Equal(t, "owner", play.Variables[0].Name)
	assert.Equal(t, &api.String{Value: "web_admin", Position: play.Variables[0].Value.Pos()}, play.Variables[0].Value)
	assert.Equal(t, "owner: web_admin", text(t, sitePlaybook, play.Variables[0].Position))

	require.Len(t, play.AtomicUnits, 2)
	file := play.AtomicUnits[0]
	assert.Equal(t, "file", file.Type)
	assert.Equal(t, &api.String{Value: "index page", Position: file.Name.Pos()}, file.Name)
	require.Len(t, file.Attributes, 4)
	mode := file.Attribute("mode")
	require.NotNil(t, mode)
	assert.Equal(t, "mode: '0755'", text(t, sitePlaybook, mode.Position))
	assert.Equal(t, "'0755'", text(t, sitePlaybook, mode.Value.Pos()))
	owner := file.Attribute("owner")
	assert.Equal(t, &api.VariableReference{Name: "owner", Position: owner.Value.Pos()}, owner.Value)
	assert.Equal(t, `"{{ owner }}"`, text(t, sitePlaybook, owner.Value.Pos()))
	assert.Equal(t, "file:\n        path: /var/www/index.html\n        state: absent\n        owner: \"{{ owner }}\"\n        mode: '0755'",
		text(t, sitePlaybook, file.Position))

	service := play.AtomicUnits[1]
	assert.Equal(t, "service", service.Type)
	assert.Equal(t, "service: {name: nginx, state: started}", text(t, sitePlaybook, service.Position))
	assert.Equal(t, "state: started", text(t, sitePlaybook, service.Attribute("state").Position))

	require.Len(t, play.Conditionals, 1)
	cond := play.Conditionals[0]
	assert.Equal(t, &api.BinaryExpr{
		Op:       api.OpAnd,
		Left:     &api.VariableReference{Name: "greet"},
		Right:    &api.Not{X: &api.VariableReference{Name: "quiet"}},
		Position: cond.Condition.Pos(),
	}, cond.Condition)
	require.Len(t, cond.AtomicUnits, 1)
	content := cond.AtomicUnits[0].Attribute("content")
	assert.Equal(t, "hello\nworld\n", content.Value.(*api.String).Value)
	assert.Equal(t, "content: |\n          hello\n          world", text(t, sitePlaybook, content.Position))
}

func TestParse_TaskList(t *testing.T) {
	src := "- apt:\n    name: nginx\n    state: present\n- name: greet\n  debug: msg=hi\n"
	s, err := Parse("tasks.yml", []byte(src))
	require.NoError(t, err)
	require.Len(t, s.Block.AtomicUnits, 2)
	apt := s.Block.AtomicUnits[0]
	assert.Equal(t, "apt", apt.Type)
	assert.Equal(t, &api.String{Value: "apt"}, apt.Name)
	assert.Len(t, apt.Attributes, 2)
	assert.Empty(t, s.Block.AtomicUnits[1].Attributes)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("bad.yml", []byte("a: [1, 2"))
	require.Error(t, err)

	_, err = Parse("map.yml", []byte("hosts: all\n"))
	require.ErrorIs(t, err, ErrLayout)

	s, err := Parse("empty.yml", nil)
	require.NoError(t, err)
	assert.Empty(t, s.Block.AtomicUnits)
}

func TestTemplate(t *testing.T) {
	e := template("/srv/{{ site }}/index.html", api.Position{Line: 1, Column: 1, EndLine: 1, EndColumn: 10})
	bin, ok := e.(*api.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, &api.String{Value: "/index.html"}, bin.Right)
	assert.Equal(t, &api.BinaryExpr{Op: api.OpSum, Left: &api.String{Value: "/srv/"}, Right: &api.VariableReference{Name: "site"}}, bin.Left)

	assert.Equal(t, &api.Unsupported{Kind: "jinja"}, template("{{ x | default('a') }}", api.Position{}))
}

func TestJinja(t *testing.T) {
	assert.Equal(t, &api.Not{X: &api.BinaryExpr{
		Op: api.OpEqual, Left: &api.VariableReference{Name: "env"}, Right: &api.String{Value: "prod"},
	}}, jinja("env != 'prod'"))
	assert.Equal(t, &api.Boolean{Value: true}, jinja("{{ True }}"))
	assert.Equal(t, &api.Unsupported{Kind: "jinja"}, jinja("x is defined"))
	assert.Equal(t, &api.Unsupported{Kind: "jinja"}, jinja("(a or b)"))
}

// A file present on the system but declared absent is repaired by spelling
// the module's own word for a regular file.
func TestRepair_StateReversal(t *testing.T) {
	s, err := Parse("site.yml", []byte(sitePlaybook))
	require.NoError(t, err)
	ls := label.Label(s)
	prog := compiler.Compile(ls)

	sys := state.System{
		"/var/www/index.html": {
			state.AttrState: state.Present,
			state.AttrOwner: "web_admin",
			state.AttrMode:  "0755",
		},
	}
	models, err := solver.New(solver.Config{}).Solve(context.Background(), prog, sys)
	require.NoError(t, err)
	require.Len(t, models, 1)

	changes, err := patch.Changes(models[0], ls)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "file", changes[0].Value)

	res, err := patch.Apply(ls, []byte(sitePlaybook), changes)
	require.NoError(t, err)
	assert.Contains(t, string(res.Source), "        state: file\n")
	assert.NotContains(t, string(res.Source), "absent")

	_, err = Parse("site.yml", res.Source)
	require.NoError(t, err)
	worlds := ril.ToFilesystem(prog)
	assert.NotEmpty(t, worlds)
}
