package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sr-lab/GLITCH-sub000/api"
	"github.com/sr-lab/GLITCH-sub000/internal/label"
	"github.com/sr-lab/GLITCH-sub000/internal/ril"
	"github.com/sr-lab/GLITCH-sub000/internal/scripttest"
	"github.com/sr-lab/GLITCH-sub000/internal/state"
)

const indexPP = `$owner = 'web_admin'
file { '/var/www/index.html':
  ensure => 'present',
  mode   => '0755',
  owner  => $owner,
}
`

func indexScript() *api.Script {
	b := scripttest.New(api.Puppet, "index.pp", indexPP)
	b.Var("$owner", "'web_admin'")
	u := b.Unit("file", "'/var/www/index.html'")
	b.Attr(u, "ensure", "'present'")
	b.Attr(u, "mode", "'0755'")
	b.Attr(u, "owner", "$owner")
	b.End(u)
	return b.Build()
}

func str(s string) ril.Const { return ril.Const{V: ril.Str(s)} }

func TestCompile_FileResource(t *testing.T) {
	prog := Compile(label.Label(indexScript()))

	path := str("/var/www/index.html")
	want := ril.Let{
		ID:    "owner",
		Value: ril.Labeled{Label: 1, X: str("web_admin")},
		Label: 1,
		Body: ril.Sequence(
			ril.Attr{Path: path, Name: state.AttrState, Value: ril.Labeled{Label: 2, X: str("present")}},
			ril.Attr{Path: path, Name: state.AttrContent, Value: ril.Labeled{Label: -1, X: ril.Undef{}}},
			ril.Attr{Path: path, Name: state.AttrOwner, Value: ril.Labeled{Label: 4, X: ril.Ref{ID: "owner"}}},
			ril.Attr{Path: path, Name: state.AttrMode, Value: ril.Labeled{Label: 3, X: str("0755")}},
		),
	}
	if diff := cmp.Diff(want, prog); diff != "" {
		t.Errorf("Compile mismatch (-want +got):\n%s", diff)
	}

	worlds := ril.ToFilesystem(prog)
	require.Len(t, worlds, 1)
	assert.Equal(t, state.Record{
		state.AttrState:   state.Present,
		state.AttrContent: state.Undefined,
		state.AttrMode:    "0755",
		state.AttrOwner:   "web_admin",
	}, worlds[0]["/var/www/index.html"])
}

func TestCompile_Deterministic(t *testing.T) {
	ls := label.Label(indexScript())
	first := Compile(ls)
	second := Compile(ls)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("recompilation differs (-first +second):\n%s", diff)
	}
	// a fresh labeling of the same AST compiles to the same program too
	third := Compile(label.Label(ls.Script))
	assert.Empty(t, cmp.Diff(first, third))
}

const duplicatePP = `file { '/etc/motd':
  content => 'one',
}
file { '/etc/motd':
  content => 'two',
}
`

func TestCompile_DuplicateResourceLastWins(t *testing.T) {
	b := scripttest.New(api.Puppet, "motd.pp", duplicatePP)
	first := b.Unit("file", "'/etc/motd'")
	b.Attr(first, "content", "'one'")
	b.End(first)
	second := b.Unit("file", "'/etc/motd'")
	b.Attr(second, "content", "'two'")
	b.End(second)
	ls := label.Label(b.Build())

	prog := Compile(ls)

	firstLabel, _ := ls.LabelOf(first.Attributes[0])
	secondLabel, _ := ls.LabelOf(second.Attributes[0])
	labels := ril.Labels(prog)
	assert.NotContains(t, labels, firstLabel)
	assert.Contains(t, labels, secondLabel)

	worlds := ril.ToFilesystem(prog)
	require.Len(t, worlds, 1)
	assert.Equal(t, "two", worlds[0]["/etc/motd"][state.AttrContent])
}

const sitePP = `define site($mode = '0644') {
  file { "/srv/${title}":
    mode => $mode,
  }
}
site { 'blog':
  mode => '0600',
}
site { 'shop': }
`

func TestCompile_DefinedTypeInstances(t *testing.T) {
	b := scripttest.New(api.Puppet, "site.pp", sitePP)
	b.Define("site")
	b.Param("$mode", "'0644'")
	inner := b.Unit("file", `"/srv/${title}"`)
	b.Attr(inner, "mode", "$mode")
	b.End(inner)
	b.EndBlock()
	blog := b.Unit("site", "'blog'")
	b.Attr(blog, "mode", "'0600'")
	b.End(blog)
	shop := b.Unit("site", "'shop'")
	b.End(shop)
	ls := label.Label(b.Build())

	prog := Compile(ls)
	text := ril.Format(prog)
	assert.Contains(t, text, `let site#1::title = "blog" in`)
	assert.Contains(t, text, `let site#2::title = "shop" in`)
	assert.Contains(t, text, `let site#1::mode = #1("0600") in`)
	assert.Contains(t, text, `let site#2::mode = #2("0644") in`)

	worlds := ril.ToFilesystem(prog)
	require.Len(t, worlds, 1)
	assert.Equal(t, "0600", worlds[0]["/srv/blog"][state.AttrMode])
	assert.Equal(t, "0644", worlds[0]["/srv/shop"][state.AttrMode])
	assert.Equal(t, state.Undefined, worlds[0]["/srv/shop"][state.AttrOwner])
}

const conditionalPP = `if $facts['os'] == 'Debian' {
  file { '/etc/apt/sources.list':
    ensure => 'present',
  }
} else {
  file { '/etc/yum.conf':
    ensure => 'absent',
  }
}
`

func TestCompile_ConditionalForks(t *testing.T) {
	b := scripttest.New(api.Puppet, "cond.pp", conditionalPP)
	b.If("$facts['os'] == 'Debian'")
	apt := b.Unit("file", "'/etc/apt/sources.list'")
	b.Attr(apt, "ensure", "'present'")
	b.End(apt)
	b.Else()
	yum := b.Unit("file", "'/etc/yum.conf'")
	b.Attr(yum, "ensure", "'absent'")
	b.End(yum)
	b.EndIf()

	prog := Compile(label.Label(b.Build()))
	cond, ok := prog.(ril.If)
	require.True(t, ok, "got %T", prog)
	assert.Equal(t, ril.Ref{ID: "?if#1"}, cond.Pred)

	worlds := ril.ToFilesystem(prog)
	require.Len(t, worlds, 2)
	assert.Equal(t, state.Present, worlds[0]["/etc/apt/sources.list"][state.AttrState])
	assert.NotContains(t, worlds[0], "/etc/yum.conf")
	assert.Equal(t, state.Absent, worlds[1]["/etc/yum.conf"][state.AttrState])
}

func TestCompile_ScopedLookup(t *testing.T) {
	src := `$owner = 'root'
if $x {
  $mode = '0600'
  file { '/etc/shadow':
    owner => $owner,
    mode  => $mode,
  }
}
`
	b := scripttest.New(api.Puppet, "scope.pp", src)
	b.Var("$owner", "'root'")
	b.If("$x")
	b.Var("$mode", "'0600'")
	u := b.Unit("file", "'/etc/shadow'")
	b.Attr(u, "owner", "$owner")
	b.Attr(u, "mode", "$mode")
	b.End(u)
	b.EndIf()

	prog := Compile(label.Label(b.Build()))
	assert.Contains(t, ril.Format(prog), "let if#1::mode = ")

	worlds := ril.ToFilesystem(prog)
	require.Len(t, worlds, 2)
	assert.Equal(t, "root", worlds[0]["/etc/shadow"][state.AttrOwner])
	assert.Equal(t, "0600", worlds[0]["/etc/shadow"][state.AttrMode])
	assert.Empty(t, worlds[1])
}

func TestCompile_ServiceAndDegradation(t *testing.T) {
	s := &api.Script{Tech: api.Puppet, Path: "svc.pp", Block: &api.UnitBlock{
		Kind: api.BlockScript,
		Body: api.Body{AtomicUnits: []*api.AtomicUnit{
			{
				Type: "service", Name: &api.String{Value: "nginx"},
				Attributes: []*api.Attribute{
					{Name: "ensure", Value: &api.Boolean{Value: true}, Position: api.Position{Line: 2}},
					{Name: "enable", Value: &api.Unsupported{Kind: "selector"}, Position: api.Position{Line: 3}},
				},
				Position: api.Position{Line: 1},
			},
			{Type: "exec", Name: &api.String{Value: "apt-get update"}, Position: api.Position{Line: 5}},
		}},
	}}

	prog := Compile(label.Label(s))
	worlds := ril.ToFilesystem(prog)
	require.Len(t, worlds, 1)
	assert.Equal(t, state.System{
		"service:nginx": {state.AttrState: state.Running, state.AttrEnabled: state.Unsupported},
	}, worlds[0])
}

func TestCompile_TerraformImplicitState(t *testing.T) {
	s := &api.Script{Tech: api.Terraform, Path: "main.tf", Block: &api.UnitBlock{
		Kind: api.BlockScript,
		Body: api.Body{AtomicUnits: []*api.AtomicUnit{{
			Type: "local_file", Name: &api.String{Value: "motd"},
			Attributes: []*api.Attribute{
				{Name: "filename", Value: &api.String{Value: "/etc/motd"}},
				{Name: "content", Value: &api.String{Value: "hi"}},
			},
		}}},
	}}
	prog := Compile(label.Label(s))
	worlds := ril.ToFilesystem(prog)
	require.Len(t, worlds, 1)
	assert.Equal(t, state.Record{
		state.AttrState:   state.Present,
		state.AttrContent: "hi",
		state.AttrMode:    state.Undefined,
	}, worlds[0]["/etc/motd"])
}

func TestCompile_UnknownTech(t *testing.T) {
	prog := Compile(label.Label(&api.Script{Tech: "chef", Block: &api.UnitBlock{}}))
	assert.Equal(t, ril.Skip{}, prog)
}
