package tech

import (
	"github.com/sr-lab/GLITCH-sub000/api"
	"github.com/sr-lab/GLITCH-sub000/internal/state"
)

var puppet = &Profile{
	Tech:      api.Puppet,
	Assign:    " => ",
	Separator: ",",
	Quote:     '\'',
	Indent:    "  ",
	Resources: []*ResourceSpec{
		{
			Kind:     "file",
			Types:    []string{"file"},
			PathKeys: []string{"path"},
			CopyKeys: []string{"source"},
			Attrs: []AttrSpec{
				{
					Name: state.AttrState,
					Keys: []string{"ensure"},
					Values: map[string]string{
						"file":      state.Present,
						"present":   state.Present,
						"absent":    state.Absent,
						"directory": state.Directory,
						"link":      state.Link,
					},
				},
				{Name: state.AttrContent, Keys: []string{"content"}},
				{Name: state.AttrOwner, Keys: []string{"owner"}},
				{Name: state.AttrMode, Keys: []string{"mode"}},
			},
		},
		{
			Kind:     "package",
			Types:    []string{"package"},
			Prefix:   state.PackagePrefix,
			PathKeys: []string{"name"},
			Attrs: []AttrSpec{
				{
					Name: state.AttrState,
					Keys: []string{"ensure"},
					Values: map[string]string{
						"installed": state.Present,
						"present":   state.Present,
						"absent":    state.Absent,
						"purged":    state.Absent,
						"latest":    state.Latest,
					},
				},
			},
		},
		{
			Kind:     "service",
			Types:    []string{"service"},
			Prefix:   state.ServicePrefix,
			PathKeys: []string{"name"},
			Attrs: []AttrSpec{
				{
					Name: state.AttrState,
					Keys: []string{"ensure"},
					Values: map[string]string{
						"running": state.Running,
						"true":    state.Running,
						"stopped": state.Stopped,
						"false":   state.Stopped,
					},
				},
				{Name: state.AttrEnabled, Keys: []string{"enable"}, Bool: true},
			},
		},
		{
			Kind:     "user",
			Types:    []string{"user"},
			Prefix:   state.UserPrefix,
			PathKeys: []string{"name"},
			Attrs: []AttrSpec{
				{Name: state.AttrState, Keys: []string{"ensure"}},
				{Name: state.AttrHome, Keys: []string{"home"}},
				{Name: state.AttrShell, Keys: []string{"shell"}},
			},
		},
	},
}

var ansible = &Profile{
	Tech:   api.Ansible,
	Assign: ": ",
	Quote:  '\'',
	Indent: "  ",
	Resources: []*ResourceSpec{
		{
			Kind:     "file",
			Types:    []string{"file", "ansible.builtin.file"},
			PathKeys: []string{"path", "dest", "name"},
			Attrs: []AttrSpec{
				{
					Name: state.AttrState,
					Keys: []string{"state"},
					Values: map[string]string{
						"file":      state.Present,
						"touch":     state.Present,
						"absent":    state.Absent,
						"directory": state.Directory,
						"link":      state.Link,
					},
					Reverse: map[string]string{state.Present: "file"},
				},
				{Name: state.AttrOwner, Keys: []string{"owner"}},
				{Name: state.AttrMode, Keys: []string{"mode"}},
			},
		},
		{
			Kind:     "copy",
			Types:    []string{"copy", "template", "ansible.builtin.copy", "ansible.builtin.template"},
			PathKeys: []string{"dest"},
			Implicit: []Fixed{{Name: state.AttrState, Value: state.Present}},
			Attrs: []AttrSpec{
				{Name: state.AttrContent, Keys: []string{"content"}},
				{Name: state.AttrOwner, Keys: []string{"owner"}},
				{Name: state.AttrMode, Keys: []string{"mode"}},
			},
		},
		{
			Kind: "package",
			Types: []string{
				"package", "apt", "yum", "dnf",
				"ansible.builtin.package", "ansible.builtin.apt", "ansible.builtin.yum", "ansible.builtin.dnf",
			},
			Prefix:   state.PackagePrefix,
			PathKeys: []string{"name", "pkg"},
			Attrs: []AttrSpec{
				{
					Name: state.AttrState,
					Keys: []string{"state"},
					Values: map[string]string{
						"present":   state.Present,
						"installed": state.Present,
						"absent":    state.Absent,
						"removed":   state.Absent,
						"latest":    state.Latest,
					},
				},
			},
		},
		{
			Kind:     "service",
			Types:    []string{"service", "systemd", "ansible.builtin.service", "ansible.builtin.systemd"},
			Prefix:   state.ServicePrefix,
			PathKeys: []string{"name"},
			Attrs: []AttrSpec{
				{
					Name: state.AttrState,
					Keys: []string{"state"},
					Values: map[string]string{
						"started": state.Running,
						"running": state.Running,
						"stopped": state.Stopped,
					},
					Reverse: map[string]string{state.Running: "started"},
				},
				{
					Name:   state.AttrEnabled,
					Keys:   []string{"enabled"},
					Values: map[string]string{"yes": "true", "no": "false", "True": "true", "False": "false"},
					Bool:   true,
				},
			},
		},
		{
			Kind:     "user",
			Types:    []string{"user", "ansible.builtin.user"},
			Prefix:   state.UserPrefix,
			PathKeys: []string{"name"},
			Attrs: []AttrSpec{
				{Name: state.AttrState, Keys: []string{"state"}},
				{Name: state.AttrHome, Keys: []string{"home"}},
				{Name: state.AttrShell, Keys: []string{"shell"}},
			},
		},
	},
}

var terraform = &Profile{
	Tech:   api.Terraform,
	Assign: " = ",
	Quote:  '"',
	Indent: "  ",
	Resources: []*ResourceSpec{
		{
			Kind:     "file",
			Types:    []string{"local_file", "local_sensitive_file"},
			PathKeys: []string{"filename"},
			Implicit: []Fixed{{Name: state.AttrState, Value: state.Present}},
			Attrs: []AttrSpec{
				{Name: state.AttrContent, Keys: []string{"content"}},
				{Name: state.AttrMode, Keys: []string{"file_permission"}},
			},
		},
	},
}
