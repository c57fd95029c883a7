package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/sr-lab/GLITCH-sub000/api"
	"github.com/sr-lab/GLITCH-sub000/internal/frontend/ansible"
	"github.com/sr-lab/GLITCH-sub000/internal/frontend/terraform"
	"github.com/sr-lab/GLITCH-sub000/internal/state"
	"github.com/sr-lab/GLITCH-sub000/internal/writeback"
)

// source is a script loaded for repair together with the filesystem its
// text lives in. The script path is relative to fs.
type source struct {
	fs     billy.Filesystem
	script *api.Script
	text   []byte
}

// loadScript reads a script. YAML files go through the Ansible front-end
// and .tf files through the Terraform one; a .json file is an AST produced
// by an external front-end, whose path field names the source text.
func loadScript(path string) (*source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(abs)) {
	case ".yml", ".yaml":
		return parseWith(abs, ansible.Parse)
	case ".tf":
		return parseWith(abs, terraform.Parse)
	case ".json":
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("read script %s: %w", path, err)
		}
		script, err := api.DecodeScript(data)
		if err != nil {
			return nil, fmt.Errorf("decode script %s: %w", path, err)
		}
		if script.Path == "" {
			return nil, fmt.Errorf("decode script %s: missing source path", path)
		}
		target := script.Path
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(abs), target)
		}
		fs := osfs.New(filepath.Dir(target))
		script.Path = filepath.Base(target)
		text, err := writeback.ReadFile(fs, script.Path)
		if err != nil {
			return nil, err
		}
		return &source{fs: fs, script: script, text: text}, nil
	}
	return nil, fmt.Errorf("load %s: unsupported script type %q", path, filepath.Ext(abs))
}

func parseWith(abs string, parse func(string, []byte) (*api.Script, error)) (*source, error) {
	fs := osfs.New(filepath.Dir(abs))
	name := filepath.Base(abs)
	text, err := writeback.ReadFile(fs, name)
	if err != nil {
		return nil, err
	}
	script, err := parse(name, text)
	if err != nil {
		return nil, err
	}
	return &source{fs: fs, script: script, text: text}, nil
}

func loadState(path, selector string) (state.System, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open state %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return state.Load(f, selector)
}
