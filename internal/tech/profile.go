// Package tech describes how each IaC dialect spells resources and
// attributes: the checklist the compiler lowers for every primitive
// resource, the value normalization into RIL vocabulary, and the reverse
// mapping and rendering used when patches are written back.
package tech

import (
	"fmt"
	"slices"

	"github.com/sr-lab/GLITCH-sub000/api"
)

// AttrSpec describes one RIL attribute of a resource.
type AttrSpec struct {
	Name    string            // RIL attribute name
	Keys    []string          // source spellings; Keys[0] is used for insertion
	Values  map[string]string // source value -> RIL value
	Reverse map[string]string // RIL value -> source value
	Bool    bool              // rendered as a bare boolean
}

// Key returns the canonical source spelling.
func (a *AttrSpec) Key() string { return a.Keys[0] }

// Normalize maps a source value into RIL vocabulary.
func (a *AttrSpec) Normalize(v string) string {
	if n, ok := a.Values[v]; ok {
		return n
	}
	return v
}

// Denormalize maps a RIL value back to the dialect's spelling.
func (a *AttrSpec) Denormalize(v string) string {
	if n, ok := a.Reverse[v]; ok {
		return n
	}
	return v
}

// Fixed is an attribute write implied by the resource type itself.
type Fixed struct {
	Name, Value string
}

// ResourceSpec describes a primitive resource type.
type ResourceSpec struct {
	Kind     string
	Types    []string
	Prefix   string   // state key prefix, empty for filesystem paths
	PathKeys []string // attributes naming the target; the title otherwise
	CopyKeys []string // attributes naming a local file to copy from
	Implicit []Fixed
	Attrs    []AttrSpec
}

// AttrByKey finds the spec of a source attribute.
func (r *ResourceSpec) AttrByKey(key string) (*AttrSpec, bool) {
	for i := range r.Attrs {
		if slices.Contains(r.Attrs[i].Keys, key) {
			return &r.Attrs[i], true
		}
	}
	return nil, false
}

// AttrByName finds the spec of a RIL attribute.
func (r *ResourceSpec) AttrByName(name string) (*AttrSpec, bool) {
	for i := range r.Attrs {
		if r.Attrs[i].Name == name {
			return &r.Attrs[i], true
		}
	}
	return nil, false
}

// Profile is the full description of one dialect.
type Profile struct {
	Tech      api.Tech
	Resources []*ResourceSpec

	// Assign separates a key from its value in an attribute line.
	Assign string
	// Separator terminates an attribute inside a resource body.
	Separator string
	// Quote is used for string literals the dialect cannot write bare.
	Quote byte
	// Indent is one nesting level.
	Indent string
}

// Resource returns the spec for a resource type.
func (p *Profile) Resource(typ string) (*ResourceSpec, bool) {
	for _, r := range p.Resources {
		if slices.Contains(r.Types, typ) {
			return r, true
		}
	}
	return nil, false
}

var profiles = map[api.Tech]*Profile{
	api.Puppet:    puppet,
	api.Ansible:   ansible,
	api.Terraform: terraform,
}

// For returns the profile of a dialect.
func For(t api.Tech) (*Profile, error) {
	p, ok := profiles[t]
	if !ok {
		return nil, fmt.Errorf("unsupported technology %q", t)
	}
	return p, nil
}
