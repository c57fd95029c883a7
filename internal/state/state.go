// Package state holds the observed system state a repair is checked
// against: a snapshot of paths and resources with their attributes.
package state

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Attribute names shared by the compiler, the solver and the tracer output.
const (
	AttrState   = "state"
	AttrContent = "content"
	AttrOwner   = "owner"
	AttrMode    = "mode"
	AttrEnabled = "enabled"
	AttrHome    = "home"
	AttrShell   = "shell"
)

// Sentinel and common attribute values.
const (
	Undefined   = "undefined"
	Unsupported = "unsupported"
	Present     = "present"
	Absent      = "absent"
	Directory   = "directory"
	Link        = "link"
	Running     = "running"
	Stopped     = "stopped"
	Latest      = "latest"
)

// Key prefixes for resources that are not filesystem paths.
const (
	UserPrefix    = "user:"
	PackagePrefix = "package:"
	ServicePrefix = "service:"
)

// Record is the attribute map of one path or resource.
type Record map[string]string

// System maps a path (or a synthetic key such as "user:web") to its record.
type System map[string]Record

// UserKey returns the key of a user account.
func UserKey(name string) string { return UserPrefix + name }

// Clone returns a deep copy.
func (s System) Clone() System {
	out := make(System, len(s))
	for k, r := range s {
		out[k] = maps.Clone(r)
	}
	return out
}

// Equal reports whether both snapshots hold the same records.
func (s System) Equal(o System) bool {
	return maps.EqualFunc(s, o, func(a, b Record) bool { return maps.Equal(a, b) })
}

// Paths returns the sorted keys.
func (s System) Paths() []string {
	return slices.Sorted(maps.Keys(s))
}

// Set writes one attribute, creating the record when needed.
func (s System) Set(path, attr, value string) {
	r, ok := s[path]
	if !ok {
		r = Record{}
		s[path] = r
	}
	r[attr] = value
}

// String renders the snapshot deterministically, one path per line.
func (s System) String() string {
	var b strings.Builder
	for _, p := range s.Paths() {
		r := s[p]
		b.WriteString(p)
		b.WriteString(" {")
		for i, a := range slices.Sorted(maps.Keys(r)) {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, " %s=%q", a, r[a])
		}
		b.WriteString(" }\n")
	}
	return b.String()
}

// Load reads a snapshot from JSON. The document is either the snapshot
// itself or contains it; selector is a JSONPath expression locating it
// (empty or "$" for the whole document). Attribute values that are not
// strings are stringified.
func Load(r io.Reader, selector string) (System, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}

	if selector != "" && selector != "$" {
		x, err := jp.ParseString(selector)
		if err != nil {
			return nil, fmt.Errorf("invalid state selector '%s': %w", selector, err)
		}
		results := x.Get(doc)
		if len(results) == 0 {
			return nil, fmt.Errorf("state selector '%s' matched nothing", selector)
		}
		doc = results[0]
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("state: expected an object of paths, got %T", doc)
	}
	sys := make(System, len(obj))
	for path, v := range obj {
		attrs, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("state %s: expected an object of attributes, got %T", path, v)
		}
		rec := make(Record, len(attrs))
		for name, value := range attrs {
			rec[name] = stringify(value)
		}
		sys[path] = rec
	}
	return sys, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return Undefined
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%g", x), ".0")
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}
