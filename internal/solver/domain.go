package solver

import (
	"maps"
	"slices"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/sr-lab/GLITCH-sub000/internal/ril"
	"github.com/sr-lab/GLITCH-sub000/internal/state"
)

// vocabulary is always part of the string domain.
var vocabulary = []string{
	state.Undefined, state.Unsupported, "",
	state.Present, state.Absent, state.Directory, state.Link,
	state.Running, state.Stopped, state.Latest,
	"true", "false",
}

func isSeparator(r rune) bool {
	switch r {
	case '/', ':', '.', ',', '=', ' ':
		return true
	}
	return false
}

// domain is the finite set of strings holes range over. Ids are dense and
// assigned in insertion order.
type domain struct {
	values []string
	ids    map[string]uint32
}

func newDomain() *domain {
	return &domain{ids: map[string]uint32{}}
}

func (d *domain) add(s string) uint32 {
	if id, ok := d.ids[s]; ok {
		return id
	}
	id := uint32(len(d.values))
	d.ids[s] = id
	d.values = append(d.values, s)
	return id
}

// addWithParts adds s and every component of it split on structural
// separators.
func (d *domain) addWithParts(s string) {
	d.add(s)
	for _, part := range strings.FieldsFunc(s, isSeparator) {
		d.add(part)
	}
}

func (d *domain) id(s string) (uint32, bool) {
	id, ok := d.ids[s]
	return id, ok
}

func (d *domain) value(id uint32) string { return d.values[id] }

func (d *domain) all() *roaring.Bitmap {
	bm := roaring.New()
	bm.AddRange(0, uint64(len(d.values)))
	return bm
}

func (d *domain) set(values map[string]bool) *roaring.Bitmap {
	bm := roaring.New()
	for _, v := range slices.Sorted(maps.Keys(values)) {
		bm.Add(d.add(v))
	}
	return bm
}

// buildDomain collects the vocabulary, every literal of the program and
// every value of the observed state.
func buildDomain(prog ril.Stmt, sys state.System) *domain {
	d := newDomain()
	for _, v := range vocabulary {
		d.add(v)
	}
	ril.Walk(prog, func(e ril.Expr) {
		if c, ok := e.(ril.Const); ok {
			d.addWithParts(c.V.String())
		}
	})
	for _, path := range sys.Paths() {
		rec := sys[path]
		for _, attr := range slices.Sorted(maps.Keys(rec)) {
			d.addWithParts(rec[attr])
		}
	}
	return d
}
