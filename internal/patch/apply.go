package patch

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sr-lab/GLITCH-sub000/api"
	"github.com/sr-lab/GLITCH-sub000/internal/label"
	"github.com/sr-lab/GLITCH-sub000/internal/tech"
	"github.com/sr-lab/GLITCH-sub000/internal/writeback"
)

var errNoSpan = errors.New("element has no source position")

// Result is a patched source.
type Result struct {
	// Source is the patched text.
	Source []byte
	// Edits are the byte edits of the original text, in change order.
	Edits []writeback.Edit

	original   []byte
	placements []placement
	starts     []int // offset of each edit's text in Source
}

// placement locates the text a Modify or AddSketch change wrote inside
// its edit. Offsets are relative to the start of the edit text; key is -1
// when the edit only holds a value.
type placement struct {
	change   int
	edit     int
	key      int
	from, to int
}

type applier struct {
	p       *tech.Profile
	src     []byte
	lines   lines
	changes []Change

	edits      []writeback.Edit
	placements []placement
	deleted    map[any]bool
	comma      map[*api.AtomicUnit]bool
}

// Apply renders changes as edits of src, the text ls was parsed from.
// Quoting of modified literals is preserved. Deletions take their whole
// line when nothing else lives on it. Sketches become new attribute lines
// after the last surviving attribute of their resource, or are written
// inline when the resource fits on one line.
func Apply(ls *label.Script, src []byte, changes []Change) (*Result, error) {
	p, err := tech.For(ls.Tech)
	if err != nil {
		return nil, fmt.Errorf("apply changes: %w", err)
	}
	a := &applier{
		p:       p,
		src:     src,
		lines:   newLines(src),
		changes: changes,
		deleted: map[any]bool{},
		comma:   map[*api.AtomicUnit]bool{},
	}
	for _, c := range changes {
		if c.Kind == Delete {
			a.deleted[c.Element] = true
		}
	}
	for i, c := range changes {
		switch c.Kind {
		case Delete:
			err = a.delete(c)
		case Modify:
			err = a.modify(i, c)
		case AddSketch:
			err = a.add(i, c)
		}
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", c, err)
		}
	}
	out, err := writeback.ApplyEdits(src, a.edits)
	if err != nil {
		return nil, err
	}
	return &Result{
		Source:     out,
		Edits:      a.edits,
		original:   src,
		placements: a.placements,
		starts:     outputStarts(a.edits),
	}, nil
}

// elementParts returns the span of a source element and of its value.
func elementParts(el any) (api.Position, api.Expr, bool) {
	switch el := el.(type) {
	case *api.Attribute:
		return el.Position, el.Value, true
	case *api.Variable:
		return el.Position, el.Value, true
	}
	return api.Position{}, nil, false
}

func (a *applier) delete(c Change) error {
	pos, _, ok := elementParts(c.Element)
	if !ok || !pos.Valid() {
		return errNoSpan
	}
	start, end := a.lines.span(pos)
	ls, le := lineStart(a.src, start), lineEnd(a.src, end)
	rest := strings.TrimSpace(string(a.src[ls:start]) + string(a.src[end:le]))
	if rest == "" || rest == "," {
		if le < len(a.src) {
			le++
		}
		a.edits = append(a.edits, writeback.Edit{Start: ls, End: le})
		return nil
	}

	// inline: take the separator after the element, or the one before it
	// when the element is the last of its list
	j := end
	for j < le && (a.src[j] == ' ' || a.src[j] == '\t') {
		j++
	}
	if j < le && a.src[j] == ',' {
		j++
		for j < le && a.src[j] == ' ' {
			j++
		}
		end = j
	} else {
		k := start
		for k > ls && a.src[k-1] == ' ' {
			k--
		}
		if k > ls && a.src[k-1] == ',' {
			start = k - 1
		}
	}
	a.edits = append(a.edits, writeback.Edit{Start: start, End: end})
	return nil
}

func (a *applier) modify(i int, c Change) error {
	pos, value, ok := elementParts(c.Element)
	if !ok || value == nil || !value.Pos().Valid() {
		return errNoSpan
	}
	vs, ve := a.lines.span(value.Pos())
	var quote byte
	switch {
	case ve-vs >= 2 && isQuote(a.src[vs]) && a.src[ve-1] == a.src[vs]:
		quote = a.src[vs]
	case vs > 0 && ve < len(a.src) && isQuote(a.src[vs-1]) && a.src[ve] == a.src[vs-1]:
		vs, ve = vs-1, ve+1
		quote = a.src[vs]
	}
	indent := indentAt(a.src, a.lines.offset(pos.Line, pos.Column))
	text := a.p.Literal(c.Value, c.Spec, quote, indent)
	a.placements = append(a.placements, placement{change: i, edit: len(a.edits), key: -1, to: len(text)})
	a.edits = append(a.edits, writeback.Edit{Start: vs, End: ve, Text: text})
	return nil
}

func (a *applier) add(i int, c Change) error {
	u := c.Unit
	if u == nil || !u.Position.Valid() {
		return errNoSpan
	}
	us, ue := a.lines.span(u.Position)

	if anchor := a.anchor(u); anchor != nil {
		as, ae := a.lines.span(anchor.Position)
		if lineEnd(a.src, ae) == lineEnd(a.src, max(ue-1, us)) && a.closes(ue) {
			// the resource closes on the anchor's line: continue inline
			return a.inline(i, c, ae, ", ", "")
		}
		indent := indentAt(a.src, as)
		if a.p.Separator != "" && !a.comma[u] {
			j := ae
			for j < len(a.src) && (a.src[j] == ' ' || a.src[j] == '\t') {
				j++
			}
			if j == len(a.src) || a.src[j] != a.p.Separator[0] {
				a.edits = append(a.edits, writeback.Edit{Start: ae, End: ae, Text: a.p.Separator})
			}
			a.comma[u] = true
		}
		return a.line(i, c, lineEnd(a.src, ae), indent)
	}

	if a.closes(ue) && lineEnd(a.src, us) >= ue-1 {
		k := ue - 1
		prefix := ""
		if k > 0 && a.src[k-1] != ' ' {
			prefix = " "
		}
		sep := ","
		if a.p.Tech == api.Terraform {
			sep = ""
		}
		return a.inline(i, c, k, prefix, sep+" ")
	}
	return a.line(i, c, lineEnd(a.src, us), indentAt(a.src, us)+a.p.Indent)
}

// anchor returns the last attribute of u, in source order, that survives
// the patch.
func (a *applier) anchor(u *api.AtomicUnit) *api.Attribute {
	var best *api.Attribute
	bestEnd := -1
	for _, attr := range u.Attributes {
		if a.deleted[attr] || !attr.Position.Valid() {
			continue
		}
		if _, e := a.lines.span(attr.Position); e > bestEnd {
			best, bestEnd = attr, e
		}
	}
	return best
}

// closes reports whether the byte before end closes a braced or bracketed
// body.
func (a *applier) closes(end int) bool {
	return end > 0 && end <= len(a.src) && (a.src[end-1] == '}' || a.src[end-1] == ']')
}

func (a *applier) inline(i int, c Change, at int, prefix, suffix string) error {
	lit := a.p.Literal(c.Value, c.Spec, 0, indentAt(a.src, at))
	text := prefix + c.Key + a.p.Assign + lit + suffix
	from := len(prefix) + len(c.Key) + len(a.p.Assign)
	a.placements = append(a.placements, placement{
		change: i, edit: len(a.edits), key: len(prefix), from: from, to: from + len(lit),
	})
	a.edits = append(a.edits, writeback.Edit{Start: at, End: at, Text: text})
	return nil
}

// line inserts a new attribute line after the line ending at eol.
func (a *applier) line(i int, c Change, eol int, indent string) error {
	lit := a.p.Literal(c.Value, c.Spec, 0, indent)
	body := a.p.AttrLine(indent, c.Key, lit)
	at, text, lead := eol+1, body+"\n", 0
	if eol >= len(a.src) {
		at, text, lead = len(a.src), "\n"+body, 1
	}
	from := lead + len(indent) + len(c.Key) + len(a.p.Assign)
	a.placements = append(a.placements, placement{
		change: i, edit: len(a.edits), key: lead + len(indent), from: from, to: from + len(lit),
	})
	a.edits = append(a.edits, writeback.Edit{Start: at, End: at, Text: text})
	return nil
}

// outputStarts computes where each edit's text begins in the patched
// source, replaying the ordering writeback.ApplyEdits uses.
func outputStarts(edits []writeback.Edit) []int {
	idx := make([]int, len(edits))
	for i := range idx {
		idx[i] = i
	}
	// text order: by start; at equal starts insertions come first in index
	// order, followed by replacements
	slices.SortStableFunc(idx, func(x, y int) int {
		ex, ey := edits[x], edits[y]
		if ex.Start != ey.Start {
			return ex.Start - ey.Start
		}
		if ex.End != ey.End {
			return ex.End - ey.End
		}
		return x - y
	})
	starts := make([]int, len(edits))
	shift := 0
	for _, i := range idx {
		e := edits[i]
		starts[i] = e.Start + shift
		shift += len(e.Text) - (e.End - e.Start)
	}
	return starts
}
