// Package span converts between byte offsets and the 1-based line/column
// spans of the script AST.
package span

import "github.com/sr-lab/GLITCH-sub000/api"

// Index holds the start offset of every line of a source.
type Index struct {
	src    []byte
	starts []int
}

// New indexes src.
func New(src []byte) *Index {
	idx := &Index{src: src, starts: []int{0}}
	for i, b := range src {
		if b == '\n' {
			idx.starts = append(idx.starts, i+1)
		}
	}
	return idx
}

// Src returns the indexed source.
func (x *Index) Src() []byte { return x.src }

// Offset converts a 1-based line and byte column into an offset, clamped
// to the source.
func (x *Index) Offset(line, col int) int {
	if line < 1 {
		return 0
	}
	if line > len(x.starts) {
		return len(x.src)
	}
	return min(x.starts[line-1]+col-1, len(x.src))
}

// LineCol converts an offset into a 1-based line and byte column.
func (x *Index) LineCol(off int) (int, int) {
	lo, hi := 0, len(x.starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if x.starts[mid] <= off {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1, off - x.starts[lo] + 1
}

// Pos returns the span of the bytes [start, end).
func (x *Index) Pos(start, end int) api.Position {
	sl, sc := x.LineCol(start)
	el, ec := x.LineCol(end)
	return api.Position{Line: sl, Column: sc, EndLine: el, EndColumn: ec}
}

// LineEnd returns the offset of the newline ending the line holding off,
// or len(src).
func (x *Index) LineEnd(off int) int {
	for i := off; i < len(x.src); i++ {
		if x.src[i] == '\n' {
			return i
		}
	}
	return len(x.src)
}
