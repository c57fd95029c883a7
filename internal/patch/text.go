package patch

import (
	"bytes"

	"github.com/sr-lab/GLITCH-sub000/api"
)

// lines indexes the start offset of every line of a source.
type lines []int

func newLines(src []byte) lines {
	out := lines{0}
	for i, b := range src {
		if b == '\n' {
			out = append(out, i+1)
		}
	}
	return out
}

// offset converts a 1-based line and byte column into an offset.
func (l lines) offset(line, col int) int {
	if line < 1 {
		return 0
	}
	if line > len(l) {
		line = len(l)
	}
	return l[line-1] + col - 1
}

// position converts an offset into a 1-based line and byte column.
func (l lines) position(off int) (int, int) {
	lo, hi := 0, len(l)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if l[mid] <= off {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1, off - l[lo] + 1
}

func (l lines) span(p api.Position) (int, int) {
	return l.offset(p.Line, p.Column), l.offset(p.EndLine, p.EndColumn)
}

func (l lines) pos(start, end int) api.Position {
	sl, sc := l.position(start)
	el, ec := l.position(end)
	return api.Position{Line: sl, Column: sc, EndLine: el, EndColumn: ec}
}

// lineStart returns the offset of the first byte of the line holding off.
func lineStart(src []byte, off int) int {
	return bytes.LastIndexByte(src[:off], '\n') + 1
}

// lineEnd returns the offset of the newline ending the line holding off,
// or len(src).
func lineEnd(src []byte, off int) int {
	if i := bytes.IndexByte(src[off:], '\n'); i >= 0 {
		return off + i
	}
	return len(src)
}

// indentAt returns the leading whitespace of the line holding off.
func indentAt(src []byte, off int) string {
	start := lineStart(src, off)
	end := start
	for end < len(src) && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return string(src[start:end])
}

func isQuote(b byte) bool { return b == '\'' || b == '"' }
