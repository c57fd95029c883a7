package span

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sr-lab/GLITCH-sub000/api"
)

func TestIndex(t *testing.T) {
	src := []byte("ab\ncde\n\nf")
	x := New(src)

	assert.Equal(t, 0, x.Offset(1, 1))
	assert.Equal(t, 4, x.Offset(2, 2))
	assert.Equal(t, 8, x.Offset(4, 1))
	assert.Equal(t, len(src), x.Offset(9, 1))

	line, col := x.LineCol(5)
	assert.Equal(t, 2, line)
	assert.Equal(t, 3, col)
	line, col = x.LineCol(7)
	assert.Equal(t, 3, line)
	assert.Equal(t, 1, col)

	assert.Equal(t, api.Position{Line: 2, Column: 1, EndLine: 2, EndColumn: 4}, x.Pos(3, 6))
	assert.Equal(t, 6, x.LineEnd(3))
	assert.Equal(t, len(src), x.LineEnd(8))
}
