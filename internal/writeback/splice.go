package writeback

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"

	"github.com/go-git/go-billy/v5"
)

// ErrConflict is returned when two edits touch overlapping byte ranges.
var ErrConflict = errors.New("writeback: overlapping edits")

// Edit replaces the bytes [Start, End) of a source with Text. Start == End
// is an insertion.
type Edit struct {
	Start, End int
	Text       string
}

// ApplyEdits returns src with every edit applied. Edits are applied from
// the highest offset down so that earlier offsets stay valid; insertions
// at the same offset keep their relative order.
func ApplyEdits(src []byte, edits []Edit) ([]byte, error) {
	type indexed struct {
		Edit
		i int
	}
	sorted := make([]indexed, len(edits))
	for i, e := range edits {
		if e.Start < 0 || e.End > len(src) || e.Start > e.End {
			return nil, fmt.Errorf("invalid byte range [%d:%d] for source of length %d", e.Start, e.End, len(src))
		}
		sorted[i] = indexed{Edit: e, i: i}
	}
	slices.SortFunc(sorted, func(a, b indexed) int {
		if a.Start != b.Start {
			return b.Start - a.Start
		}
		if a.End != b.End {
			return b.End - a.End
		}
		return b.i - a.i
	})
	for k := 1; k < len(sorted); k++ {
		if sorted[k].End > sorted[k-1].Start {
			return nil, fmt.Errorf("%w: [%d:%d] and [%d:%d]", ErrConflict,
				sorted[k].Start, sorted[k].End, sorted[k-1].Start, sorted[k-1].End)
		}
	}

	out := bytes.Clone(src)
	for _, e := range sorted {
		// result = prefix + text + suffix
		next := make([]byte, 0, len(out)-(e.End-e.Start)+len(e.Text))
		next = append(next, out[:e.Start]...)
		next = append(next, e.Text...)
		next = append(next, out[e.End:]...)
		out = next
	}
	return out, nil
}

// Splice applies edits to the file at path. The write is atomic.
func Splice(fs billy.Filesystem, path string, edits []Edit) error {
	src, err := ReadFile(fs, path)
	if err != nil {
		return err
	}
	result, err := ApplyEdits(src, edits)
	if err != nil {
		return fmt.Errorf("splice %s: %w", path, err)
	}
	return WriteFile(fs, path, result)
}

// ReadFile reads a whole file from fs.
func ReadFile(fs billy.Filesystem, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", path, err)
	}
	return data, nil
}

// WriteFile replaces the content of path atomically: content is written to
// a temp file in the same directory first, then renamed.
func WriteFile(fs billy.Filesystem, path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := fs.TempFile(dir, ".glitch-splice-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("close temp: %w", err)
	}

	// Preserve original file permissions
	if ch, ok := fs.(billy.Change); ok {
		if info, err := fs.Stat(path); err == nil {
			_ = ch.Chmod(tmpName, info.Mode()) // best-effort permission sync
		}
	}

	if err := fs.Rename(tmpName, path); err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("rename temp to %s: %w", path, err)
	}
	return nil
}
