// Package repair drives one interactive repair of a script: it lists the
// paths the script affects, narrows the program to the ones the user
// selects, proposes ranked patches and writes the chosen one back.
package repair

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog"

	"github.com/sr-lab/GLITCH-sub000/api"
	"github.com/sr-lab/GLITCH-sub000/internal/compiler"
	"github.com/sr-lab/GLITCH-sub000/internal/config"
	"github.com/sr-lab/GLITCH-sub000/internal/label"
	"github.com/sr-lab/GLITCH-sub000/internal/log"
	"github.com/sr-lab/GLITCH-sub000/internal/patch"
	"github.com/sr-lab/GLITCH-sub000/internal/ril"
	"github.com/sr-lab/GLITCH-sub000/internal/solver"
	"github.com/sr-lab/GLITCH-sub000/internal/state"
	"github.com/sr-lab/GLITCH-sub000/internal/writeback"
)

var (
	// ErrUnknownPath is returned when a selected path is not written by
	// the script.
	ErrUnknownPath = errors.New("repair: path not affected by the script")
	// ErrNoPatch is returned when a patch index is out of range.
	ErrNoPatch = errors.New("repair: no such patch")
	// ErrStale is returned when the file on disk no longer holds the text
	// the session was opened on.
	ErrStale = errors.New("repair: source changed on disk")
	// ErrNoRenderable is returned when every repair failed to render.
	ErrNoRenderable = errors.New("repair: no repair could be rendered as a patch")
)

// Path is a path or resource key the script writes.
type Path struct {
	Key string
	// Observed reports whether the system state describes the path.
	Observed bool
}

// Patch is one proposed repair, rendered.
type Patch struct {
	Rank    int
	Model   *solver.Model
	Changes []patch.Change
	Source  []byte
	Diff    string
	// Problems lists syntax errors found in Source when validation is on.
	Problems []writeback.ValidationError

	result *patch.Result
}

// Valid reports whether the patched source passed validation.
func (p *Patch) Valid() bool { return len(p.Problems) == 0 }

// Session holds the state of one repair. It is not safe for concurrent use.
type Session struct {
	ID string

	script *api.Script
	src    []byte
	sys    state.System
	cfg    config.Config
	solver *solver.Solver
	log    zerolog.Logger

	ls       *label.Script
	prog     ril.Stmt
	selected []string
	patches  []*Patch
}

// NewSession labels and compiles script. src is the text it was parsed
// from and sys the observed state.
func NewSession(script *api.Script, src []byte, sys state.System, cfg config.Config) *Session {
	id := uuid.NewString()
	s := &Session{
		ID:     id,
		script: script,
		src:    src,
		sys:    sys,
		cfg:    cfg,
		solver: solver.New(solver.Config{Timeout: cfg.Solver.Timeout, MaxModels: cfg.Solver.MaxModels}),
		log: log.Derive(func(c *zerolog.Context) {
			*c = c.Str(log.FieldComponent, "repair").Str(log.FieldSessionID, id).Str(log.FieldFile, script.Path)
		}),
	}
	s.compile()
	s.log.Info().Str(log.FieldTech, string(script.Tech)).Int("labels", len(s.ls.Labels())).Msg("session opened")
	return s
}

func (s *Session) compile() {
	s.ls = label.Label(s.script)
	s.prog = compiler.Compile(s.ls)
}

// Program returns the compiled program, narrowed to the selection.
func (s *Session) Program() ril.Stmt {
	if s.selected == nil {
		return s.prog
	}
	return ril.Minimize(s.prog, s.selected)
}

// Source returns the current text of the script.
func (s *Session) Source() []byte { return s.src }

// Labeled returns the labeled script.
func (s *Session) Labeled() *label.Script { return s.ls }

// AffectedPaths lists every concrete path the script writes, sorted.
func (s *Session) AffectedPaths() []Path {
	keys := ril.Paths(s.prog)
	out := make([]Path, 0, len(keys))
	for _, k := range keys {
		_, ok := s.sys[k]
		out = append(out, Path{Key: k, Observed: ok})
	}
	return out
}

// Select narrows the repair to paths. An empty selection restores the
// whole program.
func (s *Session) Select(paths []string) error {
	known := ril.Paths(s.prog)
	for _, p := range paths {
		if !slices.Contains(known, p) {
			return fmt.Errorf("select %q: %w", p, ErrUnknownPath)
		}
	}
	if len(paths) == 0 {
		s.selected = nil
	} else {
		s.selected = slices.Clone(paths)
	}
	s.patches = nil
	s.log.Debug().Strs(log.FieldPaths, paths).Msg("selection changed")
	return nil
}

// Patches solves the selected program against the observed state and
// renders every optimal repair. Repairs whose edits conflict are dropped.
func (s *Session) Patches(ctx context.Context) ([]*Patch, error) {
	models, err := s.solver.Solve(ctx, s.Program(), s.sys)
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	var out []*Patch
	var failures []error
	for rank, m := range models {
		p, err := s.render(m)
		if err != nil {
			s.log.Warn().Err(err).Int("rank", rank).Msg("repair not rendered")
			failures = append(failures, err)
			continue
		}
		p.Rank = len(out)
		out = append(out, p)
	}
	if len(out) == 0 && len(failures) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoRenderable, errors.Join(failures...))
	}
	s.patches = out
	s.log.Info().Int(log.FieldModels, len(out)).Msg("patches ready")
	return out, nil
}

func (s *Session) render(m *solver.Model) (*Patch, error) {
	changes, err := patch.Changes(m, s.ls)
	if err != nil {
		return nil, err
	}
	res, err := patch.Apply(s.ls, s.src, changes)
	if err != nil {
		return nil, err
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(s.src)),
		B:        difflib.SplitLines(string(res.Source)),
		FromFile: "a/" + s.script.Path,
		ToFile:   "b/" + s.script.Path,
		Context:  3,
	})
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	p := &Patch{Model: m, Changes: changes, Source: res.Source, Diff: diff, result: res}
	if s.cfg.Validate {
		p.Problems = writeback.ASTErrors(res.Source, s.script.Path)
	}
	return p, nil
}

// Commit writes patch i of the last Patches call to the script file in fs,
// then brings the session up to date with the new text. Every other
// proposed patch is discarded.
func (s *Session) Commit(fs billy.Filesystem, i int) error {
	if i < 0 || i >= len(s.patches) {
		return fmt.Errorf("commit %d: %w", i, ErrNoPatch)
	}
	p := s.patches[i]
	current, err := writeback.ReadFile(fs, s.script.Path)
	if err != nil {
		return err
	}
	if !bytes.Equal(current, s.src) {
		return fmt.Errorf("commit %s: %w", s.script.Path, ErrStale)
	}
	if err := writeback.Splice(fs, s.script.Path, p.result.Edits); err != nil {
		return err
	}

	patch.Update(s.ls, p.Changes, p.result)
	s.src = p.Source
	s.compile()
	s.patches = nil
	s.log.Info().Int("rank", i).Int(log.FieldChanges, len(p.Changes)).Msg("patch committed")
	return nil
}
