package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/sr-lab/GLITCH-sub000/internal/repair"
	"github.com/sr-lab/GLITCH-sub000/internal/solver"
	"github.com/sr-lab/GLITCH-sub000/internal/writeback"
)

var (
	repairPaths  []string
	pickIndex    int
	forceInvalid bool
)

func init() {
	repairCmd.Flags().StringSliceVarP(&repairPaths, "paths", "p", nil, "Restrict the repair to these paths (default: ask, or all)")
	repairCmd.Flags().IntVar(&pickIndex, "pick", -1, "Commit the patch with this rank without asking")
	repairCmd.Flags().BoolVar(&forceInvalid, "force", false, "Commit a patch even if its output failed the syntax check")
}

var repairCmd = &cobra.Command{
	Use:   "repair [script]",
	Short: "Propose and apply patches that reproduce the observed state",
	Long: `Solve for the smallest edits to the script's literals that make it
produce the observed system state, print each optimal patch as a unified
diff, and write the chosen one back to the script.

On a terminal the paths to repair and the patch to apply are chosen
interactively. Otherwise --paths and --pick drive the session and nothing
is written unless --pick is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireState(cmd); err != nil {
			return err
		}
		src, err := loadScript(args[0])
		if err != nil {
			return err
		}
		sys, err := loadState(statePath, stateSelector)
		if err != nil {
			return err
		}
		session := repair.NewSession(src.script, src.text, sys, cfg)
		out := cmd.OutOrStdout()
		interactive := isInteractive()

		if err := selectPaths(session, interactive); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, unix.SIGTERM)
		defer stop()
		patches, err := session.Patches(ctx)
		switch {
		case errors.Is(err, solver.ErrUnsat):
			_, _ = fmt.Fprintln(out, "No edit to the script's literals reproduces the observed state.")
			return err
		case errors.Is(err, solver.ErrTimeout):
			_, _ = fmt.Fprintln(out, "The solver stopped before finding a repair; try a larger --timeout.")
			return err
		case err != nil:
			return err
		}
		if len(patches) == 0 || len(patches[0].Changes) == 0 {
			_, _ = fmt.Fprintln(out, "The script already reproduces the observed state.")
			return nil
		}

		i, err := choosePatch(out, patches, interactive)
		if err != nil || i < 0 {
			return err
		}
		if err := checkSyntax(patches[i], src.script.Path); err != nil {
			return err
		}
		if err := session.Commit(src.fs, i); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Wrote patch %d to %s\n", i, args[0])
		return nil
	},
}

var isInteractive = func() bool { return terminal(os.Stdin) && terminal(os.Stdout) }

func selectPaths(session *repair.Session, interactive bool) error {
	if len(repairPaths) > 0 {
		return session.Select(repairPaths)
	}
	if !interactive {
		return nil
	}
	paths := session.AffectedPaths()
	items := make([]string, len(paths))
	for i, p := range paths {
		items[i] = p.Key
		if p.Observed {
			items[i] += " (observed)"
		}
	}
	chosen, err := pick(newPicker("Paths to repair (none selected repairs all):", items, true))
	if err != nil {
		return err
	}
	keys := make([]string, len(chosen))
	for i, c := range chosen {
		keys[i] = paths[c].Key
	}
	return session.Select(keys)
}

// checkSyntax refuses a patch whose output does not parse, unless --force
// is set.
func checkSyntax(p *repair.Patch, path string) error {
	if forceInvalid {
		return nil
	}
	if err := writeback.Validate(p.Source, path); err != nil {
		return fmt.Errorf("patch %d produces invalid syntax (%w); use --force to write it anyway", p.Rank, err)
	}
	return nil
}

func describe(p *repair.Patch) string {
	s := fmt.Sprintf("patch %d: %d change(s)", p.Rank, len(p.Changes))
	if !p.Valid() {
		s += " [invalid syntax]"
	}
	return s
}

// choosePatch prints every patch and returns the rank to commit, or -1 to
// commit nothing.
func choosePatch(out io.Writer, patches []*repair.Patch, interactive bool) (int, error) {
	if pickIndex >= 0 {
		if pickIndex >= len(patches) {
			return -1, fmt.Errorf("pick %d: %w", pickIndex, repair.ErrNoPatch)
		}
		return pickIndex, nil
	}
	if !interactive {
		for _, p := range patches {
			_, _ = fmt.Fprintln(out, describe(p))
			for _, c := range p.Changes {
				_, _ = fmt.Fprintf(out, "  %s\n", c)
			}
			_, _ = fmt.Fprintln(out, p.Diff)
		}
		return -1, nil
	}

	items := make([]string, len(patches))
	for i, p := range patches {
		items[i] = describe(p)
	}
	m := newPicker("Patch to apply:", items, false)
	m.detail = func(i int) string { return patches[i].Diff }
	chosen, err := pick(m)
	if err != nil {
		return -1, err
	}
	return chosen[0], nil
}
