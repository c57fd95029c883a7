package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sr-lab/GLITCH-sub000/internal/repair"
	"github.com/sr-lab/GLITCH-sub000/internal/state"
)

var pathsCmd = &cobra.Command{
	Use:   "paths [script]",
	Short: "List the paths and resources a script affects",
	Long: `List every path or resource key the script writes. With --state,
keys described by the observed state are marked with '*'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := loadScript(args[0])
		if err != nil {
			return err
		}
		sys := state.System{}
		if statePath != "" {
			if sys, err = loadState(statePath, stateSelector); err != nil {
				return err
			}
		}
		session := repair.NewSession(src.script, src.text, sys, cfg)
		out := cmd.OutOrStdout()
		for _, p := range session.AffectedPaths() {
			mark := " "
			if p.Observed {
				mark = "*"
			}
			_, _ = fmt.Fprintf(out, "%s %s\n", mark, p.Key)
		}
		return nil
	},
}
