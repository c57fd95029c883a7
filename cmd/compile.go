package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sr-lab/GLITCH-sub000/internal/compiler"
	"github.com/sr-lab/GLITCH-sub000/internal/label"
	"github.com/sr-lab/GLITCH-sub000/internal/ril"
)

var showWorlds bool

func init() {
	compileCmd.Flags().BoolVar(&showWorlds, "worlds", false, "Also print the filesystems the program can produce")
}

var compileCmd = &cobra.Command{
	Use:   "compile [script]",
	Short: "Print the labeled intermediate program of a script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := loadScript(args[0])
		if err != nil {
			return err
		}
		prog := compiler.Compile(label.Label(src.script))
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprint(out, ril.Format(prog))

		if showWorlds {
			for i, w := range ril.ToFilesystem(prog) {
				_, _ = fmt.Fprintf(out, "\n# world %d\n%s", i, w)
			}
		}
		return nil
	},
}
