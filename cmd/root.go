package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sr-lab/GLITCH-sub000/internal/config"
	"github.com/sr-lab/GLITCH-sub000/internal/log"
)

var (
	configPath    string
	logLevel      string
	statePath     string
	stateSelector string
	timeout       time.Duration
	maxModels     int
	noValidate    bool

	cfg config.Config
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a YAML settings file")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVarP(&statePath, "state", "s", "", "Path to the observed system state (JSON)")
	flags.StringVar(&stateSelector, "selector", "", "JSONPath locating the state inside the document")
	flags.DurationVar(&timeout, "timeout", 0, "Solver time limit (overrides the settings file)")
	flags.IntVar(&maxModels, "max-models", 0, "Maximum number of repairs to propose")
	flags.BoolVar(&noValidate, "no-validate", false, "Skip the syntax check of proposed patches")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(pathsCmd)
	rootCmd.AddCommand(repairCmd)
}

var rootCmd = &cobra.Command{
	Use:   "glitch-repair",
	Short: "Interactive repair of infrastructure-as-code scripts",
	Long: `glitch-repair compares what a Puppet, Ansible or Terraform script
declares with the system state it was observed to produce, and proposes
minimal source patches that make the two agree.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level = logLevel
		}
		if cmd.Flags().Changed("timeout") {
			loaded.Solver.Timeout = timeout
		}
		if cmd.Flags().Changed("max-models") {
			loaded.Solver.MaxModels = maxModels
		}
		if noValidate {
			loaded.Validate = false
		}
		if err := loaded.Check(); err != nil {
			return err
		}
		cfg = loaded

		log.Configure(log.Config{
			Level:   cfg.Log.Level,
			Console: cfg.Log.Format == "console" && terminal(os.Stderr),
		})
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func terminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func requireState(cmd *cobra.Command) error {
	if statePath == "" {
		return fmt.Errorf("%s: --state is required", cmd.Name())
	}
	return nil
}
