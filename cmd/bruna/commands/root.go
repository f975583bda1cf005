package commands

import (
	"github.com/spf13/cobra"

	"bruna/internal/buildinfo"
	"bruna/internal/config"
	"bruna/internal/printer"
)

// NewRootCmd builds the bruna command tree.
func NewRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "bruna",
		Short: "bruna - a cooperative microkernel core",
		Long: `bruna hosts a small kernel core: a process and thread registry, a
round-robin scheduler, and a message bus between processes.

The run, ps, and demo commands boot it headless on the host.`,
		Version: buildinfo.String(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
		SilenceErrors:      true,
		SilenceUsage:       true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default $BRUNA_CONFIG or ~/.config/bruna/config.yaml)")

	load := func(cmd *cobra.Command) (config.Config, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return config.Config{}, printer.Error(cmd.ErrOrStderr(), "invalid configuration", err.Error(),
				"fix the config file or unset BRUNA_CONFIG")
		}
		return cfg, nil
	}

	root.AddCommand(
		newRunCmd(load),
		newPsCmd(load),
		newDemoCmd(),
		newConfigCmd(load),
	)
	return root
}

type loader func(*cobra.Command) (config.Config, error)

// Execute runs the command tree with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}
