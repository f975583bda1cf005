package commands

import (
	"github.com/spf13/cobra"

	"bruna/internal/printer"
)

func newConfigCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			out, err := cfg.Render()
			if err != nil {
				return printer.Error(cmd.ErrOrStderr(), "render failed", err.Error())
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
