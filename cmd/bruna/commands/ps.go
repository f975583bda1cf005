package commands

import (
	"io"

	"github.com/spf13/cobra"

	"bruna/hal"
	"bruna/internal/printer"
)

func newPsCmd(load loader) *cobra.Command {
	var (
		flags   runFlags
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "Boot the manifest, run it briefly, and list processes and threads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			cfg.Headless.Ticks = 30
			cfg.Headless.Hz = 1000
			cfg.Headless.Virtual = true
			if err := flags.apply(cmd, &cfg); err != nil {
				return printer.Error(cmd.ErrOrStderr(), "invalid flags", err.Error())
			}
			if cfg.Headless.Ticks == 0 {
				return printer.Error(cmd.ErrOrStderr(), "invalid flags", "ps needs a finite --ticks")
			}

			var logOut io.Writer = io.Discard
			if verbose {
				logOut = cmd.ErrOrStderr()
			}
			a, err := boot(cmd, cfg, hal.New(logOut))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Run(cmd.Context()); err != nil {
				return printer.Error(cmd.ErrOrStderr(), "kernel stopped", err.Error())
			}

			infos := a.System().Processes()
			rows := make([]printer.ProcessRow, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, printer.ProcessRow{Info: info, Name: a.Name(info.ID)})
			}
			io.WriteString(cmd.OutOrStdout(), printer.ProcessTable(a.System().BootID().String(), rows))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print kernel log lines to stderr")
	return cmd
}
