package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"bruna/app"
	"bruna/hal"
	"bruna/internal/buildinfo"
	"bruna/internal/config"
	"bruna/internal/printer"
)

type runFlags struct {
	hz      int
	ticks   uint64
	budget  int
	virtual bool
	bus     string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.hz, "hz", 0, "frames per second (overrides headless.hz)")
	cmd.Flags().Uint64Var(&f.ticks, "ticks", 0, "stop after N frames, 0 runs until interrupted (overrides headless.ticks)")
	cmd.Flags().IntVar(&f.budget, "step-budget", 0, "dispatches per frame (overrides headless.step_budget)")
	cmd.Flags().BoolVar(&f.virtual, "virtual", false, "advance kernel time by one frame period per frame")
	cmd.Flags().StringVar(&f.bus, "bus", "", "message bus backend: memory or redis (overrides bus.backend)")
}

// apply copies flags the user set onto cfg.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	fl := cmd.Flags()
	if fl.Changed("hz") {
		cfg.Headless.Hz = f.hz
	}
	if fl.Changed("ticks") {
		cfg.Headless.Ticks = f.ticks
	}
	if fl.Changed("step-budget") {
		cfg.Headless.StepBudget = f.budget
	}
	if fl.Changed("virtual") {
		cfg.Headless.Virtual = f.virtual
	}
	if fl.Changed("bus") {
		cfg.Bus.Backend = f.bus
	}
	return cfg.Validate()
}

func boot(cmd *cobra.Command, cfg config.Config, h hal.HAL) (*app.App, error) {
	a, err := app.New(cmd.Context(), cfg, h)
	if err != nil {
		return nil, printer.Error(cmd.ErrOrStderr(), "boot failed", err.Error(),
			"check the boot manifest", "use --bus memory if redis is not running")
	}
	return a, nil
}

func newRunCmd(load loader) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot the manifest and run the kernel headless",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, &cfg); err != nil {
				return printer.Error(cmd.ErrOrStderr(), "invalid flags", err.Error())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := boot(cmd, cfg, hal.New(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer a.Close()

			printer.Success(cmd.OutOrStdout(), "booted %d processes (bruna %s, boot %s)", len(cfg.Boot), buildinfo.Short(), a.System().BootID())
			err = a.Run(ctx)
			switch {
			case errors.Is(err, context.Canceled):
				printer.Warning(cmd.OutOrStdout(), "interrupted at tick %d", a.System().Now())
				return nil
			case err != nil:
				return printer.Error(cmd.ErrOrStderr(), "kernel stopped", err.Error())
			}
			printer.Success(cmd.OutOrStdout(), "stopped at tick %d", a.System().Now())
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
