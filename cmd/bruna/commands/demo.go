package commands

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"bruna/hal"
	"bruna/internal/printer"
	"bruna/kernel"
)

func newDemoCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk through process creation, scheduling, and messaging step by step",
		RunE: func(cmd *cobra.Command, args []string) error {
			var logOut io.Writer = io.Discard
			if verbose {
				logOut = cmd.ErrOrStderr()
			}
			if err := runDemo(cmd.OutOrStdout(), hal.New(logOut).Logger()); err != nil {
				return printer.Error(cmd.ErrOrStderr(), "demo failed", err.Error())
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print kernel log lines to stderr")
	return cmd
}

// runDemo creates two processes, two threads in the first, sends one message
// from the first to the second, and checks scheduling before and after a
// thread is terminated.
func runDemo(w io.Writer, log kernel.Logger) error {
	sys := kernel.NewSystem(kernel.Options{Logger: log})

	p1, err := sys.CreateProcess()
	if err != nil {
		return err
	}
	p2, err := sys.CreateProcess()
	if err != nil {
		return err
	}
	printer.Step(w, "created processes %d and %d", p1, p2)

	t1, err := sys.CreateThread(p1)
	if err != nil {
		return err
	}
	t2, err := sys.CreateThread(p1)
	if err != nil {
		return err
	}
	printer.Step(w, "created threads %d and %d in process %d", t1, t2, p1)

	payload := []byte("hello")
	id, err := sys.Send(p1, p2, payload)
	if err != nil {
		return err
	}
	printer.Step(w, "sent message %d (%d bytes) from %d to %d", id, len(payload), p1, p2)

	for i, want := range []kernel.ThreadID{t1, t2, t1} {
		got, ok := sys.ScheduleNext()
		if !ok || got != want {
			return fmt.Errorf("schedule %d: got thread %d (ok=%v), want %d", i+1, got, ok, want)
		}
		printer.Step(w, "scheduled thread %d", got)
	}

	msg, err := sys.ReceiveMessage(p2)
	if err != nil {
		return err
	}
	if msg.Sender() != p1 || msg.Receiver() != p2 || !bytes.Equal(msg.Payload(), payload) {
		return fmt.Errorf("received %s, want %q from %d to %d", msg, payload, p1, p2)
	}
	printer.Step(w, "process %d received %q from %d", p2, msg.Payload(), msg.Sender())

	if err := sys.TerminateThread(p1, t1); err != nil {
		return err
	}
	printer.Step(w, "terminated thread %d", t1)

	for i := 0; i < 2; i++ {
		got, ok := sys.ScheduleNext()
		if !ok || got != t2 {
			return fmt.Errorf("after terminate: got thread %d (ok=%v), want %d", got, ok, t2)
		}
		printer.Step(w, "scheduled thread %d", got)
	}

	printer.Success(w, "demo complete")
	return nil
}
