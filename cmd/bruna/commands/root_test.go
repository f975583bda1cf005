package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BRUNA_CONFIG", "")
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	out, _, err := execute(t)
	assert.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "bruna")
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	_, _, err := execute(t, "--unknown-flag", "value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestRootCommand_Version(t *testing.T) {
	out, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "commit:")
}

func TestDemoCommand(t *testing.T) {
	out, _, err := execute(t, "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "created processes 1 and 2")
	assert.Contains(t, out, "sent message 1 (5 bytes) from 1 to 2")
	assert.Contains(t, out, `process 2 received "hello" from 1`)
	assert.Contains(t, out, "terminated thread 1")
	assert.Contains(t, out, "✓ demo complete")
}

func TestDemoCommand_VerboseLogsKernel(t *testing.T) {
	_, errOut, err := execute(t, "demo", "-v")
	require.NoError(t, err)
	assert.Contains(t, errOut, "kernel: process 1 created")
	assert.Contains(t, errOut, "kernel: thread 1 terminated")
}

func TestConfigCommand(t *testing.T) {
	out, _, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: memory")
	assert.Contains(t, out, "step_budget: 4")
	assert.Contains(t, out, "name: sleeper")
}

func TestConfigCommand_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("headless:\n  hz: -1\n"), 0o644))

	_, errOut, err := execute(t, "config", "--config", path)
	require.Error(t, err)
	assert.Equal(t, "invalid configuration", err.Error())
	assert.Contains(t, errOut, "headless.hz")
}

func TestPsCommand(t *testing.T) {
	out, _, err := execute(t, "ps", "--ticks", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "boot ")
	assert.Contains(t, out, "PID")
	for _, name := range []string{"init", "ping", "pong", "sleeper"} {
		assert.Contains(t, out, name)
	}
}

func TestRunCommand_FiniteTicks(t *testing.T) {
	out, _, err := execute(t, "run", "--ticks", "10", "--hz", "1000", "--virtual")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ booted 4 processes (bruna dev")
	assert.Contains(t, out, "kernel: boot ")
	assert.Contains(t, out, "✓ stopped at tick")
}

func TestRunCommand_RejectsBadFlags(t *testing.T) {
	_, errOut, err := execute(t, "run", "--bus", "pigeon", "--ticks", "1")
	require.Error(t, err)
	assert.Contains(t, errOut, "unknown bus backend")
}

func TestRunCommand_InterruptIsWarning(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BRUNA_CONFIG", "")
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"run", "--virtual"})

	require.NoError(t, root.ExecuteContext(ctx))
	assert.Contains(t, out.String(), "! interrupted at tick")
}
