package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"bruna/hal"
	"bruna/internal/config"
	"bruna/kernel"
)

func newTestApp(t *testing.T, cfg config.Config) (*App, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	a, err := New(context.Background(), cfg, hal.New(&buf))
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, &buf
}

func stepN(a *App, n int) {
	for i := 0; i < n; i++ {
		a.System().Step()
	}
}

func TestBootDefaultManifest(t *testing.T) {
	a, _ := newTestApp(t, config.Default())

	procs := a.System().Processes()
	if len(procs) != 4 {
		t.Fatalf("Processes() = %d, want 4", len(procs))
	}
	for _, name := range []string{"init", "ping", "pong", "sleeper"} {
		pid, ok := a.PID(name)
		if !ok {
			t.Fatalf("PID(%q) missing", name)
		}
		if got := a.Name(pid); got != name {
			t.Fatalf("Name(%d) = %q, want %q", pid, got, name)
		}
		st, err := a.System().ProcessState(pid)
		if err != nil || st != kernel.ProcessReady {
			t.Fatalf("ProcessState(%s) = (%v, %v), want ready", name, st, err)
		}
	}
	if got := len(a.System().Ready()); got != 4 {
		t.Fatalf("Ready() = %d threads, want 4", got)
	}
}

func TestPingPongExchange(t *testing.T) {
	a, buf := newTestApp(t, config.Default())

	stepN(a, 8)

	if !strings.Contains(buf.String(), `"pong/ping 1"`) {
		t.Fatalf("log = %q, want ping reply", buf.String())
	}
	ping, _ := a.PID("ping")
	if st, _ := a.System().ProcessState(ping); st != kernel.ProcessWaiting {
		t.Fatalf("ping state = %v, want %v after reply", st, kernel.ProcessWaiting)
	}
	pong, _ := a.PID("pong")
	if n := a.System().Pending(pong); n != 0 {
		t.Fatalf("Pending(pong) = %d, want 0", n)
	}
}

func TestSleeperHoldsMemory(t *testing.T) {
	a, _ := newTestApp(t, config.Default())
	stepN(a, 4)

	pid, _ := a.PID("sleeper")
	if got := len(a.Memory().Regions(pid)); got != 1 {
		t.Fatalf("Regions(sleeper) = %d, want 1", got)
	}
	if err := a.System().TerminateProcess(pid); err != nil {
		t.Fatalf("TerminateProcess() err = %v", err)
	}
	if got := len(a.Memory().Regions(pid)); got != 0 {
		t.Fatalf("Regions(sleeper) after terminate = %d, want 0", got)
	}
}

func TestRunVirtualTicks(t *testing.T) {
	cfg := config.Default()
	cfg.Headless = config.HeadlessConfig{Hz: 1000, Ticks: 60, StepBudget: 4, Virtual: true}
	cfg.Boot = []config.ProcessSpec{{Name: "sleeper", Tasks: []string{config.TaskSleep}, Sleep: "5ms"}}
	a, buf := newTestApp(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run() err = %v", err)
	}
	if !strings.Contains(buf.String(), "sleeper: wake 1") {
		t.Fatalf("log = %q, want a sleeper wake", buf.String())
	}
	if a.System().Now() == 0 {
		t.Fatal("Now() = 0 after Run")
	}
}

func TestRunCanceled(t *testing.T) {
	a, _ := newTestApp(t, config.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx); err != context.Canceled {
		t.Fatalf("Run() err = %v, want %v", err, context.Canceled)
	}
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Bus.Backend = config.BusRedis
	cfg.Bus.Redis.Addr = mr.Addr()
	cfg.Bus.Redis.Namespace = "apptest"
	a, buf := newTestApp(t, cfg)

	stepN(a, 8)

	if !strings.Contains(buf.String(), `"pong/ping 1"`) {
		t.Fatalf("log = %q, want ping reply over redis", buf.String())
	}
}

func TestRedisBackendUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Bus.Backend = config.BusRedis
	cfg.Bus.Redis.Addr = "127.0.0.1:1"
	cfg.Bus.Redis.Timeout = "200ms"

	if _, err := New(context.Background(), cfg, hal.New(&bytes.Buffer{})); err == nil {
		t.Fatal("New() with unreachable redis err = nil")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.Arena = 0
	if _, err := New(context.Background(), cfg, hal.New(&bytes.Buffer{})); err == nil {
		t.Fatal("New() with zero arena err = nil")
	}
}

func TestPanicHandlerLogsStack(t *testing.T) {
	var buf bytes.Buffer
	panicHandler(hal.New(&buf).Logger())(kernel.PanicInfo{PID: 2, TID: 5, Value: "boom", Stack: []byte("frame one\n\nframe two\n")})

	want := "bruna panic: pid=2 tid=5 panic=boom\n  frame one\n  frame two\n"
	if got := buf.String(); got != want {
		t.Fatalf("log = %q, want %q", got, want)
	}
}
