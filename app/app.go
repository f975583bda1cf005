package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"bruna/hal"
	"bruna/internal/config"
	"bruna/kernel"
	"bruna/kernel/redisbus"
)

// App is a booted kernel together with the HAL it runs on.
type App struct {
	cfg config.Config
	h   hal.HAL
	sys *kernel.System
	mem *kernel.RegionAllocator

	closeBus func() error
	names    map[kernel.ProcessID]string
	pids     map[string]kernel.ProcessID
}

// New builds the kernel described by cfg and spawns its boot manifest.
func New(ctx context.Context, cfg config.Config, h hal.HAL) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bus, closeBus, err := openBus(ctx, cfg.Bus)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		h:        h,
		mem:      kernel.NewRegionAllocator(cfg.Memory.Arena),
		closeBus: closeBus,
		names:    make(map[kernel.ProcessID]string),
		pids:     make(map[string]kernel.ProcessID),
	}
	a.sys = kernel.NewSystem(kernel.Options{
		Bus:     bus,
		Memory:  a.mem,
		Logger:  h.Logger(),
		OnPanic: panicHandler(h.Logger()),
	})

	if err := a.boot(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func openBus(ctx context.Context, cfg config.BusConfig) (kernel.Bus, func() error, error) {
	if cfg.Backend != config.BusRedis {
		return kernel.NewMemoryBus(), func() error { return nil }, nil
	}
	b, err := redisbus.New(&redis.Options{Addr: cfg.Redis.Addr}, cfg.Redis.Namespace, cfg.Redis.TimeoutDuration())
	if err != nil {
		return nil, nil, err
	}
	if err := b.Ping(ctx); err != nil {
		_ = b.Close()
		return nil, nil, fmt.Errorf("redis bus at %s: %w", cfg.Redis.Addr, err)
	}
	return b, b.Close, nil
}

// boot creates every manifest process first so ping tasks can resolve peers.
func (a *App) boot() error {
	for _, spec := range a.cfg.Boot {
		pid, err := a.sys.CreateProcess()
		if err != nil {
			return fmt.Errorf("boot %s: %w", spec.Name, err)
		}
		a.names[pid] = spec.Name
		a.pids[spec.Name] = pid
	}
	for _, spec := range a.cfg.Boot {
		pid := a.pids[spec.Name]
		for _, kind := range spec.Tasks {
			task, err := a.newTask(spec, kind)
			if err != nil {
				return err
			}
			if _, err := a.sys.Spawn(pid, task); err != nil {
				return fmt.Errorf("boot %s: %w", spec.Name, err)
			}
		}
	}
	return nil
}

func (a *App) newTask(spec config.ProcessSpec, kind string) (kernel.Task, error) {
	log := a.h.Logger()
	switch kind {
	case config.TaskIdle:
		return nil, nil
	case config.TaskPing:
		peer, ok := a.pids[spec.Peer]
		if !ok {
			return nil, fmt.Errorf("boot %s: unknown peer %q", spec.Name, spec.Peer)
		}
		return newPing(log, peer, spec.SleepDuration()), nil
	case config.TaskPong:
		return newPong(log), nil
	case config.TaskSleep:
		return newSleeper(log, spec.SleepDuration()), nil
	default:
		return nil, fmt.Errorf("boot %s: unknown task %q", spec.Name, kind)
	}
}

// System returns the kernel.
func (a *App) System() *kernel.System { return a.sys }

// Memory returns the region allocator backing process memory.
func (a *App) Memory() *kernel.RegionAllocator { return a.mem }

// PID returns the process booted under name.
func (a *App) PID(name string) (kernel.ProcessID, bool) {
	pid, ok := a.pids[name]
	return pid, ok
}

// Name returns the manifest name of pid.
func (a *App) Name(pid kernel.ProcessID) string { return a.names[pid] }

// Run drives the kernel until ctx is done or the configured tick count is reached.
//
// One goroutine forwards HAL ticks to the kernel clock; the other runs the
// headless loop, stepping the dispatcher StepBudget times per frame.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if ht := a.h.Time(); ht != nil {
		if ch := ht.Ticks(); ch != nil {
			g.Go(func() error {
				for {
					select {
					case <-gctx.Done():
						return nil
					case seq := <-ch:
						a.sys.TickTo(seq)
					}
				}
			})
		}
	}

	g.Go(func() error {
		defer cancel()
		return hal.RunHeadless(gctx, a.h, a.step, hal.HeadlessConfig{
			Hz:         a.cfg.Headless.Hz,
			Ticks:      a.cfg.Headless.Ticks,
			StepBudget: a.cfg.Headless.StepBudget,
			Virtual:    a.cfg.Headless.Virtual,
		})
	})
	return g.Wait()
}

func (a *App) step() error {
	a.sys.Step()
	return nil
}

// Close releases the bus connection.
func (a *App) Close() error {
	if a.closeBus == nil {
		return nil
	}
	return a.closeBus()
}
