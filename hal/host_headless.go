package hal

import (
	"context"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Hz         int
	Ticks      uint64
	StepBudget int

	// Virtual advances time by exactly one frame period per frame instead of
	// following the wall clock.
	Virtual bool
}

// RunHeadless calls step StepBudget times per frame at Hz frames per second
// until ctx is done, step fails, or Ticks frames have run (0 = forever).
func RunHeadless(ctx context.Context, h HAL, step func() error, cfg HeadlessConfig) error {
	host, ok := h.(*hostHAL)
	if !ok {
		return fmt.Errorf("headless: %T is not a host HAL", h)
	}
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	if cfg.StepBudget <= 0 {
		cfg.StepBudget = 1
	}

	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	perFrame := uint64(d / tickDur)
	if perFrame == 0 {
		perFrame = 1
	}
	t := time.NewTicker(d)
	defer t.Stop()

	var frame uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if cfg.Virtual {
				host.t.advance(perFrame)
			} else {
				host.t.step()
			}
			for i := 0; i < cfg.StepBudget && step != nil; i++ {
				if err := step(); err != nil {
					return err
				}
			}
			frame++
			if cfg.Ticks > 0 && frame >= cfg.Ticks {
				return nil
			}
		}
	}
}
