//go:build !tinygo

package hal

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	// Hz is the polling rate of the runner loop. Ticks are derived from
	// wall-clock time, so Hz only bounds latency.
	Hz int
	// Ticks stops the runner once the tick source reached this sequence
	// number. Zero runs until ctx is cancelled.
	Ticks uint64
}

// RunHeadless runs the system without opening a window.
func RunHeadless(ctx context.Context, opts Options, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 200
	}

	h := newHost(opts, os.Stdout)
	return runHeadless(ctx, h, newApp, cfg)
}

func runHeadless(ctx context.Context, h *hostHAL, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	step := newApp(h)

	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return errors.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	t := time.NewTicker(d)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			h.t.step()
			if step != nil {
				if err := step(); err != nil {
					return err
				}
			}
			if cfg.Ticks > 0 && h.t.seq >= cfg.Ticks {
				return nil
			}
		}
	}
}
