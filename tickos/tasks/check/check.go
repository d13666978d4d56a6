package check

import (
	"fmt"
	"sync"

	"tick/hal"
	"tick/tickos/kernel"
)

const (
	DefaultPeriod      = 3000
	DefaultErrorPeriod = 500
)

type Config struct {
	Priority    kernel.Priority
	Period      uint64
	ErrorPeriod uint64
	StackWords  int
}

// Task verifies that every watched task keeps making progress.
//
// While all progress counters advance between two activations the LED
// toggles every Period. The first stall latches the error state and the
// LED toggles every ErrorPeriod from then on.
type Task struct {
	cfg    Config
	led    hal.LED
	log    hal.Logger
	watch  []kernel.TaskID
	last   []uint64
	primed bool

	deadline kernel.Deadline
	on       bool

	mu      sync.Mutex
	failed  bool
	stalled []string
	toggles uint64
}

// New returns a check task. log may be nil.
func New(cfg Config, led hal.LED, log hal.Logger, watch ...kernel.TaskID) *Task {
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.ErrorPeriod == 0 {
		cfg.ErrorPeriod = DefaultErrorPeriod
	}
	return &Task{
		cfg:   cfg,
		led:   led,
		log:   log,
		watch: watch,
		last:  make([]uint64, len(watch)),
	}
}

func (t *Task) Step(ctx *kernel.Context) {
	if !t.primed {
		t.primed = true
		t.deadline = kernel.NewDeadline(ctx.Now(), t.cfg.Period)
		t.snapshot(ctx)
		t.sleep(ctx)
		return
	}

	var stalled []string
	for i, id := range t.watch {
		p, _ := ctx.Progress(id)
		if p == t.last[i] {
			stalled = append(stalled, ctx.TaskName(id))
		}
		t.last[i] = p
	}

	t.mu.Lock()
	if len(stalled) > 0 && !t.failed {
		t.failed = true
		t.stalled = stalled
		t.deadline.Period = t.cfg.ErrorPeriod
		if t.log != nil {
			t.log.WriteLineString(fmt.Sprintf("check: tick %d: stalled %v", ctx.Now(), stalled))
		}
	}
	t.toggles++
	t.mu.Unlock()

	t.toggle()
	t.sleep(ctx)
}

func (t *Task) snapshot(ctx *kernel.Context) {
	for i, id := range t.watch {
		t.last[i], _ = ctx.Progress(id)
	}
}

func (t *Task) sleep(ctx *kernel.Context) {
	if _, err := ctx.DelayUntil(&t.deadline); err != nil {
		panic(err)
	}
}

func (t *Task) toggle() {
	if t.led == nil {
		return
	}
	t.on = !t.on
	if t.on {
		t.led.High()
	} else {
		t.led.Low()
	}
}

// Failed reports whether a stall was ever observed.
func (t *Task) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

// Stalled returns the names of the tasks found stalled at the first failure.
func (t *Task) Stalled() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.stalled...)
}

// Toggles returns the number of LED toggles so far.
func (t *Task) Toggles() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.toggles
}
