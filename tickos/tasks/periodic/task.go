package periodic

import (
	"sync"

	"tick/hal"
	"tick/tickos/kernel"

	"github.com/pkg/errors"
)

// Retry bounds the write retries inside one critical section.
type Retry struct {
	// Budget is the number of retries per write before it is dropped.
	Budget int
	// Backoff is the number of busy ticks between two attempts.
	Backoff uint64
}

// Config describes one periodic producer.
type Config struct {
	Name     string
	Priority kernel.Priority
	Period   uint64
	// Phase is the absolute tick of the first activation.
	Phase uint64
	// Writes is the number of output operations per cycle.
	Writes  int
	Message string
	// Delay is the number of busy ticks after every write, spent while
	// holding the mutex.
	Delay   uint64
	Retry   Retry
	Timeout kernel.Timeout
	// StackWords is charged against the kernel heap.
	StackWords int
	// TracePin, if set, is driven high for the duration of the critical
	// section.
	TracePin hal.GPIOPin
}

// Stats counts what a task did so far.
type Stats struct {
	Cycles   uint64
	Writes   uint64
	Dropped  uint64
	Skipped  uint64
	Overruns uint64
	Retries  uint64
}

type phase uint8

const (
	phaseStart phase = iota
	phaseAcquire
	phaseWrite
	phaseBusy
	phaseRelease
)

// Task acquires the shared channel once per period and emits a fixed
// number of writes while holding it.
//
// Every Step performs one bounded operation: an acquire attempt, one write,
// one busy tick or the release plus the wait for the next period.
type Task struct {
	cfg Config
	mu  kernel.MutexID
	out hal.Serial
	msg []byte

	deadline kernel.Deadline
	phase    phase
	next     phase
	busy     uint64
	done     int
	retries  int

	statsMu sync.Mutex
	stats   Stats
}

// New returns a task writing to out under mutex m.
func New(cfg Config, m kernel.MutexID, out hal.Serial) *Task {
	if cfg.Writes <= 0 {
		cfg.Writes = 1
	}
	if cfg.Message == "" {
		cfg.Message = cfg.Name + "\n"
	}
	return &Task{cfg: cfg, mu: m, out: out, msg: []byte(cfg.Message)}
}

// Register creates the task in k.
func (t *Task) Register(k *kernel.Kernel) (kernel.TaskID, error) {
	if t.cfg.Period == 0 {
		return 0, errors.Wrapf(kernel.ErrInvalidPeriod, "register %s", t.cfg.Name)
	}
	id, err := k.CreateTask(t.cfg.Name, t, t.cfg.Priority, t.cfg.StackWords)
	if err != nil {
		return 0, errors.Wrapf(err, "register %s", t.cfg.Name)
	}
	if t.cfg.TracePin != nil {
		if err := t.cfg.TracePin.Configure(hal.GPIOModeOutput, hal.GPIOPullNone); err != nil {
			return 0, errors.Wrapf(err, "register %s: trace pin", t.cfg.Name)
		}
	}
	return id, nil
}

// Config returns the task configuration.
func (t *Task) Config() Config { return t.cfg }

// Stats returns a snapshot of the counters.
func (t *Task) Stats() Stats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}

func (t *Task) count(f func(*Stats)) {
	t.statsMu.Lock()
	f(&t.stats)
	t.statsMu.Unlock()
}

func (t *Task) Step(ctx *kernel.Context) {
	switch t.phase {
	case phaseStart:
		t.deadline = kernel.NewDeadline(t.cfg.Phase, t.cfg.Period)
		t.phase = phaseAcquire
		if now := ctx.Now(); now < t.cfg.Phase {
			t.must(ctx.Sleep(t.cfg.Phase - now))
			return
		}
		t.acquire(ctx)
	case phaseAcquire:
		t.acquire(ctx)
	case phaseWrite:
		t.write(ctx)
	case phaseBusy:
		t.busy--
		if t.busy == 0 {
			t.phase = t.next
		}
	case phaseRelease:
		t.release(ctx)
	}
}

func (t *Task) acquire(ctx *kernel.Context) {
	switch res := ctx.Acquire(t.mu, t.cfg.Timeout); res {
	case kernel.AcquireOK:
		t.done = 0
		t.retries = 0
		t.pin(true)
		t.phase = phaseWrite
	case kernel.AcquireBlocked:
	case kernel.AcquireTimeout:
		t.count(func(s *Stats) { s.Skipped++ })
		t.wait(ctx)
	default:
		panic(errors.Wrapf(res.Err(), "%s: acquire", t.cfg.Name))
	}
}

func (t *Task) write(ctx *kernel.Context) {
	_, err := t.out.Write(t.msg)
	switch {
	case err == nil:
		t.count(func(s *Stats) { s.Writes++ })
	case errors.Is(err, hal.ErrNotReady) && t.retries < t.cfg.Retry.Budget:
		t.retries++
		t.count(func(s *Stats) { s.Retries++ })
		t.pause(t.cfg.Retry.Backoff, phaseWrite)
		return
	default:
		t.count(func(s *Stats) { s.Dropped++ })
	}

	t.done++
	t.retries = 0
	next := phaseWrite
	if t.done >= t.cfg.Writes {
		next = phaseRelease
	}
	t.pause(t.cfg.Delay, next)
}

func (t *Task) pause(ticks uint64, next phase) {
	if ticks == 0 {
		t.phase = next
		return
	}
	t.busy = ticks
	t.next = next
	t.phase = phaseBusy
}

func (t *Task) release(ctx *kernel.Context) {
	t.must(ctx.Release(t.mu))
	t.pin(false)
	t.count(func(s *Stats) { s.Cycles++ })
	ctx.AddProgress()
	t.wait(ctx)
}

// wait sleeps until the next activation. On an overrun the next cycle
// starts right away.
func (t *Task) wait(ctx *kernel.Context) {
	t.phase = phaseAcquire
	slept, err := ctx.DelayUntil(&t.deadline)
	t.must(err)
	if !slept {
		t.count(func(s *Stats) { s.Overruns++ })
	}
}

func (t *Task) pin(level bool) {
	if t.cfg.TracePin != nil {
		_ = t.cfg.TracePin.Write(level)
	}
}

// must turns kernel misuse into a task panic, which the kernel contains.
func (t *Task) must(err error) {
	if err != nil {
		panic(errors.Wrap(err, t.cfg.Name))
	}
}
