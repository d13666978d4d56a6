package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"tick/hal"
	"tick/internal/buildinfo"
	"tick/internal/config"
	"tick/tickos/kernel"
	"tick/tickos/report"
	"tick/tickos/services/term"
	"tick/tickos/tasks/check"
	"tick/tickos/tasks/periodic"
)

// Options selects optional host features.
type Options struct {
	// Trace logs every kernel event.
	Trace bool
	// Console mirrors the serial line onto the framebuffer.
	Console bool
	// Tracer, if set, receives every kernel event next to the recorder.
	Tracer kernel.Tracer
}

// System is a started kernel running the configured workload.
type System struct {
	h   hal.HAL
	cfg config.Config
	k   *kernel.Kernel
	rec *report.Recorder

	uart    kernel.MutexID
	tasks   []*periodic.Task
	ids     []kernel.TaskID
	check   *check.Task
	console *term.Console
}

// New builds the workload described by cfg on top of h and starts the
// scheduler. Time does not advance until Step, Advance or Run is called.
func New(h hal.HAL, cfg config.Config, opts Options) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &System{h: h, cfg: cfg}

	var traceLog hal.Logger
	if opts.Trace {
		traceLog = h.Logger()
	}
	s.rec = report.NewRecorder(traceLog)

	serial := h.Serial()
	serial.SetBytesPerTick(cfg.Serial.BytesPerTick)
	if opts.Console {
		s.console = term.New(h.Display())
		serial.AddSink(s.console)
	}

	s.k = kernel.NewWithConfig(kernel.Config{
		HeapWords: cfg.HeapWords,
		Tracer:    kernel.Tracers(s.rec, opts.Tracer),
		TickHook:  func(uint64) { serial.Tick() },
		OnPanic:   panicHandler(h),
	})

	var err error
	if s.uart, err = s.k.NewMutex("uart"); err != nil {
		return nil, err
	}
	for _, tc := range cfg.Tasks {
		t := periodic.New(periodicConfig(h, tc), s.uart, serial)
		id, err := t.Register(s.k)
		if err != nil {
			return nil, err
		}
		s.tasks = append(s.tasks, t)
		s.ids = append(s.ids, id)
	}

	if cfg.Check.Enabled {
		s.check = check.New(check.Config{
			Priority:    kernel.Priority(cfg.Check.Priority),
			Period:      cfg.Check.Period,
			ErrorPeriod: cfg.Check.ErrorPeriod,
			StackWords:  cfg.Check.StackWords,
		}, h.LED(), h.Logger(), s.ids...)
		if _, err := s.k.CreateTask("check", s.check, kernel.Priority(cfg.Check.Priority), cfg.Check.StackWords); err != nil {
			return nil, errors.Wrap(err, "register check")
		}
	}

	if err := s.k.Start(); err != nil {
		return nil, err
	}
	s.log(buildinfo.String())
	return s, nil
}

func periodicConfig(h hal.HAL, tc config.Task) periodic.Config {
	pc := periodic.Config{
		Name:       tc.Name,
		Priority:   kernel.Priority(tc.Priority),
		Period:     tc.Period,
		Phase:      tc.Phase,
		Writes:     tc.Writes,
		Message:    tc.Message,
		Delay:      tc.Delay,
		Retry:      periodic.Retry{Budget: tc.Retry.Budget, Backoff: tc.Retry.Backoff},
		Timeout:    tc.WaitTimeout(),
		StackWords: tc.StackWords,
	}
	if tc.TracePin != "" {
		if gpio := h.GPIO(); gpio != nil {
			if p := gpio.Lookup(tc.TracePin); p != nil {
				pc.TracePin = p
			}
		}
	}
	return pc
}

// Step runs the kernel up to the newest tick published by the HAL time
// source. It never blocks.
func (s *System) Step() error {
	var ch <-chan uint64
	if t := s.h.Time(); t != nil {
		ch = t.Ticks()
	}
	if ch == nil {
		return s.err()
	}
	var latest uint64
	for drained := false; !drained; {
		select {
		case seq := <-ch:
			latest = seq
		default:
			drained = true
		}
	}
	if latest > 0 {
		s.k.TickTo(latest)
	}
	return s.err()
}

// Advance runs n ticks without consulting the HAL time source.
func (s *System) Advance(n uint64) error {
	s.k.TickTo(s.k.Now() + n)
	return s.err()
}

// Run consumes the HAL tick stream until ctx is done or the kernel stops.
// A second goroutine reports the check task verdict once it fails.
func (s *System) Run(ctx context.Context) error {
	t := s.h.Time()
	if t == nil {
		return errors.Wrap(kernel.ErrTickSourceClosed, "run: no time source")
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.k.Run(ctx, t.Ticks())
	})
	if s.check != nil {
		g.Go(func() error {
			return s.watchCheck(ctx)
		})
	}
	return g.Wait()
}

func (s *System) watchCheck(ctx context.Context) error {
	tk := time.NewTicker(time.Second)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
			if s.check.Failed() {
				s.log(fmt.Sprintf("check failed at tick %d: %v", s.k.Now(), s.check.Stalled()))
				return nil
			}
		}
	}
}

func (s *System) err() error {
	if info, ok := s.k.Panic(); ok {
		return errors.Wrapf(kernel.ErrKernelPanic, "task %d at tick %d: %v", info.TaskID, info.Tick, info.Value)
	}
	return nil
}

func (s *System) log(line string) {
	if l := s.h.Logger(); l != nil {
		l.WriteLineString(line)
	}
}

// Kernel returns the underlying scheduler.
func (s *System) Kernel() *kernel.Kernel { return s.k }

// Tasks returns the periodic tasks in configuration order.
func (s *System) Tasks() []*periodic.Task { return s.tasks }

// Check returns the check task, or nil when disabled.
func (s *System) Check() *check.Task { return s.check }

// Console returns the framebuffer console, or nil when disabled.
func (s *System) Console() *term.Console { return s.console }

// Report summarizes the run so far.
func (s *System) Report() report.Report {
	return s.rec.Summary(s.k.Now(), s.k.IdleTicks(), s.k.Tasks())
}

// Deadlocks returns the wait-for cycles currently present.
func (s *System) Deadlocks() [][]kernel.TaskID { return s.k.Deadlocks() }

// StepFunc adapts New to the host runners, which call the returned
// function once per frame. Construction errors surface on the first call.
func StepFunc(cfg config.Config, opts Options) func(hal.HAL) func() error {
	return func(h hal.HAL) func() error {
		s, err := New(h, cfg, opts)
		if err != nil {
			return func() error { return err }
		}
		return s.Step
	}
}

// Run builds the system on h and runs it forever. Any error is logged and
// the caller is halted.
func Run(h hal.HAL, cfg config.Config) {
	s, err := New(h, cfg, Options{Console: true})
	if err == nil {
		err = s.Run(context.Background())
	}
	if l := h.Logger(); l != nil {
		l.WriteLineString(fmt.Sprintf("tick: halted: %v", err))
	}
	select {}
}
