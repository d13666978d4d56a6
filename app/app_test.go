package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"tick/hal"
	"tick/internal/config"
	"tick/tickos/kernel"
)

type testLog struct{ lines []string }

func (l *testLog) WriteLineString(s string) { l.lines = append(l.lines, s) }
func (l *testLog) WriteLineBytes(b []byte)  { l.lines = append(l.lines, string(b)) }

type testLED struct{ toggles int }

func (l *testLED) High() { l.toggles++ }
func (l *testLED) Low()  { l.toggles++ }

type testTime struct{ ch chan uint64 }

func (t testTime) Ticks() <-chan uint64 { return t.ch }

type testHAL struct {
	log  *testLog
	led  *testLED
	t    testTime
	out  *bytes.Buffer
	uart *hal.UART
}

func newTestHAL() *testHAL {
	out := &bytes.Buffer{}
	return &testHAL{
		log:  &testLog{},
		led:  &testLED{},
		t:    testTime{ch: make(chan uint64, 16)},
		out:  out,
		uart: hal.NewUART(out, 0),
	}
}

func (h *testHAL) Logger() hal.Logger   { return h.log }
func (h *testHAL) LED() hal.LED         { return h.led }
func (h *testHAL) GPIO() hal.GPIO       { return nil }
func (h *testHAL) Display() hal.Display { return nil }
func (h *testHAL) Time() hal.Time       { return h.t }
func (h *testHAL) Serial() *hal.UART    { return h.uart }

func defaultConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	return cfg
}

func TestDefaultWorkload(t *testing.T) {
	h := newTestHAL()
	s, err := New(h, defaultConfig(t), Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Advance(2000); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	short, long := s.Tasks()[0].Stats(), s.Tasks()[1].Stats()
	if short.Writes != 200 || short.Dropped != 0 {
		t.Fatalf("short = %+v, want 200 writes", short)
	}
	if long.Writes != 40 || long.Dropped != 0 {
		t.Fatalf("long = %+v, want 40 writes", long)
	}
	if got, want := h.out.Len(), 200*len("short task\n")+40*len("long task\n"); got != want {
		t.Fatalf("serial bytes = %d, want %d", got, want)
	}
	if lines := strings.Count(h.out.String(), "\n"); lines != 240 {
		t.Fatalf("serial lines = %d, want 240", lines)
	}
	if d := s.Deadlocks(); len(d) != 0 {
		t.Fatalf("Deadlocks() = %v", d)
	}

	rep := s.Report()
	if rep.Tick != 2000 {
		t.Fatalf("Report().Tick = %d, want 2000", rep.Tick)
	}
	if _, ok := rep.Find("short"); !ok {
		t.Fatal("report has no short task")
	}
	if _, ok := rep.Find("check"); !ok {
		t.Fatal("report has no check task")
	}
}

func TestCheckTogglesLED(t *testing.T) {
	h := newTestHAL()
	s, err := New(h, defaultConfig(t), Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Advance(6001); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if s.Check().Failed() {
		t.Fatalf("check failed: %v", s.Check().Stalled())
	}
	if got := s.Check().Toggles(); got != 2 {
		t.Fatalf("Toggles() = %d, want 2", got)
	}
	if h.led.toggles != 2 {
		t.Fatalf("led toggles = %d, want 2", h.led.toggles)
	}
}

func TestCheckDisabled(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Check.Enabled = false
	s, err := New(newTestHAL(), cfg, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Check() != nil {
		t.Fatal("Check() != nil with check disabled")
	}
	if _, ok := s.Report().Find("check"); ok {
		t.Fatal("report lists a disabled check task")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Tasks[0].Period = 0
	if _, err := New(newTestHAL(), cfg, Options{}); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("New() error = %v, want ErrInvalid", err)
	}
}

func TestNewReportsHeapExhaustion(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.HeapWords = 200
	if _, err := New(newTestHAL(), cfg, Options{}); !errors.Is(err, kernel.ErrTaskCreationFailed) {
		t.Fatalf("New() error = %v, want ErrTaskCreationFailed", err)
	}
}

func TestStepFollowsTimeSource(t *testing.T) {
	h := newTestHAL()
	s, err := New(h, defaultConfig(t), Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	h.t.ch <- 10
	h.t.ch <- 50
	if err := s.Step(); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if err := s.Step(); err != nil {
		t.Fatalf("idle Step() error = %v", err)
	}
	if got := s.Kernel().Now(); got != 50 {
		t.Fatalf("Now() = %d, want 50", got)
	}
	if got := strings.Count(h.out.String(), "short task\n"); got != 10 {
		t.Fatalf("short lines = %d, want 10", got)
	}
}

func TestStepFuncSurfacesConstructionError(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Tasks = nil
	step := StepFunc(cfg, Options{})(newTestHAL())
	if err := step(); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("step() error = %v, want ErrInvalid", err)
	}
}

func TestTraceLogsEvents(t *testing.T) {
	h := newTestHAL()
	s, err := New(h, defaultConfig(t), Options{Trace: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	before := len(h.log.lines)
	_ = s.Advance(20)
	if len(h.log.lines) == before {
		t.Fatal("no trace lines logged")
	}
}

func TestExtraTracerSeesEvents(t *testing.T) {
	var overruns, acquires int
	tr := kernel.TracerFunc(func(e kernel.Event) {
		switch e.Kind {
		case kernel.EventOverrun:
			overruns++
		case kernel.EventAcquire:
			acquires++
		}
	})
	s, err := New(newTestHAL(), defaultConfig(t), Options{Tracer: tr})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_ = s.Advance(1000)

	// 10 short cycles and 2 long ones, each acquiring the mutex once.
	if acquires != 12 {
		t.Fatalf("acquire events = %d, want 12", acquires)
	}
	if overruns != 0 {
		t.Fatalf("overrun events = %d, want 0", overruns)
	}
	if got := s.Report().Tick; got != 1000 {
		t.Fatalf("recorder tick = %d, want 1000", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newTestHAL()
	s, err := New(h, defaultConfig(t), Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	h.t.ch <- 100
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
