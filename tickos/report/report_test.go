package report

import (
	"bytes"
	"strings"
	"testing"

	"tick/tickos/kernel"
	"tick/tickos/tasks/periodic"
)

type sink struct{}

func (sink) Write(p []byte) (int, error) { return len(p), nil }

type lines struct {
	n int
}

func (l *lines) WriteLineString(string) { l.n++ }
func (l *lines) WriteLineBytes([]byte)  { l.n++ }

func runWorkload(t *testing.T, rec *Recorder, ticks uint64) (*kernel.Kernel, kernel.TaskID, kernel.TaskID) {
	t.Helper()
	k := kernel.NewWithConfig(kernel.Config{Tracer: rec})
	m, err := k.NewMutex("uart")
	if err != nil {
		t.Fatalf("NewMutex() error = %v", err)
	}
	short := periodic.New(periodic.Config{Name: "short", Priority: 2, Period: 100, Writes: 10, Timeout: kernel.WaitForever}, m, sink{})
	long := periodic.New(periodic.Config{Name: "long", Priority: 1, Period: 500, Writes: 10, Delay: 10, Timeout: kernel.WaitForever}, m, sink{})
	a, err := short.Register(k)
	if err != nil {
		t.Fatalf("Register(short) error = %v", err)
	}
	b, err := long.Register(k)
	if err != nil {
		t.Fatalf("Register(long) error = %v", err)
	}
	if err := k.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	k.TickTo(ticks)
	return k, a, b
}

func TestRecorderTimings(t *testing.T) {
	rec := NewRecorder(nil)
	k, _, _ := runWorkload(t, rec, 2000)
	rep := rec.Summary(k.Now(), k.IdleTicks(), k.Tasks())

	if len(rep.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2 (idle excluded)", len(rep.Tasks))
	}
	short, ok := rep.Find("short")
	if !ok || short.Cycles != 20 {
		t.Fatalf("short = %+v, want 20 cycles", short)
	}
	long, ok := rep.Find("long")
	if !ok || long.Cycles != 4 {
		t.Fatalf("long = %+v, want 4 cycles", long)
	}

	if long.Latency.N != 4 || long.Latency.Mean != 12 || long.Latency.StdDev != 0 {
		t.Fatalf("long latency = %+v, want 4 samples of 12", long.Latency)
	}
	if long.Response.Max != 124 {
		t.Fatalf("long response max = %v, want 124", long.Response.Max)
	}
	if long.Preemptions != 4 {
		t.Fatalf("long preemptions = %d, want 4", long.Preemptions)
	}
	// short waits behind long's critical section once per long period.
	if short.Blocked.Max != 24 || short.Response.Max != 36 {
		t.Fatalf("short blocked = %+v response = %+v, want max 24 and 36", short.Blocked, short.Response)
	}
}

func TestRecorderOrder(t *testing.T) {
	rec := NewRecorder(nil)
	_, a, b := runWorkload(t, rec, 1000)

	order := rec.Order()
	want := []kernel.TaskID{a, b, a, a, a, a, a, b, a, a, a, a}
	if len(order) != len(want) {
		t.Fatalf("Order() = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Order() = %v, want %v", order, want)
		}
	}
}

func TestRecorderLogsEveryEvent(t *testing.T) {
	log := &lines{}
	rec := NewRecorder(log)
	runWorkload(t, rec, 50)

	if log.n == 0 || uint64(log.n) != rec.Events() {
		t.Fatalf("logged %d lines for %d events", log.n, rec.Events())
	}
}

func TestReportTable(t *testing.T) {
	rec := NewRecorder(nil)
	k, _, _ := runWorkload(t, rec, 600)

	var buf bytes.Buffer
	n, err := rec.Summary(k.Now(), k.IdleTicks(), k.Tasks()).WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if n != int64(buf.Len()) {
		t.Fatalf("WriteTo() = %d, wrote %d bytes", n, buf.Len())
	}
	out := buf.String()
	for _, s := range []string{"tick 600", "TASK", "short", "long", "RESPONSE"} {
		if !strings.Contains(out, s) {
			t.Fatalf("table missing %q:\n%s", s, out)
		}
	}
}

func TestSummarize(t *testing.T) {
	if s := summarize(nil); s.N != 0 || s.String() != "-" {
		t.Fatalf("summarize(nil) = %+v", s)
	}
	if s := summarize([]float64{7}); s.Mean != 7 || s.StdDev != 0 || s.Max != 7 {
		t.Fatalf("summarize([7]) = %+v", s)
	}
	s := summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Mean != 5 || s.Max != 9 {
		t.Fatalf("summarize() = %+v", s)
	}
}
