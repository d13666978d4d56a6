package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"tick/tickos/kernel"
)

// Stat summarizes a sample set in ticks.
type Stat struct {
	N      int
	Mean   float64
	StdDev float64
	Max    float64
}

func summarize(x []float64) Stat {
	if len(x) == 0 {
		return Stat{}
	}
	s := Stat{N: len(x), Max: floats.Max(x)}
	if len(x) == 1 {
		s.Mean = x[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(x, nil)
	return s
}

func (s Stat) String() string {
	if s.N == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f/%.1f/%.0f", s.Mean, s.StdDev, s.Max)
}

type TaskSummary struct {
	ID          kernel.TaskID
	Name        string
	Priority    kernel.Priority
	Cycles      uint64
	Preemptions uint64
	Timeouts    uint64
	Overruns    uint64
	Latency     Stat
	Blocked     Stat
	Response    Stat
}

// Report is the per-task summary of a run.
type Report struct {
	Tick      uint64
	IdleTicks uint64
	Tasks     []TaskSummary
}

// Summary builds a report. Tasks are labelled from infos; the idle task is
// left out.
func (r *Recorder) Summary(now, idle uint64, infos []kernel.TaskInfo) Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := Report{Tick: now, IdleTicks: idle}
	for _, info := range infos {
		if info.Idle {
			continue
		}
		ts := TaskSummary{ID: info.ID, Name: info.Name, Priority: info.Priority}
		if t, ok := r.tasks[info.ID]; ok {
			ts.Cycles = t.cycles
			ts.Preemptions = t.preemptions
			ts.Timeouts = t.timeouts
			ts.Overruns = t.overruns
			ts.Latency = summarize(t.latency)
			ts.Blocked = summarize(t.waiting)
			ts.Response = summarize(t.response)
		}
		rep.Tasks = append(rep.Tasks, ts)
	}
	return rep
}

// Find returns the summary of the task named name.
func (rep Report) Find(name string) (TaskSummary, bool) {
	for _, t := range rep.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskSummary{}, false
}

// WriteTo prints the report as a table. Timing columns are mean/stddev/max
// in ticks.
func (rep Report) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "tick %d, idle %d\n", rep.Tick, rep.IdleTicks)
	fmt.Fprintln(tw, "TASK\tPRIO\tCYCLES\tPREEMPT\tTIMEOUT\tOVERRUN\tLATENCY\tBLOCKED\tRESPONSE")
	for _, t := range rep.Tasks {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			t.Name, t.Priority, t.Cycles, t.Preemptions, t.Timeouts, t.Overruns,
			t.Latency, t.Blocked, t.Response)
	}
	err := tw.Flush()
	if err == nil {
		err = cw.err
	}
	return cw.n, err
}

type countWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}
