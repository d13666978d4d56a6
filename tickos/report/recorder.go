package report

import (
	"sync"

	"tick/hal"
	"tick/tickos/kernel"
)

type taskTrace struct {
	seen      bool
	act       uint64
	hasAct    bool
	blocked   bool
	blockedAt uint64

	cycles      uint64
	preemptions uint64
	timeouts    uint64
	overruns    uint64

	latency  []float64
	waiting  []float64
	response []float64
}

// Recorder is a kernel.Tracer that turns the event stream into per-task
// timing samples.
//
// An activation starts at Start for tasks that run immediately, at every
// wake-up and right after an overrun. Samples are measured from it:
// acquire latency, time blocked on the mutex and response time up to the
// release.
type Recorder struct {
	mu    sync.Mutex
	log   hal.Logger
	tasks map[kernel.TaskID]*taskTrace
	order []kernel.TaskID
	count uint64
}

// NewRecorder returns a recorder. When log is non-nil every event is also
// written to it as a line.
func NewRecorder(log hal.Logger) *Recorder {
	return &Recorder{log: log, tasks: make(map[kernel.TaskID]*taskTrace)}
}

func (r *Recorder) task(id kernel.TaskID) *taskTrace {
	t, ok := r.tasks[id]
	if !ok {
		t = &taskTrace{}
		r.tasks[id] = t
	}
	return t
}

func (r *Recorder) Trace(e kernel.Event) {
	if r.log != nil {
		r.log.WriteLineString(e.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++

	switch e.Kind {
	case kernel.EventCreate:
		r.task(e.Task).seen = true
	case kernel.EventStart:
		for _, t := range r.tasks {
			t.act = e.Tick
			t.hasAct = true
		}
	case kernel.EventWake:
		t := r.task(e.Task)
		t.act = e.Tick
		t.hasAct = true
	case kernel.EventOverrun:
		t := r.task(e.Task)
		t.overruns++
		t.act = e.Tick
		t.hasAct = true
	case kernel.EventPreempt:
		r.task(e.Task).preemptions++
	case kernel.EventBlock:
		t := r.task(e.Task)
		t.blocked = true
		t.blockedAt = e.Tick
	case kernel.EventTimeout:
		t := r.task(e.Task)
		t.timeouts++
		t.blocked = false
	case kernel.EventAcquire:
		t := r.task(e.Task)
		r.order = append(r.order, e.Task)
		if t.hasAct {
			t.latency = append(t.latency, float64(e.Tick-t.act))
		}
		wait := uint64(0)
		if t.blocked {
			wait = e.Tick - t.blockedAt
			t.blocked = false
		}
		t.waiting = append(t.waiting, float64(wait))
	case kernel.EventRelease:
		t := r.task(e.Task)
		t.cycles++
		if t.hasAct {
			t.response = append(t.response, float64(e.Tick-t.act))
			t.hasAct = false
		}
	}
}

// Order returns the task of every mutex acquisition, in order.
func (r *Recorder) Order() []kernel.TaskID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kernel.TaskID(nil), r.order...)
}

// Events returns the number of events seen.
func (r *Recorder) Events() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
