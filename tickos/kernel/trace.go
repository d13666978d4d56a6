package kernel

import "fmt"

// EventKind identifies a scheduler or mutex event.
type EventKind uint8

const (
	EventCreate EventKind = iota + 1
	EventStart
	EventDispatch
	EventPreempt
	EventBlock
	EventAcquire
	EventRelease
	EventTimeout
	EventSleep
	EventWake
	EventOverrun
	EventPanic
)

func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventStart:
		return "start"
	case EventDispatch:
		return "dispatch"
	case EventPreempt:
		return "preempt"
	case EventBlock:
		return "block"
	case EventAcquire:
		return "acquire"
	case EventRelease:
		return "release"
	case EventTimeout:
		return "timeout"
	case EventSleep:
		return "sleep"
	case EventWake:
		return "wake"
	case EventOverrun:
		return "overrun"
	case EventPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Event is one entry of the kernel trace.
//
// Other is the second task involved: the preempting task for EventPreempt,
// the holder for EventBlock/EventTimeout and the releasing task for an
// EventAcquire produced by a handover. Value is the wake tick for
// EventSleep and the missed deadline for EventOverrun.
type Event struct {
	Tick  uint64
	Kind  EventKind
	Task  TaskID
	Mutex MutexID
	Other TaskID
	Value uint64
}

func (e Event) String() string {
	switch e.Kind {
	case EventBlock, EventTimeout:
		return fmt.Sprintf("%6d %-8s task=%d mutex=%d holder=%d", e.Tick, e.Kind, e.Task, e.Mutex, e.Other)
	case EventAcquire, EventRelease:
		return fmt.Sprintf("%6d %-8s task=%d mutex=%d", e.Tick, e.Kind, e.Task, e.Mutex)
	case EventPreempt:
		return fmt.Sprintf("%6d %-8s task=%d by=%d", e.Tick, e.Kind, e.Task, e.Other)
	case EventSleep, EventOverrun:
		return fmt.Sprintf("%6d %-8s task=%d until=%d", e.Tick, e.Kind, e.Task, e.Value)
	default:
		return fmt.Sprintf("%6d %-8s task=%d", e.Tick, e.Kind, e.Task)
	}
}

// Tracer receives kernel events. It is called with the kernel lock held
// and must not call back into the kernel.
type Tracer interface {
	Trace(Event)
}

// TracerFunc adapts a function to the Tracer interface.
type TracerFunc func(Event)

func (f TracerFunc) Trace(e Event) { f(e) }

// Tracers fans events out to every non-nil tracer.
func Tracers(ts ...Tracer) Tracer {
	var out multiTracer
	for _, t := range ts {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

type multiTracer []Tracer

func (m multiTracer) Trace(e Event) {
	for _, t := range m {
		t.Trace(e)
	}
}
