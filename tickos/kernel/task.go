package kernel

// TaskID is a stable index into the kernel task table.
type TaskID uint8

// Priority orders tasks for dispatch. Higher values are more urgent.
type Priority int

// IdlePriority is reserved for the idle task. Workload tasks use priorities >= 1.
const IdlePriority Priority = 0

// State is the scheduling state of a task.
type State uint8

const (
	StateReady State = iota
	StateRunning
	StateBlocked
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked-on-mutex"
	case StateSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

// Task is a unit of execution driven one step per dispatched tick.
//
// Step must perform one bounded operation and return. A task suspends by
// calling Context.Acquire (when it blocks), Context.DelayUntil or
// Context.Sleep; it is resumed by a later Step call.
type Task interface {
	Step(*Context)
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(*Context)

func (f TaskFunc) Step(ctx *Context) { f(ctx) }

type tcb struct {
	name       string
	task       Task
	prio       Priority
	state      State
	stackWords int
	idle       bool

	wake     uint64
	progress uint64

	// Mutex wait bookkeeping.
	waiting    bool
	waitOn     MutexID
	hasTimeout bool
	timeoutAt  uint64
	holding    int

	// Result of a wait that completed while the task was suspended.
	hasPending    bool
	pendingMutex  MutexID
	pendingResult AcquireResult
}

// TaskInfo is a read-only snapshot of a task control block.
type TaskInfo struct {
	ID         TaskID
	Name       string
	Priority   Priority
	State      State
	NextWake   uint64
	Progress   uint64
	StackWords int
	Idle       bool
}

func (t *tcb) info(id TaskID) TaskInfo {
	return TaskInfo{
		ID:         id,
		Name:       t.name,
		Priority:   t.prio,
		State:      t.state,
		NextWake:   t.wake,
		Progress:   t.progress,
		StackWords: t.stackWords,
		Idle:       t.idle,
	}
}

type idleTask struct {
	k *Kernel
}

func (t idleTask) Step(ctx *Context) {
	t.k.idleTicks++
	if t.k.cfg.IdleHook != nil {
		t.k.cfg.IdleHook()
	}
}
