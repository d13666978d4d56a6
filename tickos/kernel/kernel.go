package kernel

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

const (
	maxTasks   = 32
	maxMutexes = 16

	// DefaultHeapWords is the kernel heap used when Config.HeapWords is zero.
	DefaultHeapWords = 4096
	// MinimalStackWords is the stack given to the idle task and to tasks
	// registered with a zero stack budget.
	MinimalStackWords = 64

	tcbWords   = 24
	mutexWords = 20
)

// Config tunes a kernel instance.
type Config struct {
	// HeapWords bounds the memory available for task stacks, TCBs and mutexes.
	HeapWords int
	// Tracer receives every kernel event.
	Tracer Tracer
	// IdleHook runs on every idle tick.
	IdleHook func()
	// TickHook runs at the start of every quantum, before wake-ups. It
	// drives tick-synchronous peripherals such as the UART model.
	TickHook func(now uint64)
	// OnPanic is invoked once when a task step panics. It must not panic
	// and must not call back into the kernel.
	OnPanic func(PanicInfo)
}

// Kernel is a single-processor, priority-preemptive scheduler driven by
// an external tick source. Each tick runs one step of the highest
// priority ready task.
type Kernel struct {
	mu  sync.Mutex
	cfg Config

	tasks     [maxTasks]tcb
	taskCount TaskID

	mutexes    [maxMutexes]mutex
	mutexCount MutexID

	heapUsed int

	ready      readySet
	current    TaskID
	hasCurrent bool

	now       uint64
	started   bool
	idle      TaskID
	idleTicks uint64

	panicked  bool
	panicInfo PanicInfo

	recent eventRing
}

// New creates a kernel with the default configuration.
func New() *Kernel {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a kernel instance.
func NewWithConfig(cfg Config) *Kernel {
	if cfg.HeapWords <= 0 {
		cfg.HeapWords = DefaultHeapWords
	}
	return &Kernel{cfg: cfg}
}

// CreateTask registers a task before the scheduler starts and returns its ID.
func (k *Kernel) CreateTask(name string, t Task, prio Priority, stackWords int) (TaskID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.started {
		return 0, errors.Wrapf(ErrSchedulerStarted, "create task %q", name)
	}
	if prio <= IdlePriority {
		return 0, errors.Wrapf(ErrInvalidPriority, "create task %q: priority %d", name, prio)
	}
	return k.createLocked(name, t, prio, stackWords, false)
}

func (k *Kernel) createLocked(name string, t Task, prio Priority, stackWords int, idle bool) (TaskID, error) {
	if t == nil {
		return 0, errors.Wrapf(ErrTaskCreationFailed, "task %q: nil body", name)
	}
	if k.taskCount >= maxTasks {
		return 0, errors.Wrapf(ErrTaskCreationFailed, "task %q: task table full", name)
	}
	if stackWords <= 0 {
		stackWords = MinimalStackWords
	}
	need := tcbWords + stackWords
	if free := k.cfg.HeapWords - k.heapUsed; need > free {
		return 0, errors.Wrapf(ErrTaskCreationFailed, "task %q: need %d words, %d free", name, need, free)
	}

	id := k.taskCount
	k.taskCount++
	k.heapUsed += need
	k.tasks[id] = tcb{
		name:       name,
		task:       t,
		prio:       prio,
		state:      StateReady,
		stackWords: stackWords,
		idle:       idle,
	}
	k.ready.push(prio, id)
	k.emit(Event{Kind: EventCreate, Task: id})
	return id, nil
}

// NewMutex allocates a mutex and returns its ID.
func (k *Kernel) NewMutex(name string) (MutexID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.mutexCount >= maxMutexes {
		return 0, errors.Wrapf(ErrMutexCreationFailed, "mutex %q: table full", name)
	}
	if free := k.cfg.HeapWords - k.heapUsed; mutexWords > free {
		return 0, errors.Wrapf(ErrMutexCreationFailed, "mutex %q: need %d words, %d free", name, mutexWords, free)
	}
	id := k.mutexCount
	k.mutexCount++
	k.heapUsed += mutexWords
	k.mutexes[id] = mutex{name: name}
	return id, nil
}

// Start creates the idle task and enables scheduling. No task can be
// created afterwards.
func (k *Kernel) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.started {
		return ErrSchedulerStarted
	}
	id, err := k.createLocked("idle", idleTask{k: k}, IdlePriority, MinimalStackWords, true)
	if err != nil {
		return errors.Wrap(err, "start scheduler")
	}
	k.idle = id
	k.started = true
	k.emit(Event{Kind: EventStart, Task: id})
	return nil
}

// Tick runs one quantum at the current tick and advances time by one.
func (k *Kernel) Tick() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.tickLocked()
}

// TickTo runs quanta until the kernel time reaches seq. It is meant to be
// fed from a hal.Time tick stream, where seq counts elapsed ticks.
func (k *Kernel) TickTo(seq uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for k.now < seq && k.started && !k.panicked {
		k.tickLocked()
	}
}

// Run starts the scheduler if needed and consumes the tick stream. It only
// returns on cancellation or on a fatal condition.
func (k *Kernel) Run(ctx context.Context, ticks <-chan uint64) error {
	if err := k.Start(); err != nil && !errors.Is(err, ErrSchedulerStarted) {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case seq, ok := <-ticks:
			if !ok {
				return ErrTickSourceClosed
			}
			k.TickTo(seq)
			if info, ok := k.Panic(); ok {
				return errors.Wrapf(ErrKernelPanic, "task %d at tick %d: %v", info.TaskID, info.Tick, info.Value)
			}
		}
	}
}

func (k *Kernel) tickLocked() {
	if !k.started || k.panicked {
		return
	}
	if k.cfg.TickHook != nil {
		k.cfg.TickHook(k.now)
	}
	k.wakeDue()
	k.dispatch()
	k.runCurrent()
	if k.panicked {
		return
	}
	k.now++
}

// wakeDue moves sleepers whose wake time has come and expired mutex
// waiters to the ready set.
func (k *Kernel) wakeDue() {
	for id := TaskID(0); id < k.taskCount; id++ {
		t := &k.tasks[id]
		switch t.state {
		case StateSleeping:
			if t.wake > k.now {
				continue
			}
			k.makeReady(id)
			k.emit(Event{Kind: EventWake, Task: id, Value: t.wake})
		case StateBlocked:
			if !t.hasTimeout || t.timeoutAt > k.now {
				continue
			}
			mx := &k.mutexes[t.waitOn]
			mx.dropWaiter(id)
			t.waiting = false
			t.hasTimeout = false
			t.hasPending = true
			t.pendingMutex = t.waitOn
			t.pendingResult = AcquireTimeout
			k.makeReady(id)
			k.emit(Event{Kind: EventTimeout, Task: id, Mutex: t.waitOn, Other: mx.holder})
		}
	}
}

func (k *Kernel) makeReady(id TaskID) {
	t := &k.tasks[id]
	t.state = StateReady
	k.ready.push(t.prio, id)
}

// dispatch keeps the running task unless a strictly higher priority task
// is ready, in which case the running task is preempted.
func (k *Kernel) dispatch() {
	top, ok := k.ready.highest()
	if k.hasCurrent {
		cur := &k.tasks[k.current]
		if cur.state == StateRunning {
			if !ok || top <= cur.prio {
				return
			}
			cur.state = StateReady
			k.ready.push(cur.prio, k.current)
			next := k.ready.queues[top][0]
			k.emit(Event{Kind: EventPreempt, Task: k.current, Other: next})
		}
		k.hasCurrent = false
	}

	id, ok := k.ready.pop()
	if !ok {
		return
	}
	k.current = id
	k.hasCurrent = true
	k.tasks[id].state = StateRunning
	k.emit(Event{Kind: EventDispatch, Task: id})
}

func (k *Kernel) runCurrent() {
	if !k.hasCurrent {
		return
	}
	id := k.current
	ctx := &Context{k: k, taskID: id}
	defer func() {
		if r := recover(); r != nil {
			k.enterPanic(PanicInfo{TaskID: id, Value: r, Tick: k.now})
		}
	}()
	k.tasks[id].task.Step(ctx)
}

func (k *Kernel) sleep(id TaskID, wake uint64) {
	t := &k.tasks[id]
	t.state = StateSleeping
	t.wake = wake
	k.emit(Event{Kind: EventSleep, Task: id, Value: wake})
}

func (k *Kernel) emit(e Event) {
	e.Tick = k.now
	k.recent.push(e)
	if k.cfg.Tracer != nil {
		k.cfg.Tracer.Trace(e)
	}
}

// Now returns the current tick: the tick of the next quantum to run.
func (k *Kernel) Now() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.now
}

// Started reports whether Start succeeded.
func (k *Kernel) Started() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.started
}

// IdleTicks returns the number of quanta spent in the idle task.
func (k *Kernel) IdleTicks() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.idleTicks
}

// HeapFree returns the number of unallocated heap words.
func (k *Kernel) HeapFree() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cfg.HeapWords - k.heapUsed
}

// Current returns the task that ran the last quantum.
func (k *Kernel) Current() (TaskID, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.current, k.hasCurrent
}

// Task returns a snapshot of one task.
func (k *Kernel) Task(id TaskID) (TaskInfo, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if id >= k.taskCount {
		return TaskInfo{}, false
	}
	return k.tasks[id].info(id), true
}

// Tasks returns a snapshot of every task, idle task included.
func (k *Kernel) Tasks() []TaskInfo {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]TaskInfo, 0, k.taskCount)
	for id := TaskID(0); id < k.taskCount; id++ {
		out = append(out, k.tasks[id].info(id))
	}
	return out
}

// Mutex returns a snapshot of one mutex.
func (k *Kernel) Mutex(id MutexID) (MutexInfo, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if id >= k.mutexCount {
		return MutexInfo{}, false
	}
	return k.mutexes[id].info(id), true
}

// RecentEvents returns the last events recorded by the kernel, oldest first.
func (k *Kernel) RecentEvents() []Event {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.recent.snapshot()
}
