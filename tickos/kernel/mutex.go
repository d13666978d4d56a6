package kernel

import (
	"math"

	"github.com/pkg/errors"
)

// MutexID is a stable index into the kernel mutex table.
type MutexID uint8

// Timeout bounds a mutex wait in ticks.
type Timeout uint64

const (
	// NoWait makes Acquire fail immediately when the mutex is held.
	NoWait Timeout = 0
	// WaitForever makes Acquire block until the mutex is handed over.
	WaitForever Timeout = math.MaxUint64
)

// AcquireResult describes the outcome of an acquire attempt.
type AcquireResult uint8

const (
	AcquireOK AcquireResult = iota
	AcquireBlocked
	AcquireTimeout
	AcquireRecursive
	AcquireNoMutex
	AcquireSuspended
)

func (r AcquireResult) String() string {
	switch r {
	case AcquireOK:
		return "ok"
	case AcquireBlocked:
		return "blocked"
	case AcquireTimeout:
		return "timeout"
	case AcquireRecursive:
		return "already held by caller"
	case AcquireNoMutex:
		return "no such mutex"
	case AcquireSuspended:
		return "task already suspended"
	default:
		return "unknown"
	}
}

// Err maps terminal failures to sentinel errors. AcquireOK and
// AcquireBlocked return nil.
func (r AcquireResult) Err() error {
	switch r {
	case AcquireTimeout:
		return ErrAcquireTimeout
	case AcquireRecursive:
		return ErrRecursiveAcquire
	case AcquireNoMutex:
		return ErrNoSuchMutex
	case AcquireSuspended:
		return ErrTaskSuspended
	default:
		return nil
	}
}

type mutex struct {
	name    string
	held    bool
	holder  TaskID
	waiters []TaskID // arrival order
}

// MutexInfo is a read-only snapshot of a mutex.
type MutexInfo struct {
	ID      MutexID
	Name    string
	Held    bool
	Holder  TaskID
	Waiters []TaskID
}

func (k *Kernel) acquire(id TaskID, m MutexID, timeout Timeout) AcquireResult {
	if m >= k.mutexCount {
		return AcquireNoMutex
	}
	t := &k.tasks[id]
	if t.hasPending && t.pendingMutex == m {
		t.hasPending = false
		return t.pendingResult
	}

	mx := &k.mutexes[m]
	if !mx.held {
		mx.held = true
		mx.holder = id
		t.holding++
		k.emit(Event{Kind: EventAcquire, Task: id, Mutex: m})
		return AcquireOK
	}
	if mx.holder == id {
		return AcquireRecursive
	}
	if timeout == NoWait {
		k.emit(Event{Kind: EventTimeout, Task: id, Mutex: m, Other: mx.holder})
		return AcquireTimeout
	}

	mx.waiters = append(mx.waiters, id)
	t.state = StateBlocked
	t.waiting = true
	t.waitOn = m
	t.hasTimeout = false
	if timeout != WaitForever && uint64(timeout) <= math.MaxUint64-k.now {
		t.hasTimeout = true
		t.timeoutAt = k.now + uint64(timeout)
	}
	k.emit(Event{Kind: EventBlock, Task: id, Mutex: m, Other: mx.holder})
	return AcquireBlocked
}

func (k *Kernel) release(id TaskID, m MutexID) error {
	if m >= k.mutexCount {
		return errors.Wrapf(ErrNoSuchMutex, "release mutex %d", m)
	}
	mx := &k.mutexes[m]
	if !mx.held {
		return errors.Wrapf(ErrMutexNotOwner, "task %d released free mutex %q", id, mx.name)
	}
	if mx.holder != id {
		return errors.Wrapf(ErrMutexNotOwner, "task %d released mutex %q held by task %d", id, mx.name, mx.holder)
	}

	k.tasks[id].holding--
	mx.held = false
	k.emit(Event{Kind: EventRelease, Task: id, Mutex: m})

	next, ok := mx.takeWaiter(k)
	if !ok {
		return nil
	}
	mx.held = true
	mx.holder = next

	w := &k.tasks[next]
	w.holding++
	w.waiting = false
	w.hasTimeout = false
	w.hasPending = true
	w.pendingMutex = m
	w.pendingResult = AcquireOK
	k.makeReady(next)
	k.emit(Event{Kind: EventAcquire, Task: next, Mutex: m, Other: id})
	return nil
}

// takeWaiter removes the highest-priority waiter, oldest first among equals.
func (mx *mutex) takeWaiter(k *Kernel) (TaskID, bool) {
	if len(mx.waiters) == 0 {
		return 0, false
	}
	best := 0
	for i := 1; i < len(mx.waiters); i++ {
		if k.tasks[mx.waiters[i]].prio > k.tasks[mx.waiters[best]].prio {
			best = i
		}
	}
	id := mx.waiters[best]
	mx.waiters = append(mx.waiters[:best], mx.waiters[best+1:]...)
	return id, true
}

func (mx *mutex) dropWaiter(id TaskID) {
	for i, w := range mx.waiters {
		if w == id {
			mx.waiters = append(mx.waiters[:i], mx.waiters[i+1:]...)
			return
		}
	}
}

func (mx *mutex) info(id MutexID) MutexInfo {
	info := MutexInfo{ID: id, Name: mx.name, Held: mx.held, Holder: mx.holder}
	if len(mx.waiters) > 0 {
		info.Waiters = append([]TaskID(nil), mx.waiters...)
	}
	return info
}
