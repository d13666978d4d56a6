package kernel

import (
	"testing"

	"github.com/pkg/errors"
)

// lockTask acquires a mutex at (or after) start, holds it for hold steps,
// releases it and parks.
type lockTask struct {
	mu      MutexID
	start   uint64
	hold    int
	timeout Timeout

	phase      int
	held       int
	results    []AcquireResult
	acquiredAt uint64
	releasedAt uint64
}

func (l *lockTask) Step(ctx *Context) {
	switch l.phase {
	case 0:
		l.phase = 1
		if now := ctx.Now(); now < l.start {
			_ = ctx.Sleep(l.start - now)
			return
		}
		fallthrough
	case 1:
		res := ctx.Acquire(l.mu, l.timeout)
		l.results = append(l.results, res)
		switch res {
		case AcquireOK:
			l.acquiredAt = ctx.Now()
			l.phase = 2
		case AcquireBlocked:
		default:
			l.phase = 3
		}
	case 2:
		l.held++
		if l.held >= l.hold {
			if err := ctx.Release(l.mu); err != nil {
				panic(err)
			}
			l.releasedAt = ctx.Now()
			l.phase = 3
		}
	case 3:
		_ = ctx.Sleep(1 << 40)
	}
}

func newLockKernel(t *testing.T, log *eventLog) (*Kernel, MutexID) {
	t.Helper()
	k := NewWithConfig(Config{Tracer: log})
	m, err := k.NewMutex("uart")
	if err != nil {
		t.Fatalf("NewMutex() error = %v", err)
	}
	return k, m
}

func TestMutexHandsOverToBlockedWaiter(t *testing.T) {
	log := &eventLog{}
	k, m := newLockKernel(t, log)

	low := &lockTask{mu: m, hold: 10, timeout: WaitForever}
	high := &lockTask{mu: m, start: 3, hold: 2, timeout: WaitForever}
	lowID := mustTask(t, k, "low", low, 1)
	highID := mustTask(t, k, "high", high, 2)
	mustStart(t, k)

	k.TickTo(40)

	if len(high.results) != 2 || high.results[0] != AcquireBlocked || high.results[1] != AcquireOK {
		t.Fatalf("high results = %v, want [blocked ok]", high.results)
	}
	if high.acquiredAt != low.releasedAt+1 {
		t.Fatalf("high acquired at %d, low released at %d", high.acquiredAt, low.releasedAt)
	}

	var handover *Event
	for i, e := range log.events {
		if e.Kind == EventAcquire && e.Task == highID {
			handover = &log.events[i]
			break
		}
	}
	if handover == nil {
		t.Fatal("no acquire event for high")
	}
	if handover.Other != lowID || handover.Tick != low.releasedAt {
		t.Fatalf("handover event = %+v, want from task %d at tick %d", *handover, lowID, low.releasedAt)
	}

	info, _ := k.Mutex(m)
	if info.Held || len(info.Waiters) != 0 {
		t.Fatalf("mutex = %+v, want free with no waiters", info)
	}
}

func TestMutexWakesHighestPriorityWaiterFirst(t *testing.T) {
	log := &eventLog{}
	k, m := newLockKernel(t, log)

	holder := &lockTask{mu: m, hold: 40, timeout: WaitForever}
	w1 := &lockTask{mu: m, start: 10, hold: 1, timeout: WaitForever}
	w2 := &lockTask{mu: m, start: 12, hold: 1, timeout: WaitForever}
	w3 := &lockTask{mu: m, start: 14, hold: 1, timeout: WaitForever}
	w4 := &lockTask{mu: m, start: 16, hold: 1, timeout: WaitForever}

	holderID := mustTask(t, k, "holder", holder, 1)
	w1ID := mustTask(t, k, "w1", w1, 2)
	w2ID := mustTask(t, k, "w2", w2, 4)
	w3ID := mustTask(t, k, "w3", w3, 3)
	w4ID := mustTask(t, k, "w4", w4, 4)
	mustStart(t, k)

	k.TickTo(20)
	info, _ := k.Mutex(m)
	if !info.Held || info.Holder != holderID || len(info.Waiters) != 4 {
		t.Fatalf("mutex at tick 20 = %+v, want held by %d with 4 waiters", info, holderID)
	}

	k.TickTo(100)
	var order []TaskID
	for _, e := range log.kind(EventAcquire) {
		order = append(order, e.Task)
	}
	want := []TaskID{holderID, w2ID, w4ID, w3ID, w1ID}
	if len(order) != len(want) {
		t.Fatalf("acquire order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("acquire order = %v, want %v", order, want)
		}
	}
}

func TestMutexAcquireTimeout(t *testing.T) {
	log := &eventLog{}
	k, m := newLockKernel(t, log)

	holder := &lockTask{mu: m, hold: 20, timeout: WaitForever}
	waiter := &lockTask{mu: m, start: 5, hold: 1, timeout: 3}
	holderID := mustTask(t, k, "holder", holder, 1)
	waiterID := mustTask(t, k, "waiter", waiter, 2)
	mustStart(t, k)

	k.TickTo(10)
	if len(waiter.results) != 2 || waiter.results[0] != AcquireBlocked || waiter.results[1] != AcquireTimeout {
		t.Fatalf("waiter results = %v, want [blocked timeout]", waiter.results)
	}
	if !errors.Is(waiter.results[1].Err(), ErrAcquireTimeout) {
		t.Fatalf("Err() = %v, want ErrAcquireTimeout", waiter.results[1].Err())
	}

	timeouts := log.kind(EventTimeout)
	if len(timeouts) != 1 || timeouts[0].Task != waiterID || timeouts[0].Tick != 8 {
		t.Fatalf("timeout events = %v, want one for task %d at tick 8", timeouts, waiterID)
	}

	info, _ := k.Mutex(m)
	if !info.Held || info.Holder != holderID || len(info.Waiters) != 0 {
		t.Fatalf("mutex = %+v, want held by %d with no waiters", info, holderID)
	}
}

func TestMutexNoWait(t *testing.T) {
	k, m := newLockKernel(t, &eventLog{})

	holder := &lockTask{mu: m, hold: 20, timeout: WaitForever}
	try := &lockTask{mu: m, start: 5, hold: 1, timeout: NoWait}
	mustTask(t, k, "holder", holder, 1)
	mustTask(t, k, "try", try, 2)
	mustStart(t, k)

	k.TickTo(6)
	if len(try.results) != 1 || try.results[0] != AcquireTimeout {
		t.Fatalf("try results = %v, want [timeout]", try.results)
	}
}

func TestMutexRecursiveAcquire(t *testing.T) {
	k, m := newLockKernel(t, &eventLog{})

	var results []AcquireResult
	mustTask(t, k, "t", TaskFunc(func(ctx *Context) {
		results = append(results, ctx.Acquire(m, WaitForever))
	}), 1)
	mustStart(t, k)

	k.TickTo(2)
	if len(results) != 2 || results[0] != AcquireOK || results[1] != AcquireRecursive {
		t.Fatalf("results = %v, want [ok already held by caller]", results)
	}
	if !errors.Is(results[1].Err(), ErrRecursiveAcquire) {
		t.Fatalf("Err() = %v", results[1].Err())
	}
}

func TestReleaseWithoutAcquire(t *testing.T) {
	k, m := newLockKernel(t, &eventLog{})

	var (
		step      int
		freeErr   error
		strangerE error
		laterRes  AcquireResult
	)
	owner := &lockTask{mu: m, start: 1, hold: 5, timeout: WaitForever}
	ownerID := mustTask(t, k, "owner", owner, 1)
	mustTask(t, k, "stranger", TaskFunc(func(ctx *Context) {
		step++
		switch step {
		case 1:
			freeErr = ctx.Release(m)
			_ = ctx.Sleep(2)
		case 2:
			strangerE = ctx.Release(m)
			_ = ctx.Sleep(20)
		case 3:
			laterRes = ctx.Acquire(m, NoWait)
			_ = ctx.Release(m)
			_ = ctx.Sleep(1 << 40)
		}
	}), 2)
	mustStart(t, k)

	k.TickTo(3)
	if !errors.Is(freeErr, ErrMutexNotOwner) {
		t.Fatalf("release of free mutex error = %v, want ErrMutexNotOwner", freeErr)
	}
	if !errors.Is(strangerE, ErrMutexNotOwner) {
		t.Fatalf("release by non-holder error = %v, want ErrMutexNotOwner", strangerE)
	}
	info, _ := k.Mutex(m)
	if !info.Held || info.Holder != ownerID {
		t.Fatalf("mutex = %+v, want still held by owner %d", info, ownerID)
	}

	k.TickTo(30)
	if owner.releasedAt == 0 {
		t.Fatal("owner never released the mutex")
	}
	if laterRes != AcquireOK {
		t.Fatalf("later acquire = %s, want ok", laterRes)
	}
}

func TestDeadlocksDetectsCycle(t *testing.T) {
	k := New()
	a, _ := k.NewMutex("a")
	b, _ := k.NewMutex("b")

	// cross sleeps for delay ticks, takes first, spins until start and
	// then takes second.
	cross := func(first, second MutexID, delay, start uint64) Task {
		phase := 0
		return TaskFunc(func(ctx *Context) {
			switch phase {
			case 0:
				phase = 1
				if delay > 0 {
					_ = ctx.Sleep(delay)
					return
				}
				fallthrough
			case 1:
				if ctx.Acquire(first, WaitForever) == AcquireOK {
					phase = 2
				}
			case 2:
				if ctx.Now() < start {
					return
				}
				phase = 3
				fallthrough
			case 3:
				ctx.Acquire(second, WaitForever)
			}
		})
	}
	t1 := mustTask(t, k, "t1", cross(a, b, 0, 6), 1)
	t2 := mustTask(t, k, "t2", cross(b, a, 3, 0), 2)

	if got := k.Deadlocks(); len(got) != 0 {
		t.Fatalf("Deadlocks() before start = %v, want none", got)
	}
	mustStart(t, k)

	k.TickTo(20)
	cycles := k.Deadlocks()
	if len(cycles) != 1 || len(cycles[0]) != 2 {
		t.Fatalf("Deadlocks() = %v, want one 2-task cycle", cycles)
	}
	seen := map[TaskID]bool{}
	for _, id := range cycles[0] {
		seen[id] = true
	}
	if !seen[t1] || !seen[t2] {
		t.Fatalf("cycle = %v, want tasks %d and %d", cycles[0], t1, t2)
	}
	if idle := k.IdleTicks(); idle == 0 {
		t.Fatal("IdleTicks() = 0, want idle task to run once both tasks block")
	}
}
