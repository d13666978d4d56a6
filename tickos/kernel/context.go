package kernel

import "github.com/pkg/errors"

// Context provides task-local access to kernel operations during one step.
//
// A Context is only valid for the duration of the Step call it was passed to.
type Context struct {
	k         *Kernel
	taskID    TaskID
	suspended bool
}

// TaskID returns the current task ID.
func (c *Context) TaskID() TaskID { return c.taskID }

// Now returns the tick of the running quantum.
func (c *Context) Now() uint64 {
	if c.k == nil {
		return 0
	}
	return c.k.now
}

// Priority returns the static priority of the current task.
func (c *Context) Priority() Priority {
	if c.k == nil {
		return IdlePriority
	}
	return c.k.tasks[c.taskID].prio
}

// Acquire requests mutex m. When the mutex is held by another task the
// current task blocks and AcquireBlocked is returned: the step must return
// and call Acquire again once resumed, which then reports AcquireOK or
// AcquireTimeout.
func (c *Context) Acquire(m MutexID, timeout Timeout) AcquireResult {
	if c.k == nil {
		return AcquireNoMutex
	}
	if c.suspended {
		return AcquireSuspended
	}
	res := c.k.acquire(c.taskID, m, timeout)
	if res == AcquireBlocked {
		c.suspended = true
	}
	return res
}

// Release gives mutex m back. Releasing a mutex the task does not hold
// fails with ErrMutexNotOwner and leaves the mutex untouched.
func (c *Context) Release(m MutexID) error {
	if c.k == nil {
		return ErrNotStarted
	}
	return c.k.release(c.taskID, m)
}

// DelayUntil advances d by one period and sleeps until the new deadline.
// When the deadline is already due the task keeps running and slept is
// false (an overrun).
func (c *Context) DelayUntil(d *Deadline) (slept bool, err error) {
	if err := c.canSleep(); err != nil {
		return false, err
	}
	if d.Period == 0 {
		return false, errors.Wrapf(ErrInvalidPeriod, "task %d", c.taskID)
	}
	next := d.Advance()
	if next <= c.k.now {
		c.k.emit(Event{Kind: EventOverrun, Task: c.taskID, Value: next})
		return false, nil
	}
	c.k.sleep(c.taskID, next)
	c.suspended = true
	return true, nil
}

// Sleep suspends the task for a relative number of ticks. Unlike
// DelayUntil the wake time drifts with the task's execution time.
func (c *Context) Sleep(ticks uint64) error {
	if err := c.canSleep(); err != nil {
		return err
	}
	if ticks == 0 {
		return nil
	}
	c.k.sleep(c.taskID, c.k.now+ticks)
	c.suspended = true
	return nil
}

func (c *Context) canSleep() error {
	if c.k == nil {
		return ErrNotStarted
	}
	if c.suspended {
		return ErrTaskSuspended
	}
	if n := c.k.tasks[c.taskID].holding; n > 0 {
		return errors.Wrapf(ErrSleepWhileHolding, "task %d holds %d mutex(es)", c.taskID, n)
	}
	return nil
}

// AddProgress bumps the liveness counter of the current task.
func (c *Context) AddProgress() {
	if c.k == nil {
		return
	}
	c.k.tasks[c.taskID].progress++
}

// Progress returns the liveness counter of task id.
func (c *Context) Progress(id TaskID) (uint64, bool) {
	if c.k == nil || id >= c.k.taskCount {
		return 0, false
	}
	return c.k.tasks[id].progress, true
}

// TaskName returns the name of task id.
func (c *Context) TaskName(id TaskID) string {
	if c.k == nil || id >= c.k.taskCount {
		return ""
	}
	return c.k.tasks[id].name
}
