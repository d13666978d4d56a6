package kernel

// PanicInfo contains details about a recovered task panic.
type PanicInfo struct {
	TaskID TaskID
	Value  any
	Stack  []byte
	Tick   uint64
}

func (k *Kernel) enterPanic(info PanicInfo) {
	if k.panicked {
		return
	}
	k.panicked = true
	info.Stack = captureStack()
	k.panicInfo = info
	k.emit(Event{Kind: EventPanic, Task: info.TaskID})
	if k.cfg.OnPanic != nil {
		k.cfg.OnPanic(info)
	}
}

// Panic reports whether a task panicked and, if so, the first panic seen.
// Once in panic mode the kernel stops scheduling.
func (k *Kernel) Panic() (PanicInfo, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.panicInfo, k.panicked
}
