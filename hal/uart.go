package hal

import (
	"io"
	"sync"
)

// UART models a transmit-only serial line with a single in-flight write.
//
// An accepted write is drained to the sinks BytesPerTick bytes per call to
// Tick. While bytes are pending, Write fails with ErrNotReady. With a zero
// rate every write is passed through immediately.
type UART struct {
	mu    sync.Mutex
	sinks []io.Writer
	rate  int

	pending []byte
	buf     []byte

	sent     uint64
	rejected uint64
}

// NewUART returns a UART that drains to out.
func NewUART(out io.Writer, bytesPerTick int) *UART {
	u := &UART{rate: bytesPerTick}
	if out != nil {
		u.sinks = append(u.sinks, out)
	}
	return u
}

// AddSink mirrors every drained byte to w.
func (u *UART) AddSink(w io.Writer) {
	if w == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sinks = append(u.sinks, w)
}

// SetBytesPerTick changes the drain rate. Zero means unlimited.
func (u *UART) SetBytesPerTick(n int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if n < 0 {
		n = 0
	}
	u.rate = n
}

func (u *UART) Write(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.pending) > 0 {
		u.rejected++
		return 0, ErrNotReady
	}
	if len(p) == 0 {
		return 0, nil
	}
	if u.rate <= 0 {
		u.emitLocked(p)
		return len(p), nil
	}
	u.buf = append(u.buf[:0], p...)
	u.pending = u.buf
	return len(p), nil
}

// Tick drains up to one tick worth of pending bytes.
func (u *UART) Tick() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.pending) == 0 {
		return
	}
	n := u.rate
	if n <= 0 || n > len(u.pending) {
		n = len(u.pending)
	}
	u.emitLocked(u.pending[:n])
	u.pending = u.pending[n:]
}

// Busy reports whether a write is still in flight.
func (u *UART) Busy() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.pending) > 0
}

// Stats returns the number of bytes drained and writes rejected as not ready.
func (u *UART) Stats() (sent, rejected uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sent, u.rejected
}

func (u *UART) emitLocked(p []byte) {
	u.sent += uint64(len(p))
	for _, w := range u.sinks {
		_, _ = w.Write(p)
	}
}
