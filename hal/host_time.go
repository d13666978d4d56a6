//go:build !tinygo

package hal

import "time"

// hostTime converts wall-clock time into tick sequence numbers. The
// runners call step once per frame; elapsed time is accumulated so the
// tick rate does not depend on the frame rate.
type hostTime struct {
	ch      chan uint64
	seq     uint64
	tickDur time.Duration

	last time.Time
	acc  time.Duration
	now  func() time.Time
}

func newHostTime(rate int) *hostTime {
	d := time.Second / time.Duration(rate)
	if d <= 0 {
		d = time.Millisecond
	}
	return &hostTime{ch: make(chan uint64, 1024), tickDur: d, now: time.Now}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

func (t *hostTime) step() {
	now := t.now()
	if t.last.IsZero() {
		t.last = now
		t.acc = 0
		t.stepN(1)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	ticks := uint64(t.acc / t.tickDur)
	if ticks == 0 {
		return
	}
	t.acc = t.acc % t.tickDur
	t.stepN(ticks)
}

// stepN publishes n ticks. Only the newest sequence number matters to the
// consumer, so a full channel drops the update instead of blocking.
func (t *hostTime) stepN(n uint64) {
	t.seq += n
	select {
	case t.ch <- t.seq:
	default:
	}
}
