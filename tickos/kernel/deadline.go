package kernel

// Deadline is an absolute activation time plus a fixed period.
//
// Advance always moves Next by exactly one Period, independent of when the
// owning task got to run, so activations never drift.
type Deadline struct {
	Next   uint64
	Period uint64
}

// NewDeadline anchors a deadline at start.
func NewDeadline(start, period uint64) Deadline {
	return Deadline{Next: start, Period: period}
}

// Advance moves the deadline to the next period and returns it.
func (d *Deadline) Advance() uint64 {
	d.Next += d.Period
	return d.Next
}
