package kernel

const recentEvents = 64

// eventRing keeps the most recent events. Unlike a mailbox it never
// rejects a push: the oldest entry is overwritten.
type eventRing struct {
	head  uint32
	slots [recentEvents]Event
}

func (r *eventRing) push(e Event) {
	r.slots[r.head%recentEvents] = e
	r.head++
}

// snapshot returns the retained events, oldest first.
func (r *eventRing) snapshot() []Event {
	n := r.head
	if n > recentEvents {
		n = recentEvents
	}
	out := make([]Event, 0, n)
	for i := r.head - n; i != r.head; i++ {
		out = append(out, r.slots[i%recentEvents])
	}
	return out
}
