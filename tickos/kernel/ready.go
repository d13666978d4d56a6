package kernel

import "golang.org/x/exp/slices"

// readySet keeps one FIFO queue per priority level. Levels are sorted
// ascending so the highest ready priority is always the last level.
type readySet struct {
	levels []Priority
	queues map[Priority][]TaskID
}

func (r *readySet) push(p Priority, id TaskID) {
	if r.queues == nil {
		r.queues = make(map[Priority][]TaskID)
	}
	q, ok := r.queues[p]
	if !ok {
		i, _ := slices.BinarySearch(r.levels, p)
		r.levels = slices.Insert(r.levels, i, p)
	}
	r.queues[p] = append(q, id)
}

func (r *readySet) highest() (Priority, bool) {
	if len(r.levels) == 0 {
		return 0, false
	}
	return r.levels[len(r.levels)-1], true
}

// pop removes the oldest task of the highest ready priority.
func (r *readySet) pop() (TaskID, bool) {
	p, ok := r.highest()
	if !ok {
		return 0, false
	}
	q := r.queues[p]
	id := q[0]
	if len(q) == 1 {
		delete(r.queues, p)
		r.levels = r.levels[:len(r.levels)-1]
	} else {
		r.queues[p] = q[1:]
	}
	return id, true
}
