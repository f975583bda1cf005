package kernel

// Scheduler decides dispatch order among ready threads.
//
// The registry is the only caller that adds or removes threads; a scheduler
// never drops a thread on its own.
type Scheduler interface {
	// Add appends tid to the ready set. Adding a present thread is a no-op.
	Add(tid ThreadID)
	// Remove takes tid out of the ready set. Removing an absent thread is a no-op.
	Remove(tid ThreadID)
	// Next returns the thread to dispatch, or false when nothing is ready.
	Next() (ThreadID, bool)
	Contains(tid ThreadID) bool
	Len() int
	// Ready returns the ready set in dispatch order.
	Ready() []ThreadID
}

// MarkReady is an alias for s.Add.
func MarkReady(s Scheduler, tid ThreadID) { s.Add(tid) }

// MarkBlocked is an alias for s.Remove.
func MarkBlocked(s Scheduler, tid ThreadID) { s.Remove(tid) }

// RoundRobin dispatches ready threads in cyclic order: Next pops the front of
// the queue and re-appends it, so every ready thread gets one turn per cycle.
//
// It is not safe for concurrent use.
type RoundRobin struct {
	queue []ThreadID
	in    map[ThreadID]struct{}
}

// NewRoundRobin returns an empty round-robin scheduler.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{in: make(map[ThreadID]struct{})}
}

func (rr *RoundRobin) Add(tid ThreadID) {
	if rr.in == nil {
		rr.in = make(map[ThreadID]struct{})
	}
	if _, ok := rr.in[tid]; ok {
		return
	}
	rr.in[tid] = struct{}{}
	rr.queue = append(rr.queue, tid)
}

func (rr *RoundRobin) Remove(tid ThreadID) {
	if _, ok := rr.in[tid]; !ok {
		return
	}
	delete(rr.in, tid)
	for i, id := range rr.queue {
		if id == tid {
			rr.queue = append(rr.queue[:i], rr.queue[i+1:]...)
			return
		}
	}
}

func (rr *RoundRobin) Next() (ThreadID, bool) {
	if len(rr.queue) == 0 {
		return 0, false
	}
	tid := rr.queue[0]
	copy(rr.queue, rr.queue[1:])
	rr.queue[len(rr.queue)-1] = tid
	return tid, true
}

func (rr *RoundRobin) Contains(tid ThreadID) bool {
	_, ok := rr.in[tid]
	return ok
}

func (rr *RoundRobin) Len() int { return len(rr.queue) }

func (rr *RoundRobin) Ready() []ThreadID {
	out := make([]ThreadID, len(rr.queue))
	copy(out, rr.queue)
	return out
}
