package kernel

import (
	"sort"
	"time"
)

// TickDuration is the length of one kernel tick.
const TickDuration = time.Millisecond

// Timer arms wakeups for sleeping threads.
//
// The registry calls Arm when a thread goes to sleep and Cancel when a thread
// leaves the system. Delivering the wakeup is the timer owner's job.
type Timer interface {
	Arm(pid ProcessID, tid ThreadID, d time.Duration)
	Cancel(tid ThreadID)
}

type nopTimer struct{}

func (nopTimer) Arm(ProcessID, ThreadID, time.Duration) {}
func (nopTimer) Cancel(ThreadID)                        {}

type sleeper struct {
	pid ProcessID
	tid ThreadID
	due uint64
}

// tickTimer is a Timer driven by an external tick count.
type tickTimer struct {
	now      uint64
	sleepers map[ThreadID]sleeper
}

func newTickTimer() *tickTimer {
	return &tickTimer{sleepers: make(map[ThreadID]sleeper)}
}

// ticksFor rounds d up to whole ticks.
func ticksFor(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64((d + TickDuration - 1) / TickDuration)
}

func (t *tickTimer) Arm(pid ProcessID, tid ThreadID, d time.Duration) {
	t.sleepers[tid] = sleeper{pid: pid, tid: tid, due: t.now + ticksFor(d)}
}

func (t *tickTimer) Cancel(tid ThreadID) {
	delete(t.sleepers, tid)
}

// advance moves the clock to now (never backwards) and returns the sleepers
// that are due, earliest first.
func (t *tickTimer) advance(now uint64) []sleeper {
	if now > t.now {
		t.now = now
	}
	var due []sleeper
	for tid, sl := range t.sleepers {
		if sl.due > t.now {
			continue
		}
		due = append(due, sl)
		delete(t.sleepers, tid)
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].tid < due[j].tid
	})
	return due
}

// dueAt returns the due tick of a sleeping thread.
func (t *tickTimer) dueAt(tid ThreadID) (uint64, bool) {
	sl, ok := t.sleepers[tid]
	return sl.due, ok
}
