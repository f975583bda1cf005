package hal

import (
	"sync"
	"time"
)

const tickDur = time.Millisecond

type hostTime struct {
	ch chan uint64

	mu   sync.Mutex
	seq  uint64
	last time.Time
	acc  time.Duration
}

func newHostTime() *hostTime {
	return &hostTime{ch: make(chan uint64, 1024)}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// Now returns the last emitted tick.
func (t *hostTime) Now() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// step emits as many ticks as wall-clock time has advanced since the last call.
func (t *hostTime) step() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if t.last.IsZero() {
		t.last = now
		t.acc = 0
		t.stepN(1)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	ticks := uint64(t.acc / tickDur)
	if ticks == 0 {
		return
	}
	t.acc = t.acc % tickDur
	t.stepN(ticks)
}

// advance emits exactly n ticks regardless of wall-clock time.
func (t *hostTime) advance(n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stepN(n)
}

// stepN only delivers the newest sequence when the channel is full; readers
// track the latest value, not every tick.
func (t *hostTime) stepN(n uint64) {
	for i := uint64(0); i < n; i++ {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}
