package kernel

import "sync/atomic"

// ProcessID identifies a process. IDs start at 1 and are never reused.
type ProcessID uint64

// ThreadID identifies a thread. IDs are unique across all processes.
type ThreadID uint64

// MessageID identifies a message.
type MessageID uint64

// IDGen is a monotonically increasing counter safe for concurrent use.
//
// The zero value is ready to use and yields 1 first.
type IDGen struct {
	_    [0]func() // prevent accidental copying.
	last atomic.Uint64
}

// Next returns the next identifier.
func (g *IDGen) Next() uint64 {
	return g.last.Add(1)
}

// Last returns the most recently issued identifier, or 0.
func (g *IDGen) Last() uint64 {
	return g.last.Load()
}

// Reset makes the generator start again from 1.
//
// Only tests should call it: reusing identifiers breaks uniqueness.
func (g *IDGen) Reset() {
	g.last.Store(0)
}

// IDs bundles the three identifier sequences of one kernel instance.
type IDs struct {
	Process IDGen
	Thread  IDGen
	Message IDGen
}

// NewIDs returns a fresh set of generators.
func NewIDs() *IDs {
	return &IDs{}
}

func (ids *IDs) nextProcess() ProcessID { return ProcessID(ids.Process.Next()) }
func (ids *IDs) nextThread() ThreadID   { return ThreadID(ids.Thread.Next()) }
func (ids *IDs) nextMessage() MessageID { return MessageID(ids.Message.Next()) }
