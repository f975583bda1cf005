package kernel

import "sort"

// ProcessState is the aggregate lifecycle state of a process.
type ProcessState uint8

const (
	ProcessNew ProcessState = iota
	ProcessReady
	ProcessRunning
	ProcessWaiting
	ProcessTerminated
)

func (s ProcessState) String() string {
	switch s {
	case ProcessNew:
		return "new"
	case ProcessReady:
		return "ready"
	case ProcessRunning:
		return "running"
	case ProcessWaiting:
		return "waiting"
	case ProcessTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Process owns a set of threads.
type Process struct {
	ID      ProcessID
	State   ProcessState
	threads map[ThreadID]*Thread
}

func newProcess(id ProcessID) *Process {
	return &Process{
		ID:      id,
		State:   ProcessNew,
		threads: make(map[ThreadID]*Thread),
	}
}

func (p *Process) thread(tid ThreadID) (*Thread, bool) {
	t, ok := p.threads[tid]
	return t, ok
}

// threadIDs returns the process's thread ids in ascending order.
func (p *Process) threadIDs() []ThreadID {
	ids := make([]ThreadID, 0, len(p.threads))
	for tid := range p.threads {
		ids = append(ids, tid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// derive recomputes the process state from its threads.
//
// A process that never had a thread stays New; a process whose threads are all
// gone keeps its last state.
func (p *Process) derive() {
	if len(p.threads) == 0 {
		return
	}
	var ready, blocked bool
	for _, t := range p.threads {
		switch t.State {
		case ThreadRunning:
			p.State = ProcessRunning
			return
		case ThreadReady:
			ready = true
		case ThreadBlocked:
			blocked = true
		}
	}
	switch {
	case ready:
		p.State = ProcessReady
	case blocked:
		p.State = ProcessWaiting
	}
}
