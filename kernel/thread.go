package kernel

// ThreadState is the lifecycle state of a thread.
type ThreadState uint8

const (
	ThreadReady ThreadState = iota
	ThreadRunning
	ThreadBlocked
	ThreadTerminated
)

func (s ThreadState) String() string {
	switch s {
	case ThreadReady:
		return "ready"
	case ThreadRunning:
		return "running"
	case ThreadBlocked:
		return "blocked"
	case ThreadTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Thread is one schedulable unit of execution inside a process.
type Thread struct {
	ID      ThreadID
	Process ProcessID
	State   ThreadState

	task Task
}
