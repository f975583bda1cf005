package kernel

import (
	"sort"
	"time"
)

// RegistryConfig wires a Registry to its collaborators. Nil fields get defaults.
type RegistryConfig struct {
	IDs       *IDs
	Scheduler Scheduler
	Timer     Timer
	Memory    MemoryManager
}

// Registry owns every process and thread and is the single point of mutation
// for lifecycle transitions. It keeps the scheduler's ready set in lock-step
// with thread states.
//
// It is not safe for concurrent use; System serializes access to it.
type Registry struct {
	ids       *IDs
	sched     Scheduler
	timer     Timer
	mem       MemoryManager
	processes map[ProcessID]*Process
	owners    map[ThreadID]ProcessID
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.IDs == nil {
		cfg.IDs = NewIDs()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewRoundRobin()
	}
	if cfg.Timer == nil {
		cfg.Timer = nopTimer{}
	}
	return &Registry{
		ids:       cfg.IDs,
		sched:     cfg.Scheduler,
		timer:     cfg.Timer,
		mem:       cfg.Memory,
		processes: make(map[ProcessID]*Process),
		owners:    make(map[ThreadID]ProcessID),
	}
}

// Scheduler returns the scheduler owned by the registry.
func (r *Registry) Scheduler() Scheduler { return r.sched }

// CreateProcess registers a new process in state New with no threads.
func (r *Registry) CreateProcess() (ProcessID, error) {
	pid := r.ids.nextProcess()
	if _, ok := r.processes[pid]; ok {
		return 0, &Error{Op: "create process", Kind: KindAlreadyExists, PID: pid}
	}
	r.processes[pid] = newProcess(pid)
	return pid, nil
}

// TerminateProcess removes pid and all of its threads. The threads leave the
// ready set and lose pending timers in the same step.
func (r *Registry) TerminateProcess(pid ProcessID) ([]ThreadID, error) {
	p, ok := r.processes[pid]
	if !ok {
		return nil, errNotFound("terminate process", pid, 0)
	}
	tids := p.threadIDs()
	for _, tid := range tids {
		r.sched.Remove(tid)
		r.timer.Cancel(tid)
		p.threads[tid].State = ThreadTerminated
		delete(r.owners, tid)
	}
	p.State = ProcessTerminated
	delete(r.processes, pid)
	if r.mem != nil {
		r.mem.Release(pid)
	}
	return tids, nil
}

// ProcessState returns the state of pid.
func (r *Registry) ProcessState(pid ProcessID) (ProcessState, error) {
	p, ok := r.processes[pid]
	if !ok {
		return 0, errNotFound("process state", pid, 0)
	}
	return p.State, nil
}

// CreateThread adds a Ready thread to pid and makes it schedulable.
func (r *Registry) CreateThread(pid ProcessID) (ThreadID, error) {
	return r.createThread(pid, nil)
}

func (r *Registry) createThread(pid ProcessID, task Task) (ThreadID, error) {
	p, ok := r.processes[pid]
	if !ok {
		return 0, errNotFound("create thread", pid, 0)
	}
	tid := r.ids.nextThread()
	if _, ok := p.threads[tid]; ok {
		return 0, &Error{Op: "create thread", Kind: KindAlreadyExists, PID: pid, TID: tid}
	}
	t := &Thread{ID: tid, Process: pid, State: ThreadReady, task: task}
	p.threads[tid] = t
	r.owners[tid] = pid
	if t.State == ThreadReady {
		r.sched.Add(tid)
	}
	p.derive()
	return tid, nil
}

// TerminateThread removes tid from pid and from the ready set.
func (r *Registry) TerminateThread(pid ProcessID, tid ThreadID) error {
	p, t, err := r.lookup("terminate thread", pid, tid)
	if err != nil {
		return err
	}
	delete(p.threads, tid)
	delete(r.owners, tid)
	t.State = ThreadTerminated
	r.sched.Remove(tid)
	r.timer.Cancel(tid)
	p.derive()
	return nil
}

// SleepThread blocks tid and arms the timer to wake it after d.
func (r *Registry) SleepThread(pid ProcessID, tid ThreadID, d time.Duration) error {
	if err := r.block("sleep thread", pid, tid); err != nil {
		return err
	}
	r.timer.Arm(pid, tid, d)
	return nil
}

// BlockThread blocks tid with no timer; only WakeThread makes it ready again.
func (r *Registry) BlockThread(pid ProcessID, tid ThreadID) error {
	return r.block("block thread", pid, tid)
}

func (r *Registry) block(op string, pid ProcessID, tid ThreadID) error {
	p, t, err := r.lookup(op, pid, tid)
	if err != nil {
		return err
	}
	t.State = ThreadBlocked
	r.sched.Remove(tid)
	p.derive()
	return nil
}

// WakeThread makes a blocked thread ready again. Waking a ready or running
// thread is a no-op.
func (r *Registry) WakeThread(pid ProcessID, tid ThreadID) error {
	p, t, err := r.lookup("wake thread", pid, tid)
	if err != nil {
		return err
	}
	if t.State != ThreadBlocked {
		return nil
	}
	r.timer.Cancel(tid)
	t.State = ThreadReady
	r.sched.Add(tid)
	p.derive()
	return nil
}

// ThreadState returns the state of tid within pid.
func (r *Registry) ThreadState(pid ProcessID, tid ThreadID) (ThreadState, error) {
	_, t, err := r.lookup("thread state", pid, tid)
	if err != nil {
		return 0, err
	}
	return t.State, nil
}

// ScheduleNext asks the scheduler for the next thread to dispatch.
func (r *Registry) ScheduleNext() (ThreadID, bool) {
	return r.sched.Next()
}

// IsReady reports whether tid is in the ready set.
func (r *Registry) IsReady(tid ThreadID) bool {
	return r.sched.Contains(tid)
}

// Owner returns the process that owns tid.
func (r *Registry) Owner(tid ThreadID) (ProcessID, bool) {
	pid, ok := r.owners[tid]
	return pid, ok
}

func (r *Registry) lookup(op string, pid ProcessID, tid ThreadID) (*Process, *Thread, error) {
	p, ok := r.processes[pid]
	if !ok {
		return nil, nil, errNotFound(op, pid, 0)
	}
	t, ok := p.thread(tid)
	if !ok {
		return nil, nil, errNotFound(op, pid, tid)
	}
	return p, t, nil
}

// setRunning moves a ready thread to Running (running=true) or back to Ready.
// It does not touch the ready set.
func (r *Registry) setRunning(pid ProcessID, tid ThreadID, running bool) {
	p, t, err := r.lookup("dispatch", pid, tid)
	if err != nil {
		return
	}
	switch {
	case running && t.State == ThreadReady:
		t.State = ThreadRunning
	case !running && t.State == ThreadRunning:
		t.State = ThreadReady
	default:
		return
	}
	p.derive()
}

// ThreadInfo is a snapshot of one thread.
type ThreadInfo struct {
	ID    ThreadID
	State ThreadState
	Ready bool
	// WakeAt is the tick a sleeping thread is due; zero otherwise.
	WakeAt uint64
}

// ProcessInfo is a snapshot of one process and its threads.
type ProcessInfo struct {
	ID      ProcessID
	State   ProcessState
	Threads []ThreadInfo
}

// Processes returns a snapshot of all processes in ascending id order.
func (r *Registry) Processes() []ProcessInfo {
	out := make([]ProcessInfo, 0, len(r.processes))
	for _, p := range r.processes {
		info := ProcessInfo{ID: p.ID, State: p.State}
		for _, tid := range p.threadIDs() {
			t := p.threads[tid]
			info.Threads = append(info.Threads, ThreadInfo{
				ID:    tid,
				State: t.State,
				Ready: r.sched.Contains(tid),
			})
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
