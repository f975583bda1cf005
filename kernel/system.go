package kernel

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger writes newline-delimited log lines. hal.Logger satisfies it.
type Logger interface {
	WriteLineString(s string)
}

// Options configures a System. The zero value gives an in-memory bus, a
// round-robin scheduler, and no memory manager.
type Options struct {
	IDs       *IDs
	Scheduler Scheduler
	Bus       Bus
	Memory    MemoryManager
	Logger    Logger

	// OnPanic is called after a task step panicked and its thread was terminated.
	OnPanic func(PanicInfo)

	// BootID identifies this kernel instance; a random one is generated if unset.
	BootID uuid.UUID
}

// System composes the registry, the scheduler it owns, and the message bus
// behind one lock. It is safe for concurrent use.
type System struct {
	mu sync.Mutex

	bootID  uuid.UUID
	ids     *IDs
	reg     *Registry
	bus     Bus
	timer   *tickTimer
	mem     MemoryManager
	log     Logger
	onPanic func(PanicInfo)

	// recvWait holds threads blocked in Context.Recv, per receiving process.
	recvWait map[ProcessID][]ThreadID
}

// NewSystem creates a kernel instance.
func NewSystem(opts Options) *System {
	if opts.IDs == nil {
		opts.IDs = NewIDs()
	}
	if opts.Bus == nil {
		opts.Bus = NewMemoryBus()
	}
	if opts.BootID == uuid.Nil {
		opts.BootID = uuid.New()
	}
	timer := newTickTimer()
	s := &System{
		bootID:   opts.BootID,
		ids:      opts.IDs,
		bus:      opts.Bus,
		timer:    timer,
		mem:      opts.Memory,
		log:      opts.Logger,
		onPanic:  opts.OnPanic,
		recvWait: make(map[ProcessID][]ThreadID),
	}
	s.reg = NewRegistry(RegistryConfig{
		IDs:       opts.IDs,
		Scheduler: opts.Scheduler,
		Timer:     timer,
		Memory:    opts.Memory,
	})
	s.logf("boot %s", s.bootID)
	return s
}

// BootID returns the identifier of this kernel instance.
func (s *System) BootID() uuid.UUID { return s.bootID }

func (s *System) logf(format string, args ...any) {
	if s.log == nil {
		return
	}
	s.log.WriteLineString("kernel: " + fmt.Sprintf(format, args...))
}

// CreateProcess registers a new process in state New.
func (s *System) CreateProcess() (ProcessID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid, err := s.reg.CreateProcess()
	if err != nil {
		return 0, err
	}
	s.logf("process %d created", pid)
	return pid, nil
}

// TerminateProcess removes pid, its threads, its memory, and its pending messages.
func (s *System) TerminateProcess(pid ProcessID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tids, err := s.reg.TerminateProcess(pid)
	if err != nil {
		return err
	}
	delete(s.recvWait, pid)
	dropped, err := s.bus.Discard(pid)
	if err != nil {
		s.logf("process %d: discard queue: %v", pid, err)
	}
	s.logf("process %d terminated (%d threads, %d messages dropped)", pid, len(tids), dropped)
	return nil
}

// ProcessState returns the state of pid.
func (s *System) ProcessState(pid ProcessID) (ProcessState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.ProcessState(pid)
}

// CreateThread adds a ready thread with no task to pid.
func (s *System) CreateThread(pid ProcessID) (ThreadID, error) {
	return s.Spawn(pid, nil)
}

// Spawn adds a ready thread to pid that runs task on each dispatch.
func (s *System) Spawn(pid ProcessID, task Task) (ThreadID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tid, err := s.reg.createThread(pid, task)
	if err != nil {
		return 0, err
	}
	s.logf("thread %d created in process %d", tid, pid)
	return tid, nil
}

// TerminateThread removes tid from pid and from the ready set.
func (s *System) TerminateThread(pid ProcessID, tid ThreadID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.TerminateThread(pid, tid); err != nil {
		return err
	}
	s.unwait(pid, tid)
	s.logf("thread %d terminated", tid)
	return nil
}

// SleepThread blocks tid until at least d has elapsed in kernel ticks.
func (s *System) SleepThread(pid ProcessID, tid ThreadID, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.SleepThread(pid, tid, d); err != nil {
		return err
	}
	s.unwait(pid, tid)
	return nil
}

// WakeThread makes a blocked thread ready before its timer fires.
func (s *System) WakeThread(pid ProcessID, tid ThreadID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.WakeThread(pid, tid); err != nil {
		return err
	}
	s.unwait(pid, tid)
	return nil
}

// ThreadState returns the state of tid within pid.
func (s *System) ThreadState(pid ProcessID, tid ThreadID) (ThreadState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.ThreadState(pid, tid)
}

// NewMessage builds a message stamped with this kernel's next message id.
func (s *System) NewMessage(from, to ProcessID, payload []byte) Message {
	return NewMessage(s.ids, from, to, payload)
}

// SendMessage queues msg for its receiver and wakes threads of the receiver
// that are waiting in Context.Recv.
func (s *System) SendMessage(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(msg)
}

// Send builds and queues a message, returning its id.
func (s *System) Send(from, to ProcessID, payload []byte) (MessageID, error) {
	msg := s.NewMessage(from, to, payload)
	if err := s.SendMessage(msg); err != nil {
		return 0, err
	}
	return msg.ID(), nil
}

func (s *System) sendLocked(msg Message) error {
	if err := s.bus.Send(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg, err)
	}
	waiters := s.recvWait[msg.Receiver()]
	if len(waiters) == 0 {
		return nil
	}
	delete(s.recvWait, msg.Receiver())
	for _, tid := range waiters {
		_ = s.reg.WakeThread(msg.Receiver(), tid)
	}
	return nil
}

// unwait drops tid from the receive waiters of pid.
func (s *System) unwait(pid ProcessID, tid ThreadID) {
	waiters := s.recvWait[pid]
	for i, w := range waiters {
		if w != tid {
			continue
		}
		waiters = append(waiters[:i], waiters[i+1:]...)
		if len(waiters) == 0 {
			delete(s.recvWait, pid)
		} else {
			s.recvWait[pid] = waiters
		}
		return
	}
}

// queueEmpty reports whether pid has no queued messages. A bus error counts
// as non-empty so the thread retries its receive instead of parking.
func (s *System) queueEmpty(pid ProcessID) bool {
	n, err := s.bus.Pending(pid)
	if err != nil {
		s.logf("process %d: pending: %v", pid, err)
		return false
	}
	return n == 0
}

func (s *System) pending(pid ProcessID) int {
	n, err := s.bus.Pending(pid)
	if err != nil {
		s.logf("process %d: pending: %v", pid, err)
		return 0
	}
	return n
}

// ReceiveMessage pops the oldest message for pid, or fails with ErrNotFound.
func (s *System) ReceiveMessage(pid ProcessID) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus.Receive(pid)
}

// TryReceiveMessage pops the oldest message for pid; ok is false when there is none.
func (s *System) TryReceiveMessage(pid ProcessID) (Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus.TryReceive(pid)
}

// Pending returns the number of messages queued for pid. Bus errors are
// logged and count as zero.
func (s *System) Pending(pid ProcessID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending(pid)
}

// ScheduleNext returns the next ready thread without running it.
func (s *System) ScheduleNext() (ThreadID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.ScheduleNext()
}

// IsReady reports whether tid is in the ready set.
func (s *System) IsReady(tid ThreadID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.IsReady(tid)
}

// Ready returns the ready set in dispatch order.
func (s *System) Ready() []ThreadID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Scheduler().Ready()
}

// Processes returns a snapshot of all processes, with the due tick of
// every sleeping thread.
func (s *System) Processes() []ProcessInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := s.reg.Processes()
	for i := range infos {
		for j := range infos[i].Threads {
			th := &infos[i].Threads[j]
			if due, ok := s.timer.dueAt(th.ID); ok {
				th.WakeAt = due
			}
		}
	}
	return infos
}

// Allocate reserves size bytes for pid from the memory manager.
func (s *System) Allocate(pid ProcessID, size uint64) (Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.reg.ProcessState(pid); err != nil {
		return 0, err
	}
	if s.mem == nil {
		return 0, errKind("allocate", KindInvalidState, "no memory manager")
	}
	return s.mem.Allocate(pid, size)
}

// Deallocate returns a region of pid to the memory manager.
func (s *System) Deallocate(pid ProcessID, addr Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.reg.ProcessState(pid); err != nil {
		return err
	}
	if s.mem == nil {
		return errKind("deallocate", KindInvalidState, "no memory manager")
	}
	return s.mem.Deallocate(pid, addr)
}

// Now returns the last tick passed to TickTo.
func (s *System) Now() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer.now
}

// TickTo advances the kernel clock and wakes sleeping threads that are due.
// It returns the number of threads woken.
func (s *System) TickTo(now uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	woken := 0
	for _, sl := range s.timer.advance(now) {
		if err := s.reg.WakeThread(sl.pid, sl.tid); err != nil {
			continue
		}
		woken++
	}
	return woken
}

// Step dispatches the next ready thread and runs one step of its task.
//
// It returns the dispatched thread, or false when no ready thread is free to
// run; a thread whose step is in progress on another goroutine is skipped.
// Threads without a task are only rotated. The lock is not held while the
// task runs.
func (s *System) Step() (ThreadID, bool) {
	s.mu.Lock()
	tid, t, ok := s.dispatchable()
	if !ok {
		s.mu.Unlock()
		return 0, false
	}
	pid := t.Process
	if t.task == nil {
		s.mu.Unlock()
		return tid, true
	}
	task := t.task
	s.reg.setRunning(pid, tid, true)
	s.mu.Unlock()

	ctx := &Context{s: s, pid: pid, tid: tid}
	s.run(ctx, task)

	s.mu.Lock()
	s.settle(ctx)
	s.mu.Unlock()

	if ctx.panic != nil && s.onPanic != nil {
		s.onPanic(*ctx.panic)
	}
	return tid, true
}

// dispatchable rotates the ready set until it finds a thread that is not
// already running a step on another goroutine, trying each entry at most once.
func (s *System) dispatchable() (ThreadID, *Thread, bool) {
	for n := s.reg.Scheduler().Len(); n > 0; n-- {
		tid, ok := s.reg.ScheduleNext()
		if !ok {
			return 0, nil, false
		}
		pid, _ := s.reg.Owner(tid)
		_, t, err := s.reg.lookup("dispatch", pid, tid)
		if err != nil || t.State != ThreadReady {
			continue
		}
		return tid, t, true
	}
	return 0, nil, false
}

func (s *System) run(ctx *Context, task Task) {
	defer func() {
		if v := recover(); v != nil {
			ctx.panic = &PanicInfo{PID: ctx.pid, TID: ctx.tid, Value: v, Stack: captureStack()}
		}
	}()
	task.Step(ctx)
}

// settle applies what the task asked for during its step.
func (s *System) settle(ctx *Context) {
	pid, tid := ctx.pid, ctx.tid
	s.unwait(pid, tid)
	switch {
	case ctx.panic != nil:
		if err := s.reg.TerminateThread(pid, tid); err == nil {
			s.logf("thread %d panicked: %v", tid, ctx.panic.Value)
		}
	case ctx.exit:
		if err := s.reg.TerminateThread(pid, tid); err == nil {
			s.logf("thread %d exited", tid)
		}
	case ctx.sleep:
		_ = s.reg.SleepThread(pid, tid, ctx.sleepFor)
	case ctx.recvBlocked && s.queueEmpty(pid):
		if err := s.reg.BlockThread(pid, tid); err == nil {
			s.recvWait[pid] = append(s.recvWait[pid], tid)
		}
	default:
		s.reg.setRunning(pid, tid, false)
	}
}
