package kernel

import "time"

// Task is a cooperative unit of execution bound to a thread.
//
// Step runs once per dispatch and must return promptly; it never blocks.
type Task interface {
	Step(*Context)
}

// TaskFunc adapts a function to Task.
type TaskFunc func(*Context)

func (f TaskFunc) Step(ctx *Context) { f(ctx) }

// Context provides thread-local access to kernel operations during one Step.
type Context struct {
	s   *System
	pid ProcessID
	tid ThreadID

	exit        bool
	sleep       bool
	sleepFor    time.Duration
	recvBlocked bool
	panic       *PanicInfo
}

// PID returns the process of the running thread.
func (c *Context) PID() ProcessID { return c.pid }

// TID returns the running thread.
func (c *Context) TID() ThreadID { return c.tid }

// Send sends payload to process to and returns the message id.
func (c *Context) Send(to ProcessID, payload []byte) (MessageID, error) {
	return c.s.Send(c.pid, to, payload)
}

// TryRecv reads one message addressed to this process without waiting.
func (c *Context) TryRecv() (Message, bool) {
	msg, ok, err := c.s.TryReceiveMessage(c.pid)
	if err != nil {
		return Message{}, false
	}
	return msg, ok
}

// Recv reads one message addressed to this process.
//
// The call is cooperative: if it returns false, the caller should return from
// Task.Step; the thread is blocked until a message is sent to its process.
func (c *Context) Recv() (Message, bool) {
	msg, ok := c.TryRecv()
	c.recvBlocked = !ok
	return msg, ok
}

// Sleep blocks the thread for at least d once the current step returns.
func (c *Context) Sleep(d time.Duration) {
	c.sleep = true
	c.sleepFor = d
}

// Exit terminates the thread once the current step returns.
func (c *Context) Exit() { c.exit = true }

// Spawn starts a new thread running task in the same process.
func (c *Context) Spawn(task Task) (ThreadID, error) {
	return c.s.Spawn(c.pid, task)
}

// Alloc reserves memory for this process.
func (c *Context) Alloc(size uint64) (Address, error) {
	return c.s.Allocate(c.pid, size)
}

// Free releases memory previously returned by Alloc.
func (c *Context) Free(addr Address) error {
	return c.s.Deallocate(c.pid, addr)
}

// NowTick returns the current kernel tick.
func (c *Context) NowTick() uint64 { return c.s.Now() }
