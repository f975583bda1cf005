package kernel

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Message is an immutable IPC envelope addressed to a process.
type Message struct {
	id      MessageID
	from    ProcessID
	to      ProcessID
	payload []byte
}

// NewMessage stamps a message with the next id from ids.
//
// The payload is copied.
func NewMessage(ids *IDs, from, to ProcessID, payload []byte) Message {
	return Message{
		id:      ids.nextMessage(),
		from:    from,
		to:      to,
		payload: bytes.Clone(payload),
	}
}

func (m Message) ID() MessageID       { return m.id }
func (m Message) Sender() ProcessID   { return m.from }
func (m Message) Receiver() ProcessID { return m.to }
func (m Message) Len() int            { return len(m.payload) }

// Payload returns a copy of the message payload.
func (m Message) Payload() []byte { return bytes.Clone(m.payload) }

func (m Message) String() string {
	return fmt.Sprintf("msg %d %d->%d (%d bytes)", m.id, m.from, m.to, len(m.payload))
}

const messageHeaderBytes = 24

// MarshalBinary encodes the message.
//
// Layout (little-endian):
//   - u64: id
//   - u64: sender
//   - u64: receiver
//   - bytes: payload
func (m Message) MarshalBinary() ([]byte, error) {
	buf := make([]byte, messageHeaderBytes+len(m.payload))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(m.id))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(m.from))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(m.to))
	copy(buf[messageHeaderBytes:], m.payload)
	return buf, nil
}

// UnmarshalBinary decodes a message produced by MarshalBinary.
func (m *Message) UnmarshalBinary(data []byte) error {
	if len(data) < messageHeaderBytes {
		return &Error{Op: "decode message", Kind: KindInvalidArgument,
			Err: fmt.Errorf("short envelope: %d bytes", len(data))}
	}
	m.id = MessageID(binary.LittleEndian.Uint64(data[0:8]))
	m.from = ProcessID(binary.LittleEndian.Uint64(data[8:16]))
	m.to = ProcessID(binary.LittleEndian.Uint64(data[16:24]))
	m.payload = bytes.Clone(data[messageHeaderBytes:])
	return nil
}

// Bus delivers messages to per-process FIFO queues.
//
// Receiving never waits: an empty queue is reported immediately.
type Bus interface {
	// Send appends msg to its receiver's queue.
	Send(msg Message) error
	// Receive pops the oldest message for pid; ErrNotFound if there is none.
	Receive(pid ProcessID) (Message, error)
	// TryReceive is Receive with an explicit empty result instead of ErrNotFound.
	TryReceive(pid ProcessID) (Message, bool, error)
	// Pending returns the number of queued messages for pid.
	Pending(pid ProcessID) (int, error)
	// Discard drops pid's queue and returns how many messages it held.
	Discard(pid ProcessID) (int, error)
}

// mailbox is an unbounded FIFO of messages.
type mailbox struct {
	head  int
	slots []Message
}

func (mb *mailbox) push(msg Message) {
	if mb.head > 0 && mb.head == len(mb.slots) {
		mb.slots = mb.slots[:0]
		mb.head = 0
	}
	mb.slots = append(mb.slots, msg)
}

func (mb *mailbox) pop() (Message, bool) {
	if mb.head == len(mb.slots) {
		return Message{}, false
	}
	msg := mb.slots[mb.head]
	mb.slots[mb.head] = Message{}
	mb.head++
	return msg, true
}

func (mb *mailbox) len() int { return len(mb.slots) - mb.head }

// MemoryBus keeps all queues in memory. Queues are created on first send.
//
// It is not safe for concurrent use.
type MemoryBus struct {
	queues map[ProcessID]*mailbox
}

// NewMemoryBus returns an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{queues: make(map[ProcessID]*mailbox)}
}

func (b *MemoryBus) Send(msg Message) error {
	if b.queues == nil {
		b.queues = make(map[ProcessID]*mailbox)
	}
	mb, ok := b.queues[msg.to]
	if !ok {
		mb = &mailbox{}
		b.queues[msg.to] = mb
	}
	mb.push(msg)
	return nil
}

func (b *MemoryBus) Receive(pid ProcessID) (Message, error) {
	msg, ok, _ := b.TryReceive(pid)
	if !ok {
		return Message{}, errNotFound("receive message", pid, 0)
	}
	return msg, nil
}

func (b *MemoryBus) TryReceive(pid ProcessID) (Message, bool, error) {
	mb, ok := b.queues[pid]
	if !ok {
		return Message{}, false, nil
	}
	msg, ok := mb.pop()
	return msg, ok, nil
}

func (b *MemoryBus) Pending(pid ProcessID) (int, error) {
	if mb, ok := b.queues[pid]; ok {
		return mb.len(), nil
	}
	return 0, nil
}

func (b *MemoryBus) Discard(pid ProcessID) (int, error) {
	mb, ok := b.queues[pid]
	if !ok {
		return 0, nil
	}
	delete(b.queues, pid)
	return mb.len(), nil
}
