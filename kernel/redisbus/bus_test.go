package redisbus

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bruna/kernel"
)

func setupTestBus(t *testing.T) (*Bus, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	bus, err := New(&redis.Options{Addr: mr.Addr()}, "test", time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { bus.Close() })
	return bus, mr
}

func TestNew_EmptyNamespace(t *testing.T) {
	bus, err := New(&redis.Options{Addr: "127.0.0.1:0"}, "", 0)
	assert.Error(t, err)
	assert.Nil(t, bus)
}

func TestBus_FIFOPerReceiver(t *testing.T) {
	bus, _ := setupTestBus(t)
	ids := kernel.NewIDs()

	m1 := kernel.NewMessage(ids, 1, 2, []byte("one"))
	m2 := kernel.NewMessage(ids, 3, 2, []byte("two"))
	require.NoError(t, bus.Send(m1))
	require.NoError(t, bus.Send(m2))
	n, err := bus.Pending(2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := bus.Receive(2)
	require.NoError(t, err)
	assert.Equal(t, m1.ID(), got.ID())
	assert.Equal(t, kernel.ProcessID(1), got.Sender())
	assert.Equal(t, []byte("one"), got.Payload())

	got, err = bus.Receive(2)
	require.NoError(t, err)
	assert.Equal(t, m2.ID(), got.ID())
	assert.Equal(t, kernel.ProcessID(3), got.Sender())

	_, err = bus.Receive(2)
	assert.True(t, kernel.IsNotFound(err))

	_, ok, err := bus.TryReceive(2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBus_IsolationAndKeys(t *testing.T) {
	bus, mr := setupTestBus(t)
	ids := kernel.NewIDs()

	require.NoError(t, bus.Send(kernel.NewMessage(ids, 1, 10, []byte("a"))))

	assert.True(t, mr.Exists("test:mq:10"))
	_, ok, err := bus.TryReceive(11)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBus_Discard(t *testing.T) {
	bus, mr := setupTestBus(t)
	ids := kernel.NewIDs()
	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Send(kernel.NewMessage(ids, 1, 5, nil)))
	}

	n, err := bus.Discard(5)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, mr.Exists("test:mq:5"))
	n, err = bus.Discard(5)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBus_CorruptEntry(t *testing.T) {
	bus, mr := setupTestBus(t)
	_, err := mr.Push("test:mq:4", "short")
	require.NoError(t, err)

	_, _, err = bus.TryReceive(4)
	require.Error(t, err)
	assert.Equal(t, kernel.KindInvalidArgument, kernel.KindOf(err))
}

func TestBus_WithSystemWakesReceiver(t *testing.T) {
	bus, _ := setupTestBus(t)
	s := kernel.NewSystem(kernel.Options{Bus: bus})

	server, err := s.CreateProcess()
	require.NoError(t, err)
	client, err := s.CreateProcess()
	require.NoError(t, err)

	var got []byte
	tid, err := s.Spawn(server, kernel.TaskFunc(func(ctx *kernel.Context) {
		msg, ok := ctx.Recv()
		if !ok {
			return
		}
		got = msg.Payload()
		ctx.Exit()
	}))
	require.NoError(t, err)

	s.Step()
	st, err := s.ThreadState(server, tid)
	require.NoError(t, err)
	assert.Equal(t, kernel.ThreadBlocked, st)

	_, err = s.Send(client, server, []byte("hello"))
	require.NoError(t, err)
	s.Step()
	assert.Equal(t, []byte("hello"), got)

	require.NoError(t, s.TerminateProcess(server))
	n, err := bus.Pending(server)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBus_Unreachable(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	addr := mr.Addr()
	mr.Close()

	bus, err := New(&redis.Options{Addr: addr, MaxRetries: -1}, "test", 200*time.Millisecond)
	require.NoError(t, err)
	defer bus.Close()

	err = bus.Send(kernel.NewMessage(kernel.NewIDs(), 1, 2, nil))
	assert.Error(t, err)
	_, err = bus.Pending(2)
	assert.Error(t, err)
	_, err = bus.Discard(2)
	assert.Error(t, err)
}
