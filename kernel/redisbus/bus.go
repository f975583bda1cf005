// Package redisbus implements kernel.Bus on Redis lists, so that message
// queues survive the kernel process and can be inspected from outside.
//
// Each receiving process owns one list at {namespace}:mq:{pid}. Send is RPUSH,
// receive is LPOP, so per-receiver order stays FIFO.
package redisbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bruna/kernel"
)

const defaultTimeout = 2 * time.Second

// Bus is a kernel.Bus backed by Redis. It is safe for concurrent use.
type Bus struct {
	rdb       *redis.Client
	namespace string
	timeout   time.Duration
}

// New connects a bus to Redis. namespace must not be empty.
func New(opts *redis.Options, namespace string, timeout time.Duration) (*Bus, error) {
	if namespace == "" {
		return nil, fmt.Errorf("redisbus: namespace cannot be empty")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Bus{
		rdb:       redis.NewClient(opts),
		namespace: namespace,
		timeout:   timeout,
	}, nil
}

// Close closes the Redis connection.
func (b *Bus) Close() error {
	return b.rdb.Close()
}

// Ping verifies Redis connectivity.
func (b *Bus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// QueueKey returns the list key holding messages for pid.
func (b *Bus) QueueKey(pid kernel.ProcessID) string {
	return fmt.Sprintf("%s:mq:%d", b.namespace, pid)
}

func (b *Bus) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.timeout)
}

func (b *Bus) Send(msg kernel.Message) error {
	data, err := msg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("redisbus: encode %s: %w", msg, err)
	}
	ctx, cancel := b.ctx()
	defer cancel()
	if err := b.rdb.RPush(ctx, b.QueueKey(msg.Receiver()), data).Err(); err != nil {
		return fmt.Errorf("redisbus: push %s: %w", msg, err)
	}
	return nil
}

func (b *Bus) Receive(pid kernel.ProcessID) (kernel.Message, error) {
	msg, ok, err := b.TryReceive(pid)
	if err != nil {
		return kernel.Message{}, err
	}
	if !ok {
		return kernel.Message{}, &kernel.Error{Op: "receive message", Kind: kernel.KindNotFound, PID: pid}
	}
	return msg, nil
}

func (b *Bus) TryReceive(pid kernel.ProcessID) (kernel.Message, bool, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	data, err := b.rdb.LPop(ctx, b.QueueKey(pid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return kernel.Message{}, false, nil
	}
	if err != nil {
		return kernel.Message{}, false, fmt.Errorf("redisbus: pop pid %d: %w", pid, err)
	}
	var msg kernel.Message
	if err := msg.UnmarshalBinary(data); err != nil {
		return kernel.Message{}, false, fmt.Errorf("redisbus: decode pid %d: %w", pid, err)
	}
	return msg, true, nil
}

// Pending returns the queue length for pid.
func (b *Bus) Pending(pid kernel.ProcessID) (int, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	n, err := b.rdb.LLen(ctx, b.QueueKey(pid)).Result()
	if err != nil {
		return 0, fmt.Errorf("redisbus: length pid %d: %w", pid, err)
	}
	return int(n), nil
}

// Discard deletes pid's queue and returns how many messages it held.
func (b *Bus) Discard(pid kernel.ProcessID) (int, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	key := b.QueueKey(pid)
	var n *redis.IntCmd
	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		n = pipe.LLen(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redisbus: discard pid %d: %w", pid, err)
	}
	return int(n.Val()), nil
}
