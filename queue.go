// -*- tab-width:2 -*-

package netchan

// Boundary interfaces to the message broker, plus an in-memory
// implementation used by tests and the loopback mode.

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned once a MemQueue has been closed and
// emptied.
var ErrQueueClosed = errors.New("queue closed")

// Receiver is the ingress side of a queue. The core treats it as an
// opaque, possibly-failing source and does not manage reconnection.
type Receiver interface {
	Receive(ctx context.Context) ([]byte, error)
}

// Publisher is the egress side of a queue. Any failure is treated as
// transient by the forwarder.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// MemQueue is a bounded in-process queue implementing both sides of
// the boundary. The body channel is never closed; Close signals via
// done so a late Publish gets ErrQueueClosed instead of a panic.
type MemQueue struct {
	ch        chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemQueue makes an in-memory queue with the default depth.
func NewMemQueue() *MemQueue {
	return &MemQueue{
		ch:   make(chan []byte, memQueueDepth),
		done: make(chan struct{}),
	}
}

// Publish enqueues body, blocking when full. After Close it returns
// ErrQueueClosed.
func (q *MemQueue) Publish(ctx context.Context, body []byte) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- body:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive dequeues the next body, blocking when empty. Bodies queued
// before Close remain receivable; once drained it returns
// ErrQueueClosed.
func (q *MemQueue) Receive(ctx context.Context) ([]byte, error) {
	select {
	case body := <-q.ch:
		return body, nil
	default:
	}

	select {
	case body := <-q.ch:
		return body, nil
	case <-q.done:
		// Close may race a pending Publish; drain before erroring.
		select {
		case body := <-q.ch:
			return body, nil
		default:
			return nil, ErrQueueClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close ends the queue; pending bodies remain receivable.
func (q *MemQueue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// Len reports the queued body count.
func (q *MemQueue) Len() int {
	return len(q.ch)
}
