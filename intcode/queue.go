package intcode

import (
	"context"
	"sync"
)

// Queue carries integers from any number of producers to one consumer in
// FIFO order. Send never blocks. A Queue is the link between machines: the
// output queue of one machine is the input queue of the next.
type Queue struct {
	mu           sync.Mutex
	items        []int64
	writers      int
	closed       bool
	disconnected bool

	// ready holds at most one wakeup for the single consumer.
	ready chan struct{}
}

func NewQueue(values ...int64) *Queue {
	q := &Queue{
		ready: make(chan struct{}, 1),
	}
	q.items = append(q.items, values...)
	return q
}

func (q *Queue) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Send enqueues v. After Disconnect it drops v and returns ErrDisconnected.
// Sends to a closed queue are dropped the same way.
func (q *Queue) Send(v int64) error {
	q.mu.Lock()
	if q.disconnected || q.closed {
		q.mu.Unlock()
		return ErrDisconnected
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.wake()
	return nil
}

// Recv dequeues the oldest value, blocking while the queue is empty. It
// returns ErrInputClosed once the queue is closed and drained, or the
// context error if ctx ends first.
func (q *Queue) Recv(ctx context.Context) (int64, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return 0, ErrInputClosed
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// TryRecv dequeues without blocking.
func (q *Queue) TryRecv() (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return 0, false
	}
	v := q.items[0]
	q.items = q.items[1:]
	return v, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Disconnect marks the consumer as gone. Pending and future values are
// discarded.
func (q *Queue) Disconnect() {
	q.mu.Lock()
	q.disconnected = true
	q.items = nil
	q.mu.Unlock()
}

// Close ends the stream: once drained, Recv returns ErrInputClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// attach registers a machine that writes to q.
func (q *Queue) attach() {
	q.mu.Lock()
	q.writers++
	q.mu.Unlock()
}

// detach unregisters a writer; the last one to leave closes the queue.
func (q *Queue) detach() {
	q.mu.Lock()
	q.writers--
	last := q.writers <= 0
	if last {
		q.closed = true
	}
	q.mu.Unlock()
	if last {
		q.wake()
	}
}
