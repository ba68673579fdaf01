// Package memory backs the task queue with a buffered channel. It serves
// local development and tests when no broker is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/parkmj/kbland-collector/internal/queue"
)

// Queue hands tasks from the API to worker goroutines through a buffered
// channel. Capacity bounds how many pending tasks can stack up before
// Enqueue blocks.
type Queue struct {
	mu     sync.Mutex
	ch     chan queue.Item
	closed bool
}

// NewQueue sizes the buffer to capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan queue.Item, capacity)}
}

// Enqueue blocks while the buffer is full; the context bounds the wait.
func (q *Queue) Enqueue(ctx context.Context, item queue.Item) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue task: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue waits for the next task. Once Close has been called and the buffer
// drained, it returns queue.ErrClosed.
func (q *Queue) Dequeue(ctx context.Context) (queue.Item, error) {
	select {
	case <-ctx.Done():
		return queue.Item{}, fmt.Errorf("dequeue task: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return queue.Item{}, queue.ErrClosed
		}
		return item, nil
	}
}

// Close stops intake; safe to call more than once. Buffered tasks remain
// dequeueable until the channel drains.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
