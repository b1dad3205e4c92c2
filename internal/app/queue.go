package app

import (
	"context"
	"fmt"
)

// DefaultQueueSize is the capacity of the coordinator queue.
const DefaultQueueSize = 1024

// Queue is the single channel every producer pushes onto and only the
// coordinator loop reads from.
type Queue struct {
	ch chan Event
}

// NewQueue allocates a queue holding up to size pending events.
func NewQueue(size int) (*Queue, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid queue size %d", size)
	}
	return &Queue{ch: make(chan Event, size)}, nil
}

// Push blocks until ev is queued or ctx is done.
func (q *Queue) Push(ctx context.Context, ev Event) bool {
	select {
	case q.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// TryPush queues ev only if there is room. Low-priority producers such as
// the ticker use it so they never hold up the loop.
func (q *Queue) TryPush(ev Event) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		return false
	}
}

// Pop waits for the next event.
func (q *Queue) Pop(ctx context.Context) (Event, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	case <-ctx.Done():
		return nil, false
	}
}

// Len reports how many events are waiting.
func (q *Queue) Len() int { return len(q.ch) }
