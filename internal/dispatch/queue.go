package dispatch

import (
	"context"
	"sync/atomic"

	"quoter/internal/schema"
	"quoter/pkg/exception"
)

// EventKind tags the payload carried by an Event.
type EventKind uint8

const (
	EventUnknown EventKind = iota
	EventBookDelta
	EventPortfolio
)

// Event is the unit passed from transport decoding to the dispatcher.
type Event struct {
	Kind       EventKind
	Delta      schema.BookDelta
	Portfolio  schema.PortfolioSnapshot
	RecvTsNano int64
}

// Queue is a bounded, non-blocking event queue. One queue backs one stream,
// so consumption order is the stream's arrival order.
type Queue struct {
	ch     chan Event
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return exception.ErrEventQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return exception.ErrEventQueueFull
	}
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes events until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
