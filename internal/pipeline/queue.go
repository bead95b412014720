package pipeline

import (
	"github.com/user/pulsebot/internal/types"
)

// Queue is the bounded FIFO buffer between event producers and the
// consumer tick. Enqueue never blocks: when the queue is full the event
// is rejected, trading completeness for producer liveness.
type Queue struct {
	ch chan *types.Event
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan *types.Event, capacity)}
}

// Enqueue adds an event without blocking. Returns false when the queue
// is at capacity and the event was dropped.
func (q *Queue) Enqueue(event *types.Event) bool {
	select {
	case q.ch <- event:
		return true
	default:
		return false
	}
}

// DequeueAll removes and returns every currently queued event in FIFO
// order. Returns nil when the queue is empty. Only the single consumer
// calls this, so the drain observes a consistent prefix.
func (q *Queue) DequeueAll() []*types.Event {
	var events []*types.Event
	for {
		select {
		case event := <-q.ch:
			events = append(events, event)
		default:
			return events
		}
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue's fixed capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
