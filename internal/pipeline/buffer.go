package pipeline

import (
	"sync"

	"github.com/user/pulsebot/internal/types"
)

// Buffer accumulates consumed events until the next flush. The consumer
// appends to the tail; the flusher removes a prefix from the head. Those
// run on separate scheduler goroutines, so access is mutex-guarded.
type Buffer struct {
	mu     sync.Mutex
	events []*types.Event
}

// NewBuffer creates an empty export buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds an event to the tail.
func (b *Buffer) Append(event *types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

// TakePrefix atomically removes and returns the first min(n, len) events,
// preserving arrival order. The removal happens before any export I/O, so
// a batch is read by at most one in-flight export.
func (b *Buffer) TakePrefix(n int) []*types.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.events) {
		n = len(b.events)
	}
	if n <= 0 {
		return nil
	}
	taken := b.events[:n:n]
	b.events = b.events[n:]
	return taken
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
