// internal/types/interfaces.go
package types

import (
	"context"
)

// Sink receives each event the consumer drains from the queue. Hooks are
// called synchronously, once per event, in arrival order. A returned
// error is logged by the consumer and must not affect other events.
type Sink interface {
	OnInteraction(event *Event) error
	OnCompletion(event *Event) error
}

// Exporter delivers event batches to the remote collector. PostBatch
// reports success as a bare boolean; it never panics and never returns
// an error, because export failures must stay invisible to producers.
type Exporter interface {
	// Start acquires the transport resource. Must be called before PostBatch.
	Start() error
	PostBatch(ctx context.Context, events []*Event) bool
	// Close releases the transport resource.
	Close()
}
