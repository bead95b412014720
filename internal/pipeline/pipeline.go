// Package pipeline implements the telemetry collection pipeline: a
// bounded ingest queue, a periodic consumer that fans events out to
// sinks, and a periodic flusher that hands bounded batches to the
// exporter. Nothing in this package ever propagates a failure back to
// the producing application.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/pulsebot/internal/scheduler"
	"github.com/user/pulsebot/internal/types"
)

// Settings control the pipeline's buffering and cadences. Zero values
// fall back to the defaults below.
type Settings struct {
	QueueCapacity   int
	BatchSize       int
	ConsumeInterval time.Duration
	FlushInterval   time.Duration
}

const (
	defaultQueueCapacity   = 1000
	defaultBatchSize       = 100
	defaultConsumeInterval = 1 * time.Second
	defaultFlushInterval   = 30 * time.Second
)

func (s Settings) withDefaults() Settings {
	if s.QueueCapacity <= 0 {
		s.QueueCapacity = defaultQueueCapacity
	}
	if s.BatchSize <= 0 {
		s.BatchSize = defaultBatchSize
	}
	if s.ConsumeInterval <= 0 {
		s.ConsumeInterval = defaultConsumeInterval
	}
	if s.FlushInterval <= 0 {
		s.FlushInterval = defaultFlushInterval
	}
	return s
}

// Pipeline owns the event queue, the export buffer, and the periodic
// consumer and flush ticks. It is the only component that coordinates
// the others' lifecycles; create one per process (or per test).
type Pipeline struct {
	settings Settings
	queue    *Queue
	buffer   *Buffer
	exporter types.Exporter
	sinks    []types.Sink
	sched    *scheduler.Scheduler

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a stopped pipeline. Events may be submitted before Start;
// they sit in the queue until the first consumer tick.
func New(settings Settings, exporter types.Exporter, sinks ...types.Sink) *Pipeline {
	settings = settings.withDefaults()
	return &Pipeline{
		settings: settings,
		queue:    NewQueue(settings.QueueCapacity),
		buffer:   NewBuffer(),
		exporter: exporter,
		sinks:    sinks,
	}
}

// Submit places an event on the ingest queue. It never blocks and never
// fails: when the queue is full the event is dropped with a warning,
// keeping the producer's control flow unaffected.
func (p *Pipeline) Submit(event *types.Event) {
	if event == nil {
		return
	}
	if !p.queue.Enqueue(event) {
		slog.Warn("telemetry queue full, dropping event",
			"event_type", string(event.Type),
			"correlation_id", string(event.CorrelationID),
		)
	}
}

// Start acquires the exporter's transport, then begins the consumer and
// flush ticks. The transport exists before any tick can fire, so a flush
// can never observe an unstarted exporter. Calling Start on a running
// pipeline is a no-op.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	if err := p.exporter.Start(); err != nil {
		return fmt.Errorf("start exporter: %w", err)
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.sched = scheduler.New()
	if err := p.sched.Every("telemetry-consume", p.settings.ConsumeInterval, p.consumeTick); err != nil {
		p.exporter.Close()
		return err
	}
	if err := p.sched.Every("telemetry-flush", p.settings.FlushInterval, p.flushTick); err != nil {
		p.exporter.Close()
		return err
	}
	p.sched.Start()
	p.running = true

	slog.Info("telemetry pipeline started",
		"queue_capacity", p.settings.QueueCapacity,
		"batch_size", p.settings.BatchSize,
		"consume_interval", p.settings.ConsumeInterval.String(),
		"flush_interval", p.settings.FlushInterval.String(),
	)
	return nil
}

// Stop shuts the pipeline down in order: stop the ticks and wait for any
// in-flight tick, drain the queue through the normal dispatch path, flush
// at most one final batch, then release the transport. A failed final
// flush still completes the shutdown. Stop is idempotent.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.sched.Stop()
	p.consumeTick()
	// The caller's context is typically already cancelled by the time a
	// shutdown reaches here, so the final flush runs on its own context;
	// the exporter's request timeouts still bound it.
	p.flush(context.Background())
	p.cancel()
	p.exporter.Close()
	slog.Info("telemetry pipeline stopped")
}

// consumeTick drains the queue completely and dispatches each event in
// arrival order.
func (p *Pipeline) consumeTick() {
	for _, event := range p.queue.DequeueAll() {
		p.dispatch(event)
	}
}

// dispatch routes one event to the sinks and appends it to the export
// buffer. Malformed events are logged and kept out of the export path;
// a sink failure is logged and does not affect the remaining sinks or
// events.
func (p *Pipeline) dispatch(event *types.Event) {
	if err := event.Validate(); err != nil {
		slog.Warn("discarding malformed telemetry event",
			"event_type", string(event.Type),
			"error", err,
		)
		return
	}

	for _, sink := range p.sinks {
		var err error
		switch event.Type {
		case types.EventInteraction:
			err = sink.OnInteraction(event)
		case types.EventCompletion:
			err = sink.OnCompletion(event)
		}
		if err != nil {
			slog.Error("telemetry sink failed",
				"event_type", string(event.Type),
				"correlation_id", string(event.CorrelationID),
				"error", err,
			)
		}
	}

	p.buffer.Append(event)
}

// flushTick runs the periodic flush under the pipeline's context.
func (p *Pipeline) flushTick() {
	ctx := p.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	p.flush(ctx)
}

// flush slices one bounded batch off the buffer head and hands it to
// the exporter. The removal happens before the export attempt; a failed
// batch is dropped permanently rather than re-queued, so repeated export
// failures cannot grow memory without bound.
func (p *Pipeline) flush(ctx context.Context) {
	if p.buffer.Len() == 0 {
		return
	}
	batch := p.buffer.TakePrefix(p.settings.BatchSize)
	if !p.exporter.PostBatch(ctx, batch) {
		slog.Warn("telemetry batch dropped", "events", len(batch))
	}
}
