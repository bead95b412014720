// Package eventlog is a JSONL-backed append-only record of every event
// the telemetry consumer dispatches. It is a local observability sink,
// not a durable export queue: entries are never replayed into the
// exporter.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/pulsebot/internal/types"
)

// Log appends events to events.jsonl under its directory, one JSON
// object per line.
type Log struct {
	path string
	mu   sync.Mutex
}

// New creates a Log rooted at the given directory. The directory is
// created lazily on first append.
func New(dir string) *Log {
	return &Log{path: filepath.Join(dir, "events.jsonl")}
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// OnInteraction appends an interaction event.
func (l *Log) OnInteraction(event *types.Event) error {
	return l.append(event)
}

// OnCompletion appends a completion event.
func (l *Log) OnCompletion(event *types.Event) error {
	return l.append(event)
}

func (l *Log) append(event *types.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Tail returns the last limit events in log order. Returns nil when the
// log does not exist yet or limit is not positive.
func (l *Log) Tail(limit int) ([]*types.Event, error) {
	if limit <= 0 {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var events []*types.Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var event types.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, &event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan event log: %w", err)
	}

	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}
