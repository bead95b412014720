// Package metrics aggregates consumed telemetry events into in-memory
// counters, independent of the export path.
package metrics

import (
	"fmt"
	"sync"

	"github.com/user/pulsebot/internal/types"
)

type latency struct {
	count int64
	min   float64
	max   float64
	total float64
}

func (l *latency) observe(ms float64) {
	if l.count == 0 || ms < l.min {
		l.min = ms
	}
	if ms > l.max {
		l.max = ms
	}
	l.count++
	l.total += ms
}

// LatencySnapshot is the exported view of one command's duration stats.
type LatencySnapshot struct {
	Count int64   `json:"count"`
	MinMS float64 `json:"minMs"`
	MaxMS float64 `json:"maxMs"`
	AvgMS float64 `json:"avgMs"`
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	TotalInteractions   int64                       `json:"totalInteractions"`
	CommandInvocations  map[string]int64            `json:"commandInvocations"`
	UniqueUsers         int                         `json:"uniqueUsers"`
	GuildInteractions   map[string]int64            `json:"guildInteractions"`
	CompletionsByStatus map[string]int64            `json:"completionsByStatus"`
	CommandLatency      map[string]LatencySnapshot  `json:"commandLatency"`
	CommandFailures     map[string]map[string]int64 `json:"commandFailures"`
	ErrorTypes          map[string]int64            `json:"errorTypes"`
}

// Collector is a telemetry sink that keeps running usage counters:
// invocations per command, unique users, per-guild activity, completion
// statuses, per-command latency, and failure/error-type breakdowns.
type Collector struct {
	mu                  sync.Mutex
	totalInteractions   int64
	commandInvocations  map[string]int64
	userIDs             map[string]struct{}
	guildInteractions   map[string]int64
	completionsByStatus map[types.Status]int64
	commandLatency      map[string]*latency
	commandFailures     map[string]map[types.Status]int64
	errorTypes          map[string]int64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		commandInvocations:  make(map[string]int64),
		userIDs:             make(map[string]struct{}),
		guildInteractions:   make(map[string]int64),
		completionsByStatus: make(map[types.Status]int64),
		commandLatency:      make(map[string]*latency),
		commandFailures:     make(map[string]map[types.Status]int64),
		errorTypes:          make(map[string]int64),
	}
}

// OnInteraction records one command invocation.
func (c *Collector) OnInteraction(event *types.Event) error {
	data := event.Interaction
	if data == nil {
		return fmt.Errorf("interaction event without interaction data")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalInteractions++
	c.commandInvocations[data.CommandName]++
	c.userIDs[data.UserID] = struct{}{}
	if data.GuildID != nil {
		c.guildInteractions[*data.GuildID]++
	}
	return nil
}

// OnCompletion records one command outcome. Completions without a
// duration contribute to status counts but not to latency stats.
func (c *Collector) OnCompletion(event *types.Event) error {
	data := event.Completion
	if data == nil {
		return fmt.Errorf("completion event without completion data")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.completionsByStatus[data.Status]++
	if data.DurationMS > 0 {
		stats, ok := c.commandLatency[data.CommandName]
		if !ok {
			stats = &latency{}
			c.commandLatency[data.CommandName] = stats
		}
		stats.observe(data.DurationMS)
	}
	if data.Status != types.StatusSuccess {
		byStatus, ok := c.commandFailures[data.CommandName]
		if !ok {
			byStatus = make(map[types.Status]int64)
			c.commandFailures[data.CommandName] = byStatus
		}
		byStatus[data.Status]++
		if data.ErrorType != "" {
			c.errorTypes[data.ErrorType]++
		}
	}
	return nil
}

// Snapshot returns a deep copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		TotalInteractions:   c.totalInteractions,
		CommandInvocations:  make(map[string]int64, len(c.commandInvocations)),
		UniqueUsers:         len(c.userIDs),
		GuildInteractions:   make(map[string]int64, len(c.guildInteractions)),
		CompletionsByStatus: make(map[string]int64, len(c.completionsByStatus)),
		CommandLatency:      make(map[string]LatencySnapshot, len(c.commandLatency)),
		CommandFailures:     make(map[string]map[string]int64, len(c.commandFailures)),
		ErrorTypes:          make(map[string]int64, len(c.errorTypes)),
	}
	for cmd, n := range c.commandInvocations {
		snap.CommandInvocations[cmd] = n
	}
	for guild, n := range c.guildInteractions {
		snap.GuildInteractions[guild] = n
	}
	for status, n := range c.completionsByStatus {
		snap.CompletionsByStatus[string(status)] = n
	}
	for cmd, stats := range c.commandLatency {
		snap.CommandLatency[cmd] = LatencySnapshot{
			Count: stats.count,
			MinMS: stats.min,
			MaxMS: stats.max,
			AvgMS: stats.total / float64(stats.count),
		}
	}
	for cmd, byStatus := range c.commandFailures {
		out := make(map[string]int64, len(byStatus))
		for status, n := range byStatus {
			out[string(status)] = n
		}
		snap.CommandFailures[cmd] = out
	}
	for name, n := range c.errorTypes {
		snap.ErrorTypes[name] = n
	}
	return snap
}
