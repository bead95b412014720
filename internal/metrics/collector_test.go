package metrics

import (
	"testing"

	"github.com/user/pulsebot/internal/types"
)

func interaction(userID, command string, guildID *string) *types.Event {
	return types.NewInteraction(types.NewCorrelationID(), &types.Interaction{
		UserID:      userID,
		Username:    "u" + userID,
		CommandName: command,
		GuildID:     guildID,
	})
}

func completion(command string, status types.Status, durationMS float64, errorType string) *types.Event {
	return types.NewCompletion(types.NewCorrelationID(), &types.Completion{
		CommandName: command,
		Status:      status,
		DurationMS:  durationMS,
		ErrorType:   errorType,
	})
}

func TestCollectorInteractions(t *testing.T) {
	guild := "-100555"
	c := NewCollector()
	for _, e := range []*types.Event{
		interaction("1", "ping", &guild),
		interaction("1", "ping", &guild),
		interaction("2", "stats", nil),
	} {
		if err := c.OnInteraction(e); err != nil {
			t.Fatalf("OnInteraction: %v", err)
		}
	}

	snap := c.Snapshot()
	if snap.TotalInteractions != 3 {
		t.Errorf("TotalInteractions = %d, want 3", snap.TotalInteractions)
	}
	if snap.CommandInvocations["ping"] != 2 || snap.CommandInvocations["stats"] != 1 {
		t.Errorf("CommandInvocations = %v", snap.CommandInvocations)
	}
	if snap.UniqueUsers != 2 {
		t.Errorf("UniqueUsers = %d, want 2", snap.UniqueUsers)
	}
	if snap.GuildInteractions[guild] != 2 {
		t.Errorf("GuildInteractions = %v, want 2 for %s", snap.GuildInteractions, guild)
	}
	// Direct-message interactions carry no guild and must not be counted
	// under any guild key.
	if len(snap.GuildInteractions) != 1 {
		t.Errorf("GuildInteractions has %d keys, want 1", len(snap.GuildInteractions))
	}
}

func TestCollectorLatency(t *testing.T) {
	c := NewCollector()
	for _, ms := range []float64{10, 30, 20} {
		if err := c.OnCompletion(completion("ping", types.StatusSuccess, ms, "")); err != nil {
			t.Fatalf("OnCompletion: %v", err)
		}
	}
	// A completion without a duration counts toward status totals only.
	if err := c.OnCompletion(completion("ping", types.StatusSuccess, 0, "")); err != nil {
		t.Fatalf("OnCompletion: %v", err)
	}

	snap := c.Snapshot()
	stats := snap.CommandLatency["ping"]
	if stats.Count != 3 {
		t.Errorf("latency Count = %d, want 3", stats.Count)
	}
	if stats.MinMS != 10 || stats.MaxMS != 30 || stats.AvgMS != 20 {
		t.Errorf("latency = min %v max %v avg %v, want 10/30/20", stats.MinMS, stats.MaxMS, stats.AvgMS)
	}
	if snap.CompletionsByStatus["success"] != 4 {
		t.Errorf("CompletionsByStatus = %v, want 4 successes", snap.CompletionsByStatus)
	}
}

func TestCollectorFailures(t *testing.T) {
	c := NewCollector()
	events := []*types.Event{
		completion("remind", types.StatusUserError, 5, "UserInputError"),
		completion("remind", types.StatusUserError, 5, "UserInputError"),
		completion("remind", types.StatusInternalError, 5, "TimeoutError"),
		completion("ping", types.StatusSuccess, 5, ""),
	}
	for _, e := range events {
		if err := c.OnCompletion(e); err != nil {
			t.Fatalf("OnCompletion: %v", err)
		}
	}

	snap := c.Snapshot()
	if snap.CommandFailures["remind"]["user_error"] != 2 {
		t.Errorf("CommandFailures = %v, want 2 user errors for remind", snap.CommandFailures)
	}
	if snap.CommandFailures["remind"]["internal_error"] != 1 {
		t.Errorf("CommandFailures = %v, want 1 internal error for remind", snap.CommandFailures)
	}
	if _, ok := snap.CommandFailures["ping"]; ok {
		t.Error("successful command recorded under CommandFailures")
	}
	if snap.ErrorTypes["UserInputError"] != 2 || snap.ErrorTypes["TimeoutError"] != 1 {
		t.Errorf("ErrorTypes = %v", snap.ErrorTypes)
	}
}

func TestCollectorRejectsMismatchedPayload(t *testing.T) {
	c := NewCollector()
	if err := c.OnInteraction(completion("ping", types.StatusSuccess, 1, "")); err == nil {
		t.Error("OnInteraction accepted a completion event")
	}
	if err := c.OnCompletion(interaction("1", "ping", nil)); err == nil {
		t.Error("OnCompletion accepted an interaction event")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	c := NewCollector()
	if err := c.OnInteraction(interaction("1", "ping", nil)); err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	snap.CommandInvocations["ping"] = 99

	if c.Snapshot().CommandInvocations["ping"] != 1 {
		t.Error("mutating a snapshot leaked into the collector")
	}
}
