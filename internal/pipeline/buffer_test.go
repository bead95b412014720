package pipeline

import (
	"fmt"
	"testing"
)

func TestBufferPrefixRemoval(t *testing.T) {
	buffer := NewBuffer()
	for i := 0; i < 7; i++ {
		buffer.Append(interactionEvent(fmt.Sprintf("cmd-%d", i)))
	}

	taken := buffer.TakePrefix(3)
	if len(taken) != 3 {
		t.Fatalf("expected 3 events, got %d", len(taken))
	}
	for i, event := range taken {
		want := fmt.Sprintf("cmd-%d", i)
		if event.Interaction.CommandName != want {
			t.Errorf("expected taken[%d] = %s, got %s", i, want, event.Interaction.CommandName)
		}
	}

	if buffer.Len() != 4 {
		t.Fatalf("expected 4 remaining events, got %d", buffer.Len())
	}
	rest := buffer.TakePrefix(100)
	for i, event := range rest {
		want := fmt.Sprintf("cmd-%d", i+3)
		if event.Interaction.CommandName != want {
			t.Errorf("expected rest[%d] = %s, got %s", i, want, event.Interaction.CommandName)
		}
	}
}

func TestBufferTakeMoreThanLen(t *testing.T) {
	buffer := NewBuffer()
	buffer.Append(interactionEvent("only"))

	taken := buffer.TakePrefix(10)
	if len(taken) != 1 {
		t.Fatalf("expected 1 event, got %d", len(taken))
	}
	if buffer.Len() != 0 {
		t.Errorf("expected empty buffer, got len %d", buffer.Len())
	}
}

func TestBufferTakeFromEmpty(t *testing.T) {
	buffer := NewBuffer()
	if taken := buffer.TakePrefix(10); taken != nil {
		t.Errorf("expected nil from empty buffer, got %d events", len(taken))
	}
}
