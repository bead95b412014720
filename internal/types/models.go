// internal/types/models.go
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType discriminates the two kinds of telemetry events.
type EventType string

const (
	EventInteraction EventType = "interaction"
	EventCompletion  EventType = "completion"
)

// Status classifies how a command completed.
type Status string

const (
	StatusSuccess       Status = "success"
	StatusUserError     Status = "user_error"
	StatusInternalError Status = "internal_error"
)

// Interaction records one command invocation by a user.
type Interaction struct {
	UserID      string         `json:"userId"`
	Username    string         `json:"username"`
	CommandName string         `json:"commandName"`
	GuildID     *string        `json:"guildId"` // nil when the command was issued outside any group
	ChannelID   string         `json:"channelId,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

// Completion records the outcome of a previously reported interaction.
type Completion struct {
	CommandName string  `json:"commandName"`
	Status      Status  `json:"status"`
	DurationMS  float64 `json:"durationMs"`
	ErrorType   string  `json:"errorType,omitempty"` // set only for non-success statuses
}

// Event is one telemetry occurrence. Exactly one of Interaction or
// Completion is set, matching Type. Events are immutable once submitted
// to the pipeline.
type Event struct {
	Type          EventType
	CorrelationID CorrelationID
	Timestamp     time.Time
	Interaction   *Interaction
	Completion    *Completion
}

// NewInteraction wraps interaction data in an Event stamped with the
// current time.
func NewInteraction(cid CorrelationID, data *Interaction) *Event {
	return &Event{
		Type:          EventInteraction,
		CorrelationID: cid,
		Timestamp:     time.Now().UTC(),
		Interaction:   data,
	}
}

// NewCompletion wraps completion data in an Event stamped with the
// current time.
func NewCompletion(cid CorrelationID, data *Completion) *Event {
	return &Event{
		Type:          EventCompletion,
		CorrelationID: cid,
		Timestamp:     time.Now().UTC(),
		Completion:    data,
	}
}

// Validate checks that the event is well formed: a known type, a
// correlation id, a timestamp, and a payload matching the type.
func (e *Event) Validate() error {
	if e.CorrelationID == "" {
		return fmt.Errorf("missing correlation id")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("missing timestamp")
	}
	switch e.Type {
	case EventInteraction:
		if e.Interaction == nil {
			return fmt.Errorf("interaction event without interaction data")
		}
		if e.Interaction.CommandName == "" {
			return fmt.Errorf("interaction event without command name")
		}
	case EventCompletion:
		if e.Completion == nil {
			return fmt.Errorf("completion event without completion data")
		}
		if e.Completion.CommandName == "" {
			return fmt.Errorf("completion event without command name")
		}
		switch e.Completion.Status {
		case StatusSuccess:
			if e.Completion.ErrorType != "" {
				return fmt.Errorf("successful completion carries error type %q", e.Completion.ErrorType)
			}
		case StatusUserError, StatusInternalError:
		default:
			return fmt.Errorf("unknown completion status %q", e.Completion.Status)
		}
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// MarshalJSON flattens the event into the collector's wire shape: an
// "eventType" discriminator followed by the variant's fields.
func (e *Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventInteraction:
		return json.Marshal(struct {
			EventType     EventType     `json:"eventType"`
			CorrelationID CorrelationID `json:"correlationId"`
			Timestamp     time.Time     `json:"timestamp"`
			*Interaction
		}{e.Type, e.CorrelationID, e.Timestamp.UTC(), e.Interaction})
	case EventCompletion:
		return json.Marshal(struct {
			EventType     EventType     `json:"eventType"`
			CorrelationID CorrelationID `json:"correlationId"`
			Timestamp     time.Time     `json:"timestamp"`
			*Completion
		}{e.Type, e.CorrelationID, e.Timestamp.UTC(), e.Completion})
	default:
		return nil, fmt.Errorf("marshal event: unknown type %q", e.Type)
	}
}

// UnmarshalJSON reads the flattened wire shape back into the tagged union.
func (e *Event) UnmarshalJSON(data []byte) error {
	var head struct {
		EventType     EventType     `json:"eventType"`
		CorrelationID CorrelationID `json:"correlationId"`
		Timestamp     time.Time     `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	e.Type = head.EventType
	e.CorrelationID = head.CorrelationID
	e.Timestamp = head.Timestamp

	switch head.EventType {
	case EventInteraction:
		var in Interaction
		if err := json.Unmarshal(data, &in); err != nil {
			return fmt.Errorf("unmarshal interaction: %w", err)
		}
		e.Interaction = &in
	case EventCompletion:
		var co Completion
		if err := json.Unmarshal(data, &co); err != nil {
			return fmt.Errorf("unmarshal completion: %w", err)
		}
		e.Completion = &co
	default:
		return fmt.Errorf("unmarshal event: unknown type %q", head.EventType)
	}
	return nil
}
