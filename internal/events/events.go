package events

import "context"

// Streams
const (
	StreamActions    = "events:actions"
	StreamGuardrails = "events:guardrails"
)

// Event types
const (
	EventActionQueued           = "action_queued"
	EventActionSuperseded       = "action_superseded"
	EventActionCommitted        = "action_committed"
	EventActionFailed           = "action_failed"
	EventGuardrailConfigUpdated = "guardrail_config_updated"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
