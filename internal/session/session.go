// Package session defines the narrow capability boundary between the
// validation core and the remote agent transport, plus the event
// collector and send/continuation controller every stage drives
// exchanges through. The core never touches transport internals.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by SendAndWait when the remote side did not go
// idle within the deadline. The controller recovers from it locally;
// it never surfaces as a run failure.
var ErrTimeout = errors.New("session send timed out")

// EventType identifies one kind of session event.
type EventType string

const (
	EventAssistantDelta   EventType = "assistant.message_delta"
	EventAssistantMessage EventType = "assistant.message"
	EventAssistantUsage   EventType = "assistant.usage"
	EventUsageInfo        EventType = "session.usage_info"
	EventToolStart        EventType = "tool.execution_start"
	EventToolComplete     EventType = "tool.execution_complete"
	EventSessionError     EventType = "session.error"
)

// Event is one message on a session's event stream. Only the fields
// relevant to the event type are set.
type Event struct {
	Type    EventType
	Content string

	// Tool execution events.
	ToolCallID string
	ToolName   string
	Arguments  map[string]any
	Success    *bool
	Error      string

	// Usage events.
	Usage         *TurnUsage
	CurrentTokens *float64
	TokenLimit    *float64
	Quota         map[string]QuotaSnapshot
}

// Handler consumes session events. It is a pure sink: it must never
// issue commands back through the session.
type Handler func(Event)

// Config describes one session to the transport.
type Config struct {
	Model     string
	Streaming bool

	// AgentName and AgentInstructions describe the custom agent persona
	// driving this session.
	AgentName         string
	AgentInstructions string

	AvailableTools   []string
	SkillDirectories []string
	DisabledSkills   []string

	SystemMessage string
	SessionID     string
}

// Session is the only surface the core calls on an open remote session.
type Session interface {
	// SendAndWait dispatches a prompt and blocks until the session goes
	// idle or timeout expires. Returns ErrTimeout (possibly wrapped) on
	// expiry.
	SendAndWait(ctx context.Context, prompt string, timeout time.Duration) (string, error)
	// Abort requests a best-effort cancellation of the in-flight turn.
	Abort(ctx context.Context) error
	// Destroy tears the session down.
	Destroy(ctx context.Context) error
	// Subscribe registers an event handler for the live stream.
	Subscribe(h Handler)
	// Messages returns the recorded event log, oldest first.
	Messages(ctx context.Context) ([]Event, error)
}

// Factory opens sessions. Implemented by the transport adapter.
type Factory interface {
	CreateSession(ctx context.Context, cfg Config) (Session, error)
}

// IsTimeout reports whether err is a send timeout, either the transport
// sentinel or a context deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
