package bridge

import (
	"encoding/json"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// RunInput is the run request as it arrives on the wire.
type RunInput struct {
	ThreadID       string           `json:"threadId"`
	RunID          string           `json:"runId"`
	Messages       []events.Message `json:"messages"`
	Tools          []any            `json:"tools,omitempty"`
	Context        []any            `json:"context,omitempty"`
	State          any              `json:"state,omitempty"`
	ForwardedProps any              `json:"forwardedProps,omitempty"`
}

// PreparedInput is a validated run request ready for the orchestrator.
type PreparedInput struct {
	ThreadID       string
	RunID          string
	Messages       []Message
	Tools          []Tool
	ToolNames      []string
	Context        []any
	State          any
	ForwardedProps any
}

// Prepare validates the request and converts it to bridge types.
// A missing run id is generated; a missing thread id or an empty history
// is a validation error.
func (r *RunInput) Prepare() (*PreparedInput, error) {
	if r.ThreadID == "" {
		return nil, NewValidationError("invalid run input", ErrMissingThreadID)
	}
	if len(r.Messages) == 0 {
		return nil, NewValidationError("invalid run input", ErrNoMessages)
	}

	result := &PreparedInput{
		ThreadID:       r.ThreadID,
		RunID:          r.RunID,
		Messages:       FromWireMessages(r.Messages),
		Context:        r.Context,
		State:          r.State,
		ForwardedProps: r.ForwardedProps,
	}
	if result.RunID == "" {
		result.RunID = events.GenerateRunID()
	}

	if len(r.Tools) > 0 {
		tools, err := ParseTools(r.Tools)
		if err != nil {
			return nil, NewValidationError("invalid tools", err)
		}
		result.Tools = tools
		result.ToolNames = ToolNames(tools)
	}

	return result, nil
}

// HasTool reports whether the client declared a tool with the given name.
func (p *PreparedInput) HasTool(name string) bool {
	for _, n := range p.ToolNames {
		if n == name {
			return true
		}
	}
	return false
}

// DecodeState decodes the raw state into a typed struct.
// Returns the zero value of T if State is nil.
func DecodeState[T any](input *PreparedInput) (T, error) {
	var result T
	if input.State == nil {
		return result, nil
	}

	data, err := json.Marshal(input.State)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, err
	}

	return result, nil
}

// UserIDFunc derives the session user id for a run.
type UserIDFunc func(*PreparedInput) string

// AppNameFunc derives the session app name for a run.
type AppNameFunc func(*PreparedInput) string

// DefaultUserID uses forwardedProps.userId when the client supplies a
// non-empty string there, and otherwise scopes the user to the thread.
func DefaultUserID(input *PreparedInput) string {
	if props, ok := input.ForwardedProps.(map[string]any); ok {
		if id, ok := props["userId"].(string); ok && id != "" {
			return id
		}
	}
	return "thread_user_" + input.ThreadID
}

// StaticAppName returns an AppNameFunc that always yields name.
func StaticAppName(name string) AppNameFunc {
	return func(*PreparedInput) string { return name }
}
