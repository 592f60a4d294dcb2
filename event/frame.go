package event

import (
	"encoding/json"
	"fmt"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// Frame is the decoded wire form of any canonical event. Fields that do
// not apply to an event's kind are left empty.
type Frame struct {
	Type            events.EventType `json:"type"`
	ThreadID        string           `json:"threadId,omitempty"`
	RunID           string           `json:"runId,omitempty"`
	MessageID       string           `json:"messageId,omitempty"`
	Role            string           `json:"role,omitempty"`
	ToolCallID      string           `json:"toolCallId,omitempty"`
	ToolCallName    string           `json:"toolCallName,omitempty"`
	ParentMessageID string           `json:"parentMessageId,omitempty"`
	Content         string           `json:"content,omitempty"`
	StepName        string           `json:"stepName,omitempty"`
	Name            string           `json:"name,omitempty"`
	Message         string           `json:"message,omitempty"`
	Code            string           `json:"code,omitempty"`
	Delta           json.RawMessage  `json:"delta,omitempty"`
	Snapshot        json.RawMessage  `json:"snapshot,omitempty"`
	Value           json.RawMessage  `json:"value,omitempty"`
}

// Inspect serializes ev and decodes it into a Frame.
func Inspect(ev events.Event) (Frame, error) {
	var f Frame
	data, err := ev.ToJSON()
	if err != nil {
		return f, fmt.Errorf("serialize %s: %w", ev.Type(), err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("decode %s: %w", ev.Type(), err)
	}
	return f, nil
}

// Text returns the string delta of a TEXT_MESSAGE_CONTENT or TOOL_CALL_ARGS frame.
func (f Frame) Text() string {
	var s string
	if len(f.Delta) == 0 || json.Unmarshal(f.Delta, &s) != nil {
		return ""
	}
	return s
}

// Patches returns the operations of a STATE_DELTA frame.
func (f Frame) Patches() ([]events.JSONPatchOperation, error) {
	var ops []events.JSONPatchOperation
	if len(f.Delta) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(f.Delta, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// StateSnapshot returns the snapshot of a STATE_SNAPSHOT frame as a map.
func (f Frame) StateSnapshot() (map[string]any, error) {
	var m map[string]any
	if len(f.Snapshot) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(f.Snapshot, &m); err != nil {
		return nil, err
	}
	return m, nil
}
