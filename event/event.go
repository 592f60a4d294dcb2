// Package event defines the canonical AG-UI event vocabulary used by the
// bridge. Event values are the AG-UI Go SDK's own types; this package adds
// the closed set of kinds the bridge emits, grouped constructors for whole
// lifecycles, JSON Patch helpers and a sequence validator.
package event

import (
	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// Run lifecycle
const (
	RunStarted  = events.EventTypeRunStarted
	RunFinished = events.EventTypeRunFinished
	RunError    = events.EventTypeRunError
)

// Step lifecycle
const (
	StepStarted  = events.EventTypeStepStarted
	StepFinished = events.EventTypeStepFinished
)

// Text message lifecycle
const (
	TextMessageStart   = events.EventTypeTextMessageStart
	TextMessageContent = events.EventTypeTextMessageContent
	TextMessageEnd     = events.EventTypeTextMessageEnd
)

// Tool call lifecycle
const (
	ToolCallStart  = events.EventTypeToolCallStart
	ToolCallArgs   = events.EventTypeToolCallArgs
	ToolCallEnd    = events.EventTypeToolCallEnd
	ToolCallResult = events.EventTypeToolCallResult
)

// State and escape hatches
const (
	StateSnapshot = events.EventTypeStateSnapshot
	StateDelta    = events.EventTypeStateDelta
	Custom        = events.EventTypeCustom
	Raw           = events.EventTypeRaw
)

// RoleAssistant is the role carried by every text message the bridge streams.
const RoleAssistant = "assistant"

// PredictStateName is the CUSTOM event name for predictive state hints.
const PredictStateName = "PredictState"

var kinds = []events.EventType{
	RunStarted, RunFinished, RunError,
	StepStarted, StepFinished,
	TextMessageStart, TextMessageContent, TextMessageEnd,
	ToolCallStart, ToolCallArgs, ToolCallEnd, ToolCallResult,
	StateSnapshot, StateDelta,
	Custom, Raw,
}

// Kinds returns the sixteen canonical event kinds.
func Kinds() []events.EventType {
	out := make([]events.EventType, len(kinds))
	copy(out, kinds)
	return out
}

// IsCanonical reports whether t is one of the canonical kinds.
func IsCanonical(t events.EventType) bool {
	for _, k := range kinds {
		if k == t {
			return true
		}
	}
	return false
}

// IsTerminal reports whether t closes a run.
func IsTerminal(t events.EventType) bool {
	return t == RunFinished || t == RunError
}

// NewRunError creates a RUN_ERROR event. Empty code and runID are omitted.
func NewRunError(message, code, runID string) events.Event {
	var opts []events.RunErrorOption
	if code != "" {
		opts = append(opts, events.WithErrorCode(code))
	}
	if runID != "" {
		opts = append(opts, events.WithRunID(runID))
	}
	return events.NewRunErrorEvent(message, opts...)
}

// TextMessage returns a complete START/CONTENT/END triple for a message
// that was not streamed.
func TextMessage(messageID, text string) []events.Event {
	return []events.Event{
		events.NewTextMessageStartEvent(messageID, events.WithRole(RoleAssistant)),
		events.NewTextMessageContentEvent(messageID, text),
		events.NewTextMessageEndEvent(messageID),
	}
}

// ToolCall returns a START/ARGS/END triple. ARGS is omitted when args is empty.
func ToolCall(toolCallID, name, args, parentMessageID string) []events.Event {
	var opts []events.ToolCallStartOption
	if parentMessageID != "" {
		opts = append(opts, events.WithParentMessageID(parentMessageID))
	}
	out := []events.Event{events.NewToolCallStartEvent(toolCallID, name, opts...)}
	if args != "" {
		out = append(out, events.NewToolCallArgsEvent(toolCallID, args))
	}
	return append(out, events.NewToolCallEndEvent(toolCallID))
}

// PredictState creates the CUSTOM hint telling the client which state keys
// a tool's arguments will populate.
func PredictState(payload []map[string]any) events.Event {
	return events.NewCustomEvent(PredictStateName, events.WithValue(payload))
}

// Types returns the type of each event, in order.
func Types(evs []events.Event) []events.EventType {
	out := make([]events.EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type()
	}
	return out
}
