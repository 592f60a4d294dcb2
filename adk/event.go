// Package adk binds ADK-style agent backends to the bridge. Raw events carry
// google.golang.org/genai content; the package supplies the translation
// steps for them, a content builder for chunk input, and runners that
// produce raw events.
package adk

import (
	"strings"

	"google.golang.org/genai"
)

// AuthorUser marks events that echo user input back from the backend.
const AuthorUser = "user"

// Event is a raw backend event.
type Event struct {
	ID           string
	InvocationID string
	Author       string
	Content      *genai.Content

	// Partial is set on incremental text chunks.
	Partial bool
	// TurnComplete is set when the model finished its turn.
	TurnComplete bool
	// FinishReason is the model's stop reason, if any.
	FinishReason string

	// LongRunningToolIDs lists function-call ids the backend will not
	// resolve itself; the client executes them.
	LongRunningToolIDs []string
	// SkipSummarization forces the event to count as a final response.
	SkipSummarization bool

	// StateDelta holds state keys the backend changed.
	StateDelta map[string]any
	// CustomData carries backend metadata forwarded as a CUSTOM event.
	CustomData map[string]any

	// ArgumentFragments optionally carries streamed argument fragments per
	// function-call id. When present they replace the single serialized
	// ARGS event for that call.
	ArgumentFragments map[string][]string
}

// Text joins the text of all parts.
func (e *Event) Text() string {
	if e.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range e.Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// FunctionCalls returns the function calls in the event's parts.
func (e *Event) FunctionCalls() []*genai.FunctionCall {
	if e.Content == nil {
		return nil
	}
	var out []*genai.FunctionCall
	for _, p := range e.Content.Parts {
		if p != nil && p.FunctionCall != nil {
			out = append(out, p.FunctionCall)
		}
	}
	return out
}

// FunctionResponses returns the function responses in the event's parts.
func (e *Event) FunctionResponses() []*genai.FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var out []*genai.FunctionResponse
	for _, p := range e.Content.Parts {
		if p != nil && p.FunctionResponse != nil {
			out = append(out, p.FunctionResponse)
		}
	}
	return out
}

// IsFinalResponse reports whether the event is the agent's final answer
// for the turn rather than an intermediate chunk or tool exchange.
func (e *Event) IsFinalResponse() bool {
	if e.SkipSummarization || len(e.LongRunningToolIDs) > 0 {
		return true
	}
	return len(e.FunctionCalls()) == 0 && len(e.FunctionResponses()) == 0 && !e.Partial
}

// IsEmpty reports whether the event carries nothing translatable.
func (e *Event) IsEmpty() bool {
	return e.Text() == "" &&
		len(e.FunctionCalls()) == 0 &&
		len(e.FunctionResponses()) == 0 &&
		len(e.StateDelta) == 0 &&
		len(e.CustomData) == 0 &&
		len(e.LongRunningToolIDs) == 0
}

// TextEvent is a convenience constructor for a model text event.
func TextEvent(text string, partial bool) *Event {
	return &Event{
		Author:  "model",
		Content: genai.NewContentFromText(text, genai.RoleModel),
		Partial: partial,
	}
}

// FunctionCallEvent is a convenience constructor for a model event
// requesting the given calls.
func FunctionCallEvent(calls ...*genai.FunctionCall) *Event {
	parts := make([]*genai.Part, len(calls))
	for i, c := range calls {
		parts[i] = &genai.Part{FunctionCall: c}
	}
	return &Event{
		Author:  "model",
		Content: genai.NewContentFromParts(parts, genai.RoleModel),
	}
}

// FunctionResponseEvent is a convenience constructor for a tool event
// carrying the given responses.
func FunctionResponseEvent(responses ...*genai.FunctionResponse) *Event {
	parts := make([]*genai.Part, len(responses))
	for i, r := range responses {
		parts[i] = &genai.Part{FunctionResponse: r}
	}
	return &Event{
		Author:  "model",
		Content: genai.NewContentFromParts(parts, genai.RoleUser),
	}
}
