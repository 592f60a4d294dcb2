package runner

import (
	"context"
	"iter"

	"github.com/spetersoncode/bridge"
	"github.com/spetersoncode/bridge/chunk"
	"github.com/spetersoncode/bridge/translate"
)

// Backend executes one chunk against an agent framework and supplies the
// translation steps for the raw events it produces.
type Backend[E any] interface {
	// Run starts the backend for one chunk. Implementations must stop
	// producing events when ctx is cancelled or when the consumer stops
	// iterating.
	Run(ctx context.Context, inv *Invocation) iter.Seq2[E, error]

	// Steps returns the ordered translation steps for E.
	Steps() []translate.Step[E]
}

// Invocation is the input for one backend execution.
type Invocation struct {
	UserID    string
	AppName   string
	SessionID string
	ThreadID  string
	RunID     string

	// ToolResults holds accepted client tool results, in message order.
	ToolResults []chunk.ToolResult
	// Prompt is the latest user message of the chunk, if any.
	Prompt *bridge.Message

	// Tools are the client-declared tools for the run.
	Tools []bridge.Tool
	// State is the session state at the start of the chunk.
	State map[string]any
	// Context is the client-supplied context list.
	Context []any
}

// IsEmpty reports whether there is nothing to send to the backend.
func (inv *Invocation) IsEmpty() bool {
	return len(inv.ToolResults) == 0 && inv.Prompt == nil
}
