package adk

import (
	"context"
	"iter"

	"google.golang.org/genai"

	"github.com/spetersoncode/bridge"
	"github.com/spetersoncode/bridge/runner"
	"github.com/spetersoncode/bridge/translate"
)

// RunConfig carries per-run settings to a Runner.
type RunConfig struct {
	ThreadID string
	RunID    string
	// Tools are the client-declared tools. Calls to them are executed by
	// the client and must be reported as long-running.
	Tools []bridge.Tool
	// State is the session state at the start of the chunk.
	State map[string]any
	// Context is the client-supplied context list.
	Context []any
}

// Runner produces raw events for one user turn. content is nil only when
// the caller wants the agent to continue without new input.
type Runner interface {
	Run(ctx context.Context, userID, sessionID string, content *genai.Content, cfg RunConfig) iter.Seq2[*Event, error]
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, userID, sessionID string, content *genai.Content, cfg RunConfig) iter.Seq2[*Event, error]

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, userID, sessionID string, content *genai.Content, cfg RunConfig) iter.Seq2[*Event, error] {
	return f(ctx, userID, sessionID, content, cfg)
}

// Backend adapts a Runner to the orchestrator.
type Backend struct {
	runner Runner
	steps  []Step
}

// NewBackend creates a Backend over r with the ADK step set.
func NewBackend(r Runner, opts ...StepOption) *Backend {
	return &Backend{runner: r, steps: Steps(opts...)}
}

// Run builds the chunk's content and starts the runner.
func (b *Backend) Run(ctx context.Context, inv *runner.Invocation) iter.Seq2[*Event, error] {
	content := BuildContent(inv.ToolResults, inv.Prompt)
	return b.runner.Run(ctx, inv.UserID, inv.SessionID, content, RunConfig{
		ThreadID: inv.ThreadID,
		RunID:    inv.RunID,
		Tools:    inv.Tools,
		State:    inv.State,
		Context:  inv.Context,
	})
}

// Steps returns the translation steps.
func (b *Backend) Steps() []translate.Step[*Event] {
	return b.steps
}

var _ runner.Backend[*Event] = (*Backend)(nil)
