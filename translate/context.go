package translate

import (
	"log/slog"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// Context is the mutable state shared by the steps of one Translator.
type Context struct {
	Stream  *StreamingState
	Tools   *ToolState
	Predict *PredictiveState

	threadID string
	runID    string
	logger   *slog.Logger
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithRun records the thread and run the chunk belongs to.
func WithRun(threadID, runID string) ContextOption {
	return func(c *Context) {
		c.threadID = threadID
		c.runID = runID
	}
}

// WithFrontendTools declares the client-side tool names for the chunk.
func WithFrontendTools(names ...string) ContextOption {
	return func(c *Context) {
		for _, n := range names {
			c.Tools.frontend[n] = true
		}
	}
}

// WithPredictState installs predictive-state mappings.
func WithPredictState(mappings ...PredictStateMapping) ContextOption {
	return func(c *Context) {
		c.Predict = newPredictiveState(mappings)
	}
}

// WithLogger sets the logger steps use for warnings.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *Context) {
		c.logger = logger
	}
}

// NewContext creates a fresh translation context.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		Stream:  &StreamingState{},
		Tools:   newToolState(),
		Predict: newPredictiveState(nil),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ThreadID returns the thread the chunk belongs to.
func (c *Context) ThreadID() string { return c.threadID }

// RunID returns the run the chunk belongs to.
func (c *Context) RunID() string { return c.runID }

// Logger returns the context's logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// CloseStream ends the open text message, if any.
func (c *Context) CloseStream() []events.Event {
	if ev := c.Stream.End(); ev != nil {
		return []events.Event{ev}
	}
	return nil
}
