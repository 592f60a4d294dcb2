package runner

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/spetersoncode/bridge"
	"github.com/spetersoncode/bridge/translate"
)

// DefaultAppName is the app name used when no AppNameFunc is configured.
const DefaultAppName = "agui"

// MarkPolicy decides when a chunk's message ids are recorded as processed.
type MarkPolicy int

const (
	// MarkAfterExecution records ids only after the chunk's backend
	// execution and translation complete. A failed chunk is retried when
	// the client resubmits the history.
	MarkAfterExecution MarkPolicy = iota

	// MarkBeforeExecution records ids before the backend is invoked. A
	// chunk that fails is not retried.
	MarkBeforeExecution
)

// String returns the policy name.
func (p MarkPolicy) String() string {
	if p == MarkBeforeExecution {
		return "before"
	}
	return "after"
}

// ParseMarkPolicy parses "after" or "before".
func ParseMarkPolicy(s string) (MarkPolicy, bool) {
	switch s {
	case "", "after":
		return MarkAfterExecution, true
	case "before":
		return MarkBeforeExecution, true
	}
	return MarkAfterExecution, false
}

type config struct {
	userID        bridge.UserIDFunc
	appName       bridge.AppNameFunc
	predict       []translate.PredictStateMapping
	markPolicy    MarkPolicy
	runTimeout    time.Duration
	tracer        trace.Tracer
	logger        *slog.Logger
	validate      bool
	chunkSteps    bool
	stateSnapshot bool
}

func defaultConfig() config {
	return config{
		userID:  bridge.DefaultUserID,
		appName: bridge.StaticAppName(DefaultAppName),
		tracer:  noop.NewTracerProvider().Tracer(instrumentationName),
		logger:  slog.Default(),
	}
}

// Option configures an Orchestrator.
type Option func(*config)

// WithUserID sets how the session user id is derived from a request.
func WithUserID(fn bridge.UserIDFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.userID = fn
		}
	}
}

// WithAppName sets how the session app name is derived from a request.
func WithAppName(fn bridge.AppNameFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.appName = fn
		}
	}
}

// WithPredictState installs predictive-state mappings for every chunk.
func WithPredictState(mappings ...translate.PredictStateMapping) Option {
	return func(c *config) {
		c.predict = append(c.predict, mappings...)
	}
}

// WithMarkPolicy sets when chunk messages are marked processed.
func WithMarkPolicy(p MarkPolicy) Option {
	return func(c *config) {
		c.markPolicy = p
	}
}

// WithRunTimeout bounds the total backend time of a run. Zero means no limit.
func WithRunTimeout(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.runTimeout = d
		}
	}
}

// WithTracerProvider enables run and chunk spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		if tp != nil {
			c.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithValidation checks every emitted event against the protocol's
// ordering rules and logs violations.
func WithValidation(enabled bool) Option {
	return func(c *config) {
		c.validate = enabled
	}
}

// WithChunkSteps brackets each executed chunk with STEP_STARTED and
// STEP_FINISHED events.
func WithChunkSteps(enabled bool) Option {
	return func(c *config) {
		c.chunkSteps = enabled
	}
}

// WithStateSnapshot emits a STATE_SNAPSHOT of the session state before
// RUN_FINISHED.
func WithStateSnapshot(enabled bool) Option {
	return func(c *config) {
		c.stateSnapshot = enabled
	}
}
