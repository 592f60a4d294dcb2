// Package runner drives a backend over the unseen part of a conversation
// and brackets the translated output with run lifecycle events.
//
// A run resolves the thread's session, splits the unseen messages into
// chunks and executes the chunks strictly in order. Each chunk gets a
// fresh translation context. The session records which messages were
// processed and which client tool calls await results, so a client can
// resend its whole history on every request.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spetersoncode/bridge"
	"github.com/spetersoncode/bridge/chunk"
	"github.com/spetersoncode/bridge/event"
	"github.com/spetersoncode/bridge/session"
	"github.com/spetersoncode/bridge/translate"
)

const instrumentationName = "github.com/spetersoncode/bridge/runner"

// channelSize matches the buffering of the agent event channels.
const channelSize = 100

// Orchestrator runs requests against one backend.
type Orchestrator[E any] struct {
	sessions *session.Store
	backend  Backend[E]
	cfg      config
}

// New creates an Orchestrator.
func New[E any](sessions *session.Store, backend Backend[E], opts ...Option) *Orchestrator[E] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Orchestrator[E]{sessions: sessions, backend: backend, cfg: cfg}
}

// Sessions returns the orchestrator's session store.
func (o *Orchestrator[E]) Sessions() *session.Store {
	return o.sessions
}

// Key returns the session key for a request.
func (o *Orchestrator[E]) Key(input *bridge.PreparedInput) session.Key {
	return session.Key{
		AppName:  o.cfg.appName(input),
		UserID:   o.cfg.userID(input),
		ThreadID: input.ThreadID,
	}
}

// Run executes a request and streams its events. The channel is closed
// after RUN_FINISHED or RUN_ERROR. If ctx is cancelled the backend is
// stopped and the channel is closed without further events.
func (o *Orchestrator[E]) Run(ctx context.Context, input *bridge.PreparedInput) <-chan events.Event {
	ch := make(chan events.Event, channelSize)
	go o.run(ctx, input, ch)
	return ch
}

// run is the state machine of one request:
// STARTING -> EXECUTING(chunk 1..N) -> FINISHED | ERRORED.
func (o *Orchestrator[E]) run(ctx context.Context, input *bridge.PreparedInput, ch chan<- events.Event) {
	defer close(ch)
	start := time.Now()

	log := o.cfg.logger.With("run_id", input.RunID, "thread_id", input.ThreadID)

	var seq *event.Sequence
	if o.cfg.validate {
		seq = event.NewSequence()
	}
	emitted := 0
	emit := func(ev events.Event) bool {
		if ctx.Err() != nil {
			return false
		}
		if seq != nil {
			if err := seq.Observe(ev); err != nil {
				log.Error("event sequence violation", "error", err, "event_type", ev.Type())
			}
		}
		select {
		case ch <- ev:
			emitted++
			return true
		case <-ctx.Done():
			return false
		}
	}

	runCtx, span := o.cfg.tracer.Start(ctx, "agui.run", trace.WithAttributes(
		attribute.String("agui.thread_id", input.ThreadID),
		attribute.String("agui.run_id", input.RunID),
	))
	defer span.End()
	if o.cfg.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, o.cfg.runTimeout)
		defer cancel()
	}

	if !emit(events.NewRunStartedEvent(input.ThreadID, input.RunID)) {
		return
	}

	state, err := o.execute(runCtx, input, emit, log)
	if ctx.Err() != nil {
		log.Info("run cancelled", "duration_ms", time.Since(start).Milliseconds(), "events_sent", emitted)
		span.SetStatus(codes.Error, "cancelled")
		return
	}
	if err != nil {
		code := string(bridge.KindOf(err))
		log.Error("run failed", "error", err, "code", code, "duration_ms", time.Since(start).Milliseconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		emit(event.NewRunError(err.Error(), code, input.RunID))
		o.closeSequence(seq, log)
		return
	}

	if o.cfg.stateSnapshot && state != nil {
		if !emit(events.NewStateSnapshotEvent(state.Get())) {
			return
		}
	}
	emit(events.NewRunFinishedEvent(input.ThreadID, input.RunID))
	o.closeSequence(seq, log)
	span.SetStatus(codes.Ok, "")
	log.Info("run completed", "duration_ms", time.Since(start).Milliseconds(), "events_sent", emitted)
}

func (o *Orchestrator[E]) closeSequence(seq *event.Sequence, log *slog.Logger) {
	if seq == nil {
		return
	}
	if err := seq.Close(); err != nil {
		log.Error("event sequence violation", "error", err)
	}
}

// execute resolves the session and runs every unseen chunk in order. It
// returns the run's state replica.
func (o *Orchestrator[E]) execute(ctx context.Context, input *bridge.PreparedInput, emit func(events.Event) bool, log *slog.Logger) (*event.State, error) {
	key := o.Key(input)
	initial, _ := input.State.(map[string]any)
	sess, err := o.sessions.GetOrCreate(ctx, key, initial)
	if err != nil {
		return nil, err
	}
	state := event.NewState(sess.State)

	chunks := chunk.Plan(input.Messages, sess.ProcessedSet())
	if len(chunks) == 0 {
		log.Debug("no unseen messages")
		return state, nil
	}
	log.Debug("planned chunks", "count", len(chunks), "user_id", key.UserID)

	names := chunk.ToolCallNames(input.Messages)
	for i, c := range chunks {
		if err := o.runChunk(ctx, key, input, i, c, names, state, emit, log); err != nil {
			return state, err
		}
	}
	return state, nil
}

func (o *Orchestrator[E]) runChunk(
	ctx context.Context,
	key session.Key,
	input *bridge.PreparedInput,
	index int,
	c chunk.Chunk,
	names map[string]string,
	state *event.State,
	emit func(events.Event) bool,
	log *slog.Logger,
) error {
	ctx, span := o.cfg.tracer.Start(ctx, "agui.chunk", trace.WithAttributes(
		attribute.String("agui.chunk.kind", c.Kind()),
		attribute.Int("agui.chunk.index", index),
		attribute.Int("agui.chunk.messages", c.Len()),
	))
	defer span.End()

	log = log.With("chunk", index, "chunk_kind", c.Kind())
	ids := c.MessageIDs()

	inv := &Invocation{
		UserID:    key.UserID,
		AppName:   key.AppName,
		SessionID: key.ThreadID,
		ThreadID:  input.ThreadID,
		RunID:     input.RunID,
		Prompt:    chunk.LatestPrompt(c.UserSystemMessages),
		Tools:     input.Tools,
		State:     state.Get(),
		Context:   input.Context,
	}

	var consumed []string
	if c.IsToolSubmission() {
		pending, err := o.sessions.PendingToolCallIDs(ctx, key)
		if err != nil {
			return err
		}
		inv.ToolResults, consumed = chunk.FilterToolResults(c.ToolMessages, pending, names)
		if dropped := len(c.ToolMessages) - len(inv.ToolResults); dropped > 0 {
			log.Info("dropped tool results without a pending call", "dropped", dropped)
		}
		// A tool chunk whose results were all stale is not sent, even when
		// user text trails it.
		if len(inv.ToolResults) == 0 {
			log.Debug("skipping tool chunk without pending results")
			span.SetAttributes(attribute.Bool("agui.chunk.skipped", true))
			return o.sessions.Commit(ctx, key, session.Commit{Processed: ids})
		}
	}

	if inv.IsEmpty() {
		log.Debug("skipping chunk with nothing to send")
		span.SetAttributes(attribute.Bool("agui.chunk.skipped", true))
		return o.sessions.Commit(ctx, key, session.Commit{Processed: ids})
	}

	if o.cfg.markPolicy == MarkBeforeExecution {
		if err := o.sessions.Commit(ctx, key, session.Commit{Processed: ids, ConsumePending: consumed}); err != nil {
			return err
		}
	}

	stepName := fmt.Sprintf("chunk_%d_%s", index, c.Kind())
	if o.cfg.chunkSteps && !emit(events.NewStepStartedEvent(stepName)) {
		return ctx.Err()
	}

	tc := translate.NewContext(
		translate.WithRun(input.ThreadID, input.RunID),
		translate.WithFrontendTools(input.ToolNames...),
		translate.WithPredictState(o.cfg.predict...),
		translate.WithLogger(log),
	)
	tr := translate.New(tc, o.backend.Steps()...)

	log.Debug("invoking backend", "tool_results", len(inv.ToolResults), "has_prompt", inv.Prompt != nil)
	runErr := o.stream(ctx, tr, inv, state, emit, log)
	clientCalls := tc.Tools.ClientCalls()

	if runErr != nil {
		if len(clientCalls) > 0 {
			// The client already saw these calls and will answer them.
			if err := o.sessions.AddPendingToolCallIDs(context.WithoutCancel(ctx), key, clientCalls...); err != nil {
				log.Warn("failed to record pending tool calls", "error", err)
			}
		}
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return runErr
	}

	if o.cfg.chunkSteps && !emit(events.NewStepFinishedEvent(stepName)) {
		return ctx.Err()
	}

	commit := session.Commit{AddPending: clientCalls}
	if o.cfg.markPolicy == MarkAfterExecution {
		commit.Processed = ids
		commit.ConsumePending = consumed
	}
	if err := o.sessions.Commit(ctx, key, commit); err != nil {
		return err
	}
	if state.Changed() {
		if err := o.sessions.ReplaceState(ctx, key, state.Get()); err != nil {
			return err
		}
	}
	if len(clientCalls) > 0 {
		log.Info("awaiting client tool results", "tool_call_ids", clientCalls)
	}
	return nil
}

// stream pipes the backend's raw events through the translator.
func (o *Orchestrator[E]) stream(
	ctx context.Context,
	tr *translate.Translator[E],
	inv *Invocation,
	state *event.State,
	emit func(events.Event) bool,
	log *slog.Logger,
) error {
	for ev, err := range tr.Stream(o.backend.Run(ctx, inv)) {
		if err != nil {
			return classify(err)
		}
		if err := state.Observe(ev); err != nil {
			log.Warn("failed to apply state event", "error", err, "event_type", ev.Type())
		}
		if !emit(ev) {
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return classify(err)
	}
	return nil
}

// classify gives errors without a bridge kind one: deadline errors become
// timeouts and everything else a backend failure.
func classify(err error) error {
	var be *bridge.Error
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return bridge.NewTimeoutError("run timed out", err)
	}
	return bridge.NewBackendError("backend execution failed", err)
}

// Collect drains ch and returns its events.
func Collect(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}
