package translate

import (
	"iter"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// Step translates one concern of a raw event. Steps return the events they
// produced even when they also return an error, so a lifecycle a step opened
// can still be closed.
type Step[E any] interface {
	Translate(raw E, tc *Context) ([]events.Event, error)
}

// StepFunc adapts a function to the Step interface.
type StepFunc[E any] func(raw E, tc *Context) ([]events.Event, error)

// Translate calls f.
func (f StepFunc[E]) Translate(raw E, tc *Context) ([]events.Event, error) {
	return f(raw, tc)
}

// Translator runs its steps in order over each raw event of one chunk.
type Translator[E any] struct {
	steps []Step[E]
	tc    *Context
}

// New creates a translator over a fresh context.
func New[E any](tc *Context, steps ...Step[E]) *Translator[E] {
	if tc == nil {
		tc = NewContext()
	}
	return &Translator[E]{steps: steps, tc: tc}
}

// Context returns the translator's context.
func (t *Translator[E]) Context() *Context {
	return t.tc
}

// Translate runs every step on raw and concatenates their output. The
// first step error stops the pipeline; events produced up to and including
// the failing step are returned with it.
func (t *Translator[E]) Translate(raw E) ([]events.Event, error) {
	var out []events.Event
	for _, step := range t.steps {
		evs, err := step.Translate(raw, t.tc)
		out = append(out, evs...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// Finish closes an open text message and releases deferred events. Call
// it once after the raw stream ends normally.
func (t *Translator[E]) Finish() []events.Event {
	out := t.tc.CloseStream()
	return append(out, t.tc.Tools.DrainDeferred()...)
}

// Abort closes an open text message and discards deferred events. Call it
// when the raw stream fails.
func (t *Translator[E]) Abort() []events.Event {
	t.tc.Tools.DrainDeferred()
	return t.tc.CloseStream()
}

// Stream translates a raw stream lazily. On a raw or translation error the
// closing events are yielded first, then the error, and iteration stops.
func (t *Translator[E]) Stream(raw iter.Seq2[E, error]) iter.Seq2[events.Event, error] {
	return func(yield func(events.Event, error) bool) {
		for ev, err := range raw {
			if err != nil {
				for _, c := range t.Abort() {
					if !yield(c, nil) {
						return
					}
				}
				yield(nil, err)
				return
			}

			out, terr := t.Translate(ev)
			for _, e := range out {
				if !yield(e, nil) {
					return
				}
			}
			if terr != nil {
				for _, c := range t.Abort() {
					if !yield(c, nil) {
						return
					}
				}
				yield(nil, terr)
				return
			}
		}

		for _, e := range t.Finish() {
			if !yield(e, nil) {
				return
			}
		}
	}
}
