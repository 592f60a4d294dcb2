package adk

import (
	"encoding/json"
	"fmt"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/spetersoncode/bridge"
	"github.com/spetersoncode/bridge/event"
	"github.com/spetersoncode/bridge/translate"
)

// Step is a translation step over ADK raw events.
type Step = translate.Step[*Event]

// CustomMetadataName is the CUSTOM event name used for backend metadata.
const CustomMetadataName = "adk_metadata"

// StepOption configures the step set returned by Steps.
type StepOption func(*stepConfig)

type stepConfig struct {
	raw bool
}

// WithRawPassthrough emits a RAW event for raw events that carry nothing
// the other steps translate.
func WithRawPassthrough() StepOption {
	return func(c *stepConfig) { c.raw = true }
}

// Steps returns the ordered step set for ADK raw events.
func Steps(opts ...StepOption) []Step {
	var cfg stepConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	steps := []Step{
		LongRunningStep{},
		TextStreamStep{},
		ToolCallRequestStep{},
		ToolCallResponseStep{},
		StateDeltaStep{},
		CustomDataStep{},
	}
	if cfg.raw {
		steps = append(steps, RawStep{})
	}
	return steps
}

// LongRunningStep registers the event's long-running tool ids before any
// other step looks at its function calls.
type LongRunningStep struct{}

// Translate implements Step.
func (LongRunningStep) Translate(raw *Event, tc *translate.Context) ([]events.Event, error) {
	tc.Tools.AddLongRunning(raw.LongRunningToolIDs...)
	return nil, nil
}

// TextStreamStep streams model text as a single open message per turn and
// drops final responses that repeat what was already streamed.
type TextStreamStep struct{}

// Translate implements Step.
func (TextStreamStep) Translate(raw *Event, tc *translate.Context) ([]events.Event, error) {
	if raw.Author == AuthorUser {
		return nil, nil
	}

	text := raw.Text()
	final := raw.IsFinalResponse()
	if text == "" && !final {
		return nil, nil
	}

	if final {
		if tc.Stream.Active() {
			return tc.CloseStream(), nil
		}
		if text == "" {
			return nil, nil
		}
		if tc.Stream.IsDuplicate(text) {
			tc.Stream.ResetHistory()
			return nil, nil
		}
		return event.TextMessage(events.GenerateMessageID(), text), nil
	}

	shouldEnd := (raw.TurnComplete && !raw.Partial) ||
		(raw.FinishReason != "" && tc.Stream.Active())

	var out []events.Event
	streaming := tc.Stream.Active()
	if !streaming {
		out = append(out, tc.Stream.Start())
	}
	if text != "" && (!streaming || raw.Partial) {
		out = append(out, tc.Stream.Append(text))
	}
	if shouldEnd {
		out = append(out, tc.CloseStream()...)
	}
	return out, nil
}

// ToolCallRequestStep emits the lifecycle of every function call in the
// event, closing any open text message first.
type ToolCallRequestStep struct{}

// Translate implements Step.
func (ToolCallRequestStep) Translate(raw *Event, tc *translate.Context) ([]events.Event, error) {
	calls := raw.FunctionCalls()
	if len(calls) == 0 {
		return nil, nil
	}

	out := tc.CloseStream()
	for _, call := range calls {
		evs, err := translateCall(raw, call, tc)
		out = append(out, evs...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func translateCall(raw *Event, call *genai.FunctionCall, tc *translate.Context) ([]events.Event, error) {
	if call.Name == "" {
		return nil, bridge.NewTranslationError(fmt.Sprintf("function call %q", call.ID), bridge.ErrMissingToolName)
	}

	id := call.ID
	if id == "" {
		id = uuid.NewString()
	}

	if !tc.Tools.Activate(id, call.Name) {
		tc.Logger().Warn("duplicate tool call id", "tool_call_id", id, "tool", call.Name)
	}
	defer tc.Tools.Deactivate(id)

	if tc.Tools.IsLongRunning(id) || tc.Tools.IsFrontendTool(call.Name) {
		tc.Tools.MarkClientCall(id)
	}

	var out []events.Event
	if tc.Predict.HasConfig(call.Name) {
		tc.Tools.AddPredictive(id)
		if !tc.Predict.HasEmitted(call.Name) {
			tc.Predict.MarkEmitted(call.Name)
			out = append(out, event.PredictState(tc.Predict.Payloads(call.Name)))
		}
	}

	out = append(out, events.NewToolCallStartEvent(id, call.Name))

	if fragments, ok := raw.ArgumentFragments[id]; ok {
		for _, f := range fragments {
			out = append(out, events.NewToolCallArgsEvent(id, f))
		}
	} else if call.Args != nil {
		args, err := json.Marshal(call.Args)
		if err != nil {
			out = append(out, events.NewToolCallEndEvent(id))
			return out, bridge.NewTranslationError(fmt.Sprintf("serialize arguments of %s", call.Name), err)
		}
		out = append(out, events.NewToolCallArgsEvent(id, string(args)))
	}

	out = append(out, events.NewToolCallEndEvent(id))

	if tc.Predict.ShouldConfirm(call.Name) && !tc.Predict.HasConfirmed(call.Name) {
		tc.Predict.MarkConfirmed(call.Name)
		tc.Tools.Defer(event.ToolCall(uuid.NewString(), translate.ConfirmToolName, "{}", "")...)
	}
	return out, nil
}

// ToolCallResponseStep emits TOOL_CALL_RESULT for backend-executed tools.
// Results of client-executed and predictive-state tools are suppressed.
type ToolCallResponseStep struct{}

// Translate implements Step.
func (ToolCallResponseStep) Translate(raw *Event, tc *translate.Context) ([]events.Event, error) {
	var out []events.Event
	for _, resp := range raw.FunctionResponses() {
		if resp.ID == "" {
			return out, bridge.NewTranslationError(
				fmt.Sprintf("function response for %s", resp.Name), bridge.ErrUnknownToolResult)
		}
		if tc.Tools.IsLongRunning(resp.ID) || tc.Tools.IsFrontendTool(resp.Name) || tc.Tools.IsPredictive(resp.ID) {
			continue
		}
		content, err := json.Marshal(resp.Response)
		if err != nil {
			return out, bridge.NewTranslationError(fmt.Sprintf("serialize result of %s", resp.Name), err)
		}
		out = append(out, events.NewToolCallResultEvent(events.GenerateMessageID(), resp.ID, string(content)))
	}
	return out, nil
}

// StateDeltaStep emits one add operation per changed state key.
type StateDeltaStep struct{}

// Translate implements Step.
func (StateDeltaStep) Translate(raw *Event, _ *translate.Context) ([]events.Event, error) {
	if ev := event.NewStateDelta(raw.StateDelta); ev != nil {
		return []events.Event{ev}, nil
	}
	return nil, nil
}

// CustomDataStep forwards backend metadata as a CUSTOM event.
type CustomDataStep struct{}

// Translate implements Step.
func (CustomDataStep) Translate(raw *Event, _ *translate.Context) ([]events.Event, error) {
	if len(raw.CustomData) == 0 {
		return nil, nil
	}
	return []events.Event{events.NewCustomEvent(CustomMetadataName, events.WithValue(raw.CustomData))}, nil
}

// RawStep wraps otherwise untranslatable events in a RAW event.
type RawStep struct{}

// Translate implements Step.
func (RawStep) Translate(raw *Event, tc *translate.Context) ([]events.Event, error) {
	if !raw.IsEmpty() {
		return nil, nil
	}
	tc.Logger().Debug("untranslated backend event", "event_id", raw.ID, "author", raw.Author)
	return []events.Event{events.NewRawEvent(raw, events.WithSource("adk"))}, nil
}
