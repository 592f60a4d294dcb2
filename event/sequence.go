package event

import (
	"errors"
	"fmt"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// ErrSequence is wrapped by every violation reported by Sequence.
var ErrSequence = errors.New("invalid event sequence")

// Sequence checks a run's event stream against the protocol's ordering
// rules: one RUN_STARTED first, exactly one terminal event last, and
// START/END pairing for text messages and tool calls with no CONTENT or
// ARGS outside an open lifecycle. A tool call may not start while a text
// message is open.
type Sequence struct {
	started    bool
	terminated bool

	openMessages map[string]bool
	doneMessages map[string]bool
	openTools    map[string]bool
	doneTools    map[string]bool
}

// NewSequence creates an empty validator.
func NewSequence() *Sequence {
	return &Sequence{
		openMessages: make(map[string]bool),
		doneMessages: make(map[string]bool),
		openTools:    make(map[string]bool),
		doneTools:    make(map[string]bool),
	}
}

// Observe checks the next event.
func (s *Sequence) Observe(ev events.Event) error {
	f, err := Inspect(ev)
	if err != nil {
		return err
	}
	return s.observe(f)
}

func (s *Sequence) observe(f Frame) error {
	if s.terminated {
		return violation("%s after run terminated", f.Type)
	}
	if !s.started {
		if f.Type != RunStarted {
			return violation("first event is %s, want %s", f.Type, RunStarted)
		}
		s.started = true
		return nil
	}

	switch f.Type {
	case RunStarted:
		return violation("duplicate %s", RunStarted)

	case RunFinished, RunError:
		if len(s.openMessages) > 0 || len(s.openTools) > 0 {
			return violation("%s with %d open messages and %d open tool calls",
				f.Type, len(s.openMessages), len(s.openTools))
		}
		s.terminated = true

	case TextMessageStart:
		if s.openMessages[f.MessageID] || s.doneMessages[f.MessageID] {
			return violation("message %q started twice", f.MessageID)
		}
		s.openMessages[f.MessageID] = true

	case TextMessageContent:
		if !s.openMessages[f.MessageID] {
			return violation("content for message %q outside its lifecycle", f.MessageID)
		}

	case TextMessageEnd:
		if !s.openMessages[f.MessageID] {
			return violation("end for message %q that is not open", f.MessageID)
		}
		delete(s.openMessages, f.MessageID)
		s.doneMessages[f.MessageID] = true

	case ToolCallStart:
		if len(s.openMessages) > 0 {
			return violation("tool call %q started while a text message is open", f.ToolCallID)
		}
		if s.openTools[f.ToolCallID] || s.doneTools[f.ToolCallID] {
			return violation("tool call %q started twice", f.ToolCallID)
		}
		s.openTools[f.ToolCallID] = true

	case ToolCallArgs:
		if !s.openTools[f.ToolCallID] {
			return violation("args for tool call %q outside its lifecycle", f.ToolCallID)
		}

	case ToolCallEnd:
		if !s.openTools[f.ToolCallID] {
			return violation("end for tool call %q that is not open", f.ToolCallID)
		}
		delete(s.openTools, f.ToolCallID)
		s.doneTools[f.ToolCallID] = true

	case ToolCallResult:
		if s.openTools[f.ToolCallID] {
			return violation("result for tool call %q before its end", f.ToolCallID)
		}

	default:
		if !IsCanonical(f.Type) {
			return violation("unknown event type %q", f.Type)
		}
	}
	return nil
}

// Close verifies that the run was terminated.
func (s *Sequence) Close() error {
	if !s.started {
		return violation("no events")
	}
	if !s.terminated {
		return violation("run not terminated")
	}
	return nil
}

// Validate checks a complete run.
func Validate(evs []events.Event) error {
	s := NewSequence()
	for i, ev := range evs {
		if err := s.Observe(ev); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return s.Close()
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSequence, fmt.Sprintf(format, args...))
}
