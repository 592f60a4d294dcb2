package translate

import (
	"strings"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// StreamingState tracks the text message currently being streamed and the
// text of the last completed stream, used to drop duplicate final responses.
type StreamingState struct {
	messageID string
	text      strings.Builder
	lastText  string
}

// Active reports whether a text message is open.
func (s *StreamingState) Active() bool {
	return s.messageID != ""
}

// MessageID returns the id of the open message, or "".
func (s *StreamingState) MessageID() string {
	return s.messageID
}

// Start opens a new message and returns its TEXT_MESSAGE_START.
func (s *StreamingState) Start() events.Event {
	s.messageID = events.GenerateMessageID()
	s.text.Reset()
	return events.NewTextMessageStartEvent(s.messageID, events.WithRole("assistant"))
}

// Append records delta as streamed and returns its TEXT_MESSAGE_CONTENT.
func (s *StreamingState) Append(delta string) events.Event {
	s.text.WriteString(delta)
	return events.NewTextMessageContentEvent(s.messageID, delta)
}

// Text returns the text streamed so far in the open message.
func (s *StreamingState) Text() string {
	return s.text.String()
}

// End closes the open message and returns its TEXT_MESSAGE_END, or nil
// when no message is open. Non-empty streamed text is remembered for
// duplicate detection.
func (s *StreamingState) End() events.Event {
	if !s.Active() {
		return nil
	}
	ev := events.NewTextMessageEndEvent(s.messageID)
	if text := s.text.String(); text != "" {
		s.lastText = text
	}
	s.messageID = ""
	s.text.Reset()
	return ev
}

// IsDuplicate reports whether text repeats the last completed stream,
// either exactly or as its tail.
func (s *StreamingState) IsDuplicate(text string) bool {
	if s.lastText == "" || text == "" {
		return false
	}
	return text == s.lastText || strings.HasSuffix(s.lastText, text)
}

// ResetHistory forgets the last completed stream.
func (s *StreamingState) ResetHistory() {
	s.lastText = ""
}
