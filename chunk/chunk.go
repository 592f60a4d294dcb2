// Package chunk splits the unseen part of a conversation history into the
// units the orchestrator executes one at a time.
package chunk

import (
	"github.com/spetersoncode/bridge"
)

// ConfirmToolName is the synthetic confirmation tool whose results are
// consumed by the client and never forwarded to the backend.
const ConfirmToolName = "confirm_changes"

// Chunk is one unit of backend execution. A tool-led chunk carries a run of
// tool results followed by the non-tool messages that came after them; a
// user-led chunk carries only non-tool messages.
type Chunk struct {
	ToolMessages       []bridge.Message
	UserSystemMessages []bridge.Message
}

// IsToolSubmission reports whether the chunk carries tool results.
func (c Chunk) IsToolSubmission() bool {
	return len(c.ToolMessages) > 0
}

// Len returns the number of messages in the chunk.
func (c Chunk) Len() int {
	return len(c.ToolMessages) + len(c.UserSystemMessages)
}

// MessageIDs returns the ids of the chunk's messages in order. Messages
// without an id are skipped.
func (c Chunk) MessageIDs() []string {
	ids := make([]string, 0, c.Len())
	for _, m := range c.ToolMessages {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	for _, m := range c.UserSystemMessages {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Kind names the chunk type for logs and traces.
func (c Chunk) Kind() string {
	if c.IsToolSubmission() {
		return "tool"
	}
	return "user"
}

// Unseen returns the messages whose id is not in processed, in order.
// Messages without an id can never be recorded as processed, so they are
// dropped.
func Unseen(messages []bridge.Message, processed map[string]bool) []bridge.Message {
	out := make([]bridge.Message, 0, len(messages))
	for _, m := range messages {
		if m.ID == "" || processed[m.ID] {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Split groups messages into chunks, preserving order. A leading run of
// tool messages forms a tool-led chunk together with the non-tool run that
// follows it; otherwise the leading non-tool run forms a user-led chunk.
func Split(messages []bridge.Message) []Chunk {
	var chunks []Chunk
	rest := messages
	for len(rest) > 0 {
		var c Chunk
		if rest[0].IsTool() {
			n := runLength(rest, true)
			c.ToolMessages = rest[:n]
			rest = rest[n:]
		}
		n := runLength(rest, false)
		c.UserSystemMessages = rest[:n]
		rest = rest[n:]
		chunks = append(chunks, c)
	}
	return chunks
}

// Plan returns the chunks of history not yet processed.
func Plan(history []bridge.Message, processed map[string]bool) []Chunk {
	return Split(Unseen(history, processed))
}

func runLength(messages []bridge.Message, tool bool) int {
	n := 0
	for n < len(messages) && messages[n].IsTool() == tool {
		n++
	}
	return n
}
