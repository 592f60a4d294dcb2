package chunk

import "github.com/spetersoncode/bridge"

// ToolResult is a client tool result accepted for forwarding to the backend.
type ToolResult struct {
	ToolName string
	Message  bridge.Message
}

// ToolCallNames maps tool-call ids to tool names from the assistant
// messages in history. A later declaration of the same id wins.
func ToolCallNames(history []bridge.Message) map[string]string {
	names := make(map[string]string)
	for _, m := range history {
		if m.Role != bridge.RoleAssistant {
			continue
		}
		for _, tc := range m.ToolCalls {
			names[tc.ID] = tc.Function.Name
		}
	}
	return names
}

// FilterToolResults keeps the tool messages that answer a pending call and
// are not confirmation results. It returns the accepted results and the
// pending ids they consume; messages for unknown or already answered calls
// are dropped.
func FilterToolResults(toolMessages []bridge.Message, pending map[string]bool, names map[string]string) ([]ToolResult, []string) {
	var (
		results  []ToolResult
		consumed []string
	)
	seen := make(map[string]bool)
	for _, m := range toolMessages {
		id := m.ToolCallID
		if id == "" || !pending[id] || seen[id] {
			continue
		}
		name := names[id]
		if name == "" {
			name = m.Name
		}
		if name == ConfirmToolName {
			continue
		}
		seen[id] = true
		results = append(results, ToolResult{ToolName: name, Message: m})
		consumed = append(consumed, id)
	}
	return results, consumed
}

// LatestPrompt returns the most recent user, system or developer message
// with non-empty content, or nil.
func LatestPrompt(messages []bridge.Message) *bridge.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		switch m.Role {
		case bridge.RoleUser, bridge.RoleSystem, bridge.RoleDeveloper:
			if m.Text() != "" {
				return &messages[i]
			}
		}
	}
	return nil
}
