package bridge

import "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	RoleDeveloper Role = "developer"
)

// Message is a conversation message as the client sent it.
type Message struct {
	// ID is the client-assigned identifier. Messages without an id can be
	// chunked and executed but are never recorded as processed.
	ID      string
	Role    Role
	Content *string
	// Name is the tool name on tool messages when the client supplies it.
	Name string
	// ToolCalls are the calls requested by an assistant message.
	ToolCalls []ToolCall
	// ToolCallID links a tool message to the call it answers.
	ToolCallID string
}

// ToolCall is a tool invocation recorded on an assistant message.
type ToolCall struct {
	ID       string
	Type     string
	Function Function
}

// Function holds the name and JSON-encoded arguments of a tool call.
type Function struct {
	Name      string
	Arguments string
}

// Text returns the message content, or "" when absent.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// IsTool reports whether the message is a tool result.
func (m Message) IsTool() bool {
	return m.Role == RoleTool
}

// FromWireMessages converts protocol messages to bridge messages.
func FromWireMessages(msgs []events.Message) []Message {
	result := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, FromWireMessage(msg))
	}
	return result
}

// FromWireMessage converts a single protocol message.
func FromWireMessage(msg events.Message) Message {
	m := Message{
		ID:      msg.ID,
		Role:    toRole(msg.Role),
		Content: msg.Content,
	}

	if msg.Name != nil {
		m.Name = *msg.Name
	}
	if msg.ToolCallID != nil {
		m.ToolCallID = *msg.ToolCallID
	}

	if len(msg.ToolCalls) > 0 {
		m.ToolCalls = make([]ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			m.ToolCalls[i] = ToolCall{
				ID:   tc.ID,
				Type: tc.Type,
				Function: Function{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}
		}
	}

	return m
}

// ToWireMessage converts a bridge message back to its protocol form.
func ToWireMessage(m Message) events.Message {
	msg := events.Message{
		ID:      m.ID,
		Role:    string(m.Role),
		Content: m.Content,
	}

	if m.Name != "" {
		name := m.Name
		msg.Name = &name
	}
	if m.ToolCallID != "" {
		id := m.ToolCallID
		msg.ToolCallID = &id
	}

	if len(m.ToolCalls) > 0 {
		msg.ToolCalls = make([]events.ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			typ := tc.Type
			if typ == "" {
				typ = "function"
			}
			msg.ToolCalls[i] = events.ToolCall{
				ID:   tc.ID,
				Type: typ,
				Function: events.Function{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}
		}
	}

	return msg
}

// toRole maps a wire role string; unknown roles are treated as user input.
func toRole(role string) Role {
	switch Role(role) {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool, RoleDeveloper:
		return Role(role)
	default:
		return RoleUser
	}
}
