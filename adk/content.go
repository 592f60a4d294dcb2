package adk

import (
	"encoding/json"

	"google.golang.org/genai"

	"github.com/spetersoncode/bridge"
	"github.com/spetersoncode/bridge/chunk"
)

// BuildContent builds the user turn for one chunk: a function-response part
// per accepted tool result, then the prompt text. It returns nil when there
// is nothing to send.
func BuildContent(results []chunk.ToolResult, prompt *bridge.Message) *genai.Content {
	parts := make([]*genai.Part, 0, len(results)+1)
	for _, r := range results {
		p := genai.NewPartFromFunctionResponse(r.ToolName, toolResponse(r.Message.Text()))
		p.FunctionResponse.ID = r.Message.ToolCallID
		parts = append(parts, p)
	}
	if prompt != nil && prompt.Text() != "" {
		parts = append(parts, genai.NewPartFromText(prompt.Text()))
	}
	if len(parts) == 0 {
		return nil
	}
	return genai.NewContentFromParts(parts, genai.RoleUser)
}

// toolResponse decodes a tool message into a function response. JSON
// objects are used as-is; anything else is wrapped under "output".
func toolResponse(content string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj
	}
	var v any
	if err := json.Unmarshal([]byte(content), &v); err == nil {
		return map[string]any{"output": v}
	}
	return map[string]any{"output": content}
}
