package translate

// ConfirmToolName is the synthetic tool call a client answers to accept
// predicted state changes. Results for it are never forwarded to the backend.
const ConfirmToolName = "confirm_changes"

// PredictStateMapping declares that a tool argument populates a state key,
// so the client can render the state while the call is still streaming.
type PredictStateMapping struct {
	ToolName     string
	StateKey     string
	ToolArgument string
	// EmitConfirmTool requests a confirm_changes call after the tool call.
	EmitConfirmTool bool
}

// Payload returns the mapping as sent in the PredictState CUSTOM event.
func (m PredictStateMapping) Payload() map[string]any {
	p := map[string]any{
		"state_key": m.StateKey,
		"tool":      m.ToolName,
	}
	if m.ToolArgument != "" {
		p["tool_argument"] = m.ToolArgument
	}
	return p
}

// PredictiveState holds the predictive-state configuration for a chunk and
// remembers which hints have already been emitted.
type PredictiveState struct {
	byTool    map[string][]PredictStateMapping
	emitted   map[string]bool
	confirmed map[string]bool
}

func newPredictiveState(config []PredictStateMapping) *PredictiveState {
	p := &PredictiveState{
		byTool:    make(map[string][]PredictStateMapping),
		emitted:   make(map[string]bool),
		confirmed: make(map[string]bool),
	}
	for _, m := range config {
		p.byTool[m.ToolName] = append(p.byTool[m.ToolName], m)
	}
	return p
}

// Mappings returns the mappings configured for tool.
func (p *PredictiveState) Mappings(tool string) []PredictStateMapping {
	return p.byTool[tool]
}

// HasConfig reports whether tool has any mapping.
func (p *PredictiveState) HasConfig(tool string) bool {
	return len(p.byTool[tool]) > 0
}

// Payloads returns the CUSTOM event payloads for tool.
func (p *PredictiveState) Payloads(tool string) []map[string]any {
	mappings := p.byTool[tool]
	out := make([]map[string]any, len(mappings))
	for i, m := range mappings {
		out[i] = m.Payload()
	}
	return out
}

// HasEmitted reports whether the PredictState hint for tool went out.
func (p *PredictiveState) HasEmitted(tool string) bool {
	return p.emitted[tool]
}

// MarkEmitted records that the PredictState hint for tool went out.
func (p *PredictiveState) MarkEmitted(tool string) {
	p.emitted[tool] = true
}

// ShouldConfirm reports whether any mapping for tool asks for a confirm call.
func (p *PredictiveState) ShouldConfirm(tool string) bool {
	for _, m := range p.byTool[tool] {
		if m.EmitConfirmTool {
			return true
		}
	}
	return false
}

// HasConfirmed reports whether a confirm call for tool was queued.
func (p *PredictiveState) HasConfirmed(tool string) bool {
	return p.confirmed[tool]
}

// MarkConfirmed records that a confirm call for tool was queued.
func (p *PredictiveState) MarkConfirmed(tool string) {
	p.confirmed[tool] = true
}
