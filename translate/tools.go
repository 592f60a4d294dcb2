package translate

import (
	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// ToolState tracks tool calls seen while translating one chunk.
type ToolState struct {
	active      map[string]string
	longRunning map[string]bool
	predictive  map[string]bool
	frontend    map[string]bool
	clientCalls []string
	deferred    []events.Event
}

func newToolState() *ToolState {
	return &ToolState{
		active:      make(map[string]string),
		longRunning: make(map[string]bool),
		predictive:  make(map[string]bool),
		frontend:    make(map[string]bool),
	}
}

// Activate registers a tool call as in flight. It reports false if the id
// was already active.
func (t *ToolState) Activate(id, name string) bool {
	if _, ok := t.active[id]; ok {
		return false
	}
	t.active[id] = name
	return true
}

// Deactivate removes a tool call from the active set.
func (t *ToolState) Deactivate(id string) {
	delete(t.active, id)
}

// IsActive reports whether id is in flight.
func (t *ToolState) IsActive(id string) bool {
	_, ok := t.active[id]
	return ok
}

// Name returns the tool name of an active call.
func (t *ToolState) Name(id string) (string, bool) {
	name, ok := t.active[id]
	return name, ok
}

// AddLongRunning marks tool call ids as executed by the client.
func (t *ToolState) AddLongRunning(ids ...string) {
	for _, id := range ids {
		t.longRunning[id] = true
	}
}

// IsLongRunning reports whether the call with id runs on the client.
func (t *ToolState) IsLongRunning(id string) bool {
	return t.longRunning[id]
}

// AddPredictive marks a tool call as existing only to drive predictive state.
func (t *ToolState) AddPredictive(id string) {
	t.predictive[id] = true
}

// IsPredictive reports whether the call with id is predictive-state only.
func (t *ToolState) IsPredictive(id string) bool {
	return t.predictive[id]
}

// IsFrontendTool reports whether the client declared a tool called name.
func (t *ToolState) IsFrontendTool(name string) bool {
	return t.frontend[name]
}

// MarkClientCall records a call the client is expected to execute and
// answer with a tool message in a later run.
func (t *ToolState) MarkClientCall(id string) {
	for _, existing := range t.clientCalls {
		if existing == id {
			return
		}
	}
	t.clientCalls = append(t.clientCalls, id)
}

// ClientCalls returns the ids recorded with MarkClientCall, in order.
func (t *ToolState) ClientCalls() []string {
	out := make([]string, len(t.clientCalls))
	copy(out, t.clientCalls)
	return out
}

// Defer queues events to be emitted after the raw stream completes.
func (t *ToolState) Defer(evs ...events.Event) {
	t.deferred = append(t.deferred, evs...)
}

// DrainDeferred returns and clears the deferred events.
func (t *ToolState) DrainDeferred() []events.Event {
	out := t.deferred
	t.deferred = nil
	return out
}
