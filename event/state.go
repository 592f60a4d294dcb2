package event

import (
	"encoding/json"
	"sync"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// State is a client-side replica of shared agent state, kept current by
// feeding it STATE_SNAPSHOT and STATE_DELTA events.
type State struct {
	mu      sync.RWMutex
	state   map[string]any
	changed bool
}

// NewState creates a replica seeded from initial, which may be any value
// that marshals to a JSON object. A nil or non-object initial value yields
// an empty state.
func NewState(initial any) *State {
	s := &State{state: make(map[string]any)}
	if initial == nil {
		return s
	}
	if m, ok := initial.(map[string]any); ok {
		s.state = cloneMap(m)
		return s
	}
	data, err := json.Marshal(initial)
	if err == nil {
		var m map[string]any
		if json.Unmarshal(data, &m) == nil && m != nil {
			s.state = m
		}
	}
	return s
}

// Get returns a deep copy of the current state.
func (s *State) Get() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMap(s.state)
}

// Changed reports whether any event has modified the replica.
func (s *State) Changed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// Observe applies ev if it is a state event and ignores it otherwise.
// A delta that fails to apply leaves the replica unchanged.
func (s *State) Observe(ev events.Event) error {
	switch ev.Type() {
	case StateSnapshot, StateDelta:
	default:
		return nil
	}

	f, err := Inspect(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if f.Type == StateSnapshot {
		snap, err := f.StateSnapshot()
		if err != nil {
			return err
		}
		if snap == nil {
			snap = make(map[string]any)
		}
		s.state = snap
		s.changed = true
		return nil
	}

	ops, err := f.Patches()
	if err != nil {
		return err
	}
	next, err := ApplyPatch(cloneMap(s.state), ops)
	if err != nil {
		return err
	}
	s.state = next
	s.changed = true
	return nil
}

func cloneMap(m map[string]any) map[string]any {
	data, err := json.Marshal(m)
	if err != nil {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	out := make(map[string]any, len(m))
	_ = json.Unmarshal(data, &out)
	return out
}
