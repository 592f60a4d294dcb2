package event

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// JSON Patch operations the bridge produces and applies.
const (
	OpAdd     = "add"
	OpReplace = "replace"
	OpRemove  = "remove"
)

// Add creates an add operation.
func Add(path string, value any) events.JSONPatchOperation {
	return events.JSONPatchOperation{Op: OpAdd, Path: path, Value: value}
}

// Replace creates a replace operation.
func Replace(path string, value any) events.JSONPatchOperation {
	return events.JSONPatchOperation{Op: OpReplace, Path: path, Value: value}
}

// Remove creates a remove operation.
func Remove(path string) events.JSONPatchOperation {
	return events.JSONPatchOperation{Op: OpRemove, Path: path}
}

// KeyPath returns the JSON Pointer for a top-level state key.
func KeyPath(key string) string {
	key = strings.ReplaceAll(key, "~", "~0")
	key = strings.ReplaceAll(key, "/", "~1")
	return "/" + key
}

// DeltaFromMap builds one add operation per key, sorted by key so output
// is stable. Returns nil for an empty map.
func DeltaFromMap(delta map[string]any) []events.JSONPatchOperation {
	if len(delta) == 0 {
		return nil
	}
	keys := make([]string, 0, len(delta))
	for k := range delta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ops := make([]events.JSONPatchOperation, len(keys))
	for i, k := range keys {
		ops[i] = Add(KeyPath(k), delta[k])
	}
	return ops
}

// NewStateDelta creates a STATE_DELTA event from a key/value map, or nil
// when there is nothing to report.
func NewStateDelta(delta map[string]any) events.Event {
	ops := DeltaFromMap(delta)
	if ops == nil {
		return nil
	}
	return events.NewStateDeltaEvent(ops)
}

// ApplyPatch applies ops to state in array order and returns the result.
// Maps and slices inside state may be modified in place.
func ApplyPatch(state map[string]any, ops []events.JSONPatchOperation) (map[string]any, error) {
	if state == nil {
		state = make(map[string]any)
	}
	var doc any = state
	for i, op := range ops {
		tokens, err := parsePointer(op.Path)
		if err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
		if len(tokens) == 0 {
			if op.Op == OpRemove {
				return nil, fmt.Errorf("patch %d: cannot remove document root", i)
			}
			m, ok := op.Value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("patch %d: root value must be an object", i)
			}
			doc = m
			continue
		}
		doc, err = applyAt(doc, tokens, op)
		if err != nil {
			return nil, fmt.Errorf("patch %d (%s %s): %w", i, op.Op, op.Path, err)
		}
	}
	return doc.(map[string]any), nil
}

func parsePointer(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if path[0] != '/' {
		return nil, fmt.Errorf("invalid JSON pointer %q", path)
	}
	parts := strings.Split(path[1:], "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return parts, nil
}

// applyAt walks tokens under doc and applies op at the last one. The
// possibly reallocated container is returned so slices can be reassigned.
func applyAt(doc any, tokens []string, op events.JSONPatchOperation) (any, error) {
	tok := tokens[0]
	last := len(tokens) == 1

	switch node := doc.(type) {
	case map[string]any:
		if !last {
			child, ok := node[tok]
			if !ok {
				return nil, fmt.Errorf("path segment %q not found", tok)
			}
			updated, err := applyAt(child, tokens[1:], op)
			if err != nil {
				return nil, err
			}
			node[tok] = updated
			return node, nil
		}
		switch op.Op {
		case OpAdd:
			node[tok] = op.Value
		case OpReplace:
			if _, ok := node[tok]; !ok {
				return nil, fmt.Errorf("key %q not found", tok)
			}
			node[tok] = op.Value
		case OpRemove:
			if _, ok := node[tok]; !ok {
				return nil, fmt.Errorf("key %q not found", tok)
			}
			delete(node, tok)
		default:
			return nil, fmt.Errorf("unsupported op %q", op.Op)
		}
		return node, nil

	case []any:
		if last && op.Op == OpAdd && tok == "-" {
			return append(node, op.Value), nil
		}
		idx, err := strconv.Atoi(tok)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid array index %q", tok)
		}
		if !last {
			if idx >= len(node) {
				return nil, fmt.Errorf("array index %d out of range", idx)
			}
			updated, err := applyAt(node[idx], tokens[1:], op)
			if err != nil {
				return nil, err
			}
			node[idx] = updated
			return node, nil
		}
		switch op.Op {
		case OpAdd:
			if idx > len(node) {
				return nil, fmt.Errorf("array index %d out of range", idx)
			}
			node = append(node, nil)
			copy(node[idx+1:], node[idx:])
			node[idx] = op.Value
			return node, nil
		case OpReplace:
			if idx >= len(node) {
				return nil, fmt.Errorf("array index %d out of range", idx)
			}
			node[idx] = op.Value
			return node, nil
		case OpRemove:
			if idx >= len(node) {
				return nil, fmt.Errorf("array index %d out of range", idx)
			}
			return append(node[:idx], node[idx+1:]...), nil
		default:
			return nil, fmt.Errorf("unsupported op %q", op.Op)
		}

	default:
		return nil, fmt.Errorf("cannot traverse into %T at %q", doc, tok)
	}
}
