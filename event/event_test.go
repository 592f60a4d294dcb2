package event

import (
	"testing"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	k := Kinds()
	assert.Len(t, k, 16)
	for _, typ := range k {
		assert.True(t, IsCanonical(typ), typ)
	}
	assert.False(t, IsCanonical(events.EventTypeMessagesSnapshot))

	// Returned slice is a copy
	k[0] = "MUTATED"
	assert.Equal(t, RunStarted, Kinds()[0])
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(RunFinished))
	assert.True(t, IsTerminal(RunError))
	assert.False(t, IsTerminal(RunStarted))
	assert.False(t, IsTerminal(TextMessageEnd))
}

func TestNewRunError(t *testing.T) {
	t.Run("with code", func(t *testing.T) {
		f, err := Inspect(NewRunError("boom", "backend", "r1"))
		require.NoError(t, err)
		assert.Equal(t, RunError, f.Type)
		assert.Equal(t, "boom", f.Message)
		assert.Equal(t, "backend", f.Code)
	})

	t.Run("without code", func(t *testing.T) {
		f, err := Inspect(NewRunError("boom", "", ""))
		require.NoError(t, err)
		assert.Equal(t, "boom", f.Message)
		assert.Empty(t, f.Code)
	})
}

func TestTextMessage(t *testing.T) {
	evs := TextMessage("m1", "hello")
	assert.Equal(t, []events.EventType{TextMessageStart, TextMessageContent, TextMessageEnd}, Types(evs))

	start, err := Inspect(evs[0])
	require.NoError(t, err)
	assert.Equal(t, "m1", start.MessageID)
	assert.Equal(t, RoleAssistant, start.Role)

	content, err := Inspect(evs[1])
	require.NoError(t, err)
	assert.Equal(t, "hello", content.Text())
}

func TestToolCall(t *testing.T) {
	t.Run("with args and parent", func(t *testing.T) {
		evs := ToolCall("c1", "lookup", `{"q":1}`, "m1")
		assert.Equal(t, []events.EventType{ToolCallStart, ToolCallArgs, ToolCallEnd}, Types(evs))

		start, err := Inspect(evs[0])
		require.NoError(t, err)
		assert.Equal(t, "c1", start.ToolCallID)
		assert.Equal(t, "lookup", start.ToolCallName)
		assert.Equal(t, "m1", start.ParentMessageID)

		args, err := Inspect(evs[1])
		require.NoError(t, err)
		assert.Equal(t, `{"q":1}`, args.Text())
	})

	t.Run("without args", func(t *testing.T) {
		evs := ToolCall("c1", "lookup", "", "")
		assert.Equal(t, []events.EventType{ToolCallStart, ToolCallEnd}, Types(evs))
	})
}

func TestPredictState(t *testing.T) {
	ev := PredictState([]map[string]any{{"state_key": "doc", "tool": "write", "tool_argument": "text"}})
	f, err := Inspect(ev)
	require.NoError(t, err)
	assert.Equal(t, Custom, f.Type)
	assert.Equal(t, PredictStateName, f.Name)
	assert.JSONEq(t, `[{"state_key":"doc","tool":"write","tool_argument":"text"}]`, string(f.Value))
}
