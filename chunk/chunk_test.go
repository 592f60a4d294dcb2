package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetersoncode/bridge"
)

func text(s string) *string { return &s }

func user(id, content string) bridge.Message {
	return bridge.Message{ID: id, Role: bridge.RoleUser, Content: text(content)}
}

func system(id, content string) bridge.Message {
	return bridge.Message{ID: id, Role: bridge.RoleSystem, Content: text(content)}
}

func tool(id, callID, content string) bridge.Message {
	return bridge.Message{ID: id, Role: bridge.RoleTool, ToolCallID: callID, Content: text(content)}
}

func assistantCalls(id string, calls ...bridge.ToolCall) bridge.Message {
	return bridge.Message{ID: id, Role: bridge.RoleAssistant, ToolCalls: calls}
}

func call(id, name string) bridge.ToolCall {
	return bridge.ToolCall{ID: id, Type: "function", Function: bridge.Function{Name: name, Arguments: "{}"}}
}

func ids(msgs []bridge.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestUnseen(t *testing.T) {
	history := []bridge.Message{user("1", "a"), user("2", "b"), {Role: bridge.RoleUser, Content: text("no id")}}
	got := Unseen(history, map[string]bool{"1": true})
	assert.Equal(t, []string{"2"}, ids(got))
	assert.Equal(t, []string{"1", "2"}, ids(Unseen(history, nil)))
}

func TestSplit(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Split(nil))
	})

	t.Run("single user chunk", func(t *testing.T) {
		chunks := Split([]bridge.Message{system("s", "be nice"), user("1", "hi")})
		require.Len(t, chunks, 1)
		assert.False(t, chunks[0].IsToolSubmission())
		assert.Equal(t, "user", chunks[0].Kind())
		assert.Equal(t, []string{"s", "1"}, ids(chunks[0].UserSystemMessages))
	})

	t.Run("tool run with trailing user", func(t *testing.T) {
		chunks := Split([]bridge.Message{
			tool("t1", "X", "{}"),
			tool("t2", "Y", "{}"),
			user("u1", "next"),
		})
		require.Len(t, chunks, 1)
		assert.True(t, chunks[0].IsToolSubmission())
		assert.Equal(t, "tool", chunks[0].Kind())
		assert.Equal(t, []string{"t1", "t2"}, ids(chunks[0].ToolMessages))
		assert.Equal(t, []string{"u1"}, ids(chunks[0].UserSystemMessages))
		assert.Equal(t, []string{"t1", "t2", "u1"}, chunks[0].MessageIDs())
	})

	t.Run("alternating", func(t *testing.T) {
		chunks := Split([]bridge.Message{
			user("u1", "a"),
			assistantCalls("a1", call("X", "lookup")),
			tool("t1", "X", "{}"),
			user("u2", "b"),
			tool("t2", "Y", "{}"),
		})
		require.Len(t, chunks, 3)
		assert.Equal(t, []string{"u1", "a1"}, chunks[0].MessageIDs())
		assert.Equal(t, []string{"t1", "u2"}, chunks[1].MessageIDs())
		assert.Equal(t, []string{"t2"}, chunks[2].MessageIDs())
		assert.Empty(t, chunks[2].UserSystemMessages)
	})

	t.Run("covers every message once in order", func(t *testing.T) {
		msgs := []bridge.Message{
			tool("1", "a", ""), user("2", "x"), user("3", "y"),
			tool("4", "b", ""), tool("5", "c", ""), system("6", "z"),
		}
		var got []string
		for _, c := range Split(msgs) {
			got = append(got, c.MessageIDs()...)
		}
		assert.Equal(t, ids(msgs), got)
	})
}

func TestPlan(t *testing.T) {
	history := []bridge.Message{user("1", "hi"), user("2", "again")}

	chunks := Plan(history, map[string]bool{"1": true})
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"2"}, chunks[0].MessageIDs())

	assert.Empty(t, Plan(history, map[string]bool{"1": true, "2": true}))
}

func TestMessageIDs_SkipsEmpty(t *testing.T) {
	c := Chunk{UserSystemMessages: []bridge.Message{{Role: bridge.RoleUser}, user("1", "x")}}
	assert.Equal(t, []string{"1"}, c.MessageIDs())
	assert.Equal(t, 2, c.Len())
}
