package adk

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/spetersoncode/bridge"
	"github.com/spetersoncode/bridge/chunk"
	"github.com/spetersoncode/bridge/runner"
)

func TestBackend_Run(t *testing.T) {
	var (
		gotUser, gotSession string
		gotContent          *genai.Content
		gotCfg              RunConfig
	)
	fn := RunnerFunc(func(_ context.Context, userID, sessionID string, content *genai.Content, cfg RunConfig) iter.Seq2[*Event, error] {
		gotUser, gotSession, gotContent, gotCfg = userID, sessionID, content, cfg
		return func(yield func(*Event, error) bool) {
			yield(TextEvent("ok", false), nil)
		}
	})

	b := NewBackend(fn)
	inv := &runner.Invocation{
		UserID:      "thread_user_t1",
		SessionID:   "t1",
		ThreadID:    "t1",
		RunID:       "r1",
		ToolResults: []chunk.ToolResult{toolResult("c1", "pick_color", `"red"`)},
		Prompt:      &bridge.Message{ID: "u1", Role: bridge.RoleUser, Content: strPtr("thanks")},
		Tools:       []bridge.Tool{{Name: "pick_color"}},
		State:       map[string]any{"k": "v"},
		Context:     []any{"ctx"},
	}

	var n int
	for ev, err := range b.Run(context.Background(), inv) {
		require.NoError(t, err)
		assert.Equal(t, "ok", ev.Text())
		n++
	}
	assert.Equal(t, 1, n)

	assert.Equal(t, "thread_user_t1", gotUser)
	assert.Equal(t, "t1", gotSession)
	require.NotNil(t, gotContent)
	require.Len(t, gotContent.Parts, 2)
	assert.Equal(t, "c1", gotContent.Parts[0].FunctionResponse.ID)
	assert.Equal(t, "thanks", gotContent.Parts[1].Text)
	assert.Equal(t, RunConfig{
		ThreadID: "t1",
		RunID:    "r1",
		Tools:    inv.Tools,
		State:    inv.State,
		Context:  inv.Context,
	}, gotCfg)
}

func TestBackend_Steps(t *testing.T) {
	assert.Len(t, NewBackend(NewEchoRunner()).Steps(), len(Steps()))
	assert.Len(t, NewBackend(NewEchoRunner(), WithRawPassthrough()).Steps(), len(Steps())+1)
}
