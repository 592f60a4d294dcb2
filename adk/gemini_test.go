package adk

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/spetersoncode/bridge"
	"github.com/spetersoncode/bridge/internal/retry"
)

func TestNewGeminiRunner_RequiresKey(t *testing.T) {
	_, err := NewGeminiRunner(context.Background(), "")
	assert.ErrorIs(t, err, bridge.ErrBackendUnavailable)
}

func TestGeminiRunner_Options(t *testing.T) {
	r := NewGeminiRunnerWithClient(nil)
	assert.Equal(t, DefaultGeminiModel, r.Model())
	assert.Equal(t, retry.DefaultPolicy(), r.retry)

	r = NewGeminiRunnerWithClient(nil,
		WithModel("gemini-2.5-pro"),
		WithModel(""),
		WithSystemInstruction("be brief"),
		WithRetry(retry.NoRetry()),
		WithHistoryLimit(4),
	)
	assert.Equal(t, "gemini-2.5-pro", r.Model())
	assert.Equal(t, "be brief", r.system)
	assert.Equal(t, retry.NoRetry(), r.retry)
	assert.Equal(t, 4, r.historyLimit)
}

func TestGeminiRunner_GenerateConfig(t *testing.T) {
	r := NewGeminiRunnerWithClient(nil)
	cfg := r.generateConfig(RunConfig{})
	assert.Nil(t, cfg.SystemInstruction)
	assert.Empty(t, cfg.Tools)
	assert.Nil(t, cfg.ToolConfig)

	r = NewGeminiRunnerWithClient(nil, WithSystemInstruction("be brief"))
	cfg = r.generateConfig(RunConfig{Tools: []bridge.Tool{
		{Name: "pick_color", Parameters: json.RawMessage(`{"type":"object"}`)},
	}})
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "be brief", cfg.SystemInstruction.Parts[0].Text)
	require.Len(t, cfg.Tools, 1)
	require.Len(t, cfg.Tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "pick_color", cfg.Tools[0].FunctionDeclarations[0].Name)
	assert.Equal(t, genai.FunctionCallingConfigModeAuto, cfg.ToolConfig.FunctionCallingConfig.Mode)
}

func TestGeminiRunner_FinalEvent(t *testing.T) {
	r := NewGeminiRunnerWithClient(nil)

	t.Run("text", func(t *testing.T) {
		ev := r.finalEvent("all done", nil, "STOP")
		assert.True(t, ev.TurnComplete)
		assert.False(t, ev.Partial)
		assert.Equal(t, "STOP", ev.FinishReason)
		assert.Equal(t, "all done", ev.Text())
		assert.True(t, ev.IsFinalResponse())
	})

	t.Run("calls", func(t *testing.T) {
		ev := r.finalEvent("checking", []*genai.FunctionCall{
			{ID: "c1", Name: "pick_color"},
			{Name: "search", Args: map[string]any{"q": "go"}},
		}, "")

		calls := ev.FunctionCalls()
		require.Len(t, calls, 2)
		assert.Equal(t, "c1", calls[0].ID)
		assert.NotEmpty(t, calls[1].ID)
		assert.Equal(t, []string{"c1", calls[1].ID}, ev.LongRunningToolIDs)
		assert.Equal(t, "checking", ev.Text())
		assert.True(t, ev.IsFinalResponse())
	})
}

func userText(text string) *genai.Content {
	return genai.NewContentFromText(text, genai.RoleUser)
}

func modelText(text string) *genai.Content {
	return genai.NewContentFromText(text, genai.RoleModel)
}

func texts(h []*genai.Content) []string {
	out := make([]string, len(h))
	for i, c := range h {
		out[i] = c.Parts[0].Text
	}
	return out
}

func TestGeminiRunner_History(t *testing.T) {
	r := NewGeminiRunnerWithClient(nil, WithHistoryLimit(3))

	for _, text := range []string{"one", "two"} {
		r.recordTurn("u/s", userText(text), modelText("re: "+text))
	}
	assert.Equal(t, []string{"two", "re: two"}, texts(r.contents("u/s", nil)))

	r.recordTurn("u/s", nil, &genai.Content{})
	assert.Len(t, r.contents("u/s", nil), 2)

	got := r.contents("u/s", userText("three"))
	assert.Equal(t, []string{"two", "re: two", "three"}, texts(got))
	assert.Len(t, r.contents("u/s", nil), 2)

	assert.Empty(t, r.contents("u/other", nil))

	r.Forget("u", "s")
	assert.Empty(t, r.contents("u/s", nil))
}

func TestGeminiRunner_TrimStartsAtUserText(t *testing.T) {
	r := NewGeminiRunnerWithClient(nil, WithHistoryLimit(4))

	call := &genai.Content{Role: string(genai.RoleModel), Parts: []*genai.Part{
		genai.NewPartFromFunctionCall("pick_color", nil),
	}}
	answer := &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{
		genai.NewPartFromFunctionResponse("pick_color", map[string]any{"color": "red"}),
	}}

	r.recordTurn("u/s", userText("pick"), call)
	r.recordTurn("u/s", answer, modelText("red it is"))
	// The cut lands on the function response; the history restarts later.
	r.recordTurn("u/s", userText("thanks"), modelText("welcome"))

	got := r.contents("u/s", nil)
	assert.Equal(t, []string{"thanks", "welcome"}, texts(got))
	assert.EqualValues(t, genai.RoleUser, got[0].Role)

	r = NewGeminiRunnerWithClient(nil, WithHistoryLimit(2))
	r.recordTurn("u/s", userText("pick"), call)
	r.recordTurn("u/s", answer, modelText("red it is"))
	assert.Empty(t, r.contents("u/s", nil))
}

func scriptedStream(fail error, text string) streamFunc {
	return func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
		return func(yield func(*genai.GenerateContentResponse, error) bool) {
			if fail != nil {
				yield(nil, fail)
				return
			}
			yield(&genai.GenerateContentResponse{
				ResponseID: "resp-1",
				Candidates: []*genai.Candidate{{
					Content:      modelText(text),
					FinishReason: genai.FinishReasonStop,
				}},
			}, nil)
		}
	}
}

func drain(t *testing.T, seq iter.Seq2[*Event, error]) ([]*Event, error) {
	t.Helper()
	var out []*Event
	for ev, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func TestGeminiRunner_FailedTurnLeavesHistory(t *testing.T) {
	r := NewGeminiRunnerWithClient(nil, WithRetry(retry.NoRetry()))
	boom := errors.New("invalid api key")
	r.stream = scriptedStream(boom, "")

	_, err := drain(t, r.Run(context.Background(), "u", "s", userText("hi"), RunConfig{RunID: "run-1"}))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, r.contents("u/s", nil))

	r.stream = scriptedStream(nil, "hello")
	evs, err := drain(t, r.Run(context.Background(), "u", "s", userText("hi"), RunConfig{RunID: "run-2"}))
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.True(t, evs[0].Partial)
	assert.Equal(t, "resp-1", evs[0].ID)
	assert.True(t, evs[1].TurnComplete)
	assert.Equal(t, "hello", evs[1].Text())
	assert.Equal(t, "run-2", evs[1].InvocationID)
	assert.Equal(t, string(genai.FinishReasonStop), evs[1].FinishReason)

	assert.Equal(t, []string{"hi", "hello"}, texts(r.contents("u/s", nil)))
}

func TestGeminiRunner_EmptyHistoryYieldsNothing(t *testing.T) {
	r := NewGeminiRunnerWithClient(nil)
	var n int
	for range r.Run(context.Background(), "u", "s", nil, RunConfig{}) {
		n++
	}
	assert.Zero(t, n)
}
