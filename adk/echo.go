package adk

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// EchoRunner is a deterministic runner for demos and tests. It streams the
// prompt back word by word and then sends the full text as a final
// response, which closes the streamed message.
//
// A prompt of the form "/call <tool> [json-args]" naming a declared client
// tool produces a long-running call to that tool instead. Tool results are
// acknowledged with a short summary. Each turn increments the "turns"
// state key.
type EchoRunner struct {
	mu    sync.Mutex
	turns map[string]int
}

// NewEchoRunner creates an EchoRunner.
func NewEchoRunner() *EchoRunner {
	return &EchoRunner{turns: make(map[string]int)}
}

// Run implements Runner.
func (r *EchoRunner) Run(ctx context.Context, userID, sessionID string, content *genai.Content, cfg RunConfig) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		turn := r.nextTurn(userID + "/" + sessionID)
		for _, ev := range r.respond(content, cfg, turn) {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			ev.InvocationID = cfg.RunID
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func (r *EchoRunner) nextTurn(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns[key]++
	return r.turns[key]
}

func (r *EchoRunner) respond(content *genai.Content, cfg RunConfig, turn int) []*Event {
	var (
		prompt    string
		responses []*genai.FunctionResponse
	)
	if content != nil {
		for _, p := range content.Parts {
			switch {
			case p == nil:
			case p.FunctionResponse != nil:
				responses = append(responses, p.FunctionResponse)
			case p.Text != "":
				prompt += p.Text
			}
		}
	}

	var out []*Event
	if call := parseCall(prompt, cfg); call != nil {
		ev := FunctionCallEvent(call)
		ev.LongRunningToolIDs = []string{call.ID}
		out = append(out, ev)
	} else {
		text := reply(prompt, responses)
		for _, word := range splitWords(text) {
			out = append(out, TextEvent(word, true))
		}
		final := TextEvent(text, false)
		final.TurnComplete = true
		out = append(out, final)
	}

	out = append(out, &Event{Author: "echo", StateDelta: map[string]any{"turns": turn}})
	return out
}

func reply(prompt string, responses []*genai.FunctionResponse) string {
	var b strings.Builder
	for _, r := range responses {
		data, _ := json.Marshal(r.Response)
		fmt.Fprintf(&b, "%s returned %s. ", r.Name, data)
	}
	if prompt != "" {
		b.WriteString(prompt)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "(nothing to echo)"
	}
	return text
}

// parseCall recognises "/call <tool> [json-args]" for a declared tool.
func parseCall(prompt string, cfg RunConfig) *genai.FunctionCall {
	rest, ok := strings.CutPrefix(strings.TrimSpace(prompt), "/call ")
	if !ok {
		return nil
	}
	name, rawArgs, _ := strings.Cut(strings.TrimSpace(rest), " ")
	declared := false
	for _, t := range cfg.Tools {
		if t.Name == name {
			declared = true
			break
		}
	}
	if !declared {
		return nil
	}
	args := map[string]any{}
	if rawArgs = strings.TrimSpace(rawArgs); rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			args = map[string]any{"input": rawArgs}
		}
	}
	return &genai.FunctionCall{ID: uuid.NewString(), Name: name, Args: args}
}

// splitWords splits text into chunks that concatenate back to text.
func splitWords(text string) []string {
	var out []string
	start := 0
	for i := 1; i < len(text); i++ {
		if text[i] == ' ' {
			out = append(out, text[start:i])
			start = i
		}
	}
	return append(out, text[start:])
}
