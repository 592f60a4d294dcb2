package adk

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/spetersoncode/bridge"
	"github.com/spetersoncode/bridge/internal/retry"
)

// DefaultGeminiModel is the model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiRunner runs turns against the Gemini API. It keeps the
// conversation history of each session in memory, declares the client's
// tools as functions and reports every function call as long-running,
// since the model has no server-side tools.
type GeminiRunner struct {
	stream       streamFunc
	model        string
	system       string
	retry        retry.Policy
	historyLimit int

	mu      sync.Mutex
	history map[string][]*genai.Content
}

type streamFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

// GeminiOption configures a GeminiRunner.
type GeminiOption func(*GeminiRunner)

// WithModel sets the model name.
func WithModel(model string) GeminiOption {
	return func(r *GeminiRunner) {
		if model != "" {
			r.model = model
		}
	}
}

// WithSystemInstruction sets the system prompt.
func WithSystemInstruction(text string) GeminiOption {
	return func(r *GeminiRunner) {
		r.system = text
	}
}

// WithRetry sets the retry policy for opening the response stream.
func WithRetry(p retry.Policy) GeminiOption {
	return func(r *GeminiRunner) {
		r.retry = p
	}
}

// WithHistoryLimit caps the number of contents kept per session. The kept
// history always starts at a user text turn, so it can hold fewer. Zero
// keeps everything.
func WithHistoryLimit(n int) GeminiOption {
	return func(r *GeminiRunner) {
		if n >= 0 {
			r.historyLimit = n
		}
	}
}

// NewGeminiRunner creates a runner using the given API key.
func NewGeminiRunner(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiRunner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", bridge.ErrBackendUnavailable)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bridge.ErrBackendUnavailable, err)
	}
	return NewGeminiRunnerWithClient(client, opts...), nil
}

// NewGeminiRunnerWithClient creates a runner over an existing client.
func NewGeminiRunnerWithClient(client *genai.Client, opts ...GeminiOption) *GeminiRunner {
	r := &GeminiRunner{
		model:   DefaultGeminiModel,
		retry:   retry.DefaultPolicy(),
		history: make(map[string][]*genai.Content),
	}
	if client != nil {
		r.stream = client.Models.GenerateContentStream
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Model returns the configured model name.
func (r *GeminiRunner) Model() string {
	return r.model
}

// Run implements Runner.
func (r *GeminiRunner) Run(ctx context.Context, userID, sessionID string, content *genai.Content, cfg RunConfig) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		key := userID + "/" + sessionID
		contents := r.contents(key, content)
		if len(contents) == 0 {
			return
		}
		config := r.generateConfig(cfg)

		var (
			text   strings.Builder
			calls  []*genai.FunctionCall
			finish string
		)
		stream := retry.Seq(ctx, r.retry, func() iter.Seq2[*genai.GenerateContentResponse, error] {
			return r.stream(ctx, r.model, contents, config)
		})
		for resp, err := range stream {
			if err != nil {
				yield(nil, err)
				return
			}
			if resp == nil {
				continue
			}
			if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
				yield(nil, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
				return
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			cand := resp.Candidates[0]
			if cand.FinishReason != "" {
				finish = string(cand.FinishReason)
			}
			for _, part := range cand.Content.Parts {
				switch {
				case part == nil || part.Thought:
				case part.FunctionCall != nil:
					calls = append(calls, part.FunctionCall)
				case part.Text != "":
					text.WriteString(part.Text)
					ev := TextEvent(part.Text, true)
					ev.ID = resp.ResponseID
					ev.InvocationID = cfg.RunID
					if !yield(ev, nil) {
						return
					}
				}
			}
		}

		final := r.finalEvent(text.String(), calls, finish)
		final.InvocationID = cfg.RunID
		r.recordTurn(key, content, final.Content)
		yield(final, nil)
	}
}

// finalEvent builds the event that closes the turn: the function calls
// when the model requested any, otherwise the complete text.
func (r *GeminiRunner) finalEvent(text string, calls []*genai.FunctionCall, finish string) *Event {
	if len(calls) == 0 {
		ev := TextEvent(text, false)
		ev.TurnComplete = true
		ev.FinishReason = finish
		return ev
	}

	ids := make([]string, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		ids[i] = c.ID
	}
	ev := FunctionCallEvent(calls...)
	if text != "" {
		ev.Content.Parts = append([]*genai.Part{genai.NewPartFromText(text)}, ev.Content.Parts...)
	}
	ev.LongRunningToolIDs = ids
	ev.FinishReason = finish
	return ev
}

func (r *GeminiRunner) generateConfig(cfg RunConfig) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if r.system != "" {
		config.SystemInstruction = genai.NewContentFromText(r.system, genai.RoleUser)
	}
	if decls := FunctionDeclarations(cfg.Tools); len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		}
	}
	return config
}

// contents returns a copy of the session history followed by content.
// Nothing is stored until the turn completes.
func (r *GeminiRunner) contents(key string, content *genai.Content) []*genai.Content {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := append([]*genai.Content(nil), r.history[key]...)
	if content != nil {
		h = append(h, content)
	}
	return h
}

// recordTurn appends a completed exchange to the session history.
func (r *GeminiRunner) recordTurn(key string, user, model *genai.Content) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.history[key]
	for _, c := range []*genai.Content{user, model} {
		if c != nil && len(c.Parts) > 0 {
			h = append(h, c)
		}
	}
	r.history[key] = r.trim(h)
}

// trim keeps at most historyLimit contents, starting at a user text turn.
// A window without one is dropped whole.
func (r *GeminiRunner) trim(h []*genai.Content) []*genai.Content {
	if r.historyLimit <= 0 || len(h) <= r.historyLimit {
		return h
	}
	h = h[len(h)-r.historyLimit:]
	for i, c := range h {
		if isUserText(c) {
			return h[i:]
		}
	}
	return nil
}

func isUserText(c *genai.Content) bool {
	if c.Role != string(genai.RoleUser) {
		return false
	}
	text := false
	for _, p := range c.Parts {
		if p.FunctionResponse != nil {
			return false
		}
		if p.Text != "" {
			text = true
		}
	}
	return text
}

// Forget drops the history of a session.
func (r *GeminiRunner) Forget(userID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.history, userID+"/"+sessionID)
}

var (
	_ Runner = (*GeminiRunner)(nil)
	_ Runner = (*EchoRunner)(nil)
)
