package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/semaphore"

	"github.com/spetersoncode/bridge"
	"github.com/spetersoncode/bridge/adk"
	"github.com/spetersoncode/bridge/runner"
	"github.com/spetersoncode/bridge/wire"
)

// historyForgetter is implemented by runners that keep their own
// per-session history.
type historyForgetter interface {
	Forget(userID, sessionID string)
}

// AgentHandler serves AG-UI runs and session management.
type AgentHandler struct {
	orch   *runner.Orchestrator[*adk.Event]
	forget historyForgetter
	slots  *semaphore.Weighted
}

// NewAgentHandler creates a handler for the given orchestrator. forget may
// be nil. maxRuns caps the number of runs streaming at once; zero means no
// cap.
func NewAgentHandler(orch *runner.Orchestrator[*adk.Event], forget historyForgetter, maxRuns int64) *AgentHandler {
	h := &AgentHandler{orch: orch, forget: forget}
	if maxRuns > 0 {
		h.slots = semaphore.NewWeighted(maxRuns)
	}
	return h
}

// RegisterRoutes mounts the handler's routes on r.
func (h *AgentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/agent", h.Run)
	r.Delete("/api/sessions/{threadId}", h.DeleteSession)
}

// Run handles POST requests to run the agent and streams events in the
// framing the client asked for.
func (h *AgentHandler) Run(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var input bridge.RunInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		slog.Warn("invalid request body", "error", err)
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	prepared, err := input.Prepare()
	if err != nil {
		slog.Warn("invalid input", "error", err, "thread_id", input.ThreadID)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	log := slog.With(
		"run_id", prepared.RunID,
		"thread_id", prepared.ThreadID,
	)

	if h.slots != nil {
		if err := h.slots.Acquire(r.Context(), 1); err != nil {
			log.Info("client left while waiting for a run slot")
			return
		}
		defer h.slots.Release(1)
	}
	log.Info("request started", "message_count", len(prepared.Messages), "tools", prepared.ToolNames)

	enc := wire.NewEncoder(w, wire.Negotiate(r.Header.Get("Accept")))
	enc.WriteHeaders(w.Header())
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		eventCount int
		lastType   events.EventType
	)
	for ev := range h.orch.Run(ctx, prepared) {
		eventCount++
		lastType = ev.Type()
		log.Debug("sending event", "event_type", ev.Type(), "event_num", eventCount, "format", enc.Format())

		if err := enc.Encode(ev); err != nil {
			log.Error("failed to write event", "error", err, "event_type", ev.Type())
			cancel()
			return
		}
	}

	duration := time.Since(start)
	if r.Context().Err() != nil {
		log.Info("request cancelled by client",
			"duration_ms", duration.Milliseconds(),
			"events_sent", eventCount,
		)
		return
	}
	log.Info("request completed",
		"duration_ms", duration.Milliseconds(),
		"events_sent", eventCount,
		"outcome", lastType,
	)
}

// DeleteSession removes the session of a thread. The user is taken from
// the userId query parameter, falling back to the thread-scoped default.
func (h *AgentHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadId")
	input := &bridge.PreparedInput{ThreadID: threadID}
	if userID := r.URL.Query().Get("userId"); userID != "" {
		input.ForwardedProps = map[string]any{"userId": userID}
	}
	key := h.orch.Key(input)

	if err := h.orch.Sessions().Delete(r.Context(), key); err != nil {
		slog.Error("failed to delete session", "session", key.String(), "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if h.forget != nil {
		h.forget.Forget(key.UserID, key.ThreadID)
	}
	slog.Info("session deleted", "session", key.String())
	w.WriteHeader(http.StatusNoContent)
}

// corsMiddleware adds CORS headers for cross-origin frontend requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
