// Package main provides a reference AG-UI HTTP server. It bridges an
// ADK-style backend to AG-UI clients over SSE or NDJSON.
//
// Configuration is via environment variables (a .env file is loaded if
// present):
//
//	AGUI_PORT                  - Server port (default: 8000)
//	AGUI_LOG_LEVEL             - debug, info, warn or error (default: info)
//	AGUI_APP_NAME              - Session app name (default: agui)
//	AGUI_SESSION_TIMEOUT       - Idle session lifetime (default: 20m)
//	AGUI_SWEEP_INTERVAL        - Expired session sweep interval (default: 1m)
//	AGUI_EVICT_PENDING         - Evict sessions awaiting tool results (default: false)
//	AGUI_MAX_SESSIONS_PER_USER - Session cap per user, 0 for none (default: 0)
//	AGUI_STORE                 - memory, sqlite or redis (default: memory)
//	AGUI_SQLITE_PATH           - SQLite database file (default: data/sessions.db)
//	AGUI_REDIS_ADDR            - Redis address (default: localhost:6379)
//	AGUI_REDIS_PASSWORD        - Redis password
//	AGUI_REDIS_DB              - Redis database (default: 0)
//	AGUI_BACKEND               - echo or gemini (default: echo)
//	GOOGLE_API_KEY             - Gemini API key
//	AGUI_MODEL                 - Gemini model override
//	AGUI_SYSTEM_PROMPT         - Gemini system instruction
//	AGUI_RUN_TIMEOUT           - Per-run deadline (default: 2m)
//	AGUI_MAX_CONCURRENT_RUNS   - Runs streaming at once, 0 for no cap (default: 0)
//	AGUI_MARK_POLICY           - after or before (default: after)
//
// Usage:
//
//	AGUI_BACKEND=gemini GOOGLE_API_KEY=... go run ./cmd/aguiserver
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/spetersoncode/bridge"
	"github.com/spetersoncode/bridge/adk"
	"github.com/spetersoncode/bridge/runner"
	"github.com/spetersoncode/bridge/session"
	"github.com/spetersoncode/bridge/store"
	"github.com/spetersoncode/bridge/store/redis"
	"github.com/spetersoncode/bridge/store/sqlite"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter, closeStore, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open session store", "store", cfg.Store, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	runnerImpl, err := newRunner(ctx, cfg)
	if err != nil {
		slog.Error("failed to create backend", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}

	sessions := session.New(adapter,
		session.WithTimeout(cfg.SessionTimeout),
		session.WithEvictPending(cfg.EvictPending),
		session.WithMaxSessionsPerUser(cfg.MaxPerUser),
	)

	policy, _ := runner.ParseMarkPolicy(cfg.MarkPolicy)
	orch := runner.New(sessions, adk.NewBackend(runnerImpl),
		runner.WithAppName(bridge.StaticAppName(cfg.AppName)),
		runner.WithMarkPolicy(policy),
		runner.WithRunTimeout(cfg.RunTimeout),
		runner.WithTracerProvider(otel.GetTracerProvider()),
	)

	var forget historyForgetter
	if f, ok := runnerImpl.(historyForgetter); ok {
		forget = f
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(NewAgentHandler(orch, forget, cfg.MaxRuns)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout for streaming responses
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	sweeperDone := sessions.StartSweeper(gctx, cfg.SweepInterval)
	g.Go(func() error {
		slog.Info("AG-UI server listening",
			"addr", srv.Addr,
			"backend", cfg.Backend,
			"store", cfg.Store,
			"mark_policy", policy,
		)
		slog.Info("endpoints",
			"run", fmt.Sprintf("POST http://localhost:%s/api/agent", cfg.Port),
			"health", fmt.Sprintf("GET  http://localhost:%s/health", cfg.Port),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	stop()
	<-sweeperDone
	if err != nil {
		slog.Error("server stopped with error", "error", err)
		return
	}
	slog.Info("server stopped")
}

// newRouter wires the middleware stack and routes. Requests are traced
// with the global tracer provider, which is a no-op unless one is
// installed.
func newRouter(h *AgentHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(corsMiddleware)

	h.RegisterRoutes(r)
	return otelhttp.NewHandler(r, "aguiserver")
}

// openStore opens the configured persistence adapter. The returned func
// releases it.
func openStore(cfg *Config) (store.Adapter, func(), error) {
	switch cfg.Store {
	case "sqlite":
		a, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return a, closer("sqlite", a.Close), nil
	case "redis":
		a, err := redis.New(cfg.RedisAddr,
			redis.WithPassword(cfg.RedisPassword),
			redis.WithDB(cfg.RedisDB),
			redis.WithPrefix(cfg.AppName),
		)
		if err != nil {
			return nil, nil, err
		}
		return a, closer("redis", a.Close), nil
	default:
		return store.NewMemoryAdapter(), func() {}, nil
	}
}

func closer(name string, closeFn func() error) func() {
	return func() {
		if err := closeFn(); err != nil {
			slog.Warn("failed to close session store", "store", name, "error", err)
		}
	}
}

// newRunner creates the configured backend runner.
func newRunner(ctx context.Context, cfg *Config) (adk.Runner, error) {
	switch cfg.Backend {
	case "gemini":
		return adk.NewGeminiRunner(ctx, cfg.GoogleKey,
			adk.WithModel(cfg.Model),
			adk.WithSystemInstruction(cfg.System),
		)
	default:
		return adk.NewEchoRunner(), nil
	}
}
