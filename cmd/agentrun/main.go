// Package main is the entry point for the agentrun execution runtime: the
// A2A protocol layer, task executor, and their supporting services (C1-C9).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kandev/agentrun/internal/a2a"
	"github.com/kandev/agentrun/internal/auth"
	"github.com/kandev/agentrun/internal/common/config"
	"github.com/kandev/agentrun/internal/common/httpmw"
	"github.com/kandev/agentrun/internal/common/logger"
	"github.com/kandev/agentrun/internal/conversation"
	"github.com/kandev/agentrun/internal/credentials"
	"github.com/kandev/agentrun/internal/events"
	"github.com/kandev/agentrun/internal/executor"
	"github.com/kandev/agentrun/internal/ledger"
	"github.com/kandev/agentrun/internal/llm"
	"github.com/kandev/agentrun/internal/registry"
	"github.com/kandev/agentrun/internal/sandbox"
	"github.com/kandev/agentrun/internal/tools"
	"github.com/kandev/agentrun/internal/toolsession"
)

func main() {
	// 1. Load configuration.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger.
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)
	log.Info("starting agentrun runtime")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Open the ledger (C1).
	store, closeStore, err := ledger.Provide(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open ledger", zap.Error(err))
	}
	defer closeStore()
	log.Info("ledger ready", zap.String("driver", cfg.Database.Driver))

	// 4. Event bus (task lifecycle pub/sub, NATS or in-memory).
	evBus, closeBus, err := events.Provide(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize event bus", zap.Error(err))
	}
	defer closeBus()

	auditLog := events.RegisterAuditLog(evBus.Bus, log)
	defer auditLog.Close()

	// 5. Auth resolver (C2).
	resolver := auth.New(cfg.Auth, store)

	// 6. Credential stores consumed by tool invocation.
	credRegistry := credentials.NewRegistry()
	credRegistry.Register("env", credentials.NewEnvStore())
	credRegistry.Register("file", credentials.NewFileStore(os.Getenv("AGENTRUN_CREDENTIALS_FILE")))
	credResolver := credentials.NewResolver(credRegistry)

	// 7. Function sandbox pool (C6).
	sandboxPool, err := sandbox.Provide(cfg.Sandbox, log)
	if err != nil {
		log.Fatal("failed to initialize sandbox pool", zap.Error(err))
	}
	defer sandboxPool.Stop()

	// 8. Tool bindings (remote MCP + sandboxed function).
	binder := tools.New(credResolver, sandboxPool, log)
	defer binder.Close()

	// 9. Tool-call session manager (C5).
	sessions := toolsession.NewManager(log)
	defer sessions.Stop()

	// 10. Conversation service (C4).
	conv := conversation.New(store)

	// 11. Model client.
	model, err := llm.NewFromAPIKey(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, 4096, 1.0)
	if err != nil {
		log.Fatal("failed to initialize model client", zap.Error(err))
	}

	// 12. Task executor (C8).
	exec := executor.New(store, conv, sessions, binder, model, evBus.Bus, log)

	// 13. Agent registry (C3), wired to the executor's task handler.
	baseURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	reg := registry.New(store, baseURL, "1.0.0", exec.HandlerFor)

	// 14. A2A protocol layer (C7) + streaming bridge (C9).
	a2aServer := a2a.New(store, reg, exec, log)

	// 15. HTTP server.
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(httpmw.RequestLogger(log, "agentrun"))
	router.Use(httpmw.OtelTracing("agentrun"))
	router.Use(gin.Recovery())

	a2aServer.RegisterRoutes(router, auth.Middleware(resolver))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: 0, // SSE responses are long-lived; the executor's own turn timeout bounds them instead.
	}

	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 16. Wait for shutdown signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down agentrun runtime")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	}

	log.Info("agentrun runtime stopped")
}
