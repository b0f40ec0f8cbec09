// TabPilot backend server — runs the LLM agent, the HTTP API, and the
// WebSocket bridge to the browser extension.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tabpilot/tabpilot/pkg/agent"
	"github.com/tabpilot/tabpilot/pkg/api"
	"github.com/tabpilot/tabpilot/pkg/bridge"
	"github.com/tabpilot/tabpilot/pkg/config"
	"github.com/tabpilot/tabpilot/pkg/llm"
	"github.com/tabpilot/tabpilot/pkg/memory"
	"github.com/tabpilot/tabpilot/pkg/version"
	"github.com/tabpilot/tabpilot/pkg/ws"
)

// wsWriteTimeout bounds a single outbound WebSocket write.
const wsWriteTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting TabPilot",
		"version", version.Full(), "port", cfg.Port, "model", cfg.GeminiModel)

	ctx := context.Background()

	// Memory store is optional: without DB_HOST the memory endpoints report
	// 503 and the model runs without saved memories.
	var memStore *memory.Store
	dbCfg, dbEnabled, err := memory.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	if dbEnabled {
		memStore, err = memory.NewStore(ctx, dbCfg)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := memStore.Close(); err != nil {
				slog.Error("Error closing memory store", "error", err)
			}
		}()
		slog.Info("Connected to PostgreSQL database", "host", dbCfg.Host, "database", dbCfg.Database)
	} else {
		slog.Info("No DB_HOST configured, memory store disabled")
	}

	var llmMemories llm.MemoryStore
	var apiMemories api.MemoryService
	if memStore != nil {
		llmMemories = memStore
		apiMemories = memStore
	}

	gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, llmMemories)
	if err != nil {
		slog.Error("Failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}
	slog.Info("LLM client initialized", "model", cfg.GeminiModel)

	pending := bridge.NewPendingRegistry()
	connManager := ws.NewManager(pending, wsWriteTimeout)
	toolBridge := bridge.NewBridge(connManager, pending)
	orchestrator := agent.New(gemini, toolBridge)

	server := api.NewServer(orchestrator, connManager, apiMemories)

	errCh := make(chan error, 1)
	go func() {
		addr := cfg.Addr()
		slog.Info("HTTP server listening", "addr", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
	slog.Info("TabPilot stopped")
}
