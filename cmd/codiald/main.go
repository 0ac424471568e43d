// codial-core server — accepts chat sessions and turns over HTTP, runs the
// turn worker pool, and streams turn lifecycle events to the gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codial-dev/codial-core/pkg/api"
	"github.com/codial-dev/codial-core/pkg/attachments"
	"github.com/codial-dev/codial-core/pkg/config"
	"github.com/codial-dev/codial-core/pkg/events"
	"github.com/codial-dev/codial-core/pkg/mcp"
	"github.com/codial-dev/codial-core/pkg/policy"
	"github.com/codial-dev/codial-core/pkg/providers"
	"github.com/codial-dev/codial-core/pkg/queue"
	"github.com/codial-dev/codial-core/pkg/rules"
	"github.com/codial-dev/codial-core/pkg/session"
	"github.com/codial-dev/codial-core/pkg/store"
	"github.com/codial-dev/codial-core/pkg/tools"
	"github.com/codial-dev/codial-core/pkg/turns"
	"github.com/codial-dev/codial-core/pkg/version"
)

const copilotProviderName = "github-copilot-sdk"

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CODIAL_CONFIG_DIR", "./config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	settings, err := config.Initialize(filepath.Join(*configDir, "codial.yaml"))
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting codial-core",
		"version", version.Full(),
		"config_dir", *configDir,
		"workspace_root", settings.WorkspaceRoot)

	ctx := context.Background()

	// 1. Event sink to the gateway
	sink := events.NewGatewayEventSink(settings.GatewayBaseURL, settings.GatewayInternalToken, settings.RequestTimeout())
	defer sink.Close()

	// 2. Provider adapters, with the copilot token bootstrap when needed
	enabled, err := providers.GetEnabledProviderNames(settings.EnabledProviderNames, settings.DefaultProviderName)
	if err != nil {
		slog.Error("Failed to resolve enabled providers", "error", err)
		os.Exit(1)
	}

	var copilotToken *string
	if slices.Contains(enabled, copilotProviderName) {
		bootstrapper := providers.NewCopilotAuthBootstrapper(providers.CopilotAuthSettings{
			BridgeBaseURL:    settings.CopilotBridgeBaseURL,
			BridgeToken:      settings.CopilotBridgeToken,
			Timeout:          settings.ProviderBridgeTimeout(),
			CachePath:        settings.CopilotAuthCachePath,
			WorkspaceRoot:    settings.WorkspaceRoot,
			AutoLoginEnabled: settings.CopilotAutoLoginEnabled,
			LoginEndpoint:    settings.CopilotLoginEndpoint,
		})
		if token, authErr := bootstrapper.EnsureToken(ctx); authErr != nil {
			// Turns on the copilot provider will fail until a token appears;
			// the service still serves sessions and other providers.
			slog.Warn("copilot_auth_unavailable", "error", authErr)
		} else {
			copilotToken = &token
		}
	}

	adapters := providers.BuildAdapters(settings, enabled, copilotToken)
	slog.Info("Provider adapters initialized", "providers", enabled)

	// 3. Workspace policy, attachments, tools, optional MCP
	policyLoader := policy.NewLoader(settings.WorkspaceRoot)

	ingestor := attachments.NewIngestor(
		settings.AttachmentDownloadEnabled,
		settings.AttachmentDownloadMaxBytes,
		settings.AttachmentStorageDir,
		settings.RequestTimeout())
	defer ingestor.Close()

	// A nil interface keeps MCP off process-wide when no server is configured.
	var mcpClient turns.McpToolClient
	if settings.McpServerURL != "" {
		mcpClient = mcp.NewClient(settings.McpServerURL, settings.McpServerToken, settings.McpRequestTimeout())
	}

	registry := tools.BuildDefaultRegistry(settings.WorkspaceRoot)

	// 4. Turn engine and worker pool (before the HTTP server)
	engine := turns.NewEngine(sink, ingestor, mcpClient, adapters, policyLoader, registry,
		settings.WorkspaceRoot, settings.ProviderLoopMaxRounds)

	pool := queue.NewTurnWorkerPool(engine, sink, settings.TurnWorkerCount)
	if err := pool.Start(ctx); err != nil {
		slog.Error("Failed to start turn worker pool", "error", err)
		os.Exit(1)
	}

	// 5. Services and HTTP server
	sessionStore := store.NewInMemorySessionStore()
	sessions := session.NewService(sessionStore, policyLoader, enabled, settings.WorkspaceRoot)
	turnService := turns.NewService(sessionStore, pool)
	ruleStore := rules.NewStore(settings.WorkspaceRoot)

	server := api.NewServer(settings, sessions, turnService, ruleStore, pool)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
		slog.Info("HTTP server listening", "addr", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("codial-core started successfully",
		"workers", settings.TurnWorkerCount,
		"default_provider", settings.DefaultProviderName)

	// 6. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 7. Graceful shutdown: close the HTTP intake first so no new turns
	// arrive, then drain the worker pool.
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Turn worker pool stopped gracefully")
	case <-time.After(45 * time.Second):
		slog.Warn("Worker pool shutdown timeout exceeded — abandoning queued turns")
	}

	slog.Info("Shutdown complete")
}
