// Command mockagent is a scripted AG-UI backend for local development and
// client testing. It serves the strand run endpoint over SSE and replies to
// every run with a canned streamed response, a demo tool call, and state
// updates.
//
// Configuration is via environment variables:
//
//	MOCKAGENT_PORT        - Server port (default: 8080)
//	MOCKAGENT_LOG_LEVEL   - debug, info, warn, error (default: info)
//	MOCKAGENT_CHUNK_DELAY - Delay between SSE records (default: 50ms)
//	MOCKAGENT_TOKEN       - When set, requests must carry this bearer token
//
// Usage:
//
//	go run ./cmd/mockagent
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg := LoadConfig()
	setupLogging(cfg.LogLevel)

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/rooms/{roomId}/agui/{threadId}/{runId}", corsMiddleware(NewRunHandler(cfg)))
	mux.HandleFunc("/health", healthHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE needs no write timeout
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("mock agent starting", "port", cfg.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
