package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wolfman30/ai-chat-assistant/internal/api/router"
	appconfig "github.com/wolfman30/ai-chat-assistant/internal/config"
	"github.com/wolfman30/ai-chat-assistant/internal/conversation"
	"github.com/wolfman30/ai-chat-assistant/internal/observability/metrics"
	"github.com/wolfman30/ai-chat-assistant/internal/webchat"
	"github.com/wolfman30/ai-chat-assistant/pkg/logging"
)

func main() {
	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env file: %v\n", err)
	}

	cfg, err := appconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting ai-chat-assistant",
		"env", cfg.Env,
		"port", cfg.Port,
		"model", cfg.ModelName,
		"api_key_configured", cfg.APIKeyConfigured(),
	)
	if !cfg.APIKeyConfigured() {
		logger.Warn("OPENAI_API_KEY is not set; chat submissions will be rejected")
	}

	metricsHandler, chatMetrics := setupMetrics()
	srv := newServer(cfg, buildHandler(cfg, chatMetrics, metricsHandler, logger))

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown does not wait for hijacked websocket connections; their turns
	// end with the process.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// setupMetrics registers the chat metrics and Go runtime collectors on a
// dedicated registry and returns its scrape handler.
func setupMetrics() (http.Handler, *metrics.ChatMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewChatMetrics(reg)
}

func buildHandler(cfg *appconfig.Config, chatMetrics *metrics.ChatMetrics, metricsHandler http.Handler, logger *logging.Logger) http.Handler {
	client := conversation.NewClient(conversation.ClientConfigFrom(cfg), logger)
	counter := conversation.NewTokenCounter(conversation.NewTiktokenTokenizer(), client.Model(), logger)

	chat := webchat.NewHandler(webchat.Options{
		Completer:        client,
		Counter:          counter,
		Modes:            appconfig.Modes(),
		APIKeyConfigured: cfg.APIKeyConfigured(),
		Model:            client.Model(),
		Metrics:          chatMetrics,
		Logger:           logger,
	})

	return router.New(&router.Config{
		Logger:             logger,
		WebChat:            chat,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
}

// newServer leaves ReadTimeout and WriteTimeout unset: both would cut off
// long-lived websocket streams.
func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
