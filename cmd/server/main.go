package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/voxbridge/relay-gateway/internal/config"
	"github.com/voxbridge/relay-gateway/internal/fallback"
	"github.com/voxbridge/relay-gateway/internal/llm"
	"github.com/voxbridge/relay-gateway/internal/observability"
	"github.com/voxbridge/relay-gateway/internal/persona"
	"github.com/voxbridge/relay-gateway/internal/relay"
	"github.com/voxbridge/relay-gateway/internal/store"
	"github.com/voxbridge/relay-gateway/internal/synth"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("tts_chain", strings.Join(cfg.SynthChain(), ",")).
		Str("llm_chain", strings.Join(cfg.GenChain(), ",")).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Speech Relay Gateway starting")

	// Conversation history is best effort: a broken database downgrades
	// to a no-op store instead of refusing to serve audio.
	var messageStore relay.MessageStore = relay.NopStore{}
	db, err := store.Open(context.Background(), cfg.DBPath, logger)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.DBPath).Msg("Persistence disabled")
	} else {
		messageStore = db
		defer db.Close()
	}

	// Build the synthesis chain in configured priority order.
	synthProviders, err := synth.Build(cfg, cfg.SynthChain())
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid TTS chain")
	}
	synthOrch := fallback.NewSynthesis(synthProviders, cfg.BreakerMaxFailures, cfg.BreakerReset(), logger)
	if !synthOrch.Viable() {
		logger.Warn().
			Str("tts_chain", strings.Join(synthOrch.Chain(), ",")).
			Msg("No synthesis provider is configured; every speak will fail until keys are set")
	}

	// Reply generation is optional: an empty LLM chain echoes the
	// requested text verbatim into synthesis.
	var replier relay.Replier = relay.PassthroughReplier{}
	if names := cfg.GenChain(); len(names) > 0 {
		genProviders, err := llm.Build(cfg, names)
		if err != nil {
			logger.Fatal().Err(err).Msg("Invalid LLM chain")
		}
		systemPrompt, err := persona.Load(cfg.PersonaPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load persona")
		}
		replier = &relay.GenerationReplier{
			Gen:    fallback.NewGeneration(genProviders, logger),
			System: systemPrompt,
		}
	}

	server := relay.NewServer(synthOrch, replier, messageStore, logger)

	// Create HTTP server
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", server.HandleWS())

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler(relay.Version))

	// Readiness endpoint
	checks := map[string]observability.HealthCheckFunc{
		"synthesis": func(ctx context.Context) (bool, error) {
			if !synthOrch.Viable() {
				return false, fmt.Errorf("no synthesis provider available")
			}
			return true, nil
		},
	}
	if db != nil {
		checks["database"] = func(ctx context.Context) (bool, error) {
			if err := db.Ping(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(relay.Version, checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws", cfg.Port)).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
