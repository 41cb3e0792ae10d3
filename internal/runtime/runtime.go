// Package runtime is the composition root: it wires config, telemetry,
// stores, providers and the HTTP server together and manages their
// lifecycle.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mindwave-labs/mindwave-core/internal/audiocache"
	"github.com/mindwave-labs/mindwave-core/internal/bus"
	"github.com/mindwave-labs/mindwave-core/internal/config"
	"github.com/mindwave-labs/mindwave-core/internal/knowledge"
	"github.com/mindwave-labs/mindwave-core/internal/llm"
	"github.com/mindwave-labs/mindwave-core/internal/meditation"
	"github.com/mindwave-labs/mindwave-core/internal/natsserver"
	"github.com/mindwave-labs/mindwave-core/internal/pipeline"
	"github.com/mindwave-labs/mindwave-core/internal/server"
	"github.com/mindwave-labs/mindwave-core/internal/synth"
	"github.com/mindwave-labs/mindwave-core/internal/userstore"
)

type Runtime struct {
	cfg            config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	telemetryClose func(context.Context) error
	ready          atomic.Bool
	wg             sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start runs the daemon until ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.telemetryClose = shutdownTelemetry

	var embedded *natsserver.EmbeddedServer
	var busClient *bus.Client
	if r.cfg.Bus.Enabled {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		busClient, err = bus.Connect(ctx, r.cfg.Bus, r.logger)
		if err != nil {
			embedded.Shutdown()
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
	}

	store, err := userstore.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		busClient.Close()
		embedded.Shutdown()
		return fmt.Errorf("failed to open user store: %w", err)
	}

	retriever, err := newRetriever(r.cfg.Knowledge)
	if err != nil {
		return fmt.Errorf("failed to build knowledge retriever: %w", err)
	}
	generator, err := newGenerator(r.cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to build llm generator: %w", err)
	}
	synthesizer, err := newSynthesizer(r.cfg.TTS)
	if err != nil {
		return fmt.Errorf("failed to build synthesizer: %w", err)
	}
	synthesizer = synth.Throttle(synthesizer, r.cfg.TTS.RequestsPerMinute)

	cache := audiocache.New(
		time.Duration(r.cfg.Cache.MaxAgeSeconds)*time.Second,
		time.Duration(r.cfg.Cache.CleanupIntervalSeconds)*time.Second,
		r.logger)
	pl := pipeline.New(r.cfg.Pipeline, synthesizer, cache, r.logger)
	svc := meditation.NewService(store, retriever, generator, r.cfg.LLM, r.logger)

	srv := server.New(svc, pl, cache, busClient, metricsHandler, synthesizer.Format(),
		r.ready.Load, r.logger)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("llm_provider", r.cfg.LLM.Provider),
		slog.String("tts_provider", r.cfg.TTS.Provider))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	busClient.Close()
	embedded.Shutdown()
	if err := store.Close(); err != nil {
		r.logger.Error("store close error", slog.String("error", err.Error()))
	}
	if r.telemetryClose != nil {
		if err := r.telemetryClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
	return nil
}

func newRetriever(cfg config.KnowledgeConfig) (knowledge.Retriever, error) {
	if cfg.Dir == "" {
		return knowledge.NewNoop(), nil
	}
	return knowledge.NewFileRetriever(cfg.Dir)
}

func newGenerator(cfg config.LLMConfig) (llm.Generator, error) {
	switch cfg.Provider {
	case "openai":
		return llm.NewOpenAIGenerator(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "ollama":
		return llm.NewOllamaGenerator(cfg.Endpoint, cfg.Model), nil
	case "mock":
		return llm.NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func newSynthesizer(cfg config.TTSConfig) (synth.Synthesizer, error) {
	switch cfg.Provider {
	case "openai":
		return synth.NewOpenAISynth(cfg), nil
	case "minimax":
		return synth.NewMiniMaxSynth(cfg), nil
	case "exec":
		return synth.NewExecSynth(cfg)
	case "mock":
		return synth.NewMockSynth(), nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", cfg.Provider)
	}
}
