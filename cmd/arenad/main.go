// Command arenad runs the model comparison service: the HTTP API, the
// in-process event bus, and the asynchronous evaluation processor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/modelarena/arena/infrastructure/eventbus"
	"github.com/modelarena/arena/infrastructure/httpapi"
	"github.com/modelarena/arena/infrastructure/judge"
	"github.com/modelarena/arena/infrastructure/llm"
	"github.com/modelarena/arena/infrastructure/memory"
	"github.com/modelarena/arena/infrastructure/metrics"
	"github.com/modelarena/arena/infrastructure/scoring"
	"github.com/modelarena/arena/infrastructure/store"
	"github.com/modelarena/arena/internal/application"
	"github.com/modelarena/arena/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("arenad exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	collector := metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)

	sessionStore, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer sessionStore.Close()

	memoryStore, err := memory.Open(cfg.Memory.Path)
	if err != nil {
		return err
	}
	defer memoryStore.Close()

	registry, err := llm.NewRegistry(cfg.RegistryConfig(), collector)
	if err != nil {
		return fmt.Errorf("failed to build model registry: %w", err)
	}

	embedder, err := llm.NewOpenAIEmbedder(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to build embedding client: %w", err)
	}

	scoringEngine, err := scoringEngine(cfg, embedder, logger)
	if err != nil {
		return err
	}

	judgeEngine, err := judgeEngine(cfg, registry)
	if err != nil {
		return err
	}

	planner := application.NewPlannerService(registry, cfg.PlannerServiceConfig(), logger)
	reflector := application.NewReflectionService(memoryStore, embedder, logger)
	bus := eventbus.NewBus(cfg.BusServiceConfig(), logger, collector)

	orchestrator := application.NewOrchestrator(sessionStore, memoryStore, planner,
		reflector, embedder, bus, cfg.OrchestratorConfig(), collector, logger)
	processor := application.NewEvaluationProcessor(sessionStore, scoringEngine,
		judgeEngine, collector, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	busDone := make(chan struct{})
	go func() {
		defer close(busDone)
		if err := bus.Run(ctx, processor.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event bus stopped", "error", err)
		}
	}()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httpapi.NewServer(orchestrator, logger).Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", "error", err)
	}

	// Let in-flight evaluation events drain before exit.
	bus.Close()
	select {
	case <-busDone:
	case <-shutdownCtx.Done():
		logger.Warn("event bus did not drain before shutdown deadline")
	}
	return nil
}

func scoringEngine(cfg *config.Config, embedder *llm.OpenAIEmbedder, logger *slog.Logger) (*scoring.Engine, error) {
	engine, err := scoring.NewEngine(embedder, cfg.ScoringEngineConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build scoring engine: %w", err)
	}
	return engine, nil
}

func judgeEngine(cfg *config.Config, registry *llm.Registry) (*judge.Engine, error) {
	rubric := judge.DefaultRubric()
	if cfg.Judge.RubricPath != "" {
		loaded, err := judge.LoadRubric(cfg.Judge.RubricPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load rubric: %w", err)
		}
		rubric = loaded
	}

	client, err := registry.Resolve(cfg.Judge.ModelID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve judge model: %w", err)
	}

	engine, err := judge.NewEngine(client, rubric, cfg.JudgeEngineConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to build judge engine: %w", err)
	}
	return engine, nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
