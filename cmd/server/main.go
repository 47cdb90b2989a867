package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"monograph-rag/internal/adapter/httpapi"
	"monograph-rag/internal/di"
	"monograph-rag/internal/infra"
	"monograph-rag/internal/infra/config"
	"monograph-rag/internal/infra/logger"
)

func main() {
	// 1. Load Config
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	enableOTel := cfg.OTLPEndpoint != ""
	log := logger.NewWithOTel(enableOTel)
	slog.SetDefault(log)

	if enableOTel {
		shutdown, err := infra.SetupLogExport(context.Background(), "monograph-rag")
		if err != nil {
			log.Error("failed to set up log export", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				log.Error("log export shutdown failed", "error", err)
			}
		}()
	}

	// 3. Initialize DB
	dbPool, err := infra.NewPostgresDB(context.Background(), cfg.DSN())
	if err != nil {
		log.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// 4. Wire Components
	components := di.NewApplicationComponents(cfg, dbPool, log)

	// 5. Startup Probe: the embedding model must match the stored vectors
	if err := probeEmbeddingDimension(context.Background(), components, cfg, log); err != nil {
		log.Error("embedding dimension probe failed", "error", err)
		os.Exit(1)
	}

	// 6. Start Worker
	components.Worker.Start()
	defer func() {
		log.Info("Stopping worker...")
		components.Worker.Stop()
	}()

	// 7. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	handler := httpapi.NewHandler(
		components.QueryUsecase,
		components.JobRepo,
		components.PassageRepo,
		dbPool,
		cfg.EmbeddingDim,
		log,
	)
	handler.RegisterRoutes(e)

	// 8. Start Server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("Starting server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 9. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}

// probeEmbeddingDimension encodes a short probe text and compares the model
// output against the configured dimension and the stored index. A mismatch
// would silently corrupt every similarity score, so it is fatal.
func probeEmbeddingDimension(ctx context.Context, components *di.ApplicationComponents, cfg *config.Config, log *slog.Logger) error {
	probeCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.EmbedTimeout)*time.Second)
	defer cancel()

	embeddings, err := components.Encoder.Encode(probeCtx, []string{"dimension probe"})
	if err != nil {
		log.Warn("embedding model unreachable at startup, skipping probe", "error", err)
		return nil
	}
	if len(embeddings) != 1 {
		return fmt.Errorf("probe returned %d embeddings, want 1", len(embeddings))
	}
	if got := len(embeddings[0]); got != cfg.EmbeddingDim {
		return fmt.Errorf("model %s produces %d dimensions, configured %d",
			cfg.EmbeddingModel, got, cfg.EmbeddingDim)
	}

	count, dimension, err := components.PassageRepo.IndexStats(ctx)
	if err != nil {
		return fmt.Errorf("index stats: %w", err)
	}
	if dimension != 0 && dimension != cfg.EmbeddingDim {
		return fmt.Errorf("index holds %d-dimensional vectors, model produces %d",
			dimension, cfg.EmbeddingDim)
	}

	log.Info("embedding dimension probe passed",
		"model", cfg.EmbeddingModel,
		"dimension", cfg.EmbeddingDim,
		"indexed_passages", count)
	return nil
}
