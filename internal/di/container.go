package di

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"monograph-rag/internal/adapter/ollama"
	"monograph-rag/internal/adapter/repository"
	"monograph-rag/internal/adapter/reranker"
	"monograph-rag/internal/domain"
	"monograph-rag/internal/infra/config"
	"monograph-rag/internal/usecase"
	"monograph-rag/internal/worker"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Repositories
	PassageRepo   domain.PassageRepository
	MonographRepo domain.MonographRepository
	JobRepo       domain.IngestJobRepository

	// External clients
	Encoder   domain.VectorEncoder
	Reranker  domain.Reranker
	LLMClient domain.LLMClient

	// Usecases
	QueryUsecase usecase.ProcessQueryUsecase
	IndexUsecase usecase.IndexMonographUsecase

	// Worker
	Worker *worker.JobWorker
}

// NewApplicationComponents wires all dependencies from config and database pool.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) *ApplicationComponents {
	// Repositories
	passageRepo := repository.NewPassageRepository(pool)
	monographRepo := repository.NewMonographRepository(pool)
	jobRepo := repository.NewIngestJobRepository(pool)
	txManager := repository.NewPostgresTransactionManager(pool)

	// External clients
	encoder := ollama.NewEmbedder(cfg.OllamaURL, cfg.EmbeddingModel,
		time.Duration(cfg.EmbedTimeout)*time.Second, log)
	generator := ollama.NewGenerator(cfg.OllamaURL, cfg.GenerationModel,
		time.Duration(cfg.GenerationTimeout)*time.Second, log)
	rerankClient := reranker.NewClient(cfg.RerankerURL, cfg.RerankerModel,
		time.Duration(cfg.RerankTimeout)*time.Second, log)

	pipelineCfg := usecase.PipelineConfig{
		Search: usecase.VectorSearchConfig{
			TopK:          cfg.TopK,
			MinSimilarity: float32(cfg.MinSimilarity),
		},
		Reranking: usecase.RerankingConfig{
			TopN:          cfg.TopN,
			Timeout:       time.Duration(cfg.RerankTimeout) * time.Second,
			PlainPairText: cfg.UsePlainPairText,
		},
		Generation: usecase.GenerationConfig{
			Temperature:     float32(cfg.Temperature),
			MaxTokens:       cfg.MaxOutputTokens,
			Timeout:         time.Duration(cfg.GenerationTimeout) * time.Second,
			MaxContextChars: cfg.MaxContextChars,
		},
	}

	queryUsecase := usecase.NewProcessQueryUsecase(
		encoder, passageRepo, rerankClient, generator, pipelineCfg, log)
	indexUsecase := usecase.NewIndexMonographUsecase(
		encoder, passageRepo, monographRepo, txManager, log)

	jobWorker := worker.NewJobWorker(jobRepo, indexUsecase, log)

	return &ApplicationComponents{
		PassageRepo:   passageRepo,
		MonographRepo: monographRepo,
		JobRepo:       jobRepo,
		Encoder:       encoder,
		Reranker:      rerankClient,
		LLMClient:     generator,
		QueryUsecase:  queryUsecase,
		IndexUsecase:  indexUsecase,
		Worker:        jobWorker,
	}
}
