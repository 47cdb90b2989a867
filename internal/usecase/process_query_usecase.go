package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"monograph-rag/internal/domain"
	"monograph-rag/internal/infra/logger"
	"monograph-rag/internal/usecase/retrieval"

	"github.com/google/uuid"
)

// Fixed answers. The answer field of a QueryResult is always populated,
// even on failure, so callers can display it without branching.
const (
	answerEmptyQuery    = "Please provide a question."
	answerNoInformation = "I couldn't find any relevant information in my knowledge base for this question."
	answerGenerateError = "Error generating answer. Please try again."
	answerTimeout       = "Answer generation timed out. Please try again with a simpler question."
	answerPipelineError = "An error occurred while processing your question. Please try again."
)

// ProcessQueryInput carries one user question through the pipeline.
type ProcessQueryInput struct {
	Query string
	// Verbose enables per-candidate logging of the intermediate rankings.
	Verbose bool
}

// StageTiming records wall-clock durations per stage. Total covers the
// whole call and is always at least the sum of the stages.
type StageTiming struct {
	VectorSearch time.Duration
	Rerank       time.Duration
	Generation   time.Duration
	Total        time.Duration
}

// QueryResult is the pipeline outcome. Error is empty on success; Answer is
// set either way.
type QueryResult struct {
	QueryID string
	Query   string
	Answer  string
	Sources []domain.Source
	Timing  StageTiming
	Error   string
}

// ProcessQueryUsecase runs the full question answering pipeline: vector
// search, cross-encoder rerank, grounded generation. Execute never returns
// an error; failures are reported inside the result.
type ProcessQueryUsecase interface {
	Execute(ctx context.Context, input ProcessQueryInput) *QueryResult
}

type processQueryUsecase struct {
	encoder       domain.VectorEncoder
	passages      domain.PassageRepository
	reranker      domain.Reranker
	llmClient     domain.LLMClient
	assembler     *ContextAssembler
	promptBuilder PromptBuilder
	cfg           PipelineConfig
	logger        *slog.Logger
}

// NewProcessQueryUsecase wires the pipeline components together.
func NewProcessQueryUsecase(
	encoder domain.VectorEncoder,
	passages domain.PassageRepository,
	reranker domain.Reranker,
	llmClient domain.LLMClient,
	cfg PipelineConfig,
	log *slog.Logger,
) ProcessQueryUsecase {
	return &processQueryUsecase{
		encoder:       encoder,
		passages:      passages,
		reranker:      reranker,
		llmClient:     llmClient,
		assembler:     NewContextAssembler(cfg.Generation.MaxContextChars),
		promptBuilder: NewGroundedPromptBuilder(),
		cfg:           cfg,
		logger:        log,
	}
}

func (u *processQueryUsecase) Execute(ctx context.Context, input ProcessQueryInput) *QueryResult {
	start := time.Now()

	result := &QueryResult{
		QueryID: uuid.NewString(),
		Query:   input.Query,
	}

	if strings.TrimSpace(input.Query) == "" {
		result.Answer = answerEmptyQuery
		result.Error = "query is empty"
		result.Timing.Total = time.Since(start)
		return result
	}

	ctx = logger.WithQueryID(ctx, result.QueryID)
	log := logger.FromContext(ctx, u.logger)

	log.Info("query_started", slog.String("query", truncateForLog(input.Query)))

	sc := &retrieval.StageContext{QueryID: result.QueryID, Query: input.Query}

	// Stage 1: vector search
	searchLog := logger.FromContext(logger.WithStage(ctx, "vector_search"), u.logger)
	searchStart := time.Now()
	err := retrieval.Search(ctx, sc, u.encoder, u.passages, retrieval.SearchConfig{
		TopK:          u.cfg.Search.TopK,
		MinSimilarity: u.cfg.Search.MinSimilarity,
	}, searchLog)
	result.Timing.VectorSearch = time.Since(searchStart)

	if err != nil {
		log.Error("query_failed",
			slog.String("stage", "vector_search"),
			slog.String("error", err.Error()))
		result.Answer = answerPipelineError
		result.Error = err.Error()
		result.Timing.Total = time.Since(start)
		return result
	}

	if input.Verbose {
		logCandidates(searchLog, sc.Candidates)
	}

	// Nothing relevant: answer without touching the model.
	if len(sc.Candidates) == 0 {
		result.Answer = answerNoInformation
		result.Timing.Total = time.Since(start)
		log.Info("query_completed_no_candidates",
			slog.Int64("total_ms", result.Timing.Total.Milliseconds()))
		return result
	}

	// Stage 2: cross-encoder rerank
	rerankLog := logger.FromContext(logger.WithStage(ctx, "rerank"), u.logger)
	rerankStart := time.Now()
	retrieval.Rerank(ctx, sc, u.reranker, retrieval.RerankConfig{
		TopN:          u.cfg.Reranking.TopN,
		Timeout:       u.cfg.Reranking.Timeout,
		PlainPairText: u.cfg.Reranking.PlainPairText,
	}, rerankLog)
	result.Timing.Rerank = time.Since(rerankStart)

	if input.Verbose {
		logCandidates(rerankLog, sc.Candidates)
	}

	// Stage 3: grounded generation
	genLog := logger.FromContext(logger.WithStage(ctx, "generation"), u.logger)
	genStart := time.Now()
	answer, genErr := u.generate(ctx, sc, genLog)
	result.Timing.Generation = time.Since(genStart)

	if genErr != nil {
		log.Error("query_failed",
			slog.String("stage", "generation"),
			slog.String("error", genErr.Error()))
		result.Answer = fallbackAnswerFor(genErr)
		result.Error = genErr.Error()
		result.Timing.Total = time.Since(start)
		return result
	}

	result.Answer = answer
	// Attribution comes from the ranked candidates themselves, never from
	// parsing the model output.
	result.Sources = sourcesOf(sc.Candidates)
	result.Timing.Total = time.Since(start)

	log.Info("query_completed",
		slog.Int("source_count", len(result.Sources)),
		slog.Int64("search_ms", result.Timing.VectorSearch.Milliseconds()),
		slog.Int64("rerank_ms", result.Timing.Rerank.Milliseconds()),
		slog.Int64("generation_ms", result.Timing.Generation.Milliseconds()),
		slog.Int64("total_ms", result.Timing.Total.Milliseconds()))

	return result
}

func (u *processQueryUsecase) generate(ctx context.Context, sc *retrieval.StageContext, log *slog.Logger) (string, error) {
	assembled, truncated := u.assembler.Assemble(sc.Candidates)
	if truncated {
		log.Warn("context_truncated",
			slog.Int("budget_chars", u.cfg.Generation.MaxContextChars))
	}

	prompt := u.promptBuilder.Build(sc.Query, assembled)

	genCtx, cancel := context.WithTimeout(ctx, u.cfg.Generation.Timeout)
	defer cancel()

	resp, err := u.llmClient.Generate(genCtx, prompt, domain.GenerationOptions{
		Temperature: u.cfg.Generation.Temperature,
		MaxTokens:   u.cfg.Generation.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", errors.New("empty llm response")
	}
	if !resp.Done {
		return "", errors.New("llm response incomplete")
	}

	return strings.TrimSpace(resp.Text), nil
}

func logCandidates(log *slog.Logger, candidates []retrieval.Candidate) {
	for i, cand := range candidates {
		log.Info("candidate",
			slog.Int("rank", i+1),
			slog.String("group", cand.GroupName),
			slog.String("section", cand.SectionName),
			slog.Float64("similarity", float64(cand.Similarity)),
			slog.Float64("relevance", float64(cand.Relevance)),
			slog.Bool("reranked", cand.Reranked))
	}
}

func sourcesOf(candidates []retrieval.Candidate) []domain.Source {
	sources := make([]domain.Source, len(candidates))
	for i, cand := range candidates {
		sources[i] = domain.Source{
			GroupName:   cand.GroupName,
			SectionName: cand.SectionName,
			Similarity:  cand.Similarity,
		}
		if cand.Reranked {
			relevance := cand.Relevance
			sources[i].Relevance = &relevance
		}
	}
	return sources
}

func fallbackAnswerFor(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return answerTimeout
	}
	return answerGenerateError
}

func truncateForLog(s string) string {
	const maxLen = 200
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
