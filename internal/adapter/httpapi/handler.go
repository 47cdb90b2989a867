package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"monograph-rag/internal/domain"
	"monograph-rag/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Pinger reports database connectivity. Satisfied by pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	queryUsecase usecase.ProcessQueryUsecase
	jobRepo      domain.IngestJobRepository
	passages     domain.PassageRepository
	db           Pinger
	embeddingDim int
	logger       *slog.Logger
}

func NewHandler(
	queryUsecase usecase.ProcessQueryUsecase,
	jobRepo domain.IngestJobRepository,
	passages domain.PassageRepository,
	db Pinger,
	embeddingDim int,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		queryUsecase: queryUsecase,
		jobRepo:      jobRepo,
		passages:     passages,
		db:           db,
		embeddingDim: embeddingDim,
		logger:       logger,
	}
}

// RegisterRoutes mounts every endpoint on the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/query", h.Query)
	e.POST("/internal/monographs/ingest", h.IngestMonograph)
	e.DELETE("/internal/monographs/:name", h.DeleteMonograph)
	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)
}

type queryRequest struct {
	Query   string `json:"query"`
	Verbose bool   `json:"verbose"`
}

type sourceResponse struct {
	GroupName       string   `json:"group_name"`
	SectionName     string   `json:"section_name"`
	SimilarityScore float32  `json:"similarity_score"`
	RelevanceScore  *float32 `json:"relevance_score,omitempty"`
}

type timingResponse struct {
	VectorSearchMs int64 `json:"vector_search_ms"`
	RerankMs       int64 `json:"rerank_ms"`
	GenerationMs   int64 `json:"generation_ms"`
	TotalMs        int64 `json:"total_ms"`
}

type queryResponse struct {
	QueryID string           `json:"query_id"`
	Query   string           `json:"query"`
	Answer  string           `json:"answer"`
	Sources []sourceResponse `json:"sources"`
	Timing  timingResponse   `json:"timing"`
	Error   string           `json:"error,omitempty"`
}

// Query runs the full answer pipeline. The response always carries an
// answer; pipeline failures show up in the error field, not as HTTP errors.
func (h *Handler) Query(ctx echo.Context) error {
	var req queryRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	result := h.queryUsecase.Execute(ctx.Request().Context(), usecase.ProcessQueryInput{
		Query:   req.Query,
		Verbose: req.Verbose,
	})

	sources := make([]sourceResponse, 0, len(result.Sources))
	for _, s := range result.Sources {
		sources = append(sources, sourceResponse{
			GroupName:       s.GroupName,
			SectionName:     s.SectionName,
			SimilarityScore: s.Similarity,
			RelevanceScore:  s.Relevance,
		})
	}

	return ctx.JSON(http.StatusOK, queryResponse{
		QueryID: result.QueryID,
		Query:   result.Query,
		Answer:  result.Answer,
		Sources: sources,
		Timing: timingResponse{
			VectorSearchMs: result.Timing.VectorSearch.Milliseconds(),
			RerankMs:       result.Timing.Rerank.Milliseconds(),
			GenerationMs:   result.Timing.Generation.Milliseconds(),
			TotalMs:        result.Timing.Total.Milliseconds(),
		},
		Error: result.Error,
	})
}

type ingestSectionRequest struct {
	Name  string   `json:"name"`
	Text  string   `json:"text"`
	Terms []string `json:"terms"`
}

type ingestRequest struct {
	Name     string                 `json:"name"`
	Sections []ingestSectionRequest `json:"sections"`
}

// IngestMonograph enqueues a background ingest job. The actual embedding
// happens in the worker; the endpoint just validates and accepts.
func (h *Handler) IngestMonograph(ctx echo.Context) error {
	var req ingestRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if strings.TrimSpace(req.Name) == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}
	if len(req.Sections) == 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "sections are required"})
	}

	sections := make([]interface{}, 0, len(req.Sections))
	for _, s := range req.Sections {
		if strings.TrimSpace(s.Name) == "" {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "section name is required"})
		}
		terms := make([]interface{}, 0, len(s.Terms))
		for _, term := range s.Terms {
			terms = append(terms, term)
		}
		sections = append(sections, map[string]interface{}{
			"name":  s.Name,
			"text":  s.Text,
			"terms": terms,
		})
	}

	job := &domain.IngestJob{
		ID:      uuid.New(),
		JobType: domain.JobTypeIngestMonograph,
		Payload: map[string]interface{}{
			"name":     req.Name,
			"sections": sections,
		},
		Status: domain.JobStatusNew,
	}
	if err := h.jobRepo.Enqueue(ctx.Request().Context(), job); err != nil {
		h.logger.Error("failed to enqueue ingest job", "error", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to enqueue job"})
	}

	return ctx.JSON(http.StatusAccepted, map[string]string{"job_id": job.ID.String()})
}

// DeleteMonograph enqueues a background delete job.
func (h *Handler) DeleteMonograph(ctx echo.Context) error {
	name := ctx.Param("name")
	if strings.TrimSpace(name) == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	job := &domain.IngestJob{
		ID:      uuid.New(),
		JobType: domain.JobTypeDeleteMonograph,
		Payload: map[string]interface{}{"name": name},
		Status:  domain.JobStatusNew,
	}
	if err := h.jobRepo.Enqueue(ctx.Request().Context(), job); err != nil {
		h.logger.Error("failed to enqueue delete job", "error", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to enqueue job"})
	}

	return ctx.JSON(http.StatusAccepted, map[string]string{"job_id": job.ID.String()})
}

func (h *Handler) Healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz checks database connectivity and that the stored embeddings match
// the configured model dimension. An empty index is ready.
func (h *Handler) Readyz(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	if err := h.db.Ping(reqCtx); err != nil {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "database unreachable",
		})
	}

	count, dimension, err := h.passages.IndexStats(reqCtx)
	if err != nil {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "index stats unavailable",
		})
	}
	if dimension != 0 && dimension != h.embeddingDim {
		h.logger.Error("embedding dimension mismatch",
			"index_dimension", dimension, "configured_dimension", h.embeddingDim)
		return ctx.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status":               "degraded",
			"error":                "embedding dimension mismatch",
			"index_dimension":      dimension,
			"configured_dimension": h.embeddingDim,
		})
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"passage_count": count,
	})
}
