package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"monograph-rag/internal/domain"
	"monograph-rag/internal/infra/logger"
	"monograph-rag/internal/usecase"

	"golang.org/x/time/rate"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	jobTimeout          = 5 * time.Minute
	initialBackoff      = 1 * time.Second
	maxBackoff          = 5 * time.Minute

	// ingestRateLimit throttles how many embedding-heavy jobs run per
	// second so the model server is not starved by a bulk load.
	ingestRateLimit = rate.Limit(2)
	ingestBurst     = 1
)

// JobWorker drains the ingest job queue in the background. Jobs are claimed
// with row locks, so several replicas can run the worker concurrently.
type JobWorker struct {
	jobRepo      domain.IngestJobRepository
	indexUsecase usecase.IndexMonographUsecase
	limiter      *rate.Limiter
	logger       *slog.Logger
	stopChan     chan struct{}
	backoff      time.Duration
}

func NewJobWorker(
	jobRepo domain.IngestJobRepository,
	indexUsecase usecase.IndexMonographUsecase,
	log *slog.Logger,
) *JobWorker {
	return &JobWorker{
		jobRepo:      jobRepo,
		indexUsecase: indexUsecase,
		limiter:      rate.NewLimiter(ingestRateLimit, ingestBurst),
		logger:       log,
		stopChan:     make(chan struct{}),
	}
}

func (w *JobWorker) Start() {
	w.logger.Info("Starting JobWorker")
	go w.run()
}

func (w *JobWorker) Stop() {
	w.logger.Info("Stopping JobWorker")
	close(w.stopChan)
}

func (w *JobWorker) run() {
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processNextJob()
			if w.backoff > 0 {
				ticker.Reset(w.backoff)
			} else {
				ticker.Reset(defaultPollInterval)
			}
		}
	}
}

func (w *JobWorker) processNextJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	job, err := w.jobRepo.AcquireNextJob(ctx)
	if err != nil {
		w.logger.Error("Failed to acquire next job", "error", err)
		return
	}
	if job == nil {
		return // No jobs
	}

	ctx = logger.WithJobID(ctx, job.ID.String())
	log := logger.FromContext(ctx, w.logger)
	log.Info("Processing job", "type", job.JobType)

	var processErr error

	switch job.JobType {
	case domain.JobTypeIngestMonograph:
		if err := w.limiter.Wait(ctx); err != nil {
			processErr = fmt.Errorf("rate limit wait: %w", err)
			break
		}
		processErr = w.processIngestMonograph(ctx, job)
	case domain.JobTypeDeleteMonograph:
		processErr = w.processDeleteMonograph(ctx, job)
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.JobType)
	}

	status := domain.JobStatusCompleted
	var errMsg *string
	if processErr != nil {
		status = domain.JobStatusFailed
		msg := processErr.Error()
		errMsg = &msg
		w.backoff = w.nextBackoff(w.backoff)
		log.Warn("Worker backing off", "backoff", w.backoff, "error", processErr)
	} else {
		w.backoff = 0
		log.Info("Job completed")
	}

	if err := w.jobRepo.UpdateStatus(ctx, job.ID, status, errMsg); err != nil {
		log.Error("Failed to update job status", "error", err)
	}
}

func (w *JobWorker) nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return initialBackoff
	}
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (w *JobWorker) processIngestMonograph(ctx context.Context, job *domain.IngestJob) error {
	name, ok := job.Payload["name"].(string)
	if !ok || name == "" {
		return fmt.Errorf("missing or invalid name")
	}
	rawSections, ok := job.Payload["sections"].([]interface{})
	if !ok {
		return fmt.Errorf("missing or invalid sections")
	}

	sections := make([]domain.SectionInput, 0, len(rawSections))
	for i, raw := range rawSections {
		section, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("section %d is not an object", i)
		}
		sectionName, ok := section["name"].(string)
		if !ok || sectionName == "" {
			return fmt.Errorf("section %d has no name", i)
		}
		text, ok := section["text"].(string)
		if !ok {
			return fmt.Errorf("section %q has no text", sectionName)
		}
		var terms []string
		if rawTerms, ok := section["terms"].([]interface{}); ok {
			for _, rawTerm := range rawTerms {
				if term, ok := rawTerm.(string); ok {
					terms = append(terms, term)
				}
			}
		}
		sections = append(sections, domain.SectionInput{Name: sectionName, Text: text, Terms: terms})
	}

	return w.indexUsecase.Upsert(ctx, name, sections)
}

func (w *JobWorker) processDeleteMonograph(ctx context.Context, job *domain.IngestJob) error {
	name, ok := job.Payload["name"].(string)
	if !ok || name == "" {
		return fmt.Errorf("missing or invalid name")
	}
	return w.indexUsecase.Delete(ctx, name)
}
