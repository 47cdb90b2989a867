package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"monograph-rag/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stubs ---

type stubJobRepo struct {
	mu       sync.Mutex
	jobs     []*domain.IngestJob // consumed FIFO
	err      error
	statuses []string
}

func (s *stubJobRepo) Enqueue(ctx context.Context, job *domain.IngestJob) error { return nil }

func (s *stubJobRepo) AcquireNextJob(ctx context.Context) (*domain.IngestJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(s.jobs) == 0 {
		return nil, nil
	}
	job := s.jobs[0]
	s.jobs = s.jobs[1:]
	return job, nil
}

func (s *stubJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

type stubIndexUsecase struct {
	mu            sync.Mutex
	capturedCtx   context.Context
	capturedName  string
	capturedInput []domain.SectionInput
	deletedName   string
	returnErr     error
}

func (s *stubIndexUsecase) Upsert(ctx context.Context, name string, sections []domain.SectionInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capturedCtx = ctx
	s.capturedName = name
	s.capturedInput = sections
	return s.returnErr
}

func (s *stubIndexUsecase) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedName = name
	return s.returnErr
}

func makeIngestJob() *domain.IngestJob {
	return &domain.IngestJob{
		ID:      uuid.New(),
		JobType: domain.JobTypeIngestMonograph,
		Payload: map[string]interface{}{
			"name": "Aspirin",
			"sections": []interface{}{
				map[string]interface{}{
					"name":  "Dosage",
					"text":  "325 mg every four hours.",
					"terms": []interface{}{"analgesic", "NSAID"},
				},
			},
		},
		Status: domain.JobStatusProcessing,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// --- tests ---

func TestProcessNextJob_ParsesIngestPayload(t *testing.T) {
	uc := &stubIndexUsecase{}
	repo := &stubJobRepo{jobs: []*domain.IngestJob{makeIngestJob()}}

	w := NewJobWorker(repo, uc, testLogger())
	w.processNextJob()

	uc.mu.Lock()
	defer uc.mu.Unlock()

	assert.Equal(t, "Aspirin", uc.capturedName)
	require.Len(t, uc.capturedInput, 1)
	assert.Equal(t, "Dosage", uc.capturedInput[0].Name)
	assert.Equal(t, "325 mg every four hours.", uc.capturedInput[0].Text)
	assert.Equal(t, []string{"analgesic", "NSAID"}, uc.capturedInput[0].Terms)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, []string{domain.JobStatusCompleted}, repo.statuses)
}

func TestProcessNextJob_ContextHasTimeout(t *testing.T) {
	uc := &stubIndexUsecase{}
	repo := &stubJobRepo{jobs: []*domain.IngestJob{makeIngestJob()}}

	w := NewJobWorker(repo, uc, testLogger())
	w.processNextJob()

	uc.mu.Lock()
	defer uc.mu.Unlock()

	require.NotNil(t, uc.capturedCtx, "Upsert should have been called")
	deadline, ok := uc.capturedCtx.Deadline()
	assert.True(t, ok, "context passed to Upsert must have a deadline")
	assert.WithinDuration(t, time.Now().Add(jobTimeout), deadline, 5*time.Second)
}

func TestProcessNextJob_DeleteJob(t *testing.T) {
	uc := &stubIndexUsecase{}
	repo := &stubJobRepo{jobs: []*domain.IngestJob{{
		ID:      uuid.New(),
		JobType: domain.JobTypeDeleteMonograph,
		Payload: map[string]interface{}{"name": "Aspirin"},
		Status:  domain.JobStatusProcessing,
	}}}

	w := NewJobWorker(repo, uc, testLogger())
	w.processNextJob()

	uc.mu.Lock()
	defer uc.mu.Unlock()
	assert.Equal(t, "Aspirin", uc.deletedName)
}

func TestProcessNextJob_MalformedPayloadFailsJob(t *testing.T) {
	uc := &stubIndexUsecase{}
	repo := &stubJobRepo{jobs: []*domain.IngestJob{{
		ID:      uuid.New(),
		JobType: domain.JobTypeIngestMonograph,
		Payload: map[string]interface{}{"name": "Aspirin"},
		Status:  domain.JobStatusProcessing,
	}}}

	w := NewJobWorker(repo, uc, testLogger())
	w.processNextJob()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, []string{domain.JobStatusFailed}, repo.statuses)
	assert.Empty(t, uc.capturedName)
}

func TestJobWorker_BacksOffOnConsecutiveFailures(t *testing.T) {
	repo := &stubJobRepo{
		jobs: []*domain.IngestJob{makeIngestJob(), makeIngestJob(), makeIngestJob()},
	}
	uc := &stubIndexUsecase{returnErr: errors.New("embedder unreachable")}

	w := NewJobWorker(repo, uc, testLogger())

	w.processNextJob()
	assert.Equal(t, initialBackoff, w.backoff)

	w.processNextJob()
	assert.Equal(t, 2*time.Second, w.backoff)

	w.processNextJob()
	assert.Equal(t, 4*time.Second, w.backoff)
}

func TestJobWorker_BackoffResetsOnSuccess(t *testing.T) {
	repo := &stubJobRepo{
		jobs: []*domain.IngestJob{makeIngestJob(), makeIngestJob()},
	}
	uc := &stubIndexUsecase{returnErr: errors.New("fail")}

	w := NewJobWorker(repo, uc, testLogger())

	w.processNextJob()
	assert.Equal(t, initialBackoff, w.backoff)

	uc.mu.Lock()
	uc.returnErr = nil
	uc.mu.Unlock()

	w.processNextJob()
	assert.Equal(t, time.Duration(0), w.backoff, "backoff should reset on success")
}

func TestJobWorker_BackoffCapsAtMax(t *testing.T) {
	w := NewJobWorker(nil, nil, testLogger())

	bo := time.Duration(0)
	for i := 0; i < 20; i++ {
		bo = w.nextBackoff(bo)
	}
	assert.Equal(t, maxBackoff, bo, "backoff must cap at maxBackoff")
}
