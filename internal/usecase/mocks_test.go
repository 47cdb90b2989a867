package usecase_test

import (
	"context"
	"io"
	"log/slog"

	"monograph-rag/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type mockEncoder struct {
	mock.Mock
}

func (m *mockEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *mockEncoder) Version() string {
	return "mock-encoder"
}

type mockPassageRepo struct {
	mock.Mock
}

func (m *mockPassageRepo) SearchSimilar(ctx context.Context, queryEmbedding []float32, limit int) ([]domain.PassageHit, error) {
	args := m.Called(ctx, queryEmbedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PassageHit), args.Error(1)
}

func (m *mockPassageRepo) GetRelatedTerms(ctx context.Context, groupName, sectionName string) ([]string, error) {
	args := m.Called(ctx, groupName, sectionName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockPassageRepo) BulkInsertPassages(ctx context.Context, passages []domain.Passage) error {
	return m.Called(ctx, passages).Error(0)
}

func (m *mockPassageRepo) ReplaceTerms(ctx context.Context, passageID uuid.UUID, terms []string) error {
	return m.Called(ctx, passageID, terms).Error(0)
}

func (m *mockPassageRepo) GetSectionHashes(ctx context.Context, monographID uuid.UUID) (map[string]string, error) {
	args := m.Called(ctx, monographID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *mockPassageRepo) DeleteSections(ctx context.Context, monographID uuid.UUID, sectionNames []string) error {
	return m.Called(ctx, monographID, sectionNames).Error(0)
}

func (m *mockPassageRepo) DeleteByMonographID(ctx context.Context, monographID uuid.UUID) error {
	return m.Called(ctx, monographID).Error(0)
}

func (m *mockPassageRepo) IndexStats(ctx context.Context) (int64, int, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Int(1), args.Error(2)
}

type mockReranker struct {
	mock.Mock
}

func (m *mockReranker) Score(ctx context.Context, query string, texts []string) ([]float32, error) {
	args := m.Called(ctx, query, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *mockReranker) ModelName() string {
	return "mock-reranker"
}

type mockLLMClient struct {
	mock.Mock
}

func (m *mockLLMClient) Generate(ctx context.Context, prompt string, opts domain.GenerationOptions) (*domain.LLMResponse, error) {
	args := m.Called(ctx, prompt, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LLMResponse), args.Error(1)
}

func (m *mockLLMClient) Version() string {
	return "mock-llm"
}

type mockMonographRepo struct {
	mock.Mock
}

func (m *mockMonographRepo) GetByName(ctx context.Context, name string) (*domain.Monograph, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Monograph), args.Error(1)
}

func (m *mockMonographRepo) Upsert(ctx context.Context, monograph *domain.Monograph) error {
	return m.Called(ctx, monograph).Error(0)
}

func (m *mockMonographRepo) Delete(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

// mockTxManager runs the callback directly on the supplied context.
type mockTxManager struct {
	calls int
}

func (m *mockTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}
