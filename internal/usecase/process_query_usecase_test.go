package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"monograph-rag/internal/domain"
	"monograph-rag/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func queryTestHits() []domain.PassageHit {
	return []domain.PassageHit{
		{
			PassageID:   uuid.New(),
			GroupName:   "Aspirin",
			SectionName: "Dosage",
			Content:     "Typical adult dose is 325 to 650 mg every four hours.",
			Similarity:  0.91,
		},
		{
			PassageID:   uuid.New(),
			GroupName:   "Aspirin",
			SectionName: "Interactions",
			Content:     "Concurrent use with warfarin increases bleeding risk.",
			Similarity:  0.84,
		},
	}
}

func newQueryUsecase(encoder *mockEncoder, passages *mockPassageRepo, reranker *mockReranker, llm *mockLLMClient) usecase.ProcessQueryUsecase {
	return usecase.NewProcessQueryUsecase(
		encoder, passages, reranker, llm,
		usecase.DefaultPipelineConfig(), testLogger())
}

func TestProcessQuery_Success(t *testing.T) {
	encoder := new(mockEncoder)
	passages := new(mockPassageRepo)
	reranker := new(mockReranker)
	llm := new(mockLLMClient)

	encoder.On("Encode", mock.Anything, []string{"what is the aspirin dose"}).
		Return([][]float32{{0.1, 0.2, 0.3}}, nil)
	passages.On("SearchSimilar", mock.Anything, []float32{0.1, 0.2, 0.3}, 10).
		Return(queryTestHits(), nil)
	passages.On("GetRelatedTerms", mock.Anything, "Aspirin", "Dosage").
		Return([]string{"analgesic", "NSAID"}, nil)
	passages.On("GetRelatedTerms", mock.Anything, "Aspirin", "Interactions").
		Return([]string{"warfarin"}, nil)
	// Scores flip the vector order: the interactions passage wins.
	reranker.On("Score", mock.Anything, "what is the aspirin dose", mock.Anything).
		Return([]float32{0.2, 0.9}, nil)
	llm.On("Generate", mock.Anything, mock.Anything, domain.GenerationOptions{Temperature: 0.1, MaxTokens: 1000}).
		Return(&domain.LLMResponse{Text: "According to Aspirin (Dosage), 325 to 650 mg.", Done: true}, nil)

	uc := newQueryUsecase(encoder, passages, reranker, llm)
	result := uc.Execute(context.Background(), usecase.ProcessQueryInput{Query: "what is the aspirin dose"})

	require.NotNil(t, result)
	assert.Empty(t, result.Error)
	assert.Equal(t, "According to Aspirin (Dosage), 325 to 650 mg.", result.Answer)

	require.Len(t, result.Sources, 2)
	assert.Equal(t, "Interactions", result.Sources[0].SectionName)
	assert.Equal(t, "Dosage", result.Sources[1].SectionName)
	assert.InDelta(t, 0.84, result.Sources[0].Similarity, 0.001)
	require.NotNil(t, result.Sources[0].Relevance)
	assert.InDelta(t, 0.9, *result.Sources[0].Relevance, 0.001)

	assert.GreaterOrEqual(t, result.Timing.Total,
		result.Timing.VectorSearch+result.Timing.Rerank+result.Timing.Generation)
}

func TestProcessQuery_PromptContainsSources(t *testing.T) {
	encoder := new(mockEncoder)
	passages := new(mockPassageRepo)
	reranker := new(mockReranker)
	llm := new(mockLLMClient)

	encoder.On("Encode", mock.Anything, mock.Anything).
		Return([][]float32{{0.1}}, nil)
	passages.On("SearchSimilar", mock.Anything, mock.Anything, 10).
		Return(queryTestHits(), nil)
	passages.On("GetRelatedTerms", mock.Anything, mock.Anything, mock.Anything).
		Return([]string{}, nil)
	reranker.On("Score", mock.Anything, mock.Anything, mock.Anything).
		Return([]float32{0.8, 0.1}, nil)

	var prompt string
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		prompt = p
		return true
	}), mock.Anything).Return(&domain.LLMResponse{Text: "ok", Done: true}, nil)

	uc := newQueryUsecase(encoder, passages, reranker, llm)
	result := uc.Execute(context.Background(), usecase.ProcessQueryInput{Query: "aspirin"})

	assert.Empty(t, result.Error)
	assert.Contains(t, prompt, "[Source 1]")
	assert.Contains(t, prompt, "Substance: Aspirin")
	assert.Contains(t, prompt, "User Question: aspirin")
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))
}

func TestProcessQuery_EmptyQuery(t *testing.T) {
	encoder := new(mockEncoder)
	passages := new(mockPassageRepo)
	reranker := new(mockReranker)
	llm := new(mockLLMClient)

	uc := newQueryUsecase(encoder, passages, reranker, llm)
	result := uc.Execute(context.Background(), usecase.ProcessQueryInput{Query: "   "})

	assert.Equal(t, "Please provide a question.", result.Answer)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.Sources)
	encoder.AssertNotCalled(t, "Encode", mock.Anything, mock.Anything)
	llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessQuery_NoCandidatesSkipsGeneration(t *testing.T) {
	encoder := new(mockEncoder)
	passages := new(mockPassageRepo)
	reranker := new(mockReranker)
	llm := new(mockLLMClient)

	encoder.On("Encode", mock.Anything, mock.Anything).
		Return([][]float32{{0.1}}, nil)
	passages.On("SearchSimilar", mock.Anything, mock.Anything, 10).
		Return([]domain.PassageHit{}, nil)

	uc := newQueryUsecase(encoder, passages, reranker, llm)
	result := uc.Execute(context.Background(), usecase.ProcessQueryInput{Query: "obscure question"})

	assert.Equal(t, "I couldn't find any relevant information in my knowledge base for this question.", result.Answer)
	assert.Empty(t, result.Error)
	assert.Empty(t, result.Sources)
	reranker.AssertNotCalled(t, "Score", mock.Anything, mock.Anything, mock.Anything)
	llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessQuery_SearchFailure(t *testing.T) {
	encoder := new(mockEncoder)
	passages := new(mockPassageRepo)
	reranker := new(mockReranker)
	llm := new(mockLLMClient)

	encoder.On("Encode", mock.Anything, mock.Anything).
		Return(nil, errors.New("embedding service unavailable"))

	uc := newQueryUsecase(encoder, passages, reranker, llm)
	result := uc.Execute(context.Background(), usecase.ProcessQueryInput{Query: "aspirin"})

	assert.Equal(t, "An error occurred while processing your question. Please try again.", result.Answer)
	assert.Contains(t, result.Error, "embedding service unavailable")
	assert.Empty(t, result.Sources)
	llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessQuery_GenerationFailure(t *testing.T) {
	encoder := new(mockEncoder)
	passages := new(mockPassageRepo)
	reranker := new(mockReranker)
	llm := new(mockLLMClient)

	encoder.On("Encode", mock.Anything, mock.Anything).
		Return([][]float32{{0.1}}, nil)
	passages.On("SearchSimilar", mock.Anything, mock.Anything, 10).
		Return(queryTestHits(), nil)
	passages.On("GetRelatedTerms", mock.Anything, mock.Anything, mock.Anything).
		Return([]string{}, nil)
	reranker.On("Score", mock.Anything, mock.Anything, mock.Anything).
		Return([]float32{0.9, 0.1}, nil)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("model crashed"))

	uc := newQueryUsecase(encoder, passages, reranker, llm)
	result := uc.Execute(context.Background(), usecase.ProcessQueryInput{Query: "aspirin"})

	assert.Equal(t, "Error generating answer. Please try again.", result.Answer)
	assert.Contains(t, result.Error, "model crashed")
	assert.Empty(t, result.Sources)
}

func TestProcessQuery_GenerationTimeout(t *testing.T) {
	encoder := new(mockEncoder)
	passages := new(mockPassageRepo)
	reranker := new(mockReranker)
	llm := new(mockLLMClient)

	encoder.On("Encode", mock.Anything, mock.Anything).
		Return([][]float32{{0.1}}, nil)
	passages.On("SearchSimilar", mock.Anything, mock.Anything, 10).
		Return(queryTestHits(), nil)
	passages.On("GetRelatedTerms", mock.Anything, mock.Anything, mock.Anything).
		Return([]string{}, nil)
	reranker.On("Score", mock.Anything, mock.Anything, mock.Anything).
		Return([]float32{0.9, 0.1}, nil)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, context.DeadlineExceeded)

	uc := newQueryUsecase(encoder, passages, reranker, llm)
	result := uc.Execute(context.Background(), usecase.ProcessQueryInput{Query: "aspirin"})

	assert.Equal(t, "Answer generation timed out. Please try again with a simpler question.", result.Answer)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.Sources)
}

func TestProcessQuery_RerankFailureFallsBackToVectorOrder(t *testing.T) {
	encoder := new(mockEncoder)
	passages := new(mockPassageRepo)
	reranker := new(mockReranker)
	llm := new(mockLLMClient)

	encoder.On("Encode", mock.Anything, mock.Anything).
		Return([][]float32{{0.1}}, nil)
	passages.On("SearchSimilar", mock.Anything, mock.Anything, 10).
		Return(queryTestHits(), nil)
	passages.On("GetRelatedTerms", mock.Anything, mock.Anything, mock.Anything).
		Return([]string{}, nil)
	reranker.On("Score", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("reranker down"))
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "fallback answer", Done: true}, nil)

	uc := newQueryUsecase(encoder, passages, reranker, llm)
	result := uc.Execute(context.Background(), usecase.ProcessQueryInput{Query: "aspirin"})

	assert.Empty(t, result.Error)
	assert.Equal(t, "fallback answer", result.Answer)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "Dosage", result.Sources[0].SectionName)
	assert.Nil(t, result.Sources[0].Relevance)
}

func TestProcessQuery_LogsCarryQueryIDAndStage(t *testing.T) {
	encoder := new(mockEncoder)
	passages := new(mockPassageRepo)
	reranker := new(mockReranker)
	llm := new(mockLLMClient)

	encoder.On("Encode", mock.Anything, mock.Anything).
		Return([][]float32{{0.1}}, nil)
	passages.On("SearchSimilar", mock.Anything, mock.Anything, 10).
		Return(queryTestHits(), nil)
	passages.On("GetRelatedTerms", mock.Anything, mock.Anything, mock.Anything).
		Return([]string{}, nil)
	reranker.On("Score", mock.Anything, mock.Anything, mock.Anything).
		Return([]float32{0.9, 0.1}, nil)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "answer", Done: true}, nil)

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	uc := usecase.NewProcessQueryUsecase(
		encoder, passages, reranker, llm,
		usecase.DefaultPipelineConfig(), log)
	result := uc.Execute(context.Background(), usecase.ProcessQueryInput{Query: "aspirin"})
	require.Empty(t, result.Error)

	logged := buf.String()
	assert.Contains(t, logged, `"query.id":"`+result.QueryID+`"`)
	assert.Contains(t, logged, `"pipeline.stage":"vector_search"`)
	assert.Contains(t, logged, `"pipeline.stage":"rerank"`)
}

func TestProcessQuery_IncompleteResponseIsFailure(t *testing.T) {
	encoder := new(mockEncoder)
	passages := new(mockPassageRepo)
	reranker := new(mockReranker)
	llm := new(mockLLMClient)

	encoder.On("Encode", mock.Anything, mock.Anything).
		Return([][]float32{{0.1}}, nil)
	passages.On("SearchSimilar", mock.Anything, mock.Anything, 10).
		Return(queryTestHits(), nil)
	passages.On("GetRelatedTerms", mock.Anything, mock.Anything, mock.Anything).
		Return([]string{}, nil)
	reranker.On("Score", mock.Anything, mock.Anything, mock.Anything).
		Return([]float32{0.9, 0.1}, nil)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "partial", Done: false}, nil)

	uc := newQueryUsecase(encoder, passages, reranker, llm)
	result := uc.Execute(context.Background(), usecase.ProcessQueryInput{Query: "aspirin"})

	assert.Equal(t, "Error generating answer. Please try again.", result.Answer)
	assert.Contains(t, result.Error, "incomplete")
	assert.Empty(t, result.Sources)
}
