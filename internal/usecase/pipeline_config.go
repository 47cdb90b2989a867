package usecase

import (
	"fmt"
	"time"
)

// VectorSearchConfig holds settings for the vector search stage.
type VectorSearchConfig struct {
	// TopK is the number of nearest passages fetched from the index.
	TopK int
	// MinSimilarity is the hard relevance floor applied after the K limit.
	MinSimilarity float32
}

// DefaultVectorSearchConfig returns the production defaults.
func DefaultVectorSearchConfig() VectorSearchConfig {
	return VectorSearchConfig{
		TopK:          10,
		MinSimilarity: 0.3,
	}
}

// Validate checks if the vector search configuration is valid.
func (c VectorSearchConfig) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("topK must be positive, got %d", c.TopK)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("minSimilarity must be in [0, 1], got %f", c.MinSimilarity)
	}
	return nil
}

// RerankingConfig holds settings for cross-encoder reranking.
type RerankingConfig struct {
	// TopN is the number of passages kept after reranking.
	TopN int
	// Timeout is the maximum duration for reranking requests.
	Timeout time.Duration
	// PlainPairText scores bare passage text instead of the enhanced form.
	PlainPairText bool
}

// DefaultRerankingConfig returns the production defaults.
func DefaultRerankingConfig() RerankingConfig {
	return RerankingConfig{
		TopN:    3,
		Timeout: 30 * time.Second,
	}
}

// Validate checks if the reranking configuration is valid.
func (c RerankingConfig) Validate() error {
	if c.TopN <= 0 {
		return fmt.Errorf("topN must be positive, got %d", c.TopN)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("rerank timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// GenerationConfig holds settings for grounded answer generation.
type GenerationConfig struct {
	// Temperature is deliberately low; the model must stay on the sources.
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	// MaxContextChars bounds the assembled context before truncation.
	MaxContextChars int
}

// DefaultGenerationConfig returns the production defaults.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.1,
		MaxTokens:       1000,
		Timeout:         120 * time.Second,
		MaxContextChars: 8000,
	}
}

// Validate checks if the generation configuration is valid.
func (c GenerationConfig) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %f", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("maxTokens must be positive, got %d", c.MaxTokens)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("generation timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxContextChars <= 0 {
		return fmt.Errorf("maxContextChars must be positive, got %d", c.MaxContextChars)
	}
	return nil
}

// PipelineConfig groups the tunables of the whole query pipeline.
type PipelineConfig struct {
	Search     VectorSearchConfig
	Reranking  RerankingConfig
	Generation GenerationConfig
}

// DefaultPipelineConfig returns the production defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Search:     DefaultVectorSearchConfig(),
		Reranking:  DefaultRerankingConfig(),
		Generation: DefaultGenerationConfig(),
	}
}

// Validate checks every stage config and the cross-stage constraints.
func (c PipelineConfig) Validate() error {
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search config invalid: %w", err)
	}
	if err := c.Reranking.Validate(); err != nil {
		return fmt.Errorf("reranking config invalid: %w", err)
	}
	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("generation config invalid: %w", err)
	}
	if c.Reranking.TopN > c.Search.TopK {
		return fmt.Errorf("reranking topN (%d) must not exceed search topK (%d)",
			c.Reranking.TopN, c.Search.TopK)
	}
	return nil
}
