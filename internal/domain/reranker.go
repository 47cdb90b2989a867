package domain

import "context"

// Reranker scores query/passage pairs with a cross-encoder model.
//
// Unlike bi-encoder similarity, the cross-encoder sees query and passage
// together, which is slower but considerably more precise. Score returns one
// relevance score per text, aligned with the input order; it never reorders.
type Reranker interface {
	Score(ctx context.Context, query string, texts []string) ([]float32, error)
	// ModelName returns the cross-encoder identifier for logging.
	ModelName() string
}
