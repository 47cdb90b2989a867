package domain

import "context"

// VectorEncoder turns texts into embedding vectors. Implementations must
// return one vector per input text, in input order, L2-normalized so that
// inner product equals cosine similarity.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	// Version identifies the embedding model for logging and audits.
	Version() string
}
