package retrieval

import (
	"github.com/google/uuid"
)

// Candidate is one passage moving through the retrieval stages.
type Candidate struct {
	PassageID    uuid.UUID
	GroupName    string
	SectionName  string
	Content      string
	WordCount    int
	TermCount    int
	RelatedTerms []string

	// Similarity is the cosine score from vector search.
	Similarity float32
	// Relevance is the cross-encoder score. Valid only when Reranked is true.
	Relevance float32
	Reranked  bool
}

// StageContext carries data between pipeline stages.
type StageContext struct {
	QueryID string
	Query   string

	// Stage 1 outputs
	QueryEmbedding []float32
	Candidates     []Candidate
}
