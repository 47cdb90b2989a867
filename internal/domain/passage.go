package domain

import (
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
)

// Passage is one named section of a monograph. The (GroupName, SectionName)
// pair uniquely identifies it across the whole corpus.
type Passage struct {
	ID          uuid.UUID
	MonographID uuid.UUID
	GroupName   string
	SectionName string
	Content     string
	ContentHash string
	WordCount   int
	TermCount   int
	Embedding   pgvector.Vector
	CreatedAt   time.Time
}

// PassageHit is a passage returned by vector search, scored by cosine
// similarity against the query embedding. RelatedTerms is filled by the
// enrichment step and may be empty when the term lookup fails.
type PassageHit struct {
	PassageID    uuid.UUID
	GroupName    string
	SectionName  string
	Content      string
	WordCount    int
	TermCount    int
	RelatedTerms []string
	Similarity   float32
}

// Source identifies where an answer statement came from. Relevance is nil
// until the candidate has passed through cross-encoder scoring.
type Source struct {
	GroupName   string
	SectionName string
	Similarity  float32
	Relevance   *float32
}
