package domain

import (
	"context"

	"github.com/google/uuid"
)

// PassageRepository provides access to the passage store and its vector index.
type PassageRepository interface {
	// SearchSimilar returns the limit nearest passages by cosine similarity,
	// ordered best first. Filtering by similarity floor is the caller's job.
	SearchSimilar(ctx context.Context, queryEmbedding []float32, limit int) ([]PassageHit, error)

	// GetRelatedTerms returns the curated terms linked to one passage,
	// in their stored order.
	GetRelatedTerms(ctx context.Context, groupName, sectionName string) ([]string, error)

	BulkInsertPassages(ctx context.Context, passages []Passage) error
	ReplaceTerms(ctx context.Context, passageID uuid.UUID, terms []string) error

	// GetSectionHashes maps section name to content hash for one monograph.
	GetSectionHashes(ctx context.Context, monographID uuid.UUID) (map[string]string, error)

	DeleteSections(ctx context.Context, monographID uuid.UUID, sectionNames []string) error
	DeleteByMonographID(ctx context.Context, monographID uuid.UUID) error

	// IndexStats reports the passage count and the stored embedding
	// dimension (0 when the index is empty).
	IndexStats(ctx context.Context) (count int64, dimension int, err error)
}

// MonographRepository persists monograph records.
type MonographRepository interface {
	GetByName(ctx context.Context, name string) (*Monograph, error)
	Upsert(ctx context.Context, m *Monograph) error
	Delete(ctx context.Context, name string) error
}

// IngestJobRepository is the queue backing the background ingest worker.
type IngestJobRepository interface {
	Enqueue(ctx context.Context, job *IngestJob) error
	// AcquireNextJob atomically claims the oldest new job, or returns nil
	// when the queue is empty.
	AcquireNextJob(ctx context.Context) (*IngestJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error
}

// TransactionManager runs fn inside a database transaction. The transaction
// is injected into the context passed to fn; repositories pick it up there.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
