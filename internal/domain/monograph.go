package domain

import (
	"time"

	"github.com/google/uuid"
)

// Monograph is the top-level knowledge base entry for a single substance.
type Monograph struct {
	ID           uuid.UUID
	Name         string
	SourceHash   string
	SectionCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SectionInput is one section of a monograph as supplied by ingestion,
// before embedding.
type SectionInput struct {
	Name  string
	Text  string
	Terms []string
}

// IngestJob is a queued unit of ingestion work. Payload carries the
// job-type specific fields.
type IngestJob struct {
	ID           uuid.UUID
	JobType      string
	Payload      map[string]interface{}
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	JobTypeIngestMonograph = "ingest_monograph"
	JobTypeDeleteMonograph = "delete_monograph"

	JobStatusNew        = "new"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)
