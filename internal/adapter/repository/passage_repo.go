package repository

import (
	"context"
	"fmt"

	"monograph-rag/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

type passageRepository struct {
	pool *pgxpool.Pool
}

// NewPassageRepository creates a new PassageRepository.
func NewPassageRepository(pool *pgxpool.Pool) domain.PassageRepository {
	return &passageRepository{pool: pool}
}

type dbExecutor interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *passageRepository) getExecutor(ctx context.Context) dbExecutor {
	tx := ExtractTx(ctx)
	if tx != nil {
		return tx
	}
	return r.pool
}

func (r *passageRepository) SearchSimilar(ctx context.Context, queryEmbedding []float32, limit int) ([]domain.PassageHit, error) {
	// <=> is cosine distance; similarity = 1 - distance.
	query := `
		SELECT id, group_name, section_name, content, word_count, term_count,
		       1 - (embedding <=> $1) AS similarity
		FROM passages
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar passages: %w", err)
	}
	defer rows.Close()

	var hits []domain.PassageHit
	for rows.Next() {
		var h domain.PassageHit
		if err := rows.Scan(&h.PassageID, &h.GroupName, &h.SectionName, &h.Content,
			&h.WordCount, &h.TermCount, &h.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan passage hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}

func (r *passageRepository) GetRelatedTerms(ctx context.Context, groupName, sectionName string) ([]string, error) {
	query := `
		SELECT pt.term
		FROM passage_terms pt
		JOIN passages p ON p.id = pt.passage_id
		WHERE p.group_name = $1 AND p.section_name = $2
		ORDER BY pt.ordinal ASC
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, groupName, sectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to query related terms: %w", err)
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		terms = append(terms, term)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return terms, nil
}

func (r *passageRepository) BulkInsertPassages(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(passages))
	for i, p := range passages {
		rows[i] = []interface{}{
			p.ID,
			p.MonographID,
			p.GroupName,
			p.SectionName,
			p.Content,
			p.ContentHash,
			p.WordCount,
			p.TermCount,
			p.Embedding,
			p.CreatedAt,
		}
	}

	_, err := r.getExecutor(ctx).CopyFrom(
		ctx,
		pgx.Identifier{"passages"},
		[]string{"id", "monograph_id", "group_name", "section_name", "content",
			"content_hash", "word_count", "term_count", "embedding", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert passages: %w", err)
	}

	return nil
}

func (r *passageRepository) ReplaceTerms(ctx context.Context, passageID uuid.UUID, terms []string) error {
	exec := r.getExecutor(ctx)

	if _, err := exec.Exec(ctx, `DELETE FROM passage_terms WHERE passage_id = $1`, passageID); err != nil {
		return fmt.Errorf("failed to delete stale terms: %w", err)
	}

	if len(terms) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(terms))
	for i, term := range terms {
		rows[i] = []interface{}{passageID, term, i}
	}

	_, err := exec.CopyFrom(
		ctx,
		pgx.Identifier{"passage_terms"},
		[]string{"passage_id", "term", "ordinal"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to insert terms: %w", err)
	}

	return nil
}

func (r *passageRepository) GetSectionHashes(ctx context.Context, monographID uuid.UUID) (map[string]string, error) {
	query := `
		SELECT section_name, content_hash
		FROM passages
		WHERE monograph_id = $1
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, monographID)
	if err != nil {
		return nil, fmt.Errorf("failed to query section hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var name, hash string
		if err := rows.Scan(&name, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan section hash: %w", err)
		}
		hashes[name] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hashes, nil
}

func (r *passageRepository) DeleteSections(ctx context.Context, monographID uuid.UUID, sectionNames []string) error {
	if len(sectionNames) == 0 {
		return nil
	}

	query := `
		DELETE FROM passages
		WHERE monograph_id = $1 AND section_name = ANY($2)
	`
	if _, err := r.getExecutor(ctx).Exec(ctx, query, monographID, sectionNames); err != nil {
		return fmt.Errorf("failed to delete sections: %w", err)
	}
	return nil
}

func (r *passageRepository) DeleteByMonographID(ctx context.Context, monographID uuid.UUID) error {
	query := `DELETE FROM passages WHERE monograph_id = $1`
	if _, err := r.getExecutor(ctx).Exec(ctx, query, monographID); err != nil {
		return fmt.Errorf("failed to delete passages: %w", err)
	}
	return nil
}

func (r *passageRepository) IndexStats(ctx context.Context) (int64, int, error) {
	query := `
		SELECT count(*), coalesce(max(vector_dims(embedding)), 0)
		FROM passages
	`
	var count int64
	var dimension int
	if err := r.getExecutor(ctx).QueryRow(ctx, query).Scan(&count, &dimension); err != nil {
		return 0, 0, fmt.Errorf("failed to query index stats: %w", err)
	}
	return count, dimension, nil
}
