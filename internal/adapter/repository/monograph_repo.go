package repository

import (
	"context"
	"errors"
	"fmt"

	"monograph-rag/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type monographRepository struct {
	pool *pgxpool.Pool
}

// NewMonographRepository creates a new MonographRepository.
func NewMonographRepository(pool *pgxpool.Pool) domain.MonographRepository {
	return &monographRepository{pool: pool}
}

func (r *monographRepository) getExecutor(ctx context.Context) dbExecutor {
	tx := ExtractTx(ctx)
	if tx != nil {
		return tx
	}
	return r.pool
}

func (r *monographRepository) GetByName(ctx context.Context, name string) (*domain.Monograph, error) {
	query := `
		SELECT id, name, source_hash, section_count, created_at, updated_at
		FROM monographs
		WHERE name = $1
	`
	var m domain.Monograph
	err := r.getExecutor(ctx).QueryRow(ctx, query, name).Scan(
		&m.ID, &m.Name, &m.SourceHash, &m.SectionCount, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get monograph: %w", err)
	}
	return &m, nil
}

func (r *monographRepository) Upsert(ctx context.Context, m *domain.Monograph) error {
	query := `
		INSERT INTO monographs (id, name, source_hash, section_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (name) DO UPDATE
		SET source_hash = EXCLUDED.source_hash,
		    section_count = EXCLUDED.section_count,
		    updated_at = now()
	`
	_, err := r.getExecutor(ctx).Exec(ctx, query,
		m.ID, m.Name, m.SourceHash, m.SectionCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert monograph: %w", err)
	}
	return nil
}

func (r *monographRepository) Delete(ctx context.Context, name string) error {
	query := `DELETE FROM monographs WHERE name = $1`
	if _, err := r.getExecutor(ctx).Exec(ctx, query, name); err != nil {
		return fmt.Errorf("failed to delete monograph: %w", err)
	}
	return nil
}
