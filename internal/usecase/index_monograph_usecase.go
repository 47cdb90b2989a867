package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"monograph-rag/internal/domain"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
)

const (
	embedBatchSize   = 16
	embedConcurrency = 4
)

// IndexMonographUsecase maintains the passage index for one monograph at a
// time. Upsert is idempotent: unchanged sections are left alone, only added
// and updated sections are re-embedded.
type IndexMonographUsecase interface {
	Upsert(ctx context.Context, name string, sections []domain.SectionInput) error
	Delete(ctx context.Context, name string) error
}

type indexMonographUsecase struct {
	encoder    domain.VectorEncoder
	passages   domain.PassageRepository
	monographs domain.MonographRepository
	txManager  domain.TransactionManager
	hasher     domain.SourceHashPolicy
	logger     *slog.Logger
}

func NewIndexMonographUsecase(
	encoder domain.VectorEncoder,
	passages domain.PassageRepository,
	monographs domain.MonographRepository,
	txManager domain.TransactionManager,
	logger *slog.Logger,
) IndexMonographUsecase {
	return &indexMonographUsecase{
		encoder:    encoder,
		passages:   passages,
		monographs: monographs,
		txManager:  txManager,
		hasher:     domain.NewSourceHashPolicy(),
		logger:     logger,
	}
}

func (u *indexMonographUsecase) Upsert(ctx context.Context, name string, sections []domain.SectionInput) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("monograph name is empty")
	}
	if len(sections) == 0 {
		return errors.New("monograph has no sections")
	}
	// Section names are normalized here once; diffing, lookups and stored
	// rows all use the trimmed form.
	normalized := make([]domain.SectionInput, len(sections))
	seen := make(map[string]bool, len(sections))
	for i, s := range sections {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return errors.New("section name is empty")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate section name: %s", s.Name)
		}
		seen[s.Name] = true
		normalized[i] = s
	}
	sections = normalized

	start := time.Now()

	sourceHash := u.hasher.ComputeMonograph(name, sections)

	existing, err := u.monographs.GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("get monograph: %w", err)
	}

	monographID := uuid.New()
	stored := map[string]string{}
	if existing != nil {
		if existing.SourceHash == sourceHash {
			u.logger.Info("monograph_unchanged", slog.String("name", name))
			return nil
		}
		monographID = existing.ID
		stored, err = u.passages.GetSectionHashes(ctx, monographID)
		if err != nil {
			return fmt.Errorf("get section hashes: %w", err)
		}
	}

	events := domain.DiffSections(stored, sections, u.hasher)

	byName := make(map[string]domain.SectionInput, len(sections))
	for _, s := range sections {
		byName[s.Name] = s
	}

	var toEmbed []domain.SectionInput
	var toDelete []string
	counts := map[domain.SectionEventType]int{}
	for _, ev := range events {
		counts[ev.Type]++
		switch ev.Type {
		case domain.SectionAdded:
			toEmbed = append(toEmbed, byName[ev.Name])
		case domain.SectionUpdated:
			toEmbed = append(toEmbed, byName[ev.Name])
			toDelete = append(toDelete, ev.Name)
		case domain.SectionDeleted:
			toDelete = append(toDelete, ev.Name)
		}
	}

	u.logger.Info("monograph_diff_computed",
		slog.String("name", name),
		slog.Int("added", counts[domain.SectionAdded]),
		slog.Int("updated", counts[domain.SectionUpdated]),
		slog.Int("unchanged", counts[domain.SectionUnchanged]),
		slog.Int("deleted", counts[domain.SectionDeleted]))

	// Embedding happens before the transaction so the model round trips do
	// not hold database locks.
	passages, err := u.embedSections(ctx, name, monographID, toEmbed)
	if err != nil {
		return fmt.Errorf("embed sections: %w", err)
	}

	err = u.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// The monograph row must exist before the passages reference it.
		if err := u.monographs.Upsert(txCtx, &domain.Monograph{
			ID:           monographID,
			Name:         name,
			SourceHash:   sourceHash,
			SectionCount: len(sections),
		}); err != nil {
			return fmt.Errorf("upsert monograph: %w", err)
		}
		if len(toDelete) > 0 {
			if err := u.passages.DeleteSections(txCtx, monographID, toDelete); err != nil {
				return fmt.Errorf("delete sections: %w", err)
			}
		}
		if len(passages) > 0 {
			if err := u.passages.BulkInsertPassages(txCtx, passages); err != nil {
				return fmt.Errorf("insert passages: %w", err)
			}
			for _, p := range passages {
				if err := u.passages.ReplaceTerms(txCtx, p.ID, byName[p.SectionName].Terms); err != nil {
					return fmt.Errorf("replace terms for %s: %w", p.SectionName, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	u.logger.Info("monograph_indexed",
		slog.String("name", name),
		slog.Int("sections_embedded", len(passages)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	return nil
}

func (u *indexMonographUsecase) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("monograph name is empty")
	}

	existing, err := u.monographs.GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("get monograph: %w", err)
	}
	if existing == nil {
		u.logger.Info("monograph_not_found", slog.String("name", name))
		return nil
	}

	err = u.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := u.passages.DeleteByMonographID(txCtx, existing.ID); err != nil {
			return fmt.Errorf("delete passages: %w", err)
		}
		if err := u.monographs.Delete(txCtx, name); err != nil {
			return fmt.Errorf("delete monograph: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	u.logger.Info("monograph_deleted", slog.String("name", name))
	return nil
}

func (u *indexMonographUsecase) embedSections(ctx context.Context, groupName string, monographID uuid.UUID, sections []domain.SectionInput) ([]domain.Passage, error) {
	if len(sections) == 0 {
		return nil, nil
	}

	passages := make([]domain.Passage, len(sections))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for batchStart := 0; batchStart < len(sections); batchStart += embedBatchSize {
		batchEnd := min(batchStart+embedBatchSize, len(sections))
		batch := sections[batchStart:batchEnd]
		offset := batchStart

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, s := range batch {
				texts[i] = EmbedText(s.Text, s.Terms)
			}
			embeddings, err := u.encoder.Encode(gCtx, texts)
			if err != nil {
				return err
			}
			if len(embeddings) != len(batch) {
				return fmt.Errorf("embedding count mismatch: got %d want %d", len(embeddings), len(batch))
			}
			now := time.Now()
			for i, s := range batch {
				passages[offset+i] = domain.Passage{
					ID:          uuid.New(),
					MonographID: monographID,
					GroupName:   groupName,
					SectionName: s.Name,
					Content:     s.Text,
					ContentHash: u.hasher.ComputeSection(s.Text),
					WordCount:   len(strings.Fields(s.Text)),
					TermCount:   len(s.Terms),
					Embedding:   pgvector.NewVector(embeddings[i]),
					CreatedAt:   now,
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return passages, nil
}

// EmbedText builds the text actually sent to the embedding model. Terms are
// appended so lexical signals from curation survive into the vector space.
func EmbedText(text string, terms []string) string {
	if len(terms) == 0 {
		return text
	}
	return text + "\n\nKey medical terms: " + strings.Join(terms, ", ")
}
