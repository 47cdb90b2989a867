package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"monograph-rag/internal/domain"
)

// SearchConfig holds vector search stage parameters.
type SearchConfig struct {
	TopK int
	// MinSimilarity is a hard floor applied after the TopK limit. Hits
	// below it are dropped even if that empties the result set.
	MinSimilarity float32
}

// Search embeds the query, runs cosine top-K over the passage index and
// enriches surviving hits with their related terms (Stage 1).
//
// An empty result set is a valid outcome. A failed term lookup degrades the
// hit to an empty term list; only embedding and index errors are returned.
func Search(
	ctx context.Context,
	sc *StageContext,
	encoder domain.VectorEncoder,
	repo domain.PassageRepository,
	cfg SearchConfig,
	logger *slog.Logger,
) error {
	start := time.Now()

	embeddings, err := encoder.Encode(ctx, []string{sc.Query})
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return fmt.Errorf("encoder returned %d embeddings for one query", len(embeddings))
	}
	sc.QueryEmbedding = embeddings[0]

	hits, err := repo.SearchSimilar(ctx, sc.QueryEmbedding, cfg.TopK)
	if err != nil {
		return fmt.Errorf("failed to search passages: %w", err)
	}

	dropped := 0
	candidates := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < cfg.MinSimilarity {
			dropped++
			continue
		}

		terms, err := repo.GetRelatedTerms(ctx, hit.GroupName, hit.SectionName)
		if err != nil {
			logger.Warn("term_lookup_failed",
				slog.String("group", hit.GroupName),
				slog.String("section", hit.SectionName),
				slog.String("error", err.Error()))
			terms = nil
		}

		candidates = append(candidates, Candidate{
			PassageID:    hit.PassageID,
			GroupName:    hit.GroupName,
			SectionName:  hit.SectionName,
			Content:      hit.Content,
			WordCount:    hit.WordCount,
			TermCount:    hit.TermCount,
			RelatedTerms: terms,
			Similarity:   hit.Similarity,
		})
	}
	sc.Candidates = candidates

	logger.Info("vector_search_completed",
		slog.Int("hit_count", len(hits)),
		slog.Int("below_threshold", dropped),
		slog.Int("candidate_count", len(candidates)),
		slog.String("encoder", encoder.Version()),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return nil
}
