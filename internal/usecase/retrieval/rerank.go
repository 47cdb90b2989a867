package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"monograph-rag/internal/domain"
)

// maxPairTerms caps the related terms included in a cross-encoder pair text.
const maxPairTerms = 20

// RerankConfig holds reranking stage parameters.
type RerankConfig struct {
	TopN    int
	Timeout time.Duration
	// PlainPairText scores against the bare passage text instead of the
	// enhanced representation.
	PlainPairText bool
}

// Rerank scores the candidates with the cross-encoder, orders them by
// relevance descending and truncates to TopN (Stage 2).
//
// The sort is stable: candidates with equal relevance keep their vector
// search order. When scoring fails the stage degrades to the vector order,
// still truncated to TopN, and logs a warning.
func Rerank(
	ctx context.Context,
	sc *StageContext,
	reranker domain.Reranker,
	cfg RerankConfig,
	logger *slog.Logger,
) {
	if len(sc.Candidates) == 0 {
		logger.Warn("rerank_skipped_no_candidates")
		return
	}

	start := time.Now()

	texts := make([]string, len(sc.Candidates))
	for i, cand := range sc.Candidates {
		texts[i] = PairText(cand, cfg.PlainPairText)
	}

	rerankCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	scores, err := reranker.Score(rerankCtx, sc.Query, texts)
	cancel()

	if err == nil && len(scores) != len(sc.Candidates) {
		err = fmt.Errorf("got %d scores for %d candidates", len(scores), len(sc.Candidates))
	}
	if err != nil {
		logger.Warn("reranking_failed_using_vector_order",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		sc.Candidates = truncate(sc.Candidates, cfg.TopN)
		return
	}

	for i := range sc.Candidates {
		sc.Candidates[i].Relevance = scores[i]
		sc.Candidates[i].Reranked = true
	}

	sort.SliceStable(sc.Candidates, func(i, j int) bool {
		return sc.Candidates[i].Relevance > sc.Candidates[j].Relevance
	})
	sc.Candidates = truncate(sc.Candidates, cfg.TopN)

	logger.Info("reranking_completed",
		slog.Int("scored_count", len(scores)),
		slog.Int("kept_count", len(sc.Candidates)),
		slog.String("model", reranker.ModelName()),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
}

// PairText builds the passage side of a (query, passage) cross-encoder pair.
// The enhanced form carries the group, section and first terms so the model
// sees the same signals the context assembly will present.
func PairText(cand Candidate, plain bool) string {
	if plain {
		return cand.Content
	}

	terms := cand.RelatedTerms
	if len(terms) > maxPairTerms {
		terms = terms[:maxPairTerms]
	}

	return fmt.Sprintf("Substance: %s\nSection: %s\nContent: %s\nRelated Medical Terms: %s",
		cand.GroupName, cand.SectionName, cand.Content, strings.Join(terms, ", "))
}

func truncate(candidates []Candidate, n int) []Candidate {
	if len(candidates) > n {
		return candidates[:n]
	}
	return candidates
}
