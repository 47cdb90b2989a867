package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"monograph-rag/internal/domain"
	"monograph-rag/internal/infra/httpclient"
)

// RerankRequest is the request payload for the rerank endpoint.
type RerankRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Model      string   `json:"model,omitempty"`
}

// RerankResponseResult is a single result in the rerank response.
type RerankResponseResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// RerankResponse is the response from the rerank endpoint.
type RerankResponse struct {
	Results []RerankResponseResult `json:"results"`
	Model   string                 `json:"model"`
}

// Client implements domain.Reranker via HTTP calls to the cross-encoder
// sidecar service.
type Client struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewClient constructs a reranker client. baseURL is the sidecar URL and
// model the cross-encoder name (e.g. ms-marco-MiniLM-L-6-v2).
func NewClient(baseURL, model string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  httpclient.NewPooledClient(timeout),
		logger:  logger,
	}
}

// Score sends all query/text pairs in one batch and returns the relevance
// scores aligned with the input order.
func (c *Client) Score(ctx context.Context, query string, texts []string) ([]float32, error) {
	if len(texts) == 0 {
		return []float32{}, nil
	}

	start := time.Now()
	c.logger.Info("reranking_started",
		slog.String("query", truncateString(query, 100)),
		slog.Int("candidate_count", len(texts)),
		slog.String("model", c.Model))

	reqBody := RerankRequest{
		Query:      query,
		Candidates: texts,
		Model:      c.Model,
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/rerank", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		c.logger.Warn("reranking_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("failed to call rerank endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("reranking_failed",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", truncateString(string(body), 500)),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("rerank endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var rerankResp RerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rerankResp); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	if len(rerankResp.Results) != len(texts) {
		return nil, fmt.Errorf("rerank endpoint returned %d results for %d candidates",
			len(rerankResp.Results), len(texts))
	}

	// The sidecar returns results sorted by score; map them back to input order.
	scores := make([]float32, len(texts))
	seen := make([]bool, len(texts))
	for _, r := range rerankResp.Results {
		if r.Index < 0 || r.Index >= len(texts) {
			return nil, fmt.Errorf("invalid result index %d for %d candidates", r.Index, len(texts))
		}
		if seen[r.Index] {
			return nil, fmt.Errorf("duplicate result index %d", r.Index)
		}
		seen[r.Index] = true
		scores[r.Index] = r.Score
	}

	c.logger.Info("reranking_completed",
		slog.Int("result_count", len(scores)),
		slog.String("model", c.Model),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return scores, nil
}

// ModelName returns the model identifier for logging/debugging.
func (c *Client) ModelName() string {
	return c.Model
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var _ domain.Reranker = (*Client)(nil)
