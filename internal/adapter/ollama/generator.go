package ollama

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

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generator sends prompts to Ollama's generate endpoint and returns the
// completed text. Streaming is deliberately off; callers get one response.
type Generator struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewGenerator constructs a generator for the given endpoint and model.
// The timeout bounds the whole generation call.
func NewGenerator(baseURL, model string, timeout time.Duration, logger *slog.Logger) *Generator {
	return &Generator{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  httpclient.NewPooledClient(timeout),
		logger:  logger,
	}
}

// Generate sends the prompt to Ollama and returns the model output.
func (g *Generator) Generate(ctx context.Context, prompt string, opts domain.GenerationOptions) (*domain.LLMResponse, error) {
	start := time.Now()

	options := map[string]interface{}{
		"temperature": opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}

	reqBody := generateRequest{
		Model:   g.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: options,
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", g.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		g.logger.Warn("generation_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("failed to call generate endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		g.logger.Warn("generation_bad_status",
			slog.Int("status_code", resp.StatusCode),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("generate endpoint returned %d: %s", resp.StatusCode, truncateString(string(body), 500))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("failed to decode generate response: %w", err)
	}

	g.logger.Info("generation_completed",
		slog.String("model", g.Model),
		slog.Bool("done", genResp.Done),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return &domain.LLMResponse{
		Text: strings.TrimSpace(genResp.Response),
		Done: genResp.Done,
	}, nil
}

// Version returns the wrapped model name.
func (g *Generator) Version() string {
	return g.Model
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var _ domain.LLMClient = (*Generator)(nil)
