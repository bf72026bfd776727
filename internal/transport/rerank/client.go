package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/document"
	"github.com/kailas-cloud/evidex/internal/usecase/fusion"
)

// Config holds the reranking service settings.
type Config struct {
	// Endpoint is the full rerank URL, e.g. "https://api.jina.ai/v1/rerank".
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// Client calls a Cohere/Jina-compatible rerank API.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
	logger   *zap.Logger
}

// New creates a rerank API client.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		http:     &http.Client{Timeout: timeout},
		logger:   cfg.Logger,
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	TopN      int      `json:"top_n"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank implements fusion.Reranker. All failures are wrapped with
// domain.ErrRerankUnavailable so fusion falls back to normalized scores.
func (c *Client) Rerank(ctx context.Context, query string, candidates []document.Document) ([]fusion.RankedCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	docs := make([]string, len(candidates))
	for i := range candidates {
		docs[i] = strings.TrimSpace(candidates[i].Title() + "\n" + candidates[i].Snippet())
	}

	body, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		TopN:      len(candidates),
		Documents: docs,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w: %w", domain.ErrRerankUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank API error %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(detail)), domain.ErrRerankUnavailable)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w: %w", domain.ErrRerankUnavailable, err)
	}

	out := make([]fusion.RankedCandidate, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, fusion.RankedCandidate{Index: r.Index, Score: r.RelevanceScore})
	}

	c.logger.Debug("Candidates reranked",
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(out)),
	)
	return out, nil
}

// HealthCheck probes the rerank endpoint with a one-document request.
func (c *Client) HealthCheck(ctx context.Context) error {
	probe := document.Reconstruct("probe", "health", "probe", "probe", "", "", "", time.Time{}, 0)
	if _, err := c.Rerank(ctx, "probe", []document.Document{probe}); err != nil {
		return err
	}
	return nil
}
