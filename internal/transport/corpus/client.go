package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/document"
	"github.com/kailas-cloud/evidex/internal/domain/engine"
)

// Config holds the corpus retrieval service settings.
type Config struct {
	APIKey string
	// Timeout bounds one HTTP call. The retrieval coordinator applies its own
	// per-attempt deadline on top through the context.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client retrieves documents from per-engine corpus search endpoints.
// Each engine descriptor carries its own endpoint and corpus id.
type Client struct {
	apiKey string
	http   *http.Client
	logger *zap.Logger
}

// New creates a corpus search client.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: timeout},
		logger: cfg.Logger,
	}
}

type searchRequest struct {
	CorpusID string `json:"corpus_id"`
	Query    string `json:"query"`
	TopK     int    `json:"top_k"`
}

type searchResponse struct {
	Documents []wireDocument `json:"documents"`
}

type wireDocument struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Snippet    string  `json:"snippet"`
	Authority  string  `json:"authority"`
	Section    string  `json:"section"`
	SourceURI  string  `json:"source_uri"`
	SourceDate string  `json:"source_date"`
	Score      float64 `json:"score"`
}

// Retrieve implements retrieval.Retriever. Deadline hits are wrapped with
// domain.ErrRetrievalTimeout, everything else with domain.ErrRetrievalUnavailable,
// so the coordinator can tag the failure reason.
func (c *Client) Retrieve(ctx context.Context, eng engine.Descriptor, queryText string, topK int) ([]document.Document, error) {
	if topK <= 0 {
		topK = eng.DefaultTopK()
	}

	body, err := json.Marshal(searchRequest{CorpusID: eng.CorpusID(), Query: queryText, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("engine %s: marshal search request: %w", eng.ID(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, eng.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("engine %s: build search request: %w: %w", eng.ID(), domain.ErrRetrievalUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("engine %s: %w: %w", eng.ID(), domain.ErrRetrievalTimeout, err)
		}
		return nil, fmt.Errorf("engine %s: %w: %w", eng.ID(), domain.ErrRetrievalUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("engine %s: search API error %d: %s: %w",
			eng.ID(), resp.StatusCode, strings.TrimSpace(string(detail)), domain.ErrRetrievalUnavailable)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("engine %s: decode search response: %w: %w", eng.ID(), domain.ErrRetrievalUnavailable, err)
	}

	docs := make([]document.Document, 0, len(parsed.Documents))
	for _, wd := range parsed.Documents {
		doc, err := document.New(
			wd.ID, eng.ID(), wd.Title, wd.Snippet, wd.Authority,
			wd.Section, wd.SourceURI, parseSourceDate(wd.SourceDate), wd.Score,
		)
		if err != nil {
			c.logger.Warn("Dropping malformed corpus document",
				zap.String("engine", eng.ID()),
				zap.String("doc_id", wd.ID),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func parseSourceDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
