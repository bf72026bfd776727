package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/query"
	"github.com/kailas-cloud/evidex/internal/metrics"
)

const analyzerSystemPrompt = `You analyze natural-language questions about Indian government policy (acts, government orders, court judgments, welfare schemes, education statistics).

Extract the question's structure and respond with a single JSON object:

{
  "entities": [{"type": "...", "text": "...", "normalized": "..."}],
  "facets": ["..."],
  "query_type": "...",
  "temporal": {"from": "", "to": ""},
  "enhanced_query": "...",
  "enhancement_confidence": "high|medium|low"
}

Entity types: act, go_number, case_citation, scheme, department, district, date, other.
For go_number entities normalize to "<series>:<number>", e.g. "G.O.Ms.No.54" -> "ms:54".
Facets are short lowercase subject tags (e.g. "transfer", "budget", "rte", "scholarship").
Query types: factual, procedural, comparative, eligibility, other.
Temporal bounds use YYYY-MM-DD and stay empty when the question has no time window.
The enhanced_query rephrases the question with the terminology of official documents:
add synonyms and domain terms likely to appear in acts, orders and circulars, keep it
natural and readable, and do not invent constraints the question does not state.`

// Analyzer extracts query features using an OpenAI-compatible chat API.
type Analyzer struct {
	client *openai.Client
	model  string
	user   string
	logger *zap.Logger
}

// NewAnalyzer creates an OpenAI-compatible query analyzer.
func NewAnalyzer(cfg *Config) *Analyzer {
	return &Analyzer{
		client: newClient(cfg),
		model:  cfg.AnalyzerModel,
		user:   cfg.User,
		logger: cfg.Logger,
	}
}

// analysisPayload mirrors the JSON contract of the analyzer prompt.
type analysisPayload struct {
	Entities []struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		Normalized string `json:"normalized"`
	} `json:"entities"`
	Facets    []string `json:"facets"`
	QueryType string   `json:"query_type"`
	Temporal  struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"temporal"`
	EnhancedQuery         string `json:"enhanced_query"`
	EnhancementConfidence string `json:"enhancement_confidence"`
}

// Analyze implements the orchestrator's Analyzer contract.
func (a *Analyzer) Analyze(ctx context.Context, queryText string) (query.FeatureSet, error) {
	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analyzerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: queryText},
		},
		Temperature:    0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		User:           a.user,
	}

	start := time.Now()

	resp, err := a.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(a.model, "analyze", "error").Inc()
		return query.FeatureSet{}, parseAPIError("analysis", err, domain.ErrAnalysisFailed)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(a.model, "analyze", "error").Inc()
		return query.FeatureSet{}, fmt.Errorf("empty analysis response: %w", domain.ErrAnalysisFailed)
	}

	metrics.LLMRequestsTotal.WithLabelValues(a.model, "analyze", "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(a.model, "analyze").Observe(duration.Seconds())
	recordTokens(a.model, "analyze", resp.Usage)

	features, err := parseAnalysis(queryText, resp.Choices[0].Message.Content)
	if err != nil {
		return query.FeatureSet{}, fmt.Errorf("parse analysis: %w: %w", domain.ErrAnalysisFailed, err)
	}

	a.logger.Debug("Query analyzed",
		zap.String("query_type", string(features.QueryType())),
		zap.Int("entities", len(features.Entities())),
		zap.Strings("facets", features.Facets()),
		zap.Float64("enhancement_confidence", features.EnhancedConfidence()),
	)
	return features, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (a *Analyzer) HealthCheck(ctx context.Context) error {
	if _, err := a.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func parseAnalysis(original, content string) (query.FeatureSet, error) {
	var payload analysisPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return query.FeatureSet{}, fmt.Errorf("unmarshal payload: %w", err)
	}

	entities := make([]query.Entity, 0, len(payload.Entities))
	for _, e := range payload.Entities {
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		t := query.EntityType(e.Type)
		if !t.IsValid() {
			t = query.EntityOther
		}
		entities = append(entities, query.Entity{Type: t, Text: e.Text, Normalized: e.Normalized})
	}

	qt := query.Type(payload.QueryType)
	if !qt.IsValid() {
		qt = query.TypeOther
	}

	enhanced := strings.TrimSpace(payload.EnhancedQuery)
	conf := enhancementConfidence(payload.EnhancementConfidence)
	if enhanced == "" {
		// Enhancement is best-effort; analysis still succeeds with the raw query.
		enhanced = original
		conf = query.EnhancementLow
	}

	return query.NewFeatureSet(
		original, entities, payload.Facets,
		parseTemporal(payload.Temporal.From, payload.Temporal.To),
		qt, enhanced, conf,
	)
}

func enhancementConfidence(tier string) float64 {
	tier = strings.ToLower(tier)
	switch {
	case strings.Contains(tier, "high"):
		return query.EnhancementHigh
	case strings.Contains(tier, "medium"):
		return query.EnhancementMedium
	default:
		return query.EnhancementLow
	}
}

func parseTemporal(from, to string) *query.TemporalRange {
	f, t := parseDate(from), parseDate(to)
	if f.IsZero() && t.IsZero() {
		return nil
	}
	if !f.IsZero() && !t.IsZero() && f.After(t) {
		f, t = t, f
	}
	return &query.TemporalRange{From: f, To: t}
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
