package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/evidence"
	"github.com/kailas-cloud/evidex/internal/metrics"
)

const synthesizerSystemPrompt = `You are a policy reasoning assistant for Indian government data.

Answer the query using ONLY the provided context documents.

Rules:
1. Ground every claim in evidence: each factual statement must be cited.
2. Use the strict citation format [vertical:doc_id:locator], copied from the document headers.
3. Be precise and factual. No speculation or information beyond the documents.
4. If sources disagree, state both views and identify the controlling authority.
5. If information is incomplete, explicitly say so.
6. Quote key clauses verbatim when they decide the answer (under 200 characters).

Start with a direct answer, support each claim with citations, and end with any
important caveats or limitations.`

const defaultTokenBudget = 6000

// Synthesizer generates grounded, citation-tagged answers using an
// OpenAI-compatible chat API.
type Synthesizer struct {
	client      *openai.Client
	model       string
	tokenBudget int
	temperature float32
	maxTokens   int
	user        string
	logger      *zap.Logger
	countTokens func(string) int
}

// NewSynthesizer creates an OpenAI-compatible answer synthesizer.
func NewSynthesizer(cfg *Config) *Synthesizer {
	budget := cfg.ContextTokenBudget
	if budget <= 0 {
		budget = defaultTokenBudget
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.1
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Synthesizer{
		client:      newClient(cfg),
		model:       cfg.SynthesizerModel,
		tokenBudget: budget,
		temperature: temperature,
		maxTokens:   maxTokens,
		user:        cfg.User,
		logger:      cfg.Logger,
		countTokens: newTokenCounter(cfg.SynthesizerModel),
	}
}

// Synthesize implements the orchestrator's Synthesizer contract.
func (s *Synthesizer) Synthesize(ctx context.Context, queryText string, evid []evidence.Item) (string, error) {
	if len(evid) == 0 {
		return "", fmt.Errorf("no evidence to synthesize from: %w", domain.ErrSynthesisFailed)
	}

	contextText, contextTokens, kept := s.buildContext(evid)
	prompt := fmt.Sprintf("Query: %s\n\nContext Documents:\n%s\n\nAnswer:", queryText, contextText)

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: synthesizerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
		User:        s.user,
	}

	start := time.Now()

	resp, err := s.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(s.model, "synthesize", "error").Inc()
		return "", parseAPIError("synthesis", err, domain.ErrSynthesisFailed)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.LLMRequestsTotal.WithLabelValues(s.model, "synthesize", "error").Inc()
		return "", fmt.Errorf("empty synthesis response: %w", domain.ErrSynthesisFailed)
	}

	metrics.LLMRequestsTotal.WithLabelValues(s.model, "synthesize", "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(s.model, "synthesize").Observe(duration.Seconds())
	recordTokens(s.model, "synthesize", resp.Usage)

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	s.logger.Debug("Answer synthesized",
		zap.Int("evidence_total", len(evid)),
		zap.Int("evidence_in_context", kept),
		zap.Int("context_tokens", contextTokens),
		zap.Int("answer_chars", len(answer)),
	)
	return answer, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (s *Synthesizer) HealthCheck(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// buildContext packs evidence into citation-tagged blocks up to the token
// budget, dropping whole lowest-rank items first. The top item is always kept.
func (s *Synthesizer) buildContext(evid []evidence.Item) (string, int, int) {
	var blocks []string
	used := 0
	for i := range evid {
		doc := evid[i].Document()
		header := fmt.Sprintf("[%s:%s:%s]", doc.EngineID(), doc.ID(), doc.Section())
		if !doc.SourceDate().IsZero() {
			header += " (Date: " + doc.SourceDate().Format("2006-01-02") + ")"
		}
		block := header + "\n" + doc.Title() + "\n" + doc.Snippet()

		cost := s.countTokens(block)
		if len(blocks) > 0 && used+cost > s.tokenBudget {
			break
		}
		blocks = append(blocks, block)
		used += cost
	}
	return strings.Join(blocks, "\n---\n"), used, len(blocks)
}

// newTokenCounter returns a tokenizer for the model, falling back to the
// cl100k_base encoding and then to a bytes/4 estimate when no BPE data is
// available.
func newTokenCounter(model string) func(string) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return func(text string) int { return len(text)/4 + 1 }
	}
	return func(text string) int { return len(enc.Encode(text, nil, nil)) }
}
