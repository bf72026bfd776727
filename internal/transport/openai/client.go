package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/metrics"
)

// Config holds the LLM provider settings shared by the analyzer and the
// synthesizer, which talk to the same OpenAI-compatible API (e.g. Nebius).
type Config struct {
	APIKey             string
	BaseURL            string
	AnalyzerModel      string
	SynthesizerModel   string
	ContextTokenBudget int
	Temperature        float32
	MaxTokens          int
	Timeout            time.Duration
	User               string
	Logger             *zap.Logger
}

func newClient(cfg *Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return openai.NewClientWithConfig(clientCfg)
}

func recordTokens(model, operation string, usage openai.Usage) {
	if usage.TotalTokens == 0 {
		return
	}
	metrics.LLMTokensTotal.WithLabelValues(model, operation, "prompt").Add(float64(usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(model, operation, "completion").Add(float64(usage.CompletionTokens))
	metrics.LLMTokensTotal.WithLabelValues(model, operation, "total").Add(float64(usage.TotalTokens))
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with the operation's sentinel for correct 502 mapping.
func parseAPIError(operation string, err, sentinel error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("%s API error %d: %s: %w",
			operation, reqErr.HTTPStatusCode, detail, sentinel)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w",
			operation, apiErr.HTTPStatusCode, apiErr.Message, sentinel)
	}

	return fmt.Errorf("%s request failed: %w", operation, sentinel)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
