package evidex

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	llmAPIKey        string
	llmBaseURL       string
	analyzerModel    string
	synthesizerModel string

	rerankEndpoint string
	rerankAPIKey   string
	rerankModel    string

	corpusAPIKey string

	engines []EngineSpec

	maxEngines     int
	requestTimeout time.Duration
	cacheTTL       time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// EngineSpec declares one retrieval engine (vertical) for the client.
// ID, CorpusID and Endpoint are required; everything else falls back to
// the same defaults the server applies.
type EngineSpec struct {
	ID               string
	Name             string
	CorpusID         string
	Endpoint         string
	BaseWeight       float64
	Priority         int
	FacetAffinities  []string
	EntityAffinities []string
	RecencyBoost     float64
	CoverageFrom     string // YYYY-MM-DD, empty = open
	CoverageTo       string // YYYY-MM-DD, empty = open
	TopK             int
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithLLM sets the OpenAI-compatible API credentials for query analysis
// and answer synthesis. Pass an empty baseURL for the default endpoint.
func WithLLM(apiKey, baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.llmAPIKey = apiKey
		c.llmBaseURL = baseURL
	})
}

// WithModels overrides the analyzer and synthesizer model names.
func WithModels(analyzer, synthesizer string) Option {
	return optionFunc(func(c *clientConfig) {
		c.analyzerModel = analyzer
		c.synthesizerModel = synthesizer
	})
}

// WithReranker sets the Cohere/Jina-compatible rerank API. Pass an empty
// model for the default.
func WithReranker(endpoint, apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.rerankEndpoint = endpoint
		c.rerankAPIKey = apiKey
		c.rerankModel = model
	})
}

// WithCorpusKey sets the API key sent to per-engine corpus search endpoints.
func WithCorpusKey(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.corpusAPIKey = apiKey
	})
}

// WithEngines declares the retrieval engines available to the planner.
// At least one engine is required.
func WithEngines(engines ...EngineSpec) Option {
	return optionFunc(func(c *clientConfig) {
		c.engines = append(c.engines, engines...)
	})
}

// WithMaxEngines caps how many engines one plan may select. Default: 3.
func WithMaxEngines(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxEngines = n
	})
}

// WithRequestTimeout caps one Answer call end to end. Default: 45s.
func WithRequestTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.requestTimeout = d
	})
}

// WithAnswerCache enables answer caching with the given TTL.
// Disabled by default.
func WithAnswerCache(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheTTL = ttl
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
