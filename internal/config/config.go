package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the evidex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	LLM       LLMConfig       `yaml:"llm"`
	Reranker  RerankerConfig  `yaml:"reranker"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Engines   []EngineConfig  `yaml:"engines"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Planning  PlanningConfig  `yaml:"planning"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Fusion    FusionConfig    `yaml:"fusion"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port              int `yaml:"port"`
	ReadTimeoutSec    int `yaml:"read_timeout_sec"`
	WriteTimeoutSec   int `yaml:"write_timeout_sec"`
	ShutdownSec       int `yaml:"shutdown_timeout_sec"`
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// LLMConfig holds the analysis/synthesis collaborator settings.
type LLMConfig struct {
	APIKey             string `yaml:"api_key"`
	BaseURL            string `yaml:"base_url"`
	AnalyzerModel      string `yaml:"analyzer_model"`
	SynthesizerModel   string `yaml:"synthesizer_model"`
	TimeoutSec         int    `yaml:"timeout_sec"`
	ContextTokenBudget int    `yaml:"context_token_budget"`
}

// RerankerConfig holds the cross-engine reranking service settings.
type RerankerConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// CorpusConfig holds the shared corpus search gateway settings. Engine
// endpoints live on the engine entries; the key and timeout are shared.
type CorpusConfig struct {
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// EngineConfig describes one retrieval engine (vertical) in the registry.
type EngineConfig struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	CorpusID         string   `yaml:"corpus_id"`
	Endpoint         string   `yaml:"endpoint"`
	BaseWeight       float64  `yaml:"base_weight"`
	Priority         int      `yaml:"priority"`
	FacetAffinities  []string `yaml:"facet_affinities"`
	EntityAffinities []string `yaml:"entity_affinities"`
	RecencyBoost     float64  `yaml:"recency_boost"`
	CoverageFrom     string   `yaml:"coverage_from"` // YYYY-MM-DD, empty = open
	CoverageTo       string   `yaml:"coverage_to"`   // YYYY-MM-DD, empty = open
	TopK             int      `yaml:"top_k"`
}

// ScoringRule grants a bonus to one engine when the query matches.
// QueryType and EntityType are both optional; set ones must all match.
type ScoringRule struct {
	Engine     string  `yaml:"engine"`
	QueryType  string  `yaml:"query_type,omitempty"`
	EntityType string  `yaml:"entity_type,omitempty"`
	Bonus      float64 `yaml:"bonus"`
}

// ScoringConfig holds engine scoring weights.
type ScoringConfig struct {
	FacetWeight     float64       `yaml:"facet_weight"`     // facet Jaccard multiplier
	EntityWeight    float64       `yaml:"entity_weight"`    // per matching entity
	EntityCap       float64       `yaml:"entity_cap"`       // entity factor ceiling
	CoveragePenalty float64       `yaml:"coverage_penalty"` // temporal range outside coverage window
	Rules           []ScoringRule `yaml:"rules"`
}

// ForcedPair adds engine Then whenever engine If enters the plan.
type ForcedPair struct {
	If   string `yaml:"if"`
	Then string `yaml:"then"`
}

// PlanningConfig holds plan construction constraints.
type PlanningConfig struct {
	MaxEngines       int          `yaml:"max_engines"`
	HardCeiling      int          `yaml:"hard_ceiling"`
	MinScore         float64      `yaml:"min_score"`
	EnhancementFloor float64      `yaml:"enhancement_floor"`
	ForcedPairs      []ForcedPair `yaml:"forced_pairs"`
}

// RetrievalConfig holds retrieval fan-out settings.
type RetrievalConfig struct {
	MaxConcurrency   int `yaml:"max_concurrency"`
	EngineTimeoutSec int `yaml:"engine_timeout_sec"`
	MaxAttempts      int `yaml:"max_attempts"`
}

// FusionConfig holds dedup, rerank and assembly settings.
type FusionConfig struct {
	DedupSimilarity  float64 `yaml:"dedup_similarity"`
	FinalK           int     `yaml:"final_k"`
	MinConfidence    float64 `yaml:"min_confidence"`
	RerankCandidates int     `yaml:"rerank_candidates"`
}

// CacheConfig holds answer cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"`
}

// StorageConfig holds retention settings for the audit stores.
type StorageConfig struct {
	PlanTTLHours       int `yaml:"plan_ttl_hours"`       // 0 = keep forever
	CheckpointTTLHours int `yaml:"checkpoint_ttl_hours"` // default 168 (7 days)
	FeedbackTTLHours   int `yaml:"feedback_ttl_hours"`   // default 720 (30 days)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		c.HTTP.RequestTimeoutSec = 45
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.LLM.AnalyzerModel == "" {
		c.LLM.AnalyzerModel = "gpt-4o-mini"
	}
	if c.LLM.SynthesizerModel == "" {
		c.LLM.SynthesizerModel = "gpt-4o"
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 30
	}
	if c.LLM.ContextTokenBudget <= 0 {
		c.LLM.ContextTokenBudget = 6000
	}
	if c.Reranker.Model == "" {
		c.Reranker.Model = "bge-reranker-v2-m3"
	}
	if c.Reranker.TimeoutSec <= 0 {
		c.Reranker.TimeoutSec = 10
	}
	if c.Corpus.TimeoutSec <= 0 {
		c.Corpus.TimeoutSec = 15
	}
	if c.Scoring.FacetWeight <= 0 {
		c.Scoring.FacetWeight = 0.3
	}
	if c.Scoring.EntityWeight <= 0 {
		c.Scoring.EntityWeight = 0.2
	}
	if c.Scoring.EntityCap <= 0 {
		c.Scoring.EntityCap = 0.5
	}
	if c.Scoring.CoveragePenalty <= 0 {
		c.Scoring.CoveragePenalty = 0.2
	}
	if len(c.Scoring.Rules) == 0 {
		c.Scoring.Rules = defaultScoringRules()
	}
	if c.Planning.MaxEngines <= 0 {
		c.Planning.MaxEngines = 3
	}
	if c.Planning.HardCeiling <= 0 {
		c.Planning.HardCeiling = 5
	}
	if c.Planning.MinScore <= 0 {
		c.Planning.MinScore = 0.25
	}
	if c.Planning.EnhancementFloor <= 0 {
		c.Planning.EnhancementFloor = 0.7
	}
	if c.Planning.ForcedPairs == nil {
		c.Planning.ForcedPairs = []ForcedPair{
			{If: "legal", Then: "judicial"},
			{If: "gos", Then: "schemes"},
		}
	}
	if c.Retrieval.MaxConcurrency <= 0 {
		c.Retrieval.MaxConcurrency = 5
	}
	if c.Retrieval.EngineTimeoutSec <= 0 {
		c.Retrieval.EngineTimeoutSec = 8
	}
	if c.Retrieval.MaxAttempts <= 0 || c.Retrieval.MaxAttempts > 3 {
		c.Retrieval.MaxAttempts = 3
	}
	if c.Fusion.DedupSimilarity <= 0 {
		c.Fusion.DedupSimilarity = 0.85
	}
	if c.Fusion.FinalK <= 0 {
		c.Fusion.FinalK = 20
	}
	if c.Fusion.MinConfidence <= 0 {
		c.Fusion.MinConfidence = 0.1
	}
	if c.Fusion.RerankCandidates <= 0 {
		c.Fusion.RerankCandidates = 50
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 600
	}
	if c.Storage.CheckpointTTLHours <= 0 {
		c.Storage.CheckpointTTLHours = 168
	}
	if c.Storage.FeedbackTTLHours <= 0 {
		c.Storage.FeedbackTTLHours = 720
	}
}

func defaultScoringRules() []ScoringRule {
	return []ScoringRule{
		{Engine: "gos", EntityType: "go_number", Bonus: 0.25},
		{Engine: "judicial", EntityType: "case_citation", Bonus: 0.25},
		{Engine: "legal", EntityType: "act", Bonus: 0.2},
		{Engine: "schemes", QueryType: "eligibility", Bonus: 0.2},
		{Engine: "data_report", QueryType: "comparative", Bonus: 0.15},
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if len(c.Engines) == 0 {
		return fmt.Errorf("engines registry is required")
	}
	seen := make(map[string]bool, len(c.Engines))
	for i, e := range c.Engines {
		if e.ID == "" {
			return fmt.Errorf("engines[%d].id is required", i)
		}
		if seen[e.ID] {
			return fmt.Errorf("engines[%d]: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true
	}
	for _, p := range c.Planning.ForcedPairs {
		if p.If == "" || p.Then == "" {
			return fmt.Errorf("planning.forced_pairs entries need both \"if\" and \"then\"")
		}
	}
	if c.Planning.HardCeiling < c.Planning.MaxEngines {
		return fmt.Errorf(
			"planning.hard_ceiling (%d) must be >= planning.max_engines (%d)",
			c.Planning.HardCeiling, c.Planning.MaxEngines,
		)
	}
	if c.Planning.MinScore > 1 {
		return fmt.Errorf("planning.min_score must be between 0 and 1, got %g", c.Planning.MinScore)
	}
	if c.Fusion.DedupSimilarity > 1 {
		return fmt.Errorf("fusion.dedup_similarity must be between 0 and 1, got %g", c.Fusion.DedupSimilarity)
	}
	if c.Fusion.MinConfidence > 1 {
		return fmt.Errorf("fusion.min_confidence must be between 0 and 1, got %g", c.Fusion.MinConfidence)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
