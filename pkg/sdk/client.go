package evidex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/config"
	"github.com/kailas-cloud/evidex/internal/db"
	dbRedis "github.com/kailas-cloud/evidex/internal/db/redis"
	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/engine"
	domfeedback "github.com/kailas-cloud/evidex/internal/domain/feedback"
	"github.com/kailas-cloud/evidex/internal/domain/query"
	"github.com/kailas-cloud/evidex/internal/repository/anscache"
	"github.com/kailas-cloud/evidex/internal/repository/checkpoint"
	feedbackrepo "github.com/kailas-cloud/evidex/internal/repository/feedback"
	"github.com/kailas-cloud/evidex/internal/repository/planaudit"
	"github.com/kailas-cloud/evidex/internal/transport/corpus"
	openaiLLM "github.com/kailas-cloud/evidex/internal/transport/openai"
	"github.com/kailas-cloud/evidex/internal/transport/rerank"
	"github.com/kailas-cloud/evidex/internal/usecase/fusion"
	healthuc "github.com/kailas-cloud/evidex/internal/usecase/health"
	"github.com/kailas-cloud/evidex/internal/usecase/orchestrator"
	"github.com/kailas-cloud/evidex/internal/usecase/planner"
	"github.com/kailas-cloud/evidex/internal/usecase/retrieval"
	"github.com/kailas-cloud/evidex/internal/usecase/scorer"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces so tests can substitute the pipeline.
type answerUseCase interface {
	Answer(ctx context.Context, req *query.Request) (orchestrator.Result, error)
	GetPlan(ctx context.Context, planID string) (orchestrator.PlanDetails, error)
	SubmitFeedback(ctx context.Context, requestID string, rating int, comment string) (domfeedback.Feedback, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the evidex SDK entry point.
type Client struct {
	store     db.Store
	answers   answerUseCase
	registry  *engine.Registry
	healthSvc healthUseCase
	obs       *observer
}

// New creates an evidex Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("evidex: database address required (use WithRedis)")
	}
	if len(cfg.engines) == 0 {
		return nil, errors.New("evidex: at least one engine required (use WithEngines)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("evidex: create redis store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("evidex: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return wireClient(store, cfg, obs)
}

// wireClient assembles the pipeline. Tunables the options do not expose
// take the same defaults the server config applies.
func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	srvCfg := config.Config{Engines: engineConfigs(cfg.engines)}
	srvCfg.LLM.APIKey = cfg.llmAPIKey
	srvCfg.LLM.BaseURL = cfg.llmBaseURL
	srvCfg.LLM.AnalyzerModel = cfg.analyzerModel
	srvCfg.LLM.SynthesizerModel = cfg.synthesizerModel
	srvCfg.Reranker.Endpoint = cfg.rerankEndpoint
	srvCfg.Reranker.APIKey = cfg.rerankAPIKey
	srvCfg.Reranker.Model = cfg.rerankModel
	srvCfg.Corpus.APIKey = cfg.corpusAPIKey
	if cfg.maxEngines > 0 {
		srvCfg.Planning.MaxEngines = cfg.maxEngines
	}
	if cfg.requestTimeout > 0 {
		srvCfg.HTTP.RequestTimeoutSec = int(cfg.requestTimeout / time.Second)
	}
	srvCfg.ApplyDefaults()

	registry, err := srvCfg.BuildEngineRegistry()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("evidex: %w", err)
	}

	// Pipeline services log through a nop logger; SDK operations are
	// observed at the client surface instead.
	logger := zap.NewNop()

	plans := planaudit.New(store, time.Duration(srvCfg.Storage.PlanTTLHours)*time.Hour)
	checkpoints := checkpoint.New(store, time.Duration(srvCfg.Storage.CheckpointTTLHours)*time.Hour)
	feedbackStore := feedbackrepo.New(store, time.Duration(srvCfg.Storage.FeedbackTTLHours)*time.Hour)

	var cache orchestrator.AnswerCache
	if cfg.cacheTTL > 0 {
		cache = anscache.New(store, cfg.cacheTTL, nil, logger)
	}

	llmCfg := &openaiLLM.Config{
		APIKey:             srvCfg.LLM.APIKey,
		BaseURL:            srvCfg.LLM.BaseURL,
		AnalyzerModel:      srvCfg.LLM.AnalyzerModel,
		SynthesizerModel:   srvCfg.LLM.SynthesizerModel,
		ContextTokenBudget: srvCfg.LLM.ContextTokenBudget,
		Timeout:            time.Duration(srvCfg.LLM.TimeoutSec) * time.Second,
		Logger:             logger,
	}
	analyzer := openaiLLM.NewAnalyzer(llmCfg)
	synthesizer := openaiLLM.NewSynthesizer(llmCfg)

	reranker := rerank.New(&rerank.Config{
		Endpoint: srvCfg.Reranker.Endpoint,
		APIKey:   srvCfg.Reranker.APIKey,
		Model:    srvCfg.Reranker.Model,
		Timeout:  time.Duration(srvCfg.Reranker.TimeoutSec) * time.Second,
		Logger:   logger,
	})

	retriever := corpus.New(&corpus.Config{
		APIKey:  srvCfg.Corpus.APIKey,
		Timeout: time.Duration(srvCfg.Corpus.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	engineScorer := scorer.New(scorer.Weights{
		FacetWeight:     srvCfg.Scoring.FacetWeight,
		EntityWeight:    srvCfg.Scoring.EntityWeight,
		EntityCap:       srvCfg.Scoring.EntityCap,
		CoveragePenalty: srvCfg.Scoring.CoveragePenalty,
		Rules:           scoringRules(srvCfg.Scoring.Rules),
	})
	plannerSvc := planner.New(planner.Config{
		MaxEngines:       srvCfg.Planning.MaxEngines,
		HardCeiling:      srvCfg.Planning.HardCeiling,
		MinScore:         srvCfg.Planning.MinScore,
		EnhancementFloor: srvCfg.Planning.EnhancementFloor,
		ForcedPairs:      forcedPairs(srvCfg.Planning.ForcedPairs),
	}, registry, engineScorer, plans, logger)
	retrievalSvc := retrieval.New(retrieval.Config{
		MaxConcurrency: srvCfg.Retrieval.MaxConcurrency,
		EngineTimeout:  time.Duration(srvCfg.Retrieval.EngineTimeoutSec) * time.Second,
		MaxAttempts:    srvCfg.Retrieval.MaxAttempts,
	}, registry, retriever, logger)
	fusionSvc := fusion.New(fusion.Config{
		SimilarityThreshold: srvCfg.Fusion.DedupSimilarity,
		RerankCandidates:    srvCfg.Fusion.RerankCandidates,
		FinalK:              srvCfg.Fusion.FinalK,
		MinConfidence:       srvCfg.Fusion.MinConfidence,
	}, reranker, logger)

	answers := orchestrator.New(
		orchestrator.Config{RequestTimeout: time.Duration(srvCfg.HTTP.RequestTimeoutSec) * time.Second},
		analyzer, plannerSvc, retrievalSvc, fusionSvc, synthesizer,
		checkpoints, plans, feedbackStore, cache, logger,
	)

	healthSvc := healthuc.New(store, analyzer, reranker)

	return &Client{
		store:     store,
		answers:   answers,
		registry:  registry,
		healthSvc: healthSvc,
		obs:       obs,
	}, nil
}

func engineConfigs(specs []EngineSpec) []config.EngineConfig {
	out := make([]config.EngineConfig, 0, len(specs))
	for _, s := range specs {
		out = append(out, config.EngineConfig{
			ID:               s.ID,
			Name:             s.Name,
			CorpusID:         s.CorpusID,
			Endpoint:         s.Endpoint,
			BaseWeight:       s.BaseWeight,
			Priority:         s.Priority,
			FacetAffinities:  s.FacetAffinities,
			EntityAffinities: s.EntityAffinities,
			RecencyBoost:     s.RecencyBoost,
			CoverageFrom:     s.CoverageFrom,
			CoverageTo:       s.CoverageTo,
			TopK:             s.TopK,
		})
	}
	return out
}

func scoringRules(rules []config.ScoringRule) []scorer.Rule {
	out := make([]scorer.Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, scorer.Rule{
			Engine:     r.Engine,
			QueryType:  query.Type(r.QueryType),
			EntityType: query.EntityType(r.EntityType),
			Bonus:      r.Bonus,
		})
	}
	return out
}

func forcedPairs(pairs []config.ForcedPair) []planner.ForcedPair {
	out := make([]planner.ForcedPair, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, planner.ForcedPair{If: p.If, Then: p.Then})
	}
	return out
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Answer runs the full pipeline for one question.
func (c *Client) Answer(ctx context.Context, req AnswerRequest) (_ Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("answer", start, err) }()

	q, err := query.NewRequest(req.Query, req.Jurisdiction, req.MaxEngines)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	res, err := c.answers.Answer(ctx, &q)
	if err != nil {
		return Answer{}, err
	}
	return answerFromResult(res), nil
}

// Plan returns a stored retrieval plan with its execution trace, when the
// request checkpoint is still retained.
func (c *Client) Plan(ctx context.Context, planID string) (_ PlanDetails, err error) {
	start := time.Now()
	defer func() { c.obs.observe("plan", start, err) }()

	d, err := c.answers.GetPlan(ctx, planID)
	if err != nil {
		return PlanDetails{}, err
	}
	return planFromDetails(d), nil
}

// SubmitFeedback rates an answered request (1..5). A negative rating
// invalidates the cached answer so the next ask recomputes.
func (c *Client) SubmitFeedback(ctx context.Context, requestID string, rating int, comment string) (_ Feedback, err error) {
	start := time.Now()
	defer func() { c.obs.observe("feedback", start, err) }()

	f, err := c.answers.SubmitFeedback(ctx, requestID, rating, comment)
	if err != nil {
		return Feedback{}, err
	}
	return feedbackFromDomain(f), nil
}

// Engines lists the registered retrieval engines in planner priority order.
func (c *Client) Engines() []EngineInfo {
	all := c.registry.All()
	out := make([]EngineInfo, 0, len(all))
	for _, d := range all {
		out = append(out, engineInfo(d))
	}
	return out
}
