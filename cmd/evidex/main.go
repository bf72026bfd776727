package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/config"
	dbRedis "github.com/kailas-cloud/evidex/internal/db/redis"
	"github.com/kailas-cloud/evidex/internal/domain/query"
	logpkg "github.com/kailas-cloud/evidex/internal/logger"
	"github.com/kailas-cloud/evidex/internal/metrics"
	"github.com/kailas-cloud/evidex/internal/repository/anscache"
	"github.com/kailas-cloud/evidex/internal/repository/checkpoint"
	feedbackrepo "github.com/kailas-cloud/evidex/internal/repository/feedback"
	"github.com/kailas-cloud/evidex/internal/repository/planaudit"
	chiTransport "github.com/kailas-cloud/evidex/internal/transport/chi"
	"github.com/kailas-cloud/evidex/internal/transport/corpus"
	openaiLLM "github.com/kailas-cloud/evidex/internal/transport/openai"
	"github.com/kailas-cloud/evidex/internal/transport/rerank"
	"github.com/kailas-cloud/evidex/internal/usecase/fusion"
	healthuc "github.com/kailas-cloud/evidex/internal/usecase/health"
	"github.com/kailas-cloud/evidex/internal/usecase/orchestrator"
	"github.com/kailas-cloud/evidex/internal/usecase/planner"
	"github.com/kailas-cloud/evidex/internal/usecase/retrieval"
	"github.com/kailas-cloud/evidex/internal/usecase/scorer"
	"github.com/kailas-cloud/evidex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting evidex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Int("engines", len(cfg.Engines)),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	registry, err := cfg.BuildEngineRegistry()
	if err != nil {
		logger.Fatal("Invalid engine configuration", zap.Error(err))
	}
	logger.Info("Engine registry built", zap.Strings("engines", registry.IDs()))

	// Create repositories
	plans := planaudit.New(store, time.Duration(cfg.Storage.PlanTTLHours)*time.Hour)
	checkpoints := checkpoint.New(store, time.Duration(cfg.Storage.CheckpointTTLHours)*time.Hour)
	feedbackStore := feedbackrepo.New(store, time.Duration(cfg.Storage.FeedbackTTLHours)*time.Hour)

	// Pass nil interface (not typed nil pointer!) when caching is disabled.
	var cache orchestrator.AnswerCache
	if cfg.Cache.Enabled {
		cache = anscache.New(store, time.Duration(cfg.Cache.TTLSec)*time.Second, metrics.AnswerCacheTotal, logger)
	}

	// External collaborators
	llmCfg := &openaiLLM.Config{
		APIKey:             cfg.LLM.APIKey,
		BaseURL:            cfg.LLM.BaseURL,
		AnalyzerModel:      cfg.LLM.AnalyzerModel,
		SynthesizerModel:   cfg.LLM.SynthesizerModel,
		ContextTokenBudget: cfg.LLM.ContextTokenBudget,
		Timeout:            time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		Logger:             logger,
	}
	analyzer := openaiLLM.NewAnalyzer(llmCfg)
	synthesizer := openaiLLM.NewSynthesizer(llmCfg)
	logger.Info("LLM clients created",
		zap.String("analyzer_model", cfg.LLM.AnalyzerModel),
		zap.String("synthesizer_model", cfg.LLM.SynthesizerModel),
	)

	reranker := rerank.New(&rerank.Config{
		Endpoint: cfg.Reranker.Endpoint,
		APIKey:   cfg.Reranker.APIKey,
		Model:    cfg.Reranker.Model,
		Timeout:  time.Duration(cfg.Reranker.TimeoutSec) * time.Second,
		Logger:   logger,
	})

	retriever := retrieval.NewInstrumentedRetriever(corpus.New(&corpus.Config{
		APIKey:  cfg.Corpus.APIKey,
		Timeout: time.Duration(cfg.Corpus.TimeoutSec) * time.Second,
		Logger:  logger,
	}), logger)

	// Create use case services
	engineScorer := scorer.New(scorer.Weights{
		FacetWeight:     cfg.Scoring.FacetWeight,
		EntityWeight:    cfg.Scoring.EntityWeight,
		EntityCap:       cfg.Scoring.EntityCap,
		CoveragePenalty: cfg.Scoring.CoveragePenalty,
		Rules:           scoringRules(cfg.Scoring.Rules),
	})
	plannerSvc := planner.New(planner.Config{
		MaxEngines:       cfg.Planning.MaxEngines,
		HardCeiling:      cfg.Planning.HardCeiling,
		MinScore:         cfg.Planning.MinScore,
		EnhancementFloor: cfg.Planning.EnhancementFloor,
		ForcedPairs:      forcedPairs(cfg.Planning.ForcedPairs),
	}, registry, engineScorer, plans, logger)
	retrievalSvc := retrieval.New(retrieval.Config{
		MaxConcurrency: cfg.Retrieval.MaxConcurrency,
		EngineTimeout:  time.Duration(cfg.Retrieval.EngineTimeoutSec) * time.Second,
		MaxAttempts:    cfg.Retrieval.MaxAttempts,
	}, registry, retriever, logger)
	fusionSvc := fusion.New(fusion.Config{
		SimilarityThreshold: cfg.Fusion.DedupSimilarity,
		RerankCandidates:    cfg.Fusion.RerankCandidates,
		FinalK:              cfg.Fusion.FinalK,
		MinConfidence:       cfg.Fusion.MinConfidence,
	}, reranker, logger)

	answerSvc := orchestrator.New(
		orchestrator.Config{RequestTimeout: time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second},
		analyzer, plannerSvc, retrievalSvc, fusionSvc, synthesizer,
		checkpoints, plans, feedbackStore, cache, logger,
	)

	// Health service
	healthSvc := healthuc.New(store, analyzer, reranker)

	// Create chi server
	server := chiTransport.NewServer(answerSvc, registry, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// scoringRules maps config rule entries onto scorer rules. Unknown type
// strings pass through; the scorer simply never matches them.
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

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
