package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/answer"
	"github.com/kailas-cloud/evidex/internal/domain/execution"
	"github.com/kailas-cloud/evidex/internal/domain/feedback"
	"github.com/kailas-cloud/evidex/internal/domain/plan"
	"github.com/kailas-cloud/evidex/internal/domain/query"
	"github.com/kailas-cloud/evidex/internal/metrics"
)

// Config bounds request orchestration.
type Config struct {
	// RequestTimeout caps one request end to end; 0 disables the cap.
	RequestTimeout time.Duration
}

// Service walks one request through the pipeline state machine, snapshotting
// state after every transition.
type Service struct {
	cfg         Config
	analyzer    Analyzer
	planner     PlanBuilder
	retrieval   RetrievalExecutor
	fuser       Fuser
	synthesizer Synthesizer
	checkpoints CheckpointStore
	plans       PlanReader
	feedback    FeedbackStore
	cache       AnswerCache
	logger      *zap.Logger
}

// New creates the request orchestrator. cache may be nil to disable answer caching.
func New(
	cfg Config,
	analyzer Analyzer,
	planner PlanBuilder,
	retrieval RetrievalExecutor,
	fuser Fuser,
	synthesizer Synthesizer,
	checkpoints CheckpointStore,
	plans PlanReader,
	fb FeedbackStore,
	cache AnswerCache,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:         cfg,
		analyzer:    analyzer,
		planner:     planner,
		retrieval:   retrieval,
		fuser:       fuser,
		synthesizer: synthesizer,
		checkpoints: checkpoints,
		plans:       plans,
		feedback:    fb,
		cache:       cache,
		logger:      logger,
	}
}

// Result is the outcome of one answered request.
type Result struct {
	RequestID string
	PlanID    string
	Answer    answer.Answer
	Cached    bool
}

// Answer runs the full pipeline for one request. Partial engine failures
// degrade to whatever evidence was retrieved; analysis and synthesis failures
// are request-fatal.
func (s *Service) Answer(ctx context.Context, req *query.Request) (Result, error) {
	requestID := uuid.NewString()
	logger := s.logger.With(zap.String("request_id", requestID))

	if s.cache != nil {
		if planID, ans, ok := s.cache.Lookup(ctx, req); ok {
			logger.Info("Answer served from cache", zap.String("plan_id", planID))
			return Result{RequestID: requestID, PlanID: planID, Answer: ans, Cached: true}, nil
		}
	}

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	st, err := execution.NewState(requestID, *req)
	if err != nil {
		return Result{}, fmt.Errorf("new execution state: %w", err)
	}
	s.checkpoint(ctx, st)

	// ANALYZING
	start := time.Now()
	features, err := s.analyzer.Analyze(ctx, req.Query())
	observeStage(execution.StageAnalyzing, start)
	if err != nil {
		return Result{}, s.fail(ctx, st, logger, execution.StageAnalyzing, err)
	}
	if req.Jurisdiction() != "" {
		features = features.WithFacet(req.Jurisdiction())
	}
	st.SetFeatures(features)
	s.advance(ctx, st)

	// PLANNING
	start = time.Now()
	p, err := s.planner.BuildPlan(ctx, requestID, req, &features)
	observeStage(execution.StagePlanning, start)
	if err != nil {
		return Result{}, s.fail(ctx, st, logger, execution.StagePlanning, err)
	}
	st.SetPlan(p)
	s.advance(ctx, st)

	// RETRIEVING
	start = time.Now()
	outcome := s.retrieval.Execute(ctx, &p, &features)
	observeStage(execution.StageRetrieving, start)
	st.SetOutcome(outcome)
	for _, eo := range outcome {
		if eo.Failure != "" {
			st.RecordWarning(fmt.Errorf("engine %s: %s after %d attempts", eo.EngineID, eo.Failure, eo.Attempts))
		}
	}
	if !outcome.Succeeded() {
		return Result{}, s.fail(ctx, st, logger, execution.StageRetrieving, domain.ErrNoEvidence)
	}
	s.advance(ctx, st)

	// FUSING
	start = time.Now()
	evid, err := s.fuser.Fuse(ctx, outcome, &features)
	observeStage(execution.StageFusing, start)
	if err != nil {
		return Result{}, s.fail(ctx, st, logger, execution.StageFusing, err)
	}
	if len(evid) == 0 {
		return Result{}, s.fail(ctx, st, logger, execution.StageFusing, domain.ErrNoEvidence)
	}
	st.SetEvidence(evid)
	s.advance(ctx, st)

	// SYNTHESIZING
	start = time.Now()
	text, err := s.synthesizer.Synthesize(ctx, features.Original(), evid)
	observeStage(execution.StageSynthesizing, start)
	if err != nil {
		return Result{}, s.fail(ctx, st, logger, execution.StageSynthesizing, err)
	}
	citations := extractCitations(text, evid)
	ans, err := answer.New(text, citations, usedEngines(evid), confidence(text, citations, evid))
	if err != nil {
		return Result{}, s.fail(ctx, st, logger, execution.StageSynthesizing, err)
	}
	st.SetAnswer(ans)
	s.advance(ctx, st)

	if s.cache != nil {
		s.cache.Store(ctx, req, p.ID(), &ans)
	}

	logger.Info("Request answered",
		zap.String("plan_id", p.ID()),
		zap.Strings("used_engines", ans.UsedEngines()),
		zap.Float64("confidence", ans.Confidence()),
		zap.Int("citations", len(ans.Citations())),
		zap.Duration("elapsed", time.Since(st.StartedAt())),
	)
	return Result{RequestID: requestID, PlanID: p.ID(), Answer: ans}, nil
}

// PlanDetails is the audit view of a stored plan, with the execution trace
// when its checkpoint is still retained.
type PlanDetails struct {
	Plan  plan.Plan
	Trace *execution.State
}

// GetPlan looks up a persisted plan and its execution trace.
func (s *Service) GetPlan(ctx context.Context, planID string) (PlanDetails, error) {
	p, err := s.plans.Get(ctx, planID)
	if err != nil {
		return PlanDetails{}, fmt.Errorf("get plan %s: %w", planID, err)
	}

	details := PlanDetails{Plan: p}
	st, err := s.checkpoints.Load(ctx, p.RequestID())
	switch {
	case err == nil:
		details.Trace = st
	case errors.Is(err, domain.ErrCheckpointNotFound):
		// expired checkpoints only narrow the audit view
	default:
		s.logger.Warn("Checkpoint lookup failed",
			zap.String("plan_id", planID),
			zap.String("request_id", p.RequestID()),
			zap.Error(err),
		)
	}
	return details, nil
}

// SubmitFeedback records a user rating for an answered request. Negative
// ratings evict the cached answer for that query.
func (s *Service) SubmitFeedback(ctx context.Context, requestID string, rating int, comment string) (feedback.Feedback, error) {
	st, err := s.checkpoints.Load(ctx, requestID)
	if err != nil {
		if errors.Is(err, domain.ErrCheckpointNotFound) {
			return feedback.Feedback{}, fmt.Errorf("unknown request %s: %w", requestID, domain.ErrInvalidRequest)
		}
		return feedback.Feedback{}, fmt.Errorf("load checkpoint %s: %w", requestID, err)
	}

	fb, err := feedback.New(uuid.NewString(), requestID, rating, comment)
	if err != nil {
		return feedback.Feedback{}, fmt.Errorf("validate feedback: %w: %w", domain.ErrInvalidRequest, err)
	}
	if err := s.feedback.Save(ctx, &fb); err != nil {
		return feedback.Feedback{}, fmt.Errorf("save feedback: %w", err)
	}

	if fb.Negative() && s.cache != nil {
		req := st.Request()
		s.cache.Invalidate(ctx, &req)
		s.logger.Info("Cached answer invalidated after negative feedback",
			zap.String("request_id", requestID),
			zap.Int("rating", rating),
		)
	}
	return fb, nil
}

// fail moves the state to FAILED, checkpoints it, and returns the stage-tagged error.
func (s *Service) fail(
	ctx context.Context, st *execution.State, logger *zap.Logger,
	stage execution.Stage, err error,
) error {
	stageErr := domain.NewStageError(string(stage), err)
	st.Fail(err)
	s.checkpoint(ctx, st)
	logger.Error("Request failed", zap.String("stage", string(stage)), zap.Error(err))
	return stageErr
}

// advance moves to the next stage and checkpoints the snapshot.
func (s *Service) advance(ctx context.Context, st *execution.State) {
	if err := st.Advance(); err != nil {
		s.logger.Error("Stage transition rejected", zap.String("request_id", st.RequestID()), zap.Error(err))
		return
	}
	s.checkpoint(ctx, st)
}

// checkpoint snapshots state; persistence failures degrade audit, never the request.
func (s *Service) checkpoint(ctx context.Context, st *execution.State) {
	if err := s.checkpoints.Save(ctx, st); err != nil {
		s.logger.Warn("Checkpoint write failed",
			zap.String("request_id", st.RequestID()),
			zap.String("stage", string(st.Stage())),
			zap.Error(err),
		)
	}
}

func observeStage(stage execution.Stage, start time.Time) {
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}
