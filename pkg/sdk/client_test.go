package evidex

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/evidex/internal/domain"
	domfeedback "github.com/kailas-cloud/evidex/internal/domain/feedback"
	"github.com/kailas-cloud/evidex/internal/domain/query"
	"github.com/kailas-cloud/evidex/internal/usecase/orchestrator"
)

func TestNew_NoAddress(t *testing.T) {
	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected error when no address provided")
	}
}

func TestNew_NoEngines(t *testing.T) {
	_, err := New(context.Background(), WithRedis("localhost:6379", ""))
	if err == nil {
		t.Fatal("expected error when no engines declared")
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithRedis("localhost:6380", "pass").apply(cfg)
	if cfg.addrs[0] != "localhost:6380" {
		t.Errorf("addr = %q, want localhost:6380", cfg.addrs[0])
	}
	if cfg.password != "pass" {
		t.Errorf("password = %q, want pass", cfg.password)
	}

	WithLLM("sk-key", "https://llm.example/v1").apply(cfg)
	if cfg.llmAPIKey != "sk-key" || cfg.llmBaseURL != "https://llm.example/v1" {
		t.Errorf("llm = (%q, %q)", cfg.llmAPIKey, cfg.llmBaseURL)
	}

	WithModels("small", "large").apply(cfg)
	if cfg.analyzerModel != "small" || cfg.synthesizerModel != "large" {
		t.Errorf("models = (%q, %q)", cfg.analyzerModel, cfg.synthesizerModel)
	}

	WithReranker("http://rerank.local/v1/rerank", "rk", "bge").apply(cfg)
	if cfg.rerankEndpoint != "http://rerank.local/v1/rerank" || cfg.rerankModel != "bge" {
		t.Errorf("reranker = (%q, %q)", cfg.rerankEndpoint, cfg.rerankModel)
	}

	WithCorpusKey("ck").apply(cfg)
	if cfg.corpusAPIKey != "ck" {
		t.Errorf("corpusAPIKey = %q, want ck", cfg.corpusAPIKey)
	}

	WithEngines(EngineSpec{ID: "gos"}, EngineSpec{ID: "legal"}).apply(cfg)
	if len(cfg.engines) != 2 {
		t.Fatalf("engines = %d, want 2", len(cfg.engines))
	}

	WithMaxEngines(4).apply(cfg)
	if cfg.maxEngines != 4 {
		t.Errorf("maxEngines = %d, want 4", cfg.maxEngines)
	}

	WithRequestTimeout(90 * time.Second).apply(cfg)
	if cfg.requestTimeout != 90*time.Second {
		t.Errorf("requestTimeout = %v, want 90s", cfg.requestTimeout)
	}

	WithAnswerCache(10 * time.Minute).apply(cfg)
	if cfg.cacheTTL != 10*time.Minute {
		t.Errorf("cacheTTL = %v, want 10m", cfg.cacheTTL)
	}

	logger := slog.Default()
	WithLogger(logger).apply(cfg)
	if cfg.logger != logger {
		t.Error("expected logger to be set")
	}

	reg := prometheus.NewRegistry()
	WithPrometheus(reg).apply(cfg)
	if cfg.metricsReg != reg {
		t.Error("expected metricsReg to be set")
	}
}

func TestClient_Close_NilStore(t *testing.T) {
	c := &Client{store: nil}
	c.Close() // must not panic
}

func TestObserver_NilSafe(t *testing.T) {
	var obs *observer
	obs.observe("test", time.Now(), nil)
	obs.observe("test", time.Now(), errors.New("err"))
}

func TestObserver_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("answer", time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("answer", time.Now(), errors.New("fail"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected metrics to be registered")
	}

	found := false
	for _, f := range families {
		if f.GetName() == "evidex_sdk_operations_total" {
			found = true
			if len(f.GetMetric()) != 2 {
				t.Errorf("expected 2 metric samples, got %d",
					len(f.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("evidex_sdk_operations_total not found")
	}
}

func TestObserver_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("first newObserver: %v", err)
	}
	// Second registration reuses the existing collectors.
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("second newObserver: %v", err)
	}
}

func TestObserver_NoMetricsNoLogger(t *testing.T) {
	obs, err := newObserver(nil, nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	obs.observe("noop", time.Now(), nil)
}

// mockAnswers substitutes the pipeline behind the client surface.
type mockAnswers struct {
	answerFn   func(ctx context.Context, req *query.Request) (orchestrator.Result, error)
	planFn     func(ctx context.Context, planID string) (orchestrator.PlanDetails, error)
	feedbackFn func(ctx context.Context, requestID string, rating int, comment string) (domfeedback.Feedback, error)
}

func (m *mockAnswers) Answer(ctx context.Context, req *query.Request) (orchestrator.Result, error) {
	return m.answerFn(ctx, req)
}

func (m *mockAnswers) GetPlan(ctx context.Context, planID string) (orchestrator.PlanDetails, error) {
	return m.planFn(ctx, planID)
}

func (m *mockAnswers) SubmitFeedback(ctx context.Context, requestID string, rating int, comment string) (domfeedback.Feedback, error) {
	return m.feedbackFn(ctx, requestID, rating, comment)
}

func TestAnswer_InvalidQuery(t *testing.T) {
	called := false
	c := &Client{answers: &mockAnswers{
		answerFn: func(_ context.Context, _ *query.Request) (orchestrator.Result, error) {
			called = true
			return orchestrator.Result{}, nil
		},
	}}

	_, err := c.Answer(context.Background(), AnswerRequest{Query: "hi"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
	if called {
		t.Error("pipeline must not run for an invalid query")
	}
}

func TestAnswer_DefaultsApplied(t *testing.T) {
	var got *query.Request
	c := &Client{answers: &mockAnswers{
		answerFn: func(_ context.Context, req *query.Request) (orchestrator.Result, error) {
			got = req
			return orchestrator.Result{}, nil
		},
	}}

	_, err := c.Answer(context.Background(), AnswerRequest{Query: "What is the teacher transfer procedure?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Jurisdiction() != "Andhra Pradesh" {
		t.Errorf("jurisdiction = %q, want Andhra Pradesh", got.Jurisdiction())
	}
	if got.MaxEngines() != 3 {
		t.Errorf("maxEngines = %d, want 3", got.MaxEngines())
	}
}

func TestAnswer_PipelineErrorPassthrough(t *testing.T) {
	c := &Client{answers: &mockAnswers{
		answerFn: func(_ context.Context, _ *query.Request) (orchestrator.Result, error) {
			return orchestrator.Result{}, domain.NewStageError("fusing", domain.ErrNoEvidence)
		},
	}}

	_, err := c.Answer(context.Background(), AnswerRequest{Query: "scholarship eligibility for BC students"})
	if !errors.Is(err, ErrNoEvidence) {
		t.Fatalf("err = %v, want ErrNoEvidence", err)
	}
}

func TestSubmitFeedback_Converts(t *testing.T) {
	created := domfeedback.Reconstruct("fb-1", "req-1", 2, "answer missed the 2023 amendment", time.Now().UTC())
	c := &Client{answers: &mockAnswers{
		feedbackFn: func(_ context.Context, requestID string, rating int, comment string) (domfeedback.Feedback, error) {
			if requestID != "req-1" || rating != 2 {
				t.Errorf("args = (%q, %d)", requestID, rating)
			}
			return created, nil
		},
	}}

	fb, err := c.SubmitFeedback(context.Background(), "req-1", 2, "answer missed the 2023 amendment")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.ID != "fb-1" || fb.Rating != 2 {
		t.Errorf("feedback = %+v", fb)
	}
}

func TestSubmitFeedback_UnknownRequest(t *testing.T) {
	c := &Client{answers: &mockAnswers{
		feedbackFn: func(_ context.Context, _ string, _ int, _ string) (domfeedback.Feedback, error) {
			return domfeedback.Feedback{}, domain.ErrInvalidRequest
		},
	}}

	_, err := c.SubmitFeedback(context.Background(), "missing", 5, "")
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}
