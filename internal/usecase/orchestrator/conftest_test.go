package orchestrator

import (
	"context"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/answer"
	"github.com/kailas-cloud/evidex/internal/domain/document"
	"github.com/kailas-cloud/evidex/internal/domain/evidence"
	"github.com/kailas-cloud/evidex/internal/domain/execution"
	"github.com/kailas-cloud/evidex/internal/domain/feedback"
	"github.com/kailas-cloud/evidex/internal/domain/plan"
	"github.com/kailas-cloud/evidex/internal/domain/query"
)

type stubAnalyzer struct {
	calls     int
	analyzeFn func(ctx context.Context, queryText string) (query.FeatureSet, error)
}

func (s *stubAnalyzer) Analyze(ctx context.Context, queryText string) (query.FeatureSet, error) {
	s.calls++
	if s.analyzeFn != nil {
		return s.analyzeFn(ctx, queryText)
	}
	return query.NewFeatureSet(queryText, nil, []string{"education"}, nil, query.TypeFactual, "", 0)
}

type stubPlanner struct {
	lastFeatures *query.FeatureSet
	buildFn      func(ctx context.Context, requestID string, req *query.Request, features *query.FeatureSet) (plan.Plan, error)
}

func (s *stubPlanner) BuildPlan(
	ctx context.Context, requestID string, req *query.Request, features *query.FeatureSet,
) (plan.Plan, error) {
	s.lastFeatures = features
	if s.buildFn != nil {
		return s.buildFn(ctx, requestID, req, features)
	}
	return testPlan(requestID, req.Query(), "legal", "gos")
}

type stubExecutor struct {
	executeFn func(ctx context.Context, p *plan.Plan, features *query.FeatureSet) execution.Outcome
}

func (s *stubExecutor) Execute(
	ctx context.Context, p *plan.Plan, features *query.FeatureSet,
) execution.Outcome {
	if s.executeFn != nil {
		return s.executeFn(ctx, p, features)
	}
	out := execution.Outcome{}
	for _, id := range p.EngineIDs() {
		out[id] = execution.EngineOutcome{
			EngineID:  id,
			Documents: []document.Document{testDocument(id, id+"-doc", 0.8)},
			Attempts:  1,
		}
	}
	return out
}

type stubFuser struct {
	fuseFn func(ctx context.Context, raw execution.Outcome, features *query.FeatureSet) ([]evidence.Item, error)
}

func (s *stubFuser) Fuse(
	ctx context.Context, raw execution.Outcome, features *query.FeatureSet,
) ([]evidence.Item, error) {
	if s.fuseFn != nil {
		return s.fuseFn(ctx, raw, features)
	}
	docs := raw.Documents()
	sort.Slice(docs, func(i, j int) bool { return docs[i].CanonicalID() < docs[j].CanonicalID() })
	var items []evidence.Item
	for _, d := range docs {
		item, err := evidence.NewItem(d, len(items)+1, 0.9-0.1*float64(len(items)), nil)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

type stubSynthesizer struct {
	synthesizeFn func(ctx context.Context, queryText string, evid []evidence.Item) (string, error)
}

func (s *stubSynthesizer) Synthesize(
	ctx context.Context, queryText string, evid []evidence.Item,
) (string, error) {
	if s.synthesizeFn != nil {
		return s.synthesizeFn(ctx, queryText, evid)
	}
	text := "Transfers follow the counselling schedule"
	for i := range evid {
		d := evid[i].Document()
		text += " [" + d.EngineID() + ":" + d.ID() + ":" + d.Section() + "]"
	}
	return text + ".", nil
}

type mockCheckpoints struct {
	stages []execution.Stage
	saveFn func(ctx context.Context, st *execution.State) error
	loadFn func(ctx context.Context, requestID string) (*execution.State, error)
}

func (m *mockCheckpoints) Save(ctx context.Context, st *execution.State) error {
	m.stages = append(m.stages, st.Stage())
	if m.saveFn != nil {
		return m.saveFn(ctx, st)
	}
	return nil
}

func (m *mockCheckpoints) Load(ctx context.Context, requestID string) (*execution.State, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, requestID)
	}
	return nil, domain.ErrCheckpointNotFound
}

type stubPlanReader struct {
	getFn func(ctx context.Context, planID string) (plan.Plan, error)
}

func (s *stubPlanReader) Get(ctx context.Context, planID string) (plan.Plan, error) {
	if s.getFn != nil {
		return s.getFn(ctx, planID)
	}
	return plan.Plan{}, nil
}

type mockFeedbackStore struct {
	saved  []feedback.Feedback
	saveFn func(ctx context.Context, fb *feedback.Feedback) error
}

func (m *mockFeedbackStore) Save(ctx context.Context, fb *feedback.Feedback) error {
	m.saved = append(m.saved, *fb)
	if m.saveFn != nil {
		return m.saveFn(ctx, fb)
	}
	return nil
}

type mockCache struct {
	lookupFn    func(ctx context.Context, req *query.Request) (string, answer.Answer, bool)
	stored      int
	storedPlan  string
	invalidated int
}

func (m *mockCache) Lookup(ctx context.Context, req *query.Request) (string, answer.Answer, bool) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, req)
	}
	return "", answer.Answer{}, false
}

func (m *mockCache) Store(_ context.Context, _ *query.Request, planID string, _ *answer.Answer) {
	m.stored++
	m.storedPlan = planID
}

func (m *mockCache) Invalidate(context.Context, *query.Request) {
	m.invalidated++
}

// deps bundles the collaborators so individual tests can replace one stub.
type deps struct {
	analyzer    *stubAnalyzer
	planner     *stubPlanner
	executor    *stubExecutor
	fuser       *stubFuser
	synthesizer *stubSynthesizer
	checkpoints *mockCheckpoints
	plans       *stubPlanReader
	feedback    *mockFeedbackStore
	cache       *mockCache
}

func newTestDeps() *deps {
	return &deps{
		analyzer:    &stubAnalyzer{},
		planner:     &stubPlanner{},
		executor:    &stubExecutor{},
		fuser:       &stubFuser{},
		synthesizer: &stubSynthesizer{},
		checkpoints: &mockCheckpoints{},
		plans:       &stubPlanReader{},
		feedback:    &mockFeedbackStore{},
		cache:       &mockCache{},
	}
}

func newTestService(d *deps) *Service {
	return New(
		Config{RequestTimeout: 30 * time.Second},
		d.analyzer, d.planner, d.executor, d.fuser, d.synthesizer,
		d.checkpoints, d.plans, d.feedback, d.cache,
		zap.NewNop(),
	)
}

func testRequest(t *testing.T, queryText string) query.Request {
	t.Helper()
	req, err := query.NewRequest(queryText, "", 0)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return req
}

func testPlan(requestID, queryText string, engineIDs ...string) (plan.Plan, error) {
	queries := make([]plan.EngineQuery, 0, len(engineIDs))
	for _, id := range engineIDs {
		eq, err := plan.NewEngineQuery(id, queryText, 10, nil)
		if err != nil {
			return plan.Plan{}, err
		}
		queries = append(queries, eq)
	}
	return plan.New("plan-1", requestID, queryText, queries, nil)
}

func testDocument(engineID, id string, score float64) document.Document {
	return document.Reconstruct(
		id, engineID, "Title "+id, "snippet for "+id,
		"School Education Dept", "Section 3", "https://example.gov.in/"+id,
		time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), score,
	)
}

type evidenceSpec struct {
	engineID string
	id       string
	score    float64
}

func testEvidence(t *testing.T, specs ...evidenceSpec) []evidence.Item {
	t.Helper()
	items := make([]evidence.Item, 0, len(specs))
	for i, spec := range specs {
		item, err := evidence.NewItem(testDocument(spec.engineID, spec.id, spec.score), i+1, spec.score, nil)
		if err != nil {
			t.Fatalf("NewItem: %v", err)
		}
		items = append(items, item)
	}
	return items
}
