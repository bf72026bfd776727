package retrieval

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/domain/document"
	"github.com/kailas-cloud/evidex/internal/domain/engine"
	"github.com/kailas-cloud/evidex/internal/domain/plan"
	"github.com/kailas-cloud/evidex/internal/domain/query"
)

type retrievalCall struct {
	engineID  string
	queryText string
	topK      int
}

// mockRetriever records every call; calls arrive concurrently.
type mockRetriever struct {
	mu         sync.Mutex
	calls      []retrievalCall
	retrieveFn func(ctx context.Context, eng engine.Descriptor, queryText string, topK int) ([]document.Document, error)
}

func (m *mockRetriever) Retrieve(
	ctx context.Context, eng engine.Descriptor, queryText string, topK int,
) ([]document.Document, error) {
	m.mu.Lock()
	m.calls = append(m.calls, retrievalCall{engineID: eng.ID(), queryText: queryText, topK: topK})
	m.mu.Unlock()
	if m.retrieveFn == nil {
		return nil, nil
	}
	return m.retrieveFn(ctx, eng, queryText, topK)
}

func (m *mockRetriever) callsFor(engineID string) []retrievalCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []retrievalCall
	for _, c := range m.calls {
		if c.engineID == engineID {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockRetriever) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func newTestService(t *testing.T, reg *engine.Registry, retriever Retriever) *Service {
	t.Helper()
	cfg := Config{
		MaxConcurrency: 4,
		EngineTimeout:  time.Second,
		MaxAttempts:    3,
	}
	return New(cfg, reg, retriever, zap.NewNop())
}

func mustDescriptor(t *testing.T, id string) engine.Descriptor {
	t.Helper()
	d, err := engine.NewDescriptor(engine.DescriptorConfig{
		ID:         id,
		CorpusID:   id + "_corpus",
		BaseWeight: 0.5,
	})
	if err != nil {
		t.Fatalf("NewDescriptor(%s) error: %v", id, err)
	}
	return d
}

func testRegistry(t *testing.T, ids ...string) *engine.Registry {
	t.Helper()
	descriptors := make([]engine.Descriptor, 0, len(ids))
	for _, id := range ids {
		descriptors = append(descriptors, mustDescriptor(t, id))
	}
	reg, err := engine.NewRegistry(descriptors)
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}
	return reg
}

func testFeatures(t *testing.T, original, enhanced string, facets ...string) *query.FeatureSet {
	t.Helper()
	fs, err := query.NewFeatureSet(original, nil, facets, nil, query.TypeFactual, enhanced, query.EnhancementHigh)
	if err != nil {
		t.Fatalf("NewFeatureSet error: %v", err)
	}
	return &fs
}

func buildTestPlan(t *testing.T, assignments map[string]string) *plan.Plan {
	t.Helper()
	queries := make([]plan.EngineQuery, 0, len(assignments))
	for engineID, queryText := range assignments {
		eq, err := plan.NewEngineQuery(engineID, queryText, 10, nil)
		if err != nil {
			t.Fatalf("NewEngineQuery(%s) error: %v", engineID, err)
		}
		queries = append(queries, eq)
	}
	p, err := plan.New("plan-1", "req-1", "original query", queries, nil)
	if err != nil {
		t.Fatalf("plan.New error: %v", err)
	}
	return &p
}

func testDoc(t *testing.T, engineID, id string, score float64) document.Document {
	t.Helper()
	d, err := document.New(
		id, engineID, "Title "+id, "snippet for "+id,
		"Dept of School Education", "Section 3", "https://example.gov.in/"+id,
		time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), score,
	)
	if err != nil {
		t.Fatalf("document.New(%s) error: %v", id, err)
	}
	return d
}
