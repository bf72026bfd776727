package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/evidex/internal/domain/document"
	"github.com/kailas-cloud/evidex/internal/domain/evidence"
	"github.com/kailas-cloud/evidex/internal/domain/execution"
	"github.com/kailas-cloud/evidex/internal/domain/plan"
	"github.com/kailas-cloud/evidex/internal/domain/query"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn    func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn func(ctx context.Context, key string) (map[string]string, error)
	expireFn  func(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	if m.expireFn != nil {
		return m.expireFn(ctx, key, ttl, nx)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, 7*24*time.Hour), ms
}

func testState(t *testing.T) *execution.State {
	t.Helper()
	req, err := query.NewRequest("eligibility for amma vodi scheme", "Andhra Pradesh", 3)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	st, err := execution.NewState("req-1", req)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	return st
}

func testStateWithArtifacts(t *testing.T) *execution.State {
	t.Helper()
	st := testState(t)

	fs, err := query.NewFeatureSet(
		"eligibility for amma vodi scheme",
		[]query.Entity{{Type: query.EntityScheme, Text: "Amma Vodi", Normalized: "amma vodi"}},
		[]string{"education", "welfare"},
		&query.TemporalRange{From: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		query.TypeEligibility,
		"Amma Vodi scheme eligibility criteria for mothers",
		0.9,
	)
	if err != nil {
		t.Fatalf("features: %v", err)
	}
	st.SetFeatures(fs)

	eq, err := plan.NewEngineQuery("schemes", fs.Enhanced(), 10, []string{"education"})
	if err != nil {
		t.Fatalf("engine query: %v", err)
	}
	p, err := plan.New("plan-1", "req-1", fs.Original(), []plan.EngineQuery{eq},
		[]plan.EngineRationale{{EngineID: "schemes", Score: 0.9}})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	st.SetPlan(p)

	doc := document.Reconstruct(
		"scheme-42", "schemes", "Amma Vodi Guidelines", "Financial assistance for mothers",
		"Dept of School Education", "para 4", "https://schemes.ap.gov.in/amma-vodi",
		time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), 0.93,
	)
	st.SetOutcome(execution.Outcome{
		"schemes": {EngineID: "schemes", Documents: []document.Document{doc}, Attempts: 1},
		"gos":     {EngineID: "gos", Attempts: 3, Failure: "timeout"},
	})
	st.SetEvidence([]evidence.Item{
		evidence.Reconstruct(doc, 1, 0.93, []string{"gos/go-101"}),
	})
	return st
}
