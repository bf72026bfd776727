package planaudit

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/evidex/internal/domain/engine"
	"github.com/kailas-cloud/evidex/internal/domain/plan"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	jsonSetFn func(ctx context.Context, key, path string, data []byte) error
	jsonGetFn func(ctx context.Context, key string, paths ...string) ([]byte, error)
	existsFn  func(ctx context.Context, key string) (bool, error)
	expireFn  func(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

func (m *mockStore) JSONSet(ctx context.Context, key, path string, data []byte) error {
	if m.jsonSetFn != nil {
		return m.jsonSetFn(ctx, key, path, data)
	}
	return nil
}

func (m *mockStore) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	if m.jsonGetFn != nil {
		return m.jsonGetFn(ctx, key, paths...)
	}
	return nil, nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
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
	return New(ms, time.Hour), ms
}

func testPlan(t *testing.T) plan.Plan {
	t.Helper()
	q1, err := plan.NewEngineQuery("legal", "teacher transfer rules education act", 10, []string{"education"})
	if err != nil {
		t.Fatalf("engine query: %v", err)
	}
	q2, err := plan.NewEngineQuery("judicial", "teacher transfer rules education act", 10, nil)
	if err != nil {
		t.Fatalf("engine query: %v", err)
	}
	p, err := plan.New("plan-1", "req-1", "what are the rules for teacher transfers",
		[]plan.EngineQuery{q1, q2},
		[]plan.EngineRationale{
			{EngineID: "legal", Score: 0.82, Factors: engine.Factors{Base: 0.7, Facet: 0.12}},
			{EngineID: "judicial", Score: 0.4, ForcedBy: "legal"},
		})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	return p
}
