package planaudit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/evidex/internal/db"
	"github.com/kailas-cloud/evidex/internal/domain"
)

func TestSave_WritesJSONWithTTL(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testPlan(t)

	var gotKey, gotPath string
	var gotData []byte
	ms.jsonSetFn = func(_ context.Context, key, path string, data []byte) error {
		gotKey, gotPath, gotData = key, path, data
		return nil
	}
	var expired bool
	ms.expireFn = func(_ context.Context, key string, ttl time.Duration, nx bool) error {
		expired = true
		if key != gotKey {
			t.Errorf("expire key = %q, want %q", key, gotKey)
		}
		if ttl != time.Hour {
			t.Errorf("ttl = %v, want 1h", ttl)
		}
		if nx {
			t.Error("plan TTL should not use NX")
		}
		return nil
	}

	if err := repo.Save(context.Background(), &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "evidex:plans:plan-1" {
		t.Errorf("key = %q", gotKey)
	}
	if gotPath != "$" {
		t.Errorf("path = %q", gotPath)
	}
	if !expired {
		t.Error("expected Expire call")
	}

	var doc planDoc
	if err := json.Unmarshal(gotData, &doc); err != nil {
		t.Fatalf("stored data not valid JSON: %v", err)
	}
	if doc.Query != "what are the rules for teacher transfers" {
		t.Errorf("stored query = %q", doc.Query)
	}
	if len(doc.Queries) != 2 || doc.Queries[0].EngineID != "legal" {
		t.Errorf("stored queries = %+v", doc.Queries)
	}
}

func TestSave_NoTTLWhenZero(t *testing.T) {
	ms := &mockStore{
		expireFn: func(context.Context, string, time.Duration, bool) error {
			t.Error("unexpected Expire call")
			return nil
		},
	}
	repo := New(ms, 0)
	p := testPlan(t)
	if err := repo.Save(context.Background(), &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGet_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testPlan(t)

	stored, err := json.Marshal([]planDoc{buildPlanDoc(&p)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ms.jsonGetFn = func(_ context.Context, key string, _ ...string) ([]byte, error) {
		if key != "evidex:plans:plan-1" {
			t.Errorf("key = %q", key)
		}
		return stored, nil
	}

	got, err := repo.Get(context.Background(), "plan-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID() != p.ID() || got.RequestID() != p.RequestID() || got.Query() != p.Query() {
		t.Errorf("got plan %s/%s/%q", got.ID(), got.RequestID(), got.Query())
	}
	if len(got.Queries()) != 2 {
		t.Fatalf("queries = %d, want 2", len(got.Queries()))
	}
	if got.Queries()[0].TopK() != 10 {
		t.Errorf("TopK = %d", got.Queries()[0].TopK())
	}
	if len(got.Rationale()) != 2 || got.Rationale()[1].ForcedBy != "legal" {
		t.Errorf("rationale = %+v", got.Rationale())
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.jsonGetFn = func(context.Context, string, ...string) ([]byte, error) {
		return nil, db.ErrKeyNotFound
	}

	_, err := repo.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestGet_StoreErrorWrapped(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.jsonGetFn = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}

	_, err := repo.Get(context.Background(), "plan-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "json.get") {
		t.Errorf("error not wrapped with op: %v", err)
	}
}

func TestExists(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.existsFn = func(_ context.Context, key string) (bool, error) {
		return key == "evidex:plans:plan-1", nil
	}

	ok, err := repo.Exists(context.Background(), "plan-1")
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
	ok, err = repo.Exists(context.Background(), "other")
	if err != nil || ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
}
