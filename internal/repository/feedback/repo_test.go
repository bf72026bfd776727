package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/evidex/internal/domain/feedback"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	jsonSetFn func(ctx context.Context, key, path string, data []byte) error
	expireFn  func(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

func (m *mockStore) JSONSet(ctx context.Context, key, path string, data []byte) error {
	if m.jsonSetFn != nil {
		return m.jsonSetFn(ctx, key, path, data)
	}
	return nil
}

func (m *mockStore) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	if m.expireFn != nil {
		return m.expireFn(ctx, key, ttl, nx)
	}
	return nil
}

func testFeedback(t *testing.T) feedback.Feedback {
	t.Helper()
	fb, err := feedback.New("fb-1", "req-1", 2, "citations point to a repealed order")
	if err != nil {
		t.Fatalf("feedback: %v", err)
	}
	return fb
}

func TestSave_WritesJSONWithTTL(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms, 30*24*time.Hour)
	fb := testFeedback(t)

	var gotKey string
	var gotData []byte
	ms.jsonSetFn = func(_ context.Context, key, path string, data []byte) error {
		if path != "$" {
			t.Errorf("path = %q", path)
		}
		gotKey, gotData = key, data
		return nil
	}
	var gotTTL time.Duration
	ms.expireFn = func(_ context.Context, _ string, ttl time.Duration, _ bool) error {
		gotTTL = ttl
		return nil
	}

	if err := repo.Save(context.Background(), &fb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "evidex:feedback:fb-1" {
		t.Errorf("key = %q", gotKey)
	}
	if gotTTL != 30*24*time.Hour {
		t.Errorf("ttl = %v", gotTTL)
	}

	var doc feedbackDoc
	if err := json.Unmarshal(gotData, &doc); err != nil {
		t.Fatalf("stored data not valid JSON: %v", err)
	}
	if doc.RequestID != "req-1" || doc.Rating != 2 {
		t.Errorf("doc = %+v", doc)
	}
}

func TestSave_StoreErrorWrapped(t *testing.T) {
	ms := &mockStore{
		jsonSetFn: func(context.Context, string, string, []byte) error {
			return errors.New("connection refused")
		},
	}
	repo := New(ms, time.Hour)
	fb := testFeedback(t)

	if err := repo.Save(context.Background(), &fb); err == nil {
		t.Fatal("expected error")
	}
}
