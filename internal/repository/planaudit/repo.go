package planaudit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/evidex/internal/db"
	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/plan"
)

// store is the consumer interface for plan records (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Repo persists retrieval plans as JSON documents for audit and inspection.
type Repo struct {
	store store
	ttl   time.Duration
}

// New creates a plan repository. ttl bounds how long a plan stays queryable; 0 keeps it forever.
func New(s store, ttl time.Duration) *Repo {
	return &Repo{store: s, ttl: ttl}
}

// Save persists a plan.
func (r *Repo) Save(ctx context.Context, p *plan.Plan) error {
	key := planKey(p.ID())
	data, err := json.Marshal(buildPlanDoc(p))
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}

	if r.ttl > 0 {
		if err := r.store.Expire(ctx, key, r.ttl, false); err != nil {
			return fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return nil
}

// Get returns a plan by id.
func (r *Repo) Get(ctx context.Context, id string) (plan.Plan, error) {
	key := planKey(id)
	raw, err := r.store.JSONGet(ctx, key, "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return plan.Plan{}, domain.ErrPlanNotFound
		}
		return plan.Plan{}, fmt.Errorf("json.get %s: %w", key, err)
	}
	return parsePlanDoc(raw)
}

// Exists reports whether a plan is still stored.
func (r *Repo) Exists(ctx context.Context, id string) (bool, error) {
	key := planKey(id)
	ok, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return ok, nil
}

func planKey(id string) string {
	return domain.KeyPrefix + "plans:" + id
}
