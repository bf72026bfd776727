package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/execution"
)

// store is the consumer interface for checkpoint hashes (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Repo persists pipeline state snapshots as one hash per request.
// Each stage transition merges its fields into the hash, so a crashed
// request leaves behind everything produced up to the failing stage.
type Repo struct {
	store store
	ttl   time.Duration
}

// New creates a checkpoint repository.
func New(s store, ttl time.Duration) *Repo {
	return &Repo{store: s, ttl: ttl}
}

// Save snapshots the current pipeline state.
func (r *Repo) Save(ctx context.Context, st *execution.State) error {
	fields, err := buildFields(st)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	key := checkpointKey(st.RequestID())
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}

	// TTL is anchored to the first snapshot (NX), not refreshed per stage.
	if r.ttl > 0 {
		if err := r.store.Expire(ctx, key, r.ttl, true); err != nil {
			return fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return nil
}

// Load rebuilds pipeline state from its snapshot.
func (r *Repo) Load(ctx context.Context, requestID string) (*execution.State, error) {
	key := checkpointKey(requestID)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return nil, domain.ErrCheckpointNotFound
	}
	return parseFields(requestID, m)
}

func checkpointKey(requestID string) string {
	return domain.KeyPrefix + "checkpoints:" + requestID
}
