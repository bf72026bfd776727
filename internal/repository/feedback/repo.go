package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/feedback"
)

// store is the consumer interface for feedback records (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Repo persists user feedback as JSON documents.
type Repo struct {
	store store
	ttl   time.Duration
}

// New creates a feedback repository.
func New(s store, ttl time.Duration) *Repo {
	return &Repo{store: s, ttl: ttl}
}

// Save persists one feedback record.
func (r *Repo) Save(ctx context.Context, fb *feedback.Feedback) error {
	key := feedbackKey(fb.ID())
	data, err := json.Marshal(buildFeedbackDoc(fb))
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
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

func feedbackKey(id string) string {
	return domain.KeyPrefix + "feedback:" + id
}

type feedbackDoc struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func buildFeedbackDoc(fb *feedback.Feedback) feedbackDoc {
	return feedbackDoc{
		ID:        fb.ID(),
		RequestID: fb.RequestID(),
		Rating:    fb.Rating(),
		Comment:   fb.Comment(),
		CreatedAt: fb.CreatedAt(),
	}
}
