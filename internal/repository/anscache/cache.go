package anscache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/db"
	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/answer"
	"github.com/kailas-cloud/evidex/internal/domain/evidence"
	"github.com/kailas-cloud/evidex/internal/domain/query"
)

var cacheKeyPrefix = domain.KeyPrefix + "answers:"

// store is the consumer interface for the answer cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Cache keeps delivered answers keyed by normalized request parameters.
// All operations degrade gracefully: a broken cache never fails a request.
type Cache struct {
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates an answer cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(s store, ttl time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{store: s, ttl: ttl, cacheTotal: cacheTotal, logger: logger}
}

// Lookup returns the cached answer and its plan id for an equivalent prior request.
func (c *Cache) Lookup(ctx context.Context, req *query.Request) (string, answer.Answer, bool) {
	key := c.cacheKey(req)

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to read answer cache", zap.String("key", key), zap.Error(err))
		}
		c.incCache("miss")
		return "", answer.Answer{}, false
	}

	var doc cachedDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		c.logger.Warn("Failed to parse cached answer", zap.String("key", key), zap.Error(err))
		c.incCache("miss")
		return "", answer.Answer{}, false
	}

	c.incCache("hit")
	return doc.PlanID, answer.Reconstruct(doc.Text, doc.Citations, doc.UsedEngines, doc.Confidence), true
}

// Store caches a delivered answer under the request's cache key.
func (c *Cache) Store(ctx context.Context, req *query.Request, planID string, ans *answer.Answer) {
	key := c.cacheKey(req)
	data, err := json.Marshal(cachedDoc{
		PlanID:      planID,
		Text:        ans.Text(),
		Citations:   ans.Citations(),
		UsedEngines: ans.UsedEngines(),
		Confidence:  ans.Confidence(),
	})
	if err != nil {
		c.logger.Warn("Failed to marshal answer for cache", zap.String("key", key), zap.Error(err))
		return
	}

	if c.ttl > 0 {
		err = c.store.SetWithTTL(ctx, key, data, c.ttl)
	} else {
		err = c.store.Set(ctx, key, data)
	}
	if err != nil {
		c.logger.Warn("Failed to cache answer", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops the cached answer for the request, if any.
func (c *Cache) Invalidate(ctx context.Context, req *query.Request) {
	key := c.cacheKey(req)
	if err := c.store.Del(ctx, key); err != nil {
		c.logger.Warn("Failed to invalidate answer cache", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey hashes the normalized query plus the request parameters that
// change retrieval output.
func (c *Cache) cacheKey(req *query.Request) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(req.Query()), " "))
	material := normalized + "|" + strings.ToLower(req.Jurisdiction()) + "|" + strconv.Itoa(req.MaxEngines())
	h := sha256.Sum256([]byte(material))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

type cachedDoc struct {
	PlanID      string              `json:"plan_id"`
	Text        string              `json:"text"`
	Citations   []evidence.Citation `json:"citations,omitempty"`
	UsedEngines []string            `json:"used_engines,omitempty"`
	Confidence  float64             `json:"confidence"`
}
