package plan

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/evidex/internal/domain/engine"
)

// EngineQuery holds the per-engine retrieval parameters of a plan.
type EngineQuery struct {
	engineID   string
	queryText  string
	topK       int
	facetHints []string
}

// NewEngineQuery creates per-engine retrieval parameters.
func NewEngineQuery(engineID, queryText string, topK int, facetHints []string) (EngineQuery, error) {
	if engineID == "" {
		return EngineQuery{}, fmt.Errorf("engine id is required")
	}
	if queryText == "" {
		return EngineQuery{}, fmt.Errorf("engine %s: query text is required", engineID)
	}
	if topK <= 0 {
		topK = engine.DefaultTopK
	}
	if topK > engine.MaxTopK {
		topK = engine.MaxTopK
	}
	return EngineQuery{
		engineID:   engineID,
		queryText:  queryText,
		topK:       topK,
		facetHints: append([]string(nil), facetHints...),
	}, nil
}

// EngineID returns the target engine identifier.
func (q *EngineQuery) EngineID() string { return q.engineID }

// QueryText returns the query string assigned to this engine.
func (q *EngineQuery) QueryText() string { return q.queryText }

// TopK returns the retrieval depth for this engine.
func (q *EngineQuery) TopK() int { return q.topK }

// FacetHints returns the facet terms forwarded as retrieval filters.
func (q *EngineQuery) FacetHints() []string { return q.facetHints }

// EngineRationale records why one engine entered the plan.
type EngineRationale struct {
	EngineID   string         `json:"engine_id"`
	Score      float64        `json:"score"`
	Factors    engine.Factors `json:"factors"`
	ForcedBy   string         `json:"forced_by,omitempty"`
	BelowFloor bool           `json:"below_floor,omitempty"`
}

// Plan is an executable retrieval plan (immutable once created, persisted for audit).
type Plan struct {
	id        string
	requestID string
	query     string
	queries   []EngineQuery
	rationale []EngineRationale
	createdAt time.Time
}

// New validates and creates a Plan. A plan is never empty.
func New(id, requestID, query string, queries []EngineQuery, rationale []EngineRationale) (Plan, error) {
	if id == "" {
		return Plan{}, fmt.Errorf("plan id is required")
	}
	if requestID == "" {
		return Plan{}, fmt.Errorf("request id is required")
	}
	if query == "" {
		return Plan{}, fmt.Errorf("query is required")
	}
	if len(queries) == 0 {
		return Plan{}, fmt.Errorf("plan must select at least one engine")
	}
	seen := make(map[string]bool, len(queries))
	for _, q := range queries {
		if seen[q.EngineID()] {
			return Plan{}, fmt.Errorf("duplicate engine in plan: %s", q.EngineID())
		}
		seen[q.EngineID()] = true
	}
	return Plan{
		id:        id,
		requestID: requestID,
		query:     query,
		queries:   append([]EngineQuery(nil), queries...),
		rationale: append([]EngineRationale(nil), rationale...),
		createdAt: time.Now().UTC(),
	}, nil
}

// Reconstruct creates a Plan without validation (storage hydration).
func Reconstruct(
	id, requestID, query string, queries []EngineQuery,
	rationale []EngineRationale, createdAt time.Time,
) Plan {
	return Plan{
		id: id, requestID: requestID, query: query,
		queries: queries, rationale: rationale, createdAt: createdAt,
	}
}

// ID returns the plan identifier.
func (p *Plan) ID() string { return p.id }

// RequestID returns the request this plan was built for.
func (p *Plan) RequestID() string { return p.requestID }

// Query returns the original user query this plan answers.
func (p *Plan) Query() string { return p.query }

// Queries returns the ordered per-engine retrieval parameters.
func (p *Plan) Queries() []EngineQuery { return p.queries }

// Rationale returns the per-engine selection rationale.
func (p *Plan) Rationale() []EngineRationale { return p.rationale }

// CreatedAt returns the plan creation time.
func (p *Plan) CreatedAt() time.Time { return p.createdAt }

// EngineIDs returns the selected engine ids in plan order.
func (p *Plan) EngineIDs() []string {
	out := make([]string, len(p.queries))
	for i := range p.queries {
		out[i] = p.queries[i].EngineID()
	}
	return out
}
