package planaudit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/plan"
)

type planDoc struct {
	ID        string                 `json:"id"`
	RequestID string                 `json:"request_id"`
	Query     string                 `json:"query"`
	Queries   []engineQueryDoc       `json:"queries"`
	Rationale []plan.EngineRationale `json:"rationale,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type engineQueryDoc struct {
	EngineID   string   `json:"engine_id"`
	QueryText  string   `json:"query_text"`
	TopK       int      `json:"top_k"`
	FacetHints []string `json:"facet_hints,omitempty"`
}

// buildPlanDoc converts a domain Plan into its storage document.
func buildPlanDoc(p *plan.Plan) planDoc {
	queries := make([]engineQueryDoc, 0, len(p.Queries()))
	for _, q := range p.Queries() {
		queries = append(queries, engineQueryDoc{
			EngineID:   q.EngineID(),
			QueryText:  q.QueryText(),
			TopK:       q.TopK(),
			FacetHints: q.FacetHints(),
		})
	}
	return planDoc{
		ID:        p.ID(),
		RequestID: p.RequestID(),
		Query:     p.Query(),
		Queries:   queries,
		Rationale: p.Rationale(),
		CreatedAt: p.CreatedAt(),
	}
}

// parsePlanDoc converts a JSON.GET "$" result (array-wrapped) back into a domain Plan.
func parsePlanDoc(raw []byte) (plan.Plan, error) {
	var docs []planDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return plan.Plan{}, fmt.Errorf("unmarshal plan: %w", err)
	}
	if len(docs) == 0 {
		return plan.Plan{}, domain.ErrPlanNotFound
	}
	return docs[0].toDomain(), nil
}

func (d *planDoc) toDomain() plan.Plan {
	queries := make([]plan.EngineQuery, 0, len(d.Queries))
	for _, q := range d.Queries {
		eq, err := plan.NewEngineQuery(q.EngineID, q.QueryText, q.TopK, q.FacetHints)
		if err != nil {
			continue // skip rows that no longer validate rather than fail the read
		}
		queries = append(queries, eq)
	}
	return plan.Reconstruct(d.ID, d.RequestID, d.Query, queries, d.Rationale, d.CreatedAt)
}
