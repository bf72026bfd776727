package planner

import (
	"context"

	"github.com/kailas-cloud/evidex/internal/domain/engine"
	"github.com/kailas-cloud/evidex/internal/domain/plan"
	"github.com/kailas-cloud/evidex/internal/domain/query"
)

// EngineScorer scores all registered engines against an analyzed query.
type EngineScorer interface {
	ScoreAll(reg *engine.Registry, features *query.FeatureSet) []engine.Score
}

// PlanStore persists plans for later audit lookup.
type PlanStore interface {
	Save(ctx context.Context, p *plan.Plan) error
}
