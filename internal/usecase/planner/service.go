package planner

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/engine"
	"github.com/kailas-cloud/evidex/internal/domain/plan"
	"github.com/kailas-cloud/evidex/internal/domain/query"
)

// ForcedPair adds engine Then whenever engine If is selected.
type ForcedPair struct {
	If   string
	Then string
}

// Config holds the plan selection constraints.
type Config struct {
	MaxEngines       int
	HardCeiling      int
	MinScore         float64
	EnhancementFloor float64
	ForcedPairs      []ForcedPair
}

// Service turns engine scores into an executable retrieval plan.
type Service struct {
	cfg    Config
	reg    *engine.Registry
	scorer EngineScorer
	plans  PlanStore
	logger *zap.Logger
}

// New creates a planner.
func New(cfg Config, reg *engine.Registry, scorer EngineScorer, plans PlanStore, logger *zap.Logger) *Service {
	return &Service{cfg: cfg, reg: reg, scorer: scorer, plans: plans, logger: logger}
}

// BuildPlan selects engines for the request and persists the resulting plan.
//
// Selection: engines are ordered by score descending (ties by id), the top N
// clearing the minimum score are taken, then forced pairs union in their
// partners beyond N, bounded by the hard ceiling. If nothing clears the
// threshold the single best engine is kept so the plan is never empty.
func (s *Service) BuildPlan(
	ctx context.Context, requestID string, req *query.Request, features *query.FeatureSet,
) (plan.Plan, error) {
	if s.reg.Len() == 0 {
		return plan.Plan{}, fmt.Errorf("engine registry is empty: %w", domain.ErrPlanningFailed)
	}

	scores := s.scorer.ScoreAll(s.reg, features)
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Value() != scores[j].Value() {
			return scores[i].Value() > scores[j].Value()
		}
		return scores[i].EngineID() < scores[j].EngineID()
	})

	maxEngines := req.MaxEngines()
	if maxEngines <= 0 {
		maxEngines = s.cfg.MaxEngines
	}
	if maxEngines > s.cfg.HardCeiling {
		maxEngines = s.cfg.HardCeiling
	}

	selected := make([]plan.EngineRationale, 0, maxEngines)
	for _, sc := range scores {
		if len(selected) >= maxEngines {
			break
		}
		if sc.Value() < s.cfg.MinScore {
			continue
		}
		selected = append(selected, plan.EngineRationale{
			EngineID: sc.EngineID(), Score: sc.Value(), Factors: sc.Factors(),
		})
	}

	// Nothing cleared the threshold: keep the single best so the plan is never empty.
	if len(selected) == 0 {
		best := scores[0]
		selected = append(selected, plan.EngineRationale{
			EngineID: best.EngineID(), Score: best.Value(), Factors: best.Factors(),
			BelowFloor: true,
		})
	}

	selected = s.applyForcedPairs(selected, scores)

	queryText := retrievalQuery(features, s.cfg.EnhancementFloor)
	queries := make([]plan.EngineQuery, 0, len(selected))
	for _, row := range selected {
		d, ok := s.reg.Get(row.EngineID)
		if !ok {
			continue
		}
		eq, err := plan.NewEngineQuery(d.ID(), queryText, d.DefaultTopK(), features.Facets())
		if err != nil {
			return plan.Plan{}, fmt.Errorf("engine query %s: %w", d.ID(), err)
		}
		queries = append(queries, eq)
	}

	p, err := plan.New(uuid.NewString(), requestID, features.Original(), queries, selected)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("build plan: %w", err)
	}

	if err := s.plans.Save(ctx, &p); err != nil {
		return plan.Plan{}, fmt.Errorf("persist plan: %w", err)
	}

	s.logger.Info("Retrieval plan built",
		zap.String("request_id", requestID),
		zap.String("plan_id", p.ID()),
		zap.Strings("engines", p.EngineIDs()),
		zap.String("query_used", queryText),
	)
	return p, nil
}

// applyForcedPairs unions in pair partners of selected engines, beyond the
// per-request engine limit but never beyond the hard ceiling.
func (s *Service) applyForcedPairs(
	selected []plan.EngineRationale, scores []engine.Score,
) []plan.EngineRationale {
	byID := make(map[string]engine.Score, len(scores))
	for _, sc := range scores {
		byID[sc.EngineID()] = sc
	}
	chosen := make(map[string]bool, len(selected))
	for _, row := range selected {
		chosen[row.EngineID] = true
	}

	for _, pair := range s.cfg.ForcedPairs {
		if len(selected) >= s.cfg.HardCeiling {
			break
		}
		if !chosen[pair.If] || chosen[pair.Then] {
			continue
		}
		sc, ok := byID[pair.Then]
		if !ok {
			continue // pair partner not registered
		}
		selected = append(selected, plan.EngineRationale{
			EngineID: sc.EngineID(), Score: sc.Value(), Factors: sc.Factors(),
			ForcedBy:   pair.If,
			BelowFloor: sc.Value() < s.cfg.MinScore,
		})
		chosen[pair.Then] = true
	}
	return selected
}

// retrievalQuery picks the enhanced rewrite when its confidence clears the
// floor, the raw query otherwise.
func retrievalQuery(features *query.FeatureSet, floor float64) string {
	if features.Enhanced() != "" && features.EnhancedConfidence() >= floor {
		return features.Enhanced()
	}
	return features.Original()
}
