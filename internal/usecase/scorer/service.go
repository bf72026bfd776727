package scorer

import (
	"github.com/kailas-cloud/evidex/internal/domain/engine"
	"github.com/kailas-cloud/evidex/internal/domain/query"
)

// Rule grants a bonus to one engine when the analyzed query matches.
// An empty QueryType or EntityType matches anything.
type Rule struct {
	Engine     string
	QueryType  query.Type
	EntityType query.EntityType
	Bonus      float64
}

// Weights configures the deterministic scoring function.
type Weights struct {
	FacetWeight     float64
	EntityWeight    float64
	EntityCap       float64
	CoveragePenalty float64
	Rules           []Rule
}

// Service scores engines against an analyzed query. Scoring is a pure
// function of the registry, the feature set, and the configured weights:
// identical inputs always produce identical scores.
type Service struct {
	weights Weights
}

// New creates an engine scorer.
func New(weights Weights) *Service {
	return &Service{weights: weights}
}

// ScoreAll returns one score per registered engine, in registry order.
// It never fails; an engine with nothing in common with the query simply
// bottoms out at its base weight minus any coverage penalty.
func (s *Service) ScoreAll(reg *engine.Registry, features *query.FeatureSet) []engine.Score {
	descriptors := reg.All()
	out := make([]engine.Score, 0, len(descriptors))
	for i := range descriptors {
		out = append(out, s.scoreEngine(&descriptors[i], features))
	}
	return out
}

// scoreEngine computes the weighted factor breakdown for one engine.
func (s *Service) scoreEngine(d *engine.Descriptor, features *query.FeatureSet) engine.Score {
	f := engine.Factors{Base: d.BaseWeight()}

	f.Facet = s.weights.FacetWeight * jaccard(d.FacetAffinities(), features.Facets())

	if matches := countEntityMatches(d.EntityAffinities(), features.Entities()); matches > 0 {
		f.Entity = s.weights.EntityWeight * float64(matches)
		if f.Entity > s.weights.EntityCap {
			f.Entity = s.weights.EntityCap
		}
	}

	if tr := features.Temporal(); tr != nil {
		if d.CoversRange(tr) {
			f.Recency = d.RecencyBoost()
		} else {
			f.Penalty = s.weights.CoveragePenalty
		}
	}

	for _, rule := range s.weights.Rules {
		if ruleMatches(rule, d.ID(), features) {
			f.Rules += rule.Bonus
		}
	}

	value := f.Base + f.Facet + f.Entity + f.Recency + f.Rules - f.Penalty
	return engine.NewScore(d.ID(), value, f)
}

func ruleMatches(r Rule, engineID string, features *query.FeatureSet) bool {
	if r.Engine != engineID {
		return false
	}
	if r.QueryType != "" && r.QueryType != features.QueryType() {
		return false
	}
	if r.EntityType != "" && !features.HasEntityType(r.EntityType) {
		return false
	}
	return true
}

// jaccard computes set overlap |A∩B| / |A∪B| over lowercase facet terms.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	inter := 0
	union := len(a)
	seen := make(map[string]bool, len(b))
	for _, s := range b {
		if seen[s] {
			continue
		}
		seen[s] = true
		if set[s] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

func countEntityMatches(affinities []query.EntityType, entities []query.Entity) int {
	if len(affinities) == 0 || len(entities) == 0 {
		return 0
	}
	want := make(map[query.EntityType]bool, len(affinities))
	for _, t := range affinities {
		want[t] = true
	}
	n := 0
	for _, e := range entities {
		if want[e.Type] {
			n++
		}
	}
	return n
}
