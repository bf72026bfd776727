package fusion

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/domain/document"
	"github.com/kailas-cloud/evidex/internal/domain/evidence"
	"github.com/kailas-cloud/evidex/internal/domain/execution"
	"github.com/kailas-cloud/evidex/internal/domain/query"
	"github.com/kailas-cloud/evidex/internal/metrics"
)

// Default fusion parameters.
const (
	DefaultSimilarityThreshold = 0.85
	DefaultRerankCandidates    = 50
	DefaultFinalK              = 20
)

// Config bounds fusion behavior.
type Config struct {
	// SimilarityThreshold is the normalized-text similarity above which two
	// documents count as duplicates.
	SimilarityThreshold float64
	// RerankCandidates caps how many deduplicated candidates go to the reranker.
	RerankCandidates int
	// FinalK is the evidence list size after assembly.
	FinalK int
	// MinConfidence drops evidence scored below it, even under quota.
	MinConfidence float64
}

// Service fuses per-engine retrieval results into one ranked evidence list.
type Service struct {
	cfg      Config
	reranker Reranker
	logger   *zap.Logger
}

// New creates a fusion service.
func New(cfg Config, reranker Reranker, logger *zap.Logger) *Service {
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.RerankCandidates < 1 {
		cfg.RerankCandidates = DefaultRerankCandidates
	}
	if cfg.FinalK < 1 {
		cfg.FinalK = DefaultFinalK
	}
	return &Service{cfg: cfg, reranker: reranker, logger: logger}
}

// scoredGroup pairs a duplicate group with its final relevance score.
type scoredGroup struct {
	group group
	score float64
}

// Fuse deduplicates the combined raw results, reranks the canonical
// candidates against the query, and assembles the final evidence list.
// Given identical inputs and identical reranker output the result is
// identical; ties resolve by canonical document id.
func (s *Service) Fuse(
	ctx context.Context, raw execution.Outcome, features *query.FeatureSet,
) ([]evidence.Item, error) {
	docs := raw.Documents()
	if len(docs) == 0 {
		return nil, nil
	}

	groups := dedupe(docs, s.cfg.SimilarityThreshold)
	if collapsed := len(docs) - len(groups); collapsed > 0 {
		metrics.FusionDuplicatesTotal.Add(float64(collapsed))
	}

	scored := s.rank(ctx, features.Original(), groups)

	items, err := s.assemble(scored)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Fusion completed",
		zap.Int("raw_documents", len(docs)),
		zap.Int("canonical_candidates", len(groups)),
		zap.Int("evidence_items", len(items)),
	)
	return items, nil
}

// rank scores the canonical candidates via the reranker, falling back to
// per-engine normalized raw scores when the reranker is unavailable. The
// normalized scores also order candidates before the cap, so trimming keeps
// the most promising groups rather than an arbitrary slice.
func (s *Service) rank(ctx context.Context, queryText string, groups []group) []scoredGroup {
	prior := fallbackRank(groups)
	if len(prior) > s.cfg.RerankCandidates {
		prior = prior[:s.cfg.RerankCandidates]
	}
	docs := make([]document.Document, len(prior))
	for i := range prior {
		docs[i] = prior[i].group.canonical
	}

	ranked, err := s.reranker.Rerank(ctx, queryText, docs)
	if err != nil {
		s.logger.Warn("Reranker unavailable, falling back to normalized raw scores", zap.Error(err))
		metrics.RerankFallbacksTotal.Inc()
		return prior
	}

	out := make([]scoredGroup, 0, len(ranked))
	for _, rc := range ranked {
		if rc.Index < 0 || rc.Index >= len(prior) {
			s.logger.Warn("Reranker returned out-of-range candidate index", zap.Int("index", rc.Index))
			continue
		}
		out = append(out, scoredGroup{group: prior[rc.Index].group, score: clamp01(rc.Score)})
	}
	sortScored(out)
	return out
}

// fallbackRank orders candidates by raw source score min-max normalized per
// engine, since raw scores from different engines are not comparable. An
// engine with a single candidate gets the neutral midpoint.
func fallbackRank(groups []group) []scoredGroup {
	type bounds struct{ min, max float64 }
	perEngine := make(map[string]bounds)
	for _, g := range groups {
		b, ok := perEngine[g.canonical.EngineID()]
		if !ok {
			b = bounds{min: g.canonical.RawScore(), max: g.canonical.RawScore()}
		} else {
			if g.canonical.RawScore() < b.min {
				b.min = g.canonical.RawScore()
			}
			if g.canonical.RawScore() > b.max {
				b.max = g.canonical.RawScore()
			}
		}
		perEngine[g.canonical.EngineID()] = b
	}

	out := make([]scoredGroup, 0, len(groups))
	for _, g := range groups {
		b := perEngine[g.canonical.EngineID()]
		score := 0.5
		if b.max > b.min {
			score = (g.canonical.RawScore() - b.min) / (b.max - b.min)
		}
		out = append(out, scoredGroup{group: g, score: score})
	}
	sortScored(out)
	return out
}

func sortScored(scored []scoredGroup) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].group.canonical.CanonicalID() < scored[j].group.canonical.CanonicalID()
	})
}

// assemble truncates to FinalK and drops sub-confidence items. An
// under-filled evidence list beats low-confidence padding.
func (s *Service) assemble(scored []scoredGroup) ([]evidence.Item, error) {
	items := make([]evidence.Item, 0, s.cfg.FinalK)
	dropped := 0
	for _, sg := range scored {
		if len(items) == s.cfg.FinalK {
			break
		}
		if sg.score < s.cfg.MinConfidence {
			dropped++
			continue
		}
		item, err := evidence.NewItem(sg.group.canonical, len(items)+1, sg.score, sg.group.absorbed)
		if err != nil {
			return nil, fmt.Errorf("assemble evidence: %w", err)
		}
		items = append(items, item)
	}
	if dropped > 0 {
		metrics.FusionDroppedTotal.Add(float64(dropped))
		s.logger.Debug("Dropped low-confidence evidence", zap.Int("dropped", dropped))
	}
	return items, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
