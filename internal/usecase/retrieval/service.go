package retrieval

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/document"
	"github.com/kailas-cloud/evidex/internal/domain/engine"
	"github.com/kailas-cloud/evidex/internal/domain/execution"
	"github.com/kailas-cloud/evidex/internal/domain/plan"
	"github.com/kailas-cloud/evidex/internal/domain/query"
)

// Failure reason tags recorded per engine.
const (
	FailureTimeout     = "timeout"
	FailureUnavailable = "unavailable"
	FailureEmpty       = "empty"
)

// Config bounds the retrieval fan-out.
type Config struct {
	MaxConcurrency int
	EngineTimeout  time.Duration
	MaxAttempts    int
}

// Service fans retrieval out across the planned engines, bounded by
// MaxConcurrency, and merges per-engine outcomes. A failing engine never
// aborts the others.
type Service struct {
	cfg       Config
	reg       *engine.Registry
	retriever Retriever
	logger    *zap.Logger
}

// New creates a retrieval coordinator.
func New(cfg Config, reg *engine.Registry, retriever Retriever, logger *zap.Logger) *Service {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Service{cfg: cfg, reg: reg, retriever: retriever, logger: logger}
}

// Execute runs every engine query in the plan. Each sub-task writes only its
// own slot; the outcome map is assembled after all sub-tasks join, so evidence
// order never depends on completion order.
func (s *Service) Execute(ctx context.Context, p *plan.Plan, features *query.FeatureSet) execution.Outcome {
	queries := p.Queries()
	results := make([]execution.EngineOutcome, len(queries))

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for i := range queries {
		i := i
		g.Go(func() error {
			results[i] = s.retrieveOne(ctx, &queries[i], features)
			return nil
		})
	}
	_ = g.Wait() // sub-tasks report through their slots, never through errors

	outcome := make(execution.Outcome, len(results))
	for _, r := range results {
		outcome[r.EngineID] = r
	}
	return outcome
}

// retrieveOne walks the fallback ladder for a single engine, stopping at the
// first non-empty result.
func (s *Service) retrieveOne(
	ctx context.Context, eq *plan.EngineQuery, features *query.FeatureSet,
) execution.EngineOutcome {
	out := execution.EngineOutcome{EngineID: eq.EngineID()}

	d, ok := s.reg.Get(eq.EngineID())
	if !ok {
		out.Failure = FailureUnavailable
		s.logger.Warn("Plan references unregistered engine", zap.String("engine", eq.EngineID()))
		return out
	}

	for _, queryText := range attemptQueries(eq.QueryText(), features, s.cfg.MaxAttempts) {
		if ctx.Err() != nil {
			out.Failure = FailureTimeout
			return out
		}

		out.Attempts++
		docs, err := s.attempt(ctx, d, queryText, eq.TopK())
		if err != nil {
			out.Failure = classifyFailure(err)
			s.logger.Warn("Engine retrieval attempt failed",
				zap.String("engine", d.ID()),
				zap.Int("attempt", out.Attempts),
				zap.String("reason", out.Failure),
				zap.Error(err),
			)
			continue
		}
		if len(docs) == 0 {
			out.Failure = FailureEmpty
			continue
		}

		out.Documents = docs
		out.Failure = ""
		return out
	}
	return out
}

func (s *Service) attempt(
	ctx context.Context, d engine.Descriptor, queryText string, topK int,
) ([]document.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EngineTimeout)
	defer cancel()
	return s.retriever.Retrieve(ctx, d, queryText, topK)
}

// attemptQueries builds the fallback ladder: the plan's assigned query, the
// raw query, then the facet-broadened query. Duplicates collapse, so an
// unenhanced plan spends fewer attempts.
func attemptQueries(assigned string, features *query.FeatureSet, maxAttempts int) []string {
	candidates := []string{assigned, features.Original(), features.BroadenedQuery()}
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, q := range candidates {
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
		if len(out) == maxAttempts {
			break
		}
	}
	return out
}

func classifyFailure(err error) string {
	switch {
	case errors.Is(err, domain.ErrRetrievalTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return FailureTimeout
	default:
		return FailureUnavailable
	}
}
