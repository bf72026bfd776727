package orchestrator

import (
	"context"

	"github.com/kailas-cloud/evidex/internal/domain/answer"
	"github.com/kailas-cloud/evidex/internal/domain/evidence"
	"github.com/kailas-cloud/evidex/internal/domain/execution"
	"github.com/kailas-cloud/evidex/internal/domain/feedback"
	"github.com/kailas-cloud/evidex/internal/domain/plan"
	"github.com/kailas-cloud/evidex/internal/domain/query"
)

// Analyzer turns a raw query into a structured feature set (external collaborator).
type Analyzer interface {
	Analyze(ctx context.Context, queryText string) (query.FeatureSet, error)
}

// PlanBuilder builds and persists the retrieval plan for a request.
type PlanBuilder interface {
	BuildPlan(ctx context.Context, requestID string, req *query.Request, features *query.FeatureSet) (plan.Plan, error)
}

// RetrievalExecutor runs the plan's engine queries and merges per-engine outcomes.
type RetrievalExecutor interface {
	Execute(ctx context.Context, p *plan.Plan, features *query.FeatureSet) execution.Outcome
}

// Fuser collapses raw results into the final ranked evidence list.
type Fuser interface {
	Fuse(ctx context.Context, raw execution.Outcome, features *query.FeatureSet) ([]evidence.Item, error)
}

// Synthesizer writes the grounded answer text from evidence (external collaborator).
type Synthesizer interface {
	Synthesize(ctx context.Context, queryText string, evid []evidence.Item) (string, error)
}

// CheckpointStore snapshots pipeline state per request.
type CheckpointStore interface {
	Save(ctx context.Context, st *execution.State) error
	Load(ctx context.Context, requestID string) (*execution.State, error)
}

// PlanReader looks up persisted plans for audit.
type PlanReader interface {
	Get(ctx context.Context, planID string) (plan.Plan, error)
}

// FeedbackStore persists user feedback records.
type FeedbackStore interface {
	Save(ctx context.Context, fb *feedback.Feedback) error
}

// AnswerCache is the optional normalized-query response cache.
type AnswerCache interface {
	Lookup(ctx context.Context, req *query.Request) (string, answer.Answer, bool)
	Store(ctx context.Context, req *query.Request, planID string, ans *answer.Answer)
	Invalidate(ctx context.Context, req *query.Request)
}
