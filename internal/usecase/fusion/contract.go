package fusion

import (
	"context"

	"github.com/kailas-cloud/evidex/internal/domain/document"
)

// RankedCandidate is one reranker verdict: the candidate's position in the
// submitted list plus its relevance score.
type RankedCandidate struct {
	Index int
	Score float64
}

// Reranker orders candidates by relevance to the query (external collaborator).
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []document.Document) ([]RankedCandidate, error)
}
