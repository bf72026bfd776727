package fusion

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/domain/document"
	"github.com/kailas-cloud/evidex/internal/domain/execution"
	"github.com/kailas-cloud/evidex/internal/domain/query"
)

// stubReranker implements the consumer interface for tests.
type stubReranker struct {
	calls          int
	lastQuery      string
	lastCandidates []document.Document
	rerankFn       func(ctx context.Context, query string, cands []document.Document) ([]RankedCandidate, error)
}

func (s *stubReranker) Rerank(
	ctx context.Context, queryText string, cands []document.Document,
) ([]RankedCandidate, error) {
	s.calls++
	s.lastQuery = queryText
	s.lastCandidates = cands
	if s.rerankFn != nil {
		return s.rerankFn(ctx, queryText, cands)
	}
	return passthrough(cands), nil
}

// passthrough scores candidates in submitted order, descending.
func passthrough(cands []document.Document) []RankedCandidate {
	out := make([]RankedCandidate, len(cands))
	for i := range cands {
		out[i] = RankedCandidate{Index: i, Score: 1 - float64(i)*0.05}
	}
	return out
}

func newTestService(t *testing.T, reranker Reranker) *Service {
	t.Helper()
	return New(Config{
		SimilarityThreshold: 0.85,
		RerankCandidates:    50,
		FinalK:              20,
	}, reranker, zap.NewNop())
}

type docSpec struct {
	engineID string
	id       string
	score    float64
	title    string
	snippet  string
	uri      string
}

func buildDoc(t *testing.T, spec docSpec) document.Document {
	t.Helper()
	title := spec.title
	if title == "" {
		title = "Title " + spec.id
	}
	d, err := document.New(
		spec.id, spec.engineID, title, spec.snippet, "School Education Dept", "",
		spec.uri, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), spec.score,
	)
	if err != nil {
		t.Fatalf("document.New(%s): %v", spec.id, err)
	}
	return d
}

func outcomeOf(docs ...document.Document) execution.Outcome {
	out := execution.Outcome{}
	for _, d := range docs {
		eo := out[d.EngineID()]
		eo.EngineID = d.EngineID()
		eo.Documents = append(eo.Documents, d)
		out[d.EngineID()] = eo
	}
	return out
}

func testFeatures(t *testing.T, original string) *query.FeatureSet {
	t.Helper()
	fs, err := query.NewFeatureSet(original, nil, nil, nil, query.TypeFactual, "", 0)
	if err != nil {
		t.Fatalf("NewFeatureSet: %v", err)
	}
	return &fs
}
