package evidex

import (
	"time"

	"github.com/kailas-cloud/evidex/internal/domain/engine"
	"github.com/kailas-cloud/evidex/internal/domain/execution"
	"github.com/kailas-cloud/evidex/internal/domain/feedback"
	"github.com/kailas-cloud/evidex/internal/usecase/orchestrator"
)

// AnswerRequest is one policy question. Query is required; Jurisdiction
// defaults to "Andhra Pradesh" and MaxEngines to 3.
type AnswerRequest struct {
	Query        string
	Jurisdiction string
	MaxEngines   int
}

// Answer is a synthesized policy answer with its provenance.
type Answer struct {
	RequestID   string
	PlanID      string
	Text        string
	Citations   []Citation
	UsedEngines []string
	Confidence  float64
	Cached      bool
}

// Citation points at one evidence document backing the answer.
type Citation struct {
	Vertical   string
	DocID      string
	Title      string
	Locator    string
	SourceURI  string
	SourceDate time.Time
	Score      float64
}

// PlanDetails is a stored retrieval plan with its execution trace,
// when the checkpoint is still retained.
type PlanDetails struct {
	PlanID          string
	RequestID       string
	Query           string
	SelectedEngines []string
	Queries         []EngineQuery
	Rationale       []EngineRationale
	CreatedAt       time.Time
	Trace           *Trace
}

// EngineQuery is one engine-tailored retrieval query inside a plan.
type EngineQuery struct {
	EngineID   string
	QueryText  string
	TopK       int
	FacetHints []string
}

// EngineRationale explains why one engine entered (or missed) a plan.
type EngineRationale struct {
	EngineID   string
	Score      float64
	ForcedBy   string
	BelowFloor bool
}

// Trace summarizes how far a request progressed through the pipeline.
type Trace struct {
	Stage     string
	Engines   map[string]EngineOutcome
	Errors    []string
	StartedAt time.Time
	UpdatedAt time.Time
}

// EngineOutcome is one engine's retrieval result inside a trace.
type EngineOutcome struct {
	EngineID  string
	Documents int
	Attempts  int
	Failure   string // "timeout", "unavailable", "empty"; "" on success
}

// EngineInfo describes one registered retrieval engine.
type EngineInfo struct {
	ID               string
	Name             string
	CorpusID         string
	BaseWeight       float64
	Priority         int
	FacetAffinities  []string
	EntityAffinities []string
	RecencyBoost     float64
	DefaultTopK      int
}

// Feedback is a stored rating for an answered request.
type Feedback struct {
	ID        string
	RequestID string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

func answerFromResult(res orchestrator.Result) Answer {
	ans := res.Answer
	citations := make([]Citation, 0, len(ans.Citations()))
	for _, c := range ans.Citations() {
		citations = append(citations, Citation{
			Vertical:   c.Vertical,
			DocID:      c.DocID,
			Title:      c.Title,
			Locator:    c.Locator,
			SourceURI:  c.SourceURI,
			SourceDate: c.SourceDate,
			Score:      c.Score,
		})
	}
	return Answer{
		RequestID:   res.RequestID,
		PlanID:      res.PlanID,
		Text:        ans.Text(),
		Citations:   citations,
		UsedEngines: ans.UsedEngines(),
		Confidence:  ans.Confidence(),
		Cached:      res.Cached,
	}
}

func planFromDetails(d orchestrator.PlanDetails) PlanDetails {
	p := d.Plan
	queries := make([]EngineQuery, 0, len(p.Queries()))
	for _, q := range p.Queries() {
		queries = append(queries, EngineQuery{
			EngineID:   q.EngineID(),
			QueryText:  q.QueryText(),
			TopK:       q.TopK(),
			FacetHints: q.FacetHints(),
		})
	}
	rationale := make([]EngineRationale, 0, len(p.Rationale()))
	for _, r := range p.Rationale() {
		rationale = append(rationale, EngineRationale{
			EngineID:   r.EngineID,
			Score:      r.Score,
			ForcedBy:   r.ForcedBy,
			BelowFloor: r.BelowFloor,
		})
	}
	out := PlanDetails{
		PlanID:          p.ID(),
		RequestID:       p.RequestID(),
		Query:           p.Query(),
		SelectedEngines: p.EngineIDs(),
		Queries:         queries,
		Rationale:       rationale,
		CreatedAt:       p.CreatedAt(),
	}
	if d.Trace != nil {
		out.Trace = traceFromState(d.Trace)
	}
	return out
}

func traceFromState(st *execution.State) *Trace {
	engines := make(map[string]EngineOutcome, len(st.RetrievalOutcome()))
	for id, eo := range st.RetrievalOutcome() {
		engines[id] = EngineOutcome{
			EngineID:  eo.EngineID,
			Documents: len(eo.Documents),
			Attempts:  eo.Attempts,
			Failure:   eo.Failure,
		}
	}
	return &Trace{
		Stage:     string(st.Stage()),
		Engines:   engines,
		Errors:    st.Errors(),
		StartedAt: st.StartedAt(),
		UpdatedAt: st.UpdatedAt(),
	}
}

func engineInfo(d engine.Descriptor) EngineInfo {
	entities := make([]string, 0, len(d.EntityAffinities()))
	for _, e := range d.EntityAffinities() {
		entities = append(entities, string(e))
	}
	return EngineInfo{
		ID:               d.ID(),
		Name:             d.Name(),
		CorpusID:         d.CorpusID(),
		BaseWeight:       d.BaseWeight(),
		Priority:         d.Priority(),
		FacetAffinities:  d.FacetAffinities(),
		EntityAffinities: entities,
		RecencyBoost:     d.RecencyBoost(),
		DefaultTopK:      d.DefaultTopK(),
	}
}

func feedbackFromDomain(f feedback.Feedback) Feedback {
	return Feedback{
		ID:        f.ID(),
		RequestID: f.RequestID(),
		Rating:    f.Rating(),
		Comment:   f.Comment(),
		CreatedAt: f.CreatedAt(),
	}
}
