package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/evidex/internal/domain/answer"
	"github.com/kailas-cloud/evidex/internal/domain/document"
	"github.com/kailas-cloud/evidex/internal/domain/evidence"
	"github.com/kailas-cloud/evidex/internal/domain/execution"
	"github.com/kailas-cloud/evidex/internal/domain/plan"
	"github.com/kailas-cloud/evidex/internal/domain/query"
)

// Hash field names. One hash per request; stage artifacts land in their own
// fields so a partial pipeline leaves a readable trail.
const (
	fieldStage     = "stage"
	fieldRequest   = "request"
	fieldFeatures  = "features"
	fieldPlan      = "plan"
	fieldOutcome   = "outcome"
	fieldEvidence  = "evidence"
	fieldAnswer    = "answer"
	fieldErrors    = "errors"
	fieldStartedAt = "started_at"
	fieldUpdatedAt = "updated_at"
)

type requestDoc struct {
	Query        string `json:"query"`
	Jurisdiction string `json:"jurisdiction"`
	MaxEngines   int    `json:"max_engines"`
}

type entityDoc struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	Normalized string `json:"normalized,omitempty"`
}

type temporalDoc struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type featureDoc struct {
	Original           string       `json:"original"`
	Entities           []entityDoc  `json:"entities,omitempty"`
	Facets             []string     `json:"facets,omitempty"`
	Temporal           *temporalDoc `json:"temporal,omitempty"`
	QueryType          string       `json:"query_type"`
	Enhanced           string       `json:"enhanced,omitempty"`
	EnhancedConfidence float64      `json:"enhanced_confidence,omitempty"`
}

type engineQueryDoc struct {
	EngineID   string   `json:"engine_id"`
	QueryText  string   `json:"query_text"`
	TopK       int      `json:"top_k"`
	FacetHints []string `json:"facet_hints,omitempty"`
}

type planDoc struct {
	ID        string                 `json:"id"`
	RequestID string                 `json:"request_id"`
	Query     string                 `json:"query"`
	Queries   []engineQueryDoc       `json:"queries"`
	Rationale []plan.EngineRationale `json:"rationale,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type documentDoc struct {
	ID         string    `json:"id"`
	EngineID   string    `json:"engine_id"`
	Title      string    `json:"title,omitempty"`
	Snippet    string    `json:"snippet,omitempty"`
	Authority  string    `json:"authority,omitempty"`
	Section    string    `json:"section,omitempty"`
	SourceURI  string    `json:"source_uri,omitempty"`
	SourceDate time.Time `json:"source_date"`
	RawScore   float64   `json:"raw_score"`
}

type engineOutcomeDoc struct {
	EngineID  string        `json:"engine_id"`
	Documents []documentDoc `json:"documents,omitempty"`
	Attempts  int           `json:"attempts"`
	Failure   string        `json:"failure,omitempty"`
}

type evidenceItemDoc struct {
	Document   documentDoc `json:"document"`
	Rank       int         `json:"rank"`
	FinalScore float64     `json:"final_score"`
	Duplicates []string    `json:"duplicates,omitempty"`
}

type answerDoc struct {
	Text        string              `json:"text"`
	Citations   []evidence.Citation `json:"citations,omitempty"`
	UsedEngines []string            `json:"used_engines,omitempty"`
	Confidence  float64             `json:"confidence"`
}

// buildFields flattens the state into hash fields. Artifacts not yet produced
// are simply absent.
func buildFields(st *execution.State) (map[string]string, error) {
	req := st.Request()
	fields := map[string]string{
		fieldStage:     string(st.Stage()),
		fieldStartedAt: st.StartedAt().UTC().Format(time.RFC3339Nano),
		fieldUpdatedAt: st.UpdatedAt().UTC().Format(time.RFC3339Nano),
	}

	if err := putJSON(fields, fieldRequest, requestDoc{
		Query:        req.Query(),
		Jurisdiction: req.Jurisdiction(),
		MaxEngines:   req.MaxEngines(),
	}); err != nil {
		return nil, err
	}

	if f := st.Features(); f != nil {
		if err := putJSON(fields, fieldFeatures, buildFeatureDoc(f)); err != nil {
			return nil, err
		}
	}
	if p := st.Plan(); p != nil {
		if err := putJSON(fields, fieldPlan, buildPlanDoc(p)); err != nil {
			return nil, err
		}
	}
	if o := st.RetrievalOutcome(); o != nil {
		if err := putJSON(fields, fieldOutcome, buildOutcomeDoc(o)); err != nil {
			return nil, err
		}
	}
	if ev := st.Evidence(); ev != nil {
		if err := putJSON(fields, fieldEvidence, buildEvidenceDocs(ev)); err != nil {
			return nil, err
		}
	}
	if a := st.Answer(); a != nil {
		if err := putJSON(fields, fieldAnswer, answerDoc{
			Text:        a.Text(),
			Citations:   a.Citations(),
			UsedEngines: a.UsedEngines(),
			Confidence:  a.Confidence(),
		}); err != nil {
			return nil, err
		}
	}
	if errs := st.Errors(); len(errs) > 0 {
		if err := putJSON(fields, fieldErrors, errs); err != nil {
			return nil, err
		}
	}

	return fields, nil
}

func putJSON(fields map[string]string, field string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("field %s: %w", field, err)
	}
	fields[field] = string(data)
	return nil
}

func buildFeatureDoc(f *query.FeatureSet) featureDoc {
	doc := featureDoc{
		Original:           f.Original(),
		Facets:             f.Facets(),
		QueryType:          string(f.QueryType()),
		Enhanced:           f.Enhanced(),
		EnhancedConfidence: f.EnhancedConfidence(),
	}
	for _, e := range f.Entities() {
		doc.Entities = append(doc.Entities, entityDoc{
			Type:       string(e.Type),
			Text:       e.Text,
			Normalized: e.Normalized,
		})
	}
	if tr := f.Temporal(); tr != nil {
		doc.Temporal = &temporalDoc{From: tr.From, To: tr.To}
	}
	return doc
}

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

func buildOutcomeDoc(o execution.Outcome) map[string]engineOutcomeDoc {
	out := make(map[string]engineOutcomeDoc, len(o))
	for id, eo := range o {
		doc := engineOutcomeDoc{
			EngineID: eo.EngineID,
			Attempts: eo.Attempts,
			Failure:  eo.Failure,
		}
		for _, d := range eo.Documents {
			doc.Documents = append(doc.Documents, buildDocumentDoc(d))
		}
		out[id] = doc
	}
	return out
}

func buildEvidenceDocs(items []evidence.Item) []evidenceItemDoc {
	out := make([]evidenceItemDoc, 0, len(items))
	for i := range items {
		out = append(out, evidenceItemDoc{
			Document:   buildDocumentDoc(items[i].Document()),
			Rank:       items[i].Rank(),
			FinalScore: items[i].FinalScore(),
			Duplicates: items[i].Duplicates(),
		})
	}
	return out
}

func buildDocumentDoc(d document.Document) documentDoc {
	return documentDoc{
		ID:         d.ID(),
		EngineID:   d.EngineID(),
		Title:      d.Title(),
		Snippet:    d.Snippet(),
		Authority:  d.Authority(),
		Section:    d.Section(),
		SourceURI:  d.SourceURI(),
		SourceDate: d.SourceDate(),
		RawScore:   d.RawScore(),
	}
}

// parseFields rebuilds a State from hash fields.
func parseFields(requestID string, m map[string]string) (*execution.State, error) {
	stage := execution.Stage(m[fieldStage])
	if !stage.IsValid() {
		return nil, fmt.Errorf("invalid stage %q in checkpoint %s", m[fieldStage], requestID)
	}

	var reqDoc requestDoc
	if raw, ok := m[fieldRequest]; ok {
		if err := json.Unmarshal([]byte(raw), &reqDoc); err != nil {
			return nil, fmt.Errorf("field %s: %w", fieldRequest, err)
		}
	}
	req := query.ReconstructRequest(reqDoc.Query, reqDoc.Jurisdiction, reqDoc.MaxEngines)

	var features *query.FeatureSet
	if raw, ok := m[fieldFeatures]; ok {
		var doc featureDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("field %s: %w", fieldFeatures, err)
		}
		f := doc.toDomain()
		features = &f
	}

	var p *plan.Plan
	if raw, ok := m[fieldPlan]; ok {
		var doc planDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("field %s: %w", fieldPlan, err)
		}
		pl := doc.toDomain()
		p = &pl
	}

	var outcome execution.Outcome
	if raw, ok := m[fieldOutcome]; ok {
		var docs map[string]engineOutcomeDoc
		if err := json.Unmarshal([]byte(raw), &docs); err != nil {
			return nil, fmt.Errorf("field %s: %w", fieldOutcome, err)
		}
		outcome = make(execution.Outcome, len(docs))
		for id, doc := range docs {
			outcome[id] = doc.toDomain()
		}
	}

	var evid []evidence.Item
	if raw, ok := m[fieldEvidence]; ok {
		var docs []evidenceItemDoc
		if err := json.Unmarshal([]byte(raw), &docs); err != nil {
			return nil, fmt.Errorf("field %s: %w", fieldEvidence, err)
		}
		for _, doc := range docs {
			evid = append(evid, evidence.Reconstruct(
				doc.Document.toDomain(), doc.Rank, doc.FinalScore, doc.Duplicates,
			))
		}
	}

	var ans *answer.Answer
	if raw, ok := m[fieldAnswer]; ok {
		var doc answerDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("field %s: %w", fieldAnswer, err)
		}
		a := answer.Reconstruct(doc.Text, doc.Citations, doc.UsedEngines, doc.Confidence)
		ans = &a
	}

	var errs []string
	if raw, ok := m[fieldErrors]; ok {
		if err := json.Unmarshal([]byte(raw), &errs); err != nil {
			return nil, fmt.Errorf("field %s: %w", fieldErrors, err)
		}
	}

	startedAt := parseTime(m[fieldStartedAt])
	updatedAt := parseTime(m[fieldUpdatedAt])

	return execution.ReconstructState(
		requestID, req, stage, features, p, outcome, evid, ans, errs, startedAt, updatedAt,
	), nil
}

func (d *featureDoc) toDomain() query.FeatureSet {
	var entities []query.Entity
	for _, e := range d.Entities {
		entities = append(entities, query.Entity{
			Type:       query.EntityType(e.Type),
			Text:       e.Text,
			Normalized: e.Normalized,
		})
	}
	var temporal *query.TemporalRange
	if d.Temporal != nil {
		temporal = &query.TemporalRange{From: d.Temporal.From, To: d.Temporal.To}
	}
	return query.ReconstructFeatureSet(
		d.Original, entities, d.Facets, temporal,
		query.Type(d.QueryType), d.Enhanced, d.EnhancedConfidence,
	)
}

func (d *planDoc) toDomain() plan.Plan {
	queries := make([]plan.EngineQuery, 0, len(d.Queries))
	for _, q := range d.Queries {
		eq, err := plan.NewEngineQuery(q.EngineID, q.QueryText, q.TopK, q.FacetHints)
		if err != nil {
			continue
		}
		queries = append(queries, eq)
	}
	return plan.Reconstruct(d.ID, d.RequestID, d.Query, queries, d.Rationale, d.CreatedAt)
}

func (d *engineOutcomeDoc) toDomain() execution.EngineOutcome {
	out := execution.EngineOutcome{
		EngineID: d.EngineID,
		Attempts: d.Attempts,
		Failure:  d.Failure,
	}
	for _, doc := range d.Documents {
		out.Documents = append(out.Documents, doc.toDomain())
	}
	return out
}

func (d *documentDoc) toDomain() document.Document {
	return document.Reconstruct(
		d.ID, d.EngineID, d.Title, d.Snippet, d.Authority,
		d.Section, d.SourceURI, d.SourceDate, d.RawScore,
	)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
