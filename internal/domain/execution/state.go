package execution

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/evidex/internal/domain/answer"
	"github.com/kailas-cloud/evidex/internal/domain/document"
	"github.com/kailas-cloud/evidex/internal/domain/evidence"
	"github.com/kailas-cloud/evidex/internal/domain/plan"
	"github.com/kailas-cloud/evidex/internal/domain/query"
)

// Stage is the orchestration pipeline stage.
type Stage string

// Pipeline stage constants.
const (
	StageAnalyzing    Stage = "ANALYZING"
	StagePlanning     Stage = "PLANNING"
	StageRetrieving   Stage = "RETRIEVING"
	StageFusing       Stage = "FUSING"
	StageSynthesizing Stage = "SYNTHESIZING"
	StageDone         Stage = "DONE"
	StageFailed       Stage = "FAILED"
)

// IsValid checks if the stage is one of the supported values.
func (s Stage) IsValid() bool {
	switch s {
	case StageAnalyzing, StagePlanning, StageRetrieving, StageFusing,
		StageSynthesizing, StageDone, StageFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from the stage.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// next is the single legal forward transition per non-terminal stage.
var next = map[Stage]Stage{
	StageAnalyzing:    StagePlanning,
	StagePlanning:     StageRetrieving,
	StageRetrieving:   StageFusing,
	StageFusing:       StageSynthesizing,
	StageSynthesizing: StageDone,
}

// EngineOutcome is the per-engine result of the retrieval stage.
type EngineOutcome struct {
	EngineID  string
	Documents []document.Document
	Attempts  int
	// Failure is a short reason tag ("timeout", "unavailable", "empty"); "" on success.
	Failure string
}

// Outcome maps engine id to its retrieval outcome.
type Outcome map[string]EngineOutcome

// Succeeded reports whether at least one engine produced a non-empty document list.
func (o Outcome) Succeeded() bool {
	for _, eo := range o {
		if eo.Failure == "" && len(eo.Documents) > 0 {
			return true
		}
	}
	return false
}

// Documents returns all retrieved documents across engines.
// Order is not meaningful; fusion alone determines evidence order.
func (o Outcome) Documents() []document.Document {
	var out []document.Document
	for _, eo := range o {
		out = append(out, eo.Documents...)
	}
	return out
}

// State is the orchestrator's per-request pipeline state.
// It is owned by exactly one request task and never shared; every accepted
// transition is snapshot-checkpointed by the orchestrator.
type State struct {
	requestID string
	request   query.Request
	stage     Stage

	features *query.FeatureSet
	plan     *plan.Plan
	outcome  Outcome
	evidence []evidence.Item
	answer   *answer.Answer

	errs      []string
	startedAt time.Time
	updatedAt time.Time
}

// NewState creates the initial state for one request, at ANALYZING.
func NewState(requestID string, req query.Request) (*State, error) {
	if requestID == "" {
		return nil, fmt.Errorf("request id is required")
	}
	now := time.Now().UTC()
	return &State{
		requestID: requestID,
		request:   req,
		stage:     StageAnalyzing,
		startedAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructState creates a State without validation (storage hydration).
func ReconstructState(
	requestID string, req query.Request, stage Stage,
	features *query.FeatureSet, p *plan.Plan, outcome Outcome,
	evid []evidence.Item, ans *answer.Answer, errs []string,
	startedAt, updatedAt time.Time,
) *State {
	return &State{
		requestID: requestID, request: req, stage: stage,
		features: features, plan: p, outcome: outcome,
		evidence: evid, answer: ans, errs: errs,
		startedAt: startedAt, updatedAt: updatedAt,
	}
}

// Advance moves to the next pipeline stage.
func (s *State) Advance() error {
	n, ok := next[s.stage]
	if !ok {
		return fmt.Errorf("no transition from terminal stage %s", s.stage)
	}
	s.stage = n
	s.updatedAt = time.Now().UTC()
	return nil
}

// Fail moves to FAILED, recording the error against the current stage.
func (s *State) Fail(err error) {
	if err != nil {
		s.errs = append(s.errs, fmt.Sprintf("%s: %v", s.stage, err))
	}
	s.stage = StageFailed
	s.updatedAt = time.Now().UTC()
}

// RecordWarning keeps a non-fatal error (per-engine failures) for audit.
func (s *State) RecordWarning(err error) {
	if err == nil {
		return
	}
	s.errs = append(s.errs, fmt.Sprintf("%s: %v", s.stage, err))
}

// SetFeatures records the analysis artifact.
func (s *State) SetFeatures(f query.FeatureSet) { s.features = &f }

// SetPlan records the planning artifact.
func (s *State) SetPlan(p plan.Plan) { s.plan = &p }

// SetOutcome records the retrieval artifact.
func (s *State) SetOutcome(o Outcome) { s.outcome = o }

// SetEvidence records the fusion artifact.
func (s *State) SetEvidence(items []evidence.Item) { s.evidence = items }

// SetAnswer records the synthesis artifact.
func (s *State) SetAnswer(a answer.Answer) { s.answer = &a }

// RequestID returns the request identifier.
func (s *State) RequestID() string { return s.requestID }

// Request returns the originating request.
func (s *State) Request() query.Request { return s.request }

// Stage returns the current pipeline stage.
func (s *State) Stage() Stage { return s.stage }

// Features returns the analysis artifact (nil before ANALYZING completes).
func (s *State) Features() *query.FeatureSet { return s.features }

// Plan returns the planning artifact (nil before PLANNING completes).
func (s *State) Plan() *plan.Plan { return s.plan }

// RetrievalOutcome returns the retrieval artifact (nil before RETRIEVING completes).
func (s *State) RetrievalOutcome() Outcome { return s.outcome }

// Evidence returns the fusion artifact (nil before FUSING completes).
func (s *State) Evidence() []evidence.Item { return s.evidence }

// Answer returns the synthesis artifact (nil before SYNTHESIZING completes).
func (s *State) Answer() *answer.Answer { return s.answer }

// Errors returns the accumulated stage-tagged error strings.
func (s *State) Errors() []string { return s.errs }

// StartedAt returns when the request entered the pipeline.
func (s *State) StartedAt() time.Time { return s.startedAt }

// UpdatedAt returns the last transition time.
func (s *State) UpdatedAt() time.Time { return s.updatedAt }
