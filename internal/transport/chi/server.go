package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/engine"
	"github.com/kailas-cloud/evidex/internal/domain/evidence"
	"github.com/kailas-cloud/evidex/internal/domain/execution"
	"github.com/kailas-cloud/evidex/internal/domain/feedback"
	"github.com/kailas-cloud/evidex/internal/domain/plan"
	"github.com/kailas-cloud/evidex/internal/domain/query"
	healthuc "github.com/kailas-cloud/evidex/internal/usecase/health"
	"github.com/kailas-cloud/evidex/internal/usecase/orchestrator"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the answer pipeline over HTTP.
type Server struct {
	answers       *orchestrator.Service
	registry      *engine.Registry
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	answers *orchestrator.Service,
	registry *engine.Registry,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		answers:  answers,
		registry: registry,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized, codeUnauthorized),
		sentinelHandler(domain.ErrPlanNotFound, http.StatusNotFound, codePlanNotFound),
		sentinelHandler(domain.ErrNoEvidence, http.StatusUnprocessableEntity, codeNoEvidence),
		stageErrorHandler(domain.ErrAnalysisFailed, codeAnalysisFailed),
		stageErrorHandler(domain.ErrPlanningFailed, codePlanningFailed),
		stageErrorHandler(domain.ErrSynthesisFailed, codeSynthesisFailed),
	}
	return s
}

// Register mounts the API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/answers", s.CreateAnswer)
	r.Get("/v1/plans/{planID}", s.GetPlan)
	r.Get("/v1/engines", s.ListEngines)
	r.Get("/v1/health", s.HealthCheck)
	r.Post("/v1/feedback", s.SubmitFeedback)
	r.Get("/metrics", s.Metrics)
}

// CreateAnswer handles POST /v1/answers.
func (s *Server) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	q, err := query.NewRequest(req.Query, req.Jurisdiction, req.MaxEngines)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	start := time.Now()
	res, err := s.answers.Answer(r.Context(), &q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answerToResponse(&q, res, time.Since(start)))
}

// GetPlan handles GET /v1/plans/{planID}.
func (s *Server) GetPlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	if planID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "plan id is required")
		return
	}

	details, err := s.answers.GetPlan(r.Context(), planID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, planToResponse(details))
}

// ListEngines handles GET /v1/engines.
func (s *Server) ListEngines(w http.ResponseWriter, r *http.Request) {
	descriptors := s.registry.All()

	items := make([]engineResponse, len(descriptors))
	for i := range descriptors {
		items[i] = engineToResponse(&descriptors[i])
	}

	writeJSON(w, http.StatusOK, engineListResponse{
		Items: items,
		Total: len(items),
	})
}

// HealthCheck handles GET /v1/health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// SubmitFeedback handles POST /v1/feedback.
func (s *Server) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.RequestID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "request_id is required")
		return
	}

	fb, err := s.answers.SubmitFeedback(r.Context(), req.RequestID, req.Rating, req.Comment)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, feedbackToResponse(&fb))
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type errorCode string

const (
	codeBadRequest       errorCode = "bad_request"
	codeValidationFailed errorCode = "validation_failed"
	codeUnauthorized     errorCode = "unauthorized"
	codePlanNotFound     errorCode = "plan_not_found"
	codeNoEvidence       errorCode = "no_evidence"
	codeAnalysisFailed   errorCode = "analysis_failed"
	codePlanningFailed   errorCode = "planning_failed"
	codeSynthesisFailed  errorCode = "synthesis_failed"
	codeInternalError    errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrUnauthorized,
		domain.ErrPlanNotFound,
		domain.ErrNoEvidence,
		domain.ErrAnalysisFailed,
		domain.ErrPlanningFailed,
		domain.ErrRetrievalTimeout,
		domain.ErrRetrievalUnavailable,
		domain.ErrRerankUnavailable,
		domain.ErrSynthesisFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// stageErrorHandler handles a request-fatal pipeline failure with the stage name attached.
func stageErrorHandler(sentinel error, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		var se *domain.StageError
		if errors.As(err, &se) {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"code":    code,
				"message": msg,
				"stage":   se.Stage,
			})
			return true
		}
		writeError(w, http.StatusBadGateway, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

type answerRequest struct {
	Query        string `json:"query"`
	Jurisdiction string `json:"jurisdiction"`
	MaxEngines   int    `json:"max_engines"`
}

type answerResponse struct {
	RequestID        string              `json:"request_id"`
	Query            string              `json:"query"`
	Answer           string              `json:"answer"`
	Citations        []evidence.Citation `json:"citations"`
	UsedEngines      []string            `json:"used_engines"`
	Confidence       float64             `json:"confidence"`
	PlanID           string              `json:"plan_id"`
	Cached           bool                `json:"cached,omitempty"`
	Timestamp        time.Time           `json:"timestamp"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
}

func answerToResponse(q *query.Request, res orchestrator.Result, elapsed time.Duration) answerResponse {
	ans := res.Answer
	citations := ans.Citations()
	if citations == nil {
		citations = []evidence.Citation{}
	}
	usedEngines := ans.UsedEngines()
	if usedEngines == nil {
		usedEngines = []string{}
	}

	return answerResponse{
		RequestID:        res.RequestID,
		Query:            q.Query(),
		Answer:           ans.Text(),
		Citations:        citations,
		UsedEngines:      usedEngines,
		Confidence:       ans.Confidence(),
		PlanID:           res.PlanID,
		Cached:           res.Cached,
		Timestamp:        time.Now().UTC(),
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
}

type engineQueryResponse struct {
	EngineID   string   `json:"engine_id"`
	QueryText  string   `json:"query_text"`
	TopK       int      `json:"top_k"`
	FacetHints []string `json:"facet_hints,omitempty"`
}

type engineOutcomeResponse struct {
	EngineID  string `json:"engine_id"`
	Documents int    `json:"documents"`
	Attempts  int    `json:"attempts"`
	Failure   string `json:"failure,omitempty"`
}

type traceResponse struct {
	Stage     string                  `json:"stage"`
	Engines   []engineOutcomeResponse `json:"engines,omitempty"`
	Errors    []string                `json:"errors,omitempty"`
	StartedAt time.Time               `json:"started_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

type planResponse struct {
	PlanID          string                 `json:"plan_id"`
	RequestID       string                 `json:"request_id"`
	Query           string                 `json:"query"`
	SelectedEngines []string               `json:"selected_engines"`
	Queries         []engineQueryResponse  `json:"queries"`
	Rationale       []plan.EngineRationale `json:"rationale,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	Trace           *traceResponse         `json:"trace,omitempty"`
}

func planToResponse(details orchestrator.PlanDetails) planResponse {
	p := details.Plan

	queries := make([]engineQueryResponse, len(p.Queries()))
	for i, eq := range p.Queries() {
		queries[i] = engineQueryResponse{
			EngineID:   eq.EngineID(),
			QueryText:  eq.QueryText(),
			TopK:       eq.TopK(),
			FacetHints: eq.FacetHints(),
		}
	}

	resp := planResponse{
		PlanID:          p.ID(),
		RequestID:       p.RequestID(),
		Query:           p.Query(),
		SelectedEngines: p.EngineIDs(),
		Queries:         queries,
		Rationale:       p.Rationale(),
		CreatedAt:       p.CreatedAt().UTC(),
	}
	if details.Trace != nil {
		resp.Trace = traceToResponse(details.Trace)
	}
	return resp
}

func traceToResponse(st *execution.State) *traceResponse {
	outcome := st.RetrievalOutcome()

	ids := make([]string, 0, len(outcome))
	for id := range outcome {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	engines := make([]engineOutcomeResponse, len(ids))
	for i, id := range ids {
		eo := outcome[id]
		engines[i] = engineOutcomeResponse{
			EngineID:  eo.EngineID,
			Documents: len(eo.Documents),
			Attempts:  eo.Attempts,
			Failure:   eo.Failure,
		}
	}

	return &traceResponse{
		Stage:     string(st.Stage()),
		Engines:   engines,
		Errors:    st.Errors(),
		StartedAt: st.StartedAt().UTC(),
		UpdatedAt: st.UpdatedAt().UTC(),
	}
}

type engineResponse struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	CorpusID         string     `json:"corpus_id"`
	BaseWeight       float64    `json:"base_weight"`
	Priority         int        `json:"priority"`
	FacetAffinities  []string   `json:"facet_affinities,omitempty"`
	EntityAffinities []string   `json:"entity_affinities,omitempty"`
	RecencyBoost     float64    `json:"recency_boost,omitempty"`
	CoverageFrom     *time.Time `json:"coverage_from,omitempty"`
	CoverageTo       *time.Time `json:"coverage_to,omitempty"`
	DefaultTopK      int        `json:"default_top_k"`
}

type engineListResponse struct {
	Items []engineResponse `json:"items"`
	Total int              `json:"total"`
}

func engineToResponse(d *engine.Descriptor) engineResponse {
	var entityAffinities []string
	if len(d.EntityAffinities()) > 0 {
		entityAffinities = make([]string, len(d.EntityAffinities()))
		for i, t := range d.EntityAffinities() {
			entityAffinities[i] = string(t)
		}
	}

	resp := engineResponse{
		ID:               d.ID(),
		Name:             d.Name(),
		CorpusID:         d.CorpusID(),
		BaseWeight:       d.BaseWeight(),
		Priority:         d.Priority(),
		FacetAffinities:  d.FacetAffinities(),
		EntityAffinities: entityAffinities,
		RecencyBoost:     d.RecencyBoost(),
		DefaultTopK:      d.DefaultTopK(),
	}

	if !d.CoverageFrom().IsZero() {
		from := d.CoverageFrom().UTC()
		resp.CoverageFrom = &from
	}
	if !d.CoverageTo().IsZero() {
		to := d.CoverageTo().UTC()
		resp.CoverageTo = &to
	}

	return resp
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type feedbackRequest struct {
	RequestID string `json:"request_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

type feedbackResponse struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func feedbackToResponse(fb *feedback.Feedback) feedbackResponse {
	return feedbackResponse{
		ID:        fb.ID(),
		RequestID: fb.RequestID(),
		Rating:    fb.Rating(),
		Comment:   fb.Comment(),
		CreatedAt: fb.CreatedAt().UTC(),
	}
}
