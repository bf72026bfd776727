package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest signals a malformed client request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized signals a missing or unknown API key.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPlanNotFound signals a missing retrieval plan.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrCheckpointNotFound signals a missing or expired execution checkpoint.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrNoEvidence signals that no engine produced usable evidence.
	ErrNoEvidence = errors.New("no evidence found")

	// ErrAnalysisFailed signals a query analysis collaborator failure. Request-fatal.
	ErrAnalysisFailed = errors.New("query analysis failed")
	// ErrPlanningFailed signals that no plan could be built (empty engine registry).
	ErrPlanningFailed = errors.New("planning failed")
	// ErrRetrievalTimeout signals a per-engine retrieval deadline hit.
	ErrRetrievalTimeout = errors.New("retrieval timed out")
	// ErrRetrievalUnavailable signals a per-engine transport or service failure.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrRerankUnavailable signals a reranker collaborator failure.
	ErrRerankUnavailable = errors.New("reranker unavailable")
	// ErrSynthesisFailed signals an answer synthesis collaborator failure. Request-fatal.
	ErrSynthesisFailed = errors.New("answer synthesis failed")
)

// StageError tags a request-fatal error with the pipeline stage that raised it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with the failing stage name.
func NewStageError(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
