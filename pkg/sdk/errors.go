package evidex

import "github.com/kailas-cloud/evidex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest       = domain.ErrInvalidRequest
	ErrPlanNotFound         = domain.ErrPlanNotFound
	ErrNoEvidence           = domain.ErrNoEvidence
	ErrAnalysisFailed       = domain.ErrAnalysisFailed
	ErrPlanningFailed       = domain.ErrPlanningFailed
	ErrRetrievalTimeout     = domain.ErrRetrievalTimeout
	ErrRetrievalUnavailable = domain.ErrRetrievalUnavailable
	ErrRerankUnavailable    = domain.ErrRerankUnavailable
	ErrSynthesisFailed      = domain.ErrSynthesisFailed
)
