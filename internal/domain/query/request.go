package query

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Request parameter limits.
const (
	// MinQueryLength is the minimum allowed query length in runes.
	MinQueryLength = 3
	// MaxQueryLength is the maximum allowed query length in runes.
	MaxQueryLength = 2000

	DefaultJurisdiction = "Andhra Pradesh"
	DefaultMaxEngines   = 3
	MaxEnginesCeiling   = 5
)

// Request is a validated answer request.
type Request struct {
	query        string
	jurisdiction string
	maxEngines   int
}

// NewRequest validates and normalizes an answer request.
// Defaults: jurisdiction="Andhra Pradesh", maxEngines=3 (clamped to 1..5).
func NewRequest(query, jurisdiction string, maxEngines int) (Request, error) {
	query = strings.TrimSpace(query)
	n := utf8.RuneCountInString(query)
	if n < MinQueryLength {
		return Request{}, fmt.Errorf("query too short (min %d chars)", MinQueryLength)
	}
	if n > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}

	jurisdiction = strings.TrimSpace(jurisdiction)
	if jurisdiction == "" {
		jurisdiction = DefaultJurisdiction
	}

	if maxEngines <= 0 {
		maxEngines = DefaultMaxEngines
	}
	if maxEngines > MaxEnginesCeiling {
		maxEngines = MaxEnginesCeiling
	}

	return Request{
		query:        query,
		jurisdiction: jurisdiction,
		maxEngines:   maxEngines,
	}, nil
}

// ReconstructRequest creates a Request without validation (storage hydration).
func ReconstructRequest(query, jurisdiction string, maxEngines int) Request {
	return Request{query: query, jurisdiction: jurisdiction, maxEngines: maxEngines}
}

// Query returns the raw question text.
func (r *Request) Query() string { return r.query }

// Jurisdiction returns the administrative scope of the question.
func (r *Request) Jurisdiction() string { return r.jurisdiction }

// MaxEngines returns the requested engine-count cap for the plan.
func (r *Request) MaxEngines() int { return r.maxEngines }
