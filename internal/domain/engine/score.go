package engine

// Factors is the contributing-factor breakdown of one engine score,
// kept for audit logging and plan rationale.
type Factors struct {
	Base    float64 `json:"base"`
	Facet   float64 `json:"facet"`
	Entity  float64 `json:"entity"`
	Recency float64 `json:"recency"`
	Rules   float64 `json:"rules"`
	Penalty float64 `json:"penalty"`
}

// Score is one engine's relevance against a query feature set.
type Score struct {
	engineID string
	value    float64
	factors  Factors
}

// NewScore creates a Score, clamping the value to [0,1].
func NewScore(engineID string, value float64, factors Factors) Score {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	return Score{engineID: engineID, value: value, factors: factors}
}

// EngineID returns the scored engine identifier.
func (s *Score) EngineID() string { return s.engineID }

// Value returns the relevance score in [0,1].
func (s *Score) Value() float64 { return s.value }

// Factors returns the contributing-factor breakdown.
func (s *Score) Factors() Factors { return s.factors }
