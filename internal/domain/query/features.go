package query

import (
	"fmt"
	"strings"
	"time"
)

// Type classifies the intent of a query.
type Type string

// Query type constants.
const (
	TypeFactual     Type = "factual"
	TypeProcedural  Type = "procedural"
	TypeComparative Type = "comparative"
	// TypeEligibility marks "am I / who is entitled" questions, which favor scheme engines.
	TypeEligibility Type = "eligibility"
	TypeOther       Type = "other"
)

// IsValid checks if the query type is one of the supported values.
func (t Type) IsValid() bool {
	switch t {
	case TypeFactual, TypeProcedural, TypeComparative, TypeEligibility, TypeOther:
		return true
	}
	return false
}

// EntityType classifies an extracted named entity.
type EntityType string

// Entity type constants.
const (
	EntityAct EntityType = "act"
	// EntityGONumber is a government order reference, e.g. "G.O.Ms.No.54".
	EntityGONumber     EntityType = "go_number"
	EntityCaseCitation EntityType = "case_citation"
	EntityScheme       EntityType = "scheme"
	EntityDepartment   EntityType = "department"
	EntityDistrict     EntityType = "district"
	EntityDate         EntityType = "date"
	EntityOther        EntityType = "other"
)

// IsValid checks if the entity type is one of the supported values.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityAct, EntityGONumber, EntityCaseCitation, EntityScheme,
		EntityDepartment, EntityDistrict, EntityDate, EntityOther:
		return true
	}
	return false
}

// Entity is a named entity extracted from the query.
type Entity struct {
	Type       EntityType
	Text       string
	Normalized string
}

// TemporalRange bounds a query to a time window. Zero ends are open.
type TemporalRange struct {
	From time.Time
	To   time.Time
}

// Enhancement confidence tiers reported by the analysis collaborator.
const (
	EnhancementHigh   = 0.9
	EnhancementMedium = 0.7
	EnhancementLow    = 0.5
)

// FeatureSet is the structured output of query analysis (immutable value object).
type FeatureSet struct {
	original     string
	entities     []Entity
	facets       []string
	temporal     *TemporalRange
	queryType    Type
	enhanced     string
	enhancedConf float64
}

// NewFeatureSet validates and creates a FeatureSet.
// Facets are lowercased, trimmed and deduplicated preserving first-seen order.
// An empty enhanced query forces enhancedConf to zero; a non-empty one clamps it to [0,1].
func NewFeatureSet(
	original string,
	entities []Entity,
	facets []string,
	temporal *TemporalRange,
	queryType Type,
	enhanced string,
	enhancedConf float64,
) (FeatureSet, error) {
	if strings.TrimSpace(original) == "" {
		return FeatureSet{}, fmt.Errorf("original query is required")
	}
	if queryType == "" {
		queryType = TypeOther
	}
	if !queryType.IsValid() {
		return FeatureSet{}, fmt.Errorf("invalid query type: %q", queryType)
	}
	for _, e := range entities {
		if !e.Type.IsValid() {
			return FeatureSet{}, fmt.Errorf("invalid entity type: %q", e.Type)
		}
	}
	if temporal != nil && !temporal.From.IsZero() && !temporal.To.IsZero() && temporal.From.After(temporal.To) {
		return FeatureSet{}, fmt.Errorf("temporal range start after end")
	}

	enhanced = strings.TrimSpace(enhanced)
	switch {
	case enhanced == "":
		enhancedConf = 0
	case enhancedConf < 0:
		enhancedConf = 0
	case enhancedConf > 1:
		enhancedConf = 1
	}

	return FeatureSet{
		original:     strings.TrimSpace(original),
		entities:     append([]Entity(nil), entities...),
		facets:       normalizeFacets(facets),
		temporal:     temporal,
		queryType:    queryType,
		enhanced:     enhanced,
		enhancedConf: enhancedConf,
	}, nil
}

// ReconstructFeatureSet creates a FeatureSet without validation (storage hydration).
func ReconstructFeatureSet(
	original string, entities []Entity, facets []string,
	temporal *TemporalRange, queryType Type, enhanced string, enhancedConf float64,
) FeatureSet {
	return FeatureSet{
		original: original, entities: entities, facets: facets,
		temporal: temporal, queryType: queryType,
		enhanced: enhanced, enhancedConf: enhancedConf,
	}
}

func normalizeFacets(facets []string) []string {
	out := make([]string, 0, len(facets))
	seen := make(map[string]bool, len(facets))
	for _, f := range facets {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Original returns the raw query text.
func (f *FeatureSet) Original() string { return f.original }

// Entities returns the extracted named entities.
func (f *FeatureSet) Entities() []Entity { return f.entities }

// Facets returns the normalized categorical tags.
func (f *FeatureSet) Facets() []string { return f.facets }

// Temporal returns the time window constraint (nil when absent).
func (f *FeatureSet) Temporal() *TemporalRange { return f.temporal }

// QueryType returns the query intent class.
func (f *FeatureSet) QueryType() Type { return f.queryType }

// Enhanced returns the rewritten query ("" when enhancement was not produced).
func (f *FeatureSet) Enhanced() string { return f.enhanced }

// EnhancedConfidence returns the enhancement confidence (0 when no enhancement).
func (f *FeatureSet) EnhancedConfidence() float64 { return f.enhancedConf }

// WithFacet returns a copy with one more facet appended (deduplicated).
func (f *FeatureSet) WithFacet(facet string) FeatureSet {
	cp := *f
	cp.entities = append([]Entity(nil), f.entities...)
	cp.facets = normalizeFacets(append(append([]string(nil), f.facets...), facet))
	return cp
}

// HasEntityType reports whether any extracted entity has the given type.
func (f *FeatureSet) HasEntityType(t EntityType) bool {
	for _, e := range f.entities {
		if e.Type == t {
			return true
		}
	}
	return false
}

// BroadenedQuery returns the facet-terms-only query used as the last
// retrieval fallback. Falls back to the original text when no facets exist.
func (f *FeatureSet) BroadenedQuery() string {
	if len(f.facets) == 0 {
		return f.original
	}
	return strings.Join(f.facets, " ")
}
