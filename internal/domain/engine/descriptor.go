package engine

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kailas-cloud/evidex/internal/domain/query"
)

var idRegex = regexp.MustCompile(`^[a-z0-9_]+$`)

// Retrieval parameter limits.
const (
	DefaultTopK = 10
	MaxTopK     = 50
)

// DescriptorConfig carries the raw descriptor fields read from configuration.
type DescriptorConfig struct {
	ID               string
	Name             string
	CorpusID         string
	Endpoint         string
	BaseWeight       float64
	Priority         int
	FacetAffinities  []string
	EntityAffinities []query.EntityType
	RecencyBoost     float64
	CoverageFrom     time.Time
	CoverageTo       time.Time
	DefaultTopK      int
}

// Descriptor is the static metadata of one queryable vertical
// (immutable value object, built once from configuration at process start).
type Descriptor struct {
	id               string
	name             string
	corpusID         string
	endpoint         string
	baseWeight       float64
	priority         int
	facetAffinities  []string
	entityAffinities []query.EntityType
	recencyBoost     float64
	coverageFrom     time.Time
	coverageTo       time.Time
	defaultTopK      int
}

// NewDescriptor validates and creates an engine Descriptor.
// ID: ^[a-z0-9_]+$, 1-32 chars. BaseWeight and RecencyBoost: [0,1]. TopK clamped.
func NewDescriptor(cfg DescriptorConfig) (Descriptor, error) {
	if cfg.ID == "" {
		return Descriptor{}, fmt.Errorf("engine id is required")
	}
	if len(cfg.ID) > 32 {
		return Descriptor{}, fmt.Errorf("engine id too long (max 32)")
	}
	if !idRegex.MatchString(cfg.ID) {
		return Descriptor{}, fmt.Errorf("engine id must be lowercase alphanumeric with underscores")
	}
	if cfg.CorpusID == "" {
		return Descriptor{}, fmt.Errorf("engine %s: corpus id is required", cfg.ID)
	}
	if cfg.BaseWeight < 0 || cfg.BaseWeight > 1 {
		return Descriptor{}, fmt.Errorf("engine %s: base weight must be between 0 and 1", cfg.ID)
	}
	if cfg.RecencyBoost < 0 || cfg.RecencyBoost > 1 {
		return Descriptor{}, fmt.Errorf("engine %s: recency boost must be between 0 and 1", cfg.ID)
	}
	for _, t := range cfg.EntityAffinities {
		if !t.IsValid() {
			return Descriptor{}, fmt.Errorf("engine %s: invalid entity affinity: %q", cfg.ID, t)
		}
	}
	if !cfg.CoverageFrom.IsZero() && !cfg.CoverageTo.IsZero() && cfg.CoverageFrom.After(cfg.CoverageTo) {
		return Descriptor{}, fmt.Errorf("engine %s: coverage window start after end", cfg.ID)
	}

	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	name := cfg.Name
	if name == "" {
		name = cfg.ID
	}

	facets := make([]string, 0, len(cfg.FacetAffinities))
	for _, f := range cfg.FacetAffinities {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			facets = append(facets, f)
		}
	}

	return Descriptor{
		id:               cfg.ID,
		name:             name,
		corpusID:         cfg.CorpusID,
		endpoint:         cfg.Endpoint,
		baseWeight:       cfg.BaseWeight,
		priority:         cfg.Priority,
		facetAffinities:  facets,
		entityAffinities: append([]query.EntityType(nil), cfg.EntityAffinities...),
		recencyBoost:     cfg.RecencyBoost,
		coverageFrom:     cfg.CoverageFrom,
		coverageTo:       cfg.CoverageTo,
		defaultTopK:      topK,
	}, nil
}

// ID returns the engine identifier.
func (d *Descriptor) ID() string { return d.id }

// Name returns the human-readable engine name.
func (d *Descriptor) Name() string { return d.name }

// CorpusID returns the backing corpus identifier.
func (d *Descriptor) CorpusID() string { return d.corpusID }

// Endpoint returns the retrieval service endpoint for this engine.
func (d *Descriptor) Endpoint() string { return d.endpoint }

// BaseWeight returns the configured relevance prior.
func (d *Descriptor) BaseWeight() float64 { return d.baseWeight }

// Priority returns the static tie-break priority (lower wins).
func (d *Descriptor) Priority() int { return d.priority }

// FacetAffinities returns the facets this engine is declared to cover.
func (d *Descriptor) FacetAffinities() []string { return d.facetAffinities }

// EntityAffinities returns the entity types that boost this engine.
func (d *Descriptor) EntityAffinities() []query.EntityType { return d.entityAffinities }

// RecencyBoost returns the bonus applied to temporally constrained queries.
func (d *Descriptor) RecencyBoost() float64 { return d.recencyBoost }

// CoverageFrom returns the start of the known corpus coverage window (zero = open).
func (d *Descriptor) CoverageFrom() time.Time { return d.coverageFrom }

// CoverageTo returns the end of the known corpus coverage window (zero = open).
func (d *Descriptor) CoverageTo() time.Time { return d.coverageTo }

// DefaultTopK returns the per-engine retrieval depth.
func (d *Descriptor) DefaultTopK() int { return d.defaultTopK }

// CoversRange reports whether a temporal range overlaps the coverage window.
// Open window ends always cover.
func (d *Descriptor) CoversRange(tr *query.TemporalRange) bool {
	if tr == nil {
		return true
	}
	if !d.coverageTo.IsZero() && !tr.From.IsZero() && tr.From.After(d.coverageTo) {
		return false
	}
	if !d.coverageFrom.IsZero() && !tr.To.IsZero() && tr.To.Before(d.coverageFrom) {
		return false
	}
	return true
}
