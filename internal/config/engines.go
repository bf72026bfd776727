package config

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/evidex/internal/domain/engine"
	"github.com/kailas-cloud/evidex/internal/domain/query"
)

const coverageDateLayout = "2006-01-02"

// BuildEngineRegistry converts the engines section into the process-wide registry.
func (c *Config) BuildEngineRegistry() (*engine.Registry, error) {
	descriptors := make([]engine.Descriptor, 0, len(c.Engines))
	for _, ec := range c.Engines {
		d, err := descriptorFromConfig(ec)
		if err != nil {
			return nil, fmt.Errorf("engine %s: %w", ec.ID, err)
		}
		descriptors = append(descriptors, d)
	}

	reg, err := engine.NewRegistry(descriptors)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	return reg, nil
}

func descriptorFromConfig(ec EngineConfig) (engine.Descriptor, error) {
	from, err := parseCoverageDate(ec.CoverageFrom)
	if err != nil {
		return engine.Descriptor{}, fmt.Errorf("coverage_from: %w", err)
	}
	to, err := parseCoverageDate(ec.CoverageTo)
	if err != nil {
		return engine.Descriptor{}, fmt.Errorf("coverage_to: %w", err)
	}

	entityTypes := make([]query.EntityType, 0, len(ec.EntityAffinities))
	for _, raw := range ec.EntityAffinities {
		t := query.EntityType(raw)
		if !t.IsValid() {
			return engine.Descriptor{}, fmt.Errorf("unknown entity affinity %q", raw)
		}
		entityTypes = append(entityTypes, t)
	}

	return engine.NewDescriptor(engine.DescriptorConfig{
		ID:               ec.ID,
		Name:             ec.Name,
		CorpusID:         ec.CorpusID,
		Endpoint:         ec.Endpoint,
		BaseWeight:       ec.BaseWeight,
		Priority:         ec.Priority,
		FacetAffinities:  ec.FacetAffinities,
		EntityAffinities: entityTypes,
		RecencyBoost:     ec.RecencyBoost,
		CoverageFrom:     from,
		CoverageTo:       to,
		DefaultTopK:      ec.TopK,
	})
}

func parseCoverageDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(coverageDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want YYYY-MM-DD: %w", err)
	}
	return t.UTC(), nil
}
