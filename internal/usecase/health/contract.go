package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// LLMChecker checks the analysis and synthesis provider availability.
type LLMChecker interface {
	HealthCheck(ctx context.Context) error
}

// RerankChecker checks the reranking service availability.
type RerankChecker interface {
	HealthCheck(ctx context.Context) error
}
