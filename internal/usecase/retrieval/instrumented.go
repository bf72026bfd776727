package retrieval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/domain/document"
	"github.com/kailas-cloud/evidex/internal/domain/engine"
	"github.com/kailas-cloud/evidex/internal/metrics"
)

// InstrumentedRetriever wraps a Retriever with per-engine metrics and logging.
// Failure classification stays in the coordinator; this layer only observes.
type InstrumentedRetriever struct {
	inner  Retriever
	logger *zap.Logger
}

// NewInstrumentedRetriever wraps a retriever with observability.
func NewInstrumentedRetriever(inner Retriever, logger *zap.Logger) *InstrumentedRetriever {
	return &InstrumentedRetriever{inner: inner, logger: logger}
}

// Retrieve delegates to the inner retriever and records outcome and duration.
func (p *InstrumentedRetriever) Retrieve(
	ctx context.Context, eng engine.Descriptor, queryText string, topK int,
) ([]document.Document, error) {
	start := time.Now()

	docs, err := p.inner.Retrieve(ctx, eng, queryText, topK)

	duration := time.Since(start)
	metrics.EngineRetrievalDuration.WithLabelValues(eng.ID()).Observe(duration.Seconds())

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case len(docs) == 0:
		outcome = "empty"
	}
	metrics.EngineRetrievalsTotal.WithLabelValues(eng.ID(), outcome).Inc()

	if err != nil {
		p.logger.Debug("Engine retrieval failed",
			zap.String("engine", eng.ID()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	p.logger.Debug("Engine retrieval completed",
		zap.String("engine", eng.ID()),
		zap.Duration("duration", duration),
		zap.Int("documents", len(docs)),
	)

	return docs, nil
}
