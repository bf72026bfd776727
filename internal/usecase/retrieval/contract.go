package retrieval

import (
	"context"

	"github.com/kailas-cloud/evidex/internal/domain/document"
	"github.com/kailas-cloud/evidex/internal/domain/engine"
)

// Retriever executes one retrieval call against one engine's corpus.
type Retriever interface {
	Retrieve(ctx context.Context, eng engine.Descriptor, queryText string, topK int) ([]document.Document, error)
}
