package search

import (
	"context"

	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/domain/index"
	"github.com/kailas-cloud/notesearch/internal/domain/search/page"
	"github.com/kailas-cloud/notesearch/internal/domain/search/plan"
)

// Executor runs a plan against the document store.
type Executor interface {
	Execute(ctx context.Context, p plan.Plan) ([]page.Hit, int, error)
}

// CapabilityReader exposes the index registry's strategy flags.
type CapabilityReader interface {
	Capabilities() index.Capabilities
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
