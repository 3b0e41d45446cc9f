package health

import (
	"context"

	"github.com/kailas-cloud/notesearch/internal/domain/index"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexLister reports managed index states.
type IndexLister interface {
	Statuses() []index.Status
}
