package note

import (
	"context"

	domnote "github.com/kailas-cloud/notesearch/internal/domain/note"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
)

// Repository defines the storage contract for notes.
type Repository interface {
	Create(ctx context.Context, n *domnote.Note) error
	Get(ctx context.Context, scope tenant.Scope, id string) (domnote.Note, error)
	Delete(ctx context.Context, scope tenant.Scope, id string) error
}
