// Package note handles note writes with optional tag generation and
// best-effort embedding.
package note

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/domain"
	domnote "github.com/kailas-cloud/notesearch/internal/domain/note"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
)

// Draft is the input of Create.
type Draft struct {
	Content      string
	Tags         []string
	Contributor  string
	GenerateTags bool
	// CreatedAt defaults to now; set for imports and seeding.
	CreatedAt time.Time
}

// Service handles note CRUD.
type Service struct {
	repo     Repository
	embedder domain.Embedder
	tagger   domain.Tagger
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a note service. embedder and tagger may be nil.
func New(repo Repository, embedder domain.Embedder, tagger domain.Tagger, logger *zap.Logger) *Service {
	return &Service{repo: repo, embedder: embedder, tagger: tagger, logger: logger, now: time.Now}
}

// Create stores a new note. Generated tags are merged into the given ones.
// A failing tagger or embedder never fails the write: the note is stored
// without generated tags or without an embedding, to be backfilled later.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, d Draft) (domnote.Note, error) {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	id := uuid.NewString()
	log := s.logger.With(zap.String("note_id", id), zap.String("tenant", scope.String()))

	// validate before any provider call
	n, err := domnote.New(id, scope, d.Content, d.Tags, d.Contributor, createdAt)
	if err != nil {
		return domnote.Note{}, err
	}

	if d.GenerateTags && s.tagger != nil {
		generated, err := s.tagger.Tags(ctx, d.Content)
		if err != nil {
			log.Warn("Tag generation failed, storing user tags only", zap.Error(err))
		} else {
			merged := slices.Clone(n.Tags())
			for _, t := range domnote.NormalizeTags(generated) {
				if len(merged) >= domnote.MaxTags {
					break
				}
				if len(t) <= domnote.MaxTagLength && !slices.Contains(merged, t) {
					merged = append(merged, t)
				}
			}
			if tagged, err := domnote.New(id, scope, d.Content, merged, d.Contributor, createdAt); err == nil {
				n = tagged
			} else {
				log.Warn("Generated tags rejected", zap.Strings("tags", generated), zap.Error(err))
			}
		}
	}

	if s.embedder != nil {
		res, err := s.embedder.Embed(ctx, d.Content)
		if err != nil {
			log.Warn("Embedding failed, note stored without vector", zap.Error(err))
		} else {
			n = n.WithEmbedding(res.Embedding)
		}
	}

	if err := s.repo.Create(ctx, &n); err != nil {
		return domnote.Note{}, fmt.Errorf("create note: %w", err)
	}
	log.Debug("Note created", zap.Int("tags", len(n.Tags())), zap.Bool("embedded", n.HasEmbedding()))
	return n, nil
}

// Get returns a note of the tenant.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (domnote.Note, error) {
	n, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		return domnote.Note{}, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

// Delete removes a note of the tenant.
func (s *Service) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	if err := s.repo.Delete(ctx, scope, id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}
