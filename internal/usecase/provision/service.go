// Package provision ensures the managed search indexes at startup.
package provision

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/domain/index"
	"github.com/kailas-cloud/notesearch/internal/domain/note"
)

// Ensurer creates an index if absent and waits for it.
type Ensurer interface {
	Ensure(ctx context.Context, d index.Descriptor) (index.State, error)
}

// Names configures index names.
type Names struct {
	Lexical string
	Vector  string
}

// Descriptors returns the lexical and vector index descriptors over notes.
func Descriptors(names Names, dimensions int) []index.Descriptor {
	return []index.Descriptor{
		{
			Name: names.Lexical,
			Kind: index.Lexical,
			Fields: []index.Field{
				{Name: note.FieldContent, Type: index.Text},
				{Name: note.FieldOwner, Type: index.Tag},
				{Name: note.FieldCollection, Type: index.Tag},
				{Name: note.FieldTags, Type: index.Tag},
				{Name: note.FieldContributor, Type: index.Tag},
				{Name: note.FieldCreatedAt, Type: index.Numeric, Sortable: true},
			},
		},
		{
			Name:       names.Vector,
			Kind:       index.Vector,
			Dimensions: dimensions,
			Fields: []index.Field{
				{Name: note.FieldEmbedding, Type: index.Vec},
				{Name: note.FieldOwner, Type: index.Tag},
				{Name: note.FieldCollection, Type: index.Tag},
				{Name: note.FieldTags, Type: index.Tag},
				{Name: note.FieldCreatedAt, Type: index.Numeric},
			},
		},
	}
}

// Service provisions all descriptors concurrently.
type Service struct {
	reg         Ensurer
	descriptors []index.Descriptor
	logger      *zap.Logger
}

// New creates a provisioning service.
func New(reg Ensurer, descriptors []index.Descriptor, logger *zap.Logger) *Service {
	return &Service{reg: reg, descriptors: descriptors, logger: logger}
}

// Run ensures every descriptor. Timeouts and backend failures leave the
// matching capability off and are only logged; configuration errors and
// caller cancellation are returned.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range s.descriptors {
		g.Go(func() error {
			state, err := s.reg.Ensure(gctx, d)
			log := s.logger.With(
				zap.String("index", d.Name),
				zap.String("kind", string(d.Kind)),
				zap.String("state", string(state)),
			)
			switch {
			case err == nil && state == index.Unsupported:
				log.Warn("Index unsupported by backend, falling back to filtered scans")
				return nil
			case err == nil:
				log.Info("Index provisioned")
				return nil
			case errors.Is(err, domain.ErrConfiguration):
				return fmt.Errorf("ensure %s: %w", d.Name, err)
			case ctx.Err() != nil:
				return fmt.Errorf("ensure %s: %w", d.Name, ctx.Err())
			default:
				log.Error("Index provisioning failed, capability disabled", zap.Error(err))
				return nil
			}
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("provision indexes: %w", err)
	}
	return nil
}
