// Package backfill embeds notes that were stored without a vector.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/domain"
	domnote "github.com/kailas-cloud/notesearch/internal/domain/note"
	"github.com/kailas-cloud/notesearch/internal/metrics"
)

// Repository reads notes missing a vector and stores vectors.
type Repository interface {
	MissingEmbeddings(ctx context.Context, limit int) ([]domnote.Note, error)
	SetEmbedding(ctx context.Context, id string, vec []float32) error
}

// Config controls backfill concurrency.
type Config struct {
	Workers   int
	BatchSize int
}

// Result counts processed notes.
type Result struct {
	Embedded int
	Failed   int
	// Skipped notes were deleted before their vector was stored.
	Skipped int
}

// Service runs the backfill on a bounded worker pool.
type Service struct {
	repo     Repository
	embedder domain.Embedder
	cfg      Config
	logger   *zap.Logger
}

// New creates a backfill service.
func New(repo Repository, embedder domain.Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &Service{repo: repo, embedder: embedder, cfg: cfg, logger: logger}
}

// Run embeds up to limit notes (all when limit <= 0). Failed batches are
// counted and logged; only listing failures and cancellation are returned.
func (s *Service) Run(ctx context.Context, limit int) (Result, error) {
	notes, err := s.repo.MissingEmbeddings(ctx, limit)
	if err != nil {
		return Result{}, fmt.Errorf("list notes without embedding: %w", err)
	}
	if len(notes) == 0 {
		return Result{}, nil
	}

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return Result{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		embedded atomic.Int64
		failed   atomic.Int64
		skipped  atomic.Int64
	)
	for start := 0; start < len(notes); start += s.cfg.BatchSize {
		batch := notes[start:min(start+s.cfg.BatchSize, len(notes))]
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			ok, gone := s.embedBatch(ctx, batch)
			embedded.Add(int64(ok))
			skipped.Add(int64(gone))
			failed.Add(int64(len(batch) - ok - gone))
		})
		if err != nil {
			wg.Done()
			failed.Add(int64(len(batch)))
			s.logger.Error("Submit backfill batch failed", zap.Error(err))
		}
	}
	wg.Wait()

	res := Result{Embedded: int(embedded.Load()), Failed: int(failed.Load()), Skipped: int(skipped.Load())}
	metrics.BackfillNotesTotal.WithLabelValues("embedded").Add(float64(res.Embedded))
	metrics.BackfillNotesTotal.WithLabelValues("failed").Add(float64(res.Failed))
	metrics.BackfillNotesTotal.WithLabelValues("skipped").Add(float64(res.Skipped))
	s.logger.Info("Backfill finished",
		zap.Int("embedded", res.Embedded),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
	)

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("backfill: %w", err)
	}
	return res, nil
}

// embedBatch returns how many notes of the batch got a vector and how many
// disappeared before it could be stored.
func (s *Service) embedBatch(ctx context.Context, batch []domnote.Note) (ok, gone int) {
	if ctx.Err() != nil {
		return 0, 0
	}
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Content()
	}

	res, err := domain.EmbedAll(ctx, s.embedder, texts)
	if err != nil || len(res.Embeddings) != len(batch) {
		s.logger.Warn("Backfill batch embedding failed",
			zap.String("first_id", batch[0].ID()),
			zap.Int("size", len(batch)),
			zap.Error(err),
		)
		return 0, 0
	}

	for i := range batch {
		err := s.repo.SetEmbedding(ctx, batch[i].ID(), res.Embeddings[i])
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.logger.Debug("Note deleted during backfill", zap.String("note_id", batch[i].ID()))
			gone++
		case err != nil:
			s.logger.Warn("Store embedding failed", zap.String("note_id", batch[i].ID()), zap.Error(err))
		default:
			ok++
		}
	}
	return ok, gone
}
