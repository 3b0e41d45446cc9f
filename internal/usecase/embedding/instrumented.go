// Package embedding guards the configured embedding provider: it checks
// vector sizes against the index schema and logs every call.
package embedding

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/metrics"
)

// MaxChunk bounds the texts handed to the provider in one BatchEmbed call.
const MaxChunk = 256

// ErrDimensionMismatch is returned when the provider answers with a vector
// of a different size than the vector index was created with.
var ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", domain.ErrConfiguration)

// InstrumentedEmbedder wraps an Embedder with logging and a dimension check.
// Transport metrics are recorded by the providers themselves.
type InstrumentedEmbedder struct {
	inner      domain.Embedder
	provider   string
	model      string
	dimensions int
	log        *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. dimensions <= 0 disables the check.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, dimensions int, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:      inner,
		provider:   provider,
		model:      model,
		dimensions: dimensions,
		log:        logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

// Embed delegates to the inner embedder and validates the vector size.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	res, err := p.inner.Embed(ctx, text)
	if err != nil {
		p.log.Error("Embedding request failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	if err := p.checkDimensions(res.Embedding); err != nil {
		return domain.EmbeddingResult{}, err
	}

	p.log.Debug("Embedding request completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed embeds texts MaxChunk at a time. Providers without native
// batching are called once per text.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var out domain.BatchEmbeddingResult
	if len(texts) == 0 {
		return out, nil
	}

	start := time.Now()
	done := 0
	for chunk := range slices.Chunk(texts, MaxChunk) {
		res, err := domain.EmbedAll(ctx, p.inner, chunk)
		if err != nil {
			p.log.Error("Batch embedding request failed",
				zap.Int("embedded", done), zap.Int("chunk_size", len(chunk)), zap.Error(err))
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		if len(res.Embeddings) != len(chunk) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf(
				"batch embed: provider returned %d vectors for %d texts", len(res.Embeddings), len(chunk))
		}
		for _, v := range res.Embeddings {
			if err := p.checkDimensions(v); err != nil {
				return domain.BatchEmbeddingResult{}, err
			}
		}

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
		done += len(chunk)
	}

	p.log.Debug("Batch embedding completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", done),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck uses the provider's own check, or embeds a short text when it
// has none.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	var err error
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		err = hc.HealthCheck(ctx)
	} else {
		_, err = p.Embed(ctx, "health")
	}
	if err != nil {
		return fmt.Errorf("%s health: %w", p.provider, err)
	}
	return nil
}

func (p *InstrumentedEmbedder) checkDimensions(v []float32) error {
	if p.dimensions <= 0 || len(v) == p.dimensions {
		return nil
	}
	metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, p.model, "dimension_mismatch").Inc()
	p.log.Error("Embedding dimension mismatch", zap.Int("expected", p.dimensions), zap.Int("actual", len(v)))
	return fmt.Errorf("%w: got %d, index expects %d", ErrDimensionMismatch, len(v), p.dimensions)
}
