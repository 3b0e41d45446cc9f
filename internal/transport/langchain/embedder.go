package langchain

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/metrics"
)

// Embedder implements domain.Embedder and domain.BatchEmbedder over a
// langchaingo embedder. langchaingo reports no token usage.
type Embedder struct {
	inner    embeddings.Embedder
	provider string
	model    string
}

// NewEmbedder builds an embedder for cfg.Backend.
func NewEmbedder(cfg Config) (*Embedder, error) {
	var c embeddings.EmbedderClient
	switch cfg.Backend {
	case BackendOpenAI, "":
		llm, err := newOpenAI(cfg, true)
		if err != nil {
			return nil, err
		}
		c = llm
	case BackendOllama:
		llm, err := newOllama(cfg)
		if err != nil {
			return nil, err
		}
		c = llm
	default:
		return nil, fmt.Errorf("%w: unknown langchain backend %q", domain.ErrConfiguration, cfg.Backend)
	}
	return NewEmbedderWithClient(c, "langchain-"+cfg.Backend, cfg.Model)
}

// NewEmbedderWithClient wraps an existing langchaingo embedder client.
func NewEmbedderWithClient(c embeddings.EmbedderClient, provider, model string) (*Embedder, error) {
	inner, err := embeddings.NewEmbedder(c, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("langchain embedder: %w", err)
	}
	return &Embedder{inner: inner, provider: provider, model: model}, nil
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	vec, err := e.inner.EmbedQuery(ctx, text)
	if err != nil {
		metrics.EmbeddingFailed(e.provider, e.model, "api_error")
		return domain.EmbeddingResult{}, fmt.Errorf("langchain embed: %w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vec) == 0 {
		metrics.EmbeddingFailed(e.provider, e.model, "empty_response")
		return domain.EmbeddingResult{}, fmt.Errorf("langchain returned no embedding: %w", domain.ErrEmbeddingUnavailable)
	}
	metrics.EmbeddingSucceeded(e.provider, e.model, time.Since(start), 0, 0)
	return domain.EmbeddingResult{Embedding: vec}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	start := time.Now()
	vecs, err := e.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		metrics.EmbeddingFailed(e.provider, e.model, "api_error")
		return domain.BatchEmbeddingResult{}, fmt.Errorf("langchain batch embed: %w: %w",
			domain.ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != len(texts) {
		metrics.EmbeddingFailed(e.provider, e.model, "count_mismatch")
		return domain.BatchEmbeddingResult{}, fmt.Errorf("langchain returned %d vectors for %d texts: %w",
			len(vecs), len(texts), domain.ErrEmbeddingUnavailable)
	}
	metrics.EmbeddingSucceeded(e.provider, e.model, time.Since(start), 0, 0)
	return domain.BatchEmbeddingResult{Embeddings: vecs}, nil
}
