package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/db"
	"github.com/kailas-cloud/notesearch/internal/domain"
)

// mockEmbedder returns result for every text unless batchResult is set.
type mockEmbedder struct {
	result      domain.EmbeddingResult
	err         error
	batchResult domain.BatchEmbeddingResult
	batchErr    error

	embedCalls int
	batchCalls int
	batchTexts []string
}

func (m *mockEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	m.embedCalls++
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	m.batchTexts = texts
	switch {
	case m.batchErr != nil:
		return domain.BatchEmbeddingResult{}, m.batchErr
	case m.batchResult.Embeddings != nil:
		return m.batchResult, nil
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i := range texts {
		out.Embeddings[i] = m.result.Embedding
		out.PromptTokens += m.result.PromptTokens
		out.TotalTokens += m.result.TotalTokens
	}
	return out, nil
}

// mockKVStore misses by default; getFn and setFn override single calls.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn == nil {
		return nil, db.ErrKeyNotFound
	}
	return m.getFn(ctx, key)
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn == nil {
		return nil
	}
	return m.setFn(ctx, key, value, ttl)
}

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder) (*CachedEmbedder, *mockKVStore) {
	t.Helper()
	kv := &mockKVStore{}
	return New(inner, kv, "text-embedding-3-small", time.Hour, nil, zap.NewNop()), kv
}

// cacheBytes encodes v the way cached vectors are stored.
func cacheBytes(v []float32) []byte {
	return []byte(db.EncodeVector(v))
}
