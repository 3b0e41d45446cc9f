package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	calls []string
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.calls = append(s.calls, text)
	if s.err != nil {
		return EmbeddingResult{}, s.err
	}
	return EmbeddingResult{Embedding: []float32{float32(len(text))}, PromptTokens: 2, TotalTokens: 3}, nil
}

type stubBatchEmbedder struct {
	stubEmbedder
	batches int
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batches++
	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i := range texts {
		out.Embeddings[i] = []float32{1}
	}
	return out, nil
}

func TestEmbedAll_FallsBackToSingle(t *testing.T) {
	e := &stubEmbedder{}
	res, err := EmbedAll(context.Background(), e, []string{"a", "bbb"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.calls) != 2 {
		t.Fatalf("expected 2 Embed calls, got %d", len(e.calls))
	}
	if res.Embeddings[1][0] != 3 {
		t.Errorf("embeddings out of order: %v", res.Embeddings)
	}
	if res.PromptTokens != 4 || res.TotalTokens != 6 {
		t.Errorf("tokens = %d/%d, want 4/6", res.PromptTokens, res.TotalTokens)
	}
}

func TestEmbedAll_UsesBatch(t *testing.T) {
	e := &stubBatchEmbedder{}
	if _, err := EmbedAll(context.Background(), e, []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.batches != 1 || len(e.calls) != 0 {
		t.Errorf("batches=%d calls=%d, want 1/0", e.batches, len(e.calls))
	}
}

func TestEmbedAll_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	_, err := EmbedAll(context.Background(), &stubEmbedder{err: innerErr}, []string{"a"})
	if !errors.Is(err, innerErr) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestSearchStats(t *testing.T) {
	var missing *SearchStats
	missing.AddEmbeddingTokens(5)
	missing.SetStrategy("vector")

	ctx, stats := NewContextWithStats(context.Background())
	StatsFromContext(ctx).AddEmbeddingTokens(0)
	StatsFromContext(ctx).AddEmbeddingTokens(7)
	StatsFromContext(ctx).SetStrategy("vector")
	if stats.EmbeddingTokens != 7 || !stats.Embedded || stats.Strategy != "vector" {
		t.Errorf("stats = %+v", stats)
	}
	if StatsFromContext(context.Background()) != nil {
		t.Error("expected nil collector")
	}
}

func TestBackendError_Classification(t *testing.T) {
	cause := errors.New("Syntax error at offset 3")
	err := error(&BackendError{Kind: ErrBackendOperation, Op: "count", Err: cause})
	if !errors.Is(err, ErrBackendOperation) || !errors.Is(err, cause) {
		t.Errorf("classification lost: %v", err)
	}
	if errors.Is(err, ErrBackendUnavailable) {
		t.Error("unexpected unavailable classification")
	}
	if !errors.Is(ErrIndexNotReady, ErrBackendOperation) {
		t.Error("ErrIndexNotReady must be a backend operation failure")
	}
	if !errors.Is(Invalid("page must be positive"), ErrInvalidRequest) {
		t.Error("Invalid must wrap ErrInvalidRequest")
	}
}
