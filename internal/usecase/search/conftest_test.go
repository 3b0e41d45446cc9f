package search

import (
	"context"
	"errors"
	"strings"

	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/domain/index"
	"github.com/kailas-cloud/notesearch/internal/domain/search/page"
	"github.com/kailas-cloud/notesearch/internal/domain/search/plan"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
)

var t1 = tenant.MustNew("sara", "p1")

type mockEmbedder struct {
	calls int
	err   error
}

// Embed maps "canyon"-like text to one axis and anything else to the other.
func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	if strings.Contains(strings.ToLower(text), "canyon") {
		return domain.EmbeddingResult{Embedding: []float32{1, 0}, TotalTokens: 3}, nil
	}
	return domain.EmbeddingResult{Embedding: []float32{0, 1}, TotalTokens: 3}, nil
}

var errEmbedDown = errors.New("provider returned 503")

type staticCaps index.Capabilities

func (c staticCaps) Capabilities() index.Capabilities { return index.Capabilities(c) }

type mockExecutor struct {
	last  plan.Plan
	hits  []page.Hit
	total int
	err   error
}

func (m *mockExecutor) Execute(_ context.Context, p plan.Plan) ([]page.Hit, int, error) {
	m.last = p
	return m.hits, m.total, m.err
}
