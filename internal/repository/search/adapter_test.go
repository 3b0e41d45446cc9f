package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/notesearch/internal/db"
	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/domain/search/page"
	"github.com/kailas-cloud/notesearch/internal/domain/search/plan"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
)

func window(pageNum, size int) plan.Window {
	return plan.Window{Offset: (pageNum - 1) * size, Limit: size}
}

func ids(hits []page.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Note.ID()
	}
	return out
}

func assertTenant(t *testing.T, hits []page.Hit, scope tenant.Scope) {
	t.Helper()
	for _, h := range hits {
		assert.Equal(t, scope, h.Note.Scope(), "note %s leaked from another tenant", h.Note.ID())
	}
}

func TestExecute_FilterPagination(t *testing.T) {
	f := newFixture(t)
	for i := range 25 {
		f.add(t, t1, i, "entry", nil, nil)
	}
	for i := range 3 {
		f.add(t, t2, i, "entry", nil, nil)
	}

	seen := map[string]bool{}
	sizes := []int{}
	for p := 1; p <= 3; p++ {
		fp, err := plan.NewFilter(t1, nil, "", window(p, 10))
		require.NoError(t, err)

		hits, total, err := f.adapter.Execute(context.Background(), fp)
		require.NoError(t, err)
		assert.Equal(t, 25, total)
		assertTenant(t, hits, t1)
		sizes = append(sizes, len(hits))
		for _, h := range hits {
			assert.False(t, seen[h.Note.ID()], "duplicate %s", h.Note.ID())
			seen[h.Note.ID()] = true
			assert.Nil(t, h.Score)
		}
	}
	assert.Equal(t, []int{10, 10, 5}, sizes)
	assert.Len(t, seen, 25)

	// newest first
	fp, _ := plan.NewFilter(t1, nil, "", window(1, 3))
	hits, _, err := f.adapter.Execute(context.Background(), fp)
	require.NoError(t, err)
	assert.Equal(t, []string{"sara-24", "sara-23", "sara-22"}, ids(hits))

	fp, _ = plan.NewFilter(t1, nil, "", window(4, 10))
	hits, total, err := f.adapter.Execute(context.Background(), fp)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.NotNil(t, hits)
	assert.Equal(t, 25, total)
}

func TestExecute_FilterTagContainment(t *testing.T) {
	f := newFixture(t)
	f.add(t, t1, 1, "desert road trip", []string{"travel", "funny"}, nil)
	f.add(t, t1, 2, "alpine pass", []string{"travel", "mountains"}, nil)
	f.add(t, t2, 3, "other tenant trip", []string{"travel", "funny"}, nil)

	fp, err := plan.NewFilter(t1, []string{"travel"}, "", window(1, 10))
	require.NoError(t, err)
	hits, total, err := f.adapter.Execute(context.Background(), fp)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"sara-02", "sara-01"}, ids(hits))

	fp, err = plan.NewFilter(t1, []string{"travel", "mountains"}, "", window(1, 10))
	require.NoError(t, err)
	hits, total, err = f.adapter.Execute(context.Background(), fp)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"sara-02"}, ids(hits))
}

func TestExecute_FilterSubstring(t *testing.T) {
	f := newFixture(t)
	f.add(t, t1, 1, "Grand Canyon sunrise", nil, nil)
	f.add(t, t1, 2, "grocery list", nil, nil)
	f.add(t, t1, 3, "canyoneering gear", nil, nil)
	f.add(t, t2, 4, "canyon in another tenant", nil, nil)

	fp, err := plan.NewFilter(t1, nil, "canyon", window(1, 10))
	require.NoError(t, err)
	hits, total, err := f.adapter.Execute(context.Background(), fp)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"sara-03", "sara-01"}, ids(hits))
}

func TestExecute_FilterScanWindowAcrossChunks(t *testing.T) {
	f := newFixture(t)
	for i := range scanChunk + 50 {
		tags := []string{"odd"}
		if i%2 == 0 {
			tags = []string{"even"}
		}
		f.add(t, t1, i, "entry", tags, nil)
	}

	fp, err := plan.NewFilter(t1, []string{"even"}, "", window(12, 10))
	require.NoError(t, err)
	hits, total, err := f.adapter.Execute(context.Background(), fp)
	require.NoError(t, err)
	assert.Equal(t, (scanChunk+50)/2, total)
	require.Len(t, hits, 10)
	// 125 even notes newest first: page 12 starts at the 111th of them
	assert.Equal(t, fmt.Sprintf("sara-%02d", 248-2*110), hits[0].Note.ID())
	assertTenant(t, hits, t1)
}

func TestExecute_Lexical(t *testing.T) {
	f := newFixture(t)
	f.add(t, t1, 1, "canyon hike with friends", []string{"travel"}, nil)
	f.add(t, t1, 2, "canyon canyon canyon", []string{"travel"}, nil)
	f.add(t, t1, 3, "grocery list", []string{"travel"}, nil)
	f.add(t, t2, 4, "canyon canyon canyon canyon", []string{"travel"}, nil)

	lp, err := plan.NewLexical(t1, "canyon", []string{"travel"}, window(1, 10))
	require.NoError(t, err)
	hits, total, err := f.adapter.Execute(context.Background(), lp)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, hits, 2)
	assertTenant(t, hits, t1)
	assert.Equal(t, "sara-02", hits[0].Note.ID())
	require.NotNil(t, hits[0].Score)
	assert.GreaterOrEqual(t, *hits[0].Score, *hits[1].Score)

	lp, err = plan.NewLexical(t1, "canyon", nil, window(2, 10))
	require.NoError(t, err)
	hits, total, err = f.adapter.Execute(context.Background(), lp)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Empty(t, hits)
}

func TestExecute_Vector(t *testing.T) {
	f := newFixture(t)
	f.add(t, t1, 1, "close", nil, []float32{1, 0.1})
	f.add(t, t1, 2, "far", nil, []float32{0, 1})
	f.add(t, t1, 3, "same as close, newer", nil, []float32{1, 0.1})
	f.add(t, t1, 4, "no embedding", nil, nil)
	f.add(t, t2, 5, "other tenant exact", nil, []float32{1, 0})

	vp, err := plan.NewVector(t1, []float32{1, 0}, 100, window(1, 2))
	require.NoError(t, err)
	hits, total, err := f.adapter.Execute(context.Background(), vp)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	// equal similarity: newer first
	assert.Equal(t, []string{"sara-03", "sara-01"}, ids(hits))
	assertTenant(t, hits, t1)

	vp, _ = plan.NewVector(t1, []float32{1, 0}, 100, window(2, 2))
	hits, _, err = f.adapter.Execute(context.Background(), vp)
	require.NoError(t, err)
	assert.Equal(t, []string{"sara-02"}, ids(hits))
}

func TestExecute_ErrorClassification(t *testing.T) {
	fp, _ := plan.NewFilter(t1, nil, "", window(1, 10))
	lp, _ := plan.NewLexical(t1, "canyon", nil, window(1, 10))
	vp, _ := plan.NewVector(t1, []float32{1, 0}, 10, window(1, 10))

	tests := []struct {
		name string
		err  error
		p    plan.Plan
		want error
	}{
		{"unavailable", &db.Error{Op: db.OpZCard, Err: fmt.Errorf("%w: dial tcp", db.ErrUnavailable)}, fp, domain.ErrBackendUnavailable},
		{"server error", &db.Error{Op: db.OpSearch, Err: errors.New("Syntax error")}, lp, domain.ErrBackendOperation},
		{"missing index", &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}, vp, domain.ErrIndexNotReady},
		{"deadline", context.DeadlineExceeded, vp, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(&mockStore{err: tt.err}, testIndexes)
			hits, total, err := a.Execute(context.Background(), tt.p)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, hits)
			assert.Zero(t, total)
		})
	}
}

func TestExecute_BackendErrorKeepsDiagnostic(t *testing.T) {
	cause := errors.New("Syntax error at offset 3")
	lp, _ := plan.NewLexical(t1, "canyon", nil, window(1, 10))

	_, _, err := New(&mockStore{err: cause}, testIndexes).Execute(context.Background(), lp)

	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, domain.ErrBackendUnavailable)
}
