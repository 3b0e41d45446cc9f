package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/db"
	"github.com/kailas-cloud/notesearch/internal/db/memory"
	"github.com/kailas-cloud/notesearch/internal/domain"
	domindex "github.com/kailas-cloud/notesearch/internal/domain/index"
)

func TestEnsure_MemoryStore(t *testing.T) {
	r := newTestRegistry(memory.NewStore())
	ctx := context.Background()

	state, err := r.Ensure(ctx, lexicalDescriptor())
	require.NoError(t, err)
	assert.Equal(t, domindex.Ready, state)

	state, err = r.Ensure(ctx, vectorDescriptor())
	require.NoError(t, err)
	assert.Equal(t, domindex.Ready, state)

	assert.Equal(t, domindex.Capabilities{Lexical: true, Vector: true}, r.Capabilities())

	st := r.Statuses()
	require.Len(t, st, 2)
	assert.Equal(t, "notes_text_search", st[0].Name)
	assert.Equal(t, "notes_vector_index", st[1].Name)
}

func TestEnsure_Idempotent(t *testing.T) {
	s := &fakeStore{infoFn: func(_ context.Context, name string, call int) (*db.IndexInfo, error) {
		if call == 1 {
			return nil, db.ErrIndexNotFound
		}
		return ready(name), nil
	}}
	r := newTestRegistry(s)

	for range 3 {
		state, err := r.Ensure(context.Background(), lexicalDescriptor())
		require.NoError(t, err)
		assert.Equal(t, domindex.Ready, state)
	}
	assert.EqualValues(t, 1, s.creates.Load())
	assert.EqualValues(t, 2, s.infos.Load())
}

func TestEnsure_ExistingIndexSkipsCreate(t *testing.T) {
	s := &fakeStore{}
	r := newTestRegistry(s)

	state, err := r.Ensure(context.Background(), vectorDescriptor())
	require.NoError(t, err)
	assert.Equal(t, domindex.Ready, state)
	assert.EqualValues(t, 0, s.creates.Load())
}

func TestEnsure_AlreadyExistsIsSuccess(t *testing.T) {
	s := &fakeStore{
		createFn: func(context.Context, *db.IndexDefinition) error { return db.ErrIndexExists },
		infoFn: func(_ context.Context, name string, call int) (*db.IndexInfo, error) {
			if call == 1 {
				return nil, db.ErrIndexNotFound
			}
			return ready(name), nil
		},
	}
	r := newTestRegistry(s)

	state, err := r.Ensure(context.Background(), vectorDescriptor())
	require.NoError(t, err)
	assert.Equal(t, domindex.Ready, state)
}

func TestEnsure_ConcurrentCallersShareOneCreation(t *testing.T) {
	release := make(chan struct{})
	s := &fakeStore{infoFn: func(_ context.Context, name string, call int) (*db.IndexInfo, error) {
		if call == 1 {
			return nil, db.ErrIndexNotFound
		}
		select {
		case <-release:
			return ready(name), nil
		default:
			return building(name), nil
		}
	}}
	r := newTestRegistry(s)

	const callers = 8
	var wg sync.WaitGroup
	states := make([]domindex.State, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			states[i], errs[i] = r.Ensure(context.Background(), vectorDescriptor())
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, domindex.Ready, states[i])
	}
	assert.EqualValues(t, 1, s.creates.Load())
	assert.True(t, r.Capabilities().Vector)
}

func TestEnsure_TransientErrorsRetried(t *testing.T) {
	s := &fakeStore{infoFn: func(_ context.Context, name string, call int) (*db.IndexInfo, error) {
		if call <= 2 {
			return nil, &db.Error{Op: db.OpIndexInfo, Err: fmt.Errorf("%w: dial tcp", db.ErrUnavailable)}
		}
		return ready(name), nil
	}}
	r := newTestRegistry(s)

	state, err := r.Ensure(context.Background(), lexicalDescriptor())
	require.NoError(t, err)
	assert.Equal(t, domindex.Ready, state)
	assert.EqualValues(t, 3, s.infos.Load())
}

func TestEnsure_TimeoutThenRetry(t *testing.T) {
	var done atomic.Bool
	s := &fakeStore{infoFn: func(_ context.Context, name string, _ int) (*db.IndexInfo, error) {
		if done.Load() {
			return ready(name), nil
		}
		return building(name), nil
	}}
	r := New(s, Config{Prefix: "note:", PollInterval: time.Millisecond, Timeout: 20 * time.Millisecond}, nil, zap.NewNop())

	state, err := r.Ensure(context.Background(), vectorDescriptor())
	require.ErrorIs(t, err, domain.ErrIndexTimeout)
	assert.Equal(t, domindex.Failed, state)
	assert.False(t, r.Capabilities().Vector)

	st := r.Statuses()
	require.Len(t, st, 1)
	assert.Equal(t, domindex.Failed, st[0].State)
	assert.NotEmpty(t, st[0].Err)

	// a failed entry is replaced by the next call
	done.Store(true)
	state, err = r.Ensure(context.Background(), vectorDescriptor())
	require.NoError(t, err)
	assert.Equal(t, domindex.Ready, state)
}

func TestEnsure_ContextCancelled(t *testing.T) {
	s := &fakeStore{infoFn: func(_ context.Context, name string, _ int) (*db.IndexInfo, error) {
		return building(name), nil
	}}
	r := newTestRegistry(s)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.Ensure(ctx, vectorDescriptor())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, domain.ErrIndexTimeout)
}

func TestEnsure_UnsupportedKind(t *testing.T) {
	s := &fakeStore{noText: true}
	r := newTestRegistry(s)

	state, err := r.Ensure(context.Background(), lexicalDescriptor())
	require.NoError(t, err)
	assert.Equal(t, domindex.Unsupported, state)
	assert.False(t, r.Capabilities().Lexical)
	assert.EqualValues(t, 0, s.creates.Load())
	assert.EqualValues(t, 0, s.infos.Load())
}

func TestEnsure_CreateRejected(t *testing.T) {
	s := &fakeStore{
		createFn: func(context.Context, *db.IndexDefinition) error {
			return &db.Error{Op: db.OpCreateIndex, Err: errors.New("ERR bad schema")}
		},
		infoFn: func(context.Context, string, int) (*db.IndexInfo, error) {
			return nil, db.ErrIndexNotFound
		},
	}
	r := newTestRegistry(s)

	state, err := r.Ensure(context.Background(), lexicalDescriptor())
	require.ErrorIs(t, err, domain.ErrBackendOperation)
	assert.Equal(t, domindex.Failed, state)
}

func TestEnsure_InvalidDescriptor(t *testing.T) {
	r := newTestRegistry(&fakeStore{})

	_, err := r.Ensure(context.Background(), domindex.Descriptor{Name: "x", Kind: domindex.Vector})
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestDefinition(t *testing.T) {
	r := newTestRegistry(&fakeStore{})

	def, err := r.definition(vectorDescriptor())
	require.NoError(t, err)
	assert.Equal(t, []string{"note:"}, def.Prefixes)

	f, ok := def.Field("embedding")
	require.True(t, ok)
	assert.Equal(t, db.IndexFieldVector, f.Type)
	assert.Equal(t, 4, f.VectorDim)
	assert.Equal(t, db.VectorHNSW, f.VectorAlgo)

	def, err = r.definition(lexicalDescriptor())
	require.NoError(t, err)
	f, ok = def.Field("created_at")
	require.True(t, ok)
	assert.True(t, f.Sortable)
	f, ok = def.Field("tags")
	require.True(t, ok)
	assert.Equal(t, ",", f.TagSeparator)
}
