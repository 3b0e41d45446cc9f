package index

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/db"
	domindex "github.com/kailas-cloud/notesearch/internal/domain/index"
)

// fakeStore implements the consumer interface for tests. Counters are atomic
// because attached callers may race with the provisioning goroutine.
type fakeStore struct {
	createFn func(ctx context.Context, def *db.IndexDefinition) error
	infoFn   func(ctx context.Context, name string, call int) (*db.IndexInfo, error)
	noText   bool

	creates atomic.Int32
	infos   atomic.Int32
}

func (f *fakeStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	f.creates.Add(1)
	if f.createFn != nil {
		return f.createFn(ctx, def)
	}
	return nil
}

func (f *fakeStore) IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error) {
	call := int(f.infos.Add(1))
	if f.infoFn != nil {
		return f.infoFn(ctx, name, call)
	}
	return &db.IndexInfo{Name: name, PercentIndexed: 1}, nil
}

func (f *fakeStore) SupportsTextSearch(context.Context) bool   { return !f.noText }
func (f *fakeStore) SupportsVectorSearch(context.Context) bool { return true }

func building(name string) *db.IndexInfo {
	return &db.IndexInfo{Name: name, Indexing: true, PercentIndexed: 0.4}
}

func ready(name string) *db.IndexInfo {
	return &db.IndexInfo{Name: name, PercentIndexed: 1}
}

func newTestRegistry(s store) *Registry {
	return New(s, Config{
		Prefix:       "note:",
		PollInterval: time.Millisecond,
		Timeout:      time.Second,
		HNSWM:        16,
		HNSWEF:       200,
	}, nil, zap.NewNop())
}

func lexicalDescriptor() domindex.Descriptor {
	return domindex.Descriptor{
		Name: "notes_text_search",
		Kind: domindex.Lexical,
		Fields: []domindex.Field{
			{Name: "owner_id", Type: domindex.Tag},
			{Name: "collection_id", Type: domindex.Tag},
			{Name: "tags", Type: domindex.Tag},
			{Name: "content", Type: domindex.Text},
			{Name: "created_at", Type: domindex.Numeric, Sortable: true},
		},
	}
}

func vectorDescriptor() domindex.Descriptor {
	return domindex.Descriptor{
		Name:       "notes_vector_index",
		Kind:       domindex.Vector,
		Dimensions: 4,
		Fields: []domindex.Field{
			{Name: "owner_id", Type: domindex.Tag},
			{Name: "collection_id", Type: domindex.Tag},
			{Name: "embedding", Type: domindex.Vec},
		},
	}
}
