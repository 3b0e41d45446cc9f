package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kailas-cloud/notesearch/internal/db"
	"github.com/kailas-cloud/notesearch/internal/db/memory"
	domnote "github.com/kailas-cloud/notesearch/internal/domain/note"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
	noterepo "github.com/kailas-cloud/notesearch/internal/repository/note"
)

var (
	t1 = tenant.MustNew("sara", "p1")
	t2 = tenant.MustNew("mike", "p1")

	base = time.UnixMilli(1_700_000_000_000).UTC()

	testIndexes = Indexes{Lexical: "notes_text_search", Vector: "notes_vector_index"}
)

// fixture wires an adapter to an in-memory store with both indexes.
type fixture struct {
	store   *memory.Store
	notes   *noterepo.Repo
	adapter *Adapter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.NewStore()
	ctx := context.Background()

	lex := db.NewIndex(testIndexes.Lexical).Prefix(noterepo.KeyPrefix).
		Tag(domnote.FieldOwner).Tag(domnote.FieldCollection).
		TagList(domnote.FieldTags, domnote.TagSeparator).
		Text(domnote.FieldContent).SortableNumeric(domnote.FieldCreatedAt).
		MustBuild()
	vec := db.NewIndex(testIndexes.Vector).Prefix(noterepo.KeyPrefix).
		Tag(domnote.FieldOwner).Tag(domnote.FieldCollection).
		VectorFlat(domnote.FieldEmbedding, 2, db.DistanceCosine).
		MustBuild()
	for _, def := range []*db.IndexDefinition{lex, vec} {
		if err := s.CreateIndex(ctx, def); err != nil {
			t.Fatalf("CreateIndex %s: %v", def.Name, err)
		}
	}

	return &fixture{store: s, notes: noterepo.New(s), adapter: New(s, testIndexes)}
}

// add stores a note created i minutes after base.
func (f *fixture) add(t *testing.T, scope tenant.Scope, i int, content string, tags []string, vec []float32) {
	t.Helper()
	id := fmt.Sprintf("%s-%02d", scope.Owner(), i)
	n, err := domnote.New(id, scope, content, tags, scope.Owner(), base.Add(time.Duration(i)*time.Minute))
	if err != nil {
		t.Fatalf("note.New: %v", err)
	}
	if vec != nil {
		n = n.WithEmbedding(vec)
	}
	if err := f.notes.Create(context.Background(), &n); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

// mockStore implements the consumer interface for error tests.
type mockStore struct {
	err error
}

func (m *mockStore) HGetAllMulti(context.Context, []string) ([]map[string]string, error) {
	return nil, m.err
}

func (m *mockStore) ZCard(context.Context, string) (int, error) { return 0, m.err }

func (m *mockStore) ZRevRange(context.Context, string, int, int) ([]string, error) {
	return nil, m.err
}

func (m *mockStore) SearchKNN(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
	return nil, m.err
}

func (m *mockStore) SearchText(context.Context, *db.TextQuery) (*db.SearchResult, error) {
	return nil, m.err
}

func (m *mockStore) CountText(context.Context, *db.TextQuery) (int, error) { return 0, m.err }
