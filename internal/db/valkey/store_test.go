package valkey

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/notesearch/internal/db"
	"github.com/kailas-cloud/notesearch/internal/domain/search/filter"
)

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := wrap(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- index tests ---

func TestCreateIndex_DropsSortable(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			if cmd[0] != "FT.CREATE" {
				return false
			}
			for _, arg := range cmd {
				if arg == "SORTABLE" {
					return false
				}
			}
			return true
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := wrap(c)
	def := db.NewIndex("notes_vector_index").
		Prefix("note:").
		Tag("owner_id").
		SortableNumeric("created_at").
		VectorHNSW("embedding", 4, db.DistanceCosine, 16, 200).
		MustBuild()
	if err := s.CreateIndex(context.Background(), def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_RejectsText(t *testing.T) {
	s := wrap(nil) // client not called
	def := db.NewIndex("notes_text_search").Prefix("note:").Text("content").MustBuild()

	err := s.CreateIndex(context.Background(), def)
	if !errors.Is(err, db.ErrTextSearchUnsupported) {
		t.Fatalf("expected ErrTextSearchUnsupported, got %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index notes_vector_index already exists.")))

	s := wrap(c)
	def := db.NewIndex("notes_vector_index").Prefix("note:").VectorFlat("embedding", 4, db.DistanceCosine).MustBuild()
	if err := s.CreateIndex(context.Background(), def); !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "missing")).
		Return(mock.Result(mock.RedisError("Index with name 'missing' not found")))

	s := wrap(c)
	if err := s.DropIndex(context.Background(), "missing"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexInfo_Backfilling(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "notes_vector_index")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("index_name"), mock.RedisString("notes_vector_index"),
			mock.RedisString("num_docs"), mock.RedisString("40"),
			mock.RedisString("backfill_in_progress"), mock.RedisString("1"),
			mock.RedisString("backfill_complete_percent"), mock.RedisString("0.400000"),
			mock.RedisString("state"), mock.RedisString("backfill_in_progress"),
		)))

	s := wrap(c)
	info, err := s.IndexInfo(context.Background(), "notes_vector_index")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Ready() {
		t.Errorf("expected not ready, got %+v", info)
	}
	if info.NumDocs != 40 {
		t.Errorf("num_docs = %d, want 40", info.NumDocs)
	}
}

func TestIndexInfo_Ready(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "notes_vector_index")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("backfill_in_progress"), mock.RedisString("0"),
			mock.RedisString("backfill_complete_percent"), mock.RedisString("1.000000"),
			mock.RedisString("state"), mock.RedisString("ready"),
		)))

	s := wrap(c)
	info, err := s.IndexInfo(context.Background(), "notes_vector_index")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !info.Ready() {
		t.Errorf("expected ready, got %+v", info)
	}
}

func TestIndexInfo_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "missing")).
		Return(mock.Result(mock.RedisError("Index with name 'missing' not found")))

	s := wrap(c)
	if _, err := s.IndexInfo(context.Background(), "missing"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

// --- Valkey-specific: no text search ---

func TestTextSearchUnsupported(t *testing.T) {
	s := wrap(nil)
	if s.SupportsTextSearch(context.Background()) {
		t.Error("Valkey store should NOT support text search")
	}
	if !s.SupportsVectorSearch(context.Background()) {
		t.Error("Valkey store should support vector search")
	}

	q := &db.TextQuery{IndexName: "notes_text_search", Field: "content", Text: "canyon", Limit: 10}
	if _, err := s.SearchText(context.Background(), q); !errors.Is(err, db.ErrTextSearchUnsupported) {
		t.Errorf("SearchText: expected ErrTextSearchUnsupported, got %v", err)
	}
	if _, err := s.CountText(context.Background(), q); !errors.Is(err, db.ErrTextSearchUnsupported) {
		t.Errorf("CountText: expected ErrTextSearchUnsupported, got %v", err)
	}
}

// --- search tests ---

func TestSearchKNN_NoSortBy(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			if cmd[0] != "FT.SEARCH" {
				return false
			}
			for _, arg := range cmd {
				if arg == "SORTBY" {
					return false
				}
			}
			return true
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("note:1"),
			mock.RedisArray(
				mock.RedisString("__vector_score"),
				mock.RedisString("0.2"),
				mock.RedisString("content"),
				mock.RedisString("mountain hike"),
			),
		)))

	owner, _ := filter.Match("owner_id", "sara")
	expr, _ := filter.And(owner)

	s := wrap(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "notes_vector_index",
		Field:        "embedding",
		Filters:      expr,
		Vector:       []float32{0.1, 0.2, 0.3, 0.4},
		K:            100,
		ReturnFields: []string{"content"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(res.Entries))
	}
	if res.Entries[0].Score < 0.79 || res.Entries[0].Score > 0.81 {
		t.Errorf("expected score ~0.8, got %f", res.Entries[0].Score)
	}
	if res.Entries[0].Fields["content"] != "mountain hike" {
		t.Errorf("unexpected fields: %v", res.Entries[0].Fields)
	}
}

func TestWithoutSortBy(t *testing.T) {
	in := []string{"idx", "q", "SORTBY", "__vector_score", "ASC", "LIMIT", "0", "5"}
	got := withoutSortBy(in)
	want := []string{"idx", "q", "LIMIT", "0", "5"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
