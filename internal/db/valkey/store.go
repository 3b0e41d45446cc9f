// Package valkey implements db.Store for Valkey with the valkey-search module.
//
// Key/value, hash and sorted-set commands are shared with the Redis driver.
// valkey-search indexes only TAG, NUMERIC and VECTOR fields, so lexical
// search is reported as unsupported and TEXT fields are rejected at index
// creation.
package valkey

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/notesearch/internal/db"
	"github.com/kailas-cloud/notesearch/internal/db/redis"
)

var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Valkey store.
type Config struct {
	Addrs    []string
	Username string
	Password string
}

// Store wraps the Redis driver and overrides the index and search commands
// where valkey-search differs.
type Store struct {
	*redis.Store
	client rueidis.Client
}

// NewStore creates a Valkey store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	client, err := redis.NewClient(redis.Config{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	return wrap(client), nil
}

func wrap(client rueidis.Client) *Store {
	return &Store{Store: redis.Wrap(client), client: client}
}

// CreateIndex creates a valkey-search index. SORTABLE is not accepted by
// valkey-search and is dropped.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if def.HasType(db.IndexFieldText) {
		return fmt.Errorf("create index %s: %w", def.Name, db.ErrTextSearchUnsupported)
	}
	args, err := redis.CreateArgs(def, false)
	if err != nil {
		return err
	}

	cmd := s.client.B().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if redis.IsRedisErr(err, "already exists") {
			return db.ErrIndexExists
		}
		return redis.WrapErr(db.OpCreateIndex, err)
	}
	return nil
}

// DropIndex removes an index by name.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.client.B().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if redis.IsRedisErr(err, "not found") || redis.IsRedisErr(err, "unknown index name") {
			return db.ErrIndexNotFound
		}
		return redis.WrapErr(db.OpDropIndex, err)
	}
	return nil
}

// IndexInfo reads backfill progress from FT.INFO. valkey-search reports
// `state`, `backfill_in_progress` and `backfill_complete_percent` instead
// of the Redis `indexing` / `percent_indexed` pair.
func (s *Store) IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error) {
	pairs, err := s.InfoPairs(ctx, name)
	if err != nil {
		return nil, err
	}

	info := &db.IndexInfo{Name: name, PercentIndexed: 1}
	if v, ok := pairs["num_docs"]; ok {
		info.NumDocs = int(redis.MessageFloat(v))
	}
	if v, ok := pairs["backfill_in_progress"]; ok {
		info.Indexing = redis.MessageFloat(v) != 0
	}
	if v, ok := pairs["backfill_complete_percent"]; ok {
		info.PercentIndexed = redis.MessageFloat(v)
	}
	if v, ok := pairs["state"]; ok {
		if state, err := v.ToString(); err == nil && !strings.EqualFold(state, "ready") {
			info.Indexing = true
		}
	}
	return info, nil
}

// SupportsTextSearch returns false: valkey-search has no TEXT fields.
func (s *Store) SupportsTextSearch(_ context.Context) bool {
	return false
}

// SearchText is not available on valkey-search.
func (s *Store) SearchText(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
	return nil, db.ErrTextSearchUnsupported
}

// CountText is not available on valkey-search.
func (s *Store) CountText(_ context.Context, _ *db.TextQuery) (int, error) {
	return 0, db.ErrTextSearchUnsupported
}

// SearchKNN runs a KNN query. valkey-search returns neighbours ordered by
// distance and rejects SORTBY, so the Redis argument list is trimmed.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	args, err := redis.KNNArgs(q)
	if err != nil {
		return nil, err
	}
	args = withoutSortBy(args)

	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, redis.WrapErr(db.OpSearch, err)
	}
	return redis.ParseKNNResult(raw)
}

func withoutSortBy(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "SORTBY" && i+2 < len(args) {
			i += 2
			continue
		}
		out = append(out, args[i])
	}
	return out
}
