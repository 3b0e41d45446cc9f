// Package search executes query plans against the document store.
package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/notesearch/internal/db"
	"github.com/kailas-cloud/notesearch/internal/domain"
	domnote "github.com/kailas-cloud/notesearch/internal/domain/note"
	"github.com/kailas-cloud/notesearch/internal/domain/search/page"
	"github.com/kailas-cloud/notesearch/internal/domain/search/plan"
	noterepo "github.com/kailas-cloud/notesearch/internal/repository/note"
)

// store is the consumer interface for plan execution (ISP).
type store interface {
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	ZCard(ctx context.Context, key string) (int, error)
	ZRevRange(ctx context.Context, key string, start, stop int) ([]string, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	CountText(ctx context.Context, q *db.TextQuery) (int, error)
}

// Indexes names the managed indexes plans run against.
type Indexes struct {
	Lexical string
	Vector  string
}

// scanChunk is how many timeline entries one filtered-scan round trip loads.
const scanChunk = 200

// returnFields are loaded for every hit. The embedding blob is never returned.
var returnFields = []string{
	domnote.FieldOwner,
	domnote.FieldCollection,
	domnote.FieldContent,
	domnote.FieldTags,
	domnote.FieldContributor,
	domnote.FieldCreatedAt,
}

// Adapter implements usecase/search.Executor.
type Adapter struct {
	store   store
	indexes Indexes
}

// New creates a plan executor.
func New(s store, idx Indexes) *Adapter {
	return &Adapter{store: s, indexes: idx}
}

// Execute runs p and returns the requested window plus the total number of
// matching notes. No retries are made; every store failure is returned as a
// *domain.BackendError.
func (a *Adapter) Execute(ctx context.Context, p plan.Plan) ([]page.Hit, int, error) {
	switch p := p.(type) {
	case *plan.FilterPlan:
		if len(p.Tags()) == 0 && p.Text() == "" {
			return a.timeline(ctx, p)
		}
		return a.scan(ctx, p)
	case *plan.LexicalPlan:
		return a.lexical(ctx, p)
	case *plan.VectorPlan:
		return a.vector(ctx, p)
	default:
		return nil, 0, fmt.Errorf("unknown plan %T", p)
	}
}

// timeline pages the tenant timeline directly when no predicate besides
// the tenant applies.
func (a *Adapter) timeline(ctx context.Context, p *plan.FilterPlan) ([]page.Hit, int, error) {
	key := noterepo.TimelineKey(p.Scope())
	total, err := a.store.ZCard(ctx, key)
	if err != nil {
		return nil, 0, classify(db.OpZCard, err)
	}

	w := p.Window()
	if w.Offset >= total {
		return []page.Hit{}, total, nil
	}
	ids, err := a.store.ZRevRange(ctx, key, w.Offset, w.Offset+w.Limit-1)
	if err != nil {
		return nil, 0, classify(db.OpZRevRange, err)
	}
	notes, err := a.load(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	hits := make([]page.Hit, 0, len(notes))
	for _, n := range notes {
		hits = append(hits, page.Hit{Note: n})
	}
	return hits, total, nil
}

// scan walks the tenant timeline newest first and applies the pre-filter
// and the substring predicate to every note. Every match is counted; only
// those inside the window are kept.
func (a *Adapter) scan(ctx context.Context, p *plan.FilterPlan) ([]page.Hit, int, error) {
	key := noterepo.TimelineKey(p.Scope())
	w := p.Window()
	needle := strings.ToLower(p.Text())

	hits := make([]page.Hit, 0, w.Limit)
	total := 0
	for start := 0; ; start += scanChunk {
		ids, err := a.store.ZRevRange(ctx, key, start, start+scanChunk-1)
		if err != nil {
			return nil, 0, classify(db.OpZRevRange, err)
		}
		if len(ids) == 0 {
			break
		}

		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = noterepo.Key(id)
		}
		hashes, err := a.store.HGetAllMulti(ctx, keys)
		if err != nil {
			return nil, 0, classify(db.OpHGetAll, err)
		}

		for i, m := range hashes {
			if len(m) == 0 || !p.PreFilter().Matches(m, domnote.TagSeparator) {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(m[domnote.FieldContent]), needle) {
				continue
			}
			total++
			if total <= w.Offset || len(hits) >= w.Limit {
				continue
			}
			n, err := decode(ids[i], m)
			if err != nil {
				return nil, 0, err
			}
			hits = append(hits, page.Hit{Note: n})
		}

		if len(ids) < scanChunk {
			break
		}
	}
	return hits, total, nil
}

func (a *Adapter) lexical(ctx context.Context, p *plan.LexicalPlan) ([]page.Hit, int, error) {
	w := p.Window()
	q := &db.TextQuery{
		IndexName:    a.indexes.Lexical,
		Field:        domnote.FieldContent,
		Text:         p.Text(),
		Filters:      p.PreFilter(),
		SortBy:       domnote.FieldCreatedAt,
		Offset:       w.Offset,
		Limit:        w.Limit,
		ReturnFields: returnFields,
	}

	total, err := a.store.CountText(ctx, q)
	if err != nil {
		return nil, 0, classify(db.OpSearch, err)
	}
	if w.Offset >= total {
		return []page.Hit{}, total, nil
	}

	sr, err := a.store.SearchText(ctx, q)
	if err != nil {
		return nil, 0, classify(db.OpAggregate, err)
	}

	hits := make([]page.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		n, err := decode(noterepo.IDFromKey(e.Key), e.Fields)
		if err != nil {
			return nil, 0, err
		}
		score := e.Score
		hits = append(hits, page.Hit{Note: n, Score: &score})
	}
	return hits, total, nil
}

// vector fetches the whole candidate pool, orders it by similarity then
// creation time, and cuts the window. The pool size is the total count.
func (a *Adapter) vector(ctx context.Context, p *plan.VectorPlan) ([]page.Hit, int, error) {
	sr, err := a.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    a.indexes.Vector,
		Field:        domnote.FieldEmbedding,
		Filters:      p.PreFilter(),
		Vector:       p.Vector(),
		K:            p.Candidates(),
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, 0, classify(db.OpSearch, err)
	}

	pool := make([]page.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		n, err := decode(noterepo.IDFromKey(e.Key), e.Fields)
		if err != nil {
			return nil, 0, err
		}
		score := e.Score
		pool = append(pool, page.Hit{Note: n, Score: &score})
	}
	slices.SortStableFunc(pool, compareRanked)

	w := p.Window()
	if w.Offset >= len(pool) {
		return []page.Hit{}, len(pool), nil
	}
	end := min(w.Offset+w.Limit, len(pool))
	return pool[w.Offset:end], len(pool), nil
}

// compareRanked orders by score desc, then created_at desc, then id desc.
func compareRanked(x, y page.Hit) int {
	switch {
	case *x.Score > *y.Score:
		return -1
	case *x.Score < *y.Score:
		return 1
	}
	if c := y.Note.CreatedAt().Compare(x.Note.CreatedAt()); c != 0 {
		return c
	}
	return strings.Compare(y.Note.ID(), x.Note.ID())
}

func (a *Adapter) load(ctx context.Context, ids []string) ([]domnote.Note, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = noterepo.Key(id)
	}
	hashes, err := a.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, classify(db.OpHGetAll, err)
	}

	out := make([]domnote.Note, 0, len(hashes))
	for i, m := range hashes {
		// deleted between ZREVRANGE and HGETALL
		if len(m) == 0 {
			continue
		}
		n, err := decode(ids[i], m)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func decode(id string, m map[string]string) (domnote.Note, error) {
	n, err := noterepo.ParseHash(id, m)
	if err != nil {
		return domnote.Note{}, &domain.BackendError{Kind: domain.ErrBackendOperation, Op: "decode", Err: err}
	}
	return n, nil
}

// classify maps a store error onto the domain taxonomy. Caller deadlines
// and cancellations pass through unchanged.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case db.IsUnavailable(err):
		return &domain.BackendError{Kind: domain.ErrBackendUnavailable, Op: op, Err: err}
	case errors.Is(err, db.ErrIndexNotFound), errors.Is(err, db.ErrTextSearchUnsupported):
		return &domain.BackendError{Kind: domain.ErrIndexNotReady, Op: op, Err: err}
	default:
		return &domain.BackendError{Kind: domain.ErrBackendOperation, Op: op, Err: err}
	}
}
