package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kailas-cloud/notesearch/internal/db"
	"github.com/kailas-cloud/notesearch/internal/domain/search/filter"
)

// SearchKNN scores every filter-matching hash by cosine similarity and
// returns the K best, ties broken by key descending.
func (s *Store) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" || q.Field == "" {
		return nil, errors.New("index name and vector field are required")
	}
	if len(q.Vector) == 0 {
		return nil, errors.New("vector is required")
	}
	if q.K <= 0 {
		return nil, errors.New("k must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}
	field, ok := idx.def.Field(q.Field)
	if !ok || field.Type != db.IndexFieldVector {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%s is not a vector field", q.Field)}
	}

	entries := make([]db.SearchEntry, 0)
	for key, h := range s.hashes {
		if !idx.covers(key) || !idx.matches(h, q.Filters) {
			continue
		}
		v := db.DecodeVector(h[q.Field])
		if len(v) != len(q.Vector) {
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  max(0, cosine(q.Vector, v)),
			Fields: pick(h, q.ReturnFields),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Key > entries[j].Key
	})
	if len(entries) > q.K {
		entries = entries[:q.K]
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

// SearchText runs the query through bleve, ordered by score, SortBy and key
// descending. Without text every match scores zero.
func (s *Store) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.Limit <= 0 {
		return &db.SearchResult{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, err := s.textIndex(q)
	if err != nil {
		return nil, err
	}

	hasText := strings.TrimSpace(q.Text) != ""
	req := bleve.NewSearchRequestOptions(idx.query(q), q.Limit, q.Offset, false)
	var order []string
	if hasText {
		order = append(order, "-_score")
	}
	if q.SortBy != "" {
		order = append(order, "-"+q.SortBy)
	}
	req.SortBy(append(order, "-_id"))

	res, err := idx.bleve.SearchInContext(ctx, req)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	entries := make([]db.SearchEntry, 0, len(res.Hits))
	for _, hit := range res.Hits {
		score := hit.Score
		if !hasText {
			score = 0
		}
		entries = append(entries, db.SearchEntry{
			Key:    hit.ID,
			Score:  score,
			Fields: pick(s.hashes[hit.ID], q.ReturnFields),
		})
	}
	return &db.SearchResult{Total: int(res.Total), Entries: entries}, nil
}

// CountText returns the number of documents the text query matches.
func (s *Store) CountText(ctx context.Context, q *db.TextQuery) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, err := s.textIndex(q)
	if err != nil {
		return 0, err
	}

	req := bleve.NewSearchRequestOptions(idx.query(q), 0, 0, false)
	res, err := idx.bleve.SearchInContext(ctx, req)
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	return int(res.Total), nil
}

func (s *Store) textIndex(q *db.TextQuery) (*ftIndex, error) {
	if q.IndexName == "" {
		return nil, errors.New("index name is required")
	}
	if q.Offset < 0 {
		return nil, errors.New("offset must not be negative")
	}
	idx, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}
	if q.Text != "" {
		f, ok := idx.def.Field(q.Field)
		if !ok || f.Type != db.IndexFieldText {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%s is not a text field", q.Field)}
		}
	}
	return idx, nil
}

// query translates a TextQuery to bleve. Filter clauses carry zero boost so
// that only the text clause contributes to relevance.
func (idx *ftIndex) query(q *db.TextQuery) query.Query {
	hasText := strings.TrimSpace(q.Text) != ""
	clauses := make([]query.Query, 0, len(q.Filters.Conditions())+1)

	for _, c := range q.Filters.Conditions() {
		var fq interface {
			query.Query
			SetBoost(float64)
		}
		switch {
		case c.IsMatch():
			value := c.Value()
			if f, ok := idx.def.Field(c.Key()); !ok || !f.TagCaseSensitive {
				value = strings.ToLower(value)
			}
			tq := bleve.NewTermQuery(value)
			tq.SetField(c.Key())
			fq = tq
		case c.IsRange():
			nq := numericRange(c.Range())
			nq.SetField(c.Key())
			fq = nq
		default:
			continue
		}
		if hasText {
			fq.SetBoost(0)
		}
		clauses = append(clauses, fq)
	}

	if hasText {
		mq := bleve.NewMatchQuery(q.Text)
		mq.SetField(q.Field)
		mq.SetOperator(query.MatchQueryOperatorAnd)
		clauses = append(clauses, mq)
	}

	if len(clauses) == 0 {
		return bleve.NewMatchAllQuery()
	}
	return bleve.NewConjunctionQuery(clauses...)
}

func numericRange(r *filter.Range) *query.NumericRangeQuery {
	var lo, hi *float64
	var loIncl, hiIncl *bool
	incl, excl := true, false

	switch {
	case r.GTE() != nil:
		lo, loIncl = r.GTE(), &incl
	case r.GT() != nil:
		lo, loIncl = r.GT(), &excl
	}
	switch {
	case r.LTE() != nil:
		hi, hiIncl = r.LTE(), &incl
	case r.LT() != nil:
		hi, hiIncl = r.LT(), &excl
	}
	return bleve.NewNumericRangeInclusiveQuery(lo, hi, loIncl, hiIncl)
}

func (idx *ftIndex) matches(h map[string]string, expr filter.Expression) bool {
	for _, c := range expr.Conditions() {
		f, _ := idx.def.Field(c.Key())
		switch {
		case c.IsMatch():
			want := c.Value()
			if !f.TagCaseSensitive {
				want = strings.ToLower(want)
			}
			if !slices.Contains(splitTags(h[c.Key()], &f), want) {
				return false
			}
		case c.IsRange():
			n, err := strconv.ParseFloat(h[c.Key()], 64)
			if err != nil || !c.Range().Contains(n) {
				return false
			}
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// pick copies the requested fields, or all fields when none are requested.
func pick(h map[string]string, fields []string) map[string]string {
	if len(fields) == 0 {
		return copyHash(h)
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := h[f]; ok {
			out[f] = v
		}
	}
	return out
}
