package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/notesearch/internal/db"
)

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	args, err := KNNArgs(q)
	if err != nil {
		return nil, err
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, WrapErr(db.OpSearch, err)
	}

	return ParseKNNResult(raw)
}

// KNNArgs renders FT.SEARCH arguments for a KNN query. LIMIT is explicit
// because FT.SEARCH otherwise stops at 10 results regardless of K.
func KNNArgs(q *db.KNNQuery) ([]string, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Field == "" {
		return nil, fmt.Errorf("vector field is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	args := []string{q.IndexName, BuildKNNQuery(q.Field, q.K, q.Filters)}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)+1))
		args = append(args, q.ReturnFields...)
		args = append(args, ScoreField)
	}

	args = append(args,
		"SORTBY", ScoreField, "ASC",
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", db.EncodeVector(q.Vector),
		"DIALECT", "2",
	)
	return args, nil
}

// SearchText runs a BM25 search through FT.AGGREGATE so that ordering can
// combine the relevance score with a secondary sort key in one round trip.
func (s *Store) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if err := validateTextQuery(q); err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		return &db.SearchResult{}, nil
	}

	query := BuildTextQuery(q.Field, q.Text, q.Filters)

	load := append([]string{"@__key"}, prefixed(q.ReturnFields)...)
	args := []string{q.IndexName, query, "LOAD", strconv.Itoa(len(load))}
	args = append(args, load...)
	args = append(args, "ADDSCORES")

	sortBy := []string{"@__score", "DESC"}
	if q.SortBy != "" {
		sortBy = append(sortBy, "@"+q.SortBy, "DESC")
	}
	sortBy = append(sortBy, "@__key", "DESC")
	args = append(args, "SORTBY", strconv.Itoa(len(sortBy)))
	args = append(args, sortBy...)
	args = append(args,
		"MAX", strconv.Itoa(q.Offset+q.Limit),
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, WrapErr(db.OpAggregate, err)
	}

	return parseAggregateResult(raw)
}

// CountText returns the number of documents matching the text query.
func (s *Store) CountText(ctx context.Context, q *db.TextQuery) (int, error) {
	if err := validateTextQuery(q); err != nil {
		return 0, err
	}

	query := BuildTextQuery(q.Field, q.Text, q.Filters)
	cmd := s.b().Arbitrary("FT.SEARCH").Args(q.IndexName, query, "LIMIT", "0", "0", "DIALECT", "2").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, WrapErr(db.OpSearch, err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

func validateTextQuery(q *db.TextQuery) error {
	if q.IndexName == "" {
		return fmt.Errorf("index name is required")
	}
	if q.Text != "" && q.Field == "" {
		return fmt.Errorf("text field is required")
	}
	if q.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	return nil
}

func prefixed(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = "@" + f
	}
	return out
}

// --- Result parsing ---

// ParseKNNResult reads a 2-stride FT.SEARCH reply and converts cosine
// distance to similarity.
func ParseKNNResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	if _, err := raw[0].AsInt64(); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	entries := make([]db.SearchEntry, 0, len(raw)/2)
	// [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{
			Key:    key,
			Fields: ParseFieldPairs(fields),
		}

		if scoreStr, ok := entry.Fields[ScoreField]; ok {
			if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				entry.Score = max(0, 1.0-d) // cosine distance → similarity, clamped to [0,1]
			}
			delete(entry.Fields, ScoreField)
		}

		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

// parseAggregateResult reads [total, row1, row2, ...] where each row is a
// flat field/value array that carries __key and __score.
func parseAggregateResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	entries := make([]db.SearchEntry, 0, len(raw)-1)
	for _, row := range raw[1:] {
		pairs, err := row.ToArray()
		if err != nil {
			continue
		}
		fields := ParseFieldPairs(pairs)

		key := fields["__key"]
		if key == "" {
			continue
		}
		delete(fields, "__key")

		var score float64
		if v, ok := fields["__score"]; ok {
			score, _ = strconv.ParseFloat(v, 64)
			delete(fields, "__score")
		}

		entries = append(entries, db.SearchEntry{Key: key, Score: score, Fields: fields})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}
