package db

import "github.com/kailas-cloud/notesearch/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search. Drivers return at most
// K entries ordered by descending similarity; Total is the number returned.
type KNNQuery struct {
	IndexName    string
	Field        string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for scored full-text search. Entries are ordered by
// descending relevance, then by SortBy descending, then by key descending.
type TextQuery struct {
	IndexName    string
	Field        string
	Text         string
	Filters      filter.Expression
	SortBy       string
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
