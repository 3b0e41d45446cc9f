// Package page shapes adapter output into the caller-facing result page.
package page

import "github.com/kailas-cloud/notesearch/internal/domain/note"

// Hit is one ranked or chronological document. Score is nil for
// strategies that do not rank.
type Hit struct {
	Note  note.Note
	Score *float64
}

// Page is the result of one search call.
type Page struct {
	Documents  []Hit
	TotalCount int
	Page       int
	PageSize   int
	TotalPages int
}

// Format wraps hits without reordering them and computes TotalPages by
// ceiling division. TotalPages is 0 when TotalCount is 0.
func Format(hits []Hit, totalCount, pageNum, pageSize int) Page {
	if hits == nil {
		hits = []Hit{}
	}
	if len(hits) > pageSize {
		hits = hits[:pageSize]
	}
	return Page{
		Documents:  hits,
		TotalCount: totalCount,
		Page:       pageNum,
		PageSize:   pageSize,
		TotalPages: TotalPages(totalCount, pageSize),
	}
}

// TotalPages returns ceil(total / size).
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
