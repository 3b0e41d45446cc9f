package chi

import (
	"time"

	domnote "github.com/kailas-cloud/notesearch/internal/domain/note"
	"github.com/kailas-cloud/notesearch/internal/domain/search/page"
)

// ErrorCode is the machine-readable error category of a failed request.
type ErrorCode string

// Error codes returned in ErrorResponse.Code.
const (
	ErrorCodeBadRequest           ErrorCode = "bad_request"
	ErrorCodeUnauthorized         ErrorCode = "unauthorized"
	ErrorCodeValidationFailed     ErrorCode = "validation_failed"
	ErrorCodeNotFound             ErrorCode = "not_found"
	ErrorCodeEmbeddingUnavailable ErrorCode = "embedding_unavailable"
	ErrorCodeBackendUnavailable   ErrorCode = "backend_unavailable"
	ErrorCodeBackendError         ErrorCode = "backend_error"
	ErrorCodeTimeout              ErrorCode = "timeout"
	ErrorCodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// CreateNoteRequest is the body of POST .../notes.
type CreateNoteRequest struct {
	Content      string     `json:"content"`
	Tags         []string   `json:"tags,omitempty"`
	Contributor  string     `json:"contributor,omitempty"`
	GenerateTags bool       `json:"generate_tags,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// NoteResponse is a stored note. The embedding is never returned.
type NoteResponse struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Collection  string    `json:"collection"`
	Content     string    `json:"content"`
	Tags        []string  `json:"tags"`
	Contributor string    `json:"contributor,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Embedded    bool      `json:"embedded"`
}

// SearchHit is one note of a result page.
type SearchHit struct {
	NoteResponse
	Score *float64 `json:"score,omitempty"`
}

// SearchResponse is a result page.
type SearchResponse struct {
	Documents  []SearchHit `json:"documents"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// IndexStatusResponse describes one managed index.
type IndexStatusResponse struct {
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

// IndexListResponse is the body of GET /v1/indexes.
type IndexListResponse struct {
	Items []IndexStatusResponse `json:"items"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func noteToAPI(n *domnote.Note) NoteResponse {
	tags := n.Tags()
	if tags == nil {
		tags = []string{}
	}
	return NoteResponse{
		ID:          n.ID(),
		Owner:       n.Scope().Owner(),
		Collection:  n.Scope().Collection(),
		Content:     n.Content(),
		Tags:        tags,
		Contributor: n.Contributor(),
		CreatedAt:   n.CreatedAt().UTC(),
		Embedded:    n.HasEmbedding(),
	}
}

func pageToAPI(p *page.Page) SearchResponse {
	docs := make([]SearchHit, len(p.Documents))
	for i := range p.Documents {
		docs[i] = SearchHit{NoteResponse: noteToAPI(&p.Documents[i].Note), Score: p.Documents[i].Score}
	}
	return SearchResponse{
		Documents:  docs,
		TotalCount: p.TotalCount,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
	}
}
