package request

import (
	"strings"

	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/domain/note"
	"github.com/kailas-cloud/notesearch/internal/domain/search/mode"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed free text length.
	MaxQueryLength  = 4096
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxTags         = note.MaxTags
)

// Request is a validated search query. Page size comes from server policy.
type Request struct {
	scope      tenant.Scope
	freeText   string
	tags       []string
	searchMode mode.Mode
	page       int
	pageSize   int
}

// New validates and normalizes search parameters. Free text is trimmed and
// treated as absent when blank; tags are normalized like stored tags.
func New(
	scope tenant.Scope,
	freeText string,
	tags []string,
	m mode.Mode,
	page, pageSize int,
) (Request, error) {
	if scope.IsZero() {
		return Request{}, domain.Invalid("tenant scope is required")
	}
	freeText = strings.TrimSpace(freeText)
	if len(freeText) > MaxQueryLength {
		return Request{}, domain.Invalid("query too long (max %d chars)", MaxQueryLength)
	}
	if m == "" {
		m = mode.Auto
	}
	if !m.IsValid() {
		return Request{}, domain.Invalid("invalid search mode: %q", m)
	}
	if page <= 0 {
		return Request{}, domain.Invalid("page must be a positive integer")
	}
	if pageSize <= 0 || pageSize > MaxPageSize {
		return Request{}, domain.Invalid("page size must be between 1 and %d", MaxPageSize)
	}
	normalized := note.NormalizeTags(tags)
	if len(normalized) > MaxTags {
		return Request{}, domain.Invalid("too many tags (max %d)", MaxTags)
	}

	return Request{
		scope:      scope,
		freeText:   freeText,
		tags:       normalized,
		searchMode: m,
		page:       page,
		pageSize:   pageSize,
	}, nil
}

// Scope returns the tenant scope.
func (r *Request) Scope() tenant.Scope { return r.scope }

// FreeText returns the trimmed query text ("" when absent).
func (r *Request) FreeText() string { return r.freeText }

// HasText reports whether free text was given.
func (r *Request) HasText() bool { return r.freeText != "" }

// Tags returns the required tags.
func (r *Request) Tags() []string { return r.tags }

// HasTags reports whether a tag filter was given.
func (r *Request) HasTags() bool { return len(r.tags) > 0 }

// Mode returns the retrieval preference.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// Page returns the 1-based page number.
func (r *Request) Page() int { return r.page }

// PageSize returns the policy page size.
func (r *Request) PageSize() int { return r.pageSize }

// Offset returns the number of documents before this page.
func (r *Request) Offset() int { return (r.page - 1) * r.pageSize }
