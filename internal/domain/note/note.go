// Package note defines the searchable document.
package note

import (
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
)

// Content and tag limits.
const (
	MaxContentLength = 64 * 1024
	MaxTags          = 32
	MaxTagLength     = 64
)

// Note is a tenant-scoped document. Scope and creation time never change
// after construction; the embedding may be attached later by backfill.
type Note struct {
	id          string
	scope       tenant.Scope
	content     string
	tags        []string
	embedding   []float32
	createdAt   time.Time
	contributor string
}

// New validates and normalizes a note. Tags go through NormalizeTags.
func New(
	id string, scope tenant.Scope, content string, tags []string,
	contributor string, createdAt time.Time,
) (Note, error) {
	if id == "" {
		return Note{}, domain.Invalid("note id is required")
	}
	if scope.IsZero() {
		return Note{}, domain.Invalid("tenant scope is required")
	}
	if strings.TrimSpace(content) == "" {
		return Note{}, domain.Invalid("content is required")
	}
	if len(content) > MaxContentLength {
		return Note{}, domain.Invalid("content exceeds %d bytes", MaxContentLength)
	}
	normalized := NormalizeTags(tags)
	if len(normalized) > MaxTags {
		return Note{}, domain.Invalid("too many tags (max %d)", MaxTags)
	}
	for _, t := range normalized {
		if len(t) > MaxTagLength {
			return Note{}, domain.Invalid("tag %q exceeds %d characters", t, MaxTagLength)
		}
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return Note{
		id:          id,
		scope:       scope,
		content:     content,
		tags:        normalized,
		contributor: contributor,
		createdAt:   createdAt.UTC().Truncate(time.Millisecond),
	}, nil
}

// Reconstruct rebuilds a note from storage without validation.
func Reconstruct(
	id string, scope tenant.Scope, content string, tags []string,
	embedding []float32, contributor string, createdAt time.Time,
) Note {
	return Note{
		id: id, scope: scope, content: content, tags: tags,
		embedding: embedding, contributor: contributor, createdAt: createdAt,
	}
}

// NormalizeTags lower-cases, trims and de-duplicates tags, drops empty ones
// and commas (the storage separator), and returns them sorted.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(t, ",", " ")))
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// ID returns the note identifier.
func (n *Note) ID() string { return n.id }

// Scope returns the owning tenant scope.
func (n *Note) Scope() tenant.Scope { return n.scope }

// Content returns the note body.
func (n *Note) Content() string { return n.content }

// Tags returns the normalized tags.
func (n *Note) Tags() []string { return n.tags }

// Embedding returns the stored vector, or nil when not embedded yet.
func (n *Note) Embedding() []float32 { return n.embedding }

// HasEmbedding reports whether the note qualifies for vector ranking.
func (n *Note) HasEmbedding() bool { return len(n.embedding) > 0 }

// CreatedAt returns the creation time.
func (n *Note) CreatedAt() time.Time { return n.createdAt }

// Contributor returns who wrote the note.
func (n *Note) Contributor() string { return n.contributor }

// WithEmbedding returns a copy carrying v.
func (n Note) WithEmbedding(v []float32) Note {
	n.embedding = v
	return n
}

// HasAllTags reports tag containment: every wanted tag is present.
func (n *Note) HasAllTags(wanted []string) bool {
	for _, w := range wanted {
		if !slices.Contains(n.tags, w) {
			return false
		}
	}
	return true
}
