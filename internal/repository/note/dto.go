package note

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/notesearch/internal/db"
	domnote "github.com/kailas-cloud/notesearch/internal/domain/note"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
)

const (
	notePrefix     = "note:"
	timelinePrefix = "timeline:"
)

// KeyPrefix is the hash prefix every index descriptor is created over.
const KeyPrefix = notePrefix

// Key returns the hash key of a note.
func Key(id string) string { return notePrefix + id }

// IDFromKey strips the hash prefix.
func IDFromKey(key string) string { return strings.TrimPrefix(key, notePrefix) }

// TimelineKey returns the sorted set holding a tenant's note ids by creation time.
func TimelineKey(scope tenant.Scope) string {
	return timelinePrefix + scope.Owner() + ":" + scope.Collection()
}

// Score returns the timeline score of a creation time (unix ms).
func Score(t time.Time) float64 { return float64(t.UnixMilli()) }

// buildHashFields converts a note into a flat map for HSET. The embedding
// field is written only when present.
func buildHashFields(n *domnote.Note) map[string]string {
	m := map[string]string{
		domnote.FieldOwner:       n.Scope().Owner(),
		domnote.FieldCollection:  n.Scope().Collection(),
		domnote.FieldContent:     n.Content(),
		domnote.FieldTags:        strings.Join(n.Tags(), domnote.TagSeparator),
		domnote.FieldContributor: n.Contributor(),
		domnote.FieldCreatedAt:   strconv.FormatInt(n.CreatedAt().UnixMilli(), 10),
	}
	if n.HasEmbedding() {
		m[domnote.FieldEmbedding] = db.EncodeVector(n.Embedding())
	}
	return m
}

// ParseHash rebuilds a note from its hash fields.
func ParseHash(id string, m map[string]string) (domnote.Note, error) {
	scope, err := tenant.New(m[domnote.FieldOwner], m[domnote.FieldCollection])
	if err != nil {
		return domnote.Note{}, fmt.Errorf("note %s: corrupt scope: %w", id, err)
	}

	var tags []string
	if raw := m[domnote.FieldTags]; raw != "" {
		tags = strings.Split(raw, domnote.TagSeparator)
	}

	var createdAt time.Time
	if raw := m[domnote.FieldCreatedAt]; raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domnote.Note{}, fmt.Errorf("note %s: corrupt created_at %q: %w", id, raw, err)
		}
		createdAt = time.UnixMilli(ms).UTC()
	}

	return domnote.Reconstruct(
		id, scope, m[domnote.FieldContent], tags,
		db.DecodeVector(m[domnote.FieldEmbedding]),
		m[domnote.FieldContributor], createdAt,
	), nil
}
