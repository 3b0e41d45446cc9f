package app

import (
	"context"
	"fmt"
	"time"

	domnote "github.com/kailas-cloud/notesearch/internal/domain/note"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
	noteuc "github.com/kailas-cloud/notesearch/internal/usecase/note"
)

type seedNote struct {
	owner, collection string
	daysAgo           int
	content           string
	tags              []string
}

// sample data: two owners, three collections
var seedNotes = []seedNote{
	{"alice", "garden", 30, "Planted tomatoes and basil along the south fence.", []string{"planting", "vegetables"}},
	{"alice", "garden", 21, "Aphids on the roses again, tried neem oil spray.", []string{"pests", "roses"}},
	{"alice", "garden", 9, "First tomato harvest, the basil is bolting.", []string{"harvest", "vegetables"}},
	{"alice", "travel", 60, "Booked flights to Phoenix for the Grand Canyon hike.", []string{"planning", "canyon"}},
	{"alice", "travel", 45, "Rim to rim canyon hike: start at 4am, carry three liters of water.", []string{"hiking", "canyon"}},
	{"bob", "work", 14, "Standup: migration to the new search cluster is blocked on index rebuild.", []string{"standup", "search"}},
	{"bob", "work", 7, "Retro: alerting on index readiness would have saved a day.", []string{"retro", "search"}},
	{"bob", "work", 2, "Planning: backfill embeddings for old notes before enabling semantic search.", []string{"planning", "embeddings"}},
}

// Seed writes the sample notes through the note service, back-dating
// creation times relative to now. It returns the stored notes.
func Seed(ctx context.Context, notes *noteuc.Service, now time.Time) ([]domnote.Note, error) {
	out := make([]domnote.Note, 0, len(seedNotes))
	for _, s := range seedNotes {
		scope, err := tenant.New(s.owner, s.collection)
		if err != nil {
			return nil, err
		}
		n, err := notes.Create(ctx, scope, noteuc.Draft{
			Content:     s.content,
			Tags:        s.tags,
			Contributor: s.owner,
			CreatedAt:   now.AddDate(0, 0, -s.daysAgo),
		})
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", scope, err)
		}
		out = append(out, n)
	}
	return out, nil
}
