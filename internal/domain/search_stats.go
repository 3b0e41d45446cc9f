package domain

import "context"

type searchStatsKey struct{}

// SearchStats is filled in while one search runs: the planner records the
// query embedding and the service records the strategy it executed.
// Transports install it with NewContextWithStats and report it to callers.
type SearchStats struct {
	Strategy        string
	EmbeddingTokens int
	// Embedded is true once a query vector was obtained, even from cache.
	Embedded bool
}

// NewContextWithStats returns ctx carrying an empty collector.
func NewContextWithStats(ctx context.Context) (context.Context, *SearchStats) {
	s := &SearchStats{}
	return context.WithValue(ctx, searchStatsKey{}, s), s
}

// StatsFromContext returns the collector, or nil when none was installed.
// Every method is safe on a nil receiver.
func StatsFromContext(ctx context.Context) *SearchStats {
	s, _ := ctx.Value(searchStatsKey{}).(*SearchStats)
	return s
}

// AddEmbeddingTokens records a query embedding and its token cost.
func (s *SearchStats) AddEmbeddingTokens(n int) {
	if s == nil {
		return
	}
	s.EmbeddingTokens += n
	s.Embedded = true
}

// SetStrategy records the executed plan strategy.
func (s *SearchStats) SetStrategy(strategy string) {
	if s != nil {
		s.Strategy = strategy
	}
}
