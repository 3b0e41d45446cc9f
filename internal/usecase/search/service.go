package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/domain/search/mode"
	"github.com/kailas-cloud/notesearch/internal/domain/search/page"
	"github.com/kailas-cloud/notesearch/internal/domain/search/request"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
	"github.com/kailas-cloud/notesearch/internal/logger"
	"github.com/kailas-cloud/notesearch/internal/metrics"
)

// Service is the caller-facing search entry point.
type Service struct {
	planner  *Planner
	exec     Executor
	caps     CapabilityReader
	pageSize int
}

// New creates a search service. pageSize is the server policy for every request.
func New(planner *Planner, exec Executor, caps CapabilityReader, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = request.DefaultPageSize
	}
	return &Service{planner: planner, exec: exec, caps: caps, pageSize: pageSize}
}

// PageSize returns the policy page size.
func (s *Service) PageSize() int { return s.pageSize }

// Search validates the query, plans it against the current capabilities,
// executes it and formats the page.
func (s *Service) Search(
	ctx context.Context, scope tenant.Scope, freeText string, tags []string, m mode.Mode, pageNum int,
) (page.Page, error) {
	req, err := request.New(scope, freeText, tags, m, pageNum, s.pageSize)
	if err != nil {
		return page.Page{}, err
	}
	return s.Run(ctx, &req)
}

// Run executes an already validated request.
func (s *Service) Run(ctx context.Context, req *request.Request) (page.Page, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	p, err := s.planner.Build(ctx, req, s.caps.Capabilities())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("none", status(err)).Inc()
		log.Warn("Search plan failed",
			zap.String("tenant", req.Scope().String()),
			zap.String("mode", string(req.Mode())),
			zap.Error(err),
		)
		return page.Page{}, fmt.Errorf("plan: %w", err)
	}
	strategy := string(p.Strategy())
	domain.StatsFromContext(ctx).SetStrategy(strategy)

	hits, total, err := s.exec.Execute(ctx, p)
	metrics.SearchDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(strategy, status(err)).Inc()
		log.Error("Search execution failed",
			zap.String("tenant", req.Scope().String()),
			zap.String("strategy", strategy),
			zap.Error(err),
		)
		return page.Page{}, fmt.Errorf("execute %s plan: %w", strategy, err)
	}
	metrics.SearchRequestsTotal.WithLabelValues(strategy, "ok").Inc()

	log.Debug("Search completed",
		zap.String("tenant", req.Scope().String()),
		zap.String("strategy", strategy),
		zap.Int("page", req.Page()),
		zap.Int("hits", len(hits)),
		zap.Int("total", total),
		zap.Duration("duration", time.Since(start)),
	)

	return page.Format(hits, total, req.Page(), req.PageSize()), nil
}

func status(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, domain.ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
