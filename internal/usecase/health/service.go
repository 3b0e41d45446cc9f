// Package health aggregates store, embedding provider and index state into
// one report.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/notesearch/internal/domain/index"
)

// CheckTimeout bounds each remote check.
const CheckTimeout = 3 * time.Second

// Status is the aggregated health.
type Status string

const (
	Healthy Status = "ok"
	// Degraded means search still answers, possibly with fewer strategies.
	Degraded Status = "degraded"
	// Unhealthy means the store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult is one component's outcome.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
	// CheckDisabled marks an index kind the backend cannot serve.
	CheckDisabled CheckResult = "disabled"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	indexes   IndexLister
}

// New creates a Service. embedding and indexes can be nil.
func New(db DBPinger, embedding EmbeddingChecker, indexes IndexLister) *Service {
	return &Service{db: db, embedding: embedding, indexes: indexes}
}

// Check pings the store and the embedding provider in parallel and adds
// the registry's index states. Only a failed store makes the report
// unhealthy.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult)
	)
	set := func(name string, r CheckResult) {
		mu.Lock()
		checks[name] = r
		mu.Unlock()
	}

	checkers := map[string]func(context.Context) error{"database": s.db.Ping}
	if s.embedding != nil {
		checkers["embedding"] = s.embedding.HealthCheck
	}

	var g errgroup.Group
	for name, check := range checkers {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, CheckTimeout)
			defer cancel()
			set(name, result(check(pctx) == nil))
			return nil
		})
	}
	_ = g.Wait()

	if s.indexes != nil {
		for _, st := range s.indexes.Statuses() {
			checks[st.Name] = indexResult(st.State)
		}
	}

	return Report{Status: aggregate(checks), Checks: checks}
}

func aggregate(checks map[string]CheckResult) Status {
	if checks["database"] == CheckError {
		return Unhealthy
	}
	for _, v := range checks {
		if v == CheckError {
			return Degraded
		}
	}
	return Healthy
}

func indexResult(s index.State) CheckResult {
	switch s {
	case index.Ready:
		return CheckOK
	case index.Unsupported:
		return CheckDisabled
	default:
		return CheckError
	}
}

func result(ok bool) CheckResult {
	if ok {
		return CheckOK
	}
	return CheckError
}
