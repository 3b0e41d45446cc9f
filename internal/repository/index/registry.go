// Package index provisions managed search indexes and tracks their readiness.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/db"
	"github.com/kailas-cloud/notesearch/internal/domain"
	domindex "github.com/kailas-cloud/notesearch/internal/domain/index"
)

// store is the consumer interface for index lifecycle (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error)
	SupportsTextSearch(ctx context.Context) bool
	SupportsVectorSearch(ctx context.Context) bool
}

// Config controls provisioning.
type Config struct {
	// Prefix is the hash key prefix indexes are created over.
	Prefix       string
	PollInterval time.Duration
	Timeout      time.Duration
	HNSWM        int
	HNSWEF       int
}

// Defaults.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultTimeout      = 600 * time.Second
)

type entry struct {
	desc     domindex.Descriptor
	state    domindex.State
	progress float64
	err      error
	done     chan struct{}
}

// Registry ensures indexes exist and caches capability flags. Concurrent
// Ensure calls for the same name share one provisioning run; a ready index
// stays ready for the life of the process.
type Registry struct {
	store      store
	cfg        Config
	readyGauge *prometheus.GaugeVec
	logger     *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry

	lexical atomic.Bool
	vector  atomic.Bool
}

// New creates a registry. readyGauge (label "index") may be nil.
func New(s store, cfg Config, readyGauge *prometheus.GaugeVec, logger *zap.Logger) *Registry {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Registry{
		store:      s,
		cfg:        cfg,
		readyGauge: readyGauge,
		logger:     logger,
		entries:    make(map[string]*entry),
	}
}

// Ensure creates the index if absent and blocks until it is ready, the
// configured timeout elapses (domain.ErrIndexTimeout) or ctx is done.
// A backend without support for the descriptor's kind yields
// domindex.Unsupported and a nil error.
func (r *Registry) Ensure(ctx context.Context, d domindex.Descriptor) (domindex.State, error) {
	if err := d.Validate(); err != nil {
		return domindex.Failed, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	r.mu.Lock()
	if e, ok := r.entries[d.Name]; ok {
		select {
		case <-e.done:
			if e.state == domindex.Ready || e.state == domindex.Unsupported {
				r.mu.Unlock()
				return e.state, nil
			}
			// previous attempt failed: start over
		default:
			r.mu.Unlock()
			r.logger.Debug("Attaching to in-flight index provisioning", zap.String("index", d.Name))
			select {
			case <-e.done:
				return r.outcome(e)
			case <-ctx.Done():
				return domindex.Failed, ctx.Err()
			}
		}
	}
	e := &entry{desc: d, state: domindex.Absent, done: make(chan struct{})}
	r.entries[d.Name] = e
	r.mu.Unlock()

	state, err := r.provision(ctx, e)

	r.mu.Lock()
	e.state, e.err = state, err
	r.mu.Unlock()
	close(e.done)

	return state, err
}

func (r *Registry) outcome(e *entry) (domindex.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return e.state, e.err
}

func (r *Registry) setState(e *entry, s domindex.State, progress float64) {
	r.mu.Lock()
	e.state, e.progress = s, progress
	r.mu.Unlock()
}

func (r *Registry) provision(ctx context.Context, e *entry) (domindex.State, error) {
	d := e.desc
	log := r.logger.With(zap.String("index", d.Name), zap.String("kind", string(d.Kind)))

	if !r.supports(ctx, d.Kind) {
		log.Warn("Backend does not support index kind, strategy disabled")
		return domindex.Unsupported, nil
	}

	def, err := r.definition(d)
	if err != nil {
		return domindex.Failed, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	pollCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	created := false
	for {
		info, err := r.store.IndexInfo(pollCtx, d.Name)
		switch {
		case err == nil && info.Ready():
			r.markReady(d)
			r.setState(e, domindex.Ready, 1)
			log.Info("Index ready", zap.Int("num_docs", info.NumDocs))
			return domindex.Ready, nil

		case err == nil:
			r.setState(e, domindex.Building, info.PercentIndexed)
			log.Debug("Index building", zap.Float64("progress", info.PercentIndexed))

		case errors.Is(err, db.ErrIndexNotFound) && !created:
			r.setState(e, domindex.Creating, 0)
			if cerr := r.store.CreateIndex(pollCtx, def); cerr != nil && !errors.Is(cerr, db.ErrIndexExists) {
				if !db.IsUnavailable(cerr) && pollCtx.Err() == nil {
					return domindex.Failed, &domain.BackendError{Kind: domain.ErrBackendOperation, Op: "create index " + d.Name, Err: cerr}
				}
				log.Warn("Create index failed, retrying", zap.Error(cerr))
			} else {
				created = true
				log.Info("Index creation issued")
				continue
			}

		default:
			// transient: retried like an unready state
			log.Warn("Index status check failed, retrying", zap.Error(err))
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return domindex.Failed, ctx.Err()
			}
			return domindex.Failed, fmt.Errorf("%w: %s after %s", domain.ErrIndexTimeout, d.Name, r.cfg.Timeout)
		case <-ticker.C:
		}
	}
}

func (r *Registry) supports(ctx context.Context, k domindex.Kind) bool {
	switch k {
	case domindex.Lexical:
		return r.store.SupportsTextSearch(ctx)
	case domindex.Vector:
		return r.store.SupportsVectorSearch(ctx)
	default:
		return false
	}
}

func (r *Registry) markReady(d domindex.Descriptor) {
	switch d.Kind {
	case domindex.Lexical:
		r.lexical.Store(true)
	case domindex.Vector:
		r.vector.Store(true)
	}
	if r.readyGauge != nil {
		r.readyGauge.WithLabelValues(d.Name).Set(1)
	}
}

// definition converts a descriptor into the store schema.
func (r *Registry) definition(d domindex.Descriptor) (*db.IndexDefinition, error) {
	b := db.NewIndex(d.Name).Prefix(r.cfg.Prefix)
	for _, f := range d.Fields {
		switch f.Type {
		case domindex.Text:
			b = b.Text(f.Name)
		case domindex.Tag:
			b = b.TagList(f.Name, ",")
		case domindex.Numeric:
			if f.Sortable {
				b = b.SortableNumeric(f.Name)
			} else {
				b = b.Numeric(f.Name)
			}
		case domindex.Vec:
			b = b.VectorHNSW(f.Name, d.Dimensions, db.DistanceCosine, r.cfg.HNSWM, r.cfg.HNSWEF)
		default:
			return nil, fmt.Errorf("index %s: unknown field type %q", d.Name, f.Type)
		}
	}
	return b.Build()
}

// Capabilities returns the current strategy flags.
func (r *Registry) Capabilities() domindex.Capabilities {
	return domindex.Capabilities{Lexical: r.lexical.Load(), Vector: r.vector.Load()}
}

// Statuses lists every index the registry has seen, sorted by name.
func (r *Registry) Statuses() []domindex.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domindex.Status, 0, len(r.entries))
	for _, e := range r.entries {
		s := domindex.Status{Name: e.desc.Name, Kind: e.desc.Kind, State: e.state, Progress: e.progress}
		if e.err != nil {
			s.Err = e.err.Error()
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
