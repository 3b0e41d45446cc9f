// Package app is the composition root shared by the notesearch server and
// the notesctl CLI: config in, wired services out.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/config"
	"github.com/kailas-cloud/notesearch/internal/db"
	"github.com/kailas-cloud/notesearch/internal/db/memory"
	dbRedis "github.com/kailas-cloud/notesearch/internal/db/redis"
	dbValkey "github.com/kailas-cloud/notesearch/internal/db/valkey"
	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/domain/index"
	"github.com/kailas-cloud/notesearch/internal/metrics"
	"github.com/kailas-cloud/notesearch/internal/repository/embcache"
	indexrepo "github.com/kailas-cloud/notesearch/internal/repository/index"
	noterepo "github.com/kailas-cloud/notesearch/internal/repository/note"
	searchrepo "github.com/kailas-cloud/notesearch/internal/repository/search"
	bedrockEmb "github.com/kailas-cloud/notesearch/internal/transport/bedrock"
	"github.com/kailas-cloud/notesearch/internal/transport/langchain"
	openaiEmb "github.com/kailas-cloud/notesearch/internal/transport/openai"
	"github.com/kailas-cloud/notesearch/internal/usecase/backfill"
	embeddinguc "github.com/kailas-cloud/notesearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/notesearch/internal/usecase/health"
	noteuc "github.com/kailas-cloud/notesearch/internal/usecase/note"
	"github.com/kailas-cloud/notesearch/internal/usecase/provision"
	searchuc "github.com/kailas-cloud/notesearch/internal/usecase/search"
)

// App holds the wired services.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    db.Store
	Registry *indexrepo.Registry
	// Embedder is nil when embedding.provider is none.
	Embedder  domain.Embedder
	Notes     *noteuc.Service
	Search    *searchuc.Service
	Provision *provision.Service
	// Backfill is nil without an embedder.
	Backfill *backfill.Service
	Health   *healthuc.Service
}

// New opens the store, waits for it and wires every service. Close releases the store.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Register()

	store, err := OpenStore(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	embedder, err := BuildEmbedder(ctx, cfg.Embedding, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	tagger, err := buildTagger(cfg.Tagging)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := indexrepo.New(store, indexrepo.Config{
		Prefix:       noterepo.KeyPrefix,
		PollInterval: cfg.Index.PollInterval(),
		Timeout:      cfg.Index.EnsureTimeout(),
		HNSWM:        cfg.Index.HNSWM,
		HNSWEF:       cfg.Index.HNSWEFConstruct,
	}, metrics.IndexReady, logger)

	names := provision.Names{Lexical: cfg.Index.LexicalName, Vector: cfg.Index.VectorName}
	descriptors := provision.Descriptors(names, cfg.Embedding.Dimensions)
	if embedder == nil {
		// no vectors are ever written without an embedder
		descriptors = []index.Descriptor{descriptors[0]}
	}

	notes := noterepo.New(store)
	adapter := searchrepo.New(store, searchrepo.Indexes{Lexical: names.Lexical, Vector: names.Vector})

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Registry:  registry,
		Embedder:  embedder,
		Notes:     noteuc.New(notes, embedder, tagger, logger),
		Search:    searchuc.New(searchuc.NewPlanner(embedder, cfg.Index.VectorCandidates), adapter, registry, cfg.Search.PageSize),
		Provision: provision.New(registry, descriptors, logger),
	}

	var checker healthuc.EmbeddingChecker
	if embedder != nil {
		a.Backfill = backfill.New(notes, embedder, backfill.Config{
			Workers:   cfg.Backfill.Workers,
			BatchSize: cfg.Backfill.BatchSize,
		}, logger)
		if hc, ok := embedder.(healthuc.EmbeddingChecker); ok {
			checker = hc
		}
	}
	a.Health = healthuc.New(store, checker, registry)

	return a, nil
}

// Close releases the store.
func (a *App) Close() {
	a.Store.Close()
}

// OpenStore creates the configured document store driver.
func OpenStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverValkey:
		s, err := dbValkey.NewStore(dbValkey.Config{Addrs: cfg.Addrs, Username: cfg.Username, Password: cfg.Password})
		if err != nil {
			return nil, fmt.Errorf("open valkey: %w", err)
		}
		return s, nil
	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.Addrs, Username: cfg.Username, Password: cfg.Password})
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		return s, nil
	case config.DriverMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", domain.ErrConfiguration, cfg.Driver)
	}
}

// BuildEmbedder assembles the decorator chain: provider -> cache -> instrumented.
// It returns a nil Embedder for provider none.
func BuildEmbedder(
	ctx context.Context, cfg config.EmbeddingConfig, store db.Store, logger *zap.Logger,
) (domain.Embedder, error) {
	var base domain.Embedder
	switch cfg.Provider {
	case config.ProviderNone:
		return nil, nil
	case config.ProviderOpenAI:
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Logger:     logger,
		})
	case config.ProviderBedrock:
		e, err := bedrockEmb.New(ctx, bedrockEmb.Config{
			Region:     cfg.Region,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		base = e
	case config.ProviderLangchain:
		e, err := langchain.NewEmbedder(langchain.Config{
			Backend: cfg.Backend,
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, err
		}
		base = e
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrConfiguration, cfg.Provider)
	}

	embedder := base
	if cfg.Cache {
		embedder = embcache.New(base, store, cfg.Model, time.Duration(cfg.CacheTTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, logger)
	}

	logger.Info("Embedder created",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimensions", cfg.Dimensions),
		zap.Bool("cache", cfg.Cache),
	)
	return embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, cfg.Dimensions, logger), nil
}

func buildTagger(cfg config.TaggingConfig) (domain.Tagger, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	t, err := langchain.NewTagger(langchain.Config{
		Backend: cfg.Backend,
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}
