package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recdex/internal/config"
	"github.com/kailas-cloud/recdex/internal/db"
	dbPostgres "github.com/kailas-cloud/recdex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/recdex/internal/db/redis"
	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/domain/item"
	"github.com/kailas-cloud/recdex/internal/metrics"
	"github.com/kailas-cloud/recdex/internal/mf"
	"github.com/kailas-cloud/recdex/internal/repository/metacache"
	"github.com/kailas-cloud/recdex/internal/repository/modelstore"
	ratingrepo "github.com/kailas-cloud/recdex/internal/repository/rating"
	"github.com/kailas-cloud/recdex/internal/usecase/engine"
	"github.com/kailas-cloud/recdex/internal/usecase/evaluation"
	healthuc "github.com/kailas-cloud/recdex/internal/usecase/health"
	"github.com/kailas-cloud/recdex/internal/usecase/training"
)

// itemCatalog resolves and upserts item metadata.
type itemCatalog interface {
	LookupItem(ctx context.Context, itemID int64) (item.Metadata, error)
	PutItem(ctx context.Context, m item.Metadata) error
}

// app is the composition root shared by serve, train and evaluate.
type app struct {
	backend db.Backend
	items   itemCatalog
	engine  *engine.Service
	health  *healthuc.Service
}

// appOptions lets offline commands override serving behavior.
type appOptions struct {
	forceSync bool
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, opts appOptions) (*app, error) {
	metrics.RegisterEngineMetrics()

	backend, repo, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	store := ratingrepo.NewBreaker(repo, ratingrepo.BreakerConfig{
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         time.Duration(cfg.Breaker.IntervalSec) * time.Second,
		Timeout:          time.Duration(cfg.Breaker.TimeoutSec) * time.Second,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}, logger)

	var items itemCatalog = store
	if cfg.Cache.MetadataSize >= 0 {
		cached, err := metacache.New(store, cfg.Cache.MetadataSize, metrics.MetadataCacheTotal)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("metadata cache: %w", err)
		}
		items = cached.WithWriter(store)
	}

	// Pass a nil interface, not a typed nil pointer, when persistence is off.
	var models training.ModelStore
	if cfg.Recommender.ModelPath != "" {
		ms, err := modelstore.New(cfg.Recommender.ModelPath, cfg.Recommender.ModelKeep)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("model store: %w", err)
		}
		models = ms
	}

	rc := cfg.Recommender
	trainer := training.New(models, logger).
		WithTimeout(rc.TrainTimeout()).
		WithOptions(mf.Options{Workers: rc.Workers, Seed: rc.Seed})

	evaluator := evaluation.New(trainer, logger).
		WithTestFraction(cfg.Evaluation.TestFraction).
		WithNegativesPerPositive(cfg.Evaluation.NegativesPerPositive).
		WithSeed(cfg.Evaluation.Seed)

	eng := engine.New(store, items, trainer, evaluator, engine.Config{
		Hyperparams: domain.Hyperparams{
			Rank:           rc.Rank,
			Iterations:     rc.Iterations,
			Regularization: rc.Regularization,
		},
		UpdateBatchSize:  rc.UpdateBatchSize,
		DefaultTopN:      rc.DefaultTopN,
		AsyncRetrain:     rc.Async() && !opts.forceSync,
		RetrainQueueSize: rc.RetrainQueueSize,
		LoadModelOnStart: rc.LoadModelOnStart,
		IncludeRated:     rc.IncludeRated,
	}, logger)

	return &app{
		backend: backend,
		items:   items,
		engine:  eng,
		health:  healthuc.New(backend, eng),
	}, nil
}

func (a *app) Close() { a.backend.Close() }

// openStore connects the configured driver and returns its rating adapter.
func openStore(
	ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger,
) (db.Backend, ratingrepo.Store, error) {
	readiness := time.Duration(cfg.ReadinessTimeout) * time.Second

	switch cfg.Driver {
	case config.DriverPostgres:
		pg, err := dbPostgres.Connect(dbPostgres.Config{DSN: cfg.DSN, MaxConns: cfg.MaxConns}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create postgres store: %w", err)
		}
		if err := pg.WaitForReady(ctx, readiness); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("database not ready: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("Connected to database", zap.String("driver", cfg.Driver))
		return pg, ratingrepo.NewSQL(pg), nil

	case config.DriverRedis, config.DriverValkey:
		rs, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
		if err := rs.WaitForReady(ctx, readiness); err != nil {
			rs.Close()
			return nil, nil, fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database",
			zap.String("driver", cfg.Driver),
			zap.Strings("addrs", cfg.Addrs),
		)
		return rs, ratingrepo.NewKV(rs, logger), nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
