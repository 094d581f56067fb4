package recdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recdex/internal/db"
	dbPostgres "github.com/kailas-cloud/recdex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/recdex/internal/db/redis"
	"github.com/kailas-cloud/recdex/internal/domain"
	dombatch "github.com/kailas-cloud/recdex/internal/domain/batch"
	domeval "github.com/kailas-cloud/recdex/internal/domain/evaluation"
	"github.com/kailas-cloud/recdex/internal/domain/item"
	"github.com/kailas-cloud/recdex/internal/domain/recommendation"
	"github.com/kailas-cloud/recdex/internal/repository/metacache"
	"github.com/kailas-cloud/recdex/internal/repository/modelstore"
	ratingrepo "github.com/kailas-cloud/recdex/internal/repository/rating"
	"github.com/kailas-cloud/recdex/internal/usecase/engine"
	"github.com/kailas-cloud/recdex/internal/usecase/evaluation"
	healthuc "github.com/kailas-cloud/recdex/internal/usecase/health"
	"github.com/kailas-cloud/recdex/internal/usecase/training"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, swapped for mocks in tests.
type engineUseCase interface {
	PredictTopN(ctx context.Context, userID int64, n int) ([]recommendation.Recommendation, error)
	IngestRating(ctx context.Context, userID, itemID int64, score float64) (engine.IngestResult, error)
	IngestBatch(ctx context.Context, inputs []engine.RatingInput) ([]dombatch.Result, engine.IngestResult, error)
	Evaluate(ctx context.Context) (domeval.Report, error)
	Retrain(ctx context.Context) error
	Status() engine.Status
}

type catalogUseCase interface {
	PutItem(ctx context.Context, m item.Metadata) error
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the recdex SDK entry point.
type Client struct {
	backend   db.Backend
	engine    engineUseCase
	catalog   catalogUseCase
	healthSvc healthUseCase
	obs       *observer

	stopWorker context.CancelFunc
	workerDone chan struct{}
}

// New connects to the rating store and trains the initial model.
// The provided context bounds the readiness check and the first training run.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	hp := hyperparams(cfg)
	if err := hp.Validate(); err != nil {
		return nil, fmt.Errorf("recdex: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	backend, repo, err := createStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := wireClient(ctx, backend, repo, cfg, obs)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return c, nil
}

func hyperparams(cfg *clientConfig) domain.Hyperparams {
	hp := domain.DefaultHyperparams()
	if cfg.rank != 0 || cfg.iterations != 0 || cfg.regularization != 0 {
		hp = domain.Hyperparams{
			Rank:           cfg.rank,
			Iterations:     cfg.iterations,
			Regularization: cfg.regularization,
		}
	}
	return hp
}

func createStore(ctx context.Context, cfg *clientConfig) (db.Backend, ratingrepo.Store, error) {
	switch cfg.driver {
	case "postgres":
		if cfg.dsn == "" {
			return nil, nil, errors.New("recdex: postgres DSN required")
		}
		s, err := dbPostgres.Connect(dbPostgres.Config{DSN: cfg.dsn}, zap.NewNop())
		if err != nil {
			return nil, nil, fmt.Errorf("recdex: create postgres store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("recdex: database not ready: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("recdex: migrate: %w", err)
		}
		return s, ratingrepo.NewSQL(s), nil
	case "valkey", "redis":
		if len(cfg.addrs) == 0 || cfg.addrs[0] == "" {
			return nil, nil, fmt.Errorf("recdex: %s address required", cfg.driver)
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("recdex: create %s store: %w", cfg.driver, err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("recdex: database not ready: %w", err)
		}
		return s, ratingrepo.NewKV(s, zap.NewNop()), nil
	case "":
		return nil, nil, errors.New("recdex: rating store required (use WithPostgres, WithValkey or WithRedis)")
	default:
		return nil, nil, fmt.Errorf("recdex: unknown driver %q", cfg.driver)
	}
}

func wireClient(
	ctx context.Context, backend db.Backend, repo ratingrepo.Store, cfg *clientConfig, obs *observer,
) (*Client, error) {
	log := zap.NewNop()

	store := ratingrepo.NewBreaker(repo, ratingrepo.BreakerConfig{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
	}, log)

	items, err := metacache.New(store, metacache.DefaultSize, nil)
	if err != nil {
		return nil, fmt.Errorf("recdex: metadata cache: %w", err)
	}
	items.WithWriter(store)

	// A nil interface disables persistence; a typed nil pointer would not.
	var models training.ModelStore
	if cfg.modelPath != "" {
		ms, err := modelstore.New(cfg.modelPath, cfg.modelKeep)
		if err != nil {
			return nil, fmt.Errorf("recdex: model store: %w", err)
		}
		models = ms
	}

	trainer := training.New(models, log).WithTimeout(cfg.trainTimeout)
	evaluator := evaluation.New(trainer, log)

	eng := engine.New(store, items, trainer, evaluator, engine.Config{
		Hyperparams:      hyperparams(cfg),
		UpdateBatchSize:  cfg.updateBatchSize,
		AsyncRetrain:     cfg.asyncRetrain,
		LoadModelOnStart: cfg.modelPath != "",
		IncludeRated:     cfg.includeRated,
	}, log)

	if err := eng.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("recdex: initialize: %w", err)
	}

	c := &Client{
		backend:   backend,
		engine:    eng,
		catalog:   items,
		healthSvc: healthuc.New(backend, eng),
		obs:       obs,
	}
	if cfg.asyncRetrain {
		c.startWorker(eng)
	}
	return c, nil
}

// worker runs queued retrains until its context is cancelled.
type worker interface {
	Serve(ctx context.Context) error
}

func (c *Client) startWorker(w worker) {
	ctx, cancel := context.WithCancel(context.Background())
	c.stopWorker = cancel
	c.workerDone = make(chan struct{})
	go func() {
		defer close(c.workerDone)
		_ = w.Serve(ctx)
	}()
}

// Close stops the retrain worker and releases the store connection.
func (c *Client) Close() {
	if c.stopWorker != nil {
		c.stopWorker()
		<-c.workerDone
	}
	if c.backend != nil {
		c.backend.Close()
	}
}

// Ping checks rating store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe(opPing, start, outcomeOK, err) }()

	if err = c.backend.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
