// Package engine is the recommendation engine: it owns the serving snapshot
// (model plus the dataset it was trained on), ingests ratings under a batched
// retrain policy, serves top-N predictions and runs offline evaluation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/domain/dataset"
	domeval "github.com/kailas-cloud/recdex/internal/domain/evaluation"
	"github.com/kailas-cloud/recdex/internal/metrics"
)

// Defaults applied by New for zero config values.
const (
	DefaultTopN             = 10
	DefaultUpdateBatchSize  = 100
	DefaultRetrainQueueSize = 1
)

// Config holds engine behavior settings.
type Config struct {
	Hyperparams      domain.Hyperparams
	UpdateBatchSize  int
	DefaultTopN      int
	AsyncRetrain     bool
	RetrainQueueSize int
	LoadModelOnStart bool
	// IncludeRated lets items the user already rated back into PredictTopN.
	IncludeRated bool
}

// snapshot is the unit of atomic replacement: readers never see a model
// paired with a dataset it was not trained on.
type snapshot struct {
	model     domain.Model
	data      *dataset.Dataset
	version   int
	trainedAt time.Time
}

// Service is the recommendation engine.
type Service struct {
	store     RatingStore
	items     ItemLookup
	trainer   Trainer
	evaluator Evaluator
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	snap atomic.Pointer[snapshot]

	counterMu sync.Mutex
	counter   int

	retrainMu  sync.Mutex
	retrainCh  chan struct{}
	inProgress atomic.Bool

	statsMu  sync.Mutex
	stats    retrainStats
	lastEval *domeval.Report
}

type retrainStats struct {
	retrains  int
	failures  int
	lastError string
}

// New creates an engine. items resolves metadata for predictions: the store
// itself or a cache in front of it.
func New(store RatingStore, items ItemLookup, trainer Trainer, evaluator Evaluator, cfg Config, logger *zap.Logger) *Service {
	if cfg.UpdateBatchSize <= 0 {
		cfg.UpdateBatchSize = DefaultUpdateBatchSize
	}
	if cfg.DefaultTopN <= 0 {
		cfg.DefaultTopN = DefaultTopN
	}
	if cfg.RetrainQueueSize <= 0 {
		cfg.RetrainQueueSize = DefaultRetrainQueueSize
	}
	return &Service{
		store:     store,
		items:     items,
		trainer:   trainer,
		evaluator: evaluator,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "engine")),
		now:       time.Now,
		retrainCh: make(chan struct{}, cfg.RetrainQueueSize),
	}
}

// Initialize loads the dataset and trains (or reloads) the first model.
// It fails with domain.ErrStoreUnavailable when ratings cannot be loaded and
// with a domain.ErrTraining error when the dataset is empty or training fails.
func (s *Service) Initialize(ctx context.Context) error {
	ratings, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	ds := dataset.New(ratings)

	s.setCounter(0)

	// A persisted model must not serve next to a dataset it was not trained on.
	if ds.Empty() {
		return domain.NewTrainingError("validate", domain.ErrEmptyDataset)
	}

	if s.cfg.LoadModelOnStart {
		model, version, err := s.trainer.Load(ctx)
		switch {
		case err == nil:
			s.publish(&snapshot{model: model, data: ds, version: version, trainedAt: s.now()})
			s.logger.Info("Engine initialized from persisted model",
				zap.Int("version", version),
				zap.Int("ratings", ds.Len()),
			)
			return nil
		case errors.Is(err, domain.ErrModelNotFound):
			s.logger.Info("No persisted model, training from scratch")
		default:
			s.logger.Warn("Persisted model unusable, training from scratch", zap.Error(err))
		}
	}

	start := s.now()
	next, err := s.build(ctx, ds)
	if err != nil {
		return err
	}
	s.publish(next)
	s.logger.Info("Engine initialized",
		zap.Int("version", next.version),
		zap.Int("ratings", ds.Len()),
		zap.Int("users", len(ds.UserIDs())),
		zap.Int("items", len(ds.ItemIDs())),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return nil
}

// build trains and persists a model for ds. A failed save is logged, not fatal:
// the model still serves from memory.
func (s *Service) build(ctx context.Context, ds *dataset.Dataset) (*snapshot, error) {
	model, err := s.trainer.Train(ctx, ds, s.cfg.Hyperparams)
	if err != nil {
		return nil, err //nolint:wrapcheck // trainer returns domain.TrainingError
	}

	version := 1
	if cur := s.snap.Load(); cur != nil {
		version = cur.version + 1
	}
	saved, err := s.trainer.Save(ctx, model, ds)
	if err != nil {
		s.logger.Warn("Failed to persist model", zap.Error(err))
	} else if saved > 0 {
		version = saved
	}
	return &snapshot{model: model, data: ds, version: version, trainedAt: s.now()}, nil
}

func (s *Service) publish(next *snapshot) {
	s.snap.Store(next)
	metrics.ModelVersion.Set(float64(next.version))
}

// Ready reports whether a model is serving.
func (s *Service) Ready() bool {
	cur := s.snap.Load()
	return cur != nil && cur.model != nil
}

// Evaluate measures AUC on a disposable model trained on a split of the current dataset.
// The serving snapshot is not touched.
func (s *Service) Evaluate(ctx context.Context) (domeval.Report, error) {
	cur := s.snap.Load()
	if cur == nil {
		return domeval.Report{}, domain.ErrModelNotReady
	}
	report, err := s.evaluator.Evaluate(ctx, cur.data, s.cfg.Hyperparams)
	if err != nil {
		return domeval.Report{}, fmt.Errorf("evaluate: %w", err)
	}
	if report.Defined {
		metrics.EvaluationAUC.Set(report.AUC)
	}

	s.statsMu.Lock()
	s.lastEval = &report
	s.statsMu.Unlock()
	return report, nil
}

func (s *Service) setCounter(v int) {
	s.counterMu.Lock()
	s.counter = v
	s.counterMu.Unlock()
	metrics.BatchCounter.Set(float64(v))
}
