// Package training binds the in-process ALS trainer to the engine: it applies
// the training timeout, classifies failures as training errors and persists
// trained models.
package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/domain/dataset"
	"github.com/kailas-cloud/recdex/internal/metrics"
	"github.com/kailas-cloud/recdex/internal/mf"
	"github.com/kailas-cloud/recdex/internal/repository/modelstore"
)

// Binding trains, saves and reloads factorization models.
type Binding struct {
	store   ModelStore
	timeout time.Duration
	opts    mf.Options
	logger  *zap.Logger
}

// New creates a binding. A nil store disables persistence.
func New(store ModelStore, logger *zap.Logger) *Binding {
	return &Binding{
		store:  store,
		logger: logger.With(zap.String("component", "trainer")),
	}
}

// WithTimeout bounds every Train call; zero means no bound beyond the caller's context.
func (b *Binding) WithTimeout(d time.Duration) *Binding {
	b.timeout = d
	return b
}

// WithOptions sets solver options (workers, seed).
func (b *Binding) WithOptions(opts mf.Options) *Binding {
	b.opts = opts
	return b
}

// Train fits a model on every rating of ds.
// All failures are *domain.TrainingError values (errors.Is(err, domain.ErrTraining)).
func (b *Binding) Train(ctx context.Context, ds *dataset.Dataset, hp domain.Hyperparams) (domain.Model, error) {
	if ds.Empty() {
		return nil, domain.NewTrainingError("validate", domain.ErrEmptyDataset)
	}
	if err := hp.Validate(); err != nil {
		return nil, domain.NewTrainingError("validate", err)
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	start := time.Now()
	m, err := mf.Train(ctx, ds, hp, b.opts)
	duration := time.Since(start)
	if err != nil {
		phase := "fit"
		if errors.Is(err, context.DeadlineExceeded) {
			phase = "timeout"
		}
		b.logger.Warn("Training failed",
			zap.String("run_id", runID),
			zap.String("phase", phase),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, domain.NewTrainingError(phase, err)
	}

	rmse := mf.RMSE(m, ds)
	metrics.TrainRMSE.Set(rmse)
	b.logger.Info("Model trained",
		zap.String("run_id", runID),
		zap.Int("ratings", ds.Len()),
		zap.Int("users", m.Users()),
		zap.Int("items", m.Items()),
		zap.Int("rank", hp.Rank),
		zap.Int("iterations", hp.Iterations),
		zap.Float64("regularization", hp.Regularization),
		zap.Float64("train_rmse", rmse),
		zap.Duration("duration", duration),
	)
	return m, nil
}

// Save persists model and returns the stored version (0 when persistence is disabled).
func (b *Binding) Save(ctx context.Context, model domain.Model, ds *dataset.Dataset) (int, error) {
	if b.store == nil {
		return 0, nil
	}
	m, ok := model.(*mf.Model)
	if !ok {
		return 0, fmt.Errorf("save model: unsupported model type %T", model)
	}
	meta, err := b.store.Save(ctx, m, modelstore.Metadata{
		RunID:     uuid.NewString(),
		TrainedAt: time.Now().UTC(),
		Ratings:   ds.Len(),
		Users:     m.Users(),
		Items:     m.Items(),
	})
	if err != nil {
		return 0, fmt.Errorf("save model: %w", err)
	}
	b.logger.Info("Model saved",
		zap.Int("version", meta.Version),
		zap.String("checksum", meta.Checksum),
		zap.Int64("size_bytes", meta.SizeBytes),
	)
	return meta.Version, nil
}

// Load returns the latest persisted model and its version.
// It returns domain.ErrModelNotFound when nothing has been persisted.
func (b *Binding) Load(ctx context.Context) (domain.Model, int, error) {
	if b.store == nil {
		return nil, 0, domain.ErrModelNotFound
	}
	m, meta, err := b.store.Load(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load model: %w", err)
	}
	b.logger.Info("Model loaded",
		zap.Int("version", meta.Version),
		zap.Time("trained_at", meta.TrainedAt),
		zap.Int("users", meta.Users),
		zap.Int("items", meta.Items),
	)
	return m, meta.Version, nil
}
