package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/domain/dataset"
	"github.com/kailas-cloud/recdex/internal/metrics"
)

// Retrain rebuilds the model from the full store now. It fails fast with
// domain.ErrRetrainInProgress when another retrain holds the lock.
func (s *Service) Retrain(ctx context.Context) error {
	if !s.retrainMu.TryLock() {
		return domain.ErrRetrainInProgress
	}
	defer s.retrainMu.Unlock()
	return s.doRetrain(ctx, "manual")
}

// retrain waits for any running retrain, then rebuilds.
func (s *Service) retrain(ctx context.Context, reason string) error {
	s.retrainMu.Lock()
	defer s.retrainMu.Unlock()
	return s.doRetrain(ctx, reason)
}

// doRetrain reloads the store, trains and swaps the snapshot. On any failure
// the previous snapshot stays in place. Caller holds retrainMu.
func (s *Service) doRetrain(ctx context.Context, reason string) error {
	s.inProgress.Store(true)
	defer s.inProgress.Store(false)

	start := time.Now()
	log := s.logger.With(zap.String("reason", reason))

	ratings, err := s.store.LoadAll(ctx)
	if err != nil {
		return s.retrainFailed(log, fmt.Errorf("reload ratings: %w", err))
	}
	next, err := s.build(ctx, dataset.New(ratings))
	if err != nil {
		return s.retrainFailed(log, err)
	}
	s.publish(next)

	duration := time.Since(start)
	metrics.RetrainsTotal.WithLabelValues("success").Inc()
	metrics.RetrainDuration.Observe(duration.Seconds())

	s.statsMu.Lock()
	s.stats.retrains++
	s.stats.lastError = ""
	s.statsMu.Unlock()

	log.Info("Model retrained",
		zap.Int("version", next.version),
		zap.Int("ratings", next.data.Len()),
		zap.Duration("duration", duration),
	)
	return nil
}

func (s *Service) retrainFailed(log *zap.Logger, err error) error {
	metrics.RetrainsTotal.WithLabelValues("failure").Inc()

	s.statsMu.Lock()
	s.stats.failures++
	s.stats.lastError = err.Error()
	s.statsMu.Unlock()

	log.Error("Retrain failed, keeping previous model", zap.Error(err))
	return err
}

// Serve runs queued retrains until ctx ends. It implements suture.Service.
func (s *Service) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // shutdown signal
		case <-s.retrainCh:
			// Errors are recorded in stats; the worker keeps running.
			_ = s.retrain(ctx, "batch")
		}
	}
}

func (s *Service) String() string { return "engine-retrain-worker" }
