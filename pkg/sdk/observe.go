package recdex

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/recdex/internal/domain"
)

// Operation names used as the "operation" label.
const (
	opRecommend = "recommend"
	opRate      = "rate"
	opRateBatch = "rate_batch"
	opEvaluate  = "evaluate"
	opRetrain   = "retrain"
	opPutItem   = "put_item"
	opPing      = "ping"
)

// Outcome labels. Successful calls report ok or a more specific success
// outcome; failed calls are classified by the engine sentinel they wrap.
const (
	outcomeOK                = "ok"
	outcomeEmpty             = "empty"
	outcomePartial           = "partial"
	outcomeRetrainTriggered  = "retrain_triggered"
	outcomeUndefined         = "auc_undefined"
	outcomeInvalid           = "invalid"
	outcomeNotReady          = "not_ready"
	outcomeRetrainInProgress = "retrain_in_progress"
	outcomeStoreUnavailable  = "store_unavailable"
	outcomeTrainingFailed    = "training_failed"
	outcomeError             = "error"
)

// errorOutcome maps an engine error to its outcome label.
func errorOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRating):
		return outcomeInvalid
	case errors.Is(err, domain.ErrModelNotReady):
		return outcomeNotReady
	case errors.Is(err, domain.ErrRetrainInProgress):
		return outcomeRetrainInProgress
	case errors.Is(err, domain.ErrStoreUnavailable):
		return outcomeStoreUnavailable
	case errors.Is(err, domain.ErrTraining):
		return outcomeTrainingFailed
	default:
		return outcomeError
	}
}

// rateOutcome labels a successful ingestion.
func rateOutcome(res RateResult, rejected int) string {
	switch {
	case res.RetrainTriggered:
		return outcomeRetrainTriggered
	case rejected > 0:
		return outcomePartial
	default:
		return outcomeOK
	}
}

// sdkMetrics holds the SDK collectors.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	served     prometheus.Histogram
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recdex",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK operations by type and engine outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "recdex",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		served: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "recdex",
			Subsystem: "sdk",
			Name:      "recommendations_served",
			Help:      "Recommendations returned per Recommend call after catalog lookup.",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.served); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse lets several clients share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("recdex: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("recdex: metric already registered with incompatible type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer logs and counts SDK operations. A nil observer is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

// observe records one call. success is the outcome reported when err is nil.
func (o *observer) observe(op string, start time.Time, success string, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	outcome := success
	if err != nil {
		outcome = errorOutcome(err)
	}

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, outcome).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}
	switch {
	case err == nil:
		o.logger.Debug("operation completed", "op", op, "outcome", outcome, "duration", dur)
	case outcome == outcomeInvalid || outcome == outcomeRetrainInProgress:
		// Caller mistakes and contention are expected traffic.
		o.logger.Info("operation rejected", "op", op, "outcome", outcome, "error", err)
	default:
		o.logger.Warn("operation failed", "op", op, "outcome", outcome, "duration", dur, "error", err)
	}
}

// recommendOutcome records the served count and labels empty results.
func (o *observer) recommendOutcome(served int) string {
	if o != nil && o.metrics != nil {
		o.metrics.served.Observe(float64(served))
	}
	if served == 0 {
		return outcomeEmpty
	}
	return outcomeOK
}
