package rating

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/domain/item"
	domrating "github.com/kailas-cloud/recdex/internal/domain/rating"
	"github.com/kailas-cloud/recdex/internal/metrics"
)

// Store is the adapter surface shared by both backends and the breaker.
type Store interface {
	LoadAll(ctx context.Context) ([]domrating.Rating, error)
	Append(ctx context.Context, r domrating.Rating) error
	AppendMany(ctx context.Context, ratings []domrating.Rating) error
	LookupItem(ctx context.Context, itemID int64) (item.Metadata, error)
	PutItem(ctx context.Context, m item.Metadata) error
}

var (
	_ Store = (*KVRepo)(nil)
	_ Store = (*SQLRepo)(nil)
	_ Store = (*Breaker)(nil)
)

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// Breaker fails fast with domain.ErrStoreUnavailable once the backend keeps failing.
// Only ErrStoreUnavailable counts as a failure; not-found lookups do not trip it.
type Breaker struct {
	inner Store
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreaker wraps inner with a circuit breaker.
func NewBreaker(inner Store, cfg BreakerConfig, logger *zap.Logger) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        "rating-store",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, domain.ErrStoreUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.StoreBreakerState.Set(float64(to))
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Breaker{inner: inner, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

// State reports the breaker state for status endpoints.
func (b *Breaker) State() string { return b.cb.State().String() }

func execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		return zero, err
	}
	return res.(T), nil //nolint:forcetypeassert // fn returns T
}

// LoadAll delegates through the breaker.
func (b *Breaker) LoadAll(ctx context.Context) ([]domrating.Rating, error) {
	return execute(b, func() ([]domrating.Rating, error) { return b.inner.LoadAll(ctx) })
}

// Append delegates through the breaker.
func (b *Breaker) Append(ctx context.Context, r domrating.Rating) error {
	_, err := execute(b, func() (struct{}, error) { return struct{}{}, b.inner.Append(ctx, r) })
	return err
}

// AppendMany delegates through the breaker.
func (b *Breaker) AppendMany(ctx context.Context, ratings []domrating.Rating) error {
	_, err := execute(b, func() (struct{}, error) { return struct{}{}, b.inner.AppendMany(ctx, ratings) })
	return err
}

// LookupItem delegates through the breaker.
func (b *Breaker) LookupItem(ctx context.Context, itemID int64) (item.Metadata, error) {
	return execute(b, func() (item.Metadata, error) { return b.inner.LookupItem(ctx, itemID) })
}

// PutItem delegates through the breaker.
func (b *Breaker) PutItem(ctx context.Context, m item.Metadata) error {
	_, err := execute(b, func() (struct{}, error) { return struct{}{}, b.inner.PutItem(ctx, m) })
	return err
}
