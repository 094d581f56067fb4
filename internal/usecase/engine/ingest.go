package engine

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recdex/internal/domain"
	dombatch "github.com/kailas-cloud/recdex/internal/domain/batch"
	"github.com/kailas-cloud/recdex/internal/domain/rating"
	"github.com/kailas-cloud/recdex/internal/metrics"
)

// MaxBatchSize is the maximum number of ratings per IngestBatch call.
const MaxBatchSize = 1000

// IngestResult reports the batch policy outcome of an accepted ingestion.
type IngestResult struct {
	RetrainTriggered bool
	BatchCounter     int
}

// RatingInput is one raw rating for IngestBatch.
type RatingInput struct {
	UserID int64
	ItemID int64
	Score  float64
}

// IngestRating validates and stores one rating, then advances the batch counter.
// Invalid input fails with domain.ErrInvalidRating and a store failure with
// domain.ErrStoreUnavailable; neither touches the counter. Reaching the batch
// size resets the counter and triggers a retrain (inline or queued). Retrain
// failures are logged and counted, never returned here.
func (s *Service) IngestRating(ctx context.Context, userID, itemID int64, score float64) (IngestResult, error) {
	r, err := rating.New(userID, itemID, score, s.now().Unix())
	if err != nil {
		metrics.RatingsIngestedTotal.WithLabelValues("invalid").Inc()
		return IngestResult{}, err //nolint:wrapcheck // domain validation error
	}
	if err := s.store.Append(ctx, r); err != nil {
		metrics.RatingsIngestedTotal.WithLabelValues("store_error").Inc()
		return IngestResult{}, fmt.Errorf("append rating %s: %w", r.Key(), err)
	}
	metrics.RatingsIngestedTotal.WithLabelValues("accepted").Inc()

	return s.advance(ctx, 1), nil
}

// IngestBatch validates every input, stores the valid ones and advances the
// counter by the number stored. At most one retrain is triggered per call.
// Only an oversized batch fails as a whole.
func (s *Service) IngestBatch(
	ctx context.Context, inputs []RatingInput,
) ([]dombatch.Result, IngestResult, error) {
	if len(inputs) > MaxBatchSize {
		return nil, IngestResult{}, fmt.Errorf(
			"batch size %d exceeds %d: %w", len(inputs), MaxBatchSize, domain.ErrInvalidRating)
	}
	results := make([]dombatch.Result, len(inputs))

	ts := s.now().Unix()
	valid := make([]rating.Rating, 0, len(inputs))
	validIdx := make([]int, 0, len(inputs))
	for i, in := range inputs {
		r, err := rating.New(in.UserID, in.ItemID, in.Score, ts)
		if err != nil {
			metrics.RatingsIngestedTotal.WithLabelValues("invalid").Inc()
			results[i] = dombatch.Rejected(i, inputKey(in), err)
			continue
		}
		valid = append(valid, r)
		validIdx = append(validIdx, i)
	}

	stored := s.appendAll(ctx, valid, validIdx, results)
	if stored == 0 {
		return results, IngestResult{BatchCounter: s.Counter()}, nil
	}
	return results, s.advance(ctx, stored), nil
}

// appendAll stores valid ratings, preferring one bulk round-trip, and fills results.
func (s *Service) appendAll(ctx context.Context, valid []rating.Rating, idx []int, results []dombatch.Result) int {
	if len(valid) == 0 {
		return 0
	}
	if bulk, ok := s.store.(BulkAppender); ok {
		if err := bulk.AppendMany(ctx, valid); err != nil {
			metrics.RatingsIngestedTotal.WithLabelValues("store_error").Add(float64(len(valid)))
			for k, r := range valid {
				results[idx[k]] = dombatch.Rejected(idx[k], r.Key(), fmt.Errorf("append ratings: %w", err))
			}
			return 0
		}
		metrics.RatingsIngestedTotal.WithLabelValues("accepted").Add(float64(len(valid)))
		for k, r := range valid {
			results[idx[k]] = dombatch.Accepted(idx[k], r.Key())
		}
		return len(valid)
	}

	stored := 0
	for k, r := range valid {
		if err := s.store.Append(ctx, r); err != nil {
			metrics.RatingsIngestedTotal.WithLabelValues("store_error").Inc()
			results[idx[k]] = dombatch.Rejected(idx[k], r.Key(), fmt.Errorf("append rating: %w", err))
			continue
		}
		metrics.RatingsIngestedTotal.WithLabelValues("accepted").Inc()
		results[idx[k]] = dombatch.Accepted(idx[k], r.Key())
		stored++
	}
	return stored
}

// advance adds n stored ratings to the counter. Crossing the batch size
// leaves counter mod batch size and triggers one retrain.
func (s *Service) advance(ctx context.Context, n int) IngestResult {
	s.counterMu.Lock()
	s.counter += n
	trigger := s.counter >= s.cfg.UpdateBatchSize
	if trigger {
		s.counter %= s.cfg.UpdateBatchSize
	}
	counter := s.counter
	s.counterMu.Unlock()
	metrics.BatchCounter.Set(float64(counter))

	if trigger {
		s.triggerRetrain(ctx)
	}
	return IngestResult{RetrainTriggered: trigger, BatchCounter: counter}
}

// triggerRetrain runs the retrain inline, or hands it to Serve in async mode.
// A full queue coalesces: the pending retrain will read the whole store anyway.
func (s *Service) triggerRetrain(ctx context.Context) {
	if !s.cfg.AsyncRetrain {
		if err := s.retrain(ctx, "batch"); err != nil {
			s.logger.Error("Batch retrain failed", zap.Error(err))
		}
		return
	}
	select {
	case s.retrainCh <- struct{}{}:
		s.logger.Debug("Retrain queued")
	default:
		s.logger.Debug("Retrain already queued, coalescing")
	}
}

// Counter returns the current batch counter.
func (s *Service) Counter() int {
	s.counterMu.Lock()
	defer s.counterMu.Unlock()
	return s.counter
}

func inputKey(in RatingInput) string {
	return strconv.FormatInt(in.UserID, 10) + ":" + strconv.FormatInt(in.ItemID, 10)
}
