// Package evaluation measures offline model quality: it trains a disposable
// model on a random split of the dataset and reports the AUC of held-out
// ratings against sampled unobserved pairs.
package evaluation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/domain/dataset"
	domeval "github.com/kailas-cloud/recdex/internal/domain/evaluation"
)

// Defaults for the split and negative sampling.
const (
	DefaultTestFraction         = 0.2
	DefaultNegativesPerPositive = 1
	maxSampleAttemptsFactor     = 20
)

// Trainer is the consumer interface for model training (ISP).
type Trainer interface {
	Train(ctx context.Context, ds *dataset.Dataset, hp domain.Hyperparams) (domain.Model, error)
}

// Evaluator computes AUC on a disposable model. It never persists or publishes that model.
type Evaluator struct {
	trainer      Trainer
	testFraction float64
	negPerPos    int
	seed         int64
	logger       *zap.Logger
}

// New creates an evaluator with an 80/20 split and one negative per positive.
func New(trainer Trainer, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		trainer:      trainer,
		testFraction: DefaultTestFraction,
		negPerPos:    DefaultNegativesPerPositive,
		logger:       logger.With(zap.String("component", "evaluator")),
	}
}

// WithTestFraction sets the held-out share; values outside (0, 1) are ignored.
func (e *Evaluator) WithTestFraction(f float64) *Evaluator {
	if f > 0 && f < 1 {
		e.testFraction = f
	}
	return e
}

// WithNegativesPerPositive sets how many unobserved pairs are sampled per held-out rating.
func (e *Evaluator) WithNegativesPerPositive(n int) *Evaluator {
	if n > 0 {
		e.negPerPos = n
	}
	return e
}

// WithSeed makes the split and sampling reproducible. Zero seeds from the clock.
func (e *Evaluator) WithSeed(seed int64) *Evaluator {
	e.seed = seed
	return e
}

// Evaluate splits ds, trains on the train part with hp and scores the held-out part.
// A split with an empty side yields an undefined report, not an error.
func (e *Evaluator) Evaluate(ctx context.Context, ds *dataset.Dataset, hp domain.Hyperparams) (domeval.Report, error) {
	start := time.Now()
	seed := e.seed
	if seed == 0 {
		seed = start.UnixNano()
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // sampling, not security sensitive

	train, test := ds.Split(rng, e.testFraction)
	report := domeval.Report{TrainSize: train.Len(), TestSize: test.Len()}

	if train.Empty() || test.Empty() {
		e.logger.Info("Evaluation undefined: degenerate split",
			zap.Int("train_size", train.Len()),
			zap.Int("test_size", test.Len()),
		)
		return e.finish(report, start), nil
	}

	model, err := e.trainer.Train(ctx, train, hp)
	if err != nil {
		return domeval.Report{}, fmt.Errorf("train evaluation model: %w", err)
	}

	samples := make([]Sample, 0, test.Len()*(1+e.negPerPos))
	for _, r := range test.Ratings() {
		samples = append(samples, Sample{Positive: true, Score: scoreOrZero(model, r.UserID(), r.ItemID())})
	}
	report.Positives = len(samples)

	for _, p := range e.sampleNegatives(rng, ds, report.Positives*e.negPerPos) {
		samples = append(samples, Sample{Score: scoreOrZero(model, p[0], p[1])})
	}
	report.Negatives = len(samples) - report.Positives

	report.AUC, report.Defined = AUC(samples)
	report = e.finish(report, start)

	e.logger.Info("Evaluation finished",
		zap.Bool("defined", report.Defined),
		zap.Float64("auc", report.AUC),
		zap.Int("positives", report.Positives),
		zap.Int("negatives", report.Negatives),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (e *Evaluator) finish(r domeval.Report, start time.Time) domeval.Report {
	r.FinishedAt = time.Now().UTC()
	r.Duration = time.Since(start)
	return r
}

// scoreOrZero scores unknown users or items as 0.
func scoreOrZero(m domain.Model, user, item int64) float64 {
	s, ok := m.Predict(user, item)
	if !ok {
		return 0
	}
	return s
}

// sampleNegatives draws up to want distinct pairs from [0, maxUser] x [0, maxItem]
// that are absent from ds. When the unobserved domain is no larger than want,
// every unobserved pair is returned.
func (e *Evaluator) sampleNegatives(rng *rand.Rand, ds *dataset.Dataset, want int) [][2]int64 {
	maxUser, maxItem := ds.MaxUserID(), ds.MaxItemID()
	size, ok := domainSize(maxUser, maxItem)
	if !ok || want <= 0 || maxUser == math.MaxInt64 || maxItem == math.MaxInt64 {
		return nil
	}
	available := size - uint64(ds.Len())
	if available == 0 {
		return nil
	}

	if available <= uint64(want) {
		out := make([][2]int64, 0, available)
		for idx := uint64(0); idx < size; idx++ {
			u, i := PairFromIndex(idx, maxItem)
			if !ds.Contains(u, i) {
				out = append(out, [2]int64{u, i})
			}
		}
		return out
	}

	seen := make(map[uint64]struct{}, want)
	out := make([][2]int64, 0, want)
	for attempts := 0; len(out) < want && attempts < want*maxSampleAttemptsFactor; attempts++ {
		u := rng.Int63n(maxUser + 1)
		i := rng.Int63n(maxItem + 1)
		if ds.Contains(u, i) {
			continue
		}
		idx, _ := PairIndex(u, i, maxItem)
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, [2]int64{u, i})
	}
	return out
}
