package chi

import (
	"context"

	dombatch "github.com/kailas-cloud/recdex/internal/domain/batch"
	domeval "github.com/kailas-cloud/recdex/internal/domain/evaluation"
	"github.com/kailas-cloud/recdex/internal/domain/item"
	"github.com/kailas-cloud/recdex/internal/domain/recommendation"
	"github.com/kailas-cloud/recdex/internal/usecase/engine"
	healthuc "github.com/kailas-cloud/recdex/internal/usecase/health"
)

// Recommender is the consumer interface for the recommendation engine (ISP).
type Recommender interface {
	PredictTopN(ctx context.Context, userID int64, n int) ([]recommendation.Recommendation, error)
	IngestRating(ctx context.Context, userID, itemID int64, score float64) (engine.IngestResult, error)
	IngestBatch(ctx context.Context, inputs []engine.RatingInput) ([]dombatch.Result, engine.IngestResult, error)
	Evaluate(ctx context.Context) (domeval.Report, error)
	Retrain(ctx context.Context) error
	Status() engine.Status
}

// ItemWriter persists item metadata.
type ItemWriter interface {
	PutItem(ctx context.Context, m item.Metadata) error
}

// HealthChecker is the consumer interface for the health use case.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
