package engine

import (
	"context"

	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/domain/dataset"
	domeval "github.com/kailas-cloud/recdex/internal/domain/evaluation"
	"github.com/kailas-cloud/recdex/internal/domain/item"
	"github.com/kailas-cloud/recdex/internal/domain/rating"
)

// RatingStore loads and appends ratings.
type RatingStore interface {
	LoadAll(ctx context.Context) ([]rating.Rating, error)
	Append(ctx context.Context, r rating.Rating) error
}

// BulkAppender stores many ratings in one round-trip.
type BulkAppender interface {
	AppendMany(ctx context.Context, ratings []rating.Rating) error
}

// ItemLookup resolves item metadata. Missing items yield domain.ErrItemNotFound.
type ItemLookup interface {
	LookupItem(ctx context.Context, itemID int64) (item.Metadata, error)
}

// Trainer trains, persists and reloads models.
type Trainer interface {
	Train(ctx context.Context, ds *dataset.Dataset, hp domain.Hyperparams) (domain.Model, error)
	Save(ctx context.Context, m domain.Model, ds *dataset.Dataset) (int, error)
	Load(ctx context.Context) (domain.Model, int, error)
}

// Evaluator scores a dataset offline.
type Evaluator interface {
	Evaluate(ctx context.Context, ds *dataset.Dataset, hp domain.Hyperparams) (domeval.Report, error)
}
