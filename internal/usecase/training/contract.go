package training

import (
	"context"

	"github.com/kailas-cloud/recdex/internal/mf"
	"github.com/kailas-cloud/recdex/internal/repository/modelstore"
)

// ModelStore is the consumer interface for model persistence (ISP).
type ModelStore interface {
	Save(ctx context.Context, m *mf.Model, meta modelstore.Metadata) (modelstore.Metadata, error)
	Load(ctx context.Context) (*mf.Model, modelstore.Metadata, error)
}
