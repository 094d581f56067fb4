package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/domain/recommendation"
	"github.com/kailas-cloud/recdex/internal/metrics"
)

// PredictTopN returns up to n recommendations for the user, best first
// (ties by ascending item id). n <= 0 means the configured default.
// No model or an unknown user yields an empty list without error. Items
// without metadata are dropped; any other lookup failure is returned.
func (s *Service) PredictTopN(ctx context.Context, userID int64, n int) ([]recommendation.Recommendation, error) {
	if n <= 0 {
		n = s.cfg.DefaultTopN
	}
	out := []recommendation.Recommendation{}

	cur := s.snap.Load()
	if cur == nil || cur.model == nil || !cur.model.KnowsUser(userID) {
		metrics.PredictionsTotal.WithLabelValues("empty").Inc()
		return out, nil
	}

	for _, scored := range cur.model.TopN(userID, n, s.cfg.IncludeRated) {
		meta, err := s.items.LookupItem(ctx, scored.ItemID)
		if err != nil {
			if errors.Is(err, domain.ErrItemNotFound) {
				metrics.LookupMissTotal.Inc()
				s.logger.Warn("Dropping prediction without metadata",
					zap.Int64("user_id", userID),
					zap.Int64("item_id", scored.ItemID),
					zap.NamedError("cause", domain.ErrLookupMiss),
				)
				continue
			}
			metrics.PredictionsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("lookup item %d: %w", scored.ItemID, err)
		}
		out = append(out, recommendation.Recommendation{
			ItemID:     scored.ItemID,
			ExternalID: meta.ExternalID(),
			Score:      scored.Score,
			Title:      meta.Title(),
		})
	}

	result := "ok"
	if len(out) == 0 {
		result = "empty"
	}
	metrics.PredictionsTotal.WithLabelValues(result).Inc()
	return out, nil
}
