package recdex

import (
	"context"
	"fmt"
	"time"

	dombatch "github.com/kailas-cloud/recdex/internal/domain/batch"
	"github.com/kailas-cloud/recdex/internal/domain/item"
	"github.com/kailas-cloud/recdex/internal/usecase/engine"
)

// Recommend returns up to n unrated items for userID, best first.
// Unknown users get an empty slice. n <= 0 uses the engine default.
func (c *Client) Recommend(ctx context.Context, userID int64, n int) (_ []Recommendation, err error) {
	start := time.Now()
	outcome := outcomeOK
	defer func() { c.obs.observe(opRecommend, start, outcome, err) }()

	recs, err := c.engine.PredictTopN(ctx, userID, n)
	if err != nil {
		return nil, fmt.Errorf("recommend user %d: %w", userID, err)
	}
	out := make([]Recommendation, len(recs))
	for i, r := range recs {
		out[i] = Recommendation{
			ItemID:     r.ItemID,
			ExternalID: r.ExternalID,
			Title:      r.Title,
			Score:      r.Score,
		}
	}
	outcome = c.obs.recommendOutcome(len(out))
	return out, nil
}

// Rate stores one rating. Reaching the update batch size retrains the model.
func (c *Client) Rate(ctx context.Context, userID, itemID int64, score float64) (_ RateResult, err error) {
	start := time.Now()
	outcome := outcomeOK
	defer func() { c.obs.observe(opRate, start, outcome, err) }()

	res, err := c.engine.IngestRating(ctx, userID, itemID, score)
	if err != nil {
		return RateResult{}, fmt.Errorf("rate: %w", err)
	}
	out := RateResult{RetrainTriggered: res.RetrainTriggered, BatchCounter: res.BatchCounter}
	outcome = rateOutcome(out, 0)
	return out, nil
}

// RateBatch stores many ratings with per-rating outcomes.
// It fails as a whole only when the batch exceeds the engine limit.
func (c *Client) RateBatch(ctx context.Context, ratings []Rating) (_ []RatingResult, _ RateResult, err error) {
	start := time.Now()
	outcome := outcomeOK
	defer func() { c.obs.observe(opRateBatch, start, outcome, err) }()

	inputs := make([]engine.RatingInput, len(ratings))
	for i, r := range ratings {
		inputs[i] = engine.RatingInput{UserID: r.UserID, ItemID: r.ItemID, Score: r.Score}
	}
	results, res, err := c.engine.IngestBatch(ctx, inputs)
	if err != nil {
		return nil, RateResult{}, fmt.Errorf("rate batch: %w", err)
	}

	out := make([]RatingResult, len(results))
	rejected := 0
	for i, r := range results {
		out[i] = RatingResult{
			Index: r.Index(),
			Key:   r.Key(),
			OK:    r.Status() == dombatch.StatusAccepted,
			Err:   r.Err(),
		}
		if !out[i].OK {
			rejected++
		}
	}
	rr := RateResult{RetrainTriggered: res.RetrainTriggered, BatchCounter: res.BatchCounter}
	outcome = rateOutcome(rr, rejected)
	return out, rr, nil
}

// Evaluate measures hold-out AUC without touching the serving model.
func (c *Client) Evaluate(ctx context.Context) (_ Evaluation, err error) {
	start := time.Now()
	outcome := outcomeOK
	defer func() { c.obs.observe(opEvaluate, start, outcome, err) }()

	r, err := c.engine.Evaluate(ctx)
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate: %w", err)
	}
	if !r.Defined {
		outcome = outcomeUndefined
	}
	return Evaluation{
		AUC:       r.AUC,
		Defined:   r.Defined,
		TrainSize: r.TrainSize,
		TestSize:  r.TestSize,
		Positives: r.Positives,
		Negatives: r.Negatives,
		Duration:  r.Duration,
	}, nil
}

// Retrain reloads all ratings and swaps in a fresh model.
// A concurrent retrain yields ErrRetrainInProgress.
func (c *Client) Retrain(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe(opRetrain, start, outcomeOK, err) }()

	if err = c.engine.Retrain(ctx); err != nil {
		return fmt.Errorf("retrain: %w", err)
	}
	return nil
}

// Status reports the serving model and retrain counters.
func (c *Client) Status() Status {
	st := c.engine.Status()
	return Status{
		Ready:             st.Ready,
		ModelVersion:      st.ModelVersion,
		TrainedAt:         st.TrainedAt,
		BatchCounter:      st.BatchCounter,
		UpdateBatchSize:   st.UpdateBatchSize,
		Ratings:           st.Ratings,
		Users:             st.Users,
		Items:             st.Items,
		Retrains:          st.Retrains,
		RetrainFailures:   st.RetrainFailures,
		LastError:         st.LastError,
		RetrainInProgress: st.RetrainInProgress,
	}
}

// PutItem upserts catalog metadata used to enrich recommendations.
func (c *Client) PutItem(ctx context.Context, it Item) (err error) {
	start := time.Now()
	defer func() { c.obs.observe(opPutItem, start, outcomeOK, err) }()

	if err = c.catalog.PutItem(ctx, item.New(it.ID, it.Title, it.ExternalID, it.Genres)); err != nil {
		return fmt.Errorf("put item %d: %w", it.ID, err)
	}
	return nil
}
