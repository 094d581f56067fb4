package recdex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/recdex/internal/domain"
	dombatch "github.com/kailas-cloud/recdex/internal/domain/batch"
	domeval "github.com/kailas-cloud/recdex/internal/domain/evaluation"
	"github.com/kailas-cloud/recdex/internal/domain/item"
	"github.com/kailas-cloud/recdex/internal/domain/recommendation"
	"github.com/kailas-cloud/recdex/internal/usecase/engine"
	healthuc "github.com/kailas-cloud/recdex/internal/usecase/health"
)

func TestRecommend(t *testing.T) {
	eng := &mockEngineUC{
		predictFn: func(_ context.Context, userID int64, n int) ([]recommendation.Recommendation, error) {
			if userID != 42 || n != 2 {
				t.Errorf("PredictTopN(%d, %d), want (42, 2)", userID, n)
			}
			return []recommendation.Recommendation{
				{ItemID: 318, ExternalID: "111161", Title: "The Shawshank Redemption (1994)", Score: 4.8},
				{ItemID: 296, ExternalID: "110912", Title: "Pulp Fiction (1994)", Score: 4.5},
			}, nil
		},
	}
	c := testClient(eng, nil, nil)

	recs, err := c.Recommend(context.Background(), 42, 2)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	if recs[0].ItemID != 318 || recs[0].Title != "The Shawshank Redemption (1994)" {
		t.Errorf("recs[0] = %+v", recs[0])
	}
	if recs[1].Score != 4.5 || recs[1].ExternalID != "110912" {
		t.Errorf("recs[1] = %+v", recs[1])
	}
}

func TestRecommend_Error(t *testing.T) {
	eng := &mockEngineUC{
		predictFn: func(context.Context, int64, int) ([]recommendation.Recommendation, error) {
			return nil, domain.ErrStoreUnavailable
		},
	}
	c := testClient(eng, nil, nil)

	_, err := c.Recommend(context.Background(), 1, 10)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestRate(t *testing.T) {
	eng := &mockEngineUC{
		ingestFn: func(_ context.Context, userID, itemID int64, score float64) (engine.IngestResult, error) {
			if userID != 1 || itemID != 2 || score != 4.5 {
				t.Errorf("IngestRating(%d, %d, %v)", userID, itemID, score)
			}
			return engine.IngestResult{RetrainTriggered: true, BatchCounter: 0}, nil
		},
	}
	c := testClient(eng, nil, nil)

	res, err := c.Rate(context.Background(), 1, 2, 4.5)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if !res.RetrainTriggered {
		t.Error("expected RetrainTriggered")
	}
}

func TestRate_Invalid(t *testing.T) {
	eng := &mockEngineUC{
		ingestFn: func(context.Context, int64, int64, float64) (engine.IngestResult, error) {
			return engine.IngestResult{}, domain.ErrInvalidRating
		},
	}
	c := testClient(eng, nil, nil)

	if _, err := c.Rate(context.Background(), 1, 2, 9); !errors.Is(err, ErrInvalidRating) {
		t.Errorf("err = %v, want ErrInvalidRating", err)
	}
}

func TestRateBatch(t *testing.T) {
	eng := &mockEngineUC{
		batchFn: func(_ context.Context, inputs []engine.RatingInput) ([]dombatch.Result, engine.IngestResult, error) {
			if len(inputs) != 2 || inputs[1].Score != -1 {
				t.Errorf("inputs = %+v", inputs)
			}
			return []dombatch.Result{
				dombatch.Accepted(0, "1:2"),
				dombatch.Rejected(1, "1:3", domain.ErrInvalidRating),
			}, engine.IngestResult{BatchCounter: 1}, nil
		},
	}
	c := testClient(eng, nil, nil)

	results, res, err := c.RateBatch(context.Background(), []Rating{
		{UserID: 1, ItemID: 2, Score: 4},
		{UserID: 1, ItemID: 3, Score: -1},
	})
	if err != nil {
		t.Fatalf("RateBatch: %v", err)
	}
	if res.BatchCounter != 1 {
		t.Errorf("BatchCounter = %d, want 1", res.BatchCounter)
	}
	if !results[0].OK || results[0].Key != "1:2" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].OK || !errors.Is(results[1].Err, ErrInvalidRating) {
		t.Errorf("results[1] = %+v", results[1])
	}
}

func TestRateBatch_TooLarge(t *testing.T) {
	eng := &mockEngineUC{
		batchFn: func(context.Context, []engine.RatingInput) ([]dombatch.Result, engine.IngestResult, error) {
			return nil, engine.IngestResult{}, domain.ErrInvalidRating
		},
	}
	c := testClient(eng, nil, nil)

	if _, _, err := c.RateBatch(context.Background(), nil); !errors.Is(err, ErrInvalidRating) {
		t.Errorf("err = %v, want ErrInvalidRating", err)
	}
}

func TestEvaluate(t *testing.T) {
	eng := &mockEngineUC{
		evaluateFn: func(context.Context) (domeval.Report, error) {
			return domeval.Report{AUC: 0.82, Defined: true, TrainSize: 80, TestSize: 20, Duration: time.Second}, nil
		},
	}
	c := testClient(eng, nil, nil)

	ev, err := c.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ev.Defined || ev.AUC != 0.82 || ev.TestSize != 20 {
		t.Errorf("evaluation = %+v", ev)
	}
}

func TestRetrain_InProgress(t *testing.T) {
	eng := &mockEngineUC{
		retrainFn: func(context.Context) error { return domain.ErrRetrainInProgress },
	}
	c := testClient(eng, nil, nil)

	if err := c.Retrain(context.Background()); !errors.Is(err, ErrRetrainInProgress) {
		t.Errorf("err = %v, want ErrRetrainInProgress", err)
	}
}

func TestStatus(t *testing.T) {
	eng := &mockEngineUC{status: engine.Status{
		Ready: true, ModelVersion: 3, BatchCounter: 7, UpdateBatchSize: 100, Ratings: 1000,
	}}
	c := testClient(eng, nil, nil)

	st := c.Status()
	if !st.Ready || st.ModelVersion != 3 || st.BatchCounter != 7 || st.Ratings != 1000 {
		t.Errorf("status = %+v", st)
	}
}

func TestPutItem(t *testing.T) {
	var got item.Metadata
	catalog := &mockCatalogUC{putFn: func(_ context.Context, m item.Metadata) error {
		got = m
		return nil
	}}
	c := testClient(nil, catalog, nil)

	err := c.PutItem(context.Background(), Item{ID: 1, Title: "Toy Story (1995)", ExternalID: "114709", Genres: "Animation"})
	if err != nil {
		t.Fatalf("PutItem: %v", err)
	}
	if got.ID() != 1 || got.Title() != "Toy Story (1995)" || got.ExternalID() != "114709" {
		t.Errorf("stored = %+v", got)
	}
}

func TestHealth(t *testing.T) {
	health := &mockHealthUC{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK, "model": healthuc.CheckError},
	}}
	c := testClient(nil, nil, health)

	hs := c.Health(context.Background())
	if hs.Status != "degraded" {
		t.Errorf("status = %q, want degraded", hs.Status)
	}
	if hs.Checks["model"] != "error" {
		t.Errorf("model check = %q, want error", hs.Checks["model"])
	}
}

func TestClient_OperationOutcomes(t *testing.T) {
	obs, err := newObserver(nil, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	eng := &mockEngineUC{
		predictFn: func(context.Context, int64, int) ([]recommendation.Recommendation, error) {
			return nil, nil // every prediction missed the catalog
		},
		ingestFn: func(context.Context, int64, int64, float64) (engine.IngestResult, error) {
			return engine.IngestResult{RetrainTriggered: true}, nil
		},
		batchFn: func(context.Context, []engine.RatingInput) ([]dombatch.Result, engine.IngestResult, error) {
			return []dombatch.Result{
				dombatch.Accepted(0, "1:2"),
				dombatch.Rejected(1, "1:3", domain.ErrInvalidRating),
			}, engine.IngestResult{BatchCounter: 1}, nil
		},
		evaluateFn: func(context.Context) (domeval.Report, error) {
			return domeval.Report{TrainSize: 10, TestSize: 2}, nil
		},
		retrainFn: func(context.Context) error { return domain.ErrRetrainInProgress },
	}
	c := testClient(eng, nil, nil)
	c.obs = obs
	ctx := context.Background()

	if recs, err := c.Recommend(ctx, 1, 5); err != nil || len(recs) != 0 {
		t.Fatalf("Recommend = %v, %v", recs, err)
	}
	if _, err := c.Rate(ctx, 1, 2, 4); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if _, _, err := c.RateBatch(ctx, []Rating{{UserID: 1, ItemID: 2, Score: 4}, {UserID: 1, ItemID: 3, Score: 9}}); err != nil {
		t.Fatalf("RateBatch: %v", err)
	}
	if _, err := c.Evaluate(ctx); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	_ = c.Retrain(ctx)

	tests := []struct {
		op, outcome string
	}{
		{opRecommend, outcomeEmpty},
		{opRate, outcomeRetrainTriggered},
		{opRateBatch, outcomePartial},
		{opEvaluate, outcomeUndefined},
		{opRetrain, outcomeRetrainInProgress},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues(tt.op, tt.outcome)); got != 1 {
			t.Errorf("%s/%s count = %v, want 1", tt.op, tt.outcome, got)
		}
	}
	if got := testutil.CollectAndCount(obs.metrics.served); got != 1 {
		t.Errorf("served series = %d, want 1", got)
	}
}
