package recdex

import (
	"context"

	dombatch "github.com/kailas-cloud/recdex/internal/domain/batch"
	domeval "github.com/kailas-cloud/recdex/internal/domain/evaluation"
	"github.com/kailas-cloud/recdex/internal/domain/item"
	"github.com/kailas-cloud/recdex/internal/domain/recommendation"
	"github.com/kailas-cloud/recdex/internal/usecase/engine"
	healthuc "github.com/kailas-cloud/recdex/internal/usecase/health"
)

// --- engineUseCase mock ---

type mockEngineUC struct {
	predictFn  func(ctx context.Context, userID int64, n int) ([]recommendation.Recommendation, error)
	ingestFn   func(ctx context.Context, userID, itemID int64, score float64) (engine.IngestResult, error)
	batchFn    func(ctx context.Context, inputs []engine.RatingInput) ([]dombatch.Result, engine.IngestResult, error)
	evaluateFn func(ctx context.Context) (domeval.Report, error)
	retrainFn  func(ctx context.Context) error
	status     engine.Status
}

func (m *mockEngineUC) PredictTopN(
	ctx context.Context, userID int64, n int,
) ([]recommendation.Recommendation, error) {
	return m.predictFn(ctx, userID, n)
}

func (m *mockEngineUC) IngestRating(
	ctx context.Context, userID, itemID int64, score float64,
) (engine.IngestResult, error) {
	return m.ingestFn(ctx, userID, itemID, score)
}

func (m *mockEngineUC) IngestBatch(
	ctx context.Context, inputs []engine.RatingInput,
) ([]dombatch.Result, engine.IngestResult, error) {
	return m.batchFn(ctx, inputs)
}

func (m *mockEngineUC) Evaluate(ctx context.Context) (domeval.Report, error) {
	return m.evaluateFn(ctx)
}

func (m *mockEngineUC) Retrain(ctx context.Context) error {
	return m.retrainFn(ctx)
}

func (m *mockEngineUC) Status() engine.Status { return m.status }

// --- catalogUseCase mock ---

type mockCatalogUC struct {
	putFn func(ctx context.Context, m item.Metadata) error
}

func (m *mockCatalogUC) PutItem(ctx context.Context, md item.Metadata) error {
	return m.putFn(ctx, md)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report { return m.report }

// --- worker mock ---

type blockingWorker struct {
	started chan struct{}
	stopped chan struct{}
}

func (w *blockingWorker) Serve(ctx context.Context) error {
	close(w.started)
	<-ctx.Done()
	close(w.stopped)
	return ctx.Err()
}

// --- helpers ---

func testClient(eng engineUseCase, catalog catalogUseCase, health healthUseCase) *Client {
	return &Client{
		engine:    eng,
		catalog:   catalog,
		healthSvc: health,
	}
}
