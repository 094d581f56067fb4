package chi

import (
	"time"

	dombatch "github.com/kailas-cloud/recdex/internal/domain/batch"
	domeval "github.com/kailas-cloud/recdex/internal/domain/evaluation"
	"github.com/kailas-cloud/recdex/internal/domain/recommendation"
	"github.com/kailas-cloud/recdex/internal/usecase/engine"
)

type errorCode string

const (
	codeBadRequest        errorCode = "bad_request"
	codeValidationFailed  errorCode = "validation_failed"
	codeStoreUnavailable  errorCode = "store_unavailable"
	codeModelNotReady     errorCode = "model_not_ready"
	codeRetrainInProgress errorCode = "retrain_in_progress"
	codeTrainingFailed    errorCode = "training_failed"
	codeInternalError     errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type ratingRequest struct {
	UserID *int64   `json:"user_id"`
	ItemID *int64   `json:"item_id"`
	Rating *float64 `json:"rating"`
}

type batchRatingRequest struct {
	Ratings []ratingRequest `json:"ratings"`
}

type itemRequest struct {
	Title      string `json:"title"`
	ExternalID string `json:"external_id"`
	Genres     string `json:"genres"`
}

type itemResponse struct {
	ItemID     int64  `json:"item_id"`
	Title      string `json:"title"`
	ExternalID string `json:"external_id"`
	Genres     string `json:"genres"`
}

type ingestResponse struct {
	RetrainTriggered bool `json:"retrain_triggered"`
	BatchCounter     int  `json:"batch_counter"`
}

type batchItemResponse struct {
	Index  int            `json:"index"`
	Key    string         `json:"key"`
	Status string         `json:"status"`
	Error  *errorResponse `json:"error,omitempty"`
}

type batchIngestResponse struct {
	ingestResponse
	Items    []batchItemResponse `json:"items"`
	Accepted int                 `json:"accepted"`
	Rejected int                 `json:"rejected"`
}

type recommendationItem struct {
	ItemID     int64   `json:"item_id"`
	ExternalID string  `json:"external_id"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
}

type recommendationsResponse struct {
	UserID int64                `json:"user_id"`
	Items  []recommendationItem `json:"items"`
}

type evaluationResponse struct {
	AUC        *float64  `json:"auc"`
	TrainSize  int       `json:"train_size"`
	TestSize   int       `json:"test_size"`
	Positives  int       `json:"positives"`
	Negatives  int       `json:"negatives"`
	DurationMs int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

type statusResponse struct {
	Ready             bool                `json:"ready"`
	ModelVersion      int                 `json:"model_version"`
	TrainedAt         *time.Time          `json:"trained_at,omitempty"`
	BatchCounter      int                 `json:"batch_counter"`
	UpdateBatchSize   int                 `json:"update_batch_size"`
	Ratings           int                 `json:"ratings"`
	Users             int                 `json:"users"`
	Items             int                 `json:"items"`
	Retrains          int                 `json:"retrains"`
	RetrainFailures   int                 `json:"retrain_failures"`
	LastError         string              `json:"last_error,omitempty"`
	RetrainInProgress bool                `json:"retrain_in_progress"`
	LastEvaluation    *evaluationResponse `json:"last_evaluation,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func recommendationsToDTO(userID int64, recs []recommendation.Recommendation) recommendationsResponse {
	items := make([]recommendationItem, len(recs))
	for i, r := range recs {
		items[i] = recommendationItem{
			ItemID:     r.ItemID,
			ExternalID: r.ExternalID,
			Title:      r.Title,
			Score:      r.Score,
		}
	}
	return recommendationsResponse{UserID: userID, Items: items}
}

func evaluationToDTO(r domeval.Report) evaluationResponse {
	resp := evaluationResponse{
		TrainSize:  r.TrainSize,
		TestSize:   r.TestSize,
		Positives:  r.Positives,
		Negatives:  r.Negatives,
		DurationMs: r.Duration.Milliseconds(),
		FinishedAt: r.FinishedAt.UTC(),
	}
	if r.Defined {
		auc := r.AUC
		resp.AUC = &auc
	}
	return resp
}

func statusToDTO(st engine.Status) statusResponse {
	resp := statusResponse{
		Ready:             st.Ready,
		ModelVersion:      st.ModelVersion,
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
	if !st.TrainedAt.IsZero() {
		t := st.TrainedAt.UTC()
		resp.TrainedAt = &t
	}
	if st.LastEvaluation != nil {
		ev := evaluationToDTO(*st.LastEvaluation)
		resp.LastEvaluation = &ev
	}
	return resp
}

func batchResultToDTO(r dombatch.Result) batchItemResponse {
	item := batchItemResponse{
		Index:  r.Index(),
		Key:    r.Key(),
		Status: string(r.Status()),
	}
	if r.Err() != nil {
		item.Error = &errorResponse{
			Code:    batchErrorCode(r.Err()),
			Message: safeDomainMessage(r.Err()),
		}
	}
	return item
}
