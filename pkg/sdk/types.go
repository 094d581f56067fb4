package recdex

import "time"

// Recommendation is one ranked prediction with its catalog metadata.
type Recommendation struct {
	ItemID     int64
	ExternalID string
	Title      string
	Score      float64
}

// Rating is one explicit user-item rating.
type Rating struct {
	UserID int64
	ItemID int64
	Score  float64
}

// RateResult reports the batch counter after ingestion.
type RateResult struct {
	RetrainTriggered bool
	BatchCounter     int
}

// RatingResult is the outcome of one rating within RateBatch.
type RatingResult struct {
	Index int
	Key   string
	OK    bool
	Err   error
}

// Evaluation is a hold-out AUC measurement.
// AUC is meaningful only when Defined is true.
type Evaluation struct {
	AUC       float64
	Defined   bool
	TrainSize int
	TestSize  int
	Positives int
	Negatives int
	Duration  time.Duration
}

// Status is a point-in-time view of the embedded engine.
type Status struct {
	Ready             bool
	ModelVersion      int
	TrainedAt         time.Time
	BatchCounter      int
	UpdateBatchSize   int
	Ratings           int
	Users             int
	Items             int
	Retrains          int
	RetrainFailures   int
	LastError         string
	RetrainInProgress bool
}

// Item is catalog metadata for one item.
type Item struct {
	ID         int64
	Title      string
	ExternalID string
	Genres     string
}
