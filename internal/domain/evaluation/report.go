package evaluation

import "time"

// Report is the offline quality record produced by one evaluation run.
// AUC is meaningful only when Defined is true (both classes present).
type Report struct {
	AUC        float64
	Defined    bool
	TrainSize  int
	TestSize   int
	Positives  int
	Negatives  int
	Duration   time.Duration
	FinishedAt time.Time
}
