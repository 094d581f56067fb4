package engine

import (
	"time"

	domeval "github.com/kailas-cloud/recdex/internal/domain/evaluation"
)

// Status is a point-in-time view of the engine.
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
	LastEvaluation    *domeval.Report
}

// Status reports the serving snapshot, counter and retrain history.
func (s *Service) Status() Status {
	st := Status{
		BatchCounter:      s.Counter(),
		UpdateBatchSize:   s.cfg.UpdateBatchSize,
		RetrainInProgress: s.inProgress.Load(),
	}
	if cur := s.snap.Load(); cur != nil {
		st.Ready = cur.model != nil
		st.ModelVersion = cur.version
		st.TrainedAt = cur.trainedAt
		st.Ratings = cur.data.Len()
		st.Users = len(cur.data.UserIDs())
		st.Items = len(cur.data.ItemIDs())
	}

	s.statsMu.Lock()
	st.Retrains = s.stats.retrains
	st.RetrainFailures = s.stats.failures
	st.LastError = s.stats.lastError
	if s.lastEval != nil {
		ev := *s.lastEval
		st.LastEvaluation = &ev
	}
	s.statsMu.Unlock()
	return st
}
