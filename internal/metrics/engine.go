package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "recdex"

// Recommendation engine Prometheus metrics.
var (
	RatingsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratings_ingested_total",
			Help:      "Ratings submitted for ingestion",
		},
		[]string{"status"}, // "accepted" / "invalid" / "store_error"
	)

	RetrainsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrains_total",
			Help:      "Completed model retrains",
		},
		[]string{"status"}, // "success" / "failure"
	)

	RetrainDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrain_duration_seconds",
			Help:      "Wall time of a full retrain (load + train + save)",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	BatchCounter = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_counter",
			Help:      "Ratings ingested since the last retrain trigger",
		},
	)

	ModelVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_version",
			Help:      "Version of the model currently serving predictions",
		},
	)

	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Top-N prediction requests",
		},
		[]string{"result"}, // "ok" / "empty" / "error"
	)

	LookupMissTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_miss_total",
			Help:      "Predicted items dropped for missing metadata",
		},
	)

	MetadataCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_cache_total",
			Help:      "Item metadata cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	EvaluationAUC = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evaluation_auc",
			Help:      "AUC of the most recent defined evaluation",
		},
	)

	TrainRMSE = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "train_rmse",
			Help:      "RMSE of the most recent fit over its own training ratings",
		},
	)

	StoreBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_breaker_state",
			Help:      "Rating store circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)
)

var engineMetricsRegistered bool

// RegisterEngineMetrics registers Prometheus engine metrics. Must be called once from main.
func RegisterEngineMetrics() {
	if engineMetricsRegistered {
		return
	}
	prometheus.MustRegister(RatingsIngestedTotal)
	prometheus.MustRegister(RetrainsTotal)
	prometheus.MustRegister(RetrainDuration)
	prometheus.MustRegister(BatchCounter)
	prometheus.MustRegister(ModelVersion)
	prometheus.MustRegister(PredictionsTotal)
	prometheus.MustRegister(LookupMissTotal)
	prometheus.MustRegister(MetadataCacheTotal)
	prometheus.MustRegister(EvaluationAUC)
	prometheus.MustRegister(TrainRMSE)
	prometheus.MustRegister(StoreBreakerState)
	engineMetricsRegistered = true
}
