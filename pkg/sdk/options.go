package recdex

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "postgres", "valkey" or "redis"
	dsn      string
	addrs    []string
	password string

	rank            int
	iterations      int
	regularization  float64
	updateBatchSize int
	asyncRetrain    bool
	includeRated    bool
	trainTimeout    time.Duration

	modelPath string
	modelKeep int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithPostgres stores ratings and item metadata in PostgreSQL.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "postgres"
		c.dsn = dsn
	})
}

// WithValkey stores ratings and item metadata in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores ratings and item metadata in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithHyperparams sets factorization rank, ALS iterations and L2 regularization.
// Defaults: 8, 10, 0.1.
func WithHyperparams(rank, iterations int, regularization float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.rank = rank
		c.iterations = iterations
		c.regularization = regularization
	})
}

// WithUpdateBatchSize sets how many accepted ratings trigger a retrain.
// Default: 100.
func WithUpdateBatchSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.updateBatchSize = n
	})
}

// WithAsyncRetrain moves retrains onto a background goroutine so Rate never
// blocks on training. The goroutine stops on Close.
func WithAsyncRetrain() Option {
	return optionFunc(func(c *clientConfig) {
		c.asyncRetrain = true
	})
}

// WithIncludeRated lets Recommend return items the user already rated.
// By default they are skipped.
func WithIncludeRated() Option {
	return optionFunc(func(c *clientConfig) {
		c.includeRated = true
	})
}

// WithTrainTimeout bounds a single training run. Zero means no bound.
func WithTrainTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.trainTimeout = d
	})
}

// WithModelPath persists trained models under dir, keeping the newest keep versions.
func WithModelPath(dir string, keep int) Option {
	return optionFunc(func(c *clientConfig) {
		c.modelPath = dir
		c.modelKeep = keep
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
