package recdex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/recdex/internal/domain"
)

func TestNew_NoStore(t *testing.T) {
	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected error when no rating store configured")
	}
}

func TestNew_InvalidHyperparams(t *testing.T) {
	_, err := New(context.Background(),
		WithValkey("localhost:6379", ""),
		WithHyperparams(0, 10, 0.1),
	)
	if err == nil || !strings.Contains(err.Error(), "rank") {
		t.Fatalf("err = %v, want rank validation error", err)
	}
}

func TestCreateStore_UnknownDriver(t *testing.T) {
	cfg := &clientConfig{driver: "unknown", addrs: []string{"localhost:1234"}}
	_, _, err := createStore(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestCreateStore_MissingAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  *clientConfig
	}{
		{"postgres without dsn", &clientConfig{driver: "postgres"}},
		{"valkey without addr", &clientConfig{driver: "valkey"}},
		{"redis with empty addr", &clientConfig{driver: "redis", addrs: []string{""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := createStore(context.Background(), tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHyperparams(t *testing.T) {
	hp := hyperparams(&clientConfig{})
	if hp.Rank != 8 || hp.Iterations != 10 || hp.Regularization != 0.1 {
		t.Errorf("default hyperparams = %+v", hp)
	}

	cfg := &clientConfig{}
	WithHyperparams(16, 5, 0.05).apply(cfg)
	hp = hyperparams(cfg)
	if hp.Rank != 16 || hp.Iterations != 5 || hp.Regularization != 0.05 {
		t.Errorf("hyperparams = %+v, want {16 5 0.05}", hp)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithValkey("localhost:6379", "secret").apply(cfg)
	if cfg.driver != "valkey" {
		t.Errorf("driver = %q, want valkey", cfg.driver)
	}
	if cfg.addrs[0] != "localhost:6379" {
		t.Errorf("addr = %q, want localhost:6379", cfg.addrs[0])
	}
	if cfg.password != "secret" {
		t.Errorf("password = %q, want secret", cfg.password)
	}

	cfg2 := &clientConfig{}
	WithRedis("localhost:6380", "pass").apply(cfg2)
	if cfg2.driver != "redis" {
		t.Errorf("driver = %q, want redis", cfg2.driver)
	}

	cfg3 := &clientConfig{}
	WithPostgres("postgres://localhost/recdex").apply(cfg3)
	if cfg3.driver != "postgres" || cfg3.dsn != "postgres://localhost/recdex" {
		t.Errorf("postgres option = (%q, %q)", cfg3.driver, cfg3.dsn)
	}

	WithUpdateBatchSize(50).apply(cfg3)
	if cfg3.updateBatchSize != 50 {
		t.Errorf("updateBatchSize = %d, want 50", cfg3.updateBatchSize)
	}

	WithAsyncRetrain().apply(cfg3)
	if !cfg3.asyncRetrain {
		t.Error("expected async retrain")
	}

	WithIncludeRated().apply(cfg3)
	if !cfg3.includeRated {
		t.Error("expected includeRated")
	}

	WithTrainTimeout(time.Minute).apply(cfg3)
	if cfg3.trainTimeout != time.Minute {
		t.Errorf("trainTimeout = %v, want 1m", cfg3.trainTimeout)
	}

	WithModelPath("/tmp/models", 3).apply(cfg3)
	if cfg3.modelPath != "/tmp/models" || cfg3.modelKeep != 3 {
		t.Errorf("model path = (%q, %d)", cfg3.modelPath, cfg3.modelKeep)
	}

	cfg4 := &clientConfig{}
	logger := slog.Default()
	WithLogger(logger).apply(cfg4)
	if cfg4.logger != logger {
		t.Error("expected logger to be set")
	}

	reg := prometheus.NewRegistry()
	WithPrometheus(reg).apply(cfg4)
	if cfg4.metricsReg != reg {
		t.Error("expected registerer to be set")
	}
}

func TestClose_StopsWorker(t *testing.T) {
	c := &Client{}
	w := &blockingWorker{started: make(chan struct{}), stopped: make(chan struct{})}
	c.startWorker(w)
	<-w.started

	c.Close()

	select {
	case <-w.stopped:
	default:
		t.Error("worker still running after Close")
	}
}

func TestObserver_ErrorOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe(opRate, time.Now(), outcomeOK, fmt.Errorf("rate: %w", domain.ErrInvalidRating))
	obs.observe(opRecommend, time.Now(), outcomeOK, fmt.Errorf("recommend: %w", domain.ErrModelNotReady))
	obs.observe(opRecommend, time.Now(), outcomeOK, fmt.Errorf("x: %w: %w", domain.ErrStoreUnavailable, errors.New("dial")))
	obs.observe(opRetrain, time.Now(), outcomeOK, domain.NewTrainingError("validate", domain.ErrEmptyDataset))
	obs.observe(opPing, time.Now(), outcomeOK, errors.New("boom"))

	tests := []struct {
		op, outcome string
	}{
		{opRate, outcomeInvalid},
		{opRecommend, outcomeNotReady},
		{opRecommend, outcomeStoreUnavailable},
		{opRetrain, outcomeTrainingFailed},
		{opPing, outcomeError},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues(tt.op, tt.outcome)); got != 1 {
			t.Errorf("%s/%s count = %v, want 1", tt.op, tt.outcome, got)
		}
	}
	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues(opPing, outcomeOK)); got != 0 {
		t.Errorf("ping/ok count = %v, want 0", got)
	}
}

func TestObserver_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("first observer: %v", err)
	}
	second, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("second observer: %v", err)
	}
	if first.metrics.operations != second.metrics.operations {
		t.Error("expected the second observer to reuse the registered counter")
	}
}

func TestObserver_Nil(t *testing.T) {
	var obs *observer
	obs.observe(opPing, time.Now(), outcomeOK, nil) // must not panic
	if got := obs.recommendOutcome(0); got != outcomeEmpty {
		t.Errorf("recommendOutcome(0) = %q, want %q", got, outcomeEmpty)
	}
}
