package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Config{
		Database: DatabaseConfig{Driver: DriverPostgres, DSN: "postgres://localhost/recdex"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("HTTP.Port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Database.Driver = %q, want postgres", cfg.Database.Driver)
	}
	r := cfg.Recommender
	if r.Rank != 8 || r.Iterations != 10 || r.Regularization != 0.1 {
		t.Errorf("hyperparams = %d/%d/%g, want 8/10/0.1", r.Rank, r.Iterations, r.Regularization)
	}
	if r.UpdateBatchSize != 100 || r.DefaultTopN != 10 {
		t.Errorf("batch/topN = %d/%d, want 100/10", r.UpdateBatchSize, r.DefaultTopN)
	}
	if !r.Async() {
		t.Error("async retrain should default to true")
	}
	if r.TrainTimeout() != 5*time.Minute {
		t.Errorf("TrainTimeout = %v, want 5m", r.TrainTimeout())
	}
	if cfg.Evaluation.TestFraction != 0.2 || cfg.Evaluation.NegativesPerPositive != 1 {
		t.Errorf("evaluation = %+v", cfg.Evaluation)
	}
	if cfg.Breaker.FailureThreshold != 5 || cfg.Cache.MetadataSize != 10_000 {
		t.Errorf("breaker/cache = %+v/%+v", cfg.Breaker, cfg.Cache)
	}
}

func TestApplyDefaults_KeepsExplicitAsyncFalse(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  dsn: postgres://x
recommender:
  async_retrain: false
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Recommender.Async() {
		t.Error("explicit async_retrain: false was overridden")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres without dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"redis without addrs", func(c *Config) { c.Database.Driver = DriverRedis }, "database.addrs"},
		{"valkey with addrs", func(c *Config) {
			c.Database.Driver = DriverValkey
			c.Database.Addrs = []string{"localhost:6379"}
		}, ""},
		{"negative rank", func(c *Config) { c.Recommender.Rank = -1 }, "recommender.rank"},
		{"negative iterations", func(c *Config) { c.Recommender.Iterations = -3 }, "recommender.iterations"},
		{"negative regularization", func(c *Config) { c.Recommender.Regularization = -0.5 }, "recommender.regularization"},
		{"negative batch size", func(c *Config) { c.Recommender.UpdateBatchSize = -1 }, "update_batch_size"},
		{"negative workers", func(c *Config) { c.Recommender.Workers = -2 }, "recommender.workers"},
		{"test fraction one", func(c *Config) { c.Evaluation.TestFraction = 1 }, "test_fraction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("RECDEX_TEST_DSN", "postgres://db/recdex")
	cfg, err := Parse([]byte(`
database:
  driver: postgres
  dsn: ${RECDEX_TEST_DSN}
recommender:
  rank: ${RECDEX_TEST_RANK:-12}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Database.DSN != "postgres://db/recdex" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
	if cfg.Recommender.Rank != 12 {
		t.Errorf("Rank = %d, want 12", cfg.Recommender.Rank)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("database: [")); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := Parse([]byte("database:\n  driver: redis\n")); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	body := "database:\n  driver: valkey\n  addrs: [\"localhost:6379\"]\nrecommender:\n  update_batch_size: 2\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Database.Driver != DriverValkey || cfg.Recommender.UpdateBatchSize != 2 {
		t.Errorf("cfg = %+v", cfg)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_LocalConfig(t *testing.T) {
	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("Load(local): %v", err)
	}
	if cfg.Database.Driver == "" {
		t.Error("expected driver from local.yaml")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("GetEnv() = %q, want local", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("GetEnv() = %q, want prod", got)
	}
}
