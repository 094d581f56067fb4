// Package config loads the recdex YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverValkey   = "valkey"
)

// Config holds the recdex configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Recommender RecommenderConfig `yaml:"recommender"`
	Evaluation  EvaluationConfig  `yaml:"evaluation"`
	Cache       CacheConfig       `yaml:"cache"`
	Breaker     BreakerConfig     `yaml:"breaker"`
	Supervisor  SupervisorConfig  `yaml:"supervisor"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds rating store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // postgres, redis, valkey (default: postgres)
	DSN              string   `yaml:"dsn"`    // postgres only
	MaxConns         int      `yaml:"max_conns"`
	Addrs            []string `yaml:"addrs"` // redis/valkey only
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RecommenderConfig holds factorization and retrain policy settings.
type RecommenderConfig struct {
	Rank             int     `yaml:"rank"`
	Iterations       int     `yaml:"iterations"`
	Regularization   float64 `yaml:"regularization"`
	UpdateBatchSize  int     `yaml:"update_batch_size"`
	ModelPath        string  `yaml:"model_path"` // empty = no persistence
	ModelKeep        int     `yaml:"model_keep"`
	DefaultTopN      int     `yaml:"default_top_n"`
	TrainTimeoutSec  int     `yaml:"train_timeout_sec"`
	AsyncRetrain     *bool   `yaml:"async_retrain"` // default true
	RetrainQueueSize int     `yaml:"retrain_queue_size"`
	LoadModelOnStart bool    `yaml:"load_model_on_start"`
	IncludeRated     bool    `yaml:"include_rated"` // recommend already rated items too
	Workers          int     `yaml:"workers"` // 0 = GOMAXPROCS
	Seed             int64   `yaml:"seed"`
}

// EvaluationConfig holds offline AUC evaluation settings.
type EvaluationConfig struct {
	TestFraction         float64 `yaml:"test_fraction"`
	NegativesPerPositive int     `yaml:"negatives_per_positive"`
	Seed                 int64   `yaml:"seed"` // 0 = clock
}

// CacheConfig holds item metadata cache settings.
type CacheConfig struct {
	MetadataSize int `yaml:"metadata_size"` // negative disables the cache
}

// BreakerConfig holds rating store circuit breaker settings.
type BreakerConfig struct {
	MaxRequests      uint32 `yaml:"max_requests"`
	IntervalSec      int    `yaml:"interval_sec"`
	TimeoutSec       int    `yaml:"timeout_sec"`
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// SupervisorConfig holds service supervision settings.
type SupervisorConfig struct {
	FailureThreshold   float64 `yaml:"failure_threshold"`
	FailureDecaySec    float64 `yaml:"failure_decay_sec"`
	FailureBackoffSec  int     `yaml:"failure_backoff_sec"`
	ShutdownTimeoutSec int     `yaml:"shutdown_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML, substitutes ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	r := &c.Recommender
	if r.Rank == 0 {
		r.Rank = 8
	}
	if r.Iterations == 0 {
		r.Iterations = 10
	}
	if r.Regularization == 0 {
		r.Regularization = 0.1
	}
	if r.UpdateBatchSize == 0 {
		r.UpdateBatchSize = 100
	}
	if r.ModelKeep <= 0 {
		r.ModelKeep = 3
	}
	if r.DefaultTopN <= 0 {
		r.DefaultTopN = 10
	}
	if r.TrainTimeoutSec <= 0 {
		r.TrainTimeoutSec = 300
	}
	if r.AsyncRetrain == nil {
		async := true
		r.AsyncRetrain = &async
	}
	if r.RetrainQueueSize <= 0 {
		r.RetrainQueueSize = 1
	}

	if c.Evaluation.TestFraction == 0 {
		c.Evaluation.TestFraction = 0.2
	}
	if c.Evaluation.NegativesPerPositive <= 0 {
		c.Evaluation.NegativesPerPositive = 1
	}

	if c.Cache.MetadataSize == 0 {
		c.Cache.MetadataSize = 10_000
	}

	if c.Breaker.MaxRequests == 0 {
		c.Breaker.MaxRequests = 1
	}
	if c.Breaker.IntervalSec <= 0 {
		c.Breaker.IntervalSec = 60
	}
	if c.Breaker.TimeoutSec <= 0 {
		c.Breaker.TimeoutSec = 30
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}

	if c.Supervisor.FailureThreshold <= 0 {
		c.Supervisor.FailureThreshold = 5
	}
	if c.Supervisor.FailureDecaySec <= 0 {
		c.Supervisor.FailureDecaySec = 30
	}
	if c.Supervisor.FailureBackoffSec <= 0 {
		c.Supervisor.FailureBackoffSec = 15
	}
	if c.Supervisor.ShutdownTimeoutSec <= 0 {
		c.Supervisor.ShutdownTimeoutSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for the %s driver", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be postgres, redis or valkey, got %q", c.Database.Driver)
	}

	r := c.Recommender
	if r.Rank <= 0 {
		return fmt.Errorf("recommender.rank must be positive, got %d", r.Rank)
	}
	if r.Iterations <= 0 {
		return fmt.Errorf("recommender.iterations must be positive, got %d", r.Iterations)
	}
	if r.Regularization < 0 {
		return fmt.Errorf("recommender.regularization must be non-negative, got %g", r.Regularization)
	}
	if r.UpdateBatchSize <= 0 {
		return fmt.Errorf("recommender.update_batch_size must be positive, got %d", r.UpdateBatchSize)
	}
	if r.Workers < 0 {
		return fmt.Errorf("recommender.workers must be non-negative, got %d", r.Workers)
	}

	if f := c.Evaluation.TestFraction; f <= 0 || f >= 1 {
		return fmt.Errorf("evaluation.test_fraction must be in (0, 1), got %g", f)
	}
	return nil
}

// TrainTimeout returns the per-retrain deadline.
func (r RecommenderConfig) TrainTimeout() time.Duration {
	return time.Duration(r.TrainTimeoutSec) * time.Second
}

// Async reports whether batch retrains run on the background worker.
func (r RecommenderConfig) Async() bool {
	return r.AsyncRetrain == nil || *r.AsyncRetrain
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
