// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Corpus, Indexer, Ranking, Redis, Postgres, Kafka, Metrics, etc.).
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Corpus     CorpusConfig     `yaml:"corpus"`
	Output     OutputConfig     `yaml:"output"`
	Indexer    IndexerConfig    `yaml:"indexer"`
	Ranking    RankingConfig    `yaml:"ranking"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// CorpusConfig locates the benchmark collection on disk.
type CorpusConfig struct {
	DocumentsPath string `yaml:"documentsPath"`
	QueriesPath   string `yaml:"queriesPath"`
	QrelsPath     string `yaml:"qrelsPath"`
}

// OutputConfig controls where run files are written and how they are labelled.
type OutputConfig struct {
	Dir   string `yaml:"dir"`
	RunID string `yaml:"runId"`
}

// IndexerConfig controls how the in-memory index treats its input.
type IndexerConfig struct {
	DuplicatePolicy string `yaml:"duplicatePolicy"`
}

// RankingConfig holds the model list, model parameters and query fan-out.
type RankingConfig struct {
	Models  []string `yaml:"models"`
	TopK    int      `yaml:"topK"`
	K1      float64  `yaml:"k1"`
	B       float64  `yaml:"b"`
	Mu      float64  `yaml:"mu"`
	Workers int      `yaml:"workers"`
}

// EvaluationConfig controls how run files are scored against qrels.
type EvaluationConfig struct {
	QrelsKeyedBy string `yaml:"qrelsKeyedBy"`
	Store        bool   `yaml:"store"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	RunEvents string `yaml:"runEvents"`
}

// RedisConfig holds Redis connection and result-caching parameters.
type RedisConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"poolSize"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	Compression string        `yaml:"compression"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig toggles the span tree logged at the end of a run.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server and Pushgateway.
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Port           int    `yaml:"port"`
	PushgatewayURL string `yaml:"pushgatewayUrl"`
	JobName        string `yaml:"jobName"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	return defaultConfig()
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Indexer.DuplicatePolicy {
	case "reject", "replace":
	default:
		return fmt.Errorf("indexer.duplicatePolicy must be reject or replace, got %q", c.Indexer.DuplicatePolicy)
	}
	switch c.Evaluation.QrelsKeyedBy {
	case "sequential", "original":
	default:
		return fmt.Errorf("evaluation.qrelsKeyedBy must be sequential or original, got %q", c.Evaluation.QrelsKeyedBy)
	}
	switch c.Redis.Compression {
	case "none", "zstd", "lz4":
	default:
		return fmt.Errorf("redis.compression must be none, zstd or lz4, got %q", c.Redis.Compression)
	}
	if c.Ranking.Workers < 1 {
		return fmt.Errorf("ranking.workers must be at least 1, got %d", c.Ranking.Workers)
	}
	for name, v := range map[string]float64{"k1": c.Ranking.K1, "b": c.Ranking.B, "mu": c.Ranking.Mu} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("ranking.%s must be finite, got %v", name, v)
		}
	}
	if len(c.Ranking.Models) == 0 {
		return fmt.Errorf("ranking.models must name at least one model")
	}
	return nil
}

// defaultConfig returns a Config with defaults matching the Cranfield
// reference run.
func defaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			DocumentsPath: "../cranfield-trec-dataset-main/cran.all.1400.xml",
			QueriesPath:   "../cranfield-trec-dataset-main/cran.qry.xml",
			QrelsPath:     "../cranfield-trec-dataset-main/cranqrel.trec.txt",
		},
		Output: OutputConfig{
			Dir:   "results",
			RunID: "my_search_engine",
		},
		Indexer: IndexerConfig{
			DuplicatePolicy: "reject",
		},
		Ranking: RankingConfig{
			Models:  []string{"vsm", "bm25", "lm_dirichlet"},
			TopK:    100,
			K1:      1.2,
			B:       0.75,
			Mu:      2000,
			Workers: 4,
		},
		Evaluation: EvaluationConfig{
			QrelsKeyedBy: "sequential",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "searcheval",
			User:            "searcheval",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "cranfield-events",
			Topics: KafkaTopics{
				RunEvents: "evaluation-run-events",
			},
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			PoolSize:    10,
			CacheTTL:    24 * time.Hour,
			Compression: "zstd",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port:    9090,
			JobName: "cranfield_evaluation",
		},
	}
}

// applyEnvOverrides reads CRAN_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CRAN_DOCUMENTS"); v != "" {
		cfg.Corpus.DocumentsPath = v
	}
	if v := os.Getenv("CRAN_QUERIES"); v != "" {
		cfg.Corpus.QueriesPath = v
	}
	if v := os.Getenv("CRAN_QRELS"); v != "" {
		cfg.Corpus.QrelsPath = v
	}
	if v := os.Getenv("CRAN_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("CRAN_RUN_ID"); v != "" {
		cfg.Output.RunID = v
	}
	if v := os.Getenv("CRAN_RANKING_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ranking.Workers = n
		}
	}
	if v := os.Getenv("CRAN_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CRAN_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("CRAN_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("CRAN_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("CRAN_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CRAN_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CRAN_KAFKA_CONSUMER_GROUP"); v != "" {
		cfg.Kafka.ConsumerGroup = v
	}
	if v := os.Getenv("CRAN_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CRAN_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CRAN_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CRAN_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CRAN_METRICS_PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
}
