// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Redis, Kafka, Index, Retrieval, Diversity, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Diversity DiversityConfig `yaml:"diversity"`
	Search    SearchConfig    `yaml:"search"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int             `yaml:"port"`
	ReadTimeout     time.Duration   `yaml:"readTimeout"`
	WriteTimeout    time.Duration   `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration   `yaml:"requestTimeout"`
	// CORSOrigins lists browser origins allowed to call the API; "*" allows
	// any. Empty disables CORS headers.
	CORSOrigins     []string        `yaml:"corsOrigins"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig bounds requests per client, identified by X-Client-ID or
// remote address.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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
	QueryEvents string `yaml:"queryEvents"`
}

// RedisConfig holds Redis connection and result-caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexConfig selects the posting source. Source is "memory" (a JSON-lines
// corpus loaded at start-up) or "postgres".
type IndexConfig struct {
	Source     string `yaml:"source"`
	CorpusPath string `yaml:"corpusPath"`
	CacheSize  int    `yaml:"cacheSize"`
}

// RetrievalConfig names the retrieval model and carries its parameters.
type RetrievalConfig struct {
	Model string      `yaml:"model"`
	BM25  BM25Config  `yaml:"bm25"`
	Indri IndriConfig `yaml:"indri"`
}

type BM25Config struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
	K3 float64 `yaml:"k3"`
}

type IndriConfig struct {
	Mu     float64 `yaml:"mu"`
	Lambda float64 `yaml:"lambda"`
}

// DiversityConfig controls result diversification.
type DiversityConfig struct {
	Enabled                bool    `yaml:"enabled"`
	Algorithm              string  `yaml:"algorithm"`
	MaxInputRankingsLength int     `yaml:"maxInputRankingsLength"`
	MaxResultRankingLength int     `yaml:"maxResultRankingLength"`
	Lambda                 float64 `yaml:"lambda"`
	IntentsFile            string  `yaml:"intentsFile"`
	InitialRankingFile     string  `yaml:"initialRankingFile"`
}

// SearchConfig controls query execution limits and timeouts.
type SearchConfig struct {
	QueryFilePath        string        `yaml:"queryFilePath"`
	MaxResults           int           `yaml:"maxResults"`
	DefaultLimit         int           `yaml:"defaultLimit"`
	QueryTimeout         time.Duration `yaml:"queryTimeout"`
	MaxConcurrentQueries int           `yaml:"maxConcurrentQueries"`
}

// OutputConfig controls the trec_eval result file.
type OutputConfig struct {
	TrecEvalOutputPath   string `yaml:"trecEvalOutputPath"`
	TrecEvalOutputLength int    `yaml:"trecEvalOutputLength"`
	RunID                string `yaml:"runId"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging for query evaluation.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
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
	return cfg, nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
			RateLimit: RateLimitConfig{
				Requests: 600,
				Window:   time.Minute,
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "qryeval",
			User:            "qryeval",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "qryeval-stats",
			Topics: KafkaTopics{
				QueryEvents: "query-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Index: IndexConfig{
			Source:    "memory",
			CacheSize: 4096,
		},
		Retrieval: RetrievalConfig{
			Model: "BM25",
			BM25:  BM25Config{K1: 1.2, B: 0.75, K3: 0},
			Indri: IndriConfig{Mu: 2500, Lambda: 0.4},
		},
		Diversity: DiversityConfig{
			Algorithm:              "xQuAD",
			MaxInputRankingsLength: 100,
			MaxResultRankingLength: 50,
			Lambda:                 0.5,
		},
		Search: SearchConfig{
			MaxResults:           1000,
			DefaultLimit:         10,
			QueryTimeout:         5 * time.Second,
			MaxConcurrentQueries: 4,
		},
		Output: OutputConfig{
			TrecEvalOutputLength: 1000,
			RunID:                "qryeval",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			SampleRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate reports settings that would make every query fail.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Index.Source) {
	case "memory":
		if c.Index.CorpusPath == "" {
			return apperrors.Configuration("index.corpusPath is required for the memory source")
		}
	case "postgres":
	default:
		return apperrors.Configuration("unknown index.source %q", c.Index.Source)
	}
	switch strings.ToLower(c.Retrieval.Model) {
	case "unrankedboolean", "unranked", "rankedboolean", "ranked", "bm25", "indri":
	default:
		return apperrors.Configuration("unknown retrieval.model %q", c.Retrieval.Model)
	}
	if c.Search.MaxConcurrentQueries <= 0 {
		return apperrors.Configuration("search.maxConcurrentQueries must be positive")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxResults < c.Search.DefaultLimit {
		return apperrors.Configuration("search.defaultLimit must be positive and at most search.maxResults")
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.Requests <= 0 || c.Server.RateLimit.Window <= 0) {
		return apperrors.Configuration("server.rateLimit requests and window must be positive")
	}
	if c.Output.TrecEvalOutputLength <= 0 {
		return apperrors.Configuration("output.trecEvalOutputLength must be positive")
	}
	if c.Diversity.Enabled {
		if c.Diversity.MaxInputRankingsLength <= 0 || c.Diversity.MaxResultRankingLength <= 0 {
			return apperrors.Configuration("diversity ranking lengths must be positive")
		}
		if c.Diversity.Lambda < 0 || c.Diversity.Lambda > 1 {
			return apperrors.Configuration("diversity.lambda must be in [0,1]")
		}
	}
	return nil
}

// applyEnvOverrides reads QE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("QE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("QE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("QE_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("QE_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("QE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("QE_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("QE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("QE_KAFKA_CONSUMER_GROUP"); v != "" {
		cfg.Kafka.ConsumerGroup = v
	}
	if v := os.Getenv("QE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("QE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("QE_INDEX_SOURCE"); v != "" {
		cfg.Index.Source = v
	}
	if v := os.Getenv("QE_INDEX_CORPUS_PATH"); v != "" {
		cfg.Index.CorpusPath = v
	}
	if v := os.Getenv("QE_RETRIEVAL_MODEL"); v != "" {
		cfg.Retrieval.Model = v
	}
	if v := os.Getenv("QE_DIVERSITY_ALGORITHM"); v != "" {
		cfg.Diversity.Algorithm = v
	}
	if v := os.Getenv("QE_DIVERSITY_LAMBDA"); v != "" {
		if lambda, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Diversity.Lambda = lambda
		}
	}
	if v := os.Getenv("QE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
