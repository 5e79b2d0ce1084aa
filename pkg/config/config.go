// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Postgres, Redis, Kafka, Index, Search, Synthesis,
// StackExchange, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Redis         RedisConfig         `yaml:"redis"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Index         IndexConfig         `yaml:"index"`
	Search        SearchConfig        `yaml:"search"`
	Synthesis     SynthesisConfig     `yaml:"synthesis"`
	StackExchange StackExchangeConfig `yaml:"stackExchange"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for document storage.
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

// RedisConfig holds Redis connection and query-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds broker settings for analytics event publication.
type KafkaConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Brokers        []string `yaml:"brokers"`
	AnalyticsTopic string   `yaml:"analyticsTopic"`
}

// IndexConfig controls snapshot builds and persistence.
type IndexConfig struct {
	Workers      int           `yaml:"workers"`
	SnapshotDir  string        `yaml:"snapshotDir"`
	BuildTimeout time.Duration `yaml:"buildTimeout"`
}

// SearchConfig carries the BM25 parameters and result-quality thresholds.
type SearchConfig struct {
	K1              float64       `yaml:"k1"`
	B               float64       `yaml:"b"`
	TitleBoost      float64       `yaml:"titleBoost"`
	CodeBoost       float64       `yaml:"codeBoost"`
	MinScore        float64       `yaml:"minScore"`
	RecencyHalfLife time.Duration `yaml:"recencyHalfLife"`
	RecencyWeight   float64       `yaml:"recencyWeight"`
	DefaultLimit    int           `yaml:"defaultLimit"`
	MaxResults      int           `yaml:"maxResults"`
	LiveFallback    bool          `yaml:"liveFallback"`
}

// SynthesisConfig caps the synthesized answer's sections.
type SynthesisConfig struct {
	MaxSteps        int `yaml:"maxSteps"`
	MaxConcepts     int `yaml:"maxConcepts"`
	MaxDetails      int `yaml:"maxDetails"`
	MaxCodeExamples int `yaml:"maxCodeExamples"`
	MinSentenceLen  int `yaml:"minSentenceLen"`
}

// StackExchangeConfig holds live API access settings for the downloader.
type StackExchangeConfig struct {
	BaseURL     string        `yaml:"baseUrl"`
	Site        string        `yaml:"site"`
	Key         string        `yaml:"key"`
	PageSize    int           `yaml:"pageSize"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"maxAttempts"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment
// variable overrides. It returns a Config populated with sensible defaults
// for any missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  15 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "stackseek",
			User:            "stackseek",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:        false,
			Brokers:        []string{"localhost:9092"},
			AnalyticsTopic: "search-events",
		},
		Index: IndexConfig{
			Workers:      0, // one per CPU
			SnapshotDir:  "data/snapshots",
			BuildTimeout: 10 * time.Minute,
		},
		Search: SearchConfig{
			K1:              1.5,
			B:               0.75,
			TitleBoost:      5.0,
			CodeBoost:       2.0,
			MinScore:        20.0,
			RecencyHalfLife: 365 * 24 * time.Hour,
			RecencyWeight:   2.0,
			DefaultLimit:    5,
			MaxResults:      20,
			LiveFallback:    true,
		},
		Synthesis: SynthesisConfig{
			MaxSteps:        6,
			MaxConcepts:     4,
			MaxDetails:      4,
			MaxCodeExamples: 3,
			MinSentenceLen:  5,
		},
		StackExchange: StackExchangeConfig{
			BaseURL:     "https://api.stackexchange.com/2.3",
			Site:        "stackoverflow",
			PageSize:    100,
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SSK_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SSK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SSK_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SSK_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SSK_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SSK_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SSK_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SSK_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SSK_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SSK_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SSK_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("SSK_INDEX_SNAPSHOT_DIR"); v != "" {
		cfg.Index.SnapshotDir = v
	}
	if v := os.Getenv("SSK_STACKEXCHANGE_KEY"); v != "" {
		cfg.StackExchange.Key = v
	}
	if v := os.Getenv("SSK_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SSK_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
