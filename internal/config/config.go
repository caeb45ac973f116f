// Package config defines all configuration structures for the ClinSight
// service.  No I/O or parsing logic lives here — only plain data types and
// validation.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the terminology
// store.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// DSN renders the pgx connection string for this database.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// RedisConfig holds Redis connection parameters for the embedding cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the audit-event producer parameters.  Auditing is
// optional: when Enabled is false no producer is constructed and the pipeline
// runs without publishing events.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// OpenSearchConfig holds the alternate lexical-search backend parameters.
// When Enabled is false the PostgreSQL descriptions table serves lexical
// search.
type OpenSearchConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	Addresses          []string `mapstructure:"addresses"`
	User               string   `mapstructure:"user"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	Index              string   `mapstructure:"index"`
}

// MinIOConfig holds the terminology snapshot object store parameters.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// ModelConfig holds the local generative-model runtime parameters.  The
// runtime is an external collaborator reachable over HTTP (llama.cpp server
// compatible); ClinSight never loads model weights itself.
type ModelConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	CompletionModel    string        `mapstructure:"completion_model"`
	EmbeddingModel     string        `mapstructure:"embedding_model"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	EmbedTimeout       time.Duration `mapstructure:"embed_timeout"`
	EmbedConcurrency   int           `mapstructure:"embed_concurrency"`
	DownloadPollPeriod time.Duration `mapstructure:"download_poll_period"`
}

// TerminologyConfig holds hybrid-mapper tunables.
type TerminologyConfig struct {
	LexicalLimit int `mapstructure:"lexical_limit"`  // candidates fetched per lexical query
	RerankKeep   int `mapstructure:"rerank_keep"`    // candidates kept after rerank
	MinPhraseLen int `mapstructure:"min_phrase_len"` // shortest phrase accepted by cleanup
}

// PromptConfig holds the prompt-template store parameters.
type PromptConfig struct {
	// Dir is an optional directory of prompt-template overrides.  When set,
	// the triage prompt store loads *.txt files from it and watches the
	// directory for changes; when empty the built-in prompts are used.
	Dir string `mapstructure:"dir"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
}

// Config is the root configuration structure for the service.  Every
// infrastructure component and application service reads its settings from
// the relevant sub-struct.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	OpenSearch  OpenSearchConfig  `mapstructure:"opensearch"`
	MinIO       MinIOConfig       `mapstructure:"minio"`
	Model       ModelConfig       `mapstructure:"model"`
	Terminology TerminologyConfig `mapstructure:"terminology"`
	Prompts     PromptConfig      `mapstructure:"prompts"`
	Log         LogConfig         `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required when kafka is enabled")
		}
	}

	if c.OpenSearch.Enabled {
		if len(c.OpenSearch.Addresses) == 0 {
			return fmt.Errorf("config: opensearch.addresses must contain at least one address when opensearch is enabled")
		}
		if c.OpenSearch.Index == "" {
			return fmt.Errorf("config: opensearch.index is required when opensearch is enabled")
		}
	}

	if c.Model.BaseURL == "" {
		return fmt.Errorf("config: model.base_url is required")
	}
	if c.Model.EmbedConcurrency < 1 {
		return fmt.Errorf("config: model.embed_concurrency must be >= 1, got %d", c.Model.EmbedConcurrency)
	}

	if c.Terminology.LexicalLimit < 1 {
		return fmt.Errorf("config: terminology.lexical_limit must be >= 1, got %d", c.Terminology.LexicalLimit)
	}
	if c.Terminology.RerankKeep < 1 {
		return fmt.Errorf("config: terminology.rerank_keep must be >= 1, got %d", c.Terminology.RerankKeep)
	}
	if c.Terminology.RerankKeep > c.Terminology.LexicalLimit {
		return fmt.Errorf("config: terminology.rerank_keep (%d) cannot exceed lexical_limit (%d)",
			c.Terminology.RerankKeep, c.Terminology.LexicalLimit)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
