package config

import "time"

// Default value constants.
const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "clinsight"
	DefaultDBMaxConns = 25

	DefaultMigrationsPath = "file://migrations"

	DefaultRedisAddr = "localhost:6379"

	DefaultKafkaBroker = "localhost:9092"
	DefaultKafkaTopic  = "clinsight.triage.audit"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "terminology-snapshots"

	DefaultOpenSearchIndex = "snomed-descriptions"

	DefaultModelBaseURL          = "http://localhost:8089"
	DefaultModelRequestTimeout   = 120 * time.Second
	DefaultModelEmbedTimeout     = 15 * time.Second
	DefaultModelEmbedConcurrency = 4

	DefaultLexicalLimit = 10
	DefaultRerankKeep   = 3
	DefaultMinPhraseLen = 4

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the service default.
// Fields already set by the caller are left unchanged so explicit
// configuration always wins.  Must be called after unmarshalling and before
// Validate so that optional-but-defaulted fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// Pipeline runs hold the request open across four model calls.
		cfg.Server.WriteTimeout = 10 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationsPath == "" {
		cfg.Database.MigrationsPath = DefaultMigrationsPath
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = 24 * time.Hour
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "clinsight"
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 100 * time.Millisecond
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = 5 * time.Second
	}

	if cfg.OpenSearch.Index == "" {
		cfg.OpenSearch.Index = DefaultOpenSearchIndex
	}

	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	if cfg.Model.BaseURL == "" {
		cfg.Model.BaseURL = DefaultModelBaseURL
	}
	if cfg.Model.RequestTimeout == 0 {
		cfg.Model.RequestTimeout = DefaultModelRequestTimeout
	}
	if cfg.Model.EmbedTimeout == 0 {
		cfg.Model.EmbedTimeout = DefaultModelEmbedTimeout
	}
	if cfg.Model.EmbedConcurrency == 0 {
		cfg.Model.EmbedConcurrency = DefaultModelEmbedConcurrency
	}
	if cfg.Model.DownloadPollPeriod == 0 {
		cfg.Model.DownloadPollPeriod = 2 * time.Second
	}

	if cfg.Terminology.LexicalLimit == 0 {
		cfg.Terminology.LexicalLimit = DefaultLexicalLimit
	}
	if cfg.Terminology.RerankKeep == 0 {
		cfg.Terminology.RerankKeep = DefaultRerankKeep
	}
	if cfg.Terminology.MinPhraseLen == 0 {
		cfg.Terminology.MinPhraseLen = DefaultMinPhraseLen
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// NewDefaultConfig returns a Config populated entirely with defaults.
// Used by binaries when no config file is present.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
