// Package config provides configuration loading, defaults, and validation for
// the ClinSight service.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all service settings.
const envPrefix = "CLINSIGHT"

// newViper builds a pre-configured Viper instance with the service's standard
// settings: YAML file type, CLINSIGHT_ env prefix, automatic env binding, and
// a key replacer that maps "." to "_" so that nested keys like
// "database.host" resolve to "CLINSIGHT_DATABASE_HOST".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerKeys(v)
	return v
}

// registerKeys declares every configuration key to viper.  AutomaticEnv only
// resolves environment variables for keys viper already knows about, so
// without this step env-only deployments (LoadFromEnv) would see an empty
// config.  Values are zero; real defaults are applied by ApplyDefaults after
// unmarshalling.
func registerKeys(v *viper.Viper) {
	keys := []string{
		"server.port", "server.mode", "server.read_timeout",
		"server.write_timeout", "server.shutdown_timeout",
		"database.host", "database.port", "database.user", "database.password",
		"database.db_name", "database.ssl_mode", "database.max_conns",
		"database.min_conns", "database.conn_max_lifetime", "database.migrations_path",
		"redis.addr", "redis.password", "redis.db", "redis.pool_size",
		"redis.dial_timeout", "redis.read_timeout", "redis.write_timeout",
		"redis.default_ttl", "redis.key_prefix",
		"kafka.enabled", "kafka.brokers", "kafka.topic",
		"kafka.batch_timeout", "kafka.write_timeout",
		"opensearch.enabled", "opensearch.addresses", "opensearch.user",
		"opensearch.password", "opensearch.insecure_skip_verify", "opensearch.index",
		"minio.endpoint", "minio.access_key", "minio.secret_key",
		"minio.bucket", "minio.use_ssl",
		"model.base_url", "model.completion_model", "model.embedding_model",
		"model.request_timeout", "model.embed_timeout", "model.embed_concurrency",
		"model.download_poll_period",
		"terminology.lexical_limit", "terminology.rerank_keep", "terminology.min_phrase_len",
		"prompts.dir",
		"log.level", "log.format",
	}
	for _, k := range keys {
		v.SetDefault(k, nil)
	}
}

// Load reads the YAML file at configPath, merges any CLINSIGHT_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.  It returns a fully-populated *Config or a descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from CLINSIGHT_* environment
// variables, with no config file required.  Preferred for containerised
// (12-factor) deployments.
func LoadFromEnv() (*Config, error) {
	v := newViper()
	return unmarshalAndFinalize(v)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is modified on disk.  Intended for
// hot-reloading non-critical settings such as log level; callers are
// responsible for applying only the safe subset of changes at runtime.
//
// Watch is non-blocking; it starts a background goroutine managed by viper.
// If the changed file fails to parse or validate, onChange is not called.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read; errors are ignored here, callers should Load first.
	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			// Invalid config on disk; keep running with the previous one.
			return
		}
		onChange(cfg)
	})
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// Intended for use in main() where a config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
