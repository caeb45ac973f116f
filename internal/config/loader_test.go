package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FileWithDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9191
database:
  user: clinsight
  password: pw
model:
  base_url: http://model-runtime:8089
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "http://model-runtime:8089", cfg.Model.BaseURL)
	// Defaults filled in for everything unset.
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
	assert.Equal(t, DefaultLexicalLimit, cfg.Terminology.LexicalLimit)
	assert.Equal(t, DefaultRerankKeep, cfg.Terminology.RerankKeep)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	path := writeConfigFile(t, `
database:
  user: clinsight
log:
  level: loud
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("CLINSIGHT_DATABASE_USER", "env-user")
	t.Setenv("CLINSIGHT_SERVER_PORT", "9999")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "env-user", cfg.Database.User)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "absent.yaml"))
	})
}
