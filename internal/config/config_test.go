package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "searchql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Logging.Env)
	assert.Equal(t, SourceCUE, cfg.Catalog.Source)
	assert.Equal(t, DefaultChannel, cfg.Notify.Channel)
	assert.Equal(t, "searchql", cfg.Metrics.Namespace)
	assert.False(t, cfg.NotifyEnabled())
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, SourceCUE, cfg.Catalog.Source)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
logging:
  env: prod
  level: warn
catalog:
  source: sqlite
  path: /var/lib/searchql/catalog.db
parser:
  default_field: title
registry:
  eager_refresh: true
notify:
  addrs: ["localhost:6379"]
  channel: tenants
metrics:
  namespace: search
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Logging.Env)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, SourceSQLite, cfg.Catalog.Source)
	assert.Equal(t, "/var/lib/searchql/catalog.db", cfg.Catalog.Path)
	assert.Equal(t, "title", cfg.Parser.DefaultField)
	assert.True(t, cfg.Registry.EagerRefresh)
	assert.Equal(t, []string{"localhost:6379"}, cfg.Notify.Addrs)
	assert.Equal(t, "tenants", cfg.Notify.Channel)
	assert.Equal(t, "search", cfg.Metrics.Namespace)
	assert.True(t, cfg.NotifyEnabled())
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("SEARCHQL_TEST_REDIS", "redis.internal:6379")
	path := writeConfig(t, `
notify:
  addrs: ["${SEARCHQL_TEST_REDIS}"]
  password: ${SEARCHQL_TEST_UNSET:-fallback}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"redis.internal:6379"}, cfg.Notify.Addrs)
	assert.Equal(t, "fallback", cfg.Notify.Password)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"unknown field", "catalog:\n  sauce: cue\n", "failed to parse config"},
		{"bad source", "catalog:\n  source: postgres\n", `catalog.source must be "cue" or "sqlite", got "postgres"`},
		{"bad env", "logging:\n  env: staging\n", `logging.env must be one of prod, local, dev, test, got "staging"`},
		{"bad default field", "parser:\n  default_field: \"a b\"\n", "parser.default_field"},
		{"empty addr", "notify:\n  addrs: [\"\"]\n", "notify.addrs[0] is empty"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}
