package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "http://localhost:8000", cfg.APIURL)
	require.Equal(t, StoreMemory, cfg.Store.Backend)
	require.Equal(t, DevPassword, cfg.Password())
	require.False(t, cfg.NeedsAWS())
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: https://bot.example.com
mode: prod
login_password: s3cret
request_timeout: 5s
file_storage_hosts: [files.example.com]
log:
  level: debug
  format: json
store:
  backend: pebble
  path: /tmp/assist
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://bot.example.com", cfg.APIURL)
	require.Equal(t, ModeProd, cfg.Mode)
	require.Equal(t, "s3cret", cfg.Password())
	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
	require.Equal(t, []string{"files.example.com"}, cfg.FileStorageHosts)
	require.Equal(t, Log{Level: "debug", Format: "json"}, cfg.Log)
	require.Equal(t, StorePebble, cfg.Store.Backend)
	require.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envOf(map[string]string{
		"ASSIST_API_URL":         " http://backend:8000 ",
		"ASSIST_STORE":           "dynamodb",
		"ASSIST_STATE_TABLE":     "assist-state",
		"ASSIST_PARAM_PREFIX":    "/member-assist/prod",
		"ASSIST_FILE_HOSTS":      "a.example.com, ,b.example.com",
		"ASSIST_REQUEST_TIMEOUT": "2s",
		"ASSIST_RATE_LIMIT":      "2.5",
		"ASSIST_RATE_BURST":      "4",
		"ASSIST_LOG_LEVEL":       "",
		"ASSIST_TOKEN_PARAM":     "backend-token",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "http://backend:8000", cfg.APIURL)
	require.Equal(t, StoreDynamoDB, cfg.Store.Backend)
	require.Equal(t, "assist-state", cfg.Store.Table)
	require.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.FileStorageHosts)
	require.Equal(t, 2*time.Second, cfg.RequestTimeout)
	require.Equal(t, 2.5, cfg.RateLimit)
	require.Equal(t, 4, cfg.RateBurst)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "backend-token", cfg.TokenParam)
	require.True(t, cfg.NeedsAWS())
}

func TestApplyEnv_BadValues(t *testing.T) {
	for key, val := range map[string]string{
		"ASSIST_REQUEST_TIMEOUT": "soon",
		"ASSIST_RATE_LIMIT":      "fast",
		"ASSIST_RATE_BURST":      "x",
	} {
		cfg := Default()
		require.Error(t, cfg.applyEnv(envOf(map[string]string{key: val})), key)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"mode":          func(c *Config) { c.Mode = "staging" },
		"backend":       func(c *Config) { c.Store.Backend = "redis" },
		"pebble path":   func(c *Config) { c.Store.Backend, c.Store.Path = StorePebble, "" },
		"dynamo table":  func(c *Config) { c.Store.Backend = StoreDynamoDB },
		"prod password": func(c *Config) { c.Mode = ModeProd },
		"burst":         func(c *Config) { c.RateBurst = 0 },
		"timeout":       func(c *Config) { c.RequestTimeout = 0 },
		"token param":   func(c *Config) { c.TokenParam = "backend-token" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		require.Error(t, cfg.Validate(), name)
	}
}

func TestPassword_ProdWithParamStore(t *testing.T) {
	cfg := Default()
	cfg.Mode = ModeProd
	cfg.ParamPrefix = "/member-assist"
	require.NoError(t, cfg.Validate())
	require.Empty(t, cfg.Password())
}
