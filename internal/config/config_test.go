package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.AnalysisAPI.Timeout)
	assert.Equal(t, ChatProviderAnalysisAPI, cfg.Chat.Provider)
	assert.Equal(t, PreviewBackendMemory, cfg.Previews.Backend)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
analysisAPI:
  baseURL: http://analysis:8000
  timeout: 10s
sessions:
  idleTTL: 5m
history:
  capacity: 7
log:
  format: json
`), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://analysis:8000", cfg.AnalysisAPI.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.AnalysisAPI.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.IdleTTL)
	assert.Equal(t, 7, cfg.History.Capacity)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, time.Minute, cfg.Sessions.SweepInterval, "unset keys keep defaults")
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"ANALYSIS_API_BASE_URL": "https://api.example.com",
		"SERVER_PORT":           "8181",
		"CHAT_PROVIDER":         "openai",
		"LLM_API_KEY":           "sk-test",
		"LLM_MODEL":             "gpt-5-mini",
		"MINIO_USE_SSL":         "true",
		"LOG_LEVEL":             "",
	}))

	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.AnalysisAPI.BaseURL)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, ChatProviderOpenAI, cfg.Chat.Provider)
	assert.Equal(t, "sk-test", cfg.Chat.LLM.APIKey)
	assert.Equal(t, "gpt-5-mini", cfg.Chat.LLM.Model)
	assert.True(t, cfg.Minio.UseSSL)
	assert.Equal(t, "info", cfg.Log.Level, "empty values are ignored")
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_BadNumbers(t *testing.T) {
	assert.Error(t, Default().applyEnv(env(map[string]string{"SERVER_PORT": "eighty"})))
	assert.Error(t, Default().applyEnv(env(map[string]string{"MINIO_USE_SSL": "maybe"})))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"base url", func(c *Config) { c.AnalysisAPI.BaseURL = "localhost:8000" }},
		{"openai without key", func(c *Config) { c.Chat.Provider = ChatProviderOpenAI }},
		{"unknown provider", func(c *Config) { c.Chat.Provider = "carrier-pigeon" }},
		{"minio without endpoint", func(c *Config) { c.Previews.Backend = PreviewBackendMinio }},
		{"unknown backend", func(c *Config) { c.Previews.Backend = "disk" }},
		{"history", func(c *Config) { c.History.Capacity = 0 }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
