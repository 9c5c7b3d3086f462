package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	prev := lookupEnv
	lookupEnv = func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = prev })
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kotoba.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	withEnv(t, nil)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "./kotoba.db", cfg.DatabasePath)
	assert.Equal(t, "openai/gpt-oss-120b", cfg.Gateway.Model)
	assert.Equal(t, 50, cfg.Retention.MaxConversations)
	assert.Equal(t, "@every 10m", cfg.Retention.Schedule)
	assert.Zero(t, cfg.Generation.Timeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
database_path: /var/lib/kotoba.db
log:
  level: debug
  format: json
gateway:
  model: llama-3
  timeout: 15s
generation:
  timeout: 45s
  submits_per_minute: 5
matrix:
  rooms: ["!a:example.org"]
`)
	withEnv(t, map[string]string{
		"KOTOBA_MODEL":           "override-model",
		"MATRIX_ROOMS":           " !b:example.org, ,!c:example.org ",
		"KOTOBA_ENHANCED":        "true",
		"KOTOBA_DATABASE_PATH":   "",
		"KOTOBA_GATEWAY_TIMEOUT": "not-a-duration",
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/kotoba.db", cfg.DatabasePath, "empty env must not override")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "override-model", cfg.Gateway.Model)
	assert.Equal(t, 15*time.Second, cfg.Gateway.Timeout, "bad duration is ignored")
	assert.Equal(t, 45*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 5, cfg.Generation.SubmitsPerMinute)
	assert.True(t, cfg.Identity.Enhanced)
	assert.Equal(t, []string{"!b:example.org", "!c:example.org"}, cfg.Matrix.Rooms)
}

func TestLoad_RejectsUnknownKey(t *testing.T) {
	withEnv(t, nil)
	path := writeFile(t, "databse_path: typo.db\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	withEnv(t, nil)
	path := writeFile(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./kotoba.db", cfg.DatabasePath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad master key", func(c *Config) { c.MasterKey = "abc" }, "master_key"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"no model", func(c *Config) { c.Gateway.Model = "" }, "gateway.model"},
		{"negative timeout", func(c *Config) { c.Generation.Timeout = -time.Second }, "generation.timeout"},
		{"zero retention", func(c *Config) { c.Retention.MaxConversations = 0 }, "max_conversations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateMatrix(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.ValidateMatrix())

	cfg.Matrix = MatrixConfig{
		Homeserver:  "https://matrix.example.org",
		UserID:      "@kotoba:example.org",
		AccessToken: "syt_token",
		Rooms:       []string{"!room:example.org"},
	}
	assert.NoError(t, cfg.ValidateMatrix())
}

func TestMasterKeyBytes(t *testing.T) {
	cfg := Default()
	key, err := cfg.MasterKeyBytes()
	require.NoError(t, err)
	assert.Nil(t, key)

	cfg.MasterKey = strings.Repeat("ab", 32)
	key, err = cfg.MasterKeyBytes()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "conversation_id", "chat_1")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"conversation_id":"chat_1"`)
}
