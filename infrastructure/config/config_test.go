package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"ENVIRONMENT", "LOG_LEVEL", "SERVICE_NAME", "AWS_REGION", "TABLE_NAME", "DYNAMODB_ENDPOINT",
	"STORE_ENGINE", "STORE_CONSISTENCY", "STORE_CREATE_TABLE", "STORE_CREATE_TABLE_TIMEOUT",
	"BREAKER_ENABLED", "BREAKER_MAX_REQUESTS", "BREAKER_INTERVAL", "BREAKER_TIMEOUT",
	"BREAKER_FAILURE_THRESHOLD", "BREAKER_MIN_REQUESTS",
	"ENABLE_METRICS", "METRICS_NAMESPACE", "ENABLE_TRACING", "OTLP_ENDPOINT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	if v, ok := os.LookupEnv("STORE_TOMBSTONE_KINDS"); ok {
		t.Setenv("STORE_TOMBSTONE_KINDS", v)
		os.Unsetenv("STORE_TOMBSTONE_KINDS")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"ACTIVITY"}, cfg.Store.TombstoneKinds)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	// Arrange
	clearEnv(t)
	path := writeFile(t, `
environment: staging
table_name: from-file
store:
  engine: memory
  consistency: ONE
  tombstone_kinds: [ACTIVITY, SCENARIO]
breaker:
  enabled: false
  interval: 10s
`)
	t.Setenv("TABLE_NAME", "from-env")
	t.Setenv("BREAKER_TIMEOUT", "5s")

	// Act
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "from-env", cfg.TableName)
	assert.Equal(t, EngineMemory, cfg.Store.Engine)
	assert.Equal(t, "ONE", cfg.Store.Consistency)
	assert.Equal(t, []string{"ACTIVITY", "SCENARIO"}, cfg.Store.TombstoneKinds)
	assert.False(t, cfg.Breaker.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Breaker.Interval)
	assert.Equal(t, 5*time.Second, cfg.Breaker.Timeout)
	assert.Equal(t, "us-west-2", cfg.AWSRegion, "unset keys keep their defaults")
}

func TestLoad_TombstoneKindsFromEnvironment(t *testing.T) {
	clearEnv(t)

	t.Setenv("STORE_TOMBSTONE_KINDS", " activity , pathway ")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"ACTIVITY", "PATHWAY"}, cfg.Store.TombstoneKinds)

	t.Setenv("STORE_TOMBSTONE_KINDS", "")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Store.TombstoneKinds, "an empty list turns tombstoning off")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "unknown engine", env: map[string]string{"STORE_ENGINE": "cassandra"}},
		{name: "unknown consistency", env: map[string]string{"STORE_CONSISTENCY": "ALL"}},
		{name: "unknown environment", env: map[string]string{"ENVIRONMENT": "qa"}},
		{name: "unknown tombstone kind", env: map[string]string{"STORE_TOMBSTONE_KINDS": "LESSON"}},
		{name: "failure ratio above one", env: map[string]string{"BREAKER_FAILURE_THRESHOLD": "1.5"}},
		{name: "tracing without endpoint", env: map[string]string{"ENABLE_TRACING": "true"}, file: "otlp_endpoint: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}

			_, err := Load(path)

			assert.Error(t, err)
		})
	}
}

func TestLoad_FileErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "store: [not, a, map]\n"))
	assert.Error(t, err)
}
