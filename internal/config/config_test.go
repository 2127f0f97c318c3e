package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "btrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	t.Setenv("BT_TEMPLATE", "trees/guard.yaml")
	t.Setenv("BT_HTTP_ADDR", "")
	t.Setenv("BT_REDIS_ADDR", "")
	path := writeConfig(t, `
log_level: debug
template: ${BT_TEMPLATE}
agents: 4
workers: 2
tick_interval: 250ms
rounds: 10
http_addr: "${BT_HTTP_ADDR::9100}"
blackboard:
  alert: false
cooldowns:
  backend: redis
  addr: ${BT_REDIS_ADDR:localhost:6380}
  db: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "trees/guard.yaml", cfg.Template)
	assert.Equal(t, 4, cfg.Agents)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 10, cfg.Rounds)
	assert.Equal(t, ":9100", cfg.HTTPAddr)
	assert.Equal(t, map[string]any{"alert": false}, cfg.Blackboard)
	assert.Equal(t, BackendRedis, cfg.Cooldowns.Backend)
	assert.Equal(t, "localhost:6380", cfg.Cooldowns.Addr)
	assert.Equal(t, 2, cfg.Cooldowns.DB)
	assert.Equal(t, "bt:cooldown:", cfg.Cooldowns.Prefix, "unset keys keep their defaults")
	assert.Equal(t, time.Second, cfg.Cooldowns.Timeout)
}

func TestLoadKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "template: a.yaml\n"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1, cfg.Agents)
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval)

	cfg, err = Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "agent: 3\n"))
	assert.Error(t, err, "unknown key")

	_, err = Load(writeConfig(t, "agents: 0\ntick_interval: -1s\nlog_level: loud\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agents")
	assert.Contains(t, err.Error(), "tick_interval")
	assert.Contains(t, err.Error(), "loud")

	_, err = Load(writeConfig(t, "cooldowns: {backend: etcd}\n"))
	assert.ErrorContains(t, err, "etcd")

	_, err = Load(writeConfig(t, "cooldowns: {backend: redis, addr: '', timeout: 0s}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cooldowns.addr")
	assert.Contains(t, err.Error(), "cooldowns.timeout")
}

func TestLoadBundledExample(t *testing.T) {
	for _, name := range []string{"BT_LOG_LEVEL", "BT_HTTP_ADDR", "BT_COOLDOWNS", "BT_REDIS_ADDR", "BT_REDIS_PASSWORD"} {
		t.Setenv(name, "")
	}
	cfg, err := Load(filepath.Join("..", "..", "examples", "btrun.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "examples/trees/guard.yaml", cfg.Template)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, BackendMemory, cfg.Cooldowns.Backend)
	assert.Equal(t, "localhost:6379", cfg.Cooldowns.Addr)
	assert.Empty(t, cfg.Cooldowns.Password)
	assert.Contains(t, cfg.Blackboard, "target")
	assert.Nil(t, cfg.Blackboard["target"])
}
