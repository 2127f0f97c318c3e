package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guardTemplate = `
name: guard
root: main
nodes:
  main:
    type: Selector
    children: [attack, idle]
  attack:
    type: CooldownCheck
    params: {tag: attack}
    child: strike
  strike:
    type: SetTagCooldown
    params: {tag: attack, duration: 5s}
  idle:
    type: Wait
    params: {ticks: 2}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeTemplate(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNodesCommand(t *testing.T) {
	out, err := execute(t, "nodes")
	require.NoError(t, err)
	assert.Contains(t, out, "SetTagCooldownNode")
	assert.Contains(t, out, "Set Tag Cooldown")
	assert.Contains(t, out, "Decorators/Conditions")
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", writeTemplate(t, guardTemplate))
	require.NoError(t, err)
	assert.Contains(t, out, "guard (5 nodes)")
	assert.Contains(t, out, "0 Root (root)")
	assert.Contains(t, out, "Set cooldown attack to 5s")

	_, err = execute(t, "validate", writeTemplate(t, "root: a\nnodes:\n  a: {type: Inverter}\n"))
	assert.Error(t, err)
}

func TestValidateBundledTemplates(t *testing.T) {
	out, err := execute(t, "validate",
		filepath.Join("..", "..", "examples", "trees", "guard.yaml"),
		filepath.Join("..", "..", "examples", "trees", "patrol.json"),
	)
	require.NoError(t, err)
	assert.Contains(t, out, "guard (9 nodes)")
	assert.Contains(t, out, "patrol (7 nodes)")
	assert.Contains(t, out, "No Target")
}

func TestRunCommand(t *testing.T) {
	path := writeTemplate(t, guardTemplate)
	out, err := execute(t, "run", path, "--agents", "2", "--rounds", "3", "--interval", "1ms", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "AGENT")
	assert.Equal(t, 3, bytes.Count([]byte(out), []byte("\n")), "header plus one line per agent")
	assert.Contains(t, out, "guard/")
}

func TestRunCommandNeedsTemplate(t *testing.T) {
	_, err := execute(t, "run", "--rounds", "1")
	assert.Error(t, err)
}

func TestRunCommandWithRedisCooldowns(t *testing.T) {
	mr := miniredis.RunT(t)
	tpl := writeTemplate(t, guardTemplate)
	cfgPath := filepath.Join(t.TempDir(), "btrun.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
template: `+tpl+`
log_level: error
agents: 2
rounds: 2
tick_interval: 1ms
cooldowns:
  backend: redis
  addr: `+mr.Addr()+`
`), 0o600))

	out, err := execute(t, "run", "--config", cfgPath, "--http-addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "guard/")
	assert.Len(t, mr.Keys(), 2, "one attack cooldown per agent")
}

func TestEnvFileFeedsConfig(t *testing.T) {
	dir := t.TempDir()
	tpl := writeTemplate(t, guardTemplate)
	envPath := filepath.Join(dir, "btrun.env")
	require.NoError(t, os.WriteFile(envPath, []byte("BTRUN_TEST_TEMPLATE="+tpl+"\n"), 0o600))
	cfgPath := filepath.Join(dir, "btrun.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("template: ${BTRUN_TEST_TEMPLATE}\ncooldowns: {backend: memory}\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("BTRUN_TEST_TEMPLATE") })

	out, err := execute(t, "run", "--env-file", envPath, "--config", cfgPath, "--http-addr", "")
	require.NoError(t, err)
	assert.Contains(t, out, "guard/")

	_, err = execute(t, "validate", "--env-file", filepath.Join(dir, "missing.env"), tpl)
	assert.NoError(t, err, "a missing env file is not an error")
}
